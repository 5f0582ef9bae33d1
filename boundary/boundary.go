// Package boundary fills ghost cells on non-periodic domain faces for
// cell-centered data.
package boundary

import (
	"fmt"

	"github.com/notargets/amrelliptic/amr"
)

// GhostFiller sets ghost cells of fab lying outside the domain across the
// faces of valid. When homogeneous is set every prescribed value is
// treated as zero.
type GhostFiller interface {
	FillGhosts(fab *amr.FArrayBox, valid amr.Box, domain amr.ProblemDomain, dx float64, homogeneous bool)
}

// Face describes the condition on one side of the domain. For Dirichlet the
// value is the face value, for Neumann the outward normal derivative. When
// ValueFunc is set it overrides Value and is evaluated at face centers.
type Face struct {
	Kind      Kind
	Value     float64
	ValueFunc func(x amr.RealVect) float64
}

func (f Face) value(x amr.RealVect) float64 {
	if f.ValueFunc != nil {
		return f.ValueFunc(x)
	}
	return f.Value
}

// Condition holds one Face per direction and side, [d][0] low, [d][1] high.
type Condition struct {
	Faces [amr.SpaceDim][2]Face
}

// NewUniform applies the same face condition everywhere.
func NewUniform(kind Kind, value float64) (c *Condition) {
	c = &Condition{}
	for d := 0; d < amr.SpaceDim; d++ {
		c.Faces[d] = [2]Face{{Kind: kind, Value: value}, {Kind: kind, Value: value}}
	}
	return
}

// NewPeriodic is the condition for a fully periodic domain.
func NewPeriodic() *Condition { return NewUniform(Periodic, 0) }

// Validate checks that periodic faces agree with the domain periodicity.
func (c *Condition) Validate(domain amr.ProblemDomain) (err error) {
	for d := 0; d < amr.SpaceDim; d++ {
		for side := 0; side < 2; side++ {
			isPeriodic := c.Faces[d][side].Kind == Periodic
			if isPeriodic != domain.IsPeriodic(d) {
				return fmt.Errorf("direction %d side %d: %s condition on a domain with periodic=%v",
					d, side, c.Faces[d][side].Kind, domain.IsPeriodic(d))
			}
		}
	}
	return
}

func (c *Condition) FillGhosts(fab *amr.FArrayBox, valid amr.Box, domain amr.ProblemDomain,
	dx float64, homogeneous bool) {
	for d := 0; d < amr.SpaceDim; d++ {
		for side, sgn := range [2]int{-1, 1} {
			if !domain.OnPhysicalBoundary(valid, d, sgn) {
				continue
			}
			face := c.Faces[d][side]
			if face.Kind == Periodic {
				panic(fmt.Errorf("periodic condition on non-periodic direction %d", d))
			}
			c.fillFace(fab, valid, d, sgn, face, dx, homogeneous)
		}
	}
}

// fillFace fills the ghost layers across one face over the tangential
// extent of valid; edge and corner ghosts are left alone. Layer n sits n
// cells outside and mirrors the valid cell n-1 cells inside. Only valid
// cells are read.
func (c *Condition) fillFace(fab *amr.FArrayBox, valid amr.Box, d, sgn int, face Face,
	dx float64, homogeneous bool) {
	var (
		fb     = fab.Box()
		nGhost int
		edge   int
		thick  = valid.Size(d)
		slab   = valid
	)
	if sgn < 0 {
		edge = valid.Lo[d]
		nGhost = edge - fb.Lo[d]
	} else {
		edge = valid.Hi[d]
		nGhost = fb.Hi[d] - edge
	}
	if nGhost <= 0 {
		return
	}
	slab.Lo[d], slab.Hi[d] = edge, edge
	for comp := 0; comp < fab.NComp(); comp++ {
		slab.ForEach(func(iv amr.IntVect) {
			var g float64
			for n := 1; n <= nGhost; n++ {
				ghost, mirror := iv, iv
				ghost[d] = edge + sgn*n
				mirror[d] = edge - sgn*min(n-1, thick-1)
				u0 := fab.Get(mirror, comp)
				switch face.Kind {
				case Dirichlet:
					if !homogeneous {
						g = face.value(amr.FaceCenter(faceIndex(iv, d, sgn), d, dx))
					}
					if n == 1 && thick > 1 {
						inner := iv
						inner[d] = edge - sgn
						u1 := fab.Get(inner, comp)
						fab.Set(ghost, comp, 8./3.*g-2*u0+u1/3.)
					} else {
						fab.Set(ghost, comp, 2*g-u0)
					}
				case Neumann:
					if !homogeneous {
						g = face.value(amr.FaceCenter(faceIndex(iv, d, sgn), d, dx))
					}
					fab.Set(ghost, comp, u0+float64(2*n-1)*dx*g)
				case Extrapolate:
					e := fab.Get(iv, comp)
					if thick > 1 {
						inner := iv
						inner[d] = edge - sgn
						fab.Set(ghost, comp, e+float64(n)*(e-fab.Get(inner, comp)))
					} else {
						fab.Set(ghost, comp, e)
					}
				}
			}
		})
	}
}

// faceIndex is the index of the face, in face numbering, between edge
// cell iv and its outside neighbor.
func faceIndex(iv amr.IntVect, d, sgn int) amr.IntVect {
	if sgn > 0 {
		iv[d]++
	}
	return iv
}
