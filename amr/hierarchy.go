package amr

import (
	"fmt"
	"math"
)

// Level is one refinement level. RefRatio is the ratio to the next finer
// level and is unused on the finest.
type Level struct {
	Index    int
	Layout   *DisjointBoxLayout
	Dx       float64
	RefRatio int
}

type Hierarchy struct {
	Levels []*Level
}

// NewHierarchy checks that spacings and domains agree with the ratios and
// that each level is properly nested in the one below it: every fine box,
// coarsened and grown by one cell, must lie on valid coarse cells (inside
// the domain). It panics on violation.
func NewHierarchy(levels []*Level) (h *Hierarchy) {
	if len(levels) == 0 {
		panic(fmt.Errorf("hierarchy needs at least one level"))
	}
	for l, lev := range levels {
		if lev.Index != l {
			panic(fmt.Errorf("level %d carries index %d", l, lev.Index))
		}
		if lev.Dx <= 0 {
			panic(fmt.Errorf("level %d has non-positive dx %g", l, lev.Dx))
		}
		if l == 0 {
			continue
		}
		var (
			crse = levels[l-1]
			r    = crse.RefRatio
		)
		checkRatio(r)
		if math.Abs(crse.Dx-lev.Dx*float64(r)) > 1.e-12*crse.Dx {
			panic(fmt.Errorf("level %d dx %g does not match level %d dx %g with ratio %d",
				l, lev.Dx, l-1, crse.Dx, r))
		}
		if lev.Layout.Domain.Box != crse.Layout.Domain.Box.Refine(r) {
			panic(fmt.Errorf("level %d domain %v is not level %d domain refined by %d",
				l, lev.Layout.Domain.Box, l-1, r))
		}
		for bi, fb := range lev.Layout.Boxes {
			if !fb.Coarsenable(r) {
				panic(fmt.Errorf("level %d box %d %v is not coarsenable by %d", l, bi, fb, r))
			}
			fb.Coarsen(r).Grow(1).ForEach(func(iv IntVect) {
				if _, ok := crse.Layout.Domain.Wrap(iv); !ok {
					return
				}
				if !crse.Layout.Covers(iv) {
					panic(fmt.Errorf("level %d box %d %v is not properly nested in level %d",
						l, bi, fb, l-1))
				}
			})
		}
	}
	return &Hierarchy{Levels: levels}
}

func (h *Hierarchy) NumLevels() int { return len(h.Levels) }

func (h *Hierarchy) Finest() *Level { return h.Levels[len(h.Levels)-1] }

// CellCenter returns the physical location of the center of cell iv.
func CellCenter(iv IntVect, dx float64) (x RealVect) {
	for d := 0; d < SpaceDim; d++ {
		x[d] = (float64(iv[d]) + 0.5) * dx
	}
	return
}

// FaceCenter returns the location of the center of the low face of iv in
// direction d.
func FaceCenter(iv IntVect, d int, dx float64) (x RealVect) {
	x = CellCenter(iv, dx)
	x[d] -= 0.5 * dx
	return
}
