package cfinterp

import (
	"fmt"

	"github.com/notargets/amrelliptic/amr"
)

type coarsePoint struct {
	bi int
	iv amr.IntVect
	w  float64
}

// stencil fills one ghost cell: ghost = w1*f1 + w2*f2 + wc*sum(coarse),
// f1 and f2 being the fine valid cells one and two cells inside.
type stencil struct {
	ghost, f1, f2 amr.IntVect
	w1, w2, wc    float64
	coarse        []coarsePoint
}

// QuadCFInterp holds the precomputed coarse-fine ghost stencils of one
// level against its coarser neighbor.
type QuadCFInterp struct {
	fine, coarse *amr.DisjointBoxLayout
	refRatio     int
	cfivs        *CFIVS
	stencils     [][]stencil
}

// NewQuadCFInterp builds the stencils. coarse may be nil only when the
// level has no coarse-fine interface, as on level 0.
func NewQuadCFInterp(fine, coarse *amr.DisjointBoxLayout, refRatio int) (q *QuadCFInterp) {
	q = &QuadCFInterp{
		fine:     fine,
		coarse:   coarse,
		refRatio: refRatio,
		cfivs:    NewCFIVS(fine),
		stencils: make([][]stencil, fine.Size()),
	}
	if q.cfivs.IsEmpty() {
		return
	}
	if coarse == nil {
		panic(fmt.Errorf("level has %d coarse-fine ghost cells but no coarser level",
			q.cfivs.NumCells()))
	}
	if refRatio < 2 {
		panic(fmt.Errorf("invalid refinement ratio %d", refRatio))
	}
	fine.ForEachBox(func(bi int) {
		b := fine.Boxes[bi]
		for d := 0; d < amr.SpaceDim; d++ {
			for side, sgn := range [2]int{-1, 1} {
				for _, g := range q.cfivs.Cells[bi][d][side] {
					q.stencils[bi] = append(q.stencils[bi], q.buildStencil(b, g, d, sgn))
				}
			}
		}
	})
	return
}

func (q *QuadCFInterp) CFIVS() *CFIVS { return q.cfivs }

func (q *QuadCFInterp) IsEmpty() bool { return q.cfivs.IsEmpty() }

func (q *QuadCFInterp) buildStencil(b amr.Box, g amr.IntVect, d, sgn int) (st stencil) {
	r := q.refRatio
	st.ghost = g
	st.f1, st.f2 = g, g
	st.f1[d] -= sgn
	st.f2[d] -= 2 * sgn

	parent := g.Coarsen(r)
	// Outward distance, in fine cells, from the ghost center to the
	// parent center along d
	s := float64(sgn) * ((float64(parent[d])+0.5)*float64(r) - 0.5 - float64(g[d]))
	if b.Size(d) >= 2 {
		st.w2 = -s / (2 + s)
		st.w1 = 2 * s / (1 + s)
		st.wc = 2 / ((s + 1) * (s + 2))
	} else {
		st.f2 = st.f1
		st.w1 = s / (1 + s)
		st.wc = 1 / (1 + s)
	}

	var (
		tdirs [2]int
		nt    int
		xt    [2]float64
	)
	for t := 0; t < amr.SpaceDim; t++ {
		if t == d {
			continue
		}
		tdirs[nt] = t
		xt[nt] = (float64(g[t])+0.5)/float64(r) - (float64(parent[t]) + 0.5)
		nt++
	}
	// Taylor expansion about the parent in the tangential plane
	weights := &pointWeights{}
	weights.add(parent, 1)
	var have [2][2]bool
	for n, t := range tdirs {
		var (
			e      = amr.BasisV(t)
			lo, hi = parent.Sub(e), parent.Add(e)
			x      = xt[n]
		)
		have[n][0], have[n][1] = q.coarseCovers(lo), q.coarseCovers(hi)
		switch {
		case have[n][0] && have[n][1]:
			weights.add(hi, 0.5*x+0.5*x*x)
			weights.add(lo, -0.5*x+0.5*x*x)
			weights.add(parent, -x*x)
		case have[n][1]:
			weights.add(hi, x)
			weights.add(parent, -x)
		case have[n][0]:
			weights.add(lo, -x)
			weights.add(parent, x)
		}
	}
	if have[0][0] && have[0][1] && have[1][0] && have[1][1] {
		var (
			e0, e1 = amr.BasisV(tdirs[0]), amr.BasisV(tdirs[1])
			x01    = 0.25 * xt[0] * xt[1]
		)
		corners := [4]amr.IntVect{parent.Add(e0).Add(e1), parent.Sub(e0).Sub(e1),
			parent.Add(e0).Sub(e1), parent.Sub(e0).Add(e1)}
		if q.coarseCovers(corners[0]) && q.coarseCovers(corners[1]) &&
			q.coarseCovers(corners[2]) && q.coarseCovers(corners[3]) {
			weights.add(corners[0], x01)
			weights.add(corners[1], x01)
			weights.add(corners[2], -x01)
			weights.add(corners[3], -x01)
		}
	}
	for i, iv := range weights.ivs {
		w := weights.w[i]
		if w == 0 {
			continue
		}
		cbi, wiv, ok := q.coarse.Find(iv)
		if !ok {
			panic(fmt.Errorf("coarse cell %v under coarse-fine ghost %v is not on the coarser level", iv, g))
		}
		st.coarse = append(st.coarse, coarsePoint{bi: cbi, iv: wiv, w: w})
	}
	return
}

// pointWeights accumulates weights per coarse cell in insertion order.
type pointWeights struct {
	ivs []amr.IntVect
	w   []float64
}

func (pw *pointWeights) add(iv amr.IntVect, w float64) {
	for i := range pw.ivs {
		if pw.ivs[i] == iv {
			pw.w[i] += w
			return
		}
	}
	pw.ivs = append(pw.ivs, iv)
	pw.w = append(pw.w, w)
}

func (q *QuadCFInterp) coarseCovers(iv amr.IntVect) bool {
	return q.coarse.Covers(iv)
}

// CoarseFineInterp fills the coarse-fine ghost cells of fine from its
// valid cells and the valid cells of coarse.
func (q *QuadCFInterp) CoarseFineInterp(fine, coarse *amr.LevelData) {
	if q.IsEmpty() {
		return
	}
	if coarse == nil {
		panic(fmt.Errorf("coarse-fine interpolation needs coarse data"))
	}
	if coarse.NComp() != fine.NComp() {
		panic(fmt.Errorf("component mismatch in coarse-fine interpolation: %d != %d",
			coarse.NComp(), fine.NComp()))
	}
	q.fine.ForEachBox(func(bi int) {
		fab := fine.FAB(bi)
		for c := 0; c < fine.NComp(); c++ {
			for _, st := range q.stencils[bi] {
				var cv float64
				for _, cp := range st.coarse {
					cv += cp.w * coarse.FAB(cp.bi).Get(cp.iv, c)
				}
				fab.Set(st.ghost, c, st.w1*fab.Get(st.f1, c)+st.w2*fab.Get(st.f2, c)+st.wc*cv)
			}
		}
	})
}

// HomogeneousCFInterp fills the coarse-fine ghost cells as if the coarse
// level were zero.
func (q *QuadCFInterp) HomogeneousCFInterp(fine *amr.LevelData) {
	if q.IsEmpty() {
		return
	}
	q.fine.ForEachBox(func(bi int) {
		fab := fine.FAB(bi)
		for c := 0; c < fine.NComp(); c++ {
			for _, st := range q.stencils[bi] {
				fab.Set(st.ghost, c, st.w1*fab.Get(st.f1, c)+st.w2*fab.Get(st.f2, c))
			}
		}
	})
}
