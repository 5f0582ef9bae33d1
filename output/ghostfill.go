package output

import (
	"fmt"

	"github.com/notargets/amrelliptic/amr"
)

// outsideDirs counts the directions in which iv lies outside valid and
// returns the largest distance from it.
func outsideDirs(valid amr.Box, iv amr.IntVect) (n, depth int) {
	for d := 0; d < amr.SpaceDim; d++ {
		var dist int
		switch {
		case iv[d] < valid.Lo[d]:
			dist = valid.Lo[d] - iv[d]
		case iv[d] > valid.Hi[d]:
			dist = iv[d] - valid.Hi[d]
		}
		if dist > 0 {
			n++
			depth = max(depth, dist)
		}
	}
	return
}

// fillCoarseGhosts sets the ghosts of fine that lie inside the domain but
// off the level by linear interpolation of the valid cells of coarse about
// the parent cell, with one-sided slopes where a coarse neighbor is
// missing. With keepFirst the first face layer, already written by the
// coarse-fine stencils, is left alone.
func fillCoarseGhosts(fine, coarse *amr.LevelData, r int, keepFirst bool) {
	var (
		layout = fine.Layout()
		clay   = coarse.Layout()
		domain = layout.Domain
	)
	if fine.NComp() != coarse.NComp() {
		panic(fmt.Errorf("component mismatch in ghost fill: %d != %d", fine.NComp(), coarse.NComp()))
	}
	coarseAt := func(iv amr.IntVect, c int) (v float64, ok bool) {
		cbi, w, ok := clay.Find(iv)
		if !ok {
			return
		}
		return coarse.FAB(cbi).Get(w, c), true
	}
	layout.ForEachBox(func(bi int) {
		var (
			valid = layout.Boxes[bi]
			fab   = fine.FAB(bi)
			near  = valid.Coarsen(r).Grow(1)
		)
		fab.Box().ForEach(func(g amr.IntVect) {
			n, depth := outsideDirs(valid, g)
			if n == 0 || (keepFirst && n == 1 && depth == 1) {
				return
			}
			if _, ok := domain.Wrap(g); !ok || layout.Covers(g) {
				return
			}
			p := g.Coarsen(r)
			if !clay.Covers(p) {
				for d := 0; d < amr.SpaceDim; d++ {
					p[d] = min(max(p[d], near.Lo[d]), near.Hi[d])
				}
			}
			if !clay.Covers(p) {
				panic(fmt.Errorf("no coarse cell under ghost %v of box %v", g, valid))
			}
			for c := 0; c < fine.NComp(); c++ {
				v, _ := coarseAt(p, c)
				val := v
				for d := 0; d < amr.SpaceDim; d++ {
					var (
						e         = amr.BasisV(d)
						x         = (float64(g[d])+0.5)/float64(r) - (float64(p[d]) + 0.5)
						lo, hasLo = coarseAt(p.Sub(e), c)
						hi, hasHi = coarseAt(p.Add(e), c)
					)
					switch {
					case hasLo && hasHi:
						val += 0.5 * (hi - lo) * x
					case hasHi:
						val += (hi - v) * x
					case hasLo:
						val += (v - lo) * x
					}
				}
				fab.Set(g, c, val)
			}
		})
	})
}

// fillOutsideGhosts sets the ghosts lying outside the domain that the
// boundary condition left alone: edges, corners, and the layers beyond
// the domain of boxes that do not touch it. Each is extrapolated linearly
// along a direction leaving the domain from the two cells just inside,
// ordered by how many directions leave it so that those cells are set
// first.
func fillOutsideGhosts(ld *amr.LevelData) {
	var (
		layout = ld.Layout()
		domain = layout.Domain
		dbox   = domain.Box
	)
	outside := func(iv amr.IntVect, d int) bool {
		return !domain.IsPeriodic(d) && (iv[d] < dbox.Lo[d] || iv[d] > dbox.Hi[d])
	}
	layout.ForEachBox(func(bi int) {
		var (
			valid = layout.Boxes[bi]
			fab   = ld.FAB(bi)
		)
		for m := 1; m <= amr.SpaceDim; m++ {
			fab.Box().ForEach(func(g amr.IntVect) {
				d, nOut := -1, 0
				for t := amr.SpaceDim - 1; t >= 0; t-- {
					if outside(g, t) {
						d = t
						nOut++
					}
				}
				if nOut != m {
					return
				}
				sgn, edge := 1, dbox.Hi[d]
				if g[d] < dbox.Lo[d] {
					sgn, edge = -1, dbox.Lo[d]
				}
				if n, _ := outsideDirs(valid, g); n == 1 && domain.OnPhysicalBoundary(valid, d, sgn) {
					return
				}
				var (
					h1, h2 = g, g
					dist   = float64(sgn * (g[d] - edge))
				)
				h1[d], h2[d] = edge, edge-sgn
				for c := 0; c < ld.NComp(); c++ {
					u1 := fab.Get(h1, c)
					if dbox.Size(d) > 1 {
						fab.Set(g, c, u1+dist*(u1-fab.Get(h2, c)))
					} else {
						fab.Set(g, c, u1)
					}
				}
			})
		}
	})
}
