// Package cfinterp builds the coarse-fine interface of a refined level and
// fills its ghost cells by quadratic interpolation from the fine valid
// cells and the next coarser level.
package cfinterp

import (
	"github.com/notargets/amrelliptic/amr"
)

// CFIVS lists, per box, direction and side (0 low, 1 high), the ghost
// cells one cell outside the box face that lie inside the domain, after
// periodic wrapping, and are not valid cells of any box on the level.
type CFIVS struct {
	Cells [][amr.SpaceDim][2][]amr.IntVect
}

func NewCFIVS(layout *amr.DisjointBoxLayout) (cf *CFIVS) {
	cf = &CFIVS{Cells: make([][amr.SpaceDim][2][]amr.IntVect, layout.Size())}
	layout.ForEachBox(func(bi int) {
		b := layout.Boxes[bi]
		for d := 0; d < amr.SpaceDim; d++ {
			for side, slab := range [2]amr.Box{b.AdjCellLo(d, 1), b.AdjCellHi(d, 1)} {
				slab.ForEach(func(iv amr.IntVect) {
					if _, ok := layout.Domain.Wrap(iv); !ok {
						return
					}
					if layout.Covers(iv) {
						return
					}
					cf.Cells[bi][d][side] = append(cf.Cells[bi][d][side], iv)
				})
			}
		}
	})
	return
}

// NumCells is the total count of coarse-fine ghost cells.
func (cf *CFIVS) NumCells() (n int) {
	for _, perBox := range cf.Cells {
		for d := 0; d < amr.SpaceDim; d++ {
			n += len(perBox[d][0]) + len(perBox[d][1])
		}
	}
	return
}

func (cf *CFIVS) IsEmpty() bool { return cf.NumCells() == 0 }
