package amr

import (
	"fmt"

	"github.com/notargets/amrelliptic/utils"
)

// DisjointBoxLayout is the box partition of one level together with the
// static assignment of boxes to workers.
type DisjointBoxLayout struct {
	Boxes      []Box
	Domain     ProblemDomain
	Partitions *utils.PartitionMap
	procLimit  int
}

// NewDisjointBoxLayout validates that boxes lie inside the domain and do
// not overlap, including through periodic images, and panics otherwise.
func NewDisjointBoxLayout(boxes []Box, domain ProblemDomain, procLimit int) (dbl *DisjointBoxLayout) {
	for i, b := range boxes {
		if b.IsEmpty() {
			panic(fmt.Errorf("box %d is empty: %v", i, b))
		}
		if !domain.Box.ContainsBox(b) {
			panic(fmt.Errorf("box %d %v is not inside domain %v", i, b, domain.Box))
		}
	}
	shifts := domain.PeriodicShifts()
	for i := range boxes {
		for j := i + 1; j < len(boxes); j++ {
			for _, s := range shifts {
				if boxes[i].Intersects(boxes[j].Shift(s)) {
					panic(fmt.Errorf("boxes %d %v and %d %v overlap", i, boxes[i], j, boxes[j]))
				}
			}
		}
	}
	dbl = &DisjointBoxLayout{
		Boxes:     append([]Box(nil), boxes...),
		Domain:    domain,
		procLimit: procLimit,
	}
	dbl.Partitions = utils.NewPartitionMap(utils.ParallelDegree(procLimit, len(boxes)), len(boxes))
	return
}

func (dbl *DisjointBoxLayout) Size() int { return len(dbl.Boxes) }

func (dbl *DisjointBoxLayout) Box(bi int) Box { return dbl.Boxes[bi] }

// ForEachBox runs f on every box, each worker over the boxes it owns.
func (dbl *DisjointBoxLayout) ForEachBox(f func(bi int)) {
	dbl.Partitions.ForEach(func(_, bi int) { f(bi) })
}

func (dbl *DisjointBoxLayout) NumCells() (n int) {
	for _, b := range dbl.Boxes {
		n += b.NumPts()
	}
	return
}

func (dbl *DisjointBoxLayout) Coarsenable(r int) bool {
	for _, b := range dbl.Boxes {
		if !b.Coarsenable(r) {
			return false
		}
	}
	return dbl.Domain.Box.Coarsenable(r)
}

// Coarsen returns the layout with every box coarsened by r. Box order and
// ownership follow the receiver.
func (dbl *DisjointBoxLayout) Coarsen(r int) *DisjointBoxLayout {
	if !dbl.Coarsenable(r) {
		panic(fmt.Errorf("layout is not coarsenable by %d", r))
	}
	boxes := make([]Box, len(dbl.Boxes))
	for i, b := range dbl.Boxes {
		boxes[i] = b.Coarsen(r)
	}
	return NewDisjointBoxLayout(boxes, dbl.Domain.Coarsen(r), dbl.procLimit)
}

func (dbl *DisjointBoxLayout) Refine(r int) *DisjointBoxLayout {
	boxes := make([]Box, len(dbl.Boxes))
	for i, b := range dbl.Boxes {
		boxes[i] = b.Refine(r)
	}
	return NewDisjointBoxLayout(boxes, dbl.Domain.Refine(r), dbl.procLimit)
}

// Find locates the box whose valid region holds iv after periodic
// wrapping. It returns the wrapped index as well.
func (dbl *DisjointBoxLayout) Find(iv IntVect) (bi int, w IntVect, ok bool) {
	if w, ok = dbl.Domain.Wrap(iv); !ok {
		return -1, w, false
	}
	for bi, b := range dbl.Boxes {
		if b.Contains(w) {
			return bi, w, true
		}
	}
	return -1, w, false
}

// Covers reports whether iv (after wrapping) is a valid cell of the level.
func (dbl *DisjointBoxLayout) Covers(iv IntVect) bool {
	_, _, ok := dbl.Find(iv)
	return ok
}

// SameBoxes reports whether the two layouts hold identical boxes in the
// same order.
func (dbl *DisjointBoxLayout) SameBoxes(o *DisjointBoxLayout) bool {
	if dbl == o {
		return true
	}
	if len(dbl.Boxes) != len(o.Boxes) {
		return false
	}
	for i := range dbl.Boxes {
		if dbl.Boxes[i] != o.Boxes[i] {
			return false
		}
	}
	return true
}

// CoveredRegions returns, for each box of dbl, the parts covered by the
// finer layout coarsened by r.
func (dbl *DisjointBoxLayout) CoveredRegions(finer *DisjointBoxLayout, r int) (covered [][]Box) {
	covered = make([][]Box, len(dbl.Boxes))
	if finer == nil {
		return
	}
	for bi, b := range dbl.Boxes {
		for _, fb := range finer.Boxes {
			if ib := b.Intersect(fb.Coarsen(r)); !ib.IsEmpty() {
				covered[bi] = append(covered[bi], ib)
			}
		}
	}
	return
}

// SplitDomain chops a domain box into boxes of at most maxSize cells per side.
func SplitDomain(b Box, maxSize int) (boxes []Box) {
	if maxSize <= 0 {
		return []Box{b}
	}
	var cuts [SpaceDim][][2]int
	for d := 0; d < SpaceDim; d++ {
		for lo := b.Lo[d]; lo <= b.Hi[d]; lo += maxSize {
			cuts[d] = append(cuts[d], [2]int{lo, min(lo+maxSize-1, b.Hi[d])})
		}
	}
	for _, ck := range cuts[2] {
		for _, cj := range cuts[1] {
			for _, ci := range cuts[0] {
				boxes = append(boxes, NewBox(IntVect{ci[0], cj[0], ck[0]}, IntVect{ci[1], cj[1], ck[1]}))
			}
		}
	}
	return
}
