// Package amr holds the block-structured grid substrate the elliptic
// operator works on: index-space boxes, disjoint box layouts on a level,
// per-box field storage with a ghost halo, ghost exchange and the
// inter-level averaging and prolongation transfers.
package amr

import (
	"fmt"
)

const SpaceDim = 3

// IntVect is a cell index in 3D index space.
type IntVect [SpaceDim]int

// RealVect is a physical location.
type RealVect [SpaceDim]float64

func Unit() IntVect { return IntVect{1, 1, 1} }

// BasisV returns the unit vector in direction d.
func BasisV(d int) (iv IntVect) {
	iv[d] = 1
	return
}

func (iv IntVect) Add(o IntVect) IntVect {
	return IntVect{iv[0] + o[0], iv[1] + o[1], iv[2] + o[2]}
}

func (iv IntVect) Sub(o IntVect) IntVect {
	return IntVect{iv[0] - o[0], iv[1] - o[1], iv[2] - o[2]}
}

func (iv IntVect) Scale(s int) IntVect {
	return IntVect{iv[0] * s, iv[1] * s, iv[2] * s}
}

// Coarsen maps a cell index to its parent on a level r times coarser,
// rounding toward negative infinity.
func (iv IntVect) Coarsen(r int) IntVect {
	return IntVect{floorDiv(iv[0], r), floorDiv(iv[1], r), floorDiv(iv[2], r)}
}

func (iv IntVect) Sum() int { return iv[0] + iv[1] + iv[2] }

func floorDiv(a, r int) int {
	if a >= 0 {
		return a / r
	}
	return -((-a + r - 1) / r)
}

// Box is a rectangular region of cells, bounds inclusive.
type Box struct {
	Lo, Hi IntVect
}

func NewBox(lo, hi IntVect) Box { return Box{Lo: lo, Hi: hi} }

// EmptyBox has Hi < Lo in every direction.
var EmptyBox = Box{Lo: Unit(), Hi: IntVect{}}

func (b Box) IsEmpty() bool {
	for d := 0; d < SpaceDim; d++ {
		if b.Hi[d] < b.Lo[d] {
			return true
		}
	}
	return false
}

func (b Box) Size(d int) int {
	if b.IsEmpty() {
		return 0
	}
	return b.Hi[d] - b.Lo[d] + 1
}

func (b Box) Sizes() IntVect {
	return IntVect{b.Size(0), b.Size(1), b.Size(2)}
}

func (b Box) NumPts() int {
	if b.IsEmpty() {
		return 0
	}
	return b.Size(0) * b.Size(1) * b.Size(2)
}

func (b Box) Grow(n int) Box {
	return Box{
		Lo: b.Lo.Sub(Unit().Scale(n)),
		Hi: b.Hi.Add(Unit().Scale(n)),
	}
}

// GrowDir grows the box by n cells on both sides of direction d only.
func (b Box) GrowDir(d, n int) Box {
	b.Lo[d] -= n
	b.Hi[d] += n
	return b
}

func (b Box) Shift(s IntVect) Box {
	return Box{Lo: b.Lo.Add(s), Hi: b.Hi.Add(s)}
}

func (b Box) Intersect(o Box) (r Box) {
	for d := 0; d < SpaceDim; d++ {
		r.Lo[d] = max(b.Lo[d], o.Lo[d])
		r.Hi[d] = min(b.Hi[d], o.Hi[d])
	}
	return
}

func (b Box) Intersects(o Box) bool { return !b.Intersect(o).IsEmpty() }

func (b Box) Contains(iv IntVect) bool {
	for d := 0; d < SpaceDim; d++ {
		if iv[d] < b.Lo[d] || iv[d] > b.Hi[d] {
			return false
		}
	}
	return true
}

func (b Box) ContainsBox(o Box) bool {
	if o.IsEmpty() {
		return true
	}
	return b.Contains(o.Lo) && b.Contains(o.Hi)
}

func (b Box) Coarsen(r int) Box {
	return Box{Lo: b.Lo.Coarsen(r), Hi: b.Hi.Coarsen(r)}
}

func (b Box) Refine(r int) Box {
	return Box{Lo: b.Lo.Scale(r), Hi: b.Hi.Add(Unit()).Scale(r).Sub(Unit())}
}

// Coarsenable reports whether the box is aligned to multiples of r.
func (b Box) Coarsenable(r int) bool {
	return b.Coarsen(r).Refine(r) == b
}

// SurroundingNodes converts a cell box to the box of faces normal to d.
func (b Box) SurroundingNodes(d int) Box {
	b.Hi[d]++
	return b
}

// AdjCellLo is the slab of n cells just below the low face in direction d.
func (b Box) AdjCellLo(d, n int) Box {
	b.Hi[d] = b.Lo[d] - 1
	b.Lo[d] = b.Lo[d] - n
	return b
}

// AdjCellHi is the slab of n cells just above the high face in direction d.
func (b Box) AdjCellHi(d, n int) Box {
	b.Lo[d] = b.Hi[d] + 1
	b.Hi[d] = b.Hi[d] + n
	return b
}

// ForEach visits every cell with i varying fastest.
func (b Box) ForEach(f func(iv IntVect)) {
	if b.IsEmpty() {
		return
	}
	var iv IntVect
	for iv[2] = b.Lo[2]; iv[2] <= b.Hi[2]; iv[2]++ {
		for iv[1] = b.Lo[1]; iv[1] <= b.Hi[1]; iv[1]++ {
			for iv[0] = b.Lo[0]; iv[0] <= b.Hi[0]; iv[0]++ {
				f(iv)
			}
		}
	}
}

func (b Box) String() string {
	return fmt.Sprintf("[%v..%v]", b.Lo, b.Hi)
}
