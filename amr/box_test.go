package amr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBox(t *testing.T) {
	{ // Sizes, growth and intersection
		b := NewBox(IntVect{0, 0, 0}, IntVect{3, 4, 5})
		assert.Equal(t, IntVect{4, 5, 6}, b.Sizes())
		assert.Equal(t, 120, b.NumPts())
		g := b.Grow(1)
		assert.Equal(t, IntVect{-1, -1, -1}, g.Lo)
		assert.Equal(t, IntVect{4, 5, 6}, g.Hi)
		assert.True(t, g.ContainsBox(b))
		assert.False(t, b.ContainsBox(g))
		c := NewBox(IntVect{3, 4, 5}, IntVect{9, 9, 9})
		assert.Equal(t, NewBox(IntVect{3, 4, 5}, IntVect{3, 4, 5}), b.Intersect(c))
		assert.True(t, b.Intersect(c.Shift(IntVect{1, 0, 0})).IsEmpty())
	}
	{ // Coarsening rounds toward negative infinity
		assert.Equal(t, IntVect{-1, -1, 0}, IntVect{-1, -2, 1}.Coarsen(2))
		assert.Equal(t, IntVect{-2, 1, 0}, IntVect{-5, 7, 3}.Coarsen(4))
		b := NewBox(IntVect{-4, 0, 2}, IntVect{3, 7, 5})
		assert.True(t, b.Coarsenable(2))
		assert.Equal(t, NewBox(IntVect{-2, 0, 1}, IntVect{1, 3, 2}), b.Coarsen(2))
		assert.Equal(t, b, b.Coarsen(2).Refine(2))
		assert.False(t, NewBox(IntVect{1, 0, 0}, IntVect{3, 3, 3}).Coarsenable(2))
	}
	{ // Face boxes and adjacent slabs
		b := NewBox(IntVect{0, 0, 0}, IntVect{3, 3, 3})
		assert.Equal(t, IntVect{4, 5, 4}, b.SurroundingNodes(1).Sizes())
		assert.Equal(t, NewBox(IntVect{-2, 0, 0}, IntVect{-1, 3, 3}), b.AdjCellLo(0, 2))
		assert.Equal(t, NewBox(IntVect{0, 0, 4}, IntVect{3, 3, 4}), b.AdjCellHi(2, 1))
	}
	{ // ForEach runs i fastest
		var visited []IntVect
		NewBox(IntVect{0, 0, 0}, IntVect{1, 1, 0}).ForEach(func(iv IntVect) {
			visited = append(visited, iv)
		})
		assert.Equal(t, []IntVect{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {1, 1, 0}}, visited)
	}
}

func TestProblemDomain(t *testing.T) {
	pd := NewProblemDomain(NewBox(IntVect{}, IntVect{7, 7, 7}), [SpaceDim]bool{true, false, true})
	shifts := pd.PeriodicShifts()
	assert.Equal(t, 9, len(shifts))
	assert.Equal(t, IntVect{}, shifts[0])
	{
		w, ok := pd.Wrap(IntVect{-1, 3, 9})
		assert.True(t, ok)
		assert.Equal(t, IntVect{7, 3, 1}, w)
		_, ok = pd.Wrap(IntVect{0, -1, 0})
		assert.False(t, ok)
	}
	b := NewBox(IntVect{0, 0, 0}, IntVect{3, 7, 3})
	assert.False(t, pd.OnPhysicalBoundary(b, 0, -1))
	assert.True(t, pd.OnPhysicalBoundary(b, 1, -1))
	assert.True(t, pd.OnPhysicalBoundary(b, 1, 1))
	assert.False(t, pd.OnPhysicalBoundary(NewBox(IntVect{}, IntVect{3, 3, 3}), 1, 1))
}

func TestDisjointBoxLayout(t *testing.T) {
	domain := NewProblemDomain(NewBox(IntVect{}, IntVect{15, 15, 15}), [SpaceDim]bool{true, true, true})
	boxes := SplitDomain(domain.Box, 8)
	assert.Equal(t, 8, len(boxes))
	dbl := NewDisjointBoxLayout(boxes, domain, 4)
	assert.Equal(t, 16*16*16, dbl.NumCells())
	{
		bi, w, ok := dbl.Find(IntVect{-1, 0, 0})
		assert.True(t, ok)
		assert.Equal(t, IntVect{15, 0, 0}, w)
		assert.True(t, dbl.Boxes[bi].Contains(w))
	}
	crse := dbl.Coarsen(2)
	assert.Equal(t, 8*8*8, crse.NumCells())
	assert.True(t, crse.Refine(2).SameBoxes(dbl))
	assert.Panics(t, func() {
		NewDisjointBoxLayout([]Box{
			NewBox(IntVect{}, IntVect{3, 3, 3}),
			NewBox(IntVect{3, 0, 0}, IntVect{5, 3, 3}),
		}, domain, 1)
	})
	assert.Panics(t, func() {
		NewDisjointBoxLayout([]Box{NewBox(IntVect{}, IntVect{16, 3, 3})}, domain, 1)
	})
	{ // Covered regions of a finer level
		fine := NewDisjointBoxLayout([]Box{NewBox(IntVect{8, 8, 8}, IntVect{15, 15, 15})},
			domain.Refine(2), 1)
		covered := dbl.CoveredRegions(fine, 2)
		var n int
		for _, regions := range covered {
			for _, r := range regions {
				n += r.NumPts()
			}
		}
		assert.Equal(t, 4*4*4, n)
	}
}
