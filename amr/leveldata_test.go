package amr

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPeriodicLevel(n, maxBox, ghost int) *LevelData {
	domain := NewProblemDomain(NewBox(IntVect{}, Unit().Scale(n-1)), [SpaceDim]bool{true, true, true})
	dbl := NewDisjointBoxLayout(SplitDomain(domain.Box, maxBox), domain, 4)
	return NewLevelData(dbl, 1, ghost)
}

func fillIndexFunction(ld *LevelData, f func(iv IntVect) float64) {
	for bi := 0; bi < ld.NumBoxes(); bi++ {
		fab := ld.FAB(bi)
		ld.ValidBox(bi).ForEach(func(iv IntVect) { fab.Set(iv, 0, f(iv)) })
	}
	ld.MarkGhostsStale()
}

func TestFArrayBox(t *testing.T) {
	b := NewBox(IntVect{-1, -1, -1}, IntVect{2, 3, 4})
	fab := NewFArrayBox(b, 2)
	_, sj, sk, sc := fab.Strides()
	assert.Equal(t, 4, sj)
	assert.Equal(t, 20, sk)
	assert.Equal(t, 120, sc)
	assert.Equal(t, 0, fab.Index(b.Lo, 0))
	assert.Equal(t, sc+1+sj+sk, fab.Index(IntVect{0, 0, 0}, 1))
	fab.Set(IntVect{1, 2, 3}, 1, 7)
	assert.Equal(t, 7., fab.Get(IntVect{1, 2, 3}, 1))
	region := NewBox(IntVect{0, 0, 0}, IntVect{1, 1, 1})
	fab.SetValRegion(3, region, 0)
	buf := fab.Pack(nil, region)
	assert.Equal(t, 16, len(buf))
	other := NewFArrayBox(b, 2)
	other.Unpack(buf, region)
	assert.Equal(t, 3., other.Get(IntVect{1, 1, 1}, 0))
	shifted := NewFArrayBox(b.Shift(IntVect{10, 0, 0}), 2)
	shifted.CopyFrom(fab, region.Shift(IntVect{10, 0, 0}), IntVect{10, 0, 0})
	assert.Equal(t, 3., shifted.Get(IntVect{11, 1, 1}, 0))
	assert.Panics(t, func() { NewFArrayBox(NewBox(IntVect{1, 0, 0}, IntVect{0, 0, 0}), 1) })
}

func TestExchange(t *testing.T) {
	n := 8
	ld := newPeriodicLevel(n, 4, 2)
	require.Equal(t, 8, ld.NumBoxes())
	f := func(iv IntVect) float64 {
		w, _ := ld.Layout().Domain.Wrap(iv)
		return float64(w[0] + 10*w[1] + 100*w[2])
	}
	fillIndexFunction(ld, f)
	assert.False(t, ld.GhostsValid())
	{ // Blocking exchange fills every ghost, including periodic images
		ld.Exchange()
		assert.True(t, ld.GhostsValid())
		for bi := 0; bi < ld.NumBoxes(); bi++ {
			fab := ld.FAB(bi)
			fab.Box().ForEach(func(iv IntVect) {
				assert.Equal(t, f(iv), fab.Get(iv, 0))
			})
		}
	}
	{ // Split exchange reads the data present at Begin
		ld.SetVal(0)
		fillIndexFunction(ld, f)
		pe := ld.Copier().Begin(ld)
		for bi := 0; bi < ld.NumBoxes(); bi++ {
			ld.FAB(bi).SetValRegion(-1, ld.ValidBox(bi), 0)
		}
		pe.Finish()
		assert.True(t, ld.GhostsValid())
		for bi := 0; bi < ld.NumBoxes(); bi++ {
			fab := ld.FAB(bi)
			valid := ld.ValidBox(bi)
			fab.Box().ForEach(func(iv IntVect) {
				if valid.Contains(iv) {
					return
				}
				assert.Equal(t, f(iv), fab.Get(iv, 0))
			})
		}
	}
	ld.Scale(2)
	assert.False(t, ld.GhostsValid())
}

func TestLevelDataReductions(t *testing.T) {
	ld := newPeriodicLevel(8, 4, 1)
	fillIndexFunction(ld, func(iv IntVect) float64 { return float64(iv[0] - 3) })
	assert.Equal(t, 4., ld.Norm(0, 0, nil))
	assert.InDelta(t, float64(64*(9+4+1+0+1+4+9+16)), math.Pow(ld.Norm(2, 0, nil), 2), 1.e-9)
	assert.InDelta(t, float64(64*(3+2+1+0+1+2+3+4)), ld.Norm(1, -1, nil), 1.e-9)
	assert.InDelta(t, 64*4., ld.Sum(0, nil), 1.e-9)
	{ // Masked cells drop out
		mask := make([][]Box, ld.NumBoxes())
		for bi := range mask {
			mask[bi] = []Box{NewBox(IntVect{7, 0, 0}, IntVect{7, 7, 7})}
		}
		assert.Equal(t, 3., ld.Norm(0, 0, mask))
	}
	other := NewLevelDataLike(ld)
	other.SetVal(1)
	assert.InDelta(t, ld.Sum(0, nil), ld.Dot(other, nil), 1.e-9)
	other.AXPY(2, ld)
	assert.InDelta(t, 9., other.Norm(0, 0, nil), 1.e-12)
	other.AXBY(ld, ld, 1, -1)
	assert.Equal(t, 0., other.Norm(0, 0, nil))
	bad := NewLevelData(ld.Layout(), 2, 1)
	assert.Panics(t, func() { ld.CopyFrom(bad) })
}
