package amr

import (
	"fmt"
	"math"
	"sync"

	"github.com/exascience/pargo/parallel"
)

// LevelData holds one FArrayBox per box of a layout, each covering the
// box grown by the ghost width.
type LevelData struct {
	layout      *DisjointBoxLayout
	nComp       int
	ghost       int
	fabs        []*FArrayBox
	names       []string
	ghostsValid bool

	copierOnce sync.Once
	copier     *Copier
}

func NewLevelData(layout *DisjointBoxLayout, nComp, ghost int, names ...string) (ld *LevelData) {
	if len(names) != 0 && len(names) != nComp {
		panic(fmt.Errorf("%d component names given for %d components", len(names), nComp))
	}
	ld = &LevelData{
		layout: layout,
		nComp:  nComp,
		ghost:  ghost,
		fabs:   make([]*FArrayBox, layout.Size()),
		names:  names,
	}
	for bi, b := range layout.Boxes {
		ld.fabs[bi] = NewFArrayBox(b.Grow(ghost), nComp)
	}
	return
}

// NewLevelDataLike allocates zeroed storage with the same shape as ld.
func NewLevelDataLike(ld *LevelData) *LevelData {
	return NewLevelData(ld.layout, ld.nComp, ld.ghost, ld.names...)
}

func (ld *LevelData) Layout() *DisjointBoxLayout { return ld.layout }
func (ld *LevelData) NComp() int                 { return ld.nComp }
func (ld *LevelData) Ghost() int                 { return ld.ghost }
func (ld *LevelData) NumBoxes() int              { return len(ld.fabs) }
func (ld *LevelData) FAB(bi int) *FArrayBox      { return ld.fabs[bi] }
func (ld *LevelData) ValidBox(bi int) Box        { return ld.layout.Boxes[bi] }

// Names returns the component names, generating c0..cN when none were set.
func (ld *LevelData) Names() (names []string) {
	if len(ld.names) == ld.nComp {
		return ld.names
	}
	names = make([]string, ld.nComp)
	for c := range names {
		names[c] = fmt.Sprintf("c%d", c)
	}
	return
}

// GhostsValid reports whether ghost cells hold data consistent with the
// current valid data. Any write to valid cells leaves it false.
func (ld *LevelData) GhostsValid() bool { return ld.ghostsValid }
func (ld *LevelData) MarkGhostsStale()  { ld.ghostsValid = false }
func (ld *LevelData) MarkGhostsValid()  { ld.ghostsValid = true }

// Copier returns the cached exchange plan for this layout and ghost width.
func (ld *LevelData) Copier() *Copier {
	ld.copierOnce.Do(func() {
		ld.copier = NewExchangeCopier(ld.layout, ld.ghost)
	})
	return ld.copier
}

// Exchange fills ghost cells from neighboring boxes and periodic images.
// Ghosts on physical and coarse-fine boundaries are left untouched.
func (ld *LevelData) Exchange() {
	ld.Copier().Exchange(ld)
}

func (ld *LevelData) SetVal(val float64) {
	ld.layout.ForEachBox(func(bi int) { ld.fabs[bi].SetVal(val) })
	ld.ghostsValid = false
}

// CheckCompatible panics unless ld and o share layout and component count.
func (ld *LevelData) CheckCompatible(o *LevelData) {
	if ld.nComp != o.nComp {
		panic(fmt.Errorf("component count mismatch: %d != %d", ld.nComp, o.nComp))
	}
	if !ld.layout.SameBoxes(o.layout) {
		panic(fmt.Errorf("layout mismatch between level data"))
	}
}

// CopyFrom copies the valid cells of src.
func (ld *LevelData) CopyFrom(src *LevelData) {
	ld.CheckCompatible(src)
	ld.layout.ForEachBox(func(bi int) {
		ld.fabs[bi].CopyFrom(src.fabs[bi], ld.layout.Boxes[bi], IntVect{})
	})
	ld.ghostsValid = false
}

// ForEachValid applies f to every valid element of every component; f
// receives the box index and flat element index into FAB(bi).Data().
func (ld *LevelData) ForEachValid(f func(bi, idx int)) {
	ld.layout.ForEachBox(func(bi int) {
		var (
			fab = ld.fabs[bi]
			b   = ld.layout.Boxes[bi]
			nx  = b.Size(0)
		)
		for c := 0; c < ld.nComp; c++ {
			for k := b.Lo[2]; k <= b.Hi[2]; k++ {
				for j := b.Lo[1]; j <= b.Hi[1]; j++ {
					i0 := fab.Index(IntVect{b.Lo[0], j, k}, c)
					for idx := i0; idx < i0+nx; idx++ {
						f(bi, idx)
					}
				}
			}
		}
	})
}

// AXPY sets ld = ld + a*x on valid cells.
func (ld *LevelData) AXPY(a float64, x *LevelData) {
	ld.CheckCompatible(x)
	ld.ForEachValid(func(bi, idx int) {
		ld.fabs[bi].Data()[idx] += a * x.fabs[bi].Data()[idx]
	})
	ld.ghostsValid = false
}

// AXBY sets ld = a*x + b*y on valid cells.
func (ld *LevelData) AXBY(x, y *LevelData, a, b float64) {
	ld.CheckCompatible(x)
	ld.CheckCompatible(y)
	ld.ForEachValid(func(bi, idx int) {
		ld.fabs[bi].Data()[idx] = a*x.fabs[bi].Data()[idx] + b*y.fabs[bi].Data()[idx]
	})
	ld.ghostsValid = false
}

func (ld *LevelData) Scale(a float64) {
	ld.ForEachValid(func(bi, idx int) {
		ld.fabs[bi].Data()[idx] *= a
	})
	ld.ghostsValid = false
}

// Dot returns the sum over valid cells of ld*o, excluding masked regions.
func (ld *LevelData) Dot(o *LevelData, mask [][]Box) float64 {
	ld.CheckCompatible(o)
	return ld.reduce(mask, func(fab *FArrayBox, bi, idx int) float64 {
		return fab.Data()[idx] * o.fabs[bi].Data()[idx]
	}, func(a, b float64) float64 { return a + b })
}

// Sum returns the sum of comp over valid cells outside mask.
func (ld *LevelData) Sum(comp int, mask [][]Box) float64 {
	return ld.reduceComp(comp, mask, func(v float64) float64 { return v },
		func(a, b float64) float64 { return a + b })
}

// Norm returns the max norm for p == 0, otherwise (sum |v|^p)^(1/p), over
// valid cells outside mask. comp < 0 includes all components.
func (ld *LevelData) Norm(p, comp int, mask [][]Box) float64 {
	if p == 0 {
		return ld.reduceComp(comp, mask, math.Abs, math.Max)
	}
	s := ld.reduceComp(comp, mask, func(v float64) float64 {
		if p == 2 {
			return v * v
		}
		return math.Pow(math.Abs(v), float64(p))
	}, func(a, b float64) float64 { return a + b })
	if p == 2 {
		return math.Sqrt(s)
	}
	return math.Pow(s, 1./float64(p))
}

func (ld *LevelData) reduceComp(comp int, mask [][]Box, f func(float64) float64,
	pair func(a, b float64) float64) float64 {
	c0, c1 := 0, ld.nComp
	if comp >= 0 {
		c0, c1 = comp, comp+1
	}
	var acc float64
	for c := c0; c < c1; c++ {
		v := ld.reduceOne(c, mask, func(fab *FArrayBox, _, idx int) float64 {
			return f(fab.Data()[idx])
		}, pair)
		if c == c0 {
			acc = v
		} else {
			acc = pair(acc, v)
		}
	}
	return acc
}

func (ld *LevelData) reduce(mask [][]Box, f func(fab *FArrayBox, bi, idx int) float64,
	pair func(a, b float64) float64) (acc float64) {
	for c := 0; c < ld.nComp; c++ {
		v := ld.reduceOne(c, mask, f, pair)
		if c == 0 {
			acc = v
		} else {
			acc = pair(acc, v)
		}
	}
	return
}

func (ld *LevelData) reduceOne(c int, mask [][]Box, f func(fab *FArrayBox, bi, idx int) float64,
	pair func(a, b float64) float64) float64 {
	if len(ld.fabs) == 0 {
		return 0
	}
	return parallel.RangeReduceFloat64(0, len(ld.fabs), 0,
		func(low, high int) (result float64) {
			for bi := low; bi < high; bi++ {
				var (
					fab = ld.fabs[bi]
					b   = ld.layout.Boxes[bi]
				)
				var masked []Box
				if mask != nil {
					masked = mask[bi]
				}
				b.ForEach(func(iv IntVect) {
					for _, m := range masked {
						if m.Contains(iv) {
							return
						}
					}
					result = pair(result, f(fab, bi, fab.Index(iv, c)))
				})
			}
			return
		},
		pair)
}
