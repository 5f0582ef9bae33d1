package amr

import (
	"fmt"

	"github.com/ctessum/sparse"
)

// FArrayBox is dense storage for nComp fields over a box (normally a
// valid box grown by the ghost width). Elements are ordered
// [comp][k][j][i] with i fastest.
type FArrayBox struct {
	box   Box
	nComp int
	arr   *sparse.DenseArray
	// Strides for i, j, k and component
	sj, sk, sc int
}

func NewFArrayBox(b Box, nComp int) *FArrayBox {
	if b.IsEmpty() || nComp < 1 {
		panic(fmt.Errorf("invalid FArrayBox definition: box %v, nComp %d", b, nComp))
	}
	nx, ny, nz := b.Size(0), b.Size(1), b.Size(2)
	return &FArrayBox{
		box:   b,
		nComp: nComp,
		arr:   sparse.ZerosDense(nComp, nz, ny, nx),
		sj:    nx,
		sk:    nx * ny,
		sc:    nx * ny * nz,
	}
}

func (f *FArrayBox) Box() Box   { return f.box }
func (f *FArrayBox) NComp() int { return f.nComp }

// Data exposes the backing slice; use Index and Strides to address it.
func (f *FArrayBox) Data() []float64 { return f.arr.Elements }

// Strides returns the element offsets for a unit step in i, j, k and
// component.
func (f *FArrayBox) Strides() (si, sj, sk, sc int) { return 1, f.sj, f.sk, f.sc }

// Stride returns the offset of a unit step in direction d.
func (f *FArrayBox) Stride(d int) int {
	switch d {
	case 0:
		return 1
	case 1:
		return f.sj
	default:
		return f.sk
	}
}

func (f *FArrayBox) Index(iv IntVect, comp int) int {
	return comp*f.sc + (iv[2]-f.box.Lo[2])*f.sk + (iv[1]-f.box.Lo[1])*f.sj + iv[0] - f.box.Lo[0]
}

func (f *FArrayBox) Get(iv IntVect, comp int) float64 {
	return f.arr.Elements[f.Index(iv, comp)]
}

func (f *FArrayBox) Set(iv IntVect, comp int, val float64) {
	f.arr.Elements[f.Index(iv, comp)] = val
}

func (f *FArrayBox) SetVal(val float64) {
	for i := range f.arr.Elements {
		f.arr.Elements[i] = val
	}
}

// SetValRegion sets comp over region; comp < 0 sets every component.
func (f *FArrayBox) SetValRegion(val float64, region Box, comp int) {
	region = region.Intersect(f.box)
	c0, c1 := f.compRange(comp)
	for c := c0; c < c1; c++ {
		region.ForEach(func(iv IntVect) {
			f.arr.Elements[f.Index(iv, c)] = val
		})
	}
}

// CopyFrom copies every component of src over region, read at
// region shifted by -shift in src index space.
func (f *FArrayBox) CopyFrom(src *FArrayBox, region Box, shift IntVect) {
	if src.nComp != f.nComp {
		panic(fmt.Errorf("component mismatch in copy: %d != %d", src.nComp, f.nComp))
	}
	region = region.Intersect(f.box)
	if region.IsEmpty() {
		return
	}
	nx := region.Size(0)
	for c := 0; c < f.nComp; c++ {
		for k := region.Lo[2]; k <= region.Hi[2]; k++ {
			for j := region.Lo[1]; j <= region.Hi[1]; j++ {
				dst := IntVect{region.Lo[0], j, k}
				di := f.Index(dst, c)
				si := src.Index(dst.Sub(shift), c)
				copy(f.arr.Elements[di:di+nx], src.arr.Elements[si:si+nx])
			}
		}
	}
}

// Pack appends region (all components) to buf in traversal order.
func (f *FArrayBox) Pack(buf []float64, region Box) []float64 {
	nx := region.Size(0)
	for c := 0; c < f.nComp; c++ {
		for k := region.Lo[2]; k <= region.Hi[2]; k++ {
			for j := region.Lo[1]; j <= region.Hi[1]; j++ {
				si := f.Index(IntVect{region.Lo[0], j, k}, c)
				buf = append(buf, f.arr.Elements[si:si+nx]...)
			}
		}
	}
	return buf
}

// Unpack is the inverse of Pack.
func (f *FArrayBox) Unpack(buf []float64, region Box) {
	var (
		nx  = region.Size(0)
		pos int
	)
	for c := 0; c < f.nComp; c++ {
		for k := region.Lo[2]; k <= region.Hi[2]; k++ {
			for j := region.Lo[1]; j <= region.Hi[1]; j++ {
				di := f.Index(IntVect{region.Lo[0], j, k}, c)
				copy(f.arr.Elements[di:di+nx], buf[pos:pos+nx])
				pos += nx
			}
		}
	}
}

func (f *FArrayBox) compRange(comp int) (c0, c1 int) {
	if comp < 0 {
		return 0, f.nComp
	}
	if comp >= f.nComp {
		panic(fmt.Errorf("component %d out of range, have %d", comp, f.nComp))
	}
	return comp, comp + 1
}
