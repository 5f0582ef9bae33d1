package amr

import "fmt"

// FluxData holds face-centered data: for each box and direction d, an
// FArrayBox over the faces normal to d, indexed by the cell on the high
// side of the face (face i sits between cells i-1 and i).
type FluxData struct {
	layout *DisjointBoxLayout
	nComp  int
	faces  [][SpaceDim]*FArrayBox
}

func NewFluxData(layout *DisjointBoxLayout, nComp int) (fd *FluxData) {
	fd = &FluxData{
		layout: layout,
		nComp:  nComp,
		faces:  make([][SpaceDim]*FArrayBox, layout.Size()),
	}
	for bi, b := range layout.Boxes {
		for d := 0; d < SpaceDim; d++ {
			fd.faces[bi][d] = NewFArrayBox(b.SurroundingNodes(d), nComp)
		}
	}
	return
}

func (fd *FluxData) Layout() *DisjointBoxLayout { return fd.layout }
func (fd *FluxData) NComp() int                 { return fd.nComp }

func (fd *FluxData) Face(bi, d int) *FArrayBox { return fd.faces[bi][d] }

func (fd *FluxData) SetVal(val float64) {
	fd.layout.ForEachBox(func(bi int) {
		for d := 0; d < SpaceDim; d++ {
			fd.faces[bi][d].SetVal(val)
		}
	})
}

func (fd *FluxData) CopyFrom(src *FluxData) {
	if fd.nComp != src.nComp || !fd.layout.SameBoxes(src.layout) {
		panic(fmt.Errorf("flux data shape mismatch in copy"))
	}
	fd.layout.ForEachBox(func(bi int) {
		for d := 0; d < SpaceDim; d++ {
			copy(fd.faces[bi][d].Data(), src.faces[bi][d].Data())
		}
	})
}

// Combine sets fd = a*x + b*y face by face.
func (fd *FluxData) Combine(x, y *FluxData, a, b float64) {
	fd.layout.ForEachBox(func(bi int) {
		for d := 0; d < SpaceDim; d++ {
			var (
				dst = fd.faces[bi][d].Data()
				xD  = x.faces[bi][d].Data()
				yD  = y.faces[bi][d].Data()
			)
			for i := range dst {
				dst[i] = a*xD[i] + b*yD[i]
			}
		}
	})
}
