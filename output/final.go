// Package output writes hierarchy data to NetCDF files, reads them back
// for restarts, and plots solver convergence.
package output

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ctessum/cdf"

	"github.com/notargets/amrelliptic/amr"
)

// DefaultGhost is the ghost width written when Meta.Ghost is unset.
const DefaultGhost = 3

// GhostFiller fills ghosts of a level before it is written, with coarse-fine
// ghosts taken from the next coarser level.
type GhostFiller interface {
	FillGhosts(u, uCoarse *amr.LevelData, homogeneous bool)
}

type Meta struct {
	Iteration int
	Time      float64
	Ghost     int
	// Per level, missing entries are written as zero
	RegridInterval []int
}

// Snapshot is the content of a file written by WriteFinal.
type Snapshot struct {
	Meta
	Hierarchy *amr.Hierarchy
	Data      []*amr.LevelData
	Names     []string
}

func boxDims(l, bi int) []string {
	prefix := fmt.Sprintf("l%d_b%d_", l, bi)
	return []string{prefix + "z", prefix + "y", prefix + "x"}
}

func varName(l, bi int, comp string) string {
	return fmt.Sprintf("l%d_b%d_%s", l, bi, comp)
}

func boxInts(b amr.Box) []int32 {
	return []int32{int32(b.Lo[0]), int32(b.Lo[1]), int32(b.Lo[2]),
		int32(b.Hi[0]), int32(b.Hi[1]), int32(b.Hi[2])}
}

func intsBox(v []int32) amr.Box {
	return amr.NewBox(amr.IntVect{int(v[0]), int(v[1]), int(v[2])}, amr.IntVect{int(v[3]), int(v[4]), int(v[5])})
}

// padded copies data into storage of the output ghost width and fills its
// ghosts, level by level from the coarsest. With a filler, coarse-fine
// ghosts past the first layer are interpolated from the coarser level and
// ghosts outside the domain are extrapolated where the boundary condition
// does not reach.
func padded(h *amr.Hierarchy, data []*amr.LevelData, fillers []GhostFiller, ghost int,
	names []string) (out []*amr.LevelData) {
	out = make([]*amr.LevelData, len(data))
	for l, ld := range data {
		out[l] = amr.NewLevelData(ld.Layout(), ld.NComp(), ghost, names...)
		out[l].CopyFrom(ld)
		if ghost == 0 {
			continue
		}
		if l >= len(fillers) || fillers[l] == nil {
			out[l].Exchange()
			continue
		}
		var crse *amr.LevelData
		if l > 0 {
			crse = out[l-1]
		}
		fillers[l].FillGhosts(out[l], crse, false)
		if l > 0 {
			fillCoarseGhosts(out[l], crse, h.Levels[l-1].RefRatio, true)
		}
		fillOutsideGhosts(out[l])
	}
	return
}

// WriteFinal writes every level of data, ghosts included, with the
// hierarchy description needed to read it back. fillers may be nil, in
// which case only exchange fills ghosts.
func WriteFinal(w cdf.ReaderWriterAt, h *amr.Hierarchy, data []*amr.LevelData, fillers []GhostFiller,
	meta Meta) (err error) {
	if len(data) != h.NumLevels() {
		return fmt.Errorf("have %d levels of data for %d levels", len(data), h.NumLevels())
	}
	if meta.Ghost == 0 {
		meta.Ghost = DefaultGhost
	}
	var (
		names = data[0].Names()
		nComp = data[0].NComp()
		out   = padded(h, data, fillers, meta.Ghost, names)
		dims  []string
		lens  []int
	)
	for l, ld := range out {
		for bi := 0; bi < ld.NumBoxes(); bi++ {
			sz := ld.FAB(bi).Box().Sizes()
			dims = append(dims, boxDims(l, bi)...)
			lens = append(lens, sz[2], sz[1], sz[0])
		}
	}
	hd := cdf.NewHeader(dims, lens)
	hd.AddAttribute("", "num_levels", []int32{int32(h.NumLevels())})
	hd.AddAttribute("", "max_level", []int32{int32(h.NumLevels() - 1)})
	hd.AddAttribute("", "num_components", []int32{int32(nComp)})
	for c, name := range names {
		hd.AddAttribute("", fmt.Sprintf("component_%d", c), name)
	}
	hd.AddAttribute("", "iteration", []int32{int32(meta.Iteration)})
	hd.AddAttribute("", "time", []float64{meta.Time})
	hd.AddAttribute("", "ghost", []int32{int32(meta.Ghost)})
	domain := h.Levels[0].Layout.Domain
	for d := 0; d < amr.SpaceDim; d++ {
		var p int32
		if domain.IsPeriodic(d) {
			p = 1
		}
		hd.AddAttribute("", fmt.Sprintf("is_periodic_%d", d), []int32{p})
	}
	for l, lev := range h.Levels {
		var (
			boxes  []int32
			regrid int
		)
		for _, b := range lev.Layout.Boxes {
			boxes = append(boxes, boxInts(b)...)
		}
		if l < len(meta.RegridInterval) {
			regrid = meta.RegridInterval[l]
		}
		hd.AddAttribute("", fmt.Sprintf("ref_ratio_%d", l), []int32{int32(lev.RefRatio)})
		hd.AddAttribute("", fmt.Sprintf("dx_%d", l), []float64{lev.Dx})
		hd.AddAttribute("", fmt.Sprintf("dt_%d", l), []float64{0.25 * lev.Dx})
		hd.AddAttribute("", fmt.Sprintf("prob_domain_%d", l), boxInts(lev.Layout.Domain.Box))
		hd.AddAttribute("", fmt.Sprintf("boxes_%d", l), boxes)
		hd.AddAttribute("", fmt.Sprintf("regrid_interval_%d", l), []int32{int32(regrid)})
		hd.AddAttribute("", fmt.Sprintf("steps_since_regrid_%d", l), []int32{1})
	}
	for l, ld := range out {
		for bi := 0; bi < ld.NumBoxes(); bi++ {
			for _, name := range names {
				hd.AddVariable(varName(l, bi, name), boxDims(l, bi), []float64{0})
			}
		}
	}
	hd.Define()
	f, err := cdf.Create(w, hd)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	for l, ld := range out {
		for bi := 0; bi < ld.NumBoxes(); bi++ {
			var (
				fab         = ld.FAB(bi)
				_, _, _, sc = fab.Strides()
				sz          = fab.Box().Sizes()
			)
			for c, name := range names {
				wr := f.Writer(varName(l, bi, name), []int{0, 0, 0}, []int{sz[2], sz[1], sz[0]})
				if _, err = wr.Write(fab.Data()[c*sc : (c+1)*sc]); err != nil {
					return fmt.Errorf("writing %s: %w", varName(l, bi, name), err)
				}
			}
		}
	}
	return cdf.UpdateNumRecs(w)
}

// WriteFinalFile creates path and writes data to it.
func WriteFinalFile(path string, h *amr.Hierarchy, data []*amr.LevelData, fillers []GhostFiller,
	meta Meta) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create %s: %w", path, err)
	}
	defer file.Close()
	return WriteFinal(file, h, data, fillers, meta)
}

// IterationFile is the name of the dump written after iteration iter.
func IterationFile(iter int) string {
	return fmt.Sprintf("NL_iteration_0%04d.nc", iter)
}

// WriteIteration dumps data after nonlinear iteration iter into dir and
// returns the file path.
func WriteIteration(dir string, iter int, h *amr.Hierarchy, data []*amr.LevelData, fillers []GhostFiller,
	meta Meta) (path string, err error) {
	path = filepath.Join(dir, IterationFile(iter))
	meta.Iteration = iter
	err = WriteFinalFile(path, h, data, fillers, meta)
	return
}

type attrReader struct {
	f   *cdf.File
	err error
}

func (ar *attrReader) getInts(name string) []int32 {
	if ar.err != nil {
		return nil
	}
	v, ok := ar.f.Header.GetAttribute("", name).([]int32)
	if !ok || len(v) == 0 {
		ar.err = fmt.Errorf("attribute %s missing or not integer", name)
		return nil
	}
	return v
}

func (ar *attrReader) getInt(name string) int {
	if v := ar.getInts(name); v != nil {
		return int(v[0])
	}
	return 0
}

func (ar *attrReader) getFloat(name string) float64 {
	if ar.err != nil {
		return 0
	}
	v, ok := ar.f.Header.GetAttribute("", name).([]float64)
	if !ok || len(v) == 0 {
		ar.err = fmt.Errorf("attribute %s missing or not double", name)
		return 0
	}
	return v[0]
}

func (ar *attrReader) getString(name string) string {
	if ar.err != nil {
		return ""
	}
	v, ok := ar.f.Header.GetAttribute("", name).(string)
	if !ok {
		ar.err = fmt.Errorf("attribute %s missing or not text", name)
	}
	return v
}

// ReadFinal reads a file written by WriteFinal, ghosts included.
func ReadFinal(rw cdf.ReaderWriterAt) (s *Snapshot, err error) {
	f, err := cdf.Open(rw)
	if err != nil {
		return nil, fmt.Errorf("opening output file: %w", err)
	}
	var (
		ar       = &attrReader{f: f}
		nLevels  = ar.getInt("num_levels")
		nComp    = ar.getInt("num_components")
		periodic [amr.SpaceDim]bool
	)
	s = &Snapshot{}
	s.Iteration = ar.getInt("iteration")
	s.Time = ar.getFloat("time")
	s.Ghost = ar.getInt("ghost")
	for c := 0; c < nComp; c++ {
		s.Names = append(s.Names, ar.getString(fmt.Sprintf("component_%d", c)))
	}
	for d := 0; d < amr.SpaceDim; d++ {
		periodic[d] = ar.getInt(fmt.Sprintf("is_periodic_%d", d)) != 0
	}
	var levels []*amr.Level
	for l := 0; l < nLevels; l++ {
		var (
			dom   = ar.getInts(fmt.Sprintf("prob_domain_%d", l))
			bx    = ar.getInts(fmt.Sprintf("boxes_%d", l))
			dx    = ar.getFloat(fmt.Sprintf("dx_%d", l))
			ratio = ar.getInt(fmt.Sprintf("ref_ratio_%d", l))
		)
		s.RegridInterval = append(s.RegridInterval, ar.getInt(fmt.Sprintf("regrid_interval_%d", l)))
		if ar.err != nil {
			return nil, ar.err
		}
		if len(dom) != 6 || len(bx)%6 != 0 {
			return nil, fmt.Errorf("level %d has malformed domain or box list", l)
		}
		var boxes []amr.Box
		for i := 0; i < len(bx); i += 6 {
			boxes = append(boxes, intsBox(bx[i:i+6]))
		}
		domain := amr.NewProblemDomain(intsBox(dom), periodic)
		levels = append(levels, &amr.Level{
			Index:    l,
			Layout:   amr.NewDisjointBoxLayout(boxes, domain, 0),
			Dx:       dx,
			RefRatio: ratio,
		})
	}
	if ar.err != nil {
		return nil, ar.err
	}
	s.Hierarchy = amr.NewHierarchy(levels)
	for l, lev := range levels {
		ld := amr.NewLevelData(lev.Layout, nComp, s.Ghost, s.Names...)
		for bi := 0; bi < ld.NumBoxes(); bi++ {
			var (
				fab         = ld.FAB(bi)
				_, _, _, sc = fab.Strides()
			)
			for c, name := range s.Names {
				vn := varName(l, bi, name)
				r := f.Reader(vn, nil, nil)
				buf := r.Zero(sc)
				if _, err = r.Read(buf); err != nil {
					return nil, fmt.Errorf("reading %s: %w", vn, err)
				}
				vals, ok := buf.([]float64)
				if !ok || len(vals) != sc {
					return nil, fmt.Errorf("variable %s does not match box %v", vn, fab.Box())
				}
				copy(fab.Data()[c*sc:(c+1)*sc], vals)
			}
		}
		ld.MarkGhostsValid()
		s.Data = append(s.Data, ld)
	}
	return
}

// ReadFinalFile opens path and reads it with ReadFinal.
func ReadFinalFile(path string) (s *Snapshot, err error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open %s: %w", path, err)
	}
	defer file.Close()
	return ReadFinal(file)
}
