// Package coefficients supplies the face-centered coefficient b of the
// elliptic operator as a function of solve time.
package coefficients

import (
	"fmt"
	"sort"
	"sync"

	"github.com/notargets/amrelliptic/amr"
)

// Interpolator writes b at time t into dst, whose faces sit on a grid of
// spacing dx. Evaluate must depend only on t and data fixed at
// construction.
type Interpolator interface {
	NumComps() int
	Evaluate(t float64, dst *amr.FluxData, dx float64)
}

func checkDst(src Interpolator, dst *amr.FluxData) {
	if dst.NComp() != src.NumComps() {
		panic(fmt.Errorf("coefficient source has %d components, destination %d",
			src.NumComps(), dst.NComp()))
	}
}

// FunctionInterpolator evaluates an analytic b(x, t) at face centers.
type FunctionInterpolator struct {
	NComp int
	F     func(x amr.RealVect, t float64, comp int) float64
}

func NewFunctionInterpolator(nComp int, f func(x amr.RealVect, t float64, comp int) float64) *FunctionInterpolator {
	return &FunctionInterpolator{NComp: nComp, F: f}
}

func (fi *FunctionInterpolator) NumComps() int { return fi.NComp }

func (fi *FunctionInterpolator) Evaluate(t float64, dst *amr.FluxData, dx float64) {
	checkDst(fi, dst)
	dst.Layout().ForEachBox(func(bi int) {
		for d := 0; d < amr.SpaceDim; d++ {
			fab := dst.Face(bi, d)
			for c := 0; c < fi.NComp; c++ {
				fab.Box().ForEach(func(iv amr.IntVect) {
					fab.Set(iv, c, fi.F(amr.FaceCenter(iv, d, dx), t, c))
				})
			}
		}
	})
}

// ConstantInterpolator is b independent of space and time, one value per
// component.
type ConstantInterpolator struct {
	Values []float64
}

func NewConstantInterpolator(values ...float64) *ConstantInterpolator {
	return &ConstantInterpolator{Values: values}
}

func (ci *ConstantInterpolator) NumComps() int { return len(ci.Values) }

func (ci *ConstantInterpolator) Evaluate(_ float64, dst *amr.FluxData, _ float64) {
	checkDst(ci, dst)
	dst.Layout().ForEachBox(func(bi int) {
		for d := 0; d < amr.SpaceDim; d++ {
			fab := dst.Face(bi, d)
			for c, v := range ci.Values {
				fab.SetValRegion(v, fab.Box(), c)
			}
		}
	})
}

type snapshot struct {
	time float64
	data *amr.FluxData
}

// SnapshotInterpolator is piecewise linear in time between stored b
// fields and constant beyond the first and last snapshot. Snapshots are
// held by reference and must not be modified after they are added.
type SnapshotInterpolator struct {
	nComp     int
	layout    *amr.DisjointBoxLayout
	snapshots []snapshot
}

func NewSnapshotInterpolator(layout *amr.DisjointBoxLayout, nComp int) *SnapshotInterpolator {
	return &SnapshotInterpolator{nComp: nComp, layout: layout}
}

func (si *SnapshotInterpolator) NumComps() int { return si.nComp }

func (si *SnapshotInterpolator) NumSnapshots() int { return len(si.snapshots) }

// Add stores b at time t, keeping snapshots ordered in time. A second
// snapshot at an existing time replaces the first.
func (si *SnapshotInterpolator) Add(t float64, data *amr.FluxData) {
	if data.NComp() != si.nComp || !data.Layout().SameBoxes(si.layout) {
		panic(fmt.Errorf("snapshot at t=%g does not match the interpolator layout", t))
	}
	k := sort.Search(len(si.snapshots), func(i int) bool { return si.snapshots[i].time >= t })
	if k < len(si.snapshots) && si.snapshots[k].time == t {
		si.snapshots[k].data = data
		return
	}
	si.snapshots = append(si.snapshots, snapshot{})
	copy(si.snapshots[k+1:], si.snapshots[k:])
	si.snapshots[k] = snapshot{time: t, data: data}
}

func (si *SnapshotInterpolator) Evaluate(t float64, dst *amr.FluxData, _ float64) {
	checkDst(si, dst)
	n := len(si.snapshots)
	if n == 0 {
		panic(fmt.Errorf("snapshot interpolator evaluated with no snapshots"))
	}
	switch {
	case t <= si.snapshots[0].time:
		dst.CopyFrom(si.snapshots[0].data)
	case t >= si.snapshots[n-1].time:
		dst.CopyFrom(si.snapshots[n-1].data)
	default:
		k := sort.Search(n, func(i int) bool { return si.snapshots[i].time > t })
		var (
			s0, s1 = si.snapshots[k-1], si.snapshots[k]
			w      = (t - s0.time) / (s1.time - s0.time)
		)
		dst.Combine(s0.data, s1.data, 1-w, w)
	}
}

// CoarsenedInterpolator evaluates a source on a finer layout and
// face-averages the result onto the destination.
type CoarsenedInterpolator struct {
	Fine       Interpolator
	FineLayout *amr.DisjointBoxLayout
	Ratio      int

	mu      sync.Mutex
	scratch *amr.FluxData
}

func NewCoarsenedInterpolator(fine Interpolator, fineLayout *amr.DisjointBoxLayout, ratio int) *CoarsenedInterpolator {
	return &CoarsenedInterpolator{Fine: fine, FineLayout: fineLayout, Ratio: ratio}
}

func (ci *CoarsenedInterpolator) NumComps() int { return ci.Fine.NumComps() }

func (ci *CoarsenedInterpolator) Evaluate(t float64, dst *amr.FluxData, dx float64) {
	checkDst(ci, dst)
	ci.mu.Lock()
	defer ci.mu.Unlock()
	if ci.scratch == nil {
		ci.scratch = amr.NewFluxData(ci.FineLayout, ci.Fine.NumComps())
	}
	ci.Fine.Evaluate(t, ci.scratch, dx/float64(ci.Ratio))
	amr.AverageDownFaces(dst, ci.scratch, ci.Ratio)
}
