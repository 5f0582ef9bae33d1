package amr

import (
	"fmt"

	"github.com/exascience/pargo/parallel"
)

func checkRatio(r int) {
	if r < 2 {
		panic(fmt.Errorf("refinement ratio must be at least 2, have %d", r))
	}
}

// AverageDown replaces every coarse cell covered by the fine level with the
// mean of its r^3 fine children.
func AverageDown(coarse, fine *LevelData, r int) {
	checkRatio(r)
	if coarse.nComp != fine.nComp {
		panic(fmt.Errorf("component mismatch in average: %d != %d", coarse.nComp, fine.nComp))
	}
	var (
		cl     = coarse.layout
		fl     = fine.layout
		scale  = 1. / float64(r*r*r)
		offset Box
	)
	offset = NewBox(IntVect{}, Unit().Scale(r-1))
	parallel.Range(0, cl.Size(), 0, func(low, high int) {
		for cbi := low; cbi < high; cbi++ {
			cfab := coarse.fabs[cbi]
			for fbi, fb := range fl.Boxes {
				region := cl.Boxes[cbi].Intersect(fb.Coarsen(r))
				if region.IsEmpty() {
					continue
				}
				ffab := fine.fabs[fbi]
				for c := 0; c < coarse.nComp; c++ {
					region.ForEach(func(civ IntVect) {
						var (
							sum  float64
							base = civ.Scale(r)
						)
						offset.ForEach(func(o IntVect) {
							sum += ffab.Get(base.Add(o), c)
						})
						cfab.Set(civ, c, sum*scale)
					})
				}
			}
		}
	})
	coarse.ghostsValid = false
}

// AverageDownFaces replaces covered coarse faces with the mean of the r^2
// fine faces sharing them.
func AverageDownFaces(coarse, fine *FluxData, r int) {
	checkRatio(r)
	if coarse.nComp != fine.nComp {
		panic(fmt.Errorf("component mismatch in face average: %d != %d", coarse.nComp, fine.nComp))
	}
	var (
		cl    = coarse.layout
		fl    = fine.layout
		scale = 1. / float64(r*r)
	)
	parallel.Range(0, cl.Size(), 0, func(low, high int) {
		for cbi := low; cbi < high; cbi++ {
			for fbi, fb := range fl.Boxes {
				region := cl.Boxes[cbi].Intersect(fb.Coarsen(r))
				if region.IsEmpty() {
					continue
				}
				for d := 0; d < SpaceDim; d++ {
					var (
						cfab   = coarse.faces[cbi][d]
						ffab   = fine.faces[fbi][d]
						offset = NewBox(IntVect{}, Unit().Scale(r-1))
					)
					offset.Hi[d] = 0
					for c := 0; c < coarse.nComp; c++ {
						region.SurroundingNodes(d).ForEach(func(civ IntVect) {
							var (
								sum  float64
								base = civ.Scale(r)
							)
							offset.ForEach(func(o IntVect) {
								sum += ffab.Get(base.Add(o), c)
							})
							cfab.Set(civ, c, sum*scale)
						})
					}
				}
			}
		}
	})
}

// ProlongConstantAdd adds to each fine valid cell the value of its coarse
// parent. Fine cells without a parent on the coarse layout are skipped.
func ProlongConstantAdd(fine, coarse *LevelData, r int) {
	checkRatio(r)
	if coarse.nComp != fine.nComp {
		panic(fmt.Errorf("component mismatch in prolong: %d != %d", coarse.nComp, fine.nComp))
	}
	var (
		fl = fine.layout
		cl = coarse.layout
	)
	fl.ForEachBox(func(fbi int) {
		var (
			fb   = fl.Boxes[fbi]
			ffab = fine.fabs[fbi]
		)
		for cbi, cb := range cl.Boxes {
			region := fb.Intersect(cb.Refine(r))
			if region.IsEmpty() {
				continue
			}
			cfab := coarse.fabs[cbi]
			for c := 0; c < fine.nComp; c++ {
				region.ForEach(func(fiv IntVect) {
					idx := ffab.Index(fiv, c)
					ffab.Data()[idx] += cfab.Get(fiv.Coarsen(r), c)
				})
			}
		}
	})
	fine.ghostsValid = false
}
