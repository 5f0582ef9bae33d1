package operator

import (
	"github.com/notargets/amrelliptic/amr"
)

const jacobiWeight = 0.5

// Relax runs iterations sweeps of the configured smoother on L(u) = rhs
// with homogeneous boundary and coarse-fine ghosts. Ghosts of u are stale
// on return.
func (op *VariableCoeffOp) Relax(u, rhs *amr.LevelData, iterations int) {
	op.checkGhosted(u, "solution")
	op.checkData(rhs, "right hand side")
	op.ResetLambda()
	for it := 0; it < iterations; it++ {
		switch op.Smoother {
		case LevelGSRB:
			op.levelGSRB(u, rhs)
		case LevelMultiColor:
			op.levelMultiColor(u, rhs)
		case LooseGSRB:
			op.looseGSRB(u, rhs)
		case OverlapGSRB:
			op.overlapGSRB(u, rhs)
		case LevelJacobi:
			op.levelJacobi(u, rhs)
		default:
			panic(ErrNotImplemented)
		}
	}
	u.MarkGhostsStale()
}

// PreCond approximates L^-1 residual: a diagonal scaling followed by
// PreCondSmoothIters relaxation passes.
func (op *VariableCoeffOp) PreCond(correction, residual *amr.LevelData) {
	op.checkGhosted(correction, "correction")
	op.checkData(residual, "residual")
	op.ResetLambda()
	op.Layout.ForEachBox(func(bi int) {
		var (
			cFab = correction.FAB(bi)
			rFab = residual.FAB(bi)
			lFab = op.lambda.FAB(bi)
		)
		for c := 0; c < op.NComp; c++ {
			op.Layout.Boxes[bi].ForEach(func(iv amr.IntVect) {
				cFab.Set(iv, c, lFab.Get(iv, c)*rFab.Get(iv, c))
			})
		}
	})
	correction.MarkGhostsStale()
	op.Relax(correction, residual, PreCondSmoothIters)
}

// updateCell applies u += lambda*(rhs - L(u)) at iv.
func (op *VariableCoeffOp) updateCell(bi int, u, rhs *amr.FArrayBox, iv amr.IntVect, c int) {
	var (
		b   = op.bCoef.Field()
		res = rhs.Get(iv, c) - op.lOfU(bi, u, op.aCoef.FAB(bi), b, iv, c)
		k   = u.Index(iv, c)
	)
	u.Data()[k] += op.lambda.FAB(bi).Get(iv, c) * res
}

// sweepRegion updates the cells of region selected by match.
func (op *VariableCoeffOp) sweepRegion(bi int, u, rhs *amr.LevelData, region amr.Box,
	match func(iv amr.IntVect) bool) {
	var (
		uFab = u.FAB(bi)
		rFab = rhs.FAB(bi)
	)
	for c := 0; c < op.NComp; c++ {
		region.ForEach(func(iv amr.IntVect) {
			if match(iv) {
				op.updateCell(bi, uFab, rFab, iv, c)
			}
		})
	}
}

func parity(n int) int { return n & 1 }

func redBlack(color int) func(iv amr.IntVect) bool {
	return func(iv amr.IntVect) bool { return parity(iv.Sum()) == color }
}

// octant colors by the parity of each index: color = pi + 2pj + 4pk.
func octant(color int) func(iv amr.IntVect) bool {
	return func(iv amr.IntVect) bool {
		return parity(iv[0])+2*parity(iv[1])+4*parity(iv[2]) == color
	}
}

// levelGSRB refills ghosts before each of the two colors.
func (op *VariableCoeffOp) levelGSRB(u, rhs *amr.LevelData) {
	for color := 0; color < 2; color++ {
		op.fillGhosts(u, nil, true)
		match := redBlack(color)
		op.Layout.ForEachBox(func(bi int) {
			op.sweepRegion(bi, u, rhs, op.Layout.Boxes[bi], match)
		})
		u.MarkGhostsStale()
	}
}

// levelMultiColor sweeps eight colors, refilling ghosts before each.
func (op *VariableCoeffOp) levelMultiColor(u, rhs *amr.LevelData) {
	for color := 0; color < 8; color++ {
		op.fillGhosts(u, nil, true)
		match := octant(color)
		op.Layout.ForEachBox(func(bi int) {
			op.sweepRegion(bi, u, rhs, op.Layout.Boxes[bi], match)
		})
		u.MarkGhostsStale()
	}
}

// looseGSRB fills ghosts once per sweep; the second color reads ghost
// values from before the first color's update.
func (op *VariableCoeffOp) looseGSRB(u, rhs *amr.LevelData) {
	op.fillGhosts(u, nil, true)
	for color := 0; color < 2; color++ {
		match := redBlack(color)
		op.Layout.ForEachBox(func(bi int) {
			op.sweepRegion(bi, u, rhs, op.Layout.Boxes[bi], match)
		})
	}
	u.MarkGhostsStale()
}

// overlapGSRB computes each color on box interiors, whose stencils never
// reach a ghost, while the exchange completes, then finishes the cells
// along the box faces. Results match levelGSRB.
func (op *VariableCoeffOp) overlapGSRB(u, rhs *amr.LevelData) {
	for color := 0; color < 2; color++ {
		match := redBlack(color)
		pending := u.Copier().Begin(u)
		op.fillLocalGhosts(u, nil, true)
		op.Layout.ForEachBox(func(bi int) {
			interior := op.Layout.Boxes[bi].Grow(-1)
			op.sweepRegion(bi, u, rhs, interior, match)
		})
		pending.Finish()
		op.Layout.ForEachBox(func(bi int) {
			var (
				valid    = op.Layout.Boxes[bi]
				interior = valid.Grow(-1)
			)
			op.sweepRegion(bi, u, rhs, valid, func(iv amr.IntVect) bool {
				return !interior.Contains(iv) && match(iv)
			})
		})
		u.MarkGhostsStale()
	}
}

// levelJacobi updates every cell from the same old values, damped by
// jacobiWeight.
func (op *VariableCoeffOp) levelJacobi(u, rhs *amr.LevelData) {
	if op.scratch == nil {
		op.scratch = amr.NewLevelData(op.Layout, op.NComp, 0)
	}
	op.fillGhosts(u, nil, true)
	op.applyStencil(op.scratch, u, rhs)
	op.Layout.ForEachBox(func(bi int) {
		var (
			uFab = u.FAB(bi)
			rFab = op.scratch.FAB(bi)
			lFab = op.lambda.FAB(bi)
		)
		for c := 0; c < op.NComp; c++ {
			op.Layout.Boxes[bi].ForEach(func(iv amr.IntVect) {
				k := uFab.Index(iv, c)
				uFab.Data()[k] += jacobiWeight * lFab.Get(iv, c) * rFab.Get(iv, c)
			})
		}
	})
	u.MarkGhostsStale()
}
