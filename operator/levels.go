package operator

import (
	"fmt"
	"log"

	"github.com/notargets/amrelliptic/amr"
	"github.com/notargets/amrelliptic/coefficients"
)

// RestrictResidual sets coarseRes to the volume average of the
// homogeneous fine residual rhs - L(u) over each coarse cell. coarseRes
// must live on the layout coarsened by MGRefRatio.
func (op *VariableCoeffOp) RestrictResidual(coarseRes, fineSolution, fineRhs *amr.LevelData) {
	if coarseRes.NComp() != op.NComp {
		panic(fmt.Errorf("coarse residual has %d components, operator has %d", coarseRes.NComp(), op.NComp))
	}
	if !op.Layout.Coarsenable(MGRefRatio) || !coarseRes.Layout().SameBoxes(op.Layout.Coarsen(MGRefRatio)) {
		panic(fmt.Errorf("coarse residual is not defined on the operator layout coarsened by %d", MGRefRatio))
	}
	if op.scratch == nil {
		op.scratch = amr.NewLevelData(op.Layout, op.NComp, 0)
	}
	op.Residual(op.scratch, fineSolution, fineRhs, true)
	amr.AverageDown(coarseRes, op.scratch, MGRefRatio)
}

// ProlongIncrement adds the piecewise-constant interpolant of the coarse
// correction to the fine correction.
func (op *VariableCoeffOp) ProlongIncrement(fineCorrection, coarseCorrection *amr.LevelData) {
	op.checkData(fineCorrection, "fine correction")
	amr.ProlongConstantAdd(fineCorrection, coarseCorrection, MGRefRatio)
}

// CanCoarsen reports whether a multigrid child can be built: the layout
// is coarsenable by MGRefRatio and the level has no coarse-fine interface.
func (op *VariableCoeffOp) CanCoarsen() bool {
	return op.cf.IsEmpty() && op.Layout.Coarsenable(MGRefRatio)
}

// Coarsen builds the multigrid child operator on the layout coarsened by
// MGRefRatio. The child gets averaged a, face-averaged b, the same
// scalars, time and boundary condition, and a b source that averages the
// parent's source.
func (op *VariableCoeffOp) Coarsen() (child *VariableCoeffOp) {
	if !op.CanCoarsen() {
		panic(fmt.Errorf("operator on %d boxes cannot be coarsened by %d", op.Layout.Size(), MGRefRatio))
	}
	p := op.Params
	p.Layout = op.Layout.Coarsen(MGRefRatio)
	p.Dx = op.Params.Dx * MGRefRatio
	p.CoarseLayout, p.RefToCoarse = nil, 0
	p.Verbose = false
	child = NewVariableCoeffOp(p)
	amr.AverageDown(child.aCoef, op.aCoef, MGRefRatio)
	amr.AverageDownFaces(child.bCoef.Field(), op.bCoef.Field(), MGRefRatio)
	if src := op.bCoef.Source(); src != nil {
		child.bCoef.Attach(coefficients.NewCoarsenedInterpolator(src, op.Layout, MGRefRatio))
	}
	child.alpha, child.beta = op.alpha, op.beta
	child.time = op.time
	child.lambdaState = LambdaDirty
	if op.Verbose {
		log.Printf("coarsened operator to %d cells, dx = %g\n", p.Layout.NumCells(), p.Dx)
	}
	return
}

// FinerOperatorChanged replaces a and b under the finer level with averages
// of the finer operator's coefficients and rebuilds the coarse-fine state.
func (op *VariableCoeffOp) FinerOperatorChanged(finer LevelOperator, refRatio int) {
	fop, ok := finer.(*VariableCoeffOp)
	if !ok {
		panic(fmt.Errorf("finer operator of type %T is not a variable coefficient operator", finer))
	}
	if fop.NComp != op.NComp {
		panic(fmt.Errorf("finer operator has %d components, operator has %d", fop.NComp, op.NComp))
	}
	amr.AverageDown(op.aCoef, fop.aCoef, refRatio)
	amr.AverageDownFaces(op.bCoef.Field(), fop.bCoef.Field(), refRatio)
	op.covered = op.Layout.CoveredRegions(fop.Layout, refRatio)
	op.lambdaState = LambdaDirty
	op.defineCF()
}
