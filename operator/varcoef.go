package operator

import (
	"fmt"
	"log"
	"math"

	"github.com/notargets/amrelliptic/amr"
	"github.com/notargets/amrelliptic/boundary"
	"github.com/notargets/amrelliptic/cfinterp"
	"github.com/notargets/amrelliptic/coefficients"
)

// MGRefRatio is the coarsening factor between multigrid levels.
const MGRefRatio = 2

// PreCondSmoothIters is the number of relaxation passes in PreCond.
const PreCondSmoothIters = 2

type Params struct {
	Layout *amr.DisjointBoxLayout
	Dx     float64
	NComp  int
	// Ghost width of solution data created by the operator, at least 1
	Ghost    int
	BC       boundary.GhostFiller
	Smoother SmootherType
	// Next coarser AMR level, nil on level 0
	CoarseLayout *amr.DisjointBoxLayout
	RefToCoarse  int
	Verbose      bool
}

// VariableCoeffOp is the level operator for alpha*a*u - beta*div(b grad u)
// with cell-centered a and face-centered b, one independent equation per
// component.
type VariableCoeffOp struct {
	Params
	alpha, beta float64
	aCoef       *amr.LevelData
	bCoef       *coefficients.FaceCoef
	lambda      *amr.LevelData
	lambdaState LambdaState
	cf          *cfinterp.QuadCFInterp
	// Coarser solution used for inhomogeneous coarse-fine ghosts
	coarseSolution *amr.LevelData
	// Parts of each box covered by the next finer level
	covered [][]amr.Box
	scratch *amr.LevelData
	time    float64
}

var _ LevelOperator = (*VariableCoeffOp)(nil)

// NewVariableCoeffOp builds an operator with a = b = 1 and alpha = beta = 1.
func NewVariableCoeffOp(p Params) (op *VariableCoeffOp) {
	if p.Layout == nil || p.Dx <= 0 || p.NComp < 1 {
		panic(fmt.Errorf("invalid operator parameters: dx %g, nComp %d", p.Dx, p.NComp))
	}
	if p.Ghost < 1 {
		p.Ghost = 1
	}
	if p.BC == nil {
		p.BC = boundary.NewPeriodic()
	}
	op = &VariableCoeffOp{
		Params: p,
		alpha:  1,
		beta:   1,
		aCoef:  amr.NewLevelData(p.Layout, p.NComp, 0),
		lambda: amr.NewLevelData(p.Layout, p.NComp, 0),
	}
	op.aCoef.SetVal(1)
	b := amr.NewFluxData(p.Layout, p.NComp)
	b.SetVal(1)
	op.bCoef = coefficients.NewFaceCoef(b, p.Dx)
	op.covered = make([][]amr.Box, p.Layout.Size())
	op.defineCF()
	if p.Verbose {
		log.Printf("variable coefficient operator: %d boxes, %d cells, dx = %g, smoother %s, %d coarse-fine ghosts\n",
			p.Layout.Size(), p.Layout.NumCells(), p.Dx, p.Smoother.Print(), op.cf.CFIVS().NumCells())
	}
	return
}

func (op *VariableCoeffOp) defineCF() {
	op.cf = cfinterp.NewQuadCFInterp(op.Layout, op.CoarseLayout, op.RefToCoarse)
}

func (op *VariableCoeffOp) Dx() float64                      { return op.Params.Dx }
func (op *VariableCoeffOp) Alpha() float64                   { return op.alpha }
func (op *VariableCoeffOp) Beta() float64                    { return op.beta }
func (op *VariableCoeffOp) ACoef() *amr.LevelData            { return op.aCoef }
func (op *VariableCoeffOp) BCoef() *amr.FluxData             { return op.bCoef.Field() }
func (op *VariableCoeffOp) Lambda() *amr.LevelData           { return op.lambda }
func (op *VariableCoeffOp) LambdaState() LambdaState         { return op.lambdaState }
func (op *VariableCoeffOp) Time() float64                    { return op.time }
func (op *VariableCoeffOp) CFInterp() *cfinterp.QuadCFInterp { return op.cf }

// Covered returns, per box, the regions under the next finer level as of
// the last FinerOperatorChanged.
func (op *VariableCoeffOp) Covered() [][]amr.Box { return op.covered }

func (op *VariableCoeffOp) Create() *amr.LevelData {
	return amr.NewLevelData(op.Layout, op.NComp, op.Ghost)
}

// Norm is taken over valid cells and all components.
func (op *VariableCoeffOp) Norm(ld *amr.LevelData, p int) float64 {
	return ld.Norm(p, -1, nil)
}

func (op *VariableCoeffOp) checkData(ld *amr.LevelData, name string) {
	if ld.NComp() != op.NComp {
		panic(fmt.Errorf("%s has %d components, operator has %d", name, ld.NComp(), op.NComp))
	}
	if !ld.Layout().SameBoxes(op.Layout) {
		panic(fmt.Errorf("%s is not defined on the operator layout", name))
	}
}

func (op *VariableCoeffOp) checkGhosted(ld *amr.LevelData, name string) {
	op.checkData(ld, name)
	if ld.Ghost() < 1 {
		panic(fmt.Errorf("%s needs at least one ghost cell", name))
	}
}

func (op *VariableCoeffOp) SetAlphaAndBeta(alpha, beta float64) {
	op.alpha, op.beta = alpha, beta
	op.lambdaState = LambdaDirty
}

// SetCoefs replaces a and b by reference and sets the scalars. Lambda is
// recomputed lazily.
func (op *VariableCoeffOp) SetCoefs(a *amr.LevelData, b *amr.FluxData, alpha, beta float64) {
	op.checkData(a, "a coefficient")
	if b.NComp() != op.NComp || !b.Layout().SameBoxes(op.Layout) {
		panic(fmt.Errorf("b coefficient has %d components on a different layout, operator has %d",
			b.NComp(), op.NComp))
	}
	op.aCoef = a
	op.bCoef.Replace(b)
	op.SetAlphaAndBeta(alpha, beta)
}

// SetBCoefInterpolator attaches the time source for b; nil detaches it.
func (op *VariableCoeffOp) SetBCoefInterpolator(src coefficients.Interpolator) {
	op.bCoef.Attach(src)
}

func (op *VariableCoeffOp) BCoefInterpolator() coefficients.Interpolator {
	return op.bCoef.Source()
}

// SetTime records t and, when a b source is attached, re-evaluates b.
func (op *VariableCoeffOp) SetTime(t float64) {
	op.time = t
	if op.bCoef.Refresh(t) {
		op.lambdaState = LambdaDirty
	}
}

// ResetLambda recomputes lambda if any coefficient changed since the
// last computation.
func (op *VariableCoeffOp) ResetLambda() {
	if op.lambdaState == LambdaDirty {
		op.ComputeLambda()
	}
}

// ComputeLambda sets lambda = 1/diag(L) on every valid cell. It panics if
// the diagonal vanishes anywhere.
func (op *VariableCoeffOp) ComputeLambda() {
	var (
		b     = op.bCoef.Field()
		scale = op.beta / (op.Params.Dx * op.Params.Dx)
	)
	op.Layout.ForEachBox(func(bi int) {
		var (
			lam   = op.lambda.FAB(bi)
			a     = op.aCoef.FAB(bi)
			valid = op.Layout.Boxes[bi]
		)
		for c := 0; c < op.NComp; c++ {
			valid.ForEach(func(iv amr.IntVect) {
				var bSum float64
				for d := 0; d < amr.SpaceDim; d++ {
					f := b.Face(bi, d)
					k := f.Index(iv, c)
					bSum += f.Data()[k] + f.Data()[k+f.Stride(d)]
				}
				diag := op.alpha*a.Get(iv, c) + scale*bSum
				if diag == 0 || math.IsNaN(diag) {
					panic(fmt.Errorf("operator diagonal is %g at %v, component %d", diag, iv, c))
				}
				lam.Set(iv, c, 1./diag)
			})
		}
	})
	op.lambdaState = LambdaClean
}

// SetCoarseSolution attaches the coarser level's solution used for
// coarse-fine ghosts when homogeneous is false. nil detaches it.
func (op *VariableCoeffOp) SetCoarseSolution(uCoarse *amr.LevelData) {
	if uCoarse != nil && uCoarse.NComp() != op.NComp {
		panic(fmt.Errorf("coarse solution has %d components, operator has %d", uCoarse.NComp(), op.NComp))
	}
	op.coarseSolution = uCoarse
}

// fillGhosts exchanges u, applies the physical boundary condition and fills
// coarse-fine ghosts from uCoarse, or as if the coarse level were zero
// when uCoarse is nil.
func (op *VariableCoeffOp) fillGhosts(u, uCoarse *amr.LevelData, homogeneous bool) {
	u.Exchange()
	op.fillLocalGhosts(u, uCoarse, homogeneous)
	u.MarkGhostsValid()
}

// FillGhosts fills every ghost layer of u that exchange and the boundary
// condition reach, and the coarse-fine ghosts from uCoarse.
func (op *VariableCoeffOp) FillGhosts(u, uCoarse *amr.LevelData, homogeneous bool) {
	op.checkGhosted(u, "solution")
	op.fillGhosts(u, uCoarse, homogeneous)
}

// fillLocalGhosts fills the ghosts that need no data from other boxes. It
// reads only valid cells.
func (op *VariableCoeffOp) fillLocalGhosts(u, uCoarse *amr.LevelData, homogeneous bool) {
	domain := op.Layout.Domain
	op.Layout.ForEachBox(func(bi int) {
		op.BC.FillGhosts(u.FAB(bi), op.Layout.Boxes[bi], domain, op.Params.Dx, homogeneous)
	})
	if uCoarse != nil {
		op.cf.CoarseFineInterp(u, uCoarse)
	} else {
		op.cf.HomogeneousCFInterp(u)
	}
}

func (op *VariableCoeffOp) coarseFor(homogeneous bool) *amr.LevelData {
	if homogeneous {
		return nil
	}
	return op.coarseSolution
}

// lOfU evaluates the stencil at iv; the face neighbors of iv must hold
// current data.
func (op *VariableCoeffOp) lOfU(bi int, u, a *amr.FArrayBox, b *amr.FluxData, iv amr.IntVect, c int) float64 {
	var (
		ud  = u.Data()
		ui  = u.Index(iv, c)
		u0  = ud[ui]
		lap float64
	)
	for d := 0; d < amr.SpaceDim; d++ {
		var (
			f   = b.Face(bi, d)
			fd  = f.Data()
			k   = f.Index(iv, c)
			s   = u.Stride(d)
			bLo = fd[k]
			bHi = fd[k+f.Stride(d)]
		)
		lap += bHi*(ud[ui+s]-u0) - bLo*(u0-ud[ui-s])
	}
	return op.alpha*a.Get(iv, c)*u0 - op.beta*lap/(op.Params.Dx*op.Params.Dx)
}

// applyStencil sets out = L(u), or rhs - L(u) when rhs is non-nil, on
// valid cells using whatever ghosts u holds.
func (op *VariableCoeffOp) applyStencil(out, u, rhs *amr.LevelData) {
	b := op.bCoef.Field()
	op.Layout.ForEachBox(func(bi int) {
		var (
			valid = op.Layout.Boxes[bi]
			uFab  = u.FAB(bi)
			aFab  = op.aCoef.FAB(bi)
			oFab  = out.FAB(bi)
		)
		for c := 0; c < op.NComp; c++ {
			valid.ForEach(func(iv amr.IntVect) {
				l := op.lOfU(bi, uFab, aFab, b, iv, c)
				if rhs != nil {
					l = rhs.FAB(bi).Get(iv, c) - l
				}
				oFab.Set(iv, c, l)
			})
		}
	})
	out.MarkGhostsStale()
}

// Residual sets out = rhs - L(u) on valid cells. Ghosts of u are filled
// first: physical ghosts homogeneous when asked, coarse-fine ghosts from
// the attached coarse solution unless homogeneous.
func (op *VariableCoeffOp) Residual(out, u, rhs *amr.LevelData, homogeneous bool) {
	op.checkData(out, "residual")
	op.checkGhosted(u, "solution")
	op.checkData(rhs, "right hand side")
	op.fillGhosts(u, op.coarseFor(homogeneous), homogeneous)
	op.applyStencil(out, u, rhs)
}

func (op *VariableCoeffOp) ApplyOp(out, u *amr.LevelData, homogeneous bool) {
	op.checkData(out, "operator result")
	op.checkGhosted(u, "solution")
	op.fillGhosts(u, op.coarseFor(homogeneous), homogeneous)
	op.applyStencil(out, u, nil)
}

// ApplyOpNoBoundary evaluates L(u) with the ghosts u already holds.
func (op *VariableCoeffOp) ApplyOpNoBoundary(out, u *amr.LevelData) {
	op.checkData(out, "operator result")
	op.checkGhosted(u, "solution")
	op.applyStencil(out, u, nil)
}

// AMRResidual sets out = rhs - L(u) with coarse-fine ghosts interpolated
// from uCoarse, which may be nil on level 0. homogeneous applies to the
// physical boundary only.
func (op *VariableCoeffOp) AMRResidual(out, u, uCoarse, rhs *amr.LevelData, homogeneous bool) {
	op.checkData(out, "residual")
	op.checkGhosted(u, "solution")
	op.checkData(rhs, "right hand side")
	op.fillGhosts(u, uCoarse, homogeneous)
	op.applyStencil(out, u, rhs)
}

// AMROperator sets out = L(u) with coarse-fine ghosts from uCoarse.
func (op *VariableCoeffOp) AMROperator(out, u, uCoarse *amr.LevelData, homogeneous bool) {
	op.checkData(out, "operator result")
	op.checkGhosted(u, "solution")
	op.fillGhosts(u, uCoarse, homogeneous)
	op.applyStencil(out, u, nil)
}

// Reflux is not supported: this discretization makes no flux-register
// correction across refinement boundaries.
func (op *VariableCoeffOp) Reflux(_, _, _ *amr.LevelData, _ LevelOperator) {
	panic(fmt.Errorf("reflux: %w", ErrNotImplemented))
}

func (op *VariableCoeffOp) GetFlux(_ *amr.FluxData, _ *amr.LevelData) {
	panic(fmt.Errorf("getFlux: %w", ErrNotImplemented))
}
