package multigrid

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/amrelliptic/amr"
	"github.com/notargets/amrelliptic/boundary"
	"github.com/notargets/amrelliptic/operator"
)

func newLevelOp(n, maxBox int, length float64, periodic bool, bc boundary.GhostFiller) *operator.VariableCoeffOp {
	domain := amr.NewProblemDomain(amr.NewBox(amr.IntVect{}, amr.Unit().Scale(n-1)),
		[amr.SpaceDim]bool{periodic, periodic, periodic})
	return operator.NewVariableCoeffOp(operator.Params{
		Layout: amr.NewDisjointBoxLayout(amr.SplitDomain(domain.Box, maxBox), domain, 4),
		Dx:     length / float64(n),
		NComp:  1,
		BC:     bc,
	})
}

func singleLevel(op *operator.VariableCoeffOp) *amr.Hierarchy {
	return amr.NewHierarchy([]*amr.Level{{Index: 0, Layout: op.Layout, Dx: op.Dx()}})
}

func fillValid(ld *amr.LevelData, dx float64, f func(x amr.RealVect) float64) {
	for bi := 0; bi < ld.NumBoxes(); bi++ {
		fab := ld.FAB(bi)
		ld.ValidBox(bi).ForEach(func(iv amr.IntVect) {
			fab.Set(iv, 0, f(amr.CellCenter(iv, dx)))
		})
	}
	ld.MarkGhostsStale()
}

func TestColorCounts(t *testing.T) {
	m := colorCounts(amr.NewBox(amr.IntVect{}, amr.IntVect{15, 5, 2}))
	assert.Equal(t, amr.IntVect{8, 6, 3}, m)
	m = colorCounts(amr.NewBox(amr.IntVect{}, amr.IntVect{9, 6, 19}))
	assert.Equal(t, amr.IntVect{5, 7, 5}, m)
}

func TestAssembleOperator(t *testing.T) {
	cases := []struct {
		name string
		op   *operator.VariableCoeffOp
	}{
		{"periodic", newLevelOp(4, 2, 1, true, nil)},
		{"dirichlet", newLevelOp(6, 3, 1, false, boundary.NewUniform(boundary.Dirichlet, 2))},
		{"neumann", newLevelOp(6, 4, 1, false, boundary.NewUniform(boundary.Neumann, 1))},
	}
	for _, tc := range cases {
		op := tc.op
		op.SetAlphaAndBeta(0.5, 1.5)
		rng := rand.New(rand.NewSource(3))
		for bi := 0; bi < op.Layout.Size(); bi++ {
			f := op.BCoef().Face(bi, 1)
			for i := range f.Data() {
				f.Data()[i] = 1 + rng.Float64()
			}
		}
		A := AssembleOperator(op, false)
		require.Len(t, A, 1, tc.name)
		var (
			u   = op.Create()
			out = op.Create()
			ci  = newCellIndex(op.Layout)
			x   = mat.NewVecDense(ci.n, nil)
			y   = mat.NewVecDense(ci.n, nil)
		)
		for bi, b := range op.Layout.Boxes {
			b.ForEach(func(iv amr.IntVect) {
				v := rng.Float64() - 0.5
				u.FAB(bi).Set(iv, 0, v)
				x.SetVec(ci.global(bi, iv), v)
			})
		}
		op.ApplyOp(out, u, true)
		A[0].MulVec(y, x)
		for bi, b := range op.Layout.Boxes {
			b.ForEach(func(iv amr.IntVect) {
				assert.InDelta(t, out.FAB(bi).Get(iv, 0), y.AtVec(ci.global(bi, iv)), 1.e-10, tc.name)
			})
		}
		// At most the 7-point stencil per row
		assert.LessOrEqual(t, len(A[0].Data()), 7*ci.n, tc.name)
		assert.GreaterOrEqual(t, len(A[0].Data()), ci.n, tc.name)
	}
}

func TestBiCGStab(t *testing.T) {
	op := newLevelOp(6, 6, 1, false, boundary.NewUniform(boundary.Dirichlet, 0))
	A := AssembleOperator(op, true)[0]
	n, _ := A.Dims()
	var (
		x = mat.NewVecDense(n, nil)
		b = mat.NewVecDense(n, nil)
		r = mat.NewVecDense(n, nil)
	)
	for i := 0; i < n; i++ {
		b.SetVec(i, math.Sin(float64(i)))
	}
	iters, rel, err := solveBiCGStab(A, x, b, 1.e-12, 200)
	require.NoError(t, err)
	assert.Greater(t, iters, 0)
	assert.LessOrEqual(t, rel, 1.e-12)
	A.MulVec(r, x)
	r.SubVec(b, r)
	assert.Less(t, mat.Norm(r, 2)/mat.Norm(b, 2), 1.e-10)

	// Zero right hand side gives the zero solution at once
	x.SetVec(0, 1)
	iters, _, err = solveBiCGStab(A, x, mat.NewVecDense(n, nil), 1.e-12, 200)
	require.NoError(t, err)
	assert.Equal(t, 0, iters)
	assert.Equal(t, 0., mat.Norm(x, 2))
}

// sineSolve is alpha = 1, beta = 1, u = sin(x)cos(2y) on [0,2pi)^3.
func sineSolve(t *testing.T, bottom BottomSolverType, smoother operator.SmootherType) (Stats, float64) {
	op := newLevelOp(16, 8, 2*math.Pi, true, nil)
	op.Smoother = smoother
	exact := func(x amr.RealVect) float64 { return math.Sin(x[0]) * math.Cos(2*x[1]) }
	var (
		phi = op.Create()
		rhs = op.Create()
		ex  = op.Create()
	)
	fillValid(rhs, op.Dx(), func(x amr.RealVect) float64 { return 6 * exact(x) })
	fillValid(ex, op.Dx(), exact)
	cfg := DefaultConfig()
	cfg.Tolerance = 1.e-9
	cfg.Bottom = bottom
	s := NewSolver(singleLevel(op), []*operator.VariableCoeffOp{op}, cfg)
	assert.Equal(t, 4, s.NumMGLevels())
	st, err := s.Solve([]*amr.LevelData{phi}, []*amr.LevelData{rhs})
	require.NoError(t, err)
	ex.AXPY(-1, phi)
	return st, ex.Norm(0, 0, nil)
}

func TestSingleLevelSolve(t *testing.T) {
	st, errNorm := sineSolve(t, BiCGStab, operator.LevelGSRB)
	assert.Less(t, st.Iterations, 15)
	assert.LessOrEqual(t, st.FinalResidual, 1.e-9*st.InitialResidual)
	assert.Len(t, st.ResidualHistory, st.Iterations+1)
	for i := 1; i < len(st.ResidualHistory); i++ {
		assert.Less(t, st.ResidualHistory[i], st.ResidualHistory[i-1])
	}
	// Discretization error of the second order stencil at 16 cells
	assert.Less(t, errNorm, 0.1)

	for _, bt := range []BottomSolverType{RelaxBottom, BiCGStab} {
		for _, sm := range []operator.SmootherType{operator.LevelMultiColor, operator.OverlapGSRB} {
			st, errNorm = sineSolve(t, bt, sm)
			assert.Less(t, errNorm, 0.1, bt.Print()+" "+sm.Print())
			assert.Less(t, st.Iterations, 20)
		}
	}
}

func TestZeroResidual(t *testing.T) {
	op := newLevelOp(8, 8, 1, true, nil)
	s := NewSolver(singleLevel(op), []*operator.VariableCoeffOp{op}, DefaultConfig())
	st, err := s.Solve([]*amr.LevelData{op.Create()}, []*amr.LevelData{op.Create()})
	require.NoError(t, err)
	assert.Equal(t, 0, st.Iterations)
	assert.Equal(t, 0., st.InitialResidual)
}

func TestNotConverged(t *testing.T) {
	op := newLevelOp(16, 8, 1, false, boundary.NewUniform(boundary.Dirichlet, 1))
	op.SetAlphaAndBeta(0, 1)
	cfg := DefaultConfig()
	cfg.MaxIterations = 1
	cfg.Tolerance = 1.e-14
	s := NewSolver(singleLevel(op), []*operator.VariableCoeffOp{op}, cfg)
	rhs := op.Create()
	rhs.SetVal(1)
	st, err := s.Solve([]*amr.LevelData{op.Create()}, []*amr.LevelData{rhs})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotConverged))
	assert.Equal(t, 1, st.Iterations)
	assert.Less(t, st.FinalResidual, st.InitialResidual)
}

func newTwoLevel(t *testing.T) (h *amr.Hierarchy, ops []*operator.VariableCoeffOp) {
	domain := amr.NewProblemDomain(amr.NewBox(amr.IntVect{}, amr.Unit().Scale(7)), [amr.SpaceDim]bool{})
	bc := boundary.NewUniform(boundary.Dirichlet, 0)
	crse := operator.NewVariableCoeffOp(operator.Params{
		Layout: amr.NewDisjointBoxLayout(amr.SplitDomain(domain.Box, 4), domain, 2),
		Dx:     1. / 8, NComp: 1, BC: bc,
	})
	fineLayout := amr.NewDisjointBoxLayout(amr.SplitDomain(amr.NewBox(amr.IntVect{4, 4, 4}, amr.IntVect{11, 11, 11}), 4),
		domain.Refine(2), 2)
	fine := operator.NewVariableCoeffOp(operator.Params{
		Layout: fineLayout, Dx: 1. / 16, NComp: 1, BC: bc,
		CoarseLayout: crse.Layout, RefToCoarse: 2,
	})
	h = amr.NewHierarchy([]*amr.Level{
		{Index: 0, Layout: crse.Layout, Dx: crse.Dx(), RefRatio: 2},
		{Index: 1, Layout: fine.Layout, Dx: fine.Dx()},
	})
	ops = []*operator.VariableCoeffOp{crse, fine}
	for _, op := range ops {
		op.SetAlphaAndBeta(0, 1)
	}
	return
}

func TestTwoLevelSolve(t *testing.T) {
	h, ops := newTwoLevel(t)
	cfg := DefaultConfig()
	cfg.Tolerance = 1.e-8
	cfg.MaxIterations = 40
	s := NewSolver(h, ops, cfg)
	assert.Equal(t, 3, s.NumMGLevels())
	var phi, rhs []*amr.LevelData
	for _, op := range ops {
		p, r := op.Create(), op.Create()
		fillValid(r, op.Dx(), func(x amr.RealVect) float64 {
			return math.Exp(-20 * ((x[0]-0.5)*(x[0]-0.5) + (x[1]-0.5)*(x[1]-0.5) + (x[2]-0.5)*(x[2]-0.5)))
		})
		phi, rhs = append(phi, p), append(rhs, r)
	}
	st, err := s.Solve(phi, rhs)
	require.NoError(t, err)
	assert.LessOrEqual(t, st.FinalResidual, 1.e-8*st.InitialResidual)
	assert.Len(t, ops[0].Covered()[0], 1)

	// The coarse solution under the fine level is the fine average
	avg := ops[0].Create()
	avg.CopyFrom(phi[0])
	amr.AverageDown(avg, phi[1], 2)
	avg.AXPY(-1, phi[0])
	assert.InDelta(t, 0., avg.Norm(0, 0, nil), 1.e-14)

	// The solution of -lap u = positive source with zero boundary values is positive
	assert.Greater(t, phi[1].Norm(0, 0, nil), 0.)
	for bi := 0; bi < phi[1].NumBoxes(); bi++ {
		phi[1].ValidBox(bi).ForEach(func(iv amr.IntVect) {
			assert.Greater(t, phi[1].FAB(bi).Get(iv, 0), 0.)
		})
	}
}

func TestSolverPreconditions(t *testing.T) {
	h, ops := newTwoLevel(t)
	assert.Panics(t, func() { NewSolver(h, ops[:1], DefaultConfig()) })
	s := NewSolver(h, ops, DefaultConfig())
	assert.Panics(t, func() { _, _ = s.Solve([]*amr.LevelData{ops[0].Create()}, nil) })
}

func TestBottomNames(t *testing.T) {
	assert.Equal(t, BiCGStab, BottomNames["bicgstab"])
	assert.Equal(t, RelaxBottom, BottomNames["relax"])
	assert.Equal(t, "Relaxation", RelaxBottom.Print())
	assert.Equal(t, "Unknown", BottomSolverType(9).Print())
	assert.Equal(t, BiCGStab, NewBottomSolverType(""))
	assert.Equal(t, RelaxBottom, NewBottomSolverType(" Relax "))
	assert.Panics(t, func() { NewBottomSolverType("cg") })
}
