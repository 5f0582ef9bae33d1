// Package multigrid drives the level operators of a refined hierarchy
// with AMR V-cycles: composite residuals across levels, level-0
// geometric multigrid down to a bottom solve, and prolongation back up.
package multigrid

import (
	"errors"
	"fmt"
	"log"
	"math"

	"github.com/notargets/amrelliptic/amr"
	"github.com/notargets/amrelliptic/operator"
)

var ErrNotConverged = errors.New("multigrid did not converge")

type Config struct {
	// Relative reduction of the composite max-norm residual
	Tolerance     float64
	MaxIterations int
	PreSmooth     int
	PostSmooth    int
	// Relaxation passes when the bottom solve relaxes
	BottomSmooth int
	Bottom       BottomSolverType
	// Largest bottom level assembled for BiCGStab
	MaxBottomCells int
	// Smallest domain extent, per direction, of a multigrid level
	MinCoarseCells int
	Verbose        bool
}

func DefaultConfig() Config {
	return Config{
		Tolerance:      1.e-10,
		MaxIterations:  20,
		PreSmooth:      2,
		PostSmooth:     2,
		BottomSmooth:   20,
		Bottom:         BiCGStab,
		MaxBottomCells: 4096,
		MinCoarseCells: 2,
	}
}

type Stats struct {
	Iterations      int
	InitialResidual float64
	FinalResidual   float64
	// Composite residual after each iteration, starting with the initial one
	ResidualHistory []float64
}

type Solver struct {
	Config
	hierarchy *amr.Hierarchy
	ops       []*operator.VariableCoeffOp
	// Geometric multigrid chain below level 0, mgOps[0] == ops[0]
	mgOps  []*operator.VariableCoeffOp
	bottom *bottomSolver
	// Per AMR level work space
	res, corr, delta, tmp []*amr.LevelData
	// Per multigrid level work space, index 0 unused
	mgRes, mgCorr []*amr.LevelData
	// Called after every iteration with the updated solution
	Monitor func(iter int, residual float64, phi []*amr.LevelData)
}

// NewSolver builds the multigrid chain under level 0 and the work space.
// ops[l] must be defined on h.Levels[l], with the level below as its
// coarse layout.
func NewSolver(h *amr.Hierarchy, ops []*operator.VariableCoeffOp, cfg Config) (s *Solver) {
	if len(ops) != h.NumLevels() {
		panic(fmt.Errorf("have %d operators for %d levels", len(ops), h.NumLevels()))
	}
	for l, op := range ops {
		lev := h.Levels[l]
		if !op.Layout.SameBoxes(lev.Layout) {
			panic(fmt.Errorf("operator %d is not defined on level %d", l, l))
		}
		if l > 0 && (op.CoarseLayout == nil || op.RefToCoarse != h.Levels[l-1].RefRatio) {
			panic(fmt.Errorf("operator %d is not coupled to level %d with ratio %d",
				l, l-1, h.Levels[l-1].RefRatio))
		}
		if op.NComp != ops[0].NComp {
			panic(fmt.Errorf("operator %d has %d components, level 0 has %d", l, op.NComp, ops[0].NComp))
		}
	}
	if cfg.MinCoarseCells < 1 {
		cfg.MinCoarseCells = 1
	}
	s = &Solver{Config: cfg, hierarchy: h, ops: ops}
	s.mgOps = []*operator.VariableCoeffOp{ops[0]}
	for {
		op := s.mgOps[len(s.mgOps)-1]
		if !op.CanCoarsen() || !s.coarsenable(op.Layout.Domain.Box) {
			break
		}
		s.mgOps = append(s.mgOps, op.Coarsen())
	}
	for _, op := range ops {
		s.res = append(s.res, amr.NewLevelData(op.Layout, op.NComp, 0))
		s.tmp = append(s.tmp, amr.NewLevelData(op.Layout, op.NComp, 0))
		s.corr = append(s.corr, op.Create())
		s.delta = append(s.delta, op.Create())
	}
	s.mgRes = make([]*amr.LevelData, len(s.mgOps))
	s.mgCorr = make([]*amr.LevelData, len(s.mgOps))
	for k := 1; k < len(s.mgOps); k++ {
		s.mgRes[k] = amr.NewLevelData(s.mgOps[k].Layout, s.mgOps[k].NComp, 0)
		s.mgCorr[k] = s.mgOps[k].Create()
	}
	if s.Verbose {
		log.Printf("multigrid: %d AMR levels, %d multigrid levels, bottom %s on %d cells\n",
			len(ops), len(s.mgOps), s.Bottom.Print(), s.mgOps[len(s.mgOps)-1].Layout.NumCells())
	}
	return
}

func (s *Solver) coarsenable(domain amr.Box) bool {
	for d := 0; d < amr.SpaceDim; d++ {
		if domain.Size(d)/operator.MGRefRatio < s.MinCoarseCells {
			return false
		}
	}
	return true
}

func (s *Solver) NumMGLevels() int { return len(s.mgOps) }

// MGOperator returns the operator of multigrid level k below level 0.
func (s *Solver) MGOperator(k int) *operator.VariableCoeffOp { return s.mgOps[k] }

// SetTime sets the coefficient time on every AMR and multigrid operator.
func (s *Solver) SetTime(t float64) {
	for _, op := range s.ops {
		op.SetTime(t)
	}
	for _, op := range s.mgOps[1:] {
		op.SetTime(t)
	}
}

// syncCoefficients makes coarse coefficients consistent with the finer
// levels and rebuilds the bottom solver.
func (s *Solver) syncCoefficients() {
	for l := len(s.ops) - 2; l >= 0; l-- {
		s.ops[l].FinerOperatorChanged(s.ops[l+1], s.hierarchy.Levels[l].RefRatio)
	}
	for k := 1; k < len(s.mgOps); k++ {
		var (
			parent = s.mgOps[k-1]
			child  = s.mgOps[k]
		)
		amr.AverageDown(child.ACoef(), parent.ACoef(), operator.MGRefRatio)
		amr.AverageDownFaces(child.BCoef(), parent.BCoef(), operator.MGRefRatio)
		child.SetAlphaAndBeta(parent.Alpha(), parent.Beta())
	}
	s.bottom = newBottomSolver(s.mgOps[len(s.mgOps)-1], s.Bottom, s.MaxBottomCells,
		1.e-12, 200, s.BottomSmooth, s.Verbose)
}

func (s *Solver) averageDown(phi []*amr.LevelData) {
	for l := len(phi) - 1; l > 0; l-- {
		amr.AverageDown(phi[l-1], phi[l], s.hierarchy.Levels[l-1].RefRatio)
		phi[l-1].MarkGhostsStale()
	}
}

// compositeResidual sets res to rhs - L(phi) on every level with
// inhomogeneous ghosts and returns its max norm over cells not covered by
// a finer level.
func (s *Solver) compositeResidual(phi, rhs []*amr.LevelData) (norm float64) {
	for l, op := range s.ops {
		var crse *amr.LevelData
		if l > 0 {
			crse = phi[l-1]
		}
		op.AMRResidual(s.res[l], phi[l], crse, rhs[l], false)
		norm = math.Max(norm, s.res[l].Norm(0, -1, op.Covered()))
	}
	return
}

// Solve iterates AMR V-cycles on phi until the composite residual has
// dropped by Tolerance. phi is the initial guess and is updated in place.
func (s *Solver) Solve(phi, rhs []*amr.LevelData) (st Stats, err error) {
	if len(phi) != len(s.ops) || len(rhs) != len(s.ops) {
		panic(fmt.Errorf("need %d levels of data, have %d and %d", len(s.ops), len(phi), len(rhs)))
	}
	s.syncCoefficients()
	s.averageDown(phi)
	r0 := s.compositeResidual(phi, rhs)
	st.InitialResidual, st.FinalResidual = r0, r0
	st.ResidualHistory = []float64{r0}
	if s.Verbose {
		log.Printf("multigrid: initial residual %8.5e\n", r0)
	}
	if r0 == 0 {
		return
	}
	for st.Iterations < s.MaxIterations {
		s.vCycle()
		for l := range phi {
			phi[l].AXPY(1, s.corr[l])
			phi[l].MarkGhostsStale()
		}
		s.averageDown(phi)
		rn := s.compositeResidual(phi, rhs)
		st.Iterations++
		st.FinalResidual = rn
		st.ResidualHistory = append(st.ResidualHistory, rn)
		if s.Verbose {
			log.Printf("multigrid: iteration %d, residual %8.5e, reduction %8.5e\n",
				st.Iterations, rn, rn/r0)
		}
		if s.Monitor != nil {
			s.Monitor(st.Iterations, rn, phi)
		}
		if math.IsNaN(rn) || math.IsInf(rn, 0) {
			return st, fmt.Errorf("residual %g after %d iterations: %w", rn, st.Iterations, ErrNotConverged)
		}
		if rn <= s.Tolerance*r0 {
			return
		}
	}
	return st, fmt.Errorf("residual reduced by %g after %d iterations: %w",
		st.FinalResidual/r0, st.Iterations, ErrNotConverged)
}

// vCycle solves the correction equation L(corr) = res approximately on
// all levels, with res holding the composite residual.
func (s *Solver) vCycle() {
	finest := len(s.ops) - 1
	for l := finest; l > 0; l-- {
		op := s.ops[l]
		s.corr[l].SetVal(0)
		op.Relax(s.corr[l], s.res[l], s.PreSmooth)
		op.AMRResidual(s.tmp[l], s.corr[l], nil, s.res[l], true)
		amr.AverageDown(s.res[l-1], s.tmp[l], s.hierarchy.Levels[l-1].RefRatio)
	}
	s.corr[0].SetVal(0)
	s.mgVCycle(0, s.corr[0], s.res[0])
	for l := 1; l <= finest; l++ {
		op := s.ops[l]
		amr.ProlongConstantAdd(s.corr[l], s.corr[l-1], s.hierarchy.Levels[l-1].RefRatio)
		s.corr[l].MarkGhostsStale()
		op.AMRResidual(s.tmp[l], s.corr[l], s.corr[l-1], s.res[l], true)
		s.delta[l].SetVal(0)
		op.Relax(s.delta[l], s.tmp[l], s.PostSmooth)
		s.corr[l].AXPY(1, s.delta[l])
		s.corr[l].MarkGhostsStale()
	}
}

func (s *Solver) mgVCycle(k int, e, r *amr.LevelData) {
	if k == len(s.mgOps)-1 {
		s.bottom.solve(e, r)
		return
	}
	op := s.mgOps[k]
	op.Relax(e, r, s.PreSmooth)
	op.RestrictResidual(s.mgRes[k+1], e, r)
	s.mgCorr[k+1].SetVal(0)
	s.mgVCycle(k+1, s.mgCorr[k+1], s.mgRes[k+1])
	op.ProlongIncrement(e, s.mgCorr[k+1])
	e.MarkGhostsStale()
	op.Relax(e, r, s.PostSmooth)
}
