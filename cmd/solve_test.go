package cmd

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/amrelliptic/amr"
	"github.com/notargets/amrelliptic/multigrid"
	"github.com/notargets/amrelliptic/output"
)

func writeInput(t *testing.T, dir, text string) string {
	path := filepath.Join(dir, "input.yaml")
	require.NoError(t, os.WriteFile(path, []byte(text), 0644))
	return path
}

func TestProcessInput(t *testing.T) {
	dir := t.TempDir()
	_, err := processInput(&SolveRun{})
	assert.Error(t, err)
	_, err = processInput(&SolveRun{InputFile: filepath.Join(dir, "missing.yaml")})
	assert.Error(t, err)

	path := writeInput(t, dir, `
Title: Test Case
Grid:
  N: [8, 8, 8]
  MaxBoxSize: 4
  Periodic: [false, true, true]
Boundary:
  Lo: [Dirichlet]
  Hi: [Neumann]
  HiValue: [0.5]
Solver:
  Smoother: overlap
Output:
  Directory: somewhere
`)
	ip, err := processInput(&SolveRun{InputFile: path, OutputDir: dir})
	require.NoError(t, err)
	assert.Equal(t, "Test Case", ip.Title)
	assert.Equal(t, dir, ip.Output.Directory)
	assert.Equal(t, 0.5, ip.Boundary.HiValue[0])
	assert.Equal(t, 0.125, ip.Dx())

	bad := writeInput(t, dir, "Grid: {MaxBoxSize: 0}\n")
	_, err = processInput(&SolveRun{InputFile: bad})
	assert.Error(t, err)
}

func TestRunSolve(t *testing.T) {
	dir := t.TempDir()
	path := writeInput(t, dir, `
Title: Uniform source
Grid:
  N: [8, 8, 8]
  MaxBoxSize: 4
Solver:
  Alpha: 1
  Beta: 1
  Source: 2
  Tolerance: 1.e-10
Output:
  WriteIterations: true
  ResidualPlot: residual.png
`)
	ip, err := processInput(&SolveRun{InputFile: path, OutputDir: dir})
	require.NoError(t, err)
	st, err := RunSolve(ip, false)
	require.NoError(t, err)
	assert.Greater(t, st.Iterations, 0)

	s, err := output.ReadFinalFile(filepath.Join(dir, "final.nc"))
	require.NoError(t, err)
	assert.Equal(t, []string{"phi"}, s.Names)
	assert.Equal(t, st.Iterations, s.Iteration)
	// alpha*phi = 2 with a uniform field
	assert.InDelta(t, 2., s.Data[0].Norm(0, 0, nil), 1.e-8)
	assert.InDelta(t, 2.*512, s.Data[0].Sum(0, nil), 1.e-6)

	_, err = os.Stat(filepath.Join(dir, output.IterationFile(1)))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "residual.png"))
	assert.NoError(t, err)
}

func TestRunSolveTwoLevels(t *testing.T) {
	dir := t.TempDir()
	path := writeInput(t, dir, `
Title: Refined Poisson
Grid:
  N: [8, 8, 8]
  MaxBoxSize: 4
  Periodic: [false, false, false]
  RefRatio: [2]
  Regions:
    - - [4, 4, 4, 11, 11, 11]
Boundary:
  Lo: [dirichlet, dirichlet, dirichlet]
  Hi: [dirichlet, dirichlet, dirichlet]
Solver:
  Alpha: 0
  Source: 1
  Tolerance: 1.e-8
  MaxIterations: 40
`)
	ip, err := processInput(&SolveRun{InputFile: path, OutputDir: dir})
	require.NoError(t, err)
	h := BuildHierarchy(ip)
	require.Equal(t, 2, h.NumLevels())
	assert.Equal(t, 8, h.Levels[0].Layout.Size())
	assert.Equal(t, 8, h.Levels[1].Layout.Size())
	assert.Equal(t, 1./16, h.Levels[1].Dx)

	st, err := RunSolve(ip, false)
	require.NoError(t, err)
	assert.LessOrEqual(t, st.FinalResidual, 1.e-8*st.InitialResidual)
	s, err := output.ReadFinalFile(filepath.Join(dir, "final.nc"))
	require.NoError(t, err)
	require.Len(t, s.Data, 2)
	assert.Equal(t, 3, s.Data[1].Ghost())
}

func TestBuildOperatorsVaryingCoefficients(t *testing.T) {
	dir := t.TempDir()
	path := writeInput(t, dir, `
Grid:
  N: [8, 8, 8]
  MaxBoxSize: 4
Solver:
  Time: 0.5
  A: {Kind: cosine, Value: 2, Amplitude: 0.5, Wave: [1, 0, 0]}
  B: {Kind: Cosine, Value: 1, Amplitude: 0.25, Wave: [0, 1, 0], Rate: 2}
`)
	ip, err := processInput(&SolveRun{InputFile: path, OutputDir: dir})
	require.NoError(t, err)
	h := BuildHierarchy(ip)
	ops, err := BuildOperators(ip, h, nil)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	op := ops[0]
	require.NotNil(t, op.BCoefInterpolator())

	var (
		dx  = op.Dx()
		iv  = amr.IntVect{1, 2, 3}
		ai  = amr.CellCenter(iv, dx)
		yFc = amr.FaceCenter(iv, 1, dx)
	)
	bi, _, ok := op.Layout.Find(iv)
	require.True(t, ok)
	bAt := func(tm float64) float64 { return (1 + 0.25*math.Cos(2*math.Pi*yFc[1])) * (1 + 2*tm) }
	assert.InDelta(t, 2*(1+0.5*math.Cos(2*math.Pi*ai[0])), op.ACoef().FAB(bi).Get(iv, 0), 1.e-14)
	assert.InDelta(t, bAt(0.5), op.BCoef().Face(bi, 1).Get(iv, 0), 1.e-14)
	// b follows the solve time, a does not
	op.SetTime(1)
	assert.InDelta(t, bAt(1), op.BCoef().Face(bi, 1).Get(iv, 0), 1.e-14)
	assert.InDelta(t, 2*(1+0.5*math.Cos(2*math.Pi*ai[0])), op.ACoef().FAB(bi).Get(iv, 0), 1.e-14)

	ip.Solver.B.Kind = "constant"
	ops, err = BuildOperators(ip, h, nil)
	require.NoError(t, err)
	assert.Nil(t, ops[0].BCoefInterpolator())
	assert.Equal(t, 1., ops[0].BCoef().Face(0, 0).Get(ops[0].Layout.Boxes[0].Lo, 0))
}

func TestRunSolveVaryingCoefficients(t *testing.T) {
	dir := t.TempDir()
	path := writeInput(t, dir, `
Title: Varying coefficients
Grid:
  N: [8, 8, 8]
  MaxBoxSize: 4
  Periodic: [true, true, false]
  RefRatio: [2]
  Regions:
    - - [4, 4, 4, 11, 11, 11]
Boundary:
  Lo: ["", "", neumann]
  Hi: ["", "", neumann]
Solver:
  Alpha: 1
  Beta: 0.01
  Source: 2
  Time: 0.25
  Tolerance: 1.e-9
  MaxIterations: 40
  A: {Kind: cosine, Value: 1, Amplitude: 0.5, Wave: [1, 0, 0]}
  B: {Kind: cosine, Value: 1, Amplitude: 0.5, Wave: [0, 1, 1], Rate: 1}
`)
	ip, err := processInput(&SolveRun{InputFile: path, OutputDir: dir})
	require.NoError(t, err)
	st, err := RunSolve(ip, false)
	require.NoError(t, err)
	assert.LessOrEqual(t, st.FinalResidual, 1.e-9*st.InitialResidual)

	s, err := output.ReadFinalFile(filepath.Join(dir, "final.nc"))
	require.NoError(t, err)
	// alpha*a*phi ~ 2 with a between 0.5 and 1.5, so phi is far from uniform
	crse := s.Data[0]
	mean := crse.Sum(0, nil) / 512
	assert.Greater(t, crse.Norm(0, 0, nil), mean+0.25)
	assert.Greater(t, mean, 1.)
}

func TestSolveRunStopsProfileOnError(t *testing.T) {
	dir := t.TempDir()
	path := writeInput(t, dir, `
Grid:
  N: [8, 8, 8]
  MaxBoxSize: 4
Solver:
  Source: 1
  Tolerance: 1.e-14
  MaxIterations: 1
  A: {Kind: cosine, Value: 1, Amplitude: 0.5, Wave: [1, 1, 0]}
`)
	sr := &SolveRun{InputFile: path, OutputDir: dir, Profile: true, ProfileDir: dir}
	err := sr.Run()
	require.Error(t, err)
	assert.True(t, errors.Is(err, multigrid.ErrNotConverged))
	info, err := os.Stat(filepath.Join(dir, "cpu.pprof"))
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}
