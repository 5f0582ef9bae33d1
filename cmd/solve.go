/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notargets/amrelliptic/InputParameters"
	"github.com/notargets/amrelliptic/amr"
	"github.com/notargets/amrelliptic/coefficients"
	"github.com/notargets/amrelliptic/matter"
	"github.com/notargets/amrelliptic/multigrid"
	"github.com/notargets/amrelliptic/operator"
	"github.com/notargets/amrelliptic/output"
	"github.com/notargets/amrelliptic/utils"
)

type SolveRun struct {
	InputFile  string
	OutputDir  string
	Profile    bool
	ProfileDir string
	Verbose    bool
}

// SolveCmd represents the solve command
var SolveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Solve the elliptic problem described by an input file",
	Long: `
Builds the grid hierarchy, the level operators and the right hand side from a
YAML input file, runs multigrid to the requested tolerance and writes the
solution in NetCDF.

amrelliptic solve -I input.yaml`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		sr := &SolveRun{
			InputFile:  viper.GetString("inputFile"),
			OutputDir:  viper.GetString("outputDir"),
			Profile:    viper.GetBool("profile"),
			ProfileDir: viper.GetString("profileDir"),
			Verbose:    viper.GetBool("verbose"),
		}
		return sr.Run()
	},
}

// Run reads the input file and solves. A running profile is stopped
// before Run returns, on error as well.
func (sr *SolveRun) Run() (err error) {
	ip, err := processInput(sr)
	if err != nil {
		return
	}
	if sr.Profile {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(sr.ProfileDir)).Stop()
	}
	_, err = RunSolve(ip, sr.Verbose)
	return
}

func init() {
	rootCmd.AddCommand(SolveCmd)
	SolveCmd.Flags().StringP("inputFile", "I", "", "YAML file for input parameters like:\n\t- Grid\n\t- Solver\n\t- Boundary\n\t- Matter")
	SolveCmd.Flags().StringP("outputDir", "o", "", "directory for output files, overrides Output.Directory")
	SolveCmd.Flags().Bool("profile", false, "write a CPU profile of the run")
	SolveCmd.Flags().String("profileDir", ".", "directory for the CPU profile")
	SolveCmd.Flags().BoolP("verbose", "v", false, "log solver progress")
	for _, name := range []string{"inputFile", "outputDir", "profile", "profileDir", "verbose"} {
		if err := viper.BindPFlag(name, SolveCmd.Flags().Lookup(name)); err != nil {
			panic(err)
		}
	}
}

const exampleInput = `
########################################
Title: "Periodic Helmholtz"
Grid:
  N: [32, 32, 32]
  Length: [1, 1, 1]
  MaxBoxSize: 16
Solver:
  Alpha: 1
  Beta: 1
  Smoother: GSRB
  Source: 1
########################################
`

func processInput(sr *SolveRun) (ip *InputParameters.InputParameters, err error) {
	if len(sr.InputFile) == 0 {
		fmt.Printf("Example File:%s\n", exampleInput)
		return nil, fmt.Errorf("must supply an input parameters file (-I, --inputFile)")
	}
	var data []byte
	if data, err = os.ReadFile(sr.InputFile); err != nil {
		return
	}
	ip = InputParameters.NewInputParameters()
	if err = ip.Parse(data); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", sr.InputFile, err)
	}
	if len(sr.OutputDir) != 0 {
		ip.Output.Directory = sr.OutputDir
	}
	if err = ip.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", sr.InputFile, err)
	}
	return
}

// BuildHierarchy lays out level 0 over the whole domain and each finer
// level over its listed regions, all chopped to MaxBoxSize.
func BuildHierarchy(ip *InputParameters.InputParameters) *amr.Hierarchy {
	var (
		g      = ip.Grid
		hi     = amr.IntVect{g.N[0] - 1, g.N[1] - 1, g.N[2] - 1}
		domain = amr.NewProblemDomain(amr.NewBox(amr.IntVect{}, hi), g.Periodic)
		dx     = ip.Dx()
		levels []*amr.Level
	)
	for l := 0; l < ip.NumLevels(); l++ {
		var boxes []amr.Box
		if l == 0 {
			boxes = amr.SplitDomain(domain.Box, g.MaxBoxSize)
		} else {
			domain = domain.Refine(g.RefRatio[l-1])
			dx /= float64(g.RefRatio[l-1])
			for _, r := range g.Regions[l-1] {
				region := amr.NewBox(amr.IntVect{r[0], r[1], r[2]}, amr.IntVect{r[3], r[4], r[5]})
				boxes = append(boxes, amr.SplitDomain(region, g.MaxBoxSize)...)
			}
		}
		var ratio int
		if l < len(g.RefRatio) {
			ratio = g.RefRatio[l]
		}
		levels = append(levels, &amr.Level{
			Index:    l,
			Layout:   amr.NewDisjointBoxLayout(boxes, domain, g.ProcLimit),
			Dx:       dx,
			RefRatio: ratio,
		})
	}
	return amr.NewHierarchy(levels)
}

// coefFunction returns the coefficient described by c as a function of
// position and time. sf is needed only by the matter kind.
func coefFunction(c InputParameters.CoefParameters, length [3]float64,
	sf *matter.ScalarField) func(x amr.RealVect, t float64) float64 {
	switch strings.ToLower(c.Kind) {
	case InputParameters.CoefCosine:
		return func(x amr.RealVect, t float64) float64 {
			var phase float64
			for d := 0; d < amr.SpaceDim; d++ {
				phase += 2 * math.Pi * c.Wave[d] * x[d] / length[d]
			}
			return c.Value * (1 + c.Amplitude*math.Cos(phase)) * (1 + c.Rate*t)
		}
	case InputParameters.CoefMatter:
		if sf == nil {
			panic(fmt.Errorf("matter coefficient without a scalar field"))
		}
		return func(x amr.RealVect, _ float64) float64 {
			return c.Value + c.Amplitude*sf.EnergyDensity(x)
		}
	default:
		return func(amr.RealVect, float64) float64 { return c.Value }
	}
}

func isConstant(c InputParameters.CoefParameters) bool {
	kind := strings.ToLower(c.Kind)
	return kind == "" || kind == InputParameters.CoefConstant
}

// BuildOperators makes one operator per level with the coefficients of the
// input file: a evaluated at the solve time, and b from a function source
// that is re-evaluated whenever the time changes. sf may be nil when no
// coefficient uses matter.
func BuildOperators(ip *InputParameters.InputParameters, h *amr.Hierarchy,
	sf *matter.ScalarField) (ops []*operator.VariableCoeffOp, err error) {
	bc, err := ip.BoundaryCondition()
	if err != nil {
		return
	}
	var (
		s        = ip.Solver
		smoother = operator.NewSmootherType(s.Smoother)
		aFunc    = coefFunction(s.A, ip.Grid.Length, sf)
		bFunc    = coefFunction(s.B, ip.Grid.Length, sf)
	)
	bSource := coefficients.NewFunctionInterpolator(1, func(x amr.RealVect, t float64, _ int) float64 {
		return bFunc(x, t)
	})
	for l, lev := range h.Levels {
		p := operator.Params{
			Layout:   lev.Layout,
			Dx:       lev.Dx,
			NComp:    1,
			Ghost:    1,
			BC:       bc,
			Smoother: smoother,
			Verbose:  s.Verbose,
		}
		if l > 0 {
			p.CoarseLayout = h.Levels[l-1].Layout
			p.RefToCoarse = h.Levels[l-1].RefRatio
		}
		var (
			op = operator.NewVariableCoeffOp(p)
			a  = amr.NewLevelData(lev.Layout, 1, 0)
			b  = amr.NewFluxData(lev.Layout, 1)
		)
		for bi := 0; bi < a.NumBoxes(); bi++ {
			fab := a.FAB(bi)
			a.ValidBox(bi).ForEach(func(iv amr.IntVect) {
				fab.Set(iv, 0, aFunc(amr.CellCenter(iv, lev.Dx), s.Time))
			})
		}
		bSource.Evaluate(s.Time, b, lev.Dx)
		op.SetCoefs(a, b, s.Alpha, s.Beta)
		if !isConstant(s.B) {
			op.SetBCoefInterpolator(bSource)
		}
		ops = append(ops, op)
	}
	return
}

func SolverConfig(ip *InputParameters.InputParameters, verbose bool) (cfg multigrid.Config) {
	s := ip.Solver
	cfg = multigrid.DefaultConfig()
	cfg.Tolerance = s.Tolerance
	cfg.MaxIterations = s.MaxIterations
	cfg.PreSmooth = s.PreSmooth
	cfg.PostSmooth = s.PostSmooth
	cfg.BottomSmooth = s.BottomSmooth
	cfg.MaxBottomCells = s.MaxBottomCells
	cfg.Bottom = multigrid.NewBottomSolverType(s.BottomSolver)
	cfg.Verbose = verbose || s.Verbose
	return
}

// RunSolve solves the problem in ip and writes the requested output. The
// returned statistics are valid even when the solve did not converge.
func RunSolve(ip *InputParameters.InputParameters, verbose bool) (st multigrid.Stats, err error) {
	ip.Print()
	var (
		h        = BuildHierarchy(ip)
		ops      []*operator.VariableCoeffOp
		phi, rhs []*amr.LevelData
		fillers  []output.GhostFiller
		sf       *matter.ScalarField
	)
	if ip.Matter.DPhiFile != "" {
		if sf, err = matter.LoadScalarField(ip.Matter, verbose); err != nil {
			return
		}
	}
	if ops, err = BuildOperators(ip, h, sf); err != nil {
		return
	}
	for l, op := range ops {
		p := amr.NewLevelData(op.Layout, 1, op.Ghost, "phi")
		r := amr.NewLevelData(op.Layout, 1, 0, "rho")
		if sf != nil {
			sf.FillRHS(r, h.Levels[l].Dx, 1, 0)
		} else {
			r.SetVal(ip.Solver.Source)
		}
		phi, rhs = append(phi, p), append(rhs, r)
		fillers = append(fillers, op)
	}
	if err = os.MkdirAll(ip.Output.Directory, 0755); err != nil {
		return
	}
	meta := output.Meta{Time: ip.Solver.Time, Ghost: ip.Output.Ghost, RegridInterval: ip.Grid.RegridInterval}
	solver := multigrid.NewSolver(h, ops, SolverConfig(ip, verbose))
	solver.SetTime(ip.Solver.Time)
	if ip.Output.WriteIterations {
		solver.Monitor = func(iter int, _ float64, phi []*amr.LevelData) {
			if _, werr := output.WriteIteration(ip.Output.Directory, iter, h, phi, fillers, meta); werr != nil {
				fmt.Printf("error writing iteration %d: %s\n", iter, werr.Error())
			}
		}
	}
	st, err = solver.Solve(phi, rhs)
	fmt.Printf("%d iterations, residual %8.5e -> %8.5e\n", st.Iterations, st.InitialResidual, st.FinalResidual)
	if verbose {
		fmt.Println(utils.GetMemUsage())
	}
	for i, r := range st.ResidualHistory {
		fmt.Printf("%4d\t%8.5e\n", i, r)
	}
	if err != nil {
		return
	}
	meta.Iteration = st.Iterations
	final := filepath.Join(ip.Output.Directory, ip.Output.FinalFile)
	if err = output.WriteFinalFile(final, h, phi, fillers, meta); err != nil {
		return
	}
	fmt.Printf("wrote %s\n", final)
	if ip.Output.ResidualPlot != "" {
		err = output.PlotResidualHistory(filepath.Join(ip.Output.Directory, ip.Output.ResidualPlot),
			ip.Title, st.ResidualHistory)
	}
	return
}
