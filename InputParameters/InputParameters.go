package InputParameters

import (
	"fmt"
	"math"
	"strings"

	"github.com/ghodss/yaml"

	"github.com/notargets/amrelliptic/amr"
	"github.com/notargets/amrelliptic/boundary"
	"github.com/notargets/amrelliptic/matter"
)

type GridParameters struct {
	N          [3]int     `json:"N"`
	Length     [3]float64 `json:"Length"`
	Periodic   [3]bool    `json:"Periodic"`
	MaxBoxSize int        `json:"MaxBoxSize"`
	// RefRatio[l] is the ratio between level l and l+1
	RefRatio []int `json:"RefRatio"`
	// Regions[l-1] lists the boxes of level l as lo and hi corners in that
	// level's index space
	Regions        [][][6]int `json:"Regions"`
	RegridInterval []int      `json:"RegridInterval"`
	ProcLimit      int        `json:"ProcLimit"`
}

// Coefficient kinds
const (
	CoefConstant = "constant"
	CoefCosine   = "cosine"
	CoefMatter   = "matter"
)

// CoefParameters describe the a or b coefficient field.
//   - constant: Value
//   - cosine: Value*(1 + Amplitude*cos(2pi sum_d Wave[d]*x[d]/Length[d]))*(1 + Rate*t)
//   - matter: Value + Amplitude*rho, rho the energy density of the matter tables
//
// t is the solve time. b is re-evaluated whenever the time changes.
type CoefParameters struct {
	Kind      string     `json:"Kind"`
	Value     float64    `json:"Value"`
	Amplitude float64    `json:"Amplitude"`
	Wave      [3]float64 `json:"Wave"`
	Rate      float64    `json:"Rate"`
}

// validate checks that the field is non-negative, or positive when
// positive is set, at time t.
func (c CoefParameters) validate(name string, positive, haveMatter bool, t float64) error {
	var (
		kind = strings.ToLower(c.Kind)
		low  float64
	)
	switch kind {
	case CoefConstant, "":
		low = c.Value
	case CoefCosine:
		low = c.Value * (1 - math.Abs(c.Amplitude)) * (1 + c.Rate*t)
		if c.Value < 0 || 1+c.Rate*t < 0 {
			low = -1
		}
	case CoefMatter:
		if !haveMatter {
			return fmt.Errorf("%s coefficient uses matter but no matter tables are given", name)
		}
		low = c.Value
		if c.Amplitude < 0 {
			low = -1
		}
	default:
		return fmt.Errorf("unknown %s coefficient kind %q, expect one of %s, %s, %s",
			name, c.Kind, CoefConstant, CoefCosine, CoefMatter)
	}
	if low < 0 || (positive && low == 0) {
		return fmt.Errorf("%s coefficient %s(%g, amplitude %g, rate %g) is not bounded away from zero at t = %g",
			name, c.Kind, c.Value, c.Amplitude, c.Rate, t)
	}
	return nil
}

type SolverParameters struct {
	Alpha          float64 `json:"Alpha"`
	Beta           float64 `json:"Beta"`
	Time           float64 `json:"Time"`
	Smoother       string  `json:"Smoother"`
	BottomSolver   string  `json:"BottomSolver"`
	Tolerance      float64 `json:"Tolerance"`
	MaxIterations  int     `json:"MaxIterations"`
	PreSmooth      int     `json:"PreSmooth"`
	PostSmooth     int     `json:"PostSmooth"`
	BottomSmooth   int     `json:"BottomSmooth"`
	MaxBottomCells int     `json:"MaxBottomCells"`
	// Uniform right hand side when no matter tables are given
	Source  float64 `json:"Source"`
	Verbose bool    `json:"Verbose"`
	// Cell-centered a and face-centered b
	A CoefParameters `json:"A"`
	B CoefParameters `json:"B"`
}

// BoundaryParameters name the condition on each face, Lo and Hi per
// direction, with its value (face value or outward derivative).
type BoundaryParameters struct {
	Lo      [3]string  `json:"Lo"`
	Hi      [3]string  `json:"Hi"`
	LoValue [3]float64 `json:"LoValue"`
	HiValue [3]float64 `json:"HiValue"`
}

type OutputParameters struct {
	Directory       string `json:"Directory"`
	FinalFile       string `json:"FinalFile"`
	Ghost           int    `json:"Ghost"`
	WriteIterations bool   `json:"WriteIterations"`
	ResidualPlot    string `json:"ResidualPlot"`
}

// Parameters obtained from the YAML input file
type InputParameters struct {
	Title    string             `json:"Title"`
	Grid     GridParameters     `json:"Grid"`
	Solver   SolverParameters   `json:"Solver"`
	Boundary BoundaryParameters `json:"Boundary"`
	Matter   matter.Params      `json:"Matter"`
	Output   OutputParameters   `json:"Output"`
}

func NewInputParameters() *InputParameters {
	return &InputParameters{
		Grid: GridParameters{
			N:          [3]int{32, 32, 32},
			Length:     [3]float64{1, 1, 1},
			Periodic:   [3]bool{true, true, true},
			MaxBoxSize: 16,
		},
		Solver: SolverParameters{
			Alpha:          1,
			Beta:           1,
			A:              CoefParameters{Kind: CoefConstant, Value: 1},
			B:              CoefParameters{Kind: CoefConstant, Value: 1},
			Smoother:       "GSRB",
			BottomSolver:   "bicgstab",
			Tolerance:      1.e-10,
			MaxIterations:  20,
			PreSmooth:      2,
			PostSmooth:     2,
			BottomSmooth:   20,
			MaxBottomCells: 4096,
		},
		Output: OutputParameters{
			Directory: ".",
			FinalFile: "final.nc",
			Ghost:     3,
		},
	}
}

// Parse overlays the YAML in data on the current values.
func (ip *InputParameters) Parse(data []byte) error {
	return yaml.Unmarshal(data, ip)
}

func (ip *InputParameters) NumLevels() int { return len(ip.Grid.Regions) + 1 }

// Dx is the cell size on level 0.
func (ip *InputParameters) Dx() float64 { return ip.Grid.Length[0] / float64(ip.Grid.N[0]) }

func (ip *InputParameters) Validate() (err error) {
	g := ip.Grid
	for d := 0; d < amr.SpaceDim; d++ {
		if g.N[d] < 1 || g.Length[d] <= 0 {
			return fmt.Errorf("grid direction %d has %d cells over length %g", d, g.N[d], g.Length[d])
		}
		if dx := g.Length[d] / float64(g.N[d]); dx != ip.Dx() {
			return fmt.Errorf("cells must be cubes: dx[%d] = %g, dx[0] = %g", d, dx, ip.Dx())
		}
	}
	if g.MaxBoxSize < 1 {
		return fmt.Errorf("MaxBoxSize must be positive, have %d", g.MaxBoxSize)
	}
	if len(g.RefRatio) < len(g.Regions) {
		return fmt.Errorf("%d refined levels need %d refinement ratios, have %d",
			len(g.Regions), len(g.Regions), len(g.RefRatio))
	}
	for l, r := range g.RefRatio {
		if r < 2 {
			return fmt.Errorf("refinement ratio %d of level %d is less than 2", r, l)
		}
	}
	for l, regions := range g.Regions {
		if len(regions) == 0 {
			return fmt.Errorf("level %d has no boxes", l+1)
		}
	}
	for d := 0; d < amr.SpaceDim; d++ {
		for side, name := range [2]string{ip.Boundary.Lo[d], ip.Boundary.Hi[d]} {
			if g.Periodic[d] {
				if name != "" && !strings.EqualFold(name, boundary.Periodic.String()) {
					return fmt.Errorf("direction %d is periodic but side %d has condition %s", d, side, name)
				}
				continue
			}
			var kind boundary.Kind
			if kind, err = boundary.ParseKind(name); err != nil {
				return fmt.Errorf("direction %d side %d: %w", d, side, err)
			}
			if kind == boundary.Periodic {
				return fmt.Errorf("direction %d is not periodic but side %d is", d, side)
			}
		}
	}
	s := ip.Solver
	if s.Tolerance <= 0 || s.MaxIterations < 1 {
		return fmt.Errorf("solver needs a positive tolerance and iteration count, have %g and %d",
			s.Tolerance, s.MaxIterations)
	}
	haveMatter := ip.Matter.DPhiFile != "" || ip.Matter.DPiFile != ""
	if haveMatter {
		if err = ip.Matter.Validate(); err != nil {
			return
		}
	}
	if err = s.A.validate("a", false, haveMatter, s.Time); err != nil {
		return
	}
	if err = s.B.validate("b", true, haveMatter, s.Time); err != nil {
		return
	}
	return
}

// BoundaryCondition builds the face conditions, periodic where the grid
// is periodic.
func (ip *InputParameters) BoundaryCondition() (bc *boundary.Condition, err error) {
	bc = boundary.NewPeriodic()
	for d := 0; d < amr.SpaceDim; d++ {
		if ip.Grid.Periodic[d] {
			continue
		}
		names := [2]string{ip.Boundary.Lo[d], ip.Boundary.Hi[d]}
		values := [2]float64{ip.Boundary.LoValue[d], ip.Boundary.HiValue[d]}
		for side := 0; side < 2; side++ {
			var kind boundary.Kind
			if kind, err = boundary.ParseKind(names[side]); err != nil {
				return nil, err
			}
			bc.Faces[d][side] = boundary.Face{Kind: kind, Value: values[side]}
		}
	}
	return
}

func (ip *InputParameters) Print() {
	g, s := ip.Grid, ip.Solver
	fmt.Printf("\"%s\"\t\t= Title\n", ip.Title)
	fmt.Printf("%v\t\t= Cells\n", g.N)
	fmt.Printf("%v\t\t= Domain Length\n", g.Length)
	fmt.Printf("%v\t= Periodic\n", g.Periodic)
	fmt.Printf("[%d]\t\t\t= Max Box Size\n", g.MaxBoxSize)
	fmt.Printf("[%d]\t\t\t= Levels\n", ip.NumLevels())
	for l, regions := range g.Regions {
		fmt.Printf("Level[%d] ratio %d, boxes %v\n", l+1, g.RefRatio[l], regions)
	}
	fmt.Printf("%8.5f\t\t= Alpha\n", s.Alpha)
	fmt.Printf("%8.5f\t\t= Beta\n", s.Beta)
	fmt.Printf("%s(%g, amplitude %g, rate %g)\t= A\n", s.A.Kind, s.A.Value, s.A.Amplitude, s.A.Rate)
	fmt.Printf("%s(%g, amplitude %g, rate %g)\t= B\n", s.B.Kind, s.B.Value, s.B.Amplitude, s.B.Rate)
	fmt.Printf("[%s]\t\t\t= Smoother\n", s.Smoother)
	fmt.Printf("[%s]\t\t= Bottom Solver\n", s.BottomSolver)
	fmt.Printf("%8.3e\t\t= Tolerance\n", s.Tolerance)
	fmt.Printf("[%d]\t\t\t= Max Iterations\n", s.MaxIterations)
	for d := 0; d < amr.SpaceDim; d++ {
		if g.Periodic[d] {
			continue
		}
		fmt.Printf("BC[%d] = %s(%g), %s(%g)\n", d,
			ip.Boundary.Lo[d], ip.Boundary.LoValue[d], ip.Boundary.Hi[d], ip.Boundary.HiValue[d])
	}
	if ip.Matter.DPhiFile != "" {
		fmt.Printf("Matter: phi_0 = %g, dphi = %g, pi_0 = %g, dpi = %g, m = %g, tables %s %s\n",
			ip.Matter.Phi0, ip.Matter.DPhi, ip.Matter.Pi0, ip.Matter.DPi, ip.Matter.ScalarMass,
			ip.Matter.DPhiFile, ip.Matter.DPiFile)
	}
}
