// Package operator implements the variable-coefficient elliptic operator
//
//	L(u) = alpha*a*u - beta*div(b grad u)
//
// on one level of a block-structured hierarchy, with its residual,
// relaxation, restriction and coarse-fine coupling primitives for a
// multigrid driver.
package operator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/notargets/amrelliptic/amr"
)

// ErrNotImplemented is raised, by panic, from level-operator methods that
// this discretization does not support.
var ErrNotImplemented = errors.New("operation not implemented")

// LevelOperator is the set of primitives a multigrid driver uses on one
// level.
type LevelOperator interface {
	Residual(out, u, rhs *amr.LevelData, homogeneous bool)
	ApplyOp(out, u *amr.LevelData, homogeneous bool)
	ApplyOpNoBoundary(out, u *amr.LevelData)
	PreCond(correction, residual *amr.LevelData)
	Relax(u, rhs *amr.LevelData, iterations int)
	RestrictResidual(coarseRes, fineSolution, fineRhs *amr.LevelData)
	ProlongIncrement(fineCorrection, coarseCorrection *amr.LevelData)
	SetAlphaAndBeta(alpha, beta float64)
	SetCoefs(a *amr.LevelData, b *amr.FluxData, alpha, beta float64)
	ResetLambda()
	ComputeLambda()
	SetTime(t float64)
	FinerOperatorChanged(finer LevelOperator, refRatio int)
	Reflux(coarseRes, fineU, coarseU *amr.LevelData, finer LevelOperator)
	GetFlux(flux *amr.FluxData, u *amr.LevelData)
	Create() *amr.LevelData
	Dx() float64
	Norm(ld *amr.LevelData, p int) float64
}

type LambdaState uint8

const (
	LambdaDirty LambdaState = iota
	LambdaClean
)

func (ls LambdaState) String() string {
	if ls == LambdaClean {
		return "Clean"
	}
	return "Dirty"
}

type SmootherType uint8

const (
	LevelGSRB SmootherType = iota
	LevelMultiColor
	LooseGSRB
	OverlapGSRB
	LevelJacobi
)

var (
	SmootherNames = map[string]SmootherType{
		"gsrb":        LevelGSRB,
		"levelgsrb":   LevelGSRB,
		"multicolor":  LevelMultiColor,
		"loosegsrb":   LooseGSRB,
		"loose":       LooseGSRB,
		"overlap":     OverlapGSRB,
		"overlapgsrb": OverlapGSRB,
		"jacobi":      LevelJacobi,
	}
	SmootherNamesRev = map[SmootherType]string{
		LevelGSRB:       "Level Gauss-Seidel Red-Black",
		LevelMultiColor: "Level Multi-Color Gauss-Seidel",
		LooseGSRB:       "Loose Gauss-Seidel Red-Black",
		OverlapGSRB:     "Overlapped Gauss-Seidel Red-Black",
		LevelJacobi:     "Level Jacobi",
	}
)

func (st SmootherType) Print() (txt string) {
	var ok bool
	if txt, ok = SmootherNamesRev[st]; !ok {
		txt = "Unknown"
	}
	return
}

// NewSmootherType maps a label to a smoother; an empty label selects
// LevelGSRB.
func NewSmootherType(label string) (st SmootherType) {
	var ok bool
	if len(label) == 0 {
		return LevelGSRB
	}
	label = strings.ToLower(strings.TrimSpace(label))
	if st, ok = SmootherNames[label]; !ok {
		panic(fmt.Errorf("unable to use smoother named [%s]", label))
	}
	return
}
