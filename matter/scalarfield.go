// Package matter provides the scalar-field source for the elliptic solve:
// the field and its momentum are read in as periodic tables of
// perturbations about uniform values, and the energy density becomes the
// right hand side.
package matter

import (
	"fmt"
	"log"

	"github.com/notargets/amrelliptic/amr"
)

type Params struct {
	Phi0       float64 `json:"phi_0"`
	DPhi       float64 `json:"dphi"`
	Pi0        float64 `json:"pi_0"`
	DPi        float64 `json:"dpi"`
	ScalarMass float64 `json:"scalar_mass"`
	// Perturbation tables, text or NetCDF
	DPhiFile string  `json:"dphi_file"`
	DPiFile  string  `json:"dpi_file"`
	Lines    int     `json:"data_lines"`
	Spacing  float64 `json:"data_spacing"`
}

func (p Params) Validate() (err error) {
	if p.Lines < 1 {
		return fmt.Errorf("matter data_lines must be positive, have %d", p.Lines)
	}
	if p.Spacing <= 0 {
		return fmt.Errorf("matter data_spacing must be positive, have %g", p.Spacing)
	}
	if p.DPhiFile == "" || p.DPiFile == "" {
		return fmt.Errorf("matter needs both dphi_file and dpi_file")
	}
	return
}

// ScalarField evaluates phi = phi_0 + dphi*T_phi(x) and
// Pi = pi_0 + dpi*T_pi(x), with x measured from the low domain corner.
type ScalarField struct {
	Params
	dphi, dpi *Table
}

func NewScalarField(p Params, dphi, dpi *Table) *ScalarField {
	if dphi.lines != dpi.lines || dphi.spacing != dpi.spacing {
		panic(fmt.Errorf("field tables differ: %d lines spacing %g and %d lines spacing %g",
			dphi.lines, dphi.spacing, dpi.lines, dpi.spacing))
	}
	return &ScalarField{Params: p, dphi: dphi, dpi: dpi}
}

// LoadScalarField reads both perturbation tables named in p.
func LoadScalarField(p Params, verbose bool) (sf *ScalarField, err error) {
	if err = p.Validate(); err != nil {
		return
	}
	dphi, err := ReadTable(p.DPhiFile, p.Lines, p.Spacing)
	if err != nil {
		return nil, fmt.Errorf("dphi: %w", err)
	}
	dpi, err := ReadTable(p.DPiFile, p.Lines, p.Spacing)
	if err != nil {
		return nil, fmt.Errorf("dpi: %w", err)
	}
	if verbose {
		for _, tb := range []struct {
			name string
			t    *Table
		}{{p.DPhiFile, dphi}, {p.DPiFile, dpi}} {
			min, max, mean := tb.t.Range()
			log.Printf("read %d^3 table %s: min %g, max %g, mean %g\n", p.Lines, tb.name, min, max, mean)
		}
	}
	return NewScalarField(p, dphi, dpi), nil
}

func (sf *ScalarField) Phi(x amr.RealVect) float64 {
	return sf.Phi0 + sf.DPhi*sf.dphi.Interpolate(x)
}

func (sf *ScalarField) Pi(x amr.RealVect) float64 {
	return sf.Pi0 + sf.DPi*sf.dpi.Interpolate(x)
}

// Potential is V(phi) = (m phi)^2 / 2.
func (sf *ScalarField) Potential(phi float64) float64 {
	mphi := sf.ScalarMass * phi
	return 0.5 * mphi * mphi
}

// EnergyDensity is rho = Pi^2/2 + V(phi).
func (sf *ScalarField) EnergyDensity(x amr.RealVect) float64 {
	pi := sf.Pi(x)
	return 0.5*pi*pi + sf.Potential(sf.Phi(x))
}

// FillRHS writes scale*rho at cell centers into component comp of the
// valid cells of rhs.
func (sf *ScalarField) FillRHS(rhs *amr.LevelData, dx, scale float64, comp int) {
	if comp < 0 || comp >= rhs.NComp() {
		panic(fmt.Errorf("component %d out of range, have %d", comp, rhs.NComp()))
	}
	rhs.Layout().ForEachBox(func(bi int) {
		fab := rhs.FAB(bi)
		rhs.ValidBox(bi).ForEach(func(iv amr.IntVect) {
			fab.Set(iv, comp, scale*sf.EnergyDensity(amr.CellCenter(iv, dx)))
		})
	})
	rhs.MarkGhostsStale()
}

// FillField writes phi and Pi at cell centers into components phiComp and
// piComp of the valid cells of ld. A negative component is skipped.
func (sf *ScalarField) FillField(ld *amr.LevelData, dx float64, phiComp, piComp int) {
	ld.Layout().ForEachBox(func(bi int) {
		fab := ld.FAB(bi)
		ld.ValidBox(bi).ForEach(func(iv amr.IntVect) {
			x := amr.CellCenter(iv, dx)
			if phiComp >= 0 {
				fab.Set(iv, phiComp, sf.Phi(x))
			}
			if piComp >= 0 {
				fab.Set(iv, piComp, sf.Pi(x))
			}
		})
	})
	ld.MarkGhostsStale()
}
