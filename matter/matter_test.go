package matter

import (
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/amrelliptic/amr"
)

// linearTable holds i + 10j + 100k.
func linearTable(lines int, spacing float64) *Table {
	t := NewTable(lines, spacing)
	for i := 0; i < lines; i++ {
		for j := 0; j < lines; j++ {
			for k := 0; k < lines; k++ {
				t.Set(i, j, k, float64(i+10*j+100*k))
			}
		}
	}
	return t
}

func TestInterpolate(t *testing.T) {
	tb := linearTable(4, 0.5)
	assert.Equal(t, 2., tb.Period())
	// Lattice points are reproduced
	assert.Equal(t, 123., tb.Interpolate(amr.RealVect{1.5, 1, 0.5}))
	// Trilinear is exact for linear data away from the wrap
	assert.InDelta(t, 0.5+10*1.25+100*2.9, tb.Interpolate(amr.RealVect{0.25, 0.625, 1.45}), 1.e-12)
	// Periodic images
	assert.InDelta(t, tb.Interpolate(amr.RealVect{0.3, 0.7, 1.1}), tb.Interpolate(amr.RealVect{2.3, -1.3, 5.1}), 1.e-12)
	// Across the wrap, between the last lattice point and the first
	assert.InDelta(t, 1.5, tb.Interpolate(amr.RealVect{1.75, 0, 0}), 1.e-12)
	assert.Equal(t, tb.At(0, 0, 0), tb.At(4, -4, 8))

	min, max, mean := tb.Range()
	assert.Equal(t, 0., min)
	assert.Equal(t, 333., max)
	assert.InDelta(t, 166.5, mean, 1.e-12)
}

func TestReadTableText(t *testing.T) {
	input := "# dphi\n0 1 2 3\n4 5\n\n6 7\n"
	tb, err := ReadTableText(strings.NewReader(input), 2, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2, 3, 4, 5, 6, 7}, tb.Elements())
	// x is slowest
	assert.Equal(t, 4., tb.At(1, 0, 0))
	assert.Equal(t, 1., tb.At(0, 0, 1))

	_, err = ReadTableText(strings.NewReader("1 2 3"), 2, 1)
	assert.Error(t, err)
	_, err = ReadTableText(strings.NewReader("1 2 x 4 5 6 7 8"), 2, 1)
	assert.Error(t, err)
	assert.Panics(t, func() { NewTable(0, 1) })
}

func TestReadTableFiles(t *testing.T) {
	dir := t.TempDir()
	tb := linearTable(3, 0.25)

	ncPath := filepath.Join(dir, "dphi.nc")
	f, err := os.Create(ncPath)
	require.NoError(t, err)
	require.NoError(t, tb.WriteCDF(f, "dphi"))
	require.NoError(t, f.Close())
	back, err := ReadTable(ncPath, 3, 0.25)
	require.NoError(t, err)
	assert.Equal(t, tb.Elements(), back.Elements())
	_, err = ReadTable(ncPath, 4, 0.25)
	assert.Error(t, err)

	var sb strings.Builder
	for _, v := range tb.Elements() {
		sb.WriteString(strconv.FormatFloat(v, 'g', -1, 64) + "\n")
	}
	txtPath := filepath.Join(dir, "dpi.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte(sb.String()), 0644))
	back, err = ReadTable(txtPath, 3, 0.25)
	require.NoError(t, err)
	assert.Equal(t, tb.Elements(), back.Elements())

	_, err = ReadTable(filepath.Join(dir, "missing.txt"), 3, 0.25)
	assert.Error(t, err)
}

func TestEnergyDensity(t *testing.T) {
	dphi, dpi := NewTable(2, 1), NewTable(2, 1)
	for i := range dphi.Elements() {
		dphi.Elements()[i] = 1
		dpi.Elements()[i] = -2
	}
	sf := NewScalarField(Params{Phi0: 1, DPhi: 0.5, Pi0: 0.5, DPi: 0.25, ScalarMass: 2}, dphi, dpi)
	x := amr.RealVect{0.3, 1.7, 0.9}
	assert.Equal(t, 1.5, sf.Phi(x))
	assert.Equal(t, 0., sf.Pi(x))
	assert.Equal(t, 4.5, sf.Potential(1.5))
	assert.Equal(t, 4.5, sf.EnergyDensity(x))

	domain := amr.NewProblemDomain(amr.NewBox(amr.IntVect{}, amr.Unit().Scale(3)), [amr.SpaceDim]bool{true, true, true})
	layout := amr.NewDisjointBoxLayout(amr.SplitDomain(domain.Box, 2), domain, 2)
	rhs := amr.NewLevelData(layout, 2, 1)
	sf.FillRHS(rhs, 0.5, 2, 1)
	assert.InDelta(t, 9., rhs.Norm(0, 1, nil), 1.e-14)
	assert.Equal(t, 0., rhs.Norm(0, 0, nil))
	sf.FillField(rhs, 0.5, 0, -1)
	assert.InDelta(t, 1.5*64, rhs.Sum(0, nil), 1.e-12)
	assert.Panics(t, func() { sf.FillRHS(rhs, 0.5, 1, 2) })
	assert.Panics(t, func() { NewScalarField(Params{}, dphi, NewTable(3, 1)) })
}

func TestLoadScalarField(t *testing.T) {
	_, err := LoadScalarField(Params{Lines: 2, Spacing: 1}, false)
	assert.Error(t, err)

	dir := t.TempDir()
	p := Params{
		Phi0: 0, DPhi: 1, Pi0: 0, DPi: 1, ScalarMass: 1,
		DPhiFile: filepath.Join(dir, "dphi.txt"),
		DPiFile:  filepath.Join(dir, "dpi.txt"),
		Lines:    2, Spacing: 1,
	}
	require.NoError(t, os.WriteFile(p.DPhiFile, []byte("1 1 1 1 1 1 1 1\n"), 0644))
	require.NoError(t, os.WriteFile(p.DPiFile, []byte("2 2 2 2 2 2 2 2\n"), 0644))
	sf, err := LoadScalarField(p, true)
	require.NoError(t, err)
	assert.InDelta(t, 0.5*4+0.5, sf.EnergyDensity(amr.RealVect{0.1, 0.2, 1.3}), 1.e-14)
	assert.False(t, math.IsNaN(sf.Phi(amr.RealVect{-7, 3, 100})))
}
