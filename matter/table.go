package matter

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats"

	"github.com/notargets/amrelliptic/amr"
)

// Table is a periodic lines^3 sample of a field on a uniform lattice with
// the given spacing. Entries are ordered with x slowest and z fastest.
type Table struct {
	lines   int
	spacing float64
	data    *sparse.DenseArray
}

func NewTable(lines int, spacing float64) *Table {
	if lines < 1 || spacing <= 0 {
		panic(fmt.Errorf("invalid table definition: %d lines, spacing %g", lines, spacing))
	}
	return &Table{lines: lines, spacing: spacing, data: sparse.ZerosDense(lines, lines, lines)}
}

func (t *Table) Lines() int          { return t.lines }
func (t *Table) Spacing() float64    { return t.spacing }
func (t *Table) Period() float64     { return float64(t.lines) * t.spacing }
func (t *Table) Elements() []float64 { return t.data.Elements }

func (t *Table) wrap(i int) int {
	return ((i % t.lines) + t.lines) % t.lines
}

// At returns the sample at lattice point (i, j, k), wrapped periodically.
func (t *Table) At(i, j, k int) float64 {
	return t.data.Get(t.wrap(i), t.wrap(j), t.wrap(k))
}

func (t *Table) Set(i, j, k int, val float64) {
	t.data.Set(val, t.wrap(i), t.wrap(j), t.wrap(k))
}

// Interpolate evaluates the trilinear interpolant at x, treating the
// table as periodic with period lines*spacing in every direction.
func (t *Table) Interpolate(x amr.RealVect) float64 {
	var (
		lo   [amr.SpaceDim]int
		frac [amr.SpaceDim]float64
	)
	for d := 0; d < amr.SpaceDim; d++ {
		s := x[d] / t.spacing
		f := math.Floor(s)
		lo[d] = int(f)
		frac[d] = s - f
	}
	var val float64
	for corner := 0; corner < 8; corner++ {
		w := 1.
		var idx [amr.SpaceDim]int
		for d := 0; d < amr.SpaceDim; d++ {
			if corner&(1<<d) != 0 {
				idx[d] = lo[d] + 1
				w *= frac[d]
			} else {
				idx[d] = lo[d]
				w *= 1 - frac[d]
			}
		}
		if w != 0 {
			val += w * t.At(idx[0], idx[1], idx[2])
		}
	}
	return val
}

// Range returns the smallest and largest samples and their mean.
func (t *Table) Range() (min, max, mean float64) {
	el := t.data.Elements
	return floats.Min(el), floats.Max(el), floats.Sum(el) / float64(len(el))
}

// ReadTableText reads lines^3 whitespace separated numbers. Lines starting
// with # are skipped.
func ReadTableText(r io.Reader, lines int, spacing float64) (t *Table, err error) {
	t = NewTable(lines, spacing)
	var (
		reader = bufio.NewReader(r)
		el     = t.data.Elements
		n      int
	)
	for n < len(el) {
		line, rerr := reader.ReadString('\n')
		line = strings.TrimSpace(line)
		if len(line) != 0 && !strings.HasPrefix(line, "#") {
			for _, tok := range strings.Fields(line) {
				if n == len(el) {
					break
				}
				if _, err = fmt.Sscanf(tok, "%g", &el[n]); err != nil {
					return nil, fmt.Errorf("table entry %d, unable to read number from [%s]: %w", n, tok, err)
				}
				n++
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return nil, fmt.Errorf("reading table: %w", rerr)
		}
	}
	if n != len(el) {
		return nil, fmt.Errorf("table has %d entries, need %d for %d lines", n, len(el), lines)
	}
	return
}

// ReadTableCDF reads variable name, a lines^3 array, from a NetCDF file.
func ReadTableCDF(rw cdf.ReaderWriterAt, name string, spacing float64) (t *Table, err error) {
	f, err := cdf.Open(rw)
	if err != nil {
		return nil, fmt.Errorf("opening table file: %w", err)
	}
	dims := f.Header.Lengths(name)
	if len(dims) != 3 || dims[0] != dims[1] || dims[1] != dims[2] {
		return nil, fmt.Errorf("table variable %s has dimensions %v, need a cube", name, dims)
	}
	t = NewTable(dims[0], spacing)
	r := f.Reader(name, nil, nil)
	buf := r.Zero(len(t.data.Elements))
	if _, err = r.Read(buf); err != nil {
		return nil, fmt.Errorf("reading table variable %s: %w", name, err)
	}
	vals, ok := buf.([]float64)
	if !ok {
		return nil, fmt.Errorf("table variable %s is not double precision", name)
	}
	copy(t.data.Elements, vals)
	return
}

// WriteCDF writes the table as variable name with its spacing attached.
func (t *Table) WriteCDF(w cdf.ReaderWriterAt, name string) (err error) {
	h := cdf.NewHeader([]string{"x", "y", "z"}, []int{t.lines, t.lines, t.lines})
	h.AddVariable(name, []string{"x", "y", "z"}, []float64{0})
	h.AddAttribute(name, "spacing", []float64{t.spacing})
	h.Define()
	f, err := cdf.Create(w, h)
	if err != nil {
		return fmt.Errorf("creating table file: %w", err)
	}
	wr := f.Writer(name, []int{0, 0, 0}, []int{t.lines, t.lines, t.lines})
	if _, err = wr.Write(t.data.Elements); err != nil {
		return fmt.Errorf("writing table variable %s: %w", name, err)
	}
	return cdf.UpdateNumRecs(w)
}

// ReadTable reads a table file, NetCDF when the name ends in .nc and
// whitespace separated text otherwise. NetCDF tables hold one variable
// named after the file.
func ReadTable(path string, lines int, spacing float64) (t *Table, err error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open table file %s: %w", path, err)
	}
	defer file.Close()
	if ext := filepath.Ext(path); ext == ".nc" {
		name := strings.TrimSuffix(filepath.Base(path), ext)
		if t, err = ReadTableCDF(file, name, spacing); err != nil {
			return
		}
		if t.lines != lines {
			return nil, fmt.Errorf("table file %s has %d lines, expected %d", path, t.lines, lines)
		}
		return
	}
	return ReadTableText(file, lines, spacing)
}
