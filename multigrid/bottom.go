package multigrid

import (
	"fmt"
	"log"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/amrelliptic/amr"
	"github.com/notargets/amrelliptic/operator"
	"github.com/notargets/amrelliptic/utils"
)

type BottomSolverType uint8

const (
	BiCGStab BottomSolverType = iota
	RelaxBottom
)

var (
	BottomNames = map[string]BottomSolverType{
		"bicgstab": BiCGStab,
		"krylov":   BiCGStab,
		"relax":    RelaxBottom,
	}
	BottomNamesRev = map[BottomSolverType]string{
		BiCGStab:    "BiCGStab",
		RelaxBottom: "Relaxation",
	}
)

func (bt BottomSolverType) Print() (txt string) {
	var ok bool
	if txt, ok = BottomNamesRev[bt]; !ok {
		txt = "Unknown"
	}
	return
}

// NewBottomSolverType maps a label to a bottom solver; an empty label
// selects BiCGStab.
func NewBottomSolverType(label string) (bt BottomSolverType) {
	var ok bool
	if len(label) == 0 {
		return BiCGStab
	}
	label = strings.ToLower(strings.TrimSpace(label))
	if bt, ok = BottomNames[label]; !ok {
		panic(fmt.Errorf("unable to use bottom solver named [%s]", label))
	}
	return
}

// cellIndex numbers the valid cells of a layout, box by box.
type cellIndex struct {
	layout *amr.DisjointBoxLayout
	offset []int
	n      int
}

func newCellIndex(layout *amr.DisjointBoxLayout) (ci *cellIndex) {
	ci = &cellIndex{layout: layout, offset: make([]int, layout.Size())}
	for bi, b := range layout.Boxes {
		ci.offset[bi] = ci.n
		ci.n += b.NumPts()
	}
	return
}

func (ci *cellIndex) global(bi int, iv amr.IntVect) int {
	var (
		b  = ci.layout.Boxes[bi]
		nx = b.Size(0)
		ny = b.Size(1)
	)
	return ci.offset[bi] + (iv[2]-b.Lo[2])*nx*ny + (iv[1]-b.Lo[1])*nx + iv[0] - b.Lo[0]
}

// lookup returns the global index of iv after periodic wrapping.
func (ci *cellIndex) lookup(iv amr.IntVect) (k int, ok bool) {
	bi, w, ok := ci.layout.Find(iv)
	if !ok {
		return -1, false
	}
	return ci.global(bi, w), true
}

// colorCounts picks per direction a color count of at least 5 that divides
// the domain length, so that two cells of one color are never within two
// cells of each other, periodic images included.
func colorCounts(domain amr.Box) (m amr.IntVect) {
	for d := 0; d < amr.SpaceDim; d++ {
		n := domain.Size(d)
		m[d] = n
		for c := 5; c < n; c++ {
			if n%c == 0 {
				m[d] = c
				break
			}
		}
	}
	return
}

func colorOf(iv, lo, m amr.IntVect) (c int) {
	stride := 1
	for d := 0; d < amr.SpaceDim; d++ {
		k := ((iv[d]-lo[d])%m[d] + m[d]) % m[d]
		c += k * stride
		stride *= m[d]
	}
	return
}

// supportOffsets are the cells whose value can enter the stencil of a row:
// the row itself, face neighbors, and cells two away along an axis through
// boundary ghost extrapolation.
var supportOffsets = func() (offs []amr.IntVect) {
	offs = append(offs, amr.IntVect{})
	for d := 0; d < amr.SpaceDim; d++ {
		for _, s := range []int{-2, -1, 1, 2} {
			var o amr.IntVect
			o[d] = s
			offs = append(offs, o)
		}
	}
	return
}()

// AssembleOperator builds the read-only matrix of the homogeneous operator
// for each component by probing it with one unit vector per color.
func AssembleOperator(op *operator.VariableCoeffOp, verbose bool) (A []utils.CSR) {
	var (
		layout = op.Layout
		ci     = newCellIndex(layout)
		domain = layout.Domain.Box
		m      = colorCounts(domain)
		nColor = m[0] * m[1] * m[2]
		seed   = op.Create()
		out    = op.Create()
		doks   = make([]utils.DOK, op.NComp)
	)
	for c := range doks {
		doks[c] = utils.NewDOK(ci.n, ci.n)
	}
	for color := 0; color < nColor; color++ {
		seed.SetVal(0)
		for bi, b := range layout.Boxes {
			fab := seed.FAB(bi)
			b.ForEach(func(iv amr.IntVect) {
				if colorOf(iv, domain.Lo, m) == color {
					fab.SetValRegion(1, amr.NewBox(iv, iv), -1)
				}
			})
		}
		op.ApplyOp(out, seed, true)
		for bi, b := range layout.Boxes {
			fab := out.FAB(bi)
			b.ForEach(func(iv amr.IntVect) {
				row := ci.global(bi, iv)
				for _, o := range supportOffsets {
					src := iv.Add(o)
					w, ok := layout.Domain.Wrap(src)
					if !ok || colorOf(w, domain.Lo, m) != color {
						continue
					}
					col, ok := ci.lookup(w)
					if !ok {
						continue
					}
					for c := 0; c < op.NComp; c++ {
						doks[c].Set(row, col, fab.Get(iv, c))
					}
					break
				}
			})
		}
	}
	A = make([]utils.CSR, op.NComp)
	for c := range doks {
		if verbose {
			log.Printf("bottom operator component %d: %d rows, %d nonzeros\n", c, ci.n, doks[c].NNZ())
		}
		A[c] = doks[c].SetReadOnly(fmt.Sprintf("bottom operator component %d", c)).ToCSR()
	}
	return
}

// solveBiCGStab solves A x = b from the initial x, returning the number
// of iterations used and the final relative residual.
func solveBiCGStab(A utils.CSR, x, b *mat.VecDense, tol float64, maxIter int) (iters int, rel float64, err error) {
	n := b.Len()
	var (
		r     = mat.NewVecDense(n, nil)
		rHat  = mat.NewVecDense(n, nil)
		p     = mat.NewVecDense(n, nil)
		v     = mat.NewVecDense(n, nil)
		s     = mat.NewVecDense(n, nil)
		tv    = mat.NewVecDense(n, nil)
		bNorm = mat.Norm(b, 2)
	)
	if bNorm == 0 {
		x.Zero()
		return 0, 0, nil
	}
	A.MulVec(r, x)
	r.SubVec(b, r)
	rHat.CopyVec(r)
	rho, alpha, omega := 1., 1., 1.
	for iters = 1; iters <= maxIter; iters++ {
		rhoNew := mat.Dot(rHat, r)
		if rhoNew == 0 {
			return iters, mat.Norm(r, 2) / bNorm, fmt.Errorf("BiCGStab breakdown, rho = 0 at iteration %d", iters)
		}
		if iters == 1 {
			p.CopyVec(r)
		} else {
			beta := (rhoNew / rho) * (alpha / omega)
			// p = r + beta*(p - omega*v)
			p.AddScaledVec(p, -omega, v)
			p.AddScaledVec(r, beta, p)
		}
		rho = rhoNew
		A.MulVec(v, p)
		alpha = rho / mat.Dot(rHat, v)
		s.AddScaledVec(r, -alpha, v)
		if rel = mat.Norm(s, 2) / bNorm; rel <= tol {
			x.AddScaledVec(x, alpha, p)
			return
		}
		A.MulVec(tv, s)
		tt := mat.Dot(tv, tv)
		if tt == 0 {
			return iters, rel, fmt.Errorf("BiCGStab breakdown, t = 0 at iteration %d", iters)
		}
		omega = mat.Dot(tv, s) / tt
		x.AddScaledVec(x, alpha, p)
		x.AddScaledVec(x, omega, s)
		r.AddScaledVec(s, -omega, tv)
		if rel = mat.Norm(r, 2) / bNorm; rel <= tol {
			return
		}
		if omega == 0 || math.IsNaN(rel) {
			return iters, rel, fmt.Errorf("BiCGStab breakdown, omega = %g at iteration %d", omega, iters)
		}
	}
	return iters - 1, rel, fmt.Errorf("BiCGStab reached %d iterations at relative residual %g", maxIter, rel)
}

// bottomSolver solves the coarsest multigrid level.
type bottomSolver struct {
	op      *operator.VariableCoeffOp
	kind    BottomSolverType
	A       []utils.CSR
	index   *cellIndex
	tol     float64
	maxIter int
	smooth  int
	verbose bool
}

func newBottomSolver(op *operator.VariableCoeffOp, kind BottomSolverType, maxCells int,
	tol float64, maxIter, smooth int, verbose bool) (bs *bottomSolver) {
	bs = &bottomSolver{op: op, kind: kind, tol: tol, maxIter: maxIter, smooth: smooth, verbose: verbose}
	if kind == BiCGStab && op.Layout.NumCells() > maxCells {
		if verbose {
			log.Printf("bottom level has %d cells, more than %d: relaxing instead of BiCGStab\n",
				op.Layout.NumCells(), maxCells)
		}
		bs.kind = RelaxBottom
	}
	if bs.kind == BiCGStab {
		bs.index = newCellIndex(op.Layout)
		bs.A = AssembleOperator(op, verbose)
	}
	return
}

// solve sets e to an approximate solution of L(e) = r, homogeneous.
func (bs *bottomSolver) solve(e, r *amr.LevelData) {
	if bs.kind == RelaxBottom {
		bs.op.Relax(e, r, bs.smooth)
		return
	}
	var (
		n      = bs.index.n
		layout = bs.op.Layout
	)
	for c := 0; c < bs.op.NComp; c++ {
		x := mat.NewVecDense(n, nil)
		b := mat.NewVecDense(n, nil)
		for bi, box := range layout.Boxes {
			var (
				eFab = e.FAB(bi)
				rFab = r.FAB(bi)
			)
			box.ForEach(func(iv amr.IntVect) {
				k := bs.index.global(bi, iv)
				x.SetVec(k, eFab.Get(iv, c))
				b.SetVec(k, rFab.Get(iv, c))
			})
		}
		iters, rel, err := solveBiCGStab(bs.A[c], x, b, bs.tol, bs.maxIter)
		if err == nil && utils.IsNan(x.RawVector().Data) {
			err = fmt.Errorf("BiCGStab produced NaN after %d iterations", iters)
		}
		if err != nil {
			if bs.verbose {
				log.Printf("bottom solve, component %d: %v; relaxing\n", c, err)
			}
			bs.op.Relax(e, r, bs.smooth)
			return
		}
		if bs.verbose {
			log.Printf("bottom solve, component %d: %d iterations, relative residual %8.3e\n", c, iters, rel)
		}
		for bi, box := range layout.Boxes {
			eFab := e.FAB(bi)
			box.ForEach(func(iv amr.IntVect) {
				eFab.Set(iv, c, x.AtVec(bs.index.global(bi, iv)))
			})
		}
	}
	e.MarkGhostsStale()
}
