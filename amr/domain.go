package amr

// ProblemDomain is the index-space extent of a level plus its periodicity.
type ProblemDomain struct {
	Box      Box
	Periodic [SpaceDim]bool
}

func NewProblemDomain(b Box, periodic [SpaceDim]bool) ProblemDomain {
	return ProblemDomain{Box: b, Periodic: periodic}
}

func (pd ProblemDomain) Coarsen(r int) ProblemDomain {
	return ProblemDomain{Box: pd.Box.Coarsen(r), Periodic: pd.Periodic}
}

func (pd ProblemDomain) Refine(r int) ProblemDomain {
	return ProblemDomain{Box: pd.Box.Refine(r), Periodic: pd.Periodic}
}

func (pd ProblemDomain) IsPeriodic(d int) bool { return pd.Periodic[d] }

func (pd ProblemDomain) AnyPeriodic() bool {
	return pd.Periodic[0] || pd.Periodic[1] || pd.Periodic[2]
}

// PeriodicShifts lists every image translation of the domain, the zero
// shift first.
func (pd ProblemDomain) PeriodicShifts() (shifts []IntVect) {
	shifts = []IntVect{{}}
	for d := 0; d < SpaceDim; d++ {
		if !pd.Periodic[d] {
			continue
		}
		L := pd.Box.Size(d)
		n := len(shifts)
		for i := 0; i < n; i++ {
			for _, sgn := range []int{-1, 1} {
				s := shifts[i]
				s[d] += sgn * L
				shifts = append(shifts, s)
			}
		}
	}
	return
}

// Wrap maps iv into the domain through periodic directions. ok is false
// when iv lies outside the domain in a non-periodic direction.
func (pd ProblemDomain) Wrap(iv IntVect) (w IntVect, ok bool) {
	w = iv
	for d := 0; d < SpaceDim; d++ {
		lo, hi := pd.Box.Lo[d], pd.Box.Hi[d]
		if w[d] >= lo && w[d] <= hi {
			continue
		}
		if !pd.Periodic[d] {
			return w, false
		}
		L := hi - lo + 1
		w[d] = lo + ((w[d]-lo)%L+L)%L
	}
	return w, true
}

// OnPhysicalBoundary reports whether the face of b on side (lo when
// side < 0) in direction d lies on a non-periodic domain face.
func (pd ProblemDomain) OnPhysicalBoundary(b Box, d, side int) bool {
	if pd.Periodic[d] {
		return false
	}
	if side < 0 {
		return b.Lo[d] <= pd.Box.Lo[d]
	}
	return b.Hi[d] >= pd.Box.Hi[d]
}
