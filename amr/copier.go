package amr

import "sync"

// copyOp moves src data into the ghost region of dst. region is in dst
// index space; the source cells sit at region shifted by -shift.
type copyOp struct {
	dst, src int
	region   Box
	shift    IntVect
}

// Copier is a precomputed ghost-exchange plan for one layout and ghost
// width, covering same-level neighbors and periodic images.
type Copier struct {
	layout *DisjointBoxLayout
	ghost  int
	ops    []copyOp
	byDst  [][]int
}

func NewExchangeCopier(layout *DisjointBoxLayout, ghost int) (c *Copier) {
	c = &Copier{
		layout: layout,
		ghost:  ghost,
		byDst:  make([][]int, layout.Size()),
	}
	if ghost == 0 {
		return
	}
	shifts := layout.Domain.PeriodicShifts()
	for di, db := range layout.Boxes {
		grown := db.Grow(ghost)
		for si, sb := range layout.Boxes {
			for _, s := range shifts {
				if si == di && s == (IntVect{}) {
					continue
				}
				region := grown.Intersect(sb.Shift(s))
				if region.IsEmpty() {
					continue
				}
				c.byDst[di] = append(c.byDst[di], len(c.ops))
				c.ops = append(c.ops, copyOp{dst: di, src: si, region: region, shift: s})
			}
		}
	}
	return
}

func (c *Copier) NumOps() int { return len(c.ops) }

// Exchange performs the plan and blocks until every ghost is written.
func (c *Copier) Exchange(ld *LevelData) {
	c.layout.ForEachBox(func(di int) {
		for _, oi := range c.byDst[di] {
			op := c.ops[oi]
			ld.fabs[op.dst].CopyFrom(ld.fabs[op.src], op.region, op.shift)
		}
	})
	ld.ghostsValid = true
}

// PendingExchange is an exchange whose source data has been captured but
// whose ghost cells may still be in flight.
type PendingExchange struct {
	ld   *LevelData
	done chan struct{}
}

// Begin snapshots the source regions of every copy and starts writing
// them into ghost cells in the background. Valid cells may be modified
// before Finish; ghost cells must not be read until Finish returns.
func (c *Copier) Begin(ld *LevelData) (pe *PendingExchange) {
	bufs := make([][]float64, len(c.ops))
	c.layout.ForEachBox(func(di int) {
		for _, oi := range c.byDst[di] {
			op := c.ops[oi]
			bufs[oi] = ld.fabs[op.src].Pack(nil, op.region.Shift(IntVect{}.Sub(op.shift)))
		}
	})
	pe = &PendingExchange{ld: ld, done: make(chan struct{})}
	go func() {
		wg := sync.WaitGroup{}
		for di := range c.byDst {
			wg.Add(1)
			go func(di int) {
				defer wg.Done()
				for _, oi := range c.byDst[di] {
					op := c.ops[oi]
					ld.fabs[op.dst].Unpack(bufs[oi], op.region)
				}
			}(di)
		}
		wg.Wait()
		close(pe.done)
	}()
	return
}

// Finish blocks until the ghost cells are written.
func (pe *PendingExchange) Finish() {
	<-pe.done
	pe.ld.ghostsValid = true
}
