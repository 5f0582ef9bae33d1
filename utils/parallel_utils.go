package utils

import (
	"fmt"
	"runtime"
	"sync"
)

// PartitionMap statically assigns a contiguous run of items (boxes of a
// layout) to each of ParallelDegree workers.
type PartitionMap struct {
	MaxIndex       int // MaxIndex is partitioned into ParallelDegree partitions
	ParallelDegree int
	Partitions     [][2]int // Beginning and end index of partitions
}

func NewPartitionMap(ParallelDegree, maxIndex int) (pm *PartitionMap) {
	if ParallelDegree < 1 {
		ParallelDegree = 1
	}
	pm = &PartitionMap{
		MaxIndex:       maxIndex,
		ParallelDegree: ParallelDegree,
		Partitions:     make([][2]int, ParallelDegree),
	}
	for np := 0; np < ParallelDegree; np++ {
		pm.Partitions[np] = pm.Split1D(np)
	}
	return
}

// ParallelDegree picks the worker count for nItems: procLimit when set,
// otherwise the CPU count, never more workers than items.
func ParallelDegree(procLimit, nItems int) (np int) {
	if procLimit > 0 {
		np = procLimit
	} else {
		np = runtime.NumCPU()
	}
	if np > nItems {
		np = nItems
	}
	if np < 1 {
		np = 1
	}
	return
}

// Split1D returns the [begin,end) range owned by worker, with a maximum
// imbalance of one item; the remainder is spread over the first workers.
func (pm *PartitionMap) Split1D(worker int) (bucket [2]int) {
	var (
		nPart     = pm.MaxIndex / pm.ParallelDegree
		remainder = pm.MaxIndex % pm.ParallelDegree
		extra     = worker
		add       int
	)
	if worker >= remainder {
		extra = remainder
	} else {
		add = 1
	}
	bucket[0] = worker*nPart + extra
	bucket[1] = bucket[0] + nPart + add
	return
}

func (pm *PartitionMap) GetBucketRange(bucketNum int) (kMin, kMax int) {
	kMin, kMax = pm.Partitions[bucketNum][0], pm.Partitions[bucketNum][1]
	return
}

// Owner returns the worker owning item k.
func (pm *PartitionMap) Owner(k int) (bucketNum int) {
	if k < 0 || k >= pm.MaxIndex {
		panic(fmt.Errorf("item %d out of partition range [0,%d)", k, pm.MaxIndex))
	}
	// Initial guess, then walk at most one bucket either way
	bucketNum = pm.ParallelDegree * k / pm.MaxIndex
	for {
		lo, hi := pm.GetBucketRange(bucketNum)
		switch {
		case k < lo:
			bucketNum--
		case k >= hi:
			bucketNum++
		default:
			return
		}
	}
}

// ForEach runs f once per item, with each worker walking its own range in
// its own goroutine. It returns once every worker is done. A panic in any
// worker is raised again in the caller after all workers stop.
func (pm *PartitionMap) ForEach(f func(worker, k int)) {
	if pm.ParallelDegree == 1 {
		for k := 0; k < pm.MaxIndex; k++ {
			f(0, k)
		}
		return
	}
	var (
		wg        = sync.WaitGroup{}
		panicOnce sync.Once
		panicVal  interface{}
	)
	for np := 0; np < pm.ParallelDegree; np++ {
		wg.Add(1)
		go func(np int) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					panicOnce.Do(func() { panicVal = r })
				}
			}()
			kMin, kMax := pm.GetBucketRange(np)
			for k := kMin; k < kMax; k++ {
				f(np, k)
			}
		}(np)
	}
	wg.Wait()
	if panicVal != nil {
		panic(panicVal)
	}
}
