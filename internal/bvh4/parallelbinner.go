// Copyright (C) 2022-2026, VigilantDoomer
//
// This file is part of bvh4build.
//
// bvh4build is free software: you can redistribute it
// and/or modify it under the terms of GNU General Public License
// as published by the Free Software Foundation, either version 2 of
// the License, or (at your option) any later version.
//
// bvh4build is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with bvh4build.  If not, see <https://www.gnu.org/licenses/>.
package bvh4

import "sync"

// ParallelBinner distributes binning and partitioning of one BuildRecord
// across T threads (spec.md §4.4). It owns a scratch buffer at least
// numPrimitives long; DESIGN.md documents the decision to give it an
// independent scratch slice rather than overloading the primitive output
// allocator's backing memory, per the "cleaner, does not affect
// correctness" option noted in spec.md §9.
type ParallelBinner struct {
	scratch []PrimRef
}

func NewParallelBinner(numPrimitives int) *ParallelBinner {
	return &ParallelBinner{scratch: make([]PrimRef, numPrimitives)}
}

type threadHistogram struct {
	bins [3][numBins]binEntry
}

// ObjectSplitParallel is the parallel counterpart to ObjectSplit: bin phase
// distributed across threadCount goroutines, cost evaluation identical to
// the sequential binner (same tie-break rule), partition phase a two-pass
// stable scatter through pb.scratch (spec.md §4.4).
func (pb *ParallelBinner) ObjectSplitParallel(prims []PrimRef, r BuildRecord, logSAHBlockSize int, threadCount int) (left, right BuildRecord) {
	n := r.Size()
	if threadCount < 1 {
		threadCount = 1
	}
	if threadCount > n {
		threadCount = n
	}
	if threadCount <= 1 {
		return ObjectSplit(prims, r, logSAHBlockSize)
	}

	sub := prims[r.Begin:r.End]
	mapping := newBinMapping(r.Info.CentBounds)
	chunk := (n + threadCount - 1) / threadCount
	hists := make([]threadHistogram, threadCount)

	var wg sync.WaitGroup
	for t := 0; t < threadCount; t++ {
		lo := t * chunk
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		if lo >= hi {
			continue
		}
		wg.Add(1)
		go func(t, lo, hi int) {
			defer wg.Done()
			h := &hists[t]
			for i := lo; i < hi; i++ {
				c := sub[i].Centroid()
				for a := Axis(0); a < 3; a++ {
					if !mapping.splittable(a) {
						continue
					}
					b := mapping.bin(c, a)
					e := &h.bins[a][b]
					e.count++
					e.bounds.Extend(sub[i].Bounds)
				}
			}
		}(t, lo, hi)
	}
	wg.Wait()

	// Reduce the T per-thread histograms into one 3xB cube.
	ob := objectBin{mapping: mapping}
	for _, h := range hists {
		for a := Axis(0); a < 3; a++ {
			for b := 0; b < numBins; b++ {
				ob.bins[a][b].count += h.bins[a][b].count
				ob.bins[a][b].bounds.Extend(h.bins[a][b].bounds)
			}
		}
	}

	best := ob.bestSplit(logSAHBlockSize)

	var mid int
	if best.valid() {
		mid = r.Begin + pb.partitionParallel(sub, mapping, best.axis, best.pos, threadCount)
	} else {
		mid = partitionMedian(r.Begin, r.End)
	}
	if mid <= r.Begin || mid >= r.End {
		mid = partitionMedian(r.Begin, r.End)
	}

	leftInfo := Pinfo(prims[r.Begin:mid])
	rightInfo := Pinfo(prims[mid:r.End])

	left = BuildRecord{Begin: r.Begin, End: mid, Info: leftInfo, Depth: r.Depth + 1}
	right = BuildRecord{Begin: mid, End: r.End, Info: rightInfo, Depth: r.Depth + 1}
	return left, right
}

// partitionParallel implements spec.md §4.4's two-pass partition: pass 1
// counts, per chunk, how many of its prims go left/right; a prefix sum
// turns those counts into destination offsets in pb.scratch; pass 2
// scatters each chunk's prims into its assigned offsets. Left precedes
// right in the result, and within a side the chunk order (and therefore
// the within-chunk relative order) is preserved, satisfying the ordering
// guarantee of spec.md §4.4.
func (pb *ParallelBinner) partitionParallel(sub []PrimRef, mapping binMapping, axis Axis, s int, threadCount int) int {
	n := len(sub)
	chunk := (n + threadCount - 1) / threadCount
	leftCounts := make([]int, threadCount)
	rightCounts := make([]int, threadCount)

	var wg sync.WaitGroup
	for t := 0; t < threadCount; t++ {
		lo := t * chunk
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		if lo >= hi {
			continue
		}
		wg.Add(1)
		go func(t, lo, hi int) {
			defer wg.Done()
			l, rr := 0, 0
			for i := lo; i < hi; i++ {
				if mapping.bin(sub[i].Centroid(), axis) < s {
					l++
				} else {
					rr++
				}
			}
			leftCounts[t] = l
			rightCounts[t] = rr
		}(t, lo, hi)
	}
	wg.Wait()

	leftOffsets := make([]int, threadCount)
	rightOffsets := make([]int, threadCount)
	totalLeft := 0
	for t := 0; t < threadCount; t++ {
		leftOffsets[t] = totalLeft
		totalLeft += leftCounts[t]
	}
	totalRight := 0
	for t := 0; t < threadCount; t++ {
		rightOffsets[t] = totalLeft + totalRight
		totalRight += rightCounts[t]
	}

	scratch := pb.scratch[:n]
	for t := 0; t < threadCount; t++ {
		lo := t * chunk
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		if lo >= hi {
			continue
		}
		wg.Add(1)
		go func(t, lo, hi int) {
			defer wg.Done()
			li := leftOffsets[t]
			ri := rightOffsets[t]
			for i := lo; i < hi; i++ {
				if mapping.bin(sub[i].Centroid(), axis) < s {
					scratch[li] = sub[i]
					li++
				} else {
					scratch[ri] = sub[i]
					ri++
				}
			}
		}(t, lo, hi)
	}
	wg.Wait()

	copy(sub, scratch)
	return totalLeft
}
