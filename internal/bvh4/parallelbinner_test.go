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

// parallelbinner_test.go
package bvh4

import (
	"math/rand"
	"testing"
)

func randomPrimRefs(n int, seed int64) []PrimRef {
	src := rand.New(rand.NewSource(seed))
	prims := make([]PrimRef, n)
	for i := range prims {
		x, y, z := src.Float32()*100, src.Float32()*100, src.Float32()*100
		prims[i] = PrimRef{
			Bounds: AABB{Lower: Vec3{X: x, Y: y, Z: z}, Upper: Vec3{X: x + 1, Y: y + 1, Z: z + 1}},
			ID:     PrimID{GeomID: 0, PrimID: uint32(i)},
		}
	}
	return prims
}

// ObjectSplitParallel must choose the same split (axis, position, and
// resulting left/right counts) as the sequential binner, since both
// evaluate the identical binned-SAH cost function (spec.md §4.4).
func TestObjectSplitParallelMatchesSequential(t *testing.T) {
	base := randomPrimRefs(2000, 11)

	seqPrims := append([]PrimRef(nil), base...)
	r := BuildRecord{Begin: 0, End: len(seqPrims), Info: Pinfo(seqPrims)}
	seqLeft, seqRight := ObjectSplit(seqPrims, r, 2)

	for _, threads := range []int{2, 4, 8} {
		parPrims := append([]PrimRef(nil), base...)
		pb := NewParallelBinner(len(parPrims))
		pr := BuildRecord{Begin: 0, End: len(parPrims), Info: Pinfo(parPrims)}
		parLeft, parRight := pb.ObjectSplitParallel(parPrims, pr, 2, threads)

		if parLeft.Size() != seqLeft.Size() || parRight.Size() != seqRight.Size() {
			t.Fatalf("threads=%d: split sizes %d/%d, want %d/%d",
				threads, parLeft.Size(), parRight.Size(), seqLeft.Size(), seqRight.Size())
		}

		seqLeftIDs := idSet(seqPrims[seqLeft.Begin:seqLeft.End])
		parLeftIDs := idSet(parPrims[parLeft.Begin:parLeft.End])
		if !sameSet(seqLeftIDs, parLeftIDs) {
			t.Fatalf("threads=%d: left side contains a different set of primitives than the sequential split", threads)
		}
	}
}

// Within each side, partitionParallel must preserve the original relative
// order of the primitives (spec.md §4.4's ordering guarantee): ID.PrimID
// doubles as the original index here, so a side is ordered correctly iff
// its PrimIDs appear in strictly increasing order after the split.
func TestObjectSplitParallelPreservesOrderWithinSide(t *testing.T) {
	base := randomPrimRefs(500, 99)
	pb := NewParallelBinner(len(base))
	r := BuildRecord{Begin: 0, End: len(base), Info: Pinfo(base)}
	left, right := pb.ObjectSplitParallel(base, r, 2, 4)

	checkOrdered := func(rec BuildRecord) {
		last := -1
		for i := rec.Begin; i < rec.End; i++ {
			idx := int(base[i].ID.PrimID)
			if idx <= last {
				t.Fatalf("relative order not preserved: PrimID %d follows %d", idx, last)
			}
			last = idx
		}
	}
	checkOrdered(left)
	checkOrdered(right)
}

func idSet(prims []PrimRef) map[PrimID]bool {
	m := make(map[PrimID]bool, len(prims))
	for _, p := range prims {
		m[p.ID] = true
	}
	return m
}

func sameSet(a, b map[PrimID]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}
