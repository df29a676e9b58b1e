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

import "sync/atomic"

const (
	blockSize  = 4096 // sub-allocator refill granularity, 4 KiB aligned
	allocAlign = 16
)

// BlockAllocator hands out 16-aligned regions from a single reserved byte
// region via a lock-free bump pointer (spec.md §4.1). It never grows: a
// request that would push next past reserved fails with OutOfMemoryError.
// Concurrent Malloc calls are safe; the fast path contends only on the
// atomic next counter, never on a lock.
type BlockAllocator struct {
	name     string
	data     []byte
	next     int64 // atomic, offset of the next ungranted byte
	reserved int64
}

// NewBlockAllocator reserves a contiguous region of the given size. reserved
// must already include any "additional blocks" padding the caller wants
// (spec.md §4.1: threadCount extra blocks to absorb per-thread fragmentation).
func NewBlockAllocator(name string, reserved int) *BlockAllocator {
	return &BlockAllocator{
		name:     name,
		data:     make([]byte, reserved),
		reserved: int64(reserved),
	}
}

// Reset rewinds the allocator to the start of its region. Called once at
// build start; memory is otherwise owned until the allocator (and its
// owning BVH4) is discarded (spec.md §4.1, Lifecycle).
func (a *BlockAllocator) Reset() {
	atomic.StoreInt64(&a.next, 0)
}

// grantBlock atomically reserves a block of at least size bytes (rounded up
// to blockSize, or to the next multiple of allocAlign if size exceeds
// blockSize, so every block starts 16-aligned) and returns its byte offset,
// or ok=false if the reservation is exhausted.
func (a *BlockAllocator) grantBlock(size int) (offset int64, ok bool) {
	want := int64(blockSize)
	if int64(size) > want {
		want = alignUp(int64(size), allocAlign)
	}
	for {
		cur := atomic.LoadInt64(&a.next)
		next := cur + want
		if next > a.reserved {
			return 0, false
		}
		if atomic.CompareAndSwapInt64(&a.next, cur, next) {
			return cur, true
		}
	}
}

// Used reports the number of bytes granted so far, for statistics.
func (a *BlockAllocator) Used() int64 { return atomic.LoadInt64(&a.next) }

// Reserved reports the total size of the backing region.
func (a *BlockAllocator) Reserved() int64 { return a.reserved }

// Bytes exposes the backing region. Only the builder (and, once published,
// the BVH4 output collaborator) is expected to read it directly; leaf
// emitters write through the typed views in layout.go instead.
func (a *BlockAllocator) Bytes() []byte { return a.data }

func alignUp(n, align int64) int64 {
	return (n + align - 1) &^ (align - 1)
}

// SubAllocator is a thread-local cursor into one block of its parent
// BlockAllocator. It carves small allocations without contention, refilling
// from the parent (one atomic compare-and-swap on its next counter) on
// exhaustion (spec.md §4.1).
// Not safe for concurrent use by more than one goroutine — callers keep one
// SubAllocator per worker.
type SubAllocator struct {
	parent       *BlockAllocator
	blockOffset  int64
	blockEnd     int64
	cursor       int64
}

func NewSubAllocator(parent *BlockAllocator) *SubAllocator {
	return &SubAllocator{parent: parent}
}

// Malloc returns a 16-aligned n-byte slice, uninitialized, valid until the
// parent allocator's Reset. Returns an OutOfMemoryError if the parent's
// reservation is exhausted.
func (s *SubAllocator) Malloc(n int) ([]byte, error) {
	start := alignUp(s.cursor, allocAlign)
	if start+int64(n) > s.blockEnd {
		offset, ok := s.parent.grantBlock(n)
		if !ok {
			return nil, &OutOfMemoryError{Allocator: s.parent.name, Requested: n, Reserved: int(s.parent.reserved)}
		}
		want := int64(blockSize)
		if int64(n) > want {
			want = int64(n)
		}
		s.blockOffset = offset
		s.blockEnd = offset + want
		s.cursor = offset
		start = alignUp(s.cursor, allocAlign)
	}
	s.cursor = start + int64(n)
	return s.parent.data[start : start+int64(n) : start+int64(n)], nil
}

// reserveForPrimitives sizes the primitive-reference allocator reservation:
// 2x numPrimitives*primBytes plus threadCount padding blocks (spec.md §4.1).
// The parallel binner does not use this region as scratch; it owns its own
// slice (see ParallelBinner).
func reserveForPrimitives(numPrimitives, primBytes, threadCount int) int {
	base := numPrimitives * primBytes
	reserved := 2 * base
	pad := threadCount * blockSize
	return reserved + pad
}

// reserveForNodes sizes the node allocator reservation using the 1.5x
// "initial estimate" rule for hosts where a precise 64-bit sizing doesn't
// apply cleanly to node counts (spec.md §4.1). The estimate is
// numPrimitives/minLeafSize internal nodes, each costing nodeBytes.
func reserveForNodes(numPrimitives, minLeafSize, nodeBytes, threadCount int) int {
	if minLeafSize < 1 {
		minLeafSize = 1
	}
	estNodes := numPrimitives/minLeafSize + 1
	reserved := estNodes * nodeBytes * 3 / 2
	pad := threadCount * blockSize
	return reserved + pad
}
