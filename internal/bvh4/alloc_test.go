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

// alloc_test.go
package bvh4

import (
	"sync"
	"testing"
	"unsafe"
)

func TestBlockAllocatorAlignment(t *testing.T) {
	a := NewBlockAllocator("test", 1<<16)
	s := NewSubAllocator(a)
	for i := 0; i < 64; i++ {
		buf, err := s.Malloc(7)
		if err != nil {
			t.Fatalf("Malloc: %v", err)
		}
		if cap(buf) < 7 {
			t.Fatalf("short buffer: cap %d", cap(buf))
		}
		addr := uintptr(unsafe.Pointer(&buf[0]))
		if addr%allocAlign != 0 {
			t.Fatalf("allocation not %d-byte aligned: addr %x", allocAlign, addr)
		}
	}
}

func TestBlockAllocatorExhaustion(t *testing.T) {
	a := NewBlockAllocator("test", blockSize)
	s := NewSubAllocator(a)
	if _, err := s.Malloc(blockSize / 2); err != nil {
		t.Fatalf("first Malloc should fit: %v", err)
	}
	// A second allocation bigger than what's left in the single reserved
	// block must fail rather than silently grow the region.
	if _, err := s.Malloc(blockSize); err == nil {
		t.Fatalf("expected OutOfMemoryError once the reservation is exhausted")
	} else if _, ok := err.(*OutOfMemoryError); !ok {
		t.Fatalf("expected *OutOfMemoryError, got %T", err)
	}
}

func TestBlockAllocatorReset(t *testing.T) {
	a := NewBlockAllocator("test", 1<<12)
	s := NewSubAllocator(a)
	if _, err := s.Malloc(64); err != nil {
		t.Fatalf("Malloc: %v", err)
	}
	if a.Used() == 0 {
		t.Fatalf("expected nonzero usage before reset")
	}
	a.Reset()
	if a.Used() != 0 {
		t.Fatalf("expected zero usage after Reset, got %d", a.Used())
	}
}

// Multiple SubAllocators drawing from one BlockAllocator concurrently must
// never hand out overlapping byte ranges (spec.md §4.1: the fast path
// contends only on the atomic next counter, never a lock).
func TestBlockAllocatorConcurrentSubAllocators(t *testing.T) {
	const perThread = 2000
	const threads = 8
	const size = 48

	a := NewBlockAllocator("test", reserveForPrimitives(threads*perThread, size, threads))
	base := uintptr(unsafe.Pointer(&a.Bytes()[0]))

	var wg sync.WaitGroup
	ranges := make([][][2]int, threads)
	for tid := 0; tid < threads; tid++ {
		tid := tid
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := NewSubAllocator(a)
			my := make([][2]int, 0, perThread)
			for i := 0; i < perThread; i++ {
				buf, err := s.Malloc(size)
				if err != nil {
					t.Errorf("Malloc: %v", err)
					return
				}
				off := int(uintptr(unsafe.Pointer(&buf[0])) - base)
				my = append(my, [2]int{off, off + size})
			}
			ranges[tid] = my
		}()
	}
	wg.Wait()

	seen := make([]bool, a.Reserved())
	for _, my := range ranges {
		for _, r := range my {
			for i := r[0]; i < r[1]; i++ {
				if seen[i] {
					t.Fatalf("overlapping allocation at byte %d", i)
				}
				seen[i] = true
			}
		}
	}
}
