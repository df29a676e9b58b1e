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

// recordHeap is a binary max-heap of BuildRecords keyed by range size, used
// as the shared top-level work queue during Phase A (spec.md §4.6, §5:
// "Global heap: mutex-protected priority queue"). Index-based, like the
// teacher's own bucket-size heap pattern, rather than container/heap, to
// avoid per-push interface boxing.
type recordHeap struct {
	mu    sync.Mutex
	items []BuildRecord
	seq   []int64 // monotonically increasing insertion order, for deterministic tie-break
	next  int64
}

func newRecordHeap(capacity int) *recordHeap {
	return &recordHeap{
		items: make([]BuildRecord, 0, capacity),
		seq:   make([]int64, 0, capacity),
	}
}

func (h *recordHeap) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.items)
}

func (h *recordHeap) Push(r BuildRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items = append(h.items, r)
	h.seq = append(h.seq, h.next)
	h.next++
	h.up(len(h.items) - 1)
}

// Pop removes and returns the record with the largest Size(), breaking ties
// by earliest insertion (spec.md §9, Tie-break determinism). ok is false
// when the heap is empty.
func (h *recordHeap) Pop() (r BuildRecord, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.items) - 1
	if n < 0 {
		return BuildRecord{}, false
	}
	h.swap(0, n)
	h.down(0, n)
	r = h.items[n]
	h.items = h.items[:n]
	h.seq = h.seq[:n]
	return r, true
}

func (h *recordHeap) less(i, j int) bool {
	si, sj := h.items[i].Size(), h.items[j].Size()
	if si != sj {
		return si > sj
	}
	return h.seq[i] < h.seq[j]
}

func (h *recordHeap) swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.seq[i], h.seq[j] = h.seq[j], h.seq[i]
}

func (h *recordHeap) up(j int) {
	for {
		i := (j - 1) / 2
		if i == j || !h.less(j, i) {
			break
		}
		h.swap(i, j)
		j = i
	}
}

func (h *recordHeap) down(i, n int) {
	for {
		j1 := 2*i + 1
		if j1 >= n || j1 < 0 {
			break
		}
		j := j1
		if j2 := j1 + 1; j2 < n && h.less(j2, j1) {
			j = j2
		}
		if !h.less(j, i) {
			break
		}
		h.swap(i, j)
		i = j
	}
}
