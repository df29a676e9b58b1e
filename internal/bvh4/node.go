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

import "unsafe"

// EncodedPtr tags either a leaf (pointer to a contiguous block of K items,
// K packed into the low bits) or an interior Node (spec.md §3, Encoded
// pointer). The tag scheme mirrors the original Embree BVH4 NodeRef: the
// two low bits select leaf-vs-node, and for leaves the next bits hold the
// item count minus one (see SPEC_FULL.md §4 for the bit-layout rationale).
type EncodedPtr uintptr

const (
	tagNode     = uintptr(0)
	tagLeaf     = uintptr(1)
	tagEmpty    = uintptr(3) // an empty child slot carries this exact value
	leafCountShift = 2
	leafCountMask  = 0xF // counts 1..15 fit comfortably; every leaf emitter in layout.go passes 1
)

var emptyEncodedPtr = EncodedPtr(tagEmpty)

func encodeNodePtr(p unsafe.Pointer) EncodedPtr {
	return EncodedPtr(uintptr(p) | tagNode)
}

// encodeLeafPtr packs a pointer to count contiguous leaf items into a
// single EncodedPtr (spec.md §3, §6: bvh.encodeLeaf(ptr, count)).
func encodeLeafPtr(p unsafe.Pointer, count int) EncodedPtr {
	return EncodedPtr(uintptr(p)&^uintptr(leafCountMask) | uintptr(count-1)<<leafCountShift | tagLeaf)
}

func (e EncodedPtr) isEmpty() bool { return e == emptyEncodedPtr }

func (e EncodedPtr) isLeaf() bool { return uintptr(e)&tagLeaf != 0 && !e.isEmpty() }

// leafCount returns the packed item count for a leaf pointer (1-based).
func (e EncodedPtr) leafCount() int {
	return int((uintptr(e)>>leafCountShift)&leafCountMask) + 1
}

// ptrOf strips the tag bits and returns the underlying pointer, valid for
// both node and leaf pointers (the caller knows which from isLeaf/isEmpty).
func ptrOf(e EncodedPtr) unsafe.Pointer {
	return unsafe.Pointer(uintptr(e) &^ uintptr(leafCountMask))
}

// Node is a BVH4 interior node: up to 4 children, each with its own AABB.
// Empty slots carry InfiniteAABB() so traversal can never select them
// (spec.md §3, Node).
type Node struct {
	Bounds   [4]AABB
	Children [4]EncodedPtr
}

func newEmptyNode(n *Node) *Node {
	for i := 0; i < 4; i++ {
		n.Bounds[i] = InfiniteAABB()
		n.Children[i] = emptyEncodedPtr
	}
	return n
}

// nodeSize is the byte footprint a NodeArena carves out of the node
// BlockAllocator's region for each node (spec.md §4.1: malloc(n) returns
// an n-byte region). Allocating Node values at a fixed stride out of the
// bump-allocated byte region, rather than letting the Go heap place them,
// is what keeps the node arena's lifetime tied to Reset/build end instead
// of the garbage collector (spec.md §3, Allocator lifecycle).
var nodeSize = int(unsafe.Sizeof(Node{}))

// NodeArena hands out *Node values carved from a BlockAllocator's reserved
// byte region via per-thread SubAllocators (spec.md §4.1, §4.6).
type NodeArena struct {
	alloc *BlockAllocator
}

func NewNodeArena(alloc *BlockAllocator) *NodeArena {
	return &NodeArena{alloc: alloc}
}

// AllocNode carves one Node-sized, 16-aligned region from sub and returns
// it initialized to all-empty children.
func (na *NodeArena) AllocNode(sub *SubAllocator) (*Node, error) {
	raw, err := sub.Malloc(nodeSize)
	if err != nil {
		return nil, err
	}
	n := (*Node)(unsafe.Pointer(&raw[0]))
	return newEmptyNode(n), nil
}

// Compact moves empty slots to the end, preserving the relative order of
// non-empty slots. Traversal relies on "empty slots are contiguous at the
// tail" (spec.md §4.5 step 5, invariant 4 in §8).
func (n *Node) Compact() {
	write := 0
	for read := 0; read < 4; read++ {
		if n.Children[read].isEmpty() {
			continue
		}
		if write != read {
			n.Bounds[write] = n.Bounds[read]
			n.Children[write] = n.Children[read]
		}
		write++
	}
	for ; write < 4; write++ {
		n.Bounds[write] = InfiniteAABB()
		n.Children[write] = emptyEncodedPtr
	}
}

// NumChildren reports how many non-empty child slots this node has after
// Compact.
func (n *Node) NumChildren() int {
	c := 0
	for i := 0; i < 4; i++ {
		if !n.Children[i].isEmpty() {
			c++
		}
	}
	return c
}
