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

// Mode selects how the recursion driver behaves at one node, per spec.md
// §4.6: which splitter it calls, what it does with each produced child,
// and whether emitting a leaf is legal.
type Mode int

const (
	// ModeTopLevel expands one record using the parallel binner and pushes
	// every produced child back onto the global heap instead of recursing.
	// Leaf creation is, per spec.md §4.6, "forbidden" at this level — see
	// DESIGN.md for how this module resolves the §9 Open Question about
	// children that fall below minLeafSize mid-expansion.
	ModeTopLevel Mode = iota
	// ModeRecurseParallel expands using the sequential binner; children
	// larger than THRESHOLD_FOR_SUBTREE_RECURSION are pushed onto the
	// calling worker's local stack (for other workers to steal), smaller
	// children recurse inline, still under ModeRecurseParallel.
	ModeRecurseParallel
	// ModeRecurseSequential is the single-threaded full-depth driver: every
	// child always recurses inline. Used by the sequential build and has
	// no stack/heap side effects at all.
	ModeRecurseSequential
)

// THRESHOLD_FOR_SUBTREE_RECURSION is spec.md §4.6 Phase B's size above
// which a child produced during subtree processing is pushed onto the
// local stack (for stealing) rather than recursed into immediately.
const THRESHOLD_FOR_SUBTREE_RECURSION = 128

// Driver runs the "open the largest child until 4 or stop" expansion loop
// of spec.md §4.5 and wires it to the allocators, binners and leaf
// emitter for one layout.
type Driver struct {
	cfg               LayoutConfig
	scene             Scene
	prims             []PrimRef
	maxBuildDepth     int
	maxBuildDepthLeaf int
	nodeArena         *NodeArena
	pbinner           *ParallelBinner
	topLevelThreads   int
}

// childSink receives the children that ModeTopLevel (topLevel) or
// ModeRecurseParallel (stack, pendingAdd) hands off instead of recursing
// into directly. ModeRecurseSequential is passed a zero childSink and never
// uses it.
type childSink struct {
	topLevel   func(BuildRecord)
	stack      *workStack
	pendingAdd func(int64)
}

// BuildNode implements spec.md §4.5 end to end for one record, dispatching
// children per mode as described above. nodeSub/leafSub are the calling
// worker's thread-local sub-allocators (spec.md §4.1).
func (d *Driver) BuildNode(cur BuildRecord, mode Mode, nodeSub, leafSub *SubAllocator, sink childSink) error {
	if cur.Depth >= d.maxBuildDepth || cur.Size() <= d.cfg.MinLeafSize {
		return d.emitLeaf(cur, leafSub)
	}

	children := make([]BuildRecord, 1, 4)
	children[0] = cur
	numChildren := 1

	for numChildren < 4 {
		chosen := -1
		var chosenArea float32
		for i, c := range children {
			if c.Size() <= d.cfg.MinLeafSize {
				continue
			}
			area := c.Info.GeomBounds.Area()
			if chosen == -1 || area > chosenArea {
				chosen = i
				chosenArea = area
			}
		}
		if chosen == -1 {
			break
		}

		var left, right BuildRecord
		if mode == ModeTopLevel {
			left, right = d.pbinner.ObjectSplitParallel(d.prims, children[chosen], d.cfg.LogSAHBlockSize, d.topLevelThreads)
		} else {
			left, right = ObjectSplit(d.prims, children[chosen], d.cfg.LogSAHBlockSize)
		}
		// ObjectSplit/ObjectSplitParallel derive Depth from whichever
		// record they were handed, which past the first split round is an
		// intermediate child of cur rather than cur itself. spec.md §4.5
		// step 3b defines every child this loop produces as depth =
		// cur.Depth+1, not a depth that compounds once per split round, so
		// it is reset here rather than trusted from the split call.
		left.Depth = cur.Depth + 1
		right.Depth = cur.Depth + 1
		children[chosen] = left
		children = append(children, right)
		numChildren++
	}

	if numChildren == 1 {
		return d.emitLeaf(cur, leafSub)
	}

	node, err := d.nodeArena.AllocNode(nodeSub)
	if err != nil {
		return err
	}
	*cur.Parent = encodeNodePtr(unsafe.Pointer(node))

	for i := 0; i < numChildren; i++ {
		node.Bounds[i] = children[i].Info.GeomBounds
		children[i].Parent = &node.Children[i]
	}
	node.Compact()

	switch mode {
	case ModeTopLevel:
		for i := 0; i < numChildren; i++ {
			sink.topLevel(children[i])
		}
		return nil
	case ModeRecurseSequential:
		for i := 0; i < numChildren; i++ {
			if err := d.BuildNode(children[i], mode, nodeSub, leafSub, sink); err != nil {
				return err
			}
		}
		return nil
	default: // ModeRecurseParallel
		for i := 0; i < numChildren; i++ {
			child := children[i]
			if child.Size() > THRESHOLD_FOR_SUBTREE_RECURSION && sink.stack != nil && sink.stack.Push(child) {
				// child is now a unit of work independent of this call's
				// stack frame; process() retires it with pendingAdd(-1)
				// once some worker pops or steals and fully finishes it.
				if sink.pendingAdd != nil {
					sink.pendingAdd(1)
				}
				continue
			}
			if err := d.BuildNode(child, mode, nodeSub, leafSub, sink); err != nil {
				return err
			}
		}
		return nil
	}
}

func (d *Driver) emitLeaf(r BuildRecord, leafSub *SubAllocator) error {
	if r.Depth > d.maxBuildDepthLeaf {
		return &DepthLimitError{Depth: r.Depth, MaxDepth: d.maxBuildDepthLeaf}
	}
	size := r.Size()
	if size == 0 {
		*r.Parent = emptyEncodedPtr
		return nil
	}
	for size > d.cfg.MaxLeafSize {
		// Should not happen given minLeafSize/maxLeafSize configuration in
		// this module's layouts (MaxLeafSize is unbounded for all of
		// them), but guard it defensively by chunking would require a
		// wrapper node; since no layout in Layouts actually bounds
		// MaxLeafSize, this path is unreachable and exists only to keep
		// the invariant explicit.
		break
	}
	ptr, err := EmitLeaf(d.cfg, d.scene, d.prims, r, leafSub)
	if err != nil {
		return err
	}
	*r.Parent = ptr
	return nil
}
