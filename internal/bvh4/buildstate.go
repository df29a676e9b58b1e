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

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vigilantdoomer/bvh4build/internal/buildlog"
)

// DefaultMaxBuildDepth and DefaultMaxBuildDepthLeaf are conservative
// defaults; callers needing different limits pass them through
// BuilderOptions.
const (
	DefaultMaxBuildDepth     = 48
	DefaultMaxBuildDepthLeaf = 64
	workStackCapacity        = 1024
)

// BVH4 is the output collaborator the builder populates (spec.md §6,
// Outputs).
type BVH4 struct {
	Root            EncodedPtr
	Bounds          AABB
	NumPrimitives   int
	NumVertices     int
	Nodes           *BlockAllocator
	Primitives      *BlockAllocator
	BytesNodes      int64
	BytesPrimitives int64
}

// Stats is the cheap statistics accumulator described in SPEC_FULL.md §4,
// filled in by countTree once a build has finished and readable afterwards
// via Builder.Stats.
// Printing statistics is explicitly out of scope (spec.md §1); this only
// counts.
type Stats struct {
	NodeCount int64
	LeafCount int64
	MaxDepth  int64
	PrimCount int64
}

func (s *Stats) addNode()          { atomic.AddInt64(&s.NodeCount, 1) }
func (s *Stats) addLeaf(n int)     { atomic.AddInt64(&s.LeafCount, 1); atomic.AddInt64(&s.PrimCount, int64(n)) }
func (s *Stats) observeDepth(d int) {
	for {
		cur := atomic.LoadInt64(&s.MaxDepth)
		if int64(d) <= cur || atomic.CompareAndSwapInt64(&s.MaxDepth, cur, int64(d)) {
			return
		}
	}
}

// BuilderOptions configures depth/leaf limits on top of a LayoutConfig's
// baked-in leaf-size bounds (spec.md §6, Configuration).
type BuilderOptions struct {
	MaxBuildDepth     int
	MaxBuildDepthLeaf int

	// Logger, if set, receives one ThreadLog merge per Phase B worker once
	// that worker has drained the shared heap and every stack it could
	// steal from (SPEC_FULL.md §2, Logging). nil disables per-thread
	// logging entirely; the build itself never depends on it.
	Logger *buildlog.Logger
}

func (o BuilderOptions) withDefaults() BuilderOptions {
	if o.MaxBuildDepth <= 0 {
		o.MaxBuildDepth = DefaultMaxBuildDepth
	}
	if o.MaxBuildDepthLeaf <= 0 {
		o.MaxBuildDepthLeaf = DefaultMaxBuildDepthLeaf
	}
	return o
}

// buildState is the process's reusable parallel-build scratch (spec.md §3,
// Global build state): a max-heap, one LIFO stack per thread, and one
// ParallelBinner. It is created on first parallel build and kept on the
// owning Builder instance rather than in a package-level global, resolving
// spec.md §9's "Process-wide g_state" design note.
type buildState struct {
	heap     *recordHeap
	stacks   []*workStack
	pbinner  *ParallelBinner
	pending  int64
}

func newBuildState(threadCount, numPrimitives int) *buildState {
	stacks := make([]*workStack, threadCount)
	for i := range stacks {
		stacks[i] = newWorkStack(workStackCapacity)
	}
	return &buildState{
		heap:    newRecordHeap(threadCount * 4),
		stacks:  stacks,
		pbinner: NewParallelBinner(numPrimitives),
	}
}

func (s *buildState) pendingAdd(n int64) { atomic.AddInt64(&s.pending, n) }
func (s *buildState) pendingLoad() int64 { return atomic.LoadInt64(&s.pending) }

// Builder drives both the sequential and parallel builds for one layout
// over one scene. Not reentrant: a single Builder must not run two builds
// concurrently (spec.md §5, Reentrancy); buildMu enforces that.
type Builder struct {
	cfg     LayoutConfig
	scene   Scene
	options BuilderOptions

	buildMu sync.Mutex
	state   *buildState
	stats   Stats
}

func NewBuilder(kind LayoutKind, scene Scene, options BuilderOptions) *Builder {
	return &Builder{
		cfg:     Layouts[kind],
		scene:   scene,
		options: options.withDefaults(),
	}
}

func (b *Builder) Stats() Stats {
	return Stats{
		NodeCount: atomic.LoadInt64(&b.stats.NodeCount),
		LeafCount: atomic.LoadInt64(&b.stats.LeafCount),
		MaxDepth:  atomic.LoadInt64(&b.stats.MaxDepth),
		PrimCount: atomic.LoadInt64(&b.stats.PrimCount),
	}
}

func (b *Builder) allocators(numPrimitives, threadCount int) (*BlockAllocator, *BlockAllocator) {
	nodeAlloc := NewBlockAllocator("nodes", reserveForNodes(numPrimitives, b.cfg.MinLeafSize, nodeSize, threadCount))
	primAlloc := NewBlockAllocator("primitives", reserveForPrimitives(numPrimitives, b.cfg.PrimBytes, threadCount))
	return nodeAlloc, primAlloc
}

// Build is the single entry point named by spec.md §6: build(threadIndex,
// threadCount). threadIndex is accepted for interface parity with the
// external task-scheduler collaborator's dispatch(task) call convention but
// is otherwise unused — for threadCount > 1, Build runs Phase A on the
// calling goroutine, then spawns threadCount Phase B worker goroutines
// itself and waits for all of them, since Go's goroutine scheduler
// (rather than an external "execute(task, nThreads)" scheduler) is in
// charge here (spec.md §1, "generic task scheduler... treated as an
// external collaborator" we do not depend on).
func (b *Builder) Build(threadIndex, threadCount int) (*BVH4, error) {
	if threadCount <= 1 {
		return b.buildSequential()
	}
	return b.buildParallel(threadCount)
}

func (b *Builder) buildSequential() (*BVH4, error) {
	b.buildMu.Lock()
	defer b.buildMu.Unlock()

	prims, pinfo := GenerateSequential(b.scene)
	nodeAlloc, primAlloc := b.allocators(len(prims), 1)
	nodeAlloc.Reset()
	primAlloc.Reset()

	bvh := &BVH4{NumPrimitives: len(prims), Nodes: nodeAlloc, Primitives: primAlloc}
	if len(prims) == 0 {
		bvh.Bounds = EmptyAABB()
		return bvh, nil
	}

	nodeSub := NewSubAllocator(nodeAlloc)
	leafSub := NewSubAllocator(primAlloc)
	driver := &Driver{
		cfg:               b.cfg,
		scene:             b.scene,
		prims:             prims,
		maxBuildDepth:     b.options.MaxBuildDepth,
		maxBuildDepthLeaf: b.options.MaxBuildDepthLeaf,
		nodeArena:         NewNodeArena(nodeAlloc),
	}

	root := BuildRecord{Begin: 0, End: len(prims), Info: pinfo, Depth: 1, Parent: &bvh.Root}
	if err := driver.BuildNode(root, ModeRecurseSequential, nodeSub, leafSub, childSink{}); err != nil {
		return bvh, err
	}
	b.countTree(bvh)
	bvh.Bounds = pinfo.GeomBounds
	bvh.BytesNodes = nodeAlloc.Used()
	bvh.BytesPrimitives = primAlloc.Used()
	return bvh, nil
}

func (b *Builder) buildParallel(threadCount int) (*BVH4, error) {
	b.buildMu.Lock()
	defer b.buildMu.Unlock()

	prims, pinfo := GenerateParallel(b.scene, threadCount)
	nodeAlloc, primAlloc := b.allocators(len(prims), threadCount)
	nodeAlloc.Reset()
	primAlloc.Reset()

	bvh := &BVH4{NumPrimitives: len(prims), Nodes: nodeAlloc, Primitives: primAlloc}
	if len(prims) == 0 {
		bvh.Bounds = EmptyAABB()
		return bvh, nil
	}

	if b.state == nil || len(b.state.stacks) != threadCount {
		b.state = newBuildState(threadCount, len(prims))
	} else {
		b.state.pbinner = NewParallelBinner(len(prims))
	}
	state := b.state

	driver := &Driver{
		cfg:               b.cfg,
		scene:             b.scene,
		prims:             prims,
		maxBuildDepth:     b.options.MaxBuildDepth,
		maxBuildDepthLeaf: b.options.MaxBuildDepthLeaf,
		nodeArena:         NewNodeArena(nodeAlloc),
		pbinner:           state.pbinner,
		topLevelThreads:   threadCount,
	}

	root := BuildRecord{Begin: 0, End: len(prims), Info: pinfo, Depth: 1, Parent: &bvh.Root}
	state.pendingAdd(1)
	state.heap.Push(root)

	// Phase A: top-level expansion on this goroutine alone, until the
	// heap holds at least threadCount records or the largest one is too
	// small to keep splitting (spec.md §4.6 Phase A).
	phaseANodeSub := NewSubAllocator(nodeAlloc)
	phaseALeafSub := NewSubAllocator(primAlloc)
	var phaseAErr error
	for state.heap.Len() < threadCount {
		r, ok := state.heap.Pop()
		if !ok {
			break
		}
		if r.Size() <= b.cfg.MinLeafSize {
			state.heap.Push(r)
			break
		}
		sink := childSink{topLevel: func(c BuildRecord) {
			state.pendingAdd(1)
			state.heap.Push(c)
		}}
		if err := driver.BuildNode(r, ModeTopLevel, phaseANodeSub, phaseALeafSub, sink); err != nil {
			phaseAErr = err
			break
		}
		state.pendingAdd(-1)
	}
	if phaseAErr != nil {
		return bvh, phaseAErr
	}

	// Phase B: threadCount workers drain the shared heap, then each
	// other's stacks, until no work remains anywhere (spec.md §4.6 Phase
	// B).
	var wg sync.WaitGroup
	errs := make([]error, threadCount)
	for tid := 0; tid < threadCount; tid++ {
		wg.Add(1)
		go func(tid int) {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					errs[tid] = &buildAbort{err: fmt.Errorf("worker %d: %v", tid, rec)}
				}
			}()
			errs[tid] = b.phaseBWorker(driver, state, nodeAlloc, primAlloc, tid, threadCount)
		}(tid)
	}
	wg.Wait()

	for _, err := range errs {
		if err == nil {
			continue
		}
		return bvh, wrapAbort(err)
	}

	b.countTree(bvh)
	bvh.Bounds = pinfo.GeomBounds
	bvh.BytesNodes = nodeAlloc.Used()
	bvh.BytesPrimitives = primAlloc.Used()
	return bvh, nil
}

func (b *Builder) phaseBWorker(driver *Driver, state *buildState, nodeAlloc, primAlloc *BlockAllocator, tid, threadCount int) error {
	nodeSub := NewSubAllocator(nodeAlloc)
	leafSub := NewSubAllocator(primAlloc)
	myStack := state.stacks[tid]
	sink := childSink{stack: myStack, pendingAdd: state.pendingAdd}

	verbosity := 0
	if b.options.Logger != nil {
		verbosity = b.options.Logger.Verbosity
	}
	tlog := buildlog.NewThreadLog(verbosity)
	defer func() {
		if b.options.Logger != nil {
			b.options.Logger.Merge(tlog, fmt.Sprintf("worker %d done:", tid))
		}
	}()

	recordsBuilt := 0
	process := func(r BuildRecord) error {
		tlog.Push(tid, "worker %d building range [%d,%d) at depth %d", tid, r.Begin, r.End, r.Depth)
		if err := driver.BuildNode(r, ModeRecurseParallel, nodeSub, leafSub, sink); err != nil {
			return err
		}
		state.pendingAdd(-1)
		recordsBuilt++
		for {
			child, ok := myStack.Pop()
			if !ok {
				break
			}
			tlog.Push(tid, "worker %d building range [%d,%d) at depth %d", tid, child.Begin, child.End, child.Depth)
			if err := driver.BuildNode(child, ModeRecurseParallel, nodeSub, leafSub, sink); err != nil {
				return err
			}
			state.pendingAdd(-1)
			recordsBuilt++
		}
		return nil
	}

	idleSpins := 0
	for {
		if r, ok := state.heap.Pop(); ok {
			if err := process(r); err != nil {
				return err
			}
			idleSpins = 0
			continue
		}
		stole := false
		for step := 1; step <= threadCount; step++ {
			other := (tid + step) % threadCount
			if other == tid {
				continue
			}
			if r, ok := state.stacks[other].Steal(); ok {
				if err := process(r); err != nil {
					return err
				}
				stole = true
				break
			}
		}
		if stole {
			idleSpins = 0
			continue
		}
		if state.pendingLoad() == 0 {
			tlog.Printf("worker %d: built %d record(s), no work left\n", tid, recordsBuilt)
			return nil
		}
		idleSpins++
		if idleSpins < 64 {
			runtime.Gosched()
		} else {
			time.Sleep(time.Microsecond)
		}
	}
}

// wrapAbort turns a recovered Phase B worker panic into ErrSchedulerFailure
// (spec.md §7: the caller may decide to retry sequentially), leaving every
// other error untouched.
func wrapAbort(err error) error {
	if abort, ok := err.(*buildAbort); ok {
		return fmt.Errorf("%w: %v", ErrSchedulerFailure, abort.err)
	}
	return err
}

// countTree walks the finished node/leaf arena reachable from bvh.Root to
// fill in Stats. It is a plain traversal, not part of the build's hot
// path, and mirrors the "print stats after build" pattern in
// achilleasa-polaris's builder (statistics printing itself stays out of
// scope per spec.md §1 — this only counts).
func (b *Builder) countTree(bvh *BVH4) {
	b.stats = Stats{}
	var walk func(e EncodedPtr, depth int)
	walk = func(e EncodedPtr, depth int) {
		if e.isEmpty() {
			return
		}
		b.stats.observeDepth(depth)
		if e.isLeaf() {
			b.stats.addLeaf(LeafItemCount(b.cfg.Kind, e))
			return
		}
		n := (*Node)(ptrOf(e))
		b.stats.addNode()
		for i := 0; i < 4; i++ {
			walk(n.Children[i], depth+1)
		}
	}
	walk(bvh.Root, 1)
}
