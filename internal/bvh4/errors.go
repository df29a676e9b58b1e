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
	"errors"
	"fmt"
)

// ErrSchedulerFailure means a worker could not enter the tasking system.
// The caller may re-run sequentially (spec.md §7).
var ErrSchedulerFailure = errors.New("bvh4: scheduler failure, build left incomplete")

// DepthLimitError is returned when a leaf would be created deeper than
// maxBuildDepthLeaf. Fatal: the whole build unwinds (spec.md §7).
type DepthLimitError struct {
	Depth, MaxDepth int
}

func (e *DepthLimitError) Error() string {
	return fmt.Sprintf("bvh4: depth limit exceeded: depth=%d max=%d", e.Depth, e.MaxDepth)
}

// OutOfMemoryError is returned when an allocator exceeds its reservation.
// Fatal: the whole build unwinds (spec.md §7).
type OutOfMemoryError struct {
	Allocator string
	Requested int
	Reserved  int
}

func (e *OutOfMemoryError) Error() string {
	return fmt.Sprintf("bvh4: %s allocator out of memory: requested past offset, reserved=%d bytes", e.Allocator, e.Reserved)
}

// buildAbort is the payload a recovered Phase B worker panic is wrapped in
// before it is handed back through the errs slice in buildParallel (mirrors
// the teacher's panic/recover discipline in blockmapgen.go for unrecoverable
// internal states). buildParallel turns any buildAbort it sees into
// ErrSchedulerFailure, since a worker goroutine that had to be recovered
// could not finish entering the tasking system on its own.
type buildAbort struct {
	err error
}

func (a *buildAbort) Error() string { return a.err.Error() }
