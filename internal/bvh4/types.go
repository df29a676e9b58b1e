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

import "math"

// Axis selects one of the three coordinate axes a split is evaluated on.
type Axis uint8

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// Vec3 is a plain 3-component float vector. No SIMD layout is implied;
// the SIMD-friendly leaf layouts in layout.go lay components out
// explicitly where it matters.
type Vec3 struct {
	X, Y, Z float32
}

func (a Vec3) Add(b Vec3) Vec3 { return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }
func (a Vec3) Sub(b Vec3) Vec3 { return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }
func (a Vec3) Scale(s float32) Vec3 { return Vec3{a.X * s, a.Y * s, a.Z * s} }

func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{
		a.Y*b.Z - a.Z*b.Y,
		a.Z*b.X - a.X*b.Z,
		a.X*b.Y - a.Y*b.X,
	}
}

func (a Vec3) Get(axis Axis) float32 {
	switch axis {
	case AxisX:
		return a.X
	case AxisY:
		return a.Y
	default:
		return a.Z
	}
}

// AABB is an axis-aligned bounding box. An empty AABB has Lower > Upper on
// every axis so that Union and Extend behave correctly starting from it.
type AABB struct {
	Lower, Upper Vec3
}

// EmptyAABB returns a box so degenerate that unioning anything into it
// yields exactly that thing's bounds.
func EmptyAABB() AABB {
	inf := float32(math.MaxFloat32)
	return AABB{
		Lower: Vec3{inf, inf, inf},
		Upper: Vec3{-inf, -inf, -inf},
	}
}

// InfiniteAABB is stored in empty Node child slots so they can never be hit
// during traversal (spec.md §3, Node).
func InfiniteAABB() AABB {
	inf := float32(math.MaxFloat32)
	return AABB{
		Lower: Vec3{inf, inf, inf},
		Upper: Vec3{inf, inf, inf},
	}
}

func (b AABB) Union(o AABB) AABB {
	return AABB{
		Lower: Vec3{min32(b.Lower.X, o.Lower.X), min32(b.Lower.Y, o.Lower.Y), min32(b.Lower.Z, o.Lower.Z)},
		Upper: Vec3{max32(b.Upper.X, o.Upper.X), max32(b.Upper.Y, o.Upper.Y), max32(b.Upper.Z, o.Upper.Z)},
	}
}

func (b *AABB) Extend(o AABB) {
	*b = b.Union(o)
}

func (b AABB) Contains(o AABB) bool {
	return b.Lower.X <= o.Lower.X && b.Lower.Y <= o.Lower.Y && b.Lower.Z <= o.Lower.Z &&
		b.Upper.X >= o.Upper.X && b.Upper.Y >= o.Upper.Y && b.Upper.Z >= o.Upper.Z
}

func (b AABB) Centroid() Vec3 {
	return b.Lower.Add(b.Upper).Scale(0.5)
}

// Area returns half the surface area of the box (the full surface area
// scaled by 1/2 everywhere, which is sufficient since SAH cost only ever
// compares areas against each other).
func (b AABB) Area() float32 {
	d := b.Upper.Sub(b.Lower)
	if d.X < 0 || d.Y < 0 || d.Z < 0 {
		return 0
	}
	return d.X*d.Y + d.Y*d.Z + d.Z*d.X
}

func (b AABB) Extent(axis Axis) float32 {
	return b.Upper.Get(axis) - b.Lower.Get(axis)
}

func min32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

// PrimID packs a geometry index and a primitive-within-geometry index, as
// produced by TriRefGen and consumed by leaf emitters.
type PrimID struct {
	GeomID uint32
	PrimID uint32
}

// PrimRef is an immutable reference to one triangle: its bounds plus its
// identifier. Stored densely in a single array that is mutated only by
// partitioning (spec.md §3).
type PrimRef struct {
	Bounds AABB
	ID     PrimID
}

func (p PrimRef) Centroid() Vec3 { return p.Bounds.Centroid() }

// PrimInfo is the aggregate (count, geometry bounds, centroid bounds) over
// a contiguous subrange of prims (spec.md §3, PrimInfo / CentGeomBBox).
type PrimInfo struct {
	Count       int
	GeomBounds  AABB
	CentBounds  AABB
}

func EmptyPrimInfo() PrimInfo {
	return PrimInfo{GeomBounds: EmptyAABB(), CentBounds: EmptyAABB()}
}

func (pi *PrimInfo) Add(p PrimRef) {
	pi.Count++
	pi.GeomBounds.Extend(p.Bounds)
	c := p.Centroid()
	pi.CentBounds.Extend(AABB{Lower: c, Upper: c})
}

func (pi PrimInfo) Merge(o PrimInfo) PrimInfo {
	return PrimInfo{
		Count:      pi.Count + o.Count,
		GeomBounds: pi.GeomBounds.Union(o.GeomBounds),
		CentBounds: pi.CentBounds.Union(o.CentBounds),
	}
}

// Pinfo recomputes the aggregate PrimInfo over prims[begin:end] by a single
// linear scan. Used after partitioning, where geomBounds cannot be trusted
// to equal the pre-split union (spec.md §4.3 step 5).
func Pinfo(prims []PrimRef) PrimInfo {
	pi := EmptyPrimInfo()
	for i := range prims {
		pi.Add(prims[i])
	}
	return pi
}

// BuildRecord is the unit of recursion: a contiguous, exclusively-owned
// subrange of prims plus the aggregate info over it (spec.md §3).
type BuildRecord struct {
	Begin, End int
	Info       PrimInfo
	Depth      int

	// Parent is the write-back slot: the encoded pointer of the node or
	// leaf built from this record is stored here exactly once, by the
	// thread that builds it (spec.md §5, Ordering). It is a pointer
	// rather than an index because the node/leaf arenas are bump
	// allocators that never relocate (spec.md §9, Write-through parent
	// slot).
	Parent *EncodedPtr
}

func (r *BuildRecord) Size() int { return r.End - r.Begin }
