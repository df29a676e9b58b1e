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
	"math"
	"unsafe"
)

// LayoutKind names one of the six leaf packet layouts (spec.md §4.7, §6).
type LayoutKind uint8

const (
	LayoutTriangle1 LayoutKind = iota
	LayoutTriangle4
	LayoutTriangle8
	LayoutTriangle1v
	LayoutTriangle4v
	LayoutTriangle4i
)

func (k LayoutKind) String() string {
	switch k {
	case LayoutTriangle1:
		return "Triangle1"
	case LayoutTriangle4:
		return "Triangle4"
	case LayoutTriangle8:
		return "Triangle8"
	case LayoutTriangle1v:
		return "Triangle1v"
	case LayoutTriangle4v:
		return "Triangle4v"
	case LayoutTriangle4i:
		return "Triangle4i"
	default:
		return "unknown"
	}
}

const maxLeafSizeInf = math.MaxInt32

// LayoutConfig bakes in the per-layout constants of spec.md §6: the
// target leaf packet width (via LogBlockSize), the SAH cost rounding
// factor, whether leaf emission needs vertex data at all, the leaf record
// byte footprint, and the leaf-size bounds that gate the recursion driver
// (spec.md §4.5 step 1, §4.7).
type LayoutConfig struct {
	Kind            LayoutKind
	LogBlockSize    int
	LogSAHBlockSize int
	NeedVertices    bool
	PrimBytes       int
	MinLeafSize     int
	MaxLeafSize     int
}

// Layouts is the fixed table of recognized layouts (spec.md §6).
var Layouts = map[LayoutKind]LayoutConfig{
	LayoutTriangle1:  {Kind: LayoutTriangle1, LogBlockSize: 0, LogSAHBlockSize: 0, NeedVertices: true, PrimBytes: 48, MinLeafSize: 2, MaxLeafSize: maxLeafSizeInf},
	LayoutTriangle4:  {Kind: LayoutTriangle4, LogBlockSize: 2, LogSAHBlockSize: 2, NeedVertices: true, PrimBytes: 64, MinLeafSize: 4, MaxLeafSize: maxLeafSizeInf},
	LayoutTriangle8:  {Kind: LayoutTriangle8, LogBlockSize: 3, LogSAHBlockSize: 3, NeedVertices: true, PrimBytes: 128, MinLeafSize: 8, MaxLeafSize: maxLeafSizeInf},
	LayoutTriangle1v: {Kind: LayoutTriangle1v, LogBlockSize: 0, LogSAHBlockSize: 0, NeedVertices: true, PrimBytes: 48, MinLeafSize: 2, MaxLeafSize: maxLeafSizeInf},
	LayoutTriangle4v: {Kind: LayoutTriangle4v, LogBlockSize: 2, LogSAHBlockSize: 2, NeedVertices: true, PrimBytes: 64, MinLeafSize: 4, MaxLeafSize: maxLeafSizeInf},
	LayoutTriangle4i: {Kind: LayoutTriangle4i, LogBlockSize: 2, LogSAHBlockSize: 2, NeedVertices: true, PrimBytes: 48, MinLeafSize: 4, MaxLeafSize: maxLeafSizeInf},
}

// --- Leaf record shapes -----------------------------------------------

// Triangle1Record is one triangle per record: 3 vertices plus the packed
// identifier and the precomputed geometric normal Ng = (v0-v1)x(v2-v0)
// (spec.md §4.7).
type Triangle1Record struct {
	V0, V1, V2 Vec3
	Ng         Vec3
	GeomID     uint32
	PrimID     uint32
	Mask       uint32
}

// Triangle1vRecord omits the precomputed normal.
type Triangle1vRecord struct {
	V0, V1, V2 Vec3
	GeomID     uint32
	PrimID     uint32
	Mask       uint32
}

// Triangle4Record is a single SoA record for 4 triangles; unused lanes
// carry GeomID = PrimID = -1, the traversal sentinel for "no hit"
// (spec.md §4.7).
type Triangle4Record struct {
	V0X, V0Y, V0Z [4]float32
	V1X, V1Y, V1Z [4]float32
	V2X, V2Y, V2Z [4]float32
	GeomID        [4]int32
	PrimID        [4]int32
}

// Triangle4vRecord is the vertex-only SoA variant (no precomputed edges).
type Triangle4vRecord struct {
	V0X, V0Y, V0Z [4]float32
	V1X, V1Y, V1Z [4]float32
	V2X, V2Y, V2Z [4]float32
	GeomID        [4]int32
	PrimID        [4]int32
}

// Triangle8Record is the AVX-width counterpart of Triangle4Record: 8 lanes.
type Triangle8Record struct {
	V0X, V0Y, V0Z [8]float32
	V1X, V1Y, V1Z [8]float32
	V2X, V2Y, V2Z [8]float32
	GeomID        [8]int32
	PrimID        [8]int32
}

// Triangle4iRecord is the indexed variant: a vertex-array index for v0 per
// lane, plus 32-bit index offsets from v0 to v1 and v2 (spec.md §4.7).
// Unused lanes copy slot 0's V0Index and set both offsets to zero.
type Triangle4iRecord struct {
	V0Index    [4]uint32
	Off1, Off2 [4]int32
	GeomID     [4]int32
	PrimID     [4]int32
}

// --- Leaf arena ----------------------------------------------------

// leafHeaderSize is the byte size of the count header prefixed to
// variable-width Triangle1/Triangle1v leaf blocks (see emitTriangle1 below
// for why these two layouts need one and the SoA layouts don't).
const leafHeaderSize = 8

// AllocLeaf carves one T-sized, 16-aligned region from sub, mirroring
// NodeArena (spec.md §4.1).
func AllocLeaf[T any](sub *SubAllocator) (*T, error) {
	var zero T
	size := int(unsafe.Sizeof(zero))
	raw, err := sub.Malloc(size)
	if err != nil {
		return nil, err
	}
	return (*T)(unsafe.Pointer(&raw[0])), nil
}

// --- Emission --------------------------------------------------------

func vec3At(mesh TriangleMesh, idx uint32) Vec3 {
	v := mesh.Vertex(int(idx))
	return Vec3{v.X, v.Y, v.Z}
}

// EmitLeaf packs prims[r.Begin:r.End) (r.Size() <= cfg.MaxLeafSize, checked
// by the caller) into the layout's leaf record(s), allocates them from sub,
// and returns the EncodedPtr to store into *r.Parent (spec.md §4.7, §6).
// scene is consulted for vertex positions when cfg.NeedVertices.
func EmitLeaf(cfg LayoutConfig, scene Scene, prims []PrimRef, r BuildRecord, sub *SubAllocator) (EncodedPtr, error) {
	items := prims[r.Begin:r.End]
	switch cfg.Kind {
	case LayoutTriangle1:
		return emitTriangle1(scene, items, sub, false)
	case LayoutTriangle1v:
		return emitTriangle1(scene, items, sub, true)
	case LayoutTriangle4:
		return emitTriangle4(scene, items, sub)
	case LayoutTriangle4v:
		return emitTriangle4v(scene, items, sub)
	case LayoutTriangle8:
		return emitTriangle8(scene, items, sub)
	case LayoutTriangle4i:
		return emitTriangle4i(scene, items, sub)
	default:
		panic("bvh4: unknown layout kind")
	}
}

func meshAndTri(scene Scene, id PrimID) (TriangleMesh, Triangle) {
	mesh := scene.Get(int(id.GeomID)).(TriangleMesh)
	return mesh, mesh.Triangle(int(id.PrimID))
}

// emitTriangle1 packs k = len(items) records. Unlike the SoA layouts,
// Triangle1/Triangle1v leaves are genuinely variable-width (spec.md §6
// leaves MaxLeafSize unbounded for both), too wide for the leaf pointer's
// packed count field to hold in general, so the block is prefixed with an
// 8-byte count header and the EncodedPtr's own packed field is left at its
// minimum (1); readers go through decodeHeaderCount instead of the
// generic leafCount() (documented as a deliberate deviation from the
// pointer-packs-everything phrasing of spec.md §3 in DESIGN.md).
func emitTriangle1(scene Scene, items []PrimRef, sub *SubAllocator, vOnly bool) (EncodedPtr, error) {
	k := len(items)
	if vOnly {
		raw, base, err := allocHeaderedArray[Triangle1vRecord](sub, k)
		if err != nil {
			return 0, err
		}
		for i, p := range items {
			mesh, tri := meshAndTri(scene, p.ID)
			v0, v1, v2 := vec3At(mesh, tri.V[0]), vec3At(mesh, tri.V[1]), vec3At(mesh, tri.V[2])
			base[i] = Triangle1vRecord{V0: v0, V1: v1, V2: v2, GeomID: p.ID.GeomID, PrimID: p.ID.PrimID, Mask: mesh.Mask()}
		}
		return encodeLeafPtr(unsafe.Pointer(&raw[0]), 1), nil
	}
	raw, base, err := allocHeaderedArray[Triangle1Record](sub, k)
	if err != nil {
		return 0, err
	}
	for i, p := range items {
		mesh, tri := meshAndTri(scene, p.ID)
		v0, v1, v2 := vec3At(mesh, tri.V[0]), vec3At(mesh, tri.V[1]), vec3At(mesh, tri.V[2])
		ng := v0.Sub(v1).Cross(v2.Sub(v0))
		base[i] = Triangle1Record{V0: v0, V1: v1, V2: v2, Ng: ng, GeomID: p.ID.GeomID, PrimID: p.ID.PrimID, Mask: mesh.Mask()}
	}
	return encodeLeafPtr(unsafe.Pointer(&raw[0]), 1), nil
}

// allocHeaderedArray carves an 8-byte count header followed by k
// contiguous T records, writes the header, and returns both the raw block
// (for encoding the leaf pointer) and a slice view over the records.
func allocHeaderedArray[T any](sub *SubAllocator, k int) (raw []byte, items []T, err error) {
	var zero T
	recSize := int(unsafe.Sizeof(zero))
	raw, err = sub.Malloc(leafHeaderSize + recSize*k)
	if err != nil {
		return nil, nil, err
	}
	*(*int64)(unsafe.Pointer(&raw[0])) = int64(k)
	items = unsafe.Slice((*T)(unsafe.Pointer(&raw[leafHeaderSize])), k)
	return raw, items, nil
}

// decodeHeaderCount reads the count header written by allocHeaderedArray
// back out, given the decoded leaf pointer's base address.
func decodeHeaderCount(base unsafe.Pointer) int {
	return int(*(*int64)(base))
}

// DecodeTriangle1 reads a Triangle1 leaf back out, for use by tests and by
// Verify (spec.md §4.7; traversal itself is out of scope per spec.md §1).
func DecodeTriangle1(e EncodedPtr) []Triangle1Record {
	base := ptrOf(e)
	k := decodeHeaderCount(base)
	recs := (*[1 << 20]Triangle1Record)(unsafe.Pointer(uintptr(base) + leafHeaderSize))
	return recs[:k:k]
}

// DecodeTriangle1v reads a Triangle1v leaf back out.
func DecodeTriangle1v(e EncodedPtr) []Triangle1vRecord {
	base := ptrOf(e)
	k := decodeHeaderCount(base)
	recs := (*[1 << 20]Triangle1vRecord)(unsafe.Pointer(uintptr(base) + leafHeaderSize))
	return recs[:k:k]
}

// LeafIDs returns the (geomID, primID) pair of every real triangle in a
// leaf (sentinel lanes with GeomID/PrimID == -1 are skipped), for use by
// Verify and by tests (spec.md §8 invariants 1-2).
func LeafIDs(kind LayoutKind, e EncodedPtr) []PrimID {
	switch kind {
	case LayoutTriangle1:
		recs := DecodeTriangle1(e)
		out := make([]PrimID, len(recs))
		for i, r := range recs {
			out[i] = PrimID{GeomID: r.GeomID, PrimID: r.PrimID}
		}
		return out
	case LayoutTriangle1v:
		recs := DecodeTriangle1v(e)
		out := make([]PrimID, len(recs))
		for i, r := range recs {
			out[i] = PrimID{GeomID: r.GeomID, PrimID: r.PrimID}
		}
		return out
	case LayoutTriangle4:
		rec := (*Triangle4Record)(ptrOf(e))
		return soaIDs4(rec.GeomID, rec.PrimID)
	case LayoutTriangle4v:
		rec := (*Triangle4vRecord)(ptrOf(e))
		return soaIDs4(rec.GeomID, rec.PrimID)
	case LayoutTriangle4i:
		rec := (*Triangle4iRecord)(ptrOf(e))
		return soaIDs4(rec.GeomID, rec.PrimID)
	case LayoutTriangle8:
		rec := (*Triangle8Record)(ptrOf(e))
		out := make([]PrimID, 0, 8)
		for lane := 0; lane < 8; lane++ {
			if rec.GeomID[lane] < 0 {
				continue
			}
			out = append(out, PrimID{GeomID: uint32(rec.GeomID[lane]), PrimID: uint32(rec.PrimID[lane])})
		}
		return out
	default:
		panic("bvh4: unknown layout kind")
	}
}

func soaIDs4(geomID, primID [4]int32) []PrimID {
	out := make([]PrimID, 0, 4)
	for lane := 0; lane < 4; lane++ {
		if geomID[lane] < 0 {
			continue
		}
		out = append(out, PrimID{GeomID: uint32(geomID[lane]), PrimID: uint32(primID[lane])})
	}
	return out
}

// LeafItemCount reports how many triangles a leaf pointer carries for the
// given layout. Triangle1/Triangle1v store the true count in the header
// allocHeaderedArray wrote, since their EncodedPtr's packed count field is
// always 1 (see emitTriangle1). The SoA layouts (Triangle4/Triangle4v/
// Triangle8/Triangle4i) also always encode a packed count of 1 — their
// emitters fill every lane of a fixed-width record regardless of how many
// triangles it actually holds, so the true count lives in the record's
// sentinel-terminated lanes, not in the pointer. LeafIDs already walks
// those lanes correctly, so this counts its result rather than trusting
// leafCount().
func LeafItemCount(kind LayoutKind, e EncodedPtr) int {
	switch kind {
	case LayoutTriangle1, LayoutTriangle1v:
		return decodeHeaderCount(ptrOf(e))
	default:
		return len(LeafIDs(kind, e))
	}
}

func emitTriangle4(scene Scene, items []PrimRef, sub *SubAllocator) (EncodedPtr, error) {
	rec, err := AllocLeaf[Triangle4Record](sub)
	if err != nil {
		return 0, err
	}
	for lane := 0; lane < 4; lane++ {
		rec.GeomID[lane] = -1
		rec.PrimID[lane] = -1
	}
	for lane, p := range items {
		mesh, tri := meshAndTri(scene, p.ID)
		v0, v1, v2 := vec3At(mesh, tri.V[0]), vec3At(mesh, tri.V[1]), vec3At(mesh, tri.V[2])
		rec.V0X[lane], rec.V0Y[lane], rec.V0Z[lane] = v0.X, v0.Y, v0.Z
		rec.V1X[lane], rec.V1Y[lane], rec.V1Z[lane] = v1.X, v1.Y, v1.Z
		rec.V2X[lane], rec.V2Y[lane], rec.V2Z[lane] = v2.X, v2.Y, v2.Z
		rec.GeomID[lane] = int32(p.ID.GeomID)
		rec.PrimID[lane] = int32(p.ID.PrimID)
	}
	return encodeLeafPtr(unsafe.Pointer(rec), 1), nil
}

func emitTriangle4v(scene Scene, items []PrimRef, sub *SubAllocator) (EncodedPtr, error) {
	rec, err := AllocLeaf[Triangle4vRecord](sub)
	if err != nil {
		return 0, err
	}
	for lane := 0; lane < 4; lane++ {
		rec.GeomID[lane] = -1
		rec.PrimID[lane] = -1
	}
	for lane, p := range items {
		mesh, tri := meshAndTri(scene, p.ID)
		v0, v1, v2 := vec3At(mesh, tri.V[0]), vec3At(mesh, tri.V[1]), vec3At(mesh, tri.V[2])
		rec.V0X[lane], rec.V0Y[lane], rec.V0Z[lane] = v0.X, v0.Y, v0.Z
		rec.V1X[lane], rec.V1Y[lane], rec.V1Z[lane] = v1.X, v1.Y, v1.Z
		rec.V2X[lane], rec.V2Y[lane], rec.V2Z[lane] = v2.X, v2.Y, v2.Z
		rec.GeomID[lane] = int32(p.ID.GeomID)
		rec.PrimID[lane] = int32(p.ID.PrimID)
	}
	return encodeLeafPtr(unsafe.Pointer(rec), 1), nil
}

func emitTriangle8(scene Scene, items []PrimRef, sub *SubAllocator) (EncodedPtr, error) {
	rec, err := AllocLeaf[Triangle8Record](sub)
	if err != nil {
		return 0, err
	}
	for lane := 0; lane < 8; lane++ {
		rec.GeomID[lane] = -1
		rec.PrimID[lane] = -1
	}
	for lane, p := range items {
		mesh, tri := meshAndTri(scene, p.ID)
		v0, v1, v2 := vec3At(mesh, tri.V[0]), vec3At(mesh, tri.V[1]), vec3At(mesh, tri.V[2])
		rec.V0X[lane], rec.V0Y[lane], rec.V0Z[lane] = v0.X, v0.Y, v0.Z
		rec.V1X[lane], rec.V1Y[lane], rec.V1Z[lane] = v1.X, v1.Y, v1.Z
		rec.V2X[lane], rec.V2Y[lane], rec.V2Z[lane] = v2.X, v2.Y, v2.Z
		rec.GeomID[lane] = int32(p.ID.GeomID)
		rec.PrimID[lane] = int32(p.ID.PrimID)
	}
	return encodeLeafPtr(unsafe.Pointer(rec), 1), nil
}

func emitTriangle4i(scene Scene, items []PrimRef, sub *SubAllocator) (EncodedPtr, error) {
	rec, err := AllocLeaf[Triangle4iRecord](sub)
	if err != nil {
		return 0, err
	}
	for lane, p := range items {
		_, tri := meshAndTri(scene, p.ID)
		rec.V0Index[lane] = tri.V[0]
		rec.Off1[lane] = int32(tri.V[1]) - int32(tri.V[0])
		rec.Off2[lane] = int32(tri.V[2]) - int32(tri.V[0])
		rec.GeomID[lane] = int32(p.ID.GeomID)
		rec.PrimID[lane] = int32(p.ID.PrimID)
	}
	for lane := len(items); lane < 4; lane++ {
		rec.V0Index[lane] = rec.V0Index[0]
		rec.Off1[lane] = 0
		rec.Off2[lane] = 0
		rec.GeomID[lane] = -1
		rec.PrimID[lane] = -1
	}
	return encodeLeafPtr(unsafe.Pointer(rec), 1), nil
}
