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

func triangleBounds(mesh TriangleMesh, tri Triangle) AABB {
	v0 := mesh.Vertex(int(tri.V[0]))
	v1 := mesh.Vertex(int(tri.V[1]))
	v2 := mesh.Vertex(int(tri.V[2]))
	b := AABB{
		Lower: Vec3{v0.X, v0.Y, v0.Z},
		Upper: Vec3{v0.X, v0.Y, v0.Z},
	}
	b.Extend(AABB{Lower: Vec3{v1.X, v1.Y, v1.Z}, Upper: Vec3{v1.X, v1.Y, v1.Z}})
	b.Extend(AABB{Lower: Vec3{v2.X, v2.Y, v2.Z}, Upper: Vec3{v2.X, v2.Y, v2.Z}})
	return b
}

// GenerateSequential scans scene, emitting one PrimRef per valid triangle
// (triangle meshes with exactly one time step; all other geometries are
// skipped) and computing the aggregate PrimInfo over everything emitted
// (spec.md §4.2).
func GenerateSequential(scene Scene) (prims []PrimRef, pinfo PrimInfo) {
	pinfo = EmptyPrimInfo()
	for g := 0; g < scene.Size(); g++ {
		geom := scene.Get(g)
		mesh, ok := geom.(TriangleMesh)
		if !ok || mesh.NumTimeSteps() != 1 {
			continue
		}
		for t := 0; t < mesh.NumTriangles(); t++ {
			tri := mesh.Triangle(t)
			ref := PrimRef{
				Bounds: triangleBounds(mesh, tri),
				ID:     PrimID{GeomID: uint32(g), PrimID: uint32(t)},
			}
			prims = append(prims, ref)
			pinfo.Add(ref)
		}
	}
	return prims, pinfo
}

// GenerateParallel partitions the geometry index space across threadCount
// workers. Each worker scans a contiguous run of geometries and writes into
// its own slice; the slices are concatenated in geometry order and the
// partial PrimInfos reduced, so the result holds the same PrimRefs in the
// same order as GenerateSequential (spec.md §4.2).
func GenerateParallel(scene Scene, threadCount int) (prims []PrimRef, pinfo PrimInfo) {
	n := scene.Size()
	if threadCount < 1 {
		threadCount = 1
	}
	if n == 0 || threadCount == 1 {
		return GenerateSequential(scene)
	}

	chunk := (n + threadCount - 1) / threadCount
	type partial struct {
		prims []PrimRef
		info  PrimInfo
	}
	partials := make([]partial, threadCount)

	var wg sync.WaitGroup
	for t := 0; t < threadCount; t++ {
		lo := t * chunk
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		if lo >= hi {
			continue
		}
		wg.Add(1)
		go func(t, lo, hi int) {
			defer wg.Done()
			local := EmptyPrimInfo()
			var localPrims []PrimRef
			for g := lo; g < hi; g++ {
				mesh, ok := scene.Get(g).(TriangleMesh)
				if !ok || mesh.NumTimeSteps() != 1 {
					continue
				}
				for i := 0; i < mesh.NumTriangles(); i++ {
					tri := mesh.Triangle(i)
					ref := PrimRef{
						Bounds: triangleBounds(mesh, tri),
						ID:     PrimID{GeomID: uint32(g), PrimID: uint32(i)},
					}
					localPrims = append(localPrims, ref)
					local.Add(ref)
				}
			}
			partials[t] = partial{prims: localPrims, info: local}
		}(t, lo, hi)
	}
	wg.Wait()

	pinfo = EmptyPrimInfo()
	total := 0
	for _, p := range partials {
		total += len(p.prims)
	}
	prims = make([]PrimRef, 0, total)
	for _, p := range partials {
		prims = append(prims, p.prims...)
		pinfo = pinfo.Merge(p.info)
	}
	return prims, pinfo
}
