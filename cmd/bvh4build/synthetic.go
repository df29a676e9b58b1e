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
package main

import (
	"math/rand"

	"github.com/vigilantdoomer/bvh4build/internal/bvh4"
)

// GenerateSyntheticScene builds a mesh of n independent, randomly placed
// and sized triangles inside a unit cube, scattered with their own RNG
// source so a seed always reproduces the same scene regardless of what else
// in the program has called math/rand.
func GenerateSyntheticScene(n int, seed int64) bvh4.TriangleMesh {
	src := rand.New(rand.NewSource(seed))
	mesh := &simpleMesh{
		vertices:  make([]bvh4.Vertex, 0, n*3),
		triangles: make([]bvh4.Triangle, 0, n),
	}
	for i := 0; i < n; i++ {
		cx, cy, cz := src.Float32(), src.Float32(), src.Float32()
		scale := float32(0.01) + src.Float32()*0.02
		v0 := bvh4.Vertex{X: cx, Y: cy, Z: cz}
		v1 := bvh4.Vertex{X: cx + scale*jitter(src), Y: cy + scale*jitter(src), Z: cz + scale*jitter(src)}
		v2 := bvh4.Vertex{X: cx + scale*jitter(src), Y: cy + scale*jitter(src), Z: cz + scale*jitter(src)}
		base := uint32(len(mesh.vertices))
		mesh.vertices = append(mesh.vertices, v0, v1, v2)
		mesh.triangles = append(mesh.triangles, bvh4.Triangle{V: [3]uint32{base, base + 1, base + 2}})
	}
	return mesh
}

func jitter(src *rand.Rand) float32 {
	return src.Float32()*2 - 1
}
