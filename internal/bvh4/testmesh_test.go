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

// testmesh_test.go
package bvh4

import "math/rand"

// fakeMesh is a minimal TriangleMesh backed by flat slices, shared by every
// scenario test in this package.
type fakeMesh struct {
	vertices  []Vertex
	triangles []Triangle
}

func (m *fakeMesh) Type() GeometryType     { return GeometryTriangleMesh }
func (m *fakeMesh) NumTriangles() int      { return len(m.triangles) }
func (m *fakeMesh) NumVertices() int       { return len(m.vertices) }
func (m *fakeMesh) NumTimeSteps() int      { return 1 }
func (m *fakeMesh) Triangle(i int) Triangle { return m.triangles[i] }
func (m *fakeMesh) Vertex(i int) Vertex     { return m.vertices[i] }
func (m *fakeMesh) Mask() uint32            { return 0xFFFFFFFF }

func (m *fakeMesh) addTriangle(v0, v1, v2 Vertex) {
	base := uint32(len(m.vertices))
	m.vertices = append(m.vertices, v0, v1, v2)
	m.triangles = append(m.triangles, Triangle{V: [3]uint32{base, base + 1, base + 2}})
}

// axisTriangles lays out n degenerate triangles with centroids at
// x=0,1,2,...,n-1 on the X axis, all sharing y=z=0. Used by S3-style tests.
func axisTriangles(n int) *fakeMesh {
	m := &fakeMesh{}
	for i := 0; i < n; i++ {
		x := float32(i)
		m.addTriangle(
			Vertex{X: x, Y: 0, Z: 0},
			Vertex{X: x + 0.1, Y: 0, Z: 0},
			Vertex{X: x, Y: 0.1, Z: 0},
		)
	}
	return m
}

// coincidentTriangles lays out n triangles that all share the exact same
// centroid, used by S4-style degenerate-cluster tests.
func coincidentTriangles(n int) *fakeMesh {
	m := &fakeMesh{}
	for i := 0; i < n; i++ {
		m.addTriangle(
			Vertex{X: 0, Y: 0, Z: 0},
			Vertex{X: 1, Y: 0, Z: 0},
			Vertex{X: 0, Y: 1, Z: 0},
		)
	}
	return m
}

// randomTriangles scatters n independently placed, non-degenerate triangles
// inside a unit cube using a seeded RNG so tests are repeatable.
func randomTriangles(n int, seed int64) *fakeMesh {
	src := rand.New(rand.NewSource(seed))
	m := &fakeMesh{}
	for i := 0; i < n; i++ {
		cx, cy, cz := src.Float32(), src.Float32(), src.Float32()
		j := func() float32 { return src.Float32()*2 - 1 }
		const scale = 0.01
		m.addTriangle(
			Vertex{X: cx, Y: cy, Z: cz},
			Vertex{X: cx + scale*j(), Y: cy + scale*j(), Z: cz + scale*j()},
			Vertex{X: cx + scale*j(), Y: cy + scale*j(), Z: cz + scale*j()},
		)
	}
	return m
}
