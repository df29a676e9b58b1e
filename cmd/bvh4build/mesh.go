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

import "github.com/vigilantdoomer/bvh4build/internal/bvh4"

// simpleMesh is the CLI's in-memory bvh4.TriangleMesh: a flat vertex array
// plus a flat triangle-index array, shared by both the OBJ loader and the
// synthetic scene generator.
type simpleMesh struct {
	vertices  []bvh4.Vertex
	triangles []bvh4.Triangle
}

func (m *simpleMesh) Type() bvh4.GeometryType { return bvh4.GeometryTriangleMesh }
func (m *simpleMesh) NumTriangles() int        { return len(m.triangles) }
func (m *simpleMesh) NumVertices() int         { return len(m.vertices) }
func (m *simpleMesh) NumTimeSteps() int        { return 1 }
func (m *simpleMesh) Triangle(i int) bvh4.Triangle { return m.triangles[i] }
func (m *simpleMesh) Vertex(i int) bvh4.Vertex     { return m.vertices[i] }
func (m *simpleMesh) Mask() uint32                 { return 0xFFFFFFFF }
