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
	"fmt"

	"github.com/g3n/engine/loader/obj"
	"github.com/vigilantdoomer/bvh4build/internal/bvh4"
)

// LoadOBJScene reads a Wavefront OBJ file and flattens every face of every
// object in it into one TriangleMesh. Materials, UVs and normals are of no
// interest to this builder and are discarded; a face with more than 3
// vertex indices is fan-triangulated around its first vertex.
func LoadOBJScene(path string) (bvh4.TriangleMesh, error) {
	dec, err := obj.Decode(path, "")
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	mesh := &simpleMesh{
		vertices:  make([]bvh4.Vertex, 0, len(dec.Vertices)/3),
		triangles: make([]bvh4.Triangle, 0, len(dec.Objects)),
	}
	for i := 0; i+2 < len(dec.Vertices); i += 3 {
		mesh.vertices = append(mesh.vertices, bvh4.Vertex{
			X: dec.Vertices[i], Y: dec.Vertices[i+1], Z: dec.Vertices[i+2],
		})
	}
	for _, object := range dec.Objects {
		for _, face := range object.Faces {
			idx := face.Vertices
			for k := 1; k+1 < len(idx); k++ {
				mesh.triangles = append(mesh.triangles, bvh4.Triangle{
					V: [3]uint32{uint32(idx[0]), uint32(idx[k]), uint32(idx[k+1])},
				})
			}
		}
	}
	return mesh, nil
}
