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

// -- This file is where the program entry is.
package main

import (
	"os"
	"runtime/pprof"
	"time"

	"github.com/vigilantdoomer/bvh4build/internal/buildlog"
	"github.com/vigilantdoomer/bvh4build/internal/bvh4"
)

var Log = buildlog.New(0)

func main() {
	timeStart := time.Now()

	Configure()

	if cliConfig.ProfilePath != "" {
		f, err := os.Create(cliConfig.ProfilePath)
		if err != nil {
			Log.Printf("Could not create CPU profile: %s\n", err.Error())
		} else {
			defer f.Close()
			if err := pprof.StartCPUProfile(f); err != nil {
				Log.Printf("Could not start CPU profile: %s\n", err.Error())
			} else {
				defer pprof.StopCPUProfile()
			}
		}
	}

	var mesh bvh4.TriangleMesh
	var err error
	if cliConfig.SyntheticCount > 0 {
		Log.Printf("Generating a synthetic scene of %d triangles (seed %d)\n",
			cliConfig.SyntheticCount, cliConfig.SyntheticSeed)
		mesh = GenerateSyntheticScene(cliConfig.SyntheticCount, cliConfig.SyntheticSeed)
	} else {
		Log.Printf("Loading %s\n", cliConfig.InputFileName)
		mesh, err = LoadOBJScene(cliConfig.InputFileName)
		if err != nil {
			Log.Error("Couldn't load %s: %s\n", cliConfig.InputFileName, err)
			os.Exit(1)
		}
	}
	Log.Verbose(1, "Scene has %d vertices, %d triangles\n", mesh.NumVertices(), mesh.NumTriangles())

	kind, _ := layoutKindFromName(cliConfig.LayoutName)
	builder := bvh4.NewBuilder(kind, bvh4.AsScene(mesh), bvh4.BuilderOptions{
		MaxBuildDepth:     cliConfig.MaxBuildDepth,
		MaxBuildDepthLeaf: cliConfig.MaxBuildDepthLeaf,
		Logger:            Log,
	})

	Log.Printf("Building BVH4/%s with %d thread(s)...\n", kind, cliConfig.ThreadCount)
	tree, err := builder.Build(0, cliConfig.ThreadCount)
	if err != nil {
		Log.Error("Build failed: %s\n", err)
		os.Exit(1)
	}
	Log.Flush()

	if err := bvh4.Verify(kind, tree); err != nil {
		Log.Error("Built tree failed verification: %s\n", err)
		os.Exit(1)
	}
	if err := bvh4.VerifyBounds(kind, bvh4.Layouts[kind], cliConfig.MaxBuildDepthLeaf, tree); err != nil {
		Log.Error("Built tree failed bounds verification: %s\n", err)
		os.Exit(1)
	}

	stats := builder.Stats()
	Log.Printf("Nodes: %d  Leaves: %d  Primitives: %d  Max depth: %d\n",
		stats.NodeCount, stats.LeafCount, stats.PrimCount, stats.MaxDepth)
	Log.Printf("Node arena: %d/%d bytes  Primitive arena: %d/%d bytes\n",
		tree.BytesNodes, tree.Nodes.Reserved(), tree.BytesPrimitives, tree.Primitives.Reserved())
	Log.Printf("Total time: %s\n", time.Since(timeStart))
}
