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
	"os"
	"runtime"

	"github.com/vigilantdoomer/bvh4build/internal/bvh4"
)

const VERSION = "0.1.0"

/*
-i=<path>  Input Wavefront OBJ file to build a tree over.

-s=<n>     Ignore -i and build over a synthetic scene of n random triangles
	seed=<n> RNG seed for the synthetic scene (default 1)

-l=<kind>  Leaf layout: 1, 4, 8, 1v, 4v, 4i (default 4)

-t=<n>     Thread count (default: number of cores)

-d         Deterministic single-threaded build (same as -t=1)

-depth=<n>      Max build depth before forcing a leaf (default 48)
-depthleaf=<n>  Max depth a leaf itself may still appear at (default 64)

-v         Add verbosity to text output. Use multiple times for more.

-p=<path>  Write a CPU profile to path.
*/

type BuilderCLIConfig struct {
	InputFileName     string
	SyntheticCount    int
	SyntheticSeed     int64
	LayoutName        string
	ThreadCount       int
	Deterministic     bool
	MaxBuildDepth     int
	MaxBuildDepthLeaf int
	VerbosityLevel    int
	ProfilePath       string
}

var cliConfig *BuilderCLIConfig

func Configure() {
	Log.Printf("bvh4build ver %s\n", VERSION)
	Log.Printf("A binned-SAH BVH4 builder over triangle meshes.\n\n")
	cliConfig = &BuilderCLIConfig{
		LayoutName:        "4",
		ThreadCount:       0, // 0 means "auto"
		SyntheticSeed:     1,
		MaxBuildDepth:     bvh4.DefaultMaxBuildDepth,
		MaxBuildDepthLeaf: bvh4.DefaultMaxBuildDepthLeaf,
	}
	if !cliConfig.FromCommandLine() {
		Log.Printf("\n")
		os.Exit(1)
	}
	if cliConfig.ThreadCount <= 0 {
		cliConfig.ThreadCount = runtime.NumCPU()
	}
	if cliConfig.Deterministic {
		cliConfig.ThreadCount = 1
	}
	Log.Verbosity = cliConfig.VerbosityLevel
}

func layoutKindFromName(name string) (bvh4.LayoutKind, bool) {
	switch name {
	case "1":
		return bvh4.LayoutTriangle1, true
	case "4":
		return bvh4.LayoutTriangle4, true
	case "8":
		return bvh4.LayoutTriangle8, true
	case "1v":
		return bvh4.LayoutTriangle1v, true
	case "4v":
		return bvh4.LayoutTriangle4v, true
	case "4i":
		return bvh4.LayoutTriangle4i, true
	default:
		return 0, false
	}
}
