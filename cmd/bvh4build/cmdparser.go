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
	"strconv"
	"strings"
)

// FromCommandLine fills in c from os.Args, returning false on a parse error
// worth aborting for.
func (c *BuilderCLIConfig) FromCommandLine() bool {
	args := os.Args[1:]
	haveInput := false
	for _, arg := range args {
		if len(arg) < 2 || arg[0] != '-' {
			if !haveInput && c.SyntheticCount == 0 {
				c.InputFileName = arg
				haveInput = true
				continue
			}
			Log.Error("Unexpected extra argument '%s' - aborting.\n", arg)
			return false
		}
		body := arg[1:]
		switch {
		case strings.HasPrefix(body, "i="):
			c.InputFileName = body[2:]
			haveInput = true
		case strings.HasPrefix(body, "s="):
			n, ok := readInt(body[2:])
			if !ok {
				Log.Error("Couldn't parse triangle count in '%s'.\n", arg)
				return false
			}
			c.SyntheticCount = n
		case strings.HasPrefix(body, "seed="):
			n, ok := readInt(body[5:])
			if !ok {
				Log.Error("Couldn't parse seed in '%s'.\n", arg)
				return false
			}
			c.SyntheticSeed = int64(n)
		case strings.HasPrefix(body, "l="):
			c.LayoutName = body[2:]
		case strings.HasPrefix(body, "t="):
			n, ok := readInt(body[2:])
			if !ok {
				Log.Error("Couldn't parse thread count in '%s'.\n", arg)
				return false
			}
			c.ThreadCount = n
		case body == "d":
			c.Deterministic = true
		case strings.HasPrefix(body, "depth="):
			n, ok := readInt(body[6:])
			if !ok {
				Log.Error("Couldn't parse max depth in '%s'.\n", arg)
				return false
			}
			c.MaxBuildDepth = n
		case strings.HasPrefix(body, "depthleaf="):
			n, ok := readInt(body[10:])
			if !ok {
				Log.Error("Couldn't parse max leaf depth in '%s'.\n", arg)
				return false
			}
			c.MaxBuildDepthLeaf = n
		case strings.HasPrefix(body, "p="):
			c.ProfilePath = body[2:]
		case allV(body):
			c.VerbosityLevel += len(body)
		default:
			Log.Error("Unrecognized option '%s' - aborting.\n", arg)
			return false
		}
	}
	if c.InputFileName == "" && c.SyntheticCount == 0 {
		Log.Error("You must specify either -i=<obj file> or -s=<triangle count>.\n")
		return false
	}
	if _, ok := layoutKindFromName(c.LayoutName); !ok {
		Log.Error("Unrecognized layout '%s'; expected one of 1, 4, 8, 1v, 4v, 4i.\n", c.LayoutName)
		return false
	}
	return true
}

// allV reports whether body is one or more 'v' characters ("-v", "-vv", ...).
func allV(body string) bool {
	if body == "" {
		return false
	}
	for _, c := range body {
		if c != 'v' {
			return false
		}
	}
	return true
}

func readInt(s string) (int, bool) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, true
}
