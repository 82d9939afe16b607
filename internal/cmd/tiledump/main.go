// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// tiledump prints the tile traversal order and device assignment for a
// given image configuration. Useful for eyeballing changes to the tile
// generator, in particular the Hilbert spiral.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/CoolMcFly81/blender"
	"github.com/CoolMcFly81/blender/buffers"
	"github.com/CoolMcFly81/blender/imath"
)

func main() {
	var (
		width    int
		height   int
		tileSize int
		devices  int
		order    int
		sliced   bool
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [-sliced] [-w <px>] [-h <px>] [-tile <px>] [-devices <n>] [-order <0..5>]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.IntVar(&width, "w", 256, "Image `width`")
	flag.IntVar(&height, "h", 256, "Image `height`")
	flag.IntVar(&tileSize, "tile", 32, "Tile `size`")
	flag.IntVar(&devices, "devices", 1, "Number of `devices`")
	flag.IntVar(&order, "order", int(blender.OrderHilbertSpiral), "Tile `order` (0..5)")
	flag.BoolVar(&sliced, "sliced", false, "Slice the image across devices instead of splitting tiles")
	flag.Parse()

	if len(flag.Args()) != 0 {
		flag.Usage()
		os.Exit(2)
	}

	dief := func(f string, v ...any) {
		fmt.Fprintf(os.Stderr, f, v...)
		fmt.Fprintln(os.Stderr)
		os.Exit(1)
	}

	tm, err := blender.New(false, 1, imath.Int2{X: tileSize, Y: tileSize}, imath.NoStartResolution,
		true, !sliced, blender.TileOrder(order), devices, false)
	if err != nil {
		dief("creating tile manager: %v", err)
	}
	tm.Reset(buffers.BufferParams{Width: width, Height: height, FullWidth: width, FullHeight: height}, 1)
	if !tm.Next() {
		dief("no progression steps for %dx%d", width, height)
	}

	p := tm.Progression()
	fmt.Printf("%dx%d, tile %d, order %v: %d tiles\n", width, height, tileSize, blender.TileOrder(order), p.NumTiles)
	for device := 0; device < devices; device++ {
		n := 0
		for {
			tile := tm.NextTile(device)
			if tile == nil {
				break
			}
			fmt.Printf("device %d #%03d: tile %3d at (%4d, %4d) %3dx%-3d\n",
				device, n, tile.Index, tile.X, tile.Y, tile.W, tile.H)
			n++
		}
	}
}
