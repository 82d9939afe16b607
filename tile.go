package blender

import "github.com/CoolMcFly81/blender/buffers"

// TileState tracks a tile through its render→denoise→free lifecycle.
type TileState int

const (
	// TileRender: the tile has to be rendered.
	TileRender TileState = iota
	// TileRendered: the tile has been rendered, but can't be denoised yet
	// (waiting for neighbors).
	TileRendered
	// TileDenoise: the tile can be denoised now.
	TileDenoise
	// TileDenoised: the tile has been denoised, but can't be freed yet
	// (waiting for neighbors).
	TileDenoised
	// TileDone: the tile is finished. Its buffers have been freed, or, for
	// the tile just returned, their free is left to the caller.
	TileDone
)

func (s TileState) String() string {
	switch s {
	case TileRender:
		return "render"
	case TileRendered:
		return "rendered"
	case TileDenoise:
		return "denoise"
	case TileDenoised:
		return "denoised"
	case TileDone:
		return "done"
	default:
		return "invalid"
	}
}

// TileOrder selects the traversal order of tiles within a device's queue.
// The numeric values are persisted in configuration files and must not
// change.
type TileOrder int

const (
	OrderCenter        TileOrder = 0
	OrderRightToLeft   TileOrder = 1
	OrderLeftToRight   TileOrder = 2
	OrderTopToBottom   TileOrder = 3
	OrderBottomToTop   TileOrder = 4
	OrderHilbertSpiral TileOrder = 5
)

func (o TileOrder) String() string {
	switch o {
	case OrderCenter:
		return "center"
	case OrderRightToLeft:
		return "right-to-left"
	case OrderLeftToRight:
		return "left-to-right"
	case OrderTopToBottom:
		return "top-to-bottom"
	case OrderBottomToTop:
		return "bottom-to-top"
	case OrderHilbertSpiral:
		return "hilbert-spiral"
	default:
		return "invalid"
	}
}

// Tile is one rectangular subregion of the image, the unit of work
// assignment. (X, Y) is in image-space pixel coordinates at the current
// resolution; tiles at the image edges may be smaller than the nominal
// tile size.
type Tile struct {
	Index  int
	X, Y   int
	W, H   int
	Device int
	State  TileState

	// Buffers is owned by the tile while the manager schedules denoising;
	// otherwise it references the shared global buffers.
	Buffers *buffers.RenderBuffers

	// Position in the tile grid. All neighbor addressing goes through
	// these, never through pixel coordinates.
	gridX, gridY int
}
