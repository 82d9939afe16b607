// Package buffers holds the render-buffer bookkeeping shared between the
// tile scheduler and the denoise-prepare kernels: buffer window
// parameters, pooled per-tile pass storage, and the denoise pass layout.
package buffers

import (
	"errors"
	"fmt"

	"honnef.co/go/safeish"

	"github.com/CoolMcFly81/blender/mem"
)

// ErrMismatch is returned when an externally supplied buffer does not
// match its declared dimensions.
var ErrMismatch = errors.New("buffer does not match declared dimensions")

// BufferParams describes the window being rendered within a larger
// canvas. Width and Height are the size of this buffer; FullX, FullY,
// FullWidth and FullHeight locate and size the canvas the window belongs
// to. PassStride is the number of float32 values stored per pixel.
type BufferParams struct {
	Width  int
	Height int

	FullX      int
	FullY      int
	FullWidth  int
	FullHeight int

	PassStride int
}

// RenderBuffers owns the pass storage for one tile (denoise scheduling)
// or for the whole image (everything else). Storage comes from a mem.Pool
// and is handed back on Release.
type RenderBuffers struct {
	Params BufferParams

	pool *mem.Pool
	raw  []byte
}

// New acquires pooled storage sized for params. PassStride defaults to
// the denoise pass layout if zero.
func New(pool *mem.Pool, params BufferParams) *RenderBuffers {
	if params.PassStride == 0 {
		params.PassStride = PassStride()
	}
	n := params.Width * params.Height * params.PassStride * 4
	return &RenderBuffers{
		Params: params,
		pool:   pool,
		raw:    pool.Get(n),
	}
}

// Data returns the pass storage as float32 values, row-major, PassStride
// values per pixel. The view is invalid after Release.
func (b *RenderBuffers) Data() []float32 {
	return safeish.SliceCast[[]float32](b.raw)
}

// Check verifies that an external buffer of n float32 values matches the
// declared window dimensions.
func (b *RenderBuffers) Check(n int) error {
	want := b.Params.Width * b.Params.Height * b.Params.PassStride
	if n != want {
		return fmt.Errorf("%w: got %d values, want %d (%dx%d, stride %d)",
			ErrMismatch, n, want, b.Params.Width, b.Params.Height, b.Params.PassStride)
	}
	return nil
}

// Release returns the storage to the pool. Further Release calls are
// no-ops, so a caller-side free and a later FreeDevice may both release
// the same tile. Release is not safe for concurrent use.
func (b *RenderBuffers) Release() {
	if b.raw == nil {
		return
	}
	b.pool.Put(b.raw)
	b.raw = nil
}
