package blender

import (
	"testing"

	"github.com/CoolMcFly81/blender/buffers"
	"github.com/CoolMcFly81/blender/imath"
	"github.com/CoolMcFly81/blender/mem"
)

// On the denoised→done promotion, neighbor buffers are freed immediately
// while the returned tile's own free is deferred to the caller: the tile
// still has to be written back.
func TestBufferFreeing(t *testing.T) {
	tm := mustNew(t, false, 1, imath.Int2{X: 16, Y: 16}, imath.NoStartResolution,
		false, true, OrderBottomToTop, 1, false)
	tm.ScheduleDenoising = true
	tm.Reset(params(32, 32), 1)
	tm.Next()

	pool := mem.NewPool()
	for _, tile := range drainRender(tm, 0) {
		tile.Buffers = buffers.New(pool, buffers.BufferParams{
			Width: tile.W, Height: tile.H, PassStride: 4,
		})
	}
	for i := 0; i < 4; i++ {
		tm.ReturnTile(i)
	}

	// All four tiles now sit in the denoise queue (a 2×2 grid is its own
	// neighborhood). Denoise them in order; the final return frees the
	// first three and defers the last.
	var lastDelete bool
	for i := 0; i < 4; i++ {
		tile := tm.NextTile(0)
		if tile == nil {
			t.Fatalf("denoise pop %d returned nil", i)
		}
		writeback, deleteTile := tm.ReturnTile(tile.Index)
		if !writeback {
			t.Errorf("denoise return %d: writeback = false", i)
		}
		lastDelete = deleteTile
	}
	if !lastDelete {
		t.Error("final return did not defer its own free to the caller")
	}

	for i := range tm.state.tiles {
		tile := &tm.state.tiles[i]
		if tile.State != TileDone {
			t.Errorf("tile %d state = %v, want done", i, tile.State)
		}
		if i == 3 {
			if tile.Buffers == nil {
				t.Error("returned tile's buffers were freed before writeback")
			}
		} else if tile.Buffers != nil {
			t.Errorf("tile %d buffers not freed on promotion", i)
		}
	}

	tm.FreeDevice()
	for i := range tm.state.tiles {
		if tm.state.tiles[i].Buffers != nil {
			t.Errorf("tile %d buffers survived FreeDevice", i)
		}
	}
}
