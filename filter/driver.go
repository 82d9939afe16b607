package filter

import (
	"runtime"
	"sync"

	"honnef.co/go/safeish"

	"github.com/CoolMcFly81/blender/imath"
	"github.com/CoolMcFly81/blender/mem"
	"github.com/CoolMcFly81/blender/profiler"
)

// TileTransforms holds the per-pixel feature transforms of one tile,
// row-major over the tile's pixels. Storage comes from a mem.Pool and is
// handed back on Release.
type TileTransforms struct {
	// Transforms holds Features*Features values per pixel.
	Transforms []float32
	// Ranks holds the valid row count of each pixel's transform.
	Ranks []int32

	pool     *mem.Pool
	raw      []byte
	rawRanks []byte
}

// Release returns the transform storage to its pool.
func (t *TileTransforms) Release() {
	if t.raw == nil {
		return
	}
	t.pool.Put(t.raw)
	t.pool.Put(t.rawRanks)
	t.raw = nil
	t.rawRanks = nil
	t.Transforms = nil
	t.Ranks = nil
}

// Prepare computes the feature transform for every pixel of the w×h tile
// whose origin is (x, y). Pixels are processed in parallel across row
// bands; src must be safe for concurrent reads. rect clips the feature
// windows, typically to the tile plus its overscan.
func Prepare(src FeatureSource, x, y, w, h int, rect imath.Int4, radius int, pcaThreshold float32, pool *mem.Pool, pgroup profiler.ProfilerGroup) *TileTransforms {
	pgroup = pgroup.Start("filter.Prepare")
	defer pgroup.End()

	raw := pool.Get(w * h * Features * Features * 4)
	rawRanks := pool.Get(w * h * 4)
	tt := &TileTransforms{
		Transforms: safeish.SliceCast[[]float32](raw),
		Ranks:      safeish.SliceCast[[]int32](rawRanks),
		pool:       pool,
		raw:        raw,
		rawRanks:   rawRanks,
	}

	workers := min(h, runtime.NumCPU())
	rowsPerWorker := imath.CeilDiv(h, workers)

	var wg sync.WaitGroup
	for worker := 0; worker < workers; worker++ {
		y0 := worker * rowsPerWorker
		y1 := min(h, y0+rowsPerWorker)
		if y0 >= y1 {
			break
		}
		wg.Add(1)
		go func(y0, y1 int) {
			defer wg.Done()
			for ty := y0; ty < y1; ty++ {
				for tx := 0; tx < w; tx++ {
					pixel := ty*w + tx
					matrix := tt.Transforms[pixel*Features*Features : (pixel+1)*Features*Features]
					rank := ConstructTransform(src, x+tx, y+ty, rect, matrix, radius, pcaThreshold)
					tt.Ranks[pixel] = int32(rank)
				}
			}
		}(y0, y1)
	}
	wg.Wait()

	return tt
}
