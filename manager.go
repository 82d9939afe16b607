// Package blender implements the work-scheduling and denoise-coordination
// core of a tile-based renderer: tile grid generation in multiple
// traversal orders, per-device work queues, the render→denoise→free tile
// lifecycle with its 3×3 spatial gating rules, and progressive
// multi-resolution refinement.
package blender

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/CoolMcFly81/blender/buffers"
	"github.com/CoolMcFly81/blender/imath"
)

// managerState is the per-grid scheduling state. It is rebuilt by every
// progression step and discarded on Reset.
type managerState struct {
	tiles      []Tile
	tileStride int
	tileRows   int

	buffer buffers.BufferParams

	sample            int
	numSamples        int
	resolutionDivider int
	numTiles          int
	numRenderedTiles  int

	// Total samples over all pixels. Generally numSamples*numPixels, but
	// can be higher due to the initial resolution division for previews.
	totalPixelSamples uint64

	// Per logical device: indices of the tiles to be rendered/denoised,
	// popped from the front when a device acquires work.
	renderTiles  [][]int
	denoiseTiles [][]int
}

// Progression is a snapshot of the manager's progression state.
type Progression struct {
	Sample            int
	NumSamples        int
	ResolutionDivider int
	NumTiles          int
	NumRenderedTiles  int
	TotalPixelSamples uint64
	Buffer            buffers.BufferParams
}

// TileManager hands out tiles to requesting devices and tracks them
// through their lifecycle. NextTile and ReturnTile are the
// synchronization surface: they execute under an internal mutex, and
// workers render or denoise in parallel between those calls.
type TileManager struct {
	mu     sync.Mutex
	params buffers.BufferParams
	state  managerState

	numSamples         int
	progressive        bool
	tileSize           imath.Int2
	tileOrder          TileOrder
	startResolution    int
	numDevices         int
	onlyDenoise        bool
	preserveTileDevice bool
	background         bool

	// ScheduleDenoising makes rendered tiles pass through the denoise
	// states instead of completing immediately. Must be set before Reset.
	ScheduleDenoising bool

	// RangeStartSample and RangeNumSamples restrict rendering to a sample
	// range. RangeNumSamples == -1 disables the range.
	RangeStartSample int
	RangeNumSamples  int
}

// New creates a tile manager. numDevices is the number of logical compute
// devices; onlyDenoise generates tiles for denoising only. Returns
// ErrInvalidDimensions for a non-positive tile size and ErrInvalidOrder
// for the Hilbert spiral in sliced (non-background) mode.
func New(progressive bool, numSamples int, tileSize imath.Int2, startResolution int,
	preserveTileDevice, background bool, order TileOrder, numDevices int, onlyDenoise bool) (*TileManager, error) {
	if tileSize.X <= 0 || tileSize.Y <= 0 {
		return nil, fmt.Errorf("%w: tile size %dx%d", ErrInvalidDimensions, tileSize.X, tileSize.Y)
	}
	if order == OrderHilbertSpiral && !background {
		return nil, ErrInvalidOrder
	}
	if numDevices < 1 {
		numDevices = 1
	}

	tm := &TileManager{
		progressive:        progressive,
		tileSize:           tileSize,
		tileOrder:          order,
		startResolution:    startResolution,
		numSamples:         numSamples,
		numDevices:         numDevices,
		preserveTileDevice: preserveTileDevice,
		background:         background,
		onlyDenoise:        onlyDenoise,
		RangeStartSample:   0,
		RangeNumSamples:    -1,
	}
	tm.Reset(buffers.BufferParams{}, 0)
	return tm, nil
}

// Reset discards all tile state and prepares for rendering a buffer with
// the given parameters.
func (tm *TileManager) Reset(params buffers.BufferParams, numSamples int) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	tm.params = params
	tm.state = managerState{
		sample:            tm.RangeStartSample - 1,
		resolutionDivider: imath.Divider(params.Width, params.Height, tm.startResolution),
	}
	tm.setSamples(numSamples)
}

// SetSamples updates the total sample count and the derived progress
// accounting.
func (tm *TileManager) SetSamples(numSamples int) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.setSamples(numSamples)
}

func (tm *TileManager) setSamples(numSamples int) {
	tm.numSamples = numSamples

	switch {
	case numSamples == math.MaxInt32:
		// No real progress indication is possible with unlimited samples.
		tm.state.totalPixelSamples = 0
	case tm.onlyDenoise:
		tm.state.totalPixelSamples = uint64(tm.params.Width) * uint64(tm.params.Height)
	default:
		// The preview resolution steps before the native-resolution pass
		// render additional pixel samples.
		var pixelSamples uint64
		divider := imath.Divider(tm.params.Width, tm.params.Height, tm.startResolution) / 2
		for divider > 1 {
			imageW := max(1, tm.params.Width/divider)
			imageH := max(1, tm.params.Height/divider)
			pixelSamples += uint64(imageW) * uint64(imageH)
			divider >>= 1
		}

		pixels := uint64(tm.params.Width) * uint64(tm.params.Height)
		tm.state.totalPixelSamples = pixelSamples + uint64(tm.effectiveSamples())*pixels
		if tm.ScheduleDenoising {
			tm.state.totalPixelSamples += pixels
		}
	}
}

// SetTileOrder changes the traversal order for subsequently generated
// grids.
func (tm *TileManager) SetTileOrder(order TileOrder) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.tileOrder = order
}

// EffectiveSamples returns the number of samples actually rendered,
// excluding preview passes. Under only-denoise scheduling it is 1;
// downstream sample scaling depends on that constant.
func (tm *TileManager) EffectiveSamples() int {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.effectiveSamples()
}

func (tm *TileManager) effectiveSamples() int {
	if tm.onlyDenoise {
		return 1
	}
	if tm.RangeNumSamples == -1 {
		return tm.numSamples
	}
	return tm.RangeNumSamples
}

// Progression returns a snapshot of the current progression state.
func (tm *TileManager) Progression() Progression {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return Progression{
		Sample:            tm.state.sample,
		NumSamples:        tm.state.numSamples,
		ResolutionDivider: tm.state.resolutionDivider,
		NumTiles:          tm.state.numTiles,
		NumRenderedTiles:  tm.state.numRenderedTiles,
		TotalPixelSamples: tm.state.totalPixelSamples,
		Buffer:            tm.state.buffer,
	}
}

// Done reports whether all progression steps have been handed out.
func (tm *TileManager) Done() bool {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.done()
}

func (tm *TileManager) done() bool {
	endSample := tm.numSamples
	if tm.RangeNumSamples != -1 {
		endSample = tm.RangeStartSample + tm.RangeNumSamples
	}
	return tm.state.resolutionDivider == 1 &&
		tm.state.sample+tm.state.numSamples >= endSample
}

// Next advances to the next progression step and regenerates the tile
// grid for it. It returns false once rendering is complete.
func (tm *TileManager) Next() bool {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.done() {
		return false
	}

	if tm.progressive && tm.state.resolutionDivider > 1 {
		tm.state.sample = 0
		tm.state.resolutionDivider /= 2
		tm.state.numSamples = 1
	} else {
		tm.state.sample++
		switch {
		case tm.progressive:
			tm.state.numSamples = 1
		case tm.RangeNumSamples == -1:
			tm.state.numSamples = tm.numSamples
		default:
			tm.state.numSamples = tm.RangeNumSamples
		}
		tm.state.resolutionDivider = 1
	}
	tm.setTiles()
	return true
}

func (tm *TileManager) setTiles() {
	resolution := tm.state.resolutionDivider
	imageW := max(1, tm.params.Width/resolution)
	imageH := max(1, tm.params.Height/resolution)

	tm.state.numTiles = tm.genTiles(!tm.background)

	tm.state.buffer.Width = imageW
	tm.state.buffer.Height = imageH
	tm.state.buffer.FullX = tm.params.FullX / resolution
	tm.state.buffer.FullY = tm.params.FullY / resolution
	tm.state.buffer.FullWidth = max(1, tm.params.FullWidth/resolution)
	tm.state.buffer.FullHeight = max(1, tm.params.FullHeight/resolution)
	tm.state.buffer.PassStride = tm.params.PassStride

	Logger().Debug("generated tile grid",
		"width", imageW, "height", imageH,
		"tiles", tm.state.numTiles,
		"order", tm.tileOrder,
		"resolution_divider", resolution)
}

// tileRowCount returns the number of tile rows covering a span of h
// pixels.
func (tm *TileManager) tileRowCount(h int) int {
	if tm.tileSize.Y >= h {
		return 1
	}
	return imath.CeilDiv(h, tm.tileSize.Y)
}

// genTiles splits the image into tiles and populates the per-device
// queues. If sliced, the image is cut into one horizontal slice per
// device; otherwise all tiles are distributed evenly across devices and
// each device's queue is sorted by the traversal order.
func (tm *TileManager) genTiles(sliced bool) int {
	tm.state.tiles = nil
	tm.state.renderTiles = nil
	tm.state.denoiseTiles = nil
	tm.state.tileStride = 0
	tm.state.tileRows = 0

	if tm.params.Width <= 0 || tm.params.Height <= 0 {
		return 0
	}

	resolution := tm.state.resolutionDivider
	imageW := max(1, tm.params.Width/resolution)
	imageH := max(1, tm.params.Height/resolution)
	center := imath.Int2{X: imageW / 2, Y: imageH / 2}

	numLogical := 1
	if tm.preserveTileDevice {
		numLogical = tm.numDevices
	}
	num := min(imageH, numLogical)
	sliceNum := 1
	if sliced {
		sliceNum = num
	}

	tileW := 1
	if tm.tileSize.X < imageW {
		tileW = imath.CeilDiv(imageW, tm.tileSize.X)
	}
	tileH := tm.tileRowCount(imageH)

	tm.state.renderTiles = make([][]int, num)
	tm.state.denoiseTiles = make([][]int, num)
	queues := tm.state.renderTiles
	initState := TileRender
	if tm.onlyDenoise {
		queues = tm.state.denoiseTiles
		initState = TileDenoise
	}

	if tm.tileOrder == OrderHilbertSpiral {
		tm.state.tiles = make([]Tile, tileW*tileH)
		tm.state.tileStride = tileW
		tm.state.tileRows = tileH
		tm.genTilesHilbertSpiral(queues, initState, imageW, imageH, tileW, tileH, num)
		return tileW * tileH
	}

	// Grid rows are counted per slice: slice boundaries need not be
	// aligned to the tile size, so a slice may contribute a partial row
	// of its own.
	rows := tileH
	if sliced {
		rows = 0
		for s := 0; s < sliceNum; s++ {
			sliceH := imageH / sliceNum
			if s == sliceNum-1 {
				sliceH = imageH - s*(imageH/sliceNum)
			}
			rows += tm.tileRowCount(sliceH)
		}
	}
	tm.state.tiles = make([]Tile, tileW*rows)
	tm.state.tileStride = tileW
	tm.state.tileRows = rows

	rowBase := 0
	for slice := 0; slice < sliceNum; slice++ {
		sliceY := (imageH / sliceNum) * slice
		sliceH := imageH / sliceNum
		if slice == sliceNum-1 {
			sliceH = imageH - slice*(imageH/sliceNum)
		}

		tileSliceH := tm.tileRowCount(sliceH)
		tilesPerDevice := imath.CeilDiv(tileW*tileSliceH, num)
		curDevice, curTiles := 0, 0

		for tileY := 0; tileY < tileSliceH; tileY++ {
			for tileX := 0; tileX < tileW; tileX++ {
				x := tileX * tm.tileSize.X
				y := tileY * tm.tileSize.Y
				w := tm.tileSize.X
				if tileX == tileW-1 {
					w = imageW - x
				}
				h := tm.tileSize.Y
				if tileY == tileSliceH-1 {
					h = sliceH - y
				}

				device := curDevice
				if sliced {
					device = slice
				}
				gridY := rowBase + tileY
				idx := gridY*tileW + tileX
				tm.state.tiles[idx] = Tile{
					Index: idx, X: x, Y: y + sliceY, W: w, H: h,
					Device: device, State: initState,
					gridX: tileX, gridY: gridY,
				}
				list := device
				queues[list] = append(queues[list], idx)

				if !sliced {
					curTiles++
					if curTiles == tilesPerDevice {
						// Tiles are already generated in bottom-to-top
						// order, so no sort is necessary in that case.
						if tm.tileOrder != OrderBottomToTop {
							tm.sortQueue(queues[curDevice], center)
						}
						curTiles = 0
						curDevice++
					}
				}
			}
		}
		rowBase += tileSliceH
	}

	return len(tm.state.tiles)
}

func (tm *TileManager) sortQueue(queue []int, center imath.Int2) {
	tiles := tm.state.tiles
	order := tm.tileOrder
	slices.SortStableFunc(queue, func(a, b int) int {
		ta, tb := &tiles[a], &tiles[b]
		switch order {
		case OrderCenter:
			dax := center.X - (ta.X + ta.W/2)
			day := center.Y - (ta.Y + ta.H/2)
			dbx := center.X - (tb.X + tb.W/2)
			dby := center.Y - (tb.Y + tb.H/2)
			return cmp.Compare(dax*dax+day*day, dbx*dbx+dby*dby)
		case OrderLeftToRight:
			if ta.X == tb.X {
				return cmp.Compare(ta.Y, tb.Y)
			}
			return cmp.Compare(ta.X, tb.X)
		case OrderRightToLeft:
			if ta.X == tb.X {
				return cmp.Compare(ta.Y, tb.Y)
			}
			return cmp.Compare(tb.X, ta.X)
		case OrderTopToBottom:
			if ta.Y == tb.Y {
				return cmp.Compare(ta.X, tb.X)
			}
			return cmp.Compare(tb.Y, ta.Y)
		default: // OrderBottomToTop
			if ta.Y == tb.Y {
				return cmp.Compare(ta.X, tb.X)
			}
			return cmp.Compare(ta.Y, tb.Y)
		}
	})
}

type spiralDirection int

const (
	dirUp spiralDirection = iota
	dirLeft
	dirDown
	dirRight
)

// genTilesHilbertSpiral generates tiles in square blocks ordered along an
// inward rectangular spiral, with each block internally ordered by a 2D
// Hilbert curve rotated so that successive blocks join smoothly. Tiles
// are pushed to the front of the device queue, so the first block ends up
// rendered last by its device.
func (tm *TileManager) genTilesHilbertSpiral(queues [][]int, initState TileState, imageW, imageH, tileW, tileH, num int) {
	// Size of blocks in tiles, must be a power of 2.
	hilbertSize := 4
	if max(tm.tileSize.X, tm.tileSize.Y) <= 12 {
		hilbertSize = 8
	}

	tilesPerDevice := imath.CeilDiv(tileW*tileH, num)
	curDevice, curTiles := 0, 0

	blockSize := tm.tileSize.Mul(imath.Int2{X: hilbertSize, Y: hilbertSize})
	// Number of blocks to fill the image.
	blocksX := 1
	if blockSize.X < imageW {
		blocksX = imath.CeilDiv(imageW, blockSize.X)
	}
	blocksY := 1
	if blockSize.Y < imageH {
		blocksY = imath.CeilDiv(imageH, blockSize.Y)
	}
	// Side length of the spiral, must be odd.
	n := max(blocksX, blocksY) | 0x1
	// Offset of the spiral, to keep it centered, rounded toward zero to a
	// tile boundary. May be negative.
	offset := imath.Int2{X: (imageW - n*blockSize.X) / 2, Y: (imageH - n*blockSize.Y) / 2}
	offset = offset.Div(tm.tileSize).Mul(tm.tileSize)

	var block imath.Int2
	prevDir, dir := dirUp, dirUp
	for i := 0; ; {
		// Generate the tiles in the current block.
		for hilbertIndex := 0; hilbertIndex < hilbertSize*hilbertSize; hilbertIndex++ {
			hilbertPos := imath.HilbertIndexToPos(hilbertSize, hilbertIndex)
			// Rotate the block according to the spiral direction.
			var tile imath.Int2
			switch {
			case prevDir == dirUp && dir == dirUp:
				tile = imath.Int2{X: hilbertPos.Y, Y: hilbertPos.X}
			case dir == dirLeft || prevDir == dirLeft:
				tile = hilbertPos
			case dir == dirDown:
				tile = imath.Int2{X: hilbertSize - 1 - hilbertPos.Y, Y: hilbertSize - 1 - hilbertPos.X}
			default:
				tile = imath.Int2{X: hilbertSize - 1 - hilbertPos.X, Y: hilbertSize - 1 - hilbertPos.Y}
			}

			pos := block.Mul(blockSize).Add(tile.Mul(tm.tileSize)).Add(offset)
			// Skip tiles outside the image; the spiral is always square,
			// so it can cover positions beyond the bounds.
			if pos.X >= 0 && pos.Y >= 0 && pos.X < imageW && pos.Y < imageH {
				w := min(tm.tileSize.X, imageW-pos.X)
				h := min(tm.tileSize.Y, imageH-pos.Y)
				ipos := pos.Div(tm.tileSize)
				idx := ipos.Y*tileW + ipos.X
				tm.state.tiles[idx] = Tile{
					Index: idx, X: pos.X, Y: pos.Y, W: w, H: h,
					Device: curDevice, State: initState,
					gridX: ipos.X, gridY: ipos.Y,
				}
				queues[curDevice] = append(queues[curDevice], idx)
				curTiles++

				if curTiles == tilesPerDevice {
					curTiles = 0
					curDevice++
				}
			}
		}

		// Stop as soon as the spiral has reached the center block.
		if block.X == (n-1)/2 && block.Y == (n-1)/2 {
			break
		}

		// Advance to the next block.
		prevDir = dir
		switch dir {
		case dirUp:
			block.Y++
			if block.Y == n-i-1 {
				dir = dirLeft
			}
		case dirLeft:
			block.X++
			if block.X == n-i-1 {
				dir = dirDown
			}
		case dirDown:
			block.Y--
			if block.Y == i {
				dir = dirRight
			}
		case dirRight:
			block.X--
			if block.X == i+1 {
				dir = dirUp
				i++
			}
		}
	}

	// Tiles were collected in generation order; within a device the queue
	// is consumed front-first in the reverse of that order.
	for d := range queues {
		slices.Reverse(queues[d])
	}
}

// NextTile hands out the next tile for a device, preferring its denoise
// queue. It returns nil when no work is queued for the device. The
// returned pointer stays valid until the next progression step or Reset.
func (tm *TileManager) NextTile(device int) *Tile {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	logicalDevice := 0
	if tm.preserveTileDevice {
		logicalDevice = device
	}
	if logicalDevice >= len(tm.state.renderTiles) {
		return nil
	}

	if q := tm.state.denoiseTiles[logicalDevice]; len(q) > 0 {
		idx := q[0]
		tm.state.denoiseTiles[logicalDevice] = q[1:]
		if tm.onlyDenoise {
			tm.state.numRenderedTiles++
		}
		return &tm.state.tiles[idx]
	}

	if q := tm.state.renderTiles[logicalDevice]; len(q) > 0 {
		idx := q[0]
		tm.state.renderTiles[logicalDevice] = q[1:]
		tm.state.numRenderedTiles++
		return &tm.state.tiles[idx]
	}

	return nil
}

// Neighbor enumeration order. The (0, 0) entry must stay last: the
// freeing decision in ReturnTile identifies "self" by that position.
var (
	neighborDX = [9]int{-1, 0, 1, -1, 1, -1, 0, 1, 0}
	neighborDY = [9]int{-1, -1, -1, 0, 0, 1, 1, 1, 0}
)

// ReturnTile reports a tile's work as finished and advances its state
// machine, promoting neighbors whose 3×3 window became sufficient.
// writeback reports whether the tile's result must be written out;
// deleteTile reports that the caller owns the final free of the tile's
// buffers (writeback has to happen first).
//
// Returning a tile that is in neither the render nor the denoise state is
// a programmer error and panics: queue bookkeeping has been corrupted and
// the grid state can no longer be trusted.
func (tm *TileManager) ReturnTile(index int) (writeback, deleteTile bool) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	switch tm.state.tiles[index].State {
	case TileRender:
		if tm.onlyDenoise {
			panic(fmt.Sprintf("tile %d in render state during denoise-only scheduling", index))
		}
		if !tm.ScheduleDenoising {
			tm.state.tiles[index].State = TileDone
			return true, true
		}
		tm.state.tiles[index].State = TileRendered
		// For each neighbor and the tile itself: if all of its neighbors
		// have been rendered, it can be denoised.
		tm.promoteNeighbors(index, TileRendered, TileDenoise, nil)
		return false, false

	case TileDenoise:
		if tm.onlyDenoise {
			tm.state.tiles[index].State = TileDone
			return true, false
		}
		tm.state.tiles[index].State = TileDenoised
		// For each neighbor and the tile itself: if all of its neighbors
		// have been denoised, it can be freed.
		selfDone := false
		tm.promoteNeighbors(index, TileDenoised, TileDone, &selfDone)
		return true, selfDone

	default:
		panic(fmt.Sprintf("tile %d returned in unexpected state %v", index, tm.state.tiles[index].State))
	}
}

// promoteNeighbors applies the 3×3 promotion rule around index: every
// cell of the window (self included) that sits at exactly `from` and
// whose own existing neighborhood is entirely ≥ from advances to `to`.
//
// For the rendered→denoise promotion (selfDone == nil) the advanced cell
// is appended to its device's denoise queue. For the denoised→done
// promotion the cell's buffers are freed immediately — except for the
// tile itself, which may have finished just now and still needs its
// writeback; that free is deferred to the caller via *selfDone.
func (tm *TileManager) promoteNeighbors(index int, from, to TileState, selfDone *bool) {
	tiles := tm.state.tiles
	stride := tm.state.tileStride
	rows := tm.state.tileRows

	gx, gy := tiles[index].gridX, tiles[index].gridY
	for n := 0; n < 9; n++ {
		nx, ny := gx+neighborDX[n], gy+neighborDY[n]
		if nx < 0 || ny < 0 || nx >= stride || ny >= rows {
			continue
		}
		nindex := ny*stride + nx
		if tiles[nindex].State != from {
			continue
		}
		ready := true
		for nn := 0; nn < 8; nn++ {
			nnx, nny := tiles[nindex].gridX+neighborDX[nn], tiles[nindex].gridY+neighborDY[nn]
			if nnx < 0 || nny < 0 || nnx >= stride || nny >= rows {
				continue
			}
			if tiles[nny*stride+nnx].State < from {
				ready = false
				break
			}
		}
		if !ready {
			continue
		}
		tiles[nindex].State = to
		if selfDone == nil {
			device := tiles[nindex].Device
			tm.state.denoiseTiles[device] = append(tm.state.denoiseTiles[device], nindex)
		} else if n == 8 {
			// The tile itself finished denoising and could be freed right
			// here, but it still has to be written back first.
			*selfDone = true
		} else if tiles[nindex].Buffers != nil {
			tiles[nindex].Buffers.Release()
			tiles[nindex].Buffers = nil
		}
	}
}

// FreeDevice releases all tile-owned buffers. In-flight workers holding
// references must be joined by the caller first.
func (tm *TileManager) FreeDevice() {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if !tm.ScheduleDenoising {
		return
	}
	for i := range tm.state.tiles {
		if tm.state.tiles[i].Buffers != nil {
			tm.state.tiles[i].Buffers.Release()
			tm.state.tiles[i].Buffers = nil
		}
	}
}
