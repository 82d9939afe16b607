package filter

import (
	"github.com/CoolMcFly81/blender"
	"github.com/CoolMcFly81/blender/imath"
)

// KernelType identifies the filter kernel that consumes a tile's feature
// transforms. The set is closed; dispatch on the tag rather than through
// per-kernel types.
type KernelType int

const (
	// KernelNLM is non-local means filtering.
	KernelNLM KernelType = iota
	// KernelNLMCross additionally weights by the cross-frame passes.
	KernelNLMCross
	// KernelWLR is weighted local regression in the reduced feature
	// space.
	KernelWLR
	// KernelWLRCross is weighted local regression with cross-frame
	// weighting.
	KernelWLRCross
)

func (k KernelType) String() string {
	switch k {
	case KernelNLM:
		return "nlm"
	case KernelNLMCross:
		return "nlm-cross"
	case KernelWLR:
		return "wlr"
	case KernelWLRCross:
		return "wlr-cross"
	default:
		return "invalid"
	}
}

// Denoiser runs a filter kernel over a prepared tile. Implementations
// live with the device kernels; this core only coordinates them.
type Denoiser interface {
	Denoise(kernel KernelType, tile *blender.Tile, transforms *TileTransforms, rect imath.Int4) error
}
