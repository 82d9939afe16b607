package buffers

// PassType identifies one denoising input pass.
type PassType int

const (
	PassNormal PassType = iota
	PassNormalVar
	PassAlbedo
	PassAlbedoVar
	PassDepth
	PassDepthVar
	PassShadowA
	PassShadowB
	PassNoisy
	PassNoisyVar
	PassClean
)

type PassInfo struct {
	Type     PassType
	Name     string
	Channels string
}

func (p PassInfo) NumChannels() int { return len(p.Channels) }

// DenoisePasses is the fixed layout of denoising input passes, in buffer
// order. Pass data for a pixel is stored as consecutive channel groups in
// this order.
var DenoisePasses = [...]PassInfo{
	{PassNormal, "DenoiseNormal", "XYZ"},
	{PassNormalVar, "DenoiseNormalVar", "XYZ"},
	{PassAlbedo, "DenoiseAlbedo", "RGB"},
	{PassAlbedoVar, "DenoiseAlbedoVar", "RGB"},
	{PassDepth, "DenoiseDepth", "Z"},
	{PassDepthVar, "DenoiseDepthVar", "Z"},
	{PassShadowA, "DenoiseShadowA", "RGB"},
	{PassShadowB, "DenoiseShadowB", "RGB"},
	{PassNoisy, "DenoiseNoisy", "RGB"},
	{PassNoisyVar, "DenoiseNoisyVar", "RGB"},
	{PassClean, "DenoiseClean", "RGB"},
}

// PassStride returns the number of float32 values per pixel across all
// denoising passes.
func PassStride() int {
	stride := 0
	for _, p := range DenoisePasses {
		stride += p.NumChannels()
	}
	return stride
}

// PassOffset returns the channel offset of a pass within a pixel's
// stride, or -1 if the pass is not part of the layout.
func PassOffset(t PassType) int {
	offset := 0
	for _, p := range DenoisePasses {
		if p.Type == t {
			return offset
		}
		offset += p.NumChannels()
	}
	return -1
}
