package buffers

import (
	"errors"
	"testing"

	"github.com/CoolMcFly81/blender/mem"
)

func TestPassStride(t *testing.T) {
	if got := PassStride(); got != 29 {
		t.Errorf("PassStride() = %d, want 29", got)
	}
}

func TestPassOffset(t *testing.T) {
	if got := PassOffset(PassNormal); got != 0 {
		t.Errorf("PassOffset(PassNormal) = %d, want 0", got)
	}
	if got := PassOffset(PassDepth); got != 12 {
		t.Errorf("PassOffset(PassDepth) = %d, want 12", got)
	}
	if got := PassOffset(PassClean); got != 26 {
		t.Errorf("PassOffset(PassClean) = %d, want 26", got)
	}
	if got := PassOffset(PassType(99)); got != -1 {
		t.Errorf("PassOffset(99) = %d, want -1", got)
	}
}

func TestRenderBuffers(t *testing.T) {
	pool := mem.NewPool()
	b := New(pool, BufferParams{Width: 8, Height: 4, PassStride: 3})

	data := b.Data()
	if len(data) != 8*4*3 {
		t.Fatalf("Data() has len %d, want %d", len(data), 8*4*3)
	}
	data[0] = 1.5
	if b.Data()[0] != 1.5 {
		t.Error("Data() views do not alias the same storage")
	}

	if err := b.Check(8 * 4 * 3); err != nil {
		t.Errorf("Check(matching) = %v", err)
	}
	if err := b.Check(10); !errors.Is(err, ErrMismatch) {
		t.Errorf("Check(10) = %v, want ErrMismatch", err)
	}

	b.Release()
	b.Release() // must be idempotent
}

func TestRenderBuffersDefaultStride(t *testing.T) {
	pool := mem.NewPool()
	b := New(pool, BufferParams{Width: 2, Height: 2})
	if b.Params.PassStride != PassStride() {
		t.Errorf("default PassStride = %d, want %d", b.Params.PassStride, PassStride())
	}
	if len(b.Data()) != 2*2*PassStride() {
		t.Errorf("Data() len = %d", len(b.Data()))
	}
	b.Release()
}
