// Package imath provides the small integer geometry vocabulary used by the
// tile scheduler: 2D vectors, rectangles and a couple of rounding helpers.
package imath

import (
	"math"

	"golang.org/x/exp/constraints"
)

// NoStartResolution disables progressive preview resolution division.
const NoStartResolution = math.MaxInt32

// Int2 is a 2D integer vector, used for pixel and tile coordinates.
type Int2 struct {
	X, Y int
}

func (a Int2) Add(b Int2) Int2 { return Int2{a.X + b.X, a.Y + b.Y} }
func (a Int2) Sub(b Int2) Int2 { return Int2{a.X - b.X, a.Y - b.Y} }

// Mul multiplies component-wise.
func (a Int2) Mul(b Int2) Int2 { return Int2{a.X * b.X, a.Y * b.Y} }

// Div divides component-wise, truncating towards zero.
func (a Int2) Div(b Int2) Int2 { return Int2{a.X / b.X, a.Y / b.Y} }

// Int4 is a rectangle in the scheduler's convention: (X, Y) is the
// inclusive minimum corner and (Z, W) the exclusive maximum corner.
type Int4 struct {
	X, Y, Z, W int
}

// MakeRect returns the rectangle [x0, x1) × [y0, y1).
func MakeRect(x0, y0, x1, y1 int) Int4 {
	return Int4{x0, y0, x1, y1}
}

func (r Int4) Width() int  { return r.Z - r.X }
func (r Int4) Height() int { return r.W - r.Y }

// Contains reports whether the pixel (x, y) lies inside the rectangle.
func (r Int4) Contains(x, y int) bool {
	return x >= r.X && y >= r.Y && x < r.Z && y < r.W
}

// CeilDiv divides a by b, rounding up. b must be positive.
func CeilDiv(a, b int) int {
	return (a + b - 1) / b
}

// AlignUp rounds len up to a multiple of alignment, which must be a power
// of two.
func AlignUp[T constraints.Integer](len T, alignment T) T {
	return (len + alignment - 1) & -alignment
}

func Clamp[T constraints.Ordered](x, lo, hi T) T {
	return min(max(x, lo), hi)
}

// Divider returns the initial power-of-two resolution divider for
// progressive preview: both dimensions are halved (never below 1) until
// the pixel count fits within startResolution².
func Divider(w, h, startResolution int) int {
	divider := 1
	if startResolution != NoStartResolution {
		for w*h > startResolution*startResolution {
			w = max(1, w/2)
			h = max(1, h/2)
			divider <<= 1
		}
	}
	return divider
}
