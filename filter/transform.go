// Package filter implements the denoise-prepare step: for each pixel, a
// PCA transform of the feature space gathered over a spatial window,
// truncated by an energy threshold. The resulting matrix and rank feed
// the filter kernels.
package filter

import (
	"math"

	"github.com/CoolMcFly81/blender"
	"github.com/CoolMcFly81/blender/imath"
)

// Features is the dimension of the per-pixel feature space.
const Features = 10

// scaleEpsilon is the smallest feature magnitude that still gets
// normalized; anything below collapses to a zero scale, removing the
// feature from the covariance entirely.
const scaleEpsilon = 1e-4

// FeatureSource supplies per-pixel feature values. Implementations wrap a
// render buffer together with its pass layout and sample count.
type FeatureSource interface {
	// Features reads the feature vector at pixel into out. If mean is
	// non-nil it is subtracted from every feature.
	Features(pixel imath.Int2, out []float32, mean []float32)
	// Scales reads the absolute centered feature values at pixel,
	// relative to mean.
	Scales(pixel imath.Int2, out []float32, mean []float32)
}

// ConstructTransform computes the feature-space transform for the pixel
// (x, y): features are gathered over the window of the given radius
// around the pixel (clipped to rect), centered and scaled, and the
// eigenvectors of their covariance are truncated by pcaThreshold. The
// transform matrix is written row-major into transform, which must hold
// Features*Features values; the returned rank is the number of valid
// rows.
//
// A positive pcaThreshold is the fraction of total eigenvalue energy
// that may be discarded; a non-positive value keeps all eigenvalues whose
// square root is at least -pcaThreshold. The first two eigenvectors are
// always kept.
func ConstructTransform(src FeatureSource, x, y int, rect imath.Int4, transform []float32, radius int, pcaThreshold float32) int {
	low := imath.Int2{X: max(rect.X, x-radius), Y: max(rect.Y, y-radius)}
	high := imath.Int2{X: min(rect.Z, x+radius+1), Y: min(rect.W, y+radius+1)}
	forWindow := func(fn func(pixel imath.Int2)) {
		for py := low.Y; py < high.Y; py++ {
			for px := low.X; px < high.X; px++ {
				fn(imath.Int2{X: px, Y: py})
			}
		}
	}

	var features [Features]float32

	// Shift the feature passes to mean 0.
	var featureMeans [Features]float32
	forWindow(func(pixel imath.Int2) {
		src.Features(pixel, features[:], nil)
		vectorAdd(featureMeans[:], features[:])
	})
	pixelScale := 1 / float32((high.Y-low.Y)*(high.X-low.X))
	vectorScale(featureMeans[:], pixelScale)

	// Scale the shifted feature passes to [-1, 1]; the scaling is baked
	// into the transform at the end.
	var featureScale [Features]float32
	forWindow(func(pixel imath.Int2) {
		src.Scales(pixel, features[:], featureMeans[:])
		vectorMax(featureScale[:], features[:])
	})
	calculateScale(featureScale[:])

	// The transform maps the feature space to a reduced space which
	// generally has fewer dimensions. This mainly helps to prevent
	// overfitting.
	var featureMatrix [Features * Features]float32
	forWindow(func(pixel imath.Int2) {
		src.Features(pixel, features[:], featureMeans[:])
		vectorMul(features[:], featureScale[:])
		trimatrixAddGramian(featureMatrix[:], Features, features[:], 1)
	})

	if !jacobiEigendecomposition(featureMatrix[:], transform, Features) {
		// Keep rendering going with a safe floor instead of failing; the
		// denoise quality of this pixel degrades.
		blender.Logger().Warn("feature eigendecomposition did not converge",
			"x", x, "y", y)
		rank := min(2, Features)
		for r := 0; r < rank; r++ {
			vectorMul(transform[r*Features:(r+1)*Features], featureScale[:])
		}
		return rank
	}

	rank := 0
	if pcaThreshold > 0 {
		var thresholdEnergy float32
		for i := 0; i < Features; i++ {
			thresholdEnergy += featureMatrix[i*Features+i]
		}
		thresholdEnergy *= 1 - pcaThreshold

		var reducedEnergy float32
		for i := 0; i < Features; i++ {
			s := featureMatrix[i*Features+i]
			if i >= 2 && reducedEnergy >= thresholdEnergy {
				break
			}
			reducedEnergy += s
			// Bake the feature scaling into the transformation matrix.
			vectorMul(transform[rank*Features:(rank+1)*Features], featureScale[:])
			rank++
		}
	} else {
		for i := 0; i < Features; i++ {
			s := featureMatrix[i*Features+i]
			if i >= 2 && float32(math.Sqrt(float64(s))) < -pcaThreshold {
				break
			}
			vectorMul(transform[rank*Features:(rank+1)*Features], featureScale[:])
			rank++
		}
	}
	return rank
}

// calculateScale inverts the per-feature magnitudes gathered over the
// window. Features that never deviate from their mean get scale 0.
func calculateScale(scale []float32) {
	for i, s := range scale {
		if s > scaleEpsilon {
			scale[i] = 1 / s
		} else {
			scale[i] = 0
		}
	}
}
