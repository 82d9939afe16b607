package filter

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// randomSymmetric fills the lower triangle of an n×n float32 matrix and
// mirrors it into a gonum SymDense for cross-checking.
func randomSymmetric(rng *rand.Rand, n int) ([]float32, *mat.SymDense) {
	m := make([]float32, n*n)
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			v := rng.Float64()*2 - 1
			m[i*n+j] = float32(v)
			sym.SetSym(i, j, v)
		}
	}
	return m, sym
}

func TestJacobiAgainstGonum(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for trial := 0; trial < 25; trial++ {
		m, sym := randomSymmetric(rng, Features)
		vectors := make([]float32, Features*Features)
		if !jacobiEigendecomposition(m, vectors, Features) {
			t.Fatalf("trial %d: did not converge", trial)
		}

		var es mat.EigenSym
		if !es.Factorize(sym, false) {
			t.Fatalf("trial %d: gonum factorization failed", trial)
		}
		want := es.Values(nil)
		sort.Slice(want, func(i, j int) bool {
			return math.Abs(want[i]) > math.Abs(want[j])
		})

		for i := 0; i < Features; i++ {
			got := float64(m[i*Features+i])
			if math.Abs(got-want[i]) > 1e-4 {
				t.Errorf("trial %d: eigenvalue %d = %g, want %g", trial, i, got, want[i])
			}
		}
	}
}

func TestJacobiReconstruction(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for trial := 0; trial < 25; trial++ {
		m, sym := randomSymmetric(rng, Features)
		vectors := make([]float32, Features*Features)
		if !jacobiEigendecomposition(m, vectors, Features) {
			t.Fatalf("trial %d: did not converge", trial)
		}

		// Descending eigenvalue magnitude.
		for i := 1; i < Features; i++ {
			if math.Abs(float64(m[i*Features+i])) > math.Abs(float64(m[(i-1)*Features+(i-1)]))+1e-7 {
				t.Fatalf("trial %d: eigenvalues not sorted by magnitude", trial)
			}
		}

		// Orthonormal eigenvector rows.
		for i := 0; i < Features; i++ {
			for j := i; j < Features; j++ {
				var dot float64
				for k := 0; k < Features; k++ {
					dot += float64(vectors[i*Features+k]) * float64(vectors[j*Features+k])
				}
				want := 0.0
				if i == j {
					want = 1.0
				}
				if math.Abs(dot-want) > 1e-5 {
					t.Fatalf("trial %d: rows %d, %d have dot %g, want %g", trial, i, j, dot, want)
				}
			}
		}

		// V·diag(λ)·Vᵀ must reproduce the input.
		for r := 0; r < Features; r++ {
			for c := 0; c <= r; c++ {
				var sum float64
				for k := 0; k < Features; k++ {
					sum += float64(m[k*Features+k]) *
						float64(vectors[k*Features+r]) * float64(vectors[k*Features+c])
				}
				if math.Abs(sum-sym.At(r, c)) > 1e-5 {
					t.Fatalf("trial %d: reconstruction[%d,%d] = %g, want %g",
						trial, r, c, sum, sym.At(r, c))
				}
			}
		}
	}
}

func TestJacobiDiagonal(t *testing.T) {
	n := 4
	m := make([]float32, n*n)
	m[0*n+0] = 3
	m[1*n+1] = -5
	m[2*n+2] = 1
	m[3*n+3] = 0
	vectors := make([]float32, n*n)
	if !jacobiEigendecomposition(m, vectors, n) {
		t.Fatal("did not converge on a diagonal matrix")
	}

	want := []float32{-5, 3, 1, 0}
	for i, w := range want {
		if m[i*n+i] != w {
			t.Errorf("eigenvalue %d = %g, want %g", i, m[i*n+i], w)
		}
	}
	// Eigenvectors are the (sign-ambiguous) unit axes, permuted.
	wantAxis := []int{1, 0, 2, 3}
	for i, axis := range wantAxis {
		for j := 0; j < n; j++ {
			want := float32(0)
			if j == axis {
				want = 1
			}
			if got := float32(math.Abs(float64(vectors[i*n+j]))); got != want {
				t.Errorf("eigenvector %d component %d = %g, want ±%g", i, j, vectors[i*n+j], want)
			}
		}
	}
}

func TestTrimatrixAddGramian(t *testing.T) {
	n := 3
	m := make([]float32, n*n)
	v := []float32{1, 2, 3}
	trimatrixAddGramian(m, n, v, 2)
	want := []float32{
		2, 0, 0,
		4, 8, 0,
		6, 12, 18,
	}
	for i := range want {
		if m[i] != want[i] {
			t.Errorf("m[%d] = %g, want %g", i, m[i], want[i])
		}
	}
}
