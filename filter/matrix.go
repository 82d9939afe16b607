package filter

import "math"

// Small dense vector/matrix helpers over the feature dimension. Matrices
// are stored row-major; symmetric ones are filled on the lower triangle
// only.

func vectorAdd(a, b []float32) {
	for i := range a {
		a[i] += b[i]
	}
}

func vectorScale(a []float32, s float32) {
	for i := range a {
		a[i] *= s
	}
}

func vectorMul(a, b []float32) {
	for i := range a {
		a[i] *= b[i]
	}
}

func vectorMax(a, b []float32) {
	for i := range a {
		if b[i] > a[i] {
			a[i] = b[i]
		}
	}
}

// trimatrixAddGramian adds weight * v·vᵀ to the lower triangle of the
// n×n matrix m.
func trimatrixAddGramian(m []float32, n int, v []float32, weight float32) {
	for row := 0; row < n; row++ {
		for col := 0; col <= row; col++ {
			m[row*n+col] += v[row] * v[col] * weight
		}
	}
}

const (
	jacobiTolerance = 1e-8
	jacobiMaxSweeps = 50
)

// jacobiEigendecomposition diagonalizes the symmetric n×n matrix whose
// lower triangle is stored in m, using cyclic Jacobi rotations. On return
// the eigenvalues are on the diagonal of m, sorted by descending
// magnitude, and the corresponding eigenvectors are packed row-major into
// vectors. Reports whether the sweep cap sufficed to converge.
func jacobiEigendecomposition(m []float32, vectors []float32, n int) bool {
	// Accumulate in float64; the inputs are float32 Gramians whose
	// conditioning is poor enough as it is.
	a := make([]float64, n*n)
	v := make([]float64, n*n)
	for row := 0; row < n; row++ {
		v[row*n+row] = 1
		for col := 0; col <= row; col++ {
			a[row*n+col] = float64(m[row*n+col])
			a[col*n+row] = float64(m[row*n+col])
		}
	}

	converged := false
	for sweep := 0; sweep < jacobiMaxSweeps; sweep++ {
		var off, trace float64
		for p := 0; p < n; p++ {
			trace += math.Abs(a[p*n+p])
			for q := p + 1; q < n; q++ {
				off = math.Max(off, math.Abs(a[p*n+q]))
			}
		}
		if off <= jacobiTolerance*trace {
			converged = true
			break
		}

		for p := 0; p < n-1; p++ {
			for q := p + 1; q < n; q++ {
				apq := a[p*n+q]
				if math.Abs(apq) <= jacobiTolerance*(math.Abs(a[p*n+p])+math.Abs(a[q*n+q])) {
					continue
				}

				// tan 2θ = 2·a[p,q] / (a[p,p] − a[q,q]), solved for tan θ
				// in the numerically stable form.
				var t float64
				theta := (a[q*n+q] - a[p*n+p]) / (2 * apq)
				if theta >= 0 {
					t = 1 / (theta + math.Sqrt(theta*theta+1))
				} else {
					t = -1 / (-theta + math.Sqrt(theta*theta+1))
				}
				c := 1 / math.Sqrt(t*t+1)
				s := t * c
				tau := s / (1 + c)

				app := a[p*n+p]
				aqq := a[q*n+q]
				a[p*n+p] = app - t*apq
				a[q*n+q] = aqq + t*apq
				a[p*n+q] = 0
				a[q*n+p] = 0
				for r := 0; r < n; r++ {
					if r == p || r == q {
						continue
					}
					arp := a[r*n+p]
					arq := a[r*n+q]
					a[r*n+p] = arp - s*(arq+tau*arp)
					a[p*n+r] = a[r*n+p]
					a[r*n+q] = arq + s*(arp-tau*arq)
					a[q*n+r] = a[r*n+q]
				}
				for r := 0; r < n; r++ {
					vrp := v[r*n+p]
					vrq := v[r*n+q]
					v[r*n+p] = c*vrp - s*vrq
					v[r*n+q] = s*vrp + c*vrq
				}
			}
		}
	}

	// Sort eigenpairs by descending eigenvalue magnitude, stable in the
	// original index.
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	for i := 1; i < n; i++ {
		j := i
		for j > 0 && math.Abs(a[order[j]*n+order[j]]) > math.Abs(a[order[j-1]*n+order[j-1]]) {
			order[j], order[j-1] = order[j-1], order[j]
			j--
		}
	}

	for i, oi := range order {
		m[i*n+i] = float32(a[oi*n+oi])
		for j := 0; j < n; j++ {
			vectors[i*n+j] = float32(v[j*n+oi])
		}
	}
	return converged
}
