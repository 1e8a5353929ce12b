// Package linalg holds the small dense-matrix helpers shared by the
// decomposition and embedding code.
package linalg

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Submatrix extracts the rows and columns of m selected by idx, in order.
func Submatrix(m *mat.Dense, idx []int) *mat.Dense {
	out := mat.NewDense(len(idx), len(idx), nil)
	for i, p := range idx {
		for j, q := range idx {
			out.Set(i, j, m.At(p, q))
		}
	}
	return out
}

// SubTensor4 extracts the rank-4 block of a flattened n^4 tensor selected by
// idx, returning a flattened len(idx)^4 tensor with the same index layout.
func SubTensor4(t []float64, n int, idx []int) []float64 {
	k := len(idx)
	out := make([]float64, k*k*k*k)
	for a, p := range idx {
		for b, q := range idx {
			for c, r := range idx {
				for d, s := range idx {
					out[((a*k+b)*k+c)*k+d] = t[((p*n+q)*n+r)*n+s]
				}
			}
		}
	}
	return out
}

// AccumulateBlock adds weight*block into dst at the positions selected by idx.
func AccumulateBlock(dst *mat.Dense, block *mat.Dense, idx []int, weight float64) {
	for i, p := range idx {
		for j, q := range idx {
			dst.Set(p, q, dst.At(p, q)+weight*block.At(i, j))
		}
	}
}

// FrobeniusDiff returns ||a-b||_F.
func FrobeniusDiff(a, b *mat.Dense) float64 {
	var diff mat.Dense
	diff.Sub(a, b)
	return mat.Norm(&diff, 2)
}

// Scale returns s*m as a new matrix.
func Scale(s float64, m *mat.Dense) *mat.Dense {
	var out mat.Dense
	out.Scale(s, m)
	return &out
}

// MaxAbs returns the largest absolute entry of the flattened data.
func MaxAbs(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	maxAbs := 0.0
	for _, v := range data {
		if a := math.Abs(v); a > maxAbs {
			maxAbs = a
		}
	}
	return maxAbs
}
