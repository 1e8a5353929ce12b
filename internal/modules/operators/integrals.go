package operators

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// ActiveSpaceIntegrals holds the electron integrals of one active space in the
// spin-orbital basis, ordered all spin-up then all spin-down. Two-electron
// integrals use physicist notation <pq|rs> (electron one on p,r; electron two
// on q,s), flattened as ((p*M+q)*M+r)*M+s for M spin orbitals.
type ActiveSpaceIntegrals struct {
	Constant      float64
	SpinOrbitals  int
	One           *mat.Dense
	Two           []float64
	ElectronsUp   int
	ElectronsDown int
}

// Electrons returns the total electron count of the active space.
func (a ActiveSpaceIntegrals) Electrons() int {
	return a.ElectronsUp + a.ElectronsDown
}

// two returns <pq|rs>, tolerating a nil two-electron block.
func (a ActiveSpaceIntegrals) two(p, q, r, s int) float64 {
	if len(a.Two) == 0 {
		return 0
	}
	m := a.SpinOrbitals
	return a.Two[((p*m+q)*m+r)*m+s]
}

// Finite reports whether every stored integral is a finite number.
func (a ActiveSpaceIntegrals) Finite() bool {
	if math.IsNaN(a.Constant) || math.IsInf(a.Constant, 0) {
		return false
	}
	if a.One != nil {
		r, c := a.One.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				v := a.One.At(i, j)
				if math.IsNaN(v) || math.IsInf(v, 0) {
					return false
				}
			}
		}
	}
	for _, v := range a.Two {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// FromSpatial expands spatial-orbital integrals (n orbitals) into the
// spin-orbital basis (2n spin orbitals, up-then-down ordering). h2 is the
// spatial physicist-notation tensor flattened as ((p*n+q)*n+r)*n+s; it may be
// nil for a one-body problem.
func FromSpatial(constant float64, h1 *mat.Dense, h2 []float64, electronsUp, electronsDown int) ActiveSpaceIntegrals {
	n, _ := h1.Dims()
	m := 2 * n

	one := mat.NewDense(m, m, nil)
	for p := 0; p < n; p++ {
		for q := 0; q < n; q++ {
			v := h1.At(p, q)
			one.Set(p, q, v)
			one.Set(p+n, q+n, v)
		}
	}

	var two []float64
	if len(h2) > 0 {
		two = make([]float64, m*m*m*m)
		spatial := func(p, q, r, s int) float64 {
			return h2[((p*n+q)*n+r)*n+s]
		}
		// <PQ|RS> is nonzero when spin(P)==spin(R) and spin(Q)==spin(S).
		for p := 0; p < m; p++ {
			for q := 0; q < m; q++ {
				for r := 0; r < m; r++ {
					if (p < n) != (r < n) {
						continue
					}
					for s := 0; s < m; s++ {
						if (q < n) != (s < n) {
							continue
						}
						two[((p*m+q)*m+r)*m+s] = spatial(p%n, q%n, r%n, s%n)
					}
				}
			}
		}
	}

	return ActiveSpaceIntegrals{
		Constant:      constant,
		SpinOrbitals:  m,
		One:           one,
		Two:           two,
		ElectronsUp:   electronsUp,
		ElectronsDown: electronsDown,
	}
}
