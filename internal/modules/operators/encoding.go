package operators

import (
	"fmt"
	"math"
)

// defaultQubitBudget bounds the register size an encoding will accept.
// Statevector simulation beyond ~30 qubits is not practical on one host.
const defaultQubitBudget = 32

// Encoding maps second-quantized active-space integrals to a qubit operator.
// Implementations are selected by name at configuration time.
type Encoding interface {
	Name() string
	// NumQubits returns the register width required for the given number of
	// spin orbitals.
	NumQubits(spinOrbitals int) int
	// Encode builds the qubit Hamiltonian. Duplicate Pauli strings are merged
	// and terms below tol (relative to the largest coefficient) are dropped.
	Encode(ints ActiveSpaceIntegrals, tol float64) (*QubitOperator, error)
}

// NewEncoding returns the encoding registered under name.
func NewEncoding(name string) (Encoding, error) {
	switch name {
	case "jw", "jordan-wigner", "":
		return &JordanWigner{Budget: defaultQubitBudget}, nil
	case "parity", "scparity":
		return &SymmetryParity{Budget: defaultQubitBudget}, nil
	}
	return nil, fmt.Errorf("unknown encoding %q", name)
}

// EncodingNames lists the registered encoding names.
func EncodingNames() []string {
	return []string{"jordan-wigner", "scparity"}
}

// ladder produces the raising (dagger=true) or lowering operator for spin
// orbital p on a register of n qubits, in some encoding's Pauli representation.
type ladder func(p, n int, dagger bool) *QubitOperator

// assembleSecondQuantized builds
//
//	H = c + sum_pq h_pq a+_p a_q + 1/2 sum_pqrs <pq|rs> a+_p a+_q a_s a_r
//
// from the given ladder-operator representation. Shared by all encodings.
func assembleSecondQuantized(ints ActiveSpaceIntegrals, n int, op ladder) *QubitOperator {
	h := Identity(complex(ints.Constant, 0))
	m := ints.SpinOrbitals

	for p := 0; p < m; p++ {
		for q := 0; q < m; q++ {
			c := ints.One.At(p, q)
			if c == 0 {
				continue
			}
			t := op(p, n, true).Mul(op(q, n, false))
			t.Scale(complex(c, 0))
			h.AddOperator(t)
		}
	}

	if len(ints.Two) > 0 {
		for p := 0; p < m; p++ {
			for q := 0; q < m; q++ {
				for r := 0; r < m; r++ {
					for s := 0; s < m; s++ {
						c := ints.two(p, q, r, s)
						if c == 0 {
							continue
						}
						t := op(p, n, true).
							Mul(op(q, n, true)).
							Mul(op(s, n, false)).
							Mul(op(r, n, false))
						t.Scale(complex(0.5*c, 0))
						h.AddOperator(t)
					}
				}
			}
		}
	}

	return h
}

// pruneTolerance scales tol by the largest coefficient, defaulting to machine
// epsilon scaled likewise when tol is zero.
func pruneTolerance(h *QubitOperator, tol float64) float64 {
	maxAbs := h.MaxAbsCoeff()
	if maxAbs == 0 {
		maxAbs = 1
	}
	if tol <= 0 {
		tol = 16 * (math.Nextafter(1, 2) - 1) // 16 * machine epsilon
	}
	return tol * maxAbs
}
