package operators

// JordanWigner is the occupation-based mapping: spin orbital p maps to qubit
// p, with a Z string on qubits below p carrying the fermionic sign.
type JordanWigner struct {
	Budget int
}

func (j *JordanWigner) Name() string { return "jordan-wigner" }

func (j *JordanWigner) NumQubits(spinOrbitals int) int { return spinOrbitals }

func (j *JordanWigner) Encode(ints ActiveSpaceIntegrals, tol float64) (*QubitOperator, error) {
	if !ints.Finite() {
		return nil, encodingErrorf(j.Name(), "integrals contain non-finite values")
	}
	n := j.NumQubits(ints.SpinOrbitals)
	if n > j.Budget {
		return nil, encodingErrorf(j.Name(), "%d spin orbitals need %d qubits, budget is %d",
			ints.SpinOrbitals, n, j.Budget)
	}

	h := assembleSecondQuantized(ints, n, jwLadder)
	h.Compress(pruneTolerance(h, tol))
	return h, nil
}

// jwLadder returns a+_p (dagger) or a_p as 1/2 (X_p -/+ iY_p) Z_{p-1}...Z_0.
func jwLadder(p, n int, dagger bool) *QubitOperator {
	zs := make([]Factor, 0, p)
	for k := 0; k < p; k++ {
		zs = append(zs, Z(k))
	}

	o := New()
	xTerm := append(append([]Factor{}, zs...), X(p))
	yTerm := append(append([]Factor{}, zs...), Y(p))
	o.addCanonical(xTerm, 0.5)
	if dagger {
		o.addCanonical(yTerm, complex(0, -0.5))
	} else {
		o.addCanonical(yTerm, complex(0, 0.5))
	}
	return o
}
