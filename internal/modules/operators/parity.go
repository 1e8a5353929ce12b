package operators

// SymmetryParity is the parity-preserving mapping with two-qubit reduction.
// Qubit j stores the cumulative occupation parity of spin orbitals 0..j. With
// up-then-down spin-orbital ordering, the qubits holding the up-sector parity
// and the total parity are stationary for a particle-number and spin
// conserving Hamiltonian; they are replaced by their eigenvalues and removed,
// saving two qubits over the occupation mapping.
type SymmetryParity struct {
	Budget int
}

func (s *SymmetryParity) Name() string { return "scparity" }

func (s *SymmetryParity) NumQubits(spinOrbitals int) int { return spinOrbitals - 2 }

func (s *SymmetryParity) Encode(ints ActiveSpaceIntegrals, tol float64) (*QubitOperator, error) {
	if !ints.Finite() {
		return nil, encodingErrorf(s.Name(), "integrals contain non-finite values")
	}
	m := ints.SpinOrbitals
	if m < 4 || m%2 != 0 {
		return nil, encodingErrorf(s.Name(), "needs an even number of spin orbitals >= 4, got %d", m)
	}
	if s.NumQubits(m) > s.Budget {
		return nil, encodingErrorf(s.Name(), "%d spin orbitals need %d qubits, budget is %d",
			m, s.NumQubits(m), s.Budget)
	}

	full := assembleSecondQuantized(ints, m, parityLadder)
	full.Compress(pruneTolerance(full, tol))

	reduced, err := s.taper(full, m, ints.ElectronsUp, ints.Electrons())
	if err != nil {
		return nil, err
	}
	reduced.Compress(pruneTolerance(reduced, tol))
	return reduced, nil
}

// parityLadder returns a+_j (dagger) or a_j in the parity basis:
// 1/2 X_{n-1}...X_{j+1} (X_j Z_{j-1} -/+ i Y_j).
func parityLadder(j, n int, dagger bool) *QubitOperator {
	xs := make([]Factor, 0, n-j-1)
	for k := j + 1; k < n; k++ {
		xs = append(xs, X(k))
	}

	xTerm := make([]Factor, 0, n-j+1)
	if j > 0 {
		xTerm = append(xTerm, Z(j-1))
	}
	xTerm = append(xTerm, X(j))
	xTerm = append(xTerm, xs...)

	yTerm := make([]Factor, 0, n-j)
	yTerm = append(yTerm, Y(j))
	yTerm = append(yTerm, xs...)

	o := New()
	o.addCanonical(xTerm, 0.5)
	if dagger {
		o.addCanonical(yTerm, complex(0, -0.5))
	} else {
		o.addCanonical(yTerm, complex(0, 0.5))
	}
	return o
}

// taper substitutes the symmetry eigenvalues on the up-sector parity qubit
// (m/2-1) and the total parity qubit (m-1), then reindexes the register.
func (s *SymmetryParity) taper(full *QubitOperator, m, electronsUp, electrons int) (*QubitOperator, error) {
	upQubit, totalQubit := m/2-1, m-1
	zUp, zTotal := parityEigenvalue(electronsUp), parityEigenvalue(electrons)

	out := New()
	for _, t := range full.Terms() {
		coeff := t.Coeff
		kept := make([]Factor, 0, len(t.Factors))
		for _, f := range t.Factors {
			if f.Qubit != upQubit && f.Qubit != totalQubit {
				kept = append(kept, f)
				continue
			}
			if f.Op != PauliZ {
				return nil, encodingErrorf(s.Name(),
					"term %s breaks the conserved particle/spin symmetry (non-Z on tapered qubit %d)",
					termKey(t.Factors), f.Qubit)
			}
			if f.Qubit == upQubit {
				coeff *= complex(zUp, 0)
			} else {
				coeff *= complex(zTotal, 0)
			}
		}
		for i := range kept {
			if kept[i].Qubit > upQubit {
				kept[i].Qubit--
			}
		}
		out.addCanonical(kept, coeff)
	}
	return out, nil
}

func parityEigenvalue(electrons int) float64 {
	if electrons%2 == 0 {
		return 1
	}
	return -1
}
