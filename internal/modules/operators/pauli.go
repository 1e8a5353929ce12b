package operators

import (
	"fmt"
	"sort"
	"strings"
)

// Pauli identifies a single-qubit Pauli operator.
type Pauli byte

const (
	PauliI Pauli = 'I'
	PauliX Pauli = 'X'
	PauliY Pauli = 'Y'
	PauliZ Pauli = 'Z'
)

// Factor is a Pauli operator tagged to a qubit index.
type Factor struct {
	Qubit int
	Op    Pauli
}

func (f Factor) String() string {
	return fmt.Sprintf("%c%d", f.Op, f.Qubit)
}

// X, Y and Z are shorthands for building Pauli strings.
func X(qubit int) Factor { return Factor{Qubit: qubit, Op: PauliX} }
func Y(qubit int) Factor { return Factor{Qubit: qubit, Op: PauliY} }
func Z(qubit int) Factor { return Factor{Qubit: qubit, Op: PauliZ} }

// canonicalize sorts factors by qubit, drops identities and rejects duplicate
// qubit indices. The caller keeps ownership of the input slice.
func canonicalize(factors []Factor) ([]Factor, error) {
	out := make([]Factor, 0, len(factors))
	for _, f := range factors {
		if f.Op == PauliI {
			continue
		}
		if f.Op != PauliX && f.Op != PauliY && f.Op != PauliZ {
			return nil, fmt.Errorf("unknown pauli operator %q", f.Op)
		}
		if f.Qubit < 0 {
			return nil, fmt.Errorf("negative qubit index %d", f.Qubit)
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Qubit < out[j].Qubit })
	for i := 1; i < len(out); i++ {
		if out[i].Qubit == out[i-1].Qubit {
			return nil, fmt.Errorf("duplicate qubit index %d in pauli string", out[i].Qubit)
		}
	}
	return out, nil
}

// termKey renders a canonical factor slice as a map key, e.g. "X0 Z3".
// The empty string is the identity term.
func termKey(factors []Factor) string {
	if len(factors) == 0 {
		return ""
	}
	var b strings.Builder
	for i, f := range factors {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(f.String())
	}
	return b.String()
}

// mulPauli multiplies two single-qubit Paulis (a on the left), returning the
// resulting operator and the accumulated phase.
func mulPauli(a, b Pauli) (Pauli, complex128) {
	if a == b {
		return PauliI, 1
	}
	switch {
	case a == PauliX && b == PauliY:
		return PauliZ, 1i
	case a == PauliY && b == PauliX:
		return PauliZ, -1i
	case a == PauliY && b == PauliZ:
		return PauliX, 1i
	case a == PauliZ && b == PauliY:
		return PauliX, -1i
	case a == PauliZ && b == PauliX:
		return PauliY, 1i
	case a == PauliX && b == PauliZ:
		return PauliY, -1i
	}
	return PauliI, 1
}

// mulFactors multiplies two canonical Pauli strings, returning the canonical
// product string and its phase.
func mulFactors(a, b []Factor) ([]Factor, complex128) {
	out := make([]Factor, 0, len(a)+len(b))
	phase := complex128(1)
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].Qubit < b[j].Qubit:
			out = append(out, a[i])
			i++
		case a[i].Qubit > b[j].Qubit:
			out = append(out, b[j])
			j++
		default:
			op, ph := mulPauli(a[i].Op, b[j].Op)
			phase *= ph
			if op != PauliI {
				out = append(out, Factor{Qubit: a[i].Qubit, Op: op})
			}
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out, phase
}
