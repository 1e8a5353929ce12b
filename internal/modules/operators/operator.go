package operators

import (
	"math"
	"math/cmplx"
	"sort"
)

// QubitOperator is a weighted sum of Pauli strings (the qubit Hamiltonian
// representation). Terms are unique: adding a Pauli string that is already
// present merges the coefficients.
type QubitOperator struct {
	terms map[string]term
}

type term struct {
	factors []Factor
	coeff   complex128
}

// Term is the exported view of a single Pauli-string term.
type Term struct {
	Factors []Factor
	Coeff   complex128
}

// New returns an empty operator.
func New() *QubitOperator {
	return &QubitOperator{terms: make(map[string]term)}
}

// Identity returns c times the identity operator.
func Identity(c complex128) *QubitOperator {
	o := New()
	o.terms[""] = term{coeff: c}
	return o
}

// PauliString returns an operator with the single term c * factors.
func PauliString(c complex128, factors ...Factor) (*QubitOperator, error) {
	o := New()
	if err := o.Add(c, factors...); err != nil {
		return nil, err
	}
	return o, nil
}

// Add merges c * factors into the operator.
func (o *QubitOperator) Add(c complex128, factors ...Factor) error {
	canon, err := canonicalize(factors)
	if err != nil {
		return err
	}
	o.addCanonical(canon, c)
	return nil
}

func (o *QubitOperator) addCanonical(factors []Factor, c complex128) {
	key := termKey(factors)
	if existing, ok := o.terms[key]; ok {
		existing.coeff += c
		o.terms[key] = existing
		return
	}
	o.terms[key] = term{factors: factors, coeff: c}
}

// AddOperator merges every term of other into o.
func (o *QubitOperator) AddOperator(other *QubitOperator) {
	for key, t := range other.terms {
		if existing, ok := o.terms[key]; ok {
			existing.coeff += t.coeff
			o.terms[key] = existing
		} else {
			o.terms[key] = t
		}
	}
}

// Mul returns the operator product o * other as a new operator.
func (o *QubitOperator) Mul(other *QubitOperator) *QubitOperator {
	out := New()
	for _, a := range o.terms {
		for _, b := range other.terms {
			factors, phase := mulFactors(a.factors, b.factors)
			out.addCanonical(factors, a.coeff*b.coeff*phase)
		}
	}
	return out
}

// Scale multiplies every coefficient by c.
func (o *QubitOperator) Scale(c complex128) {
	for key, t := range o.terms {
		t.coeff *= c
		o.terms[key] = t
	}
}

// Compress drops terms whose coefficient magnitude is below tol and zeroes
// imaginary parts below tol. Component-local cleanup; never an error.
func (o *QubitOperator) Compress(tol float64) {
	for key, t := range o.terms {
		if math.Abs(imag(t.coeff)) < tol {
			t.coeff = complex(real(t.coeff), 0)
		}
		if cmplx.Abs(t.coeff) < tol {
			delete(o.terms, key)
			continue
		}
		o.terms[key] = t
	}
}

// Len returns the number of stored terms.
func (o *QubitOperator) Len() int { return len(o.terms) }

// Width returns the number of qubits the operator acts on (highest index + 1).
func (o *QubitOperator) Width() int {
	width := 0
	for _, t := range o.terms {
		for _, f := range t.factors {
			if f.Qubit+1 > width {
				width = f.Qubit + 1
			}
		}
	}
	return width
}

// Constant returns the coefficient of the identity term.
func (o *QubitOperator) Constant() complex128 {
	return o.terms[""].coeff
}

// Coefficient returns the coefficient of the given Pauli string, or zero if
// the term is absent.
func (o *QubitOperator) Coefficient(factors ...Factor) complex128 {
	canon, err := canonicalize(factors)
	if err != nil {
		return 0
	}
	return o.terms[termKey(canon)].coeff
}

// Terms returns the terms in a deterministic (key-sorted) order.
func (o *QubitOperator) Terms() []Term {
	keys := make([]string, 0, len(o.terms))
	for key := range o.terms {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]Term, 0, len(keys))
	for _, key := range keys {
		t := o.terms[key]
		factors := make([]Factor, len(t.factors))
		copy(factors, t.factors)
		out = append(out, Term{Factors: factors, Coeff: t.coeff})
	}
	return out
}

// MaxAbsCoeff returns the largest coefficient magnitude, 0 for an empty
// operator.
func (o *QubitOperator) MaxAbsCoeff() float64 {
	maxAbs := 0.0
	for _, t := range o.terms {
		if a := cmplx.Abs(t.coeff); a > maxAbs {
			maxAbs = a
		}
	}
	return maxAbs
}

// IsHermitian reports whether every coefficient is real within tol. In the
// Pauli basis an operator is Hermitian exactly when its coefficients are real.
func (o *QubitOperator) IsHermitian(tol float64) bool {
	for _, t := range o.terms {
		if math.Abs(imag(t.coeff)) > tol {
			return false
		}
	}
	return true
}
