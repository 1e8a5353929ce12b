package backends

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/JamesB-1qbit/Tangelo/internal/modules/circuits"
	"github.com/JamesB-1qbit/Tangelo/internal/modules/operators"
)

// defaultStatevectorCapacity keeps the amplitude vector under a gigabyte.
const defaultStatevectorCapacity = 26

// Statevector is the exact backend: it simulates the amplitude vector and
// computes expectation values analytically, with no shot noise.
type Statevector struct {
	capacity int
}

// NewStatevector creates the exact simulator backend. capacity <= 0 selects
// the default.
func NewStatevector(capacity int) *Statevector {
	if capacity <= 0 {
		capacity = defaultStatevectorCapacity
	}
	return &Statevector{capacity: capacity}
}

func (s *Statevector) Name() string  { return "statevector" }
func (s *Statevector) Capacity() int { return s.capacity }

// Evaluate computes exact expectation values <psi|H|psi> for each observable.
func (s *Statevector) Evaluate(ctx context.Context, c *circuits.Circuit, observables []*operators.QubitOperator, opts EvalOptions) (*Result, error) {
	ctx, cancel := evalContext(ctx, opts)
	defer cancel()

	if err := checkWidth(s.Name(), c, s.capacity); err != nil {
		return nil, err
	}
	for _, obs := range observables {
		if obs.Width() > c.Width() {
			return nil, fmt.Errorf("observable acts on %d qubits, circuit has %d", obs.Width(), c.Width())
		}
	}

	state, err := simulate(c)
	if err != nil {
		return nil, err
	}

	values := make([]float64, len(observables))
	for i, obs := range observables {
		if err := checkDeadline(ctx, s.Name(), opts); err != nil {
			return nil, err
		}
		values[i] = exactExpectation(state, obs)
	}

	return &Result{
		Values:  values,
		StdErrs: make([]float64, len(observables)),
		Exact:   true,
	}, nil
}

// checkDeadline maps context expiry to the backend error taxonomy.
func checkDeadline(ctx context.Context, backend string, opts EvalOptions) error {
	switch ctx.Err() {
	case nil:
		return nil
	case context.DeadlineExceeded:
		return &TimeoutError{Backend: backend, Timeout: opts.Timeout}
	default:
		return ctx.Err()
	}
}

// simulate runs the circuit on the all-zeros register and returns the final
// amplitude vector. Qubit q is bit q of the state index (lsq-first order).
func simulate(c *circuits.Circuit) ([]complex128, error) {
	state := make([]complex128, 1<<uint(c.Width()))
	state[0] = 1

	for _, g := range c.Gates() {
		if g.ParamIndex >= 0 {
			return nil, fmt.Errorf("gate %s has an unbound parameter", g.Name)
		}
		if err := applyGate(state, g); err != nil {
			return nil, err
		}
	}
	return state, nil
}

func applyGate(state []complex128, g circuits.Gate) error {
	switch g.Name {
	case circuits.GateX:
		applySingle(state, g.Target, 0, 1, 1, 0)
	case circuits.GateY:
		applySingle(state, g.Target, 0, -1i, 1i, 0)
	case circuits.GateZ:
		applySingle(state, g.Target, 1, 0, 0, -1)
	case circuits.GateH:
		h := complex(1/math.Sqrt2, 0)
		applySingle(state, g.Target, h, h, h, -h)
	case circuits.GateRX:
		co := complex(math.Cos(g.Theta/2), 0)
		si := complex(0, -math.Sin(g.Theta/2))
		applySingle(state, g.Target, co, si, si, co)
	case circuits.GateRY:
		co := complex(math.Cos(g.Theta/2), 0)
		si := complex(math.Sin(g.Theta/2), 0)
		applySingle(state, g.Target, co, -si, si, co)
	case circuits.GateRZ:
		applySingle(state, g.Target, cmplx.Exp(complex(0, -g.Theta/2)), 0, 0, cmplx.Exp(complex(0, g.Theta/2)))
	case circuits.GateCNOT:
		cBit, tBit := 1<<uint(g.Control), 1<<uint(g.Target)
		for i := range state {
			if i&cBit != 0 && i&tBit == 0 {
				j := i | tBit
				state[i], state[j] = state[j], state[i]
			}
		}
	case circuits.GateCZ:
		cBit, tBit := 1<<uint(g.Control), 1<<uint(g.Target)
		for i := range state {
			if i&cBit != 0 && i&tBit != 0 {
				state[i] = -state[i]
			}
		}
	default:
		return fmt.Errorf("unsupported gate %s", g.Name)
	}
	return nil
}

// applySingle applies the 2x2 matrix [[a,b],[c,d]] to the target qubit.
func applySingle(state []complex128, target int, a, b, c, d complex128) {
	bit := 1 << uint(target)
	for i := range state {
		if i&bit != 0 {
			continue
		}
		j := i | bit
		v0, v1 := state[i], state[j]
		state[i] = a*v0 + b*v1
		state[j] = c*v0 + d*v1
	}
}

// applyPauliTerm returns P|psi> for a single Pauli string.
func applyPauliTerm(state []complex128, factors []operators.Factor) []complex128 {
	out := make([]complex128, len(state))
	copy(out, state)
	for _, f := range factors {
		switch f.Op {
		case operators.PauliX:
			applySingle(out, f.Qubit, 0, 1, 1, 0)
		case operators.PauliY:
			applySingle(out, f.Qubit, 0, -1i, 1i, 0)
		case operators.PauliZ:
			applySingle(out, f.Qubit, 1, 0, 0, -1)
		}
	}
	return out
}

// exactExpectation computes Re(<psi|H|psi>) term by term. The identity term
// contributes its coefficient directly, no simulation needed.
func exactExpectation(state []complex128, obs *operators.QubitOperator) float64 {
	total := 0.0
	for _, t := range obs.Terms() {
		if len(t.Factors) == 0 {
			total += real(t.Coeff)
			continue
		}
		applied := applyPauliTerm(state, t.Factors)
		inner := complex128(0)
		for i := range state {
			inner += cmplx.Conj(state[i]) * applied[i]
		}
		total += real(t.Coeff * inner)
	}
	return total
}

// probabilities returns |amplitude|^2 for every basis state.
func probabilities(state []complex128) []float64 {
	out := make([]float64, len(state))
	for i, amp := range state {
		p := real(amp)*real(amp) + imag(amp)*imag(amp)
		out[i] = p
	}
	return out
}
