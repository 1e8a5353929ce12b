package backends

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/JamesB-1qbit/Tangelo/internal/modules/circuits"
	"github.com/JamesB-1qbit/Tangelo/internal/modules/operators"
)

// Sampling estimates expectation values from measurement statistics drawn
// from the simulated amplitude vector, reporting the estimate together with
// its standard error. Each Pauli term is measured in its own rotated basis
// with the configured shot count.
type Sampling struct {
	capacity     int
	defaultShots int
}

// NewSampling creates the shot-based simulator backend.
func NewSampling(capacity, defaultShots int) *Sampling {
	if capacity <= 0 {
		capacity = defaultStatevectorCapacity
	}
	if defaultShots <= 0 {
		defaultShots = 1024
	}
	return &Sampling{capacity: capacity, defaultShots: defaultShots}
}

func (s *Sampling) Name() string  { return "sampling" }
func (s *Sampling) Capacity() int { return s.capacity }

func (s *Sampling) Evaluate(ctx context.Context, c *circuits.Circuit, observables []*operators.QubitOperator, opts EvalOptions) (*Result, error) {
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
	shots := opts.Shots
	if shots <= 0 {
		shots = s.defaultShots
	}

	state, err := simulate(c)
	if err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(opts.Seed))

	values := make([]float64, len(observables))
	stderrs := make([]float64, len(observables))
	for i, obs := range observables {
		if err := checkDeadline(ctx, s.Name(), opts); err != nil {
			return nil, err
		}
		value, variance := s.estimate(state, obs, shots, rng)
		values[i] = value
		stderrs[i] = math.Sqrt(variance)
	}

	return &Result{
		Values:  values,
		StdErrs: stderrs,
		Shots:   shots,
	}, nil
}

// estimate measures every term of obs, returning the combined expectation and
// its variance: value = sum c_t e_t, var = sum c_t^2 var(e_t).
func (s *Sampling) estimate(state []complex128, obs *operators.QubitOperator, shots int, rng *rand.Rand) (float64, float64) {
	value, variance := 0.0, 0.0
	for _, t := range obs.Terms() {
		coeff := real(t.Coeff)
		if len(t.Factors) == 0 {
			value += coeff
			continue
		}
		e, se := measureTerm(state, t.Factors, shots, rng)
		value += coeff * e
		variance += coeff * coeff * se * se
	}
	return value, variance
}

// measureTerm rotates the term into the computational basis, draws shots from
// the resulting distribution and returns the sample mean of the +/-1 parity
// outcomes with its standard error.
func measureTerm(state []complex128, factors []operators.Factor, shots int, rng *rand.Rand) (float64, float64) {
	rotated := rotateToZBasis(state, factors)
	cdf := cumulative(probabilities(rotated))

	mask := 0
	for _, f := range factors {
		mask |= 1 << uint(f.Qubit)
	}

	samples := make([]float64, shots)
	for i := 0; i < shots; i++ {
		outcome := drawOutcome(cdf, rng.Float64())
		if parity(outcome & mask) {
			samples[i] = -1
		} else {
			samples[i] = 1
		}
	}

	mean, std := stat.MeanStdDev(samples, nil)
	if math.IsNaN(std) {
		std = 0
	}
	return mean, std / math.Sqrt(float64(shots))
}

// rotateToZBasis maps X measurement to RY(-pi/2) and Y measurement to
// RX(pi/2), so every factor can be read out in the computational basis.
func rotateToZBasis(state []complex128, factors []operators.Factor) []complex128 {
	out := make([]complex128, len(state))
	copy(out, state)
	for _, f := range factors {
		switch f.Op {
		case operators.PauliX:
			co := complex(math.Cos(math.Pi/4), 0)
			si := complex(math.Sin(math.Pi/4), 0)
			applySingle(out, f.Qubit, co, si, -si, co) // RY(-pi/2)
		case operators.PauliY:
			co := complex(math.Cos(math.Pi/4), 0)
			si := complex(0, -math.Sin(math.Pi/4))
			applySingle(out, f.Qubit, co, si, si, co) // RX(pi/2)
		}
	}
	return out
}

func cumulative(probs []float64) []float64 {
	out := make([]float64, len(probs))
	sum := 0.0
	for i, p := range probs {
		sum += p
		out[i] = sum
	}
	return out
}

func drawOutcome(cdf []float64, u float64) int {
	// Normalization drift keeps u inside the support.
	u = math.Min(u*cdf[len(cdf)-1], cdf[len(cdf)-1])
	return sort.SearchFloat64s(cdf, u)
}

func parity(bits int) bool {
	count := 0
	for bits != 0 {
		bits &= bits - 1
		count++
	}
	return count%2 == 1
}
