package vqe

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JamesB-1qbit/Tangelo/internal/modules/backends"
	"github.com/JamesB-1qbit/Tangelo/internal/modules/circuits"
	"github.com/JamesB-1qbit/Tangelo/internal/modules/operators"
)

// singleRY builds the one-parameter ansatz RY(theta)|0> whose <Z> landscape is
// cos(theta), minimized at -1.
func singleRY(t *testing.T) *circuits.Ansatz {
	t.Helper()
	c := circuits.NewCircuit(1)
	require.NoError(t, c.Add(circuits.P(circuits.GateRY, 0, 0)))
	a, err := circuits.NewAnsatz("ry", c, []float64{0.4})
	require.NoError(t, err)
	return a
}

func pauliZ(t *testing.T) *operators.QubitOperator {
	t.Helper()
	z, err := operators.PauliString(1, operators.Z(0))
	require.NoError(t, err)
	return z
}

func TestMinimizeFindsGroundState(t *testing.T) {
	solver := NewSolver(backends.NewStatevector(0), zerolog.Nop())
	ansatz := singleRY(t)

	res, err := solver.Minimize(context.Background(), pauliZ(t), ansatz, nil, Config{})
	require.NoError(t, err)

	assert.True(t, res.Converged)
	assert.InDelta(t, -1.0, res.Energy, 1e-4)
	assert.Greater(t, res.Trace.Evaluations, 0)
	assert.Len(t, res.Trace.Energies, res.Trace.Evaluations)
	// Optimal parameters written back to the ansatz.
	assert.Equal(t, res.Params, ansatz.Parameters())
}

func TestMinimizeWithParameterShiftGradient(t *testing.T) {
	solver := NewSolver(backends.NewStatevector(0), zerolog.Nop())
	ansatz := singleRY(t)

	res, err := solver.Minimize(context.Background(), pauliZ(t), ansatz, nil, Config{
		Optimizer: "lbfgs",
		Gradient:  true,
	})
	require.NoError(t, err)
	assert.InDelta(t, -1.0, res.Energy, 1e-4)
}

func TestMinimizeDeterministicWithSeed(t *testing.T) {
	backend := backends.NewSampling(0, 0)

	run := func() *Result {
		solver := NewSolver(backend, zerolog.Nop())
		res, err := solver.Minimize(context.Background(), pauliZ(t), singleRY(t), nil, Config{
			Shots: 500,
			Seed:  99,
		})
		require.NoError(t, err)
		return res
	}

	first := run()
	second := run()
	assert.Equal(t, first.Trace.Energies, second.Trace.Energies)
	assert.Equal(t, first.Params, second.Params)
}

func TestMinimizeExactBackendDeterministic(t *testing.T) {
	run := func() *Result {
		solver := NewSolver(backends.NewStatevector(0), zerolog.Nop())
		res, err := solver.Minimize(context.Background(), pauliZ(t), singleRY(t), nil, Config{Seed: 42})
		require.NoError(t, err)
		return res
	}

	// Two solves with identical seeds must agree bit for bit on the exact
	// backend: same optimal parameters, same energy, same trace.
	first := run()
	second := run()
	assert.Equal(t, first.Params, second.Params)
	assert.Equal(t, first.Energy, second.Energy)
	assert.Equal(t, first.Trace.Energies, second.Trace.Energies)
}

func TestMinimizeIterationLimitFlagsNonConvergence(t *testing.T) {
	solver := NewSolver(backends.NewStatevector(0), zerolog.Nop())

	res, err := solver.Minimize(context.Background(), pauliZ(t), singleRY(t), nil, Config{
		MaxIterations: 2,
	})
	require.NoError(t, err)
	assert.False(t, res.Converged)
}

func TestMinimizeLBFGSRequiresGradient(t *testing.T) {
	solver := NewSolver(backends.NewStatevector(0), zerolog.Nop())

	_, err := solver.Minimize(context.Background(), pauliZ(t), singleRY(t), nil, Config{Optimizer: "lbfgs"})
	assert.Error(t, err)
}

func TestMinimizeWrongInitialArity(t *testing.T) {
	solver := NewSolver(backends.NewStatevector(0), zerolog.Nop())

	_, err := solver.Minimize(context.Background(), pauliZ(t), singleRY(t), []float64{1, 2}, Config{})
	assert.Error(t, err)
}

// failingBackend errors on every evaluation.
type failingBackend struct{}

func (f *failingBackend) Name() string  { return "failing" }
func (f *failingBackend) Capacity() int { return 32 }
func (f *failingBackend) Evaluate(ctx context.Context, c *circuits.Circuit, obs []*operators.QubitOperator, opts backends.EvalOptions) (*backends.Result, error) {
	return nil, fmt.Errorf("device offline")
}

func TestMinimizePropagatesBackendError(t *testing.T) {
	solver := NewSolver(&failingBackend{}, zerolog.Nop())

	_, err := solver.Minimize(context.Background(), pauliZ(t), singleRY(t), nil, Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device offline")
}
