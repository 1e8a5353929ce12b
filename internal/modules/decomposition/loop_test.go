package decomposition

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/JamesB-1qbit/Tangelo/internal/domain"
	"github.com/JamesB-1qbit/Tangelo/internal/modules/backends"
	"github.com/JamesB-1qbit/Tangelo/pkg/linalg"
)

// stubSolver answers fragment solves from fixed per-fragment energies and
// reproduces the mean-field density block, so the density residual vanishes.
type stubSolver struct {
	mf       *domain.MeanFieldResult
	energies map[string]float64
	failID   string
	failErr  error
	calls    atomic.Int64
	// drift shifts the reported energy by drift*callCount, preventing
	// convergence when nonzero.
	drift float64
}

func (s *stubSolver) Name() string { return "stub" }

func (s *stubSolver) Solve(ctx context.Context, frag *Fragment) (*FragmentResult, error) {
	n := s.calls.Add(1)
	if frag.ID == s.failID {
		if s.failErr != nil {
			return nil, s.failErr
		}
		return nil, fmt.Errorf("solver exploded")
	}
	return &FragmentResult{
		Energy:     s.energies[frag.ID] + s.drift*float64(n),
		Density:    linalg.Submatrix(s.mf.Density, frag.Orbitals),
		Converged:  true,
		SolverName: s.Name(),
	}, nil
}

func loopFixture(t *testing.T) (*domain.MeanFieldResult, *stubSolver) {
	t.Helper()
	mf := meanField([]float64{-1, -0.5, 0.2, 0.8}, []float64{2, 2, 0, 0})
	solver := &stubSolver{
		mf: mf,
		energies: map[string]float64{
			"frag-0": -1.5,
			"frag-1": -1.0,
			"frag-2": -0.5,
			"frag-3": -0.25,
		},
	}
	return mf, solver
}

func newTestLoop(t *testing.T, scheme Scheme, solver FragmentSolver, opts Options) *Loop {
	t.Helper()
	return NewLoop(scheme, solver, opts, nil, zerolog.Nop())
}

func TestLoopConvergesAndAggregates(t *testing.T) {
	mf, solver := loopFixture(t)
	scheme, err := NewScheme("disjoint", nil)
	require.NoError(t, err)

	loop := newTestLoop(t, scheme, solver, Options{Tolerance: 1e-8})
	outcome, err := loop.Run(context.Background(), "run-1", mf)
	require.NoError(t, err)

	assert.True(t, outcome.Converged)
	assert.Equal(t, StatusConverged, outcome.State.Status)
	// Energy criterion needs two identical iterations.
	assert.Equal(t, 2, outcome.State.Iteration)
	assert.InDelta(t, -1.5-1.0-0.5-0.25, outcome.State.Energy, 1e-12)
	assert.Len(t, outcome.Fragments, 4)
	for _, fo := range outcome.Fragments {
		assert.Equal(t, "stub", fo.Result.SolverName)
	}
}

func TestLoopDensityCriterionConvergesImmediately(t *testing.T) {
	mf, solver := loopFixture(t)
	scheme, err := NewScheme("overlapping", []int{2, 2})
	require.NoError(t, err)

	loop := newTestLoop(t, scheme, solver, Options{Criterion: CriterionDensity, Tolerance: 1e-8})
	outcome, err := loop.Run(context.Background(), "run-1", mf)
	require.NoError(t, err)

	// Fragment densities match the mean field and overlaps are de-duplicated
	// exactly, so the residual is zero on the first pass.
	assert.True(t, outcome.Converged)
	assert.Equal(t, 1, outcome.State.Iteration)
}

func TestLoopFailureCarriesFragmentIdentity(t *testing.T) {
	mf, solver := loopFixture(t)
	solver.failID = "frag-2"
	scheme, err := NewScheme("disjoint", nil)
	require.NoError(t, err)

	loop := newTestLoop(t, scheme, solver, Options{})
	outcome, err := loop.Run(context.Background(), "run-1", mf)
	require.Error(t, err)

	var fragErr *FragmentError
	require.ErrorAs(t, err, &fragErr)
	assert.Equal(t, "frag-2", fragErr.FragmentID)
	assert.Equal(t, 1, fragErr.Iteration)
	assert.Equal(t, StatusFailed, outcome.State.Status)
}

func TestLoopBackendTimeoutKeepsFragmentIdentity(t *testing.T) {
	mf, solver := loopFixture(t)
	solver.failID = "frag-1"
	solver.failErr = &backends.TimeoutError{Backend: "remote", Timeout: 50 * time.Millisecond}
	scheme, err := NewScheme("disjoint", nil)
	require.NoError(t, err)

	loop := newTestLoop(t, scheme, solver, Options{})
	outcome, err := loop.Run(context.Background(), "run-1", mf)
	require.Error(t, err)

	// The wrapped backend timeout stays inspectable, with the fragment that
	// hit it attached.
	var fragErr *FragmentError
	require.ErrorAs(t, err, &fragErr)
	assert.Equal(t, "frag-1", fragErr.FragmentID)
	var timeout *backends.TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, "remote", timeout.Backend)
	assert.Equal(t, StatusFailed, outcome.State.Status)
}

func TestLoopHonorsCancellationBetweenIterations(t *testing.T) {
	mf, solver := loopFixture(t)
	scheme, err := NewScheme("disjoint", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	loop := newTestLoop(t, scheme, solver, Options{})
	outcome, err := loop.Run(ctx, "run-1", mf)
	require.NoError(t, err)

	assert.Equal(t, StatusCancelled, outcome.State.Status)
	assert.False(t, outcome.Converged)
	assert.Equal(t, int64(0), solver.calls.Load())
}

func TestLoopStopsAtIterationCap(t *testing.T) {
	mf, solver := loopFixture(t)
	solver.drift = 0.1 // energies never settle
	scheme, err := NewScheme("disjoint", nil)
	require.NoError(t, err)

	loop := newTestLoop(t, scheme, solver, Options{MaxIterations: 3, Tolerance: 1e-12})
	outcome, err := loop.Run(context.Background(), "run-1", mf)
	require.NoError(t, err)

	assert.Equal(t, StatusMaxIters, outcome.State.Status)
	assert.False(t, outcome.Converged)
	assert.Equal(t, 3, outcome.State.Iteration)
	assert.Len(t, outcome.State.History, 3)
}

func TestLoopBoundsParallelism(t *testing.T) {
	mf, solver := loopFixture(t)
	scheme, err := NewScheme("disjoint", nil)
	require.NoError(t, err)

	loop := newTestLoop(t, scheme, solver, Options{Parallel: 1, Tolerance: 1e-8})
	outcome, err := loop.Run(context.Background(), "run-1", mf)
	require.NoError(t, err)
	assert.True(t, outcome.Converged)
}

func TestDensityResidualDeduplicatesOverlaps(t *testing.T) {
	mf, _ := loopFixture(t)
	scheme, err := NewScheme("overlapping", []int{2, 2})
	require.NoError(t, err)

	fragments, err := scheme.Partition(mf, mat.NewDense(4, 4, nil))
	require.NoError(t, err)

	results := make([]*FragmentResult, len(fragments))
	for i, f := range fragments {
		results[i] = &FragmentResult{Density: linalg.Submatrix(mf.Density, f.Orbitals)}
	}

	residual := densityResidual(mf, fragments, results, 4)
	assert.InDelta(t, 0.0, mat.Norm(residual, 2), 1e-12)
}
