package decomposition

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/JamesB-1qbit/Tangelo/internal/domain"
	"github.com/JamesB-1qbit/Tangelo/internal/events"
	"github.com/JamesB-1qbit/Tangelo/pkg/linalg"
)

// Status is the state-machine position of an embedding run.
type Status string

const (
	StatusInitialized Status = "INITIALIZED"
	StatusIterating   Status = "ITERATING"
	StatusConverged   Status = "CONVERGED"
	StatusMaxIters    Status = "MAX_ITERS_REACHED"
	StatusFailed      Status = "FAILED"
	StatusCancelled   Status = "CANCELLED"
)

// Criterion selects the convergence metric.
type Criterion string

const (
	// CriterionEnergy converges on the change between consecutive global
	// energies (the default).
	CriterionEnergy Criterion = "energy"
	// CriterionDensity converges on the Frobenius norm of the global density
	// residual.
	CriterionDensity Criterion = "density"
)

// Options configures the self-consistent loop.
type Options struct {
	// MaxIterations caps the loop; hitting it is a non-fatal completion.
	MaxIterations int
	// Tolerance is the convergence threshold for the chosen criterion.
	Tolerance float64
	// Criterion picks the stopping metric; defaults to energy.
	Criterion Criterion
	// Mixing damps the correlation-potential update (0 < Mixing <= 1).
	Mixing float64
	// InitialPotential seeds the correlation potential; nil means zero.
	InitialPotential *mat.Dense
	// Parallel bounds concurrent fragment solves; 0 means one goroutine per
	// fragment.
	Parallel int
}

func (o Options) withDefaults() Options {
	if o.MaxIterations <= 0 {
		o.MaxIterations = 20
	}
	if o.Tolerance <= 0 {
		o.Tolerance = 1e-6
	}
	if o.Criterion == "" {
		o.Criterion = CriterionEnergy
	}
	if o.Mixing <= 0 || o.Mixing > 1 {
		o.Mixing = 0.5
	}
	return o
}

// ConvergenceState is the loop's only mutable state, updated once per
// iteration at the aggregation barrier. No other component touches it.
type ConvergenceState struct {
	Iteration int
	Potential *mat.Dense
	Energy    float64
	History   []float64
	Status    Status
}

// FragmentOutcome pairs a fragment with its solve result.
type FragmentOutcome struct {
	Fragment *Fragment
	Result   *FragmentResult
}

// Outcome is the loop's final report: the last fully-computed state plus the
// final iteration's per-fragment results. Returned even on failure and
// cancellation so callers always get the partial result.
type Outcome struct {
	State     ConvergenceState
	Fragments []FragmentOutcome
	Converged bool
}

// Loop drives the self-consistent embedding cycle: partition, solve each
// fragment, aggregate, refine the correlation potential, repeat.
type Loop struct {
	scheme Scheme
	solver FragmentSolver
	events *events.Manager
	log    zerolog.Logger
	opts   Options
}

// NewLoop creates a self-consistent embedding loop. The event manager may be
// nil when no progress reporting is wanted.
func NewLoop(scheme Scheme, solver FragmentSolver, opts Options, ev *events.Manager, log zerolog.Logger) *Loop {
	return &Loop{
		scheme: scheme,
		solver: solver,
		events: ev,
		opts:   opts.withDefaults(),
		log:    log.With().Str("module", "decomposition").Str("scheme", scheme.Name()).Logger(),
	}
}

// Run executes the loop until convergence, the iteration cap, a fragment
// failure or cancellation. Cancellation is honored between iterations only;
// the outcome then carries the best state so far, tagged StatusCancelled.
func (l *Loop) Run(ctx context.Context, runID string, mf *domain.MeanFieldResult) (*Outcome, error) {
	n := mf.Orbitals()
	if n == 0 {
		return nil, fmt.Errorf("mean-field result has no orbitals")
	}

	state := ConvergenceState{
		Status:    StatusInitialized,
		Potential: mat.NewDense(n, n, nil),
	}
	if l.opts.InitialPotential != nil {
		state.Potential.Copy(l.opts.InitialPotential)
	}

	outcome := &Outcome{}
	state.Status = StatusIterating

	for iter := 1; iter <= l.opts.MaxIterations; iter++ {
		if ctx.Err() != nil {
			state.Status = StatusCancelled
			outcome.State = state
			l.emit(events.RunCancelled, runID, map[string]interface{}{"iteration": state.Iteration})
			return outcome, nil
		}

		l.emit(events.IterationStarted, runID, map[string]interface{}{"iteration": iter})

		fragments, err := l.scheme.Partition(mf, state.Potential)
		if err != nil {
			state.Status = StatusFailed
			outcome.State = state
			return outcome, fmt.Errorf("iteration %d: partition: %w", iter, err)
		}
		if err := checkCoverage(fragments, n); err != nil {
			state.Status = StatusFailed
			outcome.State = state
			return outcome, fmt.Errorf("iteration %d: %w", iter, err)
		}

		results, err := l.solveAll(ctx, runID, iter, fragments)
		if err != nil {
			state.Status = StatusFailed
			outcome.State = state
			return outcome, err
		}

		// Aggregation barrier: all fragments are in. Weighted sum of
		// energies; the weights are the scheme's overlap de-duplication.
		energy := 0.0
		for i, frag := range fragments {
			energy += frag.Weight * results[i].Energy
		}

		residual := densityResidual(mf, fragments, results, n)
		residualNorm := mat.Norm(residual, 2)

		prevEnergy := state.Energy
		hadPrev := state.Iteration > 0

		state.Iteration = iter
		state.Energy = energy
		state.History = append(state.History, energy)

		outcome.Fragments = outcome.Fragments[:0]
		for i := range fragments {
			outcome.Fragments = append(outcome.Fragments, FragmentOutcome{Fragment: fragments[i], Result: results[i]})
		}

		l.emit(events.IterationCompleted, runID, map[string]interface{}{
			"iteration":     iter,
			"energy":        energy,
			"residual_norm": residualNorm,
		})
		l.log.Info().
			Int("iteration", iter).
			Float64("energy", energy).
			Float64("residual_norm", residualNorm).
			Msg("Embedding iteration completed")

		converged := false
		switch l.opts.Criterion {
		case CriterionDensity:
			converged = residualNorm < l.opts.Tolerance
		default:
			converged = hadPrev && math.Abs(energy-prevEnergy) < l.opts.Tolerance
		}
		if converged {
			state.Status = StatusConverged
			outcome.State = state
			outcome.Converged = true
			l.emit(events.RunConverged, runID, map[string]interface{}{
				"iteration": iter,
				"energy":    energy,
			})
			return outcome, nil
		}

		next := mat.NewDense(n, n, nil)
		next.Copy(state.Potential)
		next.Add(next, linalg.Scale(l.opts.Mixing, residual))
		state.Potential = next
	}

	state.Status = StatusMaxIters
	outcome.State = state
	l.emit(events.RunMaxIterations, runID, map[string]interface{}{
		"iterations": state.Iteration,
		"energy":     state.Energy,
	})
	return outcome, nil
}

// solveAll fans the fragment solves out over worker goroutines and waits at
// the barrier for all results or the first fatal failure.
func (l *Loop) solveAll(ctx context.Context, runID string, iteration int, fragments []*Fragment) ([]*FragmentResult, error) {
	results := make([]*FragmentResult, len(fragments))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	if l.opts.Parallel > 0 {
		g.SetLimit(l.opts.Parallel)
	}

	for i, frag := range fragments {
		i, frag := i, frag
		g.Go(func() error {
			res, err := l.solver.Solve(gctx, frag)
			if err != nil {
				return &FragmentError{FragmentID: frag.ID, Iteration: iteration, Err: err}
			}
			mu.Lock()
			results[i] = res
			mu.Unlock()

			l.emit(events.FragmentSolved, runID, map[string]interface{}{
				"iteration": iteration,
				"fragment":  frag.ID,
				"energy":    res.Energy,
				"solver":    res.SolverName,
			})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// densityResidual assembles the fragment densities into the global orbital
// space, de-duplicating overlaps by pair multiplicity, and subtracts the
// mean-field density.
func densityResidual(mf *domain.MeanFieldResult, fragments []*Fragment, results []*FragmentResult, n int) *mat.Dense {
	mult := pairMultiplicities(fragments)

	global := mat.NewDense(n, n, nil)
	for i, frag := range fragments {
		d := results[i].Density
		if d == nil {
			continue
		}
		for a, p := range frag.Orbitals {
			for b, q := range frag.Orbitals {
				share := 1.0 / float64(mult[[2]int{p, q}])
				global.Set(p, q, global.At(p, q)+share*d.At(a, b))
			}
		}
	}

	residual := mat.NewDense(n, n, nil)
	residual.Sub(global, mf.Density)
	return residual
}

func checkCoverage(fragments []*Fragment, n int) error {
	covered := make([]bool, n)
	for _, f := range fragments {
		for _, o := range f.Orbitals {
			covered[o] = true
		}
	}
	for o, ok := range covered {
		if !ok {
			return fmt.Errorf("scheme left orbital %d uncovered", o)
		}
	}
	return nil
}

func (l *Loop) emit(t events.EventType, runID string, data map[string]interface{}) {
	if l.events == nil {
		return
	}
	l.events.Emit(t, "decomposition", runID, data)
}
