package vqe

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/optimize"

	"github.com/JamesB-1qbit/Tangelo/internal/modules/backends"
	"github.com/JamesB-1qbit/Tangelo/internal/modules/circuits"
	"github.com/JamesB-1qbit/Tangelo/internal/modules/operators"
)

// Config controls one variational minimization.
type Config struct {
	// Optimizer is "nelder-mead" (default) or "lbfgs". L-BFGS requires
	// Gradient.
	Optimizer string
	// MaxIterations caps optimizer steps; hitting it yields a flagged
	// non-convergent result, not an error.
	MaxIterations int
	// Tolerance is the energy change under which a step counts as converged.
	Tolerance float64
	// StableSteps is how many consecutive sub-tolerance steps are required.
	StableSteps int
	// Gradient enables parameter-shift gradients (two extra evaluations per
	// parameter, run concurrently).
	Gradient bool
	// Shots per evaluation; zero requests exact evaluation.
	Shots int
	// Seed fixes sampling backends.
	Seed int64
	// Timeout bounds each backend call.
	Timeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Optimizer == "" {
		c.Optimizer = "nelder-mead"
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = 200
	}
	if c.Tolerance <= 0 {
		c.Tolerance = 1e-7
	}
	if c.StableSteps <= 0 {
		c.StableSteps = 10
	}
	return c
}

// Trace records the optimization path: the energy of every objective
// evaluation, in order.
type Trace struct {
	Energies    []float64 `json:"energies"`
	Evaluations int       `json:"evaluations"`
}

// Result is the outcome of a minimization.
type Result struct {
	Params    []float64 `json:"params"`
	Energy    float64   `json:"energy"`
	Converged bool      `json:"converged"`
	Trace     Trace     `json:"trace"`
}

// Solver runs the classical optimization loop over a parameterized ansatz,
// evaluating the Hamiltonian expectation on the configured backend.
type Solver struct {
	backend backends.Backend
	log     zerolog.Logger
}

// NewSolver creates a variational solver bound to one backend.
func NewSolver(backend backends.Backend, log zerolog.Logger) *Solver {
	return &Solver{
		backend: backend,
		log:     log.With().Str("module", "vqe").Str("backend", backend.Name()).Logger(),
	}
}

// Backend returns the execution target.
func (s *Solver) Backend() backends.Backend { return s.backend }

// Minimize finds parameters minimizing <ansatz(params)|h|ansatz(params)>.
// initial may be nil to start from the ansatz's stored parameters. The
// optimizer loop is sequential; only gradient evaluations fan out.
func (s *Solver) Minimize(ctx context.Context, h *operators.QubitOperator, ansatz *circuits.Ansatz, initial []float64, cfg Config) (*Result, error) {
	cfg = cfg.withDefaults()
	if initial == nil {
		initial = ansatz.Parameters()
	}
	if len(initial) != ansatz.NumParameters() {
		return nil, fmt.Errorf("ansatz has %d parameters, got %d initial values", ansatz.NumParameters(), len(initial))
	}

	trace := &Trace{}
	var evalErr error

	energy := func(x []float64) (float64, error) {
		circ, err := ansatz.BindCircuit(x)
		if err != nil {
			return 0, err
		}
		res, err := s.backend.Evaluate(ctx, circ, []*operators.QubitOperator{h}, backends.EvalOptions{
			Shots:   cfg.Shots,
			Seed:    cfg.Seed,
			Timeout: cfg.Timeout,
		})
		if err != nil {
			return 0, err
		}
		return res.Values[0], nil
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			if evalErr != nil {
				return math.Inf(1)
			}
			e, err := energy(x)
			if err != nil {
				evalErr = err
				return math.Inf(1)
			}
			trace.Energies = append(trace.Energies, e)
			trace.Evaluations++
			return e
		},
	}

	var method optimize.Method
	switch cfg.Optimizer {
	case "nelder-mead":
		method = &optimize.NelderMead{}
	case "lbfgs":
		if !cfg.Gradient {
			return nil, fmt.Errorf("optimizer lbfgs requires gradients")
		}
		method = &optimize.LBFGS{}
	default:
		return nil, fmt.Errorf("unknown optimizer %q", cfg.Optimizer)
	}

	if cfg.Gradient {
		problem.Grad = func(grad, x []float64) {
			if evalErr != nil {
				return
			}
			if err := s.parameterShift(ctx, grad, x, energy); err != nil {
				evalErr = err
			}
		}
	}

	settings := &optimize.Settings{
		MajorIterations: cfg.MaxIterations,
		Converger: &optimize.FunctionConverge{
			Absolute:   cfg.Tolerance,
			Iterations: cfg.StableSteps,
		},
	}

	start := make([]float64, len(initial))
	copy(start, initial)

	optResult, optErr := optimize.Minimize(problem, start, settings, method)
	if evalErr != nil {
		return nil, evalErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	converged := false
	if optResult != nil {
		switch optResult.Status {
		case optimize.FunctionConvergence, optimize.GradientThreshold:
			converged = true
		case optimize.IterationLimit, optimize.FunctionEvaluationLimit:
			// Best point found is returned, flagged non-convergent.
		default:
			if optErr != nil {
				return nil, fmt.Errorf("optimizer failed: %w", optErr)
			}
		}
	} else if optErr != nil {
		return nil, fmt.Errorf("optimizer failed: %w", optErr)
	}

	params := make([]float64, len(optResult.X))
	copy(params, optResult.X)
	if err := ansatz.SetParameters(params); err != nil {
		return nil, err
	}

	s.log.Debug().
		Float64("energy", optResult.F).
		Bool("converged", converged).
		Int("evaluations", trace.Evaluations).
		Msg("Minimization finished")

	return &Result{
		Params:    params,
		Energy:    optResult.F,
		Converged: converged,
		Trace:     *trace,
	}, nil
}
