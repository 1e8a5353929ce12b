package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/JamesB-1qbit/Tangelo/internal/clients/scf"
	"github.com/JamesB-1qbit/Tangelo/internal/database/repositories"
	"github.com/JamesB-1qbit/Tangelo/internal/domain"
	"github.com/JamesB-1qbit/Tangelo/internal/events"
	"github.com/JamesB-1qbit/Tangelo/internal/modules/backends"
	"github.com/JamesB-1qbit/Tangelo/internal/modules/circuits"
	"github.com/JamesB-1qbit/Tangelo/internal/modules/decomposition"
	"github.com/JamesB-1qbit/Tangelo/internal/modules/operators"
	"github.com/JamesB-1qbit/Tangelo/internal/modules/vqe"
)

// RunRequest is the full configuration surface of one workflow run. Zero
// values select the documented defaults.
type RunRequest struct {
	Molecule domain.Molecule  `json:"molecule"`
	Method   scf.MethodConfig `json:"method"`

	// Scheme is the embedding scheme name ("disjoint", "overlapping").
	Scheme string `json:"scheme"`
	// FragmentSizes gives fragment sizes in orbitals; nil means one orbital
	// per fragment.
	FragmentSizes []int `json:"fragment_sizes,omitempty"`
	// Encoding is the fermion-to-qubit mapping ("jordan-wigner", "scparity").
	Encoding string `json:"encoding"`
	// Backend selects the execution target ("statevector", "sampling",
	// "remote").
	Backend string `json:"backend"`
	// Shots per measurement basis for shot-based backends; 0 means exact.
	Shots int `json:"shots"`
	// FragmentSolvers overrides the solver per fragment ID ("vqe", "ccsd").
	FragmentSolvers map[string]string `json:"fragment_solvers,omitempty"`

	// AnsatzLayers sets the hardware-efficient ansatz depth (default 1).
	AnsatzLayers int `json:"ansatz_layers"`
	// Optimizer is "nelder-mead" (default) or "lbfgs".
	Optimizer string `json:"optimizer"`
	// Gradient enables parameter-shift gradients.
	Gradient bool `json:"gradient"`
	// SolverMaxIterations caps each variational solve (default 200).
	SolverMaxIterations int `json:"solver_max_iterations"`
	// SolverTolerance is the variational energy tolerance (default 1e-7).
	SolverTolerance float64 `json:"solver_tolerance"`

	// MaxIterations caps the embedding loop (default 20).
	MaxIterations int `json:"max_iterations"`
	// Tolerance is the loop convergence threshold (default 1e-6).
	Tolerance float64 `json:"tolerance"`
	// Criterion is "energy" (default) or "density".
	Criterion string `json:"criterion"`
	// Seed fixes sampling backends for reproducible traces.
	Seed int64 `json:"seed"`
	// BackendTimeoutSeconds bounds each backend call; 0 means unbounded.
	BackendTimeoutSeconds int `json:"backend_timeout_seconds"`
	// EncodingTolerance prunes Hamiltonian terms below this magnitude
	// relative to the largest coefficient; 0 selects machine epsilon.
	EncodingTolerance float64 `json:"encoding_tolerance"`
}

// Defaults are deployment-level fallbacks applied to zero-valued request
// fields before a run is assembled.
type Defaults struct {
	Encoding              string
	Scheme                string
	MaxIterations         int
	Tolerance             float64
	BackendTimeoutSeconds int
}

// Service orchestrates workflow runs: mean-field solve, decomposition, the
// self-consistent embedding loop, persistence and progress events.
type Service struct {
	integrals  scf.IntegralSolver
	ccsdClient *scf.Client
	repo       *repositories.RunRepository
	events     *events.Manager
	backendCfg backends.Config
	defaults   Defaults
	log        zerolog.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewService creates the workflow service. backendCfg and defaults carry
// deployment settings (remote URL, default shots, encoding, scheme, loop
// bounds); per-run request fields override them.
func NewService(integrals scf.IntegralSolver, ccsdClient *scf.Client, repo *repositories.RunRepository, ev *events.Manager, backendCfg backends.Config, defaults Defaults, log zerolog.Logger) *Service {
	return &Service{
		integrals:  integrals,
		ccsdClient: ccsdClient,
		repo:       repo,
		events:     ev,
		backendCfg: backendCfg,
		defaults:   defaults,
		log:        log.With().Str("module", "workflow").Logger(),
		cancels:    make(map[string]context.CancelFunc),
	}
}

// withDefaults fills zero-valued request fields from the deployment defaults.
func (s *Service) withDefaults(req RunRequest) RunRequest {
	if req.Encoding == "" {
		req.Encoding = s.defaults.Encoding
	}
	if req.Scheme == "" {
		req.Scheme = s.defaults.Scheme
	}
	if req.MaxIterations <= 0 {
		req.MaxIterations = s.defaults.MaxIterations
	}
	if req.Tolerance <= 0 {
		req.Tolerance = s.defaults.Tolerance
	}
	if req.BackendTimeoutSeconds <= 0 {
		req.BackendTimeoutSeconds = s.defaults.BackendTimeoutSeconds
	}
	return req
}

// Submit registers a run and executes it in the background. The returned
// record is in PENDING state; poll or subscribe for progress.
func (s *Service) Submit(req RunRequest) (*domain.RunResult, error) {
	if err := req.Molecule.Validate(); err != nil {
		return nil, err
	}

	run := &domain.RunResult{
		ID:          uuid.New().String(),
		Status:      domain.RunPending,
		SubmittedAt: time.Now(),
	}
	if err := s.repo.Create(run, req); err != nil {
		return nil, err
	}
	s.events.Emit(events.RunSubmitted, "workflow", run.ID, map[string]interface{}{
		"atoms": len(req.Molecule.Atoms),
		"basis": req.Molecule.Basis,
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancels[run.ID] = cancel
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.cancels, run.ID)
			s.mu.Unlock()
			cancel()
		}()
		s.Execute(ctx, run.ID, req)
	}()

	return run, nil
}

// Cancel requests cancellation of a running workflow. The loop honors it
// between iterations; the run finishes as CANCELLED with its best state.
func (s *Service) Cancel(runID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cancel, ok := s.cancels[runID]
	if ok {
		cancel()
	}
	return ok
}

// Execute runs the workflow synchronously and persists the outcome. A failed
// run always records which fragment/iteration failed alongside the last
// fully-computed state.
func (s *Service) Execute(ctx context.Context, runID string, req RunRequest) *domain.RunResult {
	s.events.Emit(events.RunStarted, "workflow", runID, nil)
	_ = s.repo.SetStatus(runID, domain.RunRunning)

	result := s.execute(ctx, runID, req)
	result.ID = runID
	now := time.Now()
	result.FinishedAt = &now

	if err := s.repo.Finish(result); err != nil {
		s.log.Error().Err(err).Str("run_id", runID).Msg("Failed to persist run result")
	}

	switch result.Status {
	case domain.RunFailed:
		s.events.EmitError("workflow", runID, fmt.Errorf("%s", result.Error), nil)
		s.events.Emit(events.RunFailed, "workflow", runID, map[string]interface{}{"error": result.Error})
	case domain.RunCancelled:
		s.events.Emit(events.RunCancelled, "workflow", runID, nil)
	}
	return result
}

func (s *Service) execute(ctx context.Context, runID string, req RunRequest) *domain.RunResult {
	result := &domain.RunResult{Status: domain.RunFailed}

	mf, err := s.integrals.ComputeMeanField(ctx, req.Molecule, req.Method)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	s.events.Emit(events.MeanFieldComputed, "workflow", runID, map[string]interface{}{
		"orbitals":  mf.Orbitals(),
		"electrons": mf.Electrons,
		"energy":    mf.Energy,
	})

	loop, err := s.buildLoop(req)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	outcome, err := loop.Run(ctx, runID, mf)
	if err != nil {
		result.Error = err.Error()
		if outcome != nil {
			result.Iterations = outcome.State.Iteration
			result.Energy = outcome.State.Energy
		}
		return result
	}

	result.Energy = outcome.State.Energy
	result.Iterations = outcome.State.Iteration
	result.Converged = outcome.Converged
	result.Fragments = breakdown(outcome)

	switch outcome.State.Status {
	case decomposition.StatusCancelled:
		result.Status = domain.RunCancelled
	default:
		result.Status = domain.RunCompleted
	}
	return result
}

// buildLoop assembles the scheme, encoders, backend and solvers for one run.
func (s *Service) buildLoop(req RunRequest) (*decomposition.Loop, error) {
	req = s.withDefaults(req)
	scheme, err := decomposition.NewScheme(req.Scheme, req.FragmentSizes)
	if err != nil {
		return nil, err
	}
	encoding, err := operators.NewEncoding(req.Encoding)
	if err != nil {
		return nil, err
	}

	backendCfg := s.backendCfg
	if req.Backend != "" {
		backendCfg.Name = req.Backend
	}
	if req.Shots > 0 {
		backendCfg.Shots = req.Shots
	}
	backend, err := backends.New(backendCfg, s.log)
	if err != nil {
		return nil, err
	}

	builder := operators.NewBuilder(encoding, req.EncodingTolerance, s.log)
	solverCfg := vqe.Config{
		Optimizer:     req.Optimizer,
		MaxIterations: req.SolverMaxIterations,
		Tolerance:     req.SolverTolerance,
		Gradient:      req.Gradient,
		Shots:         req.Shots,
		Seed:          req.Seed,
		Timeout:       time.Duration(req.BackendTimeoutSeconds) * time.Second,
	}
	variational := NewVQEFragmentSolver(builder, vqe.NewSolver(backend, s.log), req.AnsatzLayers, solverCfg, s.log)

	var solver decomposition.FragmentSolver = variational
	if len(req.FragmentSolvers) > 0 {
		byFragment := make(map[string]decomposition.FragmentSolver, len(req.FragmentSolvers))
		for id, name := range req.FragmentSolvers {
			switch name {
			case "vqe":
				byFragment[id] = variational
			case "ccsd":
				if s.ccsdClient == nil {
					return nil, fmt.Errorf("fragment %s requests ccsd but no integral-solver client is configured", id)
				}
				byFragment[id] = NewCCSDFragmentSolver(s.ccsdClient, s.log)
			default:
				return nil, fmt.Errorf("unknown fragment solver %q for fragment %s", name, id)
			}
		}
		solver = NewRouterSolver(variational, byFragment)
	}

	opts := decomposition.Options{
		MaxIterations: req.MaxIterations,
		Tolerance:     req.Tolerance,
		Criterion:     decomposition.Criterion(req.Criterion),
	}
	return decomposition.NewLoop(scheme, solver, opts, s.events, s.log), nil
}

// EstimateResources reports the quantum resources each fragment would need,
// without executing anything.
func (s *Service) EstimateResources(ctx context.Context, req RunRequest) ([]domain.ResourceEstimate, error) {
	req = s.withDefaults(req)
	mf, err := s.integrals.ComputeMeanField(ctx, req.Molecule, req.Method)
	if err != nil {
		return nil, err
	}

	scheme, err := decomposition.NewScheme(req.Scheme, req.FragmentSizes)
	if err != nil {
		return nil, err
	}
	encoding, err := operators.NewEncoding(req.Encoding)
	if err != nil {
		return nil, err
	}
	builder := operators.NewBuilder(encoding, req.EncodingTolerance, s.log)

	n := mf.Orbitals()
	fragments, err := scheme.Partition(mf, mat.NewDense(n, n, nil))
	if err != nil {
		return nil, err
	}

	layers := req.AnsatzLayers
	if layers < 1 {
		layers = 1
	}

	estimates := make([]domain.ResourceEstimate, 0, len(fragments))
	for _, frag := range fragments {
		h, err := builder.Build(frag.Integrals)
		if err != nil {
			return nil, err
		}
		width := encoding.NumQubits(frag.Integrals.SpinOrbitals)
		occupied, err := referenceOccupation(encoding, frag.Integrals)
		if err != nil {
			return nil, err
		}
		ansatz, err := circuits.HardwareEfficient(width, layers, occupied)
		if err != nil {
			return nil, err
		}
		estimates = append(estimates, domain.ResourceEstimate{
			FragmentID: frag.ID,
			Qubits:     width,
			Terms:      h.Len(),
			Gates:      ansatz.Size(),
			Parameters: ansatz.NumParameters(),
		})
	}
	return estimates, nil
}

// Get returns one persisted run.
func (s *Service) Get(runID string) (*domain.RunResult, error) {
	return s.repo.GetByID(runID)
}

// List returns persisted runs, newest first.
func (s *Service) List(limit int) ([]*domain.RunResult, error) {
	return s.repo.List(limit)
}

func breakdown(outcome *decomposition.Outcome) []domain.FragmentBreakdown {
	out := make([]domain.FragmentBreakdown, 0, len(outcome.Fragments))
	for _, fo := range outcome.Fragments {
		out = append(out, domain.FragmentBreakdown{
			FragmentID: fo.Fragment.ID,
			Orbitals:   fo.Fragment.Orbitals,
			Electrons:  fo.Fragment.Electrons,
			Weight:     fo.Fragment.Weight,
			Energy:     fo.Result.Energy,
			Qubits:     fo.Result.Qubits,
			Terms:      fo.Result.Terms,
			Solver:     fo.Result.SolverName,
			Converged:  fo.Result.Converged,
		})
	}
	return out
}
