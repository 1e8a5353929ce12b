package workflow

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/JamesB-1qbit/Tangelo/internal/clients/scf"
	"github.com/JamesB-1qbit/Tangelo/internal/modules/backends"
	"github.com/JamesB-1qbit/Tangelo/internal/modules/circuits"
	"github.com/JamesB-1qbit/Tangelo/internal/modules/decomposition"
	"github.com/JamesB-1qbit/Tangelo/internal/modules/operators"
	"github.com/JamesB-1qbit/Tangelo/internal/modules/vqe"
)

// VQEFragmentSolver solves embedded fragments variationally: encode the
// active space, minimize over a hardware-efficient ansatz, then measure the
// one-particle density matrix at the optimum.
type VQEFragmentSolver struct {
	builder *operators.Builder
	solver  *vqe.Solver
	layers  int
	cfg     vqe.Config
	log     zerolog.Logger
}

// NewVQEFragmentSolver wires a builder and a variational solver into a
// fragment solver for the embedding loop.
func NewVQEFragmentSolver(builder *operators.Builder, solver *vqe.Solver, layers int, cfg vqe.Config, log zerolog.Logger) *VQEFragmentSolver {
	if layers < 1 {
		layers = 1
	}
	return &VQEFragmentSolver{
		builder: builder,
		solver:  solver,
		layers:  layers,
		cfg:     cfg,
		log:     log.With().Str("solver", "vqe").Logger(),
	}
}

func (v *VQEFragmentSolver) Name() string { return "vqe" }

func (v *VQEFragmentSolver) Solve(ctx context.Context, frag *decomposition.Fragment) (*decomposition.FragmentResult, error) {
	h, err := v.builder.Build(frag.Integrals)
	if err != nil {
		return nil, err
	}

	enc := v.builder.Encoding()
	width := enc.NumQubits(frag.Integrals.SpinOrbitals)
	occupied, err := referenceOccupation(enc, frag.Integrals)
	if err != nil {
		return nil, err
	}

	ansatz, err := circuits.HardwareEfficient(width, v.layers, occupied)
	if err != nil {
		return nil, err
	}

	res, err := v.solver.Minimize(ctx, h, ansatz, nil, v.cfg)
	if err != nil {
		return nil, err
	}
	if !res.Converged {
		v.log.Warn().
			Str("fragment", frag.ID).
			Int("evaluations", res.Trace.Evaluations).
			Msg("Variational solve hit the iteration cap; using best point found")
	}

	density, err := v.measureDensity(ctx, frag, ansatz)
	if err != nil {
		return nil, err
	}

	return &decomposition.FragmentResult{
		Energy:     res.Energy,
		Density:    density,
		Qubits:     width,
		Terms:      h.Len(),
		Converged:  res.Converged,
		SolverName: v.Name(),
	}, nil
}

// measureDensity evaluates the spin-traced one-particle density matrix over
// the fragment orbitals at the ansatz's current (optimal) parameters. All
// matrix elements go to the backend as one batched observable set.
func (v *VQEFragmentSolver) measureDensity(ctx context.Context, frag *decomposition.Fragment, ansatz *circuits.Ansatz) (*mat.Dense, error) {
	k := frag.Size()
	ints := frag.Integrals

	type element struct{ p, q int }
	var index []element
	var observables []*operators.QubitOperator

	for p := 0; p < k; p++ {
		for q := p; q < k; q++ {
			obs, err := v.densityObservable(ints, k, p, q)
			if err != nil {
				return nil, err
			}
			index = append(index, element{p, q})
			observables = append(observables, obs)
		}
	}

	circ, err := ansatz.Circuit()
	if err != nil {
		return nil, err
	}
	res, err := v.solver.Backend().Evaluate(ctx, circ, observables, backends.EvalOptions{
		Shots:   v.cfg.Shots,
		Seed:    v.cfg.Seed,
		Timeout: v.cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}

	density := mat.NewDense(k, k, nil)
	for i, el := range index {
		density.Set(el.p, el.q, res.Values[i])
		density.Set(el.q, el.p, res.Values[i])
	}
	return density, nil
}

// densityObservable encodes the symmetrized spatial excitation
// (a+_p a_q + a+_q a_p)/2 summed over spin, reusing the fragment's encoding
// so tapered mappings stay consistent.
func (v *VQEFragmentSolver) densityObservable(ints operators.ActiveSpaceIntegrals, k, p, q int) (*operators.QubitOperator, error) {
	coeffs := mat.NewDense(k, k, nil)
	if p == q {
		coeffs.Set(p, p, 1)
	} else {
		coeffs.Set(p, q, 0.5)
		coeffs.Set(q, p, 0.5)
	}
	probe := operators.FromSpatial(0, coeffs, nil, ints.ElectronsUp, ints.ElectronsDown)
	return v.builder.Encoding().Encode(probe, 0)
}

// referenceOccupation returns the qubits flipped to prepare the mean-field
// reference state under the given encoding (up-then-down orbital ordering).
func referenceOccupation(enc operators.Encoding, ints operators.ActiveSpaceIntegrals) ([]int, error) {
	m := ints.SpinOrbitals
	occ := make([]int, m) // spin-orbital occupations
	for i := 0; i < ints.ElectronsUp && i < m/2; i++ {
		occ[i] = 1
	}
	for i := 0; i < ints.ElectronsDown && m/2+i < m; i++ {
		occ[m/2+i] = 1
	}

	switch enc.(type) {
	case *operators.JordanWigner:
		var qubits []int
		for i, o := range occ {
			if o == 1 {
				qubits = append(qubits, i)
			}
		}
		return qubits, nil
	case *operators.SymmetryParity:
		// Parity basis stores cumulative occupation parity; the two
		// stationary qubits are tapered away.
		parityBits := make([]int, m)
		sum := 0
		for i, o := range occ {
			sum += o
			parityBits[i] = sum % 2
		}
		var qubits []int
		idx := 0
		for i, b := range parityBits {
			if i == m/2-1 || i == m-1 {
				continue
			}
			if b == 1 {
				qubits = append(qubits, idx)
			}
			idx++
		}
		return qubits, nil
	}
	return nil, fmt.Errorf("no reference-state rule for encoding %s", enc.Name())
}

// CCSDFragmentSolver delegates a fragment to the classical correlated solver
// on the integral-solver service.
type CCSDFragmentSolver struct {
	client *scf.Client
	log    zerolog.Logger
}

// NewCCSDFragmentSolver wraps the scf client's coupled-cluster endpoint.
func NewCCSDFragmentSolver(client *scf.Client, log zerolog.Logger) *CCSDFragmentSolver {
	return &CCSDFragmentSolver{client: client, log: log.With().Str("solver", "ccsd").Logger()}
}

func (c *CCSDFragmentSolver) Name() string { return "ccsd" }

func (c *CCSDFragmentSolver) Solve(ctx context.Context, frag *decomposition.Fragment) (*decomposition.FragmentResult, error) {
	ints := frag.Integrals
	m := ints.SpinOrbitals

	oneBody := make([][]float64, m)
	for i := range oneBody {
		row := make([]float64, m)
		for j := range row {
			row[j] = ints.One.At(i, j)
		}
		oneBody[i] = row
	}

	solution, err := c.client.SolveFragmentCCSD(ctx, scf.FragmentProblem{
		Constant:    ints.Constant,
		OneBody:     oneBody,
		TwoElectron: ints.Two,
		Electrons:   ints.Electrons(),
	})
	if err != nil {
		return nil, err
	}

	return &decomposition.FragmentResult{
		Energy:     solution.Energy,
		Density:    solution.Density,
		Converged:  true,
		SolverName: c.Name(),
	}, nil
}

// RouterSolver picks a fragment solver per fragment ID, defaulting to one
// solver for everything else. Mirrors per-fragment solver choice in embedded
// calculations (quantum for the fragment of interest, classical elsewhere).
type RouterSolver struct {
	byFragment map[string]decomposition.FragmentSolver
	fallback   decomposition.FragmentSolver
}

// NewRouterSolver builds a per-fragment router.
func NewRouterSolver(fallback decomposition.FragmentSolver, byFragment map[string]decomposition.FragmentSolver) *RouterSolver {
	return &RouterSolver{byFragment: byFragment, fallback: fallback}
}

func (r *RouterSolver) Name() string { return "router" }

func (r *RouterSolver) Solve(ctx context.Context, frag *decomposition.Fragment) (*decomposition.FragmentResult, error) {
	if s, ok := r.byFragment[frag.ID]; ok {
		return s.Solve(ctx, frag)
	}
	return r.fallback.Solve(ctx, frag)
}
