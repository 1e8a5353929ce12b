package decomposition

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/JamesB-1qbit/Tangelo/internal/modules/operators"
)

// Fragment is one embedded sub-problem: an active space of orbitals carved
// out of the full system, with the environment folded in through the
// embedding potential. Fragments are created fresh each embedding iteration
// and never mutated; the next iteration supersedes them.
type Fragment struct {
	// ID names the fragment, stable across iterations (e.g. "frag-2").
	ID string
	// Orbitals are the spatial-orbital indices of the parent MO basis.
	Orbitals []int
	// Electrons is the electron count assigned to the active space.
	Electrons int
	// Weight is this fragment's aggregation weight; the pairing of weights
	// and overlap rule is the embedding scheme's responsibility.
	Weight float64
	// Integrals is the embedded active-space integral set (potential already
	// folded into the one-body block).
	Integrals operators.ActiveSpaceIntegrals
}

// Size returns the number of spatial orbitals in the fragment.
func (f *Fragment) Size() int { return len(f.Orbitals) }

// FragmentResult is the outcome of one fragment solve.
type FragmentResult struct {
	// Energy is the fragment total energy (its constant included).
	Energy float64
	// Density is the spin-traced one-particle density matrix over the
	// fragment orbitals, used to refine the correlation potential.
	Density *mat.Dense
	// Qubits and Terms describe the quantum resources actually used; zero
	// for classical fragment solvers.
	Qubits int
	Terms  int
	// Converged is false when the variational solve hit its iteration cap.
	Converged  bool
	SolverName string
}

// FragmentSolver computes the ground state of one embedded fragment.
// Implementations must be safe for concurrent use: fragments within an
// iteration are solved in parallel.
type FragmentSolver interface {
	Name() string
	Solve(ctx context.Context, frag *Fragment) (*FragmentResult, error)
}

// FragmentError attaches the failing fragment's identity and iteration index
// to an unrecoverable solve error.
type FragmentError struct {
	FragmentID string
	Iteration  int
	Err        error
}

func (e *FragmentError) Error() string {
	return fmt.Sprintf("fragment %s (iteration %d): %v", e.FragmentID, e.Iteration, e.Err)
}

func (e *FragmentError) Unwrap() error { return e.Err }
