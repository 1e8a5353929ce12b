package domain

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"
)

// Atom is one nucleus: element symbol and cartesian position in angstrom.
type Atom struct {
	Element string     `json:"element"`
	Coords  [3]float64 `json:"coords"`
}

// Molecule is the immutable input specification consumed by the external
// integral solver.
type Molecule struct {
	Atoms            []Atom `json:"atoms"`
	Charge           int    `json:"charge"`
	SpinMultiplicity int    `json:"spin_multiplicity"`
	Basis            string `json:"basis"`
}

// Validate checks the molecular input before handing it to a collaborator.
func (m Molecule) Validate() error {
	if len(m.Atoms) == 0 {
		return fmt.Errorf("molecule has no atoms")
	}
	for i, a := range m.Atoms {
		if a.Element == "" {
			return fmt.Errorf("atom %d has no element symbol", i)
		}
	}
	if m.SpinMultiplicity < 1 {
		return fmt.Errorf("spin multiplicity must be >= 1, got %d", m.SpinMultiplicity)
	}
	if m.Basis == "" {
		return fmt.Errorf("molecule has no basis identifier")
	}
	return nil
}

// MeanFieldResult is the classical mean-field solution: orbital data and
// integrals in the molecular-orbital basis. Produced once by the external
// solver and treated as read-only afterwards.
type MeanFieldResult struct {
	// OrbitalEnergies are the mean-field orbital energies, ascending.
	OrbitalEnergies []float64
	// Coefficients maps atomic orbitals to molecular orbitals (AO x MO).
	Coefficients *mat.Dense
	// CoreHamiltonian is the one-electron integral matrix in the MO basis.
	CoreHamiltonian *mat.Dense
	// TwoElectron is the two-electron MO tensor in physicist notation
	// <pq|rs>, flattened as ((p*n+q)*n+r)*n+s.
	TwoElectron []float64
	// Density is the mean-field one-particle density matrix (MO basis,
	// spin-traced).
	Density *mat.Dense
	// CoreEnergy collects the nuclear repulsion and any frozen-core constant.
	CoreEnergy float64
	// Electrons is the total electron count in the treated orbital space.
	Electrons int
	// Energy is the converged mean-field total energy.
	Energy float64
	Basis  string
}

// Orbitals returns the number of molecular orbitals.
func (m *MeanFieldResult) Orbitals() int {
	if m.CoreHamiltonian == nil {
		return 0
	}
	n, _ := m.CoreHamiltonian.Dims()
	return n
}

// RunStatus tracks a workflow run through its lifecycle.
type RunStatus string

const (
	RunPending   RunStatus = "PENDING"
	RunRunning   RunStatus = "RUNNING"
	RunCompleted RunStatus = "COMPLETED"
	RunFailed    RunStatus = "FAILED"
	RunCancelled RunStatus = "CANCELLED"
)

// FragmentBreakdown is the per-fragment slice of a workflow result.
type FragmentBreakdown struct {
	FragmentID string  `json:"fragment_id" msgpack:"fragment_id"`
	Orbitals   []int   `json:"orbitals" msgpack:"orbitals"`
	Electrons  int     `json:"electrons" msgpack:"electrons"`
	Weight     float64 `json:"weight" msgpack:"weight"`
	Energy     float64 `json:"energy" msgpack:"energy"`
	Qubits     int     `json:"qubits" msgpack:"qubits"`
	Terms      int     `json:"terms" msgpack:"terms"`
	Solver     string  `json:"solver" msgpack:"solver"`
	Converged  bool    `json:"converged" msgpack:"converged"`
}

// RunResult is the structured workflow outcome exposed to callers and
// persisted for downstream analysis.
type RunResult struct {
	ID          string              `json:"id"`
	Status      RunStatus           `json:"status"`
	Energy      float64             `json:"energy"`
	Converged   bool                `json:"converged"`
	Iterations  int                 `json:"iterations"`
	Fragments   []FragmentBreakdown `json:"fragments"`
	Error       string              `json:"error,omitempty"`
	SubmittedAt time.Time           `json:"submitted_at"`
	FinishedAt  *time.Time          `json:"finished_at,omitempty"`
}

// ResourceEstimate reports the quantum resources one fragment needs, before
// anything is executed.
type ResourceEstimate struct {
	FragmentID string `json:"fragment_id"`
	Qubits     int    `json:"qubits"`
	Terms      int    `json:"terms"`
	Gates      int    `json:"gates"`
	Parameters int    `json:"parameters"`
}
