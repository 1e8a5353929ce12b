package operators

import (
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
)

// Builder converts active-space integrals into qubit Hamiltonians with a
// configured encoding and pruning tolerance.
type Builder struct {
	encoding  Encoding
	tolerance float64
	log       zerolog.Logger
}

// NewBuilder creates a builder. tolerance <= 0 selects the default (machine
// epsilon scaled by the largest coefficient).
func NewBuilder(encoding Encoding, tolerance float64, log zerolog.Logger) *Builder {
	return &Builder{
		encoding:  encoding,
		tolerance: tolerance,
		log:       log.With().Str("module", "operators").Str("encoding", encoding.Name()).Logger(),
	}
}

// Encoding returns the configured encoding.
func (b *Builder) Encoding() Encoding { return b.encoding }

// Build encodes the integrals into a qubit Hamiltonian.
func (b *Builder) Build(ints ActiveSpaceIntegrals) (*QubitOperator, error) {
	h, err := b.encoding.Encode(ints, b.tolerance)
	if err != nil {
		return nil, err
	}

	b.log.Debug().
		Int("spin_orbitals", ints.SpinOrbitals).
		Int("qubits", b.encoding.NumQubits(ints.SpinOrbitals)).
		Int("terms", h.Len()).
		Msg("Built qubit Hamiltonian")

	return h, nil
}

// DecodeOneBody recovers the one-body spin-orbital integrals of a Hamiltonian
// built from a pure one-body integral set under the Jordan-Wigner encoding:
//
//	a+_p a_p       -> (I - Z_p) / 2
//	a+_p a_q + h.c -> (X_p Z.. X_q + Y_p Z.. Y_q) / 2   (p < q, real h_pq)
//
// Used to verify encode round-trips on small active spaces.
func DecodeOneBody(h *QubitOperator, spinOrbitals int) *mat.Dense {
	out := mat.NewDense(spinOrbitals, spinOrbitals, nil)
	for p := 0; p < spinOrbitals; p++ {
		out.Set(p, p, -2*real(h.Coefficient(Z(p))))
		for q := p + 1; q < spinOrbitals; q++ {
			factors := []Factor{X(p)}
			for k := p + 1; k < q; k++ {
				factors = append(factors, Z(k))
			}
			factors = append(factors, X(q))
			v := 2 * real(h.Coefficient(factors...))
			out.Set(p, q, v)
			out.Set(q, p, v)
		}
	}
	return out
}
