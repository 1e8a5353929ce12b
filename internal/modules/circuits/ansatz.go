package circuits

import "fmt"

// Ansatz is a parameterized circuit template. The parameter count is fixed at
// construction; parameter values are the mutable state the optimizer updates.
type Ansatz struct {
	name     string
	template *Circuit
	params   []float64
}

// NewAnsatz wraps a circuit template. initial may be nil, in which case all
// parameters start at zero.
func NewAnsatz(name string, template *Circuit, initial []float64) (*Ansatz, error) {
	n := template.NumParameters()
	params := make([]float64, n)
	if initial != nil {
		if len(initial) != n {
			return nil, fmt.Errorf("ansatz %s needs %d parameters, got %d initial values", name, n, len(initial))
		}
		copy(params, initial)
	}
	return &Ansatz{name: name, template: template, params: params}, nil
}

func (a *Ansatz) Name() string { return a.name }

// NumParameters returns the fixed free-parameter count.
func (a *Ansatz) NumParameters() int { return len(a.params) }

// Width returns the qubit register size of the template.
func (a *Ansatz) Width() int { return a.template.Width() }

// Size returns the gate count of the template.
func (a *Ansatz) Size() int { return a.template.Size() }

// Parameters returns a copy of the current parameter values.
func (a *Ansatz) Parameters() []float64 {
	out := make([]float64, len(a.params))
	copy(out, a.params)
	return out
}

// SetParameters updates the parameter values.
func (a *Ansatz) SetParameters(params []float64) error {
	if len(params) != len(a.params) {
		return fmt.Errorf("ansatz %s needs %d parameters, got %d", a.name, len(a.params), len(params))
	}
	copy(a.params, params)
	return nil
}

// Circuit binds the current parameter values into a concrete circuit.
func (a *Ansatz) Circuit() (*Circuit, error) {
	return a.template.Bind(a.params)
}

// BindCircuit binds explicit values without touching the stored parameters.
func (a *Ansatz) BindCircuit(params []float64) (*Circuit, error) {
	return a.template.Bind(params)
}

// HardwareEfficient builds a hardware-efficient ansatz: X gates preparing the
// reference occupation, then layers of parameterized RY rotations with a
// linear CZ entangler, and a closing RY layer. The entangler is phase-only so
// the zero-parameter circuit leaves the reference occupation intact and the
// optimizer starts from the mean-field energy.
func HardwareEfficient(width, layers int, occupied []int) (*Ansatz, error) {
	if width < 1 {
		return nil, fmt.Errorf("ansatz width must be positive, got %d", width)
	}
	if layers < 1 {
		layers = 1
	}

	c := NewCircuit(width)
	for _, q := range occupied {
		if err := c.Add(G(GateX, q)); err != nil {
			return nil, err
		}
	}

	idx := 0
	for l := 0; l < layers; l++ {
		for q := 0; q < width; q++ {
			if err := c.Add(P(GateRY, q, idx)); err != nil {
				return nil, err
			}
			idx++
		}
		for q := 0; q+1 < width; q++ {
			if err := c.Add(C(GateCZ, q, q+1)); err != nil {
				return nil, err
			}
		}
	}
	for q := 0; q < width; q++ {
		if err := c.Add(P(GateRY, q, idx)); err != nil {
			return nil, err
		}
		idx++
	}

	return NewAnsatz("hardware-efficient", c, nil)
}
