package circuits

import "fmt"

// GateName identifies a gate kind.
type GateName string

const (
	GateX    GateName = "X"
	GateY    GateName = "Y"
	GateZ    GateName = "Z"
	GateH    GateName = "H"
	GateRX   GateName = "RX"
	GateRY   GateName = "RY"
	GateRZ   GateName = "RZ"
	GateCNOT GateName = "CNOT"
	GateCZ   GateName = "CZ"
)

// Gate is one operation in a circuit. Control is -1 for single-qubit gates.
// ParamIndex >= 0 marks the rotation angle as the ansatz free parameter with
// that index; Theta holds the fixed or currently-bound value otherwise.
type Gate struct {
	Name       GateName `json:"name"`
	Target     int      `json:"target"`
	Control    int      `json:"control"`
	Theta      float64  `json:"theta"`
	ParamIndex int      `json:"param_index"`
}

// G builds a fixed single-qubit gate.
func G(name GateName, target int) Gate {
	return Gate{Name: name, Target: target, Control: -1, ParamIndex: -1}
}

// R builds a fixed-angle rotation gate.
func R(name GateName, target int, theta float64) Gate {
	return Gate{Name: name, Target: target, Control: -1, Theta: theta, ParamIndex: -1}
}

// P builds a parameterized rotation gate bound to free parameter index.
func P(name GateName, target, index int) Gate {
	return Gate{Name: name, Target: target, Control: -1, ParamIndex: index}
}

// C builds a controlled gate.
func C(name GateName, control, target int) Gate {
	return Gate{Name: name, Target: target, Control: control, ParamIndex: -1}
}

// Circuit is an ordered gate sequence on a fixed-width qubit register.
type Circuit struct {
	width int
	gates []Gate
}

// NewCircuit creates an empty circuit on width qubits.
func NewCircuit(width int) *Circuit {
	return &Circuit{width: width}
}

// Width returns the register size.
func (c *Circuit) Width() int { return c.width }

// Size returns the gate count.
func (c *Circuit) Size() int { return len(c.gates) }

// Gates returns the gate sequence. Callers must not mutate it.
func (c *Circuit) Gates() []Gate { return c.gates }

// Add appends gates, validating qubit indices.
func (c *Circuit) Add(gates ...Gate) error {
	for _, g := range gates {
		if g.Target < 0 || g.Target >= c.width {
			return fmt.Errorf("gate %s target %d outside register of %d qubits", g.Name, g.Target, c.width)
		}
		if g.Control >= c.width {
			return fmt.Errorf("gate %s control %d outside register of %d qubits", g.Name, g.Control, c.width)
		}
		if g.Control >= 0 && g.Control == g.Target {
			return fmt.Errorf("gate %s control equals target %d", g.Name, g.Target)
		}
		c.gates = append(c.gates, g)
	}
	return nil
}

// NumParameters returns the number of distinct free parameters referenced.
func (c *Circuit) NumParameters() int {
	maxIdx := -1
	for _, g := range c.gates {
		if g.ParamIndex > maxIdx {
			maxIdx = g.ParamIndex
		}
	}
	return maxIdx + 1
}

// Bind returns a copy of the circuit with free parameters resolved to the
// given values. The original circuit is left untouched.
func (c *Circuit) Bind(params []float64) (*Circuit, error) {
	if n := c.NumParameters(); len(params) != n {
		return nil, fmt.Errorf("circuit needs %d parameters, got %d", n, len(params))
	}
	out := &Circuit{width: c.width, gates: make([]Gate, len(c.gates))}
	copy(out.gates, c.gates)
	for i := range out.gates {
		if idx := out.gates[i].ParamIndex; idx >= 0 {
			out.gates[i].Theta = params[idx]
			out.gates[i].ParamIndex = -1
		}
	}
	return out, nil
}
