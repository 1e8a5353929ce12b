package backends

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/JamesB-1qbit/Tangelo/internal/modules/circuits"
	"github.com/JamesB-1qbit/Tangelo/internal/modules/operators"
)

// EvalOptions controls one evaluation call.
type EvalOptions struct {
	// Shots is the number of measurements per observable basis. Zero requests
	// exact evaluation; shot-based backends reject it.
	Shots int
	// Seed fixes the sampling RNG. Ignored by exact backends.
	Seed int64
	// Timeout bounds the call. Zero means no explicit bound beyond ctx.
	Timeout time.Duration
}

// Result carries expectation values for the requested observables.
type Result struct {
	// Values holds one expectation value per observable, in request order.
	Values []float64
	// StdErrs holds the standard error of each estimate; zero for exact
	// evaluation.
	StdErrs []float64
	// Shots is the number of samples used per measurement basis, 0 if exact.
	Shots int
	// Exact marks analytic (statevector) evaluation.
	Exact bool
	// Metadata surfaces backend-specific cost information (queue wait,
	// billable shots). Never hidden from the caller.
	Metadata map[string]string
}

// Backend evaluates observables against a prepared circuit. The variational
// solver never distinguishes backend kinds beyond this contract.
type Backend interface {
	Name() string
	// Capacity returns the largest register the backend accepts.
	Capacity() int
	// Evaluate prepares the circuit and measures each observable.
	Evaluate(ctx context.Context, c *circuits.Circuit, observables []*operators.QubitOperator, opts EvalOptions) (*Result, error)
}

// Config selects and parameterizes a backend at configuration time.
type Config struct {
	// Name is "statevector", "sampling" or "remote".
	Name string
	// Shots is the default shot count for shot-based backends.
	Shots int
	// URL is the remote backend endpoint.
	URL string
	// Capacity overrides the default qubit capacity when positive.
	Capacity int
}

// New builds the backend registered under cfg.Name.
func New(cfg Config, log zerolog.Logger) (Backend, error) {
	switch cfg.Name {
	case "statevector", "":
		return NewStatevector(cfg.Capacity), nil
	case "sampling":
		return NewSampling(cfg.Capacity, cfg.Shots), nil
	case "remote":
		if cfg.URL == "" {
			return nil, fmt.Errorf("remote backend needs a URL")
		}
		return NewRemote(cfg.URL, cfg.Capacity, log), nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Name)
}

// Names lists the registered backend names.
func Names() []string {
	return []string{"statevector", "sampling", "remote"}
}

// checkWidth enforces the capacity contract shared by all backends.
func checkWidth(name string, c *circuits.Circuit, capacity int) error {
	if c.Width() > capacity {
		return &TooLargeError{Backend: name, Width: c.Width(), Capacity: capacity}
	}
	return nil
}

// evalContext applies the caller-specified timeout, if any.
func evalContext(ctx context.Context, opts EvalOptions) (context.Context, context.CancelFunc) {
	if opts.Timeout > 0 {
		return context.WithTimeout(ctx, opts.Timeout)
	}
	return ctx, func() {}
}
