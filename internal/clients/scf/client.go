// Package scf is the HTTP client for the external integral-solver service:
// classical mean-field (SCF) solves, integral generation and the optional
// classical correlated fragment solver. The workflow only ever touches this
// narrow interface; the heavy chemistry lives in the collaborator.
package scf

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/JamesB-1qbit/Tangelo/internal/domain"
)

// MethodConfig tunes the mean-field solve.
type MethodConfig struct {
	// Method is the mean-field flavor, e.g. "rhf".
	Method string `json:"method"`
	// MaxCycles caps SCF iterations on the solver side.
	MaxCycles int `json:"max_cycles,omitempty"`
	// ConvergenceTol is the solver-side SCF threshold.
	ConvergenceTol float64 `json:"convergence_tol,omitempty"`
	// Localization selects the orbital localization applied before
	// fragmentation, e.g. "meta-lowdin".
	Localization string `json:"localization,omitempty"`
}

// IntegralSolver is the capability set the workflow consumes. Implemented by
// Client; test doubles stand in for it elsewhere.
type IntegralSolver interface {
	ComputeMeanField(ctx context.Context, mol domain.Molecule, cfg MethodConfig) (*domain.MeanFieldResult, error)
}

// Client talks to the integral-solver microservice.
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates an integral-solver client.
func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second // SCF on large bases takes a while
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		log:     log.With().Str("client", "scf").Logger(),
	}
}

// Wire types (mirror the integral-solver service).

type meanFieldRequest struct {
	Molecule domain.Molecule `json:"molecule"`
	Config   MethodConfig    `json:"config"`
}

type serviceResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *serviceError   `json:"error"`
}

type serviceError struct {
	Code    string `json:"code"` // "scf_nonconvergence" | "malformed_input" | ...
	Message string `json:"message"`
}

type meanFieldPayload struct {
	OrbitalEnergies []float64   `json:"orbital_energies"`
	Coefficients    [][]float64 `json:"coefficients"`
	CoreHamiltonian [][]float64 `json:"core_hamiltonian"`
	TwoElectron     []float64   `json:"two_electron"`
	Density         [][]float64 `json:"density"`
	CoreEnergy      float64     `json:"core_energy"`
	Electrons       int         `json:"electrons"`
	Energy          float64     `json:"energy"`
}

// ComputeMeanField runs the classical mean-field solve for the molecule.
// SCF non-convergence and malformed molecular input are reported as distinct
// error types.
func (c *Client) ComputeMeanField(ctx context.Context, mol domain.Molecule, cfg MethodConfig) (*domain.MeanFieldResult, error) {
	if err := mol.Validate(); err != nil {
		return nil, &MalformedInputError{Reason: err.Error()}
	}

	body, err := c.post(ctx, "/scf/mean-field", meanFieldRequest{Molecule: mol, Config: cfg})
	if err != nil {
		return nil, err
	}

	var payload meanFieldPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse mean-field result: %w", err)
	}

	n := len(payload.CoreHamiltonian)
	if n == 0 {
		return nil, fmt.Errorf("mean-field result has no orbitals")
	}

	result := &domain.MeanFieldResult{
		OrbitalEnergies: payload.OrbitalEnergies,
		Coefficients:    denseFromRows(payload.Coefficients),
		CoreHamiltonian: denseFromRows(payload.CoreHamiltonian),
		TwoElectron:     payload.TwoElectron,
		Density:         denseFromRows(payload.Density),
		CoreEnergy:      payload.CoreEnergy,
		Electrons:       payload.Electrons,
		Energy:          payload.Energy,
		Basis:           mol.Basis,
	}

	c.log.Debug().
		Int("orbitals", n).
		Int("electrons", payload.Electrons).
		Float64("energy", payload.Energy).
		Msg("Mean-field solve completed")

	return result, nil
}

// post sends one request, translating service error codes into the typed
// taxonomy.
func (c *Client) post(ctx context.Context, endpoint string, request interface{}) (json.RawMessage, error) {
	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	c.log.Debug().Str("endpoint", endpoint).Msg("Calling integral solver")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to reach integral solver: %w", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var resp serviceResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response (status %d): %w", httpResp.StatusCode, err)
	}

	if !resp.Success {
		if resp.Error == nil {
			return nil, fmt.Errorf("integral solver failed with no error detail (status %d)", httpResp.StatusCode)
		}
		switch resp.Error.Code {
		case "scf_nonconvergence":
			return nil, &NonConvergenceError{Message: resp.Error.Message}
		case "malformed_input":
			return nil, &MalformedInputError{Reason: resp.Error.Message}
		default:
			return nil, fmt.Errorf("integral solver error %s: %s", resp.Error.Code, resp.Error.Message)
		}
	}

	return resp.Data, nil
}

func denseFromRows(rows [][]float64) *mat.Dense {
	if len(rows) == 0 {
		return nil
	}
	r, c := len(rows), len(rows[0])
	out := mat.NewDense(r, c, nil)
	for i, row := range rows {
		for j, v := range row {
			out.Set(i, j, v)
		}
	}
	return out
}
