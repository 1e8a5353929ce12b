package backends

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/JamesB-1qbit/Tangelo/internal/modules/circuits"
	"github.com/JamesB-1qbit/Tangelo/internal/modules/operators"
)

// defaultRemoteCapacity is conservative; real devices advertise theirs via
// the /capabilities endpoint and the configured value should match.
const defaultRemoteCapacity = 16

// Remote submits circuits to an external quantum execution service (hardware
// queue or hosted simulator) over HTTP. Queue wait and billable cost are
// surfaced in the result metadata, never hidden.
type Remote struct {
	baseURL  string
	capacity int
	client   *http.Client
	log      zerolog.Logger
}

// NewRemote creates a remote backend client.
func NewRemote(baseURL string, capacity int, log zerolog.Logger) *Remote {
	if capacity <= 0 {
		capacity = defaultRemoteCapacity
	}
	return &Remote{
		baseURL:  baseURL,
		capacity: capacity,
		client:   &http.Client{},
		log:      log.With().Str("client", "remote-backend").Logger(),
	}
}

func (r *Remote) Name() string  { return "remote" }
func (r *Remote) Capacity() int { return r.capacity }

// Request/response types mirror the execution service wire format.

type remoteGate struct {
	Name    string  `json:"name"`
	Target  int     `json:"target"`
	Control int     `json:"control"`
	Theta   float64 `json:"theta"`
}

type remoteTerm struct {
	Paulis      string  `json:"paulis"` // e.g. "X0 Z3"
	Coefficient float64 `json:"coefficient"`
}

type evaluateRequest struct {
	JobID       string         `json:"job_id"`
	Width       int            `json:"width"`
	Gates       []remoteGate   `json:"gates"`
	Observables [][]remoteTerm `json:"observables"`
	Shots       int            `json:"shots"`
}

type evaluateResponse struct {
	Success      bool      `json:"success"`
	Error        *string   `json:"error"`
	Values       []float64 `json:"values"`
	StdErrs      []float64 `json:"std_errs"`
	Shots        int       `json:"shots"`
	QueueSeconds float64   `json:"queue_seconds"`
	BillableShot int       `json:"billable_shots"`
}

// Evaluate submits one job and blocks until the service replies or the
// caller's timeout expires.
func (r *Remote) Evaluate(ctx context.Context, c *circuits.Circuit, observables []*operators.QubitOperator, opts EvalOptions) (*Result, error) {
	ctx, cancel := evalContext(ctx, opts)
	defer cancel()

	if err := checkWidth(r.Name(), c, r.capacity); err != nil {
		return nil, err
	}

	req := evaluateRequest{
		JobID: uuid.New().String(),
		Width: c.Width(),
		Shots: opts.Shots,
	}
	for _, g := range c.Gates() {
		if g.ParamIndex >= 0 {
			return nil, fmt.Errorf("gate %s has an unbound parameter", g.Name)
		}
		req.Gates = append(req.Gates, remoteGate{
			Name:    string(g.Name),
			Target:  g.Target,
			Control: g.Control,
			Theta:   g.Theta,
		})
	}
	for _, obs := range observables {
		terms := make([]remoteTerm, 0, obs.Len())
		for _, t := range obs.Terms() {
			terms = append(terms, remoteTerm{
				Paulis:      pauliKey(t.Factors),
				Coefficient: real(t.Coeff),
			})
		}
		req.Observables = append(req.Observables, terms)
	}

	resp, err := r.post(ctx, "/evaluate", req, opts)
	if err != nil {
		return nil, err
	}

	if len(resp.Values) != len(observables) {
		return nil, fmt.Errorf("remote backend returned %d values for %d observables", len(resp.Values), len(observables))
	}
	stderrs := resp.StdErrs
	if stderrs == nil {
		stderrs = make([]float64, len(resp.Values))
	}

	return &Result{
		Values:  resp.Values,
		StdErrs: stderrs,
		Shots:   resp.Shots,
		Exact:   resp.Shots == 0,
		Metadata: map[string]string{
			"job_id":         req.JobID,
			"queue_seconds":  strconv.FormatFloat(resp.QueueSeconds, 'f', 3, 64),
			"billable_shots": strconv.Itoa(resp.BillableShot),
		},
	}, nil
}

func pauliKey(factors []operators.Factor) string {
	var b bytes.Buffer
	for i, f := range factors {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(f.String())
	}
	return b.String()
}

// post sends one request to the execution service, mapping transport
// failures onto the backend error taxonomy.
func (r *Remote) post(ctx context.Context, endpoint string, request interface{}, opts EvalOptions) (*evaluateResponse, error) {
	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	r.log.Debug().Str("endpoint", endpoint).Msg("Submitting job to execution service")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := r.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &TimeoutError{Backend: r.Name(), Timeout: opts.Timeout}
		}
		return nil, &UnavailableError{Backend: r.Name(), Reason: err.Error()}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch httpResp.StatusCode {
	case http.StatusOK:
	case http.StatusRequestEntityTooLarge:
		return nil, &TooLargeError{Backend: r.Name(), Capacity: r.capacity}
	case http.StatusServiceUnavailable:
		return nil, &UnavailableError{Backend: r.Name(), Reason: string(body)}
	default:
		return nil, fmt.Errorf("execution service returned status %d: %s", httpResp.StatusCode, string(body))
	}

	var resp evaluateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if !resp.Success {
		reason := "unknown error"
		if resp.Error != nil {
			reason = *resp.Error
		}
		return nil, &UnavailableError{Backend: r.Name(), Reason: reason}
	}

	r.log.Debug().
		Float64("queue_seconds", resp.QueueSeconds).
		Int("billable_shots", resp.BillableShot).
		Msg("Execution service job finished")

	return &resp, nil
}
