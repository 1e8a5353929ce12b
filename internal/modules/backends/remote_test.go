package backends

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JamesB-1qbit/Tangelo/internal/modules/circuits"
	"github.com/JamesB-1qbit/Tangelo/internal/modules/operators"
)

func remoteFixture(t *testing.T) (*circuits.Circuit, []*operators.QubitOperator) {
	t.Helper()
	c := circuits.NewCircuit(1)
	require.NoError(t, c.Add(circuits.G(circuits.GateX, 0)))
	z, err := operators.PauliString(1, operators.Z(0))
	require.NoError(t, err)
	return c, []*operators.QubitOperator{z}
}

func TestRemoteEvaluateSuccess(t *testing.T) {
	var got evaluateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/evaluate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(evaluateResponse{
			Success:      true,
			Values:       []float64{-1.0},
			StdErrs:      []float64{0.01},
			Shots:        500,
			QueueSeconds: 2.5,
			BillableShot: 500,
		})
	}))
	defer srv.Close()

	rb := NewRemote(srv.URL, 0, zerolog.Nop())
	c, obs := remoteFixture(t)

	res, err := rb.Evaluate(context.Background(), c, obs, EvalOptions{Shots: 500})
	require.NoError(t, err)

	assert.InDelta(t, -1.0, res.Values[0], 1e-12)
	assert.Equal(t, 500, res.Shots)
	assert.Equal(t, "2.500", res.Metadata["queue_seconds"])
	assert.Equal(t, "500", res.Metadata["billable_shots"])
	assert.NotEmpty(t, res.Metadata["job_id"])

	// Wire format round-trip.
	assert.Equal(t, 1, got.Width)
	assert.Equal(t, 500, got.Shots)
	require.Len(t, got.Gates, 1)
	assert.Equal(t, "X", got.Gates[0].Name)
	require.Len(t, got.Observables, 1)
	assert.Equal(t, "Z0", got.Observables[0][0].Paulis)
}

func TestRemoteTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()

	rb := NewRemote(srv.URL, 0, zerolog.Nop())
	c, obs := remoteFixture(t)

	_, err := rb.Evaluate(context.Background(), c, obs, EvalOptions{Timeout: 50 * time.Millisecond})
	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, "remote", timeout.Backend)
}

func TestRemoteUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance window", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	rb := NewRemote(srv.URL, 0, zerolog.Nop())
	c, obs := remoteFixture(t)

	_, err := rb.Evaluate(context.Background(), c, obs, EvalOptions{})
	var unavailable *UnavailableError
	require.ErrorAs(t, err, &unavailable)
}

func TestRemoteRejectsOversizedJob(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
	}))
	defer srv.Close()

	rb := NewRemote(srv.URL, 0, zerolog.Nop())
	c, obs := remoteFixture(t)

	_, err := rb.Evaluate(context.Background(), c, obs, EvalOptions{})
	var tooLarge *TooLargeError
	require.ErrorAs(t, err, &tooLarge)
}

func TestRemoteServiceFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reason := "calibration in progress"
		json.NewEncoder(w).Encode(evaluateResponse{Success: false, Error: &reason})
	}))
	defer srv.Close()

	rb := NewRemote(srv.URL, 0, zerolog.Nop())
	c, obs := remoteFixture(t)

	_, err := rb.Evaluate(context.Background(), c, obs, EvalOptions{})
	var unavailable *UnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Contains(t, unavailable.Reason, "calibration")
}

func TestRemoteConnectionRefused(t *testing.T) {
	rb := NewRemote("http://127.0.0.1:1", 0, zerolog.Nop())
	c, obs := remoteFixture(t)

	_, err := rb.Evaluate(context.Background(), c, obs, EvalOptions{})
	var unavailable *UnavailableError
	require.ErrorAs(t, err, &unavailable)
}
