package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/JamesB-1qbit/Tangelo/internal/clients/scf"
	"github.com/JamesB-1qbit/Tangelo/internal/config"
	"github.com/JamesB-1qbit/Tangelo/internal/database"
	"github.com/JamesB-1qbit/Tangelo/internal/database/repositories"
	"github.com/JamesB-1qbit/Tangelo/internal/domain"
	"github.com/JamesB-1qbit/Tangelo/internal/events"
	"github.com/JamesB-1qbit/Tangelo/internal/modules/backends"
	"github.com/JamesB-1qbit/Tangelo/internal/modules/workflow"
)

// stubIntegrals answers mean-field requests locally with a fixed two-orbital
// solution, or a canned error.
type stubIntegrals struct {
	err error
}

func (s stubIntegrals) ComputeMeanField(_ context.Context, _ domain.Molecule, _ scf.MethodConfig) (*domain.MeanFieldResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &domain.MeanFieldResult{
		OrbitalEnergies: []float64{-1.2, -0.4},
		Coefficients:    mat.NewDense(2, 2, []float64{1, 0, 0, 1}),
		CoreHamiltonian: mat.NewDense(2, 2, []float64{-1.2, 0, 0, -0.4}),
		TwoElectron:     make([]float64, 16),
		Density:         mat.NewDense(2, 2, []float64{2, 0, 0, 0}),
		CoreEnergy:      0.7,
		Electrons:       2,
		Energy:          -1.1,
		Basis:           "sto-3g",
	}, nil
}

func newTestServer(t *testing.T, integrals scf.IntegralSolver) *httptest.Server {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())

	log := zerolog.Nop()
	repo := repositories.NewRunRepository(db.Conn(), log)
	ev := events.NewManager(log)
	svc := workflow.NewService(integrals, nil, repo, ev,
		backends.Config{Name: "statevector", Shots: 1024}, workflow.Defaults{}, log)

	srv := New(Config{
		Port:     0,
		Log:      log,
		DB:       db,
		Config:   &config.Config{},
		Workflow: svc,
		Events:   ev,
		DevMode:  true,
	})

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func h2Request() workflow.RunRequest {
	return workflow.RunRequest{
		Molecule: domain.Molecule{
			Atoms: []domain.Atom{
				{Element: "H", Coords: [3]float64{0, 0, 0}},
				{Element: "H", Coords: [3]float64{0, 0, 0.7414}},
			},
			SpinMultiplicity: 1,
			Basis:            "sto-3g",
		},
	}
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestHandleHealth(t *testing.T) {
	ts := newTestServer(t, stubIntegrals{})

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	decodeBody(t, resp, &body)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "tangelo", body["service"])
}

func TestHandleCatalog(t *testing.T) {
	ts := newTestServer(t, stubIntegrals{})

	resp, err := http.Get(ts.URL + "/api/backends")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Backends  []string `json:"backends"`
		Encodings []string `json:"encodings"`
		Schemes   []string `json:"schemes"`
	}
	decodeBody(t, resp, &body)
	assert.Contains(t, body.Backends, "statevector")
	assert.Contains(t, body.Backends, "sampling")
	assert.Contains(t, body.Backends, "remote")
	assert.Contains(t, body.Encodings, "jordan-wigner")
	assert.Contains(t, body.Schemes, "disjoint")
}

func TestSubmitRunRejectsBadJSON(t *testing.T) {
	ts := newTestServer(t, stubIntegrals{})

	resp, err := http.Post(ts.URL+"/api/runs", "application/json", bytes.NewBufferString("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmitRunRejectsInvalidMolecule(t *testing.T) {
	ts := newTestServer(t, stubIntegrals{})

	req := h2Request()
	req.Molecule.Atoms = nil
	resp := postJSON(t, ts.URL+"/api/runs", req)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmitRunAcceptsAndPersists(t *testing.T) {
	ts := newTestServer(t, stubIntegrals{})

	resp := postJSON(t, ts.URL+"/api/runs", h2Request())
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var run domain.RunResult
	decodeBody(t, resp, &run)
	require.NotEmpty(t, run.ID)

	got, err := http.Get(ts.URL + "/api/runs/" + run.ID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, got.StatusCode)

	var fetched domain.RunResult
	decodeBody(t, got, &fetched)
	assert.Equal(t, run.ID, fetched.ID)
}

func TestGetRunUnknownID(t *testing.T) {
	ts := newTestServer(t, stubIntegrals{})

	resp, err := http.Get(ts.URL + "/api/runs/no-such-run")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListRunsValidatesLimit(t *testing.T) {
	ts := newTestServer(t, stubIntegrals{})

	resp, err := http.Get(ts.URL + "/api/runs?limit=abc")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListRunsEmptyIsJSONArray(t *testing.T) {
	ts := newTestServer(t, stubIntegrals{})

	resp, err := http.Get(ts.URL + "/api/runs")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var runs []*domain.RunResult
	decodeBody(t, resp, &runs)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
}

func TestCancelRunUnknownID(t *testing.T) {
	ts := newTestServer(t, stubIntegrals{})

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/runs/no-such-run", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEstimateResources(t *testing.T) {
	ts := newTestServer(t, stubIntegrals{})

	resp := postJSON(t, ts.URL+"/api/resources", h2Request())
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var estimates []domain.ResourceEstimate
	decodeBody(t, resp, &estimates)
	// Default disjoint scheme: one orbital per fragment.
	require.Len(t, estimates, 2)
	for _, est := range estimates {
		assert.Equal(t, 2, est.Qubits)
		assert.Greater(t, est.Terms, 0)
		assert.Greater(t, est.Gates, 0)
		assert.Greater(t, est.Parameters, 0)
	}
}

func TestEstimateResourcesMapsSolverErrors(t *testing.T) {
	ts := newTestServer(t, stubIntegrals{err: &scf.NonConvergenceError{Message: "scf diverged"}})

	resp := postJSON(t, ts.URL+"/api/resources", h2Request())
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	ts2 := newTestServer(t, stubIntegrals{err: &scf.MalformedInputError{Reason: "unknown basis"}})
	resp2 := postJSON(t, ts2.URL+"/api/resources", h2Request())
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}
