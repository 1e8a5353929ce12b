package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JamesB-1qbit/Tangelo/internal/clients/scf"
	"github.com/JamesB-1qbit/Tangelo/internal/domain"
	"github.com/JamesB-1qbit/Tangelo/internal/modules/backends"
	"github.com/JamesB-1qbit/Tangelo/internal/modules/decomposition"
	"github.com/JamesB-1qbit/Tangelo/internal/modules/operators"
	"github.com/JamesB-1qbit/Tangelo/internal/modules/workflow"
)

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":  "healthy",
		"version": "1.0.0",
		"service": "tangelo",
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleSubmitRun accepts a workflow run request and starts it asynchronously.
// POST /api/runs
func (s *Server) handleSubmitRun(w http.ResponseWriter, r *http.Request) {
	var req workflow.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	run, err := s.workflow.Submit(req)
	if err != nil {
		s.writeError(w, submitStatus(err), err.Error())
		return
	}

	s.writeJSON(w, http.StatusAccepted, run)
}

// handleListRuns returns recent runs, newest first.
// GET /api/runs?limit=N
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	runs, err := s.workflow.List(limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []*domain.RunResult{}
	}
	s.writeJSON(w, http.StatusOK, runs)
}

// handleGetRun returns one run.
// GET /api/runs/{id}
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.workflow.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

// handleGetFragments returns the per-fragment breakdown of one run.
// GET /api/runs/{id}/fragments
func (s *Server) handleGetFragments(w http.ResponseWriter, r *http.Request) {
	run, err := s.workflow.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, run.Fragments)
}

// handleCancelRun requests cancellation of an in-flight run.
// DELETE /api/runs/{id}
func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.workflow.Cancel(id) {
		s.writeError(w, http.StatusNotFound, "no active run with id "+id)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{
		"id":     id,
		"status": "cancellation requested",
	})
}

// handleEstimateResources reports per-fragment quantum resources without
// executing anything.
// POST /api/resources
func (s *Server) handleEstimateResources(w http.ResponseWriter, r *http.Request) {
	var req workflow.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	estimates, err := s.workflow.EstimateResources(r.Context(), req)
	if err != nil {
		s.writeError(w, estimateStatus(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, estimates)
}

// handleCatalog lists the available backends, encodings and schemes.
// GET /api/backends
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"backends":  backends.Names(),
		"encodings": operators.EncodingNames(),
		"schemes":   decomposition.SchemeNames(),
	})
}

// submitStatus maps submission errors to HTTP status codes.
func submitStatus(err error) int {
	var malformed *scf.MalformedInputError
	if errors.As(err, &malformed) {
		return http.StatusBadRequest
	}
	// Molecule validation errors arrive as plain errors from Validate.
	if strings.Contains(err.Error(), "molecule") || strings.Contains(err.Error(), "spin multiplicity") || strings.Contains(err.Error(), "atom") {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// estimateStatus maps estimation errors to HTTP status codes.
func estimateStatus(err error) int {
	var (
		malformed *scf.MalformedInputError
		nonconv   *scf.NonConvergenceError
		encErr    *operators.EncodingError
	)
	switch {
	case errors.As(err, &malformed), errors.As(err, &encErr):
		return http.StatusBadRequest
	case errors.As(err, &nonconv):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{
		"error": message,
	})
}
