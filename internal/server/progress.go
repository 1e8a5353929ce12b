package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/JamesB-1qbit/Tangelo/internal/events"
)

// progressBuffer is the per-subscriber event buffer; slow websocket clients
// lose events beyond it rather than stalling the run.
const progressBuffer = 64

// handleRunProgress streams run events over a websocket until the run reaches
// a terminal state or the client disconnects.
// GET /api/runs/{id}/progress
func (s *Server) handleRunProgress(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")

	if _, err := s.workflow.Get(runID); err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // CORS is enforced by the router middleware
	})
	if err != nil {
		s.log.Warn().Err(err).Str("run_id", runID).Msg("Websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream aborted")

	ch, unsubscribe := s.events.Subscribe(runID, progressBuffer)
	defer unsubscribe()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "client gone")
			return
		case ev, ok := <-ch:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "stream closed")
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := wsjson.Write(writeCtx, conn, ev)
			cancel()
			if err != nil {
				s.log.Debug().Err(err).Str("run_id", runID).Msg("Websocket write failed")
				return
			}
			if terminal(ev.Type) {
				conn.Close(websocket.StatusNormalClosure, "run finished")
				return
			}
		}
	}
}

func terminal(t events.EventType) bool {
	switch t {
	case events.RunConverged, events.RunMaxIterations, events.RunCancelled, events.RunFailed:
		return true
	}
	return false
}
