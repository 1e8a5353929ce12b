package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType represents different workflow event types
type EventType string

const (
	RunSubmitted       EventType = "RUN_SUBMITTED"
	RunStarted         EventType = "RUN_STARTED"
	MeanFieldComputed  EventType = "MEAN_FIELD_COMPUTED"
	IterationStarted   EventType = "ITERATION_STARTED"
	FragmentSolved     EventType = "FRAGMENT_SOLVED"
	IterationCompleted EventType = "ITERATION_COMPLETED"
	RunConverged       EventType = "RUN_CONVERGED"
	RunMaxIterations   EventType = "RUN_MAX_ITERATIONS"
	RunCancelled       EventType = "RUN_CANCELLED"
	RunFailed          EventType = "RUN_FAILED"
	ErrorOccurred      EventType = "ERROR_OCCURRED"
)

// Event represents a workflow event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	RunID     string                 `json:"run_id,omitempty"`
	Data      map[string]interface{} `json:"data"`
	Module    string                 `json:"module"`
}

// Manager handles event emission, logging and fan-out to subscribers.
type Manager struct {
	log zerolog.Logger

	mu   sync.RWMutex
	subs map[int]subscriber
	next int
}

type subscriber struct {
	runID string // empty subscribes to everything
	ch    chan Event
}

// NewManager creates a new event manager
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{
		log:  log.With().Str("service", "events").Logger(),
		subs: make(map[int]subscriber),
	}
}

// Emit emits an event
func (m *Manager) Emit(eventType EventType, module, runID string, data map[string]interface{}) {
	event := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		RunID:     runID,
		Data:      data,
		Module:    module,
	}

	eventJSON, _ := json.Marshal(event)
	m.log.Info().
		Str("event_type", string(eventType)).
		Str("module", module).
		RawJSON("event", eventJSON).
		Msg("Event emitted")

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, sub := range m.subs {
		if sub.runID != "" && sub.runID != runID {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			// Slow subscriber; dropping beats blocking the workflow.
		}
	}
}

// EmitError emits an error event
func (m *Manager) EmitError(module, runID string, err error, context map[string]interface{}) {
	data := map[string]interface{}{
		"error":   err.Error(),
		"context": context,
	}
	m.Emit(ErrorOccurred, module, runID, data)
}

// Subscribe registers a listener for events of one run (or all runs when
// runID is empty). The returned cancel func must be called to release it.
func (m *Manager) Subscribe(runID string, buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)

	m.mu.Lock()
	id := m.next
	m.next++
	m.subs[id] = subscriber{runID: runID, ch: ch}
	m.mu.Unlock()

	cancel := func() {
		m.mu.Lock()
		if sub, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(sub.ch)
		}
		m.mu.Unlock()
	}
	return ch, cancel
}
