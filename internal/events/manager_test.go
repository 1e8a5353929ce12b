package events

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *Manager {
	return NewManager(zerolog.Nop())
}

func TestSubscribeReceivesEventsForRun(t *testing.T) {
	m := newTestManager()
	ch, cancel := m.Subscribe("run-1", 8)
	defer cancel()

	m.Emit(IterationStarted, "decomposition", "run-1", map[string]interface{}{"iteration": 1})

	select {
	case ev := <-ch:
		assert.Equal(t, IterationStarted, ev.Type)
		assert.Equal(t, "run-1", ev.RunID)
		assert.Equal(t, "decomposition", ev.Module)
		assert.EqualValues(t, 1, ev.Data["iteration"])
		assert.False(t, ev.Timestamp.IsZero())
	default:
		t.Fatal("expected a buffered event")
	}
}

func TestSubscribeFiltersByRunID(t *testing.T) {
	m := newTestManager()
	ch, cancel := m.Subscribe("run-1", 8)
	defer cancel()

	m.Emit(RunStarted, "workflow", "run-2", nil)
	assert.Len(t, ch, 0)

	m.Emit(RunStarted, "workflow", "run-1", nil)
	assert.Len(t, ch, 1)
}

func TestSubscribeEmptyRunIDSeesEverything(t *testing.T) {
	m := newTestManager()
	ch, cancel := m.Subscribe("", 8)
	defer cancel()

	m.Emit(RunStarted, "workflow", "run-1", nil)
	m.Emit(RunConverged, "workflow", "run-2", nil)

	assert.Len(t, ch, 2)
}

func TestEmitFansOutToMultipleSubscribers(t *testing.T) {
	m := newTestManager()
	ch1, cancel1 := m.Subscribe("run-1", 8)
	defer cancel1()
	ch2, cancel2 := m.Subscribe("run-1", 8)
	defer cancel2()

	m.Emit(FragmentSolved, "decomposition", "run-1", map[string]interface{}{"fragment": "frag-0"})

	require.Len(t, ch1, 1)
	require.Len(t, ch2, 1)
}

func TestUnsubscribeClosesChannelAndStopsDelivery(t *testing.T) {
	m := newTestManager()
	ch, cancel := m.Subscribe("run-1", 8)

	cancel()
	_, open := <-ch
	assert.False(t, open)

	// Emitting after cancel must not panic on the closed channel.
	m.Emit(RunConverged, "workflow", "run-1", nil)
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	m := newTestManager()
	ch, cancel := m.Subscribe("run-1", 1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Emit(IterationCompleted, "decomposition", "run-1", nil)
		m.Emit(IterationCompleted, "decomposition", "run-1", nil)
		m.Emit(IterationCompleted, "decomposition", "run-1", nil)
	}()
	<-done

	// Buffer of one: the extra events were dropped, not queued.
	assert.Len(t, ch, 1)
}

func TestEmitErrorWrapsErrorAndContext(t *testing.T) {
	m := newTestManager()
	ch, cancel := m.Subscribe("run-1", 8)
	defer cancel()

	m.EmitError("backends", "run-1", errors.New("device offline"), map[string]interface{}{"backend": "remote"})

	ev := <-ch
	assert.Equal(t, ErrorOccurred, ev.Type)
	assert.Equal(t, "device offline", ev.Data["error"])
	ctx, ok := ev.Data["context"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "remote", ctx["backend"])
}
