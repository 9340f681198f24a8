package streaming

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	m := NewManager(16)
	ch := m.Subscribe("run-1", 8)
	defer m.Unsubscribe("run-1", ch)

	m.Publish("run-1", Event{Stage: "reflection", Payload: json.RawMessage(`{"is_sufficient":true}`)})

	evt := <-ch
	assert.Equal(t, "run-1", evt.RunID)
	assert.Equal(t, "reflection", evt.Stage)
	assert.Equal(t, uint64(1), evt.Seq)
	assert.False(t, evt.Timestamp.IsZero())
}

func TestPublishIsolatesRuns(t *testing.T) {
	m := NewManager(16)
	ch := m.Subscribe("run-a", 8)
	defer m.Unsubscribe("run-a", ch)

	m.Publish("run-b", Event{Stage: "done"})
	select {
	case evt := <-ch:
		t.Fatalf("unexpected event for other run: %+v", evt)
	default:
	}
}

func TestSequenceNumbersMonotonicPerRun(t *testing.T) {
	m := NewManager(16)
	for i := 0; i < 5; i++ {
		m.Publish("run-1", Event{Stage: "web_research"})
	}
	m.Publish("run-2", Event{Stage: "done"})

	events := m.ReplaySince("run-1", 0)
	require.Len(t, events, 5)
	for i, ev := range events {
		assert.Equal(t, uint64(i+1), ev.Seq)
	}
	// Each run has its own sequence.
	other := m.ReplaySince("run-2", 0)
	require.Len(t, other, 1)
	assert.Equal(t, uint64(1), other[0].Seq)
}

func TestReplaySinceSkipsDelivered(t *testing.T) {
	m := NewManager(16)
	for i := 0; i < 4; i++ {
		m.Publish("run-1", Event{Stage: fmt.Sprintf("stage-%d", i)})
	}
	events := m.ReplaySince("run-1", 2)
	require.Len(t, events, 2)
	assert.Equal(t, uint64(3), events[0].Seq)
	assert.Equal(t, uint64(4), events[1].Seq)
}

func TestRingEvictsOldest(t *testing.T) {
	m := NewManager(3)
	for i := 0; i < 5; i++ {
		m.Publish("run-1", Event{Stage: "s"})
	}
	events := m.ReplaySince("run-1", 0)
	require.Len(t, events, 3)
	assert.Equal(t, uint64(3), events[0].Seq)
	assert.Equal(t, uint64(5), events[2].Seq)
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	m := NewManager(16)
	ch := m.Subscribe("run-1", 1)
	defer m.Unsubscribe("run-1", ch)

	// Second publish would block a naive implementation; it must drop.
	m.Publish("run-1", Event{Stage: "a"})
	m.Publish("run-1", Event{Stage: "b"})

	evt := <-ch
	assert.Equal(t, "a", evt.Stage)
	select {
	case evt := <-ch:
		t.Fatalf("expected drop, got %+v", evt)
	default:
	}
	// The dropped event is still replayable.
	assert.Len(t, m.ReplaySince("run-1", 0), 2)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	m := NewManager(16)
	ch := m.Subscribe("run-1", 1)
	m.Unsubscribe("run-1", ch)
	_, open := <-ch
	assert.False(t, open)
	// Double unsubscribe is a no-op.
	m.Unsubscribe("run-1", ch)
}

func TestDropDiscardsHistory(t *testing.T) {
	m := NewManager(16)
	m.Publish("run-1", Event{Stage: "done"})
	m.Drop("run-1")
	assert.Empty(t, m.ReplaySince("run-1", 0))
}
