package streaming

import (
	"encoding/json"
	"sync"
	"time"
)

// Event is one per-stage research event delivered to SSE/WebSocket clients.
type Event struct {
	RunID     string          `json:"run_id"`
	Stage     string          `json:"stage"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Seq       uint64          `json:"seq"`
}

// Marshal returns JSON for SSE data lines and logs.
func (e Event) Marshal() []byte {
	b, _ := json.Marshal(e)
	return b
}

// Manager provides in-memory pub/sub of run events with a per-run ring
// buffer so reconnecting clients can replay from Last-Event-ID.
type Manager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan Event]struct{}
	history     map[string]*ring
	capacity    int
}

// NewManager creates a manager whose per-run replay buffers hold capacity
// events each.
func NewManager(capacity int) *Manager {
	if capacity <= 0 {
		capacity = 256
	}
	return &Manager{
		subscribers: make(map[string]map[chan Event]struct{}),
		history:     make(map[string]*ring),
		capacity:    capacity,
	}
}

// Subscribe adds a subscriber channel for runID; the caller must drain it
// and call Unsubscribe when done.
func (m *Manager) Subscribe(runID string, buffer int) chan Event {
	ch := make(chan Event, buffer)
	m.mu.Lock()
	defer m.mu.Unlock()
	subs := m.subscribers[runID]
	if subs == nil {
		subs = make(map[chan Event]struct{})
		m.subscribers[runID] = subs
	}
	subs[ch] = struct{}{}
	return ch
}

// Unsubscribe removes and closes the subscriber channel.
func (m *Manager) Unsubscribe(runID string, ch chan Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if subs, ok := m.subscribers[runID]; ok {
		if _, ok := subs[ch]; ok {
			delete(subs, ch)
			close(ch)
		}
		if len(subs) == 0 {
			delete(m.subscribers, runID)
		}
	}
}

// Publish assigns the event a sequence number, records it for replay and
// fans it out to subscribers without blocking (slow clients drop events).
func (m *Manager) Publish(runID string, evt Event) {
	evt.RunID = runID
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	m.mu.Lock()
	rg := m.history[runID]
	if rg == nil {
		rg = newRing(m.capacity)
		m.history[runID] = rg
	}
	rg.nextSeq++
	evt.Seq = rg.nextSeq
	rg.push(evt)
	subs := m.subscribers[runID]
	m.mu.Unlock()
	for ch := range subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

// ReplaySince returns buffered events with Seq > since (best effort
// within ring capacity).
func (m *Manager) ReplaySince(runID string, since uint64) []Event {
	m.mu.RLock()
	rg := m.history[runID]
	m.mu.RUnlock()
	if rg == nil {
		return nil
	}
	return rg.since(since)
}

// Drop discards the replay history for a finished run.
func (m *Manager) Drop(runID string) {
	m.mu.Lock()
	delete(m.history, runID)
	m.mu.Unlock()
}

// ring is a fixed-capacity ring buffer of events.
type ring struct {
	buf     []Event
	start   int
	count   int
	nextSeq uint64
}

func newRing(capacity int) *ring { return &ring{buf: make([]Event, capacity)} }

func (r *ring) push(e Event) {
	if len(r.buf) == 0 {
		return
	}
	if r.count < len(r.buf) {
		r.buf[(r.start+r.count)%len(r.buf)] = e
		r.count++
		return
	}
	r.buf[r.start] = e
	r.start = (r.start + 1) % len(r.buf)
}

func (r *ring) since(seq uint64) []Event {
	if r.count == 0 {
		return nil
	}
	out := make([]Event, 0, r.count)
	for i := 0; i < r.count; i++ {
		ev := r.buf[(r.start+i)%len(r.buf)]
		if ev.Seq > seq {
			out = append(out, ev)
		}
	}
	return out
}
