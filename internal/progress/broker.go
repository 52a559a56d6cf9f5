// Package progress implements the run-scoped event stream consumed by the
// serve command's SSE endpoint. Delivery is fire-and-forget: pipeline
// correctness never depends on a subscriber draining events.
package progress

import (
	"sync"
	"time"
)

// Event types emitted by the pipeline.
const (
	EventStageStarted   = "stage_started"
	EventStageCompleted = "stage_completed"
	EventStageFailed    = "stage_failed"
	EventAgentLog       = "agent_log"
	EventRunCompleted   = "run_completed"
	EventRunFailed      = "run_failed"
)

// Event is one observability record for a run.
type Event struct {
	Type      string    `json:"type"`
	Stage     string    `json:"stage,omitempty"`
	Message   string    `json:"message,omitempty"`
	Preview   string    `json:"preview,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Sink receives pipeline events for one run. Implementations must not block.
type Sink interface {
	Publish(runID string, ev Event)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Publish(string, Event) {}

// Broker fans events out to per-run subscribers over buffered channels.
// Events published with no subscriber, or to a subscriber with a full
// buffer, are dropped.
type Broker struct {
	mu   sync.Mutex
	subs map[string][]chan Event
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[string][]chan Event)}
}

// Subscribe registers a listener for the run. The returned cancel function
// must be called to release the channel.
func (b *Broker) Subscribe(runID string) (<-chan Event, func()) {
	ch := make(chan Event, 256)

	b.mu.Lock()
	b.subs[runID] = append(b.subs[runID], ch)
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		chans := b.subs[runID]
		for i, c := range chans {
			if c == ch {
				b.subs[runID] = append(chans[:i], chans[i+1:]...)
				close(c)
				break
			}
		}
		if len(b.subs[runID]) == 0 {
			delete(b.subs, runID)
		}
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber of the run without blocking.
func (b *Broker) Publish(runID string, ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[runID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close closes every subscriber channel for the run, signalling end of stream.
func (b *Broker) Close(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[runID] {
		close(ch)
	}
	delete(b.subs, runID)
}
