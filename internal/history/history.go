package history

import (
	"context"
	"log/slog"
	"time"
)

// EventType defines the kind of backend lifecycle event.
type EventType string

const (
	EventSpawned     EventType = "spawned"
	EventSpawnFailed EventType = "spawn_failed"
	EventReady       EventType = "ready"
	EventUnreachable EventType = "unreachable"
	EventStopped     EventType = "stopped"
	EventRestarted   EventType = "restarted"
)

// Event records one backend generation transition.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	PID        int       `json:"pid"`
	Message    string    `json:"message,omitempty"`
}

// Sink is a destination for lifecycle events (local audit or analytics
// systems). Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
	Close() error
}

// Recorder wraps a Sink with the orchestrator's delivery policy: recording is
// best-effort, failures are logged and never escalate. A nil Recorder or a
// Recorder without a sink discards events.
type Recorder struct {
	sink Sink
	log  *slog.Logger
}

func NewRecorder(sink Sink, log *slog.Logger) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{sink: sink, log: log}
}

// Record sends an event, stamping the current time.
func (r *Recorder) Record(t EventType, pid int, message string) {
	if r == nil || r.sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	e := Event{Type: t, OccurredAt: time.Now(), PID: pid, Message: message}
	if err := r.sink.Send(ctx, e); err != nil {
		r.log.Warn("history sink send failed", "type", t, "error", err)
	}
}

func (r *Recorder) Close() error {
	if r == nil || r.sink == nil {
		return nil
	}
	return r.sink.Close()
}
