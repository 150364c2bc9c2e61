// Package trace collects observational events from a running ring. The
// protocol never consumes the trace; tests and the interactive UI query it.
package trace

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mescam/misra/pingpong"
)

// Kind names the observation source.
type Kind string

const (
	KindSend        Kind = "send"
	KindDeliver     Kind = "deliver"
	KindDrop        Kind = "drop"
	KindRegenerate  Kind = "regenerate"
	KindIncarnate   Kind = "incarnate"
	KindStale       Kind = "stale"
	KindAnomaly     Kind = "anomaly"
	KindEnterRegion Kind = "enter_region"
	KindExitRegion  Kind = "exit_region"
)

// Event is a normalized, easy-to-query observation.
type Event struct {
	ID      string
	Kind    Kind
	From    int // sender rank for transport events, observer rank otherwise
	To      int // destination rank for transport events, -1 otherwise
	Token   pingpong.Token
	Lamport int64
	Time    time.Time
	Detail  string
}

// Recorder retains an in-memory trace of events. Safe for concurrent use.
type Recorder struct {
	mu     sync.RWMutex
	events []Event
}

func NewRecorder() *Recorder {
	return &Recorder{events: make([]Event, 0, 1024)}
}

// Record appends an event, assigning it an ID and capture time.
func (r *Recorder) Record(ev Event) {
	ev.ID = uuid.NewString()
	ev.Time = time.Now()

	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Snapshot returns a copy of the current trace, safe for analysis while the
// ring keeps running.
func (r *Recorder) Snapshot() []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Count returns how many recorded events match pred.
func (r *Recorder) Count(pred func(Event) bool) int {
	n := 0
	for _, ev := range r.Snapshot() {
		if pred(ev) {
			n++
		}
	}
	return n
}

// WaitFor polls the trace until an event matching pred appears, the timeout
// elapses, or ctx is done. Returns the matching event or nil.
func (r *Recorder) WaitFor(ctx context.Context, timeout time.Duration, pred func(Event) bool) *Event {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		for _, ev := range r.Snapshot() {
			if pred(ev) {
				return &ev
			}
		}
		select {
		case <-ctx.Done():
			// last-chance scan
			for _, ev := range r.Snapshot() {
				if pred(ev) {
					return &ev
				}
			}
			return nil
		case <-ticker.C:
		}
	}
}
