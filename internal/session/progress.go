package session

import (
	"sync"
	"time"

	"github.com/haskel/codvfs/internal/storage"
	"github.com/haskel/codvfs/internal/tuner"
)

// State is the lifecycle state of a session.
type State string

const (
	StatePending  State = "pending"
	StateRunning  State = "running"
	StateFinished State = "finished"
	StateFailed   State = "failed"
)

// Progress is a point-in-time view of a session for status reporting.
type Progress struct {
	App         string             `json:"app"`
	QuickTest   bool               `json:"quicktest"`
	State       State              `json:"state"`
	Phase       tuner.Phase        `json:"phase,omitempty"`
	Seeds       int                `json:"seeds"`
	Iterations  int                `json:"iterations"`
	Evaluations int                `json:"evaluations"`
	StartedAt   time.Time          `json:"started_at"`
	Last        *storage.Entry     `json:"last,omitempty"`
	Best        *tuner.Observation `json:"best,omitempty"`
	Error       string             `json:"error,omitempty"`
}

// tracker guards the progress shared with the status server.
type tracker struct {
	mu      sync.RWMutex
	p       Progress
	history []storage.Entry
}

func (t *tracker) update(fn func(p *Progress)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.p)
}

func (t *tracker) record(e storage.Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.history = append(t.history, e)
	t.p.Phase = e.Phase
	t.p.Evaluations = len(t.history)
	last := e
	t.p.Last = &last
	if t.p.Best == nil || e.Score > t.p.Best.Score {
		best := e.Observation
		t.p.Best = &best
	}
}

func (t *tracker) snapshot() Progress {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.p
}

func (t *tracker) entries() []storage.Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]storage.Entry, len(t.history))
	copy(out, t.history)
	return out
}
