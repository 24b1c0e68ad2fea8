// Package health reports the liveness and progress of a pipeline run to the
// ops endpoint.
package health

import (
	"net/http"
	"sync"
	"time"
)

// Healthz returns 200 "ok\n" unconditionally.
func Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

// Snapshot is a point-in-time view of a run.
type Snapshot struct {
	Stage     string    `json:"stage"`
	Halos     int       `json:"halos"`
	Ready     bool      `json:"ready"`
	Done      bool      `json:"done"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Tracker records the current stage of a run. It is safe for concurrent use.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

func NewTracker() *Tracker {
	t := &Tracker{now: time.Now}
	t.snap.StartedAt = t.now()
	t.snap.UpdatedAt = t.snap.StartedAt
	t.snap.Stage = "starting"
	return t
}

// SetStage records the stage the run has entered and how many halos it is
// working on.
func (t *Tracker) SetStage(stage string, halos int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Stage = stage
	t.snap.Halos = halos
	t.snap.UpdatedAt = t.now()
}

// MarkReady flags the run as ready once its inputs have loaded.
func (t *Tracker) MarkReady() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Ready = true
	t.snap.UpdatedAt = t.now()
}

// MarkDone flags the run as finished.
func (t *Tracker) MarkDone() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Done = true
	t.snap.Stage = "done"
	t.snap.UpdatedAt = t.now()
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap
}

// Readyz returns 200 "ready\n" once the run's inputs have loaded and 503
// before then.
func (t *Tracker) Readyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	if !t.Snapshot().Ready {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("not ready\n"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready\n"))
}
