package ingest

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/c360/marketsearch/errors"
)

// State is an ingestion run lifecycle state.
type State string

const (
	StatePending    State = "pending"
	StateFetching   State = "fetching"
	StateScoring    State = "scoring"
	StateEmbedding  State = "embedding"
	StatePersisting State = "persisting"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// RunStatus is a snapshot of an ingestion run.
type RunStatus struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol,omitempty"`
	State      State     `json:"state"`
	Processed  int       `json:"processed"`
	Skipped    int       `json:"skipped"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// maxTerminalRuns bounds retained run history. Pending and in-flight
// runs are never pruned.
const maxTerminalRuns = 256

// Tracker records ingestion runs and serves pollable status snapshots.
// Terminal run history is capped; the oldest finished runs fall off
// once the cap is exceeded.
type Tracker struct {
	mu   sync.RWMutex
	runs map[string]*RunStatus
}

// NewTracker creates an empty run tracker.
func NewTracker() *Tracker {
	return &Tracker{runs: make(map[string]*RunStatus)}
}

// Begin registers a new pending run and returns its snapshot.
func (t *Tracker) Begin(symbol string) RunStatus {
	run := &RunStatus{
		ID:        uuid.NewString(),
		Symbol:    symbol,
		State:     StatePending,
		StartedAt: time.Now(),
	}

	t.mu.Lock()
	t.runs[run.ID] = run
	t.mu.Unlock()

	return *run
}

// Transition moves a run to a new non-terminal state. Transitions out
// of a terminal state are ignored.
func (t *Tracker) Transition(id string, state State) {
	t.mu.Lock()
	defer t.mu.Unlock()

	run, ok := t.runs[id]
	if !ok || run.State.Terminal() {
		return
	}
	run.State = state
}

// Complete marks a run as completed with final counts.
func (t *Tracker) Complete(id string, processed, skipped int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	run, ok := t.runs[id]
	if !ok || run.State.Terminal() {
		return
	}
	run.State = StateCompleted
	run.Processed = processed
	run.Skipped = skipped
	run.FinishedAt = time.Now()
	t.pruneLocked()
}

// Fail marks a run as failed. Counts reflect work done before failure.
func (t *Tracker) Fail(id string, processed, skipped int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	run, ok := t.runs[id]
	if !ok || run.State.Terminal() {
		return
	}
	run.State = StateFailed
	run.Processed = processed
	run.Skipped = skipped
	if err != nil {
		run.Error = err.Error()
	}
	run.FinishedAt = time.Now()
	t.pruneLocked()
}

// pruneLocked drops the oldest terminal runs beyond the retention cap.
// Callers hold t.mu.
func (t *Tracker) pruneLocked() {
	terminal := 0
	for _, run := range t.runs {
		if run.State.Terminal() {
			terminal++
		}
	}

	for terminal > maxTerminalRuns {
		var oldestID string
		var oldest time.Time
		for id, run := range t.runs {
			if !run.State.Terminal() {
				continue
			}
			if oldestID == "" || run.FinishedAt.Before(oldest) {
				oldestID = id
				oldest = run.FinishedAt
			}
		}
		delete(t.runs, oldestID)
		terminal--
	}
}

// Get returns a snapshot of a run by ID.
func (t *Tracker) Get(id string) (RunStatus, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	run, ok := t.runs[id]
	if !ok {
		return RunStatus{}, errors.WrapInvalid(errors.ErrNotFound, "ingest", "Get", "run "+id)
	}
	return *run, nil
}

// All returns snapshots of every tracked run.
func (t *Tracker) All() []RunStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]RunStatus, 0, len(t.runs))
	for _, run := range t.runs {
		out = append(out, *run)
	}
	return out
}
