// Package status exposes the progress of a running suite over HTTP.
package status

import (
	"sync"
	"time"

	"github.com/resiliencelab/chaos-go/pkg/types"
)

// Snapshot is the body of GET /status
type Snapshot struct {
	RunningSince time.Time   `json:"running_since"`
	Experiment   string      `json:"current_experiment,omitempty"`
	FaultType    string      `json:"fault_type,omitempty"`
	Phase        types.Phase `json:"phase,omitempty"`
	Completed    int         `json:"completed"`
	Recovered    int         `json:"recovered"`
	Degraded     int         `json:"degraded"`
	LastScore    *float64    `json:"last_score,omitempty"`
}

// Tracker follows the suite driver, it is safe for concurrent use
type Tracker struct {
	mu      sync.RWMutex
	since   time.Time
	current *types.ExperimentDefinition
	phase   func() types.Phase
	done    []types.ExperimentResult
}

// NewTracker returns an empty tracker
func NewTracker() *Tracker {
	return &Tracker{since: time.Now()}
}

func (t *Tracker) ExperimentStarted(def types.ExperimentDefinition, phase func() types.Phase) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = &def
	t.phase = phase
}

func (t *Tracker) ExperimentFinished(res types.ExperimentResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = nil
	t.phase = nil
	t.done = append(t.done, res)
}

// Snapshot returns the current progress
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := Snapshot{RunningSince: t.since, Completed: len(t.done)}
	if t.current != nil {
		s.Experiment = t.current.Name
		s.FaultType = string(t.current.FaultType())
	}
	if t.phase != nil {
		s.Phase = t.phase()
	}
	for _, r := range t.done {
		if r.RecoverySuccessful {
			s.Recovered++
		}
		if r.Degraded() {
			s.Degraded++
		}
	}
	if n := len(t.done); n > 0 {
		score := t.done[n-1].ResilienceScore
		s.LastScore = &score
	}
	return s
}
