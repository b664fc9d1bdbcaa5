package scheduler

import (
	"time"

	"github.com/aretw0/introspection"
)

// SchedulerState exposes internal state for observability.
type SchedulerState struct {
	Phase          Phase      `json:"phase"`
	Interval       string     `json:"interval"`
	Rounds         int        `json:"rounds"`
	OfflineRetries int        `json:"offline_retries"`
	LastSync       *time.Time `json:"last_sync,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
}

// Snapshot returns loop statistics alongside the worker State.
func (s *Scheduler) Snapshot() any {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := SchedulerState{
		Phase:          s.phase,
		Interval:       s.config.Interval.String(),
		Rounds:         s.rounds,
		OfflineRetries: s.offline,
		LastSync:       s.lastSync,
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

// ComponentType implements introspection.Component.
func (s *Scheduler) ComponentType() string {
	return "sync-scheduler"
}

var _ introspection.Component = (*Scheduler)(nil)
