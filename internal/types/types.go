package types

import (
	"fmt"
	"time"
)

// Run is the archived record of one sweep
type Run struct {
	ID           string     `json:"id"`
	BaseURL      string     `json:"base_url"`
	Alphabet     string     `json:"alphabet"`
	Workers      int        `json:"workers"`
	Status       RunStatus  `json:"status"`
	Discovered   int        `json:"discovered"`
	Requests     int64      `json:"requests"`
	Attempts     int64      `json:"attempts"`
	Failed       int        `json:"failed"`
	Output       string     `json:"output,omitempty"`
	PersistError string     `json:"persist_error,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// Validate checks if the run has valid field values
func (r *Run) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("id is required")
	}
	if r.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if r.Workers < 1 {
		return fmt.Errorf("workers must be at least 1 (got %d)", r.Workers)
	}
	if !r.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", r.Status)
	}
	if r.StartedAt.IsZero() {
		return fmt.Errorf("started_at is required")
	}
	if r.FinishedAt != nil && r.FinishedAt.Before(r.StartedAt) {
		return fmt.Errorf("finished_at cannot be before started_at")
	}
	return nil
}

// Duration returns how long the run took, or has taken so far.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// RunStatus represents the lifecycle state of a run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusCancelled RunStatus = "cancelled"
)

// IsValid checks if the status value is valid
func (s RunStatus) IsValid() bool {
	switch s {
	case RunStatusRunning, RunStatusCompleted, RunStatusCancelled:
		return true
	}
	return false
}

// QueryRecord is the outcome of querying one prefix
type QueryRecord struct {
	RunID     string        `json:"run_id"`
	Prefix    string        `json:"prefix"`
	Shape     string        `json:"shape,omitempty"`
	Items     int           `json:"items"`
	NewItems  int           `json:"new_items"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
	CreatedAt time.Time     `json:"created_at"`
}

// Failed reports whether the prefix exhausted its attempts.
func (q *QueryRecord) Failed() bool {
	return q.Error != ""
}
