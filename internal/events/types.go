package events

import (
	"time"
)

// EventType represents the type of event that occurred during a sweep.
type EventType string

const (
	// EventTypeRunStarted indicates the frontier was seeded and workers started
	EventTypeRunStarted EventType = "run_started"
	// EventTypeProgress indicates a periodic progress report
	EventTypeProgress EventType = "progress"
	// EventTypeQueryCompleted indicates a prefix was queried and its items ingested
	EventTypeQueryCompleted EventType = "query_completed"
	// EventTypePrefixFailed indicates a prefix exhausted its attempts and yields nothing
	EventTypePrefixFailed EventType = "prefix_failed"
	// EventTypeMalformedResponse indicates a response matched no known shape
	EventTypeMalformedResponse EventType = "malformed_response"
	// EventTypeRateLimited indicates the oracle signalled throttling
	EventTypeRateLimited EventType = "rate_limited"
	// EventTypeRetry indicates a transient failure that will be retried
	EventTypeRetry EventType = "retry"
	// EventTypeCircuitBreakerStateChange indicates circuit breaker state transition
	EventTypeCircuitBreakerStateChange EventType = "circuit_breaker_state_change"
	// EventTypePersisted indicates the discovered set was written out
	EventTypePersisted EventType = "persisted"
	// EventTypePersistFailed indicates the discovered set could not be written
	EventTypePersistFailed EventType = "persist_failed"
	// EventTypeRunCompleted indicates the frontier was exhausted or the run was cancelled
	EventTypeRunCompleted EventType = "run_completed"
)

// EventSeverity represents the severity level of an event.
type EventSeverity string

const (
	// SeverityInfo indicates informational events
	SeverityInfo EventSeverity = "info"
	// SeverityWarning indicates potentially problematic events
	SeverityWarning EventSeverity = "warning"
	// SeverityError indicates error events
	SeverityError EventSeverity = "error"
)

// Event is a discrete observation emitted by the sweep engine. Events are a
// pure output: nothing in the engine reads them back to make decisions.
type Event struct {
	// ID is the unique identifier for this event
	ID string `json:"id"`
	// Type is the type of event
	Type EventType `json:"type"`
	// Timestamp is when the event occurred
	Timestamp time.Time `json:"timestamp"`
	// RunID identifies the sweep that produced the event
	RunID string `json:"run_id,omitempty"`
	// Prefix is the prefix being queried, if any
	Prefix string `json:"prefix,omitempty"`
	// Severity is the severity level of this event
	Severity EventSeverity `json:"severity"`
	// Message is a human-readable description of the event
	Message string `json:"message"`
	// Data contains structured, type-specific data (must be JSON-serializable)
	Data map[string]interface{} `json:"data,omitempty"`
}

// ProgressData contains the counters of a progress report.
type ProgressData struct {
	Discovered int     `json:"discovered"`
	Requests   int64   `json:"requests"`
	Attempts   int64   `json:"attempts"`
	Queued     int     `json:"queued"`
	Visited    int     `json:"visited"`
	Failed     int     `json:"failed"`
	ElapsedMs  int64   `json:"elapsed_ms"`
	Throughput float64 `json:"throughput"` // requests per second
	InterDelay int64   `json:"inter_delay_ms"`
}

// QueryCompletedData describes one successful prefix query.
type QueryCompletedData struct {
	Items    int    `json:"items"`
	NewItems int    `json:"new_items"`
	Shape    string `json:"shape"`
	Key      string `json:"key,omitempty"`
	Queued   int    `json:"queued"`
	// Pages counts follow-up pages fetched after the first response
	Pages int `json:"pages,omitempty"`
}

// PrefixFailedData describes a prefix that exhausted its attempts.
type PrefixFailedData struct {
	Attempts int    `json:"attempts"`
	Error    string `json:"error"`
}

// RateLimitedData captures the backoff state after a throttling response.
type RateLimitedData struct {
	Attempt      int   `json:"attempt"`
	Status       int   `json:"status,omitempty"`
	WaitMs       int64 `json:"wait_ms"`
	RetryDelayMs int64 `json:"retry_delay_ms"`
	InterDelayMs int64 `json:"inter_delay_ms"`
}

// RetryData captures a transient failure that will be retried.
type RetryData struct {
	Attempt int    `json:"attempt"`
	WaitMs  int64  `json:"wait_ms"`
	Error   string `json:"error"`
}

// CircuitBreakerData captures a breaker transition.
type CircuitBreakerData struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Failures int    `json:"failures"`
}

// PersistData describes a write of the discovered set.
type PersistData struct {
	Target string `json:"target"`
	Count  int    `json:"count"`
	Error  string `json:"error,omitempty"`
}

// RunCompletedData summarizes a finished run.
type RunCompletedData struct {
	Discovered int     `json:"discovered"`
	Requests   int64   `json:"requests"`
	Attempts   int64   `json:"attempts"`
	Failed     int     `json:"failed"`
	ElapsedMs  int64   `json:"elapsed_ms"`
	Throughput float64 `json:"throughput"`
	Cancelled  bool    `json:"cancelled"`
}
