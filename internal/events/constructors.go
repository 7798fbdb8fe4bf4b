package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewSimpleEvent creates an Event without structured data.
func NewSimpleEvent(eventType EventType, runID, prefix string, severity EventSeverity, message string) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
		RunID:     runID,
		Prefix:    prefix,
		Severity:  severity,
		Message:   message,
		Data:      make(map[string]interface{}),
	}
}

// The data structs below only hold JSON-safe fields, so the Set*Data calls
// in these constructors cannot fail.

// NewRunStartedEvent creates an event for a seeded run.
func NewRunStartedEvent(runID string, seeds int, workers int) *Event {
	e := NewSimpleEvent(EventTypeRunStarted, runID, "", SeverityInfo,
		fmt.Sprintf("Seeded %d prefixes, starting %d worker(s)", seeds, workers))
	e.Data["seeds"] = seeds
	e.Data["workers"] = workers
	return e
}

// NewProgressEvent creates a periodic progress event.
func NewProgressEvent(runID string, data ProgressData) *Event {
	e := NewSimpleEvent(EventTypeProgress, runID, "", SeverityInfo,
		fmt.Sprintf("Progress: %d discovered, %d requests (%.2f req/s), %d queued",
			data.Discovered, data.Requests, data.Throughput, data.Queued))
	_ = e.SetProgressData(data)
	return e
}

// NewQueryCompletedEvent creates an event for an ingested prefix.
func NewQueryCompletedEvent(runID, prefix string, data QueryCompletedData) *Event {
	e := NewSimpleEvent(EventTypeQueryCompleted, runID, prefix, SeverityInfo,
		fmt.Sprintf("Prefix %q returned %d items (%d new)", prefix, data.Items, data.NewItems))
	_ = e.SetQueryCompletedData(data)
	return e
}

// NewPrefixFailedEvent creates an event for a prefix that yields nothing.
func NewPrefixFailedEvent(runID, prefix string, data PrefixFailedData) *Event {
	e := NewSimpleEvent(EventTypePrefixFailed, runID, prefix, SeverityError,
		fmt.Sprintf("Error processing prefix %q: %s", prefix, data.Error))
	_ = e.SetPrefixFailedData(data)
	return e
}

// NewMalformedResponseEvent creates a warning for an unrecognized payload.
func NewMalformedResponseEvent(runID, prefix string, bodyLen int) *Event {
	e := NewSimpleEvent(EventTypeMalformedResponse, runID, prefix, SeverityWarning,
		fmt.Sprintf("Unexpected response format for %q (%d bytes)", prefix, bodyLen))
	e.Data["body_len"] = bodyLen
	return e
}

// NewRateLimitedEvent creates an event for a throttling response.
func NewRateLimitedEvent(runID, prefix string, data RateLimitedData) *Event {
	e := NewSimpleEvent(EventTypeRateLimited, runID, prefix, SeverityWarning,
		fmt.Sprintf("Rate limited. Backing off for %v", time.Duration(data.WaitMs)*time.Millisecond))
	_ = e.SetRateLimitedData(data)
	return e
}

// NewRetryEvent creates an event for a transient failure.
func NewRetryEvent(runID, prefix string, data RetryData) *Event {
	e := NewSimpleEvent(EventTypeRetry, runID, prefix, SeverityWarning,
		fmt.Sprintf("Request error: %s. Retrying in %v", data.Error, time.Duration(data.WaitMs)*time.Millisecond))
	_ = e.SetRetryData(data)
	return e
}

// NewCircuitBreakerEvent creates an event for a breaker transition.
func NewCircuitBreakerEvent(runID string, data CircuitBreakerData) *Event {
	e := NewSimpleEvent(EventTypeCircuitBreakerStateChange, runID, "", SeverityWarning,
		fmt.Sprintf("Circuit breaker state transition: %s → %s (failures=%d)", data.From, data.To, data.Failures))
	_ = e.SetCircuitBreakerData(data)
	return e
}

// NewPersistEvent creates a persisted or persist_failed event depending on
// whether data.Error is set.
func NewPersistEvent(runID string, data PersistData) *Event {
	var e *Event
	if data.Error != "" {
		e = NewSimpleEvent(EventTypePersistFailed, runID, "", SeverityError,
			fmt.Sprintf("Failed to save %d names to %s: %s", data.Count, data.Target, data.Error))
	} else {
		e = NewSimpleEvent(EventTypePersisted, runID, "", SeverityInfo,
			fmt.Sprintf("Saved %d names to %s", data.Count, data.Target))
	}
	_ = e.SetPersistData(data)
	return e
}

// NewRunCompletedEvent creates the final summary event.
func NewRunCompletedEvent(runID string, data RunCompletedData) *Event {
	msg := fmt.Sprintf("Run completed: %d names, %d requests in %v",
		data.Discovered, data.Requests, time.Duration(data.ElapsedMs)*time.Millisecond)
	if data.Cancelled {
		msg = "Run cancelled: " + msg[len("Run completed: "):]
	}
	e := NewSimpleEvent(EventTypeRunCompleted, runID, "", SeverityInfo, msg)
	_ = e.SetRunCompletedData(data)
	return e
}
