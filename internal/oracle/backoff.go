package oracle

import (
	"sync"
	"time"
)

const (
	// RetryMultiplier grows the retry delay after every failed attempt.
	RetryMultiplier = 2.0
	// PacingMultiplier grows the inter-request delay after every rate-limit response.
	PacingMultiplier = 1.5
)

// Backoff is the adaptive pacing state of a client: its running estimate of
// how hard the server can be pushed. One Backoff is shared by every worker
// of a run; all access goes through the mutex.
//
// The inter-request delay only ever grows. The retry delay doubles on every
// failure and snaps back to its baseline on the first clean response.
type Backoff struct {
	mu sync.Mutex

	inter     float64 // nanoseconds, kept as float so repeated ×1.5 does not truncate
	retry     time.Duration
	baseRetry time.Duration
	maxRetry  time.Duration // 0 = uncapped
}

// BackoffState is a point-in-time copy of a Backoff.
type BackoffState struct {
	InterDelay time.Duration
	RetryDelay time.Duration
}

// NewBackoff creates backoff state starting at the given delays. maxRetry
// caps the retry delay; 0 leaves it uncapped.
func NewBackoff(interDelay, retryDelay, maxRetry time.Duration) *Backoff {
	return &Backoff{
		inter:     float64(interDelay),
		retry:     retryDelay,
		baseRetry: retryDelay,
		maxRetry:  maxRetry,
	}
}

// InterDelay returns the current pacing floor paid before every attempt.
func (b *Backoff) InterDelay() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return time.Duration(b.inter)
}

// RetryDelay returns the wait that the next failure will incur.
func (b *Backoff) RetryDelay() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.retry
}

// Snapshot returns both delays atomically.
func (b *Backoff) Snapshot() BackoffState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BackoffState{InterDelay: time.Duration(b.inter), RetryDelay: b.retry}
}

// RateLimited records a throttling response. It returns the wait to apply
// now, then doubles the retry delay and slows pacing by PacingMultiplier.
func (b *Backoff) RateLimited() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	wait := b.retry
	b.growRetryLocked()
	b.inter *= PacingMultiplier
	return wait
}

// Failed records a transient failure. It returns the wait to apply now and
// doubles the retry delay; pacing is left alone.
func (b *Backoff) Failed() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	wait := b.retry
	b.growRetryLocked()
	return wait
}

// Succeeded resets the retry delay to its baseline. The inter-request delay
// keeps whatever value it has grown to.
func (b *Backoff) Succeeded() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.retry = b.baseRetry
}

func (b *Backoff) growRetryLocked() {
	b.retry = time.Duration(float64(b.retry) * RetryMultiplier)
	if b.maxRetry > 0 && b.retry > b.maxRetry {
		b.retry = b.maxRetry
	}
}
