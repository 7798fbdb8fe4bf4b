package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Querier fetches the raw response for a prefix. *oracle.Client is the
// production implementation.
type Querier interface {
	Query(ctx context.Context, prefix string) ([]byte, error)
}

// Pager is implemented by queriers that can fetch follow-up pages of a
// prefix's results. Pages are requested only when paging is configured.
type Pager interface {
	QueryPage(ctx context.Context, prefix, page string) ([]byte, error)
}

// attemptCounter is implemented by queriers that retry internally.
type attemptCounter interface {
	Attempts() int64
}

// rateLimitCounter is implemented by queriers that track throttling.
type rateLimitCounter interface {
	RateLimitHits() int64
}

// Result contains the outcome of a sweep.
type Result struct {
	RunID string

	// Items are the discovered items in first-seen order
	Items []string

	// Order lists prefixes in the order they were dispatched
	Order []string

	// Failed lists prefixes whose query exhausted its attempts
	Failed []string

	// Requests counts logical queries, Attempts counts HTTP attempts
	// (retries and follow-up pages included)
	Requests int64
	Attempts int64

	// RateLimited counts attempts the oracle throttled
	RateLimited int64

	// Malformed counts responses of no recognized shape
	Malformed int

	// Timing
	StartedAt   time.Time
	CompletedAt time.Time

	Cancelled bool

	// Output is the file the items were written to, PersistErr the reason
	// they could not be
	Output     string
	PersistErr error
}

// Elapsed returns the wall time of the sweep.
func (r *Result) Elapsed() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// Throughput returns logical requests per second.
func (r *Result) Throughput() float64 {
	secs := r.Elapsed().Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(r.Requests) / secs
}

// Summary returns a human-readable summary of the sweep.
func (r *Result) Summary() string {
	var sb strings.Builder
	status := "completed"
	if r.Cancelled {
		status = "cancelled"
	}
	fmt.Fprintf(&sb, "Sweep %s in %.2f seconds\n", status, r.Elapsed().Seconds())
	fmt.Fprintf(&sb, "Total names found: %d\n", len(r.Items))
	fmt.Fprintf(&sb, "Total requests made: %d (%d attempts)\n", r.Requests, r.Attempts)
	fmt.Fprintf(&sb, "Request rate: %.2f requests/second\n", r.Throughput())
	fmt.Fprintf(&sb, "Failed prefixes: %d", len(r.Failed))
	if r.RateLimited > 0 {
		fmt.Fprintf(&sb, "\nRate limited: %d attempts", r.RateLimited)
	}
	if r.Malformed > 0 {
		fmt.Fprintf(&sb, "\nMalformed responses: %d", r.Malformed)
	}
	switch {
	case r.PersistErr != nil:
		fmt.Fprintf(&sb, "\nOutput: not saved (%v)", r.PersistErr)
	case r.Output != "":
		fmt.Fprintf(&sb, "\nOutput: %s", r.Output)
	}
	return sb.String()
}
