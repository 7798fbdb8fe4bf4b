package oracle

import (
	"context"
	"time"
)

// ProbeResult is the outcome of a single test query.
type ProbeResult struct {
	URL     string
	Body    []byte
	Elapsed time.Duration
}

// Probe runs one query for prefix through the normal pacing and retry path
// so an operator can check the endpoint before a full sweep.
func (c *Client) Probe(ctx context.Context, prefix string) (*ProbeResult, error) {
	start := time.Now()
	body, err := c.Query(ctx, prefix)
	if err != nil {
		return nil, err
	}
	return &ProbeResult{
		URL:     c.URL(prefix),
		Body:    body,
		Elapsed: time.Since(start),
	}, nil
}
