// Package frontier tracks which prefixes still need to be queried.
//
// A Frontier owns three pieces of state: the FIFO queue of pending
// prefixes, the Visited set of every prefix ever scheduled, and the ordered
// list of Discovered items. A prefix enters the queue at most once for the
// lifetime of a Frontier; the check against Visited and the push happen
// under one lock so concurrent workers can never schedule it twice.
package frontier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"
)

var (
	// ErrEmptyAlphabet is returned by Seed when no symbols are given.
	ErrEmptyAlphabet = errors.New("alphabet is empty")
	// ErrDuplicateSymbol is returned by Seed when a symbol repeats.
	ErrDuplicateSymbol = errors.New("alphabet contains a duplicate symbol")
)

// Stats is a point-in-time view of the frontier.
type Stats struct {
	Queued     int
	Visited    int
	Discovered int
	InFlight   int
}

// Frontier is safe for concurrent use.
type Frontier struct {
	mu sync.Mutex

	queue    []string
	visited  map[string]struct{}
	seen     map[string]struct{}
	items    []string
	inflight int

	maxLen int

	// wake is closed and replaced on every change that could unblock Next.
	wake chan struct{}
}

// Option customizes a Frontier.
type Option func(*Frontier)

// WithMaxPrefixLen stops derivation of prefixes longer than n runes.
// Zero means unlimited.
func WithMaxPrefixLen(n int) Option {
	return func(f *Frontier) { f.maxLen = n }
}

// New returns an empty frontier.
func New(opts ...Option) *Frontier {
	f := &Frontier{
		visited: make(map[string]struct{}),
		seen:    make(map[string]struct{}),
		wake:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Seed schedules one single-character prefix per symbol of alphabet, in
// alphabet order.
func (f *Frontier) Seed(alphabet string) error {
	symbols := []rune(alphabet)
	if len(symbols) == 0 {
		return ErrEmptyAlphabet
	}
	dup := make(map[rune]struct{}, len(symbols))
	for _, r := range symbols {
		if _, ok := dup[r]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateSymbol, r)
		}
		dup[r] = struct{}{}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range symbols {
		f.pushLocked(string(r))
	}
	f.broadcastLocked()
	return nil
}

// Pop removes the oldest pending prefix without blocking.
func (f *Frontier) Pop() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.popLocked()
}

// Next blocks until a prefix is available and returns it marked in flight.
// The caller must call Done once it has ingested the prefix's results.
//
// Next returns false once the queue is empty and nothing is in flight, or
// when ctx is done.
func (f *Frontier) Next(ctx context.Context) (string, bool) {
	for {
		f.mu.Lock()
		if p, ok := f.popLocked(); ok {
			f.inflight++
			f.mu.Unlock()
			return p, true
		}
		if f.inflight == 0 {
			f.mu.Unlock()
			return "", false
		}
		wake := f.wake
		f.mu.Unlock()

		select {
		case <-ctx.Done():
			return "", false
		case <-wake:
		}
	}
}

// Done marks a prefix returned by Next as finished.
func (f *Frontier) Done(prefix string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inflight > 0 {
		f.inflight--
	}
	f.broadcastLocked()
}

// Ingest records the items returned for prefix and schedules the prefixes
// they imply. It returns the items that were not discovered before, in the
// order given.
//
// Every new item that extends prefix yields one candidate: prefix plus the
// item's next character. Items that do not start with prefix are still
// discovered but derive nothing.
func (f *Frontier) Ingest(prefix string, items []string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var fresh []string
	plen := utf8.RuneCountInString(prefix)
	pushed := false
	for _, item := range items {
		if _, ok := f.seen[item]; ok {
			continue
		}
		f.seen[item] = struct{}{}
		f.items = append(f.items, item)
		fresh = append(fresh, item)

		if !strings.HasPrefix(item, prefix) {
			continue
		}
		if f.maxLen > 0 && plen+1 > f.maxLen {
			continue
		}
		child, ok := extend(item, plen)
		if !ok {
			continue
		}
		if f.pushLocked(child) {
			pushed = true
		}
	}
	if pushed {
		f.broadcastLocked()
	}
	return fresh
}

// extend returns the first n+1 characters of item, cut on a byte offset so
// the result is always a byte prefix of item even when item is not valid
// UTF-8 (an invalid byte counts as one character). ok is false when item
// has no more than n characters.
func extend(item string, n int) (string, bool) {
	end := 0
	for i := 0; i <= n; i++ {
		if end >= len(item) {
			return "", false
		}
		_, size := utf8.DecodeRuneInString(item[end:])
		end += size
	}
	return item[:end], true
}

// Discovered returns a copy of all items in first-seen order.
func (f *Frontier) Discovered() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.items...)
}

// Stats returns queue, visited, discovered and in-flight counts.
func (f *Frontier) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Stats{
		Queued:     len(f.queue),
		Visited:    len(f.visited),
		Discovered: len(f.items),
		InFlight:   f.inflight,
	}
}

func (f *Frontier) pushLocked(prefix string) bool {
	if _, ok := f.visited[prefix]; ok {
		return false
	}
	f.visited[prefix] = struct{}{}
	f.queue = append(f.queue, prefix)
	return true
}

func (f *Frontier) popLocked() (string, bool) {
	if len(f.queue) == 0 {
		return "", false
	}
	p := f.queue[0]
	f.queue[0] = ""
	f.queue = f.queue[1:]
	return p, true
}

func (f *Frontier) broadcastLocked() {
	close(f.wake)
	f.wake = make(chan struct{})
}
