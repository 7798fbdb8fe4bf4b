package discovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/steveyegge/acsweep/internal/config"
	"github.com/steveyegge/acsweep/internal/events"
	"github.com/steveyegge/acsweep/internal/frontier"
	"github.com/steveyegge/acsweep/internal/normalize"
	"github.com/steveyegge/acsweep/internal/oracle"
	"github.com/steveyegge/acsweep/internal/storage"
	"github.com/steveyegge/acsweep/internal/types"
)

// Orchestrator coordinates a sweep:
// - Seeds the frontier from the alphabet
// - Runs a pool of workers that query, normalize and ingest prefixes
// - Reports progress by discovery count and by interval
// - Persists the discovered items when the frontier is exhausted or the
//   run is cancelled
type Orchestrator struct {
	client     Querier
	config     *config.Config
	normalizer *normalize.Normalizer

	runID   string
	logger  *zap.Logger
	sink    events.Sink
	archive storage.Archive
	persist func(path string, items []string) error
	now     func() time.Time

	// per-run state, cleared by reset
	frontier  *frontier.Frontier
	startedAt time.Time
	requests  atomic.Int64

	// querier counters at the start of the run
	attemptsBase    int64
	rateLimitedBase int64

	mu        sync.Mutex
	order     []string
	failed    []string
	malformed int
	lastMark  int
	archiveOK bool
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithRunID sets the run identifier. A random one is generated otherwise.
func WithRunID(id string) Option {
	return func(o *Orchestrator) { o.runID = id }
}

// WithLogger sets the logger for operational messages.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithEvents routes progress and diagnostic events to sink.
func WithEvents(sink events.Sink) Option {
	return func(o *Orchestrator) { o.sink = sink }
}

// WithArchive records the run, its query log and its items in archive.
func WithArchive(archive storage.Archive) Option {
	return func(o *Orchestrator) { o.archive = archive }
}

// WithPersister replaces the output writer (storage.WriteJSONFile).
func WithPersister(persist func(path string, items []string) error) Option {
	return func(o *Orchestrator) { o.persist = persist }
}

// NewOrchestrator creates a new sweep orchestrator.
func NewOrchestrator(client Querier, cfg *config.Config, opts ...Option) *Orchestrator {
	if cfg == nil {
		cfg = config.Default()
	}

	o := &Orchestrator{
		client:     client,
		config:     cfg,
		normalizer: normalize.New(cfg.ExtraKeys...),
		logger:     zap.NewNop(),
		sink:       events.Discard,
		persist:    storage.WriteJSONFile,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.runID == "" {
		o.runID = uuid.New().String()
	}
	return o
}

// RunID returns the identifier of the run.
func (o *Orchestrator) RunID() string { return o.runID }

// Run executes the sweep and returns its result. An Orchestrator may be
// run more than once; each run starts from a fresh frontier and counters.
//
// The only error returned is a seeding error (empty alphabet or duplicate
// symbol), in which case no request is made. Failed prefixes, malformed
// responses, cancellation and persistence failures are reported through the
// result and the event sink instead.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	f := frontier.New(frontier.WithMaxPrefixLen(o.config.MaxPrefixLen))
	if err := f.Seed(o.config.Alphabet); err != nil {
		return nil, fmt.Errorf("seeding frontier: %w", err)
	}
	o.reset(f)

	workers := o.config.Workers
	if workers < 1 {
		workers = 1
	}

	o.startArchive(ctx, workers)
	o.sink.Emit(events.NewRunStartedEvent(o.runID, f.Stats().Queued, workers))

	// Interval-based progress runs beside the workers
	stopTicker := make(chan struct{})
	var tickerWG sync.WaitGroup
	if o.config.ProgressInterval > 0 {
		tickerWG.Add(1)
		go func() {
			defer tickerWG.Done()
			o.tickProgress(stopTicker)
		}()
	}

	var g errgroup.Group
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			o.work(ctx)
			return nil
		})
	}
	_ = g.Wait()

	close(stopTicker)
	tickerWG.Wait()

	result := o.buildResult(ctx.Err() != nil)

	// Partial results are saved even when ctx is already cancelled
	finishCtx := context.WithoutCancel(ctx)
	_ = o.Persist(finishCtx, result)
	o.finishArchive(finishCtx, result)

	o.sink.Emit(events.NewRunCompletedEvent(o.runID, events.RunCompletedData{
		Discovered: len(result.Items),
		Requests:   result.Requests,
		Attempts:   result.Attempts,
		Failed:     len(result.Failed),
		ElapsedMs:  result.Elapsed().Milliseconds(),
		Throughput: result.Throughput(),
		Cancelled:  result.Cancelled,
	}))

	return result, nil
}

// reset clears what a previous run left behind.
func (o *Orchestrator) reset(f *frontier.Frontier) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.frontier = f
	o.startedAt = o.now()
	o.requests.Store(0)
	o.order = nil
	o.failed = nil
	o.malformed = 0
	o.lastMark = 0
	o.archiveOK = false

	o.attemptsBase, o.rateLimitedBase = 0, 0
	if c, ok := o.client.(attemptCounter); ok {
		o.attemptsBase = c.Attempts()
	}
	if c, ok := o.client.(rateLimitCounter); ok {
		o.rateLimitedBase = c.RateLimitHits()
	}
}

// Persist writes result.Items to the configured output file and records the
// outcome on result. It can be called again to retry a failed write.
func (o *Orchestrator) Persist(ctx context.Context, result *Result) error {
	if o.config.Output == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err := o.persist(o.config.Output, result.Items)
	result.Output = o.config.Output
	result.PersistErr = err

	data := events.PersistData{Target: o.config.Output, Count: len(result.Items)}
	if err != nil {
		data.Error = err.Error()
		o.logger.Error("failed to persist results",
			zap.String("output", o.config.Output),
			zap.Error(err))
	}
	o.sink.Emit(events.NewPersistEvent(o.runID, data))
	return err
}

// work is the loop of a single worker.
func (o *Orchestrator) work(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		prefix, ok := o.frontier.Next(ctx)
		if !ok {
			return
		}
		o.process(ctx, prefix)
		o.frontier.Done(prefix)
	}
}

// process queries one prefix, follows its pages and ingests the results.
func (o *Orchestrator) process(ctx context.Context, prefix string) {
	if ctx.Err() != nil {
		return
	}

	o.mu.Lock()
	o.order = append(o.order, prefix)
	o.mu.Unlock()
	o.requests.Add(1)

	started := o.now()
	body, err := o.client.Query(ctx, prefix)
	if err != nil {
		if ctx.Err() != nil {
			// Abandoned by cancellation, not a failed prefix
			return
		}
		o.recordFailure(ctx, prefix, err, o.now().Sub(started))
		return
	}

	res := o.extract(prefix, body)
	items := res.Items
	var (
		pages   int
		pageErr error
	)
	if pager, ok := o.pager(); ok {
		var more []string
		more, pages, pageErr = o.followPages(ctx, pager, prefix, body)
		items = append(items, more...)
	}

	// Items from pages fetched before a failure are kept
	fresh := o.frontier.Ingest(prefix, items)
	stats := o.frontier.Stats()

	switch {
	case pageErr != nil && ctx.Err() != nil:
		// Cancelled while paging: keep the items, the prefix did not fail
	case pageErr != nil:
		o.recordFailure(ctx, prefix, pageErr, o.now().Sub(started))
	default:
		o.sink.Emit(events.NewQueryCompletedEvent(o.runID, prefix, events.QueryCompletedData{
			Items:    len(items),
			NewItems: len(fresh),
			Shape:    res.Shape.String(),
			Key:      res.Key,
			Queued:   stats.Queued,
			Pages:    pages,
		}))
		o.recordQuery(ctx, &types.QueryRecord{
			RunID:    o.runID,
			Prefix:   prefix,
			Shape:    res.Shape.String(),
			Items:    len(items),
			NewItems: len(fresh),
			Duration: o.now().Sub(started),
		})
	}

	if len(fresh) > 0 {
		o.maybeReportProgress(stats.Discovered)
	}
}

// extract normalizes one response body, counting it if malformed.
func (o *Orchestrator) extract(prefix string, body []byte) normalize.Result {
	res := o.normalizer.Normalize(body)
	if res.Shape == normalize.ShapeUnrecognized {
		o.mu.Lock()
		o.malformed++
		o.mu.Unlock()
		o.sink.Emit(events.NewMalformedResponseEvent(o.runID, prefix, len(body)))
	}
	return res
}

func (o *Orchestrator) pager() (Pager, bool) {
	if o.config.PageParam == "" {
		return nil, false
	}
	p, ok := o.client.(Pager)
	return p, ok
}

// followPages fetches the pages that follow first and returns their items
// and how many were fetched. It stops when a response has no next page
// token, repeats a token already followed, or MaxPages pages (the first
// included) have been read.
func (o *Orchestrator) followPages(ctx context.Context, pager Pager, prefix string, first []byte) ([]string, int, error) {
	var items []string
	seen := make(map[string]bool)
	body := first
	fetched := 0
	for fetched+1 < o.config.MaxPages {
		token, ok := normalize.NextPage(body, o.config.NextPageKey)
		if !ok || seen[token] {
			break
		}
		seen[token] = true

		next, err := pager.QueryPage(ctx, prefix, token)
		if err != nil {
			return items, fetched, fmt.Errorf("page %s: %w", token, err)
		}
		fetched++
		items = append(items, o.extract(prefix, next).Items...)
		body = next
	}
	if fetched+1 >= o.config.MaxPages {
		if token, ok := normalize.NextPage(body, o.config.NextPageKey); ok && !seen[token] {
			o.logger.Warn("page limit reached",
				zap.String("prefix", prefix),
				zap.Int("max_pages", o.config.MaxPages))
		}
	}
	return items, fetched, nil
}

func (o *Orchestrator) recordFailure(ctx context.Context, prefix string, err error, elapsed time.Duration) {
	o.mu.Lock()
	o.failed = append(o.failed, prefix)
	o.mu.Unlock()

	attempts := 1
	var qe *oracle.QueryError
	if errors.As(err, &qe) {
		attempts = qe.Attempts
	}
	o.sink.Emit(events.NewPrefixFailedEvent(o.runID, prefix, events.PrefixFailedData{
		Attempts: attempts,
		Error:    err.Error(),
	}))
	o.recordQuery(ctx, &types.QueryRecord{
		RunID:    o.runID,
		Prefix:   prefix,
		Error:    err.Error(),
		Duration: elapsed,
	})
}

// maybeReportProgress emits a progress event each time the discovery count
// crosses a multiple of ProgressEvery.
func (o *Orchestrator) maybeReportProgress(discovered int) {
	every := o.config.ProgressEvery
	if every <= 0 {
		return
	}
	mark := discovered / every
	o.mu.Lock()
	if mark <= o.lastMark {
		o.mu.Unlock()
		return
	}
	o.lastMark = mark
	o.mu.Unlock()
	o.reportProgress()
}

func (o *Orchestrator) tickProgress(stop <-chan struct{}) {
	ticker := time.NewTicker(o.config.ProgressInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			o.reportProgress()
		}
	}
}

func (o *Orchestrator) reportProgress() {
	stats := o.frontier.Stats()
	elapsed := o.now().Sub(o.startedAt)
	requests := o.requests.Load()

	o.mu.Lock()
	failed := len(o.failed)
	o.mu.Unlock()

	data := events.ProgressData{
		Discovered: stats.Discovered,
		Requests:   requests,
		Attempts:   o.attempts(),
		Queued:     stats.Queued,
		Visited:    stats.Visited,
		Failed:     failed,
		ElapsedMs:  elapsed.Milliseconds(),
	}
	if secs := elapsed.Seconds(); secs > 0 {
		data.Throughput = float64(requests) / secs
	}
	if c, ok := o.client.(*oracle.Client); ok {
		data.InterDelay = c.Backoff().InterDelay().Milliseconds()
	}
	o.sink.Emit(events.NewProgressEvent(o.runID, data))
}

func (o *Orchestrator) attempts() int64 {
	if c, ok := o.client.(attemptCounter); ok {
		return c.Attempts() - o.attemptsBase
	}
	return o.requests.Load()
}

func (o *Orchestrator) rateLimited() int64 {
	if c, ok := o.client.(rateLimitCounter); ok {
		return c.RateLimitHits() - o.rateLimitedBase
	}
	return 0
}

func (o *Orchestrator) buildResult(cancelled bool) *Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	return &Result{
		RunID:       o.runID,
		Items:       o.frontier.Discovered(),
		Order:       append([]string(nil), o.order...),
		Failed:      append([]string(nil), o.failed...),
		Requests:    o.requests.Load(),
		Attempts:    o.attempts(),
		RateLimited: o.rateLimited(),
		Malformed:   o.malformed,
		StartedAt:   o.startedAt,
		CompletedAt: o.now(),
		Cancelled:   cancelled,
	}
}

// startArchive records the run. An archive that cannot be written is
// logged and ignored for the rest of the run.
func (o *Orchestrator) startArchive(ctx context.Context, workers int) {
	if o.archive == nil {
		return
	}
	run := &types.Run{
		ID:        o.runID,
		BaseURL:   o.config.Endpoint(),
		Alphabet:  o.config.Alphabet,
		Workers:   workers,
		Status:    types.RunStatusRunning,
		StartedAt: o.startedAt,
	}
	if err := o.archive.CreateRun(ctx, run); err != nil {
		o.logger.Warn("run archive disabled", zap.Error(err))
		return
	}
	o.mu.Lock()
	o.archiveOK = true
	o.mu.Unlock()
}

func (o *Orchestrator) archiving() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.archiveOK
}

func (o *Orchestrator) recordQuery(ctx context.Context, q *types.QueryRecord) {
	if !o.archiving() {
		return
	}
	q.CreatedAt = o.now()
	if err := o.archive.RecordQuery(context.WithoutCancel(ctx), q); err != nil {
		o.logger.Warn("failed to archive query",
			zap.String("prefix", q.Prefix),
			zap.Error(err))
	}
}

func (o *Orchestrator) finishArchive(ctx context.Context, result *Result) {
	if !o.archiving() {
		return
	}
	if err := o.archive.SaveItems(ctx, o.runID, result.Items); err != nil {
		o.logger.Warn("failed to archive items", zap.Error(err))
	}

	finished := result.CompletedAt
	run := &types.Run{
		ID:         o.runID,
		BaseURL:    o.config.Endpoint(),
		Alphabet:   o.config.Alphabet,
		Workers:    max(o.config.Workers, 1),
		Status:     types.RunStatusCompleted,
		Discovered: len(result.Items),
		Requests:   result.Requests,
		Attempts:   result.Attempts,
		Failed:     len(result.Failed),
		Output:     result.Output,
		StartedAt:  result.StartedAt,
		FinishedAt: &finished,
	}
	if result.Cancelled {
		run.Status = types.RunStatusCancelled
	}
	if result.PersistErr != nil {
		run.PersistError = result.PersistErr.Error()
	}
	if err := o.archive.FinishRun(ctx, run); err != nil {
		o.logger.Warn("failed to archive run summary", zap.Error(err))
	}
}
