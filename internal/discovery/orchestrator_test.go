package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/steveyegge/acsweep/internal/config"
	"github.com/steveyegge/acsweep/internal/events"
	"github.com/steveyegge/acsweep/internal/frontier"
	"github.com/steveyegge/acsweep/internal/oracle"
	"github.com/steveyegge/acsweep/internal/storage"
	"github.com/steveyegge/acsweep/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeOracle answers from a fixed table; unknown prefixes get an empty array.
type fakeOracle struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	calls     []string
}

func (f *fakeOracle) Query(ctx context.Context, prefix string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, prefix)
	if err, ok := f.errs[prefix]; ok {
		return nil, err
	}
	if body, ok := f.responses[prefix]; ok {
		return []byte(body), nil
	}
	return []byte(`[]`), nil
}

type querierFunc func(ctx context.Context, prefix string) ([]byte, error)

func (q querierFunc) Query(ctx context.Context, prefix string) ([]byte, error) { return q(ctx, prefix) }

// pagedOracle serves {"names":[...],"nextPage":N} responses. pages maps a
// prefix to its pages, page tokens being "2", "3" and so on.
type pagedOracle struct {
	fakeOracle
	pages   map[string][][]string
	pageErr map[string]error
	paged   []string
}

func (p *pagedOracle) body(prefix string, n int) []byte {
	pages := p.pages[prefix]
	if n > len(pages) {
		return []byte(`{"names":[]}`)
	}
	resp := map[string]any{"names": pages[n-1]}
	if n < len(pages) {
		resp["nextPage"] = n + 1
	}
	data, _ := json.Marshal(resp)
	return data
}

func (p *pagedOracle) Query(ctx context.Context, prefix string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, prefix)
	return p.body(prefix, 1), nil
}

func (p *pagedOracle) QueryPage(ctx context.Context, prefix, page string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paged = append(p.paged, prefix+"#"+page)
	if err, ok := p.pageErr[prefix+"#"+page]; ok {
		return nil, err
	}
	n, err := strconv.Atoi(page)
	if err != nil {
		return nil, err
	}
	return p.body(prefix, n), nil
}

func readNames(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, err
	}
	return names, nil
}

func testConfig(t *testing.T, alphabet string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Alphabet = alphabet
	cfg.Output = filepath.Join(t.TempDir(), "names.json")
	cfg.ProgressInterval = 0
	return cfg
}

// The {a,b} scenario: a -> [ant, ape], b -> [], an -> [ant], ap -> [ape].
var scenario = map[string]string{
	"a":  `{"results":["ant","ape"]}`,
	"b":  `[]`,
	"an": `["ant"]`,
	"ap": `{"suggestions":[{"name":"ape"}]}`,
}

func TestRunEndToEnd(t *testing.T) {
	oracleFake := &fakeOracle{responses: scenario}
	cfg := testConfig(t, "ab")
	var sink events.Recorder

	o := NewOrchestrator(oracleFake, cfg, WithEvents(&sink), WithRunID("run-1"))
	result, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "an", "ap"}, result.Order)
	assert.Equal(t, []string{"a", "b", "an", "ap"}, oracleFake.calls)
	assert.Equal(t, []string{"ant", "ape"}, result.Items)
	assert.Equal(t, int64(4), result.Requests)
	assert.Empty(t, result.Failed)
	assert.False(t, result.Cancelled)
	assert.NoError(t, result.PersistErr)
	assert.Equal(t, "run-1", result.RunID)

	saved, err := readNames(cfg.Output)
	require.NoError(t, err)
	assert.Equal(t, []string{"ant", "ape"}, saved)

	require.Len(t, sink.OfType(events.EventTypeRunStarted), 1)
	require.Len(t, sink.OfType(events.EventTypeQueryCompleted), 4)
	require.Len(t, sink.OfType(events.EventTypePersisted), 1)
	completed := sink.OfType(events.EventTypeRunCompleted)
	require.Len(t, completed, 1)
	data, err := completed[0].GetRunCompletedData()
	require.NoError(t, err)
	assert.Equal(t, 2, data.Discovered)
	assert.Equal(t, int64(4), data.Requests)
	assert.False(t, data.Cancelled)

	// Events are emitted in lifecycle order.
	all := sink.Events()
	assert.Equal(t, events.EventTypeRunStarted, all[0].Type)
	assert.Equal(t, events.EventTypeRunCompleted, all[len(all)-1].Type)
}

func TestRunEndToEndOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := scenario[r.URL.Query().Get("query")]
		if !ok {
			body = `[]`
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	cfg := testConfig(t, "ab")
	cfg.BaseURL = srv.URL
	cfg.InterRequestDelay = 0
	cfg.RetryDelay = time.Millisecond

	client, err := oracle.New(cfg.OracleConfig("acsweep-test"), oracle.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	result, err := NewOrchestrator(client, cfg).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "an", "ap"}, result.Order)
	assert.Equal(t, []string{"ant", "ape"}, result.Items)
	assert.Equal(t, int64(4), result.Requests)
	assert.Equal(t, int64(4), result.Attempts)
}

func TestRunTwiceReportsEachRunAlone(t *testing.T) {
	var throttled atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if throttled.CompareAndSwap(false, true) {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		body, ok := scenario[r.URL.Query().Get("query")]
		if !ok {
			body = `[]`
		}
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	cfg := testConfig(t, "ab")
	cfg.BaseURL = srv.URL
	cfg.InterRequestDelay = 0
	cfg.RetryDelay = time.Millisecond

	client, err := oracle.New(cfg.OracleConfig("acsweep-test"), oracle.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	o := NewOrchestrator(client, cfg)

	first, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), first.Requests)
	assert.Equal(t, int64(5), first.Attempts)
	assert.Equal(t, int64(1), first.RateLimited)
	assert.Equal(t, []string{"a", "b", "an", "ap"}, first.Order)

	second, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), second.Requests)
	assert.Equal(t, int64(4), second.Attempts)
	assert.Equal(t, int64(0), second.RateLimited)
	assert.Equal(t, []string{"a", "b", "an", "ap"}, second.Order)
	assert.Equal(t, []string{"ant", "ape"}, second.Items)
	assert.Empty(t, second.Failed)
	assert.Zero(t, second.Malformed)

	// The first result is not touched by the second run.
	assert.Equal(t, int64(4), first.Requests)
	assert.Len(t, first.Order, 4)
}

func pagingConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := testConfig(t, "ab")
	cfg.ExtraKeys = []string{"names"}
	cfg.PageParam = "page"
	return cfg
}

func TestRunFollowsPages(t *testing.T) {
	pager := &pagedOracle{pages: map[string][][]string{
		"a": {{"ant"}, {"ape"}},
	}}
	var sink events.Recorder

	result, err := NewOrchestrator(pager, pagingConfig(t), WithEvents(&sink)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"ant", "ape"}, result.Items)
	assert.Equal(t, []string{"a", "b", "an", "ap"}, result.Order)
	assert.Equal(t, []string{"a#2"}, pager.paged)
	assert.Equal(t, int64(4), result.Requests, "pages belong to the query that returned them")
	assert.Empty(t, result.Failed)

	for _, e := range sink.OfType(events.EventTypeQueryCompleted) {
		if e.Prefix != "a" {
			continue
		}
		data, err := e.GetQueryCompletedData()
		require.NoError(t, err)
		assert.Equal(t, 1, data.Pages)
		assert.Equal(t, 2, data.Items)
	}
}

func TestRunPagingDisabled(t *testing.T) {
	pager := &pagedOracle{pages: map[string][][]string{
		"a": {{"ant"}, {"ape"}},
	}}
	cfg := pagingConfig(t)
	cfg.PageParam = ""

	result, err := NewOrchestrator(pager, cfg).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"ant"}, result.Items)
	assert.Empty(t, pager.paged)
}

func TestRunPageLimit(t *testing.T) {
	pager := &pagedOracle{pages: map[string][][]string{
		"a": {{"ant"}, {"ape"}, {"axe"}},
	}}
	cfg := pagingConfig(t)
	cfg.MaxPages = 2

	result, err := NewOrchestrator(pager, cfg).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"ant", "ape"}, result.Items)
	assert.Equal(t, []string{"a#2"}, pager.paged)
	assert.Empty(t, result.Failed)
}

func TestRunPageFailureKeepsEarlierPages(t *testing.T) {
	pager := &pagedOracle{
		pages: map[string][][]string{
			"a": {{"ant"}, {"ape"}, {"axe"}},
		},
		pageErr: map[string]error{
			"a#3": &oracle.QueryError{Prefix: "a", Attempts: 5, Err: oracle.ErrTransient},
		},
	}
	var sink events.Recorder

	result, err := NewOrchestrator(pager, pagingConfig(t), WithEvents(&sink)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"ant", "ape"}, result.Items)
	assert.Equal(t, []string{"a"}, result.Failed)
	assert.Equal(t, []string{"a", "b", "an", "ap"}, result.Order, "items from earlier pages still derive prefixes")

	failed := sink.OfType(events.EventTypePrefixFailed)
	require.Len(t, failed, 1)
	data, err := failed[0].GetPrefixFailedData()
	require.NoError(t, err)
	assert.Equal(t, 5, data.Attempts)
	assert.Contains(t, data.Error, "page 3")
}

// loopingPager always points at the same next page.
type loopingPager struct {
	fakeOracle
	paged int
}

func (l *loopingPager) Query(ctx context.Context, prefix string) ([]byte, error) {
	if prefix == "a" {
		return []byte(`{"names":["ant"],"nextPage":"again"}`), nil
	}
	return []byte(`[]`), nil
}

func (l *loopingPager) QueryPage(ctx context.Context, prefix, page string) ([]byte, error) {
	l.mu.Lock()
	l.paged++
	l.mu.Unlock()
	return []byte(`{"names":["ape"],"nextPage":"again"}`), nil
}

func TestRunRepeatedPageTokenStops(t *testing.T) {
	pager := &loopingPager{}

	result, err := NewOrchestrator(pager, pagingConfig(t)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, pager.paged)
	assert.Equal(t, []string{"ant", "ape"}, result.Items)
}

func TestRunPagesOverHTTPCountAsAttempts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("query") == "a" && q.Get("page") == "":
			_, _ = w.Write([]byte(`{"names":["ant"],"nextPage":2}`))
		case q.Get("query") == "a" && q.Get("page") == "2":
			_, _ = w.Write([]byte(`{"names":["ape"],"nextPage":null}`))
		default:
			_, _ = w.Write([]byte(`{"names":[]}`))
		}
	}))
	defer srv.Close()

	cfg := pagingConfig(t)
	cfg.BaseURL = srv.URL
	cfg.InterRequestDelay = 0
	cfg.RetryDelay = time.Millisecond

	client, err := oracle.New(cfg.OracleConfig("acsweep-test"), oracle.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	result, err := NewOrchestrator(client, cfg).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"ant", "ape"}, result.Items)
	assert.Equal(t, int64(4), result.Requests)
	assert.Equal(t, int64(5), result.Attempts)
}

func TestRunExhaustedPrefixContinues(t *testing.T) {
	exhausted := &oracle.QueryError{Prefix: "a", Attempts: 5, Err: errors.New("unexpected status 503")}
	oracleFake := &fakeOracle{
		responses: map[string]string{"b": `["bee"]`},
		errs:      map[string]error{"a": exhausted},
	}
	var sink events.Recorder

	result, err := NewOrchestrator(oracleFake, testConfig(t, "ab"), WithEvents(&sink)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, result.Failed)
	assert.Equal(t, []string{"bee"}, result.Items)
	assert.Equal(t, []string{"a", "b", "be"}, result.Order)

	failed := sink.OfType(events.EventTypePrefixFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, "a", failed[0].Prefix)
	assert.Equal(t, events.SeverityError, failed[0].Severity)
	data, err := failed[0].GetPrefixFailedData()
	require.NoError(t, err)
	assert.Equal(t, 5, data.Attempts)
}

func TestRunMalformedResponseIsAWarning(t *testing.T) {
	oracleFake := &fakeOracle{responses: map[string]string{
		"a": `"oops"`,
		"b": `not json at all`,
		"c": `{"items":["cat"]}`,
	}}
	var sink events.Recorder

	result, err := NewOrchestrator(oracleFake, testConfig(t, "abc"), WithEvents(&sink)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Malformed)
	assert.Equal(t, []string{"cat"}, result.Items)
	assert.Empty(t, result.Failed)

	malformed := sink.OfType(events.EventTypeMalformedResponse)
	require.Len(t, malformed, 2)
	assert.Equal(t, events.SeverityWarning, malformed[0].Severity)
}

func TestRunExtraKeys(t *testing.T) {
	oracleFake := &fakeOracle{responses: map[string]string{"a": `{"names":["ada"]}`}}
	cfg := testConfig(t, "a")
	cfg.ExtraKeys = []string{"names"}

	result, err := NewOrchestrator(oracleFake, cfg).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"ada"}, result.Items)
	assert.Equal(t, []string{"a", "ad"}, result.Order)
}

func TestRunSeedError(t *testing.T) {
	tests := []struct {
		alphabet string
		want     error
	}{
		{"", frontier.ErrEmptyAlphabet},
		{"aba", frontier.ErrDuplicateSymbol},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.alphabet), func(t *testing.T) {
			oracleFake := &fakeOracle{}
			cfg := testConfig(t, tt.alphabet)
			var sink events.Recorder

			result, err := NewOrchestrator(oracleFake, cfg, WithEvents(&sink)).Run(context.Background())
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, result)
			assert.Empty(t, oracleFake.calls)
			assert.Empty(t, sink.Events())
			_, statErr := readNames(cfg.Output)
			assert.Error(t, statErr, "no output is written for a run that never started")
		})
	}
}

func TestRunCancellationPersistsPartialResults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := querierFunc(func(qctx context.Context, prefix string) ([]byte, error) {
		switch prefix {
		case "a":
			return []byte(`["apple"]`), nil
		case "b":
			cancel()
			<-qctx.Done()
			return nil, qctx.Err()
		}
		t.Errorf("unexpected query for %q after cancellation", prefix)
		return []byte(`[]`), nil
	})
	cfg := testConfig(t, "abc")
	var sink events.Recorder

	result, err := NewOrchestrator(q, cfg, WithEvents(&sink)).Run(ctx)
	require.NoError(t, err)

	assert.True(t, result.Cancelled)
	assert.Equal(t, []string{"apple"}, result.Items)
	assert.Equal(t, []string{"a", "b"}, result.Order)
	assert.Empty(t, result.Failed, "a cancelled query is not a failed prefix")

	saved, err := readNames(cfg.Output)
	require.NoError(t, err)
	assert.Equal(t, []string{"apple"}, saved)

	completed := sink.OfType(events.EventTypeRunCompleted)
	require.Len(t, completed, 1)
	assert.True(t, strings.HasPrefix(completed[0].Message, "Run cancelled"))
}

func TestRunPersistFailureIsReportedNotFatal(t *testing.T) {
	oracleFake := &fakeOracle{responses: scenario}
	cfg := testConfig(t, "ab")
	var sink events.Recorder
	diskFull := fmt.Errorf("%w: disk full", storage.ErrPersistence)

	o := NewOrchestrator(oracleFake, cfg, WithEvents(&sink),
		WithPersister(func(string, []string) error { return diskFull }))
	result, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.ErrorIs(t, result.PersistErr, storage.ErrPersistence)
	assert.Equal(t, []string{"ant", "ape"}, result.Items)
	require.Len(t, sink.OfType(events.EventTypePersistFailed), 1)
	assert.Contains(t, result.Summary(), "not saved")

	// Retrying with a working writer succeeds and clears the error.
	o.persist = storage.WriteJSONFile
	require.NoError(t, o.Persist(context.Background(), result))
	assert.NoError(t, result.PersistErr)
	saved, err := readNames(cfg.Output)
	require.NoError(t, err)
	assert.Equal(t, []string{"ant", "ape"}, saved)
}

func TestRunWithoutOutput(t *testing.T) {
	cfg := testConfig(t, "a")
	cfg.Output = ""
	var sink events.Recorder

	result, err := NewOrchestrator(&fakeOracle{}, cfg, WithEvents(&sink)).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Output)
	assert.Empty(t, sink.OfType(events.EventTypePersisted))
}

func TestRunProgressEveryNDiscoveries(t *testing.T) {
	oracleFake := &fakeOracle{responses: map[string]string{
		"a": `["a1","a2","a3"]`,
		"b": `["b1"]`,
	}}
	cfg := testConfig(t, "ab")
	cfg.ProgressEvery = 2
	var sink events.Recorder

	_, err := NewOrchestrator(oracleFake, cfg, WithEvents(&sink)).Run(context.Background())
	require.NoError(t, err)

	progress := sink.OfType(events.EventTypeProgress)
	require.Len(t, progress, 2)
	first, err := progress[0].GetProgressData()
	require.NoError(t, err)
	assert.Equal(t, 3, first.Discovered)
	assert.Equal(t, int64(1), first.Requests)
	second, err := progress[1].GetProgressData()
	require.NoError(t, err)
	assert.Equal(t, 4, second.Discovered)
}

func TestRunProgressInterval(t *testing.T) {
	release := make(chan struct{})
	q := querierFunc(func(ctx context.Context, prefix string) ([]byte, error) {
		if prefix == "a" {
			select {
			case <-release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return []byte(`[]`), nil
	})
	cfg := testConfig(t, "a")
	cfg.ProgressInterval = 10 * time.Millisecond
	cfg.ProgressEvery = 0
	var sink events.Recorder

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := NewOrchestrator(q, cfg, WithEvents(&sink)).Run(context.Background())
		assert.NoError(t, err)
	}()

	require.Eventually(t, func() bool {
		return len(sink.OfType(events.EventTypeProgress)) >= 2
	}, 5*time.Second, 5*time.Millisecond)
	close(release)
	<-done
}

// Every word of up to three letters over {a,b,c}; each query returns the
// words strictly extending the prefix.
func wordsOracle() (Querier, []string) {
	var words []string
	var build func(string)
	build = func(p string) {
		if len(p) == 3 {
			return
		}
		for _, r := range "abc" {
			w := p + string(r)
			words = append(words, w)
			build(w)
		}
	}
	build("")

	q := querierFunc(func(ctx context.Context, prefix string) ([]byte, error) {
		var out []string
		for _, w := range words {
			if len(w) > len(prefix) && strings.HasPrefix(w, prefix) {
				out = append(out, fmt.Sprintf("%q", w))
			}
		}
		return []byte("[" + strings.Join(out, ",") + "]"), nil
	})
	return q, words
}

func TestRunConcurrentWorkersTerminateWithoutDuplicates(t *testing.T) {
	q, words := wordsOracle()
	cfg := testConfig(t, "abc")
	cfg.Workers = 6

	result, err := NewOrchestrator(q, cfg).Run(context.Background())
	require.NoError(t, err)

	seen := make(map[string]bool)
	for _, p := range result.Order {
		assert.False(t, seen[p], "prefix %q queried twice", p)
		seen[p] = true
	}
	assert.Len(t, result.Order, len(words))
	assert.Equal(t, int64(len(words)), result.Requests)
	assert.Len(t, result.Items, len(words)-3)
}

func TestRunArchive(t *testing.T) {
	ctx := context.Background()
	archive, err := storage.NewArchive(ctx, &storage.Config{Path: filepath.Join(t.TempDir(), "runs.db")})
	require.NoError(t, err)
	defer archive.Close()

	oracleFake := &fakeOracle{
		responses: scenario,
		errs:      map[string]error{"b": &oracle.QueryError{Prefix: "b", Attempts: 5, Err: errors.New("boom")}},
	}
	o := NewOrchestrator(oracleFake, testConfig(t, "ab"), WithArchive(archive), WithRunID("run-archived"))
	result, err := o.Run(ctx)
	require.NoError(t, err)

	run, err := archive.GetRun(ctx, "run-archived")
	require.NoError(t, err)
	assert.Equal(t, types.RunStatusCompleted, run.Status)
	assert.Equal(t, 2, run.Discovered)
	assert.Equal(t, int64(4), run.Requests)
	assert.Equal(t, 1, run.Failed)
	assert.Equal(t, result.Output, run.Output)
	require.NotNil(t, run.FinishedAt)

	items, err := archive.GetItems(ctx, "run-archived")
	require.NoError(t, err)
	assert.Equal(t, []string{"ant", "ape"}, items)

	log, err := archive.GetQueries(ctx, "run-archived")
	require.NoError(t, err)
	require.Len(t, log, 4)
	byPrefix := make(map[string]*types.QueryRecord)
	for _, q := range log {
		byPrefix[q.Prefix] = q
	}
	assert.True(t, byPrefix["b"].Failed())
	assert.Equal(t, "keyed", byPrefix["a"].Shape)
	assert.Equal(t, 2, byPrefix["a"].NewItems)
}

func TestResultSummary(t *testing.T) {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	r := &Result{
		Items:       []string{"ant", "ape"},
		Requests:    4,
		Attempts:    6,
		Failed:      []string{"b"},
		StartedAt:   start,
		CompletedAt: start.Add(2 * time.Second),
		Output:      "names.json",
	}
	assert.Equal(t, 2.0, r.Throughput())
	assert.Equal(t,
		"Sweep completed in 2.00 seconds\n"+
			"Total names found: 2\n"+
			"Total requests made: 4 (6 attempts)\n"+
			"Request rate: 2.00 requests/second\n"+
			"Failed prefixes: 1\n"+
			"Output: names.json",
		r.Summary())

	r.Cancelled = true
	r.Malformed = 1
	r.RateLimited = 2
	assert.Contains(t, r.Summary(), "Sweep cancelled")
	assert.Contains(t, r.Summary(), "Malformed responses: 1")
	assert.Contains(t, r.Summary(), "Rate limited: 2 attempts")

	assert.Equal(t, 0.0, (&Result{}).Throughput())
}
