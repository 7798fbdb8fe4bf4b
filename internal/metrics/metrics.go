// Package metrics exposes sweep progress as Prometheus metrics.
//
// Metrics are fed from the event stream: a *Metrics is an events.Sink and
// is usually combined with the log sink through events.Multi. Every run
// gets its own registry so tests and repeated runs never collide on the
// global default registry.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/steveyegge/acsweep/internal/events"
)

const namespace = "acsweep"

// Metrics holds the sweep collectors.
type Metrics struct {
	registry *prometheus.Registry

	// QueriesTotal counts finished prefix queries.
	// Labels: outcome (ok, failed), shape (strings, records, keyed, keyed-fallback, unrecognized)
	QueriesTotal *prometheus.CounterVec

	// ItemsDiscoveredTotal counts newly discovered items.
	ItemsDiscoveredTotal prometheus.Counter

	// MalformedTotal counts responses of no recognized shape.
	MalformedTotal prometheus.Counter

	// RateLimitedTotal counts throttled attempts.
	RateLimitedTotal prometheus.Counter

	// RetriesTotal counts attempts that failed for other reasons.
	RetriesTotal prometheus.Counter

	// BackoffWaitSeconds observes the wait scheduled after each failed attempt.
	// Labels: reason (rate_limited, retry)
	BackoffWaitSeconds *prometheus.HistogramVec

	// PagesTotal counts follow-up result pages.
	PagesTotal prometheus.Counter

	// FrontierQueued is the number of pending prefixes at the last progress report.
	FrontierQueued prometheus.Gauge

	// InterRequestDelaySeconds is the current pacing floor.
	InterRequestDelaySeconds prometheus.Gauge

	// BreakerState is 0 closed, 1 open, 2 half-open.
	BreakerState prometheus.Gauge

	// PersistFailuresTotal counts failed writes of the output file.
	PersistFailuresTotal prometheus.Counter

	// PersistedItems is the number of items in the last successful write.
	PersistedItems prometheus.Gauge
}

// New registers the sweep collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		QueriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Finished prefix queries by outcome and response shape",
		}, []string{"outcome", "shape"}),
		ItemsDiscoveredTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_discovered_total",
			Help:      "Distinct items discovered",
		}),
		MalformedTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_responses_total",
			Help:      "Responses with no recognized shape",
		}),
		RateLimitedTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "rate_limited_total",
			Help:      "Attempts rejected by the oracle's rate limiter",
		}),
		RetriesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "retries_total",
			Help:      "Attempts that failed with a transient error",
		}),
		BackoffWaitSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "backoff_wait_seconds",
			Help:      "Wait scheduled after a failed attempt",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}, []string{"reason"}),
		PagesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_total",
			Help:      "Follow-up result pages fetched",
		}),
		FrontierQueued: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "frontier",
			Name:      "queued",
			Help:      "Prefixes waiting to be queried",
		}),
		InterRequestDelaySeconds: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "inter_request_delay_seconds",
			Help:      "Current pacing delay paid before every attempt",
		}),
		BreakerState: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "breaker_state",
			Help:      "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		}),
		PersistFailuresTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_failures_total",
			Help:      "Failed writes of the output file",
		}),
		PersistedItems: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "persisted_items",
			Help:      "Items in the last successful write of the output file",
		}),
	}
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Emit updates the collectors from e.
func (m *Metrics) Emit(e *events.Event) {
	switch e.Type {
	case events.EventTypeQueryCompleted:
		data, err := e.GetQueryCompletedData()
		if err != nil {
			return
		}
		m.QueriesTotal.WithLabelValues("ok", data.Shape).Inc()
		m.ItemsDiscoveredTotal.Add(float64(data.NewItems))
		m.PagesTotal.Add(float64(data.Pages))

	case events.EventTypePrefixFailed:
		m.QueriesTotal.WithLabelValues("failed", "").Inc()

	case events.EventTypeMalformedResponse:
		m.MalformedTotal.Inc()

	case events.EventTypeRateLimited:
		m.RateLimitedTotal.Inc()
		if data, err := e.GetRateLimitedData(); err == nil {
			m.InterRequestDelaySeconds.Set(msToSeconds(data.InterDelayMs))
			m.BackoffWaitSeconds.WithLabelValues("rate_limited").Observe(msToSeconds(data.WaitMs))
		}

	case events.EventTypeRetry:
		m.RetriesTotal.Inc()
		if data, err := e.GetRetryData(); err == nil {
			m.BackoffWaitSeconds.WithLabelValues("retry").Observe(msToSeconds(data.WaitMs))
		}

	case events.EventTypePersisted:
		if data, err := e.GetPersistData(); err == nil {
			m.PersistedItems.Set(float64(data.Count))
		}

	case events.EventTypeProgress:
		if data, err := e.GetProgressData(); err == nil {
			m.FrontierQueued.Set(float64(data.Queued))
			m.InterRequestDelaySeconds.Set(msToSeconds(data.InterDelay))
		}

	case events.EventTypeCircuitBreakerStateChange:
		if data, err := e.GetCircuitBreakerData(); err == nil {
			m.BreakerState.Set(breakerValue(data.To))
		}

	case events.EventTypePersistFailed:
		m.PersistFailuresTotal.Inc()
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving metrics", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}

func msToSeconds(ms int64) float64 {
	return float64(ms) / 1000
}

func breakerValue(state string) float64 {
	switch state {
	case "OPEN":
		return 1
	case "HALF_OPEN":
		return 2
	default:
		return 0
	}
}
