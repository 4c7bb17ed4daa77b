// Package metrics exposes process-wide Prometheus metrics for the round pipeline and the maintenance tick.
//
// Per-invocation counters live in [stats.Tracker] and [models.BackfillMetrics]; the [Collector] aggregates them across invocations for scraping.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns a private registry so tests and multiple servers in one process never collide.
type Collector struct {
	registry *prometheus.Registry

	catalogCalls    *prometheus.CounterVec
	catalogLatency  *prometheus.HistogramVec
	tickItems       *prometheus.CounterVec
	tickDuration    prometheus.Histogram
	tickRemaining   prometheus.Gauge
	backfillGenres  *prometheus.CounterVec
	healingActions  *prometheus.CounterVec
	poolSize        *prometheus.HistogramVec
	candidateSource *prometheus.CounterVec
}

// NewCollector creates and registers all metrics.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		catalogCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jukebox_catalog_calls_total",
			Help: "Catalog API calls by category and outcome.",
		}, []string{"category", "outcome"}),
		catalogLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jukebox_catalog_call_seconds",
			Help:    "Catalog API call latency.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"category"}),
		tickItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jukebox_tick_items_total",
			Help: "Lazy update items handled by maintenance ticks, by outcome.",
		}, []string{"outcome"}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "jukebox_tick_duration_seconds",
			Help:    "Wall-clock duration of maintenance ticks.",
			Buckets: []float64{0.1, 0.5, 1, 2, 4, 6, 8, 10},
		}),
		tickRemaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "jukebox_tick_remaining_items",
			Help: "Claimed items deferred to the next tick by the most recent tick.",
		}),
		backfillGenres: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jukebox_backfill_tracks_total",
			Help: "Tracks handled by the genre backfill crawler, by outcome.",
		}, []string{"outcome"}),
		healingActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jukebox_healing_actions_total",
			Help: "Healing actions dispatched, by type and outcome.",
		}, []string{"type", "outcome"}),
		poolSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jukebox_round_pool_size",
			Help:    "Size of candidate sets produced per stage.",
			Buckets: prometheus.LinearBuckets(0, 20, 8),
		}, []string{"stage"}),
		candidateSource: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jukebox_candidates_total",
			Help: "Candidates produced, by source.",
		}, []string{"source"}),
	}

	c.registry.MustRegister(
		c.catalogCalls,
		c.catalogLatency,
		c.tickItems,
		c.tickDuration,
		c.tickRemaining,
		c.backfillGenres,
		c.healingActions,
		c.poolSize,
		c.candidateSource,
	)

	return c
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// ObserveCatalogCall implements [stats.Observer].
func (c *Collector) ObserveCatalogCall(category string, ok bool, d time.Duration) {
	if c == nil {
		return
	}
	c.catalogCalls.WithLabelValues(category, outcome(ok)).Inc()
	c.catalogLatency.WithLabelValues(category).Observe(d.Seconds())
}

// RecordTick records the outcome of one maintenance tick.
func (c *Collector) RecordTick(processed, failed, remaining int, d time.Duration) {
	if c == nil {
		return
	}
	c.tickItems.WithLabelValues("completed").Add(float64(processed))
	c.tickItems.WithLabelValues("failed").Add(float64(failed))
	c.tickItems.WithLabelValues("deferred").Add(float64(remaining))
	c.tickRemaining.Set(float64(remaining))
	c.tickDuration.Observe(d.Seconds())
}

// RecordBackfill adds one backfill batch delta.
func (c *Collector) RecordBackfill(successes, failures int) {
	if c == nil {
		return
	}
	c.backfillGenres.WithLabelValues("success").Add(float64(successes))
	c.backfillGenres.WithLabelValues("failure").Add(float64(failures))
}

// RecordHealing counts one dispatched healing action.
func (c *Collector) RecordHealing(actionType string, ok bool) {
	if c == nil {
		return
	}
	c.healingActions.WithLabelValues(actionType, outcome(ok)).Inc()
}

// RecordPool records a stage's output size and per-source candidate counts.
func (c *Collector) RecordPool(stage string, size int, bySource map[string]int) {
	if c == nil {
		return
	}
	c.poolSize.WithLabelValues(stage).Observe(float64(size))
	for source, n := range bySource {
		c.candidateSource.WithLabelValues(source).Add(float64(n))
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
