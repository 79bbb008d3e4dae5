// Package metrics exposes Engram's runtime counters through
// github.com/prometheus/client_golang, replacing a hand-rolled collector
// with the library the rest of the pack reaches for (see DESIGN.md). It
// tracks the ingestion pipeline, the committer, the query planner, and
// the retention sweeper — the Prometheus analogue of spec §4.10's event
// bus, for operators rather than in-process subscribers.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/engramhq/engram/internal/ekind"
	"github.com/engramhq/engram/internal/types"
)

// Collector owns a private Prometheus registry (rather than the global
// default one) so multiple Collectors can coexist in tests without
// "duplicate metrics collector registration" panics.
type Collector struct {
	registry *prometheus.Registry

	capturesIngested *prometheus.CounterVec
	capturesDropped  *prometheus.CounterVec

	embedLatency  prometheus.Histogram
	commitLatency prometheus.Histogram
	queryLatency  *prometheus.HistogramVec

	storeBytes  prometheus.Gauge
	tierGauge   *prometheus.GaugeVec
	vectorCount prometheus.Gauge

	sweeps prometheus.Counter
}

// NewCollector builds a Collector with every metric registered against a
// fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{registry: reg}

	c.capturesIngested = promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Namespace: "engram",
		Name:      "captures_ingested_total",
		Help:      "Captures successfully committed, by source kind.",
	}, []string{"kind"})

	c.capturesDropped = promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Namespace: "engram",
		Name:      "captures_dropped_total",
		Help:      "Captures dropped before commit, by source kind and reason.",
	}, []string{"kind", "reason"})

	c.embedLatency = promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
		Namespace: "engram",
		Name:      "embed_latency_seconds",
		Help:      "Time spent producing an embedding for one capture.",
		Buckets:   prometheus.DefBuckets,
	})

	c.commitLatency = promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
		Namespace: "engram",
		Name:      "commit_latency_seconds",
		Help:      "Time spent in the dual-write committer's Steps A-C.",
		Buckets:   prometheus.DefBuckets,
	})

	c.queryLatency = promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "engram",
		Name:      "query_latency_seconds",
		Help:      "Search latency by query mode.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"mode"})

	c.storeBytes = promauto.With(reg).NewGauge(prometheus.GaugeOpts{
		Namespace: "engram",
		Name:      "store_bytes",
		Help:      "On-disk size of the record store's database file.",
	})

	c.tierGauge = promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "engram",
		Name:      "captures_by_tier",
		Help:      "Current capture count per retention tier.",
	}, []string{"tier"})

	c.vectorCount = promauto.With(reg).NewGauge(prometheus.GaugeOpts{
		Namespace: "engram",
		Name:      "vector_index_size",
		Help:      "Number of live entries in the vector index.",
	})

	c.sweeps = promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Namespace: "engram",
		Name:      "retention_sweeps_total",
		Help:      "Retention sweeps completed since startup.",
	})

	return c
}

// RecordIngested increments the ingested counter for kind.
func (c *Collector) RecordIngested(kind types.Kind) {
	c.capturesIngested.WithLabelValues(string(kind)).Inc()
}

// RecordDropped increments the dropped counter for kind and reason.
func (c *Collector) RecordDropped(kind types.Kind, reason ekind.DropReason) {
	c.capturesDropped.WithLabelValues(string(kind), string(reason)).Inc()
}

// ObserveEmbedLatency records how long one embedding call took.
func (c *Collector) ObserveEmbedLatency(d time.Duration) {
	c.embedLatency.Observe(d.Seconds())
}

// ObserveCommitLatency records how long one Commit call took.
func (c *Collector) ObserveCommitLatency(d time.Duration) {
	c.commitLatency.Observe(d.Seconds())
}

// ObserveQueryLatency records one Search call's latency under mode.
func (c *Collector) ObserveQueryLatency(mode string, d time.Duration) {
	c.queryLatency.WithLabelValues(mode).Observe(d.Seconds())
}

// SetStoreBytes reports the record store's current on-disk size.
func (c *Collector) SetStoreBytes(n int64) {
	c.storeBytes.Set(float64(n))
}

// SetTierCounts reports the current hot/warm/cold distribution.
func (c *Collector) SetTierCounts(hot, warm, cold int64) {
	c.tierGauge.WithLabelValues(string(types.TierHot)).Set(float64(hot))
	c.tierGauge.WithLabelValues(string(types.TierWarm)).Set(float64(warm))
	c.tierGauge.WithLabelValues(string(types.TierCold)).Set(float64(cold))
}

// SetVectorCount reports the vector index's current live-entry count.
func (c *Collector) SetVectorCount(n int) {
	c.vectorCount.Set(float64(n))
}

// RecordSweep increments the completed-sweep counter.
func (c *Collector) RecordSweep() {
	c.sweeps.Inc()
}

// Handler returns the promhttp handler serving this Collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve starts a bare net/http server exposing /metrics on addr and blocks
// until ctx is cancelled. A router is unnecessary for a single fixed
// route, matching spec.md's stance that the core carries no HTTP surface
// of its own beyond this operator-facing exposition endpoint.
func (c *Collector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics: shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("metrics: serve: %w", err)
		}
		return nil
	}
}
