package monitoring

import (
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds the tracker's prometheus collectors on a private registry,
// plus a few atomic counters that back the /health summary
type Metrics struct {
	registry *prometheus.Registry

	fetches          *prometheus.CounterVec
	fetchDuration    *prometheus.HistogramVec
	changes          *prometheus.CounterVec
	snapshots        *prometheus.CounterVec
	changeLogEntries *prometheus.CounterVec
	overallScore     *prometheus.GaugeVec
	runDuration      *prometheus.HistogramVec
	lastRun          *prometheus.GaugeVec
	breakerOpens     *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	cacheLookups     *prometheus.CounterVec

	RequestCount int64
	CacheHits    int64
	CacheMisses  int64
	FetchCount   int64
	FetchErrors  int64
	StartTime    time.Time
}

// NewMetrics creates and registers all collectors
func NewMetrics() *Metrics {
	m := &Metrics{
		registry:  prometheus.NewRegistry(),
		StartTime: time.Now(),

		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "compete_docs_fetches_total",
			Help: "Documentation fetches by vendor and outcome",
		}, []string{"vendor", "status"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "compete_docs_fetch_duration_seconds",
			Help:    "Latency of documentation fetches",
			Buckets: prometheus.DefBuckets,
		}, []string{"vendor"}),
		changes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "compete_docs_changes_total",
			Help: "Documentation content changes detected",
		}, []string{"vendor"}),
		snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "compete_history_snapshots_total",
			Help: "History snapshot attempts by mode and result",
		}, []string{"mode", "result"}),
		changeLogEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "compete_history_changelog_entries_total",
			Help: "Changelog entries appended",
		}, []string{"mode"}),
		overallScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "compete_overall_score",
			Help: "Current weighted overall score per vendor (0-100)",
		}, []string{"vendor"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "compete_run_duration_seconds",
			Help:    "Duration of tracker runs",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"mode"}),
		lastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "compete_last_run_timestamp_seconds",
			Help: "Unix time of the last completed run",
		}, []string{"mode"}),
		breakerOpens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "compete_circuit_breaker_opens_total",
			Help: "Times a vendor circuit breaker opened after repeated transient fetch failures",
		}, []string{"vendor"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "compete_http_requests_total",
			Help: "HTTP requests served by the read-only view",
		}, []string{"path", "status"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "compete_http_cache_lookups_total",
			Help: "Response cache lookups by result",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		m.fetches,
		m.fetchDuration,
		m.changes,
		m.snapshots,
		m.changeLogEntries,
		m.overallScore,
		m.runDuration,
		m.lastRun,
		m.breakerOpens,
		m.httpRequests,
		m.cacheLookups,
		collectors.NewGoCollector(),
	)

	return m
}

// Registry exposes the private registry for promhttp and textfile export
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordFetch records one documentation fetch
func (m *Metrics) RecordFetch(vendor, status string, duration time.Duration) {
	atomic.AddInt64(&m.FetchCount, 1)
	if status != "success" {
		atomic.AddInt64(&m.FetchErrors, 1)
	}
	m.fetches.WithLabelValues(vendor, status).Inc()
	m.fetchDuration.WithLabelValues(vendor).Observe(duration.Seconds())
}

// RecordBreakerOpen counts a vendor breaker opening
func (m *Metrics) RecordBreakerOpen(vendor string) {
	m.breakerOpens.WithLabelValues(vendor).Inc()
}

// RecordChange counts a detected documentation change
func (m *Metrics) RecordChange(vendor string) {
	m.changes.WithLabelValues(vendor).Inc()
}

// RecordSnapshot records whether a run appended a snapshot and a changelog entry
func (m *Metrics) RecordSnapshot(mode string, appended, changeLogged bool) {
	result := "skipped"
	if appended {
		result = "appended"
	}
	m.snapshots.WithLabelValues(mode, result).Inc()
	if changeLogged {
		m.changeLogEntries.WithLabelValues(mode).Inc()
	}
}

// SetScores publishes the current overall score per vendor
func (m *Metrics) SetScores(scores map[string]float64) {
	for vendor, overall := range scores {
		m.overallScore.WithLabelValues(vendor).Set(overall)
	}
}

// ObserveRun records a completed run
func (m *Metrics) ObserveRun(mode string, duration time.Duration) {
	m.runDuration.WithLabelValues(mode).Observe(duration.Seconds())
	m.lastRun.WithLabelValues(mode).SetToCurrentTime()
}

// RecordRequest records a served HTTP request
func (m *Metrics) RecordRequest(path string, statusCode int) {
	atomic.AddInt64(&m.RequestCount, 1)
	m.httpRequests.WithLabelValues(path, strconv.Itoa(statusCode)).Inc()
}

// IncrementCacheHit increments cache hit counter
func (m *Metrics) IncrementCacheHit() {
	atomic.AddInt64(&m.CacheHits, 1)
	m.cacheLookups.WithLabelValues("hit").Inc()
}

// IncrementCacheMiss increments cache miss counter
func (m *Metrics) IncrementCacheMiss() {
	atomic.AddInt64(&m.CacheMisses, 1)
	m.cacheLookups.WithLabelValues("miss").Inc()
}

// WriteTextfile writes all collectors in the node_exporter textfile format.
// An empty path is a no-op.
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}

// GetStats returns a summary for the health endpoint
func (m *Metrics) GetStats() map[string]interface{} {
	hits := atomic.LoadInt64(&m.CacheHits)
	misses := atomic.LoadInt64(&m.CacheMisses)
	hitRate := 0.0
	if hits+misses > 0 {
		hitRate = float64(hits) / float64(hits+misses) * 100
	}

	return map[string]interface{}{
		"uptime_seconds":     time.Since(m.StartTime).Seconds(),
		"request_count":      atomic.LoadInt64(&m.RequestCount),
		"fetch_count":        atomic.LoadInt64(&m.FetchCount),
		"fetch_errors":       atomic.LoadInt64(&m.FetchErrors),
		"cache_hits":         hits,
		"cache_misses":       misses,
		"cache_hit_rate_pct": hitRate,
	}
}
