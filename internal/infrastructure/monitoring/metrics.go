package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pagesense"

// Metrics holds all Prometheus metrics.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Cache metrics
	CacheHits          *prometheus.CounterVec
	CacheMisses        prometheus.Counter
	CacheComputes      prometheus.Counter
	CacheComputeErrors prometheus.Counter
	ComputeDuration    prometheus.Histogram
	CacheEvictions     *prometheus.CounterVec
	DiskErrors         *prometheus.CounterVec
	MemoryEntries      prometheus.Gauge
	ActiveLocks        prometheus.Gauge

	// Pipeline metrics
	PhaseDuration *prometheus.HistogramVec
	PhaseOutcomes *prometheus.CounterVec

	// Extraction metrics
	Extractions    *prometheus.CounterVec
	ExtractedItems *prometheus.CounterVec
	Fallbacks      *prometheus.CounterVec

	// Cross-validation metrics
	Agreements *prometheus.CounterVec

	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	TotalRequests  int64   `json:"total_requests"`
	TotalErrors    int64   `json:"total_errors"`
	CacheHits      int64   `json:"cache_hits"`
	CacheMisses    int64   `json:"cache_misses"`
	Computes       int64   `json:"computes"`
	ComputeErrors  int64   `json:"compute_errors"`
	Extractions    int64   `json:"extractions"`
	Fallbacks      int64   `json:"fallbacks"`
	TotalDuration  float64 `json:"-"` // sum of all request durations
	RequestCount   int64   `json:"-"` // count for averaging
	AvgRequestSecs float64 `json:"avg_request_seconds"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
}

// NewMetrics creates a metrics collector on its own registry, so several
// instances can coexist in tests.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of admin HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Admin HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		// Cache metrics
		CacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Understanding cache hits by tier",
			},
			[]string{"tier"},
		),
		CacheMisses: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Understanding cache misses",
			},
		),
		CacheComputes: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_computes_total",
				Help:      "Understanding computations run on a miss",
			},
		),
		CacheComputeErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_compute_errors_total",
				Help:      "Understanding computations that failed",
			},
		),
		ComputeDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "cache_compute_duration_seconds",
				Help:      "Understanding computation duration in seconds",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),
		CacheEvictions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_evictions_total",
				Help:      "Cache entries evicted by tier and reason",
			},
			[]string{"tier", "reason"},
		),
		DiskErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_disk_errors_total",
				Help:      "Disk cache I/O errors by operation",
			},
			[]string{"op"},
		),
		MemoryEntries: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cache_memory_entries",
				Help:      "Entries in the memory LRU",
			},
		),
		ActiveLocks: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cache_active_locks",
				Help:      "Per-key lock entries currently tracked",
			},
		),

		// Pipeline metrics
		PhaseDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pipeline_phase_duration_seconds",
				Help:      "Understanding pipeline phase duration in seconds",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"phase"},
		),
		PhaseOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pipeline_phase_outcomes_total",
				Help:      "Understanding pipeline phase outcomes",
			},
			[]string{"phase", "outcome"},
		),

		// Extraction metrics
		Extractions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "extractions_total",
				Help:      "Extraction calls by method and outcome",
			},
			[]string{"method", "outcome"},
		),
		ExtractedItems: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "extracted_items_total",
				Help:      "Items extracted by method",
			},
			[]string{"method"},
		),
		Fallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "extraction_fallbacks_total",
				Help:      "Fallback hops taken after an empty primary extraction",
			},
			[]string{"from", "to"},
		),

		// Cross-validation metrics
		Agreements: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "crossval_matches_total",
				Help:      "OCR/DOM matches by agreement type",
			},
			[]string{"agreement"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Process uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry returns the registry backing these metrics
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.TotalDuration += duration.Seconds()
	m.snapshot.RequestCount++
	if status[0] == '4' || status[0] == '5' {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordCacheHit records a hit in the given tier ("memory" or "disk")
func (m *Metrics) RecordCacheHit(tier string) {
	if m == nil {
		return
	}
	m.CacheHits.WithLabelValues(tier).Inc()
	m.mu.Lock()
	m.snapshot.CacheHits++
	m.mu.Unlock()
}

// RecordCacheMiss records a miss in both tiers
func (m *Metrics) RecordCacheMiss() {
	if m == nil {
		return
	}
	m.CacheMisses.Inc()
	m.mu.Lock()
	m.snapshot.CacheMisses++
	m.mu.Unlock()
}

// RecordCompute records one computation and its outcome
func (m *Metrics) RecordCompute(duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.CacheComputes.Inc()
	m.ComputeDuration.Observe(duration.Seconds())
	m.mu.Lock()
	m.snapshot.Computes++
	if err != nil {
		m.snapshot.ComputeErrors++
	}
	m.mu.Unlock()
	if err != nil {
		m.CacheComputeErrors.Inc()
	}
}

// RecordEviction records an evicted cache entry
func (m *Metrics) RecordEviction(tier, reason string) {
	if m == nil {
		return
	}
	m.CacheEvictions.WithLabelValues(tier, reason).Inc()
}

// RecordDiskError records a swallowed disk I/O error
func (m *Metrics) RecordDiskError(op string) {
	if m == nil {
		return
	}
	m.DiskErrors.WithLabelValues(op).Inc()
}

// SetCacheGauges sets memory entry and lock table gauges
func (m *Metrics) SetCacheGauges(memoryEntries, activeLocks int) {
	if m == nil {
		return
	}
	m.MemoryEntries.Set(float64(memoryEntries))
	m.ActiveLocks.Set(float64(activeLocks))
}

// RecordPhase records a pipeline phase duration and outcome
func (m *Metrics) RecordPhase(phase, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.PhaseDuration.WithLabelValues(phase).Observe(duration.Seconds())
	m.PhaseOutcomes.WithLabelValues(phase, outcome).Inc()
}

// RecordExtraction records an extraction attempt and its item count
func (m *Metrics) RecordExtraction(method string, items int) {
	if m == nil {
		return
	}
	outcome := "items"
	if items == 0 {
		outcome = "empty"
	}
	m.Extractions.WithLabelValues(method, outcome).Inc()
	m.ExtractedItems.WithLabelValues(method).Add(float64(items))
	m.mu.Lock()
	m.snapshot.Extractions++
	m.mu.Unlock()
}

// RecordFallback records a fallback hop
func (m *Metrics) RecordFallback(from, to string) {
	if m == nil {
		return
	}
	m.Fallbacks.WithLabelValues(from, to).Inc()
	m.mu.Lock()
	m.snapshot.Fallbacks++
	m.mu.Unlock()
}

// RecordAgreement records one cross-validation match
func (m *Metrics) RecordAgreement(agreement string) {
	if m == nil {
		return
	}
	m.Agreements.WithLabelValues(agreement).Inc()
}

// Snapshot returns current values for the JSON stats endpoint
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	m.mu.RLock()
	s := m.snapshot
	m.mu.RUnlock()

	if s.RequestCount > 0 {
		s.AvgRequestSecs = s.TotalDuration / float64(s.RequestCount)
	}
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}
