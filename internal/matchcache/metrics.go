package matchcache

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricWarmupRunsTotal         = "matchcache_warmup_runs_total"
	MetricWarmupErrorsTotal       = "matchcache_warmup_errors_total"
	MetricWarmupDuration          = "matchcache_warmup_duration_seconds"
	MetricWarmupUsersProcessed    = "matchcache_warmup_last_users_processed"
	MetricWarmupEntriesCached     = "matchcache_warmup_last_entries_cached"
	MetricExpiredSweptTotal       = "matchcache_expired_swept_total"
	MetricLastWarmupTimestampName = "matchcache_last_warmup_timestamp"
)

// Metrics contains Prometheus metrics for the match cache warm-up and
// sweep cycles. All operations are thread-safe.
type Metrics struct {
	warmupRuns          prometheus.Counter
	warmupErrors        prometheus.Counter
	warmupDuration      prometheus.Histogram
	lastUsersProcessed  prometheus.Gauge
	lastEntriesCached   prometheus.Gauge
	expiredSwept        prometheus.Counter
	lastWarmupTimestamp prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all collectors
// initialized. The metrics are not registered; call Register.
func NewMetrics() *Metrics {
	return &Metrics{
		warmupRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricWarmupRunsTotal,
			Help: "Total number of match cache warm-up cycles",
		}),
		warmupErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricWarmupErrorsTotal,
			Help: "Total number of match cache warm-up errors",
		}),
		warmupDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricWarmupDuration,
			Help:    "Histogram of match cache warm-up cycle duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
		}),
		lastUsersProcessed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricWarmupUsersProcessed,
			Help: "Number of users processed in the last warm-up cycle",
		}),
		lastEntriesCached: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricWarmupEntriesCached,
			Help: "Number of match entries cached in the last warm-up cycle",
		}),
		expiredSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricExpiredSweptTotal,
			Help: "Total number of expired match cache entries removed",
		}),
		lastWarmupTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricLastWarmupTimestampName,
			Help: "Unix timestamp of the last match cache warm-up cycle",
		}),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncWarmupRuns increments the warm-up cycle counter.
func (m *Metrics) IncWarmupRuns() { m.warmupRuns.Inc() }

// IncWarmupErrors increments the warm-up error counter.
func (m *Metrics) IncWarmupErrors() { m.warmupErrors.Inc() }

// ObserveWarmupDuration records a warm-up cycle duration sample.
func (m *Metrics) ObserveWarmupDuration(seconds float64) { m.warmupDuration.Observe(seconds) }

// SetLastUsersProcessed sets the users-processed gauge.
func (m *Metrics) SetLastUsersProcessed(count float64) { m.lastUsersProcessed.Set(count) }

// SetLastEntriesCached sets the entries-cached gauge.
func (m *Metrics) SetLastEntriesCached(count float64) { m.lastEntriesCached.Set(count) }

// AddExpiredSwept adds to the expired-entries counter.
func (m *Metrics) AddExpiredSwept(count float64) { m.expiredSwept.Add(count) }

// SetLastWarmupTimestamp sets the last warm-up timestamp gauge.
func (m *Metrics) SetLastWarmupTimestamp(timestamp float64) { m.lastWarmupTimestamp.Set(timestamp) }

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.warmupRuns,
		m.warmupErrors,
		m.warmupDuration,
		m.lastUsersProcessed,
		m.lastEntriesCached,
		m.expiredSwept,
		m.lastWarmupTimestamp,
	}
}
