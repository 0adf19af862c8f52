// Package monitoring exposes Prometheus metrics for the extraction service.
package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Tier names used as metric labels.
const (
	TierCache      = "cache"
	TierStructured = "structured"
	TierAI         = "ai"
	TierVideo      = "video"
	TierLinked     = "linked"
	TierTranscript = "transcript"
)

// Tier results used as metric labels.
const (
	ResultHit   = "hit"
	ResultMiss  = "miss"
	ResultError = "error"
)

// Metrics holds the service's collectors. A nil *Metrics is valid and
// records nothing, so library code never has to check.
type Metrics struct {
	registry *prometheus.Registry

	extractions     *prometheus.CounterVec
	failures        *prometheus.CounterVec
	tierAttempts    *prometheus.CounterVec
	quotaLimited    *prometheus.CounterVec
	extractDuration *prometheus.HistogramVec
	storeUp         prometheus.Gauge
}

// NewMetrics registers all collectors on a fresh registry under namespace.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "recipe"
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		extractions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Extraction requests by terminal outcome and recipe source.",
		}, []string{"outcome", "source"}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_failures_total",
			Help:      "Failed extractions by error kind.",
		}, []string{"kind"}),
		tierAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tier_attempts_total",
			Help:      "Extraction tier attempts by tier and result.",
		}, []string{"tier", "result"}),
		quotaLimited: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_limited_total",
			Help:      "Requests refused because the identity reached its ceiling.",
		}, []string{"authenticated"}),
		extractDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_duration_seconds",
			Help:      "Wall time of extraction requests.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60},
		}, []string{"outcome"}),
		storeUp: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_up",
			Help:      "1 when the last store health check succeeded.",
		}),
	}
}

// Register adds an extra collector, such as a BreakerCollector.
func (m *Metrics) Register(c prometheus.Collector) error {
	if m == nil {
		return nil
	}
	return m.registry.Register(c)
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry for tests and custom exporters.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return prometheus.NewRegistry()
	}
	return m.registry
}

// ObserveExtraction records a finished request. source is empty unless the
// outcome is complete.
func (m *Metrics) ObserveExtraction(outcome, source string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.extractions.WithLabelValues(outcome, source).Inc()
	m.extractDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// ObserveFailure counts a terminal error by kind.
func (m *Metrics) ObserveFailure(kind string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(kind).Inc()
}

// ObserveTier counts one attempt of an extraction tier.
func (m *Metrics) ObserveTier(tier, result string) {
	if m == nil {
		return
	}
	m.tierAttempts.WithLabelValues(tier, result).Inc()
}

// ObserveQuotaLimited counts a limit_reached outcome.
func (m *Metrics) ObserveQuotaLimited(authenticated bool) {
	if m == nil {
		return
	}
	label := "false"
	if authenticated {
		label = "true"
	}
	m.quotaLimited.WithLabelValues(label).Inc()
}

// SetStoreUp records the latest store health check.
func (m *Metrics) SetStoreUp(up bool) {
	if m == nil {
		return
	}
	if up {
		m.storeUp.Set(1)
		return
	}
	m.storeUp.Set(0)
}
