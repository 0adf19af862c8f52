package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sells-group/recipe-cli/internal/resilience"
)

// BreakerStates abstracts resilience.Registry for the collector.
type BreakerStates interface {
	States() map[string]resilience.State
}

// BreakerCollector reports circuit breaker states at scrape time.
type BreakerCollector struct {
	states BreakerStates
	desc   *prometheus.Desc
}

// NewBreakerCollector creates a collector over the given registry.
func NewBreakerCollector(namespace string, states BreakerStates) *BreakerCollector {
	if namespace == "" {
		namespace = "recipe"
	}
	return &BreakerCollector{
		states: states,
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "circuit_breaker_state"),
			"Circuit breaker state per upstream (0 closed, 1 open, 2 half-open).",
			[]string{"service"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *BreakerCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

// Collect implements prometheus.Collector.
func (c *BreakerCollector) Collect(ch chan<- prometheus.Metric) {
	for name, st := range c.states.States() {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, stateValue(st), name)
	}
}

func stateValue(s resilience.State) float64 {
	switch s {
	case resilience.StateOpen:
		return 1
	case resilience.StateHalfOpen:
		return 2
	default:
		return 0
	}
}
