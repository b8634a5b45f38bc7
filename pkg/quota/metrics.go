package quota

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Decision outcomes used as the "outcome" label.
const (
	outcomeAllowed        = "allowed"
	outcomeUnlimited      = "unlimited"
	outcomeFallback       = "fallback"
	outcomeExceeded       = "exceeded"
	outcomeNoSubscription = "no_subscription"
	outcomeUnknownPlan    = "unknown_plan"
	outcomeInactive       = "inactive"
	outcomeInvalid        = "invalid"
)

// Metrics holds the engine's Prometheus instruments. A nil *Metrics records nothing.
type Metrics struct {
	decisions      *prometheus.CounterVec
	fallbacks      *prometheus.CounterVec
	recordFailures *prometheus.CounterVec
	storeLatency   *prometheus.HistogramVec
	cacheLookups   *prometheus.CounterVec
}

// NewMetrics creates the instruments and registers them with reg when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "quota",
				Subsystem: "engine",
				Name:      "decisions_total",
				Help:      "Quota decisions by action and outcome",
			},
			[]string{"action", "outcome"},
		),
		fallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "quota",
				Subsystem: "engine",
				Name:      "fallbacks_total",
				Help:      "Reads answered with the fail-open fallback by operation",
			},
			[]string{"operation"},
		),
		recordFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "quota",
				Subsystem: "engine",
				Name:      "record_failures_total",
				Help:      "Usage increments that failed after the action was admitted",
			},
			[]string{"action"},
		),
		storeLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "quota",
				Subsystem: "store",
				Name:      "operation_duration_seconds",
				Help:      "Latency of usage and subscription store calls",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"operation"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "quota",
				Subsystem: "cache",
				Name:      "lookups_total",
				Help:      "Read cache lookups by cache and result",
			},
			[]string{"cache", "result"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.decisions, m.fallbacks, m.recordFailures, m.storeLatency, m.cacheLookups)
	}
	return m
}

func (m *Metrics) decision(action, outcome string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) fallback(operation string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(operation).Inc()
}

func (m *Metrics) recordFailure(action string) {
	if m == nil {
		return
	}
	m.recordFailures.WithLabelValues(action).Inc()
}

func (m *Metrics) observeStore(operation string, start time.Time) {
	if m == nil {
		return
	}
	m.storeLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) cacheLookup(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(cache, result).Inc()
}
