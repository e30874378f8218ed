package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the Prometheus collectors shared across the three
// services (spec §7 "all rejections increment Prometheus counters
// labeled (reason, emitter) and scenario_id where present", §9 "named
// metrics bound to the server instance, registered at startup"). Each
// cmd/* binary constructs its own *Metrics and threads it through its
// handlers rather than reaching for package-level globals.
type Metrics struct {
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	RejectionsTotal   *prometheus.CounterVec
	RateLimitRemain   *prometheus.GaugeVec
	BreakerState      *prometheus.GaugeVec
	RecordsAccepted   prometheus.Counter
	DownstreamRetries *prometheus.CounterVec
}

// NewMetrics registers and returns a fresh Metrics bound to reg. Pass
// prometheus.NewRegistry() in tests to avoid collisions with other
// services' default registries.
func NewMetrics(reg prometheus.Registerer, service string) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "logops",
			Subsystem: service,
			Name:      "requests_total",
			Help:      "Total requests handled, labeled by route and status.",
		}, []string{"route", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "logops",
			Subsystem: service,
			Name:      "request_duration_seconds",
			Help:      "Request handling latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		RejectionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "logops",
			Subsystem: service,
			Name:      "rejections_total",
			Help:      "Rejected requests labeled by taxonomy reason, emitter and scenario_id (spec §7).",
		}, []string{"reason", "emitter", "scenario_id"}),
		RateLimitRemain: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "logops",
			Subsystem: service,
			Name:      "rate_limit_remaining_tokens",
			Help:      "Remaining tokens in the per-emitter bucket after the last request.",
		}, []string{"emitter"}),
		BreakerState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "logops",
			Subsystem: service,
			Name:      "breaker_state",
			Help:      "Circuit breaker state: 0=closed, 1=half_open, 2=open.",
		}, []string{"target"}),
		RecordsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "logops",
			Subsystem: service,
			Name:      "records_accepted_total",
			Help:      "Total records accepted and persisted by the Core Sink.",
		}),
		DownstreamRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "logops",
			Subsystem: service,
			Name:      "downstream_retries_total",
			Help:      "Retry attempts made against a downstream target.",
		}, []string{"target"}),
	}
}

// BreakerStateValue maps a breaker.State string to the numeric gauge value
// documented on Metrics.BreakerState.
func BreakerStateValue(state string) float64 {
	switch state {
	case "half_open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}
