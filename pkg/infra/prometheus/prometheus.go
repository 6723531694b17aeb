package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var registry = prometheus.NewRegistry()

var registerer = prometheus.WrapRegistererWith(nil, registry)

var (
	RateLimitChecksTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "secgate_ratelimit_checks_total",
			Help: "Total number of rate limit checks by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	RateLimitActiveKeys = promauto.With(registerer).NewGauge(
		prometheus.GaugeOpts{
			Name: "secgate_ratelimit_active_keys",
			Help: "Number of live fixed-window entries in the store",
		},
	)

	HTTPRequestsTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "secgate_requests_total",
			Help: "Total number of HTTP requests processed by the limiter service",
		},
		[]string{"method", "status"},
	)
)

func Initialize() {
	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Registry exposes the private registry for the metrics endpoint.
func Registry() *prometheus.Registry {
	return registry
}
