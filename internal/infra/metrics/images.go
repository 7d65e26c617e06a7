package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		imageProxyRequestsTotal,
		imageProxyUpstreamSeconds,
	)
}

var (
	// route: path|product|event|order|ticket
	imageProxyRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_proxy_requests_total",
			Help: "Image proxy responses by route and status code.",
		},
		[]string{"route", "status"},
	)

	imageProxyUpstreamSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "image_proxy_upstream_seconds",
			Help:    "Latency of the sign+fetch round trip to object storage.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route"},
	)
)

func IncImageProxy(route string, status int) {
	imageProxyRequestsTotal.WithLabelValues(norm(route), strconv.Itoa(status)).Inc()
}

func ObserveImageUpstream(route string, seconds float64) {
	imageProxyUpstreamSeconds.WithLabelValues(norm(route)).Observe(seconds)
}
