package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(adminRequestTotal) }

var adminRequestTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "admin_request_total",
		Help: "Tracks attempts to use admin endpoints.",
	},
	[]string{"action", "status"}, // status: 'authorized', 'unauthorized'
)

func IncAdminRequest(action, status string) {
	adminRequestTotal.WithLabelValues(norm(action), norm(status)).Inc()
}
