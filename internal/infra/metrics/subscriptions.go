package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		subscriptionsActivatedTotal,
		subscriptionsExpiredTotal,
	)
}

var (
	subscriptionsActivatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriptions_activated_total",
			Help: "VIP subscriptions activated by a successful payment.",
		},
	)

	subscriptionsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriptions_expired_total",
			Help: "VIP memberships demoted after their end date passed.",
		},
	)
)

func IncSubscriptionsActivated() {
	subscriptionsActivatedTotal.Inc()
}

func IncSubscriptionsExpired(count int) {
	subscriptionsExpiredTotal.Add(float64(count))
}
