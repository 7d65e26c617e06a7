package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

func init() {
	register(
		paymentsTotal,
		paymentsRevenueTotal,
		paymentCallbacksTotal,
		gatewayRequestsTotal,
	)
}

var (
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payment status transitions (pending/success/failed).",
		},
		[]string{"status"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_total",
			Help: "Monetary value of successful payments, labeled by intent kind.",
		},
		[]string{"kind"},
	)

	// outcome: ignored|already_processed|processed|marked_failed|invalid|error
	paymentCallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_callbacks_total",
			Help: "Gateway callbacks by outcome.",
		},
		[]string{"outcome"},
	)

	// op: token|stk_push|stk_query, result: ok|error
	gatewayRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_gateway_requests_total",
			Help: "Outbound gateway calls by operation and result.",
		},
		[]string{"op", "result"},
	)
)

func IncPayment(status string) {
	paymentsTotal.WithLabelValues(norm(status)).Inc()
}

func AddPaymentRevenue(kind string, amount decimal.Decimal) {
	f, _ := amount.Float64()
	paymentsRevenueTotal.WithLabelValues(norm(kind)).Add(f)
}

func IncPaymentCallback(outcome string) {
	paymentCallbacksTotal.WithLabelValues(norm(outcome)).Inc()
}

func IncGatewayRequest(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	gatewayRequestsTotal.WithLabelValues(norm(op), result).Inc()
}
