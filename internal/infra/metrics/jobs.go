package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		fulfillmentTasksTotal,
		fulfillmentTasksDeadTotal,
		qrIssuedTotal,
		ticketsIssuedTotal,
	)
}

var (
	// result: done|retry|dead
	fulfillmentTasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fulfillment_tasks_total",
			Help: "Fulfillment task executions by kind and result.",
		},
		[]string{"kind", "result"},
	)

	fulfillmentTasksDeadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fulfillment_tasks_dead_total",
			Help: "Tasks that exhausted their retries and need an operator.",
		},
		[]string{"kind"},
	)

	// kind: order|ticket, result: ok|error
	qrIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qr_issued_total",
			Help: "QR codes rendered and uploaded.",
		},
		[]string{"kind", "result"},
	)

	ticketsIssuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tickets_issued_total",
			Help: "Event tickets created.",
		},
	)
)

func IncFulfillmentTask(kind, result string) {
	fulfillmentTasksTotal.WithLabelValues(norm(kind), norm(result)).Inc()
	if norm(result) == "dead" {
		fulfillmentTasksDeadTotal.WithLabelValues(norm(kind)).Inc()
	}
}

func IncQRIssued(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	qrIssuedTotal.WithLabelValues(norm(kind), result).Inc()
}

func AddTicketsIssued(n int) {
	ticketsIssuedTotal.Add(float64(n))
}
