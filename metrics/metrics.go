package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coursepay_http_request_duration_seconds",
			Help:    "Time taken to serve HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	CheckoutSessions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coursepay_checkout_sessions_total",
			Help: "Checkout sessions by outcome",
		},
		[]string{"outcome"},
	)

	WebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coursepay_webhook_events_total",
			Help: "Webhook events by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	SweptPayments = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "coursepay_swept_pending_payments_total",
			Help: "Abandoned pending payments removed by the expiry sweep",
		},
	)
)

// Outcome label values shared by checkout and webhook counters. Webhook
// events that were processed carry the reconciliation outcome instead.
const (
	OutcomeCreated  = "created"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(RequestDuration, CheckoutSessions, WebhookEvents, SweptPayments)
}
