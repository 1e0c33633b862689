// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PaymentsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_created_total",
		Help: "Payments successfully opened, by currency.",
	}, []string{"currency"})

	PaymentTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_transitions_total",
		Help: "Terminal status transitions applied, by status and trigger.",
	}, []string{"status", "trigger"})

	WebhooksReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhooks_received_total",
		Help: "Inbound gateway webhooks, by outcome.",
	}, []string{"outcome"})

	SignatureRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webhook_signature_rejections_total",
		Help: "Webhooks rejected for an invalid signature.",
	})

	UnsignedWebhooksAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webhook_unsigned_accepted_total",
		Help: "Webhooks accepted without a signature (permissive mode).",
	})
)
