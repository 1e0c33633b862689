// internal/gateway/webhook.go
package gateway

import (
	"encoding/json"

	"github.com/jawaddepp/crypto-payments-api/internal/models"
)

// WebhookEventKind tags which envelope layout a payload matched.
type WebhookEventKind string

const (
	// EventKindFlat is the current layout: ids and status at top level.
	EventKindFlat WebhookEventKind = "flat"
	// EventKindNested is the older event layout: a type field plus the
	// payment resource under "data".
	EventKindNested WebhookEventKind = "nested"
	// EventKindUnrecognized means no known layout matched; the event
	// cannot be correlated with a payment.
	EventKindUnrecognized WebhookEventKind = "unrecognized"
)

// WebhookEvent is a gateway webhook payload resolved into one
// normalized shape at the boundary, so the reconciliation core never
// inspects raw layouts.
type WebhookEvent struct {
	Kind             WebhookEventKind
	GatewayPaymentID string
	OrderID          string
	Status           string
	TxHash           string
	ConfirmedAt      string
}

type flatEnvelope struct {
	ID          string `json:"id"`
	PaymentID   string `json:"payment_id"`
	OrderID     string `json:"order_id"`
	Status      string `json:"status"`
	TxHash      string `json:"tx_hash"`
	ConfirmedAt string `json:"confirmed_at"`
}

type nestedEnvelope struct {
	Type string       `json:"type"`
	Data flatEnvelope `json:"data"`
}

// ParseWebhookEvent resolves a raw webhook body into a WebhookEvent.
// Unparseable bodies and unknown layouts come back as unrecognized
// rather than an error; the caller decides how to answer the gateway.
func ParseWebhookEvent(raw []byte) *WebhookEvent {
	var nested nestedEnvelope
	if err := json.Unmarshal(raw, &nested); err == nil && nested.Type != "" {
		evt := fromFlat(nested.Data)
		evt.Kind = EventKindNested
		if evt.Status == "" {
			evt.Status = statusFromEventType(nested.Type)
		}
		if evt.GatewayPaymentID == "" && evt.OrderID == "" {
			evt.Kind = EventKindUnrecognized
		}
		return evt
	}

	var flat flatEnvelope
	if err := json.Unmarshal(raw, &flat); err == nil {
		evt := fromFlat(flat)
		evt.Kind = EventKindFlat
		if evt.GatewayPaymentID == "" && evt.OrderID == "" {
			evt.Kind = EventKindUnrecognized
		}
		return evt
	}

	return &WebhookEvent{Kind: EventKindUnrecognized}
}

func fromFlat(f flatEnvelope) *WebhookEvent {
	gatewayID := f.ID
	if gatewayID == "" {
		gatewayID = f.PaymentID
	}
	return &WebhookEvent{
		GatewayPaymentID: gatewayID,
		OrderID:          f.OrderID,
		Status:           f.Status,
		TxHash:           f.TxHash,
		ConfirmedAt:      f.ConfirmedAt,
	}
}

func statusFromEventType(eventType string) string {
	switch eventType {
	case "payment.confirmed", "payment.completed":
		return "completed"
	case "payment.failed":
		return "failed"
	case "payment.expired":
		return "expired"
	}
	return ""
}

// TargetStatus maps the event's settlement indicator onto the local
// terminal status it calls for. Empty means the event is informational
// (e.g. a pending ping) and no transition applies.
func (e *WebhookEvent) TargetStatus() models.PaymentStatus {
	switch {
	case statusSettled(e.Status, e.ConfirmedAt):
		return models.PaymentStatusConfirmed
	case statusFailed(e.Status):
		return models.PaymentStatusFailed
	case e.Status == "expired":
		return models.PaymentStatusExpired
	}
	return ""
}
