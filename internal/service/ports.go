// internal/service/ports.go
package service

import (
	"context"

	"github.com/jawaddepp/crypto-payments-api/internal/gateway"
	"github.com/jawaddepp/crypto-payments-api/internal/models"
)

// PaymentLedger is the durable payment store. CompareAndSetStatus is
// the only way a status is ever written after insert; its no-op return
// is what makes concurrent webhook/poll updates converge.
type PaymentLedger interface {
	Insert(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, paymentID, botID string) (*models.Payment, error)
	FindByIDUnscoped(ctx context.Context, paymentID string) (*models.Payment, error)
	FindByGatewayID(ctx context.Context, gatewayPaymentID string) (*models.Payment, error)
	CompareAndSetStatus(ctx context.Context, paymentID string, expected, next models.PaymentStatus, update models.StatusUpdate) (bool, error)
}

// BotDirectory resolves bot ids to their credentials and secrets.
type BotDirectory interface {
	FindByID(ctx context.Context, id string) (*models.Bot, error)
}

// GatewayClient opens remote payments and polls their status.
type GatewayClient interface {
	OpenPayment(ctx context.Context, apiKey string, req gateway.OpenPaymentRequest) (*gateway.OpenPaymentResponse, error)
	QueryStatus(ctx context.Context, apiKey, gatewayPaymentID string) (*gateway.PaymentStatus, error)
}

// Notifier tells the owning bot about a confirmed payment. Best effort:
// failures are logged and never roll back a transition.
type Notifier interface {
	PaymentConfirmed(ctx context.Context, bot *models.Bot, payment *models.Payment) error
}

// IdempotencyCache short-circuits replayed create requests.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) (*models.Payment, bool)
	Put(ctx context.Context, key string, payment *models.Payment)
}
