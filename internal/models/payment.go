// internal/models/payment.go
package models

import "time"

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusConfirmed PaymentStatus = "confirmed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusExpired   PaymentStatus = "expired"
)

// IsTerminal reports whether no further transition may leave the status.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusConfirmed || s == PaymentStatusFailed || s == PaymentStatusExpired
}

// Payment is a single payment request opened on behalf of an end user.
// Status only ever moves forward from pending to one terminal state, and
// every status write goes through the repository's conditional update.
type Payment struct {
	PaymentID        string        `json:"payment_id" db:"payment_id"`
	GatewayPaymentID string        `json:"gateway_payment_id,omitempty" db:"gateway_payment_id"`
	BotID            string        `json:"bot_id" db:"bot_id"`
	TelegramUserID   string        `json:"telegram_user_id" db:"telegram_user_id"`
	Currency         string        `json:"currency" db:"currency"`
	Amount           float64       `json:"amount" db:"amount"`
	CryptoAmount     float64       `json:"crypto_amount" db:"crypto_amount"`
	Address          string        `json:"address" db:"address"`
	PaymentURL       string        `json:"payment_url" db:"payment_url"`
	Status           PaymentStatus `json:"status" db:"status"`
	TxHash           string        `json:"tx_hash,omitempty" db:"tx_hash"`
	WebhookPayload   []byte        `json:"-" db:"webhook_payload"`
	ExpiresAt        time.Time     `json:"expires_at" db:"expires_at"`
	CreatedAt        time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at" db:"updated_at"`
}

// StatusUpdate carries the fields written together with a status transition.
// Nil pointers leave the stored value untouched.
type StatusUpdate struct {
	TxHash         *string
	WebhookPayload []byte
}

type CreatePaymentRequest struct {
	TelegramUserID string  `json:"telegramUserId" binding:"required"`
	Currency       string  `json:"currency" binding:"required"`
	Amount         float64 `json:"amount" binding:"required"`
	IdempotencyKey string  `json:"idempotencyKey"`
}

type CreatePaymentResponse struct {
	PaymentID    string    `json:"paymentId"`
	Currency     string    `json:"currency"`
	Amount       float64   `json:"amount"`
	CryptoAmount float64   `json:"amountInCrypto"`
	Address      string    `json:"address"`
	PaymentURL   string    `json:"paymentUrl"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

type PaymentStatusResponse struct {
	PaymentID string    `json:"paymentId"`
	Status    string    `json:"status"`
	TxHash    string    `json:"txHash,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Database schema
const PaymentSchema = `
CREATE TABLE IF NOT EXISTS payments (
    payment_id VARCHAR(36) PRIMARY KEY,
    gateway_payment_id VARCHAR(255),
    bot_id VARCHAR(36) NOT NULL,
    telegram_user_id VARCHAR(64) NOT NULL,
    currency VARCHAR(10) NOT NULL,
    amount DECIMAL(19, 4) NOT NULL,
    crypto_amount DECIMAL(28, 18) NOT NULL DEFAULT 0,
    address TEXT NOT NULL DEFAULT '',
    payment_url TEXT NOT NULL DEFAULT '',
    status VARCHAR(20) NOT NULL DEFAULT 'pending',
    tx_hash VARCHAR(255),
    webhook_payload JSONB,
    expires_at TIMESTAMP NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_payments_gateway_id ON payments (gateway_payment_id);
CREATE INDEX IF NOT EXISTS idx_payments_bot_user_status ON payments (bot_id, telegram_user_id, status);
`
