// internal/repository/payment_repository.go
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/jawaddepp/crypto-payments-api/internal/models"
)

var (
	// ErrDuplicate means an insert hit an existing primary or unique key.
	ErrDuplicate = errors.New("record already exists")

	// ErrNotFound means no record matched the lookup.
	ErrNotFound = errors.New("record not found")
)

// uniqueViolation is the Postgres error code for unique_violation.
const uniqueViolation = "23505"

type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `
	payment_id, COALESCE(gateway_payment_id, ''), bot_id, telegram_user_id,
	currency, amount, crypto_amount, address, payment_url, status,
	COALESCE(tx_hash, ''), webhook_payload, expires_at, created_at, updated_at
`

// Insert persists a new payment. Payments are never deleted afterwards:
// they stay queryable indefinitely for audit and dispute resolution.
func (r *PaymentRepository) Insert(ctx context.Context, payment *models.Payment) error {
	query := `
		INSERT INTO payments (
			payment_id, gateway_payment_id, bot_id, telegram_user_id,
			currency, amount, crypto_amount, address, payment_url,
			status, expires_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.ExecContext(ctx, query,
		payment.PaymentID,
		nullString(payment.GatewayPaymentID),
		payment.BotID,
		payment.TelegramUserID,
		payment.Currency,
		payment.Amount,
		payment.CryptoAmount,
		payment.Address,
		payment.PaymentURL,
		payment.Status,
		payment.ExpiresAt,
		payment.CreatedAt,
		payment.UpdatedAt,
	)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return err
}

// FindByID looks up a payment scoped to its owning bot, so one bot can
// never observe another bot's payments.
func (r *PaymentRepository) FindByID(ctx context.Context, paymentID, botID string) (*models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE payment_id = $1 AND bot_id = $2`, paymentColumns)
	return r.scanOne(r.db.QueryRowContext(ctx, query, paymentID, botID))
}

// FindByIDUnscoped looks up a payment by local id regardless of owner.
// Used only for webhook correlation, where the caller is the gateway.
func (r *PaymentRepository) FindByIDUnscoped(ctx context.Context, paymentID string) (*models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE payment_id = $1`, paymentColumns)
	return r.scanOne(r.db.QueryRowContext(ctx, query, paymentID))
}

// FindByGatewayID looks up a payment by the gateway-assigned id.
func (r *PaymentRepository) FindByGatewayID(ctx context.Context, gatewayPaymentID string) (*models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE gateway_payment_id = $1`, paymentColumns)
	return r.scanOne(r.db.QueryRowContext(ctx, query, gatewayPaymentID))
}

// CompareAndSetStatus transitions a payment's status only if it still
// holds the expected status. Returns (false, nil) when the guard no
// longer matches - a concurrent transition already won, which is not an
// error. The single conditional UPDATE is atomic at the storage layer,
// so no in-process locking exists anywhere above it.
func (r *PaymentRepository) CompareAndSetStatus(ctx context.Context, paymentID string, expected, next models.PaymentStatus, update models.StatusUpdate) (bool, error) {
	query := `
		UPDATE payments
		SET status = $1,
		    tx_hash = COALESCE($2, tx_hash),
		    webhook_payload = COALESCE($3, webhook_payload),
		    updated_at = $4
		WHERE payment_id = $5 AND status = $6
	`

	// jsonb parameters go over the wire as text, not bytea.
	var payload interface{}
	if update.WebhookPayload != nil {
		payload = string(update.WebhookPayload)
	}

	res, err := r.db.ExecContext(ctx, query,
		next,
		update.TxHash,
		payload,
		time.Now(),
		paymentID,
		expected,
	)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *PaymentRepository) scanOne(row *sql.Row) (*models.Payment, error) {
	payment := &models.Payment{}
	err := row.Scan(
		&payment.PaymentID,
		&payment.GatewayPaymentID,
		&payment.BotID,
		&payment.TelegramUserID,
		&payment.Currency,
		&payment.Amount,
		&payment.CryptoAmount,
		&payment.Address,
		&payment.PaymentURL,
		&payment.Status,
		&payment.TxHash,
		&payment.WebhookPayload,
		&payment.ExpiresAt,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return payment, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
