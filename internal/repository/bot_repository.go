// internal/repository/bot_repository.go
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/jawaddepp/crypto-payments-api/internal/models"
)

type BotRepository struct {
	db *sql.DB
}

func NewBotRepository(db *sql.DB) *BotRepository {
	return &BotRepository{db: db}
}

const botColumns = `
	id, name, token, registered_by, gateway_api_key, webhook_secret,
	allowed_currencies, is_active, created_at, last_used_at
`

func (r *BotRepository) Insert(ctx context.Context, bot *models.Bot) error {
	query := `
		INSERT INTO bots (
			id, name, token, registered_by, gateway_api_key,
			webhook_secret, allowed_currencies, is_active, created_at, last_used_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		bot.ID,
		bot.Name,
		bot.Token,
		bot.RegisteredBy,
		bot.GatewayAPIKey,
		bot.WebhookSecret,
		pq.Array(bot.AllowedCurrencies),
		bot.IsActive,
		bot.CreatedAt,
		bot.LastUsedAt,
	)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return err
}

// FindByToken resolves a credential to its bot. Callers check IsActive.
func (r *BotRepository) FindByToken(ctx context.Context, token string) (*models.Bot, error) {
	query := `SELECT ` + botColumns + ` FROM bots WHERE token = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, token))
}

func (r *BotRepository) FindByID(ctx context.Context, id string) (*models.Bot, error) {
	query := `SELECT ` + botColumns + ` FROM bots WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *BotRepository) List(ctx context.Context) ([]*models.Bot, error) {
	query := `SELECT ` + botColumns + ` FROM bots ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bots []*models.Bot
	for rows.Next() {
		bot := &models.Bot{}
		if err := scanBot(rows, bot); err != nil {
			return nil, err
		}
		bots = append(bots, bot)
	}
	return bots, rows.Err()
}

func (r *BotRepository) SetActive(ctx context.Context, id string, active bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE bots SET is_active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchLastUsed refreshes the last-used timestamp on authentication.
func (r *BotRepository) TouchLastUsed(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE bots SET last_used_at = $1 WHERE id = $2`, time.Now(), id)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *BotRepository) scanOne(row *sql.Row) (*models.Bot, error) {
	bot := &models.Bot{}
	err := scanBot(row, bot)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return bot, nil
}

func scanBot(row rowScanner, bot *models.Bot) error {
	return row.Scan(
		&bot.ID,
		&bot.Name,
		&bot.Token,
		&bot.RegisteredBy,
		&bot.GatewayAPIKey,
		&bot.WebhookSecret,
		pq.Array(&bot.AllowedCurrencies),
		&bot.IsActive,
		&bot.CreatedAt,
		&bot.LastUsedAt,
	)
}
