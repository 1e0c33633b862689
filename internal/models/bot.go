// internal/models/bot.go
package models

import "time"

// Bot is a registered bot operator. The uuid ID is the only key other
// records reference; the token is a credential, not an identifier, so
// rotating it never orphans payments.
type Bot struct {
	ID                string    `json:"id" db:"id"`
	Name              string    `json:"name" db:"name"`
	Token             string    `json:"-" db:"token"`
	RegisteredBy      string    `json:"registered_by" db:"registered_by"`
	GatewayAPIKey     string    `json:"-" db:"gateway_api_key"`
	WebhookSecret     string    `json:"-" db:"webhook_secret"`
	AllowedCurrencies []string  `json:"allowed_currencies" db:"allowed_currencies"`
	IsActive          bool      `json:"is_active" db:"is_active"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	LastUsedAt        time.Time `json:"last_used_at" db:"last_used_at"`
}

// CurrencyAllowed reports whether the bot may request payments in code.
func (b *Bot) CurrencyAllowed(code string) bool {
	for _, c := range b.AllowedCurrencies {
		if c == code {
			return true
		}
	}
	return false
}

// DefaultAllowedCurrencies is applied when registration omits the list.
var DefaultAllowedCurrencies = []string{"BTC", "ETH", "USDT"}

type RegisterBotRequest struct {
	Name              string   `json:"name" binding:"required"`
	Token             string   `json:"token" binding:"required"`
	GatewayAPIKey     string   `json:"gatewayApiKey" binding:"required"`
	WebhookSecret     string   `json:"webhookSecret" binding:"required"`
	AllowedCurrencies []string `json:"allowedCurrencies"`
}

// Database schema
const BotSchema = `
CREATE TABLE IF NOT EXISTS bots (
    id VARCHAR(36) PRIMARY KEY,
    name VARCHAR(255) NOT NULL UNIQUE,
    token VARCHAR(255) NOT NULL UNIQUE,
    registered_by VARCHAR(64) NOT NULL,
    gateway_api_key VARCHAR(255) NOT NULL,
    webhook_secret VARCHAR(255) NOT NULL,
    allowed_currencies TEXT[] NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP NOT NULL DEFAULT NOW(),
    last_used_at TIMESTAMP NOT NULL DEFAULT NOW()
);
`
