// internal/notifier/telegram.go

// Package notifier delivers confirmation messages to the owning
// Telegram bot. Delivery is best effort; callers never roll back a
// payment transition because a message failed.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jawaddepp/crypto-payments-api/internal/models"
)

const defaultBaseURL = "https://api.telegram.org"

type TelegramNotifier struct {
	baseURL    string
	httpClient *http.Client
}

func NewTelegramNotifier(baseURL string) *TelegramNotifier {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &TelegramNotifier{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type sendMessagePayload struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// PaymentConfirmed sends the confirmation message through the bot's
// own Telegram API token.
func (n *TelegramNotifier) PaymentConfirmed(ctx context.Context, bot *models.Bot, payment *models.Payment) error {
	payload := sendMessagePayload{
		ChatID: payment.TelegramUserID,
		Text: fmt.Sprintf("✅ Payment confirmed!\n\nAmount: %g %s\nTransaction: %s",
			payment.Amount, payment.Currency, payment.TxHash),
		ParseMode: "HTML",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, bot.Token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram api returned status %d", resp.StatusCode)
	}
	return nil
}
