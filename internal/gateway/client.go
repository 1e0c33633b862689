// internal/gateway/client.go

// Package gateway talks to the UseGateway hosted-checkout API and
// normalizes its responses and webhook payloads.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	DefaultBaseURL = "https://api.usegateway.net/v1"

	// requestTimeout bounds every outbound call so a stalled gateway
	// can never block a request handler indefinitely.
	requestTimeout = 15 * time.Second
)

var (
	// ErrUnavailable covers network errors, timeouts and 5xx responses.
	ErrUnavailable = errors.New("gateway unavailable")

	// ErrMalformedResponse means the gateway answered 2xx but the body
	// lacks a required field.
	ErrMalformedResponse = errors.New("gateway returned malformed response")

	// ErrPaymentNotFound means the gateway does not know the payment id.
	// Distinct from a payment that exists but has not settled yet.
	ErrPaymentNotFound = errors.New("gateway payment not found")
)

// RejectedError is a 4xx validation response from the gateway, carrying
// its message so callers can surface the reason.
type RejectedError struct {
	StatusCode int
	Message    string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("gateway rejected request (%d): %s", e.StatusCode, e.Message)
}

// Client is a stateless UseGateway client. It holds no credentials;
// the API key is supplied per call so one instance serves every bot.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

type OpenPaymentRequest struct {
	Currency    string
	Amount      float64
	OrderID     string
	CallbackURL string
	ExpiresAt   time.Time
}

type OpenPaymentResponse struct {
	GatewayPaymentID string
	CryptoAmount     float64
	Address          string
	PaymentURL       string
}

// PaymentStatus is the normalized result of a status query.
type PaymentStatus struct {
	Status  string
	TxHash  string
	Settled bool
	Failed  bool
}

type openPaymentPayload struct {
	Currency    string  `json:"currency"`
	Amount      float64 `json:"amount"`
	OrderID     string  `json:"order_id"`
	CallbackURL string  `json:"callback_url"`
	Description string  `json:"description"`
	ExpiresAt   string  `json:"expires_at"`
}

type paymentResource struct {
	ID           string  `json:"id"`
	Status       string  `json:"status"`
	CryptoAmount float64 `json:"crypto_amount"`
	Address      string  `json:"address"`
	PaymentURL   string  `json:"payment_url"`
	TxHash       string  `json:"tx_hash"`
	ConfirmedAt  string  `json:"confirmed_at"`
}

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// OpenPayment creates a remote payment. It is deliberately retry-free:
// an ambiguous failure must not risk opening a duplicate remote payment.
func (c *Client) OpenPayment(ctx context.Context, apiKey string, req OpenPaymentRequest) (*OpenPaymentResponse, error) {
	payload := openPaymentPayload{
		Currency:    req.Currency,
		Amount:      req.Amount,
		OrderID:     req.OrderID,
		CallbackURL: req.CallbackURL,
		Description: fmt.Sprintf("Payment for order %s", req.OrderID),
		ExpiresAt:   req.ExpiresAt.UTC().Format(time.RFC3339),
	}

	body, err := c.do(ctx, apiKey, http.MethodPost, "/payments", payload)
	if err != nil {
		return nil, err
	}

	var resource paymentResource
	if err := json.Unmarshal(body, &resource); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if resource.PaymentURL == "" {
		return nil, fmt.Errorf("%w: missing payment_url", ErrMalformedResponse)
	}

	return &OpenPaymentResponse{
		GatewayPaymentID: resource.ID,
		CryptoAmount:     resource.CryptoAmount,
		Address:          resource.Address,
		PaymentURL:       resource.PaymentURL,
	}, nil
}

// QueryStatus fetches the current remote state of a payment.
func (c *Client) QueryStatus(ctx context.Context, apiKey, gatewayPaymentID string) (*PaymentStatus, error) {
	body, err := c.do(ctx, apiKey, http.MethodGet, "/payments/"+gatewayPaymentID, nil)
	if err != nil {
		return nil, err
	}

	var resource paymentResource
	if err := json.Unmarshal(body, &resource); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	return &PaymentStatus{
		Status:  resource.Status,
		TxHash:  resource.TxHash,
		Settled: statusSettled(resource.Status, resource.ConfirmedAt),
		Failed:  statusFailed(resource.Status),
	}, nil
}

// Currency is one entry of the gateway's supported-currency list.
type Currency struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// defaultCurrencies mirrors the gateway's published list and is served
// when the remote call fails, so currency menus keep working offline.
var defaultCurrencies = []Currency{
	{Code: "BTC", Name: "Bitcoin"},
	{Code: "ETH", Name: "Ethereum"},
	{Code: "USDT", Name: "Tether"},
	{Code: "LTC", Name: "Litecoin"},
	{Code: "BCH", Name: "Bitcoin Cash"},
	{Code: "XRP", Name: "Ripple"},
	{Code: "ADA", Name: "Cardano"},
	{Code: "DOT", Name: "Polkadot"},
	{Code: "MATIC", Name: "Polygon"},
}

// SupportedCurrencies lists the currencies the gateway settles, falling
// back to the static list if the gateway cannot be reached.
func (c *Client) SupportedCurrencies(ctx context.Context, apiKey string) []Currency {
	body, err := c.do(ctx, apiKey, http.MethodGet, "/currencies", nil)
	if err != nil {
		return defaultCurrencies
	}

	var currencies []Currency
	if err := json.Unmarshal(body, &currencies); err != nil || len(currencies) == 0 {
		return defaultCurrencies
	}
	return currencies
}

func (c *Client) do(ctx context.Context, apiKey, method, path string, payload interface{}) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrPaymentNotFound
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		var er errorResponse
		_ = json.Unmarshal(body, &er)
		msg := er.Message
		if msg == "" {
			msg = er.Error
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &RejectedError{StatusCode: resp.StatusCode, Message: msg}
	default:
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
}

func statusSettled(status, confirmedAt string) bool {
	switch status {
	case "completed", "confirmed", "paid":
		return true
	}
	return confirmedAt != ""
}

func statusFailed(status string) bool {
	switch status {
	case "failed", "canceled", "cancelled":
		return true
	}
	return false
}
