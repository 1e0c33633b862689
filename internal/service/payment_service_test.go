// internal/service/payment_service_test.go
package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/jawaddepp/crypto-payments-api/internal/gateway"
	"github.com/jawaddepp/crypto-payments-api/internal/models"
	"github.com/jawaddepp/crypto-payments-api/internal/repository"
)

// fakeLedger is an in-memory PaymentLedger with the same conditional
// update semantics as the Postgres repository.
type fakeLedger struct {
	mu       sync.Mutex
	payments map[string]*models.Payment
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{payments: make(map[string]*models.Payment)}
}

func (l *fakeLedger) Insert(ctx context.Context, p *models.Payment) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.payments[p.PaymentID]; ok {
		return repository.ErrDuplicate
	}
	clone := *p
	l.payments[p.PaymentID] = &clone
	return nil
}

func (l *fakeLedger) FindByID(ctx context.Context, paymentID, botID string) (*models.Payment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.payments[paymentID]
	if !ok || p.BotID != botID {
		return nil, repository.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (l *fakeLedger) FindByIDUnscoped(ctx context.Context, paymentID string) (*models.Payment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.payments[paymentID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (l *fakeLedger) FindByGatewayID(ctx context.Context, gatewayID string) (*models.Payment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range l.payments {
		if p.GatewayPaymentID == gatewayID && gatewayID != "" {
			clone := *p
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (l *fakeLedger) CompareAndSetStatus(ctx context.Context, paymentID string, expected, next models.PaymentStatus, update models.StatusUpdate) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.payments[paymentID]
	if !ok || p.Status != expected {
		return false, nil
	}
	p.Status = next
	if update.TxHash != nil {
		p.TxHash = *update.TxHash
	}
	if update.WebhookPayload != nil {
		p.WebhookPayload = update.WebhookPayload
	}
	p.UpdatedAt = time.Now()
	return true, nil
}

func (l *fakeLedger) get(paymentID string) *models.Payment {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.payments[paymentID]
}

func (l *fakeLedger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.payments)
}

type fakeGateway struct {
	mu          sync.Mutex
	openResp    *gateway.OpenPaymentResponse
	openErr     error
	statusResp  *gateway.PaymentStatus
	statusErr   error
	openCalls   int
	statusCalls int
	lastOpenReq gateway.OpenPaymentRequest
}

func (g *fakeGateway) OpenPayment(ctx context.Context, apiKey string, req gateway.OpenPaymentRequest) (*gateway.OpenPaymentResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.openCalls++
	g.lastOpenReq = req
	if g.openErr != nil {
		return nil, g.openErr
	}
	return g.openResp, nil
}

func (g *fakeGateway) QueryStatus(ctx context.Context, apiKey, gatewayPaymentID string) (*gateway.PaymentStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statusCalls++
	if g.statusErr != nil {
		return nil, g.statusErr
	}
	return g.statusResp, nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (n *fakeNotifier) PaymentConfirmed(ctx context.Context, bot *models.Bot, payment *models.Payment) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	return n.err
}

type fakeBots struct {
	bots map[string]*models.Bot
}

func (b *fakeBots) FindByID(ctx context.Context, id string) (*models.Bot, error) {
	bot, ok := b.bots[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return bot, nil
}

type fakeCache struct {
	mu    sync.Mutex
	items map[string]*models.Payment
}

func (c *fakeCache) Get(ctx context.Context, key string) (*models.Payment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.items[key]
	return p, ok
}

func (c *fakeCache) Put(ctx context.Context, key string, p *models.Payment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = p
}

func testBot() *models.Bot {
	return &models.Bot{
		ID:                "bot-1",
		Name:              "shopbot",
		Token:             "123:abc",
		GatewayAPIKey:     "key_1",
		WebhookSecret:     "whsec_1",
		AllowedCurrencies: []string{"BTC", "ETH", "USDT"},
		IsActive:          true,
	}
}

type fixture struct {
	svc      *PaymentService
	ledger   *fakeLedger
	gateway  *fakeGateway
	notifier *fakeNotifier
	bot      *models.Bot
}

func newFixture(opts Options) *fixture {
	bot := testBot()
	ledger := newFakeLedger()
	gw := &fakeGateway{
		openResp: &gateway.OpenPaymentResponse{
			GatewayPaymentID: "g1",
			CryptoAmount:     0.0005,
			Address:          "addr1",
			PaymentURL:       "https://pay/g1",
		},
	}
	notifier := &fakeNotifier{}
	bots := &fakeBots{bots: map[string]*models.Bot{bot.ID: bot}}

	svc := NewPaymentService(ledger, bots, gw, notifier, nil, zap.NewNop(), opts)
	return &fixture{svc: svc, ledger: ledger, gateway: gw, notifier: notifier, bot: bot}
}

func signHex(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name string
		req  models.CreatePaymentRequest
	}{
		{
			name: "zero amount",
			req:  models.CreatePaymentRequest{TelegramUserID: "42", Currency: "BTC", Amount: 0},
		},
		{
			name: "negative amount",
			req:  models.CreatePaymentRequest{TelegramUserID: "42", Currency: "BTC", Amount: -5},
		},
		{
			name: "disallowed currency",
			req:  models.CreatePaymentRequest{TelegramUserID: "42", Currency: "DOGE", Amount: 10},
		},
		{
			name: "missing beneficiary",
			req:  models.CreatePaymentRequest{Currency: "BTC", Amount: 10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(Options{})
			_, err := f.svc.Create(context.Background(), f.bot, &tt.req)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("Create() error = %v, want ErrValidation", err)
			}
			if f.gateway.openCalls != 0 {
				t.Error("gateway was called for an invalid request")
			}
			if f.ledger.count() != 0 {
				t.Error("a payment was persisted for an invalid request")
			}
		})
	}
}

func TestCreate(t *testing.T) {
	f := newFixture(Options{CallbackURL: "https://example.com/api/payments/webhook"})

	payment, err := f.svc.Create(context.Background(), f.bot, &models.CreatePaymentRequest{
		TelegramUserID: "42",
		Currency:       "btc",
		Amount:         10,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if payment.Status != models.PaymentStatusPending {
		t.Errorf("Status = %q, want pending", payment.Status)
	}
	if payment.Currency != "BTC" {
		t.Errorf("Currency = %q, want uppercased BTC", payment.Currency)
	}
	if payment.GatewayPaymentID != "g1" {
		t.Errorf("GatewayPaymentID = %q, want g1", payment.GatewayPaymentID)
	}
	if payment.Address != "addr1" || payment.PaymentURL != "https://pay/g1" {
		t.Errorf("quoted fields not stored: address=%q url=%q", payment.Address, payment.PaymentURL)
	}

	ttl := time.Until(payment.ExpiresAt)
	if ttl < 29*time.Minute || ttl > 31*time.Minute {
		t.Errorf("ExpiresAt %v is not ~30 minutes out", ttl)
	}

	if f.gateway.lastOpenReq.OrderID != payment.PaymentID {
		t.Errorf("gateway order id %q != local payment id %q", f.gateway.lastOpenReq.OrderID, payment.PaymentID)
	}
	if f.gateway.lastOpenReq.CallbackURL != "https://example.com/api/payments/webhook" {
		t.Errorf("CallbackURL = %q", f.gateway.lastOpenReq.CallbackURL)
	}

	if f.ledger.get(payment.PaymentID) == nil {
		t.Error("payment not persisted")
	}
}

func TestCreateGatewayFailureIsAllOrNothing(t *testing.T) {
	f := newFixture(Options{})
	f.gateway.openErr = gateway.ErrUnavailable

	_, err := f.svc.Create(context.Background(), f.bot, &models.CreatePaymentRequest{
		TelegramUserID: "42",
		Currency:       "BTC",
		Amount:         10,
	})
	if !errors.Is(err, gateway.ErrUnavailable) {
		t.Fatalf("Create() error = %v, want ErrUnavailable", err)
	}
	if f.ledger.count() != 0 {
		t.Error("a payment was persisted despite the gateway failure")
	}
}

func TestCreateIdempotencyKey(t *testing.T) {
	f := newFixture(Options{})
	cache := &fakeCache{items: make(map[string]*models.Payment)}
	f.svc.cache = cache

	req := &models.CreatePaymentRequest{
		TelegramUserID: "42",
		Currency:       "BTC",
		Amount:         10,
		IdempotencyKey: "idem-1",
	}

	first, err := f.svc.Create(context.Background(), f.bot, req)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	second, err := f.svc.Create(context.Background(), f.bot, req)
	if err != nil {
		t.Fatalf("replayed Create() error = %v", err)
	}

	if second.PaymentID != first.PaymentID {
		t.Errorf("replay created a new payment: %q vs %q", second.PaymentID, first.PaymentID)
	}
	if f.gateway.openCalls != 1 {
		t.Errorf("gateway open calls = %d, want 1", f.gateway.openCalls)
	}
}

func TestGetStatusNotFound(t *testing.T) {
	f := newFixture(Options{})
	_, err := f.svc.GetStatus(context.Background(), f.bot, "missing")
	if !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("GetStatus() error = %v, want ErrPaymentNotFound", err)
	}
}

func TestGetStatusScopedToOwner(t *testing.T) {
	f := newFixture(Options{})
	payment, err := f.svc.Create(context.Background(), f.bot, &models.CreatePaymentRequest{
		TelegramUserID: "42", Currency: "BTC", Amount: 10,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	other := testBot()
	other.ID = "bot-2"
	_, err = f.svc.GetStatus(context.Background(), other, payment.PaymentID)
	if !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("GetStatus() for foreign bot error = %v, want ErrPaymentNotFound", err)
	}
}

func TestGetStatusExpiresWithoutGatewayCall(t *testing.T) {
	f := newFixture(Options{})
	payment, err := f.svc.Create(context.Background(), f.bot, &models.CreatePaymentRequest{
		TelegramUserID: "42", Currency: "BTC", Amount: 10,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Push the deadline into the past.
	f.ledger.get(payment.PaymentID).ExpiresAt = time.Now().Add(-time.Minute)

	got, err := f.svc.GetStatus(context.Background(), f.bot, payment.PaymentID)
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if got.Status != models.PaymentStatusExpired {
		t.Errorf("Status = %q, want expired", got.Status)
	}
	if f.gateway.statusCalls != 0 {
		t.Errorf("gateway polled %d times for an expired payment, want 0", f.gateway.statusCalls)
	}
	if f.ledger.get(payment.PaymentID).Status != models.PaymentStatusExpired {
		t.Error("expiry was not persisted")
	}
}

func TestGetStatusPollConfirms(t *testing.T) {
	f := newFixture(Options{})
	payment, err := f.svc.Create(context.Background(), f.bot, &models.CreatePaymentRequest{
		TelegramUserID: "42", Currency: "BTC", Amount: 10,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	f.gateway.statusResp = &gateway.PaymentStatus{Status: "completed", TxHash: "0xabc", Settled: true}

	got, err := f.svc.GetStatus(context.Background(), f.bot, payment.PaymentID)
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if got.Status != models.PaymentStatusConfirmed {
		t.Errorf("Status = %q, want confirmed", got.Status)
	}
	if got.TxHash != "0xabc" {
		t.Errorf("TxHash = %q, want 0xabc", got.TxHash)
	}

	// Terminal now: another read must not poll again.
	calls := f.gateway.statusCalls
	if _, err := f.svc.GetStatus(context.Background(), f.bot, payment.PaymentID); err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if f.gateway.statusCalls != calls {
		t.Errorf("gateway polled again for a confirmed payment")
	}
}

func TestGetStatusPollErrorSwallowed(t *testing.T) {
	f := newFixture(Options{})
	payment, err := f.svc.Create(context.Background(), f.bot, &models.CreatePaymentRequest{
		TelegramUserID: "42", Currency: "BTC", Amount: 10,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	f.gateway.statusErr = gateway.ErrUnavailable

	got, err := f.svc.GetStatus(context.Background(), f.bot, payment.PaymentID)
	if err != nil {
		t.Fatalf("GetStatus() error = %v, poll failures must not surface", err)
	}
	if got.Status != models.PaymentStatusPending {
		t.Errorf("Status = %q, want pending (unchanged)", got.Status)
	}
}

func TestHandleWebhookConfirms(t *testing.T) {
	f := newFixture(Options{})
	payment, err := f.svc.Create(context.Background(), f.bot, &models.CreatePaymentRequest{
		TelegramUserID: "42", Currency: "BTC", Amount: 10,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	raw := []byte(fmt.Sprintf(`{"id":"g1","order_id":%q,"status":"completed","tx_hash":"0xabc"}`, payment.PaymentID))
	sig := signHex(raw, f.bot.WebhookSecret)

	result, err := f.svc.HandleWebhook(context.Background(), raw, sig, nil)
	if err != nil {
		t.Fatalf("HandleWebhook() error = %v", err)
	}
	if !result.Applied {
		t.Error("Applied = false, want true")
	}
	if result.Status != models.PaymentStatusConfirmed {
		t.Errorf("Status = %q, want confirmed", result.Status)
	}

	stored := f.ledger.get(payment.PaymentID)
	if stored.Status != models.PaymentStatusConfirmed {
		t.Errorf("stored status = %q, want confirmed", stored.Status)
	}
	if stored.TxHash != "0xabc" {
		t.Errorf("stored tx hash = %q, want 0xabc", stored.TxHash)
	}
	if string(stored.WebhookPayload) != string(raw) {
		t.Error("raw webhook payload was not retained")
	}
	if f.notifier.calls != 1 {
		t.Errorf("notifier calls = %d, want 1", f.notifier.calls)
	}
}

func TestHandleWebhookDuplicateIsNoop(t *testing.T) {
	f := newFixture(Options{})
	payment, err := f.svc.Create(context.Background(), f.bot, &models.CreatePaymentRequest{
		TelegramUserID: "42", Currency: "BTC", Amount: 10,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	raw := []byte(fmt.Sprintf(`{"id":"g1","order_id":%q,"status":"completed","tx_hash":"0xabc"}`, payment.PaymentID))
	sig := signHex(raw, f.bot.WebhookSecret)

	if _, err := f.svc.HandleWebhook(context.Background(), raw, sig, nil); err != nil {
		t.Fatalf("first HandleWebhook() error = %v", err)
	}

	result, err := f.svc.HandleWebhook(context.Background(), raw, sig, nil)
	if err != nil {
		t.Fatalf("duplicate HandleWebhook() error = %v, duplicates must be accepted", err)
	}
	if result.Applied {
		t.Error("duplicate delivery reported Applied = true")
	}

	stored := f.ledger.get(payment.PaymentID)
	if stored.Status != models.PaymentStatusConfirmed || stored.TxHash != "0xabc" {
		t.Errorf("duplicate delivery changed state: status=%q tx=%q", stored.Status, stored.TxHash)
	}
	if f.notifier.calls != 1 {
		t.Errorf("notifier calls = %d, want exactly 1", f.notifier.calls)
	}
}

func TestHandleWebhookInvalidSignature(t *testing.T) {
	f := newFixture(Options{})
	payment, err := f.svc.Create(context.Background(), f.bot, &models.CreatePaymentRequest{
		TelegramUserID: "42", Currency: "BTC", Amount: 10,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	raw := []byte(fmt.Sprintf(`{"id":"g1","order_id":%q,"status":"completed"}`, payment.PaymentID))
	sig := signHex(raw, "wrong-secret")

	_, err = f.svc.HandleWebhook(context.Background(), raw, sig, nil)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("HandleWebhook() error = %v, want ErrInvalidSignature", err)
	}
	if f.ledger.get(payment.PaymentID).Status != models.PaymentStatusPending {
		t.Error("payment transitioned despite invalid signature")
	}
}

func TestHandleWebhookUnsigned(t *testing.T) {
	t.Run("rejected by default", func(t *testing.T) {
		f := newFixture(Options{})
		payment, err := f.svc.Create(context.Background(), f.bot, &models.CreatePaymentRequest{
			TelegramUserID: "42", Currency: "BTC", Amount: 10,
		})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		raw := []byte(fmt.Sprintf(`{"id":"g1","order_id":%q,"status":"completed"}`, payment.PaymentID))
		if _, err := f.svc.HandleWebhook(context.Background(), raw, "", nil); !errors.Is(err, ErrInvalidSignature) {
			t.Fatalf("HandleWebhook() error = %v, want ErrInvalidSignature", err)
		}
	})

	t.Run("accepted when configured", func(t *testing.T) {
		f := newFixture(Options{AllowUnsigned: true})
		payment, err := f.svc.Create(context.Background(), f.bot, &models.CreatePaymentRequest{
			TelegramUserID: "42", Currency: "BTC", Amount: 10,
		})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		raw := []byte(fmt.Sprintf(`{"id":"g1","order_id":%q,"status":"completed","tx_hash":"0xabc"}`, payment.PaymentID))
		result, err := f.svc.HandleWebhook(context.Background(), raw, "", nil)
		if err != nil {
			t.Fatalf("HandleWebhook() error = %v", err)
		}
		if !result.Applied {
			t.Error("unsigned webhook was not applied in permissive mode")
		}
	})
}

func TestHandleWebhookUnknownPayment(t *testing.T) {
	f := newFixture(Options{})
	raw := []byte(`{"id":"g-unknown","order_id":"p-unknown","status":"completed"}`)
	_, err := f.svc.HandleWebhook(context.Background(), raw, signHex(raw, "whsec_1"), nil)
	if !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("HandleWebhook() error = %v, want ErrPaymentNotFound", err)
	}
}

func TestHandleWebhookCorrelatesByOrderID(t *testing.T) {
	f := newFixture(Options{})
	payment, err := f.svc.Create(context.Background(), f.bot, &models.CreatePaymentRequest{
		TelegramUserID: "42", Currency: "BTC", Amount: 10,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// No gateway id in the event body, only our order id.
	raw := []byte(fmt.Sprintf(`{"order_id":%q,"status":"failed"}`, payment.PaymentID))
	sig := signHex(raw, f.bot.WebhookSecret)

	result, err := f.svc.HandleWebhook(context.Background(), raw, sig, nil)
	if err != nil {
		t.Fatalf("HandleWebhook() error = %v", err)
	}
	if result.Status != models.PaymentStatusFailed || !result.Applied {
		t.Errorf("result = %+v, want applied failed transition", result)
	}
	if f.notifier.calls != 0 {
		t.Error("notifier invoked for a failed payment")
	}
}

func TestConflictingTerminalEventsFirstWins(t *testing.T) {
	// Apply two conflicting terminal events in either order; the final
	// state must equal whichever was applied first.
	orders := []struct {
		name  string
		first models.PaymentStatus
		last  models.PaymentStatus
	}{
		{name: "confirmed then failed", first: models.PaymentStatusConfirmed, last: models.PaymentStatusFailed},
		{name: "failed then confirmed", first: models.PaymentStatusFailed, last: models.PaymentStatusConfirmed},
	}

	statusField := map[models.PaymentStatus]string{
		models.PaymentStatusConfirmed: "completed",
		models.PaymentStatusFailed:    "failed",
	}

	for _, tt := range orders {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(Options{})
			payment, err := f.svc.Create(context.Background(), f.bot, &models.CreatePaymentRequest{
				TelegramUserID: "42", Currency: "BTC", Amount: 10,
			})
			if err != nil {
				t.Fatalf("Create() error = %v", err)
			}

			for _, status := range []models.PaymentStatus{tt.first, tt.last} {
				raw := []byte(fmt.Sprintf(`{"id":"g1","order_id":%q,"status":%q}`, payment.PaymentID, statusField[status]))
				sig := signHex(raw, f.bot.WebhookSecret)
				if _, err := f.svc.HandleWebhook(context.Background(), raw, sig, nil); err != nil {
					t.Fatalf("HandleWebhook(%s) error = %v", status, err)
				}
			}

			if got := f.ledger.get(payment.PaymentID).Status; got != tt.first {
				t.Errorf("final status = %q, want first-applied %q", got, tt.first)
			}
		})
	}
}

func TestNotifierFailureDoesNotRollBack(t *testing.T) {
	f := newFixture(Options{})
	f.notifier.err = errors.New("telegram down")

	payment, err := f.svc.Create(context.Background(), f.bot, &models.CreatePaymentRequest{
		TelegramUserID: "42", Currency: "BTC", Amount: 10,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	raw := []byte(fmt.Sprintf(`{"id":"g1","order_id":%q,"status":"completed","tx_hash":"0xabc"}`, payment.PaymentID))
	result, err := f.svc.HandleWebhook(context.Background(), raw, signHex(raw, f.bot.WebhookSecret), nil)
	if err != nil {
		t.Fatalf("HandleWebhook() error = %v, notifier failures must not surface", err)
	}
	if !result.Applied {
		t.Error("transition was not applied")
	}
	if f.ledger.get(payment.PaymentID).Status != models.PaymentStatusConfirmed {
		t.Error("status rolled back after notifier failure")
	}
}

func TestEndToEndScenario(t *testing.T) {
	f := newFixture(Options{CallbackURL: "https://example.com/api/payments/webhook"})

	// create(currency=BTC, amount=10)
	payment, err := f.svc.Create(context.Background(), f.bot, &models.CreatePaymentRequest{
		TelegramUserID: "42", Currency: "BTC", Amount: 10,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if payment.Status != models.PaymentStatusPending || payment.GatewayPaymentID != "g1" {
		t.Fatalf("unexpected created payment: %+v", payment)
	}

	// webhook {gatewayId:"g1", confirmed, tx:"0xabc"} with valid signature
	raw := []byte(`{"id":"g1","status":"completed","tx_hash":"0xabc"}`)
	result, err := f.svc.HandleWebhook(context.Background(), raw, signHex(raw, f.bot.WebhookSecret), nil)
	if err != nil {
		t.Fatalf("HandleWebhook() error = %v", err)
	}
	if !result.Applied || result.Status != models.PaymentStatusConfirmed {
		t.Fatalf("unexpected webhook result: %+v", result)
	}

	// subsequent getStatus returns confirmed without polling the gateway
	got, err := f.svc.GetStatus(context.Background(), f.bot, payment.PaymentID)
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if got.Status != models.PaymentStatusConfirmed || got.TxHash != "0xabc" {
		t.Errorf("GetStatus() = status %q tx %q, want confirmed/0xabc", got.Status, got.TxHash)
	}
	if f.gateway.statusCalls != 0 {
		t.Errorf("gateway polled %d times after confirmation, want 0", f.gateway.statusCalls)
	}
}
