// internal/service/payment_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jawaddepp/crypto-payments-api/internal/gateway"
	"github.com/jawaddepp/crypto-payments-api/internal/metrics"
	"github.com/jawaddepp/crypto-payments-api/internal/models"
	"github.com/jawaddepp/crypto-payments-api/internal/repository"
	"github.com/jawaddepp/crypto-payments-api/internal/signature"
)

// paymentTTL is how long an unconfirmed payment stays payable.
const paymentTTL = 30 * time.Minute

// Options configure the reconciliation behavior.
type Options struct {
	// CallbackURL is the public webhook endpoint handed to the gateway.
	CallbackURL string

	// AllowUnsigned accepts webhooks that carry no signature at all.
	// Off by default; turning it on logs and counts every occurrence.
	AllowUnsigned bool
}

// PaymentService owns the payment state machine. All status writes go
// through the ledger's compare-and-set, so a webhook and a poll racing
// on the same payment converge on whichever terminal state lands first.
type PaymentService struct {
	ledger   PaymentLedger
	bots     BotDirectory
	gateway  GatewayClient
	notifier Notifier
	cache    IdempotencyCache
	logger   *zap.Logger
	opts     Options
}

func NewPaymentService(ledger PaymentLedger, bots BotDirectory, gw GatewayClient, notifier Notifier, cache IdempotencyCache, logger *zap.Logger, opts Options) *PaymentService {
	return &PaymentService{
		ledger:   ledger,
		bots:     bots,
		gateway:  gw,
		notifier: notifier,
		cache:    cache,
		logger:   logger,
		opts:     opts,
	}
}

// Create validates the request, opens a remote payment and persists it
// as pending. Creation is all-or-nothing: if the gateway call fails,
// nothing is persisted and the generated id is discarded.
func (s *PaymentService) Create(ctx context.Context, bot *models.Bot, req *models.CreatePaymentRequest) (*models.Payment, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be greater than 0", ErrValidation)
	}
	if req.TelegramUserID == "" {
		return nil, fmt.Errorf("%w: telegramUserId is required", ErrValidation)
	}

	currency := strings.ToUpper(req.Currency)
	if !bot.CurrencyAllowed(currency) {
		return nil, fmt.Errorf("%w: currency %s is not allowed for this bot (allowed: %s)",
			ErrValidation, currency, strings.Join(bot.AllowedCurrencies, ", "))
	}

	if req.IdempotencyKey != "" && s.cache != nil {
		if cached, ok := s.cache.Get(ctx, idempotencyKey(bot.ID, req.IdempotencyKey)); ok {
			return cached, nil
		}
	}

	paymentID := uuid.New().String()
	now := time.Now()
	expiresAt := now.Add(paymentTTL)

	opened, err := s.gateway.OpenPayment(ctx, bot.GatewayAPIKey, gateway.OpenPaymentRequest{
		Currency:    currency,
		Amount:      req.Amount,
		OrderID:     paymentID,
		CallbackURL: s.opts.CallbackURL,
		ExpiresAt:   expiresAt,
	})
	if err != nil {
		s.logger.Error("failed to open gateway payment",
			zap.String("bot_id", bot.ID),
			zap.String("currency", currency),
			zap.Error(err))
		return nil, err
	}

	payment := &models.Payment{
		PaymentID:        paymentID,
		GatewayPaymentID: opened.GatewayPaymentID,
		BotID:            bot.ID,
		TelegramUserID:   req.TelegramUserID,
		Currency:         currency,
		Amount:           req.Amount,
		CryptoAmount:     opened.CryptoAmount,
		Address:          opened.Address,
		PaymentURL:       opened.PaymentURL,
		Status:           models.PaymentStatusPending,
		ExpiresAt:        expiresAt,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.ledger.Insert(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to save payment: %w", err)
	}

	if req.IdempotencyKey != "" && s.cache != nil {
		s.cache.Put(ctx, idempotencyKey(bot.ID, req.IdempotencyKey), payment)
	}

	metrics.PaymentsCreated.WithLabelValues(currency).Inc()
	s.logger.Info("payment created",
		zap.String("payment_id", payment.PaymentID),
		zap.String("gateway_payment_id", payment.GatewayPaymentID),
		zap.String("bot_id", bot.ID),
		zap.String("currency", currency))

	return payment, nil
}

// GetStatus returns the payment's current status, refreshing a pending
// payment from the gateway first. A failed remote check never surfaces
// to the caller; the last known status is returned instead.
func (s *PaymentService) GetStatus(ctx context.Context, bot *models.Bot, paymentID string) (*models.Payment, error) {
	payment, err := s.ledger.FindByID(ctx, paymentID, bot.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}

	if payment.Status != models.PaymentStatusPending {
		return payment, nil
	}

	// Expiry short-circuits before any remote call.
	if time.Now().After(payment.ExpiresAt) {
		return s.applyTransition(ctx, payment, models.PaymentStatusExpired, models.StatusUpdate{}, "poll")
	}

	if payment.GatewayPaymentID == "" {
		return payment, nil
	}

	remote, err := s.gateway.QueryStatus(ctx, bot.GatewayAPIKey, payment.GatewayPaymentID)
	if err != nil {
		s.logger.Warn("gateway status check failed, returning last known status",
			zap.String("payment_id", payment.PaymentID),
			zap.Error(err))
		return payment, nil
	}

	if remote.Settled {
		update := models.StatusUpdate{}
		if remote.TxHash != "" {
			update.TxHash = &remote.TxHash
		}
		return s.applyTransition(ctx, payment, models.PaymentStatusConfirmed, update, "poll")
	}

	return payment, nil
}

// WebhookResult reports what a webhook delivery did.
type WebhookResult struct {
	PaymentID string
	Status    models.PaymentStatus
	Applied   bool
}

// HandleWebhook authenticates and applies a gateway webhook event.
// Replayed terminal events and losers of a webhook/poll race come back
// as accepted no-ops, never as errors.
func (s *PaymentService) HandleWebhook(ctx context.Context, raw []byte, sigHeader string, aux map[string]string) (*WebhookResult, error) {
	evt := gateway.ParseWebhookEvent(raw)

	payment, err := s.correlate(ctx, evt)
	if err != nil {
		metrics.WebhooksReceived.WithLabelValues("not_found").Inc()
		return nil, err
	}

	bot, err := s.bots.FindByID(ctx, payment.BotID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve owning bot: %w", err)
	}

	if sigHeader == "" {
		if !s.opts.AllowUnsigned {
			metrics.WebhooksReceived.WithLabelValues("unsigned_rejected").Inc()
			s.logger.Warn("rejected unsigned webhook",
				zap.String("payment_id", payment.PaymentID),
				zap.String("bot_id", bot.ID))
			return nil, ErrInvalidSignature
		}
		metrics.UnsignedWebhooksAccepted.Inc()
		s.logger.Warn("accepting unsigned webhook",
			zap.String("payment_id", payment.PaymentID),
			zap.String("bot_id", bot.ID))
	} else if !signature.Verify(raw, sigHeader, aux, bot.WebhookSecret) {
		metrics.SignatureRejections.Inc()
		metrics.WebhooksReceived.WithLabelValues("bad_signature").Inc()
		s.logger.Warn("invalid webhook signature",
			zap.String("payment_id", payment.PaymentID),
			zap.String("bot_id", bot.ID))
		return nil, ErrInvalidSignature
	}

	target := evt.TargetStatus()
	if target == "" {
		metrics.WebhooksReceived.WithLabelValues("informational").Inc()
		return &WebhookResult{PaymentID: payment.PaymentID, Status: payment.Status}, nil
	}

	update := models.StatusUpdate{WebhookPayload: raw}
	if evt.TxHash != "" {
		update.TxHash = &evt.TxHash
	}

	applied, err := s.ledger.CompareAndSetStatus(ctx, payment.PaymentID, models.PaymentStatusPending, target, update)
	if err != nil {
		return nil, fmt.Errorf("failed to apply webhook transition: %w", err)
	}

	if !applied {
		// A concurrent transition already won, or this is a replay.
		metrics.WebhooksReceived.WithLabelValues("noop").Inc()
		s.logger.Info("webhook was a no-op",
			zap.String("payment_id", payment.PaymentID),
			zap.String("current_status", string(payment.Status)),
			zap.String("target_status", string(target)))
		return &WebhookResult{PaymentID: payment.PaymentID, Status: payment.Status}, nil
	}

	metrics.WebhooksReceived.WithLabelValues("applied").Inc()
	metrics.PaymentTransitions.WithLabelValues(string(target), "webhook").Inc()
	s.logger.Info("payment status updated",
		zap.String("payment_id", payment.PaymentID),
		zap.String("old_status", string(payment.Status)),
		zap.String("new_status", string(target)))

	payment.Status = target
	payment.TxHash = evt.TxHash
	payment.WebhookPayload = raw

	if target == models.PaymentStatusConfirmed {
		if err := s.notifier.PaymentConfirmed(ctx, bot, payment); err != nil {
			// Notification is best effort; the transition stands.
			s.logger.Error("failed to notify bot of confirmed payment",
				zap.String("payment_id", payment.PaymentID),
				zap.String("bot_id", bot.ID),
				zap.Error(err))
		}
	}

	return &WebhookResult{PaymentID: payment.PaymentID, Status: target, Applied: true}, nil
}

// correlate finds the payment a webhook event refers to: gateway id
// first, local order id as fallback.
func (s *PaymentService) correlate(ctx context.Context, evt *gateway.WebhookEvent) (*models.Payment, error) {
	if evt.GatewayPaymentID != "" {
		payment, err := s.ledger.FindByGatewayID(ctx, evt.GatewayPaymentID)
		if err == nil {
			return payment, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}

	if evt.OrderID != "" {
		payment, err := s.ledger.FindByIDUnscoped(ctx, evt.OrderID)
		if err == nil {
			return payment, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}

	return nil, ErrPaymentNotFound
}

// applyTransition runs a compare-and-set from pending and reloads the
// record if a concurrent writer got there first.
func (s *PaymentService) applyTransition(ctx context.Context, payment *models.Payment, target models.PaymentStatus, update models.StatusUpdate, trigger string) (*models.Payment, error) {
	applied, err := s.ledger.CompareAndSetStatus(ctx, payment.PaymentID, models.PaymentStatusPending, target, update)
	if err != nil {
		return nil, err
	}

	if !applied {
		// Lost the race: report whatever state won.
		current, err := s.ledger.FindByIDUnscoped(ctx, payment.PaymentID)
		if err != nil {
			return payment, nil
		}
		return current, nil
	}

	metrics.PaymentTransitions.WithLabelValues(string(target), trigger).Inc()
	s.logger.Info("payment status updated",
		zap.String("payment_id", payment.PaymentID),
		zap.String("old_status", string(payment.Status)),
		zap.String("new_status", string(target)))

	payment.Status = target
	if update.TxHash != nil {
		payment.TxHash = *update.TxHash
	}
	payment.UpdatedAt = time.Now()
	return payment, nil
}

func idempotencyKey(botID, key string) string {
	return fmt.Sprintf("idempotency:%s:%s", botID, key)
}
