// internal/service/bot_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jawaddepp/crypto-payments-api/internal/models"
	"github.com/jawaddepp/crypto-payments-api/internal/repository"
)

// BotService manages bot operator registrations and resolves tokens
// during authentication.
type BotService struct {
	repo   *repository.BotRepository
	logger *zap.Logger
}

func NewBotService(repo *repository.BotRepository, logger *zap.Logger) *BotService {
	return &BotService{repo: repo, logger: logger}
}

// Register creates a new bot under an immutable uuid. The token is a
// credential only; nothing else ever references it.
func (s *BotService) Register(ctx context.Context, req *models.RegisterBotRequest, registeredBy string) (*models.Bot, error) {
	if req.Name == "" || req.Token == "" || req.GatewayAPIKey == "" || req.WebhookSecret == "" {
		return nil, fmt.Errorf("%w: name, token, gatewayApiKey and webhookSecret are required", ErrValidation)
	}

	currencies := req.AllowedCurrencies
	if len(currencies) == 0 {
		currencies = models.DefaultAllowedCurrencies
	}

	now := time.Now()
	bot := &models.Bot{
		ID:                uuid.New().String(),
		Name:              req.Name,
		Token:             req.Token,
		RegisteredBy:      registeredBy,
		GatewayAPIKey:     req.GatewayAPIKey,
		WebhookSecret:     req.WebhookSecret,
		AllowedCurrencies: currencies,
		IsActive:          true,
		CreatedAt:         now,
		LastUsedAt:        now,
	}

	if err := s.repo.Insert(ctx, bot); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrBotExists
		}
		return nil, fmt.Errorf("failed to register bot: %w", err)
	}

	s.logger.Info("bot registered",
		zap.String("bot_id", bot.ID),
		zap.String("name", bot.Name),
		zap.Strings("allowed_currencies", bot.AllowedCurrencies))

	return bot, nil
}

// Authenticate resolves a token to its active bot and refreshes the
// last-used timestamp.
func (s *BotService) Authenticate(ctx context.Context, token string) (*models.Bot, error) {
	bot, err := s.repo.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBotNotFound
		}
		return nil, err
	}
	if !bot.IsActive {
		return nil, ErrBotNotFound
	}

	if err := s.repo.TouchLastUsed(ctx, bot.ID); err != nil {
		s.logger.Warn("failed to touch bot last_used_at", zap.String("bot_id", bot.ID), zap.Error(err))
	}

	return bot, nil
}

func (s *BotService) List(ctx context.Context) ([]*models.Bot, error) {
	return s.repo.List(ctx)
}

// SetActive toggles a bot; inactive bots fail authentication but their
// historical payments remain queryable by webhook correlation.
func (s *BotService) SetActive(ctx context.Context, id string, active bool) error {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrBotNotFound
		}
		return err
	}
	return nil
}
