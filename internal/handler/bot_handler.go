// internal/handler/bot_handler.go
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jawaddepp/crypto-payments-api/internal/models"
	"github.com/jawaddepp/crypto-payments-api/internal/service"
)

type BotHandler struct {
	service *service.BotService
	logger  *zap.Logger
}

func NewBotHandler(service *service.BotService, logger *zap.Logger) *BotHandler {
	return &BotHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterBot handles POST /api/bots
func (h *BotHandler) RegisterBot(c *gin.Context) {
	var req models.RegisterBotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	bot, err := h.service.Register(c.Request.Context(), &req, c.GetHeader("X-Admin-Telegram-Id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		case errors.Is(err, service.ErrBotExists):
			c.JSON(http.StatusConflict, gin.H{"success": false, "error": "Bot with this name or token already exists"})
		default:
			h.logger.Error("failed to register bot", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to register bot"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": bot})
}

// ListBots handles GET /api/bots
func (h *BotHandler) ListBots(c *gin.Context) {
	bots, err := h.service.List(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list bots", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to get bots"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": bots})
}

// ActivateBot handles POST /api/bots/:id/activate
func (h *BotHandler) ActivateBot(c *gin.Context) {
	h.setActive(c, true)
}

// DeactivateBot handles POST /api/bots/:id/deactivate
func (h *BotHandler) DeactivateBot(c *gin.Context) {
	h.setActive(c, false)
}

func (h *BotHandler) setActive(c *gin.Context, active bool) {
	id := c.Param("id")

	if err := h.service.SetActive(c.Request.Context(), id, active); err != nil {
		if errors.Is(err, service.ErrBotNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Bot not found"})
			return
		}
		h.logger.Error("failed to update bot", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to update bot"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"id": id, "is_active": active}})
}
