// internal/handler/payment_handler.go
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jawaddepp/crypto-payments-api/internal/gateway"
	"github.com/jawaddepp/crypto-payments-api/internal/middleware"
	"github.com/jawaddepp/crypto-payments-api/internal/models"
	"github.com/jawaddepp/crypto-payments-api/internal/service"
)

type PaymentHandler struct {
	service *service.PaymentService
	logger  *zap.Logger
}

func NewPaymentHandler(service *service.PaymentService, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: service,
		logger:  logger,
	}
}

// CreatePayment handles POST /api/payments
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	bot := middleware.BotFromContext(c)

	var req models.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	payment, err := h.service.Create(c.Request.Context(), bot, &req)
	if err != nil {
		h.renderCreateError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data": models.CreatePaymentResponse{
			PaymentID:    payment.PaymentID,
			Currency:     payment.Currency,
			Amount:       payment.Amount,
			CryptoAmount: payment.CryptoAmount,
			Address:      payment.Address,
			PaymentURL:   payment.PaymentURL,
			ExpiresAt:    payment.ExpiresAt,
		},
	})
}

// GetPayment handles GET /api/payments/:id
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	bot := middleware.BotFromContext(c)

	payment, err := h.service.GetStatus(c.Request.Context(), bot, c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrPaymentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Payment not found"})
			return
		}
		h.logger.Error("failed to get payment status", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to get payment status"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": models.PaymentStatusResponse{
			PaymentID: payment.PaymentID,
			Status:    string(payment.Status),
			TxHash:    payment.TxHash,
			ExpiresAt: payment.ExpiresAt,
		},
	})
}

// Webhook handles POST /api/payments/webhook. The body is consumed raw
// because signature verification runs over the exact bytes received.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Failed to read body"})
		return
	}

	sigHeader := c.GetHeader("X-Signature")
	if sigHeader == "" {
		sigHeader = c.GetHeader("X-Usegateway-Signature")
	}
	if sigHeader == "" {
		sigHeader = c.GetHeader("Webhook-Signature")
	}

	aux := map[string]string{
		"webhook-id":        c.GetHeader("Webhook-Id"),
		"webhook-timestamp": c.GetHeader("Webhook-Timestamp"),
	}

	result, err := h.service.HandleWebhook(c.Request.Context(), raw, sigHeader, aux)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPaymentNotFound):
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Payment not found"})
		case errors.Is(err, service.ErrInvalidSignature):
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid signature"})
		default:
			h.logger.Error("webhook processing failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Webhook processing failed"})
		}
		return
	}

	// Duplicates and no-ops answer success too, so the gateway never
	// enters a retry storm over an already-settled payment.
	c.JSON(http.StatusOK, gin.H{"success": true, "received": true, "status": result.Status})
}

func (h *PaymentHandler) renderCreateError(c *gin.Context, err error) {
	var rejected *gateway.RejectedError

	switch {
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
	case errors.As(err, &rejected):
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"error":   "Failed to create payment with gateway",
			"details": rejected.Message,
		})
	case errors.Is(err, gateway.ErrUnavailable), errors.Is(err, gateway.ErrMalformedResponse):
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"error":   "Failed to create payment with gateway",
			"details": err.Error(),
		})
	default:
		h.logger.Error("failed to create payment", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to create payment"})
	}
}
