// internal/middleware/auth.go
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jawaddepp/crypto-payments-api/internal/models"
	"github.com/jawaddepp/crypto-payments-api/internal/service"
)

const botContextKey = "authenticated_bot"

// BotAuth resolves the X-Bot-Token header to an active bot and stores
// it on the request context.
func BotAuth(bots *service.BotService, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("X-Bot-Token")
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "Missing bot token header",
			})
			return
		}

		bot, err := bots.Authenticate(c.Request.Context(), token)
		if err != nil {
			log.Warn("bot authentication failed", zap.String("request_id", c.GetString("request_id")))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "Invalid bot token or bot is inactive",
			})
			return
		}

		c.Set(botContextKey, bot)
		c.Next()
	}
}

// BotFromContext returns the bot set by BotAuth. Only call it behind
// that middleware.
func BotFromContext(c *gin.Context) *models.Bot {
	bot, _ := c.MustGet(botContextKey).(*models.Bot)
	return bot
}

// AdminAuth guards bot management with the admin's Telegram id.
func AdminAuth(adminTelegramID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader("X-Admin-Telegram-Id")
		if adminTelegramID == "" || got != adminTelegramID {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "Unauthorized: Only the admin can manage bots",
			})
			return
		}
		c.Next()
	}
}
