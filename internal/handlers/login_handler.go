package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"blockforge/internal/auth"
	"blockforge/internal/services"
)

// LoginHandler exposes the daily-login bonus flow
type LoginHandler struct {
	logins *services.LoginService
	logger *zap.Logger
}

func NewLoginHandler(logins *services.LoginService, logger *zap.Logger) *LoginHandler {
	return &LoginHandler{logins: logins, logger: logger}
}

// DailyLogin grants the daily bonus for the current user. Invoked once per
// session start; repeat calls the same day are idempotent no-ops.
func (h *LoginHandler) DailyLogin(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	result, err := h.logins.HandleDailyLogin(c.Request.Context(), userID, time.Now())
	if err != nil {
		if err == services.ErrUserNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		h.logger.Error("daily login failed", zap.Uint("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process daily login"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

// GetHistory returns the user's recent daily bonus grants
func (h *LoginHandler) GetHistory(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	history, err := h.logins.History(c.Request.Context(), userID, 30)
	if err != nil {
		h.logger.Error("login history failed", zap.Uint("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get login history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    history,
	})
}
