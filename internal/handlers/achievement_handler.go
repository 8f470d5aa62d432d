package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"blockforge/internal/auth"
	"blockforge/internal/services"
)

// AchievementHandler exposes the achievement catalog and evaluation
type AchievementHandler struct {
	achievements *services.AchievementService
	logger       *zap.Logger
}

func NewAchievementHandler(achievements *services.AchievementService, logger *zap.Logger) *AchievementHandler {
	return &AchievementHandler{achievements: achievements, logger: logger}
}

// GetAchievements returns the full catalog plus the user's earned set
func (h *AchievementHandler) GetAchievements(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	catalog, err := h.achievements.Catalog(c.Request.Context())
	if err != nil {
		h.logger.Error("catalog read failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get achievements"})
		return
	}

	earned, err := h.achievements.EarnedBy(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("earned read failed", zap.Uint("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get achievements"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"catalog": catalog,
			"earned":  earned,
		},
	})
}

// Evaluate runs achievement evaluation for the current user and returns
// anything newly unlocked. Safe to call after any activity.
func (h *AchievementHandler) Evaluate(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	awarded, err := h.achievements.EvaluateAchievements(c.Request.Context(), userID)
	if err != nil {
		if err == services.ErrUserNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		h.logger.Error("achievement evaluation failed", zap.Uint("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to evaluate achievements"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    awarded,
	})
}
