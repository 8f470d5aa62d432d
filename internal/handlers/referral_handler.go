package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"blockforge/internal/auth"
	"blockforge/internal/services"
)

// ReferralHandler exposes referral codes and the referral summary
type ReferralHandler struct {
	referrals *services.ReferralService
	logger    *zap.Logger
}

func NewReferralHandler(referrals *services.ReferralService, logger *zap.Logger) *ReferralHandler {
	return &ReferralHandler{referrals: referrals, logger: logger}
}

// GetReferralCode returns user's referral code
func (h *ReferralHandler) GetReferralCode(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	code, err := h.referrals.GetOrCreateCode(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("referral code lookup failed", zap.Uint("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get referral code"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    code,
	})
}

// ApplyReferralCode applies a referral code to the current user
func (h *ReferralHandler) ApplyReferralCode(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	referral, err := h.referrals.ApplyCode(c.Request.Context(), userID, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidReferralCode),
			errors.Is(err, services.ErrSelfReferral),
			errors.Is(err, services.ErrAlreadyReferred):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger.Error("referral apply failed", zap.Uint("user_id", userID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to apply referral code"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    referral,
	})
}

// GetSummary returns referral statistics for the current user
func (h *ReferralHandler) GetSummary(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	summary, err := h.referrals.Summary(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("referral summary failed", zap.Uint("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get referral summary"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    summary,
	})
}
