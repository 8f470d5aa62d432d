package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"blockforge/internal/auth"
	"blockforge/internal/services"
)

// CreditsHandler exposes balance and transaction-log reads
type CreditsHandler struct {
	ledger *services.LedgerService
	logger *zap.Logger
}

func NewCreditsHandler(ledger *services.LedgerService, logger *zap.Logger) *CreditsHandler {
	return &CreditsHandler{ledger: ledger, logger: logger}
}

// GetBalance returns the current user's credit balance
func (h *CreditsHandler) GetBalance(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	balance, err := h.ledger.Balance(c.Request.Context(), userID)
	if err != nil {
		if err == services.ErrUserNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		h.logger.Error("balance read failed", zap.Uint("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get balance"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    gin.H{"balance": balance},
	})
}

// GetTransactions returns the current user's recent ledger entries
func (h *CreditsHandler) GetTransactions(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	entries, err := h.ledger.Transactions(c.Request.Context(), userID, limit)
	if err != nil {
		h.logger.Error("transaction read failed", zap.Uint("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get transactions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    entries,
	})
}

// CanAfford answers the advisory affordability check used for UI gating.
// A positive answer is not a guarantee: the authoritative check happens
// inside the debit at spend time.
func (h *CreditsHandler) CanAfford(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	cost, err := strconv.ParseInt(c.Query("cost"), 10, 64)
	if err != nil || cost < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cost must be a non-negative integer"})
		return
	}

	ok, err := h.ledger.CanAfford(c.Request.Context(), userID, cost)
	if err != nil {
		if err == services.ErrUserNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		h.logger.Error("affordability check failed", zap.Uint("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check balance"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    gin.H{"can_afford": ok, "cost": cost},
	})
}
