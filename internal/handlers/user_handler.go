package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"blockforge/internal/auth"
	"blockforge/internal/services"
)

// UserHandler handles user-related endpoints
type UserHandler struct {
	userService *services.UserService
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// GetProfile returns the current user's profile
func (h *UserHandler) GetProfile(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	user, err := h.userService.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"id":              user.ID,
			"email":           user.Email,
			"username":        user.Username,
			"avatar_url":      user.AvatarURL,
			"credits_balance": user.CreditsBalance,
			"login_streak":    user.LoginStreak,
			"total_logins":    user.TotalLogins,
			"tasks_completed": user.TasksCompleted,
			"created_at":      user.CreatedAt,
		},
	})
}
