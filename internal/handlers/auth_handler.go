package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"farmmarket/internal/middleware"
	"farmmarket/internal/services"
)

const timeLayout = time.RFC3339

type AuthHandler struct {
	users services.UserService
}

func NewAuthHandler(users services.UserService) *AuthHandler {
	return &AuthHandler{users: users}
}

// @Summary      Текущий пользователь
// @Tags         Auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}
// @Failure      401  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Router       /api/auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserID)
	user, err := h.users.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "internal_error", "Failed to load user", nil)
		return
	}
	if user == nil {
		respondError(c, http.StatusNotFound, "user_not_found", "User not found", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user.Public()})
}
