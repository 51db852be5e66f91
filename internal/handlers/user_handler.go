package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"farmmarket/internal/models"
	"farmmarket/internal/services"
)

type UserHandler struct {
	users services.UserService
}

func NewUserHandler(users services.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// ListUsers: GET /api/admin/users?limit=&offset= (только admin)
func (h *UserHandler) ListUsers(c *gin.Context) {
	limit := queryInt(c, "limit", 50, 1, 200)
	offset := queryInt(c, "offset", 0, 0, 1<<30)

	users, err := h.users.ListUsers(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "internal_error", "Failed to list users", nil)
		return
	}
	if users == nil {
		users = []*models.User{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "users": users, "limit": limit, "offset": offset})
}
