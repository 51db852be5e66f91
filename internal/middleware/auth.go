package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"farmmarket/internal/authz"
	"farmmarket/internal/services"
)

const (
	CtxUserID = "user_id"
	CtxRole   = "role"
	CtxMobile = "mobile"
)

func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"message": message,
		"error":   "unauthorized",
	})
}

// AuthMiddleware проверяет Bearer-токен, выданный после OTP-входа.
func AuthMiddleware(issuer services.CredentialIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		// пропускаем preflight
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			unauthorized(c, "Missing or invalid Authorization header")
			return
		}

		claims, err := issuer.Verify(strings.TrimSpace(parts[1]))
		if err != nil || !authz.IsKnown(claims.Role) {
			unauthorized(c, "Invalid or expired token")
			return
		}

		c.Set(CtxUserID, claims.UserID)
		c.Set(CtxRole, claims.Role)
		c.Set(CtxMobile, claims.Mobile)
		c.Next()
	}
}
