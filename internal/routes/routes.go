package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"farmmarket/internal/authz"
	"farmmarket/internal/handlers"
	"farmmarket/internal/middleware"
	"farmmarket/internal/services"
)

func SetupRoutes(
	r *gin.Engine,
	otpHandler *handlers.OTPHandler,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	issuer services.CredentialIssuer,
) *gin.Engine {

	// ---- public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	auth := r.Group("/api/auth")
	{
		auth.POST("/otp/send", otpHandler.SendOTP)
		auth.POST("/otp/verify", otpHandler.VerifyOTP)
	}

	// ---- protected
	protected := r.Group("/api")
	protected.Use(middleware.AuthMiddleware(issuer))
	{
		protected.GET("/auth/me", authHandler.Me)

		admin := protected.Group("/admin")
		admin.Use(middleware.RequireRoles(authz.RoleAdmin))
		{
			admin.GET("/users", userHandler.ListUsers)
		}
	}

	return r
}
