package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"farmmarket/internal/models"
	"farmmarket/internal/services"
)

type OTPHandler struct {
	otp services.OTPService
	log logrus.FieldLogger
}

func NewOTPHandler(otp services.OTPService, log logrus.FieldLogger) *OTPHandler {
	return &OTPHandler{otp: otp, log: log}
}

// @Summary      Отправить OTP
// @Description  Генерирует 6-значный код и отправляет его по SMS на мобильный номер
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body      models.SendOTPRequest  true  "Мобильный номер"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]interface{}
// @Failure      429   {object}  map[string]interface{}
// @Failure      500   {object}  map[string]interface{}
// @Router       /api/auth/otp/send [post]
func (h *OTPHandler) SendOTP(c *gin.Context) {
	var req models.SendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Mobile) == "" {
		respondError(c, http.StatusBadRequest, "invalid_mobile", "Mobile number is required", nil)
		return
	}

	res, err := h.otp.RequestCode(c.Request.Context(), req.Mobile)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidPhone):
			respondError(c, http.StatusBadRequest, "invalid_mobile", "Please enter a valid 10-digit mobile number", nil)
		case errors.Is(err, services.ErrSendThrottled):
			respondError(c, http.StatusTooManyRequests, "too_many_requests", "Too many OTP requests, please try again later", nil)
		case errors.Is(err, services.ErrDeliveryFailed):
			respondError(c, http.StatusInternalServerError, "delivery_failed", "Failed to send OTP", nil)
		default:
			h.log.WithError(err).Error("[otp][send] unexpected error")
			respondError(c, http.StatusInternalServerError, "internal_error", "Failed to send OTP", nil)
		}
		return
	}

	body := gin.H{
		"success":   true,
		"message":   "OTP sent successfully",
		"mobile":    res.Mobile,
		"sessionId": res.SessionID,
		"provider":  res.Provider,
		"expiresIn": humanizeTTL(res.TTL),
	}
	if res.Code != "" {
		body["otp"] = res.Code
	}
	c.JSON(http.StatusOK, body)
}

// @Summary      Проверить OTP
// @Description  Проверяет код, при успехе создаёт/обновляет пользователя и возвращает токен
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body      models.VerifyOTPRequest  true  "Номер, код и имя (для первого входа)"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]interface{}
// @Failure      500   {object}  map[string]interface{}
// @Router       /api/auth/otp/verify [post]
func (h *OTPHandler) VerifyOTP(c *gin.Context) {
	var req models.VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "Mobile number and OTP are required", nil)
		return
	}

	res, err := h.otp.VerifyCode(c.Request.Context(), req.Mobile, req.OTP, req.Name)
	if err != nil {
		var mismatch *services.CodeMismatchError
		switch {
		case errors.As(err, &mismatch):
			respondError(c, http.StatusBadRequest, "invalid_code", "Invalid OTP", gin.H{"attemptsLeft": mismatch.AttemptsLeft})
		case errors.Is(err, services.ErrMissingFields):
			respondError(c, http.StatusBadRequest, "invalid_request", "Mobile number and OTP are required", nil)
		case errors.Is(err, services.ErrInvalidCode):
			respondError(c, http.StatusBadRequest, "invalid_otp", "OTP must be 6 digits", nil)
		case errors.Is(err, services.ErrSessionNotFound):
			respondError(c, http.StatusBadRequest, "session_not_found", "OTP session not found, please request a new OTP", nil)
		case errors.Is(err, services.ErrCodeExpired):
			respondError(c, http.StatusBadRequest, "otp_expired", "OTP has expired, please request a new OTP", nil)
		case errors.Is(err, services.ErrTooManyAttempts):
			respondError(c, http.StatusBadRequest, "too_many_attempts", "Too many failed attempts, please request a new OTP", nil)
		case errors.Is(err, services.ErrMissingName):
			respondError(c, http.StatusBadRequest, "name_required", "Name is required for new users", nil)
		case errors.Is(err, services.ErrNameTooLong):
			respondError(c, http.StatusBadRequest, "invalid_name", "Name is too long", nil)
		default:
			h.log.WithError(err).Error("[otp][verify] unexpected error")
			respondError(c, http.StatusInternalServerError, "internal_error", "Verification failed", nil)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "Login successful",
		"token":     res.Token,
		"expiresAt": res.ExpiresAt.UTC().Format(timeLayout),
		"isNewUser": res.IsNewUser,
		"user":      res.User.Public(),
	})
}
