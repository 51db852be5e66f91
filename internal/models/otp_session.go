package models

import "time"

// OTPSession — ожидающая проверки сессия входа по номеру телефона.
// На один номер живёт не больше одной сессии; новая отправка кода её заменяет.
type OTPSession struct {
	Phone             string    `json:"phone"`
	SessionID         string    `json:"session_id"`
	CodeHash          string    `json:"code_hash"` // bcrypt, сам код не храним
	Attempts          int       `json:"attempts"`
	MaxAttempts       int       `json:"max_attempts"`
	CreatedAt         time.Time `json:"created_at"`
	ExpiresAt         time.Time `json:"expires_at"`
	Verified          bool      `json:"verified"`
	Provider          string    `json:"provider"`
	ProviderRequestID string    `json:"provider_request_id,omitempty"`
}

func (s *OTPSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

func (s *OTPSession) Exhausted() bool {
	return s.Attempts >= s.MaxAttempts
}

func (s *OTPSession) AttemptsLeft() int {
	if left := s.MaxAttempts - s.Attempts; left > 0 {
		return left
	}
	return 0
}

type SendOTPRequest struct {
	Mobile string `json:"mobile"`
}

type VerifyOTPRequest struct {
	Mobile string `json:"mobile"`
	OTP    string `json:"otp"`
	Name   string `json:"name"`
}
