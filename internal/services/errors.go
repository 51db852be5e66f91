package services

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidPhone    = errors.New("invalid mobile number")
	ErrInvalidCode     = errors.New("otp must be exactly 6 digits")
	ErrMissingFields   = errors.New("mobile and otp are required")
	ErrMissingName     = errors.New("name is required for first-time login")
	ErrNameTooLong     = errors.New("name is too long")
	ErrSessionNotFound = errors.New("otp session not found")
	ErrCodeExpired     = errors.New("code expired")
	ErrTooManyAttempts = errors.New("too many attempts")
	ErrCodeMismatch    = errors.New("code invalid")
	ErrSendThrottled   = errors.New("send throttled")
	ErrDeliveryFailed  = errors.New("sms delivery failed")
	ErrUserNotFound    = errors.New("user not found")
)

// CodeMismatchError: неверный код, сессия жива ещё AttemptsLeft попыток.
type CodeMismatchError struct {
	AttemptsLeft int
}

func (e *CodeMismatchError) Error() string {
	return fmt.Sprintf("%s: %d attempts left", ErrCodeMismatch, e.AttemptsLeft)
}

func (e *CodeMismatchError) Is(target error) bool {
	return target == ErrCodeMismatch
}
