package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"farmmarket/internal/events"
	"farmmarket/internal/models"
	"farmmarket/internal/repositories"
	"farmmarket/internal/utils"
)

// Значения по умолчанию (переопределяются конфигом)
const (
	defaultOTPTTL      = 10 * time.Minute
	defaultMaxAttempts = 3
)

type OTPOptions struct {
	TTL         time.Duration
	MaxAttempts int
	SendLimit   int // 0 = без ограничения
	SendWindow  time.Duration
	ExposeCode  bool
	HashCost    int
}

type SendResult struct {
	Mobile    string
	SessionID string
	Provider  string
	Degraded  bool
	ExpiresAt time.Time
	TTL       time.Duration
	Code      string // пусто, если код не отдаём клиенту
}

type VerifyResult struct {
	Token     string
	ExpiresAt time.Time
	User      *models.User
	IsNewUser bool
	SessionID string
}

type OTPService interface {
	RequestCode(ctx context.Context, mobile string) (*SendResult, error)
	VerifyCode(ctx context.Context, mobile, code, name string) (*VerifyResult, error)
}

type otpService struct {
	sessions repositories.OTPSessionRepository
	counter  repositories.OTPSendCounter
	gateway  *SMSGateway
	issuer   CredentialIssuer
	users    UserService
	events   events.Publisher
	opts     OTPOptions
	log      logrus.FieldLogger
	now      func() time.Time
}

// NewOTPService: counter и publisher могут быть nil.
func NewOTPService(
	sessions repositories.OTPSessionRepository,
	counter repositories.OTPSendCounter,
	gateway *SMSGateway,
	issuer CredentialIssuer,
	users UserService,
	publisher events.Publisher,
	opts OTPOptions,
	log logrus.FieldLogger,
) OTPService {
	if opts.TTL <= 0 {
		opts.TTL = defaultOTPTTL
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.HashCost < bcrypt.MinCost || opts.HashCost > bcrypt.MaxCost {
		opts.HashCost = bcrypt.DefaultCost
	}
	return &otpService{
		sessions: sessions,
		counter:  counter,
		gateway:  gateway,
		issuer:   issuer,
		users:    users,
		events:   publisher,
		opts:     opts,
		log:      log,
		now:      time.Now,
	}
}

func (s *otpService) RequestCode(ctx context.Context, mobile string) (*SendResult, error) {
	phone := utils.NormalizeMobile(mobile)
	if !utils.IsValidMobile(phone) {
		return nil, ErrInvalidPhone
	}
	logger := s.log.WithField("phone", utils.MaskMobile(phone))

	if s.counter != nil && s.opts.SendLimit > 0 {
		n, err := s.counter.Hit(ctx, phone, s.opts.SendWindow)
		switch {
		case err != nil:
			// счётчик недоступен, вход не блокируем
			logger.WithError(err).Warn("[otp][send] send counter unavailable")
		case n > s.opts.SendLimit:
			logger.WithField("sends", n).Warn("[otp][send] throttled")
			return nil, ErrSendThrottled
		}
	}

	code := utils.GenerateOTP()
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.opts.HashCost)
	if err != nil {
		return nil, fmt.Errorf("bcrypt generate: %w", err)
	}

	delivery, err := s.gateway.Deliver(ctx, phone, code)
	if err != nil {
		return nil, err
	}

	now := s.now()
	sess := &models.OTPSession{
		Phone:             phone,
		SessionID:         uuid.NewString(),
		CodeHash:          string(hash),
		Attempts:          0,
		MaxAttempts:       s.opts.MaxAttempts,
		CreatedAt:         now,
		ExpiresAt:         now.Add(s.opts.TTL),
		Provider:          delivery.Provider,
		ProviderRequestID: delivery.RequestID,
	}
	// новая сессия заменяет предыдущую целиком
	if err := s.sessions.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("store otp session: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"session_id": sess.SessionID,
		"provider":   delivery.Provider,
		"degraded":   delivery.Degraded,
	}).Info("[otp][send] session created")

	res := &SendResult{
		Mobile:    phone,
		SessionID: sess.SessionID,
		Provider:  delivery.Provider,
		Degraded:  delivery.Degraded,
		ExpiresAt: sess.ExpiresAt,
		TTL:       s.opts.TTL,
	}
	if s.opts.ExposeCode || delivery.Degraded {
		res.Code = code
	}
	return res, nil
}

func (s *otpService) VerifyCode(ctx context.Context, mobile, code, name string) (*VerifyResult, error) {
	phone := utils.NormalizeMobile(mobile)
	code = strings.TrimSpace(code)
	name = strings.TrimSpace(name)
	if phone == "" || code == "" {
		return nil, ErrMissingFields
	}
	if !utils.IsOTPCode(code) {
		return nil, ErrInvalidCode
	}
	logger := s.log.WithField("phone", utils.MaskMobile(phone))

	// Для нового номера имя обязательно. Имя проверяем заранее, чтобы не сжечь сессию
	// верным кодом с негодным именем; ошибку имени отдаём только после совпадения кода.
	nameTooLong := len(name) > maxNameLength
	needsName := false
	if name == "" {
		exists, err := s.users.Exists(ctx, phone)
		if err != nil {
			return nil, err
		}
		needsName = !exists
	}

	var consumed models.OTPSession
	err := s.sessions.Update(ctx, phone, func(sess *models.OTPSession) (repositories.UpdateAction, error) {
		if sess == nil {
			return repositories.KeepSession, ErrSessionNotFound
		}
		if sess.Expired(s.now()) {
			return repositories.DeleteSession, ErrCodeExpired
		}
		if sess.Exhausted() {
			return repositories.DeleteSession, ErrTooManyAttempts
		}
		if bcrypt.CompareHashAndPassword([]byte(sess.CodeHash), []byte(code)) != nil {
			sess.Attempts++
			if sess.Exhausted() {
				return repositories.DeleteSession, ErrTooManyAttempts
			}
			return repositories.SaveSession, &CodeMismatchError{AttemptsLeft: sess.AttemptsLeft()}
		}
		if needsName {
			return repositories.KeepSession, ErrMissingName
		}
		if nameTooLong {
			return repositories.KeepSession, ErrNameTooLong
		}
		sess.Verified = true
		consumed = *sess
		return repositories.DeleteSession, nil
	})
	if err != nil {
		var mismatch *CodeMismatchError
		if errors.As(err, &mismatch) {
			logger.WithField("attempts_left", mismatch.AttemptsLeft).Info("[otp][verify] invalid code")
		} else {
			logger.WithError(err).Info("[otp][verify] rejected")
		}
		return nil, err
	}

	user, created, err := s.users.Upsert(ctx, phone, name)
	if err != nil {
		logger.WithError(err).Error("[otp][verify] user upsert failed after session was consumed")
		return nil, err
	}

	token, exp, err := s.issuer.Issue(user.ID, user.Phone, user.Role)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, user, created)
	logger.WithFields(logrus.Fields{
		"session_id":  consumed.SessionID,
		"user_id":     user.ID,
		"is_new_user": created,
	}).Info("[otp][verify] OK")

	return &VerifyResult{
		Token:     token,
		ExpiresAt: exp,
		User:      user,
		IsNewUser: created,
		SessionID: consumed.SessionID,
	}, nil
}

func (s *otpService) publish(ctx context.Context, user *models.User, created bool) {
	if s.events == nil {
		return
	}
	routingKey := events.UserLoggedIn
	if created {
		routingKey = events.UserRegistered
	}
	ev := events.UserEvent{UserID: user.ID, Mobile: user.Phone, Role: user.Role, OccurredAt: s.now()}
	if err := s.events.Publish(ctx, routingKey, ev); err != nil {
		s.log.WithError(err).WithField("routing_key", routingKey).Warn("[otp][verify] event publish failed")
	}
}
