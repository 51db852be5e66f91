package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"farmmarket/internal/utils"
)

const (
	ConsoleProvider        = "console"
	defaultDeliveryTimeout = 10 * time.Second
)

var errProviderNotConfigured = errors.New("sms provider not configured")

// SMSProvider: внешний канал доставки кода.
type SMSProvider interface {
	Name() string
	SendOTP(ctx context.Context, phone, code string) (requestID string, err error)
}

// DeliveryResult: итог отправки. Degraded=true значит, что код ушёл в локальный канал (лог),
// а Cause содержит причину отказа основного провайдера.
type DeliveryResult struct {
	Provider  string
	RequestID string
	Degraded  bool
	Cause     error
}

// SMSGateway доставляет код через провайдера, а при сбое пишет его в лог, если фолбэк включён.
type SMSGateway struct {
	primary  SMSProvider
	fallback bool
	timeout  time.Duration
	log      logrus.FieldLogger
}

// NewSMSGateway: primary может быть nil, тогда каждая отправка идёт в локальный канал.
func NewSMSGateway(primary SMSProvider, fallback bool, timeout time.Duration, log logrus.FieldLogger) *SMSGateway {
	if timeout <= 0 {
		timeout = defaultDeliveryTimeout
	}
	return &SMSGateway{primary: primary, fallback: fallback, timeout: timeout, log: log}
}

// Deliver не возвращает ошибку, пока фолбэк включён.
// С выключенным фолбэком отказ провайдера возвращается как ErrDeliveryFailed.
func (g *SMSGateway) Deliver(ctx context.Context, phone, code string) (DeliveryResult, error) {
	cause := errProviderNotConfigured
	if g.primary != nil {
		// отправку не прерываем при обрыве клиента, ограничивает только собственный таймаут
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
		requestID, err := g.primary.SendOTP(sendCtx, phone, code)
		cancel()
		if err == nil {
			g.log.WithFields(logrus.Fields{
				"phone":      utils.MaskMobile(phone),
				"provider":   g.primary.Name(),
				"request_id": requestID,
			}).Info("[sms][send] delivered")
			return DeliveryResult{Provider: g.primary.Name(), RequestID: requestID}, nil
		}
		cause = err
	}

	if !g.fallback {
		g.log.WithError(cause).WithField("phone", utils.MaskMobile(phone)).Error("[sms][send] delivery failed, fallback disabled")
		return DeliveryResult{}, fmt.Errorf("%w: %v", ErrDeliveryFailed, cause)
	}

	// локальный канал: код видит только оператор в логах
	g.log.WithError(cause).WithFields(logrus.Fields{
		"phone":    phone,
		"code":     code,
		"provider": ConsoleProvider,
	}).Warn("[sms][fallback] provider unavailable, code written to log")
	return DeliveryResult{Provider: ConsoleProvider, Degraded: true, Cause: cause}, nil
}
