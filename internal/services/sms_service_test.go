package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

type slowProvider struct{}

func (slowProvider) Name() string { return "slow" }

func (slowProvider) SendOTP(ctx context.Context, phone, code string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestSMSGateway_Delivered(t *testing.T) {
	logger, _ := test.NewNullLogger()
	p := newFakeProvider()
	g := NewSMSGateway(p, true, time.Second, logger)

	res, err := g.Deliver(context.Background(), testPhone, "123456")
	require.NoError(t, err)
	require.Equal(t, DeliveryResult{Provider: "fake", RequestID: "req-1"}, res)
	require.Equal(t, "123456", p.code(testPhone))
}

func TestSMSGateway_FallbackWritesCodeToLog(t *testing.T) {
	logger, hook := test.NewNullLogger()
	p := newFakeProvider()
	p.err = errors.New("quota exceeded")
	g := NewSMSGateway(p, true, time.Second, logger)

	res, err := g.Deliver(context.Background(), testPhone, "123456")
	require.NoError(t, err)
	require.True(t, res.Degraded)
	require.Equal(t, ConsoleProvider, res.Provider)
	require.EqualError(t, res.Cause, "quota exceeded")

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	require.Equal(t, logrus.WarnLevel, entry.Level)
	require.Equal(t, "123456", entry.Data["code"])
	require.Equal(t, testPhone, entry.Data["phone"])
}

func TestSMSGateway_NoProviderConfigured(t *testing.T) {
	logger, _ := test.NewNullLogger()
	g := NewSMSGateway(nil, true, 0, logger)

	res, err := g.Deliver(context.Background(), testPhone, "123456")
	require.NoError(t, err)
	require.True(t, res.Degraded)
	require.ErrorIs(t, res.Cause, errProviderNotConfigured)
}

func TestSMSGateway_FallbackDisabled(t *testing.T) {
	logger, _ := test.NewNullLogger()
	p := newFakeProvider()
	p.err = errors.New("quota exceeded")
	g := NewSMSGateway(p, false, time.Second, logger)

	_, err := g.Deliver(context.Background(), testPhone, "123456")
	require.ErrorIs(t, err, ErrDeliveryFailed)
	require.Contains(t, err.Error(), "quota exceeded")
}

func TestSMSGateway_TimeoutIgnoresCallerCancel(t *testing.T) {
	logger, _ := test.NewNullLogger()
	g := NewSMSGateway(slowProvider{}, true, 20*time.Millisecond, logger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	res, err := g.Deliver(ctx, testPhone, "123456")
	require.NoError(t, err)
	require.True(t, res.Degraded)
	require.ErrorIs(t, res.Cause, context.DeadlineExceeded)
	require.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}
