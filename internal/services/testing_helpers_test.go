package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"farmmarket/internal/repositories"
)

const testPhone = "9876543210"

type fakeProvider struct {
	mu    sync.Mutex
	codes map[string]string
	calls int
	err   error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{codes: make(map[string]string)}
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) SendOTP(ctx context.Context, phone, code string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return "", p.err
	}
	p.codes[phone] = code
	return "req-1", nil
}

func (p *fakeProvider) code(phone string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.codes[phone]
}

type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
}

func (p *recordingPublisher) Publish(ctx context.Context, routingKey string, body any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, routingKey)
	return nil
}

func (p *recordingPublisher) Close() {}

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...)
}

type otpFixture struct {
	svc       *otpService
	provider  *fakeProvider
	sessions  *repositories.MemoryOTPSessionRepository
	users     UserService
	issuer    CredentialIssuer
	publisher *recordingPublisher
	logHook   *test.Hook
	clock     *time.Time
}

func newOTPFixture(t *testing.T, opts OTPOptions, fallback bool) *otpFixture {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	opts.HashCost = bcrypt.MinCost
	provider := newFakeProvider()
	sessions := repositories.NewMemoryOTPSessionRepository()
	users := NewUserService(repositories.NewMemoryUserRepository(), "mobile.farmmarket.in")
	issuer, err := NewCredentialIssuer("test-secret", "farmmarket", 0)
	require.NoError(t, err)
	pub := &recordingPublisher{}

	svc := NewOTPService(
		sessions,
		repositories.NewMemoryOTPSendCounter(),
		NewSMSGateway(provider, fallback, time.Second, logger),
		issuer,
		users,
		pub,
		opts,
		logger,
	).(*otpService)

	clock := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	f := &otpFixture{svc: svc, provider: provider, sessions: sessions, users: users, issuer: issuer, publisher: pub, logHook: hook, clock: &clock}
	svc.now = func() time.Time { return *f.clock }
	users.(*userService).now = svc.now
	return f
}

func (f *otpFixture) advance(d time.Duration) {
	*f.clock = f.clock.Add(d)
}

// wrongCode возвращает валидный по формату код, отличный от code.
func wrongCode(code string) string {
	if code == "111111" {
		return "222222"
	}
	return "111111"
}
