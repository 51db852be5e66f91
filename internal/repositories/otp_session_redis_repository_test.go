package repositories

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"farmmarket/internal/models"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedisSessions_PutGetDeleteWithTTL(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)
	repo := NewRedisOTPSessionRepository(rdb)

	s := newSession("9876543210", time.Now())
	require.NoError(t, repo.Put(ctx, s))
	require.True(t, mr.Exists("otp:session:9876543210"))
	require.Greater(t, mr.TTL("otp:session:9876543210"), 9*time.Minute)

	got, err := repo.Get(ctx, "9876543210")
	require.NoError(t, err)
	require.Equal(t, s.SessionID, got.SessionID)
	require.Equal(t, s.CodeHash, got.CodeHash)
	require.True(t, s.ExpiresAt.Equal(got.ExpiresAt))

	require.NoError(t, repo.Delete(ctx, "9876543210"))
	got, err = repo.Get(ctx, "9876543210")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestRedisSessions_ExpiresWithKeyTTL(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)
	repo := NewRedisOTPSessionRepository(rdb)

	require.NoError(t, repo.Put(ctx, newSession("9876543210", time.Now())))
	mr.FastForward(11 * time.Minute)

	got, err := repo.Get(ctx, "9876543210")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestRedisSessions_Update(t *testing.T) {
	ctx := context.Background()
	_, rdb := newTestRedis(t)
	repo := NewRedisOTPSessionRepository(rdb)

	err := repo.Update(ctx, "9876543210", func(s *models.OTPSession) (UpdateAction, error) {
		require.Nil(t, s)
		return KeepSession, nil
	})
	require.NoError(t, err)

	require.NoError(t, repo.Put(ctx, newSession("9876543210", time.Now())))
	require.NoError(t, repo.Update(ctx, "9876543210", func(s *models.OTPSession) (UpdateAction, error) {
		s.Attempts = 2
		return SaveSession, nil
	}))
	got, _ := repo.Get(ctx, "9876543210")
	require.Equal(t, 2, got.Attempts)

	require.NoError(t, repo.Update(ctx, "9876543210", func(s *models.OTPSession) (UpdateAction, error) {
		return DeleteSession, nil
	}))
	got, _ = repo.Get(ctx, "9876543210")
	require.Nil(t, got)
}

func TestRedisSessions_ConcurrentUpdates(t *testing.T) {
	ctx := context.Background()
	_, rdb := newTestRedis(t)
	repo := NewRedisOTPSessionRepository(rdb)
	require.NoError(t, repo.Put(ctx, newSession("9876543210", time.Now())))

	// каждое обновление либо применяется, либо возвращает TxFailedErr после ретраев
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.Update(ctx, "9876543210", func(s *models.OTPSession) (UpdateAction, error) {
				s.Attempts++
				return SaveSession, nil
			})
			if err == nil {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	got, _ := repo.Get(ctx, "9876543210")
	require.Equal(t, applied, got.Attempts)
}

func TestRedisSendCounter(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)
	c := NewRedisOTPSendCounter(rdb)

	for i := 1; i <= 3; i++ {
		n, err := c.Hit(ctx, "9876543210", time.Minute)
		require.NoError(t, err)
		require.Equal(t, i, n)
	}
	require.Equal(t, time.Minute, mr.TTL("otp:sends:9876543210"))

	mr.FastForward(time.Minute)
	n, err := c.Hit(ctx, "9876543210", time.Minute)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestRedisSendCounter_RestoresMissingTTL(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)
	c := NewRedisOTPSendCounter(rdb)

	// ключ остался без срока после сбоя между INCR и EXPIRE
	require.NoError(t, mr.Set("otp:sends:9876543210", "7"))

	n, err := c.Hit(ctx, "9876543210", time.Minute)
	require.NoError(t, err)
	require.Equal(t, 8, n)
	require.Equal(t, time.Minute, mr.TTL("otp:sends:9876543210"))

	mr.FastForward(time.Minute)
	n, err = c.Hit(ctx, "9876543210", time.Minute)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
