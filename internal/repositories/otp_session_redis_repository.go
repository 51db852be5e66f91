package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"farmmarket/internal/models"
)

const (
	sessionKeyPrefix = "otp:session:"
	maxTxRetries     = 10
)

// RedisOTPSessionRepository хранит сессии в Redis с TTL до expiresAt.
// Update построен на WATCH/MULTI: при конкурентной записи транзакция повторяется.
type RedisOTPSessionRepository struct {
	rdb *redis.Client
	now func() time.Time
}

func NewRedisOTPSessionRepository(rdb *redis.Client) *RedisOTPSessionRepository {
	return &RedisOTPSessionRepository{rdb: rdb, now: time.Now}
}

func (r *RedisOTPSessionRepository) key(phone string) string {
	return sessionKeyPrefix + phone
}

func (r *RedisOTPSessionRepository) ttl(s *models.OTPSession) time.Duration {
	ttl := s.ExpiresAt.Sub(r.now())
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

func (r *RedisOTPSessionRepository) Put(ctx context.Context, s *models.OTPSession) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("otp session marshal: %w", err)
	}
	if err := r.rdb.Set(ctx, r.key(s.Phone), b, r.ttl(s)).Err(); err != nil {
		return fmt.Errorf("otp session put: %w", err)
	}
	return nil
}

func (r *RedisOTPSessionRepository) Get(ctx context.Context, phone string) (*models.OTPSession, error) {
	return r.get(ctx, r.rdb, phone)
}

func (r *RedisOTPSessionRepository) Delete(ctx context.Context, phone string) error {
	if err := r.rdb.Del(ctx, r.key(phone)).Err(); err != nil {
		return fmt.Errorf("otp session delete: %w", err)
	}
	return nil
}

func (r *RedisOTPSessionRepository) Update(ctx context.Context, phone string, fn SessionUpdateFunc) error {
	key := r.key(phone)
	var fnErr error

	txf := func(tx *redis.Tx) error {
		current, err := r.get(ctx, tx, phone)
		if err != nil {
			return err
		}
		var action UpdateAction
		action, fnErr = fn(current)

		switch action {
		case SaveSession:
			if current == nil {
				return nil
			}
			b, err := json.Marshal(current)
			if err != nil {
				return fmt.Errorf("otp session marshal: %w", err)
			}
			_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
				p.Set(ctx, key, b, r.ttl(current))
				return nil
			})
			return err
		case DeleteSession:
			_, err := tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
				p.Del(ctx, key)
				return nil
			})
			return err
		}
		return nil
	}

	for i := 0; i < maxTxRetries; i++ {
		err := r.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("otp session update: %w", err)
		}
		return fnErr
	}
	return fmt.Errorf("otp session update: %w", redis.TxFailedErr)
}

// redisGetter: общее у *redis.Client и *redis.Tx.
type redisGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (r *RedisOTPSessionRepository) get(ctx context.Context, c redisGetter, phone string) (*models.OTPSession, error) {
	b, err := c.Get(ctx, r.key(phone)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("otp session get: %w", err)
	}
	var s models.OTPSession
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("otp session unmarshal: %w", err)
	}
	return &s, nil
}
