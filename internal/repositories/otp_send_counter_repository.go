package repositories

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// OTPSendCounter считает отправки кода на номер в фиксированном окне.
// Hit возвращает количество отправок в текущем окне, включая эту.
type OTPSendCounter interface {
	Hit(ctx context.Context, phone string, window time.Duration) (int, error)
}

type sendWindow struct {
	count int
	ends  time.Time
}

type MemoryOTPSendCounter struct {
	mu      sync.Mutex
	windows map[string]sendWindow
	now     func() time.Time
}

func NewMemoryOTPSendCounter() *MemoryOTPSendCounter {
	return &MemoryOTPSendCounter{windows: make(map[string]sendWindow), now: time.Now}
}

func (c *MemoryOTPSendCounter) Hit(ctx context.Context, phone string, window time.Duration) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	w, ok := c.windows[phone]
	if !ok || !now.Before(w.ends) {
		w = sendWindow{ends: now.Add(window)}
	}
	w.count++
	c.windows[phone] = w
	return w.count, nil
}

func (c *MemoryOTPSendCounter) PurgeExpired(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for phone, w := range c.windows {
		if !now.Before(w.ends) {
			delete(c.windows, phone)
			n++
		}
	}
	return n
}

type RedisOTPSendCounter struct {
	rdb *redis.Client
}

func NewRedisOTPSendCounter(rdb *redis.Client) *RedisOTPSendCounter {
	return &RedisOTPSendCounter{rdb: rdb}
}

// Hit выставляет TTL всякий раз, когда у ключа его нет, в том числе ключу без срока,
// оставшемуся после сбоя между INCR и EXPIRE.
func (c *RedisOTPSendCounter) Hit(ctx context.Context, phone string, window time.Duration) (int, error) {
	key := "otp:sends:" + phone
	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		ttl = p.TTL(ctx, key)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("otp send counter incr: %w", err)
	}
	if ttl.Val() < 0 {
		if err := c.rdb.Expire(ctx, key, window).Err(); err != nil {
			return 0, fmt.Errorf("otp send counter expire: %w", err)
		}
	}
	return int(incr.Val()), nil
}
