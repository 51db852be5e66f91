package repositories

import (
	"context"
	"sync"
	"time"

	"farmmarket/internal/models"
	"farmmarket/internal/utils"
)

// UpdateAction: что сделать с сессией после функции Update.
type UpdateAction int

const (
	KeepSession UpdateAction = iota
	SaveSession
	DeleteSession
)

// SessionUpdateFunc получает nil, если сессии для номера нет.
// Действие применяется всегда, ошибка функции возвращается вызывающему после этого.
type SessionUpdateFunc func(s *models.OTPSession) (UpdateAction, error)

// OTPSessionRepository — таблица phone -> ожидающая сессия.
// Update выполняет чтение-изменение-запись атомарно относительно других операций с тем же номером.
type OTPSessionRepository interface {
	Put(ctx context.Context, s *models.OTPSession) error
	Get(ctx context.Context, phone string) (*models.OTPSession, error)
	Delete(ctx context.Context, phone string) error
	Update(ctx context.Context, phone string, fn SessionUpdateFunc) error
}

// ExpiredPurger реализуют хранилища без собственного TTL.
type ExpiredPurger interface {
	PurgeExpired(now time.Time) int
}

type MemoryOTPSessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]models.OTPSession
	locks    *utils.KeyedMutex
}

func NewMemoryOTPSessionRepository() *MemoryOTPSessionRepository {
	return &MemoryOTPSessionRepository{
		sessions: make(map[string]models.OTPSession),
		locks:    utils.NewKeyedMutex(),
	}
}

func (r *MemoryOTPSessionRepository) Put(ctx context.Context, s *models.OTPSession) error {
	unlock := r.locks.Lock(s.Phone)
	defer unlock()
	r.store(*s)
	return nil
}

func (r *MemoryOTPSessionRepository) Get(ctx context.Context, phone string) (*models.OTPSession, error) {
	s, ok := r.load(phone)
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r *MemoryOTPSessionRepository) Delete(ctx context.Context, phone string) error {
	unlock := r.locks.Lock(phone)
	defer unlock()
	r.remove(phone)
	return nil
}

func (r *MemoryOTPSessionRepository) Update(ctx context.Context, phone string, fn SessionUpdateFunc) error {
	unlock := r.locks.Lock(phone)
	defer unlock()

	var current *models.OTPSession
	if s, ok := r.load(phone); ok {
		current = &s
	}
	action, err := fn(current)
	switch action {
	case SaveSession:
		if current != nil {
			r.store(*current)
		}
	case DeleteSession:
		r.remove(phone)
	}
	return err
}

// PurgeExpired удаляет просроченные сессии, возвращает их количество.
func (r *MemoryOTPSessionRepository) PurgeExpired(now time.Time) int {
	r.mu.RLock()
	var expired []string
	for phone, s := range r.sessions {
		if s.Expired(now) {
			expired = append(expired, phone)
		}
	}
	r.mu.RUnlock()

	n := 0
	for _, phone := range expired {
		unlock := r.locks.Lock(phone)
		// за время без блокировки сессию могли заменить свежей
		if s, ok := r.load(phone); ok && s.Expired(now) {
			r.remove(phone)
			n++
		}
		unlock()
	}
	return n
}

func (r *MemoryOTPSessionRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *MemoryOTPSessionRepository) load(phone string) (models.OTPSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[phone]
	return s, ok
}

func (r *MemoryOTPSessionRepository) store(s models.OTPSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.Phone] = s
}

func (r *MemoryOTPSessionRepository) remove(phone string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, phone)
}
