package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"farmmarket/internal/models"
)

// MemoryUserRepository — справочник пользователей в памяти процесса.
type MemoryUserRepository struct {
	mu      sync.RWMutex
	byPhone map[string]models.User
	phoneOf map[string]string // id -> phone
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byPhone: make(map[string]models.User),
		phoneOf: make(map[string]string),
	}
}

func (r *MemoryUserRepository) Create(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byPhone[user.Phone]; ok {
		return ErrDuplicatePhone
	}
	r.byPhone[user.Phone] = *user
	r.phoneOf[user.ID] = user.Phone
	return nil
}

func (r *MemoryUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	phone, ok := r.phoneOf[id]
	if !ok {
		return nil, nil
	}
	u := r.byPhone[phone]
	return &u, nil
}

func (r *MemoryUserRepository) GetByPhone(ctx context.Context, phone string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byPhone[phone]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *MemoryUserRepository) UpdateLogin(ctx context.Context, phone, name string, at time.Time) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byPhone[phone]
	if !ok {
		return nil, nil
	}
	u.LastLoginAt = at
	if name != "" {
		u.Name = name
	}
	r.byPhone[phone] = u
	return &u, nil
}

func (r *MemoryUserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	r.mu.RLock()
	users := make([]*models.User, 0, len(r.byPhone))
	for _, u := range r.byPhone {
		u := u
		users = append(users, &u)
	}
	r.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})
	if offset >= len(users) {
		return []*models.User{}, nil
	}
	users = users[offset:]
	if limit > 0 && limit < len(users) {
		users = users[:limit]
	}
	return users, nil
}
