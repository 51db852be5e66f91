package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"farmmarket/internal/authz"
	"farmmarket/internal/models"
	"farmmarket/internal/repositories"
	"farmmarket/internal/utils"
)

const maxNameLength = 100

type UserService interface {
	// Upsert создаёт пользователя при первом входе (name обязателен) или обновляет last_login_at.
	Upsert(ctx context.Context, phone, name string) (user *models.User, created bool, err error)
	Exists(ctx context.Context, phone string) (bool, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error)
}

type userService struct {
	repo        repositories.UserRepository
	emailDomain string
	locks       *utils.KeyedMutex
	now         func() time.Time
}

func NewUserService(repo repositories.UserRepository, emailDomain string) UserService {
	return &userService{
		repo:        repo,
		emailDomain: emailDomain,
		locks:       utils.NewKeyedMutex(),
		now:         time.Now,
	}
}

// DerivedEmail синтезирует адрес из номера, пока у пользователя нет своего.
func DerivedEmail(phone, domain string) string {
	return phone + "@" + domain
}

func (s *userService) Upsert(ctx context.Context, phone, name string) (*models.User, bool, error) {
	name = strings.TrimSpace(name)
	if len(name) > maxNameLength {
		return nil, false, ErrNameTooLong
	}

	unlock := s.locks.Lock(phone)
	defer unlock()

	now := s.now()
	existing, err := s.repo.GetByPhone(ctx, phone)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		u, err := s.updateLogin(ctx, phone, name, now)
		return u, false, err
	}

	if name == "" {
		return nil, false, ErrMissingName
	}
	u := &models.User{
		ID:          uuid.NewString(),
		Phone:       phone,
		Name:        name,
		Email:       DerivedEmail(phone, s.emailDomain),
		Role:        authz.DefaultRole,
		Verified:    true,
		CreatedAt:   now,
		LastLoginAt: now,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, repositories.ErrDuplicatePhone) {
			// параллельный вход с другого инстанса успел создать запись
			u, err := s.updateLogin(ctx, phone, name, now)
			return u, false, err
		}
		return nil, false, err
	}
	return u, true, nil
}

// updateLogin не пропускает (nil, nil) из репозитория: запись могли удалить между чтением и обновлением.
func (s *userService) updateLogin(ctx context.Context, phone, name string, at time.Time) (*models.User, error) {
	u, err := s.repo.UpdateLogin(ctx, phone, name, at)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (s *userService) Exists(ctx context.Context, phone string) (bool, error) {
	u, err := s.repo.GetByPhone(ctx, phone)
	if err != nil {
		return false, err
	}
	return u != nil, nil
}

func (s *userService) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *userService) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	return s.repo.List(ctx, limit, offset)
}
