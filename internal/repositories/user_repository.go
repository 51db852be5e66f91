package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"farmmarket/internal/models"
)

var ErrDuplicatePhone = errors.New("user with this phone already exists")

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByPhone(ctx context.Context, phone string) (*models.User, error)
	// UpdateLogin выставляет last_login_at; пустое name оставляет прежнее имя.
	UpdateLogin(ctx context.Context, phone, name string, at time.Time) (*models.User, error)
	List(ctx context.Context, limit, offset int) ([]*models.User, error)
}

const usersSchema = `
	CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		phone         TEXT NOT NULL UNIQUE,
		name          TEXT NOT NULL,
		email         TEXT NOT NULL,
		role          TEXT NOT NULL,
		verified      BOOLEAN NOT NULL DEFAULT TRUE,
		created_at    TIMESTAMPTZ NOT NULL,
		last_login_at TIMESTAMPTZ NOT NULL
	)
`

const userColumns = `id, phone, name, email, role, verified, created_at, last_login_at`

type postgresUserRepository struct {
	DB *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) UserRepository {
	return &postgresUserRepository{DB: db}
}

// EnsureUsersSchema создаёт таблицу users, если её нет (идемпотентно).
func EnsureUsersSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, usersSchema); err != nil {
		return fmt.Errorf("ensure users schema: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	if err := row.Scan(&u.ID, &u.Phone, &u.Name, &u.Email, &u.Role, &u.Verified, &u.CreatedAt, &u.LastLoginAt); err != nil {
		return nil, err
	}
	return u, nil
}

func (r *postgresUserRepository) Create(ctx context.Context, user *models.User) error {
	const q = `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`
	_, err := r.DB.ExecContext(ctx, q,
		user.ID,
		user.Phone,
		user.Name,
		user.Email,
		user.Role,
		user.Verified,
		user.CreatedAt,
		user.LastLoginAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicatePhone
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *postgresUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(r.DB.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

func (r *postgresUserRepository) GetByPhone(ctx context.Context, phone string) (*models.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE phone = $1`
	u, err := scanUser(r.DB.QueryRowContext(ctx, q, phone))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by phone: %w", err)
	}
	return u, nil
}

func (r *postgresUserRepository) UpdateLogin(ctx context.Context, phone, name string, at time.Time) (*models.User, error) {
	const q = `
		UPDATE users
		SET last_login_at = $2, name = COALESCE(NULLIF($3, ''), name)
		WHERE phone = $1
		RETURNING ` + userColumns
	u, err := scanUser(r.DB.QueryRowContext(ctx, q, phone, at, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("update user login: %w", err)
	}
	return u, nil
}

func (r *postgresUserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	const q = `
		SELECT ` + userColumns + `
		FROM users
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.DB.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}
