package repositories

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"farmmarket/internal/models"
)

var userRowColumns = []string{"id", "phone", "name", "email", "role", "verified", "created_at", "last_login_at"}

func newMockUserRepo(t *testing.T) (UserRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresUserRepository(db), mock
}

func TestPostgresUsers_Create(t *testing.T) {
	repo, mock := newMockUserRepo(t)
	now := time.Now()
	u := &models.User{ID: "u1", Phone: "9876543210", Name: "Ravi", Email: "9876543210@x", Role: "user", Verified: true, CreatedAt: now, LastLoginAt: now}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs(u.ID, u.Phone, u.Name, u.Email, u.Role, u.Verified, u.CreatedAt, u.LastLoginAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), u))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUsers_CreateDuplicatePhone(t *testing.T) {
	repo, mock := newMockUserRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value"})

	err := repo.Create(context.Background(), &models.User{ID: "u1", Phone: "9876543210"})
	require.ErrorIs(t, err, ErrDuplicatePhone)
}

func TestPostgresUsers_GetByPhone(t *testing.T) {
	repo, mock := newMockUserRepo(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE phone = $1")).
		WithArgs("9876543210").
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow("u1", "9876543210", "Ravi", "9876543210@x", "user", true, now, now))

	u, err := repo.GetByPhone(context.Background(), "9876543210")
	require.NoError(t, err)
	require.Equal(t, "u1", u.ID)
	require.Equal(t, "Ravi", u.Name)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE phone = $1")).
		WithArgs("9123456789").
		WillReturnRows(sqlmock.NewRows(userRowColumns))

	u, err = repo.GetByPhone(context.Background(), "9123456789")
	require.NoError(t, err)
	require.Nil(t, u)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUsers_UpdateLogin(t *testing.T) {
	repo, mock := newMockUserRepo(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE users")).
		WithArgs("9876543210", now, "").
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow("u1", "9876543210", "Ravi", "9876543210@x", "user", true, now.Add(-time.Hour), now))

	u, err := repo.UpdateLogin(context.Background(), "9876543210", "", now)
	require.NoError(t, err)
	require.Equal(t, "Ravi", u.Name)
	require.True(t, u.LastLoginAt.Equal(now))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUsers_List(t *testing.T) {
	repo, mock := newMockUserRepo(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC")).
		WithArgs(2, 0).
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow("u2", "9123456789", "Asha", "a@x", "farmer", true, now, now).
			AddRow("u1", "9876543210", "Ravi", "r@x", "user", true, now.Add(-time.Hour), now))

	users, err := repo.List(context.Background(), 2, 0)
	require.NoError(t, err)
	require.Len(t, users, 2)
	require.Equal(t, "u2", users[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureUsersSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS users")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, EnsureUsersSchema(context.Background(), db))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryUsers(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()
	now := time.Now()

	require.NoError(t, repo.Create(ctx, &models.User{ID: "u1", Phone: "9876543210", Name: "Ravi", CreatedAt: now.Add(-time.Hour)}))
	require.NoError(t, repo.Create(ctx, &models.User{ID: "u2", Phone: "9123456789", Name: "Asha", CreatedAt: now}))
	require.ErrorIs(t, repo.Create(ctx, &models.User{ID: "u3", Phone: "9876543210"}), ErrDuplicatePhone)

	u, err := repo.GetByID(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "9876543210", u.Phone)

	u, err = repo.UpdateLogin(ctx, "9876543210", "", now)
	require.NoError(t, err)
	require.Equal(t, "Ravi", u.Name)
	require.True(t, u.LastLoginAt.Equal(now))

	u, err = repo.UpdateLogin(ctx, "9876543210", "Ravi Kumar", now)
	require.NoError(t, err)
	require.Equal(t, "Ravi Kumar", u.Name)

	users, err := repo.List(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, "u2", users[0].ID)

	users, err = repo.List(ctx, 10, 5)
	require.NoError(t, err)
	require.Empty(t, users)

	missing, err := repo.GetByPhone(ctx, "9000000000")
	require.NoError(t, err)
	require.Nil(t, missing)
}
