package auth

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mealpoint/mealpoint/internal/shared"
)

type memoryRepo struct {
	users map[string]User
}

func (m *memoryRepo) FindByUsername(ctx context.Context, username string) (User, error) {
	u, ok := m.users[username]
	if !ok {
		return User{}, fmt.Errorf("user: %w", shared.ErrNotFound)
	}
	return u, nil
}

func (m *memoryRepo) GetByID(ctx context.Context, id int64) (User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return User{}, fmt.Errorf("user: %w", shared.ErrNotFound)
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)

	repo := &memoryRepo{users: map[string]User{
		"manager1": {ID: 2, Username: "manager1", PasswordHash: string(hash),
			Role: shared.RoleManager, CanteenID: 1, IsActive: true},
		"retired": {ID: 3, Username: "retired", PasswordHash: string(hash),
			Role: shared.RoleManager, IsActive: false},
	}}
	return NewService(repo, rdb, "test-secret", time.Hour)
}

func TestLoginIssuesParsableToken(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	token, err := svc.Login(ctx, "manager1", "secret123")
	require.NoError(t, err)
	require.NotEmpty(t, token.AccessToken)
	require.Equal(t, shared.RoleManager, token.Role)

	principal, err := svc.ParseToken(ctx, token.AccessToken)
	require.NoError(t, err)
	require.EqualValues(t, 2, principal.UserID)
	require.Equal(t, "manager1", principal.Username)
	require.Equal(t, shared.RoleManager, principal.Role)
	require.EqualValues(t, 1, principal.CanteenID)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Login(ctx, "manager1", "wrong")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody", "secret123")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = svc.Login(ctx, "retired", "secret123")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestParseRejectsGarbage(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.ParseToken(context.Background(), "not-a-token")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestRevokeInvalidatesToken(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	token, err := svc.Login(ctx, "manager1", "secret123")
	require.NoError(t, err)

	_, err = svc.ParseToken(ctx, token.AccessToken)
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, token.AccessToken))

	_, err = svc.ParseToken(ctx, token.AccessToken)
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}
