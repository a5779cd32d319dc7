package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/honeynil/dreamnity-payments/internal/infrastructure/auth"
	"github.com/honeynil/dreamnity-payments/internal/models"
	"github.com/honeynil/dreamnity-payments/internal/repository/kv"
	"github.com/honeynil/dreamnity-payments/internal/storage"
	pkgerrors "github.com/honeynil/dreamnity-payments/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuth(t *testing.T, delay time.Duration) (*authService, *storage.Manager, *kv.UserRepository) {
	t.Helper()
	mgr, _ := newTestStorage(t)
	users := newTestUsers(t, mgr, true)
	s := NewAuthService(context.Background(), users, mgr, auth.NewJWTService("secret", time.Hour), nil, delay)
	return s, mgr, users
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("success stores token and user id", func(t *testing.T) {
		s, mgr, _ := newTestAuth(t, 0)
		token, user, err := s.Login(ctx, kv.DemoEmail, kv.DemoPassword)
		require.NoError(t, err)
		assert.NotEmpty(t, token)
		assert.Equal(t, "1", user.ID)

		stored, ok := mgr.GetString(ctx, storage.KeyToken)
		assert.True(t, ok)
		assert.Equal(t, token, stored)
		id, _ := mgr.GetString(ctx, storage.KeyUserID)
		assert.Equal(t, "1", id)

		current, err := s.CurrentUser(ctx)
		require.NoError(t, err)
		assert.Equal(t, kv.DemoEmail, current.Email)

		checked, err := s.CheckToken(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, "1", checked.ID)
	})

	t.Run("wrong password stays logged out", func(t *testing.T) {
		s, _, _ := newTestAuth(t, 0)
		_, _, err := s.Login(ctx, kv.DemoEmail, "wrong")
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidCredentials)
		_, err = s.CurrentUser(ctx)
		assert.ErrorIs(t, err, pkgerrors.ErrNotAuthenticated)
	})

	t.Run("latest concurrent login wins", func(t *testing.T) {
		s, _, users := newTestAuth(t, 50*time.Millisecond)
		_, err := users.Create(ctx, models.NewUser{Name: "Ann", Email: "a@x.com", Password: "p"})
		require.NoError(t, err)

		var wg sync.WaitGroup
		var firstErr error
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, firstErr = s.Login(ctx, kv.DemoEmail, kv.DemoPassword)
		}()
		time.Sleep(10 * time.Millisecond)
		_, second, err := s.Login(ctx, "a@x.com", "p")
		wg.Wait()

		require.NoError(t, err)
		assert.ErrorIs(t, firstErr, pkgerrors.ErrLoginSuperseded)
		current, err := s.CurrentUser(ctx)
		require.NoError(t, err)
		assert.Equal(t, second.ID, current.ID)
	})

	t.Run("closed during delay", func(t *testing.T) {
		s, _, _ := newTestAuth(t, 30*time.Millisecond)
		done := make(chan error, 1)
		go func() {
			_, _, err := s.Login(ctx, kv.DemoEmail, kv.DemoPassword)
			done <- err
		}()
		time.Sleep(5 * time.Millisecond)
		s.Close()
		assert.ErrorIs(t, <-done, pkgerrors.ErrClosed)
	})
}

func TestAuthService_RestoreAndLogout(t *testing.T) {
	ctx := context.Background()
	s, mgr, users := newTestAuth(t, 0)
	token, _, err := s.Login(ctx, kv.DemoEmail, kv.DemoPassword)
	require.NoError(t, err)

	tokens := auth.NewJWTService("secret", time.Hour)

	t.Run("restores consistent session", func(t *testing.T) {
		restored := NewAuthService(ctx, users, mgr, tokens, nil, 0)
		u, err := restored.CurrentUser(ctx)
		require.NoError(t, err)
		assert.Equal(t, "1", u.ID)
		_, err = restored.CheckToken(ctx, token)
		assert.NoError(t, err)
	})

	t.Run("mismatched user id", func(t *testing.T) {
		require.NoError(t, mgr.SetString(ctx, storage.KeyUserID, "someone-else"))
		restored := NewAuthService(ctx, users, mgr, tokens, nil, 0)
		_, err := restored.CurrentUser(ctx)
		assert.ErrorIs(t, err, pkgerrors.ErrNotAuthenticated)
		require.NoError(t, mgr.SetString(ctx, storage.KeyUserID, "1"))
	})

	t.Run("token signed with another secret", func(t *testing.T) {
		restored := NewAuthService(ctx, users, mgr, auth.NewJWTService("rotated", time.Hour), nil, 0)
		_, err := restored.CurrentUser(ctx)
		assert.ErrorIs(t, err, pkgerrors.ErrNotAuthenticated)
	})

	t.Run("logout clears session", func(t *testing.T) {
		require.NoError(t, s.Logout(ctx))
		_, err := s.CurrentUser(ctx)
		assert.ErrorIs(t, err, pkgerrors.ErrNotAuthenticated)
		_, err = s.CheckToken(ctx, token)
		assert.ErrorIs(t, err, pkgerrors.ErrNotAuthenticated)
		_, ok := mgr.GetString(ctx, storage.KeyToken)
		assert.False(t, ok)

		restored := NewAuthService(ctx, users, mgr, tokens, nil, 0)
		_, err = restored.CurrentUser(ctx)
		assert.ErrorIs(t, err, pkgerrors.ErrNotAuthenticated)
	})
}

func TestAuthService_Signup(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestStorage(t)
	users := newTestUsers(t, mgr, false)
	pub := &recordingPublisher{}
	s := NewAuthService(ctx, users, mgr, auth.NewJWTService("secret", time.Hour), pub, 0)

	u, err := s.Signup(ctx, models.NewUser{Name: "Ann", Email: "a@x.com", Password: "p"})
	require.NoError(t, err)
	assert.True(t, users.EmailExists(ctx, "a@x.com"))
	assert.Equal(t, []string{TopicUsers}, pub.Topics())

	_, err = s.Signup(ctx, models.NewUser{Name: "Ann", Email: "a@x.com", Password: "p"})
	assert.ErrorIs(t, err, pkgerrors.ErrDuplicateEmail)
	assert.Len(t, users.List(ctx), 1)

	found, err := users.Authenticate(ctx, "a@x.com", "p")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)
	_, err = users.Authenticate(ctx, "a@x.com", "wrong")
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidCredentials)
}

func TestAuthService_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	s, _, users := newTestAuth(t, 0)

	valid := models.ProfileUpdate{
		Name:      "John Doe",
		Email:     "john@dreamnity.com",
		Phone:     "+91 98765 43210",
		AccountNo: "1234567890",
		IFSCCode:  "sbin0001234",
	}

	_, err := s.UpdateProfile(ctx, valid)
	assert.ErrorIs(t, err, pkgerrors.ErrNotAuthenticated)

	_, _, err = s.Login(ctx, kv.DemoEmail, kv.DemoPassword)
	require.NoError(t, err)

	u, err := s.UpdateProfile(ctx, valid)
	require.NoError(t, err)
	assert.Equal(t, "SBIN0001234", u.IFSCCode)
	assert.Equal(t, "john@dreamnity.com", u.Email)

	stored, _ := users.GetByID(ctx, "1")
	assert.Equal(t, "john@dreamnity.com", stored.Email)

	bad := valid
	bad.Phone = "123"
	_, err = s.UpdateProfile(ctx, bad)
	assert.ErrorIs(t, err, pkgerrors.ErrValidation)

	bad = valid
	bad.Email = "not-an-email"
	_, err = s.UpdateProfile(ctx, bad)
	assert.ErrorIs(t, err, pkgerrors.ErrValidation)

	_, err = users.Create(ctx, models.NewUser{Name: "Ann", Email: "a@x.com", Password: "p"})
	require.NoError(t, err)
	taken := valid
	taken.Email = "a@x.com"
	_, err = s.UpdateProfile(ctx, taken)
	assert.ErrorIs(t, err, pkgerrors.ErrDuplicateEmail)
}
