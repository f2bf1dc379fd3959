package svc

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"ChatRelay/apps/connect/internal/manager"
	"ChatRelay/apps/connect/internal/repository"
	"ChatRelay/config"
	"ChatRelay/consts"
	"ChatRelay/pkg/async"
	"ChatRelay/pkg/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignupLoginLogout(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	registry := manager.NewConnectionManager()
	stored := map[string]string{}
	deleted := []string{}
	sessions := &fakeSessionRepo{
		storeFn: func(_ context.Context, userID, token string) error {
			stored[userID] = token
			return nil
		},
		deleteFn: func(_ context.Context, userID string) error {
			deleted = append(deleted, userID)
			return nil
		},
	}
	auth := NewAuthService(store.Users(), sessions, registry)

	user, err := auth.Signup(ctx, "13800000001", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.NotEqual(t, "secret1", user.Password)

	_, err = auth.Signup(ctx, "13800000001", "secret2")
	assert.ErrorIs(t, err, ErrUserAlreadyExist)
	assert.EqualValues(t, consts.CodeUserAlreadyExist, CodeOf(err))

	_, err = auth.Login(ctx, "13800000001", "wrong-password")
	assert.ErrorIs(t, err, ErrPasswordMismatch)
	_, err = auth.Login(ctx, "13900000000", "secret1")
	assert.ErrorIs(t, err, ErrUserNotFound)

	res, err := auth.Login(ctx, "13800000001", "secret1")
	require.NoError(t, err)
	assert.Equal(t, res.Token, stored[user.ID])
	claims, err := util.ParseToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)

	h := newRecordingHandle(user.ID)
	registry.Add(user.ID, h)
	require.NoError(t, sessions.MarkOnline(ctx, user.ID))
	require.NoError(t, auth.Logout(ctx, user.ID))
	assert.False(t, sessions.isOnline(user.ID), "登出后不应仍在线")
	assert.Equal(t, []string{user.ID}, deleted)
	assert.True(t, h.closed)
	_, ok := registry.Get(user.ID)
	assert.False(t, ok)
	assert.False(t, registry.Unregister(h), "会话清理不会重复注销")
}

func TestSignupValidation(t *testing.T) {
	auth := NewAuthService(repository.NewMemoryStore().Users(), &fakeSessionRepo{}, manager.NewConnectionManager())
	ctx := context.Background()

	for _, tc := range []struct{ phone, password string }{
		{"abc", "secret1"},
		{"", "secret1"},
		{"13800000001", "123"},
	} {
		_, err := auth.Signup(ctx, tc.phone, tc.password)
		assert.ErrorIs(t, err, ErrInvalidArgument, tc.phone)
	}
}

func TestLoginSurvivesRedisFailure(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	sessions := &fakeSessionRepo{
		storeFn: func(context.Context, string, string) error { return repository.ErrRedis },
	}
	auth := NewAuthService(store.Users(), sessions, manager.NewConnectionManager())
	_, err := auth.Signup(ctx, "13800000001", "secret1")
	require.NoError(t, err)

	res, err := auth.Login(ctx, "13800000001", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	token, err := util.GenerateToken("u1")
	require.NoError(t, err)

	t.Run("valid", func(t *testing.T) {
		s := NewConnectService(&fakeSessionRepo{})
		session, err := s.Authenticate(ctx, " "+token+" ", "10.0.0.1")
		require.NoError(t, err)
		assert.Equal(t, "u1", session.UserID)
		assert.Equal(t, "10.0.0.1", session.ClientIP)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := NewConnectService(&fakeSessionRepo{}).Authenticate(ctx, "", "")
		assert.ErrorIs(t, err, ErrTokenRequired)
		assert.Equal(t, http.StatusForbidden, StatusOf(err))
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := NewConnectService(&fakeSessionRepo{}).Authenticate(ctx, "not-a-jwt", "")
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("logged out", func(t *testing.T) {
		s := NewConnectService(&fakeSessionRepo{
			verifyFn: func(context.Context, string, string) (bool, error) { return false, nil },
		})
		_, err := s.Authenticate(ctx, token, "")
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("redis failure fails open", func(t *testing.T) {
		s := NewConnectService(&fakeSessionRepo{
			verifyFn: func(context.Context, string, string) (bool, error) { return false, errors.New("dial tcp: refused") },
		})
		session, err := s.Authenticate(ctx, token, "")
		require.NoError(t, err)
		assert.Equal(t, "u1", session.UserID)
	})
}

func TestPresenceHooks(t *testing.T) {
	require.NoError(t, async.Init(config.DefaultAsyncConfig()))
	sessions := &fakeSessionRepo{}
	s := NewConnectService(sessions)
	session := &Session{UserID: "u1"}

	s.OnConnect(context.Background(), session)
	assert.Eventually(t, func() bool { return sessions.isOnline("u1") }, time.Second, 10*time.Millisecond)

	s.OnActive(context.Background(), session)
	s.OnDisconnect(context.Background(), session)
	assert.Eventually(t, func() bool { return !sessions.isOnline("u1") }, time.Second, 10*time.Millisecond)
}
