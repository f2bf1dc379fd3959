package svc

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"ChatRelay/apps/connect/internal/notifier"
	"ChatRelay/apps/connect/internal/repository"
	"ChatRelay/model"
	pkgminio "ChatRelay/pkg/minio"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUploader struct {
	uploadFn func(ctx context.Context, reader io.Reader, size int64, opts pkgminio.UploadOptions) (*pkgminio.UploadResult, error)
	deleted  []string
}

func (f *fakeUploader) Upload(ctx context.Context, reader io.Reader, size int64, opts pkgminio.UploadOptions) (*pkgminio.UploadResult, error) {
	return f.uploadFn(ctx, reader, size, opts)
}

func (f *fakeUploader) Delete(_ context.Context, objectName string) error {
	f.deleted = append(f.deleted, objectName)
	return nil
}

func newUserServiceEnv(t *testing.T, uploader ObjectUploader) (*UserService, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	require.NoError(t, store.Users().Create(t.Context(), &model.UserInfo{ID: "u1", Phone: "13800000001", Password: "x"}))
	return NewUserService(store.Users(), notifier.NewMemoryNotifier(store.Users()), uploader), store
}

func TestUserServiceProfile(t *testing.T) {
	s, _ := newUserServiceEnv(t, nil)

	user, err := s.Profile(t.Context(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "13800000001", user.Phone)

	_, err = s.Profile(t.Context(), "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserServiceUpdatePushToken(t *testing.T) {
	s, store := newUserServiceEnv(t, nil)

	require.NoError(t, s.UpdatePushToken(t.Context(), "u1", "  fcm-1 "))
	user, err := store.Users().GetByID(t.Context(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "fcm-1", user.PushToken)

	require.NoError(t, s.UpdatePushToken(t.Context(), "u1", ""))
	user, err = store.Users().GetByID(t.Context(), "u1")
	require.NoError(t, err)
	assert.Empty(t, user.PushToken)

	assert.ErrorIs(t, s.UpdatePushToken(t.Context(), "ghost", "x"), ErrUserNotFound)
}

func TestUserServiceUploadAvatar(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		s, _ := newUserServiceEnv(t, nil)
		_, err := s.UploadAvatar(t.Context(), "u1", strings.NewReader("x"), 1)
		assert.ErrorIs(t, err, ErrUploadNotConfigured)
	})

	t.Run("success", func(t *testing.T) {
		up := &fakeUploader{uploadFn: func(_ context.Context, _ io.Reader, _ int64, opts pkgminio.UploadOptions) (*pkgminio.UploadResult, error) {
			assert.Equal(t, avatarPathPrefix, opts.PathPrefix)
			assert.Equal(t, "u1", opts.Metadata["user-id"])
			return &pkgminio.UploadResult{ObjectName: "avatars/a.png", URL: "http://minio/chatrelay/avatars/a.png"}, nil
		}}
		s, store := newUserServiceEnv(t, up)

		url, err := s.UploadAvatar(t.Context(), "u1", strings.NewReader("x"), 1)
		require.NoError(t, err)
		assert.Equal(t, "http://minio/chatrelay/avatars/a.png", url)
		user, err := store.Users().GetByID(t.Context(), "u1")
		require.NoError(t, err)
		assert.Equal(t, url, user.Avatar)
		assert.Empty(t, up.deleted)
	})

	t.Run("rejected type", func(t *testing.T) {
		up := &fakeUploader{uploadFn: func(context.Context, io.Reader, int64, pkgminio.UploadOptions) (*pkgminio.UploadResult, error) {
			return nil, pkgminio.ErrTypeNotAllowed
		}}
		s, _ := newUserServiceEnv(t, up)
		_, err := s.UploadAvatar(t.Context(), "u1", strings.NewReader("x"), 1)
		assert.True(t, errors.Is(err, pkgminio.ErrTypeNotAllowed))
		assert.Equal(t, 400, StatusOf(err))
	})

	t.Run("unknown user removes orphan object", func(t *testing.T) {
		up := &fakeUploader{uploadFn: func(context.Context, io.Reader, int64, pkgminio.UploadOptions) (*pkgminio.UploadResult, error) {
			return &pkgminio.UploadResult{ObjectName: "avatars/b.png", URL: "http://minio/chatrelay/avatars/b.png"}, nil
		}}
		s, _ := newUserServiceEnv(t, up)
		_, err := s.UploadAvatar(t.Context(), "ghost", strings.NewReader("x"), 1)
		assert.ErrorIs(t, err, ErrUserNotFound)
		assert.Equal(t, []string{"avatars/b.png"}, up.deleted)
	})
}
