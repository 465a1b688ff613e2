// internal/core/services/session_test.go
package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/uniswap-edge/internal/adapters/storage"
	"github.com/ammerola/uniswap-edge/internal/core/domain"
	"github.com/ammerola/uniswap-edge/internal/core/services"
	"github.com/ammerola/uniswap-edge/test/helpers"
	"github.com/ammerola/uniswap-edge/test/mocks"
)

func TestNormalizeToken(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "abc", want: "abc"},
		{in: "Bearer abc", want: "abc"},
		{in: "bearer   abc", want: "abc"},
		{in: "BearerToken", want: "BearerToken"},
		{in: "", want: ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, services.NormalizeToken(tt.in), "input %q", tt.in)
	}
}

func TestSession_LoginRestoreLogout(t *testing.T) {
	ctx := context.Background()
	ls := storage.NewMemoryLocalStorage(0)
	user := &domain.User{ID: 1, UserAccount: "alice", UserName: "Alice"}

	s := services.NewSession(ls, helpers.TestLogger())
	assert.False(t, s.IsAuthenticated())

	require.NoError(t, s.Login(ctx, "Bearer tok-1", user))
	assert.True(t, s.IsAuthenticated())
	assert.Equal(t, "tok-1", s.Token())

	raw, err := ls.GetItem(ctx, services.SessionTokenKey)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", string(raw))

	restored := services.NewSession(ls, helpers.TestLogger())
	require.NoError(t, restored.Restore(ctx))
	assert.Equal(t, "tok-1", restored.Token())
	require.NotNil(t, restored.User())
	assert.Equal(t, "alice", restored.User().UserAccount)

	var hookRuns int
	restored.OnLogout(func(context.Context) { hookRuns++ })
	require.NoError(t, restored.Logout(ctx))

	assert.Equal(t, 1, hookRuns)
	assert.False(t, restored.IsAuthenticated())
	assert.Nil(t, restored.User())

	raw, err = ls.GetItem(ctx, services.SessionTokenKey)
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestSession_EmptyTokenClearsStoredToken(t *testing.T) {
	ctx := context.Background()
	ls := storage.NewMemoryLocalStorage(0)
	s := services.NewSession(ls, helpers.TestLogger())

	require.NoError(t, s.Login(ctx, "tok", nil))
	require.NoError(t, s.Login(ctx, "", nil))

	raw, err := ls.GetItem(ctx, services.SessionTokenKey)
	require.NoError(t, err)
	assert.Nil(t, raw)
	assert.False(t, s.IsAuthenticated())
}

func TestSession_RestoreIgnoresUnreadableUser(t *testing.T) {
	ctx := context.Background()
	ls := storage.NewMemoryLocalStorage(0)
	require.NoError(t, ls.SetItem(ctx, services.SessionTokenKey, []byte("tok")))
	require.NoError(t, ls.SetItem(ctx, services.SessionUserKey, []byte("{broken")))

	s := services.NewSession(ls, helpers.TestLogger())
	require.NoError(t, s.Restore(ctx))

	assert.Equal(t, "tok", s.Token())
	assert.Nil(t, s.User())
}

func TestSession_LogoutRunsHooksWhenStorageFails(t *testing.T) {
	ctx := context.Background()
	ls := mocks.NewMockLocalStorage(gomock.NewController(t))
	storageErr := errors.New("disk gone")

	ls.EXPECT().RemoveItem(gomock.Any(), services.SessionTokenKey).Return(storageErr)
	ls.EXPECT().RemoveItem(gomock.Any(), services.SessionUserKey).Return(nil)

	s := services.NewSession(ls, helpers.TestLogger())
	ran := false
	s.OnLogout(func(context.Context) { ran = true })

	err := s.Logout(ctx)
	assert.ErrorIs(t, err, storageErr)
	assert.True(t, ran)
}
