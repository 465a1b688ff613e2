package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/uniswap-edge/internal/adapters/storage"
	"github.com/ammerola/uniswap-edge/internal/core/domain"
	"github.com/ammerola/uniswap-edge/test/helpers"
)

func TestFileLocalStorage(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "state")

	ls, err := storage.NewFileLocalStorage(dir, 0, helpers.TestLogger())
	require.NoError(t, err)

	got, err := ls.GetItem(ctx, "cart")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, ls.SetItem(ctx, "cart", []byte(`[{"commodityId":1,"quantity":2}]`)))
	require.NoError(t, ls.SetItem(ctx, "../escape/key", []byte("v")))

	got, err = ls.GetItem(ctx, "cart")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"commodityId":1,"quantity":2}]`, string(got))

	got, err = ls.GetItem(ctx, "../escape/key")
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))

	// nothing is written outside dir
	_, err = os.Stat(filepath.Join(filepath.Dir(dir), "escape"))
	assert.True(t, os.IsNotExist(err))

	// a second instance over the same dir sees the same state
	reopened, err := storage.NewFileLocalStorage(dir, 0, helpers.TestLogger())
	require.NoError(t, err)
	got, err = reopened.GetItem(ctx, "cart")
	require.NoError(t, err)
	assert.NotNil(t, got)

	require.NoError(t, ls.RemoveItem(ctx, "cart"))
	require.NoError(t, ls.RemoveItem(ctx, "cart"), "removing an absent key is not an error")

	got, err = reopened.GetItem(ctx, "cart")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFileLocalStorage_Quota(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	ls, err := storage.NewFileLocalStorage(dir, 64, helpers.TestLogger())
	require.NoError(t, err)

	// leftovers that are not items do not count
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cart123456"), []byte(strings.Repeat("x", 500)), 0o644))

	tests := []struct {
		name    string
		key     string
		value   string
		wantErr bool
	}{
		{name: "fits", key: "token", value: strings.Repeat("t", 20)},
		{name: "second_key_fits", key: "cart", value: strings.Repeat("c", 30)},
		{name: "growing_past_quota", key: "cart", value: strings.Repeat("c", 40), wantErr: true},
		{name: "replacing_within_quota", key: "cart", value: strings.Repeat("c", 10)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ls.SetItem(ctx, tt.key, []byte(tt.value))
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrQuotaExceeded)
				return
			}
			require.NoError(t, err)
		})
	}

	got, err := ls.GetItem(ctx, "cart")
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("c", 10), string(got))
}
