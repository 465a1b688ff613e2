// cmd/storefront/commands_test.go
package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/uniswap-edge/internal/core/domain"
	"github.com/ammerola/uniswap-edge/internal/core/services"
)

func TestParseInvocation(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		want        services.Command
		wantCart    bool
		expectError error
	}{
		{
			name: "fetch_cart",
			args: []string{"cart"},
			want: services.CmdFetchCart{},
		},
		{
			name:     "add_with_default_quantity",
			args:     []string{"add", "--product", "42"},
			want:     services.CmdAddItem{ProductID: 42, Quantity: 1},
			wantCart: true,
		},
		{
			name:        "add_without_product",
			args:        []string{"add"},
			expectError: errUsage,
		},
		{
			name:     "remove_repeated_lines",
			args:     []string{"remove", "--line", "7", "--line", "9"},
			want:     services.CmdRemoveItems{IDs: []domain.LineID{"7", "9"}},
			wantCart: true,
		},
		{
			name:     "update_quantity",
			args:     []string{"update", "--line=3", "--quantity=5"},
			want:     services.CmdUpdateQuantity{ID: "3", Quantity: 5},
			wantCart: true,
		},
		{
			name:     "deselect_all",
			args:     []string{"select-all", "--selected=false"},
			want:     services.CmdSetAllSelected{Selected: false},
			wantCart: true,
		},
		{
			name: "commodities_filters",
			args: []string{"commodities", "--page", "2", "--name", "lamp"},
			want: services.CmdListCommodities{Query: domain.CommodityQuery{Current: 2, PageSize: 10, CommodityName: "lamp"}},
		},
		{
			name: "posts_tags",
			args: []string{"posts", "--tag", "books,desk"},
			want: services.CmdListPosts{Query: domain.PostQuery{Current: 1, PageSize: 10, Tags: []string{"books", "desk"}}},
		},
		{
			name: "revalidate_everything",
			args: []string{"revalidate"},
			want: services.CmdRevalidate{},
		},
		{
			name:        "unknown_flag",
			args:        []string{"checkout", "--fast"},
			expectError: errUsage,
		},
		{
			name:        "stray_argument",
			args:        []string{"cart", "now"},
			expectError: errUsage,
		},
		{
			name:        "unknown_command",
			args:        []string{"refund"},
			expectError: errUnknownCommand,
		},
		{
			name:        "no_command",
			args:        nil,
			expectError: errUsage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv, err := parseInvocation(tt.args)
			if tt.expectError != nil {
				assert.ErrorIs(t, err, tt.expectError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, inv.cmd)
			assert.Equal(t, tt.wantCart, inv.touchesCart())
		})
	}
}

func TestParseInvocation_LoginAndWatch(t *testing.T) {
	inv, err := parseInvocation([]string{"login", "--token", "Bearer abc"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer abc", inv.token)
	assert.Nil(t, inv.cmd)

	_, err = parseInvocation([]string{"login"})
	assert.ErrorIs(t, err, errUsage)

	inv, err = parseInvocation([]string{"watch"})
	require.NoError(t, err)
	assert.True(t, inv.watch)
}
