package domain_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/uniswap-edge/internal/core/domain"
)

func TestCount_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    domain.Count
		wantErr bool
	}{
		{name: "number", raw: `42`, want: 42},
		{name: "string", raw: `"42"`, want: 42},
		{name: "null", raw: `null`, want: 0},
		{name: "empty_string", raw: `""`, want: 0},
		{name: "garbage", raw: `"forty"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c domain.Count
			err := json.Unmarshal([]byte(tt.raw), &c)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, c)
		})
	}
}

func TestPageResult_DecodesStringTotal(t *testing.T) {
	raw := `{"records":[{"id":1,"title":"hi"}],"total":"17","current":1,"pageSize":10}`

	var page domain.PageResult[domain.Post]
	require.NoError(t, json.Unmarshal([]byte(raw), &page))

	assert.Equal(t, domain.Count(17), page.Total)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "hi", page.Records[0].Title)
}

func TestCommodity_Ref(t *testing.T) {
	c := domain.Commodity{
		ID:                 7,
		CommodityName:      "Desk lamp",
		Price:              decimal.RequireFromString("12.50"),
		CommodityInventory: 2,
	}

	ref := c.Ref()
	assert.Equal(t, domain.ProductID(7), ref.ProductID)
	assert.Equal(t, "Desk lamp", ref.Name)
	require.NotNil(t, ref.StockLimit)
	assert.Equal(t, 2, *ref.StockLimit)

	c.CommodityInventory = 0
	assert.Equal(t, 2, *ref.StockLimit, "ref does not alias the commodity")
}

func TestErrors_Classification(t *testing.T) {
	unauthorized := &domain.APIError{Status: http.StatusUnauthorized, Message: "未登录"}
	server := &domain.APIError{Status: http.StatusBadGateway, Message: "bad gateway"}
	envelope := &domain.APIError{Status: http.StatusOK, Code: 40101, Message: "无权限"}
	network := &domain.NetworkError{URL: "/api/cart/list", Err: errors.New("connection reset")}

	assert.ErrorIs(t, fmt.Errorf("wrapped: %w", unauthorized), domain.ErrUnauthorized)
	assert.NotErrorIs(t, envelope, domain.ErrUnauthorized)
	assert.True(t, server.Temporary())
	assert.False(t, envelope.Temporary())
	assert.Contains(t, envelope.Error(), "40101")
	assert.Contains(t, server.Error(), "status 502")

	assert.ErrorIs(t, network, domain.ErrNetwork)
	assert.Contains(t, network.Error(), "/api/cart/list")
}

func TestCachedResponse_RoundTrip(t *testing.T) {
	resp := &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"text/html"}},
		Body:       readCloser("<html>hi</html>"),
	}

	cached, err := domain.NewCachedResponse("http://upstream.test/", resp, time.Unix(100, 0))
	require.NoError(t, err)
	assert.True(t, cached.OK())
	assert.Equal(t, "<html>hi</html>", string(cached.Body))

	// The original response is still readable
	var sb bytes.Buffer
	_, err = sb.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "<html>hi</html>", sb.String())

	for i := 0; i < 2; i++ {
		out := cached.Response(nil)
		sb.Reset()
		_, err = sb.ReadFrom(out.Body)
		require.NoError(t, err)
		assert.Equal(t, "<html>hi</html>", sb.String())
		assert.Equal(t, "15", out.Header.Get("Content-Length"))
		assert.Equal(t, "text/html", out.Header.Get("Content-Type"))
	}
}

type stringReadCloser struct{ *strings.Reader }

func (stringReadCloser) Close() error { return nil }

func readCloser(s string) stringReadCloser {
	return stringReadCloser{strings.NewReader(s)}
}
