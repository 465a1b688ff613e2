// internal/adapters/apiclient/client_test.go
package apiclient_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/uniswap-edge/internal/adapters/apiclient"
	"github.com/ammerola/uniswap-edge/internal/core/domain"
	"github.com/ammerola/uniswap-edge/test/helpers"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

type recorded struct {
	Method string
	Path   string
	Query  string
	Auth   string
	Body   string
}

// backend serves canned replies and records the last request
type backend struct {
	srv    *httptest.Server
	last   atomic.Pointer[recorded]
	status int
	reply  string
}

func newBackend(t *testing.T, status int, reply string) *backend {
	t.Helper()
	b := &backend{status: status, reply: reply}
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		b.last.Store(&recorded{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Auth:   r.Header.Get("Authorization"),
			Body:   string(body),
		})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(b.status)
		_, _ = io.WriteString(w, b.reply)
	}))
	t.Cleanup(b.srv.Close)
	return b
}

func newClient(t *testing.T, base string, logout func(context.Context) error) *apiclient.Client {
	t.Helper()
	c, err := apiclient.NewClient(apiclient.Config{BaseURL: base + "/uniswap", Timeout: 5 * time.Second},
		nil, staticToken("tok-1"), logout, helpers.TestLogger())
	require.NoError(t, err)
	return c
}

func TestNewClient_RejectsBadBaseURL(t *testing.T) {
	for _, base := range []string{"ftp://x", "::not a url", ""} {
		_, err := apiclient.NewClient(apiclient.Config{BaseURL: base}, nil, nil, nil, helpers.TestLogger())
		assert.Error(t, err, "base %q", base)
	}
}

func TestClient_Envelope(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		status    int
		reply     string
		want      map[string]any
		wantCode  int
		wantError bool
	}{
		{
			name:   "success_unwraps_data",
			status: http.StatusOK,
			reply:  `{"errorCode":0,"errorMsg":"ok","data":{"n":1}}`,
			want:   map[string]any{"n": float64(1)},
		},
		{
			name:   "no_envelope_returns_body",
			status: http.StatusOK,
			reply:  `{"n":2}`,
			want:   map[string]any{"n": float64(2)},
		},
		{
			name:   "success_without_data_returns_body",
			status: http.StatusOK,
			reply:  `{"errorCode":0,"n":3}`,
			want:   map[string]any{"errorCode": float64(0), "n": float64(3)},
		},
		{
			name:      "nonzero_code_is_error",
			status:    http.StatusOK,
			reply:     `{"errorCode":40000,"errorMsg":"参数错误","data":null}`,
			wantCode:  40000,
			wantError: true,
		},
		{
			name:      "server_error_status",
			status:    http.StatusInternalServerError,
			reply:     `{"message":"boom"}`,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBackend(t, tt.status, tt.reply)
			c := newClient(t, b.srv.URL, nil)

			var out map[string]any
			err := c.Get(ctx, "/api/thing", &out)

			if tt.wantError {
				require.Error(t, err)
				var apiErr *domain.APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, tt.status, apiErr.Status)
				assert.Equal(t, tt.wantCode, apiErr.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestClient_SendsBearerTokenAndJSON(t *testing.T) {
	b := newBackend(t, http.StatusOK, `{"errorCode":0,"data":true}`)
	c := newClient(t, b.srv.URL, nil)

	var ok bool
	require.NoError(t, c.Post(context.Background(), "/api/x", map[string]int{"id": 9}, &ok))

	last := b.last.Load()
	assert.True(t, ok)
	assert.Equal(t, http.MethodPost, last.Method)
	assert.Equal(t, "/uniswap/api/x", last.Path)
	assert.Equal(t, "Bearer tok-1", last.Auth)
	assert.JSONEq(t, `{"id":9}`, last.Body)
}

func TestClient_UnauthorizedLogsOut(t *testing.T) {
	b := newBackend(t, http.StatusUnauthorized, `{"errorCode":40100,"errorMsg":"未登录"}`)

	var logouts atomic.Int32
	c := newClient(t, b.srv.URL, func(context.Context) error {
		logouts.Add(1)
		return nil
	})

	err := c.Get(context.Background(), "/api/cart/list", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.True(t, apiclient.IsUnauthorized(err))
	assert.Contains(t, err.Error(), "未登录")
	assert.Equal(t, int32(1), logouts.Load())
}

func TestClient_TransportFailureIsNetworkError(t *testing.T) {
	b := newBackend(t, http.StatusOK, `{}`)
	c := newClient(t, b.srv.URL, nil)
	b.srv.Close()

	err := c.Get(context.Background(), "/api/cart/list", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNetwork)
}

func TestCartAPI_List(t *testing.T) {
	reply := `{"errorCode":0,"data":{
		"items":[
			{"id":11,"commodityId":42,"commodityName":"Lamp","currentPrice":12.5,"addPrice":15,
			 "quantity":2,"selected":true,"stock":5,"status":1,"limitBuy":3,"priceChangeTip":"降价2.5元"},
			{"id":12,"commodityId":43,"commodityName":"Desk","currentPrice":"30","addPrice":"30",
			 "quantity":1,"selected":false,"stock":4,"status":0,"limitBuy":null,"priceChangeTip":null}
		],
		"totalQuantity":3,"totalAmount":55,"discountAmount":5,"finalAmount":50}}`
	b := newBackend(t, http.StatusOK, reply)
	api := apiclient.NewCartAPI(newClient(t, b.srv.URL, nil), helpers.TestLogger())

	cart, err := api.List(context.Background())
	require.NoError(t, err)
	require.Len(t, cart.Lines, 2)

	first := cart.Lines[0]
	assert.Equal(t, domain.LineID("11"), first.LineID)
	assert.Equal(t, domain.ProductID(42), first.ProductID)
	assert.True(t, decimal.RequireFromString("12.5").Equal(first.UnitPrice))
	assert.True(t, decimal.RequireFromString("15").Equal(first.AddedPrice))
	require.NotNil(t, first.StockLimit)
	assert.Equal(t, 3, *first.StockLimit, "min of stock and limitBuy")
	assert.Equal(t, "降价2.5元", first.PriceChangeTip)

	second := cart.Lines[1]
	assert.Equal(t, 4, *second.StockLimit)
	assert.Equal(t, domain.LineStatusDelisted, second.Status)
	assert.False(t, second.Selected)

	assert.True(t, decimal.RequireFromString("50").Equal(cart.FinalAmount))
	assert.Equal(t, "/uniswap/api/cart/list", b.last.Load().Path)
}

func TestCartAPI_Requests(t *testing.T) {
	ctx := context.Background()
	qty := 4
	sel := false

	tests := []struct {
		name      string
		reply     string
		call      func(*apiclient.CartAPI) error
		wantPath  string
		wantQuery string
		wantBody  string
	}{
		{
			name:  "add",
			reply: `{"errorCode":0,"data":77}`,
			call: func(a *apiclient.CartAPI) error {
				id, err := a.Add(ctx, 42, 2)
				if err == nil && id != "77" {
					return fmt.Errorf("line id = %q", id)
				}
				return err
			},
			wantPath: "/uniswap/api/cart/add",
			wantBody: `{"commodityId":42,"quantity":2}`,
		},
		{
			name:     "update_quantity",
			reply:    `{"errorCode":0,"data":true}`,
			call:     func(a *apiclient.CartAPI) error { return a.Update(ctx, domain.CartUpdate{LineID: "11", Quantity: &qty}) },
			wantPath: "/uniswap/api/cart/update",
			wantBody: `{"id":11,"quantity":4}`,
		},
		{
			name:     "update_selected",
			reply:    `{"errorCode":0,"data":true}`,
			call:     func(a *apiclient.CartAPI) error { return a.Update(ctx, domain.CartUpdate{LineID: "11", Selected: &sel}) },
			wantPath: "/uniswap/api/cart/update",
			wantBody: `{"id":11,"selected":false}`,
		},
		{
			name:     "remove",
			reply:    `{"errorCode":0,"data":true}`,
			call:     func(a *apiclient.CartAPI) error { return a.Remove(ctx, []domain.LineID{"11", "12"}) },
			wantPath: "/uniswap/api/cart/remove",
			wantBody: `[11,12]`,
		},
		{
			name:      "select_all",
			reply:     `{"errorCode":0,"data":true}`,
			call:      func(a *apiclient.CartAPI) error { return a.SelectAll(ctx, true) },
			wantPath:  "/uniswap/api/cart/selectAll",
			wantQuery: "selected=true",
		},
		{
			name:  "merge",
			reply: `{"errorCode":0,"data":null}`,
			call: func(a *apiclient.CartAPI) error {
				return a.Merge(ctx, []domain.MergeItem{{ProductID: 5, Quantity: 2}})
			},
			wantPath: "/uniswap/api/cart/merge",
			wantBody: `{"items":[{"commodityId":5,"quantity":2}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBackend(t, http.StatusOK, tt.reply)
			api := apiclient.NewCartAPI(newClient(t, b.srv.URL, nil), helpers.TestLogger())

			require.NoError(t, tt.call(api))

			last := b.last.Load()
			assert.Equal(t, http.MethodPost, last.Method)
			assert.Equal(t, tt.wantPath, last.Path)
			assert.Equal(t, tt.wantQuery, last.Query)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, last.Body)
			}
		})
	}
}

func TestCartAPI_CountAcceptsStringNumbers(t *testing.T) {
	b := newBackend(t, http.StatusOK, `{"errorCode":0,"data":"6"}`)
	api := apiclient.NewCartAPI(newClient(t, b.srv.URL, nil), helpers.TestLogger())

	n, err := api.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, http.MethodGet, b.last.Load().Method)
}

func TestCartAPI_RejectsNonServerLineIDs(t *testing.T) {
	b := newBackend(t, http.StatusOK, `{}`)
	api := apiclient.NewCartAPI(newClient(t, b.srv.URL, nil), helpers.TestLogger())

	err := api.Remove(context.Background(), []domain.LineID{"local-1"})
	assert.ErrorIs(t, err, domain.ErrLineNotFound)
	assert.Nil(t, b.last.Load(), "nothing sent")
}

func TestCatalogAPI(t *testing.T) {
	ctx := context.Background()

	t.Run("commodity_page", func(t *testing.T) {
		b := newBackend(t, http.StatusOK,
			`{"errorCode":0,"data":{"records":[{"id":42,"commodityName":"Lamp","price":9.9,"commodityInventory":3}],"total":"1","current":1,"pageSize":10}}`)
		api := apiclient.NewCatalogAPI(newClient(t, b.srv.URL, nil), helpers.TestLogger())

		page, err := api.CommodityPage(ctx, domain.CommodityQuery{Current: 1, PageSize: 10, CommodityName: "La"})
		require.NoError(t, err)
		require.Len(t, page.Records, 1)
		assert.Equal(t, domain.Count(1), page.Total)
		assert.Equal(t, 3, page.Records[0].CommodityInventory)

		var sent map[string]any
		require.NoError(t, json.Unmarshal([]byte(b.last.Load().Body), &sent))
		assert.Equal(t, "La", sent["commodityName"])
		assert.Equal(t, "/uniswap/api/commodity/page", b.last.Load().Path)
	})

	t.Run("commodity_detail", func(t *testing.T) {
		b := newBackend(t, http.StatusOK, `{"errorCode":0,"data":{"id":42,"commodityName":"Lamp"}}`)
		api := apiclient.NewCatalogAPI(newClient(t, b.srv.URL, nil), helpers.TestLogger())

		c, err := api.CommodityDetail(ctx, 42)
		require.NoError(t, err)
		assert.Equal(t, "Lamp", c.CommodityName)
		assert.JSONEq(t, `{"id":42}`, b.last.Load().Body)
	})

	t.Run("purchase", func(t *testing.T) {
		b := newBackend(t, http.StatusOK, `{"errorCode":0,"data":true}`)
		api := apiclient.NewCatalogAPI(newClient(t, b.srv.URL, nil), helpers.TestLogger())

		require.NoError(t, api.Purchase(ctx, 42, 2))
		assert.Equal(t, "/uniswap/api/commodity/buy", b.last.Load().Path)
		assert.JSONEq(t, `{"commodityId":42,"buyNumber":2}`, b.last.Load().Body)
	})

	t.Run("purchase_rejected", func(t *testing.T) {
		b := newBackend(t, http.StatusOK, `{"errorCode":50001,"errorMsg":"库存不足"}`)
		api := apiclient.NewCatalogAPI(newClient(t, b.srv.URL, nil), helpers.TestLogger())

		err := api.Purchase(ctx, 42, 99)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "库存不足")
	})

	t.Run("posts", func(t *testing.T) {
		b := newBackend(t, http.StatusOK, `{"errorCode":0,"data":{"records":[{"id":3,"title":"hello"}],"total":1}}`)
		api := apiclient.NewCatalogAPI(newClient(t, b.srv.URL, nil), helpers.TestLogger())

		page, err := api.PostPage(ctx, domain.PostQuery{Current: 1})
		require.NoError(t, err)
		assert.Equal(t, "hello", page.Records[0].Title)

		detail := newBackend(t, http.StatusOK, `{"errorCode":0,"data":{"id":3,"title":"hello","tagList":["a"]}}`)
		api = apiclient.NewCatalogAPI(newClient(t, detail.srv.URL, nil), helpers.TestLogger())

		post, err := api.PostDetail(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, post.TagList)
		assert.JSONEq(t, `{"id":3}`, detail.last.Load().Body)
	})
}
