// internal/core/services/catalog_test.go
package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/uniswap-edge/internal/core/domain"
	"github.com/ammerola/uniswap-edge/internal/core/services"
	"github.com/ammerola/uniswap-edge/test/helpers"
	"github.com/ammerola/uniswap-edge/test/mocks"
)

func newTestCatalog(t *testing.T, dedup time.Duration) (*services.Catalog, *mocks.MockCatalogAPI) {
	t.Helper()
	api := mocks.NewMockCatalogAPI(gomock.NewController(t))
	return services.NewCatalog(api, newTestListCache(dedup, 0), helpers.TestLogger()), api
}

func commodityPage(current int, commodities ...*domain.Commodity) *domain.PageResult[domain.Commodity] {
	page := &domain.PageResult[domain.Commodity]{Current: current, PageSize: 10}
	for _, c := range commodities {
		page.Records = append(page.Records, *c)
	}
	page.Total = domain.Count(len(page.Records))
	return page
}

func TestCatalog_CommodityListIsCached(t *testing.T) {
	ctx := context.Background()
	catalog, api := newTestCatalog(t, time.Hour)

	query := domain.CommodityQuery{Current: 1, PageSize: 10}
	api.EXPECT().CommodityPage(gomock.Any(), query).
		Return(commodityPage(1, helpers.CreateTestCommodity()), nil).
		Times(1)

	for i := 0; i < 3; i++ {
		page, err := catalog.CommodityList(ctx, query)
		require.NoError(t, err)
		require.Len(t, page.Records, 1)
		assert.Equal(t, domain.ProductID(42), page.Records[0].ID)
	}
}

func TestCatalog_DistinctQueriesAreDistinctKeys(t *testing.T) {
	ctx := context.Background()
	catalog, api := newTestCatalog(t, time.Hour)

	api.EXPECT().CommodityPage(gomock.Any(), domain.CommodityQuery{Current: 1}).Return(commodityPage(1), nil)
	api.EXPECT().CommodityPage(gomock.Any(), domain.CommodityQuery{Current: 2}).Return(commodityPage(2), nil)

	p1, err := catalog.CommodityList(ctx, domain.CommodityQuery{Current: 1})
	require.NoError(t, err)
	p2, err := catalog.CommodityList(ctx, domain.CommodityQuery{Current: 2})
	require.NoError(t, err)

	assert.Equal(t, 1, p1.Current)
	assert.Equal(t, 2, p2.Current)
}

func TestCatalog_FailedRefreshReturnsStalePage(t *testing.T) {
	ctx := context.Background()
	catalog, api := newTestCatalog(t, 0)

	query := domain.PostQuery{Current: 1}
	fresh := &domain.PageResult[domain.Post]{Records: []domain.Post{{ID: 1, Title: "hello"}}, Total: 1, Current: 1}
	apiErr := &domain.APIError{Status: 200, Code: 50000, Message: "系统内部异常"}

	gomock.InOrder(
		api.EXPECT().PostPage(gomock.Any(), query).Return(fresh, nil),
		api.EXPECT().PostPage(gomock.Any(), query).Return(nil, apiErr),
	)

	_, err := catalog.PostList(ctx, query)
	require.NoError(t, err)

	page, err := catalog.PostList(ctx, query)
	assert.ErrorIs(t, err, apiErr)
	require.NotNil(t, page)
	assert.Equal(t, "hello", page.Records[0].Title)
}

func TestCatalog_FirstFailureReturnsNoData(t *testing.T) {
	ctx := context.Background()
	catalog, api := newTestCatalog(t, 0)

	api.EXPECT().CommodityDetail(gomock.Any(), domain.ProductID(7)).
		Return(nil, &domain.APIError{Status: 404, Message: "not found"})

	c, err := catalog.CommodityDetail(ctx, 7)
	assert.Error(t, err)
	assert.Nil(t, c)
}

func TestCatalog_Details(t *testing.T) {
	ctx := context.Background()
	catalog, api := newTestCatalog(t, time.Hour)

	api.EXPECT().CommodityDetail(gomock.Any(), domain.ProductID(42)).Return(helpers.CreateTestCommodity(), nil).Times(1)
	api.EXPECT().PostDetail(gomock.Any(), int64(3)).Return(&domain.Post{ID: 3, Title: "three"}, nil).Times(1)

	for i := 0; i < 2; i++ {
		c, err := catalog.CommodityDetail(ctx, 42)
		require.NoError(t, err)
		assert.Equal(t, 5, c.CommodityInventory)

		p, err := catalog.PostDetail(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, "three", p.Title)
	}
}

func TestCatalog_RevalidateCommodityList(t *testing.T) {
	ctx := context.Background()
	catalog, api := newTestCatalog(t, time.Hour)

	query := domain.CommodityQuery{Current: 1}
	gomock.InOrder(
		api.EXPECT().CommodityPage(gomock.Any(), query).Return(commodityPage(1), nil),
		api.EXPECT().CommodityPage(gomock.Any(), query).
			Return(commodityPage(1, helpers.CreateTestCommodity()), nil),
	)

	page, err := catalog.CommodityList(ctx, query)
	require.NoError(t, err)
	assert.Empty(t, page.Records)

	require.NoError(t, catalog.RevalidateCommodityList(ctx))

	page, err = catalog.CommodityList(ctx, query)
	require.NoError(t, err)
	assert.Len(t, page.Records, 1)

	// No post pages cached yet
	require.NoError(t, catalog.RevalidatePostList(ctx))
}

func TestCatalog_CommodityView(t *testing.T) {
	ctx := context.Background()
	catalog, api := newTestCatalog(t, time.Hour)

	api.EXPECT().CommodityPage(gomock.Any(), domain.CommodityQuery{Current: 1}).
		Return(commodityPage(1, helpers.CreateTestCommodity()), nil)

	view := catalog.CommodityView()
	defer view.Close()

	st, err := view.Load(ctx, domain.CommodityQuery{Current: 1})
	require.NoError(t, err)

	page, ok := services.PageData[domain.Commodity](st)
	require.True(t, ok)
	assert.Len(t, page.Records, 1)

	_, ok = services.PageData[domain.Post](st)
	assert.False(t, ok)
}

func TestCatalog_DetailClearedInFlightReturnsError(t *testing.T) {
	ctx := context.Background()
	api := mocks.NewMockCatalogAPI(gomock.NewController(t))
	cache := newTestListCache(time.Hour, 0)
	catalog := services.NewCatalog(api, cache, helpers.TestLogger())

	release := make(chan struct{})
	api.EXPECT().CommodityDetail(gomock.Any(), domain.ProductID(42)).
		DoAndReturn(func(context.Context, domain.ProductID) (*domain.Commodity, error) {
			<-release
			return helpers.CreateTestCommodity(), nil
		})

	type result struct {
		commodity *domain.Commodity
		err       error
	}
	done := make(chan result, 1)
	go func() {
		c, err := catalog.CommodityDetail(ctx, 42)
		done <- result{c, err}
	}()

	key := services.MustKey(services.EndpointCommodityDetail, map[string]any{"id": domain.ProductID(42)})
	helpers.AssertEventuallyWithTimeout(t, func() bool {
		v, _ := cache.Peek(key)
		return v.IsValidating
	}, time.Second, "detail request should be in flight")

	cache.Clear()
	close(release)

	res := <-done
	assert.ErrorIs(t, res.err, services.ErrInvalidated)
	assert.Nil(t, res.commodity)
}
