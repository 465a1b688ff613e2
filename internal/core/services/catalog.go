// internal/core/services/catalog.go
package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ammerola/uniswap-edge/internal/core/domain"
	"github.com/ammerola/uniswap-edge/internal/core/ports"
)

const (
	EndpointCommodityPage   = "/api/commodity/page"
	EndpointCommodityDetail = "/api/commodity/detail"
	EndpointPostPage        = "/api/post/page"
	EndpointPostDetail      = "/api/post/detail"
)

// Catalog serves commodity and post reads through the list cache
type Catalog struct {
	api    ports.CatalogAPI
	cache  *ListCache
	logger *slog.Logger
}

func NewCatalog(api ports.CatalogAPI, cache *ListCache, logger *slog.Logger) *Catalog {
	return &Catalog{
		api:    api,
		cache:  cache,
		logger: logger.With(slog.String("service", "catalog")),
	}
}

// CommodityList returns one page of commodities. On a failed refresh the
// last good page is returned together with the error.
func (c *Catalog) CommodityList(ctx context.Context, query domain.CommodityQuery) (*domain.PageResult[domain.Commodity], error) {
	return cachedRead(ctx, c.cache, EndpointCommodityPage, query,
		func(ctx context.Context) (*domain.PageResult[domain.Commodity], error) {
			return c.api.CommodityPage(ctx, query)
		})
}

func (c *Catalog) CommodityDetail(ctx context.Context, id domain.ProductID) (*domain.Commodity, error) {
	return cachedRead(ctx, c.cache, EndpointCommodityDetail, map[string]any{"id": id},
		func(ctx context.Context) (*domain.Commodity, error) {
			return c.api.CommodityDetail(ctx, id)
		})
}

func (c *Catalog) PostList(ctx context.Context, query domain.PostQuery) (*domain.PageResult[domain.Post], error) {
	return cachedRead(ctx, c.cache, EndpointPostPage, query,
		func(ctx context.Context) (*domain.PageResult[domain.Post], error) {
			return c.api.PostPage(ctx, query)
		})
}

func (c *Catalog) PostDetail(ctx context.Context, id int64) (*domain.Post, error) {
	return cachedRead(ctx, c.cache, EndpointPostDetail, map[string]any{"id": id},
		func(ctx context.Context) (*domain.Post, error) {
			return c.api.PostDetail(ctx, id)
		})
}

// RevalidateCommodityList refetches every cached commodity page
func (c *Catalog) RevalidateCommodityList(ctx context.Context) error {
	return c.cache.RevalidateEndpoint(ctx, EndpointCommodityPage)
}

// RevalidatePostList refetches every cached post page
func (c *Catalog) RevalidatePostList(ctx context.Context) error {
	return c.cache.RevalidateEndpoint(ctx, EndpointPostPage)
}

// CommodityView returns a pager over the commodity list
func (c *Catalog) CommodityView() *ListView[domain.CommodityQuery] {
	return NewListView(c.cache, EndpointCommodityPage,
		func(ctx context.Context, q domain.CommodityQuery) (any, error) {
			return c.api.CommodityPage(ctx, q)
		}, c.logger)
}

// PostView returns a pager over the post list
func (c *Catalog) PostView() *ListView[domain.PostQuery] {
	return NewListView(c.cache, EndpointPostPage,
		func(ctx context.Context, q domain.PostQuery) (any, error) {
			return c.api.PostPage(ctx, q)
		}, c.logger)
}

func cachedRead[T any](ctx context.Context, cache *ListCache, endpoint string, params any, fetch func(context.Context) (T, error)) (T, error) {
	var zero T

	key, err := NewKey(endpoint, params)
	if err != nil {
		return zero, err
	}

	view, err := cache.Get(ctx, key, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	if !view.HasData {
		if err == nil {
			err = fmt.Errorf("%w: %s", ErrInvalidated, key)
		}
		return zero, err
	}

	data, ok := view.Data.(T)
	if !ok {
		return zero, fmt.Errorf("cached %s holds %T", key, view.Data)
	}
	return data, err
}

// PageData extracts a typed page from a list view state
func PageData[T any](st ViewState) (*domain.PageResult[T], bool) {
	page, ok := st.Data.(*domain.PageResult[T])
	return page, ok && page != nil
}
