// internal/adapters/apiclient/catalog_api.go
package apiclient

import (
	"context"
	"log/slog"

	"github.com/ammerola/uniswap-edge/internal/core/domain"
	"github.com/ammerola/uniswap-edge/internal/core/ports"
)

const (
	pathCommodityPage   = "/api/commodity/page"
	pathCommodityDetail = "/api/commodity/detail"
	pathCommodityBuy    = "/api/commodity/buy"
	pathPostPage        = "/api/post/page"
	pathPostDetail      = "/api/post/detail"
)

type idRequest[T any] struct {
	ID T `json:"id"`
}

type purchaseRequest struct {
	CommodityID domain.ProductID `json:"commodityId"`
	BuyNumber   int              `json:"buyNumber"`
}

// CatalogAPI is the commodity and post resources
type CatalogAPI struct {
	client ports.APIClient
	logger *slog.Logger
}

var _ ports.CatalogAPI = (*CatalogAPI)(nil)

func NewCatalogAPI(client ports.APIClient, logger *slog.Logger) *CatalogAPI {
	return &CatalogAPI{
		client: client,
		logger: logger.With(slog.String("component", "catalog_api")),
	}
}

func (a *CatalogAPI) CommodityPage(ctx context.Context, query domain.CommodityQuery) (*domain.PageResult[domain.Commodity], error) {
	var page domain.PageResult[domain.Commodity]
	if err := a.client.Post(ctx, pathCommodityPage, query, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (a *CatalogAPI) CommodityDetail(ctx context.Context, id domain.ProductID) (*domain.Commodity, error) {
	var c domain.Commodity
	if err := a.client.Post(ctx, pathCommodityDetail, idRequest[domain.ProductID]{ID: id}, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Purchase buys quantity units of a commodity
func (a *CatalogAPI) Purchase(ctx context.Context, id domain.ProductID, quantity int) error {
	a.logger.InfoContext(ctx, "purchasing",
		slog.String("product_id", id.String()),
		slog.Int("quantity", quantity))
	return a.client.Post(ctx, pathCommodityBuy, purchaseRequest{CommodityID: id, BuyNumber: quantity}, nil)
}

func (a *CatalogAPI) PostPage(ctx context.Context, query domain.PostQuery) (*domain.PageResult[domain.Post], error) {
	var page domain.PageResult[domain.Post]
	if err := a.client.Post(ctx, pathPostPage, query, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (a *CatalogAPI) PostDetail(ctx context.Context, id int64) (*domain.Post, error) {
	var p domain.Post
	if err := a.client.Post(ctx, pathPostDetail, idRequest[int64]{ID: id}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
