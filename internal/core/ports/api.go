// internal/core/ports/api.go
package ports

import (
	"context"

	"github.com/ammerola/uniswap-edge/internal/core/domain"
)

// APIClient is the transport every backend call goes through. Both methods
// decode the unwrapped payload into out (which may be nil).
type APIClient interface {
	Get(ctx context.Context, path string, out any) error
	Post(ctx context.Context, path string, body any, out any) error
}

// CartAPI is the backend cart resource
type CartAPI interface {
	List(ctx context.Context) (*domain.ServerCart, error)
	Add(ctx context.Context, productID domain.ProductID, quantity int) (domain.LineID, error)
	Update(ctx context.Context, update domain.CartUpdate) error
	Remove(ctx context.Context, ids []domain.LineID) error
	SelectAll(ctx context.Context, selected bool) error
	Count(ctx context.Context) (int, error)
	Merge(ctx context.Context, items []domain.MergeItem) error
}

// CatalogAPI is the backend commodity and post resources used by list reads and checkout
type CatalogAPI interface {
	CommodityPage(ctx context.Context, query domain.CommodityQuery) (*domain.PageResult[domain.Commodity], error)
	CommodityDetail(ctx context.Context, id domain.ProductID) (*domain.Commodity, error)
	Purchase(ctx context.Context, id domain.ProductID, quantity int) error
	PostPage(ctx context.Context, query domain.PostQuery) (*domain.PageResult[domain.Post], error)
	PostDetail(ctx context.Context, id int64) (*domain.Post, error)
}
