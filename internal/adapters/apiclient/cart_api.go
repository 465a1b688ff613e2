// internal/adapters/apiclient/cart_api.go
package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/ammerola/uniswap-edge/internal/core/domain"
	"github.com/ammerola/uniswap-edge/internal/core/ports"
)

const (
	pathCartList      = "/api/cart/list"
	pathCartAdd       = "/api/cart/add"
	pathCartUpdate    = "/api/cart/update"
	pathCartRemove    = "/api/cart/remove"
	pathCartSelectAll = "/api/cart/selectAll"
	pathCartCount     = "/api/cart/count"
	pathCartMerge     = "/api/cart/merge"
)

type cartItem struct {
	ID              json.Number      `json:"id"`
	CommodityID     domain.ProductID `json:"commodityId"`
	CommodityName   string           `json:"commodityName"`
	CommodityAvatar string           `json:"commodityAvatar"`
	CurrentPrice    decimal.Decimal  `json:"currentPrice"`
	AddPrice        decimal.Decimal  `json:"addPrice"`
	Quantity        int              `json:"quantity"`
	Selected        bool             `json:"selected"`
	Stock           *int             `json:"stock"`
	Status          int              `json:"status"`
	LimitBuy        *int             `json:"limitBuy"`
	PriceChangeTip  *string          `json:"priceChangeTip"`
}

func (i cartItem) line() domain.CartLine {
	l := domain.CartLine{
		LineID:     domain.LineID(i.ID.String()),
		ProductID:  i.CommodityID,
		Name:       i.CommodityName,
		Avatar:     i.CommodityAvatar,
		UnitPrice:  i.CurrentPrice,
		AddedPrice: i.AddPrice,
		Quantity:   i.Quantity,
		Selected:   i.Selected,
		StockLimit: stockLimit(i.Stock, i.LimitBuy),
		Status:     domain.LineStatus(i.Status),
	}
	if i.PriceChangeTip != nil {
		l.PriceChangeTip = *i.PriceChangeTip
	}
	return l
}

// stockLimit is the smaller of the known limits, nil when neither is known
func stockLimit(stock, limitBuy *int) *int {
	switch {
	case stock == nil && limitBuy == nil:
		return nil
	case stock == nil:
		v := *limitBuy
		return &v
	case limitBuy == nil:
		v := *stock
		return &v
	default:
		v := min(*stock, *limitBuy)
		return &v
	}
}

type cartVO struct {
	Items          []cartItem      `json:"items"`
	TotalQuantity  int             `json:"totalQuantity"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	FinalAmount    decimal.Decimal `json:"finalAmount"`
}

type cartAddRequest struct {
	CommodityID domain.ProductID `json:"commodityId"`
	Quantity    int              `json:"quantity"`
}

type cartUpdateRequest struct {
	ID       json.Number `json:"id"`
	Quantity *int        `json:"quantity,omitempty"`
	Selected *bool       `json:"selected,omitempty"`
}

type cartMergeRequest struct {
	Items []domain.MergeItem `json:"items"`
}

// CartAPI is the server cart resource
type CartAPI struct {
	client ports.APIClient
	logger *slog.Logger
}

var _ ports.CartAPI = (*CartAPI)(nil)

func NewCartAPI(client ports.APIClient, logger *slog.Logger) *CartAPI {
	return &CartAPI{
		client: client,
		logger: logger.With(slog.String("component", "cart_api")),
	}
}

func (a *CartAPI) List(ctx context.Context) (*domain.ServerCart, error) {
	var vo cartVO
	if err := a.client.Get(ctx, pathCartList, &vo); err != nil {
		return nil, err
	}

	cart := &domain.ServerCart{
		Lines:          make([]domain.CartLine, 0, len(vo.Items)),
		TotalQuantity:  vo.TotalQuantity,
		TotalAmount:    vo.TotalAmount,
		DiscountAmount: vo.DiscountAmount,
		FinalAmount:    vo.FinalAmount,
	}
	for _, item := range vo.Items {
		cart.Lines = append(cart.Lines, item.line())
	}
	return cart, nil
}

func (a *CartAPI) Add(ctx context.Context, productID domain.ProductID, quantity int) (domain.LineID, error) {
	var id json.Number
	if err := a.client.Post(ctx, pathCartAdd, cartAddRequest{CommodityID: productID, Quantity: quantity}, &id); err != nil {
		return "", err
	}
	return domain.LineID(id.String()), nil
}

func (a *CartAPI) Update(ctx context.Context, update domain.CartUpdate) error {
	id, err := lineNumber(update.LineID)
	if err != nil {
		return err
	}
	return a.client.Post(ctx, pathCartUpdate, cartUpdateRequest{
		ID:       id,
		Quantity: update.Quantity,
		Selected: update.Selected,
	}, nil)
}

func (a *CartAPI) Remove(ctx context.Context, ids []domain.LineID) error {
	body := make([]json.Number, 0, len(ids))
	for _, id := range ids {
		n, err := lineNumber(id)
		if err != nil {
			return err
		}
		body = append(body, n)
	}
	return a.client.Post(ctx, pathCartRemove, body, nil)
}

func (a *CartAPI) SelectAll(ctx context.Context, selected bool) error {
	return a.client.Post(ctx, pathCartSelectAll+"?selected="+strconv.FormatBool(selected), nil, nil)
}

func (a *CartAPI) Count(ctx context.Context) (int, error) {
	var n domain.Count
	if err := a.client.Get(ctx, pathCartCount, &n); err != nil {
		return 0, err
	}
	return int(n), nil
}

func (a *CartAPI) Merge(ctx context.Context, items []domain.MergeItem) error {
	a.logger.DebugContext(ctx, "merging guest cart", slog.Int("lines", len(items)))
	return a.client.Post(ctx, pathCartMerge, cartMergeRequest{Items: items}, nil)
}

// lineNumber converts a server line id back to the numeric form the backend expects
func lineNumber(id domain.LineID) (json.Number, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err != nil {
		return "", fmt.Errorf("line %q is not a server line id: %w", id, domain.ErrLineNotFound)
	}
	return json.Number(id), nil
}
