// internal/core/services/command.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ammerola/uniswap-edge/internal/core/domain"
)

var ErrUnknownCommand = errors.New("unknown command")

// Command is a user action the client can execute. The set of variants is
// closed: only types in this package implement it.
type Command interface {
	commandName() string
}

type (
	CmdFetchCart struct{}

	// CmdAddItem adds a product by id. In local mode the product's price
	// and stock are looked up first.
	CmdAddItem struct {
		ProductID domain.ProductID
		Quantity  int
	}

	CmdRemoveItems struct {
		IDs []domain.LineID
	}

	CmdUpdateQuantity struct {
		ID       domain.LineID
		Quantity int
	}

	CmdToggleSelected struct {
		ID domain.LineID
	}

	CmdSetAllSelected struct {
		Selected bool
	}

	CmdClearSelected struct{}

	CmdCheckout struct{}

	CmdListCommodities struct {
		Query domain.CommodityQuery
	}

	CmdListPosts struct {
		Query domain.PostQuery
	}

	// CmdRevalidate refetches one endpoint's keys, or every mounted key
	// when Endpoint is empty.
	CmdRevalidate struct {
		Endpoint string
	}

	CmdLogout struct{}
)

func (CmdFetchCart) commandName() string       { return "fetch_cart" }
func (CmdAddItem) commandName() string         { return "add_item" }
func (CmdRemoveItems) commandName() string     { return "remove_items" }
func (CmdUpdateQuantity) commandName() string  { return "update_quantity" }
func (CmdToggleSelected) commandName() string  { return "toggle_selected" }
func (CmdSetAllSelected) commandName() string  { return "set_all_selected" }
func (CmdClearSelected) commandName() string   { return "clear_selected" }
func (CmdCheckout) commandName() string        { return "checkout" }
func (CmdListCommodities) commandName() string { return "list_commodities" }
func (CmdListPosts) commandName() string       { return "list_posts" }
func (CmdRevalidate) commandName() string      { return "revalidate" }
func (CmdLogout) commandName() string          { return "logout" }

// Result carries whatever a command produced
type Result struct {
	Cart        *domain.Snapshot
	Commodities *domain.PageResult[domain.Commodity]
	Posts       *domain.PageResult[domain.Post]
	Purchased   int
}

// Execute dispatches cmd
func (c *Client) Execute(ctx context.Context, cmd Command) (Result, error) {
	if err := c.checkOpen(); err != nil {
		return Result{}, err
	}

	c.logger.DebugContext(ctx, "executing command", slog.String("command", commandName(cmd)))

	var err error
	switch cmd := cmd.(type) {
	case CmdFetchCart:
		err = c.Cart.FetchCart(ctx)
	case CmdAddItem:
		var ref domain.ProductRef
		ref, err = c.productRef(ctx, cmd.ProductID)
		if err == nil {
			err = c.Cart.AddItem(ctx, ref, cmd.Quantity)
		}
	case CmdRemoveItems:
		err = c.Cart.RemoveBatch(ctx, cmd.IDs)
	case CmdUpdateQuantity:
		err = c.Cart.UpdateQuantity(ctx, cmd.ID, cmd.Quantity)
	case CmdToggleSelected:
		err = c.Cart.ToggleSelected(ctx, cmd.ID)
	case CmdSetAllSelected:
		err = c.Cart.SetAllSelected(ctx, cmd.Selected)
	case CmdClearSelected:
		err = c.Cart.ClearSelected(ctx)
	case CmdCheckout:
		var n int
		n, err = c.Cart.Checkout(ctx)
		if err == nil {
			snap := c.Cart.Snapshot()
			return Result{Cart: &snap, Purchased: n}, nil
		}
		return Result{Purchased: n}, err
	case CmdListCommodities:
		page, err := c.Catalog.CommodityList(ctx, cmd.Query)
		return Result{Commodities: page}, err
	case CmdListPosts:
		page, err := c.Catalog.PostList(ctx, cmd.Query)
		return Result{Posts: page}, err
	case CmdRevalidate:
		if cmd.Endpoint == "" {
			return Result{}, c.Lists.RevalidateMounted(ctx)
		}
		return Result{}, c.Lists.RevalidateEndpoint(ctx, cmd.Endpoint)
	case CmdLogout:
		return Result{}, c.Logout(ctx)
	default:
		return Result{}, fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
	}

	if err != nil {
		return Result{}, err
	}
	snap := c.Cart.Snapshot()
	return Result{Cart: &snap}, nil
}

func (c *Client) productRef(ctx context.Context, id domain.ProductID) (domain.ProductRef, error) {
	if c.Cart.State().Mode == CartModeServer {
		return domain.ProductRef{ProductID: id}, nil
	}

	commodity, err := c.Catalog.CommodityDetail(ctx, id)
	if err != nil {
		return domain.ProductRef{}, fmt.Errorf("look up product %s: %w", id, err)
	}
	if commodity == nil {
		return domain.ProductRef{}, fmt.Errorf("look up product %s: %w", id, domain.ErrProductNotFound)
	}
	return commodity.Ref(), nil
}

func commandName(cmd Command) string {
	if cmd == nil {
		return "<nil>"
	}
	return cmd.commandName()
}
