// cmd/storefront/commands.go
package main

import (
	"errors"
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/ammerola/uniswap-edge/internal/core/domain"
	"github.com/ammerola/uniswap-edge/internal/core/services"
)

var (
	errUsage          = errors.New("usage error")
	errUnknownCommand = errors.New("unknown command")
)

const usage = `usage: storefront <command> [flags]

commands:
  cart                             show the cart
  add --product ID [--quantity N]  add a product
  remove --line ID [--line ID...]  remove cart lines
  update --line ID --quantity N    change a line's quantity
  toggle --line ID                 flip a line's selection
  select-all [--selected=false]    select or deselect every line
  clear-selected                   remove selected lines
  checkout                         purchase selected lines
  commodities [filters]            list commodities
  posts [filters]                  list posts
  revalidate [--endpoint PATH]     refetch cached lists
  login --token TOKEN              start a session
  logout                           end the session
  watch                            revalidate lists whenever the API comes back online`

// invocation is a parsed command line. Exactly one of cmd, login or watch is set.
type invocation struct {
	name  string
	cmd   services.Command
	token string
	watch bool
}

// touchesCart reports whether the cart must be loaded before running
func (inv invocation) touchesCart() bool {
	switch inv.cmd.(type) {
	case services.CmdAddItem, services.CmdRemoveItems, services.CmdUpdateQuantity,
		services.CmdToggleSelected, services.CmdSetAllSelected, services.CmdClearSelected,
		services.CmdCheckout:
		return true
	}
	return false
}

func parseInvocation(args []string) (invocation, error) {
	if len(args) == 0 {
		return invocation{}, fmt.Errorf("%w: missing command", errUsage)
	}

	name, rest := args[0], args[1:]
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Usage = func() {}

	inv := invocation{name: name}
	var build func() error

	switch name {
	case "cart":
		inv.cmd = services.CmdFetchCart{}

	case "add":
		product := fs.Int64("product", 0, "product id")
		quantity := fs.Int("quantity", 1, "quantity to add")
		build = func() error {
			if *product <= 0 {
				return fmt.Errorf("%w: --product is required", errUsage)
			}
			inv.cmd = services.CmdAddItem{ProductID: domain.ProductID(*product), Quantity: *quantity}
			return nil
		}

	case "remove":
		lines := fs.StringSlice("line", nil, "cart line id (repeatable)")
		build = func() error {
			if len(*lines) == 0 {
				return fmt.Errorf("%w: at least one --line is required", errUsage)
			}
			ids := make([]domain.LineID, len(*lines))
			for i, l := range *lines {
				ids[i] = domain.LineID(l)
			}
			inv.cmd = services.CmdRemoveItems{IDs: ids}
			return nil
		}

	case "update":
		line := fs.String("line", "", "cart line id")
		quantity := fs.Int("quantity", 0, "new quantity")
		build = func() error {
			if *line == "" {
				return fmt.Errorf("%w: --line is required", errUsage)
			}
			inv.cmd = services.CmdUpdateQuantity{ID: domain.LineID(*line), Quantity: *quantity}
			return nil
		}

	case "toggle":
		line := fs.String("line", "", "cart line id")
		build = func() error {
			if *line == "" {
				return fmt.Errorf("%w: --line is required", errUsage)
			}
			inv.cmd = services.CmdToggleSelected{ID: domain.LineID(*line)}
			return nil
		}

	case "select-all":
		selected := fs.Bool("selected", true, "selection state")
		build = func() error {
			inv.cmd = services.CmdSetAllSelected{Selected: *selected}
			return nil
		}

	case "clear-selected":
		inv.cmd = services.CmdClearSelected{}

	case "checkout":
		inv.cmd = services.CmdCheckout{}

	case "commodities":
		page := fs.Int("page", 1, "page number")
		size := fs.Int("page-size", 10, "page size")
		search := fs.String("name", "", "name filter")
		typeID := fs.Int64("type", 0, "commodity type id")
		sortField := fs.String("sort-field", "", "sort field")
		sortOrder := fs.String("sort-order", "", "ascend or descend")
		build = func() error {
			inv.cmd = services.CmdListCommodities{Query: domain.CommodityQuery{
				Current:         *page,
				PageSize:        *size,
				CommodityName:   *search,
				CommodityTypeID: *typeID,
				SortField:       *sortField,
				SortOrder:       *sortOrder,
			}}
			return nil
		}

	case "posts":
		page := fs.Int("page", 1, "page number")
		size := fs.Int("page-size", 10, "page size")
		search := fs.String("search", "", "search text")
		tags := fs.StringSlice("tag", nil, "tag filter (repeatable)")
		sortField := fs.String("sort-field", "", "sort field")
		sortOrder := fs.String("sort-order", "", "ascend or descend")
		build = func() error {
			inv.cmd = services.CmdListPosts{Query: domain.PostQuery{
				Current:    *page,
				PageSize:   *size,
				SearchText: *search,
				Tags:       *tags,
				SortField:  *sortField,
				SortOrder:  *sortOrder,
			}}
			return nil
		}

	case "revalidate":
		endpoint := fs.String("endpoint", "", "endpoint path; empty means every mounted list")
		build = func() error {
			inv.cmd = services.CmdRevalidate{Endpoint: *endpoint}
			return nil
		}

	case "login":
		token := fs.String("token", "", "bearer token")
		build = func() error {
			if strings.TrimSpace(*token) == "" {
				return fmt.Errorf("%w: --token is required", errUsage)
			}
			inv.token = *token
			return nil
		}

	case "logout":
		inv.cmd = services.CmdLogout{}

	case "watch":
		inv.watch = true

	default:
		return invocation{}, fmt.Errorf("%w: %q", errUnknownCommand, name)
	}

	if err := fs.Parse(rest); err != nil {
		return invocation{}, fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() > 0 {
		return invocation{}, fmt.Errorf("%w: unexpected argument %q", errUsage, fs.Arg(0))
	}
	if build != nil {
		if err := build(); err != nil {
			return invocation{}, err
		}
	}
	return inv, nil
}
