// internal/core/services/cart_remote.go
package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ammerola/uniswap-edge/internal/core/domain"
	"github.com/ammerola/uniswap-edge/internal/core/ports"
)

// RemoteCartBackend delegates every operation to the backend cart resource.
// The server decides merge policy, prices and discounts.
type RemoteCartBackend struct {
	api    ports.CartAPI
	logger *slog.Logger
}

var _ CartBackend = (*RemoteCartBackend)(nil)

func NewRemoteCartBackend(api ports.CartAPI, logger *slog.Logger) *RemoteCartBackend {
	return &RemoteCartBackend{
		api:    api,
		logger: logger.With(slog.String("component", "cart_remote")),
	}
}

func (b *RemoteCartBackend) Mode() CartMode { return CartModeServer }

func (b *RemoteCartBackend) Load(ctx context.Context) (domain.Snapshot, error) {
	cart, err := b.api.List(ctx)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("list cart: %w", err)
	}
	return domain.ServerSnapshot(*cart), nil
}

func (b *RemoteCartBackend) Add(ctx context.Context, ref domain.ProductRef, quantity int) error {
	id, err := b.api.Add(ctx, ref.ProductID, quantity)
	if err != nil {
		return fmt.Errorf("add product %s: %w", ref.ProductID, err)
	}
	b.logger.DebugContext(ctx, "line added",
		slog.String("product_id", ref.ProductID.String()),
		slog.String("line_id", string(id)))
	return nil
}

func (b *RemoteCartBackend) Remove(ctx context.Context, ids []domain.LineID) error {
	if len(ids) == 0 {
		return nil
	}
	if err := b.api.Remove(ctx, ids); err != nil {
		return fmt.Errorf("remove %d lines: %w", len(ids), err)
	}
	return nil
}

func (b *RemoteCartBackend) UpdateQuantity(ctx context.Context, id domain.LineID, quantity int) error {
	if err := b.api.Update(ctx, domain.CartUpdate{LineID: id, Quantity: &quantity}); err != nil {
		return fmt.Errorf("update line %s: %w", id, err)
	}
	return nil
}

func (b *RemoteCartBackend) SetSelected(ctx context.Context, id domain.LineID, selected bool) error {
	if err := b.api.Update(ctx, domain.CartUpdate{LineID: id, Selected: &selected}); err != nil {
		return fmt.Errorf("select line %s: %w", id, err)
	}
	return nil
}

func (b *RemoteCartBackend) SetAllSelected(ctx context.Context, selected bool) error {
	if err := b.api.SelectAll(ctx, selected); err != nil {
		return fmt.Errorf("select all: %w", err)
	}
	return nil
}

// Clear removes every line the server currently holds
func (b *RemoteCartBackend) Clear(ctx context.Context) error {
	cart, err := b.api.List(ctx)
	if err != nil {
		return fmt.Errorf("list cart: %w", err)
	}

	ids := make([]domain.LineID, 0, len(cart.Lines))
	for _, l := range cart.Lines {
		ids = append(ids, l.LineID)
	}
	return b.Remove(ctx, ids)
}

func (b *RemoteCartBackend) Count(ctx context.Context) (int, error) {
	n, err := b.api.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count cart: %w", err)
	}
	return n, nil
}

// Merge pushes guest lines into the server cart
func (b *RemoteCartBackend) Merge(ctx context.Context, items []domain.MergeItem) error {
	if len(items) == 0 {
		return nil
	}
	if err := b.api.Merge(ctx, items); err != nil {
		return fmt.Errorf("merge %d lines: %w", len(items), err)
	}
	return nil
}
