// internal/core/services/cart_local.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/ammerola/uniswap-edge/internal/core/domain"
	"github.com/ammerola/uniswap-edge/internal/core/ports"
)

// DefaultCartStorageKey is the LocalStorage key holding the local cart
const DefaultCartStorageKey = "cart"

// storedLine is the persisted record. Fields added after the first release
// are optional and defaulted on read.
type storedLine struct {
	ProductID  domain.ProductID `json:"commodityId"`
	Name       string           `json:"commodityName"`
	Avatar     string           `json:"commodityAvatar,omitempty"`
	Price      decimal.Decimal  `json:"price"`
	Quantity   int              `json:"quantity"`
	Selected   *bool            `json:"selected,omitempty"`
	StockLimit *int             `json:"stockLimit,omitempty"`
}

func (s storedLine) line() domain.CartLine {
	selected := true
	if s.Selected != nil {
		selected = *s.Selected
	}
	return domain.CartLine{
		LineID:     localLineID(s.ProductID),
		ProductID:  s.ProductID,
		Name:       s.Name,
		Avatar:     s.Avatar,
		UnitPrice:  s.Price,
		AddedPrice: s.Price,
		Quantity:   domain.ClampQuantity(s.Quantity, s.StockLimit),
		Selected:   selected,
		StockLimit: s.StockLimit,
		Status:     domain.LineStatusListed,
	}
}

func toStored(l domain.CartLine) storedLine {
	selected := l.Selected
	return storedLine{
		ProductID:  l.ProductID,
		Name:       l.Name,
		Avatar:     l.Avatar,
		Price:      l.UnitPrice,
		Quantity:   l.Quantity,
		Selected:   &selected,
		StockLimit: l.StockLimit,
	}
}

func localLineID(id domain.ProductID) domain.LineID {
	return domain.LineID(id.String())
}

// LocalCartBackend keeps the cart as one JSON array under a single
// LocalStorage key. Every operation reads and writes the whole array.
type LocalCartBackend struct {
	storage ports.LocalStorage
	key     string
	logger  *slog.Logger
}

var _ CartBackend = (*LocalCartBackend)(nil)

func NewLocalCartBackend(storage ports.LocalStorage, key string, logger *slog.Logger) *LocalCartBackend {
	if key == "" {
		key = DefaultCartStorageKey
	}
	return &LocalCartBackend{
		storage: storage,
		key:     key,
		logger:  logger.With(slog.String("component", "cart_local")),
	}
}

func (b *LocalCartBackend) Mode() CartMode { return CartModeLocal }

func (b *LocalCartBackend) Load(ctx context.Context) (domain.Snapshot, error) {
	lines, err := b.read(ctx)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return domain.ComputeSnapshot(lines), nil
}

// Add merges into the existing line for the product or appends a new selected
// line. The result is clamped to the line's stock limit.
func (b *LocalCartBackend) Add(ctx context.Context, ref domain.ProductRef, quantity int) error {
	lines, err := b.read(ctx)
	if err != nil {
		return err
	}

	found := false
	for i := range lines {
		if lines[i].ProductID == ref.ProductID {
			lines[i].Quantity += quantity
			if ref.StockLimit != nil {
				lines[i].StockLimit = ref.StockLimit
			}
			lines[i].Quantity = domain.ClampQuantity(lines[i].Quantity, lines[i].StockLimit)
			found = true
			break
		}
	}
	if !found {
		lines = append(lines, domain.CartLine{
			LineID:     localLineID(ref.ProductID),
			ProductID:  ref.ProductID,
			Name:       ref.Name,
			Avatar:     ref.Avatar,
			UnitPrice:  ref.UnitPrice,
			AddedPrice: ref.UnitPrice,
			Quantity:   domain.ClampQuantity(quantity, ref.StockLimit),
			Selected:   true,
			StockLimit: ref.StockLimit,
			Status:     domain.LineStatusListed,
		})
	}

	return b.write(ctx, lines)
}

func (b *LocalCartBackend) Remove(ctx context.Context, ids []domain.LineID) error {
	lines, err := b.read(ctx)
	if err != nil {
		return err
	}

	drop := make(map[domain.LineID]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	kept := lines[:0]
	for _, l := range lines {
		if _, ok := drop[l.LineID]; !ok {
			kept = append(kept, l)
		}
	}
	return b.write(ctx, kept)
}

func (b *LocalCartBackend) UpdateQuantity(ctx context.Context, id domain.LineID, quantity int) error {
	return b.update(ctx, id, func(l *domain.CartLine) {
		l.Quantity = domain.ClampQuantity(quantity, l.StockLimit)
	})
}

func (b *LocalCartBackend) SetSelected(ctx context.Context, id domain.LineID, selected bool) error {
	return b.update(ctx, id, func(l *domain.CartLine) {
		l.Selected = selected
	})
}

func (b *LocalCartBackend) SetAllSelected(ctx context.Context, selected bool) error {
	lines, err := b.read(ctx)
	if err != nil {
		return err
	}
	for i := range lines {
		lines[i].Selected = selected
	}
	return b.write(ctx, lines)
}

func (b *LocalCartBackend) Clear(ctx context.Context) error {
	return b.write(ctx, nil)
}

func (b *LocalCartBackend) Count(ctx context.Context) (int, error) {
	snap, err := b.Load(ctx)
	if err != nil {
		return 0, err
	}
	return snap.TotalQuantity, nil
}

func (b *LocalCartBackend) update(ctx context.Context, id domain.LineID, fn func(*domain.CartLine)) error {
	lines, err := b.read(ctx)
	if err != nil {
		return err
	}
	for i := range lines {
		if lines[i].LineID == id {
			fn(&lines[i])
			return b.write(ctx, lines)
		}
	}
	return fmt.Errorf("line %s: %w", id, domain.ErrLineNotFound)
}

// read returns an empty cart for a missing or unreadable value
func (b *LocalCartBackend) read(ctx context.Context) ([]domain.CartLine, error) {
	raw, err := b.storage.GetItem(ctx, b.key)
	if err != nil {
		return nil, fmt.Errorf("read local cart: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	var stored []storedLine
	if err := json.Unmarshal(raw, &stored); err != nil {
		b.logger.WarnContext(ctx, "discarding unreadable local cart",
			slog.String("key", b.key),
			slog.String("error", err.Error()))
		return nil, nil
	}

	lines := make([]domain.CartLine, 0, len(stored))
	for _, s := range stored {
		lines = append(lines, s.line())
	}
	return lines, nil
}

func (b *LocalCartBackend) write(ctx context.Context, lines []domain.CartLine) error {
	stored := make([]storedLine, 0, len(lines))
	for _, l := range lines {
		stored = append(stored, toStored(l))
	}

	raw, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encode local cart: %w", err)
	}
	if err := b.storage.SetItem(ctx, b.key, raw); err != nil {
		return fmt.Errorf("persist local cart: %w", err)
	}
	return nil
}
