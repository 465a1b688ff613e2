// internal/core/services/cart_store.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ammerola/uniswap-edge/internal/core/domain"
	"github.com/ammerola/uniswap-edge/internal/core/ports"
)

var (
	ErrStoreClosed      = errors.New("cart store closed")
	ErrNothingSelected  = errors.New("no cart lines selected")
	ErrMergeUnsupported = errors.New("cart backend cannot merge")
	ErrNoCatalog        = errors.New("cart store has no catalog for checkout")
)

// CartMode selects where the cart's source of truth lives
type CartMode string

const (
	CartModeServer CartMode = "server"
	CartModeLocal  CartMode = "local"
)

// ParseCartMode validates a configured mode
func ParseCartMode(s string) (CartMode, error) {
	switch CartMode(s) {
	case CartModeServer, CartModeLocal:
		return CartMode(s), nil
	default:
		return "", fmt.Errorf("invalid cart mode %q", s)
	}
}

// CartBackend is the source of truth behind a CartStore. Mutations never
// return state; the store reloads after each one.
type CartBackend interface {
	Mode() CartMode
	Load(ctx context.Context) (domain.Snapshot, error)
	Add(ctx context.Context, ref domain.ProductRef, quantity int) error
	Remove(ctx context.Context, ids []domain.LineID) error
	UpdateQuantity(ctx context.Context, id domain.LineID, quantity int) error
	SetSelected(ctx context.Context, id domain.LineID, selected bool) error
	SetAllSelected(ctx context.Context, selected bool) error
	Clear(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}

type cartMerger interface {
	Merge(ctx context.Context, items []domain.MergeItem) error
}

// CartState is what subscribers observe
type CartState struct {
	Mode     CartMode
	Snapshot domain.Snapshot
	Loading  bool
	Err      error
}

// CartStore is the observable cart. Aggregates are always derived from the
// line list the backend returned last.
type CartStore struct {
	backend CartBackend
	catalog ports.CatalogAPI
	logger  *slog.Logger

	// mu serializes mutations; stateMu guards everything below it
	mu        sync.Mutex
	stateMu   sync.RWMutex
	state     CartState
	listeners map[int]func(CartState)
	nextID    int
	closed    bool
}

// NewCartStore creates a store over backend. catalog may be nil when
// Checkout is not needed.
func NewCartStore(backend CartBackend, catalog ports.CatalogAPI, logger *slog.Logger) *CartStore {
	mode := backend.Mode()
	return &CartStore{
		backend:   backend,
		catalog:   catalog,
		logger:    logger.With(slog.String("service", "cart"), slog.String("mode", string(mode))),
		state:     CartState{Mode: mode, Snapshot: domain.ComputeSnapshot(nil)},
		listeners: make(map[int]func(CartState)),
	}
}

// State returns the current state
func (s *CartStore) State() CartState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.copyState()
}

// Snapshot returns the current aggregate view
func (s *CartStore) Snapshot() domain.Snapshot {
	return s.State().Snapshot
}

// Subscribe registers fn for every settled state change and returns a cancel func
func (s *CartStore) Subscribe(fn func(CartState)) func() {
	s.stateMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.stateMu.Unlock()

	return func() {
		s.stateMu.Lock()
		delete(s.listeners, id)
		s.stateMu.Unlock()
	}
}

// FetchCart replaces the whole state from the backend
func (s *CartStore) FetchCart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isClosed() {
		return ErrStoreClosed
	}

	s.update(func(st *CartState) { st.Loading = true })

	snap, err := s.backend.Load(ctx)
	if err != nil {
		s.update(func(st *CartState) {
			st.Loading = false
			st.Err = err
		})
		return fmt.Errorf("fetch cart: %w", err)
	}

	s.apply(snap)
	return nil
}

// AddItem adds quantity of ref. Stock validation is the caller's job.
func (s *CartStore) AddItem(ctx context.Context, ref domain.ProductRef, quantity int) error {
	if quantity < 1 {
		return fmt.Errorf("add product %s: %w", ref.ProductID, domain.ErrInvalidQuantity)
	}
	return s.mutate(ctx, "add item", func(ctx context.Context) error {
		return s.backend.Add(ctx, ref, quantity)
	})
}

func (s *CartStore) RemoveItem(ctx context.Context, id domain.LineID) error {
	return s.RemoveBatch(ctx, []domain.LineID{id})
}

func (s *CartStore) RemoveBatch(ctx context.Context, ids []domain.LineID) error {
	if len(ids) == 0 {
		return nil
	}
	return s.mutate(ctx, "remove items", func(ctx context.Context) error {
		return s.backend.Remove(ctx, ids)
	})
}

// UpdateQuantity sets a line's quantity clamped to [1, stock limit]
func (s *CartStore) UpdateQuantity(ctx context.Context, id domain.LineID, quantity int) error {
	return s.mutate(ctx, "update quantity", func(ctx context.Context) error {
		line, ok := s.Snapshot().Line(id)
		if !ok {
			return fmt.Errorf("line %s: %w", id, domain.ErrLineNotFound)
		}
		return s.backend.UpdateQuantity(ctx, id, domain.ClampQuantity(quantity, line.StockLimit))
	})
}

// ToggleSelected flips one line's selection flag
func (s *CartStore) ToggleSelected(ctx context.Context, id domain.LineID) error {
	return s.mutate(ctx, "toggle selected", func(ctx context.Context) error {
		line, ok := s.Snapshot().Line(id)
		if !ok {
			return fmt.Errorf("line %s: %w", id, domain.ErrLineNotFound)
		}
		return s.backend.SetSelected(ctx, id, !line.Selected)
	})
}

func (s *CartStore) SetAllSelected(ctx context.Context, selected bool) error {
	return s.mutate(ctx, "set all selected", func(ctx context.Context) error {
		return s.backend.SetAllSelected(ctx, selected)
	})
}

// ClearSelected removes every selected line
func (s *CartStore) ClearSelected(ctx context.Context) error {
	return s.mutate(ctx, "clear selected", s.clearSelected)
}

func (s *CartStore) clearSelected(ctx context.Context) error {
	ids := s.Snapshot().SelectedLineIDs()
	if len(ids) == 0 {
		return nil
	}
	return s.backend.Remove(ctx, ids)
}

// Clear empties the cart
func (s *CartStore) Clear(ctx context.Context) error {
	return s.mutate(ctx, "clear", s.backend.Clear)
}

// Count returns the badge count. In server mode this is one cheap call that
// does not touch the in-memory state.
func (s *CartStore) Count(ctx context.Context) (int, error) {
	if s.isClosed() {
		return 0, ErrStoreClosed
	}
	return s.backend.Count(ctx)
}

// MergeLocal pushes the guest cart held by guest into this store's server
// cart, clears the guest copy and refetches.
func (s *CartStore) MergeLocal(ctx context.Context, guest CartBackend) error {
	merger, ok := s.backend.(cartMerger)
	if !ok {
		return ErrMergeUnsupported
	}

	return s.mutate(ctx, "merge local cart", func(ctx context.Context) error {
		snap, err := guest.Load(ctx)
		if err != nil {
			return fmt.Errorf("load guest cart: %w", err)
		}
		if len(snap.Lines) == 0 {
			return nil
		}

		items := make([]domain.MergeItem, 0, len(snap.Lines))
		for _, l := range snap.Lines {
			items = append(items, domain.MergeItem{ProductID: l.ProductID, Quantity: l.Quantity})
		}
		if err := merger.Merge(ctx, items); err != nil {
			return err
		}

		s.logger.InfoContext(ctx, "guest cart merged", slog.Int("lines", len(items)))
		return guest.Clear(ctx)
	})
}

// Checkout purchases every selected line and then removes them. The first
// failing purchase stops the run; lines already bought stay until the next fetch.
func (s *CartStore) Checkout(ctx context.Context) (int, error) {
	if s.catalog == nil {
		return 0, ErrNoCatalog
	}

	purchased := 0
	err := s.mutate(ctx, "checkout", func(ctx context.Context) error {
		snap := s.Snapshot()
		if len(snap.SelectedLineIDs()) == 0 {
			return ErrNothingSelected
		}

		for _, l := range snap.Lines {
			if !l.Selected {
				continue
			}
			if err := s.catalog.Purchase(ctx, l.ProductID, l.Quantity); err != nil {
				return fmt.Errorf("purchase product %s: %w", l.ProductID, err)
			}
			purchased++
			s.logger.InfoContext(ctx, "line purchased",
				slog.String("line_id", string(l.LineID)),
				slog.String("product_id", l.ProductID.String()),
				slog.Int("quantity", l.Quantity))
		}

		return s.clearSelected(ctx)
	})
	return purchased, err
}

// Close drops listeners and state. Further calls return ErrStoreClosed.
func (s *CartStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stateMu.Lock()
	s.closed = true
	s.state = CartState{Mode: s.state.Mode, Snapshot: domain.ComputeSnapshot(nil)}
	s.listeners = make(map[int]func(CartState))
	s.stateMu.Unlock()
}

// mutate runs op, then reloads. On failure the line list is left as it was.
func (s *CartStore) mutate(ctx context.Context, name string, op func(context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isClosed() {
		return ErrStoreClosed
	}

	if err := op(ctx); err != nil {
		s.fail(ctx, name, err)
		return fmt.Errorf("%s: %w", name, err)
	}

	snap, err := s.backend.Load(ctx)
	if err != nil {
		s.fail(ctx, name, err)
		return fmt.Errorf("%s: reload: %w", name, err)
	}

	s.apply(snap)
	return nil
}

func (s *CartStore) fail(ctx context.Context, name string, err error) {
	s.logger.WarnContext(ctx, "cart operation failed",
		slog.String("operation", name),
		slog.String("error", err.Error()))
	s.update(func(st *CartState) { st.Err = err })
}

func (s *CartStore) apply(snap domain.Snapshot) {
	s.update(func(st *CartState) {
		st.Snapshot = snap
		st.Loading = false
		st.Err = nil
	})
}

// update mutates state under lock and notifies listeners outside it
func (s *CartStore) update(fn func(*CartState)) {
	s.stateMu.Lock()
	fn(&s.state)
	state := s.copyState()
	listeners := make([]func(CartState), 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.stateMu.Unlock()

	for _, l := range listeners {
		l(state)
	}
}

// copyState must be called with stateMu held
func (s *CartStore) copyState() CartState {
	st := s.state
	st.Snapshot = s.state.Snapshot.Clone()
	return st
}

func (s *CartStore) isClosed() bool {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.closed
}
