// internal/core/services/client.go
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

var ErrClientClosed = errors.New("client closed")

// ClientConfig selects cart mode and list cache tuning
type ClientConfig struct {
	CartMode       CartMode
	CartStorageKey string
	ListCache      ListCacheConfig
}

// Client is the per-user container built at bootstrap and torn down on logout
type Client struct {
	Session *Session
	Cart    *CartStore
	Lists   *ListCache
	Catalog *Catalog

	guest  *LocalCartBackend
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewClient wires the stores. In server mode the local backend is kept
// only as the guest cart merged on login.
func NewClient(
	cfg ClientConfig,
	session *Session,
	cartAPI ports.CartAPI,
	catalogAPI ports.CatalogAPI,
	storage ports.LocalStorage,
	logger *slog.Logger,
) (*Client, error) {
	local := NewLocalCartBackend(storage, cfg.CartStorageKey, logger)

	var backend CartBackend
	switch cfg.CartMode {
	case CartModeServer, "":
		backend = NewRemoteCartBackend(cartAPI, logger)
	case CartModeLocal:
		backend = local
	default:
		return nil, fmt.Errorf("invalid cart mode %q", cfg.CartMode)
	}

	lists := NewListCache(cfg.ListCache, logger)

	c := &Client{
		Session: session,
		Cart:    NewCartStore(backend, catalogAPI, logger),
		Lists:   lists,
		Catalog: NewCatalog(catalogAPI, lists, logger),
		guest:   local,
		logger:  logger.With(slog.String("service", "client")),
	}

	session.OnLogout(c.teardown)
	return c, nil
}

// Login starts a session. In server mode any guest cart is merged into the
// server cart before the first fetch.
func (c *Client) Login(ctx context.Context, token string, user *domain.User) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if err := c.Session.Login(ctx, token, user); err != nil {
		return err
	}

	if c.Cart.State().Mode == CartModeServer {
		if err := c.Cart.MergeLocal(ctx, c.guest); err != nil {
			return fmt.Errorf("merge guest cart: %w", err)
		}
	}
	return c.Cart.FetchCart(ctx)
}

// Logout ends the session and tears the container down
func (c *Client) Logout(ctx context.Context) error {
	return c.Session.Logout(ctx)
}

// Closed reports whether the container has been torn down
func (c *Client) Closed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

func (c *Client) teardown(ctx context.Context) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.Cart.Close()
	c.Lists.Clear()
	c.logger.InfoContext(ctx, "client torn down")
}

func (c *Client) checkOpen() error {
	if c.Closed() {
		return ErrClientClosed
	}
	return nil
}
