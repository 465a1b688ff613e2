// internal/core/services/list_cache.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/ammerola/uniswap-edge/internal/core/domain"
)

var (
	ErrUnknownKey = errors.New("list cache key has no fetcher")
	// ErrInvalidated is returned to callers whose request was discarded by
	// an invalidation that happened while it was in flight
	ErrInvalidated = errors.New("list cache key invalidated during fetch")
)

// Key identifies one cached query. Params is the canonical JSON encoding
// of the query parameters.
type Key struct {
	Endpoint string
	Params   string
}

// NewKey builds a key whose params encoding does not depend on field or
// map construction order.
func NewKey(endpoint string, params any) (Key, error) {
	if params == nil {
		return Key{Endpoint: endpoint}, nil
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return Key{}, fmt.Errorf("encode params for %s: %w", endpoint, err)
	}

	// Round-trip through generic values so object keys come out sorted
	var generic any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return Key{}, fmt.Errorf("decode params for %s: %w", endpoint, err)
	}
	canonical, err := json.Marshal(generic)
	if err != nil {
		return Key{}, fmt.Errorf("canonicalize params for %s: %w", endpoint, err)
	}

	return Key{Endpoint: endpoint, Params: string(canonical)}, nil
}

// MustKey is NewKey for params that always encode
func MustKey(endpoint string, params any) Key {
	k, err := NewKey(endpoint, params)
	if err != nil {
		panic(err)
	}
	return k
}

func (k Key) String() string {
	if k.Params == "" {
		return k.Endpoint
	}
	return k.Endpoint + " " + k.Params
}

// Fetcher loads the data for one key
type Fetcher func(ctx context.Context) (any, error)

// EntryView is a read-only view of one cache entry
type EntryView struct {
	Key           Key
	Data          any
	HasData       bool
	LastFetchedAt time.Time
	IsLoading     bool
	IsValidating  bool
	Err           error
}

type entry struct {
	key           Key
	fetcher       Fetcher
	data          any
	hasData       bool
	lastFetchedAt time.Time
	lastRequestAt time.Time
	validating    bool
	err           error
	generation    uint64
	mounts        int
}

func (e *entry) view() EntryView {
	return EntryView{
		Key:           e.key,
		Data:          e.data,
		HasData:       e.hasData,
		LastFetchedAt: e.lastFetchedAt,
		IsLoading:     e.validating && !e.hasData,
		IsValidating:  e.validating,
		Err:           e.err,
	}
}

// ListCacheConfig tunes deduplication and retry
type ListCacheConfig struct {
	DedupInterval time.Duration
	RetryCount    int
	RetryInterval time.Duration
}

// DefaultListCacheConfig returns the stock tuning
func DefaultListCacheConfig() ListCacheConfig {
	return ListCacheConfig{
		DedupInterval: 2 * time.Second,
		RetryCount:    3,
		RetryInterval: 3 * time.Second,
	}
}

// ListCache is a stale-while-revalidate cache for list and detail reads.
// At most one request per key is in flight at any time.
type ListCache struct {
	cfg    ListCacheConfig
	group  singleflight.Group
	now    func() time.Time
	logger *slog.Logger

	mu        sync.Mutex
	entries   map[Key]*entry
	gen       uint64
	listeners map[int]func(Key)
	nextID    int
}

func NewListCache(cfg ListCacheConfig, logger *slog.Logger) *ListCache {
	if cfg.RetryCount < 0 {
		cfg.RetryCount = 0
	}
	return &ListCache{
		cfg:       cfg,
		now:       time.Now,
		logger:    logger.With(slog.String("service", "list_cache")),
		entries:   make(map[Key]*entry),
		listeners: make(map[int]func(Key)),
	}
}

// Get returns the entry for key. A request is issued only when no request
// for key started within the dedup window; concurrent callers share it.
// The returned view may carry both stale data and the latest error.
func (c *ListCache) Get(ctx context.Context, key Key, fetch Fetcher) (EntryView, error) {
	c.mu.Lock()
	e := c.entryLocked(key)
	if fetch != nil {
		e.fetcher = fetch
	}
	fresh := !e.lastRequestAt.IsZero() && c.now().Sub(e.lastRequestAt) < c.cfg.DedupInterval
	if fresh && !e.validating {
		view := e.view()
		c.mu.Unlock()
		return view, view.Err
	}
	c.mu.Unlock()

	return c.flight(ctx, key)
}

// Revalidate refetches key regardless of the dedup window. A request
// already in flight is joined rather than duplicated.
func (c *ListCache) Revalidate(ctx context.Context, key Key) (EntryView, error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok || e.fetcher == nil {
		c.mu.Unlock()
		return EntryView{Key: key}, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	c.mu.Unlock()

	return c.flight(ctx, key)
}

// Mount marks key as displayed so RevalidateMounted refreshes it. The
// returned func releases the mount.
func (c *ListCache) Mount(key Key, fetch Fetcher) func() {
	c.mu.Lock()
	e := c.entryLocked(key)
	e.mounts++
	if fetch != nil {
		e.fetcher = fetch
	}
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if e, ok := c.entries[key]; ok && e.mounts > 0 {
				e.mounts--
			}
		})
	}
}

// RevalidateMounted refetches every mounted key concurrently
func (c *ListCache) RevalidateMounted(ctx context.Context) error {
	c.mu.Lock()
	var keys []Key
	for k, e := range c.entries {
		if e.mounts > 0 && e.fetcher != nil {
			keys = append(keys, k)
		}
	}
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "revalidating mounted keys", slog.Int("count", len(keys)))

	g, gctx := errgroup.WithContext(ctx)
	for _, k := range keys {
		g.Go(func() error {
			_, err := c.Revalidate(gctx, k)
			return err
		})
	}
	return g.Wait()
}

// RevalidateEndpoint refetches every known key for endpoint
func (c *ListCache) RevalidateEndpoint(ctx context.Context, endpoint string) error {
	keys := c.keys(func(k Key) bool { return k.Endpoint == endpoint })

	g, gctx := errgroup.WithContext(ctx)
	for _, k := range keys {
		g.Go(func() error {
			_, err := c.Revalidate(gctx, k)
			if errors.Is(err, ErrUnknownKey) {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}

// Peek returns the entry without fetching
func (c *ListCache) Peek(key Key) (EntryView, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return EntryView{Key: key}, false
	}
	return e.view(), true
}

// Invalidate drops the cached data for key. Results of flights started
// before the call are discarded.
func (c *ListCache) Invalidate(key Key) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if ok {
		c.resetLocked(e)
	}
	c.mu.Unlock()

	if ok {
		c.group.Forget(key.String())
		c.notify(key)
	}
}

// InvalidateEndpoint invalidates every key for endpoint
func (c *ListCache) InvalidateEndpoint(endpoint string) {
	for _, k := range c.keys(func(k Key) bool { return k.Endpoint == endpoint }) {
		c.Invalidate(k)
	}
}

// Clear invalidates everything and forgets keys nobody has mounted
func (c *ListCache) Clear() {
	keys := c.keys(func(Key) bool { return true })

	c.mu.Lock()
	for _, k := range keys {
		e, ok := c.entries[k]
		if !ok {
			continue
		}
		c.resetLocked(e)
		if e.mounts == 0 {
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()

	for _, k := range keys {
		c.group.Forget(k.String())
		c.notify(k)
	}
}

// Subscribe registers fn for every entry change
func (c *ListCache) Subscribe(fn func(Key)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// flight runs or joins the single request for key. The request itself is
// detached from ctx so one caller giving up does not fail the others.
func (c *ListCache) flight(ctx context.Context, key Key) (EntryView, error) {
	ch := c.group.DoChan(key.String(), func() (any, error) {
		c.mu.Lock()
		e := c.entryLocked(key)
		fetch := e.fetcher
		gen := e.generation
		e.validating = true
		e.lastRequestAt = c.now()
		c.mu.Unlock()
		c.notify(key)

		if fetch == nil {
			err := fmt.Errorf("%w: %s", ErrUnknownKey, key)
			c.settle(key, gen, nil, err)
			return nil, err
		}

		data, err := c.fetchWithRetry(context.WithoutCancel(ctx), key, fetch)
		if !c.settle(key, gen, data, err) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidated, key)
		}
		return data, err
	})

	select {
	case res := <-ch:
		view, _ := c.Peek(key)
		if errors.Is(res.Err, ErrInvalidated) {
			return view, res.Err
		}
		return view, view.Err
	case <-ctx.Done():
		view, _ := c.Peek(key)
		return view, ctx.Err()
	}
}

func (c *ListCache) fetchWithRetry(ctx context.Context, key Key, fetch Fetcher) (any, error) {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.cfg.RetryInterval), uint64(c.cfg.RetryCount)),
		ctx)

	attempt := 0
	op := func() (any, error) {
		attempt++
		data, err := fetch(ctx)
		if err != nil && !retryable(err) {
			return nil, backoff.Permanent(err)
		}
		return data, err
	}

	notify := func(err error, wait time.Duration) {
		c.logger.WarnContext(ctx, "list fetch failed, retrying",
			slog.String("key", key.String()),
			slog.Int("attempt", attempt),
			slog.Duration("wait", wait),
			slog.String("error", err.Error()))
	}

	return backoff.RetryNotifyWithData(op, policy, notify)
}

// settle records a finished flight unless its key was invalidated meanwhile.
// It reports whether the result was kept.
func (c *ListCache) settle(key Key, gen uint64, data any, err error) bool {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok || e.generation != gen {
		c.mu.Unlock()
		c.logger.Debug("discarding stale result", slog.String("key", key.String()))
		return false
	}

	e.validating = false
	if err != nil {
		e.err = err
	} else {
		e.data = data
		e.hasData = true
		e.err = nil
		e.lastFetchedAt = c.now()
	}
	c.mu.Unlock()

	c.notify(key)
	return true
}

func (c *ListCache) entryLocked(key Key) *entry {
	e, ok := c.entries[key]
	if !ok {
		c.gen++
		e = &entry{key: key, generation: c.gen}
		c.entries[key] = e
	}
	return e
}

func (c *ListCache) resetLocked(e *entry) {
	c.gen++
	e.generation = c.gen
	e.data = nil
	e.hasData = false
	e.err = nil
	e.validating = false
	e.lastFetchedAt = time.Time{}
	e.lastRequestAt = time.Time{}
}

func (c *ListCache) keys(match func(Key) bool) []Key {
	c.mu.Lock()
	defer c.mu.Unlock()

	var keys []Key
	for k := range c.entries {
		if match(k) {
			keys = append(keys, k)
		}
	}
	return keys
}

func (c *ListCache) notify(key Key) {
	c.mu.Lock()
	listeners := make([]func(Key), 0, len(c.listeners))
	for _, l := range c.listeners {
		listeners = append(listeners, l)
	}
	c.mu.Unlock()

	for _, l := range listeners {
		l(key)
	}
}

// retryable reports whether err may go away on its own
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, domain.ErrUnauthorized) {
		return false
	}
	var apiErr *domain.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	return true
}
