// internal/core/services/list_view.go
package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var ErrViewClosed = errors.New("list view closed")

// ViewState is what a paged list shows right now
type ViewState struct {
	Key             Key
	Data            any
	HasData         bool
	ShowingPrevious bool
	IsLoading       bool
	IsValidating    bool
	Err             error
}

// ListView pages through one endpoint and keeps the last page visible while
// the next one loads.
type ListView[P any] struct {
	cache    *ListCache
	endpoint string
	fetch    func(context.Context, P) (any, error)
	logger   *slog.Logger

	mu        sync.Mutex
	key       Key
	mounted   bool
	release   func()
	prev      any
	hasPrev   bool
	listeners map[int]func(ViewState)
	nextID    int
	unsub     func()
	closed    bool
}

func NewListView[P any](cache *ListCache, endpoint string, fetch func(context.Context, P) (any, error), logger *slog.Logger) *ListView[P] {
	v := &ListView[P]{
		cache:     cache,
		endpoint:  endpoint,
		fetch:     fetch,
		logger:    logger.With(slog.String("service", "list_view"), slog.String("endpoint", endpoint)),
		listeners: make(map[int]func(ViewState)),
	}
	v.unsub = cache.Subscribe(v.onEntryChange)
	return v
}

// Show switches to params and loads in the background
func (v *ListView[P]) Show(ctx context.Context, params P) error {
	key, fetcher, err := v.switchTo(params)
	if err != nil {
		return err
	}

	go func() {
		if _, err := v.cache.Get(context.WithoutCancel(ctx), key, fetcher); err != nil {
			v.logger.WarnContext(ctx, "page load failed",
				slog.String("key", key.String()),
				slog.String("error", err.Error()))
		}
	}()
	return nil
}

// Load switches to params and waits for the page
func (v *ListView[P]) Load(ctx context.Context, params P) (ViewState, error) {
	key, fetcher, err := v.switchTo(params)
	if err != nil {
		return ViewState{}, err
	}

	_, err = v.cache.Get(ctx, key, fetcher)
	return v.State(), err
}

// State returns what should be displayed
func (v *ListView[P]) State() ViewState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stateLocked()
}

// Subscribe registers fn for every change of the current page
func (v *ListView[P]) Subscribe(fn func(ViewState)) func() {
	v.mu.Lock()
	id := v.nextID
	v.nextID++
	v.listeners[id] = fn
	v.mu.Unlock()

	return func() {
		v.mu.Lock()
		delete(v.listeners, id)
		v.mu.Unlock()
	}
}

// Close unmounts the current page and stops notifications
func (v *ListView[P]) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return
	}
	v.closed = true
	if v.release != nil {
		v.release()
	}
	v.unsub()
	v.listeners = make(map[int]func(ViewState))
}

func (v *ListView[P]) switchTo(params P) (Key, Fetcher, error) {
	key, err := NewKey(v.endpoint, params)
	if err != nil {
		return Key{}, nil, err
	}
	fetcher := func(ctx context.Context) (any, error) {
		return v.fetch(ctx, params)
	}

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return Key{}, nil, ErrViewClosed
	}
	if !v.mounted || key != v.key {
		if cur := v.stateLocked(); cur.HasData {
			v.prev = cur.Data
			v.hasPrev = true
		}
		if v.release != nil {
			v.release()
		}
		v.key = key
		v.mounted = true
		v.release = v.cache.Mount(key, fetcher)
	}
	v.mu.Unlock()

	v.emit()
	return key, fetcher, nil
}

func (v *ListView[P]) stateLocked() ViewState {
	if !v.mounted {
		return ViewState{}
	}

	entry, _ := v.cache.Peek(v.key)
	st := ViewState{
		Key:          v.key,
		IsValidating: entry.IsValidating,
		Err:          entry.Err,
	}

	switch {
	case entry.HasData:
		st.Data = entry.Data
		st.HasData = true
	case v.hasPrev:
		st.Data = v.prev
		st.HasData = true
		st.ShowingPrevious = true
		st.IsValidating = entry.Err == nil
	default:
		st.IsLoading = entry.Err == nil
	}
	return st
}

func (v *ListView[P]) onEntryChange(key Key) {
	v.mu.Lock()
	current := v.mounted && key == v.key
	v.mu.Unlock()

	if current {
		v.emit()
	}
}

func (v *ListView[P]) emit() {
	v.mu.Lock()
	st := v.stateLocked()
	listeners := make([]func(ViewState), 0, len(v.listeners))
	for _, l := range v.listeners {
		listeners = append(listeners, l)
	}
	v.mu.Unlock()

	for _, l := range listeners {
		l(st)
	}
}
