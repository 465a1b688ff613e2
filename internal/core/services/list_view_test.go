// internal/core/services/list_view_test.go
package services_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/uniswap-edge/internal/core/domain"
	"github.com/ammerola/uniswap-edge/internal/core/services"
	"github.com/ammerola/uniswap-edge/test/helpers"
)

// pagedPosts serves post pages; pages listed in gates block until released
type pagedPosts struct {
	mu    sync.Mutex
	gates map[int]chan struct{}
	fail  map[int]error
}

func newPagedPosts() *pagedPosts {
	return &pagedPosts{gates: make(map[int]chan struct{}), fail: make(map[int]error)}
}

func (p *pagedPosts) gate(page int) chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := make(chan struct{})
	p.gates[page] = ch
	return ch
}

func (p *pagedPosts) fetch(ctx context.Context, q domain.PostQuery) (any, error) {
	p.mu.Lock()
	gate := p.gates[q.Current]
	err := p.fail[q.Current]
	p.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return &domain.PageResult[domain.Post]{
		Records:  []domain.Post{{ID: int64(q.Current), Title: fmt.Sprintf("post on page %d", q.Current)}},
		Total:    100,
		Current:  q.Current,
		PageSize: q.PageSize,
	}, nil
}

func pageOf(t *testing.T, st services.ViewState) int {
	t.Helper()
	page, ok := services.PageData[domain.Post](st)
	require.True(t, ok, "state has no page")
	return page.Current
}

func TestListView_KeepsPreviousPageWhileNextLoads(t *testing.T) {
	ctx := context.Background()
	cache := newTestListCache(time.Hour, 0)
	posts := newPagedPosts()
	view := services.NewListView(cache, services.EndpointPostPage, posts.fetch, helpers.TestLogger())
	defer view.Close()

	st, err := view.Load(ctx, domain.PostQuery{Current: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, pageOf(t, st))
	assert.False(t, st.ShowingPrevious)

	gate := posts.gate(2)
	require.NoError(t, view.Show(ctx, domain.PostQuery{Current: 2, PageSize: 10}))

	st = view.State()
	assert.Equal(t, 1, pageOf(t, st), "page 1 stays visible")
	assert.True(t, st.ShowingPrevious)
	assert.True(t, st.IsValidating)
	assert.False(t, st.IsLoading)

	close(gate)
	helpers.AssertEventuallyWithTimeout(t, func() bool {
		st := view.State()
		return st.HasData && !st.ShowingPrevious
	}, time.Second, "page 2 should arrive")

	st = view.State()
	assert.Equal(t, 2, pageOf(t, st))
	assert.False(t, st.IsValidating)
}

func TestListView_FirstLoadShowsLoading(t *testing.T) {
	ctx := context.Background()
	cache := newTestListCache(time.Hour, 0)
	posts := newPagedPosts()
	view := services.NewListView(cache, services.EndpointPostPage, posts.fetch, helpers.TestLogger())
	defer view.Close()

	assert.Equal(t, services.ViewState{}, view.State())

	gate := posts.gate(1)
	require.NoError(t, view.Show(ctx, domain.PostQuery{Current: 1}))

	st := view.State()
	assert.True(t, st.IsLoading)
	assert.False(t, st.HasData)

	close(gate)
	helpers.AssertEventuallyWithTimeout(t, func() bool {
		return view.State().HasData
	}, time.Second, "page 1 should arrive")
}

func TestListView_FailedPageKeepsPreviousData(t *testing.T) {
	ctx := context.Background()
	cache := newTestListCache(time.Hour, 0)
	posts := newPagedPosts()
	posts.fail[2] = &domain.APIError{Status: 400, Message: "bad page"}
	view := services.NewListView(cache, services.EndpointPostPage, posts.fetch, helpers.TestLogger())
	defer view.Close()

	_, err := view.Load(ctx, domain.PostQuery{Current: 1})
	require.NoError(t, err)

	st, err := view.Load(ctx, domain.PostQuery{Current: 2})
	require.Error(t, err)

	assert.Equal(t, 1, pageOf(t, st))
	assert.True(t, st.ShowingPrevious)
	assert.False(t, st.IsValidating)
	assert.Error(t, st.Err)
}

func TestListView_SubscribeAndClose(t *testing.T) {
	ctx := context.Background()
	cache := newTestListCache(time.Hour, 0)
	posts := newPagedPosts()
	view := services.NewListView(cache, services.EndpointPostPage, posts.fetch, helpers.TestLogger())

	var mu sync.Mutex
	var states []services.ViewState
	view.Subscribe(func(st services.ViewState) {
		mu.Lock()
		states = append(states, st)
		mu.Unlock()
	})

	_, err := view.Load(ctx, domain.PostQuery{Current: 1})
	require.NoError(t, err)

	mu.Lock()
	require.NotEmpty(t, states)
	assert.True(t, states[len(states)-1].HasData)
	mu.Unlock()

	view.Close()
	_, err = view.Load(ctx, domain.PostQuery{Current: 2})
	assert.ErrorIs(t, err, services.ErrViewClosed)
	assert.ErrorIs(t, view.Show(ctx, domain.PostQuery{Current: 2}), services.ErrViewClosed)

	// The closed view no longer holds a mount
	require.NoError(t, cache.RevalidateMounted(ctx))
}
