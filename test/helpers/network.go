// test/helpers/network.go
package helpers

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"
)

// ErrOffline is what FakeNetwork returns while offline
var ErrOffline = errors.New("dial tcp: connect: network is unreachable")

// FakeRoute is a canned upstream response
type FakeRoute struct {
	Status int
	Body   string
	Header http.Header
}

// FakeNetwork is an http.RoundTripper serving canned responses by full URL.
// Unknown URLs get a 404.
type FakeNetwork struct {
	mu      sync.Mutex
	offline bool
	routes  map[string]FakeRoute
	calls   map[string]int
}

func NewFakeNetwork() *FakeNetwork {
	return &FakeNetwork{
		routes: make(map[string]FakeRoute),
		calls:  make(map[string]int),
	}
}

// Handle registers a response for url
func (f *FakeNetwork) Handle(url string, status int, body string) *FakeNetwork {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[url] = FakeRoute{
		Status: status,
		Body:   body,
		Header: http.Header{"Content-Type": []string{"text/html; charset=utf-8"}},
	}
	return f
}

// HandleAll registers a 200 "body of <path>" response for each path under origin
func (f *FakeNetwork) HandleAll(origin string, paths ...string) *FakeNetwork {
	for _, p := range paths {
		f.Handle(origin+p, http.StatusOK, "body of "+p)
	}
	return f
}

func (f *FakeNetwork) SetOffline(offline bool) {
	f.mu.Lock()
	f.offline = offline
	f.mu.Unlock()
}

// Calls returns how many requests reached url, including offline attempts
func (f *FakeNetwork) Calls(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func (f *FakeNetwork) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := req.URL.String()
	f.calls[key]++

	if f.offline {
		return nil, ErrOffline
	}

	route, ok := f.routes[key]
	if !ok {
		route = FakeRoute{Status: http.StatusNotFound, Body: "not found"}
	}

	header := route.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	header.Set("Content-Length", strconv.Itoa(len(route.Body)))

	return &http.Response{
		Status:        strconv.Itoa(route.Status) + " " + http.StatusText(route.Status),
		StatusCode:    route.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader([]byte(route.Body))),
		ContentLength: int64(len(route.Body)),
		Request:       req,
	}, nil
}
