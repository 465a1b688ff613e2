// internal/core/domain/response.go
package domain

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"time"
)

// CachedResponse is an HTTP response stored in a cache bucket, keyed by the
// full request URL. Entries are overwritten, never versioned.
type CachedResponse struct {
	URL        string      `json:"url"`
	StatusCode int         `json:"status_code"`
	Header     http.Header `json:"header"`
	Body       []byte      `json:"body"`
	StoredAt   time.Time   `json:"stored_at"`
}

// NewCachedResponse drains resp.Body into a CachedResponse and replaces the
// body so resp can still be returned to the caller.
func NewCachedResponse(url string, resp *http.Response, now time.Time) (*CachedResponse, error) {
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	return &CachedResponse{
		URL:        url,
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       body,
		StoredAt:   now,
	}, nil
}

// Response materializes a fresh *http.Response; every call gets its own body reader
func (c *CachedResponse) Response(req *http.Request) *http.Response {
	header := c.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	header.Set("Content-Length", strconv.Itoa(len(c.Body)))

	return &http.Response{
		Status:        strconv.Itoa(c.StatusCode) + " " + http.StatusText(c.StatusCode),
		StatusCode:    c.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(c.Body)),
		ContentLength: int64(len(c.Body)),
		Request:       req,
	}
}

// OK reports whether the stored status is 2xx
func (c *CachedResponse) OK() bool {
	return c.StatusCode >= 200 && c.StatusCode < 300
}
