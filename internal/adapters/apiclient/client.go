// internal/adapters/apiclient/client.go
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ammerola/uniswap-edge/internal/core/domain"
	"github.com/ammerola/uniswap-edge/internal/core/ports"
)

// Config holds client configuration
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// TokenSource supplies the bearer token for each request
type TokenSource interface {
	Token() string
}

// Client talks to the storefront backend. Responses wrapped in the
// {errorCode, errorMsg, data} envelope are unwrapped; anything else is
// decoded as-is.
type Client struct {
	baseURL        string
	http           *http.Client
	tokens         TokenSource
	onUnauthorized func(context.Context) error
	userAgent      string
	logger         *slog.Logger
}

var _ ports.APIClient = (*Client)(nil)

type envelope struct {
	ErrorCode *int            `json:"errorCode"`
	ErrorMsg  string          `json:"errorMsg"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
}

// NewClient creates a backend client. tokens and onUnauthorized may be nil.
func NewClient(cfg Config, httpClient *http.Client, tokens TokenSource, onUnauthorized func(context.Context) error, logger *slog.Logger) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", cfg.BaseURL)
	}

	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "uniswap-edge"
	}

	return &Client{
		baseURL:        strings.TrimRight(base.String(), "/"),
		http:           httpClient,
		tokens:         tokens,
		onUnauthorized: onUnauthorized,
		userAgent:      userAgent,
		logger:         logger.With(slog.String("component", "api_client")),
	}, nil
}

// Get issues a GET and decodes the payload into out
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Post issues a POST with a JSON body and decodes the payload into out
func (c *Client) Post(ctx context.Context, path string, body any, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	target := c.baseURL + path

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request for %s: %w", path, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build request for %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "request failed",
			slog.String("method", method),
			slog.String("url", path),
			slog.String("error", err.Error()))
		return &domain.NetworkError{URL: path, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.NetworkError{URL: path, Err: fmt.Errorf("read body: %w", err)}
	}

	c.logger.DebugContext(ctx, "request completed",
		slog.String("method", method),
		slog.String("url", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)))

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		c.unauthorized(ctx)
		return &domain.APIError{Status: resp.StatusCode, Message: errorMessage(raw, resp.StatusCode)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &domain.APIError{Status: resp.StatusCode, Message: errorMessage(raw, resp.StatusCode)}
	}

	payload, err := unwrap(raw, resp.StatusCode)
	if err != nil {
		return err
	}
	if out == nil || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode response from %s: %w", path, err)
	}
	return nil
}

func (c *Client) unauthorized(ctx context.Context) {
	c.logger.WarnContext(ctx, "session expired, logging out")
	if c.onUnauthorized == nil {
		return
	}
	if err := c.onUnauthorized(ctx); err != nil {
		c.logger.ErrorContext(ctx, "logout after 401 failed", slog.String("error", err.Error()))
	}
}

// unwrap returns the data member of an envelope, or raw when the body is
// not an envelope
func unwrap(raw []byte, status int) ([]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed, nil
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil || env.ErrorCode == nil {
		return trimmed, nil
	}

	if *env.ErrorCode != 0 {
		msg := env.ErrorMsg
		if msg == "" {
			msg = "request failed"
		}
		return nil, &domain.APIError{Status: status, Code: *env.ErrorCode, Message: msg}
	}

	if env.Data == nil {
		return trimmed, nil
	}
	return env.Data, nil
}

func errorMessage(raw []byte, status int) string {
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil {
		if env.ErrorMsg != "" {
			return env.ErrorMsg
		}
		if env.Message != "" {
			return env.Message
		}
	}
	return fmt.Sprintf("request failed: %d", status)
}

// IsUnauthorized reports whether err came from a 401 response
func IsUnauthorized(err error) bool {
	return errors.Is(err, domain.ErrUnauthorized)
}
