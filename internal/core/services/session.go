// internal/core/services/session.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"

	"github.com/ammerola/uniswap-edge/internal/core/domain"
	"github.com/ammerola/uniswap-edge/internal/core/ports"
)

const (
	SessionTokenKey = "token"
	SessionUserKey  = "user"
)

var bearerPrefix = regexp.MustCompile(`(?i)^Bearer\s+`)

// NormalizeToken strips a leading "Bearer " some login responses include
func NormalizeToken(token string) string {
	return bearerPrefix.ReplaceAllString(token, "")
}

// Session holds the signed-in token and user, persisted in LocalStorage
type Session struct {
	storage ports.LocalStorage
	logger  *slog.Logger

	mu    sync.RWMutex
	token string
	user  *domain.User
	hooks []func(context.Context)
}

func NewSession(storage ports.LocalStorage, logger *slog.Logger) *Session {
	return &Session{
		storage: storage,
		logger:  logger.With(slog.String("service", "session")),
	}
}

// Restore loads a previously persisted session. An unreadable user record
// is treated as absent.
func (s *Session) Restore(ctx context.Context) error {
	rawToken, err := s.storage.GetItem(ctx, SessionTokenKey)
	if err != nil {
		return fmt.Errorf("restore token: %w", err)
	}
	rawUser, err := s.storage.GetItem(ctx, SessionUserKey)
	if err != nil {
		return fmt.Errorf("restore user: %w", err)
	}

	var user *domain.User
	if len(rawUser) > 0 {
		user = &domain.User{}
		if err := json.Unmarshal(rawUser, user); err != nil {
			s.logger.WarnContext(ctx, "discarding unreadable user record", slog.String("error", err.Error()))
			user = nil
		}
	}

	s.mu.Lock()
	s.token = NormalizeToken(string(rawToken))
	s.user = user
	s.mu.Unlock()
	return nil
}

// Login stores the token and user. An empty token clears the stored one.
func (s *Session) Login(ctx context.Context, token string, user *domain.User) error {
	token = NormalizeToken(token)

	if token == "" {
		if err := s.storage.RemoveItem(ctx, SessionTokenKey); err != nil {
			return fmt.Errorf("clear token: %w", err)
		}
	} else if err := s.storage.SetItem(ctx, SessionTokenKey, []byte(token)); err != nil {
		return fmt.Errorf("store token: %w", err)
	}

	if user != nil {
		raw, err := json.Marshal(user)
		if err != nil {
			return fmt.Errorf("encode user: %w", err)
		}
		if err := s.storage.SetItem(ctx, SessionUserKey, raw); err != nil {
			return fmt.Errorf("store user: %w", err)
		}
	}

	s.mu.Lock()
	s.token = token
	if user != nil {
		u := *user
		s.user = &u
	}
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "session started")
	return nil
}

// Token returns the raw token without any scheme prefix
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) User() *domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *Session) IsAuthenticated() bool {
	return s.Token() != ""
}

// OnLogout registers a teardown hook run on every Logout
func (s *Session) OnLogout(fn func(context.Context)) {
	s.mu.Lock()
	s.hooks = append(s.hooks, fn)
	s.mu.Unlock()
}

// Logout forgets the credentials and runs the teardown hooks. Hooks run
// even when removing the persisted values fails.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.token = ""
	s.user = nil
	hooks := append([]func(context.Context){}, s.hooks...)
	s.mu.Unlock()

	err := errors.Join(
		s.storage.RemoveItem(ctx, SessionTokenKey),
		s.storage.RemoveItem(ctx, SessionUserKey),
	)

	for _, h := range hooks {
		h(ctx)
	}

	s.logger.InfoContext(ctx, "session ended")
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}
