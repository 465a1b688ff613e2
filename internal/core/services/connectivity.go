// internal/core/services/connectivity.go
package services

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Monitor tracks whether the backend is reachable and fires onOnline when
// it comes back after an outage.
type Monitor struct {
	client   *http.Client
	probeURL string
	interval time.Duration
	onOnline func(context.Context) error
	logger   *slog.Logger

	online atomic.Bool
}

func NewMonitor(client *http.Client, probeURL string, interval time.Duration, onOnline func(context.Context) error, logger *slog.Logger) *Monitor {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	m := &Monitor{
		client:   client,
		probeURL: probeURL,
		interval: interval,
		onOnline: onOnline,
		logger:   logger.With(slog.String("service", "connectivity")),
	}
	m.online.Store(true)
	return m
}

// Online reports the last observed state
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// Check probes once. Any HTTP response counts as online.
func (m *Monitor) Check(ctx context.Context) bool {
	now := m.probe(ctx)
	was := m.online.Swap(now)

	switch {
	case was && !now:
		m.logger.WarnContext(ctx, "backend unreachable", slog.String("url", m.probeURL))
	case !was && now:
		m.logger.InfoContext(ctx, "backend reachable again")
		if m.onOnline != nil {
			if err := m.onOnline(ctx); err != nil {
				m.logger.WarnContext(ctx, "reconnect revalidation failed", slog.String("error", err.Error()))
			}
		}
	}
	return now
}

// Run probes until ctx is done. While offline it probes more often,
// backing off toward the normal interval.
func (m *Monitor) Run(ctx context.Context) error {
	offline := backoff.NewExponentialBackOff()
	offline.InitialInterval = m.interval / 8
	offline.MaxInterval = m.interval
	offline.MaxElapsedTime = 0

	timer := time.NewTimer(m.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		wait := m.interval
		if m.Check(ctx) {
			offline.Reset()
		} else {
			wait = offline.NextBackOff()
		}
		timer.Reset(wait)
	}
}

func (m *Monitor) probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.probeURL, nil)
	if err != nil {
		return false
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}
