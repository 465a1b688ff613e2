// internal/core/services/gateway_live.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ammerola/uniswap-edge/internal/core/domain"
	"github.com/ammerola/uniswap-edge/internal/core/ports"
)

const liveRecordKey = "versions"

type liveRecord struct {
	Versions []string `json:"versions"`
}

// PublishLiveVersions replaces the live-version record in caches. Maintenance
// jobs sharing the storage read it to know which buckets are in use.
func PublishLiveVersions(ctx context.Context, caches ports.CacheStorage, cfg GatewayConfig, versions []string) error {
	body, err := json.Marshal(liveRecord{Versions: versions})
	if err != nil {
		return fmt.Errorf("marshal live versions: %w", err)
	}

	entry := &domain.CachedResponse{
		URL:        liveRecordKey,
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       body,
		StoredAt:   time.Now(),
	}
	if err := caches.Put(ctx, cfg.LiveBucket(), liveRecordKey, entry); err != nil {
		return fmt.Errorf("publish live versions: %w", err)
	}
	return nil
}

// LiveVersions reads the published live versions. A missing record yields nil.
func LiveVersions(ctx context.Context, caches ports.CacheStorage, cfg GatewayConfig) ([]string, error) {
	entry, err := caches.Match(ctx, cfg.LiveBucket(), liveRecordKey)
	if errors.Is(err, domain.ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read live versions: %w", err)
	}

	var rec liveRecord
	if err := json.Unmarshal(entry.Body, &rec); err != nil {
		return nil, fmt.Errorf("decode live versions: %w", err)
	}
	return rec.Versions, nil
}

// LiveBuckets lists every bucket that must survive a sweep: the configured
// version's, those of each published live version, and the record itself.
func LiveBuckets(ctx context.Context, caches ports.CacheStorage, cfg GatewayConfig) ([]string, error) {
	versions, err := LiveVersions(ctx, caches, cfg)
	if err != nil {
		return nil, err
	}

	keep := append(cfg.Buckets(), cfg.LiveBucket())
	for _, v := range versions {
		if v == cfg.Version {
			continue
		}
		keep = append(keep, cfg.WithVersion(v).Buckets()...)
	}
	return keep, nil
}
