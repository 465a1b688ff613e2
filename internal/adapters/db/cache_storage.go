// internal/adapters/db/cache_storage.go
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Masterminds/squirrel"

	"github.com/ammerola/uniswap-edge/internal/core/domain"
	"github.com/ammerola/uniswap-edge/internal/core/ports"
)

const (
	bucketsTable = "cache_buckets"
	entriesTable = "cache_entries"
)

var entryColumns = []string{"bucket", "url", "status_code", "header", "body", "stored_at"}

// CacheStorage keeps gateway buckets in Postgres. Dropping a bucket row
// cascades to its entries.
type CacheStorage struct {
	db     *sql.DB
	sb     squirrel.StatementBuilderType
	logger *slog.Logger
}

var _ ports.CacheStorage = (*CacheStorage)(nil)

// NewCacheStorage wraps a database/sql handle, usually Database.SQL()
func NewCacheStorage(db *sql.DB, logger *slog.Logger) *CacheStorage {
	return &CacheStorage{
		db:     db,
		sb:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		logger: logger.With(slog.String("component", "postgres_cache_storage")),
	}
}

func (s *CacheStorage) Keys(ctx context.Context) ([]string, error) {
	query, args, err := s.sb.Select("name").From(bucketsTable).OrderBy("name").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list buckets: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan bucket: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list buckets: %w", err)
	}
	return names, nil
}

func (s *CacheStorage) Delete(ctx context.Context, bucket string) (bool, error) {
	query, args, err := s.sb.Delete(bucketsTable).Where(squirrel.Eq{"name": bucket}).ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build query: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to delete bucket",
			slog.String("bucket", bucket),
			slog.String("error", err.Error()))
		return false, fmt.Errorf("failed to delete bucket %s: %w", bucket, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	s.logger.DebugContext(ctx, "bucket deleted", slog.String("bucket", bucket), slog.Bool("existed", n > 0))
	return n > 0, nil
}

func (s *CacheStorage) Put(ctx context.Context, bucket, url string, resp *domain.CachedResponse) error {
	cp := *resp
	cp.URL = url
	return s.PutAll(ctx, bucket, []*domain.CachedResponse{&cp})
}

// PutAll upserts the bucket and all entries in one transaction
func (s *CacheStorage) PutAll(ctx context.Context, bucket string, entries []*domain.CachedResponse) (err error) {
	if len(entries) == 0 {
		return nil
	}

	bucketSQL, bucketArgs, err := s.sb.Insert(bucketsTable).
		Columns("name").
		Values(bucket).
		Suffix("ON CONFLICT (name) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}

	insert := s.sb.Insert(entriesTable).Columns(entryColumns...)
	for _, e := range latestByURL(entries) {
		header, err := json.Marshal(e.Header)
		if err != nil {
			return fmt.Errorf("failed to marshal header for %s: %w", e.URL, err)
		}
		insert = insert.Values(bucket, e.URL, e.StatusCode, header, e.Body, e.StoredAt)
	}
	entrySQL, entryArgs, err := insert.Suffix(
		"ON CONFLICT (bucket, url) DO UPDATE SET " +
			"status_code = EXCLUDED.status_code, header = EXCLUDED.header, " +
			"body = EXCLUDED.body, stored_at = EXCLUDED.stored_at",
	).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.WarnContext(ctx, "rollback failed", slog.String("error", rbErr.Error()))
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, bucketSQL, bucketArgs...); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}
	if _, err = tx.ExecContext(ctx, entrySQL, entryArgs...); err != nil {
		return fmt.Errorf("failed to store entries in %s: %w", bucket, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.DebugContext(ctx, "responses stored",
		slog.String("bucket", bucket),
		slog.Int("count", len(entries)))
	return nil
}

func (s *CacheStorage) Match(ctx context.Context, bucket, url string) (*domain.CachedResponse, error) {
	query, args, err := s.sb.Select("status_code", "header", "body", "stored_at").
		From(entriesTable).
		Where(squirrel.Eq{"bucket": bucket, "url": url}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	resp := &domain.CachedResponse{URL: url}
	var header []byte
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&resp.StatusCode, &header, &resp.Body, &resp.StoredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to match %s in %s: %w", url, bucket, err)
	}

	resp.Header = http.Header{}
	if len(header) > 0 {
		if err := json.Unmarshal(header, &resp.Header); err != nil {
			return nil, fmt.Errorf("failed to unmarshal header: %w", err)
		}
	}
	return resp, nil
}

func (s *CacheStorage) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres ping error: %w", err)
	}
	return nil
}

// latestByURL keeps the last entry per URL; one INSERT cannot upsert a row twice
func latestByURL(entries []*domain.CachedResponse) []*domain.CachedResponse {
	index := make(map[string]int, len(entries))
	out := make([]*domain.CachedResponse, 0, len(entries))
	for _, e := range entries {
		if i, ok := index[e.URL]; ok {
			out[i] = e
			continue
		}
		index[e.URL] = len(out)
		out = append(out, e)
	}
	return out
}
