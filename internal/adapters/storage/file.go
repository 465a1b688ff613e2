// internal/adapters/storage/file.go
package storage

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/natefinch/atomic"

	"github.com/ammerola/uniswap-edge/internal/core/domain"
	"github.com/ammerola/uniswap-edge/internal/core/ports"
)

const itemExt = ".item"

// FileLocalStorage keeps one file per key under dir. Every write replaces
// the whole file through a rename, so readers never see a torn value.
type FileLocalStorage struct {
	mu     sync.Mutex
	dir    string
	quota  int64
	logger *slog.Logger
}

var _ ports.LocalStorage = (*FileLocalStorage)(nil)

// NewFileLocalStorage creates dir if needed; quota <= 0 disables the limit
func NewFileLocalStorage(dir string, quota int64, logger *slog.Logger) (*FileLocalStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir %s: %w", dir, err)
	}
	return &FileLocalStorage{
		dir:    dir,
		quota:  quota,
		logger: logger.With(slog.String("storage", "file"), slog.String("dir", dir)),
	}, nil
}

func (f *FileLocalStorage) path(key string) string {
	return filepath.Join(f.dir, hex.EncodeToString([]byte(key))+itemExt)
}

func (f *FileLocalStorage) GetItem(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

func (f *FileLocalStorage) SetItem(ctx context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.quota > 0 {
		used, err := f.usageExcept(key)
		if err != nil {
			return err
		}
		used += int64(len(key) + len(value))
		if used > f.quota {
			return fmt.Errorf("set %s needs %d of %d bytes: %w", key, used, f.quota, domain.ErrQuotaExceeded)
		}
	}

	if err := atomic.WriteFile(f.path(key), bytes.NewReader(value)); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}

	f.logger.DebugContext(ctx, "item written", slog.String("key", key), slog.Int("size", len(value)))
	return nil
}

func (f *FileLocalStorage) RemoveItem(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.Remove(f.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}

// usageExcept sums key and value bytes of every stored item but skip
func (f *FileLocalStorage) usageExcept(skip string) (int64, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to list storage dir: %w", err)
	}

	var used int64
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, itemExt) {
			continue
		}
		key, err := hex.DecodeString(strings.TrimSuffix(name, itemExt))
		if err != nil || string(key) == skip {
			continue
		}
		info, err := e.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return 0, fmt.Errorf("failed to stat %s: %w", name, err)
		}
		used += int64(len(key)) + info.Size()
	}
	return used, nil
}
