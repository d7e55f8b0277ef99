// Package localfs — AssetStore на локальной файловой системе.
// Каталог не публикуется как статика: файлы читаются только через Get.
package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/GoArmGo/ProofGallery/internal/domain"
)

type Store struct {
	root   string
	logger *slog.Logger
}

// New создаёт корневой каталог при необходимости
func New(root string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать каталог хранилища %s: %w", root, err)
	}
	logger.Info("local asset store ready", "root", root)
	return &Store{root: root, logger: logger}, nil
}

func (s *Store) path(key string) (string, error) {
	if key == "" || !filepath.IsLocal(filepath.FromSlash(key)) {
		return "", fmt.Errorf("%w: invalid asset key %q", domain.ErrValidation, key)
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

// Put пишет во временный файл и переименовывает, чтобы читатель не увидел недописанный объект
func (s *Store) Put(ctx context.Context, key string, body io.Reader, contentType string) error {
	start := time.Now()

	dst, err := s.path(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return fmt.Errorf("mkdir for %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".put-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", key, err)
	}
	tmpName := tmp.Name()

	written, err := io.Copy(tmp, body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpName)
		s.logger.Error("failed to write asset", "key", key, "error", err)
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", key, err)
	}

	s.logger.Debug("asset stored",
		"key", key,
		"content_type", contentType,
		"bytes", written,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: asset %s", domain.ErrNotFound, key)
		}
		return nil, fmt.Errorf("open %s: %w", key, err)
	}
	return f, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}
