package storage

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalBackend is a Backend over the local filesystem, grounded in
// LocalStorageBackend.
type LocalBackend struct {
	BasePath string
}

// NewLocalBackend constructs a LocalBackend rooted at basePath, creating it
// if it doesn't exist.
func NewLocalBackend(basePath string) (*LocalBackend, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage base path %s: %w", basePath, err)
	}
	return &LocalBackend{BasePath: basePath}, nil
}

func (b *LocalBackend) fullPath(path string) string {
	return filepath.Join(b.BasePath, filepath.FromSlash(path))
}

func (b *LocalBackend) Write(_ context.Context, path string, data []byte) error {
	full := b.fullPath(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (b *LocalBackend) Read(_ context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(b.fullPath(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func (b *LocalBackend) Exists(_ context.Context, path string) (bool, error) {
	_, err := os.Stat(b.fullPath(path))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (b *LocalBackend) Delete(_ context.Context, path string) error {
	err := os.Remove(b.fullPath(path))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

func (b *LocalBackend) ListFiles(_ context.Context, prefix string) ([]string, error) {
	search := b.BasePath
	if prefix != "" {
		search = b.fullPath(prefix)
	}
	if _, err := os.Stat(search); os.IsNotExist(err) {
		return nil, nil
	}

	var out []string
	err := filepath.WalkDir(search, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(b.BasePath, path)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list files under %s: %w", prefix, err)
	}
	return out, nil
}

// DiskUsage walks BasePath and reports total bytes and file count, mirroring
// LocalStorageBackend.get_storage_stats.
func (b *LocalBackend) DiskUsage() (Stats, error) {
	var stats Stats
	err := filepath.WalkDir(b.BasePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		stats.TotalSizeBytes += info.Size()
		stats.FileCount++
		return nil
	})
	if err != nil {
		return Stats{}, fmt.Errorf("disk usage: %w", err)
	}
	return stats, nil
}
