// Package storage implements the durable storage manager (spec section 4.6
// / C6), grounded in
// original_source/src/pipeline/storage_manager.py's StorageManager and
// LocalStorageBackend.
package storage

import "context"

// Backend is a pluggable durable byte store. Production code uses
// LocalBackend; pkg/storage/pgindex supplements it with a Postgres-backed
// metadata index rather than replacing the byte store itself, matching the
// original's note that only LocalStorageBackend was ever implemented and
// cloud backends remained a stub.
type Backend interface {
	Write(ctx context.Context, path string, data []byte) error
	Read(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) (bool, error)
	Delete(ctx context.Context, path string) error
	ListFiles(ctx context.Context, prefix string) ([]string, error)
}

// Stats reports raw backend usage, independent of the StoredChunk index
// layered on top of it.
type Stats struct {
	TotalSizeBytes int64
	FileCount      int
}
