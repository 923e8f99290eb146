// Package pgindex implements storage.Index over PostgreSQL, the
// storage.index_backend=postgres alternative from SPEC_FULL.md section 2.2:
// a durable, queryable record of which chunks have been stored where,
// independent of the in-process Manager's own tracking slice, so a second
// orchestrator process (or the control-plane API) can answer "where is
// chunk X" without holding the Manager in memory.
package pgindex

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/cloudmesh/pipeline/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS stored_chunks (
	chunk_id     TEXT PRIMARY KEY,
	storage_path TEXT NOT NULL,
	checksum     TEXT NOT NULL,
	size_bytes   BIGINT NOT NULL,
	stored_at    TIMESTAMPTZ NOT NULL,
	node_id      TEXT NOT NULL,
	provider     TEXT NOT NULL,
	replica_paths JSONB NOT NULL,
	status       TEXT NOT NULL,
	metadata     JSONB
)`

// Index is a Postgres-backed storage.Index.
type Index struct {
	db *sqlx.DB
}

// Open connects to Postgres at dsn and ensures the stored_chunks table
// exists.
func Open(dsn string) (*Index, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres index: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure stored_chunks schema: %w", err)
	}
	return &Index{db: db}, nil
}

// Close releases the underlying connection pool.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// Put upserts one StoredChunk record.
func (idx *Index) Put(ctx context.Context, chunk types.StoredChunk) error {
	replicaPaths, err := json.Marshal(chunk.ReplicaPaths)
	if err != nil {
		return fmt.Errorf("marshal replica paths: %w", err)
	}
	metadata, err := json.Marshal(chunk.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = idx.db.ExecContext(ctx, `
		INSERT INTO stored_chunks
			(chunk_id, storage_path, checksum, size_bytes, stored_at, node_id, provider, replica_paths, status, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (chunk_id) DO UPDATE SET
			storage_path = EXCLUDED.storage_path,
			checksum = EXCLUDED.checksum,
			size_bytes = EXCLUDED.size_bytes,
			stored_at = EXCLUDED.stored_at,
			node_id = EXCLUDED.node_id,
			provider = EXCLUDED.provider,
			replica_paths = EXCLUDED.replica_paths,
			status = EXCLUDED.status,
			metadata = EXCLUDED.metadata`,
		chunk.ChunkID, chunk.StoragePath, chunk.Checksum, chunk.SizeBytes, chunk.StoredAt,
		chunk.NodeID, chunk.Provider, replicaPaths, chunk.Status, metadata,
	)
	if err != nil {
		return fmt.Errorf("upsert stored_chunks: %w", err)
	}
	return nil
}

// row mirrors the stored_chunks table for sqlx scanning.
type row struct {
	ChunkID      string          `db:"chunk_id"`
	StoragePath  string          `db:"storage_path"`
	Checksum     string          `db:"checksum"`
	SizeBytes    int64           `db:"size_bytes"`
	StoredAt     string          `db:"stored_at"`
	NodeID       string          `db:"node_id"`
	Provider     string          `db:"provider"`
	ReplicaPaths json.RawMessage `db:"replica_paths"`
	Status       string          `db:"status"`
	Metadata     json.RawMessage `db:"metadata"`
}

// Get looks a chunk up by ID.
func (idx *Index) Get(ctx context.Context, chunkID string) (types.StoredChunk, bool, error) {
	var r row
	err := idx.db.GetContext(ctx, &r, `SELECT * FROM stored_chunks WHERE chunk_id = $1`, chunkID)
	if err != nil {
		if err.Error() == "sql: no rows in result set" {
			return types.StoredChunk{}, false, nil
		}
		return types.StoredChunk{}, false, fmt.Errorf("get stored_chunk %s: %w", chunkID, err)
	}

	var replicaPaths []string
	json.Unmarshal(r.ReplicaPaths, &replicaPaths)
	var metadata map[string]string
	json.Unmarshal(r.Metadata, &metadata)

	return types.StoredChunk{
		ChunkID:      r.ChunkID,
		StoragePath:  r.StoragePath,
		Checksum:     r.Checksum,
		SizeBytes:    r.SizeBytes,
		NodeID:       r.NodeID,
		Provider:     types.Provider(r.Provider),
		ReplicaPaths: replicaPaths,
		Status:       types.StorageStatus(r.Status),
		Metadata:     metadata,
	}, true, nil
}
