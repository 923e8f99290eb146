package storage

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cloudmesh/pipeline/pkg/config"
	"github.com/cloudmesh/pipeline/pkg/logging"
	"github.com/cloudmesh/pipeline/pkg/observability"
	"github.com/cloudmesh/pipeline/pkg/types"
)

// Index persists StoredChunk metadata in addition to the in-process
// tracking slice, so a control-plane query or a restarted process can look
// a chunk up without walking the backend. The local in-memory Manager
// always keeps its own copy; Index is an optional side channel for the
// alternative Postgres-backed index in pkg/storage/pgindex (SPEC_FULL.md
// section 2.2's storage.index_backend=postgres).
type Index interface {
	Put(ctx context.Context, chunk types.StoredChunk) error
	Get(ctx context.Context, chunkID string) (types.StoredChunk, bool, error)
}

// Manager stores distributed chunk replicas durably, verifying integrity,
// checkpointing periodically, and cleaning up data past its retention
// window (spec section 4.6, grounded in StorageManager).
type Manager struct {
	cfg      config.StorageConfig
	backend  Backend
	metadata Backend
	index    Index
	logger   *logging.Logger
	events   *observability.Bus

	mu          sync.Mutex
	stored      []types.StoredChunk
	checkpoints []types.Checkpoint
}

// New constructs a Manager. metadata stores per-chunk sidecar JSON and
// checkpoint snapshots, separately from the chunk-data backend, mirroring
// the original's separate self.metadata_path. index may be nil, meaning no
// side index is maintained beyond the in-process slice.
func New(cfg config.StorageConfig, backend, metadata Backend, index Index, logger *logging.Logger, events *observability.Bus) *Manager {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Manager{cfg: cfg, backend: backend, metadata: metadata, index: index, logger: logger, events: events}
}

// StoreDistributedChunks is the manager's main entry point: it writes every
// COMPLETED replica of every COMPLETED distribution task, verifying and
// recording metadata per configuration, then checkpoints and runs cleanup
// if configured (spec section 4.6, grounded in store_distributed_chunks).
func (m *Manager) StoreDistributedChunks(ctx context.Context, tasks []types.DistributionTask) []types.StoredChunk {
	type job struct {
		task    types.DistributionTask
		replica types.Replica
	}

	var jobs []job
	for _, task := range tasks {
		if task.Status != types.DistributionCompleted {
			continue
		}
		for _, r := range task.Replicas {
			if r.Status == types.ReplicaCompleted {
				jobs = append(jobs, job{task: task, replica: r})
			}
		}
	}

	maxConcurrent := m.cfg.MaxConcurrentWrites
	if maxConcurrent <= 0 {
		maxConcurrent = 20
	}
	sem := make(chan struct{}, maxConcurrent)

	results := make([]types.StoredChunk, len(jobs))
	var wg sync.WaitGroup
	for i, j := range jobs {
		sem <- struct{}{}
		wg.Add(1)
		go func(i int, j job) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = m.storeReplica(ctx, j.task, j.replica)
		}(i, j)
	}
	wg.Wait()

	m.mu.Lock()
	m.stored = append(m.stored, results...)
	shouldCheckpoint := m.cfg.CreateCheckpoints && m.cfg.CheckpointInterval > 0 && len(m.stored)%m.cfg.CheckpointInterval == 0
	m.mu.Unlock()

	if shouldCheckpoint {
		if _, err := m.createCheckpoint(ctx); err != nil {
			m.logger.Error("checkpoint failed", "error", err)
		}
	}
	if m.cfg.EnableAutoCleanup {
		m.runCleanup(ctx)
	}

	return results
}

func (m *Manager) storeReplica(ctx context.Context, task types.DistributionTask, replica types.Replica) types.StoredChunk {
	path := GeneratePath(PartitionStrategy(m.cfg.PartitionBy), replica, time.Now())
	checksum := m.checksum(task.Payload)

	if err := m.backend.Write(ctx, path, task.Payload); err != nil {
		return m.failedChunk(replica, err)
	}

	if m.cfg.VerifyOnWrite {
		if err := m.verifyStored(ctx, path, task.Payload, checksum); err != nil {
			return m.failedChunk(replica, err)
		}
	}

	chunk := types.StoredChunk{
		ChunkID:      replica.ChunkID,
		StoragePath:  path,
		Checksum:     checksum,
		SizeBytes:    int64(len(task.Payload)),
		StoredAt:     time.Now(),
		NodeID:       replica.TargetNode,
		Provider:     replica.Provider,
		ReplicaPaths: []string{path},
		Status:       types.StorageStored,
		Metadata: map[string]string{
			"replica_id":   replica.ReplicaID,
			"source_task":  task.TaskID,
		},
	}

	if m.cfg.StoreMetadata {
		if err := m.storeMetadataSidecar(ctx, chunk); err != nil {
			m.logger.Warn("metadata sidecar write failed", "chunk_id", chunk.ChunkID, "error", err)
		}
	}
	if m.index != nil {
		if err := m.index.Put(ctx, chunk); err != nil {
			m.logger.Warn("index put failed", "chunk_id", chunk.ChunkID, "error", err)
		}
	}

	m.publish(chunk.ChunkID, "chunk_stored", "")
	return chunk
}

func (m *Manager) failedChunk(replica types.Replica, cause error) types.StoredChunk {
	m.logger.Error("storage failed", "replica_id", replica.ReplicaID, "error", cause)
	m.publish(replica.ChunkID, "chunk_store_failed", cause.Error())
	return types.StoredChunk{
		ChunkID:  replica.ChunkID,
		NodeID:   replica.TargetNode,
		Provider: replica.Provider,
		Status:   types.StorageFailed,
		StoredAt: time.Now(),
		Metadata: map[string]string{"error": cause.Error()},
	}
}

func (m *Manager) checksum(data []byte) string {
	if m.cfg.ChecksumAlgorithm == "sha256" {
		sum := sha256.Sum256(data)
		return hex.EncodeToString(sum[:])
	}
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

func (m *Manager) verifyStored(ctx context.Context, path string, original []byte, expected string) error {
	stored, err := m.backend.Read(ctx, path)
	if err != nil {
		return fmt.Errorf("verify read: %w", err)
	}
	if m.checksum(stored) != expected {
		return fmt.Errorf("checksum mismatch: expected %s", expected)
	}
	if !bytesEqual(stored, original) {
		return fmt.Errorf("data mismatch after storage")
	}
	return nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (m *Manager) storeMetadataSidecar(ctx context.Context, chunk types.StoredChunk) error {
	data, err := json.MarshalIndent(chunk, "", "  ")
	if err != nil {
		return err
	}
	return m.metadata.Write(ctx, fmt.Sprintf("%s.json", chunk.ChunkID), data)
}

// RetrieveChunk looks a chunk up by ID and reads it back, verifying
// integrity on read when configured (spec section 4.6, grounded in
// retrieve_chunk).
func (m *Manager) RetrieveChunk(ctx context.Context, chunkID string) ([]byte, error) {
	m.mu.Lock()
	var found *types.StoredChunk
	for i := range m.stored {
		if m.stored[i].ChunkID == chunkID && m.stored[i].Status == types.StorageStored {
			found = &m.stored[i]
			break
		}
	}
	m.mu.Unlock()

	if found == nil {
		return nil, fmt.Errorf("chunk not found: %s", chunkID)
	}

	data, err := m.backend.Read(ctx, found.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("retrieve %s: %w", chunkID, err)
	}

	if m.cfg.VerifyOnRead && m.checksum(data) != found.Checksum {
		return nil, fmt.Errorf("checksum mismatch on read: %s", chunkID)
	}
	return data, nil
}

func (m *Manager) createCheckpoint(ctx context.Context) (types.Checkpoint, error) {
	m.mu.Lock()
	var totalBytes int64
	ids := make([]string, 0, len(m.stored))
	for _, c := range m.stored {
		totalBytes += c.SizeBytes
		ids = append(ids, c.ChunkID)
	}
	checkpoint := types.Checkpoint{
		CheckpointID: fmt.Sprintf("checkpoint_%s_%s", time.Now().Format("20060102_150405"), uuid.NewString()),
		Timestamp:    time.Now(),
		Count:        len(m.stored),
		TotalBytes:   totalBytes,
		ChunkIDs:     ids,
	}
	m.checkpoints = append(m.checkpoints, checkpoint)
	m.mu.Unlock()

	data, err := json.MarshalIndent(checkpoint, "", "  ")
	if err != nil {
		return checkpoint, err
	}
	if err := m.metadata.Write(ctx, fmt.Sprintf("%s.json", checkpoint.CheckpointID), data); err != nil {
		return checkpoint, fmt.Errorf("write checkpoint: %w", err)
	}

	m.logger.Info("checkpoint created", "checkpoint_id", checkpoint.CheckpointID, "chunks_stored", checkpoint.Count)
	return checkpoint, nil
}

// runCleanup deletes chunks stored past RetentionDays, mirroring
// _run_cleanup.
func (m *Manager) runCleanup(ctx context.Context) {
	if m.cfg.RetentionDays <= 0 {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -m.cfg.RetentionDays)

	m.mu.Lock()
	var toDelete []types.StoredChunk
	var keep []types.StoredChunk
	for _, c := range m.stored {
		if c.StoredAt.Before(cutoff) {
			toDelete = append(toDelete, c)
		} else {
			keep = append(keep, c)
		}
	}
	m.mu.Unlock()

	if len(toDelete) == 0 {
		return
	}

	for _, c := range toDelete {
		if err := m.backend.Delete(ctx, c.StoragePath); err != nil {
			m.logger.Warn("cleanup delete failed", "chunk_id", c.ChunkID, "error", err)
			keep = append(keep, c)
		}
	}

	m.mu.Lock()
	m.stored = keep
	m.mu.Unlock()

	m.logger.Info("cleanup complete", "deleted", len(toDelete))
}

func (m *Manager) publish(chunkID, kind, message string) {
	if m.events == nil {
		return
	}
	m.events.Publish(observability.StageEvent{Stage: "storage", Kind: kind, ChunkID: chunkID, Message: message})
}

// Statistics computes spec section 3.1's storage metrics, grounded in
// get_storage_statistics.
func (m *Manager) Statistics() types.StorageStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := types.StorageStats{
		CheckpointsMade: len(m.checkpoints),
		ByProvider:      make(map[types.Provider]types.ProviderStorageStats),
	}
	for _, c := range m.stored {
		stats.TotalChunks++
		stats.TotalBytes += c.SizeBytes
		if c.Status == types.StorageStored {
			stats.SuccessfulStores++
		} else {
			stats.FailedStores++
		}
		entry := stats.ByProvider[c.Provider]
		entry.Count++
		entry.SizeBytes += c.SizeBytes
		stats.ByProvider[c.Provider] = entry
	}
	return stats
}
