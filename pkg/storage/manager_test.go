package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudmesh/pipeline/pkg/config"
	"github.com/cloudmesh/pipeline/pkg/types"
)

func completedTask(chunkID string, payload []byte) types.DistributionTask {
	return types.DistributionTask{
		TaskID:  "task_" + chunkID,
		ChunkID: chunkID,
		Payload: payload,
		Status:  types.DistributionCompleted,
		Replicas: []types.Replica{
			{ReplicaID: chunkID + "_replica_0", ChunkID: chunkID, TargetNode: "aws-1", Provider: types.ProviderAWS, Status: types.ReplicaCompleted},
		},
	}
}

func newTestManager(t *testing.T, cfg config.StorageConfig) *Manager {
	t.Helper()
	data, err := NewLocalBackend(t.TempDir())
	require.NoError(t, err)
	meta, err := NewLocalBackend(t.TempDir())
	require.NoError(t, err)
	return New(cfg, data, meta, nil, nil, nil)
}

func TestStoreDistributedChunksWritesOnlyCompletedReplicas(t *testing.T) {
	m := newTestManager(t, config.StorageConfig{PartitionBy: "flat", VerifyOnWrite: true})
	payload := []byte("chunk-bytes")
	task := completedTask("c1", payload)

	stored := m.StoreDistributedChunks(context.Background(), []types.DistributionTask{task})
	require.Len(t, stored, 1)
	assert.Equal(t, types.StorageStored, stored[0].Status)

	sum := md5.Sum(payload)
	assert.Equal(t, hex.EncodeToString(sum[:]), stored[0].Checksum)
}

func TestStoreDistributedChunksSkipsNonCompletedTasks(t *testing.T) {
	m := newTestManager(t, config.StorageConfig{PartitionBy: "flat"})
	task := completedTask("c1", []byte("x"))
	task.Status = types.DistributionPartial

	stored := m.StoreDistributedChunks(context.Background(), []types.DistributionTask{task})
	assert.Empty(t, stored)
}

func TestRetrieveChunkRoundTripsStoredBytes(t *testing.T) {
	m := newTestManager(t, config.StorageConfig{PartitionBy: "flat", VerifyOnRead: true})
	payload := []byte("round trip me")
	task := completedTask("c1", payload)

	stored := m.StoreDistributedChunks(context.Background(), []types.DistributionTask{task})
	require.Len(t, stored, 1)

	got, err := m.RetrieveChunk(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestRetrieveChunkUnknownIDErrors(t *testing.T) {
	m := newTestManager(t, config.StorageConfig{PartitionBy: "flat"})
	_, err := m.RetrieveChunk(context.Background(), "missing")
	assert.Error(t, err)
}

func TestIdempotentReStorePreservesChecksum(t *testing.T) {
	m := newTestManager(t, config.StorageConfig{PartitionBy: "flat", VerifyOnWrite: true})
	payload := []byte("same bytes every time")
	task := completedTask("c1", payload)

	first := m.StoreDistributedChunks(context.Background(), []types.DistributionTask{task})
	second := m.StoreDistributedChunks(context.Background(), []types.DistributionTask{task})

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].Checksum, second[0].Checksum)

	got, err := m.RetrieveChunk(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestStatisticsCountsByProvider(t *testing.T) {
	m := newTestManager(t, config.StorageConfig{PartitionBy: "flat"})
	m.StoreDistributedChunks(context.Background(), []types.DistributionTask{
		completedTask("c1", []byte("aaaa")),
	})

	stats := m.Statistics()
	assert.Equal(t, 1, stats.TotalChunks)
	assert.Equal(t, 1, stats.SuccessfulStores)
	assert.Equal(t, int64(4), stats.ByProvider[types.ProviderAWS].SizeBytes)
}
