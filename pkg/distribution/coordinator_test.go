package distribution

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudmesh/pipeline/pkg/config"
	"github.com/cloudmesh/pipeline/pkg/transport"
	"github.com/cloudmesh/pipeline/pkg/types"
)

func echoHandler(ctx context.Context, msg types.Message) (map[string]any, error) {
	return nil, nil
}

func newTestCoordinator(t *testing.T, cfg Config, sim *transport.Simulated, nodes []types.Node) *Coordinator {
	t.Helper()
	for _, n := range nodes {
		sim.RegisterHandler(n.NodeID, types.MessageReplicaTransfer, echoHandler)
	}
	strategy := NetworkAwarePlacement{PreferSameCloud: true, CrossCloudThreshold: 0.7, FallbackToAnyNode: true}
	topology := NewNetworkTopology(config.NetworkConfig{})
	return New(cfg, strategy, topology, sim, nil, nil)
}

func TestDistributeCompletesWhenAllReplicasSucceed(t *testing.T) {
	sim := transport.NewSimulated()
	nodes := fourNodeCluster()
	coord := newTestCoordinator(t, Config{ReplicationFactor: 3, MinReplicasSuccess: 2}, sim, nodes)

	chunks := []processedChunk{{ChunkID: "c1", Payload: []byte("hello"), AssignedNode: "aws-1"}}
	tasks := coord.Distribute(context.Background(), chunks, nodes)

	require.Len(t, tasks, 1)
	assert.Equal(t, types.DistributionCompleted, tasks[0].Status)
	assert.GreaterOrEqual(t, tasks[0].SuccessfulReplicas(), 2)
}

func TestDistributeNoDuplicateTargetsAndExcludesSourceNode(t *testing.T) {
	sim := transport.NewSimulated()
	nodes := fourNodeCluster()
	coord := newTestCoordinator(t, Config{ReplicationFactor: 3, MinReplicasSuccess: 2}, sim, nodes)

	chunks := []processedChunk{{ChunkID: "c1", Payload: []byte("hello"), AssignedNode: "aws-1"}}
	tasks := coord.Distribute(context.Background(), chunks, nodes)

	require.Len(t, tasks, 1)
	seen := make(map[string]bool)
	for _, target := range tasks[0].Targets {
		assert.NotEqual(t, "aws-1", target)
		assert.False(t, seen[target])
		seen[target] = true
	}
}

func TestDistributePartialWhenBelowMinReplicasSuccess(t *testing.T) {
	sim := transport.NewSimulated()
	nodes := fourNodeCluster()
	for _, n := range nodes {
		sim.RegisterHandler(n.NodeID, types.MessageReplicaTransfer, echoHandler)
	}
	sim.SetSendError("aws-2", assert.AnError)
	sim.SetSendError("gcp-1", assert.AnError)

	strategy := NetworkAwarePlacement{PreferSameCloud: true, CrossCloudThreshold: 0.7, FallbackToAnyNode: true}
	coord := New(Config{ReplicationFactor: 3, MinReplicasSuccess: 3, MaxRetries: 1, RetryDelay: time.Millisecond},
		strategy, NewNetworkTopology(config.NetworkConfig{}), sim, nil, nil)

	chunks := []processedChunk{{ChunkID: "c1", Payload: []byte("hello"), AssignedNode: "aws-1"}}
	tasks := coord.Distribute(context.Background(), chunks, nodes)

	require.Len(t, tasks, 1)
	assert.NotEqual(t, types.DistributionCompleted, tasks[0].Status)
}

func TestFromProcessingTasksDropsNilPayloads(t *testing.T) {
	tasks := []types.ProcessingTask{
		{ChunkID: "c1", Status: types.ProcessingCompleted, PayloadOut: []byte("ok"), AssignedNode: "n1"},
		{ChunkID: "c2", Status: types.ProcessingCompleted, PayloadOut: nil, AssignedNode: "n2"},
	}
	chunks := FromProcessingTasks(tasks)
	require.Len(t, chunks, 1)
	assert.Equal(t, "c1", chunks[0].ChunkID)
}
