package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudmesh/pipeline/pkg/config"
	"github.com/cloudmesh/pipeline/pkg/distribution"
	"github.com/cloudmesh/pipeline/pkg/ingestion"
	"github.com/cloudmesh/pipeline/pkg/ingestion/source"
	"github.com/cloudmesh/pipeline/pkg/registry"
	"github.com/cloudmesh/pipeline/pkg/scheduler"
	"github.com/cloudmesh/pipeline/pkg/storage"
	"github.com/cloudmesh/pipeline/pkg/transport"
	"github.com/cloudmesh/pipeline/pkg/types"
)

type alwaysHealthyChecker struct{}

func (alwaysHealthyChecker) CheckHealth(ctx context.Context, endpoint string, timeout time.Duration) error {
	return nil
}

func fourNodes() []types.Node {
	return []types.Node{
		{NodeID: "aws-1", Provider: types.ProviderAWS, Endpoint: "http://aws-1", Status: types.NodeHealthy},
		{NodeID: "aws-2", Provider: types.ProviderAWS, Endpoint: "http://aws-2", Status: types.NodeHealthy},
		{NodeID: "gcp-1", Provider: types.ProviderGCP, Endpoint: "http://gcp-1", Status: types.NodeHealthy},
		{NodeID: "gcp-2", Provider: types.ProviderGCP, Endpoint: "http://gcp-2", Status: types.NodeHealthy},
	}
}

func echoHandler(ctx context.Context, msg types.Message) (map[string]any, error) { return nil, nil }

// buildOrchestrator wires every real stage component together (simulated
// transport and local-filesystem storage in place of the network and disk),
// mirroring cmd/pipelined/wire.go's construction order.
func buildOrchestrator(t *testing.T, nodes []types.Node) (*Orchestrator, *registry.Registry) {
	t.Helper()

	reg := registry.New(0, registry.WithHealthChecker(alwaysHealthyChecker{}))
	for _, n := range nodes {
		reg.Register(n)
	}

	eng := ingestion.New(ingestion.Config{ChunkSizeBytes: 100 * 1024 * 1024, RetryAttempts: 1, Provider: types.ProviderLocal}, nil, nil, nil)

	pool := scheduler.New(scheduler.Config{Steps: []scheduler.Step{scheduler.ValidateStep{}, scheduler.TransformStep{}}}, nil, nil)

	sim := transport.NewSimulated()
	for _, n := range nodes {
		sim.RegisterHandler(n.NodeID, types.MessageReplicaTransfer, echoHandler)
	}
	strategy := distribution.NewPlacementStrategy(config.PlacementConfig{PreferSameCloud: true, CrossCloudThreshold: 0.7, FallbackToAnyNode: true})
	topology := distribution.NewNetworkTopology(config.NetworkConfig{})
	coord := distribution.New(distribution.Config{ReplicationFactor: 3, MinReplicasSuccess: 2}, strategy, topology, sim, nil, nil)

	dataRoot := filepath.Join(t.TempDir(), "data")
	metaRoot := filepath.Join(t.TempDir(), "meta")
	dataBackend, err := storage.NewLocalBackend(dataRoot)
	require.NoError(t, err)
	metaBackend, err := storage.NewLocalBackend(metaRoot)
	require.NoError(t, err)
	mgr := storage.New(config.StorageConfig{PartitionBy: "flat", VerifyOnWrite: true}, dataBackend, metaBackend, nil, nil, nil)

	return New(reg, eng, pool, coord, mgr, nil, nil), reg
}

func writeSourceFile(t *testing.T, content []byte) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "object.bin"), content, 0o644))
	return dir
}

func TestRunBatchHappyPath(t *testing.T) {
	orch, _ := buildOrchestrator(t, fourNodes())
	dir := writeSourceFile(t, make([]byte, 80*1024))

	runID := RunID("batch_001", time.Unix(0, 1))
	result := orch.RunBatch(context.Background(), source.NewLocal(dir), BatchConfig{BatchID: "batch_001", DataSource: dir}, runID)

	require.Equal(t, types.BatchCompleted, result.Status)
	assert.Equal(t, runID, result.RunID)
	assert.Equal(t, 1, result.ChunksProcessed)
	require.Len(t, result.MetricsByStage, 4)
	for _, m := range result.MetricsByStage {
		assert.NotEmpty(t, m.Stage)
	}
	assert.GreaterOrEqual(t, result.DistributionStats.CompletedTasks, 1)
	assert.GreaterOrEqual(t, result.StorageStats.SuccessfulStores, 2)
}

func TestRunBatchNodeFailureMidBatchAvoidsUnhealthyNode(t *testing.T) {
	nodes := fourNodes()
	orch, reg := buildOrchestrator(t, nodes)
	dir := writeSourceFile(t, make([]byte, 80*1024))

	before := orch.HealthyNodeCount()
	reg.Register(types.Node{NodeID: "aws-2", Provider: types.ProviderAWS, Endpoint: "http://aws-2", Status: types.NodeFailed})
	after := orch.HealthyNodeCount()
	assert.Equal(t, before-1, after)

	runID := RunID("batch_002", time.Unix(0, 2))
	result := orch.RunBatch(context.Background(), source.NewLocal(dir), BatchConfig{BatchID: "batch_002", DataSource: dir}, runID)

	require.Equal(t, types.BatchCompleted, result.Status)
}

func TestRunBatchFailsFatallyWithNoHealthyNodes(t *testing.T) {
	orch, _ := buildOrchestrator(t, nil)
	dir := writeSourceFile(t, []byte("data"))

	runID := RunID("batch_003", time.Unix(0, 3))
	result := orch.RunBatch(context.Background(), source.NewLocal(dir), BatchConfig{BatchID: "batch_003", DataSource: dir}, runID)

	require.Equal(t, types.BatchFailed, result.Status)
	assert.NotEmpty(t, result.Error)
	require.Len(t, result.MetricsByStage, 1, "ingestion metrics must survive even though the batch failed before processing")
}

func TestRunBatchEmptySourceSucceedsTrivially(t *testing.T) {
	orch, _ := buildOrchestrator(t, fourNodes())
	dir := t.TempDir()

	runID := RunID("batch_004", time.Unix(0, 4))
	result := orch.RunBatch(context.Background(), source.NewLocal(dir), BatchConfig{BatchID: "batch_004", DataSource: dir}, runID)

	require.Equal(t, types.BatchCompleted, result.Status)
	assert.Equal(t, 0, result.ChunksProcessed)
}

func TestRunIDFormat(t *testing.T) {
	at := time.Unix(1000, 0)
	assert.Equal(t, "batch_001_1000000000000", RunID("batch_001", at))
}

func TestStatusReflectsRunningDuringBatch(t *testing.T) {
	orch, _ := buildOrchestrator(t, fourNodes())
	assert.False(t, orch.Running())

	status, _, _, _ := orch.Status()
	assert.Equal(t, types.BatchIdle, status)
}
