package ingestion

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudmesh/pipeline/pkg/transport"
	"github.com/cloudmesh/pipeline/pkg/types"
)

// recordingHandler counts data_chunk deliveries per node under a mutex.
type recordingHandler struct {
	mu       sync.Mutex
	received map[string]int
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{received: make(map[string]int)}
}

func (r *recordingHandler) handle(nodeID string) transport.Handler {
	return func(ctx context.Context, msg types.Message) (map[string]any, error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.received[nodeID]++
		return nil, nil
	}
}

func twoNodes() []types.Node {
	return []types.Node{
		{NodeID: "n1", Provider: types.ProviderAWS, Endpoint: "http://n1", Status: types.NodeHealthy},
		{NodeID: "n2", Provider: types.ProviderAWS, Endpoint: "http://n2", Status: types.NodeHealthy},
	}
}

func TestIngestAllFansOutChunksRoundRobinAcrossNodes(t *testing.T) {
	sim := transport.NewSimulated()
	rec := newRecordingHandler()
	nodes := twoNodes()
	for _, n := range nodes {
		sim.RegisterHandler(n.NodeID, types.MessageDataChunk, rec.handle(n.NodeID))
	}

	eng := New(Config{ChunkSizeBytes: 10, RetryAttempts: 1, Provider: types.ProviderLocal}, sim, nil, nil)
	src := &multiObjectSource{good: []string{"a.bin", "b.bin", "c.bin", "d.bin"}}

	chunks, err := eng.IngestAll(context.Background(), src, nodes)
	require.NoError(t, err)
	require.Len(t, chunks, 4)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, 2, rec.received["n1"])
	assert.Equal(t, 2, rec.received["n2"])
}

func TestIngestAllFanOutSkippedWhenNoNodesAvailable(t *testing.T) {
	sim := transport.NewSimulated()
	eng := New(Config{ChunkSizeBytes: 10, RetryAttempts: 1, Provider: types.ProviderLocal}, sim, nil, nil)
	src := &multiObjectSource{good: []string{"a.bin"}}

	chunks, err := eng.IngestAll(context.Background(), src, nil)
	require.NoError(t, err)
	require.Len(t, chunks, 1, "chunking still happens even when there is nowhere to fan out to")
}

func TestIngestAllFanOutSkippedWhenNoTransportConfigured(t *testing.T) {
	eng := New(Config{ChunkSizeBytes: 10, RetryAttempts: 1, Provider: types.ProviderLocal}, nil, nil, nil)
	src := &multiObjectSource{good: []string{"a.bin"}}

	chunks, err := eng.IngestAll(context.Background(), src, twoNodes())
	require.NoError(t, err)
	require.Len(t, chunks, 1)
}

func TestSendChunkWithRetryRetriesThenSucceeds(t *testing.T) {
	sim := transport.NewSimulated()
	attempts := 0
	failOnce := true
	mu := sync.Mutex{}
	sim.RegisterHandler("n1", types.MessageDataChunk, func(ctx context.Context, msg types.Message) (map[string]any, error) {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if failOnce {
			failOnce = false
			return nil, assertHandlerErr
		}
		return nil, nil
	})

	eng := New(Config{ChunkSizeBytes: 10, RetryAttempts: 3, RetryDelay: time.Millisecond, Provider: types.ProviderLocal}, sim, nil, nil)
	chunk := types.DataChunk{ChunkID: "chunk-1", Payload: []byte("x")}

	eng.sendChunkWithRetry(context.Background(), chunk, types.Node{NodeID: "n1"})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, attempts)
}

func TestSendChunkWithRetryExhaustsRetriesWithoutPanicking(t *testing.T) {
	sim := transport.NewSimulated()
	sim.SetSendError("n1", assertHandlerErr)

	eng := New(Config{ChunkSizeBytes: 10, RetryAttempts: 2, RetryDelay: time.Millisecond, Provider: types.ProviderLocal}, sim, nil, nil)
	chunk := types.DataChunk{ChunkID: "chunk-1", Payload: []byte("x")}

	assert.NotPanics(t, func() {
		eng.sendChunkWithRetry(context.Background(), chunk, types.Node{NodeID: "n1"})
	})
}

var assertHandlerErr = fanoutTestErr{}

type fanoutTestErr struct{}

func (fanoutTestErr) Error() string { return "simulated send failure" }
