package distribution

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cloudmesh/pipeline/pkg/logging"
	"github.com/cloudmesh/pipeline/pkg/observability"
	"github.com/cloudmesh/pipeline/pkg/transport"
	"github.com/cloudmesh/pipeline/pkg/types"
)

// Config configures a Coordinator, mirroring DistributionCoordinator's
// config surface in the original implementation.
type Config struct {
	ReplicationFactor          int
	MinReplicasSuccess         int
	MaxConcurrentDistributions int
	DistributionTimeout        time.Duration
	VerifyAfterDistribution    bool
	MaxRetries                 int
	RetryDelay                 time.Duration
}

// Coordinator replicates processed chunks to R target nodes, requiring at
// least RMin successful transfers per chunk, retrying partial/failed tasks
// up to MaxRetries (spec section 4.5).
type Coordinator struct {
	cfg       Config
	strategy  PlacementStrategy
	topology  NetworkTopology
	transport transport.Transport
	logger    *logging.Logger
	events    *observability.Bus

	mu        sync.Mutex
	completed []types.DistributionTask
	failed    []types.DistributionTask
}

// New constructs a Coordinator.
func New(cfg Config, strategy PlacementStrategy, topology NetworkTopology, t transport.Transport, logger *logging.Logger, events *observability.Bus) *Coordinator {
	if cfg.ReplicationFactor <= 0 {
		cfg.ReplicationFactor = 3
	}
	if cfg.MinReplicasSuccess <= 0 {
		cfg.MinReplicasSuccess = cfg.ReplicationFactor
	}
	if cfg.MaxConcurrentDistributions <= 0 {
		cfg.MaxConcurrentDistributions = 15
	}
	if cfg.DistributionTimeout <= 0 {
		cfg.DistributionTimeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 3 * time.Second
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Coordinator{cfg: cfg, strategy: strategy, topology: topology, transport: t, logger: logger, events: events}
}

// processedChunk is the minimal shape the coordinator needs out of a
// completed ProcessingTask: the payload to replicate, the chunk it came
// from, and the node that produced it.
type processedChunk struct {
	ChunkID      string
	Payload      []byte
	AssignedNode string
}

// FromProcessingTasks adapts completed ProcessingTasks into the coordinator's
// input shape, dropping any task with a nil payload (spec: "only
// successfully processed chunks are distributed").
func FromProcessingTasks(tasks []types.ProcessingTask) []processedChunk {
	var out []processedChunk
	for _, t := range tasks {
		if t.Status != types.ProcessingCompleted || t.PayloadOut == nil {
			continue
		}
		out = append(out, processedChunk{ChunkID: t.ChunkID, Payload: t.PayloadOut, AssignedNode: t.AssignedNode})
	}
	return out
}

// Distribute is the coordinator's main entry point: it builds one
// DistributionTask per processed chunk and drives them all to completion
// under the concurrency ceiling, returning every completed and failed task.
func (c *Coordinator) Distribute(ctx context.Context, chunks []processedChunk, healthy []types.Node) []types.DistributionTask {
	pending := make([]*types.DistributionTask, 0, len(chunks))
	for _, pc := range chunks {
		pending = append(pending, &types.DistributionTask{
			TaskID:     uuid.NewString(),
			ChunkID:    pc.ChunkID,
			Payload:    pc.Payload,
			SourceNode: pc.AssignedNode,
			Status:     types.DistributionPending,
		})
	}

	sem := make(chan struct{}, c.cfg.MaxConcurrentDistributions)
	var wg sync.WaitGroup

	var run func(task *types.DistributionTask)
	run = func(task *types.DistributionTask) {
		task.Status = types.DistributionDistributing
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			c.distributeTask(ctx, task, healthy, run, &wg, sem)
		}()
	}

	for _, task := range pending {
		run(task)
	}
	wg.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.DistributionTask, 0, len(c.completed)+len(c.failed))
	out = append(out, c.completed...)
	out = append(out, c.failed...)
	return out
}

func (c *Coordinator) distributeTask(ctx context.Context, task *types.DistributionTask, healthy []types.Node,
	retry func(*types.DistributionTask), wg *sync.WaitGroup, sem chan struct{}) {

	task.Start = time.Now()

	targets, err := c.strategy.SelectTargetNodes(task.ChunkID, task.SourceNode, c.cfg.ReplicationFactor, healthy)
	if err != nil {
		task.Status = types.DistributionFailed
		task.Error = err.Error()
		task.End = time.Now()
		c.finish(task, false)
		return
	}
	task.Targets = targets

	nodeByID := make(map[string]types.Node, len(healthy))
	for _, n := range healthy {
		nodeByID[n.NodeID] = n
	}
	sourceCloud := nodeByID[task.SourceNode].Provider

	replicas := make([]types.Replica, len(targets))
	for i, target := range targets {
		targetProvider := nodeByID[target].Provider
		replicas[i] = types.Replica{
			ReplicaID:          fmt.Sprintf("%s_replica_%s", task.ChunkID, uuid.NewString()),
			ChunkID:            task.ChunkID,
			TargetNode:         target,
			Provider:           targetProvider,
			SizeBytes:          int64(len(task.Payload)),
			EstimatedLatencyMS: c.topology.Latency(sourceCloud, targetProvider).Milliseconds(),
			Status:             types.ReplicaPending,
		}
	}
	task.Replicas = replicas

	timeoutCtx, cancel := context.WithTimeout(ctx, c.cfg.DistributionTimeout)
	var replicaWG sync.WaitGroup
	for i := range task.Replicas {
		replicaWG.Add(1)
		go func(i int) {
			defer replicaWG.Done()
			c.transferReplica(timeoutCtx, &task.Replicas[i], task.Payload, nodeByID[task.Replicas[i].TargetNode])
		}(i)
	}
	replicaWG.Wait()
	cancel()

	successful := task.SuccessfulReplicas()
	switch {
	case successful >= c.cfg.MinReplicasSuccess:
		task.Status = types.DistributionCompleted
	case successful > 0:
		task.Status = types.DistributionPartial
		task.Error = fmt.Sprintf("only %d/%d replicas succeeded", successful, c.cfg.ReplicationFactor)
	default:
		task.Status = types.DistributionFailed
		task.Error = "all replica transfers failed"
	}
	task.End = time.Now()

	if c.cfg.VerifyAfterDistribution && task.Status == types.DistributionCompleted {
		c.verifyReplicas(task)
	}

	if task.Status == types.DistributionCompleted {
		c.finish(task, true)
		return
	}

	task.Attempts++
	if task.Attempts < c.cfg.MaxRetries {
		c.logger.Warn("retrying distribution", "chunk_id", task.ChunkID, "attempt", task.Attempts, "max_retries", c.cfg.MaxRetries)
		select {
		case <-time.After(c.cfg.RetryDelay):
		case <-ctx.Done():
		}
		task.Status = types.DistributionPending
		retry(task)
		return
	}
	c.finish(task, false)
}

func (c *Coordinator) transferReplica(ctx context.Context, replica *types.Replica, data []byte, target types.Node) {
	start := time.Now()

	msg := types.Message{
		MessageType: types.MessageReplicaTransfer,
		Payload:     map[string]any{"chunk_id": replica.ChunkID, "data": data},
		Timestamp:   start,
		MessageID:   types.NewMessageID(replica.ReplicaID, start.UnixMilli()),
	}

	err := c.transport.Send(ctx, target, msg)
	replica.TransferMS = time.Since(start).Milliseconds()

	if err != nil {
		replica.Status = types.ReplicaFailed
		c.logger.Warn("replica transfer failed", "replica_id", replica.ReplicaID, "target_node", replica.TargetNode, "error", err)
		return
	}

	sum := md5.Sum(data)
	replica.Checksum = hex.EncodeToString(sum[:])
	replica.Status = types.ReplicaCompleted
}

func (c *Coordinator) verifyReplicas(task *types.DistributionTask) {
	sum := md5.Sum(task.Payload)
	expected := hex.EncodeToString(sum[:])

	for i := range task.Replicas {
		if task.Replicas[i].Status == types.ReplicaCompleted && task.Replicas[i].Checksum != expected {
			task.Replicas[i].Status = types.ReplicaFailed
			c.logger.Warn("replica checksum mismatch", "replica_id", task.Replicas[i].ReplicaID)
		}
	}
}

func (c *Coordinator) finish(task *types.DistributionTask, success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if success {
		c.completed = append(c.completed, *task)
	} else {
		c.failed = append(c.failed, *task)
	}
	if c.events != nil {
		kind := "distribution_task_completed"
		if !success {
			kind = "distribution_task_failed"
		}
		c.events.Publish(observability.StageEvent{
			Stage:   "distribution",
			Kind:    kind,
			ChunkID: task.ChunkID,
			Message: task.Error,
		})
	}
}

// Statistics computes spec section 4.5's distribution metrics from every
// completed and failed task seen so far.
func (c *Coordinator) Statistics(healthy []types.Node) types.DistributionStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	nodeByID := make(map[string]types.Node, len(healthy))
	for _, n := range healthy {
		nodeByID[n.NodeID] = n
	}

	all := make([]types.DistributionTask, 0, len(c.completed)+len(c.failed))
	all = append(all, c.completed...)
	all = append(all, c.failed...)

	stats := types.DistributionStats{
		TotalTasks:     len(all),
		CompletedTasks: len(c.completed),
		FailedTasks:    len(c.failed),
	}
	if stats.TotalTasks > 0 {
		stats.ChunkSuccessRate = float64(stats.CompletedTasks) / float64(stats.TotalTasks)
	}

	var transferMS []int64
	var estimatedMS []int64
	for _, task := range all {
		stats.TotalReplicas += len(task.Replicas)
		stats.SuccessfulReplicas += task.SuccessfulReplicas()

		sourceCloud := nodeByID[task.SourceNode].Provider
		for _, r := range task.Replicas {
			if r.Provider == sourceCloud {
				stats.SameCloudTransfers++
			} else {
				stats.CrossCloudTransfers++
			}
			if r.TransferMS > 0 {
				transferMS = append(transferMS, r.TransferMS)
			}
			estimatedMS = append(estimatedMS, r.EstimatedLatencyMS)
		}
	}
	if stats.TotalReplicas > 0 {
		stats.ReplicaSuccessRate = float64(stats.SuccessfulReplicas) / float64(stats.TotalReplicas)
	}
	if len(transferMS) > 0 {
		var sum int64
		for _, v := range transferMS {
			sum += v
		}
		stats.AverageTransferMillis = float64(sum) / float64(len(transferMS))
	}
	if len(estimatedMS) > 0 {
		var sum int64
		for _, v := range estimatedMS {
			sum += v
		}
		stats.AverageEstimatedLatencyMillis = float64(sum) / float64(len(estimatedMS))
	}
	return stats
}
