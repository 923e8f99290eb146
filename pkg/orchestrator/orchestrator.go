// Package orchestrator drives one batch through all four pipeline stages in
// strict sequence — ingestion, processing, distribution, storage — recording
// per-stage metrics even when a later stage fails the batch (spec section
// 4.7, grounded in PipelineOrchestrator).
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cloudmesh/pipeline/pkg/distribution"
	"github.com/cloudmesh/pipeline/pkg/errors"
	"github.com/cloudmesh/pipeline/pkg/ingestion"
	"github.com/cloudmesh/pipeline/pkg/ingestion/source"
	"github.com/cloudmesh/pipeline/pkg/logging"
	"github.com/cloudmesh/pipeline/pkg/observability"
	"github.com/cloudmesh/pipeline/pkg/registry"
	"github.com/cloudmesh/pipeline/pkg/scheduler"
	"github.com/cloudmesh/pipeline/pkg/storage"
	"github.com/cloudmesh/pipeline/pkg/types"
)

// BatchConfig describes one batch run, mirroring the batch_config dict the
// original implementation's run_pipeline accepts.
type BatchConfig struct {
	BatchID        string
	DataSource     string
	ExpectedSizeMB int
}

// Orchestrator owns the four stage components and the batch state machine:
// IDLE -> RUNNING -> {COMPLETED, FAILED}.
type Orchestrator struct {
	reg          *registry.Registry
	ingestion    *ingestion.Engine
	pool         *scheduler.Pool
	coordinator  *distribution.Coordinator
	storage      *storage.Manager
	logger       *logging.Logger
	events       *observability.Bus

	mu           sync.Mutex
	status       types.BatchStatus
	currentBatch string
	currentStage string
	lastMetrics  []types.StageMetrics
}

// New constructs an Orchestrator wiring together the four already-constructed
// stage components, matching the original's constructor that wires
// DataIngestionEngine, ProcessingWorkerPool, DistributionCoordinator, and
// StorageManager off a shared node_registry.
func New(reg *registry.Registry, eng *ingestion.Engine, pool *scheduler.Pool, coord *distribution.Coordinator, mgr *storage.Manager, logger *logging.Logger, events *observability.Bus) *Orchestrator {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Orchestrator{
		reg:         reg,
		ingestion:   eng,
		pool:        pool,
		coordinator: coord,
		storage:     mgr,
		logger:      logger,
		events:      events,
		status:      types.BatchIdle,
	}
}

// RunID builds the canonical run identifier: batch_id || "_" || monotonic_ts
// (spec section 4.7).
func RunID(batchID string, at time.Time) string {
	return fmt.Sprintf("%s_%d", batchID, at.UnixNano())
}

// RunBatch executes ingestion -> processing -> distribution -> storage in
// strict sequence for one batch, preserving metrics for every stage that
// completed even if a later stage fails the batch fatally. runID is
// produced by RunID — callers that need to know the identifier before the
// batch finishes (the control-plane API included) compute it up front and
// pass it in, rather than RunBatch computing its own, so the value
// returned to a client matches the one the batch actually runs under.
func (o *Orchestrator) RunBatch(ctx context.Context, src source.Source, cfg BatchConfig, runID string) types.BatchResult {
	logger := o.logger.With("run_id", runID)

	o.mu.Lock()
	o.status = types.BatchRunning
	o.currentBatch = cfg.BatchID
	o.currentStage = ""
	o.lastMetrics = nil
	o.mu.Unlock()

	logger.Info("batch starting", "batch_id", cfg.BatchID, "data_source", cfg.DataSource)
	o.publish(runID, "", "batch_started", "")

	start := time.Now()
	var metrics []types.StageMetrics

	fail := func(stage string, cause error) types.BatchResult {
		duration := time.Since(start)
		o.mu.Lock()
		o.status = types.BatchFailed
		o.currentStage = stage
		o.lastMetrics = metrics
		o.mu.Unlock()

		pe := errors.New(errors.KindStageFatal, cause.Error()).
			WithSeverity(errors.SeverityCritical).Build()
		logger.Error("batch failed", "stage", stage, "error", pe)
		o.publish(runID, stage, "batch_failed", pe.Error())

		return types.BatchResult{
			RunID:          runID,
			Status:         types.BatchFailed,
			Duration:       duration,
			MetricsByStage: metrics,
			Error:          pe.Error(),
		}
	}

	// Stage 1: ingestion
	o.setStage("ingestion")
	stageStart := time.Now()
	healthy := o.reg.Available()
	chunks, err := o.ingestion.IngestAll(ctx, src, healthy)
	metrics = append(metrics, stageMetric("ingestion", len(chunks), 0, time.Since(stageStart)))
	if err != nil {
		return fail("ingestion", err)
	}
	logger.Info("ingestion complete", "chunks", len(chunks), "duration", time.Since(stageStart))

	if len(healthy) == 0 {
		return fail("ingestion", fmt.Errorf("no healthy nodes available"))
	}

	// Stage 2: processing
	o.setStage("processing")
	stageStart = time.Now()
	processingTasks := o.pool.ProcessChunks(ctx, chunks, healthy)
	procFailed := countProcessingFailed(processingTasks)
	metrics = append(metrics, stageMetric("processing", len(processingTasks), procFailed, time.Since(stageStart)))
	logger.Info("processing complete", "tasks", len(processingTasks), "failed", procFailed, "duration", time.Since(stageStart))

	// Stage 3: distribution
	o.setStage("distribution")
	stageStart = time.Now()
	processed := distribution.FromProcessingTasks(processingTasks)
	healthy = o.reg.Available()
	distributionTasks := o.coordinator.Distribute(ctx, processed, healthy)
	distFailed := countDistributionFailed(distributionTasks)
	metrics = append(metrics, stageMetric("distribution", len(distributionTasks), distFailed, time.Since(stageStart)))
	logger.Info("distribution complete", "tasks", len(distributionTasks), "failed", distFailed, "duration", time.Since(stageStart))

	distStats := o.coordinator.Statistics(healthy)

	// Stage 4: storage
	o.setStage("storage")
	stageStart = time.Now()
	stored := o.storage.StoreDistributedChunks(ctx, distributionTasks)
	storeFailed := countStorageFailed(stored)
	metrics = append(metrics, stageMetric("storage", len(stored), storeFailed, time.Since(stageStart)))
	logger.Info("storage complete", "chunks", len(stored), "failed", storeFailed, "duration", time.Since(stageStart))

	storageStats := o.storage.Statistics()

	duration := time.Since(start)
	o.mu.Lock()
	o.status = types.BatchCompleted
	o.currentStage = ""
	o.lastMetrics = metrics
	o.mu.Unlock()

	logger.Info("batch complete", "duration", duration, "chunks_processed", len(chunks))
	o.publish(runID, "", "batch_completed", fmt.Sprintf("chunks=%d duration=%s", len(chunks), duration))

	return types.BatchResult{
		RunID:             runID,
		Status:            types.BatchCompleted,
		Duration:          duration,
		ChunksProcessed:   len(chunks),
		MetricsByStage:    metrics,
		DistributionStats: distStats,
		StorageStats:      storageStats,
	}
}

// Status reports the orchestrator's current batch state, mirroring
// get_status.
func (o *Orchestrator) Status() (status types.BatchStatus, batchID, stage string, metrics []types.StageMetrics) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status, o.currentBatch, o.currentStage, o.lastMetrics
}

// Running reports whether a batch is currently in the RUNNING state — the
// orchestrator drives one batch at a time, so a caller wanting to start a
// new one must check this first.
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status == types.BatchRunning
}

// HealthyNodeCount and UnhealthyNodeCount mirror get_healthy_nodes /
// get_unhealthy_nodes.
func (o *Orchestrator) HealthyNodeCount() int {
	return len(o.reg.Available())
}

func (o *Orchestrator) UnhealthyNodeCount() int {
	all := o.reg.All()
	return len(all) - len(o.reg.Available())
}

func (o *Orchestrator) setStage(stage string) {
	o.mu.Lock()
	o.currentStage = stage
	o.mu.Unlock()
}

func (o *Orchestrator) publish(runID, stage, kind, message string) {
	if o.events == nil {
		return
	}
	o.events.Publish(observability.StageEvent{
		Stage:   "orchestrator",
		Kind:    kind,
		RunID:   runID,
		Message: message,
	})
	_ = stage
}

func stageMetric(stage string, items, failed int, duration time.Duration) types.StageMetrics {
	successRate := 0.0
	if items > 0 {
		successRate = float64(items-failed) / float64(items)
	}
	return types.StageMetrics{
		Stage:       stage,
		Items:       items,
		Failed:      failed,
		Duration:    duration,
		SuccessRate: successRate,
	}
}

func countProcessingFailed(tasks []types.ProcessingTask) int {
	n := 0
	for _, t := range tasks {
		if t.Status == types.ProcessingFailed {
			n++
		}
	}
	return n
}

func countDistributionFailed(tasks []types.DistributionTask) int {
	n := 0
	for _, t := range tasks {
		if t.Status == types.DistributionFailed {
			n++
		}
	}
	return n
}

func countStorageFailed(chunks []types.StoredChunk) int {
	n := 0
	for _, c := range chunks {
		if c.Status == types.StorageFailed {
			n++
		}
	}
	return n
}
