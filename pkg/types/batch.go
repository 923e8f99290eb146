package types

import "time"

// BatchStatus is the orchestrator's top-level run state machine:
// IDLE -> RUNNING -> {COMPLETED, FAILED}.
type BatchStatus string

const (
	BatchIdle      BatchStatus = "IDLE"
	BatchRunning   BatchStatus = "RUNNING"
	BatchCompleted BatchStatus = "COMPLETED"
	BatchFailed    BatchStatus = "FAILED"
)

// StageMetrics is the per-stage record the orchestrator preserves even if a
// later stage fails the batch.
type StageMetrics struct {
	Stage       string        `json:"stage"`
	Items       int           `json:"items"`
	Failed      int           `json:"failed"`
	Duration    time.Duration `json:"duration"`
	SuccessRate float64       `json:"success_rate"`
}

// BatchResult is the observable failure/success report a batch run produces
// (spec section 7: "Observable failure report").
type BatchResult struct {
	RunID           string         `json:"run_id"`
	Status          BatchStatus    `json:"status"`
	Duration        time.Duration  `json:"duration"`
	ChunksProcessed int            `json:"chunks_processed"`
	MetricsByStage  []StageMetrics `json:"metrics_by_stage,omitempty"`
	Error           string         `json:"error,omitempty"`

	// Expansion (SPEC_FULL section 3.1): per-run distribution/storage
	// statistics surfaced alongside the stage metrics.
	DistributionStats DistributionStats `json:"distribution_stats"`
	StorageStats      StorageStats      `json:"storage_stats"`
}

// DistributionStats summarizes one run's replication behavior, grounded in
// the original Python implementation's get_distribution_statistics.
type DistributionStats struct {
	TotalTasks            int     `json:"total_tasks"`
	CompletedTasks        int     `json:"completed_tasks"`
	FailedTasks           int     `json:"failed_tasks"`
	ChunkSuccessRate      float64 `json:"chunk_success_rate"`
	TotalReplicas         int     `json:"total_replicas"`
	SuccessfulReplicas    int     `json:"successful_replicas"`
	ReplicaSuccessRate    float64 `json:"replica_success_rate"`
	CrossCloudTransfers   int     `json:"cross_cloud_transfers"`
	SameCloudTransfers    int     `json:"same_cloud_transfers"`
	AverageTransferMillis float64 `json:"average_transfer_millis"`
	// AverageEstimatedLatencyMillis is NetworkTopology's per-link latency
	// estimate averaged over every replica, for comparison against
	// AverageTransferMillis's measured figure.
	AverageEstimatedLatencyMillis float64 `json:"average_estimated_latency_millis"`
}

// StorageStats summarizes one run's storage outcomes, grounded in the
// original Python implementation's get_storage_statistics.
type StorageStats struct {
	TotalChunks      int                               `json:"total_chunks"`
	TotalBytes       int64                             `json:"total_bytes"`
	SuccessfulStores int                                `json:"successful_stores"`
	FailedStores     int                                `json:"failed_stores"`
	CheckpointsMade  int                                `json:"checkpoints_made"`
	ByProvider       map[Provider]ProviderStorageStats `json:"by_provider,omitempty"`
}

// ProviderStorageStats is the per-cloud breakdown within StorageStats.
type ProviderStorageStats struct {
	Count     int   `json:"count"`
	SizeBytes int64 `json:"size_bytes"`
}
