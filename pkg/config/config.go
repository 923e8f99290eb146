// Package config defines the pipeline's single pre-validated configuration
// record (spec section 6). The core never reads a config file itself — it
// accepts a Config value that something upstream (cmd/pipelined, a test)
// has already loaded and validated. File loading lives in loader.go and is
// ambient CLI plumbing, not part of the core's contract.
package config

import (
	"fmt"
	"time"

	"github.com/cloudmesh/pipeline/pkg/types"
)

// CloudProviderConfig describes one cloud provider's footprint in the
// cluster.
type CloudProviderConfig struct {
	Name                string        `yaml:"name"`
	Region              string        `yaml:"region"`
	InstanceType        string        `yaml:"instance_type"`
	MaxNodes            int           `yaml:"max_nodes"`
	APIRateLimit        int           `yaml:"api_rate_limit"`
	NetworkTimeoutBase  time.Duration `yaml:"network_timeout_base"`
}

// PlacementConfig configures the distribution coordinator's placement
// policy.
type PlacementConfig struct {
	Strategy            string  `yaml:"strategy"` // "network_aware" | "round_robin"
	PreferSameCloud      bool    `yaml:"prefer_same_cloud"`
	CrossCloudThreshold  float64 `yaml:"cross_cloud_threshold"`
	FallbackToAnyNode    bool    `yaml:"fallback_to_any_node"`
}

// NetworkConfig is the static cross-cloud latency table used by the
// distribution coordinator to estimate per-link transfer time.
type NetworkConfig struct {
	SameCloudLatencyMS   int64 `yaml:"same_cloud_latency_ms"`
	AWSToGCPLatencyMS    int64 `yaml:"aws_to_gcp_latency_ms"`
	AWSToAzureLatencyMS  int64 `yaml:"aws_to_azure_latency_ms"`
	GCPToAzureLatencyMS  int64 `yaml:"gcp_to_azure_latency_ms"`
	DefaultLatencyMS     int64 `yaml:"default_latency_ms"`
}

// FailureHandlingConfig configures retry behavior shared by the processing
// and distribution stages.
type FailureHandlingConfig struct {
	MaxRetries              int           `yaml:"max_retries"`
	RetryDelay              time.Duration `yaml:"retry_delay"`
	ExponentialBackoff      bool          `yaml:"retry_exponential_backoff"`
}

// ProcessingStepConfig describes one configured pipeline step.
type ProcessingStepConfig struct {
	Name    string        `yaml:"name"`
	Enabled bool          `yaml:"enabled"`
	Timeout time.Duration `yaml:"timeout"`
}

// StorageConfig configures the storage manager.
type StorageConfig struct {
	PartitionBy           string                `yaml:"partition_by"` // date | cloud | node | flat
	ChecksumAlgorithm     string                `yaml:"checksum_algorithm"` // md5 | sha256
	VerifyOnWrite         bool                  `yaml:"verify_on_write"`
	VerifyOnRead          bool                  `yaml:"verify_on_read"`
	StoreMetadata         bool                  `yaml:"store_metadata"`
	MaxConcurrentWrites   int                   `yaml:"max_concurrent_writes"`
	CreateCheckpoints     bool                  `yaml:"create_checkpoints"`
	CheckpointInterval    int                   `yaml:"checkpoint_interval"`
	EnableAutoCleanup     bool                  `yaml:"enable_auto_cleanup"`
	RetentionDays         int                   `yaml:"retention_days"`
	DataRoot              string                `yaml:"data_root"`
	MetadataRoot          string                `yaml:"metadata_root"`
	IndexBackend          string                `yaml:"index_backend"` // local | postgres
	PostgresDSN           string                `yaml:"postgres_dsn"`
}

// RegistryConfig configures the node registry / health monitor.
type RegistryConfig struct {
	HeartbeatInterval          time.Duration `yaml:"heartbeat_interval"`
	FailureDetectionThreshold  int           `yaml:"failure_detection_threshold"`
	LatencyHistorySize         int           `yaml:"latency_history_size"`
	LatencyCacheAddr           string        `yaml:"latency_cache_addr"` // Redis, optional
}

// APIConfig configures the control-plane HTTP surface.
type APIConfig struct {
	ListenAddr  string   `yaml:"listen_addr"`
	JWTSecret   string   `yaml:"jwt_secret"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// Config is the pipeline's single pre-validated configuration record.
type Config struct {
	ClusterName  string                          `yaml:"cluster_name"`
	NodeID       string                          `yaml:"node_id"`
	Providers    map[string]CloudProviderConfig  `yaml:"cloud_providers"`

	Registry RegistryConfig `yaml:"registry"`

	DataSources            []string      `yaml:"data_sources"`
	ChunkSizeMB            int           `yaml:"chunk_size_mb"`
	IngestionRetryAttempts int           `yaml:"ingestion_retry_attempts"`
	IngestionRetryDelay    time.Duration `yaml:"ingestion_retry_delay"`

	MaxConcurrentTasks   int                    `yaml:"max_concurrent_tasks"`
	MaxWorkersPerNode    int                    `yaml:"max_workers_per_node"`
	LoadBalancing        string                 `yaml:"load_balancing_strategy"` // round_robin | least_loaded | random
	ProcessingFailure    FailureHandlingConfig  `yaml:"processing_failure_handling"`
	ProcessingPipeline   []ProcessingStepConfig `yaml:"processing_pipeline"`

	ReplicationFactor          int                   `yaml:"replication_factor"`
	MinReplicasSuccess         int                   `yaml:"min_replicas_success"`
	MaxConcurrentDistributions int                   `yaml:"max_concurrent_distributions"`
	DistributionTimeout        time.Duration         `yaml:"distribution_timeout"`
	VerifyAfterDistribution    bool                  `yaml:"verify_after_distribution"`
	DistributionFailure        FailureHandlingConfig `yaml:"distribution_failure_handling"`
	Placement                  PlacementConfig       `yaml:"placement"`
	Network                    NetworkConfig         `yaml:"network"`

	Storage StorageConfig `yaml:"storage"`

	API APIConfig `yaml:"api"`
}

// ChunkSizeBytes returns the configured chunk boundary in bytes.
func (c Config) ChunkSizeBytes() int64 {
	return int64(c.ChunkSizeMB) * 1024 * 1024
}

// ProviderOf looks up the configured CloudProviderConfig for a provider
// name, returning false if it isn't in the cluster config.
func (c Config) ProviderOf(p types.Provider) (CloudProviderConfig, bool) {
	cfg, ok := c.Providers[string(p)]
	return cfg, ok
}

// Validate checks the required-keys and basic range invariants the original
// implementation's ConfigurationManager.validate_configuration enforced,
// returning a plain error that names the offending key.
func (c Config) Validate() error {
	if c.ClusterName == "" {
		return fmt.Errorf("cluster_name is required")
	}
	if len(c.Providers) == 0 {
		return fmt.Errorf("cloud_providers must not be empty")
	}
	if c.ChunkSizeMB <= 0 {
		return fmt.Errorf("chunk_size_mb must be positive")
	}
	if c.ReplicationFactor <= 0 {
		return fmt.Errorf("replication_factor must be positive")
	}
	if c.MinReplicasSuccess <= 0 || c.MinReplicasSuccess > c.ReplicationFactor {
		return fmt.Errorf("min_replicas_success must be in (0, replication_factor]")
	}
	if c.NodeID == "" {
		return fmt.Errorf("node_id is required")
	}
	return nil
}

// Default returns a Config with sensible defaults, the same role the
// upstream project's DefaultConfig plays for its own config record.
func Default() Config {
	return Config{
		ClusterName: "local-cluster",
		Registry: RegistryConfig{
			HeartbeatInterval:         5 * time.Second,
			FailureDetectionThreshold: 3,
			LatencyHistorySize:        100,
		},
		ChunkSizeMB:            100,
		IngestionRetryAttempts: 3,
		IngestionRetryDelay:    2 * time.Second,
		MaxConcurrentTasks:     20,
		MaxWorkersPerNode:      4,
		LoadBalancing:          "least_loaded",
		ProcessingFailure: FailureHandlingConfig{
			MaxRetries:         3,
			RetryDelay:         5 * time.Second,
			ExponentialBackoff: true,
		},
		ProcessingPipeline: []ProcessingStepConfig{
			{Name: "validate", Enabled: true, Timeout: 10 * time.Second},
			{Name: "transform", Enabled: true, Timeout: 60 * time.Second},
			{Name: "compress", Enabled: true, Timeout: 30 * time.Second},
		},
		ReplicationFactor:          3,
		MinReplicasSuccess:         2,
		MaxConcurrentDistributions: 15,
		DistributionTimeout:        30 * time.Second,
		VerifyAfterDistribution:    true,
		DistributionFailure: FailureHandlingConfig{
			MaxRetries: 3,
			RetryDelay: 3 * time.Second,
		},
		Placement: PlacementConfig{
			Strategy:            "network_aware",
			PreferSameCloud:     true,
			CrossCloudThreshold: 0.7,
			FallbackToAnyNode:   true,
		},
		Network: NetworkConfig{
			SameCloudLatencyMS:  5,
			AWSToGCPLatencyMS:   50,
			AWSToAzureLatencyMS: 60,
			GCPToAzureLatencyMS: 45,
			DefaultLatencyMS:    100,
		},
		Storage: StorageConfig{
			PartitionBy:         "date",
			ChecksumAlgorithm:   "md5",
			VerifyOnWrite:       true,
			VerifyOnRead:        true,
			StoreMetadata:       true,
			MaxConcurrentWrites: 20,
			CreateCheckpoints:   true,
			CheckpointInterval:  1000,
			EnableAutoCleanup:   true,
			RetentionDays:       30,
			DataRoot:            "./storage/data",
			MetadataRoot:        "./storage/metadata",
			IndexBackend:        "local",
		},
		API: APIConfig{
			ListenAddr:  "0.0.0.0:8090",
			CORSOrigins: []string{"*"},
		},
	}
}
