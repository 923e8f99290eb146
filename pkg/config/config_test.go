package config

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cloudmesh/pipeline/pkg/types"
)

func validConfig() Config {
	cfg := Default()
	cfg.NodeID = "node-1"
	cfg.Providers = map[string]CloudProviderConfig{
		"aws": {Name: "aws", Region: "us-east-1", MaxNodes: 10},
	}
	return cfg
}

func TestValidateRejectsMissingClusterName(t *testing.T) {
	cfg := validConfig()
	cfg.ClusterName = ""
	assert.ErrorContains(t, cfg.Validate(), "cluster_name")
}

func TestValidateRejectsEmptyProviders(t *testing.T) {
	cfg := validConfig()
	cfg.Providers = nil
	assert.ErrorContains(t, cfg.Validate(), "cloud_providers")
}

func TestValidateRejectsNonPositiveChunkSize(t *testing.T) {
	cfg := validConfig()
	cfg.ChunkSizeMB = 0
	assert.ErrorContains(t, cfg.Validate(), "chunk_size_mb")
}

func TestValidateRejectsMinReplicasSuccessAboveReplicationFactor(t *testing.T) {
	cfg := validConfig()
	cfg.ReplicationFactor = 3
	cfg.MinReplicasSuccess = 4
	assert.ErrorContains(t, cfg.Validate(), "min_replicas_success")
}

func TestValidateRejectsZeroMinReplicasSuccess(t *testing.T) {
	cfg := validConfig()
	cfg.MinReplicasSuccess = 0
	assert.ErrorContains(t, cfg.Validate(), "min_replicas_success")
}

func TestValidateRejectsMissingNodeID(t *testing.T) {
	cfg := validConfig()
	cfg.NodeID = ""
	assert.ErrorContains(t, cfg.Validate(), "node_id")
}

func TestValidateAcceptsDefaultsPlusRequiredFields(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestChunkSizeBytesConvertsMegabytesToBytes(t *testing.T) {
	cfg := Config{ChunkSizeMB: 5}
	assert.Equal(t, int64(5*1024*1024), cfg.ChunkSizeBytes())
}

func TestProviderOfLooksUpByProviderName(t *testing.T) {
	cfg := validConfig()
	found, ok := cfg.ProviderOf(types.ProviderAWS)
	assert.True(t, ok)
	assert.Equal(t, "us-east-1", found.Region)

	_, ok = cfg.ProviderOf(types.ProviderAzure)
	assert.False(t, ok)
}
