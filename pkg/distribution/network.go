package distribution

import (
	"time"

	"github.com/cloudmesh/pipeline/pkg/config"
	"github.com/cloudmesh/pipeline/pkg/types"
)

// NetworkTopology is the static cross-cloud latency table the distribution
// coordinator uses to estimate transfer time, grounded in the original's
// NetworkTopology.get_latency.
type NetworkTopology struct {
	latencies map[[2]types.Provider]time.Duration
	sameCloud time.Duration
	fallback  time.Duration
}

// NewNetworkTopology builds a NetworkTopology from config.NetworkConfig.
func NewNetworkTopology(cfg config.NetworkConfig) NetworkTopology {
	ms := func(v int64) time.Duration { return time.Duration(v) * time.Millisecond }

	latencies := map[[2]types.Provider]time.Duration{
		{types.ProviderAWS, types.ProviderGCP}:   ms(cfg.AWSToGCPLatencyMS),
		{types.ProviderGCP, types.ProviderAWS}:   ms(cfg.AWSToGCPLatencyMS),
		{types.ProviderAWS, types.ProviderAzure}: ms(cfg.AWSToAzureLatencyMS),
		{types.ProviderAzure, types.ProviderAWS}: ms(cfg.AWSToAzureLatencyMS),
		{types.ProviderGCP, types.ProviderAzure}: ms(cfg.GCPToAzureLatencyMS),
		{types.ProviderAzure, types.ProviderGCP}: ms(cfg.GCPToAzureLatencyMS),
	}
	return NetworkTopology{
		latencies: latencies,
		sameCloud: ms(cfg.SameCloudLatencyMS),
		fallback:  ms(cfg.DefaultLatencyMS),
	}
}

// Latency returns the estimated one-way network latency between two cloud
// providers.
func (t NetworkTopology) Latency(from, to types.Provider) time.Duration {
	if from == to {
		return t.sameCloud
	}
	if d, ok := t.latencies[[2]types.Provider{from, to}]; ok {
		return d
	}
	return t.fallback
}
