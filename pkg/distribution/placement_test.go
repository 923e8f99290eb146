package distribution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudmesh/pipeline/pkg/types"
)

func fourNodeCluster() []types.Node {
	return []types.Node{
		{NodeID: "aws-1", Provider: types.ProviderAWS},
		{NodeID: "aws-2", Provider: types.ProviderAWS},
		{NodeID: "gcp-1", Provider: types.ProviderGCP},
		{NodeID: "gcp-2", Provider: types.ProviderGCP},
	}
}

func assertNoDuplicatesAndExcludesSource(t *testing.T, targets []string, source string) {
	t.Helper()
	seen := make(map[string]bool, len(targets))
	for _, id := range targets {
		assert.NotEqual(t, source, id, "source node must never appear in its own targets")
		assert.False(t, seen[id], "target %s selected twice", id)
		seen[id] = true
	}
}

func TestNetworkAwarePlacementExcludesSourceAndDeduplicates(t *testing.T) {
	p := NetworkAwarePlacement{PreferSameCloud: true, CrossCloudThreshold: 0.7, FallbackToAnyNode: true}
	targets, err := p.SelectTargetNodes("chunk1", "aws-1", 3, fourNodeCluster())
	require.NoError(t, err)
	require.Len(t, targets, 3)
	assertNoDuplicatesAndExcludesSource(t, targets, "aws-1")
}

// CrossCloudThreshold is the fraction of R drawn from the same cloud
// (selectTargetNodes's same_cloud_count = floor(R * threshold), spec section
// 4.5); threshold=0 therefore draws zero same-cloud replicas (cross-cloud
// only), and threshold=1.0 draws as many same-cloud replicas as exist.
func TestNetworkAwarePlacementCrossCloudThresholdZeroIsCrossCloudOnly(t *testing.T) {
	p := NetworkAwarePlacement{PreferSameCloud: false, CrossCloudThreshold: 0, FallbackToAnyNode: false}
	targets, err := p.SelectTargetNodes("chunk1", "aws-1", 1, fourNodeCluster())
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Contains(t, []string{"gcp-1", "gcp-2"}, targets[0])
}

func TestNetworkAwarePlacementCrossCloudThresholdOneIsSameCloudOnly(t *testing.T) {
	p := NetworkAwarePlacement{PreferSameCloud: false, CrossCloudThreshold: 1.0, FallbackToAnyNode: false}
	targets, err := p.SelectTargetNodes("chunk1", "aws-1", 1, fourNodeCluster())
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, "aws-2", targets[0])
}

func TestNetworkAwarePlacementInsufficientNodesWithoutFallback(t *testing.T) {
	nodes := []types.Node{
		{NodeID: "aws-1", Provider: types.ProviderAWS},
		{NodeID: "aws-2", Provider: types.ProviderAWS},
	}
	p := NetworkAwarePlacement{PreferSameCloud: true, CrossCloudThreshold: 0.7, FallbackToAnyNode: false}
	targets, err := p.SelectTargetNodes("chunk1", "aws-1", 3, nodes)
	require.NoError(t, err)
	// the source node is excluded, so aws-2 is the only eligible target.
	assert.Len(t, targets, 1)
}

func TestNetworkAwarePlacementSourceNodeMustBeHealthy(t *testing.T) {
	p := NetworkAwarePlacement{PreferSameCloud: true, FallbackToAnyNode: true}
	_, err := p.SelectTargetNodes("chunk1", "missing", 1, fourNodeCluster())
	assert.Error(t, err)
}

func TestRoundRobinPlacementCyclesAndExcludesSource(t *testing.T) {
	p := &RoundRobinPlacement{}
	nodes := fourNodeCluster()

	first, err := p.SelectTargetNodes("chunk1", "aws-1", 2, nodes)
	require.NoError(t, err)
	assertNoDuplicatesAndExcludesSource(t, first, "aws-1")

	second, err := p.SelectTargetNodes("chunk2", "aws-1", 2, nodes)
	require.NoError(t, err)
	assertNoDuplicatesAndExcludesSource(t, second, "aws-1")
	assert.NotEqual(t, first, second, "round robin cursor should advance between calls")
}

func TestRoundRobinPlacementErrorsWhenNotEnoughNodes(t *testing.T) {
	p := &RoundRobinPlacement{}
	nodes := []types.Node{{NodeID: "aws-1"}, {NodeID: "aws-2"}}
	_, err := p.SelectTargetNodes("chunk1", "aws-1", 3, nodes)
	assert.Error(t, err)
}
