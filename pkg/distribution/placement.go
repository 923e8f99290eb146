// Package distribution implements the replica placement and transfer
// coordinator (spec section 4.5 / C5), grounded in
// original_source/src/pipeline/distribution_coordinator.py.
package distribution

import (
	"fmt"
	"sync"

	"github.com/cloudmesh/pipeline/pkg/config"
	"github.com/cloudmesh/pipeline/pkg/types"
)

// PlacementStrategy selects target nodes to place R replicas of a chunk on,
// excluding the source node.
type PlacementStrategy interface {
	SelectTargetNodes(chunkID, sourceNode string, numReplicas int, healthy []types.Node) ([]string, error)
}

// NetworkAwarePlacement prefers same-cloud targets up to
// cross_cloud_threshold, then fills the remainder cross-cloud, falling back
// to any remaining healthy node if that still isn't enough (spec section
// 4.5, original's NetworkAwarePlacement.select_target_nodes).
type NetworkAwarePlacement struct {
	PreferSameCloud     bool
	CrossCloudThreshold float64
	FallbackToAnyNode   bool
}

func (p NetworkAwarePlacement) SelectTargetNodes(chunkID, sourceNode string, numReplicas int, healthy []types.Node) ([]string, error) {
	var sourceCloud types.Provider
	found := false
	for _, n := range healthy {
		if n.NodeID == sourceNode {
			sourceCloud = n.Provider
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("source node %s not found among healthy nodes", sourceNode)
	}

	var sameCloud, otherCloud []string
	for _, n := range healthy {
		if n.NodeID == sourceNode {
			continue
		}
		if n.Provider == sourceCloud {
			sameCloud = append(sameCloud, n.NodeID)
		} else {
			otherCloud = append(otherCloud, n.NodeID)
		}
	}

	if len(sameCloud)+len(otherCloud) == 0 {
		return nil, fmt.Errorf("no healthy nodes available for distribution")
	}

	var selected []string
	if p.PreferSameCloud && len(sameCloud) >= numReplicas {
		selected = append(selected, sameCloud[:numReplicas]...)
	} else {
		sameCloudCount := len(sameCloud)
		if want := int(float64(numReplicas) * p.CrossCloudThreshold); want < sameCloudCount {
			sameCloudCount = want
		}
		crossCloudCount := numReplicas - sameCloudCount

		selected = append(selected, sameCloud[:sameCloudCount]...)
		if crossCloudCount > len(otherCloud) {
			crossCloudCount = len(otherCloud)
		}
		selected = append(selected, otherCloud[:crossCloudCount]...)
	}

	if len(selected) < numReplicas && p.FallbackToAnyNode {
		chosen := make(map[string]bool, len(selected))
		for _, id := range selected {
			chosen[id] = true
		}
		for _, n := range healthy {
			if len(selected) >= numReplicas {
				break
			}
			if n.NodeID == sourceNode || chosen[n.NodeID] {
				continue
			}
			selected = append(selected, n.NodeID)
			chosen[n.NodeID] = true
		}
	}

	if len(selected) > numReplicas {
		selected = selected[:numReplicas]
	}
	return selected, nil
}

// RoundRobinPlacement cycles through all healthy, non-source nodes in a
// shared rotating order, requiring strictly enough nodes to satisfy
// numReplicas (no fallback, matching the original's RoundRobinPlacement).
type RoundRobinPlacement struct {
	mu      sync.Mutex
	cursor  int
}

func (p *RoundRobinPlacement) SelectTargetNodes(chunkID, sourceNode string, numReplicas int, healthy []types.Node) ([]string, error) {
	var candidates []string
	for _, n := range healthy {
		if n.NodeID != sourceNode {
			candidates = append(candidates, n.NodeID)
		}
	}
	if len(candidates) < numReplicas {
		return nil, fmt.Errorf("not enough nodes: need %d, have %d", numReplicas, len(candidates))
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	selected := make([]string, numReplicas)
	for i := 0; i < numReplicas; i++ {
		selected[i] = candidates[(p.cursor+i)%len(candidates)]
	}
	p.cursor = (p.cursor + numReplicas) % len(candidates)
	return selected, nil
}

// NewPlacementStrategy builds the configured strategy, defaulting to
// network-aware for any unrecognized name exactly as the original does.
func NewPlacementStrategy(cfg config.PlacementConfig) PlacementStrategy {
	switch cfg.Strategy {
	case "round_robin":
		return &RoundRobinPlacement{}
	default:
		return NetworkAwarePlacement{
			PreferSameCloud:     cfg.PreferSameCloud,
			CrossCloudThreshold: cfg.CrossCloudThreshold,
			FallbackToAnyNode:   cfg.FallbackToAnyNode,
		}
	}
}
