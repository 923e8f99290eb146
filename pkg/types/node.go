// Package types holds the pipeline's core data model: Node, DataChunk,
// ProcessingTask, Replica, DistributionTask, StoredChunk, and Checkpoint, as
// defined in spec section 3.
package types

import "time"

// Provider is a cloud provider identifier.
type Provider string

const (
	ProviderAWS   Provider = "aws"
	ProviderGCP   Provider = "gcp"
	ProviderAzure Provider = "azure"
	ProviderLocal Provider = "local"
)

// NodeStatus is the health status of a registered node.
type NodeStatus string

const (
	NodeHealthy  NodeStatus = "HEALTHY"
	NodeDegraded NodeStatus = "DEGRADED"
	NodeFailed   NodeStatus = "FAILED"
	NodeUnknown  NodeStatus = "UNKNOWN"
)

// Node is a registered cluster member. Nodes are created on explicit
// registration and never destroyed — a FAILED node stays in the registry.
type Node struct {
	NodeID        string            `json:"node_id"`
	Provider      Provider          `json:"provider"`
	Region        string            `json:"region"`
	Endpoint      string            `json:"endpoint"`
	Roles         []string          `json:"roles,omitempty"`
	Status        NodeStatus        `json:"status"`
	LastHeartbeat time.Time         `json:"last_heartbeat,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// IsHealthy reports whether the node is currently eligible for task
// assignment or replica placement (the only invariant spec section 3 places
// on Node.Status).
func (n Node) IsHealthy() bool {
	return n.Status == NodeHealthy
}
