// Package transport implements the inter-node wire protocol (spec section
// 6): POST /message and GET /health over plain HTTP, with rate-limit,
// timeout, and transport-error classification grounded in
// original_source/src/communication/protocol.py's
// CrossCloudCommunicationProtocol.
package transport

import (
	"context"

	"github.com/cloudmesh/pipeline/pkg/types"
)

// Transport sends application messages between nodes. Production code uses
// HTTPTransport; tests use the in-memory Simulated transport so the rest of
// the pipeline can be exercised without a network.
type Transport interface {
	Send(ctx context.Context, target types.Node, msg types.Message) error
	CheckHealth(ctx context.Context, target types.Node) error
}

// Handler processes an inbound message received by a node's server side and
// returns the payload to echo back, if any. Kept deliberately small: the
// spec's wire protocol carries data_chunk/processed_chunk/replica_transfer
// payloads, and each pipeline stage registers its own handler for the
// message types it understands.
type Handler func(ctx context.Context, msg types.Message) (map[string]any, error)
