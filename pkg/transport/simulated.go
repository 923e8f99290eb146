package transport

import (
	"context"
	"sync"

	pipelineerrors "github.com/cloudmesh/pipeline/pkg/errors"
	"github.com/cloudmesh/pipeline/pkg/types"
)

// Simulated is an in-memory Transport for tests: it delivers messages
// directly to registered Handlers by node id, with no network involved, and
// lets tests script per-node failure injection to exercise the same
// classification paths HTTPTransport hits in production.
type Simulated struct {
	mu       sync.Mutex
	handlers map[string]map[types.MessageType]Handler
	health   map[string]error // nodeID -> error to return from CheckHealth, nil means healthy
	sendErr  map[string]error // nodeID -> error to return from Send, overrides dispatch
}

// NewSimulated constructs an empty Simulated transport.
func NewSimulated() *Simulated {
	return &Simulated{
		handlers: make(map[string]map[types.MessageType]Handler),
		health:   make(map[string]error),
		sendErr:  make(map[string]error),
	}
}

// RegisterHandler wires a Handler for a (nodeID, messageType) pair.
func (s *Simulated) RegisterHandler(nodeID string, t types.MessageType, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handlers[nodeID] == nil {
		s.handlers[nodeID] = make(map[types.MessageType]Handler)
	}
	s.handlers[nodeID][t] = h
}

// SetHealth scripts the error CheckHealth returns for a node; nil means
// healthy.
func (s *Simulated) SetHealth(nodeID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.health[nodeID] = err
}

// SetSendError scripts the error Send returns for a node, short-circuiting
// dispatch to any registered handler.
func (s *Simulated) SetSendError(nodeID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendErr[nodeID] = err
}

func (s *Simulated) Send(ctx context.Context, target types.Node, msg types.Message) error {
	s.mu.Lock()
	if err, ok := s.sendErr[target.NodeID]; ok && err != nil {
		s.mu.Unlock()
		return err
	}
	handler, ok := s.handlers[target.NodeID][msg.MessageType]
	s.mu.Unlock()

	if !ok {
		return pipelineerrors.New(pipelineerrors.KindTransportError, "no handler registered").
			WithNode(target.NodeID).Build()
	}
	_, err := handler(ctx, msg)
	return err
}

func (s *Simulated) CheckHealth(ctx context.Context, target types.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.health[target.NodeID]
}
