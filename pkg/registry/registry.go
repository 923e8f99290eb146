// Package registry implements the NodeRegistry and its adaptive health
// monitor (spec section 4.1). The registry's nodes map and latency history
// are mutated only by the monitor goroutine; every other caller reads a
// consistent snapshot per call (spec section 5: single-writer discipline).
package registry

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/cloudmesh/pipeline/pkg/errors"
	"github.com/cloudmesh/pipeline/pkg/logging"
	"github.com/cloudmesh/pipeline/pkg/observability"
	"github.com/cloudmesh/pipeline/pkg/types"
)

const (
	defaultProbePeriod  = 5 * time.Second
	minSamplesForAdaptive = 10
	defaultTimeout      = 5 * time.Second
	minAdaptiveTimeout  = 1 * time.Second
)

// Cache is the optional shared backing store for latency samples, so
// multiple orchestrator processes converge faster (SPEC_FULL
// section 2.2, implemented by pkg/registry/latencycache over Redis). A nil
// Cache means "in-process only," the spec's default behavior.
type Cache interface {
	RecordLatency(ctx context.Context, provider types.Provider, ms float64)
	RecentLatencies(ctx context.Context, provider types.Provider) []float64
}

// HealthChecker performs the GET /health probe against a node's health
// endpoint. Production code uses the HTTP implementation in pkg/transport;
// tests substitute a fake.
type HealthChecker interface {
	CheckHealth(ctx context.Context, endpoint string, timeout time.Duration) error
}

// Registry tracks registered nodes, their health, and per-provider latency
// history, and computes the adaptive per-provider timeout every other
// component uses for its own deadlines.
type Registry struct {
	mu    sync.RWMutex
	nodes map[string]*types.Node
	order []string // registration order, for deterministic placement/selection

	history *latencyHistory
	cache   Cache
	checker HealthChecker

	probePeriod time.Duration

	logger   *logging.Logger
	events   *observability.Bus
	failures []errors.PipelineError
}

// Option configures a Registry at construction.
type Option func(*Registry)

func WithCache(c Cache) Option {
	return func(r *Registry) { r.cache = c }
}

func WithHealthChecker(c HealthChecker) Option {
	return func(r *Registry) { r.checker = c }
}

func WithProbePeriod(d time.Duration) Option {
	return func(r *Registry) { r.probePeriod = d }
}

func WithLogger(l *logging.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

func WithEventBus(b *observability.Bus) Option {
	return func(r *Registry) { r.events = b }
}

// New constructs a Registry. historySize is the K in spec section 3's
// LatencyHistory (bounded by the most recent K samples); pass 0 for the
// spec default of 100.
func New(historySize int, opts ...Option) *Registry {
	r := &Registry{
		nodes:       make(map[string]*types.Node),
		history:     newLatencyHistory(historySize),
		probePeriod: defaultProbePeriod,
		logger:      logging.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.checker == nil {
		r.checker = httpHealthChecker{client: &http.Client{}}
	}
	return r
}

// Register adds a node to the registry, or updates it in place if the
// node_id already exists. Registered nodes are never removed.
func (r *Registry) Register(n types.Node) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n.Status == "" {
		n.Status = types.NodeUnknown
	}
	if _, exists := r.nodes[n.NodeID]; !exists {
		r.order = append(r.order, n.NodeID)
	}
	nodeCopy := n
	r.nodes[n.NodeID] = &nodeCopy

	r.publish(observability.StageEvent{
		Stage:   "registry",
		Kind:    "node_registered",
		NodeID:  n.NodeID,
		Message: string(n.Status),
	})
}

// Available returns a snapshot of all HEALTHY nodes, in registration order —
// the only eligibility rule spec section 3 places on task assignment and
// replica placement.
func (r *Registry) Available() []types.Node {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.Node, 0, len(r.order))
	for _, id := range r.order {
		n := r.nodes[id]
		if n != nil && n.IsHealthy() {
			out = append(out, *n)
		}
	}
	return out
}

// All returns a snapshot of every registered node regardless of status, in
// registration order.
func (r *Registry) All() []types.Node {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.Node, 0, len(r.order))
	for _, id := range r.order {
		if n := r.nodes[id]; n != nil {
			out = append(out, *n)
		}
	}
	return out
}

// Get returns a snapshot of one node by id.
func (r *Registry) Get(nodeID string) (types.Node, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.nodes[nodeID]
	if !ok {
		return types.Node{}, false
	}
	return *n, true
}

// RecordLatency appends a latency sample for a provider (ms), mirroring it
// to the shared cache when one is configured.
func (r *Registry) RecordLatency(provider types.Provider, ms float64) {
	r.history.record(provider, ms)
	if r.cache != nil {
		r.cache.RecordLatency(context.Background(), provider, ms)
	}
}

// AdaptiveTimeout computes the per-provider deadline used for both health
// probes and application messages (spec section 4.1): 5s until 10 samples
// exist, then max(1s, 3*p95(history)/1000).
func (r *Registry) AdaptiveTimeout(provider types.Provider) time.Duration {
	samples := r.history.snapshot(provider)
	if r.cache != nil && len(samples) < minSamplesForAdaptive {
		if cached := r.cache.RecentLatencies(context.Background(), provider); len(cached) > len(samples) {
			samples = cached
		}
	}
	if len(samples) < minSamplesForAdaptive {
		return defaultTimeout
	}

	p := p95(samples)
	timeout := time.Duration(3*p) * time.Millisecond
	if timeout < minAdaptiveTimeout {
		return minAdaptiveTimeout
	}
	return timeout
}

// setStatus mutates a node's status; only the monitor goroutine calls this,
// preserving the single-writer invariant.
func (r *Registry) setStatus(nodeID string, status types.NodeStatus, heartbeat bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.nodes[nodeID]
	if !ok {
		return
	}
	n.Status = status
	if heartbeat {
		n.LastHeartbeat = time.Now()
	}
}

func (r *Registry) publish(evt observability.StageEvent) {
	if r.events != nil {
		r.events.Publish(evt)
	}
}

// nodeIDsSnapshot returns the registration-ordered list of node IDs to
// probe, without holding the lock during the probes themselves.
func (r *Registry) nodeIDsSnapshot() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) nodeSnapshot(nodeID string) (types.Node, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.nodes[nodeID]
	if !ok {
		return types.Node{}, false
	}
	return *n, true
}

// Monitor runs the health-probe loop until ctx is canceled, probing every
// registered node once per probePeriod with one probe in flight per node at
// a time (spec section 5 concurrency ceiling).
func (r *Registry) Monitor(ctx context.Context) {
	ticker := time.NewTicker(r.probePeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.probeAll(ctx)
		}
	}
}

// ProbeOnce runs a single round of health checks synchronously; exported for
// tests and for callers who want an immediate health sweep (e.g. batch start
// readiness checks) instead of waiting for the ticker.
func (r *Registry) ProbeOnce(ctx context.Context) {
	r.probeAll(ctx)
}

func (r *Registry) probeAll(ctx context.Context) {
	ids := r.nodeIDsSnapshot()

	var wg sync.WaitGroup
	for _, id := range ids {
		id := id
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.probeOne(ctx, id)
		}()
	}
	wg.Wait()
}

func (r *Registry) probeOne(ctx context.Context, nodeID string) {
	node, ok := r.nodeSnapshot(nodeID)
	if !ok {
		return
	}

	timeout := r.AdaptiveTimeout(node.Provider)
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := r.checker.CheckHealth(probeCtx, node.Endpoint, timeout)
	elapsed := time.Since(start)

	if err == nil {
		r.setStatus(nodeID, types.NodeHealthy, true)
		r.RecordLatency(node.Provider, float64(elapsed.Milliseconds()))
		return
	}

	pe, _ := errors.As(err)
	kind := errors.KindTransportError
	if pe != nil {
		kind = pe.Kind
	}

	switch {
	case probeCtx.Err() == context.DeadlineExceeded:
		r.setStatus(nodeID, types.NodeDegraded, false)
		r.logFailure(nodeID, errors.KindHealthCheckTimeout,
			"health check timeout", timeout, elapsed)
	case kind == errors.KindTransportError:
		r.setStatus(nodeID, types.NodeDegraded, false)
		r.logFailure(nodeID, errors.KindTransportError, "network error", timeout, elapsed)
	default:
		r.setStatus(nodeID, types.NodeFailed, false)
		r.logFailure(nodeID, errors.KindStageFatal, "unexpected health check error", timeout, elapsed)
	}
}

func (r *Registry) logFailure(nodeID string, kind errors.Kind, message string, expected, actual time.Duration) {
	pe := errors.New(kind, message).WithNode(nodeID).Build()

	r.mu.Lock()
	r.failures = append(r.failures, *pe)
	r.mu.Unlock()

	r.logger.Warn("health check failure",
		"node_id", nodeID,
		"kind", kind,
		"expected_ms", expected.Milliseconds(),
		"actual_ms", actual.Milliseconds(),
	)
	r.publish(observability.StageEvent{
		Stage:   "registry",
		Kind:    string(kind),
		NodeID:  nodeID,
		Message: message,
	})
}

// FailureLog returns a snapshot of every classified health failure recorded
// so far.
func (r *Registry) FailureLog() []errors.PipelineError {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]errors.PipelineError, len(r.failures))
	copy(out, r.failures)
	return out
}

// httpHealthChecker is the default HealthChecker: GET http://endpoint:8081/health.
type httpHealthChecker struct {
	client *http.Client
}

func (h httpHealthChecker) CheckHealth(ctx context.Context, endpoint string, timeout time.Duration) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+endpoint+":8081/health", nil)
	if err != nil {
		return errors.New(errors.KindTransportError, "build health request").WithCause(err).Build()
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return errors.New(errors.KindTransportError, "health request failed").WithCause(err).Build()
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.New(errors.KindNodeUnreachable, "health endpoint non-2xx").Build()
	}
	return nil
}

// sortedProviders is a small helper used by callers that want deterministic
// iteration over the provider set (e.g. reporting), not required by any
// invariant but keeps output stable across runs.
func sortedProviders(m map[types.Provider][]float64) []types.Provider {
	out := make([]types.Provider, 0, len(m))
	for p := range m {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
