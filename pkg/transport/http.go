package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	pipelineerrors "github.com/cloudmesh/pipeline/pkg/errors"
	"github.com/cloudmesh/pipeline/pkg/types"
)

const defaultRetryAfter = 60 * time.Second

// HTTPTransport sends messages over plain HTTP POST /message and probes GET
// /health, pre-emptively rate limiting outbound requests per provider so
// this node doesn't trip the target cloud's own API limits (spec section
// 6's wire protocol, grounded in
// original_source/src/communication/protocol.py's
// CrossCloudCommunicationProtocol._send_http_message).
type HTTPTransport struct {
	client   *http.Client
	senderID string

	limiters map[types.Provider]*rate.Limiter
	fallback *rate.Limiter
}

// NewHTTP constructs an HTTPTransport. perProviderRPS configures a
// pre-emptive token-bucket rate limit per cloud provider; providers absent
// from the map fall back to fallbackRPS (0 means unlimited).
func NewHTTP(senderID string, perProviderRPS map[types.Provider]float64, fallbackRPS float64) *HTTPTransport {
	t := &HTTPTransport{
		client:   &http.Client{},
		senderID: senderID,
		limiters: make(map[types.Provider]*rate.Limiter),
	}
	for p, rps := range perProviderRPS {
		t.limiters[p] = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
	}
	if fallbackRPS > 0 {
		t.fallback = rate.NewLimiter(rate.Limit(fallbackRPS), max(1, int(fallbackRPS)))
	}
	return t
}

func (t *HTTPTransport) limiterFor(provider types.Provider) *rate.Limiter {
	if l, ok := t.limiters[provider]; ok {
		return l
	}
	return t.fallback
}

// Send posts a message to the target node's /message endpoint, classifying
// the outcome per spec section 7: 200 -> ok, 429 -> RATE_LIMITED (retryable,
// honoring Retry-After), context deadline -> HEALTH_CHECK_TIMEOUT, any other
// send failure or status -> TRANSPORT_ERROR.
func (t *HTTPTransport) Send(ctx context.Context, target types.Node, msg types.Message) error {
	if l := t.limiterFor(target.Provider); l != nil {
		if err := l.Wait(ctx); err != nil {
			return pipelineerrors.New(pipelineerrors.KindRateLimited, "pre-emptive rate limit wait canceled").
				WithNode(target.NodeID).WithCause(err).Build()
		}
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return pipelineerrors.New(pipelineerrors.KindTransportError, "marshal message").
			WithNode(target.NodeID).WithCause(err).Build()
	}

	url := fmt.Sprintf("http://%s:8080/message", target.Endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return pipelineerrors.New(pipelineerrors.KindTransportError, "build request").
			WithNode(target.NodeID).WithCause(err).Build()
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return pipelineerrors.New(pipelineerrors.KindHealthCheckTimeout, "send timed out").
				WithNode(target.NodeID).WithCause(err).Build()
		}
		return pipelineerrors.New(pipelineerrors.KindTransportError, "send failed").
			WithNode(target.NodeID).WithCause(err).Build()
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		return pipelineerrors.New(pipelineerrors.KindRateLimited, "target node rate limited this request").
			WithNode(target.NodeID).Retryable(retryAfter).Build()
	default:
		return pipelineerrors.New(pipelineerrors.KindTransportError,
			fmt.Sprintf("unexpected status %d", resp.StatusCode)).WithNode(target.NodeID).Build()
	}
}

// CheckHealth issues GET /health against the target node, satisfying
// registry.HealthChecker.
func (t *HTTPTransport) CheckHealth(ctx context.Context, target types.Node) error {
	url := fmt.Sprintf("http://%s:8081/health", target.Endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return pipelineerrors.New(pipelineerrors.KindTransportError, "build health request").
			WithNode(target.NodeID).WithCause(err).Build()
	}

	resp, err := t.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return pipelineerrors.New(pipelineerrors.KindHealthCheckTimeout, "health check timed out").
				WithNode(target.NodeID).WithCause(err).Build()
		}
		return pipelineerrors.New(pipelineerrors.KindTransportError, "health check failed").
			WithNode(target.NodeID).WithCause(err).Build()
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return pipelineerrors.New(pipelineerrors.KindNodeUnreachable, "health endpoint non-2xx").
			WithNode(target.NodeID).Build()
	}
	return nil
}

// RegistryCheckHealth adapts HTTPTransport to registry.HealthChecker's
// narrower (endpoint, timeout) signature; timeout is unused, the deadline
// comes from ctx.
func (t *HTTPTransport) RegistryCheckHealth(ctx context.Context, endpoint string, timeout time.Duration) error {
	return t.CheckHealth(ctx, types.Node{Endpoint: endpoint})
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return defaultRetryAfter
	}
	secs, err := strconv.Atoi(header)
	if err != nil || secs <= 0 {
		return defaultRetryAfter
	}
	return time.Duration(secs) * time.Second
}
