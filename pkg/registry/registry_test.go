package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudmesh/pipeline/pkg/types"
)

type fakeChecker struct {
	err error
}

func (f fakeChecker) CheckHealth(ctx context.Context, endpoint string, timeout time.Duration) error {
	return f.err
}

func TestRegisterAndAvailable(t *testing.T) {
	r := New(0, WithHealthChecker(fakeChecker{}))
	r.Register(types.Node{NodeID: "n1", Provider: types.ProviderAWS, Endpoint: "http://n1", Status: types.NodeHealthy})
	r.Register(types.Node{NodeID: "n2", Provider: types.ProviderGCP, Endpoint: "http://n2", Status: types.NodeDegraded})

	all := r.All()
	require.Len(t, all, 2)
	assert.Equal(t, "n1", all[0].NodeID)
	assert.Equal(t, "n2", all[1].NodeID)

	available := r.Available()
	require.Len(t, available, 1)
	assert.Equal(t, "n1", available[0].NodeID)
}

func TestRegisterUpdatesInPlaceWithoutDuplicateOrdering(t *testing.T) {
	r := New(0, WithHealthChecker(fakeChecker{}))
	r.Register(types.Node{NodeID: "n1", Status: types.NodeHealthy})
	r.Register(types.Node{NodeID: "n1", Status: types.NodeDegraded})

	all := r.All()
	require.Len(t, all, 1)
	assert.Equal(t, types.NodeDegraded, all[0].Status)
}

func TestAdaptiveTimeoutDefaultsBelowMinSamples(t *testing.T) {
	r := New(0, WithHealthChecker(fakeChecker{}))
	for i := 0; i < minSamplesForAdaptive-1; i++ {
		r.RecordLatency(types.ProviderAWS, 500)
	}
	assert.Equal(t, defaultTimeout, r.AdaptiveTimeout(types.ProviderAWS))
}

func TestAdaptiveTimeoutMonotonicAsHistoryGrows(t *testing.T) {
	r := New(0, WithHealthChecker(fakeChecker{}))

	for i := 0; i < minSamplesForAdaptive; i++ {
		r.RecordLatency(types.ProviderAWS, 100)
	}
	first := r.AdaptiveTimeout(types.ProviderAWS)

	for i := 0; i < 5; i++ {
		r.RecordLatency(types.ProviderAWS, 100+float64(i+1)*50)
	}
	second := r.AdaptiveTimeout(types.ProviderAWS)

	assert.GreaterOrEqual(t, second, first)
}

func TestAdaptiveTimeoutNeverBelowMinimum(t *testing.T) {
	r := New(0, WithHealthChecker(fakeChecker{}))
	for i := 0; i < minSamplesForAdaptive; i++ {
		r.RecordLatency(types.ProviderAWS, 0.001)
	}
	assert.GreaterOrEqual(t, r.AdaptiveTimeout(types.ProviderAWS), minAdaptiveTimeout)
}

func TestProbeOnceMarksHealthyOnSuccess(t *testing.T) {
	r := New(0, WithHealthChecker(fakeChecker{}))
	r.Register(types.Node{NodeID: "n1", Provider: types.ProviderAWS, Endpoint: "http://n1"})

	r.ProbeOnce(context.Background())

	n, ok := r.Get("n1")
	require.True(t, ok)
	assert.Equal(t, types.NodeHealthy, n.Status)
}

func TestProbeOnceMarksDegradedOnTransportError(t *testing.T) {
	r := New(0, WithHealthChecker(fakeChecker{err: errors.New("dial tcp: connection refused")}))
	r.Register(types.Node{NodeID: "n1", Provider: types.ProviderAWS, Endpoint: "http://n1"})

	r.ProbeOnce(context.Background())

	n, ok := r.Get("n1")
	require.True(t, ok)
	assert.Equal(t, types.NodeDegraded, n.Status)
}
