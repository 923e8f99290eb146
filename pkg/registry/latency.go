package registry

import (
	"sort"
	"sync"

	"github.com/cloudmesh/pipeline/pkg/types"
)

// latencyHistory is a per-provider bounded, append-only, ordered sequence of
// the most recent K round-trip-time samples in milliseconds. Samples from
// failed probes are never appended (spec section 3: "samples from failed
// probes are excluded").
type latencyHistory struct {
	mu      sync.RWMutex
	samples map[types.Provider][]float64
	maxLen  int
}

func newLatencyHistory(maxLen int) *latencyHistory {
	if maxLen <= 0 {
		maxLen = 100
	}
	return &latencyHistory{
		samples: make(map[types.Provider][]float64),
		maxLen:  maxLen,
	}
}

// record appends a latency sample (ms) for a provider, trimming to the last
// maxLen entries.
func (h *latencyHistory) record(provider types.Provider, ms float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := append(h.samples[provider], ms)
	if len(s) > h.maxLen {
		s = s[len(s)-h.maxLen:]
	}
	h.samples[provider] = s
}

// snapshot returns a copy of the current samples for a provider so the
// caller can compute percentiles without holding the lock.
func (h *latencyHistory) snapshot(provider types.Provider) []float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	src := h.samples[provider]
	out := make([]float64, len(src))
	copy(out, src)
	return out
}

// p95 computes the 95th percentile of a sample set by linear interpolation
// between the closest ranks, numpy.percentile's default method; sorts a
// copy, never mutates the input.
func p95(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	// linear-interpolation percentile, same method numpy.percentile uses.
	rank := 0.95 * float64(len(sorted)-1)
	lo := int(rank)
	hi := lo + 1
	if hi >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
