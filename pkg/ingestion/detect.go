// Package ingestion implements provider auto-detection, chunked file
// reading, and initial fan-out to nodes (spec section 4.3 / C3), grounded
// in original_source/src/pipeline/ingestion_engine.py's CloudDetector and
// DataIngestionEngine.
package ingestion

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cloudmesh/pipeline/pkg/types"
)

const metadataProbeTimeout = 1 * time.Second

// DetectProvider identifies which cloud this process is running on: an
// explicit CLOUD_PROVIDER environment override wins, otherwise it probes
// each cloud's instance-metadata endpoint in turn, falling back to
// ProviderLocal for local development (exactly the original's
// CloudDetector.detect_cloud_provider precedence).
func DetectProvider(ctx context.Context, envOverride string) types.Provider {
	if p := normalizeProvider(envOverride); p != "" {
		return p
	}

	client := &http.Client{Timeout: metadataProbeTimeout}

	if probeMetadata(ctx, client, "http://169.254.169.254/latest/meta-data/instance-id", nil) {
		return types.ProviderAWS
	}
	if probeMetadata(ctx, client, "http://metadata.google.internal/computeMetadata/v1/instance/id",
		map[string]string{"Metadata-Flavor": "Google"}) {
		return types.ProviderGCP
	}
	if probeMetadata(ctx, client, "http://169.254.169.254/metadata/instance?api-version=2021-02-01",
		map[string]string{"Metadata": "true"}) {
		return types.ProviderAzure
	}
	return types.ProviderLocal
}

func normalizeProvider(env string) types.Provider {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "aws":
		return types.ProviderAWS
	case "gcp":
		return types.ProviderGCP
	case "azure":
		return types.ProviderAzure
	default:
		return ""
	}
}

func probeMetadata(ctx context.Context, client *http.Client, url string, headers map[string]string) bool {
	probeCtx, cancel := context.WithTimeout(ctx, metadataProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
