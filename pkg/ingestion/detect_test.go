package ingestion

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cloudmesh/pipeline/pkg/types"
)

func TestDetectProviderHonorsEnvOverride(t *testing.T) {
	assert.Equal(t, types.ProviderAWS, DetectProvider(context.Background(), "aws"))
	assert.Equal(t, types.ProviderGCP, DetectProvider(context.Background(), "GCP"))
	assert.Equal(t, types.ProviderAzure, DetectProvider(context.Background(), " azure "))
}

func TestNormalizeProviderRejectsUnknownValues(t *testing.T) {
	assert.Equal(t, types.Provider(""), normalizeProvider("not-a-cloud"))
	assert.Equal(t, types.Provider(""), normalizeProvider(""))
}
