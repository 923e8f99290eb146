package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudmesh/pipeline/pkg/types"
)

func TestLoadNodeFixturesEmptyPathReturnsNothing(t *testing.T) {
	nodes, err := loadNodeFixtures("")
	require.NoError(t, err)
	assert.Nil(t, nodes)
}

func TestLoadNodeFixturesParsesYAMLAndDefaultsStatusToHealthy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nodes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- node_id: aws-1
  provider: aws
  region: us-east-1
  endpoint: http://aws-1
- node_id: gcp-1
  provider: gcp
  endpoint: http://gcp-1
  status: DEGRADED
`), 0o644))

	nodes, err := loadNodeFixtures(path)
	require.NoError(t, err)
	require.Len(t, nodes, 2)

	assert.Equal(t, "aws-1", nodes[0].NodeID)
	assert.Equal(t, types.ProviderAWS, nodes[0].Provider)
	assert.Equal(t, types.NodeHealthy, nodes[0].Status, "missing status defaults to HEALTHY")

	assert.Equal(t, types.NodeStatus("DEGRADED"), nodes[1].Status)
}

func TestLoadNodeFixturesMissingFileErrors(t *testing.T) {
	_, err := loadNodeFixtures(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadNodeFixturesMalformedYAMLErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nodes.yaml")
	require.NoError(t, os.WriteFile(path, []byte("not: [a, list"), 0o644))
	_, err := loadNodeFixtures(path)
	assert.Error(t, err)
}
