package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cloudmesh/pipeline/pkg/types"
)

// nodeFixture is the YAML shape of one entry in a --nodes file: a list of
// cluster members to pre-register before a batch runs, the CLI's analogue
// to run_ingestion.py's hand-constructed mock registry entries.
type nodeFixture struct {
	NodeID   string            `yaml:"node_id"`
	Provider string            `yaml:"provider"`
	Region   string            `yaml:"region"`
	Endpoint string            `yaml:"endpoint"`
	Roles    []string          `yaml:"roles"`
	Status   string            `yaml:"status"`
	Metadata map[string]string `yaml:"metadata"`
}

// loadNodeFixtures reads a YAML list of node fixtures from path and returns
// them as Nodes; the caller registers them. An empty path returns no nodes,
// leaving node registration to the control-plane API (serve mode's normal
// path).
func loadNodeFixtures(path string) ([]types.Node, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read nodes file %s: %w", path, err)
	}

	var fixtures []nodeFixture
	if err := yaml.Unmarshal(data, &fixtures); err != nil {
		return nil, fmt.Errorf("parse nodes file %s: %w", path, err)
	}

	nodes := make([]types.Node, 0, len(fixtures))
	for _, f := range fixtures {
		status := types.NodeStatus(f.Status)
		if status == "" {
			status = types.NodeHealthy
		}
		nodes = append(nodes, types.Node{
			NodeID:        f.NodeID,
			Provider:      types.Provider(f.Provider),
			Region:        f.Region,
			Endpoint:      f.Endpoint,
			Roles:         f.Roles,
			Status:        status,
			LastHeartbeat: time.Now(),
			Metadata:      f.Metadata,
		})
	}
	return nodes, nil
}
