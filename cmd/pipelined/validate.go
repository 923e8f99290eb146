package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cloudmesh/pipeline/pkg/config"
)

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate a cluster config file without running anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			fmt.Printf("config OK: cluster=%s providers=%d replication_factor=%d min_replicas_success=%d\n",
				cfg.ClusterName, len(cfg.Providers), cfg.ReplicationFactor, cfg.MinReplicasSuccess)
			return nil
		},
	}
}
