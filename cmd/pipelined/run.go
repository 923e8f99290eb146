package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloudmesh/pipeline/pkg/config"
	"github.com/cloudmesh/pipeline/pkg/ingestion/source"
	"github.com/cloudmesh/pipeline/pkg/orchestrator"
)

func runCmd() *cobra.Command {
	var batchID, dataSource, nodesFile string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one batch through the full pipeline to completion",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}

			c, err := wire(cfg)
			if err != nil {
				return err
			}

			nodes, err := loadNodeFixtures(nodesFile)
			if err != nil {
				return err
			}
			for _, n := range nodes {
				c.reg.Register(n)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			c.reg.ProbeOnce(ctx)

			src := source.NewLocal(dataSource)
			runID := orchestrator.RunID(batchID, time.Now())
			result := c.orch.RunBatch(ctx, src, orchestrator.BatchConfig{
				BatchID:    batchID,
				DataSource: dataSource,
			}, runID)

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return fmt.Errorf("encode result: %w", err)
			}

			if result.Status != "COMPLETED" {
				return fmt.Errorf("batch %s: %s", result.Status, result.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&batchID, "batch-id", "batch_001", "batch identifier")
	cmd.Flags().StringVar(&dataSource, "data-source", "", "path to a local data source directory")
	cmd.Flags().StringVar(&nodesFile, "nodes", "", "path to a YAML node fixtures file")
	cmd.MarkFlagRequired("data-source")

	return cmd
}
