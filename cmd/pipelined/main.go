// Command pipelined is the cloudmesh pipeline's CLI entry point: load a
// cluster config, wire every stage, and either run one batch to completion
// (run), check a config file (validate), or serve the control-plane API
// and health monitor indefinitely (serve). Grounded in the upstream
// cluster project's cobra-based cmd/node layout.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	root := &cobra.Command{
		Use:   "pipelined",
		Short: "Multi-cloud data pipeline orchestrator",
		Long: `pipelined drives a multi-cloud data pipeline: ingest from a data
source, process chunks across a distributed worker pool, replicate them
across cloud providers, and store the durable result.`,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "path to cluster config file")

	root.AddCommand(runCmd())
	root.AddCommand(validateCmd())
	root.AddCommand(serveCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
