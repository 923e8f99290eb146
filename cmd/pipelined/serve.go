package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cloudmesh/pipeline/pkg/api"
	"github.com/cloudmesh/pipeline/pkg/config"
)

func serveCmd() *cobra.Command {
	var nodesFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the control-plane API and run the node health monitor indefinitely",
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

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			go c.reg.Monitor(ctx)

			server := api.NewServer(cfg.API, c.orch, c.reg, c.events, c.logger.With("component", "api"))
			c.logger.Info("pipelined serving", "listen_addr", cfg.API.ListenAddr)
			return server.Serve(ctx)
		},
	}

	cmd.Flags().StringVar(&nodesFile, "nodes", "", "path to a YAML node fixtures file")

	return cmd
}
