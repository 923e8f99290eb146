package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cloudmesh/pipeline/pkg/config"
	"github.com/cloudmesh/pipeline/pkg/distribution"
	"github.com/cloudmesh/pipeline/pkg/ingestion"
	"github.com/cloudmesh/pipeline/pkg/logging"
	"github.com/cloudmesh/pipeline/pkg/observability"
	"github.com/cloudmesh/pipeline/pkg/orchestrator"
	"github.com/cloudmesh/pipeline/pkg/registry"
	"github.com/cloudmesh/pipeline/pkg/registry/latencycache"
	"github.com/cloudmesh/pipeline/pkg/scheduler"
	"github.com/cloudmesh/pipeline/pkg/storage"
	"github.com/cloudmesh/pipeline/pkg/storage/pgindex"
	"github.com/cloudmesh/pipeline/pkg/transport"
	"github.com/cloudmesh/pipeline/pkg/types"
)

// cluster bundles every wired collaborator a subcommand needs, the Go
// equivalent of the original's manually-wired demo in run_ingestion.py's
// main(), generalized to every stage instead of just ingestion.
type cluster struct {
	logger *logging.Logger
	events *observability.Bus
	reg    *registry.Registry
	ht     *transport.HTTPTransport
	orch   *orchestrator.Orchestrator
}

// transportHealthChecker adapts HTTPTransport's endpoint/timeout probe to
// registry.HealthChecker's interface.
type transportHealthChecker struct {
	t *transport.HTTPTransport
}

func (a transportHealthChecker) CheckHealth(ctx context.Context, endpoint string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return a.t.RegistryCheckHealth(ctx, endpoint, timeout)
}

// wire constructs every pipeline component from a validated Config,
// matching spec section 1's boundary: the core accepts a Config value,
// nothing downstream parses YAML itself.
func wire(cfg config.Config) (*cluster, error) {
	logger := logging.New(logging.Config{
		Format:      logging.FormatJSON,
		ServiceName: "pipelined",
	})
	events := observability.NewBus(0)

	perProviderRPS := make(map[types.Provider]float64)
	for name, p := range cfg.Providers {
		if p.APIRateLimit > 0 {
			perProviderRPS[types.Provider(name)] = float64(p.APIRateLimit)
		}
	}
	ht := transport.NewHTTP(cfg.NodeID, perProviderRPS, 20)

	regOpts := []registry.Option{
		registry.WithLogger(logger.With("component", "registry")),
		registry.WithEventBus(events),
		registry.WithProbePeriod(cfg.Registry.HeartbeatInterval),
		registry.WithHealthChecker(transportHealthChecker{t: ht}),
	}
	if cfg.Registry.LatencyCacheAddr != "" {
		cache := latencycache.New(cfg.Registry.LatencyCacheAddr, logger.With("component", "latencycache"))
		regOpts = append(regOpts, registry.WithCache(cache))
	}
	reg := registry.New(cfg.Registry.LatencyHistorySize, regOpts...)

	provider := ingestion.DetectProvider(context.Background(), os.Getenv("CLOUD_PROVIDER"))
	engine := ingestion.New(ingestion.Config{
		ChunkSizeBytes: cfg.ChunkSizeBytes(),
		RetryAttempts:  cfg.IngestionRetryAttempts,
		RetryDelay:     cfg.IngestionRetryDelay,
		Provider:       provider,
	}, ht, logger.With("component", "ingestion"), events)

	steps, timeouts := buildSteps(cfg)
	pool := scheduler.New(scheduler.Config{
		MaxWorkersPerNode:  cfg.MaxWorkersPerNode,
		MaxConcurrentTasks: cfg.MaxConcurrentTasks,
		Strategy:           scheduler.Strategy(cfg.LoadBalancing),
		MaxRetries:         cfg.ProcessingFailure.MaxRetries,
		RetryDelay:         cfg.ProcessingFailure.RetryDelay,
		ExponentialBackoff: cfg.ProcessingFailure.ExponentialBackoff,
		Steps:              steps,
		StepTimeouts:        timeouts,
	}, logger.With("component", "scheduler"), events)

	placement := distribution.NewPlacementStrategy(cfg.Placement)
	topology := distribution.NewNetworkTopology(cfg.Network)
	coordinator := distribution.New(distribution.Config{
		ReplicationFactor:          cfg.ReplicationFactor,
		MinReplicasSuccess:         cfg.MinReplicasSuccess,
		MaxConcurrentDistributions: cfg.MaxConcurrentDistributions,
		DistributionTimeout:        cfg.DistributionTimeout,
		VerifyAfterDistribution:    cfg.VerifyAfterDistribution,
		MaxRetries:                 cfg.DistributionFailure.MaxRetries,
		RetryDelay:                 cfg.DistributionFailure.RetryDelay,
	}, placement, topology, ht, logger.With("component", "distribution"), events)

	dataBackend, err := storage.NewLocalBackend(cfg.Storage.DataRoot)
	if err != nil {
		return nil, fmt.Errorf("storage data backend: %w", err)
	}
	metadataBackend, err := storage.NewLocalBackend(cfg.Storage.MetadataRoot)
	if err != nil {
		return nil, fmt.Errorf("storage metadata backend: %w", err)
	}

	var index storage.Index
	if cfg.Storage.IndexBackend == "postgres" {
		idx, err := pgindex.Open(cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("storage postgres index: %w", err)
		}
		index = idx
	}

	mgr := storage.New(cfg.Storage, dataBackend, metadataBackend, index, logger.With("component", "storage"), events)

	orch := orchestrator.New(reg, engine, pool, coordinator, mgr, logger.With("component", "orchestrator"), events)

	return &cluster{logger: logger, events: events, reg: reg, ht: ht, orch: orch}, nil
}

func buildSteps(cfg config.Config) ([]scheduler.Step, []time.Duration) {
	var steps []scheduler.Step
	var timeouts []time.Duration
	for _, s := range cfg.ProcessingPipeline {
		if !s.Enabled {
			continue
		}
		var step scheduler.Step
		switch s.Name {
		case "validate":
			step = scheduler.ValidateStep{}
		case "transform":
			step = scheduler.TransformStep{}
		case "compress":
			step = scheduler.CompressStep{}
		default:
			continue
		}
		steps = append(steps, step)
		timeouts = append(timeouts, s.Timeout)
	}
	return steps, timeouts
}
