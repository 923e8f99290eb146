// Package api is the control-plane HTTP surface (spec section 4.9,
// expansion): a gin server separate from the inter-node wire protocol in
// pkg/transport, for starting batch runs, querying their status, managing
// the node registry, and streaming the observability event bus to a
// dashboard over WebSocket. Grounded in the upstream cluster project's
// pkg/api.Server.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/cloudmesh/pipeline/pkg/config"
	"github.com/cloudmesh/pipeline/pkg/ingestion/source"
	"github.com/cloudmesh/pipeline/pkg/logging"
	"github.com/cloudmesh/pipeline/pkg/observability"
	"github.com/cloudmesh/pipeline/pkg/orchestrator"
	"github.com/cloudmesh/pipeline/pkg/registry"
	"github.com/cloudmesh/pipeline/pkg/types"
)

// Server is the control-plane HTTP API.
type Server struct {
	cfg    config.APIConfig
	orch   *orchestrator.Orchestrator
	reg    *registry.Registry
	events *observability.Bus
	logger *logging.Logger

	router *gin.Engine
	http   *http.Server

	mu      sync.Mutex
	results map[string]types.BatchResult
}

// NewServer wires a Server around an already-constructed Orchestrator and
// Registry, the same collaborators run_ingestion.py's demo wires by hand.
func NewServer(cfg config.APIConfig, orch *orchestrator.Orchestrator, reg *registry.Registry, events *observability.Bus, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	s := &Server{
		cfg:     cfg,
		orch:    orch,
		reg:     reg,
		events:  events,
		logger:  logger,
		results: make(map[string]types.BatchResult),
	}
	s.router = s.buildRouter()
	return s
}

// Handler returns the underlying http.Handler, for tests and for embedding
// in an external http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve starts listening on cfg.ListenAddr and blocks until ctx is
// cancelled, then shuts the server down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	s.http = &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api server listening", "addr", s.cfg.ListenAddr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

func (s *Server) buildRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(s.loggingMiddleware(), gin.Recovery(), s.corsMiddleware())

	router.GET("/healthz", s.handleHealthz)

	v1 := router.Group("/v1")
	{
		v1.GET("/events", s.handleEvents)

		v1.GET("/nodes", s.handleListNodes)
		v1.GET("/batches/:run_id", s.handleGetBatch)

		protected := v1.Group("/")
		protected.Use(s.requireAuth())
		{
			protected.POST("/batches", s.handleStartBatch)
			protected.POST("/nodes", s.handleRegisterNode)
		}
	}

	return router
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 1 && origins[0] == "*" {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return gin.LoggerWithFormatter(func(p gin.LogFormatterParams) string {
		s.logger.Info("http request",
			"method", p.Method, "path", p.Path, "status", p.StatusCode,
			"latency", p.Latency, "client_ip", p.ClientIP)
		return ""
	})
}

func (s *Server) storeResult(runID string, result types.BatchResult) {
	s.mu.Lock()
	s.results[runID] = result
	s.mu.Unlock()
}

func (s *Server) lookupResult(runID string) (types.BatchResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.results[runID]
	return r, ok
}

// localSource resolves a batch_config.data_source path to a Source. Only
// local filesystem sources are supported (pkg/ingestion/source's scope).
func localSource(path string) (source.Source, error) {
	if path == "" {
		return nil, fmt.Errorf("data_source is required")
	}
	return source.NewLocal(path), nil
}
