package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cloudmesh/pipeline/pkg/orchestrator"
	"github.com/cloudmesh/pipeline/pkg/types"
)

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type startBatchRequest struct {
	BatchID        string `json:"batch_id" binding:"required"`
	DataSource     string `json:"data_source" binding:"required"`
	ExpectedSizeMB int    `json:"expected_size_mb"`
}

// handleStartBatch starts a batch run in the background and returns its
// run_id immediately (spec section 4.9: POST /v1/batches).
func (s *Server) handleStartBatch(c *gin.Context) {
	var req startBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	if s.orch.Running() {
		c.JSON(http.StatusConflict, gin.H{"error": "batch_already_running"})
		return
	}

	src, err := localSource(req.DataSource)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_data_source", "message": err.Error()})
		return
	}

	cfg := orchestrator.BatchConfig{
		BatchID:        req.BatchID,
		DataSource:     req.DataSource,
		ExpectedSizeMB: req.ExpectedSizeMB,
	}
	runID := orchestrator.RunID(req.BatchID, time.Now())

	go func() {
		result := s.orch.RunBatch(context.Background(), src, cfg, runID)
		s.storeResult(runID, result)
	}()

	c.JSON(http.StatusAccepted, gin.H{"run_id": runID, "status": types.BatchRunning})
}

// handleGetBatch reports a run's status, per-stage metrics, and — once
// finished — its result (spec section 4.9: GET /v1/batches/{run_id}).
func (s *Server) handleGetBatch(c *gin.Context) {
	runID := c.Param("run_id")

	if result, ok := s.lookupResult(runID); ok {
		c.JSON(http.StatusOK, result)
		return
	}

	status, batchID, stage, metrics := s.orch.Status()
	if status == types.BatchRunning {
		c.JSON(http.StatusOK, gin.H{
			"run_id":          runID,
			"status":          status,
			"current_batch":   batchID,
			"current_stage":   stage,
			"metrics_by_stage": metrics,
		})
		return
	}

	c.JSON(http.StatusNotFound, gin.H{"error": "run_not_found", "run_id": runID})
}

type registerNodeRequest struct {
	NodeID   string            `json:"node_id" binding:"required"`
	Provider string            `json:"provider" binding:"required"`
	Region   string            `json:"region"`
	Endpoint string            `json:"endpoint" binding:"required"`
	Roles    []string          `json:"roles"`
	Metadata map[string]string `json:"metadata"`
}

// handleRegisterNode registers a new cluster node (spec section 4.9:
// POST /v1/nodes). Newly registered nodes start UNKNOWN and are picked up
// by the next health-monitor probe round.
func (s *Server) handleRegisterNode(c *gin.Context) {
	var req registerNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	node := types.Node{
		NodeID:        req.NodeID,
		Provider:      types.Provider(req.Provider),
		Region:        req.Region,
		Endpoint:      req.Endpoint,
		Roles:         req.Roles,
		Status:        types.NodeUnknown,
		LastHeartbeat: time.Now(),
		Metadata:      req.Metadata,
	}
	s.reg.Register(node)

	c.JSON(http.StatusCreated, node)
}

// handleListNodes lists every registered node and its current status (spec
// section 4.9: GET /v1/nodes).
func (s *Server) handleListNodes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"nodes": s.reg.All()})
}
