package scheduler

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cloudmesh/pipeline/pkg/logging"
	"github.com/cloudmesh/pipeline/pkg/observability"
	"github.com/cloudmesh/pipeline/pkg/types"
)

// Strategy selects which node a pending task is assigned to.
type Strategy string

const (
	StrategyRoundRobin  Strategy = "round_robin"
	StrategyLeastLoaded Strategy = "least_loaded"
	StrategyRandom      Strategy = "random"
)

// Config configures a Pool, mirroring
// ProcessingWorkerPool's config surface in the original implementation.
type Config struct {
	MaxWorkersPerNode  int
	MaxConcurrentTasks int
	Strategy           Strategy
	MaxRetries         int
	RetryDelay         time.Duration
	ExponentialBackoff bool
	Steps              []Step
	StepTimeouts       []time.Duration
}

// Pool is the distributed processing worker pool: it assigns pending tasks
// to healthy nodes up to a per-node worker ceiling and a global concurrency
// ceiling, runs the processing pipeline for each, and retries failed tasks
// with backoff up to MaxRetries (spec section 4.4).
type Pool struct {
	cfg    Config
	logger *logging.Logger
	events *observability.Bus

	mu        sync.Mutex
	workloads map[string]*types.NodeWorkload
	order     []string // node IDs in the order ProcessChunks received them
	completed []types.ProcessingTask
	failed    []types.ProcessingTask
	rrCursor  int
}

// New constructs a Pool. A zero-value Config field falls back to the
// documented spec default for that field.
func New(cfg Config, logger *logging.Logger, events *observability.Bus) *Pool {
	if cfg.MaxWorkersPerNode <= 0 {
		cfg.MaxWorkersPerNode = 4
	}
	if cfg.MaxConcurrentTasks <= 0 {
		cfg.MaxConcurrentTasks = 20
	}
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyLeastLoaded
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Pool{
		cfg:       cfg,
		logger:    logger,
		events:    events,
		workloads: make(map[string]*types.NodeWorkload),
	}
}

// ProcessChunks is the pool's main entry point: it assigns every chunk a
// ProcessingTask, drives them to completion across the given healthy nodes
// under the pool's concurrency ceiling, and returns every completed and
// failed task.
func (p *Pool) ProcessChunks(ctx context.Context, chunks []types.DataChunk, nodes []types.Node) []types.ProcessingTask {
	p.resetWorkloads(nodes)

	pending := make([]*types.ProcessingTask, 0, len(chunks))
	for _, chunk := range chunks {
		pending = append(pending, &types.ProcessingTask{
			TaskID:    uuid.NewString(),
			ChunkID:   chunk.ChunkID,
			PayloadIn: chunk.Payload,
			Status:    types.ProcessingPending,
		})
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, p.cfg.MaxConcurrentTasks)

	for len(pending) > 0 {
		node := p.selectNode()
		if node == "" {
			// no node has spare capacity right now; give the in-flight
			// workers a moment to finish before re-polling.
			time.Sleep(50 * time.Millisecond)
			continue
		}

		task := pending[0]
		pending = pending[1:]
		task.AssignedNode = node
		task.Status = types.ProcessingRunning
		p.incrementActive(node)

		sem <- struct{}{}
		wg.Add(1)
		go func(t *types.ProcessingTask) {
			defer wg.Done()
			defer func() { <-sem }()
			p.runTask(ctx, t)
		}(task)
	}

	wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]types.ProcessingTask, 0, len(p.completed)+len(p.failed))
	out = append(out, p.completed...)
	out = append(out, p.failed...)
	return out
}

func (p *Pool) resetWorkloads(nodes []types.Node) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.workloads = make(map[string]*types.NodeWorkload)
	p.order = make([]string, 0, len(nodes))
	for _, n := range nodes {
		p.workloads[n.NodeID] = &types.NodeWorkload{NodeID: n.NodeID, Provider: n.Provider}
		p.order = append(p.order, n.NodeID)
	}
}

// selectNode picks a node with spare capacity per the configured strategy,
// returning "" if every node is saturated.
func (p *Pool) selectNode() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	available := make([]string, 0, len(p.workloads))
	for _, id := range p.order {
		if w := p.workloads[id]; w.Active < p.cfg.MaxWorkersPerNode {
			available = append(available, id)
		}
	}
	if len(available) == 0 {
		return ""
	}

	switch p.cfg.Strategy {
	case StrategyRoundRobin:
		id := available[p.rrCursor%len(available)]
		p.rrCursor++
		return id
	case StrategyRandom:
		return available[rand.Intn(len(available))]
	default: // least_loaded
		best := available[0]
		bestLoad := p.workloads[best].Load(p.cfg.MaxWorkersPerNode)
		for _, id := range available[1:] {
			load := p.workloads[id].Load(p.cfg.MaxWorkersPerNode)
			if load < bestLoad {
				best, bestLoad = id, load
			}
		}
		return best
	}
}

func (p *Pool) incrementActive(nodeID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if w, ok := p.workloads[nodeID]; ok {
		w.Active++
	}
}

func (p *Pool) runTask(ctx context.Context, task *types.ProcessingTask) {
	task.Start = time.Now()

	result, failedStep, err := runPipeline(ctx, p.cfg.Steps, p.cfg.StepTimeouts, task.PayloadIn)
	task.End = time.Now()

	p.mu.Lock()
	w := p.workloads[task.AssignedNode]
	p.mu.Unlock()

	if err == nil {
		task.Status = types.ProcessingCompleted
		task.PayloadOut = result

		p.mu.Lock()
		if w != nil {
			w.Active--
			w.Completed++
		}
		p.completed = append(p.completed, *task)
		p.mu.Unlock()

		p.publish(task, "task_completed", "")
		return
	}

	task.Attempts++
	task.Error = err.Error()

	p.mu.Lock()
	if w != nil {
		w.Active--
		w.Failed++
	}
	p.mu.Unlock()

	p.publish(task, "task_failed", fmt.Sprintf("step=%s err=%v", failedStep, err))

	if task.Attempts < p.cfg.MaxRetries {
		delay := p.cfg.RetryDelay
		if p.cfg.ExponentialBackoff {
			delay = p.cfg.RetryDelay * time.Duration(1<<uint(task.Attempts-1))
		}
		p.logger.Warn("processing task failed, retrying", "task_id", task.TaskID,
			"attempt", task.Attempts, "max_retries", p.cfg.MaxRetries, "delay", delay)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
		}

		task.Status = types.ProcessingRetrying
		task.AssignedNode = ""
		p.runTask(ctx, p.reassign(task))
		return
	}

	p.logger.Error("processing task failed permanently", "task_id", task.TaskID, "attempts", task.Attempts)
	task.Status = types.ProcessingFailed
	task.AssignedNode = ""
	p.mu.Lock()
	p.failed = append(p.failed, *task)
	p.mu.Unlock()
}

// reassign picks a fresh node for a retried task, blocking briefly if none
// currently has capacity.
func (p *Pool) reassign(task *types.ProcessingTask) *types.ProcessingTask {
	for {
		node := p.selectNode()
		if node != "" {
			task.AssignedNode = node
			task.Status = types.ProcessingRunning
			p.incrementActive(node)
			return task
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func (p *Pool) publish(task *types.ProcessingTask, kind, message string) {
	if p.events == nil {
		return
	}
	p.events.Publish(observability.StageEvent{
		Stage:   "scheduler",
		Kind:    kind,
		ChunkID: task.ChunkID,
		NodeID:  task.AssignedNode,
		Message: message,
	})
}

// Statistics summarizes the pool's processing outcomes: completed and failed
// task counts and the average duration of the completed tasks.
func (p *Pool) Statistics() (completed, failed int, avgDuration time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	completed = len(p.completed)
	failed = len(p.failed)
	if completed == 0 {
		return
	}
	var total time.Duration
	for _, t := range p.completed {
		total += t.Duration()
	}
	avgDuration = total / time.Duration(completed)
	return
}
