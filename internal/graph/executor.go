package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dcallag/stagehand/internal/delegate"
	"github.com/dcallag/stagehand/internal/logging"
	"github.com/dcallag/stagehand/pkg/models"
)

// ErrNodeTimeout indicates a node's per-node deadline fired.
// Distinguishable from ordinary execution errors via errors.Is.
var ErrNodeTimeout = errors.New("node execution timed out")

// ErrUnknownAgent indicates a task node references an unregistered agent.
var ErrUnknownAgent = errors.New("unknown agent")

// defaultOptimizeThreshold is the prompt length above which optimize mode
// delegates to sub-agents.
const defaultOptimizeThreshold = 2000

// AgentDirectory resolves agent profiles and their registered sub-agents.
type AgentDirectory interface {
	Agent(id string) (*models.Agent, bool)
	SubAgents(parentID string) []*models.Agent
}

// GraphStore persists graph snapshots after a run.
type GraphStore interface {
	UpdateGraph(g *models.Graph) error
}

// Options configures a run.
type Options struct {
	// MaxConcurrency overrides the graph's own bound when positive.
	MaxConcurrency int
	// NodeTimeout is the per-node deadline; zero means none.
	NodeTimeout time.Duration
	// GraphTimeout is the overall deadline. When it fires, in-flight nodes
	// are cancelled and unstarted nodes are skipped.
	GraphTimeout time.Duration
	// OptimizeDelegation enables the prompt-length heuristic that routes
	// large task prompts through sub-agents automatically.
	OptimizeDelegation bool
	// OptimizeThreshold is the prompt length that trips the heuristic.
	// Zero uses the default.
	OptimizeThreshold int
}

// ExecutionResult summarizes one graph run.
type ExecutionResult struct {
	// CompletedNodes is how many nodes finished successfully.
	CompletedNodes int
	// FailedNodes is how many nodes errored or timed out.
	FailedNodes int
	// SkippedNodes is how many nodes were never executed because a
	// dependency failed.
	SkippedNodes int
	// NodeResults maps node IDs to their result payloads.
	NodeResults map[string]string
	// NodeErrors maps node IDs to their error messages.
	NodeErrors map[string]string
	// Duration is wall-clock time for the run.
	Duration time.Duration
}

// Executor runs a graph's nodes honoring dependencies and a concurrency
// bound. It owns its collaborators; nothing else mutates node state during
// a run.
type Executor struct {
	invoker     delegate.Invoker
	agents      AgentDirectory
	coordinator *delegate.Coordinator
	planner     delegate.Planner
	store       GraphStore
	logger      *logging.DebugLogger
	opts        Options
}

// NewExecutor creates an Executor. The store may be nil for graphs that are
// not persisted; the planner may be nil, which degrades auto delegation to
// parallel fan-out.
func NewExecutor(invoker delegate.Invoker, agents AgentDirectory, planner delegate.Planner, store GraphStore, logger *logging.DebugLogger, opts Options) *Executor {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Executor{
		invoker:     invoker,
		agents:      agents,
		coordinator: delegate.NewCoordinator(invoker, agents, logger),
		planner:     planner,
		store:       store,
		logger:      logger,
		opts:        opts,
	}
}

// nodeDone carries a finished node's outcome back to the dispatch loop.
// Warnings ride along so the execution log is only ever written from the
// dispatch goroutine.
type nodeDone struct {
	node   *models.GraphNode
	result string
	warn   string
	err    error
}

// Run executes the graph. Structural errors (cycles, dangling dependencies)
// abort before any node leaves pending. Node failures are local: they fail
// the graph's final status but never stop independent branches.
func (e *Executor) Run(ctx context.Context, g *models.Graph) (*ExecutionResult, error) {
	start := time.Now()

	ordered, err := topologicalOrder(g)
	if err != nil {
		g.AppendLog(models.LogError, "", "run aborted: %v", err)
		e.logger.Errorf("[executor] graph %s aborted: %v", g.ID, err)
		return nil, err
	}

	runCtx := ctx
	if e.opts.GraphTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.opts.GraphTimeout)
		defer cancel()
	}

	limit := g.MaxConcurrency
	if e.opts.MaxConcurrency > 0 {
		limit = e.opts.MaxConcurrency
	}
	if limit < 1 {
		limit = 1
	}

	now := time.Now()
	g.Status = models.GraphStatusRunning
	g.StartedAt = &now
	g.CompletedAt = nil
	g.AppendLog(models.LogInfo, "", "run started: %d nodes, concurrency %d", len(ordered), limit)
	e.logger.Infof("[executor] graph %s started: %d nodes, concurrency %d", g.ID, len(ordered), limit)

	done := make(chan nodeDone)
	running := make(map[string]bool)
	queue := ordered
	timedOut := false
	stopReason := ""

	for {
		// Start every eligible node (in topological order) while slots
		// remain; skip nodes whose dependencies already failed.
		for progressed := true; progressed; {
			progressed = false
			var still []*models.GraphNode
			for _, n := range queue {
				switch {
				case e.hasFailedDependency(g, n):
					e.skipNode(g, n)
					progressed = true
				case !timedOut && len(running) < limit && e.dependenciesCompleted(g, n):
					e.startNode(runCtx, g, n, done, running)
					progressed = true
				default:
					still = append(still, n)
				}
			}
			queue = still
		}

		if len(running) == 0 {
			if len(queue) == 0 {
				break
			}
			if timedOut {
				for _, n := range queue {
					n.Status = models.NodeStatusSkipped
					n.Error = stopReason + " before node could start"
					g.AppendLog(models.LogWarn, n.ID, "node skipped: %s", stopReason)
				}
				queue = nil
				break
			}
			// Unreachable after the cycle check; guard rather than spin.
			return nil, fmt.Errorf("dispatch stalled with %d unstarted nodes", len(queue))
		}

		select {
		case d := <-done:
			e.finishNode(g, d, running)
		case <-runCtx.Done():
			if !timedOut {
				timedOut = true
				stopReason = "run cancelled"
				if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
					stopReason = "graph timeout"
				}
				g.AppendLog(models.LogError, "", "%s, cancelling in-flight nodes", stopReason)
				e.logger.Warnf("[executor] graph %s: %s with %d nodes in flight", g.ID, stopReason, len(running))
			}
			// Drain in-flight nodes; their contexts are cancelled and they
			// will report back as failed.
			for len(running) > 0 {
				e.finishNode(g, <-done, running)
			}
		}
	}

	result := e.summarize(g, start)

	if result.FailedNodes > 0 || timedOut {
		g.Status = models.GraphStatusFailed
	} else {
		g.Status = models.GraphStatusCompleted
	}
	end := time.Now()
	g.CompletedAt = &end
	g.AppendLog(models.LogInfo, "", "run finished: status=%s completed=%d failed=%d skipped=%d",
		g.Status, result.CompletedNodes, result.FailedNodes, result.SkippedNodes)
	e.logger.Infof("[executor] graph %s finished: status=%s completed=%d failed=%d skipped=%d in %s",
		g.ID, g.Status, result.CompletedNodes, result.FailedNodes, result.SkippedNodes, result.Duration)

	if e.store != nil {
		if err := e.store.UpdateGraph(g); err != nil {
			e.logger.Errorf("[executor] persist graph %s: %v", g.ID, err)
		}
	}

	return result, nil
}

// dependenciesCompleted reports whether every dependency of n is completed.
func (e *Executor) dependenciesCompleted(g *models.Graph, n *models.GraphNode) bool {
	for _, depID := range n.DependsOn {
		dep := g.Node(depID)
		if dep == nil || dep.Status != models.NodeStatusCompleted {
			return false
		}
	}
	return true
}

// hasFailedDependency reports whether any dependency of n failed or was
// skipped. A skipped dependency propagates: it can never complete.
func (e *Executor) hasFailedDependency(g *models.Graph, n *models.GraphNode) bool {
	for _, depID := range n.DependsOn {
		dep := g.Node(depID)
		if dep != nil && (dep.Status == models.NodeStatusFailed || dep.Status == models.NodeStatusSkipped) {
			return true
		}
	}
	return false
}

// skipNode marks n skipped without consuming a concurrency slot.
func (e *Executor) skipNode(g *models.Graph, n *models.GraphNode) {
	n.Status = models.NodeStatusSkipped
	now := time.Now()
	n.CompletedAt = &now
	g.AppendLog(models.LogWarn, n.ID, "node skipped: dependency failed")
	e.logger.Warnf("[executor] node %s skipped: dependency failed", n.ID)
}

// startNode transitions n to running and executes it on its own goroutine.
// The goroutine communicates only through the done channel; all node state
// mutation happens in the dispatch loop.
func (e *Executor) startNode(ctx context.Context, g *models.Graph, n *models.GraphNode, done chan<- nodeDone, running map[string]bool) {
	now := time.Now()
	n.Status = models.NodeStatusRunning
	n.StartedAt = &now
	running[n.ID] = true
	g.AppendLog(models.LogInfo, n.ID, "node started (priority %d)", n.Priority)
	e.logger.Infof("[executor] node %s started", n.ID)

	go func() {
		nodeCtx := ctx
		if e.opts.NodeTimeout > 0 {
			var cancel context.CancelFunc
			nodeCtx, cancel = context.WithTimeout(ctx, e.opts.NodeTimeout)
			defer cancel()
		}

		result, warn, err := e.executeNode(nodeCtx, g, n)
		if err != nil && errors.Is(nodeCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("%w after %s", ErrNodeTimeout, e.opts.NodeTimeout)
		}
		done <- nodeDone{node: n, result: result, warn: warn, err: err}
	}()
}

// finishNode commits a finished node's outcome.
func (e *Executor) finishNode(g *models.Graph, d nodeDone, running map[string]bool) {
	delete(running, d.node.ID)
	now := time.Now()
	d.node.CompletedAt = &now

	if d.warn != "" {
		g.AppendLog(models.LogWarn, d.node.ID, "%s", d.warn)
		e.logger.Warnf("[executor] node %s: %s", d.node.ID, d.warn)
	}

	if d.err != nil {
		d.node.Status = models.NodeStatusFailed
		d.node.Error = d.err.Error()
		g.AppendLog(models.LogError, d.node.ID, "node failed: %v", d.err)
		e.logger.Errorf("[executor] node %s failed: %v", d.node.ID, d.err)
		if deps := dependents(g, d.node.ID); len(deps) > 0 {
			g.AppendLog(models.LogWarn, d.node.ID, "failure blocks dependents: %s", strings.Join(deps, ", "))
		}
		return
	}

	d.node.Status = models.NodeStatusCompleted
	d.node.Result = d.result
	g.AppendLog(models.LogInfo, d.node.ID, "node completed")
	e.logger.Infof("[executor] node %s completed", d.node.ID)
}

// executeNode performs one node's work. Agent nodes complete as no-ops;
// task nodes run against their assigned agent, either directly or through
// sub-agent delegation. It runs on the node's goroutine, so it never
// touches the graph's execution log; warnings are returned for the
// dispatch loop to record.
func (e *Executor) executeNode(ctx context.Context, g *models.Graph, n *models.GraphNode) (string, string, error) {
	if n.Kind == models.NodeKindAgent {
		return "", "", nil
	}

	if n.AgentID == "" {
		return "", "", fmt.Errorf("task node %s has no assigned agent", n.ID)
	}
	if _, ok := e.agents.Agent(n.AgentID); !ok {
		return "", "", fmt.Errorf("%w: %s", ErrUnknownAgent, n.AgentID)
	}
	if strings.TrimSpace(n.Prompt) == "" {
		return "", "", fmt.Errorf("task node %s has an empty prompt", n.ID)
	}

	prompt := n.Prompt
	if digest := dependencyDigest(g, n); digest != "" {
		prompt = digest + "\n\n" + prompt
	}

	subAgents := e.agents.SubAgents(n.AgentID)
	if e.shouldDelegate(n, prompt, subAgents) {
		result, err := e.runDelegated(ctx, n, prompt, subAgents)
		return result, "", err
	}

	var warn string
	if n.UseSubAgents && len(subAgents) == 0 {
		warn = fmt.Sprintf("sub-agents requested but none registered for agent %s; running directly", n.AgentID)
	}

	result, err := e.invoker.Invoke(ctx, n.AgentID, prompt)
	return result, warn, err
}

// shouldDelegate decides whether a task node routes through sub-agents:
// an explicit opt-in, or the optimize-mode prompt-length heuristic when
// sub-agents are available.
func (e *Executor) shouldDelegate(n *models.GraphNode, prompt string, subAgents []*models.Agent) bool {
	if len(subAgents) == 0 {
		return false
	}
	if n.UseSubAgents {
		return true
	}
	if e.opts.OptimizeDelegation {
		threshold := e.opts.OptimizeThreshold
		if threshold <= 0 {
			threshold = defaultOptimizeThreshold
		}
		return len(prompt) >= threshold
	}
	return false
}

// delegatedResult wraps a coordination aggregate with delegation metadata.
type delegatedResult struct {
	Delegated bool                       `json:"delegated"`
	Strategy  models.DelegationStrategy  `json:"strategy"`
	Pattern   models.CoordinationPattern `json:"pattern"`
	SubTasks  int                        `json:"sub_tasks"`
	Output    string                     `json:"output"`
	Errors    []string                   `json:"errors,omitempty"`
}

// runDelegated splits the prompt across the node's sub-agents and
// coordinates their execution.
func (e *Executor) runDelegated(ctx context.Context, n *models.GraphNode, prompt string, subAgents []*models.Agent) (string, error) {
	strategy := n.DelegationStrategy
	if strategy == "" {
		strategy = models.DelegationAuto
	}
	pattern := n.CoordinationPattern
	if pattern == "" {
		pattern = models.CoordinationParallel
	}

	tasks, err := delegate.Plan(ctx, strategy, e.planner, prompt, subAgents, n.ManualAssignments)
	if err != nil {
		return "", fmt.Errorf("delegate node %s: %w", n.ID, err)
	}

	coord, err := e.coordinator.Run(ctx, tasks, pattern)
	if err != nil {
		return "", fmt.Errorf("coordinate node %s: %w", n.ID, err)
	}

	wrapped, err := json.Marshal(delegatedResult{
		Delegated: true,
		Strategy:  strategy,
		Pattern:   pattern,
		SubTasks:  len(tasks),
		Output:    coord.FinalResult,
		Errors:    coord.Errors,
	})
	if err != nil {
		return "", fmt.Errorf("encode delegated result for node %s: %w", n.ID, err)
	}
	return string(wrapped), nil
}

// dependencyDigest renders the results of a node's completed dependencies
// for prompt enrichment.
func dependencyDigest(g *models.Graph, n *models.GraphNode) string {
	var parts []string
	for _, depID := range n.DependsOn {
		dep := g.Node(depID)
		if dep == nil || dep.Status != models.NodeStatusCompleted || dep.Result == "" {
			continue
		}
		name := dep.Name
		if name == "" {
			name = dep.ID
		}
		parts = append(parts, fmt.Sprintf("- %s: %s", name, truncate(dep.Result, 2000)))
	}
	if len(parts) == 0 {
		return ""
	}
	return "Results from completed dependencies:\n" + strings.Join(parts, "\n")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// summarize tallies node outcomes into an ExecutionResult.
func (e *Executor) summarize(g *models.Graph, start time.Time) *ExecutionResult {
	result := &ExecutionResult{
		NodeResults: make(map[string]string),
		NodeErrors:  make(map[string]string),
		Duration:    time.Since(start),
	}
	for _, n := range g.Nodes {
		switch n.Status {
		case models.NodeStatusCompleted:
			result.CompletedNodes++
			result.NodeResults[n.ID] = n.Result
		case models.NodeStatusFailed:
			result.FailedNodes++
			result.NodeErrors[n.ID] = n.Error
		case models.NodeStatusSkipped:
			result.SkippedNodes++
		}
	}
	return result
}
