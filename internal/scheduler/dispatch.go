package scheduler

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dcallag/stagehand/internal/delegate"
	"github.com/dcallag/stagehand/internal/graph"
	"github.com/dcallag/stagehand/internal/logging"
	"github.com/dcallag/stagehand/internal/state"
	"github.com/dcallag/stagehand/pkg/models"
)

// GraphStore is the persistence surface the dispatcher needs for graph
// and graph-node targets.
type GraphStore interface {
	LoadGraph(id, ownerAgentID string) (*models.Graph, error)
	UpdateGraph(g *models.Graph) error
}

// Dispatcher executes scheduled item targets. Task targets go straight to
// the invoker; graph and graph-node targets load the stored graph and run
// it through a fresh executor.
type Dispatcher struct {
	graphs   GraphStore
	invoker  delegate.Invoker
	agents   graph.AgentDirectory
	planner  delegate.Planner
	logger   *logging.DebugLogger
	execOpts graph.Options
}

// NewDispatcher creates a Dispatcher. The planner may be nil.
func NewDispatcher(graphs GraphStore, invoker delegate.Invoker, agents graph.AgentDirectory, planner delegate.Planner, logger *logging.DebugLogger, execOpts graph.Options) *Dispatcher {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Dispatcher{
		graphs:   graphs,
		invoker:  invoker,
		agents:   agents,
		planner:  planner,
		logger:   logger,
		execOpts: execOpts,
	}
}

// ExecuteTask runs the item's prompt against its agent.
func (d *Dispatcher) ExecuteTask(ctx context.Context, item *models.ScheduledItem) (string, error) {
	if item.AgentID == "" {
		return "", fmt.Errorf("scheduled task %s has no agent", item.ID)
	}
	if item.Prompt == "" {
		return "", fmt.Errorf("scheduled task %s has no prompt", item.ID)
	}
	return d.invoker.Invoke(ctx, item.AgentID, item.Prompt)
}

// ExecuteGraph loads the stored graph, resets it to pending, and runs it.
// The executor persists the finished graph back through the store.
func (d *Dispatcher) ExecuteGraph(ctx context.Context, item *models.ScheduledItem) error {
	g, err := d.graphs.LoadGraph(item.TargetID, item.OwnerAgentID)
	if err != nil {
		return fmt.Errorf("load graph %s: %w", item.TargetID, err)
	}
	state.ResetGraphForRun(g)

	exec := graph.NewExecutor(d.invoker, d.agents, d.planner, d.graphs, d.logger, d.execOpts)
	result, err := exec.Run(ctx, g)
	if err != nil {
		return fmt.Errorf("run graph %s: %w", g.ID, err)
	}
	if result.FailedNodes > 0 {
		return fmt.Errorf("graph %s finished with %d failed node(s)", g.ID, result.FailedNodes)
	}
	return nil
}

// ExecuteGraphNode runs one node of a stored graph in isolation and writes
// the outcome back to the stored graph. The node runs without its
// dependencies; scheduling a node is an explicit request to run just it.
func (d *Dispatcher) ExecuteGraphNode(ctx context.Context, item *models.ScheduledItem) error {
	g, err := d.graphs.LoadGraph(item.TargetID, item.OwnerAgentID)
	if err != nil {
		return fmt.Errorf("load graph %s: %w", item.TargetID, err)
	}
	node := g.Node(item.NodeID)
	if node == nil {
		return fmt.Errorf("graph %s has no node %s", item.TargetID, item.NodeID)
	}

	solo := models.NewGraph(uuid.NewString(), g.Name+" (node "+node.ID+")", 1)
	solo.OwnerAgentID = g.OwnerAgentID
	soloNode := *node
	soloNode.DependsOn = nil
	soloNode.Status = models.NodeStatusPending
	soloNode.Result = ""
	soloNode.Error = ""
	soloNode.StartedAt = nil
	soloNode.CompletedAt = nil
	if err := solo.AddNode(&soloNode); err != nil {
		return fmt.Errorf("prepare node %s: %w", node.ID, err)
	}

	exec := graph.NewExecutor(d.invoker, d.agents, d.planner, nil, d.logger, d.execOpts)
	if _, err := exec.Run(ctx, solo); err != nil {
		return fmt.Errorf("run node %s: %w", node.ID, err)
	}

	// Write the outcome back into the stored graph.
	node.Status = soloNode.Status
	node.Result = soloNode.Result
	node.Error = soloNode.Error
	node.StartedAt = soloNode.StartedAt
	node.CompletedAt = soloNode.CompletedAt
	if err := d.graphs.UpdateGraph(g); err != nil {
		return fmt.Errorf("persist node %s outcome: %w", node.ID, err)
	}

	if soloNode.Status == models.NodeStatusFailed {
		return fmt.Errorf("node %s failed: %s", node.ID, soloNode.Error)
	}
	return nil
}
