package models

import (
	"fmt"
	"time"
)

// NodeKind distinguishes the two kinds of graph nodes.
type NodeKind string

const (
	// NodeKindAgent marks the presence of an agent in the graph. Agent
	// nodes do no work; they exist to anchor dependent task nodes.
	NodeKindAgent NodeKind = "agent"
	// NodeKindTask is a prompt executed by an assigned agent.
	NodeKindTask NodeKind = "task"
)

// Valid returns true if the kind is a known value.
func (k NodeKind) Valid() bool {
	return k == NodeKindAgent || k == NodeKindTask
}

// NodeStatus represents the execution state of a graph node.
type NodeStatus string

const (
	// NodeStatusPending indicates the node has not started.
	NodeStatusPending NodeStatus = "pending"
	// NodeStatusRunning indicates the node is executing.
	NodeStatusRunning NodeStatus = "running"
	// NodeStatusCompleted indicates the node finished successfully.
	NodeStatusCompleted NodeStatus = "completed"
	// NodeStatusFailed indicates the node errored or timed out.
	NodeStatusFailed NodeStatus = "failed"
	// NodeStatusSkipped indicates the node was never executed because a
	// dependency failed. Distinct from failed.
	NodeStatusSkipped NodeStatus = "skipped"
)

// Valid returns true if the status is a known value.
func (s NodeStatus) Valid() bool {
	switch s {
	case NodeStatusPending, NodeStatusRunning, NodeStatusCompleted,
		NodeStatusFailed, NodeStatusSkipped:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status is a final state.
func (s NodeStatus) Terminal() bool {
	return s == NodeStatusCompleted || s == NodeStatusFailed || s == NodeStatusSkipped
}

// DelegationStrategy selects how a task is split across sub-agents.
type DelegationStrategy string

const (
	// DelegationAuto asks the planning oracle to split the work.
	DelegationAuto DelegationStrategy = "auto"
	// DelegationManual uses a caller-supplied agent-to-task map.
	DelegationManual DelegationStrategy = "manual"
	// DelegationSequential chains the prompt through agents in order.
	DelegationSequential DelegationStrategy = "sequential"
)

// Valid returns true if the strategy is a known value.
func (d DelegationStrategy) Valid() bool {
	return d == DelegationAuto || d == DelegationManual || d == DelegationSequential
}

// CoordinationPattern selects how delegated sub-agent tasks execute.
type CoordinationPattern string

const (
	// CoordinationParallel dispatches every task concurrently.
	CoordinationParallel CoordinationPattern = "parallel"
	// CoordinationSequential executes tasks one at a time in dependency order.
	CoordinationSequential CoordinationPattern = "sequential"
)

// Valid returns true if the pattern is a known value.
func (c CoordinationPattern) Valid() bool {
	return c == CoordinationParallel || c == CoordinationSequential
}

// GraphNode is a unit of work inside a graph.
type GraphNode struct {
	// ID is the unique identifier for this node within its graph.
	ID string `json:"id"`
	// Name is the human-readable node name.
	Name string `json:"name"`
	// Kind is agent or task.
	Kind NodeKind `json:"kind"`
	// AgentID is the agent assigned to execute this node. Required for
	// task nodes; for agent nodes it names the agent being anchored.
	AgentID string `json:"agent_id,omitempty"`
	// Prompt is the work description executed by the assigned agent.
	Prompt string `json:"prompt,omitempty"`
	// Priority orders nodes with no dependency relation; higher runs earlier.
	Priority int `json:"priority"`
	// DependsOn lists node IDs that must reach completed before this node starts.
	DependsOn []string `json:"depends_on,omitempty"`
	// Schedule is an advisory schedule string. It is not consulted by the
	// dispatch loop; it is carried as metadata only.
	Schedule string `json:"schedule,omitempty"`
	// UseSubAgents opts this task node into sub-agent delegation.
	UseSubAgents bool `json:"use_sub_agents,omitempty"`
	// DelegationStrategy selects how the prompt is split when delegating.
	DelegationStrategy DelegationStrategy `json:"delegation_strategy,omitempty"`
	// ManualAssignments maps sub-agent IDs to task text for the manual
	// delegation strategy.
	ManualAssignments map[string]string `json:"manual_assignments,omitempty"`
	// CoordinationPattern selects how delegated tasks execute.
	CoordinationPattern CoordinationPattern `json:"coordination_pattern,omitempty"`
	// Status is the current execution state.
	Status NodeStatus `json:"status"`
	// Result is the serialized output payload of a completed node.
	Result string `json:"result,omitempty"`
	// Error contains the error message if the node failed.
	Error string `json:"error,omitempty"`
	// StartedAt is when the node began executing.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// CompletedAt is when the node reached a terminal state.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// GraphEdge is a directed dependency pointer between two nodes.
// The edge runs from a prerequisite to the node that depends on it.
type GraphEdge struct {
	// From is the node that must complete first.
	From string `json:"from"`
	// To is the dependent node.
	To string `json:"to"`
	// Condition is an advisory condition string. It is carried but not
	// evaluated.
	Condition string `json:"condition,omitempty"`
}

// GraphStatus represents the lifecycle state of a graph.
type GraphStatus string

const (
	// GraphStatusIdle indicates the graph has not been run.
	GraphStatusIdle GraphStatus = "idle"
	// GraphStatusRunning indicates a run is in progress.
	GraphStatusRunning GraphStatus = "running"
	// GraphStatusCompleted indicates every node completed or was skipped
	// with zero failures.
	GraphStatusCompleted GraphStatus = "completed"
	// GraphStatusFailed indicates at least one node failed.
	GraphStatusFailed GraphStatus = "failed"
	// GraphStatusPaused indicates the graph is suspended.
	GraphStatusPaused GraphStatus = "paused"
)

// Valid returns true if the status is a known value.
func (s GraphStatus) Valid() bool {
	switch s {
	case GraphStatusIdle, GraphStatusRunning, GraphStatusCompleted,
		GraphStatusFailed, GraphStatusPaused:
		return true
	default:
		return false
	}
}

// LogLevel is the severity of an execution log entry.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// LogEntry is one append-only record in a graph's execution log.
type LogEntry struct {
	// Timestamp is when the entry was recorded.
	Timestamp time.Time `json:"timestamp"`
	// Level is the entry severity.
	Level LogLevel `json:"level"`
	// NodeID tags the entry with a node when applicable.
	NodeID string `json:"node_id,omitempty"`
	// Message is the log text.
	Message string `json:"message"`
}

// Graph owns an ordered collection of nodes and edges plus run state.
// A graph is mutated only through its own methods and by the executor
// that drives it; external callers never touch node state directly.
type Graph struct {
	// ID is the unique identifier for this graph.
	ID string `json:"id"`
	// Name is the human-readable graph name.
	Name string `json:"name"`
	// OwnerAgentID is the agent that owns this graph in storage.
	OwnerAgentID string `json:"owner_agent_id,omitempty"`
	// Nodes is the ordered node collection.
	Nodes []*GraphNode `json:"nodes"`
	// Edges is the ordered edge collection.
	Edges []*GraphEdge `json:"edges"`
	// Status is the graph lifecycle state.
	Status GraphStatus `json:"status"`
	// MaxConcurrency bounds how many nodes run at once.
	MaxConcurrency int `json:"max_concurrency"`
	// ExecutionLog is the append-only leveled run log.
	ExecutionLog []LogEntry `json:"execution_log,omitempty"`
	// CreatedAt is when the graph was created.
	CreatedAt time.Time `json:"created_at"`
	// StartedAt is when the last run began.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// CompletedAt is when the last run reached a terminal state.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewGraph creates an idle graph with the given name and concurrency bound.
func NewGraph(id, name string, maxConcurrency int) *Graph {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &Graph{
		ID:             id,
		Name:           name,
		Status:         GraphStatusIdle,
		MaxConcurrency: maxConcurrency,
		CreatedAt:      time.Now(),
	}
}

// Node returns the node with the given ID, or nil if not found.
func (g *Graph) Node(id string) *GraphNode {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// AddNode appends a node to the graph.
// Dependencies may reference nodes added later; AddEdge and the executor's
// validation enforce that every referenced ID exists before a run.
func (g *Graph) AddNode(n *GraphNode) error {
	if n.ID == "" {
		return fmt.Errorf("node ID is required")
	}
	if !n.Kind.Valid() {
		return fmt.Errorf("node %s: invalid kind %q", n.ID, n.Kind)
	}
	if g.Node(n.ID) != nil {
		return fmt.Errorf("node %s already exists in graph %s", n.ID, g.ID)
	}
	for _, dep := range n.DependsOn {
		if dep == n.ID {
			return fmt.Errorf("node %s cannot depend on itself", n.ID)
		}
	}
	if n.Status == "" {
		n.Status = NodeStatusPending
	}
	g.Nodes = append(g.Nodes, n)
	return nil
}

// AddEdge appends a dependency edge and records the dependency on the
// target node, keeping the edge list and DependsOn fields consistent.
func (g *Graph) AddEdge(from, to, condition string) error {
	if from == to {
		return fmt.Errorf("edge %s -> %s: node cannot depend on itself", from, to)
	}
	if g.Node(from) == nil {
		return fmt.Errorf("edge references unknown node %s", from)
	}
	target := g.Node(to)
	if target == nil {
		return fmt.Errorf("edge references unknown node %s", to)
	}
	g.Edges = append(g.Edges, &GraphEdge{From: from, To: to, Condition: condition})
	for _, dep := range target.DependsOn {
		if dep == from {
			return nil
		}
	}
	target.DependsOn = append(target.DependsOn, from)
	return nil
}

// AppendLog records an entry in the execution log.
func (g *Graph) AppendLog(level LogLevel, nodeID, format string, args ...interface{}) {
	g.ExecutionLog = append(g.ExecutionLog, LogEntry{
		Timestamp: time.Now(),
		Level:     level,
		NodeID:    nodeID,
		Message:   fmt.Sprintf(format, args...),
	})
}
