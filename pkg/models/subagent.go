package models

import "time"

// SubAgentTask is one unit of delegated work assigned to a sub-agent.
type SubAgentTask struct {
	// AgentID is the sub-agent assigned to this task.
	AgentID string `json:"agent_id"`
	// Prompt is the task text for the sub-agent.
	Prompt string `json:"prompt"`
	// Priority orders tasks with no dependency relation; higher runs earlier.
	Priority int `json:"priority"`
	// DependsOn lists agent IDs whose tasks must run before this one.
	DependsOn []string `json:"depends_on,omitempty"`
}

// SubAgentResult is the outcome of one delegated task.
type SubAgentResult struct {
	// AgentID is the sub-agent that executed the task.
	AgentID string `json:"agent_id"`
	// AgentName is the sub-agent's display name.
	AgentName string `json:"agent_name"`
	// Prompt is the task text that was executed.
	Prompt string `json:"prompt"`
	// Output is the agent's response text.
	Output string `json:"output,omitempty"`
	// Success indicates whether the call succeeded.
	Success bool `json:"success"`
	// Error contains the failure message if Success is false.
	Error string `json:"error,omitempty"`
	// ExecutionTime is how long the call took.
	ExecutionTime time.Duration `json:"execution_time"`
}

// CoordinationResult aggregates the results of a coordinated run.
type CoordinationResult struct {
	// Results holds each task's individual outcome.
	Results []SubAgentResult `json:"results"`
	// FinalResult is the merged output text.
	FinalResult string `json:"final_result"`
	// TotalExecutionTime is wall-clock time for the whole coordination.
	TotalExecutionTime time.Duration `json:"total_execution_time"`
	// Errors collects failure messages from individual tasks.
	Errors []string `json:"errors,omitempty"`
}
