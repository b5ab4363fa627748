package models

import "time"

// ScheduleType distinguishes one-shot from recurring schedules.
type ScheduleType string

const (
	// ScheduleOnce executes exactly once at ExecuteAt.
	ScheduleOnce ScheduleType = "once"
	// ScheduleRecurring executes repeatedly per the recurrence rule.
	ScheduleRecurring ScheduleType = "recurring"
)

// Valid returns true if the type is a known value.
func (t ScheduleType) Valid() bool {
	return t == ScheduleOnce || t == ScheduleRecurring
}

// RecurrencePattern is the periodicity rule for recurring schedules.
type RecurrencePattern string

const (
	RecurrenceDaily   RecurrencePattern = "daily"
	RecurrenceWeekly  RecurrencePattern = "weekly"
	RecurrenceMonthly RecurrencePattern = "monthly"
	RecurrenceYearly  RecurrencePattern = "yearly"
	// RecurrenceCustom uses a cron expression evaluated by a real cron
	// parser rather than fixed-interval arithmetic.
	RecurrenceCustom RecurrencePattern = "custom"
)

// Valid returns true if the pattern is a known value.
func (p RecurrencePattern) Valid() bool {
	switch p {
	case RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly,
		RecurrenceYearly, RecurrenceCustom:
		return true
	default:
		return false
	}
}

// Recurrence describes how a recurring schedule repeats.
type Recurrence struct {
	// Pattern is the periodicity rule.
	Pattern RecurrencePattern `json:"pattern"`
	// Interval repeats every N pattern units. Values below 1 are treated as 1.
	Interval int `json:"interval"`
	// DaysOfWeek restricts weekly schedules to specific weekdays.
	DaysOfWeek []time.Weekday `json:"days_of_week,omitempty"`
	// DayOfMonth pins monthly schedules to a day of the month.
	DayOfMonth int `json:"day_of_month,omitempty"`
	// CronExpr is the cron expression for custom patterns.
	CronExpr string `json:"cron_expr,omitempty"`
	// EndDate stops executions after this instant, if set.
	EndDate *time.Time `json:"end_date,omitempty"`
	// MaxExecutions stops after this many executions, if positive.
	MaxExecutions int `json:"max_executions,omitempty"`
}

// Schedule describes when a scheduled item executes.
type Schedule struct {
	// Type is once or recurring.
	Type ScheduleType `json:"type"`
	// ExecuteAt is the first (or only) execution instant.
	ExecuteAt time.Time `json:"execute_at"`
	// Recurrence holds the repetition rule for recurring schedules.
	Recurrence *Recurrence `json:"recurrence,omitempty"`
}

// TargetKind is what a scheduled item executes when due.
type TargetKind string

const (
	// TargetTask executes a single task prompt against an agent.
	TargetTask TargetKind = "task"
	// TargetGraph runs a whole persisted graph.
	TargetGraph TargetKind = "graph"
	// TargetGraphNode runs a single node of a persisted graph.
	TargetGraphNode TargetKind = "graph_node"
)

// Valid returns true if the kind is a known value.
func (k TargetKind) Valid() bool {
	return k == TargetTask || k == TargetGraph || k == TargetGraphNode
}

// ScheduledItemStatus represents the lifecycle state of a scheduled item.
type ScheduledItemStatus string

const (
	// ScheduledPending indicates the item is waiting for its due time.
	ScheduledPending ScheduledItemStatus = "pending"
	// ScheduledRunning indicates the item is executing.
	ScheduledRunning ScheduledItemStatus = "running"
	// ScheduledCompleted indicates the item has no further executions.
	ScheduledCompleted ScheduledItemStatus = "completed"
	// ScheduledFailed indicates a dispatch error; failed items are not retried.
	ScheduledFailed ScheduledItemStatus = "failed"
	// ScheduledCancelled indicates the item was cancelled by the caller.
	ScheduledCancelled ScheduledItemStatus = "cancelled"
)

// Valid returns true if the status is a known value.
func (s ScheduledItemStatus) Valid() bool {
	switch s {
	case ScheduledPending, ScheduledRunning, ScheduledCompleted,
		ScheduledFailed, ScheduledCancelled:
		return true
	default:
		return false
	}
}

// ScheduledItem is a persisted intent to execute a task, a graph, or a
// single graph node in the future.
type ScheduledItem struct {
	// ID is the unique identifier for this item.
	ID string `json:"id"`
	// OwnerAgentID is the agent that owns this item in storage.
	OwnerAgentID string `json:"owner_agent_id,omitempty"`
	// TargetKind is what this item executes.
	TargetKind TargetKind `json:"target_kind"`
	// TargetID references the task, graph, or graph that owns the node.
	TargetID string `json:"target_id"`
	// NodeID names the node when TargetKind is graph_node.
	NodeID string `json:"node_id,omitempty"`
	// Prompt is the task text when TargetKind is task.
	Prompt string `json:"prompt,omitempty"`
	// AgentID is the agent that executes a task target.
	AgentID string `json:"agent_id,omitempty"`
	// Schedule is when this item executes.
	Schedule Schedule `json:"schedule"`
	// Status is the lifecycle state.
	Status ScheduledItemStatus `json:"status"`
	// ExecutionCount is how many times this item has executed.
	ExecutionCount int `json:"execution_count"`
	// LastExecutedAt is when the item last ran.
	LastExecutedAt *time.Time `json:"last_executed_at,omitempty"`
	// NextExecutionAt is the next due instant; nil means no further runs.
	// Invariant: always the calculator's output for the current count.
	NextExecutionAt *time.Time `json:"next_execution_at,omitempty"`
	// CreatedAt is when the item was created.
	CreatedAt time.Time `json:"created_at"`
}
