package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dcallag/stagehand/internal/schedule"
	"github.com/dcallag/stagehand/pkg/models"
)

var (
	scheduleKind    string
	scheduleTarget  string
	scheduleNode    string
	scheduleAgent   string
	schedulePrompt  string
	scheduleOwner   string
	scheduleAt      string
	schedulePattern string
	scheduleEvery   int
	scheduleCron    string
	scheduleMaxRuns int
	scheduleUntil   string
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage scheduled items",
	Long: `Create, list, and cancel scheduled items.

A scheduled item executes a task prompt, a stored graph, or a single
graph node at a future time, once or on a recurrence. The daemon picks
up due items; see 'stagehand daemon'.`,
}

var scheduleCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a scheduled item",
	Long: `Create a scheduled item.

Without --pattern or --cron the item runs once at --at. With --pattern
it recurs (daily, weekly, monthly, yearly) every --every units anchored
at --at. With --cron it recurs per a standard five-field cron
expression.

Examples:
  stagehand schedule create --kind task --agent researcher \
      --prompt "Summarize overnight alerts" --at 2026-09-01T06:00:00Z
  stagehand schedule create --kind graph --target 4f1f... \
      --pattern daily --at 2026-09-01T06:00:00Z
  stagehand schedule create --kind task --agent reporter \
      --prompt "Weekly digest" --cron "0 9 * * 1"`,
	Args: cobra.NoArgs,
	RunE: runScheduleCreate,
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scheduled items",
	Args:  cobra.NoArgs,
	RunE:  runScheduleList,
}

var scheduleCancelCmd = &cobra.Command{
	Use:   "cancel <item-id>",
	Short: "Cancel a scheduled item",
	Args:  cobra.ExactArgs(1),
	RunE:  runScheduleCancel,
}

func init() {
	scheduleCreateCmd.Flags().StringVar(&scheduleKind, "kind", "task", "Target kind: task, graph, or graph_node")
	scheduleCreateCmd.Flags().StringVar(&scheduleTarget, "target", "", "Graph ID for graph and graph_node kinds")
	scheduleCreateCmd.Flags().StringVar(&scheduleNode, "node", "", "Node ID for graph_node kind")
	scheduleCreateCmd.Flags().StringVar(&scheduleAgent, "agent", "", "Agent ID for task kind")
	scheduleCreateCmd.Flags().StringVar(&schedulePrompt, "prompt", "", "Prompt text for task kind")
	scheduleCreateCmd.Flags().StringVar(&scheduleOwner, "owner", "", "Owning agent ID")
	scheduleCreateCmd.Flags().StringVar(&scheduleAt, "at", "", "First execution time (RFC3339, default now)")
	scheduleCreateCmd.Flags().StringVar(&schedulePattern, "pattern", "", "Recurrence pattern: daily, weekly, monthly, yearly")
	scheduleCreateCmd.Flags().IntVar(&scheduleEvery, "every", 1, "Recurrence interval in pattern units")
	scheduleCreateCmd.Flags().StringVar(&scheduleCron, "cron", "", "Cron expression for custom recurrence")
	scheduleCreateCmd.Flags().IntVar(&scheduleMaxRuns, "max-runs", 0, "Stop after this many executions (0 = unlimited)")
	scheduleCreateCmd.Flags().StringVar(&scheduleUntil, "until", "", "Stop after this time (RFC3339)")

	scheduleCmd.AddCommand(scheduleCreateCmd)
	scheduleCmd.AddCommand(scheduleListCmd)
	scheduleCmd.AddCommand(scheduleCancelCmd)
}

func runScheduleCreate(cmd *cobra.Command, args []string) error {
	kind := models.TargetKind(scheduleKind)
	if !kind.Valid() {
		return fmt.Errorf("unknown kind %q", scheduleKind)
	}
	switch kind {
	case models.TargetTask:
		if scheduleAgent == "" || schedulePrompt == "" {
			return fmt.Errorf("task kind requires --agent and --prompt")
		}
	case models.TargetGraph:
		if scheduleTarget == "" {
			return fmt.Errorf("graph kind requires --target")
		}
	case models.TargetGraphNode:
		if scheduleTarget == "" || scheduleNode == "" {
			return fmt.Errorf("graph_node kind requires --target and --node")
		}
	}

	executeAt := time.Now().UTC()
	if scheduleAt != "" {
		t, err := time.Parse(time.RFC3339, scheduleAt)
		if err != nil {
			return fmt.Errorf("parse --at: %w", err)
		}
		executeAt = t
	}

	sched := models.Schedule{Type: models.ScheduleOnce, ExecuteAt: executeAt}
	if schedulePattern != "" || scheduleCron != "" {
		rec := &models.Recurrence{
			Interval:      scheduleEvery,
			MaxExecutions: scheduleMaxRuns,
		}
		if scheduleCron != "" {
			rec.Pattern = models.RecurrenceCustom
			rec.CronExpr = scheduleCron
		} else {
			rec.Pattern = models.RecurrencePattern(schedulePattern)
		}
		if scheduleUntil != "" {
			t, err := time.Parse(time.RFC3339, scheduleUntil)
			if err != nil {
				return fmt.Errorf("parse --until: %w", err)
			}
			rec.EndDate = &t
		}
		sched.Type = models.ScheduleRecurring
		sched.Recurrence = rec
	}

	if err := schedule.Validate(sched); err != nil {
		return err
	}
	next, err := schedule.NextExecution(sched, 0, time.Now().UTC())
	if err != nil {
		return err
	}
	if next == nil {
		return fmt.Errorf("schedule has no future executions")
	}

	item := &models.ScheduledItem{
		ID:              uuid.NewString(),
		OwnerAgentID:    scheduleOwner,
		TargetKind:      kind,
		TargetID:        scheduleTarget,
		NodeID:          scheduleNode,
		Prompt:          schedulePrompt,
		AgentID:         scheduleAgent,
		Schedule:        sched,
		Status:          models.ScheduledPending,
		NextExecutionAt: next,
		CreatedAt:       time.Now().UTC(),
	}

	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.SaveScheduledItem(item); err != nil {
		return fmt.Errorf("save scheduled item: %w", err)
	}

	fmt.Printf("%s Created item %s, next execution %s\n",
		color.GreenString("✓"), item.ID, next.Format(time.RFC3339))
	return nil
}

func runScheduleList(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	items, err := a.store.AllScheduledItems()
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println("No scheduled items.")
		return nil
	}

	for _, item := range items {
		fmt.Printf("%s  %-10s %-10s runs=%d next=%s  %s\n",
			item.ID, item.TargetKind, colorStatus(string(item.Status)),
			item.ExecutionCount, formatNext(item.NextExecutionAt),
			describeTarget(item))
	}
	return nil
}

func runScheduleCancel(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	item, err := a.store.GetScheduledItem(args[0])
	if err != nil {
		return err
	}
	if item.Status == models.ScheduledCompleted || item.Status == models.ScheduledCancelled {
		return fmt.Errorf("item %s is already %s", item.ID, item.Status)
	}

	item.Status = models.ScheduledCancelled
	item.NextExecutionAt = nil
	if err := a.store.UpdateScheduledItem(item); err != nil {
		return err
	}

	fmt.Printf("%s Cancelled item %s\n", color.GreenString("✓"), item.ID)
	return nil
}

func describeTarget(item *models.ScheduledItem) string {
	switch item.TargetKind {
	case models.TargetTask:
		prompt := item.Prompt
		if len(prompt) > 40 {
			prompt = prompt[:40] + "..."
		}
		return fmt.Sprintf("%s: %s", item.AgentID, prompt)
	case models.TargetGraphNode:
		return fmt.Sprintf("%s/%s", item.TargetID, item.NodeID)
	default:
		return item.TargetID
	}
}

func formatNext(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.RFC3339)
}

func colorStatus(status string) string {
	switch strings.ToLower(status) {
	case "completed":
		return color.GreenString(status)
	case "failed":
		return color.RedString(status)
	case "running":
		return color.CyanString(status)
	case "cancelled", "skipped", "paused":
		return color.YellowString(status)
	default:
		return status
	}
}
