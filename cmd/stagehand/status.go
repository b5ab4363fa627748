package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dcallag/stagehand/pkg/models"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored graphs and scheduled items",
	Long: `Display the stored workflow graphs and scheduled items.

Shows each graph's lifecycle status and node counts, and each scheduled
item's status, execution count, and next due time.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	graphs, err := a.store.AllGraphs()
	if err != nil {
		return fmt.Errorf("list graphs: %w", err)
	}
	items, err := a.store.AllScheduledItems()
	if err != nil {
		return fmt.Errorf("list scheduled items: %w", err)
	}

	fmt.Printf("Graphs (%d):\n", len(graphs))
	if len(graphs) == 0 {
		fmt.Println("  none")
	}
	for _, g := range graphs {
		var completed, failed, skipped int
		for _, n := range g.Nodes {
			switch n.Status {
			case models.NodeStatusCompleted:
				completed++
			case models.NodeStatusFailed:
				failed++
			case models.NodeStatusSkipped:
				skipped++
			}
		}
		fmt.Printf("  %s  %-10s %s (%d nodes: %d completed, %d failed, %d skipped)\n",
			g.ID, colorStatus(string(g.Status)), g.Name,
			len(g.Nodes), completed, failed, skipped)
	}

	fmt.Printf("\nScheduled items (%d):\n", len(items))
	if len(items) == 0 {
		fmt.Println("  none")
	}
	for _, item := range items {
		fmt.Printf("  %s  %-10s %-10s runs=%d next=%s  %s\n",
			item.ID, item.TargetKind, colorStatus(string(item.Status)),
			item.ExecutionCount, formatNext(item.NextExecutionAt),
			describeTarget(item))
	}

	return nil
}
