package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dcallag/stagehand/internal/graph"
	"github.com/dcallag/stagehand/pkg/models"
)

var (
	runSave           bool
	runMaxConcurrency int
	runNodeTimeout    time.Duration
	runGraphTimeout   time.Duration
	runOptimize       bool
)

var runCmd = &cobra.Command{
	Use:   "run <workflow.yaml>",
	Short: "Run a workflow graph",
	Long: `Run a workflow graph defined in a YAML file.

Nodes execute in dependency order with bounded concurrency. Nodes with
no dependency relation are ordered by priority (higher first). When a
node fails, its downstream nodes are skipped; independent branches keep
running.

Task nodes that opt into sub-agents split their prompt across the
assigned agent's registered sub-agents using the node's delegation
strategy (auto, manual, or sequential) and coordination pattern
(parallel or sequential).

Examples:
  stagehand run workflow.yaml
  stagehand run workflow.yaml --save
  stagehand run workflow.yaml --graph-timeout 30m --max-concurrency 5`,
	Args: cobra.ExactArgs(1),
	RunE: runWorkflow,
}

func init() {
	runCmd.Flags().BoolVar(&runSave, "save", false, "Persist the graph and its results to the database")
	runCmd.Flags().IntVar(&runMaxConcurrency, "max-concurrency", 0, "Override the concurrency bound")
	runCmd.Flags().DurationVar(&runNodeTimeout, "node-timeout", 0, "Override the per-node timeout")
	runCmd.Flags().DurationVar(&runGraphTimeout, "graph-timeout", 0, "Override the whole-run timeout")
	runCmd.Flags().BoolVar(&runOptimize, "optimize", false, "Route large prompts through sub-agents automatically")
}

func runWorkflow(cmd *cobra.Command, args []string) error {
	g, err := loadGraphFile(args[0])
	if err != nil {
		return err
	}

	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := a.execOptions()
	if runMaxConcurrency > 0 {
		opts.MaxConcurrency = runMaxConcurrency
	}
	if runNodeTimeout > 0 {
		opts.NodeTimeout = runNodeTimeout
	}
	if runGraphTimeout > 0 {
		opts.GraphTimeout = runGraphTimeout
	}
	if runOptimize {
		opts.OptimizeDelegation = true
	}

	var store graph.GraphStore
	if runSave {
		if err := a.store.SaveGraph(g); err != nil {
			return fmt.Errorf("save graph: %w", err)
		}
		store = a.store
		fmt.Printf("Saved graph %s\n", g.ID)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Running %s (%d nodes)...\n\n", g.Name, len(g.Nodes))

	exec := graph.NewExecutor(a.invoker, a.registry, a.invoker, store, a.logger, opts)
	result, err := exec.Run(ctx, g)
	if err != nil {
		return fmt.Errorf("run workflow: %w", err)
	}

	printRunSummary(g, result)
	printTokenUsage(a)

	if result.FailedNodes > 0 {
		return fmt.Errorf("%d node(s) failed", result.FailedNodes)
	}
	return nil
}

// printRunSummary prints per-node outcomes and run totals.
func printRunSummary(g *models.Graph, result *graph.ExecutionResult) {
	for _, n := range g.Nodes {
		switch n.Status {
		case models.NodeStatusCompleted:
			fmt.Printf("%s %s\n", color.GreenString("✓"), n.Name)
		case models.NodeStatusFailed:
			fmt.Printf("%s %s: %s\n", color.RedString("✗"), n.Name, n.Error)
		case models.NodeStatusSkipped:
			fmt.Printf("%s %s (skipped: %s)\n", color.YellowString("-"), n.Name, n.Error)
		default:
			fmt.Printf("  %s (%s)\n", n.Name, n.Status)
		}
	}

	fmt.Printf("\n%d completed, %d failed, %d skipped in %s\n",
		result.CompletedNodes, result.FailedNodes, result.SkippedNodes,
		result.Duration.Round(time.Millisecond))

	if g.Status == models.GraphStatusCompleted {
		fmt.Printf("%s Workflow completed\n", color.GreenString("✓"))
	} else {
		fmt.Printf("%s Workflow %s\n", color.RedString("✗"), g.Status)
	}
}

// printTokenUsage reports API usage for the run.
func printTokenUsage(a *app) {
	if a.client == nil {
		return
	}
	tracker := a.client.Tracker()
	if tracker.Calls() == 0 {
		return
	}
	in, out := tracker.Total()
	fmt.Printf("\nAPI usage: %d call(s), %d input / %d output tokens (~$%.4f)\n",
		tracker.Calls(), in, out, tracker.Cost())
}
