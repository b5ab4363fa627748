package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dcallag/stagehand/internal/scheduler"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the scheduler daemon",
	Long: `Run the scheduler daemon in the foreground.

The daemon periodically checks the database for due scheduled items and
executes them with bounded concurrency. Task items run a single prompt
against their agent; graph items re-run a stored workflow; graph-node
items run one node in isolation.

When a spool directory is configured, YAML schedule files dropped there
are ingested as pending items and the files removed. Invalid files are
renamed with a .rejected suffix.

Stop with Ctrl-C; in-flight jobs get the configured grace period to
finish.`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

func runDaemon(cmd *cobra.Command, args []string) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	dispatcher := scheduler.NewDispatcher(a.store, a.invoker, a.registry, a.invoker, a.logger, a.execOptions())
	daemon := scheduler.NewDaemon(a.store, dispatcher, a.logger, scheduler.DaemonOptions{
		CheckInterval:     a.cfg.Scheduler.CheckInterval,
		MaxConcurrentJobs: a.cfg.Scheduler.MaxConcurrentJobs,
	})

	var spool *scheduler.SpoolWatcher
	if a.cfg.Scheduler.SpoolDir != "" {
		spool, err = scheduler.NewSpoolWatcher(a.cfg.Scheduler.SpoolDir, a.store, a.logger)
		if err != nil {
			return err
		}
		if err := spool.Start(); err != nil {
			return err
		}
		fmt.Printf("Watching spool directory %s\n", a.cfg.Scheduler.SpoolDir)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	daemon.Start(ctx)
	fmt.Printf("Scheduler daemon running (check interval %s). Ctrl-C to stop.\n",
		a.cfg.Scheduler.CheckInterval)

	<-ctx.Done()
	fmt.Println("\nStopping...")

	if spool != nil {
		spool.Stop()
	}
	if !daemon.Stop(a.cfg.Scheduler.StopGrace) {
		return fmt.Errorf("daemon did not drain within %s", a.cfg.Scheduler.StopGrace)
	}
	fmt.Println("Stopped.")
	return nil
}
