// Package scheduler runs the daemon that executes scheduled items when due.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dcallag/stagehand/internal/logging"
	"github.com/dcallag/stagehand/internal/schedule"
	"github.com/dcallag/stagehand/pkg/models"
)

const (
	// DefaultCheckInterval is how often the daemon looks for due items.
	DefaultCheckInterval = 30 * time.Second
	// DefaultMaxConcurrentJobs bounds how many items execute at once.
	DefaultMaxConcurrentJobs = 5
)

// Store is the persistence surface the daemon needs.
type Store interface {
	DueScheduledItems(now time.Time, limit int) ([]*models.ScheduledItem, error)
	UpdateScheduledItem(item *models.ScheduledItem) error
}

// TargetRunner executes a due item's target. Implementations dispatch on
// the item's TargetKind.
type TargetRunner interface {
	// ExecuteTask runs a single prompt against the item's agent.
	ExecuteTask(ctx context.Context, item *models.ScheduledItem) (string, error)
	// ExecuteGraph runs the whole persisted graph the item references.
	ExecuteGraph(ctx context.Context, item *models.ScheduledItem) error
	// ExecuteGraphNode runs one node of a persisted graph.
	ExecuteGraphNode(ctx context.Context, item *models.ScheduledItem) error
}

// DaemonOptions configures a Daemon.
type DaemonOptions struct {
	// CheckInterval overrides DefaultCheckInterval when positive.
	CheckInterval time.Duration
	// MaxConcurrentJobs overrides DefaultMaxConcurrentJobs when positive.
	MaxConcurrentJobs int
}

// Daemon periodically claims due scheduled items and executes them with
// bounded concurrency. Items that execute successfully advance to their
// next occurrence or complete; dispatch errors mark the item failed and
// it is not retried.
type Daemon struct {
	store  Store
	runner TargetRunner
	logger *logging.DebugLogger

	checkInterval time.Duration
	maxConcurrent int

	mu      sync.Mutex
	running map[string]struct{}
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewDaemon creates a Daemon. Zero option fields take defaults.
func NewDaemon(store Store, runner TargetRunner, logger *logging.DebugLogger, opts DaemonOptions) *Daemon {
	if logger == nil {
		logger = logging.Nop()
	}
	interval := opts.CheckInterval
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	maxJobs := opts.MaxConcurrentJobs
	if maxJobs <= 0 {
		maxJobs = DefaultMaxConcurrentJobs
	}
	return &Daemon{
		store:         store,
		runner:        runner,
		logger:        logger,
		checkInterval: interval,
		maxConcurrent: maxJobs,
		running:       make(map[string]struct{}),
	}
}

// Start launches the daemon loop. The first check happens immediately,
// then every check interval until Stop is called or ctx is cancelled.
func (d *Daemon) Start(ctx context.Context) {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return
	}
	d.started = true
	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.mu.Unlock()

	d.logger.Infof("[scheduler] daemon started (interval=%s, max_jobs=%d)", d.checkInterval, d.maxConcurrent)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ticker := time.NewTicker(d.checkInterval)
		defer ticker.Stop()

		d.tick(runCtx, time.Now())
		for {
			select {
			case <-runCtx.Done():
				return
			case now := <-ticker.C:
				d.tick(runCtx, now)
			}
		}
	}()
}

// Stop cancels the loop and waits up to grace for in-flight jobs to
// finish. It returns true if everything drained within the grace period.
func (d *Daemon) Stop(grace time.Duration) bool {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return true
	}
	d.started = false
	cancel := d.cancel
	d.mu.Unlock()

	cancel()

	drained := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		d.logger.Infof("[scheduler] daemon stopped cleanly")
		return true
	case <-time.After(grace):
		d.logger.Warnf("[scheduler] daemon stop timed out after %s", grace)
		return false
	}
}

// tick claims as many due items as open slots allow and launches them.
func (d *Daemon) tick(ctx context.Context, now time.Time) {
	d.mu.Lock()
	slots := d.maxConcurrent - len(d.running)
	d.mu.Unlock()
	if slots <= 0 {
		return
	}

	items, err := d.store.DueScheduledItems(now, slots)
	if err != nil {
		d.logger.Errorf("[scheduler] due query failed: %v", err)
		return
	}

	for _, item := range items {
		d.mu.Lock()
		if _, active := d.running[item.ID]; active {
			d.mu.Unlock()
			continue
		}
		d.running[item.ID] = struct{}{}
		d.mu.Unlock()

		item.Status = models.ScheduledRunning
		if err := d.store.UpdateScheduledItem(item); err != nil {
			d.logger.Errorf("[scheduler] item %s: claim failed: %v", item.ID, err)
			d.release(item.ID)
			continue
		}

		d.wg.Add(1)
		go func(it *models.ScheduledItem) {
			defer d.wg.Done()
			defer d.release(it.ID)
			d.execute(ctx, it)
		}(item)
	}
}

func (d *Daemon) release(id string) {
	d.mu.Lock()
	delete(d.running, id)
	d.mu.Unlock()
}

// execute dispatches one claimed item and records its outcome. Successful
// runs advance ExecutionCount and either reschedule (pending with a new
// NextExecutionAt) or complete. Any dispatch error marks the item failed.
func (d *Daemon) execute(ctx context.Context, item *models.ScheduledItem) {
	d.logger.Infof("[scheduler] executing item %s (%s %s)", item.ID, item.TargetKind, item.TargetID)

	var err error
	switch item.TargetKind {
	case models.TargetTask:
		_, err = d.runner.ExecuteTask(ctx, item)
	case models.TargetGraph:
		err = d.runner.ExecuteGraph(ctx, item)
	case models.TargetGraphNode:
		err = d.runner.ExecuteGraphNode(ctx, item)
	default:
		err = fmt.Errorf("unknown target kind %q", item.TargetKind)
	}

	now := time.Now().UTC()
	if err != nil {
		d.logger.Errorf("[scheduler] item %s failed: %v", item.ID, err)
		item.Status = models.ScheduledFailed
		item.LastExecutedAt = &now
		item.NextExecutionAt = nil
		if uerr := d.store.UpdateScheduledItem(item); uerr != nil {
			d.logger.Errorf("[scheduler] item %s: record failure: %v", item.ID, uerr)
		}
		return
	}

	item.ExecutionCount++
	item.LastExecutedAt = &now

	next, calcErr := schedule.NextExecution(item.Schedule, item.ExecutionCount, now)
	switch {
	case calcErr != nil:
		d.logger.Errorf("[scheduler] item %s: next execution: %v", item.ID, calcErr)
		item.Status = models.ScheduledFailed
		item.NextExecutionAt = nil
	case next == nil:
		item.Status = models.ScheduledCompleted
		item.NextExecutionAt = nil
		d.logger.Infof("[scheduler] item %s completed after %d execution(s)", item.ID, item.ExecutionCount)
	default:
		item.Status = models.ScheduledPending
		item.NextExecutionAt = next
		d.logger.Infof("[scheduler] item %s rescheduled for %s", item.ID, next.Format(time.RFC3339))
	}

	if uerr := d.store.UpdateScheduledItem(item); uerr != nil {
		d.logger.Errorf("[scheduler] item %s: record outcome: %v", item.ID, uerr)
	}
}
