package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcallag/stagehand/pkg/models"
)

// memStore is an in-memory scheduled item store.
type memStore struct {
	mu    sync.Mutex
	items map[string]*models.ScheduledItem
}

func newMemStore(items ...*models.ScheduledItem) *memStore {
	s := &memStore{items: make(map[string]*models.ScheduledItem)}
	for _, item := range items {
		copied := *item
		s.items[item.ID] = &copied
	}
	return s
}

func (s *memStore) DueScheduledItems(now time.Time, limit int) ([]*models.ScheduledItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []*models.ScheduledItem
	for _, item := range s.items {
		if len(due) >= limit {
			break
		}
		if item.Status == models.ScheduledPending &&
			item.NextExecutionAt != nil && !item.NextExecutionAt.After(now) {
			copied := *item
			due = append(due, &copied)
		}
	}
	return due, nil
}

func (s *memStore) UpdateScheduledItem(item *models.ScheduledItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *item
	s.items[item.ID] = &copied
	return nil
}

func (s *memStore) get(id string) *models.ScheduledItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *s.items[id]
	return &copied
}

// stubRunner counts dispatches and optionally fails or blocks.
type stubRunner struct {
	mu       sync.Mutex
	tasks    int
	graphs   int
	nodes    int
	fail     bool
	blockFor time.Duration
}

func (r *stubRunner) ExecuteTask(ctx context.Context, item *models.ScheduledItem) (string, error) {
	r.mu.Lock()
	r.tasks++
	r.mu.Unlock()
	if r.blockFor > 0 {
		time.Sleep(r.blockFor)
	}
	if r.fail {
		return "", errors.New("dispatch blew up")
	}
	return "done", nil
}

func (r *stubRunner) ExecuteGraph(ctx context.Context, item *models.ScheduledItem) error {
	r.mu.Lock()
	r.graphs++
	r.mu.Unlock()
	if r.fail {
		return errors.New("dispatch blew up")
	}
	return nil
}

func (r *stubRunner) ExecuteGraphNode(ctx context.Context, item *models.ScheduledItem) error {
	r.mu.Lock()
	r.nodes++
	r.mu.Unlock()
	if r.fail {
		return errors.New("dispatch blew up")
	}
	return nil
}

func (r *stubRunner) taskCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tasks
}

func dueTaskItem(id string) *models.ScheduledItem {
	due := time.Now().Add(-time.Second)
	return &models.ScheduledItem{
		ID:              id,
		TargetKind:      models.TargetTask,
		AgentID:         "agent-1",
		Prompt:          "overnight report",
		Schedule:        models.Schedule{Type: models.ScheduleOnce, ExecuteAt: due},
		Status:          models.ScheduledPending,
		NextExecutionAt: &due,
		CreatedAt:       time.Now().Add(-time.Minute),
	}
}

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestDaemonExecutesDueOnceItem(t *testing.T) {
	store := newMemStore(dueTaskItem("item-1"))
	runner := &stubRunner{}
	d := NewDaemon(store, runner, nil, DaemonOptions{CheckInterval: 10 * time.Millisecond})

	d.Start(context.Background())
	defer d.Stop(time.Second)

	waitFor(t, func() bool {
		return store.get("item-1").Status == models.ScheduledCompleted
	})

	item := store.get("item-1")
	assert.Equal(t, 1, item.ExecutionCount)
	assert.Nil(t, item.NextExecutionAt)
	require.NotNil(t, item.LastExecutedAt)
	assert.Equal(t, 1, runner.taskCount())
}

func TestDaemonDoesNotReexecuteCompletedItem(t *testing.T) {
	store := newMemStore(dueTaskItem("item-1"))
	runner := &stubRunner{}
	d := NewDaemon(store, runner, nil, DaemonOptions{CheckInterval: 5 * time.Millisecond})

	d.Start(context.Background())
	defer d.Stop(time.Second)

	waitFor(t, func() bool {
		return store.get("item-1").Status == models.ScheduledCompleted
	})
	// Let several more ticks pass.
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, 1, runner.taskCount())
	assert.Equal(t, 1, store.get("item-1").ExecutionCount)
}

func TestDaemonReschedulesRecurringItem(t *testing.T) {
	item := dueTaskItem("item-1")
	item.Schedule = models.Schedule{
		Type:      models.ScheduleRecurring,
		ExecuteAt: time.Now().Add(-time.Second),
		Recurrence: &models.Recurrence{
			Pattern:  models.RecurrenceDaily,
			Interval: 1,
		},
	}
	store := newMemStore(item)
	runner := &stubRunner{}
	d := NewDaemon(store, runner, nil, DaemonOptions{CheckInterval: 10 * time.Millisecond})

	d.Start(context.Background())
	defer d.Stop(time.Second)

	waitFor(t, func() bool {
		got := store.get("item-1")
		return got.ExecutionCount == 1 && got.Status == models.ScheduledPending
	})

	got := store.get("item-1")
	require.NotNil(t, got.NextExecutionAt)
	assert.True(t, got.NextExecutionAt.After(time.Now()), "next execution must be in the future")
}

func TestDaemonMarksDispatchErrorFailed(t *testing.T) {
	store := newMemStore(dueTaskItem("item-1"))
	runner := &stubRunner{fail: true}
	d := NewDaemon(store, runner, nil, DaemonOptions{CheckInterval: 10 * time.Millisecond})

	d.Start(context.Background())
	defer d.Stop(time.Second)

	waitFor(t, func() bool {
		return store.get("item-1").Status == models.ScheduledFailed
	})

	item := store.get("item-1")
	assert.Equal(t, 0, item.ExecutionCount, "failed dispatch does not count as an execution")
	assert.Nil(t, item.NextExecutionAt)

	// Failed items are never retried.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, runner.taskCount())
}

func TestDaemonStopWaitsForInflightJobs(t *testing.T) {
	store := newMemStore(dueTaskItem("item-1"))
	runner := &stubRunner{blockFor: 100 * time.Millisecond}
	d := NewDaemon(store, runner, nil, DaemonOptions{CheckInterval: 10 * time.Millisecond})

	d.Start(context.Background())
	waitFor(t, func() bool { return runner.taskCount() == 1 })

	drained := d.Stop(time.Second)
	assert.True(t, drained)
	assert.Equal(t, models.ScheduledCompleted, store.get("item-1").Status)
}

func TestDaemonConcurrencySlots(t *testing.T) {
	items := []*models.ScheduledItem{
		dueTaskItem("a"), dueTaskItem("b"), dueTaskItem("c"),
	}
	store := newMemStore(items...)
	runner := &stubRunner{blockFor: 50 * time.Millisecond}
	d := NewDaemon(store, runner, nil, DaemonOptions{
		CheckInterval:     5 * time.Millisecond,
		MaxConcurrentJobs: 1,
	})

	d.Start(context.Background())
	defer d.Stop(2 * time.Second)

	waitFor(t, func() bool {
		for _, id := range []string{"a", "b", "c"} {
			if store.get(id).Status != models.ScheduledCompleted {
				return false
			}
		}
		return true
	})
	assert.Equal(t, 3, runner.taskCount())
}
