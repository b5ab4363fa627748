package scheduler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/dcallag/stagehand/internal/logging"
	"github.com/dcallag/stagehand/internal/schedule"
	"github.com/dcallag/stagehand/pkg/models"
)

// spoolPollInterval is the fallback scan period for filesystems where
// fsnotify events are unreliable (network mounts, some containers).
const spoolPollInterval = 30 * time.Second

// ItemStore is the persistence surface the spool watcher needs.
type ItemStore interface {
	SaveScheduledItem(item *models.ScheduledItem) error
}

// spoolFile is the YAML shape of a dropped schedule file.
type spoolFile struct {
	OwnerAgentID string `yaml:"owner_agent_id"`
	TargetKind   string `yaml:"target_kind"`
	TargetID     string `yaml:"target_id"`
	NodeID       string `yaml:"node_id"`
	Prompt       string `yaml:"prompt"`
	AgentID      string `yaml:"agent_id"`
	Schedule     struct {
		Type       string           `yaml:"type"`
		ExecuteAt  time.Time        `yaml:"execute_at"`
		Recurrence *spoolRecurrence `yaml:"recurrence"`
	} `yaml:"schedule"`
}

type spoolRecurrence struct {
	Pattern       string     `yaml:"pattern"`
	Interval      int        `yaml:"interval"`
	DaysOfWeek    []int      `yaml:"days_of_week"`
	DayOfMonth    int        `yaml:"day_of_month"`
	CronExpr      string     `yaml:"cron_expr"`
	EndDate       *time.Time `yaml:"end_date"`
	MaxExecutions int        `yaml:"max_executions"`
}

func (r *spoolRecurrence) toModel() *models.Recurrence {
	if r == nil {
		return nil
	}
	days := make([]time.Weekday, 0, len(r.DaysOfWeek))
	for _, d := range r.DaysOfWeek {
		days = append(days, time.Weekday(d))
	}
	if len(days) == 0 {
		days = nil
	}
	return &models.Recurrence{
		Pattern:       models.RecurrencePattern(r.Pattern),
		Interval:      r.Interval,
		DaysOfWeek:    days,
		DayOfMonth:    r.DayOfMonth,
		CronExpr:      r.CronExpr,
		EndDate:       r.EndDate,
		MaxExecutions: r.MaxExecutions,
	}
}

// SpoolWatcher ingests scheduled items dropped as YAML files into a spool
// directory. Valid files become pending scheduled items and are removed;
// invalid files are renamed with a .rejected suffix so they are not
// re-scanned.
type SpoolWatcher struct {
	dir    string
	store  ItemStore
	logger *logging.DebugLogger

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewSpoolWatcher creates a watcher over dir, creating the directory if
// needed.
func NewSpoolWatcher(dir string, store ItemStore, logger *logging.DebugLogger) (*SpoolWatcher, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create spool dir: %w", err)
	}
	return &SpoolWatcher{
		dir:    dir,
		store:  store,
		logger: logger,
		done:   make(chan struct{}),
	}, nil
}

// Start scans existing files, then watches for new ones until Stop.
func (w *SpoolWatcher) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create spool watcher: %w", err)
	}
	if err := watcher.Add(w.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch spool dir %s: %w", w.dir, err)
	}
	w.watcher = watcher

	w.logger.Infof("[spool] watching %s", w.dir)
	w.scan()

	w.wg.Add(1)
	go w.loop()
	return nil
}

// Stop shuts the watcher down and waits for the loop to exit.
func (w *SpoolWatcher) Stop() {
	close(w.done)
	if w.watcher != nil {
		w.watcher.Close()
	}
	w.wg.Wait()
}

func (w *SpoolWatcher) loop() {
	defer w.wg.Done()

	ticker := time.NewTicker(spoolPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Rename) != 0 && isSpoolFile(event.Name) {
				w.ingest(event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warnf("[spool] watch error: %v", err)
		case <-ticker.C:
			w.scan()
		}
	}
}

// scan ingests every spool file currently in the directory.
func (w *SpoolWatcher) scan() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Errorf("[spool] scan %s: %v", w.dir, err)
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(w.dir, entry.Name())
		if isSpoolFile(path) {
			w.ingest(path)
		}
	}
}

func isSpoolFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// ingest parses one spool file into a pending scheduled item. The file is
// removed on success and renamed aside on failure.
func (w *SpoolWatcher) ingest(path string) {
	item, err := w.parse(path)
	if err != nil {
		w.reject(path, err)
		return
	}
	if err := w.store.SaveScheduledItem(item); err != nil {
		w.reject(path, err)
		return
	}
	if err := os.Remove(path); err != nil {
		w.logger.Warnf("[spool] remove %s: %v", path, err)
	}
	w.logger.Infof("[spool] ingested %s as item %s (%s)", filepath.Base(path), item.ID, item.TargetKind)
}

func (w *SpoolWatcher) parse(path string) (*models.ScheduledItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	var f spoolFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	kind := models.TargetKind(f.TargetKind)
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown target kind %q", f.TargetKind)
	}
	if kind == models.TargetTask {
		if f.AgentID == "" {
			return nil, fmt.Errorf("task target requires agent_id")
		}
		if f.Prompt == "" {
			return nil, fmt.Errorf("task target requires prompt")
		}
	} else if f.TargetID == "" {
		return nil, fmt.Errorf("%s target requires target_id", kind)
	}
	if kind == models.TargetGraphNode && f.NodeID == "" {
		return nil, fmt.Errorf("graph_node target requires node_id")
	}

	sched := models.Schedule{
		Type:       models.ScheduleType(f.Schedule.Type),
		ExecuteAt:  f.Schedule.ExecuteAt,
		Recurrence: f.Schedule.Recurrence.toModel(),
	}
	if err := schedule.Validate(sched); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	next, err := schedule.NextExecution(sched, 0, now)
	if err != nil {
		return nil, err
	}
	if next == nil {
		return nil, fmt.Errorf("schedule has no future executions")
	}

	return &models.ScheduledItem{
		ID:              uuid.NewString(),
		OwnerAgentID:    f.OwnerAgentID,
		TargetKind:      kind,
		TargetID:        f.TargetID,
		NodeID:          f.NodeID,
		Prompt:          f.Prompt,
		AgentID:         f.AgentID,
		Schedule:        sched,
		Status:          models.ScheduledPending,
		NextExecutionAt: next,
		CreatedAt:       now,
	}, nil
}

func (w *SpoolWatcher) reject(path string, cause error) {
	w.logger.Errorf("[spool] rejecting %s: %v", filepath.Base(path), cause)
	if err := os.Rename(path, path+".rejected"); err != nil {
		w.logger.Warnf("[spool] rename %s: %v", path, err)
	}
}
