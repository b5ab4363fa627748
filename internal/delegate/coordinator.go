package delegate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dcallag/stagehand/internal/logging"
	"github.com/dcallag/stagehand/pkg/models"
)

// ErrCycleDetected indicates a circular dependency among sub-agent tasks.
var ErrCycleDetected = errors.New("circular dependency detected among sub-agent tasks")

// Fixed aggregation sentinels.
const (
	noResultsText = "No results were produced by sub-agents."
	allFailedText = "All sub-agent tasks failed."
)

// Invoker executes a prompt against a real agent.
type Invoker interface {
	Invoke(ctx context.Context, agentID, prompt string) (string, error)
}

// Directory resolves agent profiles for display names.
type Directory interface {
	Agent(id string) (*models.Agent, bool)
}

// Coordinator executes delegated sub-agent tasks and aggregates results.
type Coordinator struct {
	invoker   Invoker
	directory Directory
	logger    *logging.DebugLogger
}

// NewCoordinator creates a Coordinator with the given invoker and directory.
func NewCoordinator(invoker Invoker, directory Directory, logger *logging.DebugLogger) *Coordinator {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Coordinator{invoker: invoker, directory: directory, logger: logger}
}

// Run executes the tasks under the given coordination pattern and returns
// the aggregated result. A single task's failure never aborts its siblings;
// only a structural error (unknown pattern, dependency cycle) fails the run.
func (c *Coordinator) Run(ctx context.Context, tasks []models.SubAgentTask, pattern models.CoordinationPattern) (*models.CoordinationResult, error) {
	start := time.Now()

	var results []models.SubAgentResult
	var err error
	switch pattern {
	case models.CoordinationSequential:
		results, err = c.runSequential(ctx, tasks)
	case models.CoordinationParallel, "":
		results = c.runParallel(ctx, tasks)
	default:
		return nil, fmt.Errorf("unknown coordination pattern %q", pattern)
	}
	if err != nil {
		return nil, err
	}

	out := &models.CoordinationResult{
		Results:            results,
		FinalResult:        aggregate(results),
		TotalExecutionTime: time.Since(start),
	}
	for _, r := range results {
		if !r.Success {
			out.Errors = append(out.Errors, fmt.Sprintf("%s: %s", r.AgentName, r.Error))
		}
	}

	c.logger.Infof("[coordinator] %s run finished: %d results, %d errors in %s",
		patternName(pattern), len(results), len(out.Errors), out.TotalExecutionTime)
	return out, nil
}

func patternName(p models.CoordinationPattern) string {
	if p == "" {
		return string(models.CoordinationParallel)
	}
	return string(p)
}

// runParallel dispatches every task concurrently. Result ordering follows
// the task list for determinism, but completion order is not a contract.
func (c *Coordinator) runParallel(ctx context.Context, tasks []models.SubAgentTask) []models.SubAgentResult {
	results := make([]models.SubAgentResult, len(tasks))

	var wg sync.WaitGroup
	for i, task := range tasks {
		wg.Add(1)
		go func(i int, task models.SubAgentTask) {
			defer wg.Done()
			results[i] = c.executeOne(ctx, task)
		}(i, task)
	}
	wg.Wait()

	return results
}

// runSequential executes tasks strictly one at a time in dependency order.
// Before each task, the outputs of its successfully completed dependencies
// are rendered into the prompt as previous context.
func (c *Coordinator) runSequential(ctx context.Context, tasks []models.SubAgentTask) ([]models.SubAgentResult, error) {
	ordered, err := sortByDependencies(tasks)
	if err != nil {
		return nil, err
	}

	byAgent := make(map[string]models.SubAgentResult, len(ordered))
	results := make([]models.SubAgentResult, 0, len(ordered))

	for _, task := range ordered {
		if digest := previousContext(task, byAgent); digest != "" {
			task.Prompt = digest + "\n\n" + task.Prompt
		}

		r := c.executeOne(ctx, task)
		byAgent[task.AgentID] = r
		results = append(results, r)
	}

	return results, nil
}

// previousContext renders the successful results of the task's dependencies.
func previousContext(task models.SubAgentTask, byAgent map[string]models.SubAgentResult) string {
	var parts []string
	for _, depID := range task.DependsOn {
		dep, ok := byAgent[depID]
		if !ok || !dep.Success {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", dep.AgentName, dep.Output))
	}
	if len(parts) == 0 {
		return ""
	}
	return "Previous context:\n" + strings.Join(parts, "\n")
}

// executeOne runs a single task and captures its outcome.
func (c *Coordinator) executeOne(ctx context.Context, task models.SubAgentTask) models.SubAgentResult {
	result := models.SubAgentResult{
		AgentID:   task.AgentID,
		AgentName: task.AgentID,
		Prompt:    task.Prompt,
	}
	if agent, ok := c.directory.Agent(task.AgentID); ok {
		result.AgentName = agent.Name
	}

	c.logger.Debugf("[coordinator] invoking agent %s (prompt %d chars)", task.AgentID, len(task.Prompt))
	start := time.Now()
	output, err := c.invoker.Invoke(ctx, task.AgentID, task.Prompt)
	result.ExecutionTime = time.Since(start)

	if err != nil {
		result.Error = err.Error()
		c.logger.Warnf("[coordinator] agent %s failed after %s: %v", task.AgentID, result.ExecutionTime, err)
		return result
	}

	result.Output = output
	result.Success = true
	return result
}

// sortByDependencies orders tasks so every task follows its dependencies,
// breaking ties by descending priority. Dependencies are keyed by agent ID.
// A dependency on an agent with no task in the list is ignored.
func sortByDependencies(tasks []models.SubAgentTask) ([]models.SubAgentTask, error) {
	byAgent := make(map[string]models.SubAgentTask, len(tasks))
	for _, t := range tasks {
		byAgent[t.AgentID] = t
	}

	// Detect cycles with DFS coloring before ordering.
	// 0 = unvisited, 1 = visiting, 2 = done.
	colors := make(map[string]int, len(tasks))
	var visit func(id string) error
	visit = func(id string) error {
		colors[id] = 1
		for _, depID := range byAgent[id].DependsOn {
			if _, ok := byAgent[depID]; !ok {
				continue
			}
			switch colors[depID] {
			case 1:
				return ErrCycleDetected
			case 0:
				if err := visit(depID); err != nil {
					return err
				}
			}
		}
		colors[id] = 2
		return nil
	}
	for _, t := range tasks {
		if colors[t.AgentID] == 0 {
			if err := visit(t.AgentID); err != nil {
				return nil, err
			}
		}
	}

	// Repeatedly pick the highest-priority task whose dependencies are
	// already ordered.
	placed := make(map[string]bool, len(tasks))
	remaining := make([]models.SubAgentTask, len(tasks))
	copy(remaining, tasks)
	sort.SliceStable(remaining, func(i, j int) bool {
		return remaining[i].Priority > remaining[j].Priority
	})

	ordered := make([]models.SubAgentTask, 0, len(tasks))
	for len(ordered) < len(tasks) {
		progressed := false
		for i, t := range remaining {
			if placed[t.AgentID] {
				continue
			}
			ready := true
			for _, depID := range t.DependsOn {
				if _, ok := byAgent[depID]; ok && !placed[depID] {
					ready = false
					break
				}
			}
			if ready {
				ordered = append(ordered, t)
				placed[t.AgentID] = true
				remaining = append(remaining[:i], remaining[i+1:]...)
				progressed = true
				break
			}
		}
		if !progressed {
			return nil, ErrCycleDetected
		}
	}

	return ordered, nil
}

// aggregate merges sub-agent results into a single output string.
// Zero results yields a fixed sentinel; one result is returned verbatim;
// multiple results concatenate every successful output under a per-agent
// heading separated by a rule.
func aggregate(results []models.SubAgentResult) string {
	switch len(results) {
	case 0:
		return noResultsText
	case 1:
		return results[0].Output
	}

	var sections []string
	for _, r := range results {
		if !r.Success {
			continue
		}
		sections = append(sections, fmt.Sprintf("## %s\n\n%s", r.AgentName, r.Output))
	}
	if len(sections) == 0 {
		return allFailedText
	}
	return strings.Join(sections, "\n\n---\n\n")
}
