// Package delegate splits one request across cooperating sub-agents and
// coordinates their execution.
package delegate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dcallag/stagehand/pkg/models"
)

// ErrNoCandidates indicates delegation was requested with no sub-agents available.
var ErrNoCandidates = errors.New("no candidate agents for delegation")

// defaultPriority is assigned to tasks when the strategy has no better signal.
const defaultPriority = 5

// Planner is the planning oracle consulted by the auto strategy.
// Its response is treated as untrusted text, never as structured data.
type Planner interface {
	Plan(ctx context.Context, prompt string, candidates []*models.Agent) (string, error)
}

// plannedAssignment is the JSON shape expected from the planning oracle.
type plannedAssignment struct {
	AgentID   string `json:"agentId"`
	Task      string `json:"task"`
	Priority  int    `json:"priority"`
	Reasoning string `json:"reasoning"`
}

// plannedResponse wraps the assignment list in the oracle's response object.
type plannedResponse struct {
	Assignments []plannedAssignment `json:"assignments"`
}

// Plan maps a prompt and candidate agents to sub-agent tasks using the
// given strategy. The manual strategy requires a non-nil assignments map;
// the other strategies ignore it.
func Plan(ctx context.Context, strategy models.DelegationStrategy, planner Planner, prompt string, candidates []*models.Agent, assignments map[string]string) ([]models.SubAgentTask, error) {
	switch strategy {
	case models.DelegationManual:
		return ManualPlan(assignments, candidates)
	case models.DelegationSequential:
		return SequentialPlan(prompt, candidates)
	case models.DelegationAuto, "":
		return AutoPlan(ctx, planner, prompt, candidates)
	default:
		return nil, fmt.Errorf("unknown delegation strategy %q", strategy)
	}
}

// AutoPlan splits the prompt across candidates.
// With a single candidate the whole prompt is assigned unsplit. With more,
// the planning oracle proposes per-agent assignments; entries that fail
// validation are dropped, and if nothing usable remains the full prompt is
// fanned out to every candidate.
func AutoPlan(ctx context.Context, planner Planner, prompt string, candidates []*models.Agent) ([]models.SubAgentTask, error) {
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}

	if len(candidates) == 1 {
		return []models.SubAgentTask{{
			AgentID:  candidates[0].ID,
			Prompt:   prompt,
			Priority: defaultPriority,
		}}, nil
	}

	if planner == nil {
		return fanOut(prompt, candidates), nil
	}

	response, err := planner.Plan(ctx, planningPrompt(prompt, candidates), candidates)
	if err != nil {
		// The oracle is advisory. A failed planning call degrades to
		// parallel fan-out rather than failing the whole delegation.
		return fanOut(prompt, candidates), nil
	}

	tasks := parsePlanResponse(response, candidates)
	if len(tasks) == 0 {
		return fanOut(prompt, candidates), nil
	}
	return tasks, nil
}

// parsePlanResponse extracts and validates assignments from the oracle's
// response text. Invalid entries are dropped.
func parsePlanResponse(response string, candidates []*models.Agent) []models.SubAgentTask {
	jsonStr := extractJSON(response)
	if jsonStr == "" {
		return nil
	}

	var proposed []plannedAssignment
	if strings.HasPrefix(jsonStr, "{") {
		var wrapped plannedResponse
		if err := json.Unmarshal([]byte(jsonStr), &wrapped); err != nil {
			return nil
		}
		proposed = wrapped.Assignments
	} else {
		if err := json.Unmarshal([]byte(jsonStr), &proposed); err != nil {
			return nil
		}
	}

	known := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		known[c.ID] = true
	}

	var tasks []models.SubAgentTask
	for _, p := range proposed {
		if !known[p.AgentID] || strings.TrimSpace(p.Task) == "" {
			continue
		}
		priority := p.Priority
		if priority <= 0 {
			priority = defaultPriority
		}
		tasks = append(tasks, models.SubAgentTask{
			AgentID:  p.AgentID,
			Prompt:   p.Task,
			Priority: priority,
		})
	}
	return tasks
}

// extractJSON finds the outermost JSON object or array in free-form text.
func extractJSON(response string) string {
	objStart := strings.Index(response, "{")
	arrStart := strings.Index(response, "[")

	start := objStart
	end := strings.LastIndex(response, "}")
	if objStart == -1 || (arrStart != -1 && arrStart < objStart) {
		start = arrStart
		end = strings.LastIndex(response, "]")
	}
	if start == -1 || end == -1 || end <= start {
		return ""
	}
	return response[start : end+1]
}

// fanOut assigns the full original prompt to every candidate, forcing
// parallel execution of identical work.
func fanOut(prompt string, candidates []*models.Agent) []models.SubAgentTask {
	tasks := make([]models.SubAgentTask, len(candidates))
	for i, c := range candidates {
		tasks[i] = models.SubAgentTask{
			AgentID:  c.ID,
			Prompt:   prompt,
			Priority: defaultPriority,
		}
	}
	return tasks
}

// ManualPlan builds tasks from a caller-supplied agent-to-task map.
// Any agent ID not matching a candidate is an error.
func ManualPlan(assignments map[string]string, candidates []*models.Agent) ([]models.SubAgentTask, error) {
	if len(assignments) == 0 {
		return nil, fmt.Errorf("manual delegation requires an assignments map")
	}

	known := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		known[c.ID] = true
	}
	for agentID := range assignments {
		if !known[agentID] {
			return nil, fmt.Errorf("manual assignment references unknown agent %s", agentID)
		}
	}

	// Iterate candidates to keep task order deterministic.
	var tasks []models.SubAgentTask
	for _, c := range candidates {
		task, ok := assignments[c.ID]
		if !ok {
			continue
		}
		if strings.TrimSpace(task) == "" {
			return nil, fmt.Errorf("manual assignment for agent %s is empty", c.ID)
		}
		tasks = append(tasks, models.SubAgentTask{
			AgentID:  c.ID,
			Prompt:   task,
			Priority: defaultPriority,
		})
	}
	return tasks, nil
}

// SequentialPlan chains the prompt through the candidates in order.
// The first agent gets the literal prompt; every later agent gets a
// continuation variant and a formal dependency on the preceding agent's
// task, with descending priority to fix the chain order.
func SequentialPlan(prompt string, candidates []*models.Agent) ([]models.SubAgentTask, error) {
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}

	tasks := make([]models.SubAgentTask, len(candidates))
	for i, c := range candidates {
		t := models.SubAgentTask{
			AgentID:  c.ID,
			Priority: 10 - i,
		}
		if i == 0 {
			t.Prompt = prompt
		} else {
			t.Prompt = fmt.Sprintf("Continue and enhance the work done so far on the following request: %s", prompt)
			t.DependsOn = []string{candidates[i-1].ID}
		}
		tasks[i] = t
	}
	return tasks, nil
}
