package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/dcallag/stagehand/internal/api"
	"github.com/dcallag/stagehand/internal/logging"
	"github.com/dcallag/stagehand/pkg/models"
)

// ErrUnknownAgent is returned when an invocation names an agent ID that
// has not been registered.
var ErrUnknownAgent = errors.New("unknown agent")

// Invoker executes prompts against registered agents via the Anthropic API.
// Each agent's Role becomes the system prompt; an agent may override the
// default model.
type Invoker struct {
	registry *Registry
	runner   *api.Runner
	logger   *logging.DebugLogger
}

// NewInvoker creates an Invoker over the given registry and API runner.
func NewInvoker(registry *Registry, runner *api.Runner, logger *logging.DebugLogger) *Invoker {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Invoker{
		registry: registry,
		runner:   runner,
		logger:   logger,
	}
}

// Invoke sends a prompt to the agent with the given ID and returns the
// text response.
func (inv *Invoker) Invoke(ctx context.Context, agentID, prompt string) (string, error) {
	a, ok := inv.registry.Agent(agentID)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownAgent, agentID)
	}

	inv.logger.Debugf("invoking agent %s (%s)", a.ID, a.Name)

	system := systemPromptFor(a)

	var output string
	var err error
	if a.Model != "" {
		output, err = inv.runner.RunWithModel(ctx, anthropic.Model(a.Model), system, prompt)
	} else {
		output, err = inv.runner.RunWithSystem(ctx, system, prompt)
	}
	if err != nil {
		return "", fmt.Errorf("agent %s: %w", a.ID, err)
	}
	return output, nil
}

// Plan sends a delegation planning prompt and returns the raw planner text.
// It satisfies the delegation Planner contract.
func (inv *Invoker) Plan(ctx context.Context, prompt string, candidates []*models.Agent) (string, error) {
	inv.logger.Debugf("planning delegation across %d candidates", len(candidates))
	return inv.runner.Run(ctx, prompt)
}

func systemPromptFor(a *models.Agent) string {
	if a.Role == "" {
		return fmt.Sprintf("You are %s, an autonomous agent. Complete the task you are given and respond with your results.", a.Name)
	}
	return a.Role
}
