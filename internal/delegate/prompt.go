package delegate

import (
	"fmt"
	"strings"

	"github.com/dcallag/stagehand/pkg/models"
)

// planningPrompt renders the request and candidate roster for the planning
// oracle. The oracle must answer with a JSON object whose "assignments"
// array carries one entry per sub-agent task.
func planningPrompt(request string, candidates []*models.Agent) string {
	var roster strings.Builder
	for _, c := range candidates {
		role := c.Role
		if role == "" {
			role = "general-purpose agent"
		}
		fmt.Fprintf(&roster, "- id: %s, name: %s, role: %s\n", c.ID, c.Name, role)
	}

	return fmt.Sprintf(`You are coordinating a team of agents. Split the request below into
per-agent tasks, assigning each task to the agent best suited for it.

Request:
%s

Available agents:
%s
Respond with ONLY a JSON object of this shape:
{
  "assignments": [
    {"agentId": "<agent id>", "task": "<task text>", "priority": <1-10>, "reasoning": "<why this agent>"}
  ]
}

Rules:
- agentId must be one of the ids listed above.
- task must be a non-empty, self-contained instruction.
- Not every agent needs an assignment; only create tasks that add value.`, request, roster.String())
}
