package models

// Agent represents an agent profile registered with the engine.
// Agents do no work themselves; they are handles that the graph executor
// and the sub-agent coordinator invoke through the API boundary.
type Agent struct {
	// ID is the unique identifier for this agent.
	ID string `json:"id"`
	// Name is the human-readable agent name.
	Name string `json:"name"`
	// Role describes what the agent specializes in. It is passed to the
	// planning oracle when work is split across agents.
	Role string `json:"role,omitempty"`
	// ParentID is the ID of the agent this one serves as a sub-agent,
	// empty for top-level agents.
	ParentID string `json:"parent_id,omitempty"`
	// Model optionally pins the LLM model used for this agent's calls.
	Model string `json:"model,omitempty"`
}

// IsSubAgent returns true if this agent is registered under a parent.
func (a *Agent) IsSubAgent() bool {
	return a.ParentID != ""
}
