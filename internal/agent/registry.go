// Package agent manages the set of known agents and executes prompts
// against them through the Anthropic API.
package agent

import (
	"fmt"
	"sync"

	"github.com/dcallag/stagehand/pkg/models"
)

// Registry is an in-memory directory of agents keyed by ID.
// Lookup order for List and SubAgents is registration order.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]*models.Agent
	order  []string
}

// NewRegistry creates an empty agent registry.
func NewRegistry() *Registry {
	return &Registry{
		agents: make(map[string]*models.Agent),
	}
}

// Register adds an agent to the registry. Registering an already-known ID
// replaces the stored profile but keeps its position in the ordering.
func (r *Registry) Register(a *models.Agent) error {
	if a == nil {
		return fmt.Errorf("agent must not be nil")
	}
	if a.ID == "" {
		return fmt.Errorf("agent ID must not be empty")
	}
	if a.Name == "" {
		return fmt.Errorf("agent %s: name must not be empty", a.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.agents[a.ID]; !exists {
		r.order = append(r.order, a.ID)
	}
	r.agents[a.ID] = a
	return nil
}

// Agent returns the agent with the given ID and whether it is registered.
func (r *Registry) Agent(id string) (*models.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	return a, ok
}

// List returns all registered agents in registration order.
func (r *Registry) List() []*models.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Agent, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.agents[id])
	}
	return out
}

// SubAgents returns the agents whose parent is the given agent, in
// registration order.
func (r *Registry) SubAgents(parentID string) []*models.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.Agent
	for _, id := range r.order {
		if a := r.agents[id]; a.ParentID == parentID {
			out = append(out, a)
		}
	}
	return out
}

// ProfileStore is the subset of persistence used to load saved agent profiles.
type ProfileStore interface {
	ListAgents() ([]*models.Agent, error)
}

// LoadFromStore registers every agent profile found in the store.
func (r *Registry) LoadFromStore(store ProfileStore) error {
	agents, err := store.ListAgents()
	if err != nil {
		return fmt.Errorf("load agent profiles: %w", err)
	}
	for _, a := range agents {
		if err := r.Register(a); err != nil {
			return err
		}
	}
	return nil
}
