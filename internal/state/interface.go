package state

import (
	"io"
	"time"

	"github.com/dcallag/stagehand/pkg/models"
)

// GraphStore handles graph persistence operations.
type GraphStore interface {
	SaveGraph(g *models.Graph) error
	LoadGraph(id, ownerAgentID string) (*models.Graph, error)
	UpdateGraph(g *models.Graph) error
	DeleteGraph(id, ownerAgentID string) error
	ListGraphs(ownerAgentID string) ([]*models.Graph, error)
}

// ScheduleStore handles scheduled item persistence operations.
type ScheduleStore interface {
	SaveScheduledItem(item *models.ScheduledItem) error
	GetScheduledItem(id string) (*models.ScheduledItem, error)
	UpdateScheduledItem(item *models.ScheduledItem) error
	DeleteScheduledItem(id string) error
	ListScheduledItems(ownerAgentID string) ([]*models.ScheduledItem, error)
	DueScheduledItems(now time.Time, limit int) ([]*models.ScheduledItem, error)
}

// AgentStore handles agent profile persistence operations.
type AgentStore interface {
	SaveAgent(a *models.Agent) error
	GetAgent(id string) (*models.Agent, error)
	DeleteAgent(id string) error
	ListAgents() ([]*models.Agent, error)
	ListSubAgents(parentID string) ([]*models.Agent, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// Store defines the interface for full state persistence.
// The executor and daemon depend on this rather than the concrete SQLite
// implementation; each owns exactly one handle, injected at construction.
type Store interface {
	io.Closer
	Migrator
	GraphStore
	ScheduleStore
	AgentStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ Store         = (*DB)(nil)
	_ Migrator      = (*DB)(nil)
	_ GraphStore    = (*DB)(nil)
	_ ScheduleStore = (*DB)(nil)
	_ AgentStore    = (*DB)(nil)
)
