package state

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/dcallag/stagehand/pkg/models"
)

// SaveAgent inserts or replaces an agent profile.
func (db *DB) SaveAgent(a *models.Agent) error {
	_, err := db.Exec(`
		INSERT INTO agents (id, name, role, parent_id, model)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			role = excluded.role,
			parent_id = excluded.parent_id,
			model = excluded.model
	`, a.ID, a.Name, a.Role, a.ParentID, a.Model)
	if err != nil {
		return fmt.Errorf("save agent %s: %w", a.ID, err)
	}
	return nil
}

// GetAgent fetches an agent profile by ID.
func (db *DB) GetAgent(id string) (*models.Agent, error) {
	row := db.QueryRow(`SELECT id, name, role, parent_id, model FROM agents WHERE id = ?`, id)

	var a models.Agent
	if err := row.Scan(&a.ID, &a.Name, &a.Role, &a.ParentID, &a.Model); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("agent %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get agent %s: %w", id, err)
	}
	return &a, nil
}

// DeleteAgent removes an agent profile.
func (db *DB) DeleteAgent(id string) error {
	result, err := db.Exec(`DELETE FROM agents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete agent %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete agent %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("agent %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListAgents returns all agent profiles ordered by name.
func (db *DB) ListAgents() ([]*models.Agent, error) {
	rows, err := db.Query(`SELECT id, name, role, parent_id, model FROM agents ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var agents []*models.Agent
	for rows.Next() {
		var a models.Agent
		if err := rows.Scan(&a.ID, &a.Name, &a.Role, &a.ParentID, &a.Model); err != nil {
			return nil, fmt.Errorf("list agents: %w", err)
		}
		agents = append(agents, &a)
	}
	return agents, rows.Err()
}

// ListSubAgents returns the agents registered under the given parent.
func (db *DB) ListSubAgents(parentID string) ([]*models.Agent, error) {
	rows, err := db.Query(`SELECT id, name, role, parent_id, model FROM agents WHERE parent_id = ? ORDER BY name`, parentID)
	if err != nil {
		return nil, fmt.Errorf("list sub-agents of %s: %w", parentID, err)
	}
	defer rows.Close()

	var agents []*models.Agent
	for rows.Next() {
		var a models.Agent
		if err := rows.Scan(&a.ID, &a.Name, &a.Role, &a.ParentID, &a.Model); err != nil {
			return nil, fmt.Errorf("list sub-agents of %s: %w", parentID, err)
		}
		agents = append(agents, &a)
	}
	return agents, rows.Err()
}
