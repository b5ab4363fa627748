package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dcallag/stagehand/pkg/models"
)

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// SaveGraph inserts a new graph.
func (db *DB) SaveGraph(g *models.Graph) error {
	nodes, edges, log, err := encodeGraphFields(g)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		INSERT INTO graphs (id, owner_agent_id, name, status, max_concurrency,
			nodes, edges, execution_log, created_at, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, g.ID, g.OwnerAgentID, g.Name, string(g.Status), g.MaxConcurrency,
		nodes, edges, log, formatTime(g.CreatedAt),
		formatNullableTime(g.StartedAt), formatNullableTime(g.CompletedAt))
	if err != nil {
		return fmt.Errorf("save graph %s: %w", g.ID, err)
	}
	return nil
}

// LoadGraph fetches a graph by ID and owning agent.
func (db *DB) LoadGraph(id, ownerAgentID string) (*models.Graph, error) {
	row := db.QueryRow(`
		SELECT id, owner_agent_id, name, status, max_concurrency,
			nodes, edges, execution_log, created_at, started_at, completed_at
		FROM graphs WHERE id = ? AND owner_agent_id = ?
	`, id, ownerAgentID)

	g, err := scanGraph(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("graph %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("load graph %s: %w", id, err)
	}
	return g, nil
}

// UpdateGraph rewrites a stored graph snapshot.
func (db *DB) UpdateGraph(g *models.Graph) error {
	nodes, edges, log, err := encodeGraphFields(g)
	if err != nil {
		return err
	}

	result, err := db.Exec(`
		UPDATE graphs
		SET name = ?, status = ?, max_concurrency = ?, nodes = ?, edges = ?,
			execution_log = ?, started_at = ?, completed_at = ?
		WHERE id = ? AND owner_agent_id = ?
	`, g.Name, string(g.Status), g.MaxConcurrency, nodes, edges, log,
		formatNullableTime(g.StartedAt), formatNullableTime(g.CompletedAt),
		g.ID, g.OwnerAgentID)
	if err != nil {
		return fmt.Errorf("update graph %s: %w", g.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update graph %s: %w", g.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("graph %s: %w", g.ID, ErrNotFound)
	}
	return nil
}

// DeleteGraph removes a stored graph.
func (db *DB) DeleteGraph(id, ownerAgentID string) error {
	result, err := db.Exec(`DELETE FROM graphs WHERE id = ? AND owner_agent_id = ?`, id, ownerAgentID)
	if err != nil {
		return fmt.Errorf("delete graph %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete graph %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("graph %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListGraphs returns all graphs owned by the given agent, newest first.
func (db *DB) ListGraphs(ownerAgentID string) ([]*models.Graph, error) {
	rows, err := db.Query(`
		SELECT id, owner_agent_id, name, status, max_concurrency,
			nodes, edges, execution_log, created_at, started_at, completed_at
		FROM graphs WHERE owner_agent_id = ?
		ORDER BY created_at DESC
	`, ownerAgentID)
	if err != nil {
		return nil, fmt.Errorf("list graphs: %w", err)
	}
	defer rows.Close()

	var graphs []*models.Graph
	for rows.Next() {
		g, err := scanGraph(rows)
		if err != nil {
			return nil, fmt.Errorf("list graphs: %w", err)
		}
		graphs = append(graphs, g)
	}
	return graphs, rows.Err()
}

// AllGraphs returns every stored graph regardless of owner, newest first.
func (db *DB) AllGraphs() ([]*models.Graph, error) {
	rows, err := db.Query(`
		SELECT id, owner_agent_id, name, status, max_concurrency,
			nodes, edges, execution_log, created_at, started_at, completed_at
		FROM graphs
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list graphs: %w", err)
	}
	defer rows.Close()

	var graphs []*models.Graph
	for rows.Next() {
		g, err := scanGraph(rows)
		if err != nil {
			return nil, fmt.Errorf("list graphs: %w", err)
		}
		graphs = append(graphs, g)
	}
	return graphs, rows.Err()
}

// encodeGraphFields serializes the graph's nested collections to JSON.
func encodeGraphFields(g *models.Graph) (nodes, edges, log string, err error) {
	nb, err := json.Marshal(emptySliceIfNil(g.Nodes))
	if err != nil {
		return "", "", "", fmt.Errorf("encode graph %s nodes: %w", g.ID, err)
	}
	eb, err := json.Marshal(emptySliceIfNil(g.Edges))
	if err != nil {
		return "", "", "", fmt.Errorf("encode graph %s edges: %w", g.ID, err)
	}
	lb, err := json.Marshal(emptyLogIfNil(g.ExecutionLog))
	if err != nil {
		return "", "", "", fmt.Errorf("encode graph %s log: %w", g.ID, err)
	}
	return string(nb), string(eb), string(lb), nil
}

func emptySliceIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func emptyLogIfNil(s []models.LogEntry) []models.LogEntry {
	if s == nil {
		return []models.LogEntry{}
	}
	return s
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanGraph(row rowScanner) (*models.Graph, error) {
	var g models.Graph
	var status, nodes, edges, log, createdAt string
	var startedAt, completedAt sql.NullString

	err := row.Scan(&g.ID, &g.OwnerAgentID, &g.Name, &status, &g.MaxConcurrency,
		&nodes, &edges, &log, &createdAt, &startedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	g.Status = models.GraphStatus(status)
	if err := json.Unmarshal([]byte(nodes), &g.Nodes); err != nil {
		return nil, fmt.Errorf("decode nodes: %w", err)
	}
	if err := json.Unmarshal([]byte(edges), &g.Edges); err != nil {
		return nil, fmt.Errorf("decode edges: %w", err)
	}
	if err := json.Unmarshal([]byte(log), &g.ExecutionLog); err != nil {
		return nil, fmt.Errorf("decode execution log: %w", err)
	}

	created, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("decode created_at: %w", err)
	}
	g.CreatedAt = created
	g.StartedAt = parseNullableTime(startedAt)
	g.CompletedAt = parseNullableTime(completedAt)

	return &g, nil
}

// ResetGraphForRun restores a stored graph's nodes to pending so a failed or
// completed graph can be re-run from scratch.
func ResetGraphForRun(g *models.Graph) {
	g.Status = models.GraphStatusIdle
	g.StartedAt = nil
	g.CompletedAt = nil
	for _, n := range g.Nodes {
		n.Status = models.NodeStatusPending
		n.Result = ""
		n.Error = ""
		n.StartedAt = nil
		n.CompletedAt = nil
	}
}

// PurgeOldGraphs deletes terminal graphs whose latest run completed before
// the cutoff. Returns the number of graphs deleted.
func (db *DB) PurgeOldGraphs(olderThan time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-olderThan))
	result, err := db.Exec(`
		DELETE FROM graphs
		WHERE status IN ('completed', 'failed') AND completed_at < ?
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge old graphs: %w", err)
	}
	return result.RowsAffected()
}
