package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dcallag/stagehand/pkg/models"
)

// SaveScheduledItem inserts a new scheduled item.
func (db *DB) SaveScheduledItem(item *models.ScheduledItem) error {
	sched, err := json.Marshal(item.Schedule)
	if err != nil {
		return fmt.Errorf("encode schedule for item %s: %w", item.ID, err)
	}

	_, err = db.Exec(`
		INSERT INTO scheduled_items (id, owner_agent_id, target_kind, target_id,
			node_id, agent_id, prompt, schedule, status, execution_count,
			last_executed_at, next_execution_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, item.ID, item.OwnerAgentID, string(item.TargetKind), item.TargetID,
		item.NodeID, item.AgentID, item.Prompt, string(sched), string(item.Status),
		item.ExecutionCount, formatNullableTime(item.LastExecutedAt),
		formatNullableTime(item.NextExecutionAt), formatTime(item.CreatedAt))
	if err != nil {
		return fmt.Errorf("save scheduled item %s: %w", item.ID, err)
	}
	return nil
}

// GetScheduledItem fetches a scheduled item by ID.
func (db *DB) GetScheduledItem(id string) (*models.ScheduledItem, error) {
	row := db.QueryRow(selectScheduledItem+` WHERE id = ?`, id)
	item, err := scanScheduledItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("scheduled item %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get scheduled item %s: %w", id, err)
	}
	return item, nil
}

// UpdateScheduledItem rewrites a stored scheduled item.
func (db *DB) UpdateScheduledItem(item *models.ScheduledItem) error {
	sched, err := json.Marshal(item.Schedule)
	if err != nil {
		return fmt.Errorf("encode schedule for item %s: %w", item.ID, err)
	}

	result, err := db.Exec(`
		UPDATE scheduled_items
		SET target_kind = ?, target_id = ?, node_id = ?, agent_id = ?, prompt = ?,
			schedule = ?, status = ?, execution_count = ?,
			last_executed_at = ?, next_execution_at = ?
		WHERE id = ?
	`, string(item.TargetKind), item.TargetID, item.NodeID, item.AgentID,
		item.Prompt, string(sched), string(item.Status), item.ExecutionCount,
		formatNullableTime(item.LastExecutedAt), formatNullableTime(item.NextExecutionAt),
		item.ID)
	if err != nil {
		return fmt.Errorf("update scheduled item %s: %w", item.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update scheduled item %s: %w", item.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("scheduled item %s: %w", item.ID, ErrNotFound)
	}
	return nil
}

// DeleteScheduledItem removes a scheduled item.
func (db *DB) DeleteScheduledItem(id string) error {
	result, err := db.Exec(`DELETE FROM scheduled_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete scheduled item %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete scheduled item %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("scheduled item %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListScheduledItems returns all items owned by the given agent, soonest
// due first.
func (db *DB) ListScheduledItems(ownerAgentID string) ([]*models.ScheduledItem, error) {
	rows, err := db.Query(selectScheduledItem+`
		WHERE owner_agent_id = ?
		ORDER BY next_execution_at ASC
	`, ownerAgentID)
	if err != nil {
		return nil, fmt.Errorf("list scheduled items: %w", err)
	}
	defer rows.Close()
	return collectScheduledItems(rows)
}

// AllScheduledItems returns every item regardless of owner, soonest due
// first with unscheduled items last.
func (db *DB) AllScheduledItems() ([]*models.ScheduledItem, error) {
	rows, err := db.Query(selectScheduledItem + `
		ORDER BY next_execution_at IS NULL, next_execution_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list scheduled items: %w", err)
	}
	defer rows.Close()
	return collectScheduledItems(rows)
}

// DueScheduledItems returns up to limit pending items whose next execution
// is at or before now, ordered by due time.
func (db *DB) DueScheduledItems(now time.Time, limit int) ([]*models.ScheduledItem, error) {
	rows, err := db.Query(selectScheduledItem+`
		WHERE status = ? AND next_execution_at IS NOT NULL AND next_execution_at <= ?
		ORDER BY next_execution_at ASC
		LIMIT ?
	`, string(models.ScheduledPending), formatTime(now), limit)
	if err != nil {
		return nil, fmt.Errorf("due scheduled items: %w", err)
	}
	defer rows.Close()
	return collectScheduledItems(rows)
}

const selectScheduledItem = `
	SELECT id, owner_agent_id, target_kind, target_id, node_id, agent_id,
		prompt, schedule, status, execution_count,
		last_executed_at, next_execution_at, created_at
	FROM scheduled_items`

func collectScheduledItems(rows *sql.Rows) ([]*models.ScheduledItem, error) {
	var items []*models.ScheduledItem
	for rows.Next() {
		item, err := scanScheduledItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scheduled item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanScheduledItem(row rowScanner) (*models.ScheduledItem, error) {
	var item models.ScheduledItem
	var targetKind, sched, status, createdAt string
	var lastExecutedAt, nextExecutionAt sql.NullString

	err := row.Scan(&item.ID, &item.OwnerAgentID, &targetKind, &item.TargetID,
		&item.NodeID, &item.AgentID, &item.Prompt, &sched, &status,
		&item.ExecutionCount, &lastExecutedAt, &nextExecutionAt, &createdAt)
	if err != nil {
		return nil, err
	}

	item.TargetKind = models.TargetKind(targetKind)
	item.Status = models.ScheduledItemStatus(status)
	if err := json.Unmarshal([]byte(sched), &item.Schedule); err != nil {
		return nil, fmt.Errorf("decode schedule: %w", err)
	}

	created, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("decode created_at: %w", err)
	}
	item.CreatedAt = created
	item.LastExecutedAt = parseNullableTime(lastExecutedAt)
	item.NextExecutionAt = parseNullableTime(nextExecutionAt)

	return &item, nil
}
