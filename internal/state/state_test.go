package state

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcallag/stagehand/pkg/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "stagehand.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())
	return db
}

func sampleGraph(id, owner string) *models.Graph {
	g := models.NewGraph(id, "nightly build", 2)
	g.OwnerAgentID = owner
	g.Nodes = []*models.GraphNode{
		{
			ID:       "fetch",
			Name:     "fetch sources",
			Kind:     models.NodeKindTask,
			AgentID:  "agent-1",
			Prompt:   "pull the latest sources",
			Priority: 5,
			Status:   models.NodeStatusPending,
		},
		{
			ID:        "build",
			Name:      "build artifacts",
			Kind:      models.NodeKindTask,
			AgentID:   "agent-2",
			Prompt:    "compile everything",
			DependsOn: []string{"fetch"},
			Status:    models.NodeStatusPending,
		},
	}
	g.Edges = []*models.GraphEdge{{From: "fetch", To: "build"}}
	return g
}

func TestFormatTimeSortsLexicographically(t *testing.T) {
	base := time.Date(2026, 9, 1, 6, 0, 0, 0, time.UTC)
	times := []time.Time{
		base,
		base.Add(500 * time.Millisecond),
		base.Add(time.Second),
		base.Add(time.Second + 250*time.Millisecond),
	}
	for i := 1; i < len(times); i++ {
		prev, cur := formatTime(times[i-1]), formatTime(times[i])
		assert.Less(t, prev, cur)
		assert.Len(t, cur, len(prev), "timestamps must be fixed width")
	}

	parsed, err := parseTime(formatTime(times[1]))
	require.NoError(t, err)
	assert.True(t, parsed.Equal(times[1]))
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Migrate())
	require.NoError(t, db.Migrate())
}

func TestGraphRoundTrip(t *testing.T) {
	db := openTestDB(t)

	g := sampleGraph("g1", "owner-1")
	g.AppendLog(models.LogInfo, "fetch", "queued")
	require.NoError(t, db.SaveGraph(g))

	loaded, err := db.LoadGraph("g1", "owner-1")
	require.NoError(t, err)

	assert.Equal(t, g.ID, loaded.ID)
	assert.Equal(t, g.Name, loaded.Name)
	assert.Equal(t, g.OwnerAgentID, loaded.OwnerAgentID)
	assert.Equal(t, models.GraphStatusIdle, loaded.Status)
	assert.Equal(t, 2, loaded.MaxConcurrency)
	require.Len(t, loaded.Nodes, 2)
	assert.Equal(t, "fetch", loaded.Nodes[0].ID)
	assert.Equal(t, []string{"fetch"}, loaded.Nodes[1].DependsOn)
	require.Len(t, loaded.Edges, 1)
	assert.Equal(t, "fetch", loaded.Edges[0].From)
	require.Len(t, loaded.ExecutionLog, 1)
	assert.Equal(t, "queued", loaded.ExecutionLog[0].Message)
}

func TestLoadGraphScopedToOwner(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.SaveGraph(sampleGraph("g1", "owner-1")))

	_, err := db.LoadGraph("g1", "someone-else")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateGraphPersistsRunState(t *testing.T) {
	db := openTestDB(t)
	g := sampleGraph("g1", "owner-1")
	require.NoError(t, db.SaveGraph(g))

	started := time.Now().UTC()
	completed := started.Add(time.Minute)
	g.Status = models.GraphStatusCompleted
	g.StartedAt = &started
	g.CompletedAt = &completed
	g.Nodes[0].Status = models.NodeStatusCompleted
	g.Nodes[0].Result = "sources at abc123"
	require.NoError(t, db.UpdateGraph(g))

	loaded, err := db.LoadGraph("g1", "owner-1")
	require.NoError(t, err)
	assert.Equal(t, models.GraphStatusCompleted, loaded.Status)
	require.NotNil(t, loaded.StartedAt)
	require.NotNil(t, loaded.CompletedAt)
	assert.Equal(t, models.NodeStatusCompleted, loaded.Nodes[0].Status)
	assert.Equal(t, "sources at abc123", loaded.Nodes[0].Result)
}

func TestUpdateGraphNotFound(t *testing.T) {
	db := openTestDB(t)
	err := db.UpdateGraph(sampleGraph("ghost", "owner-1"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteGraph(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.SaveGraph(sampleGraph("g1", "owner-1")))

	require.NoError(t, db.DeleteGraph("g1", "owner-1"))
	_, err := db.LoadGraph("g1", "owner-1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, db.DeleteGraph("g1", "owner-1"), ErrNotFound)
}

func TestListGraphsFiltersAndOrders(t *testing.T) {
	db := openTestDB(t)

	older := sampleGraph("g-old", "owner-1")
	older.CreatedAt = time.Now().Add(-time.Hour)
	newer := sampleGraph("g-new", "owner-1")
	other := sampleGraph("g-other", "owner-2")
	require.NoError(t, db.SaveGraph(older))
	require.NoError(t, db.SaveGraph(newer))
	require.NoError(t, db.SaveGraph(other))

	mine, err := db.ListGraphs("owner-1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "g-new", mine[0].ID)
	assert.Equal(t, "g-old", mine[1].ID)

	all, err := db.AllGraphs()
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestResetGraphForRun(t *testing.T) {
	g := sampleGraph("g1", "owner-1")
	now := time.Now()
	g.Status = models.GraphStatusFailed
	g.StartedAt = &now
	g.CompletedAt = &now
	g.Nodes[0].Status = models.NodeStatusFailed
	g.Nodes[0].Error = "boom"
	g.Nodes[1].Status = models.NodeStatusSkipped
	g.Nodes[1].Result = "stale"

	ResetGraphForRun(g)

	assert.Equal(t, models.GraphStatusIdle, g.Status)
	assert.Nil(t, g.StartedAt)
	assert.Nil(t, g.CompletedAt)
	for _, n := range g.Nodes {
		assert.Equal(t, models.NodeStatusPending, n.Status)
		assert.Empty(t, n.Result)
		assert.Empty(t, n.Error)
		assert.Nil(t, n.StartedAt)
		assert.Nil(t, n.CompletedAt)
	}
}

func TestPurgeOldGraphs(t *testing.T) {
	db := openTestDB(t)

	old := sampleGraph("g-old", "owner-1")
	oldDone := time.Now().Add(-48 * time.Hour)
	old.Status = models.GraphStatusCompleted
	old.CompletedAt = &oldDone

	fresh := sampleGraph("g-fresh", "owner-1")
	freshDone := time.Now().Add(-time.Hour)
	fresh.Status = models.GraphStatusFailed
	fresh.CompletedAt = &freshDone

	running := sampleGraph("g-running", "owner-1")
	running.Status = models.GraphStatusRunning

	for _, g := range []*models.Graph{old, fresh, running} {
		require.NoError(t, db.SaveGraph(g))
	}

	deleted, err := db.PurgeOldGraphs(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = db.LoadGraph("g-old", "owner-1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = db.LoadGraph("g-fresh", "owner-1")
	assert.NoError(t, err)
}
