package graph

import (
	"errors"
	"testing"

	"github.com/dcallag/stagehand/pkg/models"
)

func buildGraph(t *testing.T, nodes []*models.GraphNode) *models.Graph {
	t.Helper()
	g := models.NewGraph("g1", "test graph", 2)
	for _, n := range nodes {
		if err := g.AddNode(n); err != nil {
			t.Fatalf("AddNode(%s): %v", n.ID, err)
		}
	}
	return g
}

func taskNode(id string, priority int, deps ...string) *models.GraphNode {
	return &models.GraphNode{
		ID:        id,
		Name:      id,
		Kind:      models.NodeKindTask,
		AgentID:   "agent-1",
		Prompt:    "do " + id,
		Priority:  priority,
		DependsOn: deps,
	}
}

func TestTopologicalOrderRespectsDependencies(t *testing.T) {
	g := buildGraph(t, []*models.GraphNode{
		taskNode("c", 0, "b"),
		taskNode("a", 0),
		taskNode("b", 0, "a"),
	})

	ordered, err := topologicalOrder(g)
	if err != nil {
		t.Fatalf("topologicalOrder: %v", err)
	}

	pos := make(map[string]int, len(ordered))
	for i, n := range ordered {
		pos[n.ID] = i
	}
	if pos["a"] > pos["b"] || pos["b"] > pos["c"] {
		t.Errorf("order violates dependencies: a=%d b=%d c=%d", pos["a"], pos["b"], pos["c"])
	}
}

func TestTopologicalOrderPriorityBreaksTies(t *testing.T) {
	g := buildGraph(t, []*models.GraphNode{
		taskNode("low", 1),
		taskNode("high", 10),
		taskNode("mid", 5),
	})

	ordered, err := topologicalOrder(g)
	if err != nil {
		t.Fatalf("topologicalOrder: %v", err)
	}

	want := []string{"high", "mid", "low"}
	for i, id := range want {
		if ordered[i].ID != id {
			t.Errorf("position %d = %s, want %s", i, ordered[i].ID, id)
		}
	}
}

func TestTopologicalOrderInsertionOrderOnEqualPriority(t *testing.T) {
	g := buildGraph(t, []*models.GraphNode{
		taskNode("first", 5),
		taskNode("second", 5),
		taskNode("third", 5),
	})

	ordered, err := topologicalOrder(g)
	if err != nil {
		t.Fatalf("topologicalOrder: %v", err)
	}

	want := []string{"first", "second", "third"}
	for i, id := range want {
		if ordered[i].ID != id {
			t.Errorf("position %d = %s, want %s", i, ordered[i].ID, id)
		}
	}
}

func TestTopologicalOrderDetectsCycle(t *testing.T) {
	g := buildGraph(t, []*models.GraphNode{
		taskNode("a", 0, "b"),
		taskNode("b", 0, "a"),
	})

	_, err := topologicalOrder(g)
	if !errors.Is(err, ErrCycleDetected) {
		t.Errorf("topologicalOrder error = %v, want ErrCycleDetected", err)
	}
}

func TestTopologicalOrderSelfCycle(t *testing.T) {
	g := buildGraph(t, []*models.GraphNode{taskNode("a", 0)})
	// Bypass AddNode's self-dependency check to exercise validate.
	g.Nodes[0].DependsOn = []string{"a"}

	if _, err := topologicalOrder(g); err == nil {
		t.Error("expected error for self-dependent node")
	}
}

func TestValidateUnknownDependency(t *testing.T) {
	g := buildGraph(t, []*models.GraphNode{taskNode("a", 0, "ghost")})

	if _, err := topologicalOrder(g); err == nil {
		t.Error("expected error for unknown dependency")
	}
}

func TestValidateDuplicateNodeID(t *testing.T) {
	g := buildGraph(t, []*models.GraphNode{taskNode("a", 0)})
	g.Nodes = append(g.Nodes, taskNode("a", 0))

	if err := validate(g); err == nil {
		t.Error("expected error for duplicate node ID")
	}
}

func TestDependents(t *testing.T) {
	g := buildGraph(t, []*models.GraphNode{
		taskNode("a", 0),
		taskNode("b", 0, "a"),
		taskNode("c", 0, "a"),
		taskNode("d", 0, "b"),
	})

	got := dependents(g, "a")
	if len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Errorf("dependents(a) = %v, want [b c]", got)
	}
	if deps := dependents(g, "d"); deps != nil {
		t.Errorf("dependents(d) = %v, want none", deps)
	}
}
