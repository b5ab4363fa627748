// Package graph executes dependency graphs of agent work.
package graph

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dcallag/stagehand/pkg/models"
)

// ErrCycleDetected indicates a circular dependency was found among graph nodes.
var ErrCycleDetected = errors.New("circular dependency detected")

// validate checks the structural invariants of the graph: every dependency
// references a node in the same graph and no node depends on itself.
func validate(g *models.Graph) error {
	ids := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if ids[n.ID] {
			return fmt.Errorf("duplicate node ID %s", n.ID)
		}
		ids[n.ID] = true
	}
	for _, n := range g.Nodes {
		for _, depID := range n.DependsOn {
			if depID == n.ID {
				return fmt.Errorf("node %s depends on itself", n.ID)
			}
			if !ids[depID] {
				return fmt.Errorf("node %s depends on unknown node %s", n.ID, depID)
			}
		}
	}
	return nil
}

// hasCycle reports whether the dependency relation contains a cycle.
// Uses depth-first search with coloring to detect back edges.
func hasCycle(g *models.Graph) bool {
	deps := make(map[string][]string, len(g.Nodes))
	for _, n := range g.Nodes {
		deps[n.ID] = n.DependsOn
	}

	// Color states: 0 = white (unvisited), 1 = gray (in progress), 2 = black (done).
	colors := make(map[string]int, len(g.Nodes))

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = 1
		for _, depID := range deps[id] {
			switch colors[depID] {
			case 1:
				// Back edge.
				return true
			case 0:
				if visit(depID) {
					return true
				}
			}
		}
		colors[id] = 2
		return false
	}

	for _, n := range g.Nodes {
		if colors[n.ID] == 0 {
			if visit(n.ID) {
				return true
			}
		}
	}
	return false
}

// topologicalOrder returns the graph's nodes in an order where every node
// follows all of its dependencies. Nodes with no dependency relation are
// ordered by descending priority, insertion order breaking remaining ties.
func topologicalOrder(g *models.Graph) ([]*models.GraphNode, error) {
	if err := validate(g); err != nil {
		return nil, err
	}
	if hasCycle(g) {
		return nil, ErrCycleDetected
	}

	candidates := make([]*models.GraphNode, len(g.Nodes))
	copy(candidates, g.Nodes)
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Priority > candidates[j].Priority
	})

	placed := make(map[string]bool, len(g.Nodes))
	ordered := make([]*models.GraphNode, 0, len(g.Nodes))

	// Repeatedly take the highest-priority node whose dependencies are
	// already placed. Terminates because the graph is acyclic.
	for len(ordered) < len(g.Nodes) {
		progressed := false
		for _, n := range candidates {
			if placed[n.ID] {
				continue
			}
			ready := true
			for _, depID := range n.DependsOn {
				if !placed[depID] {
					ready = false
					break
				}
			}
			if ready {
				ordered = append(ordered, n)
				placed[n.ID] = true
				progressed = true
				break
			}
		}
		if !progressed {
			return nil, ErrCycleDetected
		}
	}

	return ordered, nil
}

// dependents returns the IDs of nodes that directly depend on the given node.
func dependents(g *models.Graph, nodeID string) []string {
	var out []string
	for _, n := range g.Nodes {
		for _, depID := range n.DependsOn {
			if depID == nodeID {
				out = append(out, n.ID)
				break
			}
		}
	}
	return out
}
