package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/dcallag/stagehand/pkg/models"
)

// graphFile is the YAML shape of a workflow definition.
type graphFile struct {
	Name           string          `yaml:"name"`
	OwnerAgentID   string          `yaml:"owner_agent_id"`
	MaxConcurrency int             `yaml:"max_concurrency"`
	Nodes          []graphFileNode `yaml:"nodes"`
	Edges          []graphFileEdge `yaml:"edges"`
}

type graphFileNode struct {
	ID                  string            `yaml:"id"`
	Name                string            `yaml:"name"`
	Kind                string            `yaml:"kind"`
	AgentID             string            `yaml:"agent_id"`
	Prompt              string            `yaml:"prompt"`
	Priority            int               `yaml:"priority"`
	DependsOn           []string          `yaml:"depends_on"`
	Schedule            string            `yaml:"schedule"`
	UseSubAgents        bool              `yaml:"use_sub_agents"`
	DelegationStrategy  string            `yaml:"delegation_strategy"`
	ManualAssignments   map[string]string `yaml:"manual_assignments"`
	CoordinationPattern string            `yaml:"coordination_pattern"`
}

type graphFileEdge struct {
	From      string `yaml:"from"`
	To        string `yaml:"to"`
	Condition string `yaml:"condition"`
}

// loadGraphFile parses a workflow YAML file into a graph ready to run.
// Structural problems (duplicate nodes, dangling edges) surface here
// rather than at run time.
func loadGraphFile(path string) (*models.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var f graphFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if f.Name == "" {
		return nil, fmt.Errorf("%s: workflow name is required", path)
	}
	if len(f.Nodes) == 0 {
		return nil, fmt.Errorf("%s: workflow has no nodes", path)
	}

	g := models.NewGraph(uuid.NewString(), f.Name, f.MaxConcurrency)
	g.OwnerAgentID = f.OwnerAgentID

	for _, fn := range f.Nodes {
		kind := models.NodeKind(fn.Kind)
		if fn.Kind == "" {
			kind = models.NodeKindTask
		}
		node := &models.GraphNode{
			ID:                  fn.ID,
			Name:                fn.Name,
			Kind:                kind,
			AgentID:             fn.AgentID,
			Prompt:              fn.Prompt,
			Priority:            fn.Priority,
			DependsOn:           fn.DependsOn,
			Schedule:            fn.Schedule,
			UseSubAgents:        fn.UseSubAgents,
			DelegationStrategy:  models.DelegationStrategy(fn.DelegationStrategy),
			ManualAssignments:   fn.ManualAssignments,
			CoordinationPattern: models.CoordinationPattern(fn.CoordinationPattern),
		}
		if node.Name == "" {
			node.Name = node.ID
		}
		if err := g.AddNode(node); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	for _, fe := range f.Edges {
		if err := g.AddEdge(fe.From, fe.To, fe.Condition); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	return g, nil
}
