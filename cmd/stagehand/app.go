package main

import (
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/dcallag/stagehand/internal/agent"
	"github.com/dcallag/stagehand/internal/api"
	"github.com/dcallag/stagehand/internal/config"
	"github.com/dcallag/stagehand/internal/graph"
	"github.com/dcallag/stagehand/internal/logging"
	"github.com/dcallag/stagehand/internal/state"
)

// app bundles the collaborators every command builds the same way:
// config, store, API runner, agent registry, and invoker.
type app struct {
	cfg      *config.Config
	store    *state.DB
	client   *api.Client
	runner   *api.Runner
	registry *agent.Registry
	invoker  *agent.Invoker
	logger   *logging.DebugLogger
}

// newApp wires the full application from configuration. withAPI controls
// whether an Anthropic client is created; commands that only touch storage
// skip it so they work without an API key.
func newApp(withAPI bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Path)
	if err != nil {
		return nil, fmt.Errorf("open debug log: %w", err)
	}

	dbPath := cfg.Storage.Path
	if dbPath == "" {
		dbPath = state.DefaultDBPath()
	}
	store, err := state.Open(dbPath)
	if err != nil {
		logger.Close()
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		logger.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	a := &app{
		cfg:      cfg,
		store:    store,
		registry: agent.NewRegistry(),
		logger:   logger,
	}

	if err := a.registry.LoadFromStore(store); err != nil {
		a.Close()
		return nil, err
	}

	if withAPI {
		client, err := api.NewClient(api.ClientConfig{
			Model:      anthropic.Model(cfg.Anthropic.Model),
			APIKey:     cfg.Anthropic.APIKey,
			UseBedrock: cfg.Anthropic.UseBedrock,
			AWSRegion:  cfg.Anthropic.AWSRegion,
			AWSProfile: cfg.Anthropic.AWSProfile,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("create API client: %w", err)
		}
		a.client = client
		a.runner = api.NewRunner(client)
		a.invoker = agent.NewInvoker(a.registry, a.runner, logger)
	}

	return a, nil
}

// execOptions maps executor configuration to run options.
func (a *app) execOptions() graph.Options {
	return graph.Options{
		MaxConcurrency:     a.cfg.Executor.MaxConcurrency,
		NodeTimeout:        a.cfg.Executor.NodeTimeout,
		GraphTimeout:       a.cfg.Executor.GraphTimeout,
		OptimizeDelegation: a.cfg.Executor.OptimizeDelegation,
	}
}

// Close releases the store and log file.
func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
	if a.logger != nil {
		a.logger.Close()
	}
}
