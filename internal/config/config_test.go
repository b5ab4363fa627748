package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFromPath(t *testing.T) {
	path := writeConfig(t, `
anthropic:
  api_key: sk-test-123
  model: claude-sonnet-4-20250514
  use_bedrock: true
  aws_region: us-west-2
executor:
  max_concurrency: 8
  node_timeout: 90s
  graph_timeout: 1h
  optimize_delegation: true
scheduler:
  check_interval: 15s
  max_concurrent_jobs: 2
  spool_dir: /var/spool/stagehand
storage:
  path: /tmp/stagehand-test.db
logging:
  path: /tmp/stagehand-test.log
`)

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}

	if cfg.Anthropic.APIKey != "sk-test-123" {
		t.Errorf("APIKey = %q", cfg.Anthropic.APIKey)
	}
	if cfg.Anthropic.Model != "claude-sonnet-4-20250514" {
		t.Errorf("Model = %q", cfg.Anthropic.Model)
	}
	if !cfg.Anthropic.UseBedrock || cfg.Anthropic.AWSRegion != "us-west-2" {
		t.Errorf("Bedrock settings = %+v", cfg.Anthropic)
	}
	if cfg.Executor.MaxConcurrency != 8 {
		t.Errorf("MaxConcurrency = %d", cfg.Executor.MaxConcurrency)
	}
	if cfg.Executor.NodeTimeout != 90*time.Second {
		t.Errorf("NodeTimeout = %v", cfg.Executor.NodeTimeout)
	}
	if cfg.Executor.GraphTimeout != time.Hour {
		t.Errorf("GraphTimeout = %v", cfg.Executor.GraphTimeout)
	}
	if !cfg.Executor.OptimizeDelegation {
		t.Error("OptimizeDelegation = false")
	}
	if cfg.Scheduler.CheckInterval != 15*time.Second {
		t.Errorf("CheckInterval = %v", cfg.Scheduler.CheckInterval)
	}
	if cfg.Scheduler.MaxConcurrentJobs != 2 {
		t.Errorf("MaxConcurrentJobs = %d", cfg.Scheduler.MaxConcurrentJobs)
	}
	if cfg.Scheduler.SpoolDir != "/var/spool/stagehand" {
		t.Errorf("SpoolDir = %q", cfg.Scheduler.SpoolDir)
	}
	if cfg.Storage.Path != "/tmp/stagehand-test.db" {
		t.Errorf("Storage.Path = %q", cfg.Storage.Path)
	}
	if cfg.Logging.Path != "/tmp/stagehand-test.log" {
		t.Errorf("Logging.Path = %q", cfg.Logging.Path)
	}
}

func TestLoadFromPathDefaults(t *testing.T) {
	path := writeConfig(t, "anthropic:\n  model: claude-sonnet-4-20250514\n")

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}

	if cfg.Executor.MaxConcurrency != 3 {
		t.Errorf("default MaxConcurrency = %d, want 3", cfg.Executor.MaxConcurrency)
	}
	if cfg.Executor.NodeTimeout != 10*time.Minute {
		t.Errorf("default NodeTimeout = %v, want 10m", cfg.Executor.NodeTimeout)
	}
	if cfg.Executor.GraphTimeout != 0 {
		t.Errorf("default GraphTimeout = %v, want 0", cfg.Executor.GraphTimeout)
	}
	if cfg.Scheduler.CheckInterval != 30*time.Second {
		t.Errorf("default CheckInterval = %v, want 30s", cfg.Scheduler.CheckInterval)
	}
	if cfg.Scheduler.MaxConcurrentJobs != 5 {
		t.Errorf("default MaxConcurrentJobs = %d, want 5", cfg.Scheduler.MaxConcurrentJobs)
	}
	if cfg.Scheduler.StopGrace != 30*time.Second {
		t.Errorf("default StopGrace = %v, want 30s", cfg.Scheduler.StopGrace)
	}
}

func TestLoadFromPathExpandsAPIKey(t *testing.T) {
	t.Setenv("STAGEHAND_TEST_KEY", "sk-from-env")
	path := writeConfig(t, "anthropic:\n  api_key: ${STAGEHAND_TEST_KEY}\n")

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.Anthropic.APIKey != "sk-from-env" {
		t.Errorf("APIKey = %q, want sk-from-env", cfg.Anthropic.APIKey)
	}
}

func TestLoadFromPathMissingFile(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Executor.MaxConcurrency != 3 {
		t.Errorf("MaxConcurrency = %d, want 3", cfg.Executor.MaxConcurrency)
	}
	if cfg.Executor.NodeTimeout != 10*time.Minute {
		t.Errorf("NodeTimeout = %v, want 10m", cfg.Executor.NodeTimeout)
	}
	if cfg.Scheduler.CheckInterval != 30*time.Second {
		t.Errorf("CheckInterval = %v, want 30s", cfg.Scheduler.CheckInterval)
	}
}
