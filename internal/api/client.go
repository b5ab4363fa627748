// Package api is the engine's boundary to the Anthropic API. Every agent
// invocation and every planning-oracle call flows through one Client, so
// token accounting for a whole graph run lives here too.
package api

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/config"
)

// defaultModel is used when neither the config nor an agent profile pins one.
const defaultModel = anthropic.ModelClaudeSonnet4_20250514

// Client wraps the Anthropic SDK client with token accounting and
// Bedrock-aware model naming.
type Client struct {
	inner   anthropic.Client
	model   anthropic.Model
	bedrock bool
	tracker *TokenTracker
}

// ClientConfig mirrors the anthropic section of the engine config.
type ClientConfig struct {
	// Model is the default model for agents without an override. Empty
	// falls back to defaultModel.
	Model anthropic.Model
	// APIKey authenticates direct API calls. Empty falls back to the
	// ANTHROPIC_API_KEY environment variable.
	APIKey string
	// UseBedrock routes calls through AWS Bedrock instead of the direct API.
	UseBedrock bool
	// AWSRegion is the Bedrock region.
	AWSRegion string
	// AWSProfile is the optional AWS shared config profile.
	AWSProfile string
}

// NewClient builds the API client for the configured transport.
func NewClient(cfg ClientConfig) (*Client, error) {
	var opts []option.RequestOption
	if cfg.UseBedrock {
		var loadOpts []func(*config.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, config.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.AWSProfile))
		}
		opts = append(opts, bedrock.WithLoadDefaultConfig(context.Background(), loadOpts...))
	} else {
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("no Anthropic API key: set anthropic.api_key or ANTHROPIC_API_KEY")
		}
		opts = append(opts, option.WithAPIKey(apiKey))
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	if cfg.UseBedrock {
		model = bedrockModelID(model)
	}

	return &Client{
		inner:   anthropic.NewClient(opts...),
		model:   model,
		bedrock: cfg.UseBedrock,
		tracker: NewTokenTracker(),
	}, nil
}

// bedrockModelID derives the cross-region inference profile ID Bedrock
// expects from a plain model name: claude-* becomes us.anthropic.*-v1:0.
// Names that already carry a provider segment pass through unchanged.
func bedrockModelID(model anthropic.Model) anthropic.Model {
	name := string(model)
	if strings.Contains(name, ".anthropic.") {
		return model
	}
	if strings.HasPrefix(name, "claude-") {
		return anthropic.Model("us.anthropic." + name + "-v1:0")
	}
	return model
}

// sdk exposes the underlying SDK client to the runner without leaking it
// past the package boundary.
func (c *Client) sdk() *anthropic.Client {
	return &c.inner
}

// Model returns the default model calls run against.
func (c *Client) Model() anthropic.Model {
	return c.model
}

// Tracker returns the client's token accounting.
func (c *Client) Tracker() *TokenTracker {
	return c.tracker
}

// TranslateModel maps a per-agent model override to the form the active
// transport expects.
func (c *Client) TranslateModel(model anthropic.Model) anthropic.Model {
	if c.bedrock {
		return bedrockModelID(model)
	}
	return model
}

// TokenTracker accumulates token usage across every call the client makes
// during a run.
type TokenTracker struct {
	mu        sync.Mutex
	inputTok  int64
	outputTok int64
	calls     int
}

// NewTokenTracker creates an empty tracker.
func NewTokenTracker() *TokenTracker {
	return &TokenTracker{}
}

// Add records one call's token usage.
func (t *TokenTracker) Add(input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputTok += input
	t.outputTok += output
	t.calls++
}

// Total returns the accumulated input and output token counts.
func (t *TokenTracker) Total() (input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inputTok, t.outputTok
}

// Calls returns how many API calls were recorded.
func (t *TokenTracker) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// Cost estimates spend in USD at Sonnet list pricing ($3/M in, $15/M out).
// An estimate for the run summary, not a billing figure.
func (t *TokenTracker) Cost() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return float64(t.inputTok)/1_000_000*3.0 + float64(t.outputTok)/1_000_000*15.0
}
