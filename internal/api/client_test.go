package api

import (
	"math"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
)

func TestBedrockModelID(t *testing.T) {
	tests := []struct {
		name  string
		model anthropic.Model
		want  anthropic.Model
	}{
		{
			"plain claude name gains inference profile",
			anthropic.ModelClaudeSonnet4_20250514,
			anthropic.Model("us.anthropic.claude-sonnet-4-20250514-v1:0"),
		},
		{
			"haiku name gains inference profile",
			anthropic.Model("claude-3-5-haiku-20241022"),
			anthropic.Model("us.anthropic.claude-3-5-haiku-20241022-v1:0"),
		},
		{
			"already a profile ID passes through",
			anthropic.Model("us.anthropic.claude-sonnet-4-20250514-v1:0"),
			anthropic.Model("us.anthropic.claude-sonnet-4-20250514-v1:0"),
		},
		{
			"non-claude name passes through",
			anthropic.Model("custom-model"),
			anthropic.Model("custom-model"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := bedrockModelID(tt.model); got != tt.want {
				t.Errorf("bedrockModelID(%q) = %q, want %q", tt.model, got, tt.want)
			}
		})
	}
}

func TestNewClientDefaultsModel(t *testing.T) {
	c, err := NewClient(ClientConfig{APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if c.Model() != defaultModel {
		t.Errorf("Model() = %q, want default", c.Model())
	}
	// Direct transport: overrides pass through untranslated.
	if got := c.TranslateModel("claude-3-5-haiku-20241022"); got != "claude-3-5-haiku-20241022" {
		t.Errorf("TranslateModel = %q, want passthrough", got)
	}
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	if _, err := NewClient(ClientConfig{}); err == nil {
		t.Fatal("expected error without an API key")
	}
}

func TestTokenTracker(t *testing.T) {
	tr := NewTokenTracker()
	tr.Add(1000, 500)
	tr.Add(2000, 1500)

	in, out := tr.Total()
	if in != 3000 || out != 2000 {
		t.Errorf("Total = %d/%d, want 3000/2000", in, out)
	}
	if tr.Calls() != 2 {
		t.Errorf("Calls = %d, want 2", tr.Calls())
	}

	want := 3000.0/1_000_000*3.0 + 2000.0/1_000_000*15.0
	if math.Abs(tr.Cost()-want) > 1e-12 {
		t.Errorf("Cost = %v, want %v", tr.Cost(), want)
	}
}
