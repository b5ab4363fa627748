package agent

import (
	"errors"
	"testing"

	"github.com/dcallag/stagehand/pkg/models"
)

func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		name  string
		agent *models.Agent
	}{
		{"nil agent", nil},
		{"empty id", &models.Agent{Name: "Alice"}},
		{"empty name", &models.Agent{ID: "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			if err := r.Register(tt.agent); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&models.Agent{ID: "a", Name: "Alice"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, ok := r.Agent("a")
	if !ok {
		t.Fatal("agent a not found")
	}
	if got.Name != "Alice" {
		t.Errorf("Name = %q, want Alice", got.Name)
	}

	if _, ok := r.Agent("missing"); ok {
		t.Error("lookup of unknown ID reported ok")
	}
}

func TestReRegisterKeepsPosition(t *testing.T) {
	r := NewRegistry()
	for _, a := range []*models.Agent{
		{ID: "a", Name: "Alice"},
		{ID: "b", Name: "Bob"},
		{ID: "c", Name: "Carol"},
	} {
		if err := r.Register(a); err != nil {
			t.Fatalf("Register %s: %v", a.ID, err)
		}
	}

	if err := r.Register(&models.Agent{ID: "a", Name: "Alice v2", Role: "updated"}); err != nil {
		t.Fatalf("re-register: %v", err)
	}

	list := r.List()
	if len(list) != 3 {
		t.Fatalf("List returned %d agents, want 3", len(list))
	}
	if list[0].ID != "a" || list[0].Name != "Alice v2" {
		t.Errorf("first agent = %s (%s), want a (Alice v2)", list[0].ID, list[0].Name)
	}
	if list[1].ID != "b" || list[2].ID != "c" {
		t.Errorf("order = [%s %s %s], want [a b c]", list[0].ID, list[1].ID, list[2].ID)
	}
}

func TestSubAgentsInRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	for _, a := range []*models.Agent{
		{ID: "lead", Name: "Lead"},
		{ID: "sub-2", Name: "Second", ParentID: "lead"},
		{ID: "other", Name: "Other"},
		{ID: "sub-1", Name: "First", ParentID: "lead"},
	} {
		if err := r.Register(a); err != nil {
			t.Fatalf("Register %s: %v", a.ID, err)
		}
	}

	subs := r.SubAgents("lead")
	if len(subs) != 2 {
		t.Fatalf("SubAgents returned %d agents, want 2", len(subs))
	}
	if subs[0].ID != "sub-2" || subs[1].ID != "sub-1" {
		t.Errorf("sub-agent order = [%s %s], want [sub-2 sub-1]", subs[0].ID, subs[1].ID)
	}

	if got := r.SubAgents("nobody"); len(got) != 0 {
		t.Errorf("SubAgents of unknown parent returned %d agents", len(got))
	}
}

type fakeProfileStore struct {
	agents []*models.Agent
	err    error
}

func (s *fakeProfileStore) ListAgents() ([]*models.Agent, error) {
	return s.agents, s.err
}

func TestLoadFromStore(t *testing.T) {
	r := NewRegistry()
	store := &fakeProfileStore{agents: []*models.Agent{
		{ID: "a", Name: "Alice"},
		{ID: "b", Name: "Bob", ParentID: "a"},
	}}

	if err := r.LoadFromStore(store); err != nil {
		t.Fatalf("LoadFromStore: %v", err)
	}
	if len(r.List()) != 2 {
		t.Fatalf("List returned %d agents, want 2", len(r.List()))
	}
	if subs := r.SubAgents("a"); len(subs) != 1 || subs[0].ID != "b" {
		t.Errorf("SubAgents(a) = %v, want [b]", subs)
	}
}

func TestLoadFromStorePropagatesErrors(t *testing.T) {
	r := NewRegistry()

	storeErr := errors.New("db is on fire")
	if err := r.LoadFromStore(&fakeProfileStore{err: storeErr}); !errors.Is(err, storeErr) {
		t.Errorf("error = %v, want wrap of %v", err, storeErr)
	}

	bad := &fakeProfileStore{agents: []*models.Agent{{ID: "a"}}}
	if err := r.LoadFromStore(bad); err == nil {
		t.Error("expected error for profile with no name")
	}
}
