package commands

import (
	"testing"

	"github.com/viberater/viberater/internal/application/ports"
	"github.com/viberater/viberater/internal/domain/entity"
)

func TestNewRootCmd_Subcommands(t *testing.T) {
	root := NewRootCmd()

	want := []string{"version", "init", "status", "sync", "pull", "offline", "idea", "project", "task", "refine"}
	for _, name := range want {
		found := false
		for _, cmd := range root.Commands() {
			if cmd.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("root command missing subcommand %q", name)
		}
	}
}

func TestNewRootCmd_GlobalFlags(t *testing.T) {
	root := NewRootCmd()

	for _, name := range []string{"config", "output", "verbose"} {
		if root.PersistentFlags().Lookup(name) == nil {
			t.Errorf("missing global flag %q", name)
		}
	}
}

func TestIdeaCmd_Subcommands(t *testing.T) {
	idea := NewIdeaCmd()

	want := []string{"list", "add", "show", "update", "rm", "promote"}
	for _, name := range want {
		found := false
		for _, cmd := range idea.Commands() {
			if cmd.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("idea command missing subcommand %q", name)
		}
	}
}

func TestFindIdea(t *testing.T) {
	ideas := []entity.Idea{
		{ID: "idea-abc123", Title: "one"},
		{ID: "idea-abd456", Title: "two"},
		{ID: "temp-xyz", Title: "three"},
	}

	tests := []struct {
		name  string
		id    string
		want  string
		found bool
	}{
		{"exact match", "idea-abc123", "one", true},
		{"unique prefix", "idea-abc", "one", true},
		{"ambiguous prefix", "idea-ab", "", false},
		{"no match", "nope", "", false},
		{"provisional exact", "temp-xyz", "three", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idea, found := findIdea(ideas, tt.id)
			if found != tt.found {
				t.Fatalf("findIdea(%q) found = %v, want %v", tt.id, found, tt.found)
			}
			if found && idea.Title != tt.want {
				t.Errorf("findIdea(%q) = %q, want %q", tt.id, idea.Title, tt.want)
			}
		})
	}
}

func TestDisplayID(t *testing.T) {
	if got := displayID("idea-1"); got != "idea-1" {
		t.Errorf("displayID(synced) = %q", got)
	}
	if got := displayID(entity.ProvisionalPrefix + "abc"); got != entity.ProvisionalPrefix+"abc (unsynced)" {
		t.Errorf("displayID(provisional) = %q", got)
	}
}

func TestRenderTranscript(t *testing.T) {
	msgs := []ports.ChatMessage{
		{Role: "user", Content: "what about solar?"},
		{Role: "assistant", Content: "Tell me more."},
	}

	got := renderTranscript(msgs)
	want := "You: what about solar?\n\nAssistant: Tell me more."
	if got != want {
		t.Errorf("renderTranscript() = %q, want %q", got, want)
	}
}

func TestEncodeFields(t *testing.T) {
	payload, err := encodeFields(map[string]any{"title": "solar tracker"})
	if err != nil {
		t.Fatalf("encodeFields() error = %v", err)
	}
	if string(payload) != `{"title":"solar tracker"}` {
		t.Errorf("encodeFields() = %s", payload)
	}
}
