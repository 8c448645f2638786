package application

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/viberater/viberater/internal/domain/entity"
	"github.com/viberater/viberater/internal/infrastructure/config"
)

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.Storage.Path = ":memory:"
	return cfg
}

func TestNewContainer_WiresServices(t *testing.T) {
	container, err := NewContainer(context.Background(), newTestConfig(t), t.TempDir(), false)
	if err != nil {
		t.Fatalf("NewContainer() error = %v", err)
	}
	defer container.Close()

	if container.Facade() == nil {
		t.Error("Facade() = nil")
	}
	if container.Engine() == nil {
		t.Error("Engine() = nil")
	}
	if container.Monitor() == nil {
		t.Error("Monitor() = nil")
	}
	if container.Store() == nil {
		t.Error("Store() = nil")
	}
	if container.Chat() == nil {
		t.Error("Chat() = nil")
	}
	if container.Logger() == nil {
		t.Error("Logger() = nil")
	}
}

func TestNewContainer_RejectsInvalidConfig(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.API.BaseURL = ""

	if _, err := NewContainer(context.Background(), cfg, t.TempDir(), false); err == nil {
		t.Fatal("NewContainer() with invalid config should fail")
	}
}

func TestContainer_OfflineWriteQueues(t *testing.T) {
	ctx := context.Background()
	container, err := NewContainer(ctx, newTestConfig(t), t.TempDir(), false)
	if err != nil {
		t.Fatalf("NewContainer() error = %v", err)
	}
	defer container.Close()

	// The monitor starts offline until a probe succeeds, so the create goes
	// through the optimistic path.
	idea, err := container.Facade().CreateIdea(ctx, json.RawMessage(`{"title":"offline capture"}`))
	if err != nil {
		t.Fatalf("CreateIdea() error = %v", err)
	}
	if !entity.IsProvisional(idea.ID) {
		t.Errorf("offline create id = %q, want provisional", idea.ID)
	}

	pending, err := container.Store().PendingOps(ctx)
	if err != nil {
		t.Fatalf("PendingOps() error = %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}
	if pending[0].Resource != entity.ResourceIdea {
		t.Errorf("queued resource = %q", pending[0].Resource)
	}
}

func TestContainer_DefaultOfflineMarkerUnderConfigDir(t *testing.T) {
	dir := t.TempDir()
	container, err := NewContainer(context.Background(), newTestConfig(t), dir, false)
	if err != nil {
		t.Fatalf("NewContainer() error = %v", err)
	}
	defer container.Close()

	marker := container.Monitor().OfflineMarker()
	if marker == "" {
		t.Fatal("OfflineMarker() is empty")
	}
	if got, want := marker, filepath.Join(dir, "offline"); got != want {
		t.Errorf("OfflineMarker() = %q, want %q", got, want)
	}
}

func TestContainer_CloseIdempotentStore(t *testing.T) {
	container, err := NewContainer(context.Background(), newTestConfig(t), t.TempDir(), false)
	if err != nil {
		t.Fatalf("NewContainer() error = %v", err)
	}

	if err := container.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := container.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
