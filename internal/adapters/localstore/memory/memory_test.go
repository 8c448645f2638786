package memory

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/viberater/viberater/internal/application/ports"
	"github.com/viberater/viberater/internal/domain/entity"
	"github.com/viberater/viberater/internal/domain/errors"
	"github.com/viberater/viberater/internal/domain/syncop"
)

func TestStore_PutGetDelete(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	doc := ports.Document{ID: "idea-1", Data: json.RawMessage(`{"title":"a"}`)}
	if err := store.Put(ctx, entity.ResourceIdea, doc); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := store.Get(ctx, entity.ResourceIdea, "idea-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got.Data) != `{"title":"a"}` {
		t.Errorf("Get() data = %s", got.Data)
	}

	if _, err := store.Get(ctx, entity.ResourceIdea, "missing"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}

	if err := store.Delete(ctx, entity.ResourceIdea, "idea-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, entity.ResourceIdea, "idea-1"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
}

func TestStore_DocumentsAreCopied(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	data := []byte(`{"title":"a"}`)
	if err := store.Put(ctx, entity.ResourceIdea, ports.Document{ID: "i-1", Data: data}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	data[2] = 'X'

	got, err := store.Get(ctx, entity.ResourceIdea, "i-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got.Data) != `{"title":"a"}` {
		t.Errorf("stored data was aliased: %s", got.Data)
	}
}

func TestStore_QueueLifecycle(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	create, err := store.Enqueue(ctx, syncop.NewCreate(entity.ResourceIdea, "temp-1", json.RawMessage(`{"title":"a"}`)))
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	update, err := store.Enqueue(ctx, syncop.NewUpdate(entity.ResourceIdea, "temp-1", json.RawMessage(`{"title":"b"}`)))
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	pending, err := store.PendingOps(ctx)
	if err != nil {
		t.Fatalf("PendingOps() error = %v", err)
	}
	if len(pending) != 2 || pending[0].ID != create.ID || pending[1].ID != update.ID {
		t.Fatalf("PendingOps() order wrong: %+v", pending)
	}

	if err := store.MarkSynced(ctx, create.ID); err != nil {
		t.Fatalf("MarkSynced() error = %v", err)
	}
	if err := store.RewriteEntityID(ctx, "temp-1", "srv-1"); err != nil {
		t.Fatalf("RewriteEntityID() error = %v", err)
	}

	pending, err = store.PendingOps(ctx)
	if err != nil {
		t.Fatalf("PendingOps() error = %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("PendingOps() returned %d ops, want 1", len(pending))
	}
	if pending[0].EntityID != "srv-1" {
		t.Errorf("EntityID = %q, want %q", pending[0].EntityID, "srv-1")
	}

	if err := store.MarkDeadLettered(ctx, update.ID, "rejected"); err != nil {
		t.Fatalf("MarkDeadLettered() error = %v", err)
	}
	dead, err := store.DeadLetteredOps(ctx)
	if err != nil {
		t.Fatalf("DeadLetteredOps() error = %v", err)
	}
	if len(dead) != 1 || dead[0].LastError != "rejected" {
		t.Errorf("DeadLetteredOps() = %+v", dead)
	}
}

func TestStore_Closed(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if _, err := store.GetAll(ctx, entity.ResourceIdea); !errors.Is(err, errors.ErrStoreClosed) {
		t.Errorf("GetAll() after close error = %v, want ErrStoreClosed", err)
	}
}
