package ports

import (
	"context"
	"encoding/json"

	"github.com/viberater/viberater/internal/domain/entity"
	"github.com/viberater/viberater/internal/domain/syncop"
)

// Document is a stored entity record, opaque to the store beyond its id.
type Document struct {
	ID   string
	Data json.RawMessage
}

// LocalStorePort is the persistent cache underneath the data layer: one
// collection per entity type plus the durable sync queue.
//
// All operations are safe for concurrent use. Put and Delete are idempotent;
// a Put either fully succeeds or the prior value is retained. Any I/O failure
// surfaces as an error and the caller decides whether to retry or propagate.
type LocalStorePort interface {
	// Init prepares the underlying storage (creates tables, runs migrations).
	Init(ctx context.Context) error

	// GetAll returns every record in the collection.
	GetAll(ctx context.Context, collection entity.Resource) ([]Document, error)

	// Get returns the record with the given id, or errors.ErrNotFound.
	Get(ctx context.Context, collection entity.Resource, id string) (Document, error)

	// Put upserts a record. Exactly one record per id is retained.
	Put(ctx context.Context, collection entity.Resource, doc Document) error

	// Delete removes a record. Deleting a missing record is not an error.
	Delete(ctx context.Context, collection entity.Resource, id string) error

	// Enqueue appends an operation to the sync queue and returns it with its
	// assigned auto-increment id.
	Enqueue(ctx context.Context, op syncop.Operation) (syncop.Operation, error)

	// PendingOps returns unsynced, non-dead-lettered operations in insertion
	// order (FIFO, which is causal order per entity).
	PendingOps(ctx context.Context) ([]syncop.Operation, error)

	// MarkSynced records that an operation replayed successfully and removes
	// it from future drains.
	MarkSynced(ctx context.Context, opID int64) error

	// MarkFailed records a failed replay attempt, keeping the operation
	// queued for retry.
	MarkFailed(ctx context.Context, opID int64, cause string) error

	// MarkDeadLettered excludes a terminally rejected operation from future
	// drains while keeping it for inspection.
	MarkDeadLettered(ctx context.Context, opID int64, cause string) error

	// DeadLetteredOps returns operations the server rejected as invalid.
	DeadLetteredOps(ctx context.Context) ([]syncop.Operation, error)

	// RewriteEntityID repoints pending operations from a provisional id to
	// the server-issued id assigned on reconciliation, so follow-up updates
	// queued against the provisional id do not orphan. References inside
	// pending payloads are rewritten too, covering entities created offline
	// under a provisional parent.
	RewriteEntityID(ctx context.Context, oldID, newID string) error

	// Close releases the underlying storage.
	Close() error
}
