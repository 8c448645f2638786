// Package syncop defines the durable mutation log entries replayed against
// the server when connectivity returns.
package syncop

import (
	"encoding/json"
	"time"

	"github.com/viberater/viberater/internal/domain/entity"
	"github.com/viberater/viberater/internal/domain/errors"
)

// Method is the mutation verb carried by a queued operation.
type Method string

const (
	MethodCreate Method = "CREATE"
	MethodUpdate Method = "UPDATE"
	MethodDelete Method = "DELETE"
)

// Valid reports whether m is a known method.
func (m Method) Valid() bool {
	switch m {
	case MethodCreate, MethodUpdate, MethodDelete:
		return true
	}
	return false
}

// Operation is one entry in the sync queue. Operations are appended in causal
// order per entity and replayed in that same order. An operation is never
// mutated after being queued; the engine only marks it synced or records a
// failed attempt.
type Operation struct {
	// ID is the auto-increment local key assigned by the store on enqueue.
	ID int64
	// Resource names the entity collection the operation targets.
	Resource entity.Resource
	// Method is the mutation verb.
	Method Method
	// EntityID is the target entity's id. For creates made offline this is
	// the provisional id, used only as a local correlation key; the payload
	// carries the original create data without it.
	EntityID string
	// Payload is the partial entity payload, opaque to the engine.
	Payload json.RawMessage
	// Timestamp records when the operation was queued.
	Timestamp time.Time
	// Synced is set once the operation has been replayed successfully.
	Synced bool
	// Attempts counts failed replays, for backoff and dead-letter reporting.
	Attempts int
	// LastError holds the most recent replay failure, if any.
	LastError string
	// DeadLettered marks operations the server rejected as invalid; they are
	// kept for inspection but excluded from future drains.
	DeadLettered bool
}

// NewCreate builds a CREATE operation. provisionalID correlates the queued
// payload with the locally cached provisional record.
func NewCreate(resource entity.Resource, provisionalID string, payload json.RawMessage) Operation {
	return Operation{
		Resource:  resource,
		Method:    MethodCreate,
		EntityID:  provisionalID,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// NewUpdate builds an UPDATE operation against an existing entity.
func NewUpdate(resource entity.Resource, id string, payload json.RawMessage) Operation {
	return Operation{
		Resource:  resource,
		Method:    MethodUpdate,
		EntityID:  id,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// NewDelete builds a DELETE operation.
func NewDelete(resource entity.Resource, id string) Operation {
	return Operation{
		Resource:  resource,
		Method:    MethodDelete,
		EntityID:  id,
		Timestamp: time.Now().UTC(),
	}
}

// Validate checks the operation's resource, method, and target.
func (op Operation) Validate() error {
	if !op.Resource.Valid() {
		return errors.NewError(errors.CodeValidation, string(op.Resource), errors.ErrUnknownResource)
	}
	if !op.Method.Valid() {
		return errors.NewError(errors.CodeValidation, string(op.Method), errors.ErrUnknownMethod)
	}
	if op.EntityID == "" {
		return errors.NewError(errors.CodeValidation, "operation missing entity id", nil)
	}
	if op.Method != MethodDelete && len(op.Payload) == 0 {
		return errors.NewError(errors.CodeValidation, "operation missing payload", nil)
	}
	return nil
}
