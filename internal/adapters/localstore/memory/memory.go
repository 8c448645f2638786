// Package memory provides an in-memory implementation of the local store,
// used in tests and for ephemeral sessions where persistence is not wanted.
package memory

import (
	"bytes"
	"context"
	"sync"

	"github.com/viberater/viberater/internal/application/ports"
	"github.com/viberater/viberater/internal/domain/entity"
	"github.com/viberater/viberater/internal/domain/errors"
	"github.com/viberater/viberater/internal/domain/syncop"
)

// Store implements ports.LocalStorePort with plain maps. The queue is an
// append-only slice so insertion order is preserved without extra bookkeeping.
type Store struct {
	mu          sync.RWMutex
	collections map[entity.Resource]map[string][]byte
	queue       []syncop.Operation
	nextOpID    int64
	closed      bool
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		collections: map[entity.Resource]map[string][]byte{
			entity.ResourceIdea:    {},
			entity.ResourceProject: {},
			entity.ResourceTask:    {},
		},
		nextOpID: 1,
	}
}

// Init is a no-op; the store is ready on construction.
func (s *Store) Init(ctx context.Context) error {
	return nil
}

// Close marks the store closed; further operations fail.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) collection(resource entity.Resource) (map[string][]byte, error) {
	if s.closed {
		return nil, errors.NewError(errors.CodeStorage, "local store", errors.ErrStoreClosed)
	}
	c, ok := s.collections[resource]
	if !ok {
		return nil, errors.NewError(errors.CodeValidation, string(resource), errors.ErrUnknownResource)
	}
	return c, nil
}

// GetAll returns every record in the collection.
func (s *Store) GetAll(ctx context.Context, collection entity.Resource) ([]ports.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	docs := make([]ports.Document, 0, len(c))
	for id, data := range c {
		docs = append(docs, ports.Document{ID: id, Data: append([]byte(nil), data...)})
	}
	return docs, nil
}

// Get returns the record with the given id.
func (s *Store) Get(ctx context.Context, collection entity.Resource, id string) (ports.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, err := s.collection(collection)
	if err != nil {
		return ports.Document{}, err
	}
	data, ok := c[id]
	if !ok {
		return ports.Document{}, errors.NewError(errors.CodeNotFound, string(collection)+"/"+id, errors.ErrNotFound)
	}
	return ports.Document{ID: id, Data: append([]byte(nil), data...)}, nil
}

// Put upserts a record.
func (s *Store) Put(ctx context.Context, collection entity.Resource, doc ports.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.collection(collection)
	if err != nil {
		return err
	}
	if doc.ID == "" {
		return errors.NewError(errors.CodeValidation, "document missing id", nil)
	}
	c[doc.ID] = append([]byte(nil), doc.Data...)
	return nil
}

// Delete removes a record. Missing records are not an error.
func (s *Store) Delete(ctx context.Context, collection entity.Resource, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.collection(collection)
	if err != nil {
		return err
	}
	delete(c, id)
	return nil
}

// Enqueue appends an operation to the sync queue.
func (s *Store) Enqueue(ctx context.Context, op syncop.Operation) (syncop.Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return syncop.Operation{}, errors.NewError(errors.CodeStorage, "local store", errors.ErrStoreClosed)
	}
	if err := op.Validate(); err != nil {
		return syncop.Operation{}, err
	}
	op.ID = s.nextOpID
	s.nextOpID++
	s.queue = append(s.queue, op)
	return op, nil
}

// PendingOps returns unsynced operations in insertion order.
func (s *Store) PendingOps(ctx context.Context) ([]syncop.Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errors.NewError(errors.CodeStorage, "local store", errors.ErrStoreClosed)
	}
	var ops []syncop.Operation
	for _, op := range s.queue {
		if !op.Synced && !op.DeadLettered {
			ops = append(ops, op)
		}
	}
	return ops, nil
}

// DeadLetteredOps returns terminally rejected operations.
func (s *Store) DeadLetteredOps(ctx context.Context) ([]syncop.Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errors.NewError(errors.CodeStorage, "local store", errors.ErrStoreClosed)
	}
	var ops []syncop.Operation
	for _, op := range s.queue {
		if op.DeadLettered {
			ops = append(ops, op)
		}
	}
	return ops, nil
}

// MarkSynced records a successful replay.
func (s *Store) MarkSynced(ctx context.Context, opID int64) error {
	return s.updateOp(opID, func(op *syncop.Operation) {
		op.Synced = true
		op.LastError = ""
	})
}

// MarkFailed records a failed replay attempt.
func (s *Store) MarkFailed(ctx context.Context, opID int64, cause string) error {
	return s.updateOp(opID, func(op *syncop.Operation) {
		op.Attempts++
		op.LastError = cause
	})
}

// MarkDeadLettered excludes the operation from future drains.
func (s *Store) MarkDeadLettered(ctx context.Context, opID int64, cause string) error {
	return s.updateOp(opID, func(op *syncop.Operation) {
		op.DeadLettered = true
		op.Attempts++
		op.LastError = cause
	})
}

// RewriteEntityID repoints pending operations at a new id, including quoted
// references inside payloads.
func (s *Store) RewriteEntityID(ctx context.Context, oldID, newID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.NewError(errors.CodeStorage, "local store", errors.ErrStoreClosed)
	}
	oldRef := []byte(`"` + oldID + `"`)
	newRef := []byte(`"` + newID + `"`)
	for i := range s.queue {
		if s.queue[i].Synced {
			continue
		}
		if s.queue[i].EntityID == oldID {
			s.queue[i].EntityID = newID
		}
		if len(s.queue[i].Payload) > 0 {
			s.queue[i].Payload = bytes.ReplaceAll(s.queue[i].Payload, oldRef, newRef)
		}
	}
	return nil
}

func (s *Store) updateOp(opID int64, apply func(*syncop.Operation)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.NewError(errors.CodeStorage, "local store", errors.ErrStoreClosed)
	}
	for i := range s.queue {
		if s.queue[i].ID == opID {
			apply(&s.queue[i])
			return nil
		}
	}
	return errors.NewError(errors.CodeNotFound, "operation", errors.ErrNotFound)
}
