package syncengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/viberater/viberater/internal/application/ports"
	"github.com/viberater/viberater/internal/domain/entity"
	"github.com/viberater/viberater/internal/domain/errors"
	"github.com/viberater/viberater/internal/domain/syncop"
	"github.com/viberater/viberater/internal/infrastructure/logging"
	"github.com/viberater/viberater/internal/infrastructure/tracing"
)

// opKey selects the replay handler for an operation.
type opKey struct {
	resource entity.Resource
	method   syncop.Method
}

// opResult carries the server's authoritative view back from a replay. For
// creates, EntityID is the server-issued id superseding the provisional one.
type opResult struct {
	EntityID string
	Doc      json.RawMessage
}

// handler replays one queued operation against the server.
type handler func(ctx context.Context, op syncop.Operation) (*opResult, error)

// Config holds engine settings.
type Config struct {
	// MaxAttempts dead-letters an operation after this many failed replays.
	// Zero retries forever.
	MaxAttempts int
}

// Engine drains the sync queue against the server. Drains are single-flight:
// a Sync call while another drain is running returns immediately. Operations
// replay sequentially in queue order; one operation's failure leaves it
// queued and the drain moves on.
type Engine struct {
	store    ports.LocalStorePort
	monitor  ports.ConnectivityPort
	bus      *Bus
	logger   *logging.Logger
	tracer   *tracing.Tracer
	cfg      Config
	handlers map[opKey]handler

	mu        sync.Mutex
	isSyncing bool
}

// NewEngine creates a sync engine wired to the given store and remote client.
func NewEngine(
	store ports.LocalStorePort,
	remote ports.RemoteClientPort,
	monitor ports.ConnectivityPort,
	bus *Bus,
	cfg Config,
	logger *logging.Logger,
	tracer *tracing.Tracer,
) *Engine {
	if logger == nil {
		logger = logging.Discard()
	}
	if tracer == nil {
		tracer = tracing.Noop()
	}
	if bus == nil {
		bus = NewBus(logger)
	}
	e := &Engine{
		store:   store,
		monitor: monitor,
		bus:     bus,
		logger:  logger,
		tracer:  tracer,
		cfg:     cfg,
	}
	e.handlers = buildHandlers(remote)
	return e
}

// Bus returns the engine's event bus.
func (e *Engine) Bus() *Bus {
	return e.bus
}

// IsSyncing reports whether a drain is in progress.
func (e *Engine) IsSyncing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isSyncing
}

// QueueOperation validates and persists an operation, then drains the queue
// immediately if the server is reachable. The queued operation is returned
// with its assigned id.
func (e *Engine) QueueOperation(ctx context.Context, op syncop.Operation) (syncop.Operation, error) {
	if err := op.Validate(); err != nil {
		return syncop.Operation{}, err
	}
	if _, ok := e.handlers[opKey{op.Resource, op.Method}]; !ok {
		return syncop.Operation{}, errors.NewError(errors.CodeValidation,
			fmt.Sprintf("no handler for %s %s", op.Method, op.Resource), errors.ErrUnknownMethod)
	}

	queued, err := e.store.Enqueue(ctx, op)
	if err != nil {
		return syncop.Operation{}, err
	}

	if e.monitor != nil && e.monitor.IsOnline() {
		e.Sync(ctx)
	}
	return queued, nil
}

// Sync drains the queue once. A concurrent call while a drain is running is
// a no-op; the running drain picks up operations queued before it read the
// queue, and the connectivity monitor's next signal covers the rest.
func (e *Engine) Sync(ctx context.Context) {
	e.mu.Lock()
	if e.isSyncing {
		e.mu.Unlock()
		return
	}
	e.isSyncing = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.isSyncing = false
		e.mu.Unlock()
	}()

	e.drain(ctx)
}

func (e *Engine) drain(ctx context.Context) {
	pending, err := e.store.PendingOps(ctx)
	if err != nil {
		e.logger.ErrorContext(ctx, "could not read sync queue", "error", err)
		e.bus.Publish(SyncFailed{Err: err})
		return
	}
	if len(pending) == 0 {
		return
	}

	ctx, span := e.tracer.StartDrainSpan(ctx, len(pending))
	e.bus.Publish(SyncStarted{Pending: len(pending)})
	e.logger.InfoContext(ctx, "sync started", "pending", len(pending))

	var synced, failed, deadLettered int
	// aliases maps provisional ids reconciled during this pass to their
	// server ids. The store persists the same rewrite for later drains; the
	// map covers operations already read into this pass.
	aliases := make(map[string]string)

	for _, op := range pending {
		op = applyAliases(op, aliases)
		opCtx := logging.WithOperationID(logging.WithResource(ctx, string(op.Resource)), op.ID)

		result, err := e.replay(opCtx, op)
		if err != nil {
			if e.shouldDeadLetter(op, err) {
				deadLettered++
				e.logger.WarnContext(opCtx, "operation dead-lettered", "method", op.Method, "error", err)
				if dlErr := e.store.MarkDeadLettered(opCtx, op.ID, err.Error()); dlErr != nil {
					e.logger.ErrorContext(opCtx, "could not dead-letter operation", "error", dlErr)
				}
			} else {
				failed++
				e.logger.WarnContext(opCtx, "operation failed, will retry", "method", op.Method, "error", err)
				if failErr := e.store.MarkFailed(opCtx, op.ID, err.Error()); failErr != nil {
					e.logger.ErrorContext(opCtx, "could not record failure", "error", failErr)
				}
			}
			continue
		}

		if err := e.reconcile(opCtx, op, result, aliases); err != nil {
			// The server applied the operation; a local bookkeeping failure
			// must not replay it again.
			e.logger.ErrorContext(opCtx, "reconciliation failed", "error", err)
		}
		if err := e.store.MarkSynced(opCtx, op.ID); err != nil {
			e.logger.ErrorContext(opCtx, "could not mark operation synced", "error", err)
			failed++
			continue
		}
		synced++
	}

	span.SetResults(synced, failed, deadLettered)
	span.End()
	e.logger.InfoContext(ctx, "sync completed",
		"synced", synced, "failed", failed, "dead_lettered", deadLettered)
	e.bus.Publish(SyncCompleted{Synced: synced, Failed: failed, DeadLettered: deadLettered})
}

// replay dispatches one operation to its handler.
func (e *Engine) replay(ctx context.Context, op syncop.Operation) (*opResult, error) {
	h, ok := e.handlers[opKey{op.Resource, op.Method}]
	if !ok {
		return nil, errors.NewError(errors.CodeValidation,
			fmt.Sprintf("no handler for %s %s", op.Method, op.Resource), errors.ErrUnknownMethod)
	}
	return h(ctx, op)
}

// shouldDeadLetter decides whether a failed operation leaves the queue.
// Terminal rejections (validation, malformed, not-found) never retry; a
// connectivity failure retries until MaxAttempts, if one is configured.
func (e *Engine) shouldDeadLetter(op syncop.Operation, err error) bool {
	if !errors.IsRetryable(err) {
		return true
	}
	return e.cfg.MaxAttempts > 0 && op.Attempts+1 >= e.cfg.MaxAttempts
}

// reconcile applies the server's authoritative result to the local cache.
// For creates made offline, the provisional record is replaced by the server
// record and every pending reference to the provisional id is rewritten.
func (e *Engine) reconcile(ctx context.Context, op syncop.Operation, result *opResult, aliases map[string]string) error {
	if result == nil || len(result.Doc) == 0 {
		return nil
	}

	if op.Method == syncop.MethodCreate && entity.IsProvisional(op.EntityID) && result.EntityID != "" {
		if err := e.store.Delete(ctx, op.Resource, op.EntityID); err != nil {
			return err
		}
		if err := e.store.Put(ctx, op.Resource, ports.Document{ID: result.EntityID, Data: result.Doc}); err != nil {
			return err
		}
		if err := e.store.RewriteEntityID(ctx, op.EntityID, result.EntityID); err != nil {
			return err
		}
		aliases[op.EntityID] = result.EntityID
		e.logger.InfoContext(ctx, "provisional id reconciled",
			"old_id", op.EntityID, "new_id", result.EntityID)
		e.bus.Publish(EntityReplaced{Resource: op.Resource, OldID: op.EntityID, NewID: result.EntityID})
		return nil
	}

	id := result.EntityID
	if id == "" {
		id = op.EntityID
	}
	return e.store.Put(ctx, op.Resource, ports.Document{ID: id, Data: result.Doc})
}

// applyAliases rewrites an operation already read into this drain pass whose
// target was reconciled earlier in the same pass.
func applyAliases(op syncop.Operation, aliases map[string]string) syncop.Operation {
	if len(aliases) == 0 {
		return op
	}
	if newID, ok := aliases[op.EntityID]; ok {
		op.EntityID = newID
	}
	if len(op.Payload) > 0 {
		for oldID, newID := range aliases {
			op.Payload = bytes.ReplaceAll(op.Payload,
				[]byte(`"`+oldID+`"`), []byte(`"`+newID+`"`))
		}
	}
	return op
}

// buildHandlers maps (resource, method) pairs onto the typed remote client.
// Task creates route through the project-scoped endpoint, so the payload must
// carry project_id; the facade always includes it.
func buildHandlers(remote ports.RemoteClientPort) map[opKey]handler {
	marshal := func(v any, id string) (*opResult, error) {
		doc, err := json.Marshal(v)
		if err != nil {
			return nil, errors.NewError(errors.CodeMalformed, "encode server entity", err)
		}
		return &opResult{EntityID: id, Doc: doc}, nil
	}

	return map[opKey]handler{
		{entity.ResourceIdea, syncop.MethodCreate}: func(ctx context.Context, op syncop.Operation) (*opResult, error) {
			result, err := remote.CreateIdea(ctx, op.Payload)
			if err != nil {
				return nil, err
			}
			return marshal(result.Idea, result.Idea.ID)
		},
		{entity.ResourceIdea, syncop.MethodUpdate}: func(ctx context.Context, op syncop.Operation) (*opResult, error) {
			result, err := remote.UpdateIdea(ctx, op.EntityID, op.Payload)
			if err != nil {
				return nil, err
			}
			return marshal(result.Idea, result.Idea.ID)
		},
		{entity.ResourceIdea, syncop.MethodDelete}: func(ctx context.Context, op syncop.Operation) (*opResult, error) {
			return nil, remote.DeleteIdea(ctx, op.EntityID)
		},

		{entity.ResourceProject, syncop.MethodCreate}: func(ctx context.Context, op syncop.Operation) (*opResult, error) {
			result, err := remote.CreateProject(ctx, op.Payload)
			if err != nil {
				return nil, err
			}
			return marshal(result.Project, result.Project.ID)
		},
		{entity.ResourceProject, syncop.MethodUpdate}: func(ctx context.Context, op syncop.Operation) (*opResult, error) {
			result, err := remote.UpdateProject(ctx, op.EntityID, op.Payload)
			if err != nil {
				return nil, err
			}
			return marshal(result.Project, result.Project.ID)
		},
		{entity.ResourceProject, syncop.MethodDelete}: func(ctx context.Context, op syncop.Operation) (*opResult, error) {
			return nil, remote.DeleteProject(ctx, op.EntityID)
		},

		{entity.ResourceTask, syncop.MethodCreate}: func(ctx context.Context, op syncop.Operation) (*opResult, error) {
			var ref struct {
				ProjectID string `json:"project_id"`
			}
			if err := json.Unmarshal(op.Payload, &ref); err != nil || ref.ProjectID == "" {
				return nil, errors.NewError(errors.CodeValidation, "task create missing project_id", err)
			}
			if entity.IsProvisional(ref.ProjectID) {
				// Parent project has not been reconciled yet; FIFO order means
				// its create failed this pass. Retry after it succeeds.
				return nil, errors.NewError(errors.CodeConnectivity, "parent project not yet synced", nil)
			}
			result, err := remote.CreateTask(ctx, ref.ProjectID, op.Payload)
			if err != nil {
				return nil, err
			}
			return marshal(result.Task, result.Task.ID)
		},
		{entity.ResourceTask, syncop.MethodUpdate}: func(ctx context.Context, op syncop.Operation) (*opResult, error) {
			result, err := remote.UpdateTask(ctx, op.EntityID, op.Payload)
			if err != nil {
				return nil, err
			}
			return marshal(result.Task, result.Task.ID)
		},
		{entity.ResourceTask, syncop.MethodDelete}: func(ctx context.Context, op syncop.Operation) (*opResult, error) {
			return nil, remote.DeleteTask(ctx, op.EntityID)
		},
	}
}
