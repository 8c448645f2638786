// Package state exposes the application-facing view of the offline-first
// data layer: in-memory collections backed by the local cache, optimistic
// writes, and automatic queueing while the server is unreachable.
package state

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/viberater/viberater/internal/application/ports"
	"github.com/viberater/viberater/internal/application/syncengine"
	"github.com/viberater/viberater/internal/domain/entity"
	"github.com/viberater/viberater/internal/domain/errors"
	"github.com/viberater/viberater/internal/infrastructure/logging"
)

// Facade is the single entry point the presentation layer talks to. Reads
// come from memory, hydrated from the cache or the server; writes apply
// optimistically to memory and cache, then either hit the server directly or
// queue for replay.
type Facade struct {
	store   ports.LocalStorePort
	remote  ports.RemoteClientPort
	monitor ports.ConnectivityPort
	engine  *syncengine.Engine
	logger  *logging.Logger

	mu       sync.RWMutex
	ideas    []entity.Idea
	projects []entity.Project
	tasks    map[string][]entity.Task
	lastErr  error
}

// NewFacade creates the facade and subscribes it to the engine's events so
// provisional ids get patched in memory when they reconcile.
func NewFacade(
	store ports.LocalStorePort,
	remote ports.RemoteClientPort,
	monitor ports.ConnectivityPort,
	engine *syncengine.Engine,
	logger *logging.Logger,
) *Facade {
	if logger == nil {
		logger = logging.Discard()
	}
	f := &Facade{
		store:   store,
		remote:  remote,
		monitor: monitor,
		engine:  engine,
		logger:  logger,
		tasks:   make(map[string][]entity.Task),
	}
	if engine != nil {
		engine.Bus().Subscribe(f.onEvent)
	}
	return f
}

// Initialize hydrates the in-memory collections from the local cache. The
// server is deliberately not consulted here; the app is usable immediately
// and the first fetch or sync refreshes from the network.
func (f *Facade) Initialize(ctx context.Context) error {
	ideas, err := loadAll[entity.Idea](ctx, f.store, entity.ResourceIdea)
	if err != nil {
		return err
	}
	projects, err := loadAll[entity.Project](ctx, f.store, entity.ResourceProject)
	if err != nil {
		return err
	}
	allTasks, err := loadAll[entity.Task](ctx, f.store, entity.ResourceTask)
	if err != nil {
		return err
	}

	byProject := make(map[string][]entity.Task)
	for _, task := range allTasks {
		byProject[task.ProjectID] = append(byProject[task.ProjectID], task)
	}

	f.mu.Lock()
	f.ideas = ideas
	f.projects = projects
	f.tasks = byProject
	f.mu.Unlock()

	f.logger.InfoContext(ctx, "state hydrated from cache",
		"ideas", len(ideas), "projects", len(projects), "tasks", len(allTasks))
	return nil
}

// Bootstrap pulls all collections from the server into the cache and memory.
// Requires connectivity.
func (f *Facade) Bootstrap(ctx context.Context) error {
	if !f.online() {
		return errors.NewError(errors.CodeConnectivity, "bootstrap", errors.ErrRequiresConnectivity)
	}
	if err := f.FetchIdeas(ctx); err != nil {
		return err
	}
	if err := f.FetchProjects(ctx); err != nil {
		return err
	}
	projects := f.Projects()
	for _, p := range projects {
		if err := f.FetchProjectTasks(ctx, p.ID); err != nil {
			return err
		}
	}
	return nil
}

// Sync triggers a queue drain now.
func (f *Facade) Sync(ctx context.Context) {
	if f.engine != nil {
		f.engine.Sync(ctx)
	}
}

// Status summarizes the data layer for the status surface.
type Status struct {
	Online       bool
	Syncing      bool
	Pending      int
	DeadLettered int
	Ideas        int
	Projects     int
	Tasks        int
	LastError    string
}

// Status reports connectivity, queue depth, and collection sizes.
func (f *Facade) Status(ctx context.Context) (Status, error) {
	pending, err := f.store.PendingOps(ctx)
	if err != nil {
		return Status{}, err
	}
	dead, err := f.store.DeadLetteredOps(ctx)
	if err != nil {
		return Status{}, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	s := Status{
		Online:       f.online(),
		Pending:      len(pending),
		DeadLettered: len(dead),
		Ideas:        len(f.ideas),
		Projects:     len(f.projects),
	}
	if f.engine != nil {
		s.Syncing = f.engine.IsSyncing()
	}
	for _, tasks := range f.tasks {
		s.Tasks += len(tasks)
	}
	if f.lastErr != nil {
		s.LastError = f.lastErr.Error()
	}
	return s, nil
}

// LastError returns the most recent operation error, if any.
func (f *Facade) LastError() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.lastErr
}

// ClearError clears the recorded error.
func (f *Facade) ClearError() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastErr = nil
}

func (f *Facade) online() bool {
	return f.monitor != nil && f.monitor.IsOnline()
}

func (f *Facade) setError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastErr = err
}

// onEvent replaces in-memory records when a provisional id reconciles. The
// cache already holds the authoritative server record under the new id, so
// the record is re-read in full; the bare id is patched only when that read
// fails. Cache reads happen before taking f.mu.
func (f *Facade) onEvent(ev syncengine.Event) {
	replaced, ok := ev.(syncengine.EntityReplaced)
	if !ok {
		return
	}
	ctx := context.Background()

	switch replaced.Resource {
	case entity.ResourceIdea:
		cached, hit := loadOne[entity.Idea](ctx, f.store, entity.ResourceIdea, replaced.NewID)
		f.mu.Lock()
		for i := range f.ideas {
			if f.ideas[i].ID != replaced.OldID {
				continue
			}
			if hit {
				f.ideas[i] = cached
			} else {
				f.ideas[i].ID = replaced.NewID
			}
		}
		f.mu.Unlock()
	case entity.ResourceProject:
		cached, hit := loadOne[entity.Project](ctx, f.store, entity.ResourceProject, replaced.NewID)
		f.mu.Lock()
		for i := range f.projects {
			if f.projects[i].ID != replaced.OldID {
				continue
			}
			if hit {
				f.projects[i] = cached
			} else {
				f.projects[i].ID = replaced.NewID
			}
		}
		if tasks, found := f.tasks[replaced.OldID]; found {
			for i := range tasks {
				tasks[i].ProjectID = replaced.NewID
			}
			f.tasks[replaced.NewID] = append(f.tasks[replaced.NewID], tasks...)
			delete(f.tasks, replaced.OldID)
		}
		f.mu.Unlock()
	case entity.ResourceTask:
		cached, hit := loadOne[entity.Task](ctx, f.store, entity.ResourceTask, replaced.NewID)
		f.mu.Lock()
		for _, tasks := range f.tasks {
			for i := range tasks {
				if tasks[i].ID != replaced.OldID {
					continue
				}
				if hit {
					tasks[i] = cached
				} else {
					tasks[i].ID = replaced.NewID
				}
			}
		}
		f.mu.Unlock()
	}
}

// loadAll reads a whole collection from the cache and decodes it.
func loadAll[T any](ctx context.Context, store ports.LocalStorePort, resource entity.Resource) ([]T, error) {
	docs, err := store.GetAll(ctx, resource)
	if err != nil {
		return nil, err
	}
	items := make([]T, 0, len(docs))
	for _, doc := range docs {
		var item T
		if err := json.Unmarshal(doc.Data, &item); err != nil {
			return nil, errors.NewError(errors.CodeStorage, "decode cached "+string(resource), err)
		}
		items = append(items, item)
	}
	return items, nil
}

// loadOne reads a single cached record, reporting false when it is missing
// or does not decode.
func loadOne[T any](ctx context.Context, store ports.LocalStorePort, resource entity.Resource, id string) (T, bool) {
	var item T
	doc, err := store.Get(ctx, resource, id)
	if err != nil {
		return item, false
	}
	if err := json.Unmarshal(doc.Data, &item); err != nil {
		return item, false
	}
	return item, true
}

// cachePut stores an entity as its JSON document.
func (f *Facade) cachePut(ctx context.Context, resource entity.Resource, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.NewError(errors.CodeMalformed, "encode "+string(resource), err)
	}
	return f.store.Put(ctx, resource, ports.Document{ID: id, Data: data})
}
