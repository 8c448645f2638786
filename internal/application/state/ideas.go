package state

import (
	"context"
	"encoding/json"
	"time"

	"github.com/viberater/viberater/internal/application/ports"
	"github.com/viberater/viberater/internal/application/syncengine"
	"github.com/viberater/viberater/internal/domain/entity"
	"github.com/viberater/viberater/internal/domain/errors"
	"github.com/viberater/viberater/internal/domain/syncop"
)

// Ideas returns a snapshot of the idea collection.
func (f *Facade) Ideas() []entity.Idea {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]entity.Idea(nil), f.ideas...)
}

// FetchIdeas refreshes the idea collection. Online it pulls from the server
// and re-primes the cache; offline, or when the server call fails, it serves
// the cache and records the error.
func (f *Facade) FetchIdeas(ctx context.Context) error {
	if f.online() {
		ideas, err := f.remote.ListIdeas(ctx)
		if err == nil {
			for _, idea := range ideas {
				if cacheErr := f.cachePut(ctx, entity.ResourceIdea, idea.ID, idea); cacheErr != nil {
					f.logger.WarnContext(ctx, "could not cache idea", "id", idea.ID, "error", cacheErr)
				}
			}
			f.mu.Lock()
			f.ideas = ideas
			f.mu.Unlock()
			return nil
		}
		f.setError(err)
		f.logger.WarnContext(ctx, "idea fetch failed, serving cache", "error", err)
	}

	ideas, err := loadAll[entity.Idea](ctx, f.store, entity.ResourceIdea)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.ideas = ideas
	f.mu.Unlock()
	return nil
}

// CreateIdea creates an idea. Online the server record comes back directly;
// offline a provisional record is cached and the create queues for replay.
func (f *Facade) CreateIdea(ctx context.Context, data json.RawMessage) (entity.Idea, error) {
	if f.online() {
		result, err := f.remote.CreateIdea(ctx, data)
		if err != nil {
			f.setError(err)
			return entity.Idea{}, err
		}
		if err := f.cachePut(ctx, entity.ResourceIdea, result.Idea.ID, result.Idea); err != nil {
			f.logger.WarnContext(ctx, "could not cache created idea", "error", err)
		}
		f.mu.Lock()
		f.ideas = append([]entity.Idea{result.Idea}, f.ideas...)
		f.mu.Unlock()
		return result.Idea, nil
	}

	var idea entity.Idea
	if err := json.Unmarshal(data, &idea); err != nil {
		return entity.Idea{}, errors.NewError(errors.CodeValidation, "decode idea payload", err)
	}
	idea.ID = entity.NewProvisionalID()
	idea.CreatedAt = time.Now().UTC()

	if err := f.cachePut(ctx, entity.ResourceIdea, idea.ID, idea); err != nil {
		return entity.Idea{}, err
	}
	if _, err := f.engine.QueueOperation(ctx, syncop.NewCreate(entity.ResourceIdea, idea.ID, data)); err != nil {
		return entity.Idea{}, err
	}

	f.mu.Lock()
	f.ideas = append([]entity.Idea{idea}, f.ideas...)
	f.mu.Unlock()
	return idea, nil
}

// UpdateIdea applies a partial update. Offline the patch merges onto the
// cached record and queues for replay.
func (f *Facade) UpdateIdea(ctx context.Context, id string, data json.RawMessage) (entity.Idea, error) {
	if f.online() {
		result, err := f.remote.UpdateIdea(ctx, id, data)
		if err != nil {
			f.setError(err)
			return entity.Idea{}, err
		}
		if err := f.cachePut(ctx, entity.ResourceIdea, result.Idea.ID, result.Idea); err != nil {
			f.logger.WarnContext(ctx, "could not cache updated idea", "error", err)
		}
		f.replaceIdea(id, result.Idea)
		return result.Idea, nil
	}

	f.mu.RLock()
	merged, found := findByID(f.ideas, id, func(i entity.Idea) string { return i.ID })
	f.mu.RUnlock()
	if !found {
		return entity.Idea{}, errors.NewError(errors.CodeNotFound, "idea "+id, errors.ErrNotFound)
	}
	if err := json.Unmarshal(data, &merged); err != nil {
		return entity.Idea{}, errors.NewError(errors.CodeValidation, "decode idea patch", err)
	}
	merged.UpdatedAt = time.Now().UTC()

	if err := f.cachePut(ctx, entity.ResourceIdea, id, merged); err != nil {
		return entity.Idea{}, err
	}
	if _, err := f.engine.QueueOperation(ctx, syncop.NewUpdate(entity.ResourceIdea, id, data)); err != nil {
		return entity.Idea{}, err
	}
	f.replaceIdea(id, merged)
	return merged, nil
}

// DeleteIdea removes an idea locally and on the server, queueing the delete
// when offline.
func (f *Facade) DeleteIdea(ctx context.Context, id string) error {
	// One connectivity read for the whole call; a flip mid-delete must not
	// both hit the server and queue a replay, or do neither.
	online := f.online()
	if online {
		if err := f.remote.DeleteIdea(ctx, id); err != nil {
			f.setError(err)
			return err
		}
	}
	if err := f.store.Delete(ctx, entity.ResourceIdea, id); err != nil {
		return err
	}
	if !online {
		if _, err := f.engine.QueueOperation(ctx, syncop.NewDelete(entity.ResourceIdea, id)); err != nil {
			return err
		}
	}

	f.mu.Lock()
	f.ideas = removeByID(f.ideas, id, func(i entity.Idea) string { return i.ID })
	f.mu.Unlock()
	return nil
}

// PromoteIdea turns an idea into a project with tasks. The fan-out is a
// server-side transaction, so promotion requires connectivity.
func (f *Facade) PromoteIdea(ctx context.Context, id string, plan ports.ProjectPlan) (entity.Project, error) {
	if !f.online() {
		return entity.Project{}, errors.NewError(errors.CodeConnectivity,
			"promote idea", errors.ErrRequiresConnectivity)
	}

	result, err := f.remote.PromoteIdea(ctx, id, plan)
	if err != nil {
		f.setError(err)
		return entity.Project{}, err
	}

	if err := f.cachePut(ctx, entity.ResourceProject, result.Project.ID, result.Project); err != nil {
		f.logger.WarnContext(ctx, "could not cache promoted project", "error", err)
	}
	for _, task := range result.Tasks {
		if err := f.cachePut(ctx, entity.ResourceTask, task.ID, task); err != nil {
			f.logger.WarnContext(ctx, "could not cache promoted task", "error", err)
		}
	}

	f.mu.Lock()
	for i := range f.ideas {
		if f.ideas[i].ID == id {
			f.ideas[i].Status = entity.IdeaStatusPromoted
			f.ideas[i].ProjectID = result.Project.ID
		}
	}
	f.projects = append([]entity.Project{result.Project}, f.projects...)
	if len(result.Tasks) > 0 {
		f.tasks[result.Project.ID] = result.Tasks
	}
	f.mu.Unlock()

	// Persist the promoted status on the cached idea too.
	f.mu.RLock()
	idea, found := findByID(f.ideas, id, func(i entity.Idea) string { return i.ID })
	f.mu.RUnlock()
	if found {
		if err := f.cachePut(ctx, entity.ResourceIdea, id, idea); err != nil {
			f.logger.WarnContext(ctx, "could not cache promoted idea", "error", err)
		}
	}

	return result.Project, nil
}

// SaveRefinement stores a refinement transcript on an idea. Online the
// server keeps the full conversation; offline only the rendered notes are
// kept, as a queued partial update.
func (f *Facade) SaveRefinement(ctx context.Context, id string, conversation []ports.ChatMessage, notes string) (entity.Idea, error) {
	if f.online() {
		result, err := f.remote.SaveRefinement(ctx, id, conversation, nil)
		if err != nil {
			f.setError(err)
			return entity.Idea{}, err
		}
		if err := f.cachePut(ctx, entity.ResourceIdea, result.Idea.ID, result.Idea); err != nil {
			f.logger.WarnContext(ctx, "could not cache refined idea", "error", err)
		}
		f.replaceIdea(id, result.Idea)
		return result.Idea, nil
	}

	patch, err := json.Marshal(map[string]string{"refinement": notes})
	if err != nil {
		return entity.Idea{}, errors.NewError(errors.CodeMalformed, "encode refinement", err)
	}
	return f.UpdateIdea(ctx, id, patch)
}

func (f *Facade) replaceIdea(id string, idea entity.Idea) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.ideas {
		if f.ideas[i].ID == id {
			f.ideas[i] = idea
		}
	}
}

// Engine exposes the sync engine for event subscriptions.
func (f *Facade) Engine() *syncengine.Engine {
	return f.engine
}

func findByID[T any](items []T, id string, key func(T) string) (T, bool) {
	for _, item := range items {
		if key(item) == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}

func removeByID[T any](items []T, id string, key func(T) string) []T {
	out := items[:0]
	for _, item := range items {
		if key(item) != id {
			out = append(out, item)
		}
	}
	return out
}
