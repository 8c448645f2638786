package state

import (
	"context"
	"encoding/json"
	"time"

	"github.com/viberater/viberater/internal/domain/entity"
	"github.com/viberater/viberater/internal/domain/errors"
	"github.com/viberater/viberater/internal/domain/syncop"
)

// ProjectTasks returns a snapshot of a project's tasks.
func (f *Facade) ProjectTasks(projectID string) []entity.Task {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]entity.Task(nil), f.tasks[projectID]...)
}

// FetchProjectTasks refreshes one project's task list, serving the cache
// offline or when the server call fails.
func (f *Facade) FetchProjectTasks(ctx context.Context, projectID string) error {
	if f.online() {
		tasks, err := f.remote.ListProjectTasks(ctx, projectID)
		if err == nil {
			for _, task := range tasks {
				if cacheErr := f.cachePut(ctx, entity.ResourceTask, task.ID, task); cacheErr != nil {
					f.logger.WarnContext(ctx, "could not cache task", "id", task.ID, "error", cacheErr)
				}
			}
			f.mu.Lock()
			f.tasks[projectID] = tasks
			f.mu.Unlock()
			return nil
		}
		f.setError(err)
		f.logger.WarnContext(ctx, "task fetch failed, serving cache", "error", err)
	}

	all, err := loadAll[entity.Task](ctx, f.store, entity.ResourceTask)
	if err != nil {
		return err
	}
	var tasks []entity.Task
	for _, task := range all {
		if task.ProjectID == projectID {
			tasks = append(tasks, task)
		}
	}
	f.mu.Lock()
	f.tasks[projectID] = tasks
	f.mu.Unlock()
	return nil
}

// CreateTask creates a task under a project. Offline the queued payload
// carries project_id so replay can route through the project-scoped endpoint.
func (f *Facade) CreateTask(ctx context.Context, projectID string, data json.RawMessage) (entity.Task, error) {
	if f.online() {
		result, err := f.remote.CreateTask(ctx, projectID, data)
		if err != nil {
			f.setError(err)
			return entity.Task{}, err
		}
		if err := f.cachePut(ctx, entity.ResourceTask, result.Task.ID, result.Task); err != nil {
			f.logger.WarnContext(ctx, "could not cache created task", "error", err)
		}
		f.appendTask(projectID, result.Task)
		return result.Task, nil
	}

	var task entity.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return entity.Task{}, errors.NewError(errors.CodeValidation, "decode task payload", err)
	}
	task.ID = entity.NewProvisionalID()
	task.ProjectID = projectID
	task.CreatedAt = time.Now().UTC()

	// Rebuild the payload with project_id embedded for the replay handler.
	payload, err := withProjectID(data, projectID)
	if err != nil {
		return entity.Task{}, err
	}

	if err := f.cachePut(ctx, entity.ResourceTask, task.ID, task); err != nil {
		return entity.Task{}, err
	}
	if _, err := f.engine.QueueOperation(ctx, syncop.NewCreate(entity.ResourceTask, task.ID, payload)); err != nil {
		return entity.Task{}, err
	}
	f.appendTask(projectID, task)
	return task, nil
}

// UpdateTask applies a partial update to a task, queueing when offline.
func (f *Facade) UpdateTask(ctx context.Context, projectID, taskID string, data json.RawMessage) (entity.Task, error) {
	if f.online() {
		result, err := f.remote.UpdateTask(ctx, taskID, data)
		if err != nil {
			f.setError(err)
			return entity.Task{}, err
		}
		if err := f.cachePut(ctx, entity.ResourceTask, result.Task.ID, result.Task); err != nil {
			f.logger.WarnContext(ctx, "could not cache updated task", "error", err)
		}
		f.replaceTask(projectID, taskID, result.Task)
		return result.Task, nil
	}

	f.mu.RLock()
	merged, found := findByID(f.tasks[projectID], taskID, func(t entity.Task) string { return t.ID })
	f.mu.RUnlock()
	if !found {
		return entity.Task{}, errors.NewError(errors.CodeNotFound, "task "+taskID, errors.ErrNotFound)
	}
	if err := json.Unmarshal(data, &merged); err != nil {
		return entity.Task{}, errors.NewError(errors.CodeValidation, "decode task patch", err)
	}
	merged.UpdatedAt = time.Now().UTC()

	if err := f.cachePut(ctx, entity.ResourceTask, taskID, merged); err != nil {
		return entity.Task{}, err
	}
	if _, err := f.engine.QueueOperation(ctx, syncop.NewUpdate(entity.ResourceTask, taskID, data)); err != nil {
		return entity.Task{}, err
	}
	f.replaceTask(projectID, taskID, merged)
	return merged, nil
}

// DeleteTask removes a task, queueing the delete when offline.
func (f *Facade) DeleteTask(ctx context.Context, projectID, taskID string) error {
	online := f.online()
	if online {
		if err := f.remote.DeleteTask(ctx, taskID); err != nil {
			f.setError(err)
			return err
		}
	}
	if err := f.store.Delete(ctx, entity.ResourceTask, taskID); err != nil {
		return err
	}
	if !online {
		if _, err := f.engine.QueueOperation(ctx, syncop.NewDelete(entity.ResourceTask, taskID)); err != nil {
			return err
		}
	}

	f.mu.Lock()
	f.tasks[projectID] = removeByID(f.tasks[projectID], taskID, func(t entity.Task) string { return t.ID })
	f.mu.Unlock()
	return nil
}

// CompleteTask marks a task done. Offline the completion is expressed as a
// queued status update so replay needs no dedicated verb.
func (f *Facade) CompleteTask(ctx context.Context, projectID, taskID string) (entity.Task, error) {
	if f.online() {
		result, err := f.remote.CompleteTask(ctx, taskID)
		if err != nil {
			f.setError(err)
			return entity.Task{}, err
		}
		if err := f.cachePut(ctx, entity.ResourceTask, result.Task.ID, result.Task); err != nil {
			f.logger.WarnContext(ctx, "could not cache completed task", "error", err)
		}
		f.replaceTask(projectID, taskID, result.Task)
		return result.Task, nil
	}

	f.mu.RLock()
	completed, found := findByID(f.tasks[projectID], taskID, func(t entity.Task) string { return t.ID })
	f.mu.RUnlock()
	if !found {
		return entity.Task{}, errors.NewError(errors.CodeNotFound, "task "+taskID, errors.ErrNotFound)
	}
	now := time.Now().UTC()
	completed.Status = entity.TaskStatusCompleted
	completed.CompletedAt = &now

	if err := f.cachePut(ctx, entity.ResourceTask, taskID, completed); err != nil {
		return entity.Task{}, err
	}
	if _, err := f.engine.QueueOperation(ctx,
		syncop.NewUpdate(entity.ResourceTask, taskID, json.RawMessage(`{"status":"completed"}`))); err != nil {
		return entity.Task{}, err
	}
	f.replaceTask(projectID, taskID, completed)
	return completed, nil
}

func (f *Facade) appendTask(projectID string, task entity.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks[projectID] = append(f.tasks[projectID], task)
}

func (f *Facade) replaceTask(projectID, taskID string, task entity.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tasks := f.tasks[projectID]
	for i := range tasks {
		if tasks[i].ID == taskID {
			tasks[i] = task
		}
	}
}

// withProjectID returns the payload with project_id set.
func withProjectID(data json.RawMessage, projectID string) (json.RawMessage, error) {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, errors.NewError(errors.CodeValidation, "decode task payload", err)
	}
	fields["project_id"] = projectID
	out, err := json.Marshal(fields)
	if err != nil {
		return nil, errors.NewError(errors.CodeMalformed, "encode task payload", err)
	}
	return out, nil
}
