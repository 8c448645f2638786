package state

import (
	"context"
	"encoding/json"
	"time"

	"github.com/viberater/viberater/internal/domain/entity"
	"github.com/viberater/viberater/internal/domain/errors"
	"github.com/viberater/viberater/internal/domain/syncop"
)

// Projects returns a snapshot of the project collection.
func (f *Facade) Projects() []entity.Project {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]entity.Project(nil), f.projects...)
}

// FetchProjects refreshes the project collection, serving the cache offline
// or when the server call fails.
func (f *Facade) FetchProjects(ctx context.Context) error {
	if f.online() {
		projects, err := f.remote.ListProjects(ctx)
		if err == nil {
			for _, project := range projects {
				if cacheErr := f.cachePut(ctx, entity.ResourceProject, project.ID, project); cacheErr != nil {
					f.logger.WarnContext(ctx, "could not cache project", "id", project.ID, "error", cacheErr)
				}
			}
			f.mu.Lock()
			f.projects = projects
			f.mu.Unlock()
			return nil
		}
		f.setError(err)
		f.logger.WarnContext(ctx, "project fetch failed, serving cache", "error", err)
	}

	projects, err := loadAll[entity.Project](ctx, f.store, entity.ResourceProject)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.projects = projects
	f.mu.Unlock()
	return nil
}

// CreateProject creates a project, queueing the create when offline.
func (f *Facade) CreateProject(ctx context.Context, data json.RawMessage) (entity.Project, error) {
	if f.online() {
		result, err := f.remote.CreateProject(ctx, data)
		if err != nil {
			f.setError(err)
			return entity.Project{}, err
		}
		if err := f.cachePut(ctx, entity.ResourceProject, result.Project.ID, result.Project); err != nil {
			f.logger.WarnContext(ctx, "could not cache created project", "error", err)
		}
		f.mu.Lock()
		f.projects = append([]entity.Project{result.Project}, f.projects...)
		f.mu.Unlock()
		return result.Project, nil
	}

	var project entity.Project
	if err := json.Unmarshal(data, &project); err != nil {
		return entity.Project{}, errors.NewError(errors.CodeValidation, "decode project payload", err)
	}
	project.ID = entity.NewProvisionalID()
	project.CreatedAt = time.Now().UTC()

	if err := f.cachePut(ctx, entity.ResourceProject, project.ID, project); err != nil {
		return entity.Project{}, err
	}
	if _, err := f.engine.QueueOperation(ctx, syncop.NewCreate(entity.ResourceProject, project.ID, data)); err != nil {
		return entity.Project{}, err
	}

	f.mu.Lock()
	f.projects = append([]entity.Project{project}, f.projects...)
	f.mu.Unlock()
	return project, nil
}

// UpdateProject applies a partial update, queueing when offline.
func (f *Facade) UpdateProject(ctx context.Context, id string, data json.RawMessage) (entity.Project, error) {
	if f.online() {
		result, err := f.remote.UpdateProject(ctx, id, data)
		if err != nil {
			f.setError(err)
			return entity.Project{}, err
		}
		if err := f.cachePut(ctx, entity.ResourceProject, result.Project.ID, result.Project); err != nil {
			f.logger.WarnContext(ctx, "could not cache updated project", "error", err)
		}
		f.replaceProject(id, result.Project)
		return result.Project, nil
	}

	f.mu.RLock()
	merged, found := findByID(f.projects, id, func(p entity.Project) string { return p.ID })
	f.mu.RUnlock()
	if !found {
		return entity.Project{}, errors.NewError(errors.CodeNotFound, "project "+id, errors.ErrNotFound)
	}
	if err := json.Unmarshal(data, &merged); err != nil {
		return entity.Project{}, errors.NewError(errors.CodeValidation, "decode project patch", err)
	}
	merged.UpdatedAt = time.Now().UTC()

	if err := f.cachePut(ctx, entity.ResourceProject, id, merged); err != nil {
		return entity.Project{}, err
	}
	if _, err := f.engine.QueueOperation(ctx, syncop.NewUpdate(entity.ResourceProject, id, data)); err != nil {
		return entity.Project{}, err
	}
	f.replaceProject(id, merged)
	return merged, nil
}

// DeleteProject removes a project, queueing the delete when offline.
func (f *Facade) DeleteProject(ctx context.Context, id string) error {
	online := f.online()
	if online {
		if err := f.remote.DeleteProject(ctx, id); err != nil {
			f.setError(err)
			return err
		}
	}
	if err := f.store.Delete(ctx, entity.ResourceProject, id); err != nil {
		return err
	}
	if !online {
		if _, err := f.engine.QueueOperation(ctx, syncop.NewDelete(entity.ResourceProject, id)); err != nil {
			return err
		}
	}

	f.mu.Lock()
	f.projects = removeByID(f.projects, id, func(p entity.Project) string { return p.ID })
	delete(f.tasks, id)
	f.mu.Unlock()
	return nil
}

// DemoteProject turns a project back into an idea. Like promotion this is a
// server-side transaction and requires connectivity.
func (f *Facade) DemoteProject(ctx context.Context, id string) (entity.Idea, error) {
	if !f.online() {
		return entity.Idea{}, errors.NewError(errors.CodeConnectivity,
			"demote project", errors.ErrRequiresConnectivity)
	}

	result, err := f.remote.DemoteProject(ctx, id)
	if err != nil {
		f.setError(err)
		return entity.Idea{}, err
	}

	if err := f.store.Delete(ctx, entity.ResourceProject, id); err != nil {
		f.logger.WarnContext(ctx, "could not evict demoted project", "error", err)
	}
	if err := f.cachePut(ctx, entity.ResourceIdea, result.Idea.ID, result.Idea); err != nil {
		f.logger.WarnContext(ctx, "could not cache restored idea", "error", err)
	}

	f.mu.Lock()
	f.projects = removeByID(f.projects, id, func(p entity.Project) string { return p.ID })
	delete(f.tasks, id)
	restored := false
	for i := range f.ideas {
		if f.ideas[i].ID == result.Idea.ID {
			f.ideas[i] = result.Idea
			restored = true
		}
	}
	if !restored {
		f.ideas = append([]entity.Idea{result.Idea}, f.ideas...)
	}
	f.mu.Unlock()

	return result.Idea, nil
}

func (f *Facade) replaceProject(id string, project entity.Project) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.projects {
		if f.projects[i].ID == id {
			f.projects[i] = project
		}
	}
}
