package ports

import (
	"context"
	"encoding/json"

	"github.com/viberater/viberater/internal/domain/entity"
)

// IdeaResult wraps a server response carrying a single idea.
type IdeaResult struct {
	Idea entity.Idea `json:"idea"`
}

// ProjectResult wraps a server response carrying a single project.
type ProjectResult struct {
	Project entity.Project `json:"project"`
}

// TaskResult wraps a server response carrying a single task.
type TaskResult struct {
	Task entity.Task `json:"task"`
}

// PromotionResult is the fan-out returned when an idea becomes a project:
// the new project plus the tasks the server created from the project plan.
type PromotionResult struct {
	Project entity.Project `json:"project"`
	Tasks   []entity.Task  `json:"tasks"`
}

// ProjectPlan is the plan submitted when promoting an idea. The server turns
// it into a project row plus task rows in one transaction.
type ProjectPlan struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Phases      []entity.Phase `json:"phases,omitempty"`
	Tasks       []entity.Task  `json:"tasks,omitempty"`
}

// RemoteClientPort is the typed contract to the network API. The bearer token
// and its refresh-on-401 dance live one level below this contract, inside the
// adapter. A non-2xx response surfaces as a coded failure with a
// human-readable message; a non-JSON body is a distinct malformed-response
// failure.
type RemoteClientPort interface {
	// Ideas.
	ListIdeas(ctx context.Context) ([]entity.Idea, error)
	CreateIdea(ctx context.Context, data json.RawMessage) (*IdeaResult, error)
	UpdateIdea(ctx context.Context, id string, data json.RawMessage) (*IdeaResult, error)
	DeleteIdea(ctx context.Context, id string) error
	PromoteIdea(ctx context.Context, id string, plan ProjectPlan) (*PromotionResult, error)
	SaveRefinement(ctx context.Context, id string, conversation []ChatMessage, refined json.RawMessage) (*IdeaResult, error)

	// Projects.
	ListProjects(ctx context.Context) ([]entity.Project, error)
	CreateProject(ctx context.Context, data json.RawMessage) (*ProjectResult, error)
	UpdateProject(ctx context.Context, id string, data json.RawMessage) (*ProjectResult, error)
	DeleteProject(ctx context.Context, id string) error
	DemoteProject(ctx context.Context, id string) (*IdeaResult, error)

	// Tasks.
	ListProjectTasks(ctx context.Context, projectID string) ([]entity.Task, error)
	CreateTask(ctx context.Context, projectID string, data json.RawMessage) (*TaskResult, error)
	UpdateTask(ctx context.Context, id string, data json.RawMessage) (*TaskResult, error)
	DeleteTask(ctx context.Context, id string) error
	CompleteTask(ctx context.Context, id string) (*TaskResult, error)

	// Health probes API reachability; used by the connectivity monitor.
	Health(ctx context.Context) error
}
