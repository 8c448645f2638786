package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/viberater/viberater/internal/application/ports"
	"github.com/viberater/viberater/internal/domain/entity"
)

// ListIdeas returns all ideas.
func (c *Client) ListIdeas(ctx context.Context) ([]entity.Idea, error) {
	var result struct {
		Ideas []entity.Idea `json:"ideas"`
	}
	if err := c.do(ctx, http.MethodGet, "/ideas", nil, &result); err != nil {
		return nil, err
	}
	return result.Ideas, nil
}

// CreateIdea creates an idea from a raw payload.
func (c *Client) CreateIdea(ctx context.Context, data json.RawMessage) (*ports.IdeaResult, error) {
	var result ports.IdeaResult
	if err := c.do(ctx, http.MethodPost, "/ideas", data, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateIdea applies a partial update to an idea.
func (c *Client) UpdateIdea(ctx context.Context, id string, data json.RawMessage) (*ports.IdeaResult, error) {
	var result ports.IdeaResult
	if err := c.do(ctx, http.MethodPut, "/ideas/"+id, data, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DeleteIdea deletes an idea.
func (c *Client) DeleteIdea(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/ideas/"+id, nil, nil)
}

// PromoteIdea turns an idea into a project plus its planned tasks. The server
// performs the fan-out in one transaction.
func (c *Client) PromoteIdea(ctx context.Context, id string, plan ports.ProjectPlan) (*ports.PromotionResult, error) {
	var result ports.PromotionResult
	if err := c.do(ctx, http.MethodPost, "/ideas/"+id+"/promote", plan, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SaveRefinement stores a refinement conversation transcript on an idea.
func (c *Client) SaveRefinement(ctx context.Context, id string, conversation []ports.ChatMessage, refined json.RawMessage) (*ports.IdeaResult, error) {
	body := map[string]any{"conversation": conversation}
	if len(refined) > 0 {
		body["refinedData"] = refined
	}
	var result ports.IdeaResult
	if err := c.do(ctx, http.MethodPatch, "/ideas/"+id+"/refine", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListProjects returns all projects.
func (c *Client) ListProjects(ctx context.Context) ([]entity.Project, error) {
	var result struct {
		Projects []entity.Project `json:"projects"`
	}
	if err := c.do(ctx, http.MethodGet, "/projects", nil, &result); err != nil {
		return nil, err
	}
	return result.Projects, nil
}

// CreateProject creates a project from a raw payload.
func (c *Client) CreateProject(ctx context.Context, data json.RawMessage) (*ports.ProjectResult, error) {
	var result ports.ProjectResult
	if err := c.do(ctx, http.MethodPost, "/projects", data, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateProject applies a partial update to a project.
func (c *Client) UpdateProject(ctx context.Context, id string, data json.RawMessage) (*ports.ProjectResult, error) {
	var result ports.ProjectResult
	if err := c.do(ctx, http.MethodPut, "/projects/"+id, data, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DeleteProject deletes a project.
func (c *Client) DeleteProject(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/projects/"+id, nil, nil)
}

// DemoteProject turns a project back into an idea.
func (c *Client) DemoteProject(ctx context.Context, id string) (*ports.IdeaResult, error) {
	var result ports.IdeaResult
	if err := c.do(ctx, http.MethodPost, "/projects/"+id+"/demote", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListProjectTasks returns a project's tasks.
func (c *Client) ListProjectTasks(ctx context.Context, projectID string) ([]entity.Task, error) {
	var result struct {
		Tasks []entity.Task `json:"tasks"`
	}
	if err := c.do(ctx, http.MethodGet, "/tasks/project/"+projectID, nil, &result); err != nil {
		return nil, err
	}
	return result.Tasks, nil
}

// CreateTask creates a task under a project.
func (c *Client) CreateTask(ctx context.Context, projectID string, data json.RawMessage) (*ports.TaskResult, error) {
	var result ports.TaskResult
	if err := c.do(ctx, http.MethodPost, "/tasks/project/"+projectID, data, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateTask applies a partial update to a task.
func (c *Client) UpdateTask(ctx context.Context, id string, data json.RawMessage) (*ports.TaskResult, error) {
	var result ports.TaskResult
	if err := c.do(ctx, http.MethodPut, "/tasks/"+id, data, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DeleteTask deletes a task.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/tasks/"+id, nil, nil)
}

// CompleteTask marks a task completed.
func (c *Client) CompleteTask(ctx context.Context, id string) (*ports.TaskResult, error) {
	var result ports.TaskResult
	if err := c.do(ctx, http.MethodPost, "/tasks/"+id+"/complete", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Health probes the API health endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// chatRequest is the body for the server-side chat passthrough.
type chatRequest struct {
	Messages    []ports.ChatMessage `json:"messages"`
	Provider    string              `json:"provider,omitempty"`
	Model       string              `json:"model,omitempty"`
	Temperature float64             `json:"temperature,omitempty"`
}

// chatResponse mirrors the server's chat envelope; the reply text arrives in
// the message field.
type chatResponse struct {
	Message  string          `json:"message"`
	Provider string          `json:"provider"`
	Model    string          `json:"model"`
	Usage    ports.ChatUsage `json:"usage"`
}

// Chat sends a refinement conversation turn through the server's AI proxy.
func (c *Client) Chat(ctx context.Context, messages []ports.ChatMessage, opts ports.ChatOptions) (*ports.ChatResult, error) {
	req := chatRequest{
		Messages:    messages,
		Provider:    opts.Provider,
		Model:       opts.Model,
		Temperature: opts.Temperature,
	}
	var resp chatResponse
	if err := c.do(ctx, http.MethodPost, "/ai/chat", req, &resp); err != nil {
		return nil, err
	}
	return &ports.ChatResult{
		Content:  resp.Message,
		Provider: resp.Provider,
		Model:    resp.Model,
		Usage:    resp.Usage,
	}, nil
}
