// Package entity defines the domain records managed by the offline-first
// data layer: ideas, projects, and tasks.
package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Resource identifies one of the three entity collections.
type Resource string

const (
	ResourceIdea    Resource = "idea"
	ResourceProject Resource = "project"
	ResourceTask    Resource = "task"
)

// Valid reports whether r names a known collection.
func (r Resource) Valid() bool {
	switch r {
	case ResourceIdea, ResourceProject, ResourceTask:
		return true
	}
	return false
}

// ProvisionalPrefix marks locally generated ids assigned to entities created
// while offline. A provisional id is superseded by a server-issued id when
// the queued create is replayed.
const ProvisionalPrefix = "temp-"

// NewProvisionalID generates a provisional id for an entity created offline.
// The timestamp keeps ids roughly ordered; the uuid fragment makes collisions
// implausible even within the same millisecond.
func NewProvisionalID() string {
	return fmt.Sprintf("%s%d-%s", ProvisionalPrefix, time.Now().UnixMilli(), uuid.NewString()[:8])
}

// IsProvisional reports whether id was generated locally and has not yet been
// reconciled against the server.
func IsProvisional(id string) bool {
	return strings.HasPrefix(id, ProvisionalPrefix)
}

// IdeaStatus values mirror the server's idea lifecycle.
const (
	IdeaStatusActive   = "idea"
	IdeaStatusPromoted = "promoted-to-project"
)

// Idea is a free-form captured idea, optionally refined through the chat flow
// and promotable into a project.
type Idea struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Summary     string     `json:"summary,omitempty"`
	Status      string     `json:"status,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Archived    bool       `json:"archived,omitempty"`
	ProjectID   string     `json:"project_id,omitempty"`
	Refinement  string     `json:"refinement,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	PromotedAt  *time.Time `json:"promoted_at,omitempty"`
	ArchivedAt  *time.Time `json:"archived_at,omitempty"`
	Description string     `json:"description,omitempty"`
}

// TaskStatus values mirror the server's task lifecycle.
const (
	TaskStatusPending   = "pending"
	TaskStatusActive    = "in-progress"
	TaskStatusCompleted = "completed"
)

// Project is a promoted idea with phases and tasks.
type Project struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Description  string     `json:"description,omitempty"`
	Status       string     `json:"status,omitempty"`
	OriginIdeaID string     `json:"origin_idea_id,omitempty"`
	Phases       []Phase    `json:"phases,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// Phase groups a project's tasks into an ordered stage of the plan.
type Phase struct {
	Name  string `json:"name"`
	Order int    `json:"order"`
}

// Task is a unit of work belonging to a project.
type Task struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Phase       string     `json:"phase,omitempty"`
	Status      string     `json:"status,omitempty"`
	Order       int        `json:"order,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
