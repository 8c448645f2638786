// Package refine implements the idea refinement conversation: a freeform
// brainstorm over the server's AI proxy that can be collapsed into a
// structured project plan ready for promotion.
package refine

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/viberater/viberater/internal/application/ports"
	"github.com/viberater/viberater/internal/domain/entity"
	"github.com/viberater/viberater/internal/domain/errors"
	"github.com/viberater/viberater/internal/infrastructure/logging"
)

const brainstormPrompt = `You are a creative brainstorming partner - a sounding board for ideas. Have natural, freeform conversations.

Your role is to:
- Ask thoughtful questions
- Suggest interesting angles and variations
- Make unexpected connections
- Help flesh out vague concepts
- Explore "what if" scenarios
- Challenge assumptions gently
- Be enthusiastic and exploratory

Keep responses conversational (2-4 sentences). Don't solve problems - help them think through ideas.`

const planningPrompt = `You are a project planning assistant. Help the user create an actionable project plan.

Continue the conversation naturally while gathering information about:
- Project goals and success criteria
- Key phases or milestones
- Initial tasks to get started
- Technical decisions
- Realistic timeline estimates

Keep responses concise (2-4 sentences). Be practical and action-oriented.`

const planJSONPrompt = `Based on our conversation, please create a structured project plan in JSON format with:
{
  "title": "project title",
  "description": "2-3 sentence description",
  "phases": [{"name": "Phase name", "description": "what happens"}, ...],
  "initialTasks": [{"title": "task", "description": "details", "phase": "Phase name"}, ...]
}

Only respond with valid JSON, nothing else.`

// Session is one refinement conversation. Not safe for concurrent use; the
// CLI drives it from a single REPL loop.
type Session struct {
	chat     ports.ChatProviderPort
	opts     ports.ChatOptions
	logger   *logging.Logger
	messages []ports.ChatMessage
	planning bool
}

// NewSession starts a refinement session, optionally seeded with an idea.
func NewSession(chat ports.ChatProviderPort, opts ports.ChatOptions, logger *logging.Logger) *Session {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Session{chat: chat, opts: opts, logger: logger}
}

// Start opens the conversation. With a seed idea the opening turn riffs on
// it; without one the assistant is simply invited to brainstorm.
func (s *Session) Start(ctx context.Context, seed *entity.Idea) (string, error) {
	var opening string
	if seed != nil {
		opening = fmt.Sprintf("I have this idea: %q - %s\n\nLet's riff on this. What comes to mind?",
			seed.Title, seed.Summary)
	} else {
		opening = "Hey! Want to brainstorm some project ideas?"
	}

	s.messages = []ports.ChatMessage{
		{Role: "system", Content: brainstormPrompt},
		{Role: "user", Content: opening},
	}
	return s.send(ctx)
}

// Send delivers one user turn and returns the assistant's reply.
func (s *Session) Send(ctx context.Context, text string) (string, error) {
	if len(s.messages) == 0 {
		if _, err := s.Start(ctx, nil); err != nil {
			return "", err
		}
	}
	s.messages = append(s.messages, ports.ChatMessage{Role: "user", Content: text})
	return s.send(ctx)
}

// EnterPlanning switches the conversation from brainstorming to concrete
// project planning.
func (s *Session) EnterPlanning() {
	if s.planning {
		return
	}
	s.planning = true
	if len(s.messages) > 0 && s.messages[0].Role == "system" {
		s.messages[0].Content = planningPrompt
	} else {
		s.messages = append([]ports.ChatMessage{{Role: "system", Content: planningPrompt}}, s.messages...)
	}
}

// GeneratePlan asks the model to collapse the conversation into a structured
// plan. The reply must be JSON, optionally fenced in a markdown code block.
func (s *Session) GeneratePlan(ctx context.Context) (*ports.ProjectPlan, error) {
	s.EnterPlanning()
	s.messages = append(s.messages, ports.ChatMessage{Role: "user", Content: planJSONPrompt})

	reply, err := s.send(ctx)
	if err != nil {
		return nil, err
	}

	var raw struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Phases      []struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		} `json:"phases"`
		InitialTasks []struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			Phase       string `json:"phase"`
		} `json:"initialTasks"`
	}
	if err := json.Unmarshal([]byte(extractJSON(reply)), &raw); err != nil {
		return nil, errors.NewError(errors.CodeMalformed, "plan reply is not valid JSON", err)
	}
	if raw.Title == "" {
		return nil, errors.NewError(errors.CodeMalformed, "plan reply missing title", nil)
	}

	plan := &ports.ProjectPlan{
		Name:        raw.Title,
		Description: raw.Description,
	}
	for i, p := range raw.Phases {
		plan.Phases = append(plan.Phases, entity.Phase{Name: p.Name, Order: i + 1})
	}
	for i, t := range raw.InitialTasks {
		plan.Tasks = append(plan.Tasks, entity.Task{
			Title:       t.Title,
			Description: t.Description,
			Phase:       t.Phase,
			Order:       i + 1,
		})
	}
	return plan, nil
}

// Messages returns the conversation so far, excluding the system prompt.
func (s *Session) Messages() []ports.ChatMessage {
	var out []ports.ChatMessage
	for _, m := range s.messages {
		if m.Role == "system" {
			continue
		}
		out = append(out, m)
	}
	return out
}

func (s *Session) send(ctx context.Context) (string, error) {
	result, err := s.chat.Chat(ctx, s.messages, s.opts)
	if err != nil {
		return "", err
	}
	s.messages = append(s.messages, ports.ChatMessage{Role: "assistant", Content: result.Content})
	s.logger.DebugContext(ctx, "chat turn completed",
		"provider", result.Provider, "tokens", result.Usage.TotalTokens)
	return result.Content, nil
}

var fenceRe = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)\\s*```")

// extractJSON pulls the JSON object out of a reply that may wrap it in a
// markdown code fence.
func extractJSON(reply string) string {
	if m := fenceRe.FindStringSubmatch(reply); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(reply)
}
