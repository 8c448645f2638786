package ports

import "context"

// ChatMessage is one turn in a refinement conversation.
type ChatMessage struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// ChatOptions selects the provider and model for a chat turn. Zero values
// let the server pick its defaults.
type ChatOptions struct {
	Provider    string  `json:"provider,omitempty"`
	Model       string  `json:"model,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// ChatUsage reports token consumption for a chat turn.
type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResult is the provider's reply to a chat turn.
type ChatResult struct {
	Content  string    `json:"content"`
	Provider string    `json:"provider"`
	Model    string    `json:"model"`
	Usage    ChatUsage `json:"usage"`
}

// ChatProviderPort is the contract to the LLM chat integration. Prompt
// templates, provider selection, and JSON-extraction heuristics all live
// behind this interface on the server.
type ChatProviderPort interface {
	Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (*ChatResult, error)
}
