package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/viberater/viberater/internal/application/ports"
	"github.com/viberater/viberater/internal/domain/errors"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewClient(Config{
		BaseURL:      srv.URL,
		AccessToken:  "token-1",
		RefreshToken: "refresh-1",
	}, nil, nil)
	return client, srv
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func TestClient_ListIdeas(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ideas" || r.Method != http.MethodGet {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token-1" {
			t.Errorf("Authorization = %q, want bearer token", got)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ideas": []map[string]any{{"id": "i-1", "title": "solar tracker"}},
		})
	}))

	ideas, err := client.ListIdeas(context.Background())
	if err != nil {
		t.Fatalf("ListIdeas() error = %v", err)
	}
	if len(ideas) != 1 || ideas[0].ID != "i-1" || ideas[0].Title != "solar tracker" {
		t.Errorf("ListIdeas() = %+v", ideas)
	}
}

func TestClient_CreateIdea(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body["title"] != "a" {
			t.Errorf("request body = %v", body)
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"idea": map[string]any{"id": "srv-1", "title": "a"},
		})
	}))

	result, err := client.CreateIdea(context.Background(), json.RawMessage(`{"title":"a"}`))
	if err != nil {
		t.Fatalf("CreateIdea() error = %v", err)
	}
	if result.Idea.ID != "srv-1" {
		t.Errorf("CreateIdea() id = %q, want srv-1", result.Idea.ID)
	}
}

func TestClient_PromoteIdea(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ideas/i-1/promote" {
			t.Errorf("path = %s", r.URL.Path)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"project": map[string]any{"id": "p-1", "name": "Tracker", "origin_idea_id": "i-1"},
			"tasks": []map[string]any{
				{"id": "t-1", "project_id": "p-1", "title": "design"},
				{"id": "t-2", "project_id": "p-1", "title": "build"},
			},
		})
	}))

	result, err := client.PromoteIdea(context.Background(), "i-1", ports.ProjectPlan{Name: "Tracker"})
	if err != nil {
		t.Fatalf("PromoteIdea() error = %v", err)
	}
	if result.Project.ID != "p-1" || len(result.Tasks) != 2 {
		t.Errorf("PromoteIdea() = %+v", result)
	}
}

func TestClient_RefreshOn401(t *testing.T) {
	var calls []string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		switch r.URL.Path {
		case "/auth/refresh":
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			if body["refreshToken"] != "refresh-1" {
				t.Errorf("refresh body = %v", body)
			}
			writeJSON(w, http.StatusOK, map[string]string{"accessToken": "token-2"})
		case "/ideas":
			if r.Header.Get("Authorization") == "Bearer token-2" {
				writeJSON(w, http.StatusOK, map[string]any{"ideas": []any{}})
				return
			}
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "expired"})
		}
	}))

	if _, err := client.ListIdeas(context.Background()); err != nil {
		t.Fatalf("ListIdeas() error = %v", err)
	}
	want := []string{"GET /ideas", "POST /auth/refresh", "GET /ideas"}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, calls[i], want[i])
		}
	}
	if client.AccessToken() != "token-2" {
		t.Errorf("AccessToken() = %q, want token-2", client.AccessToken())
	}
}

func TestClient_RefreshFailureSurfacesOriginalError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "expired"})
	}))

	_, err := client.ListIdeas(context.Background())
	if err == nil {
		t.Fatal("ListIdeas() error = nil, want 401 failure")
	}
	if errors.CodeOf(err) != errors.CodeValidation {
		t.Errorf("CodeOf() = %s, want validation", errors.CodeOf(err))
	}
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantCode  errors.ErrorCode
		retryable bool
	}{
		{"bad request", http.StatusBadRequest, `{"error":"title is required"}`, errors.CodeValidation, false},
		{"unprocessable", http.StatusUnprocessableEntity, `{"message":"bad phase"}`, errors.CodeValidation, false},
		{"not found", http.StatusNotFound, `{"error":"idea not found"}`, errors.CodeNotFound, false},
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`, errors.CodeConnectivity, true},
		{"bad gateway", http.StatusBadGateway, `{"error":"upstream"}`, errors.CodeConnectivity, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))

			err := client.DeleteIdea(context.Background(), "i-1")
			if err == nil {
				t.Fatal("DeleteIdea() error = nil")
			}
			if got := errors.CodeOf(err); got != tt.wantCode {
				t.Errorf("CodeOf() = %s, want %s", got, tt.wantCode)
			}
			if got := errors.IsRetryable(err); got != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.retryable)
			}
		})
	}
}

func TestClient_NonJSONResponseIsMalformed(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("<html>proxy error</html>"))
	}))

	_, err := client.ListIdeas(context.Background())
	if errors.CodeOf(err) != errors.CodeMalformed {
		t.Errorf("CodeOf() = %s, want malformed", errors.CodeOf(err))
	}
	if errors.IsRetryable(err) {
		t.Error("IsRetryable() = true for malformed response, want false")
	}
}

func TestClient_TransportErrorIsConnectivity(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClient(Config{BaseURL: url}, nil, nil)
	_, err := client.ListIdeas(context.Background())
	if errors.CodeOf(err) != errors.CodeConnectivity {
		t.Errorf("CodeOf() = %s, want connectivity", errors.CodeOf(err))
	}
	if !errors.IsRetryable(err) {
		t.Error("IsRetryable() = false for transport error, want true")
	}
}

func TestClient_CompleteTask(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tasks/t-1/complete" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"task": map[string]any{"id": "t-1", "project_id": "p-1", "status": "completed"},
		})
	}))

	result, err := client.CompleteTask(context.Background(), "t-1")
	if err != nil {
		t.Fatalf("CompleteTask() error = %v", err)
	}
	if result.Task.Status != "completed" {
		t.Errorf("CompleteTask() status = %q", result.Task.Status)
	}
}

func TestClient_SaveRefinement(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ideas/i-1/refine" || r.Method != http.MethodPatch {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body struct {
			Conversation []ports.ChatMessage `json:"conversation"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(body.Conversation) != 2 {
			t.Errorf("conversation = %+v", body.Conversation)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"idea": map[string]any{"id": "i-1", "refinement": "notes"},
		})
	}))

	conversation := []ports.ChatMessage{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
	}
	result, err := client.SaveRefinement(context.Background(), "i-1", conversation, nil)
	if err != nil {
		t.Fatalf("SaveRefinement() error = %v", err)
	}
	if result.Idea.Refinement != "notes" {
		t.Errorf("SaveRefinement() = %+v", result.Idea)
	}
}

func TestClient_Chat(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ai/chat" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var body chatRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(body.Messages) != 1 || body.Provider != "anthropic" {
			t.Errorf("request = %+v", body)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message":  "What problem does this solve?",
			"provider": "anthropic",
			"model":    "claude-3",
			"usage":    map[string]int{"prompt_tokens": 10, "completion_tokens": 8, "total_tokens": 18},
		})
	}))

	result, err := client.Chat(context.Background(),
		[]ports.ChatMessage{{Role: "user", Content: "refine my idea"}},
		ports.ChatOptions{Provider: "anthropic"},
	)
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if result.Content != "What problem does this solve?" {
		t.Errorf("Chat() content = %q", result.Content)
	}
	if result.Usage.TotalTokens != 18 {
		t.Errorf("Chat() usage = %+v", result.Usage)
	}
}

func TestClient_Health(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("path = %s", r.URL.Path)
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}))

	if err := client.Health(context.Background()); err != nil {
		t.Errorf("Health() error = %v", err)
	}
}
