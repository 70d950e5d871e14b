package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattdef/miniclaw-sub000/internal/models"
)

func completionBody(content string) map[string]any {
	return map[string]any{
		"id":     "chatcmpl-test",
		"object": "chat.completion",
		"model":  "gpt-4o",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
		"usage": map[string]any{"prompt_tokens": 9, "completion_tokens": 3, "total_tokens": 12},
	}
}

func TestOpenAIProviderChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Contains(t, r.Header.Get("Authorization"), "sk-test")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completionBody("Hi!"))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("sk-test", srv.URL, "gpt-4o")
	resp, err := p.Chat(context.Background(), []models.Message{{Role: models.RoleUser, Content: "Hello"}}, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "Hi!", resp.Content)
	assert.Equal(t, 9, resp.PromptTokens)
	assert.Equal(t, 3, resp.CompletionTokens)
}

func TestOpenAIProviderRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "rate limited", "type": "rate_limit_error"}})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completionBody("after retry"))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("sk-test", srv.URL, "gpt-4o")
	resp, err := p.Chat(context.Background(), []models.Message{{Role: models.RoleUser, Content: "Hello"}}, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "after retry", resp.Content)
	assert.Equal(t, int32(2), calls.Load())
}

func TestOpenAIProviderAuthErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "bad key", "type": "invalid_request_error"}})
	}))
	defer srv.Close()

	p := NewOpenAIProvider("sk-bad", srv.URL, "gpt-4o")
	_, err := p.Chat(context.Background(), []models.Message{{Role: models.RoleUser, Content: "Hello"}}, nil, "")
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrAuth, pe.Kind)
	assert.Equal(t, int32(1), calls.Load())
}

func TestToOpenAIMessagesRoles(t *testing.T) {
	msgs := toOpenAIMessages([]models.Message{
		{Role: models.RoleSystem, Content: "instructions"},
		{Role: models.RoleUser, Content: "q"},
		{Role: models.RoleAssistant, Content: "", ToolCalls: []models.ToolCall{{ID: "c1", Name: "web", Arguments: "{}"}}},
		{Role: models.RoleToolResult, Content: "result", ToolCallID: "c1"},
	})
	require.Len(t, msgs, 4)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, "user", msgs[1].Role)
	assert.Equal(t, "assistant", msgs[2].Role)
	require.Len(t, msgs[2].ToolCalls, 1)
	assert.Equal(t, "tool", msgs[3].Role)
	assert.Equal(t, "c1", msgs[3].ToolCallID)
}
