package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattdef/miniclaw-sub000/internal/models"
)

func TestLocalProviderAccumulatesChunks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		var req localChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Write([]byte(`{"message":{"content":"Hel"},"done":false}` + "\n"))
		w.Write([]byte(`{"message":{"content":"lo!"},"done":false}` + "\n"))
		w.Write([]byte(`{"message":{"content":""},"done":true,"prompt_eval_count":12,"eval_count":7}` + "\n"))
	}))
	defer srv.Close()

	p := NewLocalProvider(srv.URL, "testmodel")
	resp, err := p.Chat(context.Background(), []models.Message{{Role: models.RoleUser, Content: "hi"}}, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "Hello!", resp.Content)
	assert.Equal(t, 12, resp.PromptTokens)
	assert.Equal(t, 7, resp.CompletionTokens)
}

func TestLocalProviderEstimatesTokensWhenOmitted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":{"content":"12345678"},"done":true}` + "\n"))
	}))
	defer srv.Close()

	p := NewLocalProvider(srv.URL, "testmodel")
	resp, err := p.Chat(context.Background(), []models.Message{{Role: models.RoleUser, Content: "abcd"}}, nil, "")
	require.NoError(t, err)
	assert.Equal(t, 2, resp.CompletionTokens, "ceil(8/4)")
	assert.Equal(t, 1, resp.PromptTokens, "ceil(4/4)")
}

func TestLocalProviderToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":{"content":"","tool_calls":[{"function":{"name":"web","arguments":{"url":"https://example.com"}}}]},"done":true}` + "\n"))
	}))
	defer srv.Close()

	p := NewLocalProvider(srv.URL, "testmodel")
	resp, err := p.Chat(context.Background(), []models.Message{{Role: models.RoleUser, Content: "fetch"}}, nil, "")
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "web", resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"url":"https://example.com"}`, resp.ToolCalls[0].Arguments)
	assert.NotEmpty(t, resp.ToolCalls[0].ID)
}

func TestLocalProviderErrorStatusClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := NewLocalProvider(srv.URL, "testmodel")
	_, err := p.Chat(context.Background(), nil, nil, "")
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrAuth, pe.Kind)
	assert.False(t, pe.Retryable())
}

func TestToLocalMessagesRoles(t *testing.T) {
	msgs := toLocalMessages([]models.Message{
		{Role: models.RoleSystem, Content: "instructions"},
		{Role: models.RoleUser, Content: "q"},
		{Role: models.RoleAssistant, Content: "a"},
		{Role: models.RoleToolResult, Content: "r", ToolCallID: "c1"},
	})
	require.Len(t, msgs, 4)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, "user", msgs[1].Role)
	assert.Equal(t, "assistant", msgs[2].Role)
	assert.Equal(t, "tool", msgs[3].Role)
	assert.Equal(t, "c1", msgs[3].ToolName)
}

func TestEstimateTokensCeil(t *testing.T) {
	assert.Equal(t, 0, estimateTokens(0))
	assert.Equal(t, 1, estimateTokens(1))
	assert.Equal(t, 1, estimateTokens(4))
	assert.Equal(t, 2, estimateTokens(5))
}
