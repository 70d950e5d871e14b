package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/mattdef/miniclaw-sub000/internal/models"
)

// LocalProvider is the streaming local-model adapter: it POSTs to a
// /api/chat-shaped endpoint (e.g. a locally hosted Ollama), reads chunked
// JSON lines, and accumulates them until a line reports done=true. Token
// counts are estimated as ceil(chars/4) whenever the backend omits usage.
type LocalProvider struct {
	client       *http.Client
	baseURL      string
	defaultModel string
}

// NewLocalProvider creates an adapter against baseURL (default
// http://localhost:11434).
func NewLocalProvider(baseURL, defaultModel string) *LocalProvider {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &LocalProvider{
		client:       &http.Client{Timeout: 2 * time.Minute},
		baseURL:      baseURL,
		defaultModel: defaultModel,
	}
}

func (p *LocalProvider) ProviderName() string { return "local" }
func (p *LocalProvider) DefaultModel() string  { return p.defaultModel }
func (p *LocalProvider) ListModels() []string {
	if p.defaultModel == "" {
		return nil
	}
	return []string{p.defaultModel}
}

type localChatMessage struct {
	Role      string             `json:"role"`
	Content   string             `json:"content"`
	ToolCalls []localToolCall    `json:"tool_calls,omitempty"`
	ToolName  string             `json:"tool_name,omitempty"`
}

type localToolCall struct {
	Function struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"function"`
}

type localChatRequest struct {
	Model    string             `json:"model"`
	Stream   bool               `json:"stream"`
	Messages []localChatMessage `json:"messages"`
	Tools    []map[string]any   `json:"tools,omitempty"`
}

type localChatChunk struct {
	Message struct {
		Content   string          `json:"content"`
		ToolCalls []localToolCall `json:"tool_calls"`
	} `json:"message"`
	Done          bool `json:"done"`
	PromptEvalCnt int  `json:"prompt_eval_count"`
	EvalCount     int  `json:"eval_count"`
}

// Chat streams a chat request and accumulates chunks until done=true.
func (p *LocalProvider) Chat(ctx context.Context, messages []models.Message, tools []map[string]any, model string) (*Response, error) {
	if model == "" {
		model = p.defaultModel
	}
	payload := localChatRequest{
		Model:    model,
		Stream:   true,
		Messages: toLocalMessages(messages),
		Tools:    tools,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &ProviderError{Kind: ErrSerialization, Provider: "local", Cause: err}
	}

	callCtx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, &ProviderError{Kind: ErrNetwork, Provider: "local", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, classifyProviderError("local", 0, "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, classifyProviderError("local", resp.StatusCode, "", fmt.Errorf("local provider status %d", resp.StatusCode))
	}

	var content strings.Builder
	var toolCalls []models.ToolCall
	var promptTokens, completionTokens int

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk localChatChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			continue
		}
		content.WriteString(chunk.Message.Content)
		for i, tc := range chunk.Message.ToolCalls {
			args, _ := json.Marshal(tc.Function.Arguments)
			toolCalls = append(toolCalls, models.ToolCall{
				ID:        fmt.Sprintf("local_%d_%d", len(toolCalls), i),
				Name:      tc.Function.Name,
				Arguments: string(args),
			})
		}
		if chunk.Done {
			promptTokens = chunk.PromptEvalCnt
			completionTokens = chunk.EvalCount
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, classifyProviderError("local", 0, "", err)
	}

	if promptTokens == 0 {
		promptTokens = estimateTokens(messagesChars(messages))
	}
	if completionTokens == 0 {
		completionTokens = estimateTokens(content.Len())
	}

	return &Response{
		Content:          content.String(),
		ToolCalls:        toolCalls,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
	}, nil
}

func toLocalMessages(messages []models.Message) []localChatMessage {
	out := make([]localChatMessage, 0, len(messages))
	for _, m := range messages {
		lm := localChatMessage{Content: m.Content}
		switch m.Role {
		case models.RoleSystem:
			lm.Role = "system"
		case models.RoleUser:
			lm.Role = "user"
		case models.RoleAssistant:
			lm.Role = "assistant"
		case models.RoleToolResult:
			lm.Role = "tool"
			lm.ToolName = m.ToolCallID
		default:
			lm.Role = "user"
		}
		out = append(out, lm)
	}
	return out
}

func messagesChars(messages []models.Message) int {
	n := 0
	for _, m := range messages {
		n += len(m.Content)
	}
	return n
}

// estimateTokens is the ceil(chars/4) heuristic used whenever a backend
// omits usage counts. It is a boundary estimate, never authoritative.
func estimateTokens(chars int) int {
	return int(math.Ceil(float64(chars) / 4))
}
