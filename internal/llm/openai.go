package llm

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mattdef/miniclaw-sub000/internal/models"
)

// openAIBackoff is the non-streaming adapter's retry schedule for
// retryable conditions such as rate limits and 5xx: 1s, 2s, 4s, so at most
// 3 retries after the first attempt.
var openAIBackoff = []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}

// OpenAIProvider is the non-streaming, OpenAI-shaped adapter: one request,
// one response, retried internally on rate-limit and 5xx.
type OpenAIProvider struct {
	client       *openai.Client
	defaultModel string
}

// NewOpenAIProvider creates an adapter against api.openai.com (or a
// compatible endpoint if baseURL is set) using apiKey.
func NewOpenAIProvider(apiKey, baseURL, defaultModel string) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if defaultModel == "" {
		defaultModel = openai.GPT4o
	}
	return &OpenAIProvider{
		client:       openai.NewClientWithConfig(cfg),
		defaultModel: defaultModel,
	}
}

func (p *OpenAIProvider) ProviderName() string { return "openai" }
func (p *OpenAIProvider) DefaultModel() string  { return p.defaultModel }

func (p *OpenAIProvider) ListModels() []string {
	return []string{openai.GPT4o, openai.GPT4oMini, openai.GPT4Turbo, openai.GPT3Dot5Turbo}
}

// Chat sends a single non-streaming chat-completion request, retrying
// rate-limit and 5xx responses up to 3 times with 1s/2s/4s backoff.
func (p *OpenAIProvider) Chat(ctx context.Context, messages []models.Message, tools []map[string]any, model string) (*Response, error) {
	if model == "" {
		model = p.defaultModel
	}
	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: toOpenAIMessages(messages),
		Tools:    toOpenAITools(tools),
	}

	for attempt := 0; ; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, DefaultTimeout)
		resp, err := p.client.CreateChatCompletion(callCtx, req)
		cancel()
		if err == nil {
			return toResponse(resp), nil
		}

		pe := classifyOpenAIError(err)
		if !pe.Retryable() || attempt >= len(openAIBackoff) {
			return nil, pe
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(openAIBackoff[attempt]):
		}
	}
}

func classifyOpenAIError(err error) *ProviderError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code, _ := apiErr.Code.(string)
		return classifyProviderError("openai", apiErr.HTTPStatusCode, code, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyProviderError("openai", reqErr.HTTPStatusCode, "", err)
	}
	return classifyProviderError("openai", 0, "", err)
}

func toOpenAIMessages(messages []models.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msg := openai.ChatCompletionMessage{Content: m.Content}
		switch m.Role {
		case models.RoleSystem:
			msg.Role = openai.ChatMessageRoleSystem
		case models.RoleUser:
			msg.Role = openai.ChatMessageRoleUser
		case models.RoleAssistant:
			msg.Role = openai.ChatMessageRoleAssistant
			for _, tc := range m.ToolCalls {
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}
		case models.RoleToolResult:
			msg.Role = openai.ChatMessageRoleTool
			msg.ToolCallID = m.ToolCallID
		default:
			msg.Role = openai.ChatMessageRoleUser
		}
		out = append(out, msg)
	}
	return out
}

func toOpenAITools(tools []map[string]any) []openai.Tool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		fn, _ := t["function"].(map[string]any)
		raw, _ := json.Marshal(fn["parameters"])
		var params any
		_ = json.Unmarshal(raw, &params)
		name, _ := fn["name"].(string)
		desc, _ := fn["description"].(string)
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        name,
				Description: desc,
				Parameters:  params,
			},
		})
	}
	return out
}

func toResponse(resp openai.ChatCompletionResponse) *Response {
	r := &Response{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}
	if len(resp.Choices) == 0 {
		return r
	}
	choice := resp.Choices[0]
	r.Content = choice.Message.Content
	for _, tc := range choice.Message.ToolCalls {
		r.ToolCalls = append(r.ToolCalls, models.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return r
}
