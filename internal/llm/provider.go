// Package llm is the chat-completion port every orchestrator turn calls
// through: a neutral message/tool-call shape in, text-and/or-tool-calls out,
// with a retryable-failure classification so the caller can decide whether
// to back off or give up. Concrete adapters live alongside this file
// (openai.go, local.go).
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/mattdef/miniclaw-sub000/internal/models"
)

// DefaultTimeout is the per-call timeout every Provider implementation
// applies unless the caller's context already carries a tighter deadline.
const DefaultTimeout = 30 * time.Second

// Response is what a chat-completion call returns: assistant text and/or a
// list of requested tool calls, plus whatever token accounting the backend
// reports.
type Response struct {
	Content          string
	ToolCalls        []models.ToolCall
	PromptTokens     int
	CompletionTokens int
}

// Provider is the abstract LLM backend contract. Implementations translate
// the neutral message/tool-call shape to and from their vendor's wire
// format and apply DefaultTimeout per call.
type Provider interface {
	Chat(ctx context.Context, messages []models.Message, tools []map[string]any, model string) (*Response, error)
	DefaultModel() string
	ProviderName() string
	ListModels() []string
}

// ErrorKind classifies a provider failure for retry purposes.
type ErrorKind string

const (
	ErrAuth           ErrorKind = "auth"
	ErrRateLimit      ErrorKind = "rate_limit"
	ErrNetwork        ErrorKind = "network"
	ErrTimeout        ErrorKind = "timeout"
	ErrInvalidRequest ErrorKind = "invalid_request"
	ErrSerialization  ErrorKind = "serialization"
	ErrProvider       ErrorKind = "provider"
)

// Retryable reports whether a failure of this kind is worth retrying.
// Auth, InvalidRequest and Serialization are never retried; everything
// else (transient network/rate-limit/timeout/upstream conditions) is.
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrAuth, ErrInvalidRequest, ErrSerialization:
		return false
	default:
		return true
	}
}

// ProviderError is the structured error every adapter returns, so the
// orchestrator's retry loop can inspect Kind without parsing vendor text.
type ProviderError struct {
	Kind       ErrorKind
	Provider   string
	Code       string
	RetryAfter time.Duration
	Cause      error
}

func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s provider error (%s): %v", e.Provider, e.Kind, e.Cause)
	}
	return fmt.Sprintf("%s provider error (%s)", e.Provider, e.Kind)
}

func (e *ProviderError) Unwrap() error { return e.Cause }

// Retryable reports whether e's Kind is worth retrying.
func (e *ProviderError) Retryable() bool { return e.Kind.Retryable() }

// classifyProviderError centralizes the heuristic classification shared
// by both adapters. A robust implementation would use typed underlying
// error categories, but the vendor SDKs this repo depends on don't
// uniformly expose one.
func classifyProviderError(provider string, statusCode int, code string, err error) *ProviderError {
	pe := &ProviderError{Provider: provider, Code: code, Cause: err}
	switch {
	case statusCode == 401 || statusCode == 403:
		pe.Kind = ErrAuth
	case statusCode == 429:
		pe.Kind = ErrRateLimit
	case statusCode == 400 || statusCode == 422:
		pe.Kind = ErrInvalidRequest
	case statusCode >= 500:
		pe.Kind = ErrProvider
	case isTimeoutErr(err):
		pe.Kind = ErrTimeout
	case err != nil:
		pe.Kind = ErrNetwork
	default:
		pe.Kind = ErrProvider
	}
	return pe
}

func isTimeoutErr(err error) bool {
	type timeouter interface{ Timeout() bool }
	if t, ok := err.(timeouter); ok {
		return t.Timeout()
	}
	return false
}
