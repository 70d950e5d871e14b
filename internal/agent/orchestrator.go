// Package agent implements the bounded LLM-tool loop at the heart of the
// daemon: a per-message entry point, retrying provider calls, parallel
// tool fan-out, and session updates.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mattdef/miniclaw-sub000/internal/llm"
	"github.com/mattdef/miniclaw-sub000/internal/models"
	"github.com/mattdef/miniclaw-sub000/internal/outbound"
	"github.com/mattdef/miniclaw-sub000/internal/promptctx"
	"github.com/mattdef/miniclaw-sub000/internal/sessions"
	"github.com/mattdef/miniclaw-sub000/internal/tools"
)

// MaxIterations hard-caps the LLM<->tool loop for a single turn.
const MaxIterations = 200

// llmRetryBackoff is the 1s/2s/4s delay schedule between provider retries.
var llmRetryBackoff = []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}

// p95WarnThreshold is the latency above which a turn logs a warning.
const p95WarnThreshold = 2000 * time.Millisecond

// ErrMaxIterations is returned when a turn exhausts MaxIterations without
// the model replying without tool calls.
var ErrMaxIterations = errors.New("max iterations reached")

// genericErrorReply is what the user sees when the provider fails after
// every retry; the turn ends without an assistant message persisted.
const genericErrorReply = "Sorry, I ran into a problem talking to the language model. Please try again."

// Orchestrator drives process_message turns against a session store, a
// context assembler, a tool registry, and an LLM provider.
type Orchestrator struct {
	sessions  *sessions.Manager
	assembler *promptctx.Assembler
	registry  *tools.Registry
	provider  llm.Provider
	model     string
	outbound  *outbound.Queue
	logger    *slog.Logger
	latency   *latencySketch
	observer  Observer
}

// New wires an Orchestrator. model may be "" to use the provider's default.
func New(sessMgr *sessions.Manager, assembler *promptctx.Assembler, registry *tools.Registry, provider llm.Provider, model string, out *outbound.Queue, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if model == "" {
		model = provider.DefaultModel()
	}
	return &Orchestrator{
		sessions:  sessMgr,
		assembler: assembler,
		registry:  registry,
		provider:  provider,
		model:     model,
		outbound:  out,
		logger:    logger.With("component", "agent"),
		latency:   newLatencySketch(),
	}
}

// ProcessMessage is the per-message entry point: get-or-create the
// session, append the inbound message, run the bounded LLM<->tool loop,
// and return the final assistant text.
func (o *Orchestrator) ProcessMessage(ctx context.Context, in models.InboundMessage) (string, error) {
	start := time.Now()
	sessionID := models.SessionKey(in.Channel, in.ChatID)

	if _, err := o.sessions.GetOrCreate(ctx, in.Channel, in.ChatID); err != nil {
		return "", err
	}
	userMsg := models.Message{Role: models.RoleUser, Content: in.Content, Timestamp: time.Now()}
	o.sessions.AddMessage(sessionID, userMsg)

	text, err := o.loop(ctx, sessionID, in.Content)
	o.recordLatency(start)
	if o.observer != nil {
		o.observer.TurnCompleted(in.Channel, time.Since(start), err)
	}
	return text, err
}

func (o *Orchestrator) recordLatency(start time.Time) {
	elapsed := time.Since(start)
	o.latency.Observe(elapsed)
	if p95 := o.latency.P95(); p95 > p95WarnThreshold {
		o.logger.Warn("turn latency p95 exceeds threshold", "p95_ms", p95.Milliseconds(), "threshold_ms", p95WarnThreshold.Milliseconds())
	}
}

// loop is the bounded LLM<->tool cycle: build context,
// call the provider, either return on a tool-call-free reply or execute
// the requested tools and append their results, repeating up to
// MaxIterations.
func (o *Orchestrator) loop(ctx context.Context, sessionID, currentMessage string) (string, error) {
	for iteration := 1; iteration <= MaxIterations; iteration++ {
		sess, ok := o.sessions.Get(sessionID)
		if !ok {
			return "", fmt.Errorf("session %s vanished mid-turn", sessionID)
		}

		layers, err := o.assembler.Build(ctx, sess, currentMessage)
		if err != nil {
			return "", err
		}
		messages := layersToMessages(layers)
		toolDefs := o.registry.GetDefinitions()

		resp, err := o.callLLMWithRetry(ctx, messages, toolDefs)
		if err != nil {
			o.logger.Error("llm call failed after retries", "session_id", sessionID, "error", err)
			return genericErrorReply, nil
		}

		if len(resp.ToolCalls) == 0 {
			assistantMsg := models.Message{Role: models.RoleAssistant, Content: resp.Content, Timestamp: time.Now()}
			o.sessions.AddMessage(sessionID, assistantMsg)
			o.persistBestEffort(ctx, sessionID)
			return resp.Content, nil
		}

		assistantMsg := models.Message{
			Role: models.RoleAssistant, Content: resp.Content,
			ToolCalls: resp.ToolCalls, Timestamp: time.Now(),
		}
		o.sessions.AddMessage(sessionID, assistantMsg)

		results := o.executeToolsParallel(ctx, resp.ToolCalls)
		for _, r := range results {
			toolMsg := models.Message{
				Role: models.RoleToolResult, Content: r.text,
				ToolCallID: r.id, Timestamp: time.Now(),
			}
			o.sessions.AddMessage(sessionID, toolMsg)
		}
	}
	return "", ErrMaxIterations
}

// callLLMWithRetry retries a retryable provider error (or an error that is
// not a ProviderError at all) up to 3 times with 1s/2s/4s delays; a
// non-retryable ProviderError (auth, invalid request, serialization) is
// returned after the first attempt. The 30s per-attempt timeout is applied
// by the provider contract itself.
func (o *Orchestrator) callLLMWithRetry(ctx context.Context, messages []models.Message, toolDefs []map[string]any) (*llm.Response, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		callStart := time.Now()
		resp, err := o.provider.Chat(ctx, messages, toolDefs, o.model)
		if o.observer != nil {
			var prompt, completion int
			if resp != nil {
				prompt, completion = resp.PromptTokens, resp.CompletionTokens
			}
			o.observer.LLMCallCompleted(o.provider.ProviderName(), o.model, time.Since(callStart), prompt, completion, err)
		}
		if err == nil {
			return resp, nil
		}
		lastErr = err

		var pe *llm.ProviderError
		retryable := errors.As(err, &pe) && pe.Retryable()
		if !retryable && !errors.As(err, &pe) {
			// Unknown error shape: treat as retryable network-class failure.
			retryable = true
		}
		if !retryable || attempt >= len(llmRetryBackoff) {
			return nil, fmt.Errorf("llm call failed: %w", lastErr)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(llmRetryBackoff[attempt]):
		}
	}
}

type toolResult struct {
	id   string
	text string
}

// executeToolsParallel launches every call concurrently; a tool failure
// contributes an error-string result instead of aborting the batch. Order
// of completion is unspecified, but every input call gets exactly one
// output pair.
func (o *Orchestrator) executeToolsParallel(ctx context.Context, calls []models.ToolCall) []toolResult {
	results := make([]toolResult, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		i, call := i, call
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = toolResult{id: call.ID, text: o.runOneTool(ctx, call)}
		}()
	}
	wg.Wait()
	return results
}

func (o *Orchestrator) runOneTool(ctx context.Context, call models.ToolCall) string {
	text, err := o.runOneToolErr(ctx, call)
	if o.observer != nil {
		o.observer.ToolExecuted(call.Name, err)
	}
	if err != nil {
		return fmt.Sprintf("Error executing tool '%s': %v", call.Name, err)
	}
	return text
}

func (o *Orchestrator) runOneToolErr(ctx context.Context, call models.ToolCall) (string, error) {
	args, err := tools.ParseArguments(call.Arguments)
	if err != nil {
		return "", err
	}
	return o.registry.ExecuteTool(ctx, call.Name, args)
}

// persistBestEffort flushes the session at the end of a successful turn.
// A failure is logged, never fails the turn: the session stays dirty and
// the auto-persistence cycle retries it.
func (o *Orchestrator) persistBestEffort(ctx context.Context, sessionID string) {
	if err := o.sessions.Persist(ctx, sessionID); err != nil {
		o.logger.Warn("end-of-turn session persist failed", "session_id", sessionID, "error", err)
	}
}

// layersToMessages renders the assembled prompt layers into the neutral
// Message shape the provider port accepts.
func layersToMessages(layers []promptctx.Layer) []models.Message {
	out := make([]models.Message, 0, len(layers))
	for _, l := range layers {
		role := l.Role
		content := l.Content
		if l.Kind == promptctx.LayerHistory && role == "tool" {
			content = fmt.Sprintf("Tool %s result: %s", l.ToolCallID, l.Content)
			role = models.RoleToolResult
		}
		out = append(out, models.Message{
			Role: role, Content: content,
			ToolCalls: l.ToolCalls, ToolCallID: l.ToolCallID,
			Timestamp: time.Now(),
		})
	}
	return out
}

// RunOptions configures the background run-loop.
type RunOptions struct {
	Inbound <-chan models.InboundMessage
}

// Run drives the background run-loop: select between a
// shutdown signal and the next inbound message, enqueueing replies and
// logging-and-continuing on a bad turn rather than dying. Inbound-channel
// closure is a normal termination.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) {
	for {
		select {
		case <-ctx.Done():
			return
		case in, ok := <-opts.Inbound:
			if !ok {
				return
			}
			reply, err := o.ProcessMessage(ctx, in)
			if err != nil {
				o.logger.Error("turn failed", "channel", in.Channel, "chat_id", in.ChatID, "error", err)
				continue
			}
			if o.outbound == nil {
				continue
			}
			out := models.OutboundMessage{Channel: in.Channel, ChatID: in.ChatID, Content: reply}
			if err := o.outbound.TrySend(out); err != nil {
				o.logger.Warn("failed to enqueue outbound reply", "channel", in.Channel, "error", err)
			}
		}
	}
}
