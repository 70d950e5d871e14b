package agent

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattdef/miniclaw-sub000/internal/llm"
	"github.com/mattdef/miniclaw-sub000/internal/models"
	"github.com/mattdef/miniclaw-sub000/internal/outbound"
	"github.com/mattdef/miniclaw-sub000/internal/promptctx"
	"github.com/mattdef/miniclaw-sub000/internal/sessions"
	"github.com/mattdef/miniclaw-sub000/internal/tools"
	"github.com/mattdef/miniclaw-sub000/internal/workspace"
)

// scriptedProvider replays a fixed sequence of responses.
type scriptedProvider struct {
	mu        sync.Mutex
	responses []*llm.Response
	errs      []error
	calls     int
}

func (p *scriptedProvider) Chat(ctx context.Context, messages []models.Message, toolDefs []map[string]any, model string) (*llm.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.calls
	p.calls++
	if i < len(p.errs) && p.errs[i] != nil {
		return nil, p.errs[i]
	}
	if i >= len(p.responses) {
		return &llm.Response{Content: "out of script"}, nil
	}
	return p.responses[i], nil
}

func (p *scriptedProvider) DefaultModel() string  { return "scripted-1" }
func (p *scriptedProvider) ProviderName() string  { return "scripted" }
func (p *scriptedProvider) ListModels() []string  { return []string{"scripted-1"} }

type echoTool struct{}

func (echoTool) Name() string               { return "echo" }
func (echoTool) Description() string        { return "echoes its input" }
func (echoTool) Parameters() map[string]any { return map[string]any{"type": "object"} }
func (echoTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	return fmt.Sprint(args["text"]), nil
}

type failingTool struct{}

func (failingTool) Name() string               { return "broken" }
func (failingTool) Description() string        { return "always fails" }
func (failingTool) Parameters() map[string]any { return map[string]any{"type": "object"} }
func (failingTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	return "", fmt.Errorf("deliberate failure")
}

func newTestOrchestrator(t *testing.T, provider llm.Provider) (*Orchestrator, *sessions.Manager) {
	t.Helper()
	ws, err := workspace.New(t.TempDir())
	require.NoError(t, err)
	mgr, err := sessions.NewManager(ws.SessionsDir(), nil)
	require.NoError(t, err)

	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(echoTool{}))
	require.NoError(t, registry.Register(failingTool{}))

	assembler := promptctx.New(ws, promptctx.Options{}, nil)
	orch := New(mgr, assembler, registry, provider, "", outbound.NewQueue(8), nil)
	return orch, mgr
}

func TestSingleShotReplyNoTools(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.Response{{Content: "Hi!"}}}
	orch, mgr := newTestOrchestrator(t, provider)

	reply, err := orch.ProcessMessage(context.Background(), models.InboundMessage{Channel: "cli", ChatID: "1", Content: "Hello"})
	require.NoError(t, err)
	assert.Equal(t, "Hi!", reply)

	sess, ok := mgr.Get("cli_1")
	require.True(t, ok)
	require.Len(t, sess.Messages, 2)
	assert.Equal(t, models.RoleUser, sess.Messages[0].Role)
	assert.Equal(t, "Hello", sess.Messages[0].Content)
	assert.Equal(t, models.RoleAssistant, sess.Messages[1].Role)
	assert.Equal(t, "Hi!", sess.Messages[1].Content)
	assert.WithinDuration(t, time.Now(), sess.LastAccessed, time.Second)
}

func TestOneToolRoundTrip(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.Response{
		{ToolCalls: []models.ToolCall{{ID: "c1", Name: "echo", Arguments: `{"text":"found a"}`}}},
		{Content: "Found a"},
	}}
	orch, mgr := newTestOrchestrator(t, provider)

	reply, err := orch.ProcessMessage(context.Background(), models.InboundMessage{Channel: "cli", ChatID: "1", Content: "list files"})
	require.NoError(t, err)
	assert.Equal(t, "Found a", reply)

	sess, ok := mgr.Get("cli_1")
	require.True(t, ok)
	require.Len(t, sess.Messages, 4)
	assert.Equal(t, models.RoleUser, sess.Messages[0].Role)
	assert.Equal(t, models.RoleAssistant, sess.Messages[1].Role)
	require.Len(t, sess.Messages[1].ToolCalls, 1)
	assert.Equal(t, models.RoleToolResult, sess.Messages[2].Role)
	assert.Equal(t, "c1", sess.Messages[2].ToolCallID)
	assert.Equal(t, "found a", sess.Messages[2].Content)
	assert.Equal(t, models.RoleAssistant, sess.Messages[3].Role)
}

func TestToolBatchEveryCallAnswered(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.Response{
		{ToolCalls: []models.ToolCall{
			{ID: "c1", Name: "echo", Arguments: `{"text":"one"}`},
			{ID: "c2", Name: "broken", Arguments: `{}`},
			{ID: "c3", Name: "no_such_tool", Arguments: `{}`},
		}},
		{Content: "done"},
	}}
	orch, mgr := newTestOrchestrator(t, provider)

	_, err := orch.ProcessMessage(context.Background(), models.InboundMessage{Channel: "cli", ChatID: "1", Content: "go"})
	require.NoError(t, err)

	sess, _ := mgr.Get("cli_1")
	results := map[string]string{}
	for _, m := range sess.Messages {
		if m.Role == models.RoleToolResult {
			results[m.ToolCallID] = m.Content
		}
	}
	require.Len(t, results, 3, "every tool call gets exactly one result")
	assert.Equal(t, "one", results["c1"])
	assert.Contains(t, results["c2"], "Error executing tool 'broken'")
	assert.Contains(t, results["c3"], "Error executing tool 'no_such_tool'")
}

func TestNonRetryableProviderFailureYieldsGenericReply(t *testing.T) {
	authErr := &llm.ProviderError{Kind: llm.ErrAuth, Provider: "scripted"}
	provider := &scriptedProvider{errs: []error{authErr}}
	orch, mgr := newTestOrchestrator(t, provider)

	reply, err := orch.ProcessMessage(context.Background(), models.InboundMessage{Channel: "cli", ChatID: "1", Content: "Hello"})
	require.NoError(t, err)
	assert.Equal(t, genericErrorReply, reply)
	assert.Equal(t, 1, provider.calls, "auth errors are not retried")

	sess, _ := mgr.Get("cli_1")
	require.Len(t, sess.Messages, 1, "session holds the user message but no assistant reply")
	assert.Equal(t, models.RoleUser, sess.Messages[0].Role)
}

func TestRetryableProviderErrorIsRetried(t *testing.T) {
	rateErr := &llm.ProviderError{Kind: llm.ErrRateLimit, Provider: "scripted"}
	provider := &scriptedProvider{
		errs:      []error{rateErr, nil},
		responses: []*llm.Response{nil, {Content: "after retry"}},
	}
	orch, _ := newTestOrchestrator(t, provider)

	reply, err := orch.ProcessMessage(context.Background(), models.InboundMessage{Channel: "cli", ChatID: "1", Content: "Hello"})
	require.NoError(t, err)
	assert.Equal(t, "after retry", reply)
	assert.Equal(t, 2, provider.calls)
}

func TestRunEmitsOutboundReply(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.Response{{Content: "Hi!"}}}
	orch, _ := newTestOrchestrator(t, provider)

	inbound := make(chan models.InboundMessage, 1)
	inbound <- models.InboundMessage{Channel: "cli", ChatID: "1", Content: "Hello"}
	close(inbound)

	done := make(chan struct{})
	go func() {
		defer close(done)
		orch.Run(context.Background(), RunOptions{Inbound: inbound})
	}()

	select {
	case out := <-orch.outbound.Recv():
		assert.Equal(t, models.OutboundMessage{Channel: "cli", ChatID: "1", Content: "Hi!"}, out)
	case <-time.After(5 * time.Second):
		t.Fatal("no outbound reply")
	}
	<-done
}

func TestLatencySketchP95(t *testing.T) {
	s := newLatencySketch()
	assert.Equal(t, time.Duration(0), s.P95())
	for i := 1; i <= 100; i++ {
		s.Observe(time.Duration(i) * time.Millisecond)
	}
	p95 := s.P95()
	assert.InDelta(t, 95, float64(p95.Milliseconds()), 2)
}
