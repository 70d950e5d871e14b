// Package promptctx assembles the layered prompt fed to the LLM provider
// on every turn: system, bootstrap, memory, skills, tools, history, and the
// current message, in that strict order, trimmed to a token budget that
// never touches the System layers or the current message.
package promptctx

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mattdef/miniclaw-sub000/internal/models"
	"github.com/mattdef/miniclaw-sub000/internal/workspace"
)

// LayerKind names which of the seven ordered layers a Layer came from.
type LayerKind string

const (
	LayerSystem    LayerKind = "system"
	LayerBootstrap LayerKind = "bootstrap"
	LayerMemory    LayerKind = "memory"
	LayerSkills    LayerKind = "skills"
	LayerTools     LayerKind = "tools"
	LayerHistory   LayerKind = "history"
	LayerCurrent   LayerKind = "current"
)

// Layer is one entry in the assembled prompt.
type Layer struct {
	Kind       LayerKind
	Role       models.Role
	Content    string
	ToolCalls  []models.ToolCall
	ToolCallID string
}

// Options configures budget and window sizes. Zero values fall back to
// the defaults (20 memory entries, 50 history messages, 4000 tokens).
type Options struct {
	MaxMemoryEntries   int
	MaxHistoryMessages int
	MaxContextTokens   int
}

func (o Options) withDefaults() Options {
	if o.MaxMemoryEntries <= 0 {
		o.MaxMemoryEntries = 20
	}
	if o.MaxHistoryMessages <= 0 {
		o.MaxHistoryMessages = 50
	}
	if o.MaxContextTokens <= 0 {
		o.MaxContextTokens = 4000
	}
	return o
}

// Assembler builds the layered prompt from a Workspace and a session's
// history.
type Assembler struct {
	ws     *workspace.Workspace
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

// New creates an Assembler rooted at ws.
func New(ws *workspace.Workspace, opts Options, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{ws: ws, opts: opts.withDefaults(), logger: logger.With("component", "promptctx"), now: time.Now}
}

// loadResult carries the outcome of one concurrently-loaded layer.
type loadResult struct {
	content string
	present bool
	err     error
}

// Build assembles the full ordered layer list for one turn: session is the
// conversation so far (not yet including currentMessage), and
// currentMessage is the inbound user text that always lands last.
func (a *Assembler) Build(ctx context.Context, session *models.Session, currentMessage string) ([]Layer, error) {
	type namedResult struct {
		kind LayerKind
		res  loadResult
	}
	results := make(chan namedResult, 3)

	go func() {
		content, present, err := a.loadMemory()
		results <- namedResult{LayerMemory, loadResult{content, present, err}}
	}()
	go func() {
		content, present, err := a.loadSkills()
		results <- namedResult{LayerSkills, loadResult{content, present, err}}
	}()
	go func() {
		content, present, err := a.loadTools()
		results <- namedResult{LayerTools, loadResult{content, present, err}}
	}()

	byKind := make(map[LayerKind]loadResult, 3)
	for i := 0; i < 3; i++ {
		nr := <-results
		byKind[nr.kind] = nr.res
	}

	system, err := a.ws.LoadSystem()
	if err != nil {
		return nil, err
	}

	var layers []Layer
	layers = append(layers, Layer{Kind: LayerSystem, Role: models.RoleSystem, Content: system})
	layers = append(layers, Layer{Kind: LayerBootstrap, Role: models.RoleSystem, Content: a.bootstrap()})

	if r := byKind[LayerMemory]; r.err == nil && r.present {
		layers = append(layers, Layer{Kind: LayerMemory, Role: models.RoleSystem, Content: "Relevant memories:\n" + r.content})
	} else if r.err != nil {
		a.logger.Warn("failed to load memory layer", "error", r.err)
	}

	if r := byKind[LayerSkills]; r.err == nil && r.present {
		layers = append(layers, Layer{Kind: LayerSkills, Role: models.RoleSystem, Content: r.content})
	} else if r.err != nil {
		a.logger.Warn("failed to load skills layer", "error", r.err)
	}

	if r := byKind[LayerTools]; r.err == nil && r.present {
		layers = append(layers, Layer{Kind: LayerTools, Role: models.RoleSystem, Content: "Available tools:\n" + r.content})
	} else if r.err != nil {
		a.logger.Warn("failed to load tools layer", "error", r.err)
	}

	layers = append(layers, a.historyLayers(trimTrailingCurrent(session, currentMessage))...)
	layers = append(layers, Layer{Kind: LayerCurrent, Role: models.RoleUser, Content: currentMessage})

	return a.enforceBudget(layers, currentMessage), nil
}

func (a *Assembler) bootstrap() string {
	now := a.now()
	return fmt.Sprintf(
		"Current date/time: %s. Tools and skills configured for this workspace are available for you to use.",
		now.Format(time.RFC1123),
	)
}

func (a *Assembler) loadMemory() (string, bool, error) {
	return a.ws.LoadMemoryLines(a.opts.MaxMemoryEntries)
}

func (a *Assembler) loadSkills() (string, bool, error) {
	skills, err := a.ws.LoadSkills()
	if err != nil {
		return "", false, err
	}
	if len(skills) == 0 {
		return "", false, nil
	}
	var b strings.Builder
	for _, s := range skills {
		fmt.Fprintf(&b, "- %s: %s\n", s.Name, s.Summary)
	}
	return strings.TrimRight(b.String(), "\n"), true, nil
}

func (a *Assembler) loadTools() (string, bool, error) {
	return a.ws.LoadTools()
}

// trimTrailingCurrent drops the user turn that triggered this build from
// the history window (the orchestrator appends it to the session before
// assembling context): the Current-message layer carries it instead, so
// History never duplicates it. The scan runs back-to-front because later
// loop iterations of the same turn have tool messages appended after it.
func trimTrailingCurrent(session *models.Session, currentMessage string) *models.Session {
	if session == nil || len(session.Messages) == 0 {
		return session
	}
	for i := len(session.Messages) - 1; i >= 0; i-- {
		m := session.Messages[i]
		if m.Role == models.RoleUser && m.Content == currentMessage {
			clone := session.Clone()
			clone.Messages = append(clone.Messages[:i], clone.Messages[i+1:]...)
			return clone
		}
	}
	return session
}

// historyLayers maps the last MaxHistoryMessages of the session window into
// prompt layers, mapping unknown roles to User with a logged warning.
func (a *Assembler) historyLayers(session *models.Session) []Layer {
	if session == nil {
		return nil
	}
	msgs := session.Messages
	if len(msgs) > a.opts.MaxHistoryMessages {
		msgs = msgs[len(msgs)-a.opts.MaxHistoryMessages:]
	}
	out := make([]Layer, 0, len(msgs))
	for _, m := range msgs {
		role := m.Role
		switch role {
		case models.RoleUser, models.RoleAssistant:
		case models.RoleToolResult:
			role = "tool"
		default:
			a.logger.Warn("unknown message role in history, defaulting to user", "role", string(m.Role))
			role = models.RoleUser
		}
		out = append(out, Layer{
			Kind:       LayerHistory,
			Role:       role,
			Content:    m.Content,
			ToolCalls:  m.ToolCalls,
			ToolCallID: m.ToolCallID,
		})
	}
	return out
}

// estimateTokens is the rough len(bytes)/4 heuristic.
func estimateTokens(s string) int {
	return len(s) / 4
}

// enforceBudget iteratively drops the oldest removable layer until the
// total is within MaxContextTokens or nothing removable remains. Every
// System-role layer (system, bootstrap, memory, skills, tools) and the
// current message are inviolate; only history is ever removed.
func (a *Assembler) enforceBudget(layers []Layer, currentMessage string) []Layer {
	total := func(ls []Layer) int {
		n := 0
		for _, l := range ls {
			n += estimateTokens(l.Content)
		}
		return n
	}

	for total(layers) > a.opts.MaxContextTokens {
		idx := -1
		for i, l := range layers {
			if l.Role == models.RoleSystem {
				continue
			}
			if l.Kind == LayerCurrent || l.Content == currentMessage {
				continue
			}
			idx = i
			break
		}
		if idx < 0 {
			break
		}
		layers = append(layers[:idx], layers[idx+1:]...)
	}
	return layers
}
