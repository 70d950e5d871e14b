// Package gateway is the daemon supervisor: it wires channels to the
// agent orchestrator, owns the background persistence and cleanup tasks,
// runs the scheduler, and coordinates the ordered graceful shutdown.
package gateway

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/mattdef/miniclaw-sub000/internal/agent"
	"github.com/mattdef/miniclaw-sub000/internal/channels"
	clichannel "github.com/mattdef/miniclaw-sub000/internal/channels/cli"
	"github.com/mattdef/miniclaw-sub000/internal/channels/discord"
	slackchannel "github.com/mattdef/miniclaw-sub000/internal/channels/slack"
	"github.com/mattdef/miniclaw-sub000/internal/channels/telegram"
	"github.com/mattdef/miniclaw-sub000/internal/config"
	"github.com/mattdef/miniclaw-sub000/internal/llm"
	"github.com/mattdef/miniclaw-sub000/internal/memory"
	"github.com/mattdef/miniclaw-sub000/internal/models"
	"github.com/mattdef/miniclaw-sub000/internal/observability"
	"github.com/mattdef/miniclaw-sub000/internal/outbound"
	"github.com/mattdef/miniclaw-sub000/internal/pathvalidate"
	"github.com/mattdef/miniclaw-sub000/internal/promptctx"
	"github.com/mattdef/miniclaw-sub000/internal/scheduler"
	"github.com/mattdef/miniclaw-sub000/internal/sessions"
	"github.com/mattdef/miniclaw-sub000/internal/skills"
	"github.com/mattdef/miniclaw-sub000/internal/tools"
	cronTool "github.com/mattdef/miniclaw-sub000/internal/tools/cron"
	execTool "github.com/mattdef/miniclaw-sub000/internal/tools/exec"
	"github.com/mattdef/miniclaw-sub000/internal/tools/filesystem"
	"github.com/mattdef/miniclaw-sub000/internal/tools/memorytool"
	messageTool "github.com/mattdef/miniclaw-sub000/internal/tools/message"
	"github.com/mattdef/miniclaw-sub000/internal/tools/skilltool"
	"github.com/mattdef/miniclaw-sub000/internal/tools/spawn"
	"github.com/mattdef/miniclaw-sub000/internal/tools/web"
	"github.com/mattdef/miniclaw-sub000/internal/workspace"
)

// Exit codes the gateway process terminates with.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitSIGINT  = 130
	ExitSIGTERM = 143
)

// AutoPersistInterval is the cadence of the background session flush.
const AutoPersistInterval = 30 * time.Second

// Shutdown wait ceilings per background task.
const (
	persistShutdownWait = 10 * time.Second
	cleanupShutdownWait = 5 * time.Second
)

// HeartbeatCommand is the reserved builtin job command that appends a
// liveness line to the workspace's HEARTBEAT.md.
const HeartbeatCommand = "heartbeat"

// Gateway owns the whole daemon: every subsystem handle plus the channel
// plumbing between them.
type Gateway struct {
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *observability.Metrics
	ws       *workspace.Workspace
	sessions *sessions.Manager
	sched    *scheduler.Scheduler
	registry *tools.Registry
	provider llm.Provider
	queue    *outbound.Queue
	orch     *agent.Orchestrator
	channels []channels.Channel

	cliIn  io.Reader
	cliOut io.Writer
}

// Option configures a Gateway at construction time.
type Option func(*Gateway)

// WithCLI attaches a local stdin/stdout channel, for interactive runs.
func WithCLI(in io.Reader, out io.Writer) Option {
	return func(g *Gateway) {
		g.cliIn, g.cliOut = in, out
	}
}

// New builds a fully-wired Gateway from cfg. Startup-fatal problems
// (invalid config, unreadable workspace) return an error; per-channel and
// per-session problems are logged and survived.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	g := &Gateway{cfg: cfg, logger: logger.With("component", "gateway")}
	for _, opt := range opts {
		opt(g)
	}
	g.metrics = observability.NewMetrics(nil)

	ws, err := workspace.New(cfg.Workspace)
	if err != nil {
		return nil, fmt.Errorf("open workspace: %w", err)
	}
	if err := ws.Scaffold(logger); err != nil {
		return nil, fmt.Errorf("scaffold workspace: %w", err)
	}
	g.ws = ws

	sessMgr, err := sessions.NewManager(ws.SessionsDir(), logger)
	if err != nil {
		return nil, err
	}
	g.sessions = sessMgr

	sched, err := g.buildScheduler()
	if err != nil {
		return nil, err
	}
	g.sched = sched

	g.queue = outbound.NewQueue(cfg.Gateway.OutboundBuffer)

	registry, err := g.buildRegistry()
	if err != nil {
		return nil, err
	}
	g.registry = registry

	g.provider = buildProvider(cfg)

	assembler := promptctx.New(ws, promptctx.Options{}, logger)
	model := ""
	if cfg.Provider == "openai" {
		model = cfg.OpenAI.Model
	} else {
		model = cfg.Local.Model
	}
	g.orch = agent.New(sessMgr, assembler, registry, g.provider, model, g.queue, logger)
	g.orch.SetObserver(&metricsObserver{metrics: g.metrics})

	g.channels = g.buildChannels()
	return g, nil
}

func buildProvider(cfg *config.Config) llm.Provider {
	if cfg.Provider == "openai" {
		return llm.NewOpenAIProvider(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model)
	}
	return llm.NewLocalProvider(cfg.Local.BaseURL, cfg.Local.Model)
}

func (g *Gateway) buildScheduler() (*scheduler.Scheduler, error) {
	opts := []scheduler.Option{
		scheduler.WithBuiltin(HeartbeatCommand, g.heartbeat),
		scheduler.WithTickHook(func(launched int) {
			g.metrics.SchedulerTicks.Inc()
			g.metrics.SchedulerJobsLaunched.Add(float64(launched))
		}),
	}

	execStore, err := scheduler.NewSQLiteExecutionStore(filepath.Join(g.ws.SchedulerDir(), "executions.db"))
	if err != nil {
		g.logger.Warn("sqlite execution store unavailable, history will not survive restart", "error", err)
	} else {
		opts = append(opts, scheduler.WithExecutionStore(execStore))
	}

	sched, err := scheduler.New(g.ws.SchedulerDir(), g.logger, opts...)
	if err != nil {
		return nil, err
	}

	if m := g.cfg.Gateway.HeartbeatMinutes; m >= models.MinIntervalMinutes && !sched.HasJobForCommand(HeartbeatCommand) {
		if _, err := sched.ScheduleInterval(m, HeartbeatCommand, nil); err != nil {
			g.logger.Warn("failed to schedule heartbeat", "error", err)
		}
	}
	return sched, nil
}

// heartbeat is the builtin job body: one timestamped line appended to
// HEARTBEAT.md per execution.
func (g *Gateway) heartbeat(ctx context.Context) (string, error) {
	f, err := os.OpenFile(g.ws.HeartbeatPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", err
	}
	defer f.Close()
	line := fmt.Sprintf("- %s alive\n", time.Now().Format(time.RFC3339))
	if _, err := f.WriteString(line); err != nil {
		return "", err
	}
	return "ok", nil
}

func (g *Gateway) buildRegistry() (*tools.Registry, error) {
	registry := tools.NewRegistry()

	fsTool, err := filesystem.New(g.ws.Root, g.logger)
	if err != nil {
		return nil, err
	}
	validator, err := pathvalidate.New(g.ws.Root)
	if err != nil {
		return nil, err
	}
	memStore := memory.New(g.ws.MemoryDir())
	skillMgr := skills.New(g.ws.SkillsDir())

	all := []tools.Tool{
		fsTool,
		web.New(g.cfg.Gateway.WebRatePerSecond),
		spawn.New(validator, g.logger),
		execTool.New(),
		messageTool.New(g.queue),
		memorytool.NewWriteTool(memStore),
		memorytool.NewSearchTool(memStore),
		skilltool.NewCreateTool(skillMgr),
		skilltool.NewListTool(skillMgr),
		skilltool.NewReadTool(skillMgr),
		skilltool.NewDeleteTool(skillMgr),
		cronTool.New(g.sched),
	}
	for _, t := range all {
		if err := registry.Register(t); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// buildChannels assembles the configured chat transports. A channel whose
// construction fails is logged and skipped, never fatal.
func (g *Gateway) buildChannels() []channels.Channel {
	var out []channels.Channel

	if g.cliIn != nil && g.cliOut != nil {
		out = append(out, clichannel.New(g.cliIn, g.cliOut, g.logger))
	}
	if token := g.cfg.Channels.Telegram.Token; token != "" {
		ch, err := telegram.New(token, g.logger)
		if err != nil {
			g.logger.Error("telegram channel unavailable", "error", err)
		} else {
			out = append(out, ch)
		}
	}
	if token := g.cfg.Channels.Discord.Token; token != "" {
		ch, err := discord.New(token, g.logger)
		if err != nil {
			g.logger.Error("discord channel unavailable", "error", err)
		} else {
			out = append(out, ch)
		}
	}
	if sc := g.cfg.Channels.Slack; sc.BotToken != "" && sc.AppToken != "" {
		out = append(out, slackchannel.New(sc.BotToken, sc.AppToken, g.logger))
	}
	return out
}
