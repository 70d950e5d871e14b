package gateway

import (
	"context"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/mattdef/miniclaw-sub000/internal/agent"
	"github.com/mattdef/miniclaw-sub000/internal/channels"
	"github.com/mattdef/miniclaw-sub000/internal/models"
)

// Run starts every subsystem, blocks until a shutdown signal arrives or
// the inbound flow terminates, then performs the ordered shutdown. The
// returned value is the process exit code.
func (g *Gateway) Run(ctx context.Context) int {
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	// 1. Load persisted sessions. Per-session failures were already
	// logged and skipped inside LoadAll.
	if _, err := g.sessions.LoadAll(runCtx); err != nil {
		g.logger.Error("failed to scan sessions directory", "error", err)
	}

	// 2. Auto-persistence task.
	persistCtx, stopPersist := context.WithCancel(context.Background())
	persistDone := make(chan struct{})
	go func() {
		defer close(persistDone)
		g.sessions.AutoPersist(persistCtx, AutoPersistInterval)
	}()

	// 3. TTL cleanup task.
	cleanupCtx, stopCleanup := context.WithCancel(context.Background())
	cleanupDone := make(chan struct{})
	go func() {
		defer close(cleanupDone)
		g.sessions.RunCleanup(cleanupCtx)
	}()

	// Scheduler, metrics endpoint, and workspace watcher ride runCtx:
	// they need no drain beyond observing cancellation.
	go g.sched.Run(runCtx)
	go g.metrics.Serve(runCtx, g.cfg.Gateway.MetricsAddr, g.logger)
	go g.ws.Watch(runCtx, g.logger)

	// 4. Channels. A channel that fails to start is dropped.
	rawInbound := make(chan models.InboundMessage, 64)
	chanCtx, stopChannels := context.WithCancel(context.Background())
	var started []channels.Channel
	for _, ch := range g.channels {
		if err := ch.Start(chanCtx, rawInbound); err != nil {
			g.logger.Error("channel failed to start, continuing without it", "channel", ch.Name(), "error", err)
			continue
		}
		g.logger.Info("channel started", "channel", ch.Name())
		started = append(started, ch)
	}

	// Inbound filter: allowlist enforcement and metrics, between the
	// raw channel feed and the orchestrator.
	inbound := make(chan models.InboundMessage, 64)
	go g.filterInbound(runCtx, rawInbound, inbound)

	// Outbound dispatch: single consumer of the outbound queue.
	go g.dispatchOutbound(runCtx, started)

	// The orchestrator run-loop. Its termination (inbound closed) is a
	// normal daemon exit.
	orchDone := make(chan struct{})
	go func() {
		defer close(orchDone)
		g.orch.Run(runCtx, agent.RunOptions{Inbound: inbound})
	}()

	// 5./6. Run until signalled or the message flow ends.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	exitCode := ExitOK
	select {
	case sig := <-sigCh:
		g.logger.Info("shutdown signal received", "signal", sig.String())
		switch sig {
		case syscall.SIGINT:
			exitCode = ExitSIGINT
		case syscall.SIGTERM:
			exitCode = ExitSIGTERM
		}
	case <-orchDone:
		g.logger.Info("inbound flow terminated, shutting down")
	case <-ctx.Done():
	}

	g.shutdown(stopChannels, started, stopPersist, persistDone, stopCleanup, cleanupDone, cancelRun, orchDone)
	return exitCode
}

// shutdown runs the strictly-ordered teardown: stop accepting inbound,
// flush-and-join persistence, join cleanup, stop the chat transports,
// then a final synchronous flush.
func (g *Gateway) shutdown(
	stopChannels context.CancelFunc, started []channels.Channel,
	stopPersist context.CancelFunc, persistDone <-chan struct{},
	stopCleanup context.CancelFunc, cleanupDone <-chan struct{},
	cancelRun context.CancelFunc, orchDone <-chan struct{},
) {
	// 1. Stop accepting new inbound messages.
	stopChannels()

	// 2. Auto-persistence, joined with a ceiling.
	stopPersist()
	waitOrTimeout(persistDone, persistShutdownWait, func() {
		g.logger.Warn("auto-persistence did not stop in time, continuing shutdown")
	})

	// 3. TTL cleanup.
	stopCleanup()
	waitOrTimeout(cleanupDone, cleanupShutdownWait, func() {
		g.logger.Warn("ttl cleanup did not stop in time, continuing shutdown")
	})

	// 4. Chat transports.
	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, ch := range started {
		if err := ch.Stop(stopCtx); err != nil {
			g.logger.Warn("channel stop failed", "channel", ch.Name(), "error", err)
		}
	}
	g.queue.Close()
	cancelRun()
	<-orchDone

	// 5. Final flush, after every producer of dirty state has stopped.
	flushCtx, cancelFlush := context.WithTimeout(context.Background(), persistShutdownWait)
	defer cancelFlush()
	g.sessions.SaveAll(flushCtx)
	g.logger.Info("shutdown complete")
}

func waitOrTimeout(done <-chan struct{}, limit time.Duration, onTimeout func()) {
	select {
	case <-done:
	case <-time.After(limit):
		onTimeout()
	}
}

// filterInbound forwards channel messages to the orchestrator, dropping
// senders outside the allowlist and recording per-channel metrics.
func (g *Gateway) filterInbound(ctx context.Context, raw <-chan models.InboundMessage, out chan<- models.InboundMessage) {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-raw:
			if !ok {
				return
			}
			if !g.allowed(msg) {
				g.logger.Warn("dropping message from disallowed sender", "channel", msg.Channel, "chat_id", msg.ChatID)
				continue
			}
			g.metrics.MessageCounter.WithLabelValues(msg.Channel, "inbound").Inc()
			g.metrics.ActiveSessions.Set(float64(g.sessions.Len()))
			select {
			case <-ctx.Done():
				return
			case out <- msg:
			}
		}
	}
}

// allowed applies the operator allowlist. An empty list allows everyone;
// the local CLI is always allowed.
func (g *Gateway) allowed(msg models.InboundMessage) bool {
	allow := g.cfg.Channels.AllowFrom
	if len(allow) == 0 || msg.Channel == "cli" {
		return true
	}
	return slices.Contains(allow, msg.ChatID) ||
		slices.Contains(allow, msg.Channel+":"+msg.ChatID)
}

// dispatchOutbound is the single consumer of the outbound queue: each
// message is routed to the channel adapter whose name matches.
func (g *Gateway) dispatchOutbound(ctx context.Context, started []channels.Channel) {
	for {
		select {
		case <-ctx.Done():
			return
		case out := <-g.queue.Recv():
			g.metrics.MessageCounter.WithLabelValues(out.Channel, "outbound").Inc()
			delivered := false
			for _, ch := range started {
				if ch.Name() != out.Channel {
					continue
				}
				if err := ch.Send(ctx, out); err != nil {
					g.logger.Error("outbound delivery failed", "channel", out.Channel, "chat_id", out.ChatID, "error", err)
				}
				delivered = true
				break
			}
			if !delivered {
				g.logger.Warn("no channel for outbound message", "channel", out.Channel)
			}
		}
	}
}
