// Package observability carries the daemon's structured-logging setup and
// its Prometheus metrics surface.
package observability

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the daemon's operational counters and histograms.
type Metrics struct {
	// MessageCounter tracks messages by channel and direction
	// (inbound|outbound).
	MessageCounter *prometheus.CounterVec

	// LLMRequestDuration measures provider call latency in seconds.
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRequestCounter counts provider calls by provider, model, and
	// status (success|error).
	LLMRequestCounter *prometheus.CounterVec

	// LLMTokensUsed tracks token consumption by provider, model, and
	// type (prompt|completion).
	LLMTokensUsed *prometheus.CounterVec

	// ToolExecutionCounter counts tool invocations by tool name and
	// status (success|error).
	ToolExecutionCounter *prometheus.CounterVec

	// TurnDuration measures whole-turn latency in seconds per channel.
	TurnDuration *prometheus.HistogramVec

	// SchedulerTicks counts execution-loop wakeups.
	SchedulerTicks prometheus.Counter

	// SchedulerJobsLaunched counts job bodies launched by the ticks.
	SchedulerJobsLaunched prometheus.Counter

	// ActiveSessions gauges how many sessions are held in memory.
	ActiveSessions prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics registers the daemon's metrics on a fresh registry (so
// repeated construction, e.g. in tests, never collides) and returns the
// handle every subsystem records through.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	m := &Metrics{
		registry: reg,
		MessageCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "miniclaw_messages_total",
			Help: "Messages processed, by channel and direction.",
		}, []string{"channel", "direction"}),
		LLMRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "miniclaw_llm_request_duration_seconds",
			Help:    "LLM provider call latency.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"provider", "model"}),
		LLMRequestCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "miniclaw_llm_requests_total",
			Help: "LLM provider calls, by provider, model, and status.",
		}, []string{"provider", "model", "status"}),
		LLMTokensUsed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "miniclaw_llm_tokens_total",
			Help: "Token consumption, by provider, model, and type.",
		}, []string{"provider", "model", "type"}),
		ToolExecutionCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "miniclaw_tool_executions_total",
			Help: "Tool invocations, by tool name and status.",
		}, []string{"tool", "status"}),
		TurnDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "miniclaw_turn_duration_seconds",
			Help:    "Whole-turn latency, by channel.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"channel"}),
		SchedulerTicks: factory.NewCounter(prometheus.CounterOpts{
			Name: "miniclaw_scheduler_ticks_total",
			Help: "Scheduler execution-loop wakeups.",
		}),
		SchedulerJobsLaunched: factory.NewCounter(prometheus.CounterOpts{
			Name: "miniclaw_scheduler_jobs_launched_total",
			Help: "Scheduled job bodies launched.",
		}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "miniclaw_active_sessions",
			Help: "Sessions currently held in memory.",
		}),
	}
	return m
}

// Handler serves this Metrics' registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes m at /metrics on addr until ctx is cancelled. It blocks;
// run it as a goroutine. A server error other than graceful shutdown is
// logged, never fatal.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) {
	if addr == "" {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics endpoint listening", "addr", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics endpoint failed", "addr", addr, "error", err)
	}
}
