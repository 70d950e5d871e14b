package gateway

import (
	"time"

	"github.com/mattdef/miniclaw-sub000/internal/observability"
)

// metricsObserver adapts the orchestrator's event hooks onto the
// Prometheus metrics surface.
type metricsObserver struct {
	metrics *observability.Metrics
}

func (m *metricsObserver) TurnCompleted(channel string, elapsed time.Duration, err error) {
	m.metrics.TurnDuration.WithLabelValues(channel).Observe(elapsed.Seconds())
}

func (m *metricsObserver) LLMCallCompleted(provider, model string, elapsed time.Duration, promptTokens, completionTokens int, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.metrics.LLMRequestCounter.WithLabelValues(provider, model, status).Inc()
	m.metrics.LLMRequestDuration.WithLabelValues(provider, model).Observe(elapsed.Seconds())
	if promptTokens > 0 {
		m.metrics.LLMTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.metrics.LLMTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
	}
}

func (m *metricsObserver) ToolExecuted(name string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.metrics.ToolExecutionCounter.WithLabelValues(name, status).Inc()
}
