package agent

import "time"

// Observer receives orchestrator events, letting the daemon supervisor
// record metrics without this package depending on the metrics backend.
// All methods are called synchronously on hot paths and must be cheap.
type Observer interface {
	// TurnCompleted fires once per ProcessMessage call.
	TurnCompleted(channel string, elapsed time.Duration, err error)

	// LLMCallCompleted fires once per provider call attempt that
	// returned (successfully or not).
	LLMCallCompleted(provider, model string, elapsed time.Duration, promptTokens, completionTokens int, err error)

	// ToolExecuted fires once per dispatched tool call.
	ToolExecuted(name string, err error)
}

// SetObserver installs obs. Pass nil to remove. Not safe to call
// concurrently with ProcessMessage; install before Run.
func (o *Orchestrator) SetObserver(obs Observer) {
	o.observer = obs
}
