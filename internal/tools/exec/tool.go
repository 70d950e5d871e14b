// Package exec implements the synchronous command-execution tool: the same
// blacklist as spawn, additionally rejecting any command string that
// contains "/" followed by a blacklisted name, a 30s timeout, and
// stdout-on-success / stderr-on-failure results.
package exec

import (
	"context"
	"fmt"

	"github.com/mattdef/miniclaw-sub000/internal/tools/execcmd"
)

// Tool implements the "exec" capability, the synchronous counterpart to
// the spawn tool. The scheduler's job runner does not use Tool; it calls
// the same execcmd checks and Run directly.
type Tool struct{}

// New creates an exec tool.
func New() *Tool { return &Tool{} }

func (t *Tool) Name() string { return "exec" }

func (t *Tool) Description() string {
	return "Run a command synchronously (up to 30s) and return its output."
}

func (t *Tool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{"type": "string"},
			"args":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required": []string{"command"},
	}
}

func (t *Tool) Execute(ctx context.Context, args map[string]any) (string, error) {
	command, _ := args["command"].(string)
	if command == "" {
		return "", fmt.Errorf("command is required")
	}
	if execcmd.IsBlacklisted(command) || execcmd.ContainsBlacklisted(command) {
		return "", fmt.Errorf("command %q is blacklisted", command)
	}

	argv := stringSlice(args["args"])
	result, err := execcmd.Run(ctx, command, argv, "")
	if err != nil {
		return "", err
	}
	if result.ExitCode != 0 {
		return "", fmt.Errorf("command exited with status %d: %s", result.ExitCode, result.Stderr)
	}
	return result.Stdout, nil
}

func stringSlice(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
