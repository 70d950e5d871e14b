// Package spawn implements the background fire-and-forget process tool:
// argv-only invocation (no shell interpretation), a blacklist check on the
// command basename, and a detached goroutine that logs the eventual exit.
package spawn

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"

	"github.com/mattdef/miniclaw-sub000/internal/pathvalidate"
	"github.com/mattdef/miniclaw-sub000/internal/tools/execcmd"
)

// Tool implements the "spawn" capability.
type Tool struct {
	validator *pathvalidate.Validator
	logger    *slog.Logger
}

// New creates a spawn tool. validator may be nil when no base directory
// is configured; a cwd argument is then refused outright.
func New(validator *pathvalidate.Validator, logger *slog.Logger) *Tool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tool{validator: validator, logger: logger.With("component", "tools.spawn")}
}

func (t *Tool) Name() string { return "spawn" }

func (t *Tool) Description() string {
	return "Spawn a background process that runs independently of the current turn; returns immediately with its PID."
}

func (t *Tool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{"type": "string"},
			"args":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"cwd":     map[string]any{"type": "string"},
		},
		"required": []string{"command"},
	}
}

type spawnResult struct {
	Success bool   `json:"success"`
	PID     int    `json:"pid,omitempty"`
	Message string `json:"message"`
}

func (t *Tool) Execute(ctx context.Context, args map[string]any) (string, error) {
	command, _ := args["command"].(string)
	if command == "" {
		return "", fmt.Errorf("command is required")
	}
	if execcmd.IsBlacklisted(command) {
		return "", fmt.Errorf("command %q is blacklisted", command)
	}

	argv := stringSlice(args["args"])
	cwd, _ := args["cwd"].(string)
	if cwd != "" {
		if t.validator == nil {
			return "", fmt.Errorf("cwd not permitted: no base directory configured")
		}
		resolved, err := t.validator.Resolve(cwd)
		if err != nil {
			return "", fmt.Errorf("permission denied: %w", err)
		}
		cwd = resolved
	}

	cmd := exec.Command(command, argv...)
	if cwd != "" {
		cmd.Dir = cwd
	}
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("failed to start %q: %w", command, err)
	}
	pid := cmd.Process.Pid

	go func() {
		err := cmd.Wait()
		if err != nil {
			t.logger.Warn("background process exited with error", "command", command, "pid", pid, "error", err)
		} else {
			t.logger.Info("background process exited", "command", command, "pid", pid)
		}
	}()

	return encode(spawnResult{Success: true, PID: pid, Message: fmt.Sprintf("spawned %q (pid %d)", command, pid)})
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

func encode(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
