// Package cron is the thin tool adapter between the agent's tool runtime
// and the scheduler: it validates arguments and forwards to
// *scheduler.Scheduler, in the idiom of the filesystem/web tools' "validate
// then delegate" shape.
package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mattdef/miniclaw-sub000/internal/models"
	"github.com/mattdef/miniclaw-sub000/internal/scheduler"
)

// Tool adapts a *scheduler.Scheduler to the tool runtime's Tool interface.
type Tool struct {
	scheduler *scheduler.Scheduler
}

// New creates a cron tool bound to sched.
func New(sched *scheduler.Scheduler) *Tool {
	return &Tool{scheduler: sched}
}

func (t *Tool) Name() string { return "cron" }

func (t *Tool) Description() string {
	return "Schedule, list, or cancel background jobs that run a command at a future time or on a recurring interval."
}

func (t *Tool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action": map[string]any{
				"type": "string",
				"enum": []string{"schedule", "list", "cancel"},
			},
			"job_type": map[string]any{
				"type": "string",
				"enum": []string{"fire_at", "interval"},
			},
			"time":    map[string]any{"type": "string", "description": "RFC3339 datetime, required when job_type=fire_at"},
			"minutes": map[string]any{"type": "integer", "description": "interval in minutes (>=2), required when job_type=interval"},
			"command": map[string]any{"type": "string"},
			"args":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"job_id":  map[string]any{"type": "string", "description": "required for action=cancel"},
		},
		"required": []string{"action"},
	}
}

type scheduleResult struct {
	Success       bool   `json:"success"`
	JobID         string `json:"job_id,omitempty"`
	Message       string `json:"message"`
	NextExecution string `json:"next_execution,omitempty"`
}

// Execute dispatches action to the scheduler and renders its outcome as a
// JSON-encoded string, the uniform result shape every tool presents.
func (t *Tool) Execute(ctx context.Context, args map[string]any) (string, error) {
	action, _ := args["action"].(string)
	switch action {
	case "schedule":
		return t.schedule(args)
	case "list":
		return t.list()
	case "cancel":
		return t.cancel(args)
	default:
		return "", fmt.Errorf("unknown action %q, expected schedule|list|cancel", action)
	}
}

func (t *Tool) schedule(args map[string]any) (string, error) {
	jobType, _ := args["job_type"].(string)
	command, _ := args["command"].(string)
	if command == "" {
		return "", fmt.Errorf("command is required")
	}
	argv := stringSlice(args["args"])

	var job *models.Job
	var err error
	switch jobType {
	case "fire_at":
		timeStr, _ := args["time"].(string)
		if timeStr == "" {
			return "", fmt.Errorf("time is required for job_type=fire_at")
		}
		at, parseErr := time.Parse(time.RFC3339, timeStr)
		if parseErr != nil {
			return "", fmt.Errorf("invalid time %q: %w", timeStr, parseErr)
		}
		job, err = t.scheduler.ScheduleFireAt(at, command, argv)
	case "interval":
		minutes, ok := intArg(args["minutes"])
		if !ok {
			return "", fmt.Errorf("minutes is required for job_type=interval")
		}
		job, err = t.scheduler.ScheduleInterval(minutes, command, argv)
	default:
		return "", fmt.Errorf("job_type must be fire_at or interval")
	}
	if err != nil {
		return "", err
	}

	result := scheduleResult{Success: true, JobID: job.ID, Message: "job scheduled"}
	if job.Kind == models.JobFireAt {
		result.NextExecution = job.ExecuteAt.Format(time.RFC3339)
	} else {
		result.NextExecution = job.NextExecution.Format(time.RFC3339)
	}
	return encode(result)
}

func (t *Tool) list() (string, error) {
	return encode(t.scheduler.List())
}

func (t *Tool) cancel(args map[string]any) (string, error) {
	jobID, _ := args["job_id"].(string)
	if jobID == "" {
		return "", fmt.Errorf("job_id is required")
	}
	if err := t.scheduler.Cancel(jobID); err != nil {
		return "", err
	}
	return encode(scheduleResult{Success: true, JobID: jobID, Message: "job cancelled"})
}

func encode(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
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

func intArg(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	default:
		return 0, false
	}
}
