// Package memorytool adapts internal/memory to the tool runtime: a write
// tool (long-term or daily-note append) and a search tool (tokenized
// substring ranking), in the idiom of the cron tool's "validate then
// delegate" shape.
package memorytool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mattdef/miniclaw-sub000/internal/memory"
)

// WriteTool implements "memory.write_memory".
type WriteTool struct {
	store *memory.Store
}

// NewWriteTool creates a write_memory tool bound to store.
func NewWriteTool(store *memory.Store) *WriteTool { return &WriteTool{store: store} }

func (t *WriteTool) Name() string { return "write_memory" }

func (t *WriteTool) Description() string {
	return "Append content to either the long-term memory file or today's daily note."
}

func (t *WriteTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"content":     map[string]any{"type": "string"},
			"destination": map[string]any{"type": "string", "enum": []string{"long_term", "daily_note"}},
		},
		"required": []string{"content", "destination"},
	}
}

type writeResult struct {
	Success  bool   `json:"success"`
	FilePath string `json:"file_path"`
	Message  string `json:"message"`
}

func (t *WriteTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	content, _ := args["content"].(string)
	destination, _ := args["destination"].(string)

	var path string
	var err error
	switch destination {
	case "daily_note":
		path, err = t.store.WriteDailyNote(content)
	case "long_term", "":
		path, err = t.store.WriteLongTerm(content)
	default:
		return "", fmt.Errorf("unknown destination %q, expected long_term|daily_note", destination)
	}
	if err != nil {
		return "", err
	}
	return encode(writeResult{Success: true, FilePath: path, Message: "memory written"})
}

// SearchTool implements the memory search/ranker capability.
type SearchTool struct {
	store *memory.Store
}

// NewSearchTool creates a search tool bound to store.
func NewSearchTool(store *memory.Store) *SearchTool { return &SearchTool{store: store} }

func (t *SearchTool) Name() string { return "search_memory" }

func (t *SearchTool) Description() string {
	return "Search long-term memory and the last 30 days of daily notes for a query, ranked by matching tokens."
}

func (t *SearchTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string"},
			"limit": map[string]any{"type": "integer", "description": "default 5, max 20"},
		},
		"required": []string{"query"},
	}
}

func (t *SearchTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return "", fmt.Errorf("query is required")
	}
	limit := 0
	switch v := args["limit"].(type) {
	case float64:
		limit = int(v)
	case int:
		limit = v
	}
	results, err := t.store.Search(query, limit)
	if err != nil {
		return "", err
	}
	return encode(results)
}

func encode(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
