// Package skilltool exposes skills.Manager's CRUD surface as four tools:
// create_skill, list_skills, read_skill, delete_skill, in the idiom of the
// cron tool's "validate then delegate" shape.
package skilltool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mattdef/miniclaw-sub000/internal/skills"
)

// CreateTool implements "create_skill".
type CreateTool struct{ mgr *skills.Manager }

func NewCreateTool(mgr *skills.Manager) *CreateTool { return &CreateTool{mgr: mgr} }

func (t *CreateTool) Name() string        { return "create_skill" }
func (t *CreateTool) Description() string { return "Create a new named skill package." }
func (t *CreateTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":           map[string]any{"type": "string"},
			"description":    map[string]any{"type": "string"},
			"parameters":     map[string]any{"type": "string"},
			"implementation": map[string]any{"type": "string"},
		},
		"required": []string{"name", "description", "implementation"},
	}
}

func (t *CreateTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	name, _ := args["name"].(string)
	description, _ := args["description"].(string)
	parameters, _ := args["parameters"].(string)
	implementation, _ := args["implementation"].(string)
	if name == "" || description == "" || implementation == "" {
		return "", fmt.Errorf("name, description, and implementation are required")
	}
	if err := t.mgr.Create(name, description, parameters, implementation); err != nil {
		return "", err
	}
	return encode(map[string]any{"success": true, "name": name})
}

// ListTool implements "list_skills".
type ListTool struct{ mgr *skills.Manager }

func NewListTool(mgr *skills.Manager) *ListTool { return &ListTool{mgr: mgr} }

func (t *ListTool) Name() string                  { return "list_skills" }
func (t *ListTool) Description() string           { return "List available skill packages." }
func (t *ListTool) Parameters() map[string]any     { return map[string]any{"type": "object", "properties": map[string]any{}} }

func (t *ListTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	entries, err := t.mgr.List()
	if err != nil {
		return "", err
	}
	return encode(entries)
}

// ReadTool implements "read_skill".
type ReadTool struct{ mgr *skills.Manager }

func NewReadTool(mgr *skills.Manager) *ReadTool { return &ReadTool{mgr: mgr} }

func (t *ReadTool) Name() string        { return "read_skill" }
func (t *ReadTool) Description() string { return "Read a skill package's raw SKILL.md contents." }
func (t *ReadTool) Parameters() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"name": map[string]any{"type": "string"}},
		"required":   []string{"name"},
	}
}

func (t *ReadTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	name, _ := args["name"].(string)
	if name == "" {
		return "", fmt.Errorf("name is required")
	}
	content, err := t.mgr.Read(name)
	if err != nil {
		return "", err
	}
	return content, nil
}

// DeleteTool implements "delete_skill".
type DeleteTool struct{ mgr *skills.Manager }

func NewDeleteTool(mgr *skills.Manager) *DeleteTool { return &DeleteTool{mgr: mgr} }

func (t *DeleteTool) Name() string        { return "delete_skill" }
func (t *DeleteTool) Description() string { return "Delete a named skill package." }
func (t *DeleteTool) Parameters() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"name": map[string]any{"type": "string"}},
		"required":   []string{"name"},
	}
}

func (t *DeleteTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	name, _ := args["name"].(string)
	if name == "" {
		return "", fmt.Errorf("name is required")
	}
	if err := t.mgr.Delete(name); err != nil {
		return "", err
	}
	return encode(map[string]any{"success": true, "name": name})
}

func encode(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
