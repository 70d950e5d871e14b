// Package tools defines the uniform tool contract and a concurrent
// registry: a flat interface, a name-keyed map guarded by a RWMutex, and a
// string-in/string-out execution surface so every tool presents
// identically to the LLM.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Tool is a single named capability. Execute must be safe to cancel after
// its first await point (ctx.Done()).
type Tool interface {
	Name() string
	Description() string
	// Parameters returns a JSON-Schema object (as a Go map, convertible to
	// JSON) describing accepted arguments.
	Parameters() map[string]any
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// Definition is the triple returned by the registry's List/GetDefinitions
// operations and is also the shape fed to LLM function-calling APIs.
type Definition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// FunctionCallShape renders d in the {"type":"function","function":{...}}
// shape most chat-completion APIs expect.
func (d Definition) FunctionCallShape() map[string]any {
	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        d.Name,
			"description": d.Description,
			"parameters":  d.Parameters,
		},
	}
}

// ErrNotFound is returned by ExecuteTool when no tool is registered under the
// requested name.
type ErrNotFound struct{ Name string }

func (e *ErrNotFound) Error() string { return fmt.Sprintf("tool not found: %s", e.Name) }

// ErrAlreadyRegistered is returned by Register on a name collision.
type ErrAlreadyRegistered struct{ Name string }

func (e *ErrAlreadyRegistered) Error() string {
	return fmt.Sprintf("tool already registered: %s", e.Name)
}

// Registry is a thread-safe name -> Tool map. Tools are never mutated after
// registration; reads (List, Contains, ExecuteTool's lookup) take the read lock,
// writes (Register, Unregister) take the write lock, and no lock is ever
// held across a tool's I/O.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	schema map[string]*jsonschema.Schema
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:  make(map[string]Tool),
		schema: make(map[string]*jsonschema.Schema),
	}
}

// Register adds tool under tool.Name(). It fails if the name is already taken.
func (r *Registry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := tool.Name()
	if _, exists := r.tools[name]; exists {
		return &ErrAlreadyRegistered{Name: name}
	}
	r.tools[name] = tool
	if compiled, err := compileSchema(name, tool.Parameters()); err == nil {
		r.schema[name] = compiled
	}
	return nil
}

// Unregister removes a tool by name. It is a no-op if the name isn't present.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
	delete(r.schema, name)
}

// Contains reports whether name is registered.
func (r *Registry) Contains(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// List returns the name/description/parameters triple for every registered tool.
func (r *Registry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]Definition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, Definition{Name: t.Name(), Description: t.Description(), Parameters: t.Parameters()})
	}
	return defs
}

// GetDefinitions returns every tool's LLM function-calling shape.
func (r *Registry) GetDefinitions() []map[string]any {
	defs := r.List()
	out := make([]map[string]any, len(defs))
	for i, d := range defs {
		out[i] = d.FunctionCallShape()
	}
	return out
}

// ExecuteTool dispatches args (already decoded from the tool call's JSON
// arguments) to the named tool. Argument validation errors and tool
// execution failures are both returned as plain errors so the caller can
// render them into a textual tool-result payload; only an unknown tool name
// yields *ErrNotFound.
func (r *Registry) ExecuteTool(ctx context.Context, name string, args map[string]any) (string, error) {
	r.mu.RLock()
	tool, ok := r.tools[name]
	schema := r.schema[name]
	r.mu.RUnlock()
	if !ok {
		return "", &ErrNotFound{Name: name}
	}
	if schema != nil {
		if err := schema.Validate(toRawAny(args)); err != nil {
			return "", fmt.Errorf("invalid arguments for tool %q: %w", name, err)
		}
	}
	return tool.Execute(ctx, args)
}

// ParseArguments decodes a tool call's JSON-encoded arguments string into a
// map, as required before ExecuteTool.
func ParseArguments(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("decode tool arguments: %w", err)
	}
	return args, nil
}

func compileSchema(name string, params map[string]any) (*jsonschema.Schema, error) {
	if params == nil {
		return nil, nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	return jsonschema.CompileString("tool://"+name, string(raw))
}

// toRawAny round-trips args through JSON so the jsonschema validator sees
// plain Go values (float64 for numbers, etc.) consistent with how the
// schema was declared.
func toRawAny(args map[string]any) any {
	raw, err := json.Marshal(args)
	if err != nil {
		return args
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return args
	}
	return v
}
