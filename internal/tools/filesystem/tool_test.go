package filesystem

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTool(t *testing.T) (*Tool, string) {
	t.Helper()
	base := t.TempDir()
	tool, err := New(base, nil)
	require.NoError(t, err)
	return tool, base
}

func TestWriteThenRead(t *testing.T) {
	tool, _ := newTool(t)
	ctx := context.Background()

	_, err := tool.Execute(ctx, map[string]any{"operation": "write", "path": "notes/a.txt", "content": "hello"})
	require.NoError(t, err)

	out, err := tool.Execute(ctx, map[string]any{"operation": "read", "path": "notes/a.txt"})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestReadRefusesDirectory(t *testing.T) {
	tool, base := newTool(t)
	require.NoError(t, os.MkdirAll(filepath.Join(base, "sub"), 0o755))

	_, err := tool.Execute(context.Background(), map[string]any{"operation": "read", "path": "sub"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "directory")
}

func TestListReturnsTypedEntries(t *testing.T) {
	tool, base := newTool(t)
	require.NoError(t, os.MkdirAll(filepath.Join(base, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(base, "f.txt"), []byte("x"), 0o644))

	out, err := tool.Execute(context.Background(), map[string]any{"operation": "list", "path": "."})
	require.NoError(t, err)

	var entries []listEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	types := map[string]string{}
	for _, e := range entries {
		types[e.Name] = e.Type
	}
	assert.Equal(t, "file", types["f.txt"])
	assert.Equal(t, "directory", types["sub"])
}

func TestTraversalRefused(t *testing.T) {
	tool, base := newTool(t)
	_, err := tool.Execute(context.Background(), map[string]any{"operation": "read", "path": "../../etc/passwd"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")

	// Nothing may have been created or read outside the base.
	entries, readErr := os.ReadDir(base)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestUnknownOperation(t *testing.T) {
	tool, _ := newTool(t)
	_, err := tool.Execute(context.Background(), map[string]any{"operation": "move", "path": "a"})
	assert.Error(t, err)
}
