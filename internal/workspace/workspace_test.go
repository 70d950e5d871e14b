package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWorkspace(t *testing.T) *Workspace {
	t.Helper()
	ws, err := New(t.TempDir())
	require.NoError(t, err)
	return ws
}

func TestNewCreatesStandardDirs(t *testing.T) {
	ws := newWorkspace(t)
	for _, dir := range []string{ws.MemoryDir(), ws.SkillsDir(), ws.SessionsDir(), ws.SchedulerDir()} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestLoadSystemFallback(t *testing.T) {
	ws := newWorkspace(t)
	got, err := ws.LoadSystem()
	require.NoError(t, err)
	assert.Equal(t, DefaultBuiltinFallback, got)
}

func TestLoadSystemConcatenates(t *testing.T) {
	ws := newWorkspace(t)
	require.NoError(t, os.WriteFile(filepath.Join(ws.Root, "SOUL.md"), []byte("soul part"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(ws.Root, "AGENTS.md"), []byte("agents part"), 0o644))

	got, err := ws.LoadSystem()
	require.NoError(t, err)
	assert.Equal(t, "soul part\n\nagents part", got)
}

func TestLoadSkillsSkipsHiddenAndEmpty(t *testing.T) {
	ws := newWorkspace(t)
	mkSkill := func(name, content string) {
		dir := filepath.Join(ws.SkillsDir(), name)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte(content), 0o644))
	}
	mkSkill("beta", "Second skill")
	mkSkill("alpha", "First skill")
	mkSkill(".hidden", "Disabled skill")
	require.NoError(t, os.MkdirAll(filepath.Join(ws.SkillsDir(), "no_skill_md"), 0o755))

	skills, err := ws.LoadSkills()
	require.NoError(t, err)
	require.Len(t, skills, 2)
	assert.Equal(t, "alpha", skills[0].Name, "results are sorted by name")
	assert.Equal(t, "First skill", skills[0].Summary)
	assert.Equal(t, "beta", skills[1].Name)
}

func TestCacheServesStaleUntilInvalidated(t *testing.T) {
	ws := newWorkspace(t)
	path := filepath.Join(ws.Root, "TOOLS.md")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	ws.enableCache()
	got, present, err := ws.LoadTools()
	require.NoError(t, err)
	require.True(t, present)
	assert.Equal(t, "v1", got)

	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o644))
	got, _, err = ws.LoadTools()
	require.NoError(t, err)
	assert.Equal(t, "v1", got, "cached value is served until invalidated")

	ws.invalidate()
	got, _, err = ws.LoadTools()
	require.NoError(t, err)
	assert.Equal(t, "v2", got)
}

func TestScaffoldCreatesMissingFilesOnly(t *testing.T) {
	ws := newWorkspace(t)
	custom := filepath.Join(ws.Root, "SOUL.md")
	require.NoError(t, os.WriteFile(custom, []byte("my custom soul"), 0o644))

	require.NoError(t, ws.Scaffold(nil))

	raw, err := os.ReadFile(custom)
	require.NoError(t, err)
	assert.Equal(t, "my custom soul", string(raw), "existing files are never touched")

	for _, rel := range []string{"AGENTS.md", "USER.md", "TOOLS.md", "HEARTBEAT.md"} {
		_, err := os.Stat(filepath.Join(ws.Root, rel))
		assert.NoError(t, err, "%s should be scaffolded", rel)
	}
}
