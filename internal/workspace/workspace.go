// Package workspace loads the operator-owned directory that roots every
// markdown config, memory, skills, and session file: best-effort reads of
// a fixed set of well-known files, each optional, never fatal if absent.
// When the file watcher is running, loads are served from an in-memory
// cache invalidated on change, so a busy daemon doesn't re-read the same
// markdown on every turn.
package workspace

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// DefaultBuiltinFallback is the system-layer text used when both SOUL.md
// and AGENTS.md are missing, so the assembled prompt is never empty.
const DefaultBuiltinFallback = "You are a helpful autonomous assistant. Use the tools available to you to help the operator."

// Workspace points at the operator's workspace root and resolves the
// well-known files and directories beneath it.
type Workspace struct {
	Root string

	mu      sync.RWMutex
	caching bool
	system  *string
	tools   *toolsCache
	skills  []SkillSummary
}

type toolsCache struct {
	content string
	present bool
}

// New creates a Workspace rooted at root, creating it (and its standard
// subdirectories) if absent.
func New(root string) (*Workspace, error) {
	for _, dir := range []string{root, filepath.Join(root, "memory"), filepath.Join(root, "skills"), filepath.Join(root, "sessions"), filepath.Join(root, "scheduler")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return &Workspace{Root: root}, nil
}

func (w *Workspace) path(parts ...string) string {
	return filepath.Join(append([]string{w.Root}, parts...)...)
}

// readOptional reads a file, returning "" (no error) if it doesn't exist.
func readOptional(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return string(raw), nil
}

// enableCache turns on load caching; called by the watcher once it is
// actually observing changes. Without the watcher, every load re-reads.
func (w *Workspace) enableCache() {
	w.mu.Lock()
	w.caching = true
	w.mu.Unlock()
}

// invalidate drops every cached load; called by the watcher on any change
// to a file the cache is built from.
func (w *Workspace) invalidate() {
	w.mu.Lock()
	w.system = nil
	w.tools = nil
	w.skills = nil
	w.mu.Unlock()
}

// LoadSystem concatenates SOUL.md and AGENTS.md (plus IDENTITY.md, when
// present, as flavor text). Falls back to DefaultBuiltinFallback when both
// SOUL.md and AGENTS.md are missing.
func (w *Workspace) LoadSystem() (string, error) {
	w.mu.RLock()
	if w.caching && w.system != nil {
		cached := *w.system
		w.mu.RUnlock()
		return cached, nil
	}
	w.mu.RUnlock()

	soul, err := readOptional(w.path("SOUL.md"))
	if err != nil {
		return "", err
	}
	agents, err := readOptional(w.path("AGENTS.md"))
	if err != nil {
		return "", err
	}
	identity, err := readOptional(w.path("IDENTITY.md"))
	if err != nil {
		return "", err
	}

	var parts []string
	for _, p := range []string{soul, agents} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, strings.TrimSpace(p))
		}
	}
	if len(parts) == 0 {
		parts = append(parts, DefaultBuiltinFallback)
	}
	if strings.TrimSpace(identity) != "" {
		parts = append(parts, strings.TrimSpace(identity))
	}
	system := strings.Join(parts, "\n\n")

	w.mu.Lock()
	if w.caching {
		w.system = &system
	}
	w.mu.Unlock()
	return system, nil
}

// LoadMemoryLines returns the first maxEntries lines of memory/MEMORY.md,
// or ("", false) if the file is absent. Memory is append-heavy and read
// with a caller-chosen window, so it is never cached.
func (w *Workspace) LoadMemoryLines(maxEntries int) (string, bool, error) {
	raw, err := readOptional(w.path("memory", "MEMORY.md"))
	if err != nil {
		return "", false, err
	}
	if strings.TrimSpace(raw) == "" {
		return "", false, nil
	}
	lines := strings.Split(raw, "\n")
	if len(lines) > maxEntries {
		lines = lines[:maxEntries]
	}
	return strings.Join(lines, "\n"), true, nil
}

// LoadTools returns the contents of TOOLS.md, or ("", false) if absent.
func (w *Workspace) LoadTools() (string, bool, error) {
	w.mu.RLock()
	if w.caching && w.tools != nil {
		cached := *w.tools
		w.mu.RUnlock()
		return cached.content, cached.present, nil
	}
	w.mu.RUnlock()

	raw, err := readOptional(w.path("TOOLS.md"))
	if err != nil {
		return "", false, err
	}
	result := toolsCache{content: raw, present: strings.TrimSpace(raw) != ""}
	if !result.present {
		result.content = ""
	}

	w.mu.Lock()
	if w.caching {
		w.tools = &result
	}
	w.mu.Unlock()
	return result.content, result.present, nil
}

// SkillSummary is one line of the skills layer: a name plus its short
// description (the first non-empty trimmed line of its SKILL.md).
type SkillSummary struct {
	Name    string
	Summary string
}

// LoadSkills lists every subdirectory of skills/ containing a SKILL.md,
// skipping names prefixed with "." (disabled skills). Results are sorted by
// name for deterministic prompt assembly.
func (w *Workspace) LoadSkills() ([]SkillSummary, error) {
	w.mu.RLock()
	if w.caching && w.skills != nil {
		cached := append([]SkillSummary(nil), w.skills...)
		w.mu.RUnlock()
		return cached, nil
	}
	w.mu.RUnlock()

	dir := w.path("skills")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	out := make([]SkillSummary, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		skillFile := filepath.Join(dir, entry.Name(), "SKILL.md")
		raw, err := readOptional(skillFile)
		if err != nil || strings.TrimSpace(raw) == "" {
			continue
		}
		out = append(out, SkillSummary{Name: entry.Name(), Summary: firstNonEmptyLine(raw)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	w.mu.Lock()
	if w.caching {
		w.skills = append([]SkillSummary(nil), out...)
	}
	w.mu.Unlock()
	return out, nil
}

// SessionsDir is the directory session JSON files live under.
func (w *Workspace) SessionsDir() string { return w.path("sessions") }

// SchedulerDir is the directory the scheduler persists its job map under.
func (w *Workspace) SchedulerDir() string { return w.path("scheduler") }

// MemoryDir is the directory holding MEMORY.md and daily notes.
func (w *Workspace) MemoryDir() string { return w.path("memory") }

// SkillsDir is the root directory for named skill packages.
func (w *Workspace) SkillsDir() string { return w.path("skills") }

// HeartbeatPath is the workspace file the scheduler's built-in heartbeat
// job type appends timestamped lines to.
func (w *Workspace) HeartbeatPath() string { return w.path("HEARTBEAT.md") }

func firstNonEmptyLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}
