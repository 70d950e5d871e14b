// Package skills implements CRUD over named skill packages: a directory
// per skill holding a single SKILL.md with a "# Skill: <name>" header, a
// "## Description" section, an optional "## Parameters" table, an
// "## Implementation" section, and a "## Metadata" section carrying the
// creation timestamp.
package skills

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// NamePattern is the allowed shape for a skill name.
var NamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,49}$`)

// BuiltinNames is the set of tool names a skill name must not collide
// with, and that can never be deleted.
var BuiltinNames = map[string]struct{}{
	"filesystem": {}, "web": {}, "spawn": {}, "exec": {}, "message": {},
	"write_memory": {}, "search_memory": {}, "cron": {},
	"create_skill": {}, "list_skills": {}, "read_skill": {}, "delete_skill": {},
}

// Manager owns the skills/ directory.
type Manager struct {
	dir string
	now func() time.Time
}

// New creates a Manager rooted at dir (the workspace's skills/ directory).
func New(dir string) *Manager {
	return &Manager{dir: dir, now: time.Now}
}

// ValidateName enforces the name pattern, path-traversal exclusion, and
// built-in-name collision rules shared by Create and Delete.
func ValidateName(name string) error {
	if strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return fmt.Errorf("skill name must not contain '/', '\\', or '..'")
	}
	if !NamePattern.MatchString(name) {
		return fmt.Errorf("skill name %q must match %s", name, NamePattern.String())
	}
	if _, builtin := BuiltinNames[name]; builtin {
		return fmt.Errorf("skill name %q collides with a built-in tool", name)
	}
	return nil
}

// Entry is a parsed skill summary.
type Entry struct {
	Name        string
	Description string
	Parameters  string
	CreatedAt   time.Time
}

func (m *Manager) skillDir(name string) string  { return filepath.Join(m.dir, name) }
func (m *Manager) skillFile(name string) string { return filepath.Join(m.skillDir(name), "SKILL.md") }

// Create writes a new skill package. description is the short summary
// (first line under "## Description"); implementation is free-form prose
// or code describing how the skill is carried out.
func (m *Manager) Create(name, description, parameters, implementation string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if _, err := os.Stat(m.skillFile(name)); err == nil {
		return fmt.Errorf("skill %q already exists", name)
	}
	if err := os.MkdirAll(m.skillDir(name), 0o755); err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Skill: %s\n\n", name)
	fmt.Fprintf(&b, "## Description\n\n%s\n\n", strings.TrimSpace(description))
	if strings.TrimSpace(parameters) != "" {
		fmt.Fprintf(&b, "## Parameters\n\n%s\n\n", strings.TrimSpace(parameters))
	}
	fmt.Fprintf(&b, "## Implementation\n\n%s\n\n", strings.TrimSpace(implementation))
	fmt.Fprintf(&b, "## Metadata\n\n- **Created**: %s\n", m.now().Format(time.RFC3339))

	return os.WriteFile(m.skillFile(name), []byte(b.String()), 0o644)
}

// List returns every non-disabled skill (directories prefixed with "."
// are hidden) with its parsed short description.
func (m *Manager) List() ([]Entry, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []Entry
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		raw, err := os.ReadFile(m.skillFile(e.Name()))
		if err != nil {
			continue
		}
		out = append(out, parseSkill(e.Name(), string(raw)))
	}
	return out, nil
}

// Read returns the raw SKILL.md contents for name.
func (m *Manager) Read(name string) (string, error) {
	raw, err := os.ReadFile(m.skillFile(name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("skill %q not found", name)
		}
		return "", err
	}
	return string(raw), nil
}

// Delete removes a skill package. Deleting a built-in name is rejected
// (ValidateName already refuses built-in names at Create time, but Delete
// re-checks since a name could theoretically be requested directly).
func (m *Manager) Delete(name string) error {
	if _, builtin := BuiltinNames[name]; builtin {
		return fmt.Errorf("cannot delete built-in tool %q", name)
	}
	if err := ValidateName(name); err != nil {
		return err
	}
	dir := m.skillDir(name)
	if _, err := os.Stat(filepath.Join(dir, "SKILL.md")); err != nil {
		return fmt.Errorf("skill %q not found", name)
	}
	return os.RemoveAll(dir)
}

var descHeading = regexp.MustCompile(`(?m)^## Description\s*$`)
var paramsHeading = regexp.MustCompile(`(?m)^## Parameters\s*$`)
var nextHeading = regexp.MustCompile(`(?m)^## `)
var createdLine = regexp.MustCompile(`-\s*\*\*Created\*\*:\s*(\S+)`)

func parseSkill(name, raw string) Entry {
	e := Entry{Name: name}
	if loc := descHeading.FindStringIndex(raw); loc != nil {
		rest := raw[loc[1]:]
		if end := nextHeading.FindStringIndex(rest); end != nil {
			rest = rest[:end[0]]
		}
		e.Description = firstNonEmptyLine(rest)
	}
	if loc := paramsHeading.FindStringIndex(raw); loc != nil {
		rest := raw[loc[1]:]
		if end := nextHeading.FindStringIndex(rest); end != nil {
			rest = rest[:end[0]]
		}
		e.Parameters = strings.TrimSpace(rest)
	}
	if m := createdLine.FindStringSubmatch(raw); m != nil {
		if t, err := time.Parse(time.RFC3339, m[1]); err == nil {
			e.CreatedAt = t
		}
	}
	return e
}

func firstNonEmptyLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}
