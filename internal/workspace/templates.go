package workspace

import (
	"log/slog"
	"os"
)

// starter contents for a fresh workspace. Deliberately short: these are
// the operator's files to grow, not ours.
var templates = map[string]string{
	"SOUL.md": `# Soul

You are miniclaw, a persistent personal assistant. You are direct,
resourceful, and honest about what you don't know.
`,
	"AGENTS.md": `# Agents

Operating guidance for this workspace. Keep replies concise. Prefer tools
over guessing. Record anything worth remembering with the memory tools.
`,
	"USER.md": `# User

Notes about the operator go here. The agent reads this file; fill in
preferences, context, and standing instructions.
`,
	"TOOLS.md": `# Tools

Notes on tool usage specific to this workspace.

- filesystem paths are relative to the workspace root
- use write_memory for anything that should survive the session window
`,
	"HEARTBEAT.md": `# Heartbeat
`,
	"memory/MEMORY.md": `# Memory
`,
}

// Scaffold writes the starter files for any well-known workspace file
// that doesn't exist yet. Existing files are never touched.
func (w *Workspace) Scaffold(logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	for rel, content := range templates {
		path := w.path(rel)
		if _, err := os.Stat(path); err == nil {
			continue
		} else if !os.IsNotExist(err) {
			return err
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return err
		}
		logger.Info("created workspace file", "path", rel)
	}
	return nil
}
