package workspace

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watch observes the workspace root and the skills tree for changes,
// invalidating the load cache so a running daemon picks up operator edits
// to SOUL.md, AGENTS.md, TOOLS.md, or any SKILL.md without a restart. It
// blocks until ctx is cancelled; run it as a goroutine. If the watcher
// cannot be created the daemon simply runs uncached.
func (w *Workspace) Watch(ctx context.Context, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "workspace")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("file watcher unavailable, workspace cache disabled", "error", err)
		return
	}
	defer watcher.Close()

	watchDirs := []string{w.Root, w.SkillsDir()}
	if subdirs, err := skillSubdirs(w.SkillsDir()); err == nil {
		watchDirs = append(watchDirs, subdirs...)
	}
	for _, dir := range watchDirs {
		if err := watcher.Add(dir); err != nil {
			logger.Warn("failed to watch directory", "dir", dir, "error", err)
		}
	}

	w.enableCache()
	logger.Info("watching workspace for changes", "root", w.Root)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !relevant(w, event) {
				continue
			}
			logger.Debug("workspace changed, cache invalidated", "path", event.Name, "op", event.Op.String())
			w.invalidate()
			// A new skill directory needs its own watch so edits to
			// the SKILL.md inside it are seen.
			if event.Op.Has(fsnotify.Create) && isDirUnder(event.Name, w.SkillsDir()) {
				if err := watcher.Add(event.Name); err != nil {
					logger.Warn("failed to watch new skill directory", "dir", event.Name, "error", err)
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("workspace watcher error", "error", err)
		}
	}
}

// relevant filters events down to the files the cache is built from:
// the top-level SOUL.md, AGENTS.md, IDENTITY.md and TOOLS.md, and anything
// under skills/. Other top-level files, and session and scheduler
// churn under the same root would otherwise invalidate constantly.
func relevant(w *Workspace, event fsnotify.Event) bool {
	name := filepath.Clean(event.Name)
	if strings.HasPrefix(name, filepath.Clean(w.SkillsDir())) {
		return true
	}
	switch filepath.Base(name) {
	case "SOUL.md", "AGENTS.md", "IDENTITY.md", "TOOLS.md":
		return filepath.Dir(name) == filepath.Clean(w.Root)
	}
	return false
}

func skillSubdirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		out = append(out, filepath.Join(dir, entry.Name()))
	}
	return out, nil
}

func isDirUnder(path, parent string) bool {
	return filepath.Dir(filepath.Clean(path)) == filepath.Clean(parent)
}
