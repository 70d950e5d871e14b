package sessions

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/mattdef/miniclaw-sub000/internal/models"
)

// SessionTTL is the age past which a session file is considered stale.
// Expiry is strict: a session last accessed exactly SessionTTL ago is not
// yet expired.
const SessionTTL = 30 * 24 * time.Hour

// CleanupInterval is the cadence of the background TTL sweep.
const CleanupInterval = 24 * time.Hour

// CleanupStats summarizes one sweep of the sessions directory.
type CleanupStats struct {
	SessionsScanned int
	SessionsDeleted int
	BytesFreed      int64
}

// isExpired reports whether lastAccessed is older than SessionTTL, using a
// strict greater-than so a session accessed exactly on the boundary is kept.
func isExpired(lastAccessed time.Time, now time.Time) bool {
	return now.Sub(lastAccessed) > SessionTTL
}

// Sweep scans the sessions directory once, deleting files whose
// last_accessed has exceeded the TTL. Files that fail to parse are skipped,
// never deleted: a malformed file is left for the persistence layer's
// corruption-recovery path to handle on next load.
func (m *Manager) Sweep(ctx context.Context) CleanupStats {
	var stats CleanupStats

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		m.logger.Error("session cleanup: failed to read directory", "error", err)
		return stats
	}

	now := time.Now()
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(m.dir, entry.Name())
		stats.SessionsScanned++

		raw, err := os.ReadFile(path)
		if err != nil {
			m.logger.Warn("session cleanup: failed to read file", "path", path, "error", err)
			continue
		}
		var sess models.Session
		if err := json.Unmarshal(raw, &sess); err != nil {
			m.logger.Warn("session cleanup: skipping unparseable file", "path", path, "error", err)
			continue
		}
		if !isExpired(sess.LastAccessed, now) {
			continue
		}

		info, statErr := entry.Info()
		var size int64
		if statErr == nil {
			size = info.Size()
		}
		if err := os.Remove(path); err != nil {
			m.logger.Warn("session cleanup: failed to delete expired session", "path", path, "error", err)
			continue
		}
		m.store.Delete(sess.SessionID)
		stats.SessionsDeleted++
		stats.BytesFreed += size
	}

	m.logger.Info("session cleanup complete",
		"sessions_scanned", stats.SessionsScanned,
		"sessions_deleted", stats.SessionsDeleted,
		"bytes_freed", stats.BytesFreed)
	return stats
}

// RunCleanup runs Sweep every CleanupInterval until ctx is cancelled. It is
// meant to be launched as a goroutine by the daemon supervisor.
func (m *Manager) RunCleanup(ctx context.Context) {
	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}
