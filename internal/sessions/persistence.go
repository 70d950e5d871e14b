package sessions

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mattdef/miniclaw-sub000/internal/errs"
	"github.com/mattdef/miniclaw-sub000/internal/models"
)

// maxPersistRetries and the backoff schedule mirror the retry policy
// described for session persistence: transient IO errors are retried with
// exponential backoff (100ms * 2^attempt) before the write is given up on.
const maxPersistRetries = 3

// flushFanOut bounds how many sessions are persisted concurrently during a
// dirty-set drain.
const flushFanOut = 8

// Manager owns the in-memory Store plus its on-disk mirror under dir. It is
// the unit the daemon supervisor wires up: one Manager per running process.
type Manager struct {
	store  *Store
	dir    string
	logger *slog.Logger
}

// NewManager creates a Manager rooted at dir (the workspace's sessions/
// directory). The directory is created if absent.
func NewManager(dir string, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.IO(dir, err)
	}
	return &Manager{
		store:  NewStore(),
		dir:    dir,
		logger: logger.With("component", "sessions"),
	}, nil
}

func (m *Manager) sessionPath(sessionID string) string {
	return filepath.Join(m.dir, sessionID+".json")
}

// GetOrCreate returns the session for channel/chatID, creating a fresh one
// (inserted into memory and marked dirty, not written to disk here) if
// neither memory nor disk has it.
func (m *Manager) GetOrCreate(ctx context.Context, channel, chatID string) (*models.Session, error) {
	sessionID := models.SessionKey(channel, chatID)
	if sess, ok := m.store.Get(sessionID); ok {
		m.store.touchLastAccessed(sessionID)
		sess.LastAccessed = time.Now()
		return sess, nil
	}

	sess, err := m.loadSession(ctx, sessionID)
	if err == nil {
		m.store.InsertClean(sess)
		return sess.Clone(), nil
	}

	fresh := models.NewSession(channel, chatID)
	m.store.Insert(fresh)
	return fresh.Clone(), nil
}

// AddMessage appends msg to sessionID's history.
func (m *Manager) AddMessage(sessionID string, msg models.Message) {
	m.store.AddMessage(sessionID, msg)
}

// Update replaces sess in memory wholesale.
func (m *Manager) Update(sess *models.Session) {
	m.store.Update(sess)
}

// Get returns a clone of the in-memory session, if loaded.
func (m *Manager) Get(sessionID string) (*models.Session, bool) {
	return m.store.Get(sessionID)
}

// Len reports the number of sessions currently in memory.
func (m *Manager) Len() int {
	return m.store.Len()
}

// Persist writes the named session to disk immediately (with the usual
// retry policy), clearing its dirty mark on success. Failures leave the
// session dirty for the next AutoPersist cycle to retry.
func (m *Manager) Persist(ctx context.Context, sessionID string) error {
	sess, ok := m.store.Get(sessionID)
	if !ok {
		return nil
	}
	if err := m.persistWithRetry(ctx, sess); err != nil {
		return err
	}
	m.store.clearDirty(sessionID)
	return nil
}

// loadSession reads and parses a single session file, quarantining it on a
// deserialization failure and synthesizing an empty replacement.
func (m *Manager) loadSession(ctx context.Context, sessionID string) (*models.Session, error) {
	path := m.sessionPath(sessionID)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.IO(path, err)
		}
		return nil, errs.IO(path, err)
	}

	var sess models.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		m.logger.Error("corrupted session file", "session_id", sessionID, "error", err)
		return m.quarantine(ctx, sessionID, path)
	}
	m.logger.Info("loaded session", "session_id", sessionID)
	return &sess, nil
}

// quarantine renames a corrupted session file aside and writes a fresh
// empty session in its place, so the session ID keeps working going
// forward.
func (m *Manager) quarantine(ctx context.Context, sessionID, path string) (*models.Session, error) {
	corrupted := path + ".corrupted"
	if err := os.Rename(path, corrupted); err != nil {
		return nil, errs.SessionPersistence(sessionID, "failed to quarantine corrupted file: "+err.Error())
	}
	m.logger.Warn("quarantined corrupted session", "session_id", sessionID, "moved_to", corrupted)

	channel, chatID := models.SplitSessionID(sessionID)
	fresh := models.NewSession(channel, chatID)
	if err := m.persistWithRetry(ctx, fresh); err != nil {
		return nil, err
	}
	return fresh, nil
}

// LoadAll populates the in-memory store from every *.json file under the
// sessions directory. Per-session load failures are logged and skipped;
// they never abort the overall load.
func (m *Manager) LoadAll(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, errs.IO(m.dir, err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		sessionID := strings.TrimSuffix(entry.Name(), ".json")
		sess, err := m.loadSession(ctx, sessionID)
		if err != nil {
			m.logger.Warn("failed to load session", "session_id", sessionID, "error", err)
			continue
		}
		m.store.InsertClean(sess)
		loaded++
	}
	m.logger.Info("loaded sessions from disk", "count", loaded)
	return loaded, nil
}

// SaveAll drains the dirty set and persists each affected session, fanning
// out up to flushFanOut writes concurrently. Sessions that fail to persist
// are re-marked dirty for the next cycle.
func (m *Manager) SaveAll(ctx context.Context) {
	dirty := m.store.drainDirty()
	if len(dirty) == 0 {
		return
	}

	sem := make(chan struct{}, flushFanOut)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var failed []string

	for _, sess := range dirty {
		sess := sess
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			if err := m.persistWithRetry(ctx, sess); err != nil {
				m.logger.Error("session persistence failed", "session_id", sess.SessionID, "error", err)
				mu.Lock()
				failed = append(failed, sess.SessionID)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	m.store.requeueDirty(failed)
}

// persistWithRetry writes sess atomically, retrying transient IO failures
// with exponential backoff.
func (m *Manager) persistWithRetry(ctx context.Context, sess *models.Session) error {
	var lastErr error
	for attempt := 0; attempt <= maxPersistRetries; attempt++ {
		err := m.atomicWrite(sess)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt == maxPersistRetries || !errs.IsTransient(err) {
			return err
		}
		backoff := 100 * time.Millisecond * time.Duration(1<<uint(attempt))
		m.logger.Warn("session persistence retrying", "session_id", sess.SessionID,
			"attempt", attempt+1, "backoff", backoff, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return lastErr
}

// atomicWrite implements the write-temp / chmod / rename protocol: the
// session is never visible on disk in a partially-written state.
func (m *Manager) atomicWrite(sess *models.Session) error {
	path := m.sessionPath(sess.SessionID)
	tmpPath := strings.TrimSuffix(path, ".json") + ".tmp"

	raw, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return errs.Serialization("encode session " + sess.SessionID + ": " + err.Error())
	}

	if err := os.WriteFile(tmpPath, raw, 0o600); err != nil {
		os.Remove(tmpPath)
		return errs.IO(tmpPath, err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		os.Remove(tmpPath)
		return errs.IO(tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errs.SessionPersistence(sess.SessionID, "failed to atomically rename file: "+err.Error())
	}
	return nil
}

// AutoPersist runs SaveAll every interval until ctx is cancelled. It is
// meant to be launched as a goroutine by the daemon supervisor.
func (m *Manager) AutoPersist(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.SaveAll(ctx)
		}
	}
}
