// Package sessions implements the in-memory session map with dirty-tracked,
// atomically-persisted JSON snapshots: a RWMutex-guarded map,
// clone-on-read, and a separate dirty set drained by a background flush
// cycle.
package sessions

import (
	"sync"
	"time"

	"github.com/mattdef/miniclaw-sub000/internal/models"
)

// Store holds every active session in memory and tracks which have
// unpersisted changes. Disk I/O happens in Manager (Persist, SaveAll,
// LoadAll, Sweep); Store itself never does I/O while holding mu.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
	dirty    map[string]struct{}
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*models.Session),
		dirty:    make(map[string]struct{}),
	}
}

// Get returns a clone of the session, if present in memory.
func (s *Store) Get(sessionID string) (*models.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, false
	}
	return sess.Clone(), true
}

// Insert installs sess into memory and marks it dirty. Used both for
// freshly-created sessions and for sessions loaded from disk at startup
// (where dirty is left unset by the caller via InsertClean).
func (s *Store) Insert(sess *models.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.SessionID] = sess
	s.dirty[sess.SessionID] = struct{}{}
}

// InsertClean installs sess into memory without marking it dirty, for
// sessions just loaded from disk that already match what's on disk.
func (s *Store) InsertClean(sess *models.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.SessionID] = sess
}

// AddMessage appends msg to the named session's history, marking it dirty.
// It is a no-op if the session isn't loaded.
func (s *Store) AddMessage(sessionID string, msg models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return
	}
	sess.AddMessage(msg)
	s.dirty[sessionID] = struct{}{}
}

// Update replaces the stored session wholesale and marks it dirty.
func (s *Store) Update(sess *models.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.SessionID] = sess
	s.dirty[sess.SessionID] = struct{}{}
}

// Delete drops a session from memory and the dirty set (not from disk).
func (s *Store) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	delete(s.dirty, sessionID)
}

// Len reports the number of sessions currently held in memory.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// drainDirty clears the dirty set and returns clones of every session that
// was marked dirty, so the caller can persist them without holding mu.
func (s *Store) drainDirty() []*models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.dirty) == 0 {
		return nil
	}
	out := make([]*models.Session, 0, len(s.dirty))
	for id := range s.dirty {
		if sess, ok := s.sessions[id]; ok {
			out = append(out, sess.Clone())
		}
	}
	s.dirty = make(map[string]struct{})
	return out
}

// requeueDirty re-marks sessions as dirty after a failed persistence
// attempt, so the next flush cycle retries them.
func (s *Store) requeueDirty(ids []string) {
	if len(ids) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.dirty[id] = struct{}{}
	}
}

// clearDirty drops sessionID's dirty mark after a successful direct persist.
func (s *Store) clearDirty(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.dirty, sessionID)
}

// touchLastAccessed bumps last_accessed on a read without adding a message.
func (s *Store) touchLastAccessed(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[sessionID]; ok {
		sess.LastAccessed = time.Now()
		s.dirty[sessionID] = struct{}{}
	}
}
