package lifecycle

import (
	"sync"
	"time"
)

// DismissedSet holds the feed item ids hidden by one session.
// A nil set hides nothing.
type DismissedSet map[string]struct{}

func (d DismissedSet) Has(id string) bool {
	if d == nil {
		return false
	}
	_, ok := d[id]
	return ok
}

// DismissStore keeps a DismissedSet per session in memory. Dismissals hide
// items from that session's feed only; the backing records are untouched
// and everything is forgotten when the session goes idle or the process
// restarts.
type DismissStore struct {
	mu       sync.Mutex
	sessions map[string]*dismissEntry
	ttl      time.Duration
	now      func() time.Time
}

type dismissEntry struct {
	ids      DismissedSet
	lastSeen time.Time
}

func NewDismissStore(ttl time.Duration) *DismissStore {
	return &DismissStore{
		sessions: make(map[string]*dismissEntry),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Dismiss hides itemID for sessionID.
func (s *DismissStore) Dismiss(sessionID, itemID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()

	e, ok := s.sessions[sessionID]
	if !ok {
		e = &dismissEntry{ids: make(DismissedSet)}
		s.sessions[sessionID] = e
	}
	e.ids[itemID] = struct{}{}
	e.lastSeen = s.now()
}

// Snapshot returns a copy of the set of sessionID.
func (s *DismissStore) Snapshot(sessionID string) DismissedSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()

	e, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	e.lastSeen = s.now()
	out := make(DismissedSet, len(e.ids))
	for id := range e.ids {
		out[id] = struct{}{}
	}
	return out
}

// Forget drops the set of sessionID, e.g. on sign-out.
func (s *DismissStore) Forget(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

func (s *DismissStore) sweepLocked() {
	if s.ttl <= 0 {
		return
	}
	cutoff := s.now().Add(-s.ttl)
	for id, e := range s.sessions {
		if e.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
		}
	}
}
