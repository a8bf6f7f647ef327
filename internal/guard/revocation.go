package guard

import (
	"sync"
	"time"
)

// Revocations holds session ids that were signed out before their token
// expired. Entries are dropped once the token would have expired anyway.
type Revocations struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewRevocations() *Revocations {
	return &Revocations{entries: make(map[string]time.Time), now: time.Now}
}

// Revoke marks sessionID as signed out until its token expiry.
func (r *Revocations) Revoke(sessionID string, until time.Time) {
	if sessionID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()
	r.entries[sessionID] = until
}

func (r *Revocations) IsRevoked(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	until, ok := r.entries[sessionID]
	return ok && r.now().Before(until)
}

func (r *Revocations) sweepLocked() {
	now := r.now()
	for id, until := range r.entries {
		if !now.Before(until) {
			delete(r.entries, id)
		}
	}
}
