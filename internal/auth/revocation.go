package auth

import (
	"sync"
	"time"
)

// RevocationList remembers logged-out token IDs until the tokens expire.
//
// Entries are dropped once their expiry passes; an expired token fails
// validation on its own, so keeping it around would only leak memory.
// The list is in-memory: a restart forgets it, which is fine because a
// restart without a fixed JWT_SECRET invalidates every token anyway.
type RevocationList struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewRevocationList() *RevocationList {
	return &RevocationList{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Revoke records jti as revoked until expiresAt.
func (l *RevocationList) Revoke(jti string, expiresAt time.Time) {
	if jti == "" {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneLocked()
	l.entries[jti] = expiresAt
}

// IsRevoked reports whether jti was revoked and has not yet expired.
func (l *RevocationList) IsRevoked(jti string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	exp, ok := l.entries[jti]
	return ok && l.now().Before(exp)
}

// Len is the number of live entries. Tests use it to check pruning.
func (l *RevocationList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneLocked()
	return len(l.entries)
}

// pruneLocked must be called with mu held.
func (l *RevocationList) pruneLocked() {
	now := l.now()
	for jti, exp := range l.entries {
		if !now.Before(exp) {
			delete(l.entries, jti)
		}
	}
}
