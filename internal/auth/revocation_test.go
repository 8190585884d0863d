package auth

import (
	"sync"
	"testing"
	"time"
)

func TestRevocationList(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewRevocationList()
	l.now = func() time.Time { return now }

	l.Revoke("a", now.Add(time.Minute))
	l.Revoke("b", now.Add(time.Hour))
	l.Revoke("", now.Add(time.Hour)) // ignored

	if !l.IsRevoked("a") || !l.IsRevoked("b") {
		t.Fatal("IsRevoked() = false for freshly revoked ids")
	}
	if l.IsRevoked("c") {
		t.Error("IsRevoked(c) = true for an id never revoked")
	}
	if l.Len() != 2 {
		t.Errorf("Len() = %d, want 2", l.Len())
	}

	// Past a's expiry it is no longer reported and gets pruned.
	now = now.Add(2 * time.Minute)
	if l.IsRevoked("a") {
		t.Error("IsRevoked(a) = true after its expiry")
	}
	if l.Len() != 1 {
		t.Errorf("Len() after prune = %d, want 1", l.Len())
	}
}

func TestRevocationList_Concurrent(t *testing.T) {
	l := NewRevocationList()
	exp := time.Now().Add(time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i%26))
			l.Revoke(id, exp)
			l.IsRevoked(id)
		}(i)
	}
	wg.Wait()

	if l.Len() != 26 {
		t.Errorf("Len() = %d, want 26", l.Len())
	}
}
