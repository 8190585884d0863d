package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var alice = Identity{UserID: 1, Username: "alice"}

// newTestTokenService creates a TokenService for testing.
// It uses a fixed, known secret so tests are deterministic.
func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

// =========================================================================
// TOKEN SERVICE CONSTRUCTION TESTS
// =========================================================================

func TestNewTokenService_ShortSecret(t *testing.T) {
	_, err := NewTokenService("short", time.Hour)
	if err == nil {
		t.Fatal("NewTokenService() should reject secrets shorter than 16 chars")
	}
}

func TestNewTokenService_DefaultTTL(t *testing.T) {
	ts, err := NewTokenService("this-is-16-chars", 0)
	if err != nil {
		t.Fatalf("NewTokenService() unexpected error for valid secret: %v", err)
	}
	if ts.TTL() != DefaultTTL {
		t.Errorf("TTL() = %v, want %v", ts.TTL(), DefaultTTL)
	}
}

// =========================================================================
// GENERATE TESTS
// =========================================================================

func TestGenerate_ReturnsJWT(t *testing.T) {
	ts := newTestTokenService(t)

	token, sess, err := ts.Generate(alice)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	// header.payload.signature
	if n := strings.Count(token, "."); n != 2 {
		t.Errorf("Generate() token doesn't look like a JWT (expected 2 dots, got %d)", n)
	}
	if sess.TokenID == "" {
		t.Error("Generate() session has no TokenID")
	}
	if d := time.Until(sess.ExpiresAt); d <= 59*time.Minute || d > time.Hour {
		t.Errorf("ExpiresAt is %v from now, want ~1h", d)
	}
}

func TestGenerate_UniqueTokenIDs(t *testing.T) {
	ts := newTestTokenService(t)

	// Same identity, same second: the jti still differs.
	tok1, s1, _ := ts.Generate(alice)
	tok2, s2, _ := ts.Generate(alice)

	if s1.TokenID == s2.TokenID {
		t.Error("Generate() reused a token ID")
	}
	if tok1 == tok2 {
		t.Error("Generate() returned identical tokens")
	}
}

// =========================================================================
// VALIDATE TESTS
// =========================================================================

func TestValidate_RoundTrip(t *testing.T) {
	ts := newTestTokenService(t)

	token, issued, err := ts.Generate(alice)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	got, err := ts.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got.UserID != alice.UserID || got.Username != alice.Username {
		t.Errorf("Validate() = %+v, want identity %+v", got, alice)
	}
	if got.TokenID != issued.TokenID {
		t.Errorf("TokenID = %q, want %q", got.TokenID, issued.TokenID)
	}
	if !got.ExpiresAt.Equal(issued.ExpiresAt) {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, issued.ExpiresAt)
	}
}

func TestValidate_ExpiredToken(t *testing.T) {
	ts := newTestTokenService(t)

	token, _, err := ts.GenerateWithDuration(alice, -1*time.Second)
	if err != nil {
		t.Fatalf("GenerateWithDuration() error = %v", err)
	}

	if _, err := ts.Validate(token); err == nil {
		t.Fatal("Validate() should return an error for an expired token")
	}
}

func TestValidate_TamperedToken(t *testing.T) {
	ts := newTestTokenService(t)

	token, _, _ := ts.Generate(alice)
	tampered := token[:len(token)-3] + "xxx"

	if _, err := ts.Validate(tampered); err == nil {
		t.Fatal("Validate() should return an error for a tampered token")
	}
}

func TestValidate_WrongSecret(t *testing.T) {
	ts1, _ := NewTokenService("correct-secret-32-chars-long!!!!", time.Hour)
	ts2, _ := NewTokenService("wrong-secret-32-chars-long!!!!!!", time.Hour)

	token, _, _ := ts1.Generate(alice)

	if _, err := ts2.Validate(token); err == nil {
		t.Fatal("Validate() should fail when using a different secret")
	}
}

func TestValidate_EmptyAndGarbage(t *testing.T) {
	ts := newTestTokenService(t)

	for _, in := range []string{"", "not.a.jwt.token", "abc"} {
		if _, err := ts.Validate(in); err == nil {
			t.Errorf("Validate(%q) should return an error", in)
		}
	}
}

func TestValidate_ZeroUserID(t *testing.T) {
	ts := newTestTokenService(t)

	token, _, _ := ts.Generate(Identity{UserID: 0, Username: "nobody"})
	if _, err := ts.Validate(token); err == nil {
		t.Fatal("Validate() should reject a token with user id 0")
	}
}

// =========================================================================
// REVOCATION TESTS
// =========================================================================

func TestRevoke(t *testing.T) {
	ts := newTestTokenService(t)

	token, sess, _ := ts.Generate(alice)
	other, _, _ := ts.Generate(alice)

	ts.Revoke(sess)

	_, err := ts.Validate(token)
	if !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("Validate(revoked) error = %v, want ErrTokenRevoked", err)
	}

	// Revocation is per token, not per user.
	if _, err := ts.Validate(other); err != nil {
		t.Errorf("Validate(other) error = %v, want nil", err)
	}
}
