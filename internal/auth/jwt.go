// Package auth issues and checks the session tokens for Co_Lab accounts.
//
// SESSION FLOW OVERVIEW:
//  1. Client POSTs /user/login with username + password
//  2. The account service verifies the bcrypt digest
//  3. The handler issues a JWT and stores it in the HttpOnly "token" cookie
//  4. On later calls, RequireAuth reads the cookie (or a Bearer header),
//     validates the JWT and puts a Session in the request context
//  5. GET /user/logout revokes the token's ID and clears the cookie
//
// WHY JWT + A REVOCATION LIST?
// A JWT is self-contained: the signature proves we issued it, and the claims
// say who it belongs to, so no DB lookup is needed per request. The one thing a
// JWT can't do on its own is die early. Logout therefore records the token's
// "jti" claim in a small in-memory list until the token would have expired
// anyway.
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: {"alg":"HS256","typ":"JWT"}
//	- Payload: {"sub":"1","username":"alice","jti":"...","exp":1234567890}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"
)

const (
	issuer = "colab"

	// DefaultTTL is how long a session lasts when no TTL is configured.
	DefaultTTL = 24 * time.Hour
)

// ErrTokenRevoked is returned by Validate for a token that was logged out.
var ErrTokenRevoked = errors.New("auth: token revoked")

// Identity is who a token is issued for.
type Identity struct {
	UserID   int64
	Username string
}

// Session is the validated content of a token.
type Session struct {
	UserID    int64
	Username  string
	TokenID   string
	ExpiresAt time.Time
}

// TokenService handles JWT creation, validation and revocation.
//
// It holds the HMAC secret used to sign and verify tokens. The same secret
// must be used for both operations; a restart with a new secret invalidates
// every outstanding session.
type TokenService struct {
	secret  []byte
	ttl     time.Duration
	revoked *RevocationList
}

// NewTokenService creates a TokenService with the given secret and session
// lifetime. ttl <= 0 falls back to DefaultTTL.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TokenService{
		secret:  []byte(secret),
		ttl:     ttl,
		revoked: NewRevocationList(),
	}, nil
}

// TTL is the lifetime given to tokens from Generate.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// claims is the JWT payload.
//
// "sub" (Subject) carries the numeric user id as a decimal string, "jti"
// (ID) a fresh xid per token. The username rides along so handlers that
// compare against the session's username don't need a DB round trip.
type claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Generate creates and signs a token for id with the service's TTL.
//
// Signing algorithm: HS256 (HMAC-SHA256)
// - Symmetric: same key for signing and verifying
// - Fast and simple, fits a single-server deployment
func (s *TokenService) Generate(id Identity) (string, Session, error) {
	return s.GenerateWithDuration(id, s.ttl)
}

// GenerateWithDuration creates a token with a custom lifetime.
// Used in tests to mint already-expired tokens.
func (s *TokenService) GenerateWithDuration(id Identity, d time.Duration) (string, Session, error) {
	now := time.Now()
	expires := now.Add(d)
	jti := xid.New().String()

	c := claims{
		Username: id.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   strconv.FormatInt(id.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			Issuer:    issuer,
		},
	}

	// jwt.NewWithClaims creates an unsigned token with the given algorithm.
	// SignedString(key) signs it and returns the complete JWT string.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", Session{}, fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, Session{
		UserID:    id.UserID,
		Username:  id.Username,
		TokenID:   jti,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}

// Validate parses and verifies a JWT string and returns its Session.
//
// VALIDATION CHECKS:
//   - Signature is valid (wasn't tampered with)
//   - Token is not expired (ExpiresAt is in the future)
//   - Issuer matches "colab"
//   - Algorithm is HS256 (prevents algorithm confusion attacks)
//   - The token ID has not been revoked by a logout
func (s *TokenService) Validate(tokenStr string) (Session, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Session{}, fmt.Errorf("auth: token expired")
		}
		return Session{}, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return Session{}, fmt.Errorf("auth: invalid token claims")
	}

	userID, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return Session{}, fmt.Errorf("auth: token has no valid subject")
	}
	if c.ID == "" {
		return Session{}, fmt.Errorf("auth: token has no id")
	}
	if s.revoked.IsRevoked(c.ID) {
		return Session{}, ErrTokenRevoked
	}

	return Session{
		UserID:    userID,
		Username:  c.Username,
		TokenID:   c.ID,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}

// Revoke ends a session before its natural expiry.
func (s *TokenService) Revoke(sess Session) {
	s.revoked.Revoke(sess.TokenID, sess.ExpiresAt)
}
