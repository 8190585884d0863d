package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// contextKey is an unexported type used for context keys in this package.
//
// WHY A CUSTOM TYPE FOR CONTEXT KEYS?
// context.WithValue uses any as the key type. With a plain string key, ANY
// package that knows the string can read or shadow the value. A package-private
// type means only this package can create the key.
type contextKey string

const sessionKey contextKey = "session"

// unauthorizedBody is the fixed gate-failure body. It matches the
// {error, message} shape every other API error uses.
const unauthorizedBody = `{"error":"unauthorized","message":"valid authentication required"}`

// RequireAuth is a middleware that enforces authentication on protected routes.
//
// It reads the JWT from the "token" HttpOnly cookie (or an
// "Authorization: Bearer" header), validates it, and stores the Session in
// the request context. If the token is missing, invalid, expired or revoked
// it returns 401 and stops the chain.
//
// MIDDLEWARE PATTERN IN GO:
//
//	func Middleware(next http.Handler) http.Handler {
//	    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
//	        // ... before ...
//	        next.ServeHTTP(w, r)
//	        // ... after ...
//	    })
//	}
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := extractSession(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(unauthorizedBody + "\n"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}

// OptionalAuth attaches the Session when a valid token is present but never
// blocks. The HTML pages use it to choose between the login form and the
// profile.
func OptionalAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sess, err := extractSession(r, tokens); err == nil {
				r = r.WithContext(WithSession(r.Context(), sess))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithSession returns a copy of ctx carrying sess.
func WithSession(ctx context.Context, sess Session) context.Context {
	return context.WithValue(ctx, sessionKey, sess)
}

// SessionFromContext retrieves the authenticated Session.
//
// Returns (Session{}, false) for anonymous requests.
//
//	sess, ok := auth.SessionFromContext(r.Context())
//	if !ok {
//	    // anonymous user
//	}
func SessionFromContext(ctx context.Context) (Session, bool) {
	sess, ok := ctx.Value(sessionKey).(Session)
	return sess, ok && sess.UserID != 0
}

var errNoToken = errors.New("auth: no token")

// TokenFromRequest returns the raw token: the "token" cookie first, then a
// Bearer Authorization header.
func TokenFromRequest(r *http.Request) (string, error) {
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}
	if h := r.Header.Get("Authorization"); h != "" {
		if tok, ok := strings.CutPrefix(h, "Bearer "); ok && tok != "" {
			return tok, nil
		}
	}
	return "", errNoToken
}

func extractSession(r *http.Request, tokens *TokenService) (Session, error) {
	tok, err := TokenFromRequest(r)
	if err != nil {
		return Session{}, err
	}
	return tokens.Validate(tok)
}
