package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoSession writes the session's username, or "anon".
var echoSession = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	if sess, ok := SessionFromContext(r.Context()); ok {
		w.Write([]byte(sess.Username))
		return
	}
	w.Write([]byte("anon"))
})

func TestRequireAuth(t *testing.T) {
	ts := newTestTokenService(t)
	token, _, err := ts.Generate(alice)
	require.NoError(t, err)

	revokedTok, revokedSess, _ := ts.Generate(alice)
	ts.Revoke(revokedSess)

	expired, _, _ := ts.GenerateWithDuration(alice, -time.Minute)

	tests := []struct {
		name       string
		setup      func(r *http.Request)
		wantStatus int
		wantBody   string
	}{
		{
			name:       "cookie",
			setup:      func(r *http.Request) { r.AddCookie(&http.Cookie{Name: CookieName, Value: token}) },
			wantStatus: http.StatusOK,
			wantBody:   "alice",
		},
		{
			name:       "bearer header",
			setup:      func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) },
			wantStatus: http.StatusOK,
			wantBody:   "alice",
		},
		{
			name:       "no token",
			setup:      func(*http.Request) {},
			wantStatus: http.StatusUnauthorized,
			wantBody:   unauthorizedBody,
		},
		{
			name:       "expired",
			setup:      func(r *http.Request) { r.AddCookie(&http.Cookie{Name: CookieName, Value: expired}) },
			wantStatus: http.StatusUnauthorized,
			wantBody:   unauthorizedBody,
		},
		{
			name:       "revoked",
			setup:      func(r *http.Request) { r.AddCookie(&http.Cookie{Name: CookieName, Value: revokedTok}) },
			wantStatus: http.StatusUnauthorized,
			wantBody:   unauthorizedBody,
		},
		{
			name:       "not bearer",
			setup:      func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") },
			wantStatus: http.StatusUnauthorized,
			wantBody:   unauthorizedBody,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/user/", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()

			RequireAuth(ts)(echoSession).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantBody, strings.TrimSpace(rec.Body.String()))
			if tt.wantStatus == http.StatusUnauthorized {
				assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			}
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	ts := newTestTokenService(t)
	token, _, _ := ts.Generate(alice)

	// Anonymous passes through.
	rec := httptest.NewRecorder()
	OptionalAuth(ts)(echoSession).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "anon", rec.Body.String())

	// Garbage token is ignored, not rejected.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "garbage"})
	rec = httptest.NewRecorder()
	OptionalAuth(ts)(echoSession).ServeHTTP(rec, req)
	assert.Equal(t, "anon", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	rec = httptest.NewRecorder()
	OptionalAuth(ts)(echoSession).ServeHTTP(rec, req)
	assert.Equal(t, "alice", rec.Body.String())
}

func TestTokenCookies(t *testing.T) {
	rec := httptest.NewRecorder()
	SetTokenCookie(rec, "tok", time.Now().Add(time.Hour), true)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, CookieName, c.Name)
	assert.Equal(t, "tok", c.Value)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Greater(t, c.MaxAge, 3500)

	rec = httptest.NewRecorder()
	ClearTokenCookie(rec, false)
	cookies = rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "", cookies[0].Value)
	assert.Less(t, cookies[0].MaxAge, 0)
}
