package auth

import (
	"net/http"
	"time"
)

// CookieName is the cookie that carries the session token.
const CookieName = "token"

// SetTokenCookie stores token in an HttpOnly cookie that expires with it.
//
// HttpOnly keeps page scripts from reading the token; SameSite=Lax stops
// it riding along on cross-site POSTs. secure should be true whenever the
// server is reached over HTTPS.
func SetTokenCookie(w http.ResponseWriter, token string, expiresAt time.Time, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearTokenCookie tells the browser to drop the session cookie.
func ClearTokenCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
