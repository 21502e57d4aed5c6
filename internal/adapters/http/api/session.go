package api

import (
	"net/http"

	"github.com/google/uuid"
)

// Session transport. Clients may send the id explicitly or rely on the cookie.
const (
	SessionHeader   = "X-Session-ID"
	SessionCookie   = "perfreport_session"
	maxSessionIDLen = 128
)

// sessionID returns the caller's session id, minting one and setting the
// cookie when the request carries none.
func sessionID(w http.ResponseWriter, r *http.Request) string {
	if id := r.Header.Get(SessionHeader); validSessionID(id) {
		return id
	}
	if c, err := r.Cookie(SessionCookie); err == nil && validSessionID(c.Value) {
		return c.Value
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.Header().Set(SessionHeader, id)
	return id
}

func validSessionID(id string) bool {
	if id == "" || len(id) > maxSessionIDLen {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}
