package api

import (
	"net/http"
	"strings"

	"github.com/jmcleod/newsdesk/auth"
)

// RequireSession rejects requests from an anonymous context with a JSON 401.
// For authenticated contexts the principal is stored on the request context.
// Like auth.Guard it trusts the in-memory state and does not re-read storage.
func (a *API) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := a.manager.Current()
		if !ok {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
	})
}

func requestIsSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	if strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		return true
	}
	return strings.Contains(strings.ToLower(r.Header.Get("Forwarded")), "proto=https")
}
