package auth

import (
	"context"
	"net/http"

	"github.com/jmcleod/newsdesk/session"
)

type contextKey int

const principalKey contextKey = iota

// Guard returns middleware that renders the wrapped handler for an
// authenticated context and redirects to loginPath otherwise. The principal
// is available to the handler through PrincipalFromContext.
func (m *Manager) Guard(loginPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := m.Current()
			if !ok {
				http.Redirect(w, r, loginPath, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p session.Profile) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the principal stored by Guard.
func PrincipalFromContext(ctx context.Context) (session.Profile, bool) {
	p, ok := ctx.Value(principalKey).(session.Profile)
	return p, ok
}
