package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jmcleod/newsdesk/activity"
	"github.com/jmcleod/newsdesk/auth"
	"github.com/jmcleod/newsdesk/directory"
)

// Login handles POST /auth/login.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[LoginRequest](w, r, maxBodySize)
	if !ok {
		return
	}
	if req.Identifier == "" || req.Secret == "" {
		a.metrics.login("failure")
		a.audit.logFailure(AuditLoginFailure, r, "missing credentials",
			slog.String("identifier", req.Identifier))
		writeError(w, http.StatusUnauthorized, directory.ErrInvalidCredentials.Error())
		return
	}

	p, err := a.manager.Login(req.Identifier, req.Secret, req.RememberMe)
	if errors.Is(err, directory.ErrInvalidCredentials) {
		a.metrics.login("failure")
		a.audit.logFailure(AuditLoginFailure, r, "invalid credentials",
			slog.String("identifier", req.Identifier))
		mapError(w, err)
		return
	}
	if err != nil {
		a.metrics.login("error")
		mapError(w, err)
		return
	}

	token, _ := a.manager.Token()
	a.metrics.login("success")
	a.audit.logEvent(AuditLoginSuccess, r, p.ID,
		slog.String("role", string(p.Role)),
		slog.Bool("remember_me", req.RememberMe))
	writeJSON(w, http.StatusOK, LoginResponse{Principal: p, Token: token})
}

// Logout handles POST /auth/logout. It always succeeds.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	p, wasAuthenticated := a.manager.Current()
	a.manager.Logout()
	a.metrics.logout()
	if wasAuthenticated {
		a.audit.logEvent(AuditLogout, r, p.ID)
	} else {
		a.audit.log(AuditLogout, r)
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

// Session handles GET /auth/session. It reflects the context's current
// state without re-reading storage.
func (a *API) Session(w http.ResponseWriter, r *http.Request) {
	p, ok := a.manager.Current()
	if !ok {
		writeJSON(w, http.StatusOK, SessionResponse{})
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{Authenticated: true, Principal: &p})
}

// UpdateProfile handles PATCH /auth/profile.
func (a *API) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[UpdateProfileRequest](w, r, maxBodySize)
	if !ok {
		return
	}
	if req.Empty() {
		writeError(w, http.StatusBadRequest, "profile patch is empty")
		return
	}
	p, err := a.manager.UpdateProfile(req)
	if err != nil {
		mapError(w, err)
		return
	}
	a.metrics.profileUpdated()
	a.audit.logEvent(AuditProfileUpdated, r, p.ID)
	writeJSON(w, http.StatusOK, p)
}

// Activity handles POST /auth/activity, the interaction beacon sent by the
// admin shell.
func (a *API) Activity(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[ActivityRequest](w, r, maxBodySize)
	if !ok {
		return
	}
	s, err := activity.ParseSignal(req.Signal)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	a.publisher.Publish(s)
	a.audit.log(AuditActivity, r, slog.String("signal", string(s)))
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /admin/me.
func (a *API) Me(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	writeJSON(w, http.StatusOK, p)
}
