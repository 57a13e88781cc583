package api

import "github.com/jmcleod/newsdesk/session"

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// LoginRequest is the JSON body for POST /auth/login. Identifier is a
// username or an email address.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Secret     string `json:"secret"`
	RememberMe bool   `json:"remember_me"`
}

// LoginResponse is returned from POST /auth/login.
type LoginResponse struct {
	Principal session.Profile `json:"principal"`
	Token     string          `json:"token"`
}

// SessionResponse is returned from GET /auth/session.
type SessionResponse struct {
	Authenticated bool             `json:"authenticated"`
	Principal     *session.Profile `json:"principal,omitempty"`
}

// UpdateProfileRequest is the JSON body for PATCH /auth/profile.
type UpdateProfileRequest = session.ProfilePatch

// ActivityRequest is the JSON body for POST /auth/activity.
type ActivityRequest struct {
	Signal string `json:"signal"`
}
