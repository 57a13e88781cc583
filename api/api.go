package api

import (
	_ "embed"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"

	"github.com/jmcleod/newsdesk/activity"
	"github.com/jmcleod/newsdesk/auth"
)

// Publisher delivers interaction signals to the activity monitor.
type Publisher interface {
	Publish(s activity.Signal)
}

// API holds the dependencies needed by the REST handlers.
type API struct {
	manager   *auth.Manager
	publisher Publisher
	audit     *auditLogger
	metrics   *Metrics
}

//go:embed openapi.yaml
var openapiSpec []byte

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger for audit events.
// If not set, a default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		alerts := a.audit.alerts
		a.audit = newAuditLogger(logger)
		a.audit.alerts = alerts
	}
}

// WithMetrics records request outcomes in m.
func WithMetrics(m *Metrics) Option {
	return func(a *API) { a.metrics = m }
}

// WithAlertFunc registers a callback for login failure spikes.
func WithAlertFunc(fn AlertFunc) Option {
	return func(a *API) { a.audit.alerts = newMetricsCollector(fn) }
}

// New creates a new API instance for the console context held by mgr.
// Activity beacons are forwarded to pub.
func New(mgr *auth.Manager, pub Publisher, opts ...Option) *API {
	a := &API{
		manager:   mgr,
		publisher: pub,
		audit:     newAuditLogger(slog.New(slog.NewJSONHandler(os.Stderr, nil))),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Router returns a chi.Router with all API routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/docs",
	}, nil))

	r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/redoc",
	}, nil))

	r.Post("/auth/login", a.Login)
	r.Post("/auth/logout", a.Logout)
	r.Get("/auth/session", a.Session)
	r.Post("/auth/activity", a.Activity)
	r.With(a.RequireSession).Patch("/auth/profile", a.UpdateProfile)

	r.Route("/admin", func(r chi.Router) {
		r.Use(a.RequireSession)
		r.Get("/me", a.Me)
	})

	return r
}
