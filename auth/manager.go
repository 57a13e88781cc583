// Package auth is the consumption surface of the session core: it tracks the
// current principal of one console context, performs login, logout and
// profile updates, and guards admin views.
package auth

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/jmcleod/newsdesk/activity"
	"github.com/jmcleod/newsdesk/directory"
	"github.com/jmcleod/newsdesk/internal/uuid"
	"github.com/jmcleod/newsdesk/session"
)

// Verifier checks credentials.
type Verifier interface {
	Verify(identifier, secret string) (directory.Principal, error)
}

// SessionStore is the subset of *session.Store the Manager drives.
type SessionStore interface {
	Create(p directory.Principal, rememberMe bool) (session.Record, error)
	Current() (session.Profile, bool)
	Token() (string, bool)
	Extend() bool
	UpdateProfile(patch session.ProfilePatch) (session.Profile, error)
	Clear() error
}

// Manager holds the authentication state of one console context.
type Manager struct {
	verifier    Verifier
	store       SessionStore
	source      activity.Source
	monitorOpts []activity.Option
	logger      *slog.Logger
	id          string

	current atomic.Pointer[session.Profile]

	mu      sync.Mutex
	monitor *activity.Monitor // non-nil between login and logout
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the Manager's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithMonitorOptions passes options to every activity monitor the Manager
// creates.
func WithMonitorOptions(opts ...activity.Option) Option {
	return func(m *Manager) { m.monitorOpts = append(m.monitorOpts, opts...) }
}

// NewManager mounts a Manager: it reads the stored session and, when one is
// present, starts activity tracking straight away.
func NewManager(v Verifier, store SessionStore, source activity.Source, opts ...Option) *Manager {
	m := &Manager{
		verifier: v,
		store:    store,
		source:   source,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		id:       uuid.New(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "auth", "context_id", m.id)
	m.Refresh()
	return m
}

// ID identifies this context in logs.
func (m *Manager) ID() string { return m.id }

// Current returns the principal of the context, if authenticated.
func (m *Manager) Current() (session.Profile, bool) {
	p := m.current.Load()
	if p == nil {
		return session.Profile{}, false
	}
	return *p, true
}

// IsAuthenticated reports whether a principal is present. It does not
// re-read storage; a session that expired since the last read is only
// noticed by the next read.
func (m *Manager) IsAuthenticated() bool {
	return m.current.Load() != nil
}

// Token returns the bearer string of the stored session.
func (m *Manager) Token() (string, bool) {
	return m.store.Token()
}

// Login verifies the credentials and starts a session. On failure no
// session state is touched and directory.ErrInvalidCredentials is returned.
func (m *Manager) Login(identifier, secret string, rememberMe bool) (session.Profile, error) {
	p, err := m.verifier.Verify(identifier, secret)
	if err != nil {
		return session.Profile{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.store.Create(p, rememberMe)
	if err != nil {
		return session.Profile{}, fmt.Errorf("creating session: %w", err)
	}
	m.setCurrent(&rec.Profile)
	m.startMonitorLocked()
	m.logger.Info("logged in",
		slog.Int64("principal_id", p.ID),
		slog.String("backend", rec.Backend.String()))
	return rec.Profile, nil
}

// Logout clears the session and stops activity tracking. It always succeeds;
// storage errors are logged.
func (m *Manager) Logout() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Clear(); err != nil {
		m.logger.Warn("clearing session on logout", slog.Any("error", err))
	}
	m.stopMonitorLocked()
	m.setCurrent(nil)
	m.logger.Info("logged out")
}

// UpdateProfile edits the profile snapshot of the active session.
func (m *Manager) UpdateProfile(patch session.ProfilePatch) (session.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.store.UpdateProfile(patch)
	if errors.Is(err, session.ErrNotAuthenticated) {
		m.becomeAnonymousLocked()
		return session.Profile{}, err
	}
	if err != nil {
		return session.Profile{}, err
	}
	prev := m.current.Load()
	m.setCurrent(&p)
	if prev == nil {
		m.startMonitorLocked()
	}
	return p, nil
}

// Refresh re-reads the stored session, as a page load would.
func (m *Manager) Refresh() {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.store.Current()
	if !ok {
		m.becomeAnonymousLocked()
		return
	}
	prev := m.current.Load()
	m.setCurrent(&p)
	// A monitor left over from an anonymous spell may already be retiring.
	if m.monitor == nil || prev == nil {
		m.startMonitorLocked()
	}
}

// Close stops activity tracking without touching storage, like unmounting
// the console. The session stays valid for the next context.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopMonitorLocked()
}

// extend is the Extender of mon. It must not take m.mu: Stop waits for
// in-flight extends while the caller holds m.mu. An anonymous context never
// extends, so a session created later by another context is left alone.
func (m *Manager) extend(mon *activity.Monitor) bool {
	before := m.current.Load()
	if before == nil {
		return false
	}
	if m.store.Extend() {
		return true
	}
	if m.current.CompareAndSwap(before, nil) {
		m.logger.Info("session ended; discovered while extending")
		go m.retire(mon)
	}
	return false
}

// retire stops mon unless a newer monitor has replaced it.
func (m *Manager) retire(mon *activity.Monitor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.monitor == mon {
		m.stopMonitorLocked()
	}
}

func (m *Manager) setCurrent(p *session.Profile) {
	if p != nil {
		cp := *p
		p = &cp
	}
	m.current.Store(p)
}

func (m *Manager) becomeAnonymousLocked() {
	m.stopMonitorLocked()
	m.setCurrent(nil)
}

// startMonitorLocked replaces any running monitor with a fresh one.
func (m *Manager) startMonitorLocked() {
	m.stopMonitorLocked()
	var mon *activity.Monitor
	mon = activity.New(activity.ExtenderFunc(func() bool { return m.extend(mon) }), m.source, m.monitorOpts...)
	m.monitor = mon
	mon.Start()
}

func (m *Manager) stopMonitorLocked() {
	if m.monitor == nil {
		return
	}
	m.monitor.Stop()
	m.monitor = nil
}

// Tracking reports whether an activity monitor is running.
func (m *Manager) Tracking() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.monitor != nil && m.monitor.Running()
}
