// Package session persists the admin console's login session.
//
// A Store owns two backends. A login with "remember me" writes the durable
// backend, any other login writes the ephemeral one, and every login first
// clears both so that at most one of them holds a record. Expiry is checked
// lazily: a stale or corrupt record is discovered on the next read, at which
// point both backends are cleared.
package session

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/jmcleod/newsdesk/directory"
)

// DefaultLifetime is how long a session stays valid after it is created or
// extended.
const DefaultLifetime = 24 * time.Hour

// Store reads and writes the session record. It is safe for concurrent use
// within one process. Writers in other processes sharing the durable
// backend are not coordinated with: the last write wins.
type Store struct {
	durable   Backend
	ephemeral Backend
	now       func() time.Time
	lifetime  time.Duration
	logger    *slog.Logger

	mu         sync.Mutex
	active     Backend // backend written by Create or last found holding a record
	lastIssued int64   // unix millis of the newest token, keeps tokens unique
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLifetime overrides DefaultLifetime. Non-positive values are ignored.
func WithLifetime(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.lifetime = d
		}
	}
}

// WithLogger sets the logger used for expiry and corruption events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger.With("component", "session") }
}

// NewStore returns a Store over the given durable and ephemeral backends.
func NewStore(durable, ephemeral Backend, opts ...Option) *Store {
	s := &Store{
		durable:   durable,
		ephemeral: ephemeral,
		now:       time.Now,
		lifetime:  DefaultLifetime,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Lifetime returns the validity window applied by Create and Extend.
func (s *Store) Lifetime() time.Duration { return s.lifetime }

// Create starts a new session for p. Any existing record in either backend is
// removed first; the new record goes to the durable backend when rememberMe
// is set and to the ephemeral one otherwise.
func (s *Store) Create(p directory.Principal, rememberMe bool) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.clearLocked(); err != nil {
		return Record{}, fmt.Errorf("clearing previous session: %w", err)
	}

	target := s.ephemeral
	if rememberMe {
		target = s.durable
	}
	now := s.now().UTC()
	rec := Record{
		Token:   s.newTokenLocked(p.ID, now),
		Profile: ProfileOf(p),
		Meta: Meta{
			PrincipalID: p.ID,
			Role:        p.Role,
			IssuedAt:    now,
			ExpiresAt:   now.Add(s.lifetime),
		},
		Backend: target.Kind(),
	}
	if err := target.Save(rec); err != nil {
		return Record{}, fmt.Errorf("writing %s session: %w", target.Kind(), err)
	}
	s.active = target
	return rec, nil
}

// Current returns the profile of the active session, if any.
func (s *Store) Current() (Profile, bool) {
	rec, ok := s.Session()
	return rec.Profile, ok
}

// Session returns the full active record, if any.
func (s *Store) Session() (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, _, ok := s.loadLocked()
	return rec, ok
}

// Token returns the bearer string of the active session.
func (s *Store) Token() (string, bool) {
	rec, ok := s.Session()
	return rec.Token, ok
}

// Extend pushes the expiry of the active session to now plus the lifetime.
// It reports whether there was a session to extend.
func (s *Store) Extend() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, b, ok := s.loadLocked()
	if !ok {
		return false
	}
	rec.Meta.ExpiresAt = s.now().UTC().Add(s.lifetime)
	if err := b.Save(rec); err != nil {
		s.logger.Error("extending session", slog.String("backend", b.Kind().String()), slog.Any("error", err))
		return false
	}
	return true
}

// UpdateProfile merges patch into the profile snapshot of the active session
// and writes it back to the same backend. Token and expiry are unchanged.
func (s *Store) UpdateProfile(patch ProfilePatch) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, b, ok := s.loadLocked()
	if !ok {
		return Profile{}, ErrNotAuthenticated
	}
	rec.Profile = patch.Apply(rec.Profile)
	if err := b.Save(rec); err != nil {
		return Profile{}, fmt.Errorf("writing %s session: %w", b.Kind(), err)
	}
	return rec.Profile, nil
}

// Clear removes the session keys from both backends. It is idempotent.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearLocked()
}

func (s *Store) clearLocked() error {
	s.active = nil
	return errors.Join(s.durable.Clear(), s.ephemeral.Clear())
}

// candidatesLocked orders the backends for a read: the recorded one first,
// otherwise durable before ephemeral.
func (s *Store) candidatesLocked() []Backend {
	if s.active == s.ephemeral {
		return []Backend{s.ephemeral, s.durable}
	}
	return []Backend{s.durable, s.ephemeral}
}

// loadLocked finds the active record. Expired and corrupt records are
// cleared and reported as absent.
func (s *Store) loadLocked() (Record, Backend, bool) {
	for _, b := range s.candidatesLocked() {
		rec, err := b.Load()
		if errors.Is(err, ErrNoSession) {
			continue
		}
		if errors.Is(err, ErrCorruptSession) {
			s.logger.Warn("discarding corrupt session", slog.Any("error", err))
			s.discardLocked()
			return Record{}, nil, false
		}
		if err != nil {
			s.logger.Error("reading session", slog.String("backend", b.Kind().String()), slog.Any("error", err))
			return Record{}, nil, false
		}
		if rec.Meta.Expired(s.now()) {
			s.logger.Info("session expired",
				slog.Int64("principal_id", rec.Meta.PrincipalID),
				slog.Time("expires_at", rec.Meta.ExpiresAt))
			s.discardLocked()
			return Record{}, nil, false
		}
		s.active = b
		return rec, b, true
	}
	s.active = nil
	return Record{}, nil, false
}

func (s *Store) discardLocked() {
	if err := s.clearLocked(); err != nil {
		s.logger.Error("clearing session", slog.Any("error", err))
	}
}

func (s *Store) newTokenLocked(principalID int64, now time.Time) string {
	ms := now.UnixMilli()
	if ms <= s.lastIssued {
		ms = s.lastIssued + 1
	}
	s.lastIssued = ms
	return fmt.Sprintf("admin_token_%d_%d", principalID, ms)
}
