package session

import "errors"

var (
	// ErrNotAuthenticated is returned by mutations attempted without an
	// active session.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrNoSession is returned by Backend.Load when the backend holds none
	// of the session keys.
	ErrNoSession = errors.New("no session")
	// ErrCorruptSession marks unreadable or partial session data. It never
	// reaches callers of Store: the store clears storage and reports no
	// session instead.
	ErrCorruptSession = errors.New("corrupt session")
)
