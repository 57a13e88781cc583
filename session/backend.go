package session

import (
	"fmt"

	"github.com/jmcleod/newsdesk/storage"
)

// Kind names a session backend.
type Kind string

const (
	// Durable storage survives a restart of the console.
	Durable Kind = "durable"
	// Ephemeral storage lives only as long as the current context.
	Ephemeral Kind = "ephemeral"
)

func (k Kind) String() string { return string(k) }

// Backend persists one session record.
type Backend interface {
	Kind() Kind
	// Load returns the stored record, ErrNoSession when the backend is
	// empty, or an error wrapping ErrCorruptSession when it is partial or
	// unreadable.
	Load() (Record, error)
	// Save writes all keys of rec in one batch.
	Save(rec Record) error
	// Clear removes all keys. It succeeds on an empty backend.
	Clear() error
}

// NewBackend returns a Backend storing its keys in the namespace named after
// kind inside repo.
func NewBackend(kind Kind, repo storage.Repository) Backend {
	return &repoBackend{kind: kind, repo: repo}
}

type repoBackend struct {
	kind Kind
	repo storage.Repository
}

var _ Backend = (*repoBackend)(nil)

func (b *repoBackend) Kind() Kind { return b.kind }

func (b *repoBackend) namespace() string { return string(b.kind) }

func (b *repoBackend) Load() (Record, error) {
	raw := make(map[string][]byte, len(recordKeys))
	for _, k := range recordKeys {
		v, err := b.repo.Get(b.namespace(), k)
		if storage.IsNotFound(err) {
			continue
		}
		if err != nil {
			return Record{}, fmt.Errorf("reading %s/%s: %w", b.kind, k, err)
		}
		raw[k] = v
	}
	if len(raw) == 0 {
		return Record{}, ErrNoSession
	}
	return decodeRecord(b.kind, raw)
}

func (b *repoBackend) Save(rec Record) error {
	rec.Backend = b.kind
	values, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	return b.repo.Batch(b.namespace(), func(tx storage.BatchTx) error {
		for _, k := range recordKeys {
			if err := tx.Put(k, values[k]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *repoBackend) Clear() error {
	return b.repo.Batch(b.namespace(), func(tx storage.BatchTx) error {
		for _, k := range recordKeys {
			if err := tx.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}
