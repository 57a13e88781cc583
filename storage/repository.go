// Package storage provides the key/value abstraction that session backends
// are persisted through.
//
// A repository is partitioned into namespaces. Each session backend owns one
// namespace ("durable" or "ephemeral") and keeps a fixed set of keys in it.
package storage

import "errors"

var (
	// ErrNotFound is returned when a key does not exist in a namespace.
	ErrNotFound = errors.New("key not found")
	// ErrNamespaceNotFound is returned when a namespace has never been written.
	ErrNamespaceNotFound = errors.New("namespace not found")
)

// BatchTx provides Put and Delete within an atomic transaction.
// The namespace is scoped to the batch, so methods don't require it.
type BatchTx interface {
	Put(key string, value []byte) error
	// Delete removes key if present. Missing keys are not an error inside a
	// batch so that clearing a partially written namespace never aborts.
	Delete(key string) error
}

// Repository defines the interface for namespaced key/value storage.
type Repository interface {
	Put(namespace, key string, value []byte) error
	Get(namespace, key string) ([]byte, error)
	Delete(namespace, key string) error
	List(namespace string) ([]string, error)
	Batch(namespace string, fn func(tx BatchTx) error) error
}

// IsNotFound reports whether err means the key or its namespace is absent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrNamespaceNotFound)
}
