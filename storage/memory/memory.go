// Package memory provides a thread-safe in-memory implementation of storage.Repository.
package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/jmcleod/newsdesk/storage"
)

// Repository is a thread-safe in-memory implementation of storage.Repository.
// Its contents live only as long as the process, which makes it the natural
// home for the ephemeral session backend.
type Repository struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

var _ storage.Repository = (*Repository)(nil)

// NewRepository creates a new empty in-memory Repository.
func NewRepository() *Repository {
	return &Repository{data: make(map[string]map[string][]byte)}
}

func (r *Repository) Put(namespace, key string, value []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.putLocked(namespace, key, value)
	return nil
}

func (r *Repository) putLocked(namespace, key string, value []byte) {
	if _, ok := r.data[namespace]; !ok {
		r.data[namespace] = make(map[string][]byte)
	}
	r.data[namespace][key] = append([]byte(nil), value...)
}

func (r *Repository) Get(namespace, key string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ns, ok := r.data[namespace]
	if !ok {
		return nil, fmt.Errorf("%s: %w", namespace, storage.ErrNamespaceNotFound)
	}
	v, ok := ns[key]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", namespace, key, storage.ErrNotFound)
	}
	return append([]byte(nil), v...), nil
}

func (r *Repository) List(namespace string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var keys []string
	for k := range r.data[namespace] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (r *Repository) Delete(namespace, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ns, ok := r.data[namespace]
	if !ok {
		return fmt.Errorf("%s: %w", namespace, storage.ErrNamespaceNotFound)
	}
	if _, ok := ns[key]; !ok {
		return fmt.Errorf("%s/%s: %w", namespace, key, storage.ErrNotFound)
	}
	delete(ns, key)
	return nil
}

// Batch executes fn within a batch transaction. On error, all writes are rolled back.
func (r *Repository) Batch(namespace string, fn func(tx storage.BatchTx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := r.snapshot(namespace)

	tx := &memoryBatchTx{repo: r, namespace: namespace}
	if err := fn(tx); err != nil {
		r.restore(namespace, snapshot)
		return err
	}
	return nil
}

func (r *Repository) snapshot(namespace string) map[string][]byte {
	original, ok := r.data[namespace]
	if !ok {
		return nil
	}
	cp := make(map[string][]byte, len(original))
	for k, v := range original {
		cp[k] = append([]byte(nil), v...)
	}
	return cp
}

func (r *Repository) restore(namespace string, snapshot map[string][]byte) {
	if snapshot == nil {
		delete(r.data, namespace)
	} else {
		r.data[namespace] = snapshot
	}
}

// Reset drops every namespace. It simulates the end of the process-scoped
// context (a closed tab) without discarding the Repository value itself.
func (r *Repository) Reset() {
	r.mu.Lock()
	r.data = make(map[string]map[string][]byte)
	r.mu.Unlock()
}

type memoryBatchTx struct {
	repo      *Repository
	namespace string
}

func (tx *memoryBatchTx) Put(key string, value []byte) error {
	tx.repo.putLocked(tx.namespace, key, value)
	return nil
}

func (tx *memoryBatchTx) Delete(key string) error {
	if ns, ok := tx.repo.data[tx.namespace]; ok {
		delete(ns, key)
	}
	return nil
}
