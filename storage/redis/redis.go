// Package redis implements storage.Repository on top of Redis hashes.
//
// Every namespace is stored as one hash at "<prefix>:<namespace>". Like the
// PostgreSQL backend it lets several console processes share a durable
// session; concurrent writers follow last-write-wins.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"

	goredis "github.com/redis/go-redis/v9"

	"github.com/jmcleod/newsdesk/storage"
)

// DefaultPrefix is the key prefix used when none is configured.
const DefaultPrefix = "newsdesk"

// Store implements storage.Repository backed by Redis.
type Store struct {
	client goredis.UniversalClient
	prefix string
}

var _ storage.Repository = (*Store)(nil)

// NewRepository returns a Repository using the given client. An empty prefix
// selects DefaultPrefix.
func NewRepository(client goredis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

// NewRepositoryFromOptions dials Redis and verifies the connection with PING.
func NewRepositoryFromOptions(ctx context.Context, opts *goredis.Options, prefix string) (*Store, error) {
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return NewRepository(client, prefix), nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) hashKey(namespace string) string {
	return s.prefix + ":" + namespace
}

func (s *Store) Put(namespace, key string, value []byte) error {
	return s.client.HSet(context.Background(), s.hashKey(namespace), key, value).Err()
}

func (s *Store) Get(namespace, key string) ([]byte, error) {
	ctx := context.Background()
	value, err := s.client.HGet(ctx, s.hashKey(namespace), key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, s.notFoundError(ctx, namespace, key)
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *Store) List(namespace string) ([]string, error) {
	keys, err := s.client.HKeys(context.Background(), s.hashKey(namespace)).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) Delete(namespace, key string) error {
	ctx := context.Background()
	n, err := s.client.HDel(ctx, s.hashKey(namespace), key).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return s.notFoundError(ctx, namespace, key)
	}
	return nil
}

// Batch queues every write inside MULTI/EXEC. If fn fails nothing is sent.
func (s *Store) Batch(namespace string, fn func(tx storage.BatchTx) error) error {
	_, err := s.client.TxPipelined(context.Background(), func(pipe goredis.Pipeliner) error {
		return fn(&redisBatchTx{pipe: pipe, hashKey: s.hashKey(namespace)})
	})
	return err
}

type redisBatchTx struct {
	pipe    goredis.Pipeliner
	hashKey string
}

var _ storage.BatchTx = (*redisBatchTx)(nil)

func (tx *redisBatchTx) Put(key string, value []byte) error {
	tx.pipe.HSet(context.Background(), tx.hashKey, key, value)
	return nil
}

func (tx *redisBatchTx) Delete(key string) error {
	tx.pipe.HDel(context.Background(), tx.hashKey, key)
	return nil
}

func (s *Store) notFoundError(ctx context.Context, namespace, key string) error {
	n, err := s.client.Exists(ctx, s.hashKey(namespace)).Result()
	if err == nil && n == 0 {
		return fmt.Errorf("%s: %w", namespace, storage.ErrNamespaceNotFound)
	}
	return fmt.Errorf("%s/%s: %w", namespace, key, storage.ErrNotFound)
}
