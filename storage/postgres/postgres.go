// Package postgres implements storage.Repository backed by PostgreSQL.
//
// The session_kv table uses a composite primary key (namespace, key) that
// mirrors the key space used by the BBolt and in-memory backends. Several
// admin console processes pointed at the same database share one durable
// session, with last-write-wins semantics.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jmcleod/newsdesk/storage"
)

const upsertSQL = `INSERT INTO session_kv (namespace, key, value, updated_at)
	 VALUES ($1, $2, $3, now())
	 ON CONFLICT (namespace, key)
	 DO UPDATE SET value = $3, updated_at = now()`

// Store implements storage.Repository backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Repository = (*Store)(nil)

// NewRepository returns a Repository backed by the given pgx connection pool.
func NewRepository(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// NewRepositoryFromDSN creates a connection pool from a DSN string, ensures
// the schema exists, and returns a new Repository.
func NewRepositoryFromDSN(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	return NewRepository(pool), nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Put(namespace, key string, value []byte) error {
	_, err := s.pool.Exec(context.Background(), upsertSQL, namespace, key, value)
	return err
}

func (s *Store) Get(namespace, key string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(context.Background(),
		`SELECT value FROM session_kv WHERE namespace = $1 AND key = $2`,
		namespace, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFoundError(context.Background(), s.pool, namespace, key)
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *Store) List(namespace string) ([]string, error) {
	rows, err := s.pool.Query(context.Background(),
		`SELECT key FROM session_kv WHERE namespace = $1 ORDER BY key`, namespace)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *Store) Delete(namespace, key string) error {
	tag, err := s.pool.Exec(context.Background(),
		`DELETE FROM session_kv WHERE namespace = $1 AND key = $2`, namespace, key)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFoundError(context.Background(), s.pool, namespace, key)
	}
	return nil
}

func (s *Store) Batch(namespace string, fn func(tx storage.BatchTx) error) error {
	pgTx, err := s.pool.Begin(context.Background())
	if err != nil {
		return err
	}
	defer pgTx.Rollback(context.Background()) //nolint:errcheck

	btx := &pgBatchTx{tx: pgTx, namespace: namespace}
	if err := fn(btx); err != nil {
		return err
	}
	return pgTx.Commit(context.Background())
}

type pgBatchTx struct {
	tx        pgx.Tx
	namespace string
}

var _ storage.BatchTx = (*pgBatchTx)(nil)

func (btx *pgBatchTx) Put(key string, value []byte) error {
	_, err := btx.tx.Exec(context.Background(), upsertSQL, btx.namespace, key, value)
	return err
}

func (btx *pgBatchTx) Delete(key string) error {
	_, err := btx.tx.Exec(context.Background(),
		`DELETE FROM session_kv WHERE namespace = $1 AND key = $2`, btx.namespace, key)
	return err
}

// querier abstracts both *pgxpool.Pool and pgx.Tx for shared queries.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// notFoundError determines whether a missing key is due to a missing
// namespace or a missing key within an existing namespace. This preserves the
// BBolt semantic of distinguishing ErrNamespaceNotFound from ErrNotFound.
func notFoundError(ctx context.Context, q querier, namespace, key string) error {
	var exists bool
	_ = q.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM session_kv WHERE namespace = $1 LIMIT 1)`,
		namespace).Scan(&exists)
	if !exists {
		return fmt.Errorf("%s: %w", namespace, storage.ErrNamespaceNotFound)
	}
	return fmt.Errorf("%s/%s: %w", namespace, key, storage.ErrNotFound)
}
