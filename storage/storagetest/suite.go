// Package storagetest holds the conformance suite every storage.Repository
// implementation is expected to pass.
package storagetest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/newsdesk/storage"
)

// Run exercises repo against the repository contract. Each call should be
// given an empty repository.
func Run(t *testing.T, repo storage.Repository) {
	t.Helper()

	t.Run("PutGet", func(t *testing.T) {
		require.NoError(t, repo.Put("durable", "token", []byte("admin_token_1_1700000000000")))
		got, err := repo.Get("durable", "token")
		require.NoError(t, err)
		assert.Equal(t, "admin_token_1_1700000000000", string(got))
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, repo.Put("durable", "profile", []byte(`{"name":"a"}`)))
		require.NoError(t, repo.Put("durable", "profile", []byte(`{"name":"b"}`)))
		got, err := repo.Get("durable", "profile")
		require.NoError(t, err)
		assert.Equal(t, `{"name":"b"}`, string(got))
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := repo.Get("never-written", "token")
		require.Error(t, err)
		assert.True(t, storage.IsNotFound(err), "got %v", err)

		_, err = repo.Get("durable", "no-such-key")
		require.Error(t, err)
		assert.True(t, errors.Is(err, storage.ErrNotFound), "got %v", err)
	})

	t.Run("List", func(t *testing.T) {
		require.NoError(t, repo.Put("listing", "a", []byte("1")))
		require.NoError(t, repo.Put("listing", "b", []byte("2")))
		keys, err := repo.List("listing")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a", "b"}, keys)

		keys, err = repo.List("empty-namespace")
		require.NoError(t, err)
		assert.Empty(t, keys)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, repo.Put("durable", "session", []byte("{}")))
		require.NoError(t, repo.Delete("durable", "session"))
		_, err := repo.Get("durable", "session")
		assert.True(t, storage.IsNotFound(err), "got %v", err)

		err = repo.Delete("durable", "session")
		assert.True(t, storage.IsNotFound(err), "deleting twice should report not found, got %v", err)
	})

	t.Run("NamespacesAreIsolated", func(t *testing.T) {
		require.NoError(t, repo.Put("ns-a", "token", []byte("a")))
		require.NoError(t, repo.Put("ns-b", "token", []byte("b")))
		a, err := repo.Get("ns-a", "token")
		require.NoError(t, err)
		b, err := repo.Get("ns-b", "token")
		require.NoError(t, err)
		assert.Equal(t, "a", string(a))
		assert.Equal(t, "b", string(b))
	})

	t.Run("BatchCommit", func(t *testing.T) {
		err := repo.Batch("batch", func(tx storage.BatchTx) error {
			if err := tx.Put("token", []byte("t")); err != nil {
				return err
			}
			if err := tx.Put("profile", []byte("p")); err != nil {
				return err
			}
			return tx.Delete("missing-key")
		})
		require.NoError(t, err)
		keys, err := repo.List("batch")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"profile", "token"}, keys)
	})

	t.Run("BatchRollback", func(t *testing.T) {
		require.NoError(t, repo.Put("rollback", "token", []byte("old")))
		boom := errors.New("boom")
		err := repo.Batch("rollback", func(tx storage.BatchTx) error {
			if err := tx.Put("token", []byte("new")); err != nil {
				return err
			}
			if err := tx.Delete("token"); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)
		got, err := repo.Get("rollback", "token")
		require.NoError(t, err)
		assert.Equal(t, "old", string(got))
	})

	t.Run("BatchDeleteClearsNamespace", func(t *testing.T) {
		require.NoError(t, repo.Put("clear", "token", []byte("t")))
		require.NoError(t, repo.Put("clear", "session", []byte("s")))
		err := repo.Batch("clear", func(tx storage.BatchTx) error {
			for _, k := range []string{"token", "profile", "session"} {
				if err := tx.Delete(k); err != nil {
					return err
				}
			}
			return nil
		})
		require.NoError(t, err)
		keys, err := repo.List("clear")
		require.NoError(t, err)
		assert.Empty(t, keys)
	})
}
