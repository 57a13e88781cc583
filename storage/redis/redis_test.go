package redis

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/newsdesk/storage/storagetest"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, client
}

func TestRedisStorage(t *testing.T) {
	_, client := newTestRedis(t)
	storagetest.Run(t, NewRepository(client, "test"))
}

func TestRedisKeyLayout(t *testing.T) {
	mr, client := newTestRedis(t)
	s := NewRepository(client, "")

	require.NoError(t, s.Put("durable", "token", []byte("admin_token_2_5")))
	assert.Equal(t, "admin_token_2_5", mr.HGet("newsdesk:durable", "token"))
}

func TestRedisSharedBetweenStores(t *testing.T) {
	_, client := newTestRedis(t)
	a := NewRepository(client, "shared")
	b := NewRepository(client, "shared")

	require.NoError(t, a.Put("durable", "token", []byte("from-a")))
	require.NoError(t, b.Put("durable", "token", []byte("from-b")))

	got, err := a.Get("durable", "token")
	require.NoError(t, err)
	assert.Equal(t, "from-b", string(got), "last write wins")
}
