package repository

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newRedisStoreForTest(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	s, err := NewRedisStore(client, "test:")
	require.NoError(t, err)
	return s, mr
}

func TestRedisStore_UsesPrefixedHash(t *testing.T) {
	s, mr := newRedisStoreForTest(t)
	require.NoError(t, s.MarkSeen(context.Background(), "42", "m-7"))
	require.Equal(t, "m-7", mr.HGet("test:seen", "42"))
}

func TestRedisStore_DefaultPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	s, err := NewRedisStore(client, "")
	require.NoError(t, err)
	require.NoError(t, s.MarkSeen(context.Background(), "42", "m-7"))
	require.Equal(t, "m-7", mr.HGet("lead-responder:seen", "42"))
}

func TestRedisStore_Errors(t *testing.T) {
	_, err := NewRedisStore(nil, "x:")
	require.Error(t, err)

	s, mr := newRedisStoreForTest(t)
	require.Error(t, s.MarkSeen(context.Background(), " ", "m"))

	mr.Close()
	_, _, err = s.LastSeen(context.Background(), "42")
	require.Error(t, err)
	require.Contains(t, err.Error(), "redis LastSeen")
}
