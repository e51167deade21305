package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*miniredis.Miniredis, *AttemptStore) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewAttemptStore(client, "test")
}

func TestAttemptStoreCountsWithinWindow(t *testing.T) {
	mr, store := newTestStore(t)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		n, err := store.Increment(ctx, "login:a@example.com", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}

	count, err := store.Count(ctx, "login:a@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	assert.Equal(t, time.Minute, mr.TTL("test:login:a@example.com"))
}

func TestAttemptStoreWindowExpires(t *testing.T) {
	mr, store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	count, err := store.Count(ctx, "k")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestAttemptStoreReset(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.Reset(ctx, "k"))

	count, err := store.Count(ctx, "k")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestAttemptStoreUnavailable(t *testing.T) {
	mr, store := newTestStore(t)
	mr.Close()

	_, err := store.Increment(context.Background(), "k", time.Minute)
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	_, err = store.Count(context.Background(), "k")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}
