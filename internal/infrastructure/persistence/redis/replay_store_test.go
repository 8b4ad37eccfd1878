package redis_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpopcore/authcore/internal/infrastructure/persistence/redis"
	"github.com/dpopcore/authcore/internal/infrastructure/security/replay"
)

func newTestClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	client, err := redis.NewClient(redis.Config{
		Host:     mr.Host(),
		Port:     port,
		PoolSize: 5,
		MinIdle:  1,
		MaxRetry: 1,
		Timeout:  time.Second,
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = client.Close() })

	return client, mr
}

func TestReplayStore_FirstPresentationStores(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t)
	store := redis.NewReplayStore(client)

	stored, err := store.CheckAndStore(context.Background(), "dpop:user-1:jti-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, stored)
}

func TestReplayStore_SecondPresentationIsReplay(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t)
	store := redis.NewReplayStore(client)

	ctx := context.Background()
	key := "dpop:user-1:jti-2"

	stored, err := store.CheckAndStore(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, stored)

	stored, err = store.CheckAndStore(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, stored, "second presentation of the same key must be rejected")
}

func TestReplayStore_DistinctKeysDoNotCollide(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t)
	store := redis.NewReplayStore(client)

	ctx := context.Background()
	stored1, err := store.CheckAndStore(ctx, "dpop:user-1:jti-3", time.Minute)
	require.NoError(t, err)
	stored2, err := store.CheckAndStore(ctx, "dpop:user-2:jti-3", time.Minute)
	require.NoError(t, err)

	assert.True(t, stored1)
	assert.True(t, stored2, "the same jti under a different subject must not collide")
}

func TestReplayStore_ExpiresAfterTTL(t *testing.T) {
	t.Parallel()

	client, mr := newTestClient(t)
	store := redis.NewReplayStore(client)

	ctx := context.Background()
	key := "dpop:user-1:jti-4"

	stored, err := store.CheckAndStore(ctx, key, time.Second)
	require.NoError(t, err)
	require.True(t, stored)

	mr.FastForward(2 * time.Second)

	stored, err = store.CheckAndStore(ctx, key, time.Second)
	require.NoError(t, err)
	assert.True(t, stored, "a key must be reusable once its ttl has elapsed")
}

func TestReplayStore_BackendFailureWrapsErrBackend(t *testing.T) {
	t.Parallel()

	client, mr := newTestClient(t)
	store := redis.NewReplayStore(client)

	mr.Close()

	_, err := store.CheckAndStore(context.Background(), "dpop:user-1:jti-5", time.Minute)
	assert.ErrorIs(t, err, replay.ErrBackend)
}
