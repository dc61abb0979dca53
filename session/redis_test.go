package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStorage(t *testing.T) *RedisStorage {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	storage, err := NewRedisStorage(client, "")
	require.NoError(t, err)
	return storage
}

func TestRedisStorageGetSetDel(t *testing.T) {
	storage := newRedisStorage(t)
	ctx := context.Background()

	_, ok, err := storage.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, storage.Set(ctx, "k", "v"))
	value, ok, err := storage.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", value)

	require.NoError(t, storage.Del(ctx, "k"))
	_, ok, err = storage.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStorageWatch(t *testing.T) {
	storage := newRedisStorage(t)
	ctx := context.Background()

	keys := make(chan string, 8)
	stop, err := storage.Watch(func(key string) { keys <- key })
	require.NoError(t, err)
	defer stop()

	require.NoError(t, storage.Set(ctx, "k", "v"))
	select {
	case key := <-keys:
		assert.Equal(t, "k", key)
	case <-time.After(time.Second):
		t.Fatal("watch never fired for set")
	}

	require.NoError(t, storage.Del(ctx, "k"))
	select {
	case key := <-keys:
		assert.Equal(t, "k", key)
	case <-time.After(time.Second):
		t.Fatal("watch never fired for del")
	}

	// Deleting a missing key publishes nothing.
	require.NoError(t, storage.Del(ctx, "k"))
	select {
	case key := <-keys:
		t.Fatalf("unexpected notification for %q", key)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRedisStorageBacksReconciler(t *testing.T) {
	storage := newRedisStorage(t)

	a := newTestReconciler(t, storage, nopLogin)
	b := newTestReconciler(t, storage, nopLogin)

	raw := liveToken(t, "a@b.c")
	a.SetRequestedToken(raw)
	a.SetPassword("pw")
	require.Equal(t, StateLoggedIn, a.State().Kind)

	st := eventuallyKind(t, b, StatePasswordRequired)
	assert.Equal(t, raw, st.Token)
}
