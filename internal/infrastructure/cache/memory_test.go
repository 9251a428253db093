package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newTestMemoryStore(t *testing.T) (*MemoryStore, *time.Time) {
	t.Helper()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore(time.Hour, zaptest.NewLogger(t))
	store.clock = func() time.Time { return now }
	t.Cleanup(func() { store.Close() })

	return store, &now
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store, _ := newTestMemoryStore(t)
	ctx := context.Background()

	in := payload{Name: "overview", Count: 42}
	require.NoError(t, store.Set(ctx, "k1", in, 5*time.Minute))

	var out payload
	require.NoError(t, store.Get(ctx, "k1", &out))
	assert.Equal(t, in, out)
}

func TestMemoryStoreMiss(t *testing.T) {
	store, _ := newTestMemoryStore(t)

	var out payload
	err := store.Get(context.Background(), "absent", &out)
	require.Error(t, err)
	assert.ErrorAs(t, err, &ErrKeyNotFound{})
}

func TestMemoryStoreExpiry(t *testing.T) {
	store, now := newTestMemoryStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k1", payload{Name: "a"}, 5*time.Minute))

	// Just before expiry the entry is still served.
	*now = now.Add(5*time.Minute - time.Second)
	var out payload
	require.NoError(t, store.Get(ctx, "k1", &out))

	// At the expiry instant the entry is gone and removed lazily.
	*now = now.Add(time.Second)
	err := store.Get(ctx, "k1", &out)
	assert.ErrorAs(t, err, &ErrKeyNotFound{})
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStoreSetOverwrites(t *testing.T) {
	store, _ := newTestMemoryStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k1", payload{Count: 1}, time.Minute))
	require.NoError(t, store.Set(ctx, "k1", payload{Count: 2}, time.Minute))

	var out payload
	require.NoError(t, store.Get(ctx, "k1", &out))
	assert.Equal(t, 2, out.Count)
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStoreSnapshotSemantics(t *testing.T) {
	store, _ := newTestMemoryStore(t)
	ctx := context.Background()

	in := map[string]int{"a": 1}
	require.NoError(t, store.Set(ctx, "k1", in, time.Minute))
	in["a"] = 99

	var out map[string]int
	require.NoError(t, store.Get(ctx, "k1", &out))
	assert.Equal(t, 1, out["a"], "mutating the original after Set must not affect the cached value")
}

func TestMemoryStoreDelete(t *testing.T) {
	store, _ := newTestMemoryStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k1", payload{}, time.Minute))
	require.NoError(t, store.Delete(ctx, "k1"))

	var out payload
	assert.ErrorAs(t, store.Get(ctx, "k1", &out), &ErrKeyNotFound{})

	// Deleting an absent key is not an error.
	require.NoError(t, store.Delete(ctx, "k1"))
}

func TestMemoryStoreSweep(t *testing.T) {
	store, now := newTestMemoryStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "short", payload{}, time.Minute))
	require.NoError(t, store.Set(ctx, "long", payload{}, time.Hour))

	*now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, store.sweep())
	assert.Equal(t, 1, store.Len())

	var out payload
	require.NoError(t, store.Get(ctx, "long", &out))
}

func TestMemoryStoreCloseIsIdempotent(t *testing.T) {
	store := NewMemoryStore(time.Hour, zaptest.NewLogger(t))
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}
