package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *InMemoryIdempotencyStore {
	t.Helper()
	s := NewInMemoryIdempotencyStore()
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInMemoryIdempotencyStore_MarkProcessed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("claims a new key", func(t *testing.T) {
		claimed, err := store.MarkProcessed(ctx, "upload-1", time.Hour)
		require.NoError(t, err)
		assert.True(t, claimed)
	})

	t.Run("rejects a retried key", func(t *testing.T) {
		claimed, err := store.MarkProcessed(ctx, "upload-2", time.Hour)
		require.NoError(t, err)
		assert.True(t, claimed)

		claimed, err = store.MarkProcessed(ctx, "upload-2", time.Hour)
		require.NoError(t, err)
		assert.False(t, claimed, "retried key should not be claimed again")
	})

	t.Run("reclaims after TTL expiry", func(t *testing.T) {
		claimed, err := store.MarkProcessed(ctx, "upload-3", 10*time.Millisecond)
		require.NoError(t, err)
		assert.True(t, claimed)

		time.Sleep(20 * time.Millisecond)

		claimed, err = store.MarkProcessed(ctx, "upload-3", time.Hour)
		require.NoError(t, err)
		assert.True(t, claimed, "expired key should be claimable again")
	})
}

func TestInMemoryIdempotencyStore_IsProcessed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	processed, err := store.IsProcessed(ctx, "never-seen")
	require.NoError(t, err)
	assert.False(t, processed)

	_, err = store.MarkProcessed(ctx, "seen", time.Hour)
	require.NoError(t, err)

	processed, err = store.IsProcessed(ctx, "seen")
	require.NoError(t, err)
	assert.True(t, processed)

	_, err = store.MarkProcessed(ctx, "short-lived", 10*time.Millisecond)
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	processed, err = store.IsProcessed(ctx, "short-lived")
	require.NoError(t, err)
	assert.False(t, processed, "expired key should read as unprocessed")
}

func TestInMemoryIdempotencyStore_EvictExpired(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.MarkProcessed(ctx, "stale-1", 10*time.Millisecond)
	store.MarkProcessed(ctx, "stale-2", 10*time.Millisecond)
	store.MarkProcessed(ctx, "live", time.Hour)
	assert.Equal(t, 3, store.Size())

	time.Sleep(20 * time.Millisecond)
	store.evictExpired()

	assert.Equal(t, 1, store.Size())

	processed, err := store.IsProcessed(ctx, "live")
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestInMemoryIdempotencyStore_ConcurrentClaims(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	const workers = 100
	results := make(chan bool, workers)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := store.MarkProcessed(ctx, "contested-upload", time.Hour)
			results <- err == nil && claimed
		}()
	}
	wg.Wait()
	close(results)

	claims := 0
	for claimed := range results {
		if claimed {
			claims++
		}
	}
	assert.Equal(t, 1, claims, "exactly one worker should claim the key")
}

func TestInMemoryIdempotencyStore_CloseIsIdempotent(t *testing.T) {
	store := NewInMemoryIdempotencyStore()

	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}
