package store

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInmemBackend(t *testing.T) {
	ctx := context.Background()
	b := NewInmemBackend()

	t.Run("GetMissing", func(t *testing.T) {
		entry, err := b.Get(ctx, "missing")
		require.NoError(t, err, "Missing key is not an error")
		require.Nil(t, entry)
	})

	t.Run("PutAndGet", func(t *testing.T) {
		require.NoError(t, b.Put(ctx, &Entry{Key: "k1", Value: []byte("v1")}))

		entry, err := b.Get(ctx, "k1")
		require.NoError(t, err)
		require.NotNil(t, entry)
		require.Equal(t, "k1", entry.Key)
		require.Equal(t, []byte("v1"), entry.Value)
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, b.Put(ctx, &Entry{Key: "k1", Value: []byte("v2")}))

		entry, err := b.Get(ctx, "k1")
		require.NoError(t, err)
		require.Equal(t, []byte("v2"), entry.Value)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, b.Delete(ctx, "k1"))

		entry, err := b.Get(ctx, "k1")
		require.NoError(t, err)
		require.Nil(t, entry)

		// Deleting again is a no-op.
		require.NoError(t, b.Delete(ctx, "k1"))
	})

	t.Run("ValueCopied", func(t *testing.T) {
		value := []byte("original")
		require.NoError(t, b.Put(ctx, &Entry{Key: "copy", Value: value}))

		// Mutating the caller's slice must not leak into the store.
		value[0] = 'X'

		entry, err := b.Get(ctx, "copy")
		require.NoError(t, err)
		require.Equal(t, []byte("original"), entry.Value)

		// Nor may mutating a returned value.
		entry.Value[0] = 'Y'
		again, err := b.Get(ctx, "copy")
		require.NoError(t, err)
		require.Equal(t, []byte("original"), again.Value)
	})
}

func TestInmemBackendZeroValue(t *testing.T) {
	ctx := context.Background()
	var b InmemBackend

	require.NoError(t, b.Put(ctx, &Entry{Key: "k", Value: []byte("v")}))
	entry, err := b.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("v"), entry.Value)
	require.Equal(t, 1, b.Len())
}

func TestInmemBackendConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	b := NewInmemBackend()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("k-%d-%d", n, j)
				_ = b.Put(ctx, &Entry{Key: key, Value: []byte("v")})
				_, _ = b.Get(ctx, key)
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, 800, b.Len())
}
