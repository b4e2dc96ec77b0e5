package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryNonceStoreConsumesOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryNonceStore()
	now := time.Now()
	store.now = func() time.Time { return now }

	require.NoError(t, store.Put(ctx, "0xabc", "n1", time.Minute))
	ok, err := store.Consume(ctx, "0xabc", "n1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = store.Consume(ctx, "0xabc", "n1")
	assert.False(t, ok)

	require.NoError(t, store.Put(ctx, "0xabc", "n2", time.Minute))
	now = now.Add(2 * time.Minute)
	ok, _ = store.Consume(ctx, "0xabc", "n2")
	assert.False(t, ok, "expired nonce accepted")
	assert.Zero(t, store.Len())
}

func TestMemoryNonceStoreCapsPerAddress(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryNonceStore()
	now := time.Now()
	store.now = func() time.Time { return now }

	for i := 0; i < maxNoncesPerAddress+3; i++ {
		now = now.Add(time.Second)
		require.NoError(t, store.Put(ctx, "0xabc", fmt.Sprintf("n%d", i), time.Minute))
	}
	assert.Equal(t, maxNoncesPerAddress, store.Len())

	ok, _ := store.Consume(ctx, "0xabc", "n0")
	assert.False(t, ok, "oldest nonce should have been evicted")
	ok, _ = store.Consume(ctx, "0xabc", fmt.Sprintf("n%d", maxNoncesPerAddress+2))
	assert.True(t, ok)
}

func TestMemoryNonceStoreCapsTotal(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryNonceStore()
	store.capacity = 3
	now := time.Now()
	store.now = func() time.Time { return now }

	for i := 0; i < 10; i++ {
		now = now.Add(time.Second)
		require.NoError(t, store.Put(ctx, fmt.Sprintf("0x%d", i), "n", time.Hour))
	}
	assert.Equal(t, 3, store.Len())

	ok, _ := store.Consume(ctx, "0x9", "n")
	assert.True(t, ok)
	ok, _ = store.Consume(ctx, "0x0", "n")
	assert.False(t, ok)
}
