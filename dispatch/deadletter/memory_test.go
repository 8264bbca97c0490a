package deadletter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreWrite(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, "msg-1/2026-03-01", Record{Subject: "a"}))
	require.NoError(t, store.Write(ctx, "msg-2/2026-03-01", Record{Subject: "b"}))

	assert.Equal(t, 2, store.Len())

	record, ok := store.Get("msg-1/2026-03-01")
	require.True(t, ok)
	assert.Equal(t, "a", record.Subject)
}

func TestMemoryStoreNeverOverwrites(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, "msg-1/2026-03-01", Record{Subject: "first"}))
	require.NoError(t, store.Write(ctx, "msg-1/2026-03-01", Record{Subject: "second"}))
	require.NoError(t, store.Write(ctx, "msg-1/2026-03-01", Record{Subject: "third"}))

	assert.Equal(t, 3, store.Len())

	first, ok := store.Get("msg-1/2026-03-01")
	require.True(t, ok)
	assert.Equal(t, "first", first.Subject)

	second, ok := store.Get("msg-1/2026-03-01#2")
	require.True(t, ok)
	assert.Equal(t, "second", second.Subject)

	third, ok := store.Get("msg-1/2026-03-01#3")
	require.True(t, ok)
	assert.Equal(t, "third", third.Subject)
}

func TestMemoryStoreAll(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	assert.Empty(t, store.All())

	require.NoError(t, store.Write(ctx, "k1", Record{Subject: "a"}))
	require.NoError(t, store.Write(ctx, "k2", Record{Subject: "b"}))

	subjects := make(map[string]bool)
	for _, record := range store.All() {
		subjects[record.Subject] = true
	}

	assert.True(t, subjects["a"])
	assert.True(t, subjects["b"])
}
