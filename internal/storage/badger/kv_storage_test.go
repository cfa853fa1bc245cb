package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/tubecast/internal/interfaces"
)

func TestKVStorage_SetAndGet(t *testing.T) {
	store := newTestManager(t).KeyValueStorage()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "smtp_host", "smtp.example.com", "mail server"))

	value, err := store.Get(ctx, "smtp_host")
	require.NoError(t, err)
	assert.Equal(t, "smtp.example.com", value)

	// Keys are case-insensitive
	value, err = store.Get(ctx, "SMTP_Host")
	require.NoError(t, err)
	assert.Equal(t, "smtp.example.com", value)
}

func TestKVStorage_GetMissing(t *testing.T) {
	store := newTestManager(t).KeyValueStorage()

	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)
}

func TestKVStorage_SetPreservesCreatedAt(t *testing.T) {
	store := newTestManager(t).KeyValueStorage()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "key1", "v1", ""))

	pairs, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	created := pairs[0].CreatedAt

	require.NoError(t, store.Set(ctx, "key1", "v2", ""))

	pairs, err = store.List(ctx)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, "v2", pairs[0].Value)
	assert.Equal(t, created, pairs[0].CreatedAt)
}

func TestKVStorage_Delete(t *testing.T) {
	store := newTestManager(t).KeyValueStorage()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "gone", "v", ""))
	require.NoError(t, store.Delete(ctx, "gone"))

	_, err := store.Get(ctx, "gone")
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)

	assert.ErrorIs(t, store.Delete(ctx, "gone"), interfaces.ErrKeyNotFound)
}

func TestKVStorage_GetAll(t *testing.T) {
	store := newTestManager(t).KeyValueStorage()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "a", "1", ""))
	require.NoError(t, store.Set(ctx, "b", "2", ""))

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, all)
}
