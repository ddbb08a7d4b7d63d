package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTokenStore(t *testing.T) *TokenStore {
	t.Helper()

	store, err := Open(context.Background(), "file::memory:")
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestTokenStoreAbsentKey(t *testing.T) {
	store := setupTokenStore(t)

	value, err := store.Get(context.Background(), "token")
	require.NoError(t, err)
	assert.Empty(t, value)
}

func TestTokenStoreSetGetOverwrite(t *testing.T) {
	store := setupTokenStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "token", "t1"))
	value, err := store.Get(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, "t1", value)

	store.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	require.NoError(t, store.Set(ctx, "token", "t2"))
	value, err = store.Get(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, "t2", value)

	count, err := store.db.NewSelect().Model((*ClientValueModel)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestTokenStoreKeysAreIndependent(t *testing.T) {
	store := setupTokenStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "token", "t1"))
	require.NoError(t, store.Set(ctx, "other", "o1"))
	require.NoError(t, store.Delete(ctx, "other"))

	value, err := store.Get(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, "t1", value)

	value, err = store.Get(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, value)
}

func TestTokenStoreDeleteIsIdempotent(t *testing.T) {
	store := setupTokenStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "token", "t1"))
	require.NoError(t, store.Delete(ctx, "token"))
	require.NoError(t, store.Delete(ctx, "token"))

	value, err := store.Get(ctx, "token")
	require.NoError(t, err)
	assert.Empty(t, value)
}

func TestTokenStoreRejectsEmptyKey(t *testing.T) {
	store := setupTokenStore(t)

	err := store.Set(context.Background(), "", "value")
	require.Error(t, err)
}

func TestTokenStoreMigrateTwice(t *testing.T) {
	store := setupTokenStore(t)
	require.NoError(t, store.Migrate(context.Background()))
}

func TestTokenStoreRowsThroughRepository(t *testing.T) {
	store := setupTokenStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "token", "t1"))

	id, err := rowID("token")
	require.NoError(t, err)

	record, err := NewClientValuesRepository(store.db).GetByID(ctx, id.String())
	require.NoError(t, err)
	assert.Equal(t, "token", record.Name)
	assert.Equal(t, "t1", record.Value)
}

func TestTokenStoreSetTxRollback(t *testing.T) {
	store := setupTokenStore(t)
	ctx := context.Background()

	tx, err := store.db.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, store.SetTx(ctx, tx, "token", "t1"))
	require.NoError(t, tx.Rollback())

	value, err := store.Get(ctx, "token")
	require.NoError(t, err)
	assert.Empty(t, value)
}
