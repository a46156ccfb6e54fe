package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewStore(rdb, time.Hour), mr
}

func TestCreateAndGet(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	token, err := store.Create(ctx, "temp/abc/1.jpg", "1990-04-01")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	rec, err := store.Get(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "temp/abc/1.jpg", rec.PhotoKey)
	assert.Equal(t, "1990-04-01", rec.DOB)
	assert.False(t, rec.Confirmed)
}

func TestTokensAreUnique(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		token, err := store.Create(ctx, "k", "")
		require.NoError(t, err)
		assert.False(t, seen[token])
		seen[token] = true
	}
}

func TestGetUnknownToken(t *testing.T) {
	store, _ := setupStore(t)

	rec, err := store.Get(context.Background(), "no-such-token")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, rec)
}

func TestExpiredIndistinguishableFromUnknown(t *testing.T) {
	store, mr := setupStore(t)
	ctx := context.Background()

	token, err := store.Create(ctx, "temp/abc/1.jpg", "")
	require.NoError(t, err)

	mr.FastForward(time.Hour + time.Second)

	_, expiredErr := store.Get(ctx, token)
	_, unknownErr := store.Get(ctx, "never-existed")
	assert.ErrorIs(t, expiredErr, ErrNotFound)
	assert.ErrorIs(t, unknownErr, ErrNotFound)
	assert.Equal(t, expiredErr, unknownErr)
}

func TestConfirm(t *testing.T) {
	store, mr := setupStore(t)
	ctx := context.Background()

	token, err := store.Create(ctx, "temp/abc/1.jpg", "")
	require.NoError(t, err)

	ok, err := store.Confirm(ctx, token)
	require.NoError(t, err)
	assert.True(t, ok)

	rec, err := store.Get(ctx, token)
	require.NoError(t, err)
	assert.True(t, rec.Confirmed)

	// Confirming keeps the original expiry rather than extending it.
	ttl := mr.TTL(keyPrefix + token)
	assert.True(t, ttl > 0 && ttl <= time.Hour, "ttl = %v", ttl)
}

func TestConfirmUnknownToken(t *testing.T) {
	store, _ := setupStore(t)

	ok, err := store.Confirm(context.Background(), "no-such-token")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConfirmIsMonotonic(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	token, err := store.Create(ctx, "k", "")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		ok, err := store.Confirm(ctx, token)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	rec, err := store.Get(ctx, token)
	require.NoError(t, err)
	assert.True(t, rec.Confirmed)
}

func TestConsume(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	token, err := store.Create(ctx, "temp/abc/1.jpg", "")
	require.NoError(t, err)

	rec, err := store.Consume(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "temp/abc/1.jpg", rec.PhotoKey)

	// A second consume loses the race.
	_, err = store.Consume(ctx, token)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Get(ctx, token)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRestoreAfterFailedConversion(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	token, err := store.Create(ctx, "temp/abc/1.jpg", "1990-04-01")
	require.NoError(t, err)
	_, err = store.Confirm(ctx, token)
	require.NoError(t, err)

	rec, err := store.Consume(ctx, token)
	require.NoError(t, err)

	require.NoError(t, store.Restore(ctx, token, rec))

	got, err := store.Get(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}
