package cache

import (
	"context"
	"net/http"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockcore/internal/core/apperror"
)

func newStore(t *testing.T) (*IdempotencyStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewIdempotencyStore(client, time.Hour), mr
}

func TestIdempotencyAcquireOnce(t *testing.T) {
	ctx := context.Background()
	store, mr := newStore(t)

	resp, err := store.Acquire(ctx, "k1", "fp")
	require.NoError(t, err)
	assert.Nil(t, resp)
	assert.True(t, mr.Exists("idem:k1"))
	assert.Equal(t, defaultPendingTTL, mr.TTL("idem:k1"))
}

func TestIdempotencyConcurrentDuplicateConflicts(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)

	_, err := store.Acquire(ctx, "k1", "fp")
	require.NoError(t, err)

	_, err = store.Acquire(ctx, "k1", "fp")
	assert.True(t, apperror.HasCode(err, apperror.CodeIdempotency))
	assert.ErrorContains(t, err, "in progress")
}

func TestIdempotencyReplaysCompletedResponse(t *testing.T) {
	ctx := context.Background()
	store, mr := newStore(t)

	_, err := store.Acquire(ctx, "k1", "fp")
	require.NoError(t, err)
	want := StoredResponse{Status: http.StatusCreated, ContentType: "application/json", Body: []byte(`{"number":"ASM-2024-00001"}`)}
	require.NoError(t, store.Complete(ctx, "k1", "fp", want))
	assert.Equal(t, time.Hour, mr.TTL("idem:k1"))

	got, err := store.Acquire(ctx, "k1", "fp")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, *got)
}

func TestIdempotencyKeyReusedForDifferentRequest(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)

	_, err := store.Acquire(ctx, "k1", "fp-a")
	require.NoError(t, err)
	require.NoError(t, store.Complete(ctx, "k1", "fp-a", StoredResponse{Status: http.StatusOK}))

	_, err = store.Acquire(ctx, "k1", "fp-b")
	assert.True(t, apperror.HasCode(err, apperror.CodeIdempotency))
	assert.ErrorContains(t, err, "mismatch")
}

func TestIdempotencyFailReleasesKey(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)

	_, err := store.Acquire(ctx, "k1", "fp")
	require.NoError(t, err)
	require.NoError(t, store.Fail(ctx, "k1"))

	resp, err := store.Acquire(ctx, "k1", "fp")
	require.NoError(t, err)
	assert.Nil(t, resp)
}

func TestIdempotencyPendingClaimExpires(t *testing.T) {
	ctx := context.Background()
	store, mr := newStore(t)
	store.WithPendingTTL(5 * time.Second)

	_, err := store.Acquire(ctx, "k1", "fp")
	require.NoError(t, err)
	mr.FastForward(6 * time.Second)

	resp, err := store.Acquire(ctx, "k1", "fp")
	require.NoError(t, err)
	assert.Nil(t, resp)
}
