package idempotency

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, ""), mr
}

func TestRedisStore_ReserveAndReplay(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	res, err := store.Reserve(ctx, "key-1", "fp", fixedTime, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, ReservationStateNew, res.State)

	res, err = store.Reserve(ctx, "key-1", "fp", fixedTime, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, ReservationStatePending, res.State)

	header := http.Header{"Content-Type": []string{"application/json"}, "Date": []string{"now"}}
	require.NoError(t, store.SaveResponse(ctx, "key-1", "fp", Response{Status: 201, Headers: header, Body: []byte(`{}`)}, fixedTime, time.Hour))

	res, err = store.Reserve(ctx, "key-1", "fp", fixedTime, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, ReservationStateCompleted, res.State)
	assert.Equal(t, 201, res.Record.ResponseStatus)
	assert.Equal(t, []byte(`{}`), res.Record.ResponseBody)
	assert.NotContains(t, res.Record.ResponseHeaders, "Date")

	_, err = store.Reserve(ctx, "key-1", "other", fixedTime, time.Hour)
	assert.True(t, errors.Is(err, ErrFingerprintMismatch))
}

func TestRedisStore_TTLExpiresAndRelease(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	_, err := store.Reserve(ctx, "key-2", "fp", fixedTime, time.Minute)
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)

	res, err := store.Reserve(ctx, "key-2", "fp2", fixedTime, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, ReservationStateNew, res.State)

	require.NoError(t, store.Release(ctx, "key-2", "fp2"))
	assert.False(t, mr.Exists(store.redisKey("key-2")))
}
