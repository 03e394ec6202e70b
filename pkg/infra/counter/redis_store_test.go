package counter

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStore_IncrWithTTL(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedisStore(db)
	ctx := context.Background()

	mock.ExpectIncr("rate:abc").SetVal(1)
	mock.ExpectExpire("rate:abc", time.Minute).SetVal(true)
	n, err := store.IncrWithTTL(ctx, "rate:abc", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	mock.ExpectIncr("rate:abc").SetVal(2)
	n, err = store.IncrWithTTL(ctx, "rate:abc", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_PushTrim(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedisStore(db)

	mock.ExpectTxPipeline()
	mock.ExpectLPush("pattern:abc", "/api/login").SetVal(1)
	mock.ExpectLTrim("pattern:abc", 0, 19).SetVal("OK")
	mock.ExpectExpire("pattern:abc", 300*time.Second).SetVal(true)
	mock.ExpectTxPipelineExec()

	err := store.PushTrim(context.Background(), "pattern:abc", "/api/login", 20, 300*time.Second)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_GetInt(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedisStore(db)
	ctx := context.Background()

	mock.ExpectGet("auth_fail:abc").RedisNil()
	n, found, err := store.GetInt(ctx, "auth_fail:abc")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Zero(t, n)

	mock.ExpectGet("auth_fail:abc").SetVal("7")
	n, found, err = store.GetInt(ctx, "auth_fail:abc")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(7), n)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_SetIfAbsentAndTTL(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedisStore(db)
	ctx := context.Background()

	mock.ExpectSetNX("challenge_block:abc", "1700000900", 900*time.Second).SetVal(true)
	ok, err := store.SetIfAbsent(ctx, "challenge_block:abc", "1700000900", 900*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectSetNX("challenge_block:abc", "1700000999", 900*time.Second).SetVal(false)
	ok, err = store.SetIfAbsent(ctx, "challenge_block:abc", "1700000999", 900*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	mock.ExpectTTL("challenge_block:abc").SetVal(600 * time.Second)
	d, err := store.TTL(ctx, "challenge_block:abc")
	require.NoError(t, err)
	assert.Equal(t, 600*time.Second, d)

	mock.ExpectTTL("missing").SetVal(-2)
	d, err = store.TTL(ctx, "missing")
	require.NoError(t, err)
	assert.Zero(t, d)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_GetPropagatesErrors(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedisStore(db)

	mock.ExpectGet("k").SetErr(redis.ErrClosed)
	_, _, err := store.Get(context.Background(), "k")
	assert.ErrorIs(t, err, redis.ErrClosed)
}
