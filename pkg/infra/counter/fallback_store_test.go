package counter

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/NeuralTrust/ThreatGate/pkg/domain"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/cache"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/httpx"
	"github.com/go-redis/redismock/v8"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFallback(t *testing.T) (*FallbackStore, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	store := NewFallbackStore(
		logger,
		NewRedisStore(db),
		NewMemoryStore(cache.NewTTLMap(time.Hour)),
		httpx.NewCircuitBreaker("counter-test", time.Minute, 2),
	)
	return store, mock
}

func TestFallbackStore_UsesPrimaryWhenHealthy(t *testing.T) {
	store, mock := newTestFallback(t)

	mock.ExpectIncr("rate:a").SetVal(1)
	mock.ExpectExpire("rate:a", time.Minute).SetVal(true)

	n, err := store.IncrWithTTL(context.Background(), "rate:a", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.False(t, store.Degraded())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFallbackStore_FallsBackAndOpens(t *testing.T) {
	store, mock := newTestFallback(t)
	ctx := context.Background()
	down := errors.New("connection refused")

	mock.ExpectIncr("rate:a").SetErr(down)
	mock.ExpectIncr("rate:a").SetErr(down)

	n, err := store.IncrWithTTL(ctx, "rate:a", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = store.IncrWithTTL(ctx, "rate:a", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// breaker is open now, redis is not called
	n, err = store.IncrWithTTL(ctx, "rate:a", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.True(t, store.Degraded())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFallbackStore_DeleteClearsLocal(t *testing.T) {
	store, mock := newTestFallback(t)
	ctx := context.Background()

	_, _ = store.Local().IncrWithTTL(ctx, "rate:a", time.Minute)
	mock.ExpectDel("rate:a").SetVal(1)

	require.NoError(t, store.Delete(ctx, "rate:a"))
	_, found, _ := store.Local().GetInt(ctx, "rate:a")
	assert.False(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFallbackStore_LocalFailureIsStoreUnavailable(t *testing.T) {
	store, mock := newTestFallback(t)
	ctx := context.Background()

	require.NoError(t, store.Local().SetWithTTL(ctx, "auth_fail:a", "not-a-number", time.Minute))
	mock.ExpectGet("auth_fail:a").SetErr(errors.New("connection refused"))

	_, found, err := store.GetInt(ctx, "auth_fail:a")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.False(t, found)
}
