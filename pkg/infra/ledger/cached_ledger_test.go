package ledger

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/NeuralTrust/ThreatGate/pkg/domain"
	"github.com/NeuralTrust/ThreatGate/pkg/domain/ledger"
	"github.com/NeuralTrust/ThreatGate/pkg/domain/ledger/mocks"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/cache"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/httpx"
	"github.com/go-redis/redismock/v8"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type testClock struct{ t time.Time }

func (c *testClock) now() time.Time { return c.t }

func newCachedLedger(t *testing.T) (*CachedLedger, *mocks.Ledger, *testClock) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	db, _ := redismock.NewClientMock()
	inner := &mocks.Ledger{}
	clock := &testClock{t: time.Unix(1700000000, 0)}
	l := NewCachedLedger(
		logger,
		inner,
		httpx.NewCircuitBreaker("ledger-test", time.Minute, 100),
		cache.NewClientFromRedis(db),
		CachedLedgerConfig{
			ReadTimeout:       time.Second,
			WriteTimeout:      time.Second,
			BlockCacheTTL:     30 * time.Second,
			SignatureCacheTTL: time.Minute,
		},
	).WithTimeProvider(clock.now)
	return l, inner, clock
}

func TestCachedLedger_LookupIsCached(t *testing.T) {
	l, inner, clock := newCachedLedger(t)
	ctx := context.Background()
	entry := &ledger.Entry{SourceHash: "0xa", Reason: "manual", Manual: true, BlockedAt: clock.t.Unix()}

	inner.On("Lookup", mock.Anything, "0xa").Return(entry, nil).Once()

	got, err := l.Lookup(ctx, "0xa")
	require.NoError(t, err)
	assert.Equal(t, entry, got)

	blocked, err := l.IsBlocked(ctx, "0xa")
	require.NoError(t, err)
	assert.True(t, blocked)
	inner.AssertNumberOfCalls(t, "Lookup", 1)

	clock.t = clock.t.Add(31 * time.Second)
	inner.On("Lookup", mock.Anything, "0xa").Return(nil, nil).Once()
	blocked, err = l.IsBlocked(ctx, "0xa")
	require.NoError(t, err)
	assert.False(t, blocked)
	inner.AssertExpectations(t)
}

func TestCachedLedger_ServesStaleOnFailure(t *testing.T) {
	l, inner, clock := newCachedLedger(t)
	ctx := context.Background()
	entry := &ledger.Entry{SourceHash: "0xa", BlockedAt: clock.t.Unix(), ExpiresAt: clock.t.Add(24 * time.Hour).Unix()}

	inner.On("Lookup", mock.Anything, "0xa").Return(entry, nil).Once()
	_, err := l.Lookup(ctx, "0xa")
	require.NoError(t, err)

	clock.t = clock.t.Add(time.Minute)
	inner.On("Lookup", mock.Anything, "0xa").Return(nil, errors.New("dial tcp: refused")).Once()
	got, err := l.Lookup(ctx, "0xa")
	assert.ErrorIs(t, err, domain.ErrLedgerUnavailable)
	assert.Equal(t, entry, got)

	inner.On("Lookup", mock.Anything, "0xb").Return(nil, errors.New("dial tcp: refused")).Once()
	got, err = l.Lookup(ctx, "0xb")
	assert.ErrorIs(t, err, domain.ErrLedgerUnavailable)
	assert.Nil(t, got)
}

func TestCachedLedger_MarkBlockedAndForget(t *testing.T) {
	l, inner, clock := newCachedLedger(t)
	ctx := context.Background()

	l.MarkBlocked(ledger.Entry{SourceHash: "0xa", BlockedAt: clock.t.Unix(), ExpiresAt: clock.t.Add(24 * time.Hour).Unix()})
	blocked, err := l.IsBlocked(ctx, "0xa")
	require.NoError(t, err)
	assert.True(t, blocked)
	inner.AssertNotCalled(t, "Lookup", mock.Anything, "0xa")

	l.Forget("0xa")
	inner.On("Lookup", mock.Anything, "0xa").Return(nil, nil).Once()
	blocked, err = l.IsBlocked(ctx, "0xa")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestCachedLedger_BlockUpdatesProjection(t *testing.T) {
	l, inner, clock := newCachedLedger(t)
	ctx := context.Background()
	expiry := clock.t.Add(24 * time.Hour)

	inner.On("Block", mock.Anything, "0xa", expiry, "reason", false).Return(ledger.TxRef("0xtx"), nil).Once()
	ref, err := l.Block(ctx, "0xa", expiry, "reason", false)
	require.NoError(t, err)
	assert.Equal(t, ledger.TxRef("0xtx"), ref)

	entry, err := l.Lookup(ctx, "0xa")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, expiry.Unix(), entry.ExpiresAt)

	inner.On("Unblock", mock.Anything, "0xa").Return(ledger.TxRef("0xtx2"), nil).Once()
	_, err = l.Unblock(ctx, "0xa")
	require.NoError(t, err)
	entry, err = l.Lookup(ctx, "0xa")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestCachedLedger_WriteFailureIsUnavailable(t *testing.T) {
	l, inner, _ := newCachedLedger(t)

	inner.On("AddSignature", mock.Anything, "p", 7).Return(ledger.SignatureRef(""), errors.New("boom")).Once()
	_, err := l.AddSignature(context.Background(), "p", 7)
	assert.ErrorIs(t, err, domain.ErrLedgerUnavailable)
}

func TestCachedLedger_SignaturesCachedUntilInvalidated(t *testing.T) {
	l, inner, _ := newCachedLedger(t)
	ctx := context.Background()
	sigs := []ledger.Signature{{PatternHash: "0x1", Severity: 6}}

	inner.On("AllSignatures", mock.Anything).Return(sigs, nil).Twice()

	got, err := l.AllSignatures(ctx)
	require.NoError(t, err)
	assert.Equal(t, sigs, got)
	_, _ = l.AllSignatures(ctx)
	inner.AssertNumberOfCalls(t, "AllSignatures", 1)

	l.ForgetSignatures()
	_, _ = l.AllSignatures(ctx)
	inner.AssertNumberOfCalls(t, "AllSignatures", 2)
}
