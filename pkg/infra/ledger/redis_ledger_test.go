package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/NeuralTrust/ThreatGate/pkg/domain"
	"github.com/NeuralTrust/ThreatGate/pkg/domain/ledger"
	"github.com/go-redis/redismock/v8"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisLedger(t *testing.T, now time.Time) (*RedisLedger, redismock.ClientMock) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	db, mock := redismock.NewClientMock()
	return NewRedisLedger(logger, db, "secret", "gw-1", WithTimeProvider(func() time.Time { return now })), mock
}

func TestRedisLedger_Lookup(t *testing.T) {
	now := time.Unix(1700000000, 0)
	l, mock := newRedisLedger(t, now)
	ctx := context.Background()

	mock.ExpectGet(blockKey("0xa")).RedisNil()
	entry, err := l.Lookup(ctx, "0xa")
	require.NoError(t, err)
	assert.Nil(t, entry)

	stored := ledger.Entry{SourceHash: "0xb", Reason: "r", BlockedAt: now.Unix() - 10, ExpiresAt: now.Unix() + 60}
	b, _ := json.Marshal(stored)
	mock.ExpectGet(blockKey("0xb")).SetVal(string(b))
	blocked, err := l.IsBlocked(ctx, "0xb")
	require.NoError(t, err)
	assert.True(t, blocked)

	expired := ledger.Entry{SourceHash: "0xc", BlockedAt: now.Unix() - 100, ExpiresAt: now.Unix() - 1}
	b, _ = json.Marshal(expired)
	mock.ExpectGet(blockKey("0xc")).SetVal(string(b))
	blocked, err = l.IsBlocked(ctx, "0xc")
	require.NoError(t, err)
	assert.False(t, blocked)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLedger_LookupUnavailable(t *testing.T) {
	l, mock := newRedisLedger(t, time.Now())

	mock.ExpectGet(blockKey("0xa")).SetErr(errors.New("i/o timeout"))
	_, err := l.Lookup(context.Background(), "0xa")
	assert.ErrorIs(t, err, domain.ErrLedgerUnavailable)
}

func TestRedisLedger_AllSignaturesSkipsGarbage(t *testing.T) {
	l, mock := newRedisLedger(t, time.Now())

	sig := ledger.Signature{PatternHash: "0x1", Pattern: "{}", Severity: 8}
	b, _ := json.Marshal(sig)
	mock.ExpectHGetAll(signaturesKey).SetVal(map[string]string{
		"0x1": string(b),
		"0x2": "not-json",
	})

	sigs, err := l.AllSignatures(context.Background())
	require.NoError(t, err)
	require.Len(t, sigs, 1)
	assert.Equal(t, 8, sigs[0].Severity)
}

func TestRedisLedger_Verify(t *testing.T) {
	l, mock := newRedisLedger(t, time.Now())

	mock.ExpectLRange(chainKey, 0, -1).SetVal(buildChain(t, []byte("secret"), 3))
	report, err := l.Verify(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Equal(t, int64(3), report.Length)

	mock.ExpectLRange(chainKey, 0, -1).SetVal(buildChain(t, []byte("wrong"), 2))
	report, err = l.Verify(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Valid)
	assert.Equal(t, int64(1), report.BrokenAt)
}
