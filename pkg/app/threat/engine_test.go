package threat_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/NeuralTrust/ThreatGate/pkg/app/threat"
	"github.com/NeuralTrust/ThreatGate/pkg/domain"
	"github.com/NeuralTrust/ThreatGate/pkg/domain/counter"
	"github.com/NeuralTrust/ThreatGate/pkg/domain/ledger"
	"github.com/NeuralTrust/ThreatGate/pkg/domain/ledger/mocks"
	"github.com/NeuralTrust/ThreatGate/pkg/domain/signature"
	domainThreat "github.com/NeuralTrust/ThreatGate/pkg/domain/threat"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/cache"
	infraCounter "github.com/NeuralTrust/ThreatGate/pkg/infra/counter"
	"github.com/NeuralTrust/ThreatGate/pkg/utils"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const curlUA = "curl/8.4.0"

func setupEngine(t *testing.T, sigs []ledger.Signature) (threat.Engine, *infraCounter.MemoryStore) {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	store := infraCounter.NewMemoryStore(cache.NewTTLMap(time.Hour))
	l := new(mocks.Ledger)
	l.On("AllSignatures", mock.Anything).Return(sigs, nil)
	return threat.NewEngine(logger, store, l, domainThreat.DefaultPolicy(), 20), store
}

func fingerprint(ip, endpoint, ua string) domainThreat.Fingerprint {
	return domainThreat.Fingerprint{
		IP:         ip,
		SourceHash: utils.SourceHash(ip),
		Endpoint:   endpoint,
		Method:     "GET",
		Timestamp:  time.Now(),
		UserAgent:  ua,
	}
}

func TestEngine_ScriptedSourceScoresHigh(t *testing.T) {
	engine, _ := setupEngine(t, nil)
	ctx := context.Background()
	fp := fingerprint("203.0.113.7", "/api/patients", curlUA)

	var (
		total int
		b     domainThreat.Breakdown
	)
	for i := 0; i < 101; i++ {
		total, b = engine.Score(ctx, fp)
	}

	assert.Equal(t, 20, b.Rate)
	assert.GreaterOrEqual(t, b.Pattern, 15)
	assert.Equal(t, 20, b.Session)
	assert.Equal(t, 15, b.Entropy)
	assert.Equal(t, 0, b.Signature)
	assert.Equal(t, domainThreat.TierHigh, domainThreat.DefaultPolicy().Classify(total))
}

func TestEngine_FirstRequest(t *testing.T) {
	engine, _ := setupEngine(t, nil)
	fp := fingerprint("198.51.100.1", "/", "")
	fp.HasSession = true
	fp.HasCookies = true

	total, b := engine.Score(context.Background(), fp)
	assert.Equal(t, 0, total)
	assert.Equal(t, domainThreat.Breakdown{}, b)
}

func TestEngine_SessionFactor(t *testing.T) {
	engine, _ := setupEngine(t, nil)
	ctx := context.Background()

	cookieOnly := fingerprint("198.51.100.2", "/", "")
	cookieOnly.HasCookies = true
	_, b := engine.Score(ctx, cookieOnly)
	assert.Equal(t, 10, b.Session)

	authed := fingerprint("198.51.100.3", "/", "")
	authed.IsAuthenticated = true
	_, b = engine.Score(ctx, authed)
	assert.Equal(t, 0, b.Session)
}

func TestEngine_RateSteps(t *testing.T) {
	engine, _ := setupEngine(t, nil)
	ctx := context.Background()
	fp := fingerprint("198.51.100.4", "/", "")

	expect := map[int]int{30: 0, 31: 10, 50: 10, 51: 15, 100: 15, 101: 20}
	for i := 1; i <= 101; i++ {
		_, b := engine.Score(ctx, fp)
		if want, ok := expect[i]; ok {
			assert.Equal(t, want, b.Rate, "request %d", i)
		}
	}
}

func TestEngine_PatternNeedsSamples(t *testing.T) {
	engine, _ := setupEngine(t, nil)
	ctx := context.Background()
	fp := fingerprint("198.51.100.5", "/same", "")

	for i := 0; i < 9; i++ {
		_, b := engine.Score(ctx, fp)
		assert.Equal(t, 0, b.Pattern)
	}
	_, b := engine.Score(ctx, fp)
	assert.Equal(t, 25, b.Pattern)
}

func TestEngine_EntropyManyAgents(t *testing.T) {
	engine, _ := setupEngine(t, nil)
	ctx := context.Background()

	var b domainThreat.Breakdown
	for i := 0; i < 6; i++ {
		_, b = engine.Score(ctx, fingerprint("198.51.100.6", "/", fmt.Sprintf("agent-%d", i)))
		if i >= 1 && i <= 4 {
			assert.Equal(t, 0, b.Entropy)
		}
	}
	assert.Equal(t, 10, b.Entropy)

	_, b = engine.Score(ctx, fingerprint("198.51.100.7", "/", ""))
	assert.Equal(t, 0, b.Entropy)
}

func TestEngine_AuthFailures(t *testing.T) {
	engine, _ := setupEngine(t, nil)
	ctx := context.Background()
	fp := fingerprint("198.51.100.8", "/login", "")

	for i := 0; i < 6; i++ {
		require.NoError(t, engine.RecordAuthFailure(ctx, fp.SourceHash))
	}
	_, b := engine.Score(ctx, fp)
	assert.Equal(t, 7, b.AuthFailure)
}

func TestEngine_SignatureMatch(t *testing.T) {
	d := signature.NewDescriptor(
		[]string{"/api/patients", "/login"},
		utils.UserAgentClass(curlUA),
		utils.UserAgentDigest(curlUA),
		signature.CadenceLow,
	)
	sigs := []ledger.Signature{
		{PatternHash: "0xbad", Pattern: "garbage"},
		{PatternHash: d.Hash(), Pattern: d.Key(), Severity: 8},
	}
	engine, _ := setupEngine(t, sigs)
	ctx := context.Background()

	_, b := engine.Score(ctx, fingerprint("198.51.100.9", "/login", curlUA))
	assert.Equal(t, 30, b.Signature)

	_, b = engine.Score(ctx, fingerprint("198.51.100.10", "/other", curlUA))
	assert.Equal(t, 0, b.Signature)

	_, b = engine.Score(ctx, fingerprint("198.51.100.11", "/login", "wget/1.21"))
	assert.Equal(t, 0, b.Signature)
}

func TestEngine_StaleSignaturesStillMatch(t *testing.T) {
	d := signature.NewDescriptor([]string{"/login"}, "none", utils.UserAgentDigest(""), signature.CadenceLow)
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	l := new(mocks.Ledger)
	l.On("AllSignatures", mock.Anything).
		Return([]ledger.Signature{{PatternHash: d.Hash(), Pattern: d.Key()}}, domain.ErrLedgerUnavailable)
	engine := threat.NewEngine(logger, infraCounter.NewMemoryStore(cache.NewTTLMap(time.Hour)), l,
		domainThreat.DefaultPolicy(), 20)

	_, b := engine.Score(context.Background(), fingerprint("192.0.2.1", "/login", ""))
	assert.Equal(t, 30, b.Signature)
}

func TestEngine_TotalCapped(t *testing.T) {
	d := signature.NewDescriptor([]string{"/x"}, utils.UserAgentClass(curlUA), utils.UserAgentDigest(curlUA),
		signature.CadenceLow)
	engine, _ := setupEngine(t, []ledger.Signature{{PatternHash: d.Hash(), Pattern: d.Key()}})
	ctx := context.Background()
	fp := fingerprint("192.0.2.2", "/x", curlUA)
	for i := 0; i < 11; i++ {
		require.NoError(t, engine.RecordAuthFailure(ctx, fp.SourceHash))
	}

	var (
		total int
		b     domainThreat.Breakdown
	)
	for i := 0; i < 101; i++ {
		total, b = engine.Score(ctx, fp)
	}
	assert.Greater(t, b.Sum(), 100)
	assert.Equal(t, 100, total)
}

func TestEngine_RelieveAndReset(t *testing.T) {
	engine, store := setupEngine(t, nil)
	ctx := context.Background()
	fp := fingerprint("192.0.2.3", "/", curlUA)

	for i := 0; i < 30; i++ {
		engine.Score(ctx, fp)
	}
	require.NoError(t, engine.Relieve(ctx, fp.SourceHash))

	n, found, err := store.GetInt(ctx, counter.RateKey(fp.SourceHash))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(10), n)
	history, err := store.ListAll(ctx, counter.PatternKey(fp.SourceHash))
	require.NoError(t, err)
	assert.Empty(t, history)

	require.NoError(t, engine.Reset(ctx, fp.SourceHash))
	fresh := fingerprint("192.0.2.4", "/", curlUA)
	first, _ := engine.Score(ctx, fp)
	expected, _ := engine.Score(ctx, fresh)
	assert.Equal(t, expected, first)
}

func TestEngine_RelieveDropsExhaustedCounter(t *testing.T) {
	engine, store := setupEngine(t, nil)
	ctx := context.Background()
	fp := fingerprint("192.0.2.5", "/", "")

	for i := 0; i < 5; i++ {
		engine.Score(ctx, fp)
	}
	require.NoError(t, engine.Relieve(ctx, fp.SourceHash))
	_, found, err := store.GetInt(ctx, counter.RateKey(fp.SourceHash))
	require.NoError(t, err)
	assert.False(t, found)
}

type failingStore struct{ counter.Store }

func (failingStore) IncrWithTTL(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("down")
}
func (failingStore) PushTrim(context.Context, string, string, int64, time.Duration) error {
	return errors.New("down")
}
func (failingStore) SetAdd(context.Context, string, string, time.Duration) error {
	return errors.New("down")
}
func (failingStore) GetInt(context.Context, string) (int64, bool, error) {
	return 0, false, errors.New("down")
}

func TestEngine_StoreFailuresFailOpen(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	l := new(mocks.Ledger)
	l.On("AllSignatures", mock.Anything).Return([]ledger.Signature(nil), nil)
	engine := threat.NewEngine(logger, failingStore{}, l, domainThreat.DefaultPolicy(), 20)

	total, b := engine.Score(context.Background(), fingerprint("192.0.2.6", "/", curlUA))
	assert.Equal(t, 20, total)
	assert.Equal(t, 20, b.Session)
}
