package challenge_test

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/NeuralTrust/ThreatGate/pkg/app/challenge"
	"github.com/NeuralTrust/ThreatGate/pkg/app/threat/mocks"
	"github.com/NeuralTrust/ThreatGate/pkg/domain/counter"
	domainThreat "github.com/NeuralTrust/ThreatGate/pkg/domain/threat"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/cache"
	infraCounter "github.com/NeuralTrust/ThreatGate/pkg/infra/counter"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	sourceA = "0xaaaa"
	sourceB = "0xbbbb"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

type fixture struct {
	manager challenge.Manager
	store   *infraCounter.MemoryStore
	engine  *mocks.Engine
	clock   *clock
}

func testConfig() challenge.Config {
	return challenge.Config{
		TTL:             300 * time.Second,
		PassTTL:         120 * time.Second,
		MaxFailures:     3,
		FailureWindow:   900 * time.Second,
		BlockDuration:   15 * time.Minute,
		IssueRatePerMin: 60,
		IssueBurst:      3,
	}
}

func setup(t *testing.T) *fixture {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	c := &clock{t: time.Unix(1700000000, 0)}
	store := infraCounter.NewMemoryStore(cache.NewTTLMap(time.Hour).WithClock(c.now))
	engine := new(mocks.Engine)
	m := challenge.NewManager(logger, store, engine, testConfig(), challenge.WithTimeProvider(c.now))
	return &fixture{manager: m, store: store, engine: engine, clock: c}
}

func (f *fixture) answerOf(t *testing.T, token string) string {
	t.Helper()
	raw, found, err := f.store.Get(context.Background(), counter.ChallengeKey(token))
	require.NoError(t, err)
	require.True(t, found)
	var rec struct {
		Answer int `json:"answer"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &rec))
	return strconv.Itoa(rec.Answer)
}

func TestManager_IssueAnswerVerify(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.engine.On("Relieve", mock.Anything, sourceA).Return(nil).Once()

	ch, err := f.manager.Issue(ctx, sourceA)
	require.NoError(t, err)
	assert.NotEmpty(t, ch.Token)
	assert.Contains(t, ch.Question, "= ?")
	assert.Equal(t, 300, ch.ExpiresIn)

	pass, ok, err := f.manager.Answer(ctx, sourceA, ch.Token, f.answerOf(t, ch.Token))
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, pass)

	_, found, err := f.store.Get(ctx, counter.ChallengeKey(ch.Token))
	require.NoError(t, err)
	assert.False(t, found, "a solved challenge is deleted")

	assert.False(t, f.manager.Verify(ctx, sourceB, pass), "pass tokens are bound to the source")
	assert.True(t, f.manager.Verify(ctx, sourceA, pass))
	assert.False(t, f.manager.Verify(ctx, sourceA, pass), "pass tokens are single use")
	f.engine.AssertExpectations(t)
}

func TestManager_PassTokenExpires(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	ch, err := f.manager.Issue(ctx, sourceA)
	require.NoError(t, err)
	pass, ok, err := f.manager.Answer(ctx, sourceA, ch.Token, f.answerOf(t, ch.Token))
	require.NoError(t, err)
	require.True(t, ok)

	f.clock.t = f.clock.t.Add(121 * time.Second)
	assert.False(t, f.manager.Verify(ctx, sourceA, pass))
	f.engine.AssertNotCalled(t, "Relieve", mock.Anything, mock.Anything)
}

func TestManager_ThreeFailuresBlockWithoutExtension(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, ok, err := f.manager.Answer(ctx, sourceA, "missing-token", "1")
		require.NoError(t, err)
		assert.False(t, ok)
	}

	left, blocked := f.manager.BlockedFor(ctx, sourceA)
	require.True(t, blocked)
	assert.Equal(t, 15*time.Minute, left)

	f.clock.t = f.clock.t.Add(5 * time.Minute)
	_, _, err := f.manager.Answer(ctx, sourceA, "missing-token", "1")
	assert.ErrorIs(t, err, challenge.ErrChallengeBlocked)

	left, blocked = f.manager.BlockedFor(ctx, sourceA)
	require.True(t, blocked)
	assert.Equal(t, 10*time.Minute, left, "a failure while blocked never extends the block")

	_, err = f.manager.Issue(ctx, sourceA)
	assert.ErrorIs(t, err, challenge.ErrChallengeBlocked)

	f.clock.t = f.clock.t.Add(10*time.Minute + time.Second)
	_, blocked = f.manager.BlockedFor(ctx, sourceA)
	assert.False(t, blocked)
}

func TestManager_WrongAnswerConsumesChallenge(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	ch, err := f.manager.Issue(ctx, sourceA)
	require.NoError(t, err)
	right := f.answerOf(t, ch.Token)

	_, ok, err := f.manager.Answer(ctx, sourceA, ch.Token, "not-a-number")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = f.manager.Answer(ctx, sourceA, ch.Token, right)
	require.NoError(t, err)
	assert.False(t, ok)

	status, err := f.manager.Status(ctx, sourceA)
	require.NoError(t, err)
	assert.Equal(t, int64(2), status.Failures)
	assert.False(t, status.Blocked)
}

func TestManager_ForeignSourceCountsAsFailure(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	ch, err := f.manager.Issue(ctx, sourceA)
	require.NoError(t, err)
	answer := f.answerOf(t, ch.Token)

	_, ok, err := f.manager.Answer(ctx, sourceB, ch.Token, answer)
	require.NoError(t, err)
	assert.False(t, ok)

	status, err := f.manager.Status(ctx, sourceB)
	require.NoError(t, err)
	assert.Equal(t, int64(1), status.Failures)

	_, ok, err = f.manager.Answer(ctx, sourceA, ch.Token, answer)
	require.NoError(t, err)
	assert.True(t, ok, "the owner can still answer")
}

func TestManager_CorrectAnswerResetsFailures(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, ok, err := f.manager.Answer(ctx, sourceA, "missing-token", "1")
		require.NoError(t, err)
		assert.False(t, ok)
	}

	ch, err := f.manager.Issue(ctx, sourceA)
	require.NoError(t, err)
	_, ok, err := f.manager.Answer(ctx, sourceA, ch.Token, f.answerOf(t, ch.Token))
	require.NoError(t, err)
	require.True(t, ok)

	status, err := f.manager.Status(ctx, sourceA)
	require.NoError(t, err)
	assert.Equal(t, int64(0), status.Failures)

	_, ok, err = f.manager.Answer(ctx, sourceA, "missing-token", "1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, blocked := f.manager.BlockedFor(ctx, sourceA)
	assert.False(t, blocked, "only consecutive failures lead to a block")
	status, err = f.manager.Status(ctx, sourceA)
	require.NoError(t, err)
	assert.Equal(t, int64(1), status.Failures)
}

func TestManager_VerifyResetsFailures(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.engine.On("Relieve", mock.Anything, sourceA).Return(nil)

	_, _, err := f.manager.Answer(ctx, sourceA, "nope", "1")
	require.NoError(t, err)

	ch, err := f.manager.Issue(ctx, sourceA)
	require.NoError(t, err)
	pass, ok, err := f.manager.Answer(ctx, sourceA, ch.Token, f.answerOf(t, ch.Token))
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, f.manager.Verify(ctx, sourceA, pass))

	status, err := f.manager.Status(ctx, sourceA)
	require.NoError(t, err)
	assert.Equal(t, int64(0), status.Failures)
}

func TestManager_IssueIsThrottled(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.manager.Issue(ctx, sourceA)
		require.NoError(t, err)
	}
	_, err := f.manager.Issue(ctx, sourceA)
	assert.ErrorIs(t, err, challenge.ErrTooManyChallenges)

	_, err = f.manager.Issue(ctx, sourceB)
	assert.NoError(t, err, "limits are per source")
}

func TestManager_Exempt(t *testing.T) {
	f := setup(t)
	assert.True(t, f.manager.Exempt(domainThreat.Fingerprint{IsAuthenticated: true, HasSession: true}))
	assert.False(t, f.manager.Exempt(domainThreat.Fingerprint{IsAuthenticated: true}))
	assert.False(t, f.manager.Exempt(domainThreat.Fingerprint{HasSession: true}))
}

func TestParseAnswer(t *testing.T) {
	token, answer, err := challenge.ParseAnswer([]byte(`{"token":"abc","answer":12}`))
	require.NoError(t, err)
	assert.Equal(t, "abc", token)
	assert.Equal(t, "12", answer)

	_, answer, err = challenge.ParseAnswer([]byte(`{"token":"abc","answer":" 7 "}`))
	require.NoError(t, err)
	assert.Equal(t, " 7 ", answer)

	for _, body := range []string{`{}`, `{"token":"abc"}`, `{"answer":1}`, `{"token":"abc","answer":[1]}`, `nope`} {
		_, _, err := challenge.ParseAnswer([]byte(body))
		assert.ErrorIs(t, err, challenge.ErrMalformedAnswer, body)
	}
}
