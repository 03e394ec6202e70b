package challenge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/NeuralTrust/ThreatGate/pkg/app/threat"
	"github.com/NeuralTrust/ThreatGate/pkg/domain/counter"
	domainThreat "github.com/NeuralTrust/ThreatGate/pkg/domain/threat"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/cache"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/prometheus"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var (
	ErrChallengeBlocked  = errors.New("source is blocked after repeated challenge failures")
	ErrTooManyChallenges = errors.New("too many challenges requested")
)

type Config struct {
	TTL             time.Duration
	PassTTL         time.Duration
	MaxFailures     int64
	FailureWindow   time.Duration
	BlockDuration   time.Duration
	IssueRatePerMin float64
	IssueBurst      int
}

type Challenge struct {
	Token     string `json:"token"`
	Question  string `json:"question"`
	ExpiresIn int    `json:"expires_in"`
}

type Status struct {
	Blocked    bool          `json:"blocked"`
	RetryAfter time.Duration `json:"-"`
	Failures   int64         `json:"failures"`
}

// record is the stored form of an outstanding challenge.
type record struct {
	SourceHash string `json:"source_hash"`
	Question   string `json:"question"`
	Answer     int    `json:"answer"`
	ExpiresAt  int64  `json:"expires_at"`
}

//go:generate mockery --name=Manager --dir=. --output=./mocks --filename=manager_mock.go --case=underscore --with-expecter
type Manager interface {
	Issue(ctx context.Context, sourceHash string) (*Challenge, error)
	// Answer checks a response and returns a single-use pass token when it is right.
	Answer(ctx context.Context, sourceHash, token, answer string) (string, bool, error)
	// Verify consumes a pass token issued to sourceHash.
	Verify(ctx context.Context, sourceHash, passToken string) bool
	// BlockedFor reports the time left on a local challenge block.
	BlockedFor(ctx context.Context, sourceHash string) (time.Duration, bool)
	Exempt(fp domainThreat.Fingerprint) bool
	Status(ctx context.Context, sourceHash string) (*Status, error)
}

type manager struct {
	logger   *logrus.Logger
	store    counter.Store
	engine   threat.Engine
	cfg      Config
	limiters *cache.TTLMap
	now      func() time.Time
}

type Option func(*manager)

func WithTimeProvider(now func() time.Time) Option {
	return func(m *manager) { m.now = now }
}

func NewManager(
	logger *logrus.Logger,
	store counter.Store,
	engine threat.Engine,
	cfg Config,
	opts ...Option,
) Manager {
	m := &manager{
		logger:   logger,
		store:    store,
		engine:   engine,
		cfg:      cfg,
		limiters: cache.NewTTLMap(10 * time.Minute),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *manager) Issue(ctx context.Context, sourceHash string) (*Challenge, error) {
	if _, blocked := m.BlockedFor(ctx, sourceHash); blocked {
		return nil, ErrChallengeBlocked
	}
	if !m.limiter(sourceHash).AllowN(m.now(), 1) {
		prometheus.ChallengesTotal.WithLabelValues("throttled").Inc()
		return nil, ErrTooManyChallenges
	}

	question, answer := newQuestion()
	token := uuid.NewString()
	rec := record{
		SourceHash: sourceHash,
		Question:   question,
		Answer:     answer,
		ExpiresAt:  m.now().Add(m.cfg.TTL).Unix(),
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode challenge: %w", err)
	}
	if err := m.store.SetWithTTL(ctx, counter.ChallengeKey(token), string(b), m.cfg.TTL); err != nil {
		return nil, fmt.Errorf("failed to store challenge: %w", err)
	}
	prometheus.ChallengesTotal.WithLabelValues("issued").Inc()
	return &Challenge{
		Token:     token,
		Question:  question,
		ExpiresIn: int(m.cfg.TTL / time.Second),
	}, nil
}

func (m *manager) limiter(sourceHash string) *rate.Limiter {
	v := m.limiters.Update(sourceHash, m.limiters.TTL, false, func(current interface{}, exists bool) interface{} {
		if l, ok := current.(*rate.Limiter); exists && ok {
			return l
		}
		return rate.NewLimiter(rate.Limit(m.cfg.IssueRatePerMin/60), m.cfg.IssueBurst)
	})
	l, _ := v.(*rate.Limiter) //nolint:errcheck
	return l
}

func newQuestion() (string, int) {
	a := rand.IntN(10) + 1
	b := rand.IntN(10) + 1
	switch rand.IntN(3) {
	case 0:
		return fmt.Sprintf("%d + %d = ?", a, b), a + b
	case 1:
		if a < b {
			a, b = b, a
		}
		return fmt.Sprintf("%d - %d = ?", a, b), a - b
	default:
		return fmt.Sprintf("%d * %d = ?", a, b), a * b
	}
}

func (m *manager) Answer(ctx context.Context, sourceHash, token, answer string) (string, bool, error) {
	if _, blocked := m.BlockedFor(ctx, sourceHash); blocked {
		m.fail(ctx, sourceHash, "while_blocked")
		return "", false, ErrChallengeBlocked
	}

	key := counter.ChallengeKey(token)
	raw, found, err := m.store.Get(ctx, key)
	if err != nil {
		return "", false, fmt.Errorf("failed to read challenge: %w", err)
	}
	if token == "" || !found {
		m.fail(ctx, sourceHash, "unknown_token")
		return "", false, nil
	}
	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		m.logger.WithError(err).Warn("discarding unreadable challenge")
		_ = m.store.Delete(ctx, key) //nolint:errcheck
		m.fail(ctx, sourceHash, "unknown_token")
		return "", false, nil
	}
	if rec.SourceHash != sourceHash {
		m.fail(ctx, sourceHash, "foreign_source")
		return "", false, nil
	}

	// one attempt per challenge
	if err := m.store.Delete(ctx, key); err != nil {
		return "", false, fmt.Errorf("failed to consume challenge: %w", err)
	}
	got, convErr := strconv.Atoi(strings.TrimSpace(answer))
	if convErr != nil || got != rec.Answer {
		m.fail(ctx, sourceHash, "wrong_answer")
		return "", false, nil
	}

	pass := uuid.NewString()
	if err := m.store.SetWithTTL(ctx, counter.ChallengePassKey(pass), sourceHash, m.cfg.PassTTL); err != nil {
		return "", false, fmt.Errorf("failed to store pass token: %w", err)
	}
	// failures only count while consecutive
	if err := m.store.Delete(ctx, counter.ChallengeFailuresKey(sourceHash)); err != nil {
		m.logger.WithError(err).Warn("failed to reset challenge failures")
	}
	prometheus.ChallengesTotal.WithLabelValues("passed").Inc()
	return pass, true, nil
}

// fail counts a failed attempt. The local block is created once and never extended.
func (m *manager) fail(ctx context.Context, sourceHash, why string) {
	prometheus.ChallengesTotal.WithLabelValues("failed").Inc()
	n, err := m.store.IncrWithTTL(ctx, counter.ChallengeFailuresKey(sourceHash), m.cfg.FailureWindow)
	if err != nil {
		m.logger.WithError(err).Warn("failed to count challenge failure")
		return
	}
	if n < m.cfg.MaxFailures {
		return
	}
	until := m.now().Add(m.cfg.BlockDuration).Unix()
	created, err := m.store.SetIfAbsent(
		ctx,
		counter.ChallengeBlockKey(sourceHash),
		strconv.FormatInt(until, 10),
		m.cfg.BlockDuration,
	)
	if err != nil {
		m.logger.WithError(err).Warn("failed to create challenge block")
		return
	}
	if created {
		prometheus.ChallengesTotal.WithLabelValues("blocked").Inc()
		m.logger.WithFields(logrus.Fields{
			"source_hash": sourceHash,
			"failures":    n,
			"reason":      why,
		}).Info("source blocked after challenge failures")
	}
}

func (m *manager) Verify(ctx context.Context, sourceHash, passToken string) bool {
	if passToken == "" {
		return false
	}
	owner, found, err := m.store.Get(ctx, counter.ChallengePassKey(passToken))
	if err != nil || !found || owner != sourceHash {
		return false
	}
	uses, err := m.store.IncrWithTTL(ctx, counter.ChallengePassUsedKey(passToken), m.cfg.PassTTL)
	if err != nil || uses != 1 {
		return false
	}
	if err := m.store.Delete(ctx, counter.ChallengePassKey(passToken), counter.ChallengeFailuresKey(sourceHash)); err != nil {
		m.logger.WithError(err).Warn("failed to clear challenge state")
	}
	if err := m.engine.Relieve(ctx, sourceHash); err != nil {
		m.logger.WithError(err).Warn("failed to relieve source after challenge")
	}
	prometheus.ChallengesTotal.WithLabelValues("verified").Inc()
	return true
}

func (m *manager) BlockedFor(ctx context.Context, sourceHash string) (time.Duration, bool) {
	key := counter.ChallengeBlockKey(sourceHash)
	raw, found, err := m.store.Get(ctx, key)
	if err != nil || !found {
		return 0, false
	}
	if until, convErr := strconv.ParseInt(raw, 10, 64); convErr == nil {
		if left := time.Unix(until, 0).Sub(m.now()); left > 0 {
			return left, true
		}
	}
	left, err := m.store.TTL(ctx, key)
	if err != nil || left <= 0 {
		return m.cfg.BlockDuration, true
	}
	return left, true
}

func (m *manager) Exempt(fp domainThreat.Fingerprint) bool {
	return fp.IsAuthenticated && fp.HasSession
}

func (m *manager) Status(ctx context.Context, sourceHash string) (*Status, error) {
	failures, _, err := m.store.GetInt(ctx, counter.ChallengeFailuresKey(sourceHash))
	if err != nil {
		return nil, err
	}
	left, blocked := m.BlockedFor(ctx, sourceHash)
	return &Status{Blocked: blocked, RetryAfter: left, Failures: failures}, nil
}
