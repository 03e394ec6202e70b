package decision

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/NeuralTrust/ThreatGate/pkg/app/blocklist"
	"github.com/NeuralTrust/ThreatGate/pkg/app/challenge"
	appSecurity "github.com/NeuralTrust/ThreatGate/pkg/app/securityevent"
	appThreat "github.com/NeuralTrust/ThreatGate/pkg/app/threat"
	"github.com/NeuralTrust/ThreatGate/pkg/domain"
	"github.com/NeuralTrust/ThreatGate/pkg/domain/ledger"
	"github.com/NeuralTrust/ThreatGate/pkg/domain/threat"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/prometheus"
	"github.com/NeuralTrust/ThreatGate/pkg/utils"
	"github.com/sirupsen/logrus"
)

const (
	reasonInvalidInput   = "invalid source address"
	reasonWhitelisted    = "whitelisted"
	reasonChallengeBlock = "Too many failed challenge attempts"
	reasonChallenge      = "Challenge required"
	reasonSessionExempt  = "authenticated session"
	reasonPassToken      = "challenge passed"
)

// Observer is told about every scored source. The coordinated-attack detector
// satisfies it.
type Observer interface {
	Observe(ctx context.Context, sourceHash string)
}

type Request struct {
	Fingerprint threat.Fingerprint
	// PassToken is the challenge pass presented with the request, if any.
	PassToken string
}

type Config struct {
	Whitelist utils.CIDRList
}

//go:generate mockery --name=Pipeline --dir=. --output=./mocks --filename=pipeline_mock.go --case=underscore --with-expecter
type Pipeline interface {
	// Evaluate always produces a verdict. Dependency failures degrade the decision
	// instead of aborting it.
	Evaluate(ctx context.Context, req Request) (threat.Verdict, threat.Fingerprint)
}

type pipeline struct {
	logger     *logrus.Logger
	engine     appThreat.Engine
	challenges challenge.Manager
	ledger     ledger.Ledger
	lifecycle  blocklist.Lifecycle
	observer   Observer
	recorder   appSecurity.Recorder
	policy     threat.Policy
	cfg        Config
	sequence   atomic.Uint64
	now        func() time.Time
}

type Option func(*pipeline)

func WithTimeProvider(now func() time.Time) Option {
	return func(p *pipeline) { p.now = now }
}

func NewPipeline(
	logger *logrus.Logger,
	engine appThreat.Engine,
	challenges challenge.Manager,
	ledger ledger.Ledger,
	lifecycle blocklist.Lifecycle,
	observer Observer,
	recorder appSecurity.Recorder,
	policy threat.Policy,
	cfg Config,
	opts ...Option,
) Pipeline {
	p := &pipeline{
		logger:     logger,
		engine:     engine,
		challenges: challenges,
		ledger:     ledger,
		lifecycle:  lifecycle,
		observer:   observer,
		recorder:   recorder,
		policy:     policy,
		cfg:        cfg,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *pipeline) Evaluate(ctx context.Context, req Request) (threat.Verdict, threat.Fingerprint) {
	start := time.Now()
	fp := req.Fingerprint
	fp.Timestamp = p.now()
	base := threat.Verdict{
		Sequence:  p.sequence.Add(1),
		ArrivedAt: fp.Timestamp,
	}

	verdict := p.decide(ctx, &fp, req.PassToken, base)

	prometheus.DecisionLatency.WithLabelValues("total").Observe(sinceMillis(start))
	prometheus.ThreatDecisionsTotal.WithLabelValues(string(verdict.Action), string(verdict.Tier), string(verdict.Cause)).Inc()
	if p.recorder != nil {
		p.recorder.Record(fp, verdict)
	}
	return verdict, fp
}

func (p *pipeline) decide(ctx context.Context, fp *threat.Fingerprint, passToken string, v threat.Verdict) threat.Verdict {
	ip, ok := utils.NormalizeIP(fp.IP)
	if !ok {
		p.logger.WithFields(logrus.Fields{
			"endpoint": fp.Endpoint,
			"error":    domain.ErrInvalidInput,
		}).Debug("rejecting request without a valid source address")
		return p.blocked(v, threat.CauseInvalidInput, p.policy.MaxScore, reasonInvalidInput, 0)
	}
	fp.IP = ip
	fp.SourceHash = utils.SourceHash(ip)
	v.SourceHash = fp.SourceHash

	if remaining, blocked := p.challenges.BlockedFor(ctx, fp.SourceHash); blocked {
		return p.blocked(v, threat.CauseChallengeBlock, p.policy.MaxScore, reasonChallengeBlock, remaining)
	}

	if entry, degraded := p.lookup(ctx, fp.SourceHash); entry != nil {
		v.Degraded = degraded
		return p.blocked(v, threat.CauseLedgerBlock, p.policy.MaxScore, entry.Reason, entry.RetryAfter(p.now()))
	} else if degraded {
		v.Degraded = true
	}

	// the whitelist skips scoring, never ledger evidence
	if p.cfg.Whitelist.Contains(ip) {
		v.Action = threat.ActionAllowed
		v.Cause = threat.CauseWhitelisted
		v.Tier = threat.TierLow
		v.Reason = reasonWhitelisted
		return v
	}

	scoreStart := time.Now()
	score, factors := p.engine.Score(ctx, *fp)
	prometheus.DecisionLatency.WithLabelValues("score").Observe(sinceMillis(scoreStart))
	prometheus.ThreatScore.Observe(float64(score))
	if p.observer != nil {
		p.observer.Observe(ctx, fp.SourceHash)
	}

	v.Score = score
	v.Factors = factors
	v.Tier = p.policy.Classify(score)

	switch v.Tier {
	case threat.TierLow:
		v.Action = threat.ActionAllowed
		v.Cause = threat.CauseScore
		return v
	case threat.TierMedium:
		return p.medium(ctx, *fp, passToken, v)
	default:
		return p.high(ctx, fp.SourceHash, v)
	}
}

// lookup returns the active ledger entry for sourceHash, if any. When the ledger is
// unreachable the last known entry is used and degraded is true.
func (p *pipeline) lookup(ctx context.Context, sourceHash string) (*ledger.Entry, bool) {
	start := time.Now()
	entry, err := p.ledger.Lookup(ctx, sourceHash)
	prometheus.DecisionLatency.WithLabelValues("ledger").Observe(sinceMillis(start))
	degraded := err != nil
	if degraded && !errors.Is(err, domain.ErrLedgerUnavailable) {
		p.logger.WithError(err).WithField("source_hash", sourceHash).Warn("unexpected ledger lookup failure")
	}
	if !entry.Active(p.now()) {
		return nil, degraded
	}
	return entry, degraded
}

func (p *pipeline) medium(ctx context.Context, fp threat.Fingerprint, passToken string, v threat.Verdict) threat.Verdict {
	if p.challenges.Exempt(fp) {
		v.Action = threat.ActionAllowed
		v.Cause = threat.CauseSessionExempt
		v.Reason = reasonSessionExempt
		return v
	}
	if passToken != "" && p.challenges.Verify(ctx, fp.SourceHash, passToken) {
		v.Action = threat.ActionAllowed
		v.Cause = threat.CauseChallengePassed
		v.Reason = reasonPassToken
		return v
	}
	v.Action = threat.ActionChallenged
	v.Cause = threat.CauseScore
	v.Reason = reasonChallenge
	v.ChallengeRequired = true
	return v
}

func (p *pipeline) high(ctx context.Context, sourceHash string, v threat.Verdict) threat.Verdict {
	v.Action = threat.ActionBlocked
	if !p.policy.ShouldAutoBlock(v.Score) {
		v.Cause = threat.CauseScore
		v.Reason = fmt.Sprintf("High threat score %d", v.Score)
		v.RetryAfter = p.policy.TransientBlock
		return v
	}

	v.Cause = threat.CauseAutoBlock
	v.Reason = p.policy.AutoBlockReason(v.Score)
	v.RetryAfter = p.policy.AutoBlockDuration

	start := time.Now()
	_, err := p.lifecycle.AutoBlock(ctx, sourceHash, v.Reason, v.Score)
	prometheus.DecisionLatency.WithLabelValues("auto_block").Observe(sinceMillis(start))
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrLedgerUnavailable):
		v.Degraded = true
		p.logger.WithError(err).WithField("source_hash", sourceHash).Warn("auto-block held locally, ledger write pending")
	case errors.Is(err, domain.ErrManualEntryProtected):
		p.logger.WithField("source_hash", sourceHash).Debug("source already under a manual block")
	default:
		p.logger.WithError(err).WithField("source_hash", sourceHash).Error("failed to persist auto-block")
	}
	return v
}

func (p *pipeline) blocked(v threat.Verdict, cause threat.Cause, score int, reason string, retryAfter time.Duration) threat.Verdict {
	v.Action = threat.ActionBlocked
	v.Cause = cause
	v.Score = score
	v.Tier = threat.TierHigh
	v.Reason = reason
	v.RetryAfter = retryAfter
	return v
}

func sinceMillis(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
