package securityevent

import (
	"context"
	"fmt"
	"time"

	appTelemetry "github.com/NeuralTrust/ThreatGate/pkg/app/telemetry"
	"github.com/NeuralTrust/ThreatGate/pkg/domain/securityevent"
	domainTelemetry "github.com/NeuralTrust/ThreatGate/pkg/domain/telemetry"
	"github.com/NeuralTrust/ThreatGate/pkg/domain/threat"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/cache"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/cache/channel"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/cache/event"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/geo"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/prometheus"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/worker"
	"github.com/sirupsen/logrus"
)

const (
	statsWindow  = 24 * time.Hour
	saveTimeout  = 5 * time.Second
	defaultLimit = 100
	maxLimit     = 1000
)

// ActiveCounter reports how many blocks are currently in force.
type ActiveCounter interface {
	CountActive(ctx context.Context, now time.Time) (int64, error)
}

// PatternCounter reports how many attack signatures are known locally.
type PatternCounter interface {
	Count(ctx context.Context) (int64, error)
}

type Config struct {
	Retention  time.Duration
	InstanceID string
}

//go:generate mockery --name=Recorder --dir=. --output=./mocks --filename=recorder_mock.go --case=underscore --with-expecter
type Recorder interface {
	// Record queues the event. When the queue is full the event is persisted
	// on the caller's goroutine instead, so no event is ever lost.
	Record(fp threat.Fingerprint, verdict threat.Verdict)
	Recent(ctx context.Context, query securityevent.Query) ([]securityevent.Record, error)
	Stats(ctx context.Context) (*securityevent.Stats, error)
	// Trim deletes events older than the retention window.
	Trim(ctx context.Context) (int64, error)
}

type recorder struct {
	logger    *logrus.Logger
	repo      securityevent.Repository
	queue     worker.Worker
	locator   geo.Locator
	publisher cache.EventPublisher
	exports   appTelemetry.Dispatcher
	blocks    ActiveCounter
	patterns  PatternCounter
	cfg       Config
	now       func() time.Time
}

type Option func(*recorder)

func WithTimeProvider(now func() time.Time) Option {
	return func(r *recorder) { r.now = now }
}

func NewRecorder(
	logger *logrus.Logger,
	repo securityevent.Repository,
	queue worker.Worker,
	locator geo.Locator,
	publisher cache.EventPublisher,
	exports appTelemetry.Dispatcher,
	blocks ActiveCounter,
	patterns PatternCounter,
	cfg Config,
	opts ...Option,
) Recorder {
	r := &recorder{
		logger:    logger,
		repo:      repo,
		queue:     queue,
		locator:   locator,
		publisher: publisher,
		exports:   exports,
		blocks:    blocks,
		patterns:  patterns,
		cfg:       cfg,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *recorder) Record(fp threat.Fingerprint, verdict threat.Verdict) {
	record := securityevent.NewRecord(r.cfg.InstanceID, fp, verdict)
	if r.locator != nil && fp.IP != "" {
		record.Country = r.locator.Country(fp.IP)
	}
	accepted := r.queue.Submit("security_event", func(ctx context.Context) {
		r.persist(ctx, record)
	})
	if !accepted {
		prometheus.SecurityEventsOverflow.Inc()
		r.logger.WithFields(logrus.Fields{
			"source_hash": record.SourceHash,
			"sequence":    record.Sequence,
		}).Warn("security event queue full, saving inline")
		r.persist(context.Background(), record)
	}
}

func (r *recorder) persist(ctx context.Context, record *securityevent.Record) {
	saveCtx, cancel := context.WithTimeout(ctx, saveTimeout)
	defer cancel()
	record.CreatedAt = r.now()
	if err := r.repo.Save(saveCtx, record); err != nil {
		r.logger.WithError(err).WithField("sequence", record.Sequence).Error("failed to save security event")
	}

	if r.exports != nil {
		r.exports.Dispatch(domainTelemetry.KindSecurityEvent, record)
	}
	if r.publisher != nil {
		if err := r.publisher.Publish(ctx, channel.ThreatEventsChannel, decisionEvent(record)); err != nil {
			r.logger.WithError(err).Debug("failed to publish threat decision")
		}
	}
}

func decisionEvent(record *securityevent.Record) event.ThreatDecisionEvent {
	b := record.Breakdown()
	return event.ThreatDecisionEvent{
		InstanceID: record.InstanceID,
		Sequence:   record.Sequence,
		SourceHash: record.SourceHash,
		Endpoint:   record.Endpoint,
		Method:     record.Method,
		Score:      record.TotalScore,
		Tier:       record.Tier,
		Action:     record.Action,
		Reason:     record.Reason,
		Factors: map[string]int{
			"rate":         b.Rate,
			"pattern":      b.Pattern,
			"session":      b.Session,
			"entropy":      b.Entropy,
			"auth_failure": b.AuthFailure,
			"signature":    b.Signature,
		},
		ArrivedAt: record.ArrivedAt.Unix(),
	}
}

func (r *recorder) Recent(ctx context.Context, query securityevent.Query) ([]securityevent.Record, error) {
	switch {
	case query.Limit <= 0:
		query.Limit = defaultLimit
	case query.Limit > maxLimit:
		query.Limit = maxLimit
	}
	return r.repo.Recent(ctx, query)
}

func (r *recorder) Stats(ctx context.Context) (*securityevent.Stats, error) {
	now := r.now()
	since := now.Add(-statsWindow)

	byAction, err := r.repo.CountByAction(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("count security events: %w", err)
	}
	avg, err := r.repo.AverageScore(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("average threat score: %w", err)
	}

	stats := &securityevent.Stats{
		Window:       "24h",
		ByAction:     byAction,
		AverageScore: avg,
	}
	for action, n := range byAction {
		stats.Total += n
		switch action {
		case string(threat.ActionBlocked),
			string(threat.CauseAutoBlock),
			string(threat.CauseLedgerBlock),
			string(threat.CauseChallengeBlock),
			string(threat.CauseInvalidInput):
			stats.Blocked += n
		case string(threat.ActionChallenged):
			stats.Challenged += n
		}
	}

	if r.blocks != nil {
		if stats.ActiveBlocks, err = r.blocks.CountActive(ctx, now); err != nil {
			return nil, fmt.Errorf("count active blocks: %w", err)
		}
	}
	if r.patterns != nil {
		if stats.AttackPatterns, err = r.patterns.Count(ctx); err != nil {
			return nil, fmt.Errorf("count attack patterns: %w", err)
		}
	}
	return stats, nil
}

func (r *recorder) Trim(ctx context.Context) (int64, error) {
	if r.cfg.Retention <= 0 {
		return 0, nil
	}
	removed, err := r.repo.DeleteBefore(ctx, r.now().Add(-r.cfg.Retention))
	if err != nil {
		return 0, fmt.Errorf("trim security events: %w", err)
	}
	if removed > 0 {
		r.logger.WithField("removed", removed).Info("security events trimmed")
	}
	return removed, nil
}
