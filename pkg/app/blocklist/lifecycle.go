package blocklist

import (
	"context"
	"errors"
	"fmt"
	"time"

	appTelemetry "github.com/NeuralTrust/ThreatGate/pkg/app/telemetry"
	"github.com/NeuralTrust/ThreatGate/pkg/app/threat"
	"github.com/NeuralTrust/ThreatGate/pkg/domain"
	"github.com/NeuralTrust/ThreatGate/pkg/domain/blocklist"
	"github.com/NeuralTrust/ThreatGate/pkg/domain/ledger"
	domainTelemetry "github.com/NeuralTrust/ThreatGate/pkg/domain/telemetry"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/cache"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/cache/channel"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/cache/event"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/prometheus"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/worker"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Projection is the local view of the ledger this instance enforces.
type Projection interface {
	MarkBlocked(entry ledger.Entry)
	Forget(sourceHash string)
}

type Config struct {
	AutoBlockDuration time.Duration
	BatchSize         int
	InstanceID        string
}

type SweepReport struct {
	Removed int `json:"removed"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

type SyncReport struct {
	Synced  int `json:"synced"`
	Dropped int `json:"dropped"`
	Failed  int `json:"failed"`
}

// Status is what the admin API reports for one source.
type Status struct {
	SourceHash string                   `json:"source_hash"`
	Blocked    bool                     `json:"blocked"`
	RetryAfter int                      `json:"retry_after,omitempty"`
	Local      *blocklist.BlockedSource `json:"local,omitempty"`
	Ledger     *ledger.Entry            `json:"ledger,omitempty"`
	Degraded   bool                     `json:"degraded,omitempty"`
}

//go:generate mockery --name=Lifecycle --dir=. --output=./mocks --filename=lifecycle_mock.go --case=underscore --with-expecter
type Lifecycle interface {
	AutoBlock(ctx context.Context, sourceHash, reason string, score int) (*blocklist.BlockedSource, error)
	ManualBlock(
		ctx context.Context,
		sourceHash, reason string,
		duration *time.Duration,
		by string,
	) (*blocklist.BlockedSource, error)
	Unblock(ctx context.Context, sourceHash string) error
	SweepExpired(ctx context.Context) (*SweepReport, error)
	SyncPending(ctx context.Context) (*SyncReport, error)
	List(ctx context.Context, filter blocklist.Filter) ([]blocklist.BlockedSource, error)
	Check(ctx context.Context, sourceHash string) (*Status, error)
}

type lifecycle struct {
	logger     *logrus.Logger
	repo       blocklist.Repository
	ledger     ledger.Ledger
	projection Projection
	publisher  cache.EventPublisher
	retries    worker.Worker
	engine     threat.Engine
	exports    appTelemetry.Dispatcher
	cfg        Config
	now        func() time.Time
}

type Option func(*lifecycle)

func WithTimeProvider(now func() time.Time) Option {
	return func(l *lifecycle) { l.now = now }
}

// WithExports forwards every block status change to the telemetry exporters.
func WithExports(d appTelemetry.Dispatcher) Option {
	return func(l *lifecycle) { l.exports = d }
}

func NewLifecycle(
	logger *logrus.Logger,
	repo blocklist.Repository,
	l ledger.Ledger,
	projection Projection,
	publisher cache.EventPublisher,
	retries worker.Worker,
	engine threat.Engine,
	cfg Config,
	opts ...Option,
) Lifecycle {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	lc := &lifecycle{
		logger:     logger,
		repo:       repo,
		ledger:     l,
		projection: projection,
		publisher:  publisher,
		retries:    retries,
		engine:     engine,
		cfg:        cfg,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(lc)
	}
	return lc
}

func (l *lifecycle) AutoBlock(
	ctx context.Context,
	sourceHash, reason string,
	score int,
) (*blocklist.BlockedSource, error) {
	now := l.now()
	existing, err := l.repo.Get(ctx, sourceHash)
	if err == nil && existing.Manual && existing.Active(now) {
		return existing, domain.ErrManualEntryProtected
	}

	expires := now.Add(l.cfg.AutoBlockDuration)
	entry := &blocklist.BlockedSource{
		ID:          uuid.New(),
		SourceHash:  sourceHash,
		BlockedAt:   now,
		ExpiresAt:   &expires,
		Reason:      reason,
		CreatedBy:   blocklist.CreatedBySystem,
		ThreatScore: score,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return entry, l.block(ctx, entry)
}

func (l *lifecycle) ManualBlock(
	ctx context.Context,
	sourceHash, reason string,
	duration *time.Duration,
	by string,
) (*blocklist.BlockedSource, error) {
	if sourceHash == "" {
		return nil, fmt.Errorf("%w: source hash is required", domain.ErrInvalidInput)
	}
	if duration != nil && *duration <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", domain.ErrInvalidInput)
	}
	now := l.now()
	entry := &blocklist.BlockedSource{
		ID:         uuid.New(),
		SourceHash: sourceHash,
		BlockedAt:  now,
		Reason:     reason,
		CreatedBy:  by,
		Manual:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if duration != nil {
		expires := now.Add(*duration)
		entry.ExpiresAt = &expires
	}
	return entry, l.block(ctx, entry)
}

// block enforces entry locally right away and then confirms it on the ledger.
// A failed confirmation leaves the entry pending, hands it to the retry pool and
// returns an error wrapping domain.ErrLedgerUnavailable. The block holds either way.
func (l *lifecycle) block(ctx context.Context, entry *blocklist.BlockedSource) error {
	if err := l.repo.Upsert(ctx, entry); err != nil {
		l.logger.WithError(err).WithField("source_hash", entry.SourceHash).Error("failed to persist block entry")
	}
	projected := ledgerEntry(entry)
	l.projection.MarkBlocked(projected)
	l.publish(ctx, event.BlockStatusChangedEvent{
		SourceHash: entry.SourceHash,
		Blocked:    true,
		BlockedAt:  projected.BlockedAt,
		ExpiresAt:  projected.ExpiresAt,
		Reason:     entry.Reason,
		Manual:     entry.Manual,
		Origin:     l.cfg.InstanceID,
	})

	writeCtx := context.WithoutCancel(ctx)
	if err := l.confirm(writeCtx, entry); err != nil {
		l.logger.WithError(err).WithField("source_hash", entry.SourceHash).Warn("ledger block pending sync")
		l.scheduleRetry(entry.SourceHash)
		if !errors.Is(err, domain.ErrLedgerUnavailable) {
			err = fmt.Errorf("%w: %v", domain.ErrLedgerUnavailable, err)
		}
		return err
	}
	return nil
}

func (l *lifecycle) confirm(ctx context.Context, entry *blocklist.BlockedSource) error {
	var expires time.Time
	if entry.ExpiresAt != nil {
		expires = *entry.ExpiresAt
	}
	ref, err := l.ledger.Block(ctx, entry.SourceHash, expires, entry.Reason, entry.Manual)
	if err != nil {
		if incErr := l.repo.IncrementSyncAttempts(ctx, entry.SourceHash); incErr != nil {
			l.logger.WithError(incErr).Debug("failed to count sync attempt")
		}
		return err
	}
	entry.LedgerSynced = true
	entry.TxRef = string(ref)
	if err := l.repo.MarkSynced(ctx, entry.SourceHash, string(ref)); err != nil {
		l.logger.WithError(err).WithField("source_hash", entry.SourceHash).Error("failed to mark block as synced")
	}
	return nil
}

func (l *lifecycle) scheduleRetry(sourceHash string) {
	accepted := l.retries.Submit("ledger_block_retry", func(ctx context.Context) {
		entry, err := l.repo.Get(ctx, sourceHash)
		if err != nil || entry.LedgerSynced || !entry.Active(l.now()) {
			return
		}
		if err := l.confirm(ctx, entry); err != nil {
			l.logger.WithError(err).WithField("source_hash", sourceHash).Debug("ledger block retry failed")
		}
	})
	if !accepted {
		l.logger.WithField("source_hash", sourceHash).Warn("retry queue full, leaving block to the sync task")
	}
}

func (l *lifecycle) Unblock(ctx context.Context, sourceHash string) error {
	ref, err := l.ledger.Unblock(ctx, sourceHash)
	if err != nil {
		return fmt.Errorf("failed to unblock %s on the ledger: %w", sourceHash, err)
	}
	removed, err := l.repo.MarkRemoved(ctx, sourceHash, l.now())
	if err != nil {
		return fmt.Errorf("failed to remove local block entry: %w", err)
	}
	if !removed && ref == "" {
		return domain.NewNotFoundError("blocked_source", sourceHash)
	}

	l.projection.Forget(sourceHash)
	l.publish(ctx, event.BlockStatusChangedEvent{
		SourceHash: sourceHash,
		Blocked:    false,
		Origin:     l.cfg.InstanceID,
	})
	if err := l.engine.Reset(ctx, sourceHash); err != nil {
		l.logger.WithError(err).WithField("source_hash", sourceHash).Warn("failed to reset source counters")
	}
	l.logger.WithField("source_hash", sourceHash).Info("source unblocked")
	return nil
}

func (l *lifecycle) SweepExpired(ctx context.Context) (*SweepReport, error) {
	now := l.now()
	expired, err := l.repo.ListExpired(ctx, now, l.cfg.BatchSize)
	if err != nil {
		return nil, err
	}

	report := &SweepReport{}
	for i := range expired {
		entry := &expired[i]
		if !entry.Sweepable(now) {
			report.Skipped++
			continue
		}
		// a peer may have re-blocked the source with a later expiry
		current, lookupErr := l.ledger.Lookup(ctx, entry.SourceHash)
		if lookupErr != nil {
			report.Failed++
			continue
		}
		if current.Active(now) && (current.Manual || current.ExpiresAt > entry.ExpiresAt.Unix()) {
			report.Skipped++
			continue
		}
		if current != nil {
			if _, err := l.ledger.Unblock(ctx, entry.SourceHash); err != nil {
				l.logger.WithError(err).WithField("source_hash", entry.SourceHash).Warn("sweep could not unblock on ledger")
				report.Failed++
				continue
			}
		}
		removed, err := l.repo.MarkRemoved(ctx, entry.SourceHash, now)
		if err != nil {
			report.Failed++
			continue
		}
		if !removed {
			// another instance won the race
			report.Skipped++
			continue
		}
		l.projection.Forget(entry.SourceHash)
		l.publish(ctx, event.BlockStatusChangedEvent{SourceHash: entry.SourceHash, Origin: l.cfg.InstanceID})
		report.Removed++
	}

	if active, err := l.repo.CountActive(ctx, now); err == nil {
		prometheus.ActiveBlocks.Set(float64(active))
	}
	if report.Removed > 0 || report.Failed > 0 {
		l.logger.WithFields(logrus.Fields{
			"removed": report.Removed,
			"skipped": report.Skipped,
			"failed":  report.Failed,
		}).Info("expired blocks swept")
	}
	return report, nil
}

func (l *lifecycle) SyncPending(ctx context.Context) (*SyncReport, error) {
	now := l.now()
	pending, err := l.repo.ListPendingSync(ctx, l.cfg.BatchSize)
	if err != nil {
		return nil, err
	}

	report := &SyncReport{}
	for i := range pending {
		entry := &pending[i]
		if entry.Sweepable(now) {
			if _, err := l.repo.MarkRemoved(ctx, entry.SourceHash, now); err != nil {
				report.Failed++
				continue
			}
			report.Dropped++
			continue
		}
		if err := l.confirm(ctx, entry); err != nil {
			report.Failed++
			continue
		}
		report.Synced++
	}
	prometheus.LedgerPendingSync.WithLabelValues("blocks").Set(float64(report.Failed))
	return report, nil
}

func (l *lifecycle) List(ctx context.Context, filter blocklist.Filter) ([]blocklist.BlockedSource, error) {
	return l.repo.List(ctx, filter)
}

func (l *lifecycle) Check(ctx context.Context, sourceHash string) (*Status, error) {
	now := l.now()
	status := &Status{SourceHash: sourceHash}

	local, err := l.repo.Get(ctx, sourceHash)
	switch {
	case err == nil:
		status.Local = local
	case !domain.IsNotFoundError(err):
		return nil, err
	}

	entry, err := l.ledger.Lookup(ctx, sourceHash)
	if err != nil {
		if !errors.Is(err, domain.ErrLedgerUnavailable) {
			return nil, err
		}
		status.Degraded = true
	}
	status.Ledger = entry
	status.Blocked = entry.Active(now) || (local != nil && local.Active(now))
	if status.Blocked {
		retry := time.Duration(0)
		if entry.Active(now) {
			retry = entry.RetryAfter(now)
		} else if local != nil {
			retry = local.RetryAfter(now)
		}
		status.RetryAfter = int(retry.Round(time.Second) / time.Second)
	}
	return status, nil
}

func (l *lifecycle) publish(ctx context.Context, evt event.BlockStatusChangedEvent) {
	if l.exports != nil {
		l.exports.Dispatch(domainTelemetry.KindBlockChanged, evt)
	}
	if err := l.publisher.Publish(ctx, channel.ThreatEventsChannel, evt); err != nil {
		l.logger.WithError(err).WithField("source_hash", evt.SourceHash).Warn("failed to publish block status change")
	}
}

func ledgerEntry(entry *blocklist.BlockedSource) ledger.Entry {
	e := ledger.Entry{
		SourceHash: entry.SourceHash,
		Reason:     entry.Reason,
		Manual:     entry.Manual,
		BlockedAt:  entry.BlockedAt.Unix(),
	}
	if entry.ExpiresAt != nil {
		e.ExpiresAt = entry.ExpiresAt.Unix()
	}
	return e
}
