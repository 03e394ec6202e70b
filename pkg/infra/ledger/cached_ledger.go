package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NeuralTrust/ThreatGate/pkg/domain"
	"github.com/NeuralTrust/ThreatGate/pkg/domain/ledger"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/cache"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/httpx"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	degradedComponent = "ledger"
	signaturesCacheID = "all"
	// entries older than this are not served even when the ledger is down
	staleRetention = time.Hour
)

type projection struct {
	entry     *ledger.Entry
	fetchedAt time.Time
}

type signatureSnapshot struct {
	signatures []ledger.Signature
	fetchedAt  time.Time
}

type CachedLedgerConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	BlockCacheTTL     time.Duration
	SignatureCacheTTL time.Duration
}

// CachedLedger is the read-through projection every gateway instance consults.
// Reads are bounded by ReadTimeout and collapsed per key. When the ledger cannot
// be reached the last known value is returned together with an error wrapping
// domain.ErrLedgerUnavailable.
type CachedLedger struct {
	logger     *logrus.Logger
	inner      ledger.Ledger
	breaker    httpx.CircuitBreaker
	cfg        CachedLedgerConfig
	blocks     *cache.TTLMap
	signatures *cache.TTLMap
	group      singleflight.Group
	warn       *rate.Limiter
	now        func() time.Time
}

var _ ledger.Ledger = (*CachedLedger)(nil)

func NewCachedLedger(
	logger *logrus.Logger,
	inner ledger.Ledger,
	breaker httpx.CircuitBreaker,
	cacheClient cache.Client,
	cfg CachedLedgerConfig,
) *CachedLedger {
	blocks := cacheClient.GetTTLMap(cache.LedgerBlockTTLName)
	if blocks == nil {
		blocks = cacheClient.CreateTTLMap(cache.LedgerBlockTTLName, staleRetention)
	}
	signatures := cacheClient.GetTTLMap(cache.LedgerSignatureTTLName)
	if signatures == nil {
		signatures = cacheClient.CreateTTLMap(cache.LedgerSignatureTTLName, staleRetention)
	}
	return &CachedLedger{
		logger:     logger,
		inner:      inner,
		breaker:    breaker,
		cfg:        cfg,
		blocks:     blocks,
		signatures: signatures,
		warn:       rate.NewLimiter(rate.Every(10*time.Second), 1),
		now:        time.Now,
	}
}

func (l *CachedLedger) WithTimeProvider(now func() time.Time) *CachedLedger {
	l.now = now
	return l
}

func (l *CachedLedger) IsBlocked(ctx context.Context, sourceHash string) (bool, error) {
	entry, err := l.Lookup(ctx, sourceHash)
	return entry.Active(l.now()), err
}

// Lookup answers from the projection while it is fresh. On a ledger failure it
// returns the last known entry (nil when none) and a wrapped ErrLedgerUnavailable.
func (l *CachedLedger) Lookup(ctx context.Context, sourceHash string) (*ledger.Entry, error) {
	cached, hasCached := l.cachedBlock(sourceHash)
	if hasCached && l.now().Sub(cached.fetchedAt) < l.cfg.BlockCacheTTL {
		return cached.entry, nil
	}

	v, err, _ := l.group.Do("block:"+sourceHash, func() (interface{}, error) {
		readCtx, cancel := context.WithTimeout(ctx, l.cfg.ReadTimeout)
		defer cancel()
		var entry *ledger.Entry
		err := l.breaker.Execute(func() error {
			var err error
			entry, err = l.inner.Lookup(readCtx, sourceHash)
			return err
		})
		if err != nil {
			return nil, err
		}
		l.blocks.Set(sourceHash, projection{entry: entry, fetchedAt: l.now()})
		return entry, nil
	})
	if err != nil {
		l.degraded("lookup", err)
		if hasCached {
			return cached.entry, l.wrap(err)
		}
		return nil, l.wrap(err)
	}
	prometheus.LedgerOpsTotal.WithLabelValues("lookup", "ok").Inc()
	entry, _ := v.(*ledger.Entry)
	return entry, nil
}

func (l *CachedLedger) cachedBlock(sourceHash string) (projection, bool) {
	v, ok := l.blocks.Get(sourceHash)
	if !ok {
		return projection{}, false
	}
	p, ok := v.(projection)
	return p, ok
}

// MarkBlocked makes this instance enforce entry before the ledger confirms it.
// The projection outlives staleRetention so the block holds through a long outage.
func (l *CachedLedger) MarkBlocked(entry ledger.Entry) {
	now := l.now()
	ttl := staleRetention
	if _, ok := entry.Expiry(); !ok {
		ttl = 0
	} else if left := entry.RetryAfter(now); left > ttl {
		ttl = left
	}
	l.blocks.SetWithTTL(entry.SourceHash, projection{entry: &entry, fetchedAt: now}, ttl)
}

// Forget drops the projected state of a source so the next lookup reads the ledger.
func (l *CachedLedger) Forget(sourceHash string) {
	l.blocks.Delete(sourceHash)
}

func (l *CachedLedger) ForgetSignatures() {
	l.signatures.Delete(signaturesCacheID)
}

func (l *CachedLedger) Block(
	ctx context.Context,
	sourceHash string,
	expiresAt time.Time,
	reason string,
	manual bool,
) (ledger.TxRef, error) {
	var ref ledger.TxRef
	err := l.write(ctx, "block", func(writeCtx context.Context) error {
		var err error
		ref, err = l.inner.Block(writeCtx, sourceHash, expiresAt, reason, manual)
		return err
	})
	if err != nil {
		return "", err
	}
	entry := ledger.Entry{
		SourceHash: sourceHash,
		Reason:     reason,
		Manual:     manual,
		BlockedAt:  l.now().Unix(),
		TxRef:      ref,
	}
	if !expiresAt.IsZero() {
		entry.ExpiresAt = expiresAt.Unix()
	}
	l.MarkBlocked(entry)
	return ref, nil
}

func (l *CachedLedger) Unblock(ctx context.Context, sourceHash string) (ledger.TxRef, error) {
	var ref ledger.TxRef
	err := l.write(ctx, "unblock", func(writeCtx context.Context) error {
		var err error
		ref, err = l.inner.Unblock(writeCtx, sourceHash)
		return err
	})
	if err != nil {
		return "", err
	}
	l.blocks.Set(sourceHash, projection{fetchedAt: l.now()})
	return ref, nil
}

func (l *CachedLedger) AddSignature(ctx context.Context, pattern string, severity int) (ledger.SignatureRef, error) {
	var ref ledger.SignatureRef
	err := l.write(ctx, "add_signature", func(writeCtx context.Context) error {
		var err error
		ref, err = l.inner.AddSignature(writeCtx, pattern, severity)
		return err
	})
	if err != nil {
		return "", err
	}
	l.ForgetSignatures()
	return ref, nil
}

// AllSignatures follows the same stale-on-failure rule as Lookup.
func (l *CachedLedger) AllSignatures(ctx context.Context) ([]ledger.Signature, error) {
	var (
		snapshot signatureSnapshot
		hasCache bool
	)
	if v, ok := l.signatures.Get(signaturesCacheID); ok {
		snapshot, hasCache = v.(signatureSnapshot)
	}
	if hasCache && l.now().Sub(snapshot.fetchedAt) < l.cfg.SignatureCacheTTL {
		return snapshot.signatures, nil
	}

	v, err, _ := l.group.Do("signatures", func() (interface{}, error) {
		readCtx, cancel := context.WithTimeout(ctx, l.cfg.ReadTimeout)
		defer cancel()
		var sigs []ledger.Signature
		err := l.breaker.Execute(func() error {
			var err error
			sigs, err = l.inner.AllSignatures(readCtx)
			return err
		})
		if err != nil {
			return nil, err
		}
		l.signatures.Set(signaturesCacheID, signatureSnapshot{signatures: sigs, fetchedAt: l.now()})
		return sigs, nil
	})
	if err != nil {
		l.degraded("signatures", err)
		return snapshot.signatures, l.wrap(err)
	}
	prometheus.LedgerOpsTotal.WithLabelValues("signatures", "ok").Inc()
	sigs, _ := v.([]ledger.Signature)
	return sigs, nil
}

func (l *CachedLedger) Verify(ctx context.Context) (*ledger.VerifyReport, error) {
	return l.inner.Verify(ctx)
}

func (l *CachedLedger) write(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	writeCtx, cancel := context.WithTimeout(ctx, l.cfg.WriteTimeout)
	defer cancel()
	err := l.breaker.Execute(func() error { return fn(writeCtx) })
	if err == nil {
		prometheus.LedgerOpsTotal.WithLabelValues(op, "ok").Inc()
		return nil
	}
	if errors.Is(writeCtx.Err(), context.DeadlineExceeded) {
		prometheus.LedgerOpsTotal.WithLabelValues(op, "timeout").Inc()
		return fmt.Errorf("%w: %s: %w", domain.ErrWriteConfirmationTimeout, op, domain.ErrLedgerUnavailable)
	}
	l.degraded(op, err)
	return l.wrap(err)
}

func (l *CachedLedger) wrap(err error) error {
	if errors.Is(err, domain.ErrLedgerUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrLedgerUnavailable, err)
}

func (l *CachedLedger) degraded(op string, err error) {
	prometheus.LedgerOpsTotal.WithLabelValues(op, "error").Inc()
	prometheus.DegradedTotal.WithLabelValues(degradedComponent).Inc()
	if l.warn.Allow() {
		l.logger.WithFields(logrus.Fields{
			"op":   op,
			"open": httpx.IsOpen(err),
		}).WithError(err).Warn("ledger unavailable, serving last known state")
	}
}
