package threat

import (
	"context"
	"sync"

	"github.com/NeuralTrust/ThreatGate/pkg/domain/counter"
	"github.com/NeuralTrust/ThreatGate/pkg/domain/ledger"
	"github.com/NeuralTrust/ThreatGate/pkg/domain/signature"
	domain "github.com/NeuralTrust/ThreatGate/pkg/domain/threat"
	"github.com/NeuralTrust/ThreatGate/pkg/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// SignatureSource lists the attack signatures known to the shared ledger.
type SignatureSource interface {
	AllSignatures(ctx context.Context) ([]ledger.Signature, error)
}

//go:generate mockery --name=Engine --dir=. --output=./mocks --filename=engine_mock.go --case=underscore --with-expecter
type Engine interface {
	// Score records the request in the counter store and returns the capped total
	// together with the per-factor breakdown.
	Score(ctx context.Context, fp domain.Fingerprint) (int, domain.Breakdown)
	RecordAuthFailure(ctx context.Context, sourceHash string) error
	// Relieve credits a source that solved a challenge.
	Relieve(ctx context.Context, sourceHash string) error
	// Reset wipes every counter kept for a source.
	Reset(ctx context.Context, sourceHash string) error
}

type engine struct {
	logger     *logrus.Logger
	store      counter.Store
	signatures SignatureSource
	policy     domain.Policy
	credits    int64

	mu          sync.RWMutex
	descriptors map[string]signature.Descriptor
}

func NewEngine(
	logger *logrus.Logger,
	store counter.Store,
	signatures SignatureSource,
	policy domain.Policy,
	reliefCredits int64,
) Engine {
	return &engine{
		logger:      logger,
		store:       store,
		signatures:  signatures,
		policy:      policy,
		credits:     reliefCredits,
		descriptors: make(map[string]signature.Descriptor),
	}
}

func (e *engine) Score(ctx context.Context, fp domain.Fingerprint) (int, domain.Breakdown) {
	var (
		b        domain.Breakdown
		requests int64
	)

	// the four counter factors touch disjoint keys
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		requests, b.Rate = e.rateFactor(gctx, fp.SourceHash)
		return nil
	})
	g.Go(func() error {
		b.Pattern = e.patternFactor(gctx, fp)
		return nil
	})
	g.Go(func() error {
		b.Entropy = e.entropyFactor(gctx, fp)
		return nil
	})
	g.Go(func() error {
		b.AuthFailure = e.authFailureFactor(gctx, fp.SourceHash)
		return nil
	})
	_ = g.Wait() //nolint:errcheck

	b.Session = e.sessionFactor(fp)
	b.Signature = e.signatureFactor(ctx, fp, requests)

	return b.Total(e.policy.MaxScore), b
}

func (e *engine) rateFactor(ctx context.Context, sourceHash string) (int64, int) {
	n, err := e.store.IncrWithTTL(ctx, counter.RateKey(sourceHash), e.policy.RateWindow)
	if err != nil {
		e.logger.WithError(err).Debug("rate counter unavailable")
		return 0, 0
	}
	return n, domain.PointsFor(e.policy.RateSteps, n)
}

func (e *engine) patternFactor(ctx context.Context, fp domain.Fingerprint) int {
	key := counter.PatternKey(fp.SourceHash)
	if err := e.store.PushTrim(ctx, key, fp.Endpoint, e.policy.PatternMaxLen, e.policy.PatternWindow); err != nil {
		e.logger.WithError(err).Debug("pattern history unavailable")
		return 0
	}
	history, err := e.store.ListAll(ctx, key)
	if err != nil || len(history) < e.policy.PatternMinSamples {
		return 0
	}
	distinct := make(map[string]struct{}, len(history))
	for _, endpoint := range history {
		distinct[endpoint] = struct{}{}
	}
	ratio := 1 - float64(len(distinct))/float64(len(history))
	return domain.RatioPointsFor(e.policy.PatternSteps, ratio)
}

func (e *engine) sessionFactor(fp domain.Fingerprint) int {
	switch {
	case fp.IsAuthenticated:
		return 0
	case !fp.HasSession && !fp.HasCookies:
		return e.policy.NoIdentityPoints
	case fp.HasCookies && !fp.HasSession:
		return e.policy.CookieOnlyPoints
	default:
		return 0
	}
}

func (e *engine) entropyFactor(ctx context.Context, fp domain.Fingerprint) int {
	key := counter.UserAgentKey(fp.SourceHash)
	if fp.UserAgent != "" {
		if err := e.store.SetAdd(ctx, key, fp.UserAgent, e.policy.UserAgentWindow); err != nil {
			e.logger.WithError(err).Debug("user agent set unavailable")
			return 0
		}
	}
	agents, err := e.store.SetMembers(ctx, key)
	if err != nil {
		return 0
	}
	switch n := len(agents); {
	case n == 1:
		return e.policy.SingleAgentPoints
	case n > e.policy.ManyAgentsAbove:
		return e.policy.ManyAgentsPoints
	default:
		return 0
	}
}

func (e *engine) authFailureFactor(ctx context.Context, sourceHash string) int {
	n, found, err := e.store.GetInt(ctx, counter.AuthFailureKey(sourceHash))
	if err != nil || !found {
		return 0
	}
	return domain.PointsFor(e.policy.AuthFailureSteps, n)
}

func (e *engine) signatureFactor(ctx context.Context, fp domain.Fingerprint, requests int64) int {
	sigs, err := e.signatures.AllSignatures(ctx)
	if err != nil {
		// stale signatures are still returned alongside the error
		e.logger.WithError(err).Debug("serving cached attack signatures")
	}
	if len(sigs) == 0 {
		return 0
	}
	uaClass := utils.UserAgentClass(fp.UserAgent)
	uaDigest := utils.UserAgentDigest(fp.UserAgent)
	cadence := signature.CadenceFor(requests)
	for _, sig := range sigs {
		d, ok := e.descriptor(sig)
		if ok && d.Matches(fp.Endpoint, uaClass, uaDigest, cadence) {
			return e.policy.SignaturePoints
		}
	}
	return 0
}

func (e *engine) descriptor(sig ledger.Signature) (signature.Descriptor, bool) {
	e.mu.RLock()
	d, ok := e.descriptors[sig.PatternHash]
	e.mu.RUnlock()
	if ok {
		return d, true
	}
	d, err := signature.ParseDescriptor(sig.Pattern)
	if err != nil {
		e.logger.WithError(err).WithField("pattern_hash", sig.PatternHash).Warn("unreadable attack signature")
		return signature.Descriptor{}, false
	}
	e.mu.Lock()
	e.descriptors[sig.PatternHash] = d
	e.mu.Unlock()
	return d, true
}

func (e *engine) RecordAuthFailure(ctx context.Context, sourceHash string) error {
	_, err := e.store.IncrWithTTL(ctx, counter.AuthFailureKey(sourceHash), e.policy.AuthFailureWindow)
	return err
}

func (e *engine) Relieve(ctx context.Context, sourceHash string) error {
	key := counter.RateKey(sourceHash)
	left, err := e.store.DecrBy(ctx, key, e.credits)
	if err != nil {
		return err
	}
	keys := []string{counter.PatternKey(sourceHash)}
	if left <= 0 {
		keys = append(keys, key)
	}
	return e.store.Delete(ctx, keys...)
}

func (e *engine) Reset(ctx context.Context, sourceHash string) error {
	return e.store.Delete(ctx, counter.SourceKeys(sourceHash)...)
}
