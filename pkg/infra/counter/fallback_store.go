package counter

import (
	"context"
	"fmt"
	"time"

	"github.com/NeuralTrust/ThreatGate/pkg/domain"
	"github.com/NeuralTrust/ThreatGate/pkg/domain/counter"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/httpx"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const degradedComponent = "counter_store"

// FallbackStore sends every call to the primary store through a circuit breaker and
// answers from the local store whenever the primary fails or the breaker is open.
type FallbackStore struct {
	logger  *logrus.Logger
	primary counter.Store
	local   *MemoryStore
	breaker httpx.CircuitBreaker
	warn    *rate.Limiter
}

var _ counter.Store = (*FallbackStore)(nil)

func NewFallbackStore(
	logger *logrus.Logger,
	primary counter.Store,
	local *MemoryStore,
	breaker httpx.CircuitBreaker,
) *FallbackStore {
	return &FallbackStore{
		logger:  logger,
		primary: primary,
		local:   local,
		breaker: breaker,
		warn:    rate.NewLimiter(rate.Every(10*time.Second), 1),
	}
}

// Degraded reports whether calls are currently served by the local store.
func (s *FallbackStore) Degraded() bool {
	return s.breaker.State() != gobreaker.StateClosed
}

func (s *FallbackStore) Local() *MemoryStore {
	return s.local
}

func withFallback[T any](s *FallbackStore, op string, primary, local func() (T, error)) (T, error) {
	var result T
	err := s.breaker.Execute(func() error {
		var err error
		result, err = primary()
		return err
	})
	if err == nil {
		return result, nil
	}
	prometheus.DegradedTotal.WithLabelValues(degradedComponent).Inc()
	if s.warn.Allow() {
		s.logger.WithFields(logrus.Fields{
			"op":   op,
			"open": httpx.IsOpen(err),
		}).WithError(err).Warn("counter store unavailable, using local fallback")
	}
	result, err = local()
	if err != nil {
		return result, fmt.Errorf("%w: %s: %v", domain.ErrStoreUnavailable, op, err)
	}
	return result, nil
}

func (s *FallbackStore) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return withFallback(s, "incr",
		func() (int64, error) { return s.primary.IncrWithTTL(ctx, key, ttl) },
		func() (int64, error) { return s.local.IncrWithTTL(ctx, key, ttl) },
	)
}

func (s *FallbackStore) DecrBy(ctx context.Context, key string, n int64) (int64, error) {
	return withFallback(s, "decr",
		func() (int64, error) { return s.primary.DecrBy(ctx, key, n) },
		func() (int64, error) { return s.local.DecrBy(ctx, key, n) },
	)
}

func (s *FallbackStore) PushTrim(ctx context.Context, key, value string, maxLen int64, ttl time.Duration) error {
	_, err := withFallback(s, "push_trim",
		func() (struct{}, error) { return struct{}{}, s.primary.PushTrim(ctx, key, value, maxLen, ttl) },
		func() (struct{}, error) { return struct{}{}, s.local.PushTrim(ctx, key, value, maxLen, ttl) },
	)
	return err
}

func (s *FallbackStore) ListAll(ctx context.Context, key string) ([]string, error) {
	return withFallback(s, "list",
		func() ([]string, error) { return s.primary.ListAll(ctx, key) },
		func() ([]string, error) { return s.local.ListAll(ctx, key) },
	)
}

func (s *FallbackStore) SetAdd(ctx context.Context, key, member string, ttl time.Duration) error {
	_, err := withFallback(s, "set_add",
		func() (struct{}, error) { return struct{}{}, s.primary.SetAdd(ctx, key, member, ttl) },
		func() (struct{}, error) { return struct{}{}, s.local.SetAdd(ctx, key, member, ttl) },
	)
	return err
}

func (s *FallbackStore) SetMembers(ctx context.Context, key string) ([]string, error) {
	return withFallback(s, "set_members",
		func() ([]string, error) { return s.primary.SetMembers(ctx, key) },
		func() ([]string, error) { return s.local.SetMembers(ctx, key) },
	)
}

type intResult struct {
	n     int64
	found bool
}

func (s *FallbackStore) GetInt(ctx context.Context, key string) (int64, bool, error) {
	r, err := withFallback(s, "get_int",
		func() (intResult, error) {
			n, ok, err := s.primary.GetInt(ctx, key)
			return intResult{n, ok}, err
		},
		func() (intResult, error) {
			n, ok, err := s.local.GetInt(ctx, key)
			return intResult{n, ok}, err
		},
	)
	return r.n, r.found, err
}

type stringResult struct {
	v     string
	found bool
}

func (s *FallbackStore) Get(ctx context.Context, key string) (string, bool, error) {
	r, err := withFallback(s, "get",
		func() (stringResult, error) {
			v, ok, err := s.primary.Get(ctx, key)
			return stringResult{v, ok}, err
		},
		func() (stringResult, error) {
			v, ok, err := s.local.Get(ctx, key)
			return stringResult{v, ok}, err
		},
	)
	return r.v, r.found, err
}

func (s *FallbackStore) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	_, err := withFallback(s, "set",
		func() (struct{}, error) { return struct{}{}, s.primary.SetWithTTL(ctx, key, value, ttl) },
		func() (struct{}, error) { return struct{}{}, s.local.SetWithTTL(ctx, key, value, ttl) },
	)
	return err
}

func (s *FallbackStore) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return withFallback(s, "set_nx",
		func() (bool, error) { return s.primary.SetIfAbsent(ctx, key, value, ttl) },
		func() (bool, error) { return s.local.SetIfAbsent(ctx, key, value, ttl) },
	)
}

func (s *FallbackStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	return withFallback(s, "ttl",
		func() (time.Duration, error) { return s.primary.TTL(ctx, key) },
		func() (time.Duration, error) { return s.local.TTL(ctx, key) },
	)
}

// Delete clears the key on both stores so stale local state does not outlive a reset.
func (s *FallbackStore) Delete(ctx context.Context, keys ...string) error {
	_ = s.local.Delete(ctx, keys...)
	_, err := withFallback(s, "delete",
		func() (struct{}, error) { return struct{}{}, s.primary.Delete(ctx, keys...) },
		func() (struct{}, error) { return struct{}{}, nil },
	)
	return err
}
