package counter

import (
	"context"
	"time"
)

//go:generate mockery --name=Store --dir=. --output=./mocks --filename=store_mock.go --case=underscore --with-expecter
type Store interface {
	// IncrWithTTL increments key and applies ttl only when the increment created it.
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// DecrBy decrements key without touching its expiry.
	DecrBy(ctx context.Context, key string, n int64) (int64, error)
	// PushTrim prepends value, keeps the newest maxLen items and refreshes ttl.
	PushTrim(ctx context.Context, key, value string, maxLen int64, ttl time.Duration) error
	ListAll(ctx context.Context, key string) ([]string, error)
	// SetAdd adds member and refreshes ttl.
	SetAdd(ctx context.Context, key, member string, ttl time.Duration) error
	SetMembers(ctx context.Context, key string) ([]string, error)
	GetInt(ctx context.Context, key string) (int64, bool, error)
	Get(ctx context.Context, key string) (string, bool, error)
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
	// SetIfAbsent stores value only if key does not exist and reports whether it did.
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
	Delete(ctx context.Context, keys ...string) error
}
