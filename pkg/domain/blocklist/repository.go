package blocklist

import (
	"context"
	"time"
)

type Filter struct {
	ActiveOnly  bool
	Manual      *bool
	PendingOnly bool
	Limit       int
	Offset      int
}

//go:generate mockery --name=Repository --dir=. --output=./mocks --filename=repository_mock.go --case=underscore --with-expecter
type Repository interface {
	// Upsert creates the entry or replaces the existing one for the same source hash.
	Upsert(ctx context.Context, entry *BlockedSource) error
	Get(ctx context.Context, sourceHash string) (*BlockedSource, error)
	List(ctx context.Context, filter Filter) ([]BlockedSource, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]BlockedSource, error)
	ListPendingSync(ctx context.Context, limit int) ([]BlockedSource, error)
	MarkSynced(ctx context.Context, sourceHash string, txRef string) error
	IncrementSyncAttempts(ctx context.Context, sourceHash string) error
	// MarkRemoved flags an active entry as removed and reports whether this call did it.
	MarkRemoved(ctx context.Context, sourceHash string, at time.Time) (bool, error)
	CountActive(ctx context.Context, now time.Time) (int64, error)
}
