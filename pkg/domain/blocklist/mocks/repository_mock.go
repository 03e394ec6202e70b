package mocks

import (
	"context"
	"time"

	"github.com/NeuralTrust/ThreatGate/pkg/domain/blocklist"
	"github.com/stretchr/testify/mock"
)

type Repository struct {
	mock.Mock
}

func (m *Repository) Upsert(ctx context.Context, entry *blocklist.BlockedSource) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *Repository) Get(ctx context.Context, sourceHash string) (*blocklist.BlockedSource, error) {
	args := m.Called(ctx, sourceHash)
	entry, _ := args.Get(0).(*blocklist.BlockedSource) //nolint:errcheck
	return entry, args.Error(1)
}

func (m *Repository) List(ctx context.Context, filter blocklist.Filter) ([]blocklist.BlockedSource, error) {
	args := m.Called(ctx, filter)
	entries, _ := args.Get(0).([]blocklist.BlockedSource) //nolint:errcheck
	return entries, args.Error(1)
}

func (m *Repository) ListExpired(ctx context.Context, now time.Time, limit int) ([]blocklist.BlockedSource, error) {
	args := m.Called(ctx, now, limit)
	entries, _ := args.Get(0).([]blocklist.BlockedSource) //nolint:errcheck
	return entries, args.Error(1)
}

func (m *Repository) ListPendingSync(ctx context.Context, limit int) ([]blocklist.BlockedSource, error) {
	args := m.Called(ctx, limit)
	entries, _ := args.Get(0).([]blocklist.BlockedSource) //nolint:errcheck
	return entries, args.Error(1)
}

func (m *Repository) MarkSynced(ctx context.Context, sourceHash string, txRef string) error {
	args := m.Called(ctx, sourceHash, txRef)
	return args.Error(0)
}

func (m *Repository) IncrementSyncAttempts(ctx context.Context, sourceHash string) error {
	args := m.Called(ctx, sourceHash)
	return args.Error(0)
}

func (m *Repository) MarkRemoved(ctx context.Context, sourceHash string, at time.Time) (bool, error) {
	args := m.Called(ctx, sourceHash, at)
	return args.Bool(0), args.Error(1)
}

func (m *Repository) CountActive(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	n, _ := args.Get(0).(int64) //nolint:errcheck
	return n, args.Error(1)
}
