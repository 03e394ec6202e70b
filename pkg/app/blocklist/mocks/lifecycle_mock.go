package mocks

import (
	"context"
	"time"

	appBlocklist "github.com/NeuralTrust/ThreatGate/pkg/app/blocklist"
	"github.com/NeuralTrust/ThreatGate/pkg/domain/blocklist"
	"github.com/stretchr/testify/mock"
)

type Lifecycle struct {
	mock.Mock
}

func (m *Lifecycle) AutoBlock(ctx context.Context, sourceHash, reason string, score int) (*blocklist.BlockedSource, error) {
	args := m.Called(ctx, sourceHash, reason, score)
	entry, _ := args.Get(0).(*blocklist.BlockedSource) //nolint:errcheck
	return entry, args.Error(1)
}

func (m *Lifecycle) ManualBlock(
	ctx context.Context,
	sourceHash, reason string,
	duration *time.Duration,
	by string,
) (*blocklist.BlockedSource, error) {
	args := m.Called(ctx, sourceHash, reason, duration, by)
	entry, _ := args.Get(0).(*blocklist.BlockedSource) //nolint:errcheck
	return entry, args.Error(1)
}

func (m *Lifecycle) Unblock(ctx context.Context, sourceHash string) error {
	return m.Called(ctx, sourceHash).Error(0)
}

func (m *Lifecycle) SweepExpired(ctx context.Context) (*appBlocklist.SweepReport, error) {
	args := m.Called(ctx)
	report, _ := args.Get(0).(*appBlocklist.SweepReport) //nolint:errcheck
	return report, args.Error(1)
}

func (m *Lifecycle) SyncPending(ctx context.Context) (*appBlocklist.SyncReport, error) {
	args := m.Called(ctx)
	report, _ := args.Get(0).(*appBlocklist.SyncReport) //nolint:errcheck
	return report, args.Error(1)
}

func (m *Lifecycle) List(ctx context.Context, filter blocklist.Filter) ([]blocklist.BlockedSource, error) {
	args := m.Called(ctx, filter)
	entries, _ := args.Get(0).([]blocklist.BlockedSource) //nolint:errcheck
	return entries, args.Error(1)
}

func (m *Lifecycle) Check(ctx context.Context, sourceHash string) (*appBlocklist.Status, error) {
	args := m.Called(ctx, sourceHash)
	status, _ := args.Get(0).(*appBlocklist.Status) //nolint:errcheck
	return status, args.Error(1)
}
