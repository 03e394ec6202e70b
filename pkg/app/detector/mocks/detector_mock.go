package mocks

import (
	"context"

	"github.com/NeuralTrust/ThreatGate/pkg/app/detector"
	"github.com/NeuralTrust/ThreatGate/pkg/domain/signature"
	"github.com/stretchr/testify/mock"
)

type Detector struct {
	mock.Mock
}

func (m *Detector) Observe(ctx context.Context, sourceHash string) {
	m.Called(ctx, sourceHash)
}

func (m *Detector) Run(ctx context.Context) (*detector.RunReport, error) {
	args := m.Called(ctx)
	report, _ := args.Get(0).(*detector.RunReport) //nolint:errcheck
	return report, args.Error(1)
}

func (m *Detector) SyncPending(ctx context.Context) (*detector.SyncReport, error) {
	args := m.Called(ctx)
	report, _ := args.Get(0).(*detector.SyncReport) //nolint:errcheck
	return report, args.Error(1)
}

func (m *Detector) Stats(ctx context.Context) (*detector.Stats, error) {
	args := m.Called(ctx)
	stats, _ := args.Get(0).(*detector.Stats) //nolint:errcheck
	return stats, args.Error(1)
}

func (m *Detector) Signatures(ctx context.Context, limit int) ([]signature.AttackPattern, error) {
	args := m.Called(ctx, limit)
	patterns, _ := args.Get(0).([]signature.AttackPattern) //nolint:errcheck
	return patterns, args.Error(1)
}
