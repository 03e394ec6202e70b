package mocks

import (
	"context"

	domain "github.com/NeuralTrust/ThreatGate/pkg/domain/threat"
	"github.com/stretchr/testify/mock"
)

type Engine struct {
	mock.Mock
}

func (m *Engine) Score(ctx context.Context, fp domain.Fingerprint) (int, domain.Breakdown) {
	args := m.Called(ctx, fp)
	b, _ := args.Get(1).(domain.Breakdown) //nolint:errcheck
	return args.Int(0), b
}

func (m *Engine) RecordAuthFailure(ctx context.Context, sourceHash string) error {
	return m.Called(ctx, sourceHash).Error(0)
}

func (m *Engine) Relieve(ctx context.Context, sourceHash string) error {
	return m.Called(ctx, sourceHash).Error(0)
}

func (m *Engine) Reset(ctx context.Context, sourceHash string) error {
	return m.Called(ctx, sourceHash).Error(0)
}
