package mocks

import (
	"context"

	"github.com/NeuralTrust/ThreatGate/pkg/domain/signature"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type Repository struct {
	mock.Mock
}

func (m *Repository) Save(ctx context.Context, pattern *signature.AttackPattern) error {
	args := m.Called(ctx, pattern)
	return args.Error(0)
}

func (m *Repository) List(ctx context.Context, limit int) ([]signature.AttackPattern, error) {
	args := m.Called(ctx, limit)
	patterns, _ := args.Get(0).([]signature.AttackPattern) //nolint:errcheck
	return patterns, args.Error(1)
}

func (m *Repository) ListPendingSync(ctx context.Context, limit int) ([]signature.AttackPattern, error) {
	args := m.Called(ctx, limit)
	patterns, _ := args.Get(0).([]signature.AttackPattern) //nolint:errcheck
	return patterns, args.Error(1)
}

func (m *Repository) MarkSynced(ctx context.Context, id uuid.UUID, ref string) error {
	args := m.Called(ctx, id, ref)
	return args.Error(0)
}

func (m *Repository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	n, _ := args.Get(0).(int64) //nolint:errcheck
	return n, args.Error(1)
}
