package mocks

import (
	"context"
	"time"

	"github.com/NeuralTrust/ThreatGate/pkg/domain/securityevent"
	"github.com/stretchr/testify/mock"
)

type Repository struct {
	mock.Mock
}

func (m *Repository) Save(ctx context.Context, record *securityevent.Record) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *Repository) Recent(ctx context.Context, query securityevent.Query) ([]securityevent.Record, error) {
	args := m.Called(ctx, query)
	records, _ := args.Get(0).([]securityevent.Record) //nolint:errcheck
	return records, args.Error(1)
}

func (m *Repository) CountByAction(ctx context.Context, since time.Time) (map[string]int64, error) {
	args := m.Called(ctx, since)
	counts, _ := args.Get(0).(map[string]int64) //nolint:errcheck
	return counts, args.Error(1)
}

func (m *Repository) AverageScore(ctx context.Context, since time.Time) (float64, error) {
	args := m.Called(ctx, since)
	avg, _ := args.Get(0).(float64) //nolint:errcheck
	return avg, args.Error(1)
}

func (m *Repository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	n, _ := args.Get(0).(int64) //nolint:errcheck
	return n, args.Error(1)
}
