package mocks

import (
	"context"

	"github.com/NeuralTrust/ThreatGate/pkg/domain/securityevent"
	"github.com/NeuralTrust/ThreatGate/pkg/domain/threat"
	"github.com/stretchr/testify/mock"
)

type Recorder struct {
	mock.Mock
}

func (m *Recorder) Record(fp threat.Fingerprint, verdict threat.Verdict) {
	m.Called(fp, verdict)
}

func (m *Recorder) Recent(ctx context.Context, query securityevent.Query) ([]securityevent.Record, error) {
	args := m.Called(ctx, query)
	records, _ := args.Get(0).([]securityevent.Record) //nolint:errcheck
	return records, args.Error(1)
}

func (m *Recorder) Stats(ctx context.Context) (*securityevent.Stats, error) {
	args := m.Called(ctx)
	stats, _ := args.Get(0).(*securityevent.Stats) //nolint:errcheck
	return stats, args.Error(1)
}

func (m *Recorder) Trim(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}
