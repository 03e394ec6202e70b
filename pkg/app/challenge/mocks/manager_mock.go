package mocks

import (
	"context"
	"time"

	"github.com/NeuralTrust/ThreatGate/pkg/app/challenge"
	domainThreat "github.com/NeuralTrust/ThreatGate/pkg/domain/threat"
	"github.com/stretchr/testify/mock"
)

type Manager struct {
	mock.Mock
}

func (m *Manager) Issue(ctx context.Context, sourceHash string) (*challenge.Challenge, error) {
	args := m.Called(ctx, sourceHash)
	ch, _ := args.Get(0).(*challenge.Challenge) //nolint:errcheck
	return ch, args.Error(1)
}

func (m *Manager) Answer(ctx context.Context, sourceHash, token, answer string) (string, bool, error) {
	args := m.Called(ctx, sourceHash, token, answer)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *Manager) Verify(ctx context.Context, sourceHash, passToken string) bool {
	return m.Called(ctx, sourceHash, passToken).Bool(0)
}

func (m *Manager) BlockedFor(ctx context.Context, sourceHash string) (time.Duration, bool) {
	args := m.Called(ctx, sourceHash)
	d, _ := args.Get(0).(time.Duration) //nolint:errcheck
	return d, args.Bool(1)
}

func (m *Manager) Exempt(fp domainThreat.Fingerprint) bool {
	return m.Called(fp).Bool(0)
}

func (m *Manager) Status(ctx context.Context, sourceHash string) (*challenge.Status, error) {
	args := m.Called(ctx, sourceHash)
	st, _ := args.Get(0).(*challenge.Status) //nolint:errcheck
	return st, args.Error(1)
}
