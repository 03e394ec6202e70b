package mocks

import (
	"context"

	"github.com/NeuralTrust/ThreatGate/pkg/app/decision"
	"github.com/NeuralTrust/ThreatGate/pkg/domain/threat"
	"github.com/stretchr/testify/mock"
)

type Pipeline struct {
	mock.Mock
}

func (m *Pipeline) Evaluate(ctx context.Context, req decision.Request) (threat.Verdict, threat.Fingerprint) {
	args := m.Called(ctx, req)
	return args.Get(0).(threat.Verdict), args.Get(1).(threat.Fingerprint)
}
