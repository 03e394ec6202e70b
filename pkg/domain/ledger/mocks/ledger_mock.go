package mocks

import (
	"context"
	"time"

	"github.com/NeuralTrust/ThreatGate/pkg/domain/ledger"
	"github.com/stretchr/testify/mock"
)

type Ledger struct {
	mock.Mock
}

func (m *Ledger) IsBlocked(ctx context.Context, sourceHash string) (bool, error) {
	args := m.Called(ctx, sourceHash)
	return args.Bool(0), args.Error(1)
}

func (m *Ledger) Lookup(ctx context.Context, sourceHash string) (*ledger.Entry, error) {
	args := m.Called(ctx, sourceHash)
	entry, _ := args.Get(0).(*ledger.Entry) //nolint:errcheck
	return entry, args.Error(1)
}

func (m *Ledger) Block(
	ctx context.Context,
	sourceHash string,
	expiresAt time.Time,
	reason string,
	manual bool,
) (ledger.TxRef, error) {
	args := m.Called(ctx, sourceHash, expiresAt, reason, manual)
	ref, _ := args.Get(0).(ledger.TxRef) //nolint:errcheck
	return ref, args.Error(1)
}

func (m *Ledger) Unblock(ctx context.Context, sourceHash string) (ledger.TxRef, error) {
	args := m.Called(ctx, sourceHash)
	ref, _ := args.Get(0).(ledger.TxRef) //nolint:errcheck
	return ref, args.Error(1)
}

func (m *Ledger) AddSignature(ctx context.Context, pattern string, severity int) (ledger.SignatureRef, error) {
	args := m.Called(ctx, pattern, severity)
	ref, _ := args.Get(0).(ledger.SignatureRef) //nolint:errcheck
	return ref, args.Error(1)
}

func (m *Ledger) AllSignatures(ctx context.Context) ([]ledger.Signature, error) {
	args := m.Called(ctx)
	sigs, _ := args.Get(0).([]ledger.Signature) //nolint:errcheck
	return sigs, args.Error(1)
}

func (m *Ledger) Verify(ctx context.Context) (*ledger.VerifyReport, error) {
	args := m.Called(ctx)
	report, _ := args.Get(0).(*ledger.VerifyReport) //nolint:errcheck
	return report, args.Error(1)
}
