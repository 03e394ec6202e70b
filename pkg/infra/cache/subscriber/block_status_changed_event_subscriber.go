package subscriber

import (
	"context"

	"github.com/NeuralTrust/ThreatGate/pkg/domain/ledger"
	infraCache "github.com/NeuralTrust/ThreatGate/pkg/infra/cache"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/cache/event"
	"github.com/sirupsen/logrus"
)

// LedgerProjection is the part of the cached ledger that peers invalidate.
//
//go:generate mockery --name=LedgerProjection --dir=. --output=./mocks --filename=ledger_projection_mock.go --case=underscore --with-expecter
type LedgerProjection interface {
	MarkBlocked(entry ledger.Entry)
	Forget(sourceHash string)
	ForgetSignatures()
}

type BlockStatusChangedEventSubscriber struct {
	logger     *logrus.Logger
	projection LedgerProjection
	instanceID string
}

func NewBlockStatusChangedEventSubscriber(
	logger *logrus.Logger,
	projection LedgerProjection,
	instanceID string,
) infraCache.EventSubscriber[event.BlockStatusChangedEvent] {
	return &BlockStatusChangedEventSubscriber{
		logger:     logger,
		projection: projection,
		instanceID: instanceID,
	}
}

func (s BlockStatusChangedEventSubscriber) OnEvent(_ context.Context, evt event.BlockStatusChangedEvent) error {
	// the publishing instance already updated its own projection
	if evt.Origin == s.instanceID {
		return nil
	}
	s.logger.WithFields(logrus.Fields{
		"source_hash": evt.SourceHash,
		"blocked":     evt.Blocked,
		"origin":      evt.Origin,
	}).Debug("applying peer block status change")
	if !evt.Blocked {
		s.projection.Forget(evt.SourceHash)
		return nil
	}
	s.projection.MarkBlocked(ledger.Entry{
		SourceHash: evt.SourceHash,
		Reason:     evt.Reason,
		Manual:     evt.Manual,
		BlockedAt:  evt.BlockedAt,
		ExpiresAt:  evt.ExpiresAt,
	})
	return nil
}
