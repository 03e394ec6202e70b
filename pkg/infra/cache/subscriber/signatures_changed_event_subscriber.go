package subscriber

import (
	"context"

	infraCache "github.com/NeuralTrust/ThreatGate/pkg/infra/cache"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/cache/event"
	"github.com/sirupsen/logrus"
)

type SignaturesChangedEventSubscriber struct {
	logger     *logrus.Logger
	projection LedgerProjection
}

func NewSignaturesChangedEventSubscriber(
	logger *logrus.Logger,
	projection LedgerProjection,
) infraCache.EventSubscriber[event.SignaturesChangedEvent] {
	return &SignaturesChangedEventSubscriber{
		logger:     logger,
		projection: projection,
	}
}

func (s SignaturesChangedEventSubscriber) OnEvent(_ context.Context, evt event.SignaturesChangedEvent) error {
	s.logger.WithFields(logrus.Fields{
		"pattern_hash": evt.PatternHash,
		"origin":       evt.Origin,
	}).Debug("invalidating ledger signature cache")
	s.projection.ForgetSignatures()
	return nil
}
