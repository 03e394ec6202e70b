package subscriber

import (
	"context"

	infraCache "github.com/NeuralTrust/ThreatGate/pkg/infra/cache"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/cache/event"
)

// Broadcaster fans decisions out to live admin streams on this instance.
type Broadcaster interface {
	Broadcast(evt event.ThreatDecisionEvent)
}

type ThreatDecisionEventSubscriber struct {
	broadcaster Broadcaster
}

func NewThreatDecisionEventSubscriber(broadcaster Broadcaster) infraCache.EventSubscriber[event.ThreatDecisionEvent] {
	return &ThreatDecisionEventSubscriber{broadcaster: broadcaster}
}

func (s ThreatDecisionEventSubscriber) OnEvent(_ context.Context, evt event.ThreatDecisionEvent) error {
	s.broadcaster.Broadcast(evt)
	return nil
}
