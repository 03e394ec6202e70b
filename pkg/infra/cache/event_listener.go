package cache

import (
	"context"
	"reflect"

	"github.com/NeuralTrust/ThreatGate/pkg/infra/cache/channel"
)

// HandleFunc receives a decoded event of the type it was registered for.
type HandleFunc func(ctx context.Context, ev interface{}) error

type EventListener interface {
	// Listen blocks until ctx is done, reconnecting whenever the subscription drops.
	Listen(ctx context.Context, channels ...channel.Channel)
	Register(eventType reflect.Type, handle HandleFunc)
}
