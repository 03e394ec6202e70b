package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/NeuralTrust/ThreatGate/pkg/infra/cache/channel"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/cache/event"
	"github.com/sirupsen/logrus"
)

const (
	minReconnectDelay = time.Second
	maxReconnectDelay = 30 * time.Second
)

type redisEventListener struct {
	logger   *logrus.Logger
	cache    Client
	registry map[string]reflect.Type

	mu       sync.RWMutex
	handlers map[reflect.Type][]HandleFunc
}

func NewRedisEventListener(
	logger *logrus.Logger,
	cache Client,
	registry map[string]reflect.Type,
) EventListener {
	return &redisEventListener{
		logger:   logger,
		cache:    cache,
		registry: registry,
		handlers: make(map[reflect.Type][]HandleFunc),
	}
}

// RegisterEventSubscriber binds subscriber to every event of type T. Several
// subscribers may share a type; they run in registration order.
func RegisterEventSubscriber[T event.Event](l EventListener, subscriber EventSubscriber[T]) {
	var evt T
	l.Register(reflect.TypeOf(evt), func(ctx context.Context, ev interface{}) error {
		typed, ok := ev.(T)
		if !ok {
			return fmt.Errorf("unexpected event %T", ev)
		}
		return subscriber.OnEvent(ctx, typed)
	})
}

func (r *redisEventListener) Register(eventType reflect.Type, handle HandleFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[eventType] = append(r.handlers[eventType], handle)
}

func (r *redisEventListener) Listen(ctx context.Context, channels ...channel.Channel) {
	names := make([]string, 0, len(channels))
	for _, ch := range channels {
		names = append(names, string(ch))
	}

	delay := minReconnectDelay
	for {
		started := time.Now()
		r.subscribe(ctx, names)
		if ctx.Err() != nil {
			r.logger.Info("redis pubsub listener shutting down")
			return
		}
		// a subscription that survived a while resets the backoff
		if time.Since(started) > maxReconnectDelay {
			delay = minReconnectDelay
		}
		r.logger.WithFields(logrus.Fields{
			"channels": names,
			"retry_in": delay.String(),
		}).Warn("redis pubsub disconnected")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if delay *= 2; delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

func (r *redisEventListener) subscribe(ctx context.Context, names []string) {
	pubSub := r.cache.RedisClient().Subscribe(ctx, names...)
	defer func() { _ = pubSub.Close() }()

	if _, err := pubSub.Receive(ctx); err != nil {
		r.logger.WithError(err).Debug("redis pubsub subscribe failed")
		return
	}
	r.logger.WithField("channels", names).Debug("redis pubsub connected")

	messages := pubSub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			r.handleMessage(ctx, msg.Payload)
		}
	}
}

func (r *redisEventListener) handleMessage(ctx context.Context, payload string) {
	var envelope RedisMessage
	if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
		r.logger.WithError(err).Error("error decoding redis message")
		return
	}

	concreteType, ok := r.registry[envelope.Type]
	if !ok {
		r.logger.WithField("type", envelope.Type).Warn("unknown event type")
		return
	}

	eventPtr := reflect.New(concreteType)
	if err := json.Unmarshal(envelope.Event, eventPtr.Interface()); err != nil {
		r.logger.WithError(err).WithField("type", envelope.Type).Error("error decoding event payload")
		return
	}

	r.mu.RLock()
	handlers := r.handlers[concreteType]
	r.mu.RUnlock()

	ev := eventPtr.Elem().Interface()
	for _, handle := range handlers {
		if err := handle(ctx, ev); err != nil {
			r.logger.WithError(err).WithField("type", envelope.Type).Error("event subscriber failed")
		}
	}
}
