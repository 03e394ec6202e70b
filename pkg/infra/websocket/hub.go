package websocket

import (
	"sync"

	"github.com/NeuralTrust/ThreatGate/pkg/infra/cache/event"
	"github.com/sirupsen/logrus"
)

const subscriberBuffer = 64

type Subscription struct {
	id     uint64
	Events <-chan event.ThreatDecisionEvent
	filter func(event.ThreatDecisionEvent) bool
	out    chan event.ThreatDecisionEvent
}

// Hub fans threat decisions out to live stream subscribers. Slow subscribers lose
// events instead of blocking the publisher.
type Hub struct {
	logger    *logrus.Logger
	slots     *Semaphore
	mu        sync.RWMutex
	nextID    uint64
	listeners map[uint64]*Subscription
}

func NewHub(logger *logrus.Logger, maxSubscribers int) *Hub {
	return &Hub{
		logger:    logger,
		slots:     NewSemaphore(maxSubscribers),
		listeners: make(map[uint64]*Subscription),
	}
}

// Subscribe returns nil when the hub is at capacity. filter may be nil.
func (h *Hub) Subscribe(filter func(event.ThreatDecisionEvent) bool) *Subscription {
	if !h.slots.Acquire() {
		return nil
	}
	out := make(chan event.ThreatDecisionEvent, subscriberBuffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	sub := &Subscription{id: h.nextID, Events: out, out: out, filter: filter}
	h.listeners[sub.id] = sub
	return sub
}

func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	if _, ok := h.listeners[sub.id]; ok {
		delete(h.listeners, sub.id)
		close(sub.out)
		h.slots.Release()
	}
	h.mu.Unlock()
}

func (h *Hub) Broadcast(evt event.ThreatDecisionEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.listeners {
		if sub.filter != nil && !sub.filter(evt) {
			continue
		}
		select {
		case sub.out <- evt:
		default:
			h.logger.WithField("subscriber", sub.id).Debug("stream subscriber is slow, dropping event")
		}
	}
}

func (h *Hub) Subscribers() int {
	return h.slots.InUse()
}
