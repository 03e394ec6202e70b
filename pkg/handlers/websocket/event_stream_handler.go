package websocket

import (
	"time"

	"github.com/NeuralTrust/ThreatGate/pkg/infra/cache/event"
	infraWebsocket "github.com/NeuralTrust/ThreatGate/pkg/infra/websocket"
	"github.com/NeuralTrust/ThreatGate/pkg/server/middleware"
	"github.com/gofiber/contrib/websocket"
	"github.com/sirupsen/logrus"
)

const writeWait = 10 * time.Second

type eventStreamHandler struct {
	logger     *logrus.Logger
	hub        *infraWebsocket.Hub
	pingPeriod time.Duration
	pongWait   time.Duration
}

// NewEventStreamHandler streams threat decisions from every gateway instance to
// an admin websocket client.
func NewEventStreamHandler(
	logger *logrus.Logger,
	hub *infraWebsocket.Hub,
	pingPeriod time.Duration,
	pongWait time.Duration,
) Handler {
	return &eventStreamHandler{
		logger:     logger,
		hub:        hub,
		pingPeriod: pingPeriod,
		pongWait:   pongWait,
	}
}

func (h *eventStreamHandler) Handle(c *websocket.Conn) {
	sourceHash, _ := c.Locals(middleware.StreamSourceFilterKey).(string) //nolint:errcheck
	action, _ := c.Locals(middleware.StreamActionFilterKey).(string)     //nolint:errcheck

	sub := h.hub.Subscribe(StreamFilter(sourceHash, action))
	if sub == nil {
		h.logger.Warn("event stream at capacity, rejecting subscriber")
		_ = c.WriteControl( //nolint:errcheck
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too many subscribers"),
			time.Now().Add(writeWait),
		)
		return
	}
	defer h.hub.Unsubscribe(sub)

	if err := c.SetReadDeadline(time.Now().Add(h.pongWait)); err != nil {
		h.logger.WithError(err).Error("failed to set read deadline")
		return
	}
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(h.pongWait))
	})

	// The reader only drains control frames; it ends when the client goes away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case evt, ok := <-sub.Events:
			if !ok {
				return
			}
			if err := c.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.WriteJSON(evt); err != nil {
				h.logger.WithError(err).Debug("event stream subscriber went away")
				return
			}
		case <-ticker.C:
			if err := c.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				h.logger.WithError(err).Debug("failed to ping event stream subscriber")
				return
			}
		}
	}
}

// StreamFilter matches events against the optional source hash and action
// filters. Empty filters match everything.
func StreamFilter(sourceHash, action string) func(event.ThreatDecisionEvent) bool {
	if sourceHash == "" && action == "" {
		return nil
	}
	return func(evt event.ThreatDecisionEvent) bool {
		if sourceHash != "" && evt.SourceHash != sourceHash {
			return false
		}
		if action != "" && evt.Action != action {
			return false
		}
		return true
	}
}
