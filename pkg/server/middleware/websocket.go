package middleware

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

const (
	StreamSourceFilterKey = "stream_source_hash"
	StreamActionFilterKey = "stream_action"
)

type websocketMiddleware struct {
	logger *logrus.Logger
}

// NewWebsocketMiddleware only lets websocket upgrades through and carries the
// stream filters from the query string into the connection locals.
func NewWebsocketMiddleware(logger *logrus.Logger) Middleware {
	return &websocketMiddleware{logger: logger}
}

func (m *websocketMiddleware) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			m.logger.WithField("path", c.Path()).Debug("stream requested without websocket upgrade")
			return fiber.ErrUpgradeRequired
		}
		c.Locals(StreamSourceFilterKey, c.Query("source_hash"))
		c.Locals(StreamActionFilterKey, c.Query("action"))
		return c.Next()
	}
}
