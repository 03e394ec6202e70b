package middleware

import "github.com/gofiber/fiber/v2"

type Middleware interface {
	Middleware() fiber.Handler
}

// Transport is the ordered middleware chain of one server.
type Transport struct {
	Middlewares []Middleware
}

func NewTransport(middlewares ...Middleware) *Transport {
	return &Transport{
		Middlewares: middlewares,
	}
}

// Chain returns the handlers in registration order followed by extra, in the
// shape fiber's Use expects. Nil entries are skipped.
func (t *Transport) Chain(extra ...Middleware) []interface{} {
	handlers := make([]interface{}, 0, len(t.Middlewares)+len(extra))
	for _, mw := range append(append([]Middleware{}, t.Middlewares...), extra...) {
		if mw == nil {
			continue
		}
		handlers = append(handlers, mw.Middleware())
	}
	return handlers
}
