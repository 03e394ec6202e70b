package router

import (
	"net/http"
	"time"

	"github.com/NeuralTrust/ThreatGate/pkg/common"
	handlers "github.com/NeuralTrust/ThreatGate/pkg/handlers/http"
	"github.com/NeuralTrust/ThreatGate/pkg/server/middleware"
	"github.com/gofiber/fiber/v2"
)

const (
	HealthPath = "/health"
	PingPath   = "/__/ping"
)

type proxyRouter struct {
	middlewareTransport *middleware.Transport
	handlerTransport    handlers.HandlerTransport
}

func NewProxyRouter(
	middlewareTransport *middleware.Transport,
	handlerTransport handlers.HandlerTransport,
) ServerRouter {
	return &proxyRouter{
		middlewareTransport: middlewareTransport,
		handlerTransport:    handlerTransport,
	}
}

func (r *proxyRouter) BuildRoutes(router *fiber.App) error {

	handlerTransport, ok := r.handlerTransport.GetTransport().(*handlers.HandlerTransportDTO)
	if !ok {
		return ErrInvalidHandlerTransport
	}

	router.Get(HealthPath, func(ctx *fiber.Ctx) error {
		return ctx.Status(http.StatusOK).JSON(fiber.Map{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	router.Get(PingPath, func(ctx *fiber.Ctx) error {
		return ctx.Status(http.StatusOK).JSON(fiber.Map{
			"message": "pong",
		})
	})

	// Challenge endpoints stay reachable for sources the guard would turn away.
	router.Get(common.ChallengeEndpoint, handlerTransport.IssueChallengeHandler.Handle)
	router.Post(common.ChallengeEndpoint, handlerTransport.AnswerChallengeHandler.Handle)
	router.Get(common.ChallengeEndpoint+"/status", handlerTransport.ChallengeStatusHandler.Handle)

	if mws := r.middlewareTransport.Chain(); len(mws) > 0 {
		router.Use(mws...)
	}

	router.Use(handlerTransport.ForwardedHandler.Handle)

	return nil
}
