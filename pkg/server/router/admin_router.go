package router

import (
	"errors"
	"time"

	handlers "github.com/NeuralTrust/ThreatGate/pkg/handlers/http"
	wsHandlers "github.com/NeuralTrust/ThreatGate/pkg/handlers/websocket"
	"github.com/NeuralTrust/ThreatGate/pkg/server/middleware"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
)

var (
	ErrInvalidHandlerTransport = errors.New("invalid handler transport")
)

const EventStreamPath = "/events/stream"

type adminRouter struct {
	middlewareTransport *middleware.Transport
	streamMiddleware    middleware.Middleware
	handlerTransport    handlers.HandlerTransport
	wsHandlerTransport  wsHandlers.HandlerTransport
	swaggerURL          string
}

func NewAdminRouter(
	middlewareTransport *middleware.Transport,
	streamMiddleware middleware.Middleware,
	handlerTransport handlers.HandlerTransport,
	wsHandlerTransport wsHandlers.HandlerTransport,
	swaggerURL string,
) ServerRouter {
	return &adminRouter{
		middlewareTransport: middlewareTransport,
		streamMiddleware:    streamMiddleware,
		handlerTransport:    handlerTransport,
		wsHandlerTransport:  wsHandlerTransport,
		swaggerURL:          swaggerURL,
	}
}

func (r *adminRouter) BuildRoutes(router *fiber.App) error {

	handlerTransport, ok := r.handlerTransport.GetTransport().(*handlers.HandlerTransportDTO)
	if !ok {
		return ErrInvalidHandlerTransport
	}

	wsHandlerTransport, ok := r.wsHandlerTransport.GetTransport().(*wsHandlers.HandlerTransportDTO)
	if !ok {
		return ErrInvalidHandlerTransport
	}

	router.Static("/swagger.json", "./docs/swagger.json")

	router.Get("/docs/*", swagger.New(swagger.Config{
		URL: r.swaggerURL,
	}))

	router.Get("/version", handlerTransport.GetVersionHandler.Handle)

	security := router.Group("/api/v1/security")
	{
		if mws := r.middlewareTransport.Chain(); len(mws) > 0 {
			security.Use(mws...)
		}

		blocks := security.Group("/blocks")
		{
			blocks.Post("", handlerTransport.BlockSourceHandler.Handle)
			blocks.Get("", handlerTransport.ListBlocksHandler.Handle)
			blocks.Get("/:source", handlerTransport.CheckSourceHandler.Handle)
			blocks.Delete("/:source_hash", handlerTransport.UnblockSourceHandler.Handle)
		}

		security.Get("/stats", handlerTransport.SecurityStatsHandler.Handle)
		security.Get("/events", handlerTransport.ListSecurityEventsHandler.Handle)
		security.Get(EventStreamPath,
			r.streamMiddleware.Middleware(),
			websocket.New(wsHandlerTransport.EventStreamHandler.Handle, websocket.Config{
				HandshakeTimeout: 15 * time.Second,
				ReadBufferSize:   1024,
				WriteBufferSize:  4096,
			}),
		)
		security.Get("/signatures", handlerTransport.ListSignaturesHandler.Handle)
		security.Get("/detector", handlerTransport.DetectorStatsHandler.Handle)
		security.Get("/ledger/verify", handlerTransport.VerifyLedgerHandler.Handle)

		maintenance := security.Group("/maintenance")
		{
			maintenance.Post("/sweep", handlerTransport.RunSweepHandler.Handle)
			maintenance.Post("/sync", handlerTransport.RunSyncHandler.Handle)
		}
	}
	return nil
}
