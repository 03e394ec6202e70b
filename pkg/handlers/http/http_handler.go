package http

import "github.com/gofiber/fiber/v2"

type Handler interface {
	Handle(ctx *fiber.Ctx) error
}

type HandlerTransport interface {
	GetTransport() HandlerTransport
}

type HandlerTransportDTO struct {
	// Proxy
	ForwardedHandler       Handler
	IssueChallengeHandler  Handler
	AnswerChallengeHandler Handler
	ChallengeStatusHandler Handler

	// Admin
	GetVersionHandler         Handler
	BlockSourceHandler        Handler
	UnblockSourceHandler      Handler
	ListBlocksHandler         Handler
	CheckSourceHandler        Handler
	SecurityStatsHandler      Handler
	ListSecurityEventsHandler Handler
	ListSignaturesHandler     Handler
	DetectorStatsHandler      Handler
	RunSweepHandler           Handler
	RunSyncHandler            Handler
	VerifyLedgerHandler       Handler
}

func (t *HandlerTransportDTO) GetTransport() HandlerTransport {
	return t
}
