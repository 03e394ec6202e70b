package http

import (
	"github.com/NeuralTrust/ThreatGate/pkg/app/blocklist"
	"github.com/NeuralTrust/ThreatGate/pkg/handlers/http/request"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type listBlocksHandler struct {
	logger    *logrus.Logger
	lifecycle blocklist.Lifecycle
}

func NewListBlocksHandler(logger *logrus.Logger, lifecycle blocklist.Lifecycle) Handler {
	return &listBlocksHandler{
		logger:    logger,
		lifecycle: lifecycle,
	}
}

// Handle @Summary List blocked sources
// @Tags Blocklist
// @Produce json
// @Param active query bool false "Only blocks in force (default true)"
// @Param manual query bool false "Filter by manual flag"
// @Param pending query bool false "Only entries waiting for the ledger"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {array} blocklist.BlockedSource
// @Router /api/v1/security/blocks [get]
func (h *listBlocksHandler) Handle(c *fiber.Ctx) error {
	entries, err := h.lifecycle.List(c.UserContext(), request.BlocklistFilter(c))
	if err != nil {
		h.logger.WithError(err).Error("failed to list blocked sources")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list blocked sources"})
	}
	return c.Status(fiber.StatusOK).JSON(entries)
}
