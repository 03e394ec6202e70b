package http

import (
	"errors"
	"strings"

	"github.com/NeuralTrust/ThreatGate/pkg/app/blocklist"
	"github.com/NeuralTrust/ThreatGate/pkg/domain"
	"github.com/NeuralTrust/ThreatGate/pkg/handlers/http/request"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type unblockSourceHandler struct {
	logger    *logrus.Logger
	lifecycle blocklist.Lifecycle
}

func NewUnblockSourceHandler(logger *logrus.Logger, lifecycle blocklist.Lifecycle) Handler {
	return &unblockSourceHandler{
		logger:    logger,
		lifecycle: lifecycle,
	}
}

// Handle @Summary Unblock a source
// @Description Removes the block on the ledger and locally and resets the source's counters
// @Tags Blocklist
// @Param source_hash path string true "Source hash"
// @Success 204 "Source unblocked"
// @Failure 404 {object} map[string]interface{} "Source not blocked"
// @Failure 503 {object} map[string]interface{} "Ledger unavailable"
// @Router /api/v1/security/blocks/{source_hash} [delete]
func (h *unblockSourceHandler) Handle(c *fiber.Ctx) error {
	hash := strings.ToLower(c.Params("source_hash"))
	if !request.ValidSourceHash(hash) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid source hash"})
	}

	err := h.lifecycle.Unblock(c.UserContext(), hash)
	switch {
	case err == nil:
		return c.SendStatus(fiber.StatusNoContent)
	case domain.IsNotFoundError(err):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "source is not blocked"})
	case errors.Is(err, domain.ErrLedgerUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "ledger unavailable, try again later"})
	default:
		h.logger.WithError(err).Error("failed to unblock source")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to unblock source"})
	}
}
