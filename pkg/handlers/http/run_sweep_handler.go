package http

import (
	"github.com/NeuralTrust/ThreatGate/pkg/app/blocklist"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type runSweepHandler struct {
	logger    *logrus.Logger
	lifecycle blocklist.Lifecycle
}

func NewRunSweepHandler(logger *logrus.Logger, lifecycle blocklist.Lifecycle) Handler {
	return &runSweepHandler{
		logger:    logger,
		lifecycle: lifecycle,
	}
}

// Handle @Summary Sweep expired blocks
// @Description Removes expired automatic blocks now instead of waiting for the scheduler
// @Tags Maintenance
// @Produce json
// @Success 200 {object} blocklist.SweepReport
// @Router /api/v1/security/maintenance/sweep [post]
func (h *runSweepHandler) Handle(c *fiber.Ctx) error {
	report, err := h.lifecycle.SweepExpired(c.UserContext())
	if err != nil {
		h.logger.WithError(err).Error("failed to sweep expired blocks")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to sweep expired blocks"})
	}
	return c.Status(fiber.StatusOK).JSON(report)
}
