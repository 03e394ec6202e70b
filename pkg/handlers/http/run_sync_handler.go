package http

import (
	"github.com/NeuralTrust/ThreatGate/pkg/app/blocklist"
	"github.com/NeuralTrust/ThreatGate/pkg/app/detector"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type runSyncHandler struct {
	logger    *logrus.Logger
	lifecycle blocklist.Lifecycle
	detector  detector.Detector
}

func NewRunSyncHandler(logger *logrus.Logger, lifecycle blocklist.Lifecycle, detector detector.Detector) Handler {
	return &runSyncHandler{
		logger:    logger,
		lifecycle: lifecycle,
		detector:  detector,
	}
}

// Handle @Summary Push pending ledger writes
// @Description Retries blocks and signatures that were not confirmed by the ledger
// @Tags Maintenance
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/security/maintenance/sync [post]
func (h *runSyncHandler) Handle(c *fiber.Ctx) error {
	blocks, err := h.lifecycle.SyncPending(c.UserContext())
	if err != nil {
		h.logger.WithError(err).Error("failed to sync pending blocks")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to sync pending blocks"})
	}
	signatures, err := h.detector.SyncPending(c.UserContext())
	if err != nil {
		h.logger.WithError(err).Error("failed to sync pending signatures")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to sync pending signatures"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"blocks":     blocks,
		"signatures": signatures,
	})
}
