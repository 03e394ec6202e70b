package http

import (
	"github.com/NeuralTrust/ThreatGate/pkg/app/securityevent"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type securityStatsHandler struct {
	logger   *logrus.Logger
	recorder securityevent.Recorder
}

func NewSecurityStatsHandler(logger *logrus.Logger, recorder securityevent.Recorder) Handler {
	return &securityStatsHandler{
		logger:   logger,
		recorder: recorder,
	}
}

// Handle @Summary Security statistics
// @Description Request counts by action, average threat score, active blocks and known attack patterns over the last 24h
// @Tags Security
// @Produce json
// @Success 200 {object} securityevent.Stats
// @Router /api/v1/security/stats [get]
func (h *securityStatsHandler) Handle(c *fiber.Ctx) error {
	stats, err := h.recorder.Stats(c.UserContext())
	if err != nil {
		h.logger.WithError(err).Error("failed to compute security stats")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to compute security stats"})
	}
	return c.Status(fiber.StatusOK).JSON(stats)
}
