package http

import (
	"github.com/NeuralTrust/ThreatGate/pkg/app/detector"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type detectorStatsHandler struct {
	logger   *logrus.Logger
	detector detector.Detector
}

func NewDetectorStatsHandler(logger *logrus.Logger, detector detector.Detector) Handler {
	return &detectorStatsHandler{
		logger:   logger,
		detector: detector,
	}
}

// Handle @Summary Detector statistics
// @Description Active sources and behaviour clusters in the current detection window
// @Tags Security
// @Produce json
// @Success 200 {object} detector.Stats
// @Router /api/v1/security/detector [get]
func (h *detectorStatsHandler) Handle(c *fiber.Ctx) error {
	stats, err := h.detector.Stats(c.UserContext())
	if err != nil {
		h.logger.WithError(err).Error("failed to compute detector stats")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to compute detector stats"})
	}
	return c.Status(fiber.StatusOK).JSON(stats)
}
