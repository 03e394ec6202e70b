package http

import (
	"github.com/NeuralTrust/ThreatGate/pkg/app/detector"
	"github.com/NeuralTrust/ThreatGate/pkg/handlers/http/request"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type listSignaturesHandler struct {
	logger   *logrus.Logger
	detector detector.Detector
}

func NewListSignaturesHandler(logger *logrus.Logger, detector detector.Detector) Handler {
	return &listSignaturesHandler{
		logger:   logger,
		detector: detector,
	}
}

// Handle @Summary Attack signatures
// @Description Signatures minted by the coordinated-attack detector, newest first
// @Tags Security
// @Produce json
// @Param limit query int false "Page size"
// @Success 200 {array} signature.AttackPattern
// @Router /api/v1/security/signatures [get]
func (h *listSignaturesHandler) Handle(c *fiber.Ctx) error {
	patterns, err := h.detector.Signatures(c.UserContext(), request.Limit(c, 50))
	if err != nil {
		h.logger.WithError(err).Error("failed to list attack signatures")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list attack signatures"})
	}
	return c.Status(fiber.StatusOK).JSON(patterns)
}
