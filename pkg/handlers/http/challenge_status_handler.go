package http

import (
	"github.com/NeuralTrust/ThreatGate/pkg/app/challenge"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/fingerprint"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type challengeStatusHandler struct {
	logger     *logrus.Logger
	challenges challenge.Manager
	builder    fingerprint.Builder
}

func NewChallengeStatusHandler(
	logger *logrus.Logger,
	challenges challenge.Manager,
	builder fingerprint.Builder,
) Handler {
	return &challengeStatusHandler{
		logger:     logger,
		challenges: challenges,
		builder:    builder,
	}
}

// Handle @Summary Challenge status
// @Description Reports failed attempts and any local block for the calling source
// @Tags Challenge
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/security/challenge/status [get]
func (h *challengeStatusHandler) Handle(c *fiber.Ctx) error {
	fp, ok := resolveSource(c, h.builder)
	if !ok {
		return invalidSource(c)
	}
	status, err := h.challenges.Status(c.UserContext(), fp.SourceHash)
	if err != nil {
		h.logger.WithError(err).Error("failed to read challenge status")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to read challenge status"})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"blocked":     status.Blocked,
		"failures":    status.Failures,
		"retry_after": int(status.RetryAfter.Seconds()),
	})
}
