package http

import (
	"errors"
	"strconv"

	"github.com/NeuralTrust/ThreatGate/pkg/app/challenge"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/fingerprint"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type issueChallengeHandler struct {
	logger     *logrus.Logger
	challenges challenge.Manager
	builder    fingerprint.Builder
}

func NewIssueChallengeHandler(
	logger *logrus.Logger,
	challenges challenge.Manager,
	builder fingerprint.Builder,
) Handler {
	return &issueChallengeHandler{
		logger:     logger,
		challenges: challenges,
		builder:    builder,
	}
}

// Handle @Summary Issue a challenge
// @Description Returns an arithmetic question bound to the calling source
// @Tags Challenge
// @Produce json
// @Success 200 {object} challenge.Challenge
// @Failure 403 {object} map[string]interface{} "Source blocked after failed challenges"
// @Failure 429 {object} map[string]interface{} "Too many challenges requested"
// @Router /api/security/challenge [get]
func (h *issueChallengeHandler) Handle(c *fiber.Ctx) error {
	fp, ok := resolveSource(c, h.builder)
	if !ok {
		return invalidSource(c)
	}

	ch, err := h.challenges.Issue(c.UserContext(), fp.SourceHash)
	switch {
	case err == nil:
		return c.Status(fiber.StatusOK).JSON(ch)
	case errors.Is(err, challenge.ErrChallengeBlocked):
		if remaining, blocked := h.challenges.BlockedFor(c.UserContext(), fp.SourceHash); blocked {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(remaining.Seconds())))
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "blocked", "reason": err.Error()})
	case errors.Is(err, challenge.ErrTooManyChallenges):
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": err.Error()})
	default:
		h.logger.WithError(err).Error("failed to issue challenge")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to issue challenge"})
	}
}
