package http

import (
	"errors"

	"github.com/NeuralTrust/ThreatGate/pkg/app/challenge"
	"github.com/NeuralTrust/ThreatGate/pkg/common"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/fingerprint"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type answerChallengeHandler struct {
	logger     *logrus.Logger
	challenges challenge.Manager
	builder    fingerprint.Builder
}

func NewAnswerChallengeHandler(
	logger *logrus.Logger,
	challenges challenge.Manager,
	builder fingerprint.Builder,
) Handler {
	return &answerChallengeHandler{
		logger:     logger,
		challenges: challenges,
		builder:    builder,
	}
}

// Handle @Summary Answer a challenge
// @Description Checks the answer and returns a single-use pass token to send as X-Challenge-Token
// @Tags Challenge
// @Accept json
// @Produce json
// @Param request body map[string]interface{} true "token and answer"
// @Success 200 {object} map[string]interface{} "Pass token"
// @Failure 400 {object} map[string]interface{} "Malformed answer"
// @Failure 403 {object} map[string]interface{} "Wrong answer or blocked source"
// @Router /api/security/challenge [post]
func (h *answerChallengeHandler) Handle(c *fiber.Ctx) error {
	fp, ok := resolveSource(c, h.builder)
	if !ok {
		return invalidSource(c)
	}
	token, answer, err := challenge.ParseAnswer(c.Body())
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	pass, correct, err := h.challenges.Answer(c.UserContext(), fp.SourceHash, token, answer)
	if err != nil {
		if errors.Is(err, challenge.ErrChallengeBlocked) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "blocked", "reason": err.Error()})
		}
		h.logger.WithError(err).Error("failed to check challenge answer")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to check answer"})
	}
	if !correct {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "incorrect answer", "success": false})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success":    true,
		"pass_token": pass,
		"header":     common.ChallengeTokenHeader,
	})
}
