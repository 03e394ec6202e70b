package http

import (
	"errors"

	"github.com/NeuralTrust/ThreatGate/pkg/app/blocklist"
	"github.com/NeuralTrust/ThreatGate/pkg/common"
	"github.com/NeuralTrust/ThreatGate/pkg/domain"
	"github.com/NeuralTrust/ThreatGate/pkg/handlers/http/request"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type blockSourceHandler struct {
	logger    *logrus.Logger
	lifecycle blocklist.Lifecycle
}

func NewBlockSourceHandler(logger *logrus.Logger, lifecycle blocklist.Lifecycle) Handler {
	return &blockSourceHandler{
		logger:    logger,
		lifecycle: lifecycle,
	}
}

// Handle @Summary Block a source
// @Description Manually blocks a source by IP or source hash. Without duration_seconds the block never expires.
// @Tags Blocklist
// @Accept json
// @Produce json
// @Param request body request.BlockSourceRequest true "Block request"
// @Success 201 {object} blocklist.BlockedSource
// @Success 202 {object} map[string]interface{} "Blocked locally, ledger write pending"
// @Failure 400 {object} map[string]interface{} "Invalid request"
// @Router /api/v1/security/blocks [post]
func (h *blockSourceHandler) Handle(c *fiber.Ctx) error {
	var req request.BlockSourceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	by, _ := c.Locals(common.AdminSubjectKey).(string) //nolint:errcheck
	if by == "" {
		by = "admin"
	}
	entry, err := h.lifecycle.ManualBlock(c.UserContext(), req.Hash(), req.Reason, req.Duration(), by)
	if err != nil {
		if errors.Is(err, domain.ErrLedgerUnavailable) && entry != nil {
			return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
				"entry":   entry,
				"warning": "blocked locally, ledger write pending",
			})
		}
		h.logger.WithError(err).Error("failed to block source")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to block source"})
	}
	return c.Status(fiber.StatusCreated).JSON(entry)
}
