package http

import (
	"strings"

	"github.com/NeuralTrust/ThreatGate/pkg/app/blocklist"
	"github.com/NeuralTrust/ThreatGate/pkg/handlers/http/request"
	"github.com/NeuralTrust/ThreatGate/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type checkSourceHandler struct {
	logger    *logrus.Logger
	lifecycle blocklist.Lifecycle
}

func NewCheckSourceHandler(logger *logrus.Logger, lifecycle blocklist.Lifecycle) Handler {
	return &checkSourceHandler{
		logger:    logger,
		lifecycle: lifecycle,
	}
}

// Handle @Summary Check a source
// @Description Merges the local entry and the ledger view for a source hash or IP
// @Tags Blocklist
// @Produce json
// @Param source path string true "Source hash or IP"
// @Success 200 {object} blocklist.Status
// @Router /api/v1/security/blocks/{source} [get]
func (h *checkSourceHandler) Handle(c *fiber.Ctx) error {
	hash := strings.ToLower(c.Params("source"))
	if !request.ValidSourceHash(hash) {
		ip, ok := utils.NormalizeIP(hash)
		if !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "expected a source hash or an IP address"})
		}
		hash = utils.SourceHash(ip)
	}

	status, err := h.lifecycle.Check(c.UserContext(), hash)
	if err != nil {
		h.logger.WithError(err).Error("failed to check source")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to check source"})
	}
	return c.Status(fiber.StatusOK).JSON(status)
}
