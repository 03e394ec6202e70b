package http

import (
	"time"

	"github.com/NeuralTrust/ThreatGate/pkg/app/securityevent"
	domain "github.com/NeuralTrust/ThreatGate/pkg/domain/securityevent"
	"github.com/NeuralTrust/ThreatGate/pkg/handlers/http/request"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type listSecurityEventsHandler struct {
	logger   *logrus.Logger
	recorder securityevent.Recorder
}

func NewListSecurityEventsHandler(logger *logrus.Logger, recorder securityevent.Recorder) Handler {
	return &listSecurityEventsHandler{
		logger:   logger,
		recorder: recorder,
	}
}

// Handle @Summary Recent security events
// @Tags Security
// @Produce json
// @Param source_hash query string false "Only this source"
// @Param action query string false "Only this action"
// @Param since query string false "RFC3339 lower bound"
// @Param limit query int false "Page size"
// @Success 200 {array} securityevent.Record
// @Router /api/v1/security/events [get]
func (h *listSecurityEventsHandler) Handle(c *fiber.Ctx) error {
	query := domain.Query{
		SourceHash: c.Query("source_hash"),
		Action:     c.Query("action"),
		Limit:      request.Limit(c, 100),
	}
	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "since must be RFC3339"})
		}
		query.Since = since
	}

	records, err := h.recorder.Recent(c.UserContext(), query)
	if err != nil {
		h.logger.WithError(err).Error("failed to list security events")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list security events"})
	}
	return c.Status(fiber.StatusOK).JSON(records)
}
