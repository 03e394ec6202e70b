package http

import (
	"errors"

	"github.com/NeuralTrust/ThreatGate/pkg/domain"
	"github.com/NeuralTrust/ThreatGate/pkg/domain/ledger"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type verifyLedgerHandler struct {
	logger *logrus.Logger
	ledger ledger.Ledger
}

func NewVerifyLedgerHandler(logger *logrus.Logger, l ledger.Ledger) Handler {
	return &verifyLedgerHandler{
		logger: logger,
		ledger: l,
	}
}

// Handle @Summary Verify ledger integrity
// @Description Walks the transaction chain and checks every link and HMAC
// @Tags Maintenance
// @Produce json
// @Success 200 {object} ledger.VerifyReport
// @Failure 409 {object} ledger.VerifyReport "Chain is broken"
// @Router /api/v1/security/ledger/verify [get]
func (h *verifyLedgerHandler) Handle(c *fiber.Ctx) error {
	report, err := h.ledger.Verify(c.UserContext())
	if err != nil {
		if errors.Is(err, domain.ErrLedgerUnavailable) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "ledger unavailable"})
		}
		h.logger.WithError(err).Error("failed to verify ledger")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to verify ledger"})
	}
	if !report.Valid {
		h.logger.WithField("broken_at", report.BrokenAt).Error("ledger chain verification failed")
		return c.Status(fiber.StatusConflict).JSON(report)
	}
	return c.Status(fiber.StatusOK).JSON(report)
}
