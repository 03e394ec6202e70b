package http

import (
	"github.com/NeuralTrust/ThreatGate/pkg/domain/threat"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/fingerprint"
	"github.com/NeuralTrust/ThreatGate/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

// resolveSource identifies the caller of an endpoint that bypasses the threat guard.
func resolveSource(c *fiber.Ctx, builder fingerprint.Builder) (threat.Fingerprint, bool) {
	fp := builder.MakeFingerprint(c)
	ip, ok := utils.NormalizeIP(fp.IP)
	if !ok {
		return fp, false
	}
	fp.IP = ip
	fp.SourceHash = utils.SourceHash(ip)
	return fp, true
}

func invalidSource(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid source address"})
}
