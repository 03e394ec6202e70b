package middleware

import (
	"strconv"
	"strings"

	"github.com/NeuralTrust/ThreatGate/pkg/app/decision"
	"github.com/NeuralTrust/ThreatGate/pkg/common"
	"github.com/NeuralTrust/ThreatGate/pkg/domain/threat"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/fingerprint"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type threatGuardMiddleware struct {
	logger    *logrus.Logger
	pipeline  decision.Pipeline
	builder   fingerprint.Builder
	skipPaths []string
}

// NewThreatGuardMiddleware runs every proxied request through the decision
// pipeline and answers challenges and blocks itself.
func NewThreatGuardMiddleware(
	logger *logrus.Logger,
	pipeline decision.Pipeline,
	builder fingerprint.Builder,
	skipPaths []string,
) Middleware {
	return &threatGuardMiddleware{
		logger:    logger,
		pipeline:  pipeline,
		builder:   builder,
		skipPaths: skipPaths,
	}
}

func (m *threatGuardMiddleware) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodOptions || m.skip(c.Path()) {
			return c.Next()
		}

		verdict, fp := m.pipeline.Evaluate(c.UserContext(), decision.Request{
			Fingerprint: m.builder.MakeFingerprint(c),
			PassToken:   strings.TrimSpace(c.Get(common.ChallengeTokenHeader)),
		})

		c.Set(common.ThreatScoreHeader, strconv.Itoa(verdict.Score))
		c.Set(common.ThreatActionHeader, string(verdict.Action))
		if secs := verdict.RetryAfterSeconds(); secs > 0 {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(secs))
		}

		switch verdict.Action {
		case threat.ActionBlocked:
			m.logger.WithFields(logrus.Fields{
				"source_hash": verdict.SourceHash,
				"score":       verdict.Score,
				"cause":       verdict.Cause,
				"path":        c.Path(),
			}).Info("request blocked")
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":        "blocked",
				"reason":       verdict.Reason,
				"threat_score": verdict.Score,
			})
		case threat.ActionChallenged:
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"status":             "challenge_required",
				"challenge_endpoint": common.ChallengeEndpoint,
				"threat_score":       verdict.Score,
			})
		}

		c.Locals(common.VerdictContextKey, verdict)
		c.Locals(common.FingerprintContextKey, fp)
		return c.Next()
	}
}

func (m *threatGuardMiddleware) skip(path string) bool {
	for _, p := range m.skipPaths {
		if p == "" {
			continue
		}
		if path == p {
			return true
		}
		if strings.HasSuffix(p, "/") && strings.HasPrefix(path, p) {
			return true
		}
		if strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}
