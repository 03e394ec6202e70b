package middleware

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/NeuralTrust/ThreatGate/pkg/app/decision"
	decisionMocks "github.com/NeuralTrust/ThreatGate/pkg/app/decision/mocks"
	"github.com/NeuralTrust/ThreatGate/pkg/common"
	"github.com/NeuralTrust/ThreatGate/pkg/domain/threat"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/fingerprint"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func guardApp(pipeline decision.Pipeline) *fiber.App {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	guard := NewThreatGuardMiddleware(logger, pipeline, fingerprint.NewBuilder(nil, nil),
		[]string{"/health", "/static/", common.ChallengeEndpoint})

	app := fiber.New()
	app.Use(guard.Middleware())
	app.All("/*", func(c *fiber.Ctx) error {
		_, ok := c.Locals(common.VerdictContextKey).(threat.Verdict)
		return c.JSON(fiber.Map{"forwarded": true, "verdict": ok})
	})
	return app
}

func decode(t *testing.T, body io.Reader) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(body).Decode(&out))
	return out
}

func TestThreatGuard_AllowedPassesThrough(t *testing.T) {
	pipeline := new(decisionMocks.Pipeline)
	pipeline.On("Evaluate", mock.Anything, mock.Anything).
		Return(threat.Verdict{Action: threat.ActionAllowed, Score: 12}, threat.Fingerprint{})

	req := httptest.NewRequest(fiber.MethodGet, "/api/patients", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	resp, err := guardApp(pipeline).Test(req, -1)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "12", resp.Header.Get(common.ThreatScoreHeader))
	assert.Equal(t, "allowed", resp.Header.Get(common.ThreatActionHeader))
	assert.Equal(t, true, decode(t, resp.Body)["verdict"])
}

func TestThreatGuard_ChallengeAnswers429(t *testing.T) {
	pipeline := new(decisionMocks.Pipeline)
	pipeline.On("Evaluate", mock.Anything, mock.MatchedBy(func(r decision.Request) bool {
		return r.PassToken == "expired" && r.Fingerprint.IP == "203.0.113.7"
	})).Return(threat.Verdict{Action: threat.ActionChallenged, Score: 45, ChallengeRequired: true}, threat.Fingerprint{})

	req := httptest.NewRequest(fiber.MethodGet, "/api/patients", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	req.Header.Set(common.ChallengeTokenHeader, "expired")
	resp, err := guardApp(pipeline).Test(req, -1)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	body := decode(t, resp.Body)
	assert.Equal(t, "challenge_required", body["status"])
	assert.Equal(t, common.ChallengeEndpoint, body["challenge_endpoint"])
	assert.Equal(t, float64(45), body["threat_score"])
}

func TestThreatGuard_BlockAnswers403WithRetryAfter(t *testing.T) {
	pipeline := new(decisionMocks.Pipeline)
	pipeline.On("Evaluate", mock.Anything, mock.Anything).Return(threat.Verdict{
		Action:     threat.ActionBlocked,
		Cause:      threat.CauseAutoBlock,
		Score:      85,
		Reason:     "Auto-blocked: threat score 85 (threshold: 80)",
		RetryAfter: 24 * time.Hour,
	}, threat.Fingerprint{})

	resp, err := guardApp(pipeline).Test(httptest.NewRequest(fiber.MethodPost, "/api/login", nil), -1)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "86400", resp.Header.Get(fiber.HeaderRetryAfter))
	body := decode(t, resp.Body)
	assert.Equal(t, "blocked", body["error"])
	assert.Equal(t, "Auto-blocked: threat score 85 (threshold: 80)", body["reason"])
}

func TestThreatGuard_SkipsConfiguredPathsAndOptions(t *testing.T) {
	pipeline := new(decisionMocks.Pipeline)
	app := guardApp(pipeline)

	for _, tc := range []struct{ method, path string }{
		{fiber.MethodGet, "/health"},
		{fiber.MethodGet, "/static/app.js"},
		{fiber.MethodPost, common.ChallengeEndpoint},
		{fiber.MethodGet, common.ChallengeEndpoint + "/status"},
		{fiber.MethodOptions, "/api/patients"},
	} {
		resp, err := app.Test(httptest.NewRequest(tc.method, tc.path, nil), -1)
		require.NoError(t, err)
		assert.NotEqual(t, fiber.StatusForbidden, resp.StatusCode, tc.path)
	}
	pipeline.AssertNotCalled(t, "Evaluate", mock.Anything, mock.Anything)
}

func TestThreatGuard_SkipDoesNotMatchPrefixWords(t *testing.T) {
	m := &threatGuardMiddleware{skipPaths: []string{"/health"}}
	assert.True(t, m.skip("/health"))
	assert.True(t, m.skip("/health/live"))
	assert.False(t, m.skip("/healthcare/records"))
}
