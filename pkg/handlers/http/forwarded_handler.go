package http

import (
	"strconv"
	"strings"

	"github.com/NeuralTrust/ThreatGate/pkg/app/threat"
	"github.com/NeuralTrust/ThreatGate/pkg/common"
	domainThreat "github.com/NeuralTrust/ThreatGate/pkg/domain/threat"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/httpx"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/prometheus"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
)

var hopHeaders = map[string]struct{}{
	"connection":          {},
	"keep-alive":          {},
	"proxy-authenticate":  {},
	"proxy-authorization": {},
	"te":                  {},
	"trailer":             {},
	"transfer-encoding":   {},
	"upgrade":             {},
	"host":                {},
	"content-length":      {},
}

type forwardedHandler struct {
	logger      *logrus.Logger
	client      httpx.UpstreamClient
	engine      threat.Engine
	upstreamURL string
	loginPaths  map[string]struct{}
}

// NewForwardedHandler proxies allowed requests to the protected application and
// counts failed logins against the source.
func NewForwardedHandler(
	logger *logrus.Logger,
	client httpx.UpstreamClient,
	engine threat.Engine,
	upstreamURL string,
	loginPaths []string,
) Handler {
	paths := make(map[string]struct{}, len(loginPaths))
	for _, p := range loginPaths {
		paths[p] = struct{}{}
	}
	return &forwardedHandler{
		logger:      logger,
		client:      client,
		engine:      engine,
		upstreamURL: strings.TrimSuffix(upstreamURL, "/"),
		loginPaths:  paths,
	}
}

func (h *forwardedHandler) Handle(c *fiber.Ctx) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	h.buildRequest(c, req)

	if err := h.client.Do(req, resp); err != nil {
		prometheus.UpstreamRequestsTotal.WithLabelValues("error").Inc()
		h.logger.WithError(err).WithField("path", c.Path()).Error("upstream request failed")
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "upstream unavailable"})
	}

	status := resp.StatusCode()
	prometheus.UpstreamRequestsTotal.WithLabelValues(statusClass(status)).Inc()
	if status == fiber.StatusUnauthorized || status == fiber.StatusForbidden {
		h.observeAuthFailure(c)
	}

	resp.Header.VisitAll(func(key, value []byte) {
		if _, hop := hopHeaders[strings.ToLower(string(key))]; hop {
			return
		}
		c.Response().Header.Add(string(key), string(value))
	})
	c.Status(status)
	return c.Send(resp.Body())
}

func (h *forwardedHandler) buildRequest(c *fiber.Ctx, req *fasthttp.Request) {
	req.SetRequestURI(h.upstreamURL + c.OriginalURL())
	req.Header.SetMethod(c.Method())
	if body := c.Body(); len(body) > 0 {
		req.SetBodyRaw(body)
	}
	c.Request().Header.VisitAll(func(key, value []byte) {
		k := string(key)
		if _, hop := hopHeaders[strings.ToLower(k)]; hop {
			return
		}
		if strings.EqualFold(k, common.ChallengeTokenHeader) {
			return
		}
		req.Header.Add(k, string(value))
	})
	if fp, ok := c.Locals(common.FingerprintContextKey).(domainThreat.Fingerprint); ok && fp.IP != "" {
		req.Header.Set(fiber.HeaderXForwardedFor, fp.IP)
	}
	if v, ok := c.Locals(common.VerdictContextKey).(domainThreat.Verdict); ok {
		req.Header.Set(common.ThreatScoreHeader, strconv.Itoa(v.Score))
	}
}

func (h *forwardedHandler) observeAuthFailure(c *fiber.Ctx) {
	if _, login := h.loginPaths[c.Path()]; !login {
		return
	}
	fp, ok := c.Locals(common.FingerprintContextKey).(domainThreat.Fingerprint)
	if !ok || fp.SourceHash == "" {
		return
	}
	if err := h.engine.RecordAuthFailure(c.UserContext(), fp.SourceHash); err != nil {
		h.logger.WithError(err).Warn("failed to record authentication failure")
	}
}

func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "invalid"
	}
	return strconv.Itoa(status/100) + "xx"
}
