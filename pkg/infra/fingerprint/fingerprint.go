package fingerprint

import (
	"strings"

	"github.com/NeuralTrust/ThreatGate/pkg/common"
	"github.com/NeuralTrust/ThreatGate/pkg/domain/threat"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/auth/jwt"
	"github.com/NeuralTrust/ThreatGate/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

//go:generate mockery --name=Builder --dir=. --output=./mocks --filename=builder_mock.go --case=underscore --with-expecter
type Builder interface {
	MakeFingerprint(ctx *fiber.Ctx) threat.Fingerprint
}

type builder struct {
	ipHeaders []string
	sessions  jwt.Manager
}

// NewBuilder reads request identity from ctx. sessions validates bearer tokens
// issued by the protected application; nil treats every request as anonymous.
func NewBuilder(ipHeaders []string, sessions jwt.Manager) Builder {
	if len(ipHeaders) == 0 {
		ipHeaders = utils.DefaultIPHeaders
	}
	return &builder{
		ipHeaders: ipHeaders,
		sessions:  sessions,
	}
}

func (b *builder) MakeFingerprint(ctx *fiber.Ctx) threat.Fingerprint {
	return threat.Fingerprint{
		IP:              utils.ClientIP(ctx, b.ipHeaders),
		Endpoint:        ctx.Path(),
		Method:          ctx.Method(),
		UserAgent:       strings.TrimSpace(ctx.Get(fiber.HeaderUserAgent)),
		HasSession:      b.hasSession(ctx),
		HasCookies:      len(ctx.Request().Header.Peek(fiber.HeaderCookie)) > 0,
		IsAuthenticated: b.isAuthenticated(ctx),
	}
}

func (b *builder) hasSession(ctx *fiber.Ctx) bool {
	if strings.TrimSpace(ctx.Get(common.SessionIDHeader)) != "" {
		return true
	}
	return ctx.Cookies(common.SessionCookieName) != ""
}

func (b *builder) isAuthenticated(ctx *fiber.Ctx) bool {
	if b.sessions == nil {
		return false
	}
	token := bearerToken(ctx.Get(fiber.HeaderAuthorization))
	if token == "" {
		return false
	}
	return b.sessions.ValidateToken(token) == nil
}

func bearerToken(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
