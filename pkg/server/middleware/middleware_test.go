package middleware

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tagMiddleware string

func (m tagMiddleware) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Append("X-Chain", string(m))
		return c.Next()
	}
}

func TestTransport_ChainKeepsOrder(t *testing.T) {
	transport := NewTransport(tagMiddleware("first"), nil, tagMiddleware("second"))

	app := fiber.New()
	app.Use(transport.Chain(tagMiddleware("extra"))...)
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, "first, second, extra", strings.Join(resp.Header.Values("X-Chain"), ", "))
	assert.Len(t, transport.Chain(), 2)
}
