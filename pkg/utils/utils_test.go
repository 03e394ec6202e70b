package utils_test

import (
	"net/http/httptest"
	"testing"

	"github.com/NeuralTrust/ThreatGate/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceHash_IsStable(t *testing.T) {
	a := utils.SourceHash("10.0.0.1")
	b := utils.SourceHash("10.0.0.1")
	c := utils.SourceHash("10.0.0.2")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 66)
	assert.Equal(t, "0x", a[:2])
}

func TestKeccak256Hex_KnownVector(t *testing.T) {
	assert.Equal(t,
		"0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470",
		utils.Keccak256Hex(""),
	)
}

func TestNormalizeIP(t *testing.T) {
	ip, ok := utils.NormalizeIP(" 192.168.1.10 ")
	assert.True(t, ok)
	assert.Equal(t, "192.168.1.10", ip)

	ip, ok = utils.NormalizeIP("::ffff:10.0.0.1")
	assert.True(t, ok)
	assert.Equal(t, "10.0.0.1", ip)

	_, ok = utils.NormalizeIP("not-an-ip")
	assert.False(t, ok)
	_, ok = utils.NormalizeIP("")
	assert.False(t, ok)
}

func TestCIDRList(t *testing.T) {
	list, err := utils.ParseCIDRs([]string{"10.0.0.0/8", "192.168.1.5", ""})
	require.NoError(t, err)
	assert.True(t, list.Contains("10.20.30.40"))
	assert.True(t, list.Contains("192.168.1.5"))
	assert.False(t, list.Contains("192.168.1.6"))
	assert.False(t, list.Contains("garbage"))

	_, err = utils.ParseCIDRs([]string{"300.0.0.0/8"})
	assert.Error(t, err)
}

func TestClientIP_PrefersForwardedFor(t *testing.T) {
	app := fiber.New()
	var got string
	app.Get("/", func(c *fiber.Ctx) error {
		got = utils.ClientIP(c, utils.DefaultIPHeaders)
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	_, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.7", got)
}

func TestUserAgentClass(t *testing.T) {
	assert.Equal(t, "none", utils.UserAgentClass(""))
	assert.Contains(t, utils.UserAgentClass("Googlebot/2.1 (+http://www.google.com/bot.html)"), "bot:")
	assert.Equal(t, utils.UserAgentDigest("curl/8.0"), utils.UserAgentDigest("curl/8.0"))
	assert.Len(t, utils.UserAgentDigest("curl/8.0"), 16)
}
