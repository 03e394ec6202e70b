package request

import (
	"github.com/NeuralTrust/ThreatGate/pkg/domain/blocklist"
	"github.com/gofiber/fiber/v2"
)

const maxPageSize = 500

// BlocklistFilter reads ?active=&manual=&pending=&limit=&offset= into a filter.
func BlocklistFilter(c *fiber.Ctx) blocklist.Filter {
	filter := blocklist.Filter{
		ActiveOnly:  c.QueryBool("active", true),
		PendingOnly: c.QueryBool("pending", false),
		Limit:       Limit(c, 100),
		Offset:      c.QueryInt("offset", 0),
	}
	if raw := c.Query("manual"); raw != "" {
		manual := c.QueryBool("manual")
		filter.Manual = &manual
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return filter
}

func Limit(c *fiber.Ctx, def int) int {
	limit := c.QueryInt("limit", def)
	switch {
	case limit <= 0:
		return def
	case limit > maxPageSize:
		return maxPageSize
	}
	return limit
}
