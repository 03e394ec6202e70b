package utils

import (
	"net"
	"net/netip"
	"strings"

	"github.com/gofiber/fiber/v2"
)

var DefaultIPHeaders = []string{
	"X-Forwarded-For",
	"X-Real-IP",
	"X-Original-Forwarded-For",
	"True-Client-IP",
	"CF-Connecting-IP",
}

// ClientIP returns the first address from the trusted headers, falling back to the
// socket address. The result is not validated.
func ClientIP(ctx *fiber.Ctx, headers []string) string {
	for _, header := range headers {
		if value := ctx.Get(header); value != "" {
			ips := strings.Split(value, ",")
			if ip := strings.TrimSpace(ips[0]); ip != "" {
				return ip
			}
		}
	}
	return strings.TrimSpace(ctx.IP())
}

// NormalizeIP validates ip and returns its canonical text form.
func NormalizeIP(ip string) (string, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return "", false
	}
	return addr.Unmap().String(), true
}

type CIDRList []*net.IPNet

func ParseCIDRs(entries []string) (CIDRList, error) {
	list := make(CIDRList, 0, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if !strings.Contains(e, "/") {
			if strings.Contains(e, ":") {
				e += "/128"
			} else {
				e += "/32"
			}
		}
		_, network, err := net.ParseCIDR(e)
		if err != nil {
			return nil, err
		}
		list = append(list, network)
	}
	return list, nil
}

func (l CIDRList) Contains(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, n := range l {
		if n.Contains(parsed) {
			return true
		}
	}
	return false
}
