package utils

import (
	"fmt"
	"strings"

	"github.com/avct/uasurfer"
)

type UserAgentInfo struct {
	Device  string
	OS      string
	Browser string
	Bot     bool
}

func ParseUserAgent(uaString string) *UserAgentInfo {
	ua := uasurfer.Parse(uaString)

	device := "unknown"
	switch ua.DeviceType {
	case uasurfer.DeviceComputer:
		device = "computer"
	case uasurfer.DeviceTablet:
		device = "tablet"
	case uasurfer.DevicePhone:
		device = "phone"
	case uasurfer.DeviceConsole:
		device = "console"
	case uasurfer.DeviceWearable:
		device = "wearable"
	case uasurfer.DeviceTV:
		device = "tv"
	}

	return &UserAgentInfo{
		Device:  device,
		OS:      strings.ToLower(strings.TrimPrefix(ua.OS.Name.String(), "OS")),
		Browser: strings.ToLower(strings.TrimPrefix(ua.Browser.Name.String(), "Browser")),
		Bot:     ua.IsBot(),
	}
}

// UserAgentClass buckets a user-agent into a coarse family such as
// "bot:googlebot", "browser:chrome/windows" or "tool:unknown".
func UserAgentClass(uaString string) string {
	if strings.TrimSpace(uaString) == "" {
		return "none"
	}
	info := ParseUserAgent(uaString)
	if info.Bot {
		return fmt.Sprintf("bot:%s", info.Browser)
	}
	if info.Device == "unknown" {
		return fmt.Sprintf("tool:%s", info.Browser)
	}
	return fmt.Sprintf("browser:%s/%s", info.Browser, info.OS)
}

// UserAgentDigest identifies an exact user-agent string without storing it.
func UserAgentDigest(uaString string) string {
	return ShortDigest(uaString)
}
