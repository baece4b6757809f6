package middleware

import (
	"strings"

	"glowspa/api/internal/models"
)

// ClassifyDevice buckets a User-Agent into the device classes the
// permission engine narrows on. Unknown agents count as desktop.
func ClassifyDevice(userAgent string) models.DeviceClass {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet"):
		return models.DeviceTablet
	case strings.Contains(ua, "mobi") || strings.Contains(ua, "iphone") || strings.Contains(ua, "android"):
		return models.DeviceMobile
	default:
		return models.DeviceDesktop
	}
}
