package utils

import (
	"strings"

	ua "github.com/mssola/user_agent"

	"github.com/rwandabus/booking-api/internal/models"
)

// CaptureDeviceInfo parses a User-Agent string and the client IP into the
// device metadata stored alongside a booking
func CaptureDeviceInfo(userAgent, clientIP string) models.DeviceInfo {
	info := models.DeviceInfo{
		"ip":         clientIP,
		"user_agent": userAgent,
	}

	if userAgent == "" {
		info["device_type"] = "unknown"
		return info
	}

	parser := ua.New(userAgent)
	info["device_type"] = getDeviceType(parser)
	info["os"] = getOS(parser)
	info["browser"] = getBrowser(parser)
	info["platform"] = getPlatform(parser)
	if parser.Bot() {
		info["is_bot"] = true
	}

	return info
}

// getDeviceType determines if the device is mobile, tablet, or desktop
func getDeviceType(parser *ua.UserAgent) string {
	if parser.Mobile() {
		if isTablet(parser.UA()) {
			return "tablet"
		}
		return "mobile"
	}
	return "desktop"
}

// isTablet checks if the user agent indicates a tablet device
func isTablet(userAgent string) bool {
	userAgentLower := strings.ToLower(userAgent)

	tabletIndicators := []string{
		"ipad",
		"tablet",
		"kindle",
		"nexus 7",
		"nexus 9",
		"nexus 10",
		"sm-t", // Samsung tablets
	}

	for _, indicator := range tabletIndicators {
		if strings.Contains(userAgentLower, indicator) {
			return true
		}
	}

	return false
}

// getOS extracts operating system name and version
func getOS(parser *ua.UserAgent) string {
	osInfo := parser.OSInfo()
	if osInfo.Name == "" {
		return "Unknown"
	}
	if osInfo.Version != "" {
		return osInfo.Name + " " + osInfo.Version
	}
	return osInfo.Name
}

// getBrowser extracts browser name
func getBrowser(parser *ua.UserAgent) string {
	name, _ := parser.Browser()
	if name == "" {
		return "Unknown"
	}
	return name
}

// getPlatform determines the platform (android, ios, windows, etc.)
func getPlatform(parser *ua.UserAgent) string {
	osName := strings.ToLower(parser.OSInfo().Name)

	platformMap := map[string]string{
		"android":   "android",
		"ios":       "ios",
		"iphone os": "ios",
		"windows":   "windows",
		"mac os x":  "mac",
		"macos":     "mac",
		"linux":     "linux",
		"ubuntu":    "linux",
	}

	for key, platform := range platformMap {
		if strings.Contains(osName, key) {
			return platform
		}
	}

	return "unknown"
}
