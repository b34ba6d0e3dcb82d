// Package device turns a User-Agent header into a short label for
// security notifications.
package device

import (
	"fmt"
	"strings"

	"github.com/mssola/useragent"
)

const unknownDevice = "Unknown Device"

// ParseUserAgent returns a "<browser> on <os>" label, or "Unknown Device"
// when the header is empty.
func ParseUserAgent(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return unknownDevice
	}

	ua := useragent.New(header)
	browser, _ := ua.Browser()
	if browser == "" {
		browser = "Unknown Browser"
	}
	os := ua.OS()
	if os == "" {
		os = ua.Platform()
	}
	if os == "" {
		os = "Unknown OS"
	}
	if ua.Mobile() && !strings.Contains(os, ua.Platform()) {
		os = ua.Platform() + " " + os
	}
	return fmt.Sprintf("%s on %s", browser, os)
}
