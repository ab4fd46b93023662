// Package device classifies visitors by user agent.
package device

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mssola/useragent"
)

var mobileKeywords = regexp.MustCompile(`(?i)Android|webOS|iPhone|iPad|iPod|BlackBerry|IEMobile|Opera Mini`)

// IsMobile reports whether the user agent belongs to a phone or tablet, the
// devices that can follow a tel: link.
func IsMobile(userAgent string) bool {
	if strings.TrimSpace(userAgent) == "" {
		return false
	}
	if useragent.New(userAgent).Mobile() {
		return true
	}
	return mobileKeywords.MatchString(userAgent)
}

// DisplayName renders "Browser on OS" for logs.
func DisplayName(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return "Unknown Device"
	}
	ua := useragent.New(userAgent)
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
	return strings.TrimSpace(fmt.Sprintf("%s on %s", browser, os))
}
