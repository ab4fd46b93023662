package store

import (
	"context"
	"log/slog"
	"net/http"

	pstrings "autoscuola/pkg/platform/strings"
	"autoscuola/pkg/requestcontext"
)

// ThirdPartyCookieNames are the cookies the map embed is known to set.
var ThirdPartyCookieNames = []string{"NID", "AEC", "1P_JAR", "CONSENT", "SOCS"}

// CookieCleaner writes expired Set-Cookie headers for third-party cookies on
// an allow-list of domains. Browsers ignore writes for domains other than the
// serving one, so the outcome is never checked.
type CookieCleaner struct {
	w       http.ResponseWriter
	domains []string
	names   []string
	logger  *slog.Logger
}

// NewCookieCleaner normalizes domains (leading dot, lower case, deduplicated).
func NewCookieCleaner(w http.ResponseWriter, domains []string, logger *slog.Logger) *CookieCleaner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &CookieCleaner{
		w:       w,
		domains: pstrings.CookieDomains(domains),
		names:   ThirdPartyCookieNames,
		logger:  logger,
	}
}

func (c *CookieCleaner) RemoveThirdPartyCookies(ctx context.Context) {
	for _, domain := range c.domains {
		for _, name := range c.names {
			http.SetCookie(c.w, expired(name, domain))
		}
		c.logger.DebugContext(ctx, "expired third-party cookies",
			"request_id", requestcontext.RequestID(ctx),
			"domain", domain,
		)
	}
}
