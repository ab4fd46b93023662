// Package consent wires the consent gate to HTTP requests.
package consent

import (
	"log/slog"
	"net/http"

	"autoscuola/internal/consent/gate"
	"autoscuola/internal/consent/store"
	"autoscuola/internal/platform/config"
	"autoscuola/internal/platform/metrics"
)

// Factory builds a Gate per request, bound to the request's consent cookie.
type Factory struct {
	site    config.Site
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewFactory(site config.Site, logger *slog.Logger, m *metrics.Metrics) *Factory {
	return &Factory{site: site, logger: logger, metrics: m}
}

// Site returns the site configuration the factory was built with.
func (f *Factory) Site() config.Site { return f.site }

// Store returns the consent cookie store of r.
func (f *Factory) Store(w http.ResponseWriter, r *http.Request) *store.CookieStore {
	return store.NewCookieStore(w, r, f.site.ConsentCookieName(), f.site.SecureCookies)
}

// ForRequest returns a Gate reading and writing the consent cookie of r.
// Declining expires third-party cookies on w. Extra options (loaders,
// prompter) are applied last.
func (f *Factory) ForRequest(w http.ResponseWriter, r *http.Request, opts ...gate.Option) *gate.Gate {
	cookies := f.Store(w, r)
	base := []gate.Option{
		gate.WithTTL(f.site.ConsentTTL()),
		gate.WithCleaner(store.NewCookieCleaner(w, f.site.ThirdPartyDomains, f.logger)),
		gate.WithLogger(f.logger),
		gate.WithMetrics(f.metrics),
	}
	return gate.New(cookies, append(base, opts...)...)
}
