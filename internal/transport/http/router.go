// Package httptransport assembles the site's HTTP surface.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	consenthandler "autoscuola/internal/consent/handler"
	"autoscuola/internal/platform/metrics"
	"autoscuola/internal/platform/middleware"
	ratelimit "autoscuola/internal/ratelimit/middleware"
	rlmodels "autoscuola/internal/ratelimit/models"
	contacthandler "autoscuola/internal/site/contact/handler"
	"autoscuola/internal/site/pages"
	"autoscuola/pkg/platform/httputil"
)

// HealthCheck reports whether a backing service is reachable.
type HealthCheck func(ctx context.Context) error

// Dependencies are the handlers and infrastructure mounted by NewRouter.
type Dependencies struct {
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer

	Consent *consenthandler.Handler
	Contact *contacthandler.Handler
	Pages   *pages.Handler

	RateLimit     *ratelimit.Middleware
	ContactPolicy rlmodels.Policy
	// TrustProxy lets forwarding headers name the client IP.
	TrustProxy bool

	// Checks are run by /healthz, keyed by a name reported on failure.
	Checks map[string]HealthCheck
}

// NewRouter wires every endpoint. Pages are mounted last because they own
// the catch-all route.
func NewRouter(d Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.ClientMetadata(d.TrustProxy))
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(d.Logger, d.Metrics))

	r.Get("/healthz", healthz(d.Checks))
	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	d.Consent.Register(r)

	limit := func(next http.Handler) http.Handler { return next }
	if d.RateLimit != nil {
		limit = d.RateLimit.RateLimitForm(rlmodels.ClassContact, d.ContactPolicy, contacthandler.FailedNotice)
	}
	d.Contact.Register(r, limit)

	d.Pages.Register(r)
	return r
}

type healthResponse struct {
	Status string   `json:"status"`
	Failed []string `json:"failed,omitempty"`
}

func healthz(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var failed []string
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				failed = append(failed, name)
			}
		}
		if len(failed) > 0 {
			sort.Strings(failed)
			httputil.WriteJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "degraded", Failed: failed})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	}
}
