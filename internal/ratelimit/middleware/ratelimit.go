package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"autoscuola/internal/platform/metrics"
	"autoscuola/internal/ratelimit/models"
	dErrors "autoscuola/pkg/domain-errors"
	"autoscuola/pkg/platform/circuit"
	"autoscuola/pkg/platform/httputil"
	"autoscuola/pkg/requestcontext"
)

// BucketStore counts requests per key.
type BucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error)
}

type Middleware struct {
	store    BucketStore
	fallback BucketStore
	breaker  *circuit.Breaker
	logger   *slog.Logger
	metrics  *metrics.Metrics
	disabled bool
}

type Option func(*Middleware)

// WithDisabled disables rate limiting entirely (for local development).
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Middleware) {
		m.metrics = mt
	}
}

// WithFallback keeps limiting on a local store while the primary store is
// failing. The breaker decides when to switch and when to switch back.
func WithFallback(store BucketStore, breaker *circuit.Breaker) Option {
	return func(m *Middleware) {
		m.fallback = store
		m.breaker = breaker
		if m.breaker == nil {
			m.breaker = circuit.New("ratelimit")
		}
	}
}

func New(store BucketStore, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		store:  store,
		logger: logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// RateLimit limits requests per client IP. A store failure lets the request
// through unless a fallback store can answer instead.
func (m *Middleware) RateLimit(class models.EndpointClass, policy models.Policy) func(http.Handler) http.Handler {
	return m.RateLimitForm(class, policy, nil)
}

// RateLimitForm is RateLimit for endpoints that browsers post plain forms
// to. A rejected request that did not ask for JSON is redirected with 303 to
// redirect(r) instead of receiving the JSON error. A nil redirect behaves
// like RateLimit.
func (m *Middleware) RateLimitForm(class models.EndpointClass, policy models.Policy, redirect func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled || policy.Limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			ip := requestcontext.ClientIP(ctx)

			result, degraded, err := m.check(ctx, models.NewIPKey(class, ip), policy)
			if err != nil {
				m.logger.ErrorContext(ctx, "failed to check IP rate limit",
					"request_id", requestcontext.RequestID(ctx),
					"class", string(class),
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}
			if degraded {
				w.Header().Set("X-RateLimit-Status", "degraded")
			}

			addRateLimitHeaders(w, result)

			if !result.Allowed {
				m.metrics.IncRateLimitRejection(string(class))
				m.logger.WarnContext(ctx, "rate limit exceeded",
					"request_id", requestcontext.RequestID(ctx),
					"class", string(class),
				)
				w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
				if redirect != nil && !httputil.WantsJSON(r) {
					http.Redirect(w, r, redirect(r), http.StatusSeeOther)
					return
				}
				httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "Troppe richieste. Riprova più tardi."))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// check asks the primary store and, when a fallback is configured, routes
// through the breaker. degraded is true when the fallback answered.
func (m *Middleware) check(ctx context.Context, key string, policy models.Policy) (*models.RateLimitResult, bool, error) {
	result, err := m.store.Allow(ctx, key, policy.Limit, policy.Window)
	if m.fallback == nil {
		return result, false, err
	}

	if err != nil {
		useFallback, change := m.breaker.RecordFailure()
		if change.Opened {
			m.logger.WarnContext(ctx, "rate limit store unavailable, using in-memory fallback",
				"breaker", m.breaker.Name(),
				"error", err,
			)
		}
		if !useFallback {
			return nil, false, err
		}
	} else {
		usePrimary, change := m.breaker.RecordSuccess()
		if change.Closed {
			m.logger.InfoContext(ctx, "rate limit store recovered", "breaker", m.breaker.Name())
		}
		if usePrimary {
			return result, false, nil
		}
	}

	result, err = m.fallback.Allow(ctx, key, policy.Limit, policy.Window)
	return result, true, err
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.RateLimitResult) {
	if result == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}
