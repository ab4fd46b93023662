package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the site server. Every method is
// safe on a nil receiver so components can run without metrics in tests.
type Metrics struct {
	ConsentDecisions    *prometheus.CounterVec
	ConsentEvaluations  *prometheus.CounterVec
	PromptsShown        prometheus.Counter
	CapabilityLoads     *prometheus.CounterVec
	CapabilityDenied    *prometheus.CounterVec
	FragmentFailures    *prometheus.CounterVec
	ContactSubmissions  *prometheus.CounterVec
	RateLimitRejections *prometheus.CounterVec
	RequestLatency      *prometheus.HistogramVec
}

// New creates and registers all metrics on the default registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the metrics on reg. Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ConsentDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "autoscuola_consent_decisions_total",
			Help: "Consent decisions written, by resulting status",
		}, []string{"status"}),
		ConsentEvaluations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "autoscuola_consent_evaluations_total",
			Help: "Consent records evaluated on page load, by decoded state",
		}, []string{"state"}),
		PromptsShown: f.NewCounter(prometheus.CounterOpts{
			Name: "autoscuola_consent_prompts_shown_total",
			Help: "Times the consent banner was rendered",
		}),
		CapabilityLoads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "autoscuola_capability_loads_total",
			Help: "Gated third-party resources loaded, by capability",
		}, []string{"capability"}),
		CapabilityDenied: f.NewCounterVec(prometheus.CounterOpts{
			Name: "autoscuola_capability_denied_total",
			Help: "Gated requests answered with a consent-required affordance",
		}, []string{"capability"}),
		FragmentFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "autoscuola_fragment_failures_total",
			Help: "Shared HTML fragments that could not be injected",
		}, []string{"fragment"}),
		ContactSubmissions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "autoscuola_contact_submissions_total",
			Help: "Contact form submissions, by outcome",
		}, []string{"outcome"}),
		RateLimitRejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "autoscuola_ratelimit_rejections_total",
			Help: "Requests rejected by the rate limiter, by endpoint class",
		}, []string{"class"}),
		RequestLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "autoscuola_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "route", "status"}),
	}
}

func (m *Metrics) IncConsentDecision(status string) {
	if m == nil {
		return
	}
	m.ConsentDecisions.WithLabelValues(status).Inc()
}

func (m *Metrics) IncConsentEvaluation(state string) {
	if m == nil {
		return
	}
	m.ConsentEvaluations.WithLabelValues(state).Inc()
}

func (m *Metrics) IncPromptShown() {
	if m == nil {
		return
	}
	m.PromptsShown.Inc()
}

func (m *Metrics) IncCapabilityLoad(capability string) {
	if m == nil {
		return
	}
	m.CapabilityLoads.WithLabelValues(capability).Inc()
}

func (m *Metrics) IncCapabilityDenied(capability string) {
	if m == nil {
		return
	}
	m.CapabilityDenied.WithLabelValues(capability).Inc()
}

func (m *Metrics) IncFragmentFailure(fragment string) {
	if m == nil {
		return
	}
	m.FragmentFailures.WithLabelValues(fragment).Inc()
}

func (m *Metrics) IncContactSubmission(outcome string) {
	if m == nil {
		return
	}
	m.ContactSubmissions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncRateLimitRejection(class string) {
	if m == nil {
		return
	}
	m.RateLimitRejections.WithLabelValues(class).Inc()
}

func (m *Metrics) ObserveRequest(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestLatency.WithLabelValues(method, route, status).Observe(d.Seconds())
}
