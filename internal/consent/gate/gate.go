// Package gate implements the consent state machine that decides whether
// third-party capabilities (the map embed) may load for a visitor.
//
// A Gate is built per visitor interaction with explicit collaborators: the
// Store persisting the decision, a Loader per capability, the Prompter that
// renders the banner and inline consent-required controls, and a Cleaner for
// best-effort third-party cookie removal. A Gate is not safe for concurrent
// use; the server creates one per request.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"autoscuola/internal/consent/models"
	"autoscuola/internal/platform/metrics"
	dErrors "autoscuola/pkg/domain-errors"
	"autoscuola/pkg/requestcontext"
)

// DefaultTTL is the lifetime of a freshly written decision.
const DefaultTTL = 365 * 24 * time.Hour

// Store persists the single opaque consent value.
type Store interface {
	Get(ctx context.Context) (value string, ok bool, err error)
	Set(ctx context.Context, value string, ttl time.Duration) error
	Delete(ctx context.Context) error
}

// Loader inserts a gated resource. Load is only called once per Gate.
type Loader interface {
	Load(ctx context.Context) error
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context) error

func (f LoaderFunc) Load(ctx context.Context) error { return f(ctx) }

// Prompter renders the decision UI.
type Prompter interface {
	ShowPrompt(ctx context.Context)
	HidePrompt(ctx context.Context)
	// ShowConsentRequired offers to reopen the decision for a denied capability.
	ShowConsentRequired(ctx context.Context, capability models.Capability)
}

// Cleaner expires third-party cookies after a decline. Browsers do not let a
// first party reliably delete cross-site cookies, so this is advisory.
type Cleaner interface {
	RemoveThirdPartyCookies(ctx context.Context)
}

type Gate struct {
	store    Store
	ttl      time.Duration
	loaders  map[models.Capability]Loader
	prompter Prompter
	cleaner  Cleaner
	logger   *slog.Logger
	metrics  *metrics.Metrics

	record        models.Record
	evaluated     bool
	promptVisible bool
	loaded        map[models.Capability]bool
	pending       []models.Capability
}

// Option configures a Gate.
type Option func(*Gate)

// WithLoader registers the loader for a capability.
func WithLoader(c models.Capability, l Loader) Option {
	return func(g *Gate) {
		g.loaders[c] = l
	}
}

func WithPrompter(p Prompter) Option {
	return func(g *Gate) {
		g.prompter = p
	}
}

func WithCleaner(c Cleaner) Option {
	return func(g *Gate) {
		g.cleaner = c
	}
}

func WithTTL(ttl time.Duration) Option {
	return func(g *Gate) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gate) {
		g.metrics = m
	}
}

// New creates a Gate in the Unset state. Call EvaluateOnLoad to read the
// persisted decision.
func New(store Store, opts ...Option) *Gate {
	g := &Gate{
		store:    store,
		ttl:      DefaultTTL,
		loaders:  make(map[models.Capability]Loader),
		prompter: noopPrompter{},
		cleaner:  noopCleaner{},
		logger:   slog.New(slog.DiscardHandler),
		loaded:   make(map[models.Capability]bool),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// State returns the decision currently in force.
func (g *Gate) State() models.Record { return g.record }

// Loaded reports whether capability c was loaded by this Gate.
func (g *Gate) Loaded(c models.Capability) bool { return g.loaded[c] }

// PromptVisible reports whether the decision prompt is currently shown.
func (g *Gate) PromptVisible() bool { return g.promptVisible }

// Pending returns capabilities requested before a decision existed.
func (g *Gate) Pending() []models.Capability {
	return append([]models.Capability(nil), g.pending...)
}

// EvaluateOnLoad reads the persisted decision and applies it: Unset shows
// the prompt, AcceptedAll loads everything, DeclinedAll suppresses everything
// and cleans up, Custom follows each preference. A value that cannot be read
// or decoded is handled as DeclinedAll; only loader failures are returned.
func (g *Gate) EvaluateOnLoad(ctx context.Context) (models.Record, error) {
	g.record = g.readRecord(ctx)
	g.evaluated = true
	return g.record, g.apply(ctx)
}

func (g *Gate) readRecord(ctx context.Context) models.Record {
	requestID := requestcontext.RequestID(ctx)

	value, ok, err := g.store.Get(ctx)
	if err != nil {
		g.logger.WarnContext(ctx, "consent store unreadable, failing closed",
			"request_id", requestID,
			"error", err,
		)
		g.metrics.IncConsentEvaluation("unreadable")
		return models.DeclinedAll()
	}

	record, err := models.Decode(value, ok)
	if err != nil {
		g.logger.WarnContext(ctx, "malformed consent record, failing closed",
			"request_id", requestID,
			"error", err,
		)
		g.metrics.IncConsentEvaluation("parse_failed")
		return record
	}
	g.metrics.IncConsentEvaluation(record.Kind().String())
	return record
}

// Accept records AcceptedAll and loads every capability.
func (g *Gate) Accept(ctx context.Context) error {
	return g.decide(ctx, models.AcceptedAll())
}

// Decline records DeclinedAll, suppresses every capability and runs the
// best-effort third-party cookie cleanup.
func (g *Gate) Decline(ctx context.Context) error {
	return g.decide(ctx, models.DeclinedAll())
}

// SavePreferences records a Custom decision. Unknown capability names are
// rejected before anything is written.
func (g *Gate) SavePreferences(ctx context.Context, prefs models.Preferences) error {
	for c := range prefs {
		if _, ok := models.ParseCapability(string(c)); !ok {
			return dErrors.NewValidation("unknown capability", map[string]string{string(c): "unknown capability"})
		}
	}
	return g.decide(ctx, models.Custom(prefs))
}

// RequestCapability asks for capability c. A permitted capability loads now
// (once). Without a decision the request is queued and the prompt shown; it
// fires when a permitting decision arrives. A denied capability gets the
// inline consent-required control and never loads.
func (g *Gate) RequestCapability(ctx context.Context, c models.Capability) error {
	if _, ok := models.ParseCapability(string(c)); !ok {
		return dErrors.NewValidation(fmt.Sprintf("unknown capability %q", c), map[string]string{"capability": "unknown capability"})
	}
	if !g.evaluated {
		if _, err := g.EvaluateOnLoad(ctx); err != nil {
			return err
		}
	}

	switch {
	case g.record.IsUnset():
		g.enqueue(c)
		g.showPrompt(ctx)
		return nil
	case g.record.Permits(c):
		return g.load(ctx, c)
	default:
		g.deny(ctx, c)
		return nil
	}
}

// ResetConsent deletes the persisted decision. The next evaluation prompts.
func (g *Gate) ResetConsent(ctx context.Context) error {
	if err := g.store.Delete(ctx); err != nil {
		return fmt.Errorf("reset consent: %w", err)
	}
	g.record = models.Unset()
	g.evaluated = true
	g.metrics.IncConsentDecision("reset")
	g.logger.InfoContext(ctx, "consent reset",
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil
}

// Reopen resets the decision and shows the prompt right away, as offered by
// the consent-required control.
func (g *Gate) Reopen(ctx context.Context) error {
	if err := g.ResetConsent(ctx); err != nil {
		return err
	}
	g.showPrompt(ctx)
	return nil
}

func (g *Gate) decide(ctx context.Context, record models.Record) error {
	value, err := models.Encode(record)
	if err != nil {
		return err
	}
	if err := g.store.Set(ctx, value, g.ttl); err != nil {
		return fmt.Errorf("persist consent: %w", err)
	}

	g.record = record
	g.evaluated = true
	g.metrics.IncConsentDecision(record.Kind().String())
	g.logger.InfoContext(ctx, "consent decision recorded",
		"request_id", requestcontext.RequestID(ctx),
		"status", record.Kind().String(),
	)

	if g.promptVisible {
		g.prompter.HidePrompt(ctx)
		g.promptVisible = false
	}
	return g.apply(ctx)
}

// apply brings loaded resources and queued requests in line with g.record.
func (g *Gate) apply(ctx context.Context) error {
	switch g.record.Kind() {
	case models.KindUnset:
		g.showPrompt(ctx)
		return nil
	case models.KindDeclinedAll:
		g.cleaner.RemoveThirdPartyCookies(ctx)
	}

	var errs []error
	for c := range g.loaders {
		if g.record.Permits(c) {
			if err := g.load(ctx, c); err != nil {
				errs = append(errs, err)
			}
		}
	}

	pending := g.pending
	g.pending = nil
	for _, c := range pending {
		if g.record.Permits(c) {
			if err := g.load(ctx, c); err != nil {
				errs = append(errs, err)
			}
			continue
		}
		g.deny(ctx, c)
	}
	return errors.Join(errs...)
}

func (g *Gate) load(ctx context.Context, c models.Capability) error {
	if g.loaded[c] {
		return nil
	}
	loader, ok := g.loaders[c]
	if !ok {
		return nil
	}
	if err := loader.Load(ctx); err != nil {
		return fmt.Errorf("load %s: %w", c, err)
	}
	g.loaded[c] = true
	g.metrics.IncCapabilityLoad(string(c))
	return nil
}

func (g *Gate) enqueue(c models.Capability) {
	for _, p := range g.pending {
		if p == c {
			return
		}
	}
	g.pending = append(g.pending, c)
}

func (g *Gate) deny(ctx context.Context, c models.Capability) {
	g.metrics.IncCapabilityDenied(string(c))
	g.prompter.ShowConsentRequired(ctx, c)
}

func (g *Gate) showPrompt(ctx context.Context) {
	if g.promptVisible {
		return
	}
	g.promptVisible = true
	g.metrics.IncPromptShown()
	g.prompter.ShowPrompt(ctx)
}

type noopPrompter struct{}

func (noopPrompter) ShowPrompt(context.Context)                             {}
func (noopPrompter) HidePrompt(context.Context)                             {}
func (noopPrompter) ShowConsentRequired(context.Context, models.Capability) {}

type noopCleaner struct{}

func (noopCleaner) RemoveThirdPartyCookies(context.Context) {}
