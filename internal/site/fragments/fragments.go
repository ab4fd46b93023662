// Package fragments injects the shared navbar and footer markup into pages.
package fragments

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"autoscuola/internal/platform/metrics"
	"autoscuola/internal/site/paths"
	"autoscuola/pkg/requestcontext"
)

var tracer = otel.Tracer("site/fragments")

// Fragment maps a placeholder element id to a file under the site root.
type Fragment struct {
	Placeholder string
	Path        string
}

// Defaults are the fragments every page may carry.
var Defaults = []Fragment{
	{Placeholder: "navbar-placeholder", Path: "components/navbar.html"},
	{Placeholder: "footer-placeholder", Path: "components/footer.html"},
}

// ErrFragmentFetch wraps any failure to read or parse a fragment.
var ErrFragmentFetch = errors.New("fragment fetch failed")

type Loader struct {
	fsys      fs.FS
	resolver  paths.Resolver
	fragments []Fragment
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Loader)

// WithFragments replaces the default fragment list.
func WithFragments(f ...Fragment) Option {
	return func(l *Loader) {
		l.fragments = f
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Loader) {
		l.metrics = m
	}
}

func New(fsys fs.FS, resolver paths.Resolver, opts ...Option) *Loader {
	l := &Loader{
		fsys:      fsys,
		resolver:  resolver,
		fragments: Defaults,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

type result struct {
	html string
	err  error
}

// Inject fills every placeholder present in doc. Fragments are read in
// parallel and written into the document only after all reads finished. A
// failed fragment leaves its placeholder empty; the failures are logged and
// returned joined, and the rest of the page is unaffected.
func (l *Loader) Inject(ctx context.Context, doc *goquery.Document, urlPath string) error {
	ctx, span := tracer.Start(ctx, "Inject")
	defer span.End()
	span.SetAttributes(attribute.String("page", urlPath))

	targets := make([]*goquery.Selection, len(l.fragments))
	results := make([]result, len(l.fragments))

	var g errgroup.Group
	for i, f := range l.fragments {
		sel := doc.Find("#" + f.Placeholder)
		if sel.Length() == 0 {
			continue
		}
		targets[i] = sel
		g.Go(func() error {
			html, err := l.render(ctx, f, urlPath)
			results[i] = result{html: html, err: err}
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for i, f := range l.fragments {
		if targets[i] == nil {
			continue
		}
		if err := results[i].err; err != nil {
			l.logger.ErrorContext(ctx, "fragment load failed",
				"request_id", requestcontext.RequestID(ctx),
				"fragment", f.Path,
				"error", err,
			)
			l.metrics.IncFragmentFailure(f.Path)
			errs = append(errs, err)
			continue
		}
		targets[i].SetHtml(results[i].html)
	}

	err := errors.Join(errs...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (l *Loader) render(ctx context.Context, f Fragment, urlPath string) (string, error) {
	_, span := tracer.Start(ctx, "render")
	defer span.End()
	span.SetAttributes(attribute.String("fragment", f.Path))

	raw, err := fs.ReadFile(l.fsys, f.Path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrFragmentFetch, f.Path, err)
	}
	frag, err := goquery.NewDocumentFromReader(strings.NewReader(string(raw)))
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrFragmentFetch, f.Path, err)
	}

	frag.Find("[href], [src], [action]").Each(func(_ int, s *goquery.Selection) {
		for _, attr := range []string{"href", "src", "action"} {
			if v, ok := s.Attr(attr); ok {
				s.SetAttr(attr, l.resolver.Rewrite(urlPath, v))
			}
		}
	})
	return frag.Find("body").Html()
}
