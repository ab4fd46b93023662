// Package pages serves the site: HTML pages are rendered with the shared
// fragments and the visitor's consent decision applied, everything else is
// served as a static file.
package pages

import (
	"bytes"
	"context"
	"errors"
	"html"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-chi/chi/v5"

	"autoscuola/internal/consent"
	"autoscuola/internal/consent/gate"
	"autoscuola/internal/consent/models"
	"autoscuola/internal/site/banner"
	contact "autoscuola/internal/site/contact/models"
	"autoscuola/internal/site/fragments"
	"autoscuola/internal/site/mapembed"
	"autoscuola/internal/site/paths"
	"autoscuola/pkg/requestcontext"
)

const (
	capabilityAttr = "data-consent-capability"
	reopenAction   = "/consent/reopen"
	componentsDir  = "components/"
)

// Handler renders pages from a site filesystem.
type Handler struct {
	fsys      fs.FS
	gates     *consent.Factory
	fragments *fragments.Loader
	resolver  paths.Resolver
	static    http.Handler
	logger    *slog.Logger
}

func New(fsys fs.FS, gates *consent.Factory, loader *fragments.Loader, resolver paths.Resolver, logger *slog.Logger) *Handler {
	return &Handler{
		fsys:      fsys,
		gates:     gates,
		fragments: loader,
		resolver:  resolver,
		static:    http.FileServerFS(fsys),
		logger:    logger,
	}
}

// Register mounts the catch-all page route. Register it after every other
// route.
func (h *Handler) Register(r chi.Router) {
	r.Get("/*", h.handlePage)
	r.Head("/*", h.handlePage)
}

func (h *Handler) handlePage(w http.ResponseWriter, r *http.Request) {
	name, ok := pageName(r.URL.Path)
	if !ok {
		h.static.ServeHTTP(w, r)
		return
	}

	body, err := h.Render(w, r, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		h.logger.ErrorContext(r.Context(), "page render failed",
			"request_id", requestcontext.RequestID(r.Context()),
			"page", name,
			"error", err,
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	// Output depends on the consent cookie.
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Add("Vary", "Cookie")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write(body)
	}
}

// pageName maps a URL path to the HTML file to render. Non-HTML paths and
// raw fragments are left to the static file server.
func pageName(urlPath string) (string, bool) {
	clean := path.Clean("/" + urlPath)
	if strings.HasSuffix(urlPath, "/") {
		clean = path.Join(clean, "index.html")
	}
	name := strings.TrimPrefix(clean, "/")
	if path.Ext(name) != ".html" || strings.HasPrefix(name, componentsDir) {
		return "", false
	}
	return name, true
}

// Render produces the page for one visitor. Consent side effects (expired
// third-party cookies) are written to w.
func (h *Handler) Render(w http.ResponseWriter, r *http.Request, name string) ([]byte, error) {
	ctx := r.Context()
	raw, err := fs.ReadFile(h.fsys, name)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	// Failures are logged by the loader; the page renders without them.
	_ = h.fragments.Inject(ctx, doc, r.URL.Path)

	returnTo := r.URL.Path
	site := h.gates.Site()
	ui := &prompter{
		banner: banner.New(doc, banner.DefaultActions, h.resolver.Href(r.URL.Path, site.PrivacyPage), returnTo),
	}
	opts := []gate.Option{gate.WithPrompter(ui)}
	if embed, ok := mapembed.Bind(doc, site.MapEmbedURL, reopenAction, returnTo); ok {
		ui.maps = embed
		opts = append(opts, gate.WithLoader(models.CapabilityMaps, embed))
	}

	g := h.gates.ForRequest(w, r, opts...)
	if _, err := g.EvaluateOnLoad(ctx); err != nil {
		h.logger.WarnContext(ctx, "capability load failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
	h.requestCapabilities(ctx, doc, g)
	h.bindRatings(ctx, doc)
	contactNotice(doc, r.URL.Query().Get("contact"))

	out, err := doc.Html()
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

func (h *Handler) requestCapabilities(ctx context.Context, doc *goquery.Document, g *gate.Gate) {
	seen := make(map[models.Capability]bool)
	doc.Find("[" + capabilityAttr + "]").Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Attr(capabilityAttr)
		c, ok := models.ParseCapability(strings.TrimSpace(name))
		if !ok {
			h.logger.WarnContext(ctx, "unknown capability in page",
				"request_id", requestcontext.RequestID(ctx),
				"capability", name,
			)
			return
		}
		if seen[c] {
			return
		}
		seen[c] = true
		if err := g.RequestCapability(ctx, c); err != nil {
			h.logger.WarnContext(ctx, "capability request failed",
				"request_id", requestcontext.RequestID(ctx),
				"capability", name,
				"error", err,
			)
		}
	})
}

// contactNotice shows the outcome of a contact form post above the form.
func contactNotice(doc *goquery.Document, notice string) {
	msg, success, ok := contact.NoticeMessage(notice)
	if !ok {
		return
	}
	form := doc.Find(".contact__form").First()
	if form.Length() == 0 {
		return
	}
	class := "form-message form-message--error"
	if success {
		class = "form-message form-message--success"
	}
	form.Find(".form-message").Remove()
	form.PrependHtml(`<div class="` + class + `" role="status">` + html.EscapeString(msg) + `</div>`)
}

// prompter routes gate prompts to the banner and the map placeholder.
type prompter struct {
	banner *banner.Banner
	maps   *mapembed.Embed
}

func (p *prompter) ShowPrompt(ctx context.Context) { p.banner.ShowPrompt(ctx) }
func (p *prompter) HidePrompt(ctx context.Context) { p.banner.HidePrompt(ctx) }

func (p *prompter) ShowConsentRequired(ctx context.Context, c models.Capability) {
	if c == models.CapabilityMaps && p.maps != nil {
		p.maps.ShowConsentRequired(ctx, c)
	}
}
