package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"autoscuola/internal/site/contact/models"
	"autoscuola/internal/site/device"
	"autoscuola/internal/site/paths"
	dErrors "autoscuola/pkg/domain-errors"
	"autoscuola/pkg/platform/httputil"
	"autoscuola/pkg/requestcontext"
)

// Service defines the contact operations used by the handler.
type Service interface {
	Submit(ctx context.Context, form models.Form) (*models.Submission, error)
}

type Handler struct {
	service  Service
	phone    string
	resolver paths.Resolver
	logger   *slog.Logger
}

func New(service Service, phone string, resolver paths.Resolver, logger *slog.Logger) *Handler {
	return &Handler{service: service, phone: phone, resolver: resolver, logger: logger}
}

// Register mounts the contact routes. limit wraps the submission endpoint.
func (h *Handler) Register(r chi.Router, limit func(http.Handler) http.Handler) {
	r.With(limit).Post("/contact", h.handleSubmit)
	r.Get("/contact-action", h.handleContactAction)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	form, err := decodeForm(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	sub, err := h.service.Submit(ctx, form)
	if err != nil {
		if !dErrors.Is(err, dErrors.CodeValidation) {
			h.logger.ErrorContext(ctx, "contact submission failed",
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
		}
		if httputil.WantsJSON(r) {
			httputil.WriteError(w, err)
			return
		}
		notice := models.NoticeFailed
		if dErrors.Is(err, dErrors.CodeValidation) {
			notice = models.NoticeInvalid
		}
		http.Redirect(w, r, withNotice(httputil.ReturnTarget(r), notice), http.StatusSeeOther)
		return
	}

	if httputil.WantsJSON(r) {
		httputil.WriteJSON(w, http.StatusCreated, models.SubmitResponse{
			ID:        sub.ID.String(),
			Reference: sub.Reference,
			Message:   models.MsgSent,
		})
		return
	}
	http.Redirect(w, r, withNotice(httputil.ReturnTarget(r), models.NoticeSent), http.StatusSeeOther)
}

// handleContactAction sends phones to the dialer and desktops to the contact
// section of the home page.
func (h *Handler) handleContactAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ua := requestcontext.UserAgent(ctx)
	if ua == "" {
		ua = r.UserAgent()
	}

	if device.IsMobile(ua) {
		http.Redirect(w, r, "tel:"+strings.Join(strings.Fields(h.phone), ""), http.StatusFound)
		return
	}

	from := r.URL.Query().Get("from")
	if !httputil.IsLocalPath(from) {
		from = "/"
	}
	h.logger.DebugContext(ctx, "contact action on desktop",
		"request_id", requestcontext.RequestID(ctx),
		"device", device.DisplayName(ua),
	)
	http.Redirect(w, r, h.homeContact(from), http.StatusFound)
}

// homeContact resolves the page-relative home link against the page itself.
func (h *Handler) homeContact(from string) string {
	page, err := url.Parse(from)
	if err != nil {
		return "/index.html#contact"
	}
	rel, err := url.Parse(h.resolver.Href(page.Path, "index.html#contact"))
	if err != nil {
		return "/index.html#contact"
	}
	return page.ResolveReference(rel).String()
}

// FailedNotice is where a rejected form post goes back to: the posting page
// with the failure notice above the form.
func FailedNotice(r *http.Request) string {
	return withNotice(httputil.ReturnTarget(r), models.NoticeFailed)
}

func decodeForm(r *http.Request) (models.Form, error) {
	if httputil.IsJSONBody(r) {
		var form models.Form
		if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
			return models.Form{}, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body")
		}
		return form, nil
	}
	if err := r.ParseForm(); err != nil {
		return models.Form{}, dErrors.New(dErrors.CodeBadRequest, "invalid form body")
	}
	return models.FormFromValues(r.PostForm), nil
}

func withNotice(target, notice string) string {
	u, err := url.Parse(target)
	if err != nil {
		return "/?contact=" + notice + "#contact"
	}
	q := u.Query()
	q.Set("contact", notice)
	u.RawQuery = q.Encode()
	u.Fragment = "contact"
	return u.String()
}
