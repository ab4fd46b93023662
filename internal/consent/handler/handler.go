package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"autoscuola/internal/consent"
	"autoscuola/internal/consent/gate"
	consentModel "autoscuola/internal/consent/models"
	dErrors "autoscuola/pkg/domain-errors"
	"autoscuola/pkg/platform/httputil"
	"autoscuola/pkg/requestcontext"
)

// Handler serves the consent endpoints posted to by the cookie banner.
type Handler struct {
	gates  *consent.Factory
	logger *slog.Logger
}

// New creates a new consent Handler.
func New(gates *consent.Factory, logger *slog.Logger) *Handler {
	return &Handler{gates: gates, logger: logger}
}

// Register registers the consent routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/consent", func(r chi.Router) {
		r.Get("/", h.handleGetState)
		r.Post("/accept", h.handleAccept)
		r.Post("/decline", h.handleDecline)
		r.Post("/preferences", h.handleSavePreferences)
		r.Post("/reset", h.handleReset)
		r.Post("/reopen", h.handleReopen)
	})
}

func (h *Handler) handleGetState(w http.ResponseWriter, r *http.Request) {
	// Reading the state must not trigger cleanup or loads.
	g := gate.New(h.gates.Store(w, r), gate.WithLogger(h.logger))
	record, err := g.EvaluateOnLoad(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	httputil.WriteJSON(w, http.StatusOK, consentModel.NewStateResponse(record))
}

func (h *Handler) handleAccept(w http.ResponseWriter, r *http.Request) {
	g := h.gates.ForRequest(w, r)
	h.respond(w, r, g, g.Accept(r.Context()), "accept")
}

func (h *Handler) handleDecline(w http.ResponseWriter, r *http.Request) {
	g := h.gates.ForRequest(w, r)
	h.respond(w, r, g, g.Decline(r.Context()), "decline")
}

func (h *Handler) handleSavePreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := decodePreferences(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	g := h.gates.ForRequest(w, r)
	h.respond(w, r, g, g.SavePreferences(r.Context(), prefs), "save_preferences")
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	g := h.gates.ForRequest(w, r)
	h.respond(w, r, g, g.ResetConsent(r.Context()), "reset")
}

func (h *Handler) handleReopen(w http.ResponseWriter, r *http.Request) {
	g := h.gates.ForRequest(w, r)
	h.respond(w, r, g, g.Reopen(r.Context()), "reopen")
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, g *gate.Gate, err error, op string) {
	ctx := r.Context()
	if err != nil {
		h.logger.ErrorContext(ctx, "consent operation failed",
			"request_id", requestcontext.RequestID(ctx),
			"operation", op,
			"error", err,
		)
		if _, ok := dErrors.As(err); !ok {
			err = dErrors.Wrap(err, dErrors.CodeInternal, "consent operation failed")
		}
		httputil.WriteError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	if httputil.WantsJSON(r) {
		httputil.WriteJSON(w, http.StatusOK, consentModel.NewStateResponse(g.State()))
		return
	}
	http.Redirect(w, r, httputil.ReturnTarget(r), http.StatusSeeOther)
}

func decodePreferences(r *http.Request) (consentModel.Preferences, error) {
	if httputil.IsJSONBody(r) {
		var req consentModel.PreferencesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body")
		}
		return req.ToPreferences(), nil
	}
	if err := r.ParseForm(); err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid form body")
	}
	prefs := consentModel.Preferences{}
	for key, values := range r.PostForm {
		if key == "return_to" {
			continue
		}
		c, ok := consentModel.ParseCapability(key)
		if !ok {
			return nil, dErrors.NewValidation("unknown capability", map[string]string{key: "unknown capability"})
		}
		prefs[c] = len(values) > 0 && checked(values[len(values)-1])
	}
	return prefs, nil
}

func checked(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}
