// Package httputil holds the JSON response helpers shared by all handlers.
package httputil

import (
	"encoding/json"
	"mime"
	"net/http"
	"net/url"
	"strings"

	dErrors "autoscuola/pkg/domain-errors"
)

type errorResponse struct {
	Error       string            `json:"error"`
	Description string            `json:"error_description,omitempty"`
	Fields      map[string]string `json:"fields,omitempty"`
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into the JSON error envelope. Internal
// errors never leak their description.
func WriteError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: string(dErrors.CodeInternal)}
	status := http.StatusInternalServerError
	if de, ok := dErrors.As(err); ok {
		status = dErrors.HTTPStatus(de.Code)
		resp.Error = string(de.Code)
		if de.Code != dErrors.CodeInternal {
			resp.Description = de.Message
			resp.Fields = de.Fields
		}
	}
	WriteJSON(w, status, resp)
}

// WantsJSON reports whether the client asked for a JSON response, either via
// Accept or by sending a JSON body.
func WantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	return IsJSONBody(r)
}

// IsJSONBody reports whether the request body is declared as JSON.
func IsJSONBody(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(ct)
	return err == nil && mt == "application/json"
}

// ReturnTarget picks where a form post goes back to: a safe local return_to,
// else a same-origin Referer, else the home page.
func ReturnTarget(r *http.Request) string {
	if target := r.FormValue("return_to"); IsLocalPath(target) {
		return target
	}
	if ref, err := url.Parse(r.Referer()); err == nil && ref.Host == r.Host && IsLocalPath(ref.Path) {
		target := ref.EscapedPath()
		if ref.RawQuery != "" {
			target += "?" + ref.RawQuery
		}
		return target
	}
	return "/"
}

// IsLocalPath reports whether p is a same-origin absolute path.
func IsLocalPath(p string) bool {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return false
	}
	u, err := url.Parse(p)
	return err == nil && u.Scheme == "" && u.Host == ""
}
