// Package store persists the consent record. The production store is the
// visitor's consent cookie; MemoryStore backs tests and offline rendering.
package store

import (
	"context"
	"net/http"
	"strings"
	"time"

	"autoscuola/pkg/requestcontext"
)

// CookieStore reads and writes the consent cookie of a single request.
type CookieStore struct {
	w      http.ResponseWriter
	r      *http.Request
	name   string
	secure bool

	// pending holds a value written during this request so later reads see it.
	pending *string
}

// NewCookieStore binds a store to one request/response pair.
func NewCookieStore(w http.ResponseWriter, r *http.Request, name string, secure bool) *CookieStore {
	return &CookieStore{w: w, r: r, name: name, secure: secure}
}

// Get returns the cookie value and whether the cookie is present.
func (s *CookieStore) Get(_ context.Context) (string, bool, error) {
	if s.pending != nil {
		return *s.pending, *s.pending != "", nil
	}
	if c, err := s.r.Cookie(s.name); err == nil {
		return c.Value, true, nil
	}
	// net/http drops values it considers invalid (raw JSON written by older
	// clients, for instance). Those still have to reach the decoder so they
	// fail closed instead of reading as absent.
	if v, ok := rawCookie(s.r.Header.Values("Cookie"), s.name); ok {
		return v, true, nil
	}
	return "", false, nil
}

// Set writes the cookie with a fresh expiry.
func (s *CookieStore) Set(ctx context.Context, value string, ttl time.Duration) error {
	http.SetCookie(s.w, &http.Cookie{
		Name:     s.name,
		Value:    value,
		Path:     "/",
		Expires:  requestcontext.Now(ctx).Add(ttl).UTC(),
		MaxAge:   int(ttl / time.Second),
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	s.pending = &value
	return nil
}

// Delete expires the cookie.
func (s *CookieStore) Delete(_ context.Context) error {
	http.SetCookie(s.w, expired(s.name, ""))
	empty := ""
	s.pending = &empty
	return nil
}

func expired(name, domain string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   domain,
		Expires:  time.Unix(1, 0).UTC(),
		MaxAge:   -1,
		SameSite: http.SameSiteLaxMode,
	}
}

func rawCookie(lines []string, name string) (string, bool) {
	for _, line := range lines {
		for part := range strings.SplitSeq(line, ";") {
			k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
			if ok && k == name {
				return v, true
			}
		}
	}
	return "", false
}
