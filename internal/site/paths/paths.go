// Package paths rewrites the relative links of shared fragments for the page
// they are injected into.
//
// Fragments are authored as if included from a first-level subfolder, so
// their local links start with "../". A page at depth 0 (/index.html) needs
// "./", a page at depth 2 needs "../../".
package paths

import (
	"path"
	"strings"
)

const authoredPrefix = "../"

// Resolver computes page depth relative to the URL path the site is served at.
type Resolver struct {
	base string
}

// NewResolver returns a resolver for a site mounted at base ("/" when empty).
func NewResolver(base string) Resolver {
	base = "/" + strings.Trim(base, "/")
	if base != "/" {
		base += "/"
	}
	return Resolver{base: base}
}

// Depth is the number of directories between the site root and the page.
// Paths outside the base are treated as root pages.
func (r Resolver) Depth(urlPath string) int {
	if urlPath == "" {
		urlPath = "/"
	}
	dir := path.Clean("/" + urlPath)
	if !strings.HasSuffix(urlPath, "/") {
		dir = path.Dir(dir)
	}
	if dir != "/" {
		dir += "/"
	}
	rel, ok := strings.CutPrefix(dir, r.base)
	if !ok {
		return 0
	}
	rel = strings.Trim(rel, "/")
	if rel == "" {
		return 0
	}
	return strings.Count(rel, "/") + 1
}

// Prefix is the relative path from the page back to the site root.
func (r Resolver) Prefix(urlPath string) string {
	depth := r.Depth(urlPath)
	if depth == 0 {
		return "./"
	}
	return strings.Repeat("../", depth)
}

// Rewrite adapts a fragment link for the page. Only links starting with
// "../" are changed.
func (r Resolver) Rewrite(urlPath, ref string) string {
	rest, ok := strings.CutPrefix(ref, authoredPrefix)
	if !ok {
		return ref
	}
	return r.Prefix(urlPath) + rest
}

// Href builds a link from the page to a root-relative target such as
// "privacy-cookies.html" or "index.html#contact".
func (r Resolver) Href(urlPath, target string) string {
	return r.Prefix(urlPath) + strings.TrimPrefix(target, "/")
}
