// Package identifier validates and normalizes post references.
package identifier

import (
	"net/url"
	"regexp"
	"strings"
)

// InvalidURL marks a URL that could not be normalized.
const InvalidURL = "invalid-url"

var allowedHosts = map[string]struct{}{
	"x.com":       {},
	"twitter.com": {},
}

var statusExpr = regexp.MustCompile(`/status/(\d+)`)

// DefaultBase resolves relative status links found in rendered markup.
var DefaultBase = &url.URL{Scheme: "https", Host: "x.com", Path: "/"}

// IsValid reports whether candidate is a post reference on an allowed host
// with a /status/<digits> path segment. It never panics and fails closed.
func IsValid(candidate string) bool {
	u, err := url.Parse(candidate)
	if err != nil || u.Host == "" {
		return false
	}
	if _, ok := allowedHosts[strings.ToLower(u.Hostname())]; !ok {
		return false
	}
	return statusExpr.MatchString(u.Path)
}

// StatusID extracts the numeric status id of a valid identifier.
func StatusID(candidate string) (string, bool) {
	if !IsValid(candidate) {
		return "", false
	}
	u, _ := url.Parse(candidate)
	m := statusExpr.FindStringSubmatch(u.Path)
	return m[1], true
}

// Host returns the lower-cased host of a valid identifier.
func Host(candidate string) (string, bool) {
	if !IsValid(candidate) {
		return "", false
	}
	u, _ := url.Parse(candidate)
	return strings.ToLower(u.Hostname()), true
}

// Canonical resolves href against base and trims it to
// scheme://host/<user>/status/<id>. Query, fragment and sub-paths such as
// /photo/1 are dropped; www. and mobile. host prefixes are removed.
func Canonical(href string, base *url.URL) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if base == nil {
		base = DefaultBase
	}
	u := base.ResolveReference(ref)

	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimPrefix(host, "mobile.")

	loc := statusExpr.FindStringIndex(u.Path)
	if loc == nil {
		return "", false
	}

	out := url.URL{Scheme: u.Scheme, Host: host, Path: u.Path[:loc[1]]}
	if out.Scheme == "" {
		out.Scheme = "https"
	}
	s := out.String()
	if !IsValid(s) {
		return "", false
	}
	return s, true
}

// Sanitize strips a URL to scheme, host and path, or returns InvalidURL.
func Sanitize(raw string) string {
	if canonical, ok := Canonical(raw, &url.URL{}); ok {
		return canonical
	}
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return InvalidURL
	}
	out := url.URL{Scheme: u.Scheme, Host: strings.ToLower(u.Host), Path: u.Path}
	return out.String()
}

// Dedupe keeps the first occurrence of every candidate, in order, and drops
// anything IsValid rejects.
func Dedupe(candidates []string) []string {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		if !IsValid(c) {
			continue
		}
		out = append(out, c)
	}
	return out
}
