// Package urlutil provides deterministic URL normalization and probabilistic
// page-type classification for crawl candidates.
package urlutil

import (
	"net/url"
	"sort"
	"strings"
)

// preservedQueryKeys are the only query parameters retained by Normalize.
var preservedQueryKeys = map[string]bool{
	"p":        true,
	"page":     true,
	"id":       true,
	"product":  true,
	"category": true,
}

// Normalize canonicalizes a URL deterministically and idempotently:
// lowercase host without "www.", no fragment, no trailing slash except for
// the root path, and only preserved query keys in sorted order.
func Normalize(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.TrimSpace(raw)
	}

	u.Host = strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	u.Fragment = ""

	if u.Path != "/" && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimRight(u.Path, "/")
	}
	if u.Path == "" {
		u.Path = "/"
	}

	if u.RawQuery != "" {
		q := u.Query()
		kept := url.Values{}
		for k, vs := range q {
			if preservedQueryKeys[strings.ToLower(k)] {
				kept[strings.ToLower(k)] = vs
			}
		}
		if len(kept) == 0 {
			u.RawQuery = ""
		} else {
			keys := make([]string, 0, len(kept))
			for k := range kept {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			var parts []string
			for _, k := range keys {
				for _, v := range kept[k] {
					parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(v))
				}
			}
			u.RawQuery = strings.Join(parts, "&")
		}
	}

	return u.String()
}

// IsInternal reports whether candidate belongs to the same site as base,
// comparing hosts after stripping "www.".
func IsInternal(candidate, base string) bool {
	cu, err := url.Parse(candidate)
	if err != nil {
		return false
	}
	bu, err := url.Parse(base)
	if err != nil {
		return false
	}
	ch := strings.TrimPrefix(strings.ToLower(cu.Host), "www.")
	bh := strings.TrimPrefix(strings.ToLower(bu.Host), "www.")
	if ch == "" {
		// Relative URL.
		return true
	}
	return ch == bh
}

// Resolve resolves a possibly-relative href against a base URL and returns
// the absolute form, or "" when either side fails to parse.
func Resolve(base, href string) string {
	bu, err := url.Parse(base)
	if err != nil {
		return ""
	}
	hu, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return bu.ResolveReference(hu).String()
}

// Host returns the lowercase host of a URL without the "www." prefix.
func Host(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}

// EnsureScheme prefixes https:// when the URL has no scheme.
func EnsureScheme(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}
	if !strings.Contains(raw, "://") {
		return "https://" + raw
	}
	return raw
}
