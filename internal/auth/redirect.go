package auth

import (
	"net/url"
	"strings"
)

// SafeRedirectPath returns next if it is a same-origin relative path, else
// fallback.
//
// Accepted: "/bookmarks", "/bookmarks?tab=new#top".
// Rejected: "", "bookmarks", "//evil.com", "/\evil.com", "https://evil.com",
// "javascript:alert(1)", anything containing control characters.
//
// Browsers treat a leading "//" or "/\" as protocol-relative, which would turn
// a post-login redirect into an open redirect.
func SafeRedirectPath(next, fallback string) string {
	if next == "" || next[0] != '/' {
		return fallback
	}
	if strings.HasPrefix(next, "//") || strings.ContainsRune(next, '\\') {
		return fallback
	}
	for _, r := range next {
		if r < 0x20 || r == 0x7f {
			return fallback
		}
	}

	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" || u.Opaque != "" || u.User != nil {
		return fallback
	}

	return next
}
