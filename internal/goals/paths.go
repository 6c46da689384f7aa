package goals

import (
	"net/url"
	"strings"
)

// NormalizePath reduces a relative path or absolute URL to its path: query and
// fragment dropped, leading slash ensured, trailing slash removed except for root.
func NormalizePath(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	if u, err := url.Parse(s); err == nil && u.Host != "" {
		s = u.Path
	} else if strings.HasPrefix(s, "//") {
		if i := strings.Index(s[2:], "/"); i >= 0 {
			s = s[2+i:]
		} else {
			s = ""
		}
	}
	if !strings.HasPrefix(s, "/") {
		s = "/" + s
	}
	for len(s) > 1 && strings.HasSuffix(s, "/") {
		s = strings.TrimSuffix(s, "/")
	}
	return s
}

// PathMatches reports whether path equals target or lies beneath it on a segment
// boundary. "/obrigado" covers "/obrigado/whatsapp" but not "/obrigado-parcial".
// The root only matches itself.
func PathMatches(path, target string) bool {
	if path == target {
		return true
	}
	if target == "/" {
		return false
	}
	return strings.HasPrefix(path, target+"/")
}
