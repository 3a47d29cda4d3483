package frontier

import (
	"net/url"
	"path/filepath"
	"strings"
)

// Scope decides which discovered URLs belong to the crawl. It is evaluated
// once, at enqueue time; a URL that passes scope is never re-checked.
type Scope struct {
	// allowedHosts are the hosts the crawl may touch, lowercased.
	allowedHosts map[string]bool

	// maxDepth is the maximum discovery depth, inclusive.
	maxDepth int

	// excludePatterns are glob patterns matched against the URL path.
	excludePatterns []string
}

// NewScope builds a Scope. Hosts are compared case-insensitively; the port
// is ignored so "example.com:8080" and "example.com" are the same host.
func NewScope(allowedHosts []string, maxDepth int, excludePatterns []string) *Scope {
	hosts := make(map[string]bool, len(allowedHosts))
	for _, h := range allowedHosts {
		hosts[strings.ToLower(h)] = true
	}
	return &Scope{
		allowedHosts:    hosts,
		maxDepth:        maxDepth,
		excludePatterns: excludePatterns,
	}
}

// AddHost adds a host to the allow-list. Used to admit the seed hosts when
// no explicit allow-list is configured.
func (s *Scope) AddHost(host string) {
	s.allowedHosts[strings.ToLower(host)] = true
}

// Admits reports whether a URL at the given depth is inside the crawl scope.
func (s *Scope) Admits(u *url.URL, depth int) bool {
	if depth > s.maxDepth {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if !s.allowedHosts[strings.ToLower(u.Hostname())] {
		return false
	}

	path := u.Path
	if path == "" {
		path = "/"
	}
	for _, pattern := range s.excludePatterns {
		if matchPattern(pattern, path) {
			return false
		}
	}
	return true
}

// matchPattern checks if a path matches a glob pattern. Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//
// Examples:
//   - "/admin/*" matches "/admin/dashboard", "/admin/users"
//   - "*.pdf" matches "/docs/file.pdf"
//   - "/logout*" matches "/logout" and "/logout?next=/"
func matchPattern(pattern, path string) bool {
	// "/admin/*" should match the whole subtree, not one segment.
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if strings.HasPrefix(path, prefix+"/") || path == prefix {
			return true
		}
	}

	// Extension patterns like "*.pdf" match against the full path suffix.
	if strings.HasPrefix(pattern, "*.") {
		if strings.HasSuffix(path, strings.TrimPrefix(pattern, "*")) {
			return true
		}
	}

	// Prefix patterns like "/logout*".
	if strings.HasSuffix(pattern, "*") && !strings.ContainsAny(strings.TrimSuffix(pattern, "*"), "*?") {
		if strings.HasPrefix(path, strings.TrimSuffix(pattern, "*")) {
			return true
		}
	}

	matched, err := filepath.Match(pattern, path)
	if err != nil {
		return false
	}
	if matched {
		return true
	}

	// Also try just the filename for patterns without a separator.
	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		if matched, err := filepath.Match(pattern, filepath.Base(path)); err == nil && matched {
			return true
		}
	}

	return false
}
