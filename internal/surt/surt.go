// Package surt converts URLs to their Sort-friendly URI Reordering Transform
// (SURT) form, the canonical key used for frontier deduplication, the digest
// catalog, and the export index.
//
// A SURT reverses the host labels and joins them with commas, drops default
// ports and leading "www" prefixes, lowercases and sorts query parameters,
// and strips fragments. Example:
//
//	https://www.example.com/some/path?D=1&a=2  ->  com,example)/some/path?a=2&d=1
//
// Using SURT rather than the raw URL means index lines for one host sort
// together, and trivially different spellings of the same URL deduplicate.
package surt

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// wwwPrefix matches "www", "www2", "www23"... at the start of a hostname.
var wwwPrefix = regexp.MustCompile(`^www\d*\.`)

// FromURL returns the SURT form of an already-parsed URL.
func FromURL(u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	if m := wwwPrefix.FindString(host); m != "" {
		host = host[len(m):]
	}

	var b strings.Builder
	b.Grow(len(u.String()))

	labels := strings.Split(host, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		b.WriteString(labels[i])
		if i > 0 {
			b.WriteByte(',')
		}
	}

	// Default ports carry no information; any other port is significant.
	if port := u.Port(); port != "" && !isDefaultPort(u.Scheme, port) {
		b.WriteByte(':')
		b.WriteString(port)
	}

	b.WriteByte(')')
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	b.WriteString(path)

	if q := canonicalQuery(u); q != "" {
		b.WriteByte('?')
		b.WriteString(q)
	}

	return b.String()
}

// Parse parses a raw URL and returns its SURT form.
func Parse(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	return FromURL(u), nil
}

func isDefaultPort(scheme, port string) bool {
	return (scheme == "http" && port == "80") || (scheme == "https" && port == "443")
}

// canonicalQuery lowercases all query pairs and sorts them by key, so that
// parameter order does not defeat deduplication. Bare keys normalize to
// "key=" like any other empty value.
func canonicalQuery(u *url.URL) string {
	if u.RawQuery == "" {
		return ""
	}

	values, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return strings.ToLower(u.RawQuery)
	}

	type pair struct{ k, v string }
	pairs := make([]pair, 0, len(values))
	for k, vs := range values {
		for _, v := range vs {
			pairs = append(pairs, pair{strings.ToLower(k), strings.ToLower(v)})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].k != pairs[j].k {
			return pairs[i].k < pairs[j].k
		}
		return pairs[i].v < pairs[j].v
	})

	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.v))
	}
	return b.String()
}
