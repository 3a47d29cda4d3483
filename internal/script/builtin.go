package script

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"github.com/yomogi/webarc/internal/model"
)

// Extractor is the built-in traversal policy: extract every outbound link
// from HTML documents and keep every page. It is used for pages no external
// script claims, and for whole crawls that configure no scripts.
//
// Design decision: We use golang.org/x/net/html rather than regex because it
// correctly handles the malformed HTML common on the web and gives a proper
// DOM to walk.
type Extractor struct{}

// NewExtractor creates the built-in link extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Evaluate extracts links from an HTML page and always keeps it. Non-HTML
// content yields no links. Relative links are resolved against the final
// URL, so pages behind a redirect resolve the way a browser would.
func (e *Extractor) Evaluate(_ context.Context, res *model.FetchResult) ([]string, bool, error) {
	if !strings.Contains(res.ContentType(), "html") {
		return nil, true, nil
	}

	base, err := url.Parse(res.FinalURL)
	if err != nil {
		return nil, true, fmt.Errorf("script: parse base URL %s: %w", res.FinalURL, err)
	}

	body, err := decodeCharset(res.Body, res.Headers.Get("Content-Type"))
	if err != nil {
		// Undecodable charset: keep the page, skip link extraction.
		return nil, true, nil
	}

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, true, fmt.Errorf("script: parse HTML of %s: %w", res.FinalURL, err)
	}

	var links []string
	seen := make(map[string]bool)
	add := func(raw string) {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			return
		}
		ref, err := url.Parse(raw)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref).String()
		if !seen[abs] {
			seen[abs] = true
			links = append(links, abs)
		}
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "a", "link":
				add(attrValue(n, "href"))
			case "img", "script", "iframe":
				add(attrValue(n, "src"))
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return links, true, nil
}

// Close is a no-op; the built-in extractor holds no resources.
func (e *Extractor) Close() error { return nil }

// attrValue returns the value of the named attribute, or "".
func attrValue(n *html.Node, name string) string {
	for _, attr := range n.Attr {
		if attr.Key == name {
			return attr.Val
		}
	}
	return ""
}

// decodeCharset converts a document to UTF-8 using the charset named in the
// Content-Type header. UTF-8 and unjudgeable documents pass through as-is.
func decodeCharset(body []byte, contentType string) ([]byte, error) {
	name := charsetFromContentType(contentType)
	if name == "" || strings.EqualFold(name, "utf-8") {
		return body, nil
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("script: unknown charset %q: %w", name, err)
	}

	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(body), enc.NewDecoder()))
	if err != nil {
		return nil, fmt.Errorf("script: decode %q body: %w", name, err)
	}
	return decoded, nil
}

// charsetFromContentType extracts the charset parameter from a Content-Type
// header value, or "".
func charsetFromContentType(contentType string) string {
	for _, part := range strings.Split(contentType, ";")[1:] {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if ok && strings.EqualFold(strings.TrimSpace(key), "charset") {
			return strings.Trim(strings.TrimSpace(value), `"`)
		}
	}
	return ""
}
