package surt

import "testing"

// TestParse tests URL to SURT conversion.
func TestParse(t *testing.T) {
	t.Parallel()

	cases := []struct {
		url  string
		want string
	}{
		{"https://www23.example.com/some/path", "com,example)/some/path"},
		{"https://example.com/www2.example/some/value", "com,example)/www2.example/some/value"},
		{"https://abc.www.example.com/example", "com,example,www,abc)/example"},
		{"https://www.example.com:443/some/path", "com,example)/some/path"},
		{"http://www.example.com:80/some/path", "com,example)/some/path"},
		{"https://www.example.com:123/some/path", "com,example:123)/some/path"},
		{"https://www.example.com/some/path?D=1&CC=2&EE=3", "com,example)/some/path?cc=2&d=1&ee=3"},
		{"https://www.example.com/some/path?a=b&c&cc=1&d=e", "com,example)/some/path?a=b&c=&cc=1&d=e"},
		{"https://example.com", "com,example)/"},
		{"https://example.com/page#fragment", "com,example)/page"},
	}

	for _, tc := range cases {
		got, err := Parse(tc.url)
		if err != nil {
			t.Fatalf("Parse(%q) returned error: %v", tc.url, err)
		}
		if got != tc.want {
			t.Errorf("Parse(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}
}

// TestParseEquivalence tests that URL spellings of the same resource share a SURT.
func TestParseEquivalence(t *testing.T) {
	t.Parallel()

	groups := [][]string{
		{"https://example.com/a", "https://www.example.com/a", "https://EXAMPLE.com/a"},
		{"http://example.com/", "http://example.com:80/", "http://example.com"},
		{"https://example.com/p?a=1&b=2", "https://example.com/p?b=2&a=1"},
	}

	for _, group := range groups {
		first, err := Parse(group[0])
		if err != nil {
			t.Fatalf("Parse(%q) returned error: %v", group[0], err)
		}
		for _, u := range group[1:] {
			got, err := Parse(u)
			if err != nil {
				t.Fatalf("Parse(%q) returned error: %v", u, err)
			}
			if got != first {
				t.Errorf("Parse(%q) = %q, want %q (same as %q)", u, got, first, group[0])
			}
		}
	}
}

// TestParseInvalid tests that malformed URLs return an error.
func TestParseInvalid(t *testing.T) {
	t.Parallel()

	if _, err := Parse("http://exa mple.com/%zz"); err == nil {
		t.Error("expected error for malformed URL")
	}
}
