package parse

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases scheme and host", "HTTP://EXAMPLE.com/Path", "http://example.com/Path"},
		{"strips default http port", "http://example.com:80/a", "http://example.com/a"},
		{"strips default https port", "https://example.com:443/a", "https://example.com/a"},
		{"keeps non-default port", "http://example.com:8080/a", "http://example.com:8080/a"},
		{"empty path becomes root", "http://example.com", "http://example.com/"},
		{"trims trailing slash", "http://example.com/gallery/", "http://example.com/gallery"},
		{"root slash kept", "http://example.com/", "http://example.com/"},
		{"drops fragment and query", "http://example.com/p?page=2#top", "http://example.com/p"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := url.Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, NormalizeURL(u))
		})
	}

	assert.Equal(t, "", NormalizeURL(nil))
}

func TestParseAndNormalize(t *testing.T) {
	norm, parsed, err := ParseAndNormalize("https://Example.com/a/b/?x=1")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a/b", norm)
	assert.Equal(t, "example.com", parsed.Hostname())

	_, _, err = ParseAndNormalize("not a url")
	assert.Error(t, err)

	// Scheme-relative and bare paths are rejected
	_, _, err = ParseAndNormalize("/relative/only")
	assert.Error(t, err)
}

func TestResolveURL(t *testing.T) {
	base, err := url.Parse("https://example.com/gallery/page.html")
	require.NoError(t, err)

	tests := []struct {
		name string
		ref  string
		want string
	}{
		{"relative", "photo.jpg", "https://example.com/gallery/photo.jpg"},
		{"rooted", "/img/photo.jpg", "https://example.com/img/photo.jpg"},
		{"absolute", "https://cdn.example.net/a.png", "https://cdn.example.net/a.png"},
		{"scheme relative", "//cdn.example.net/b.png", "https://cdn.example.net/b.png"},
		{"query preserved", "/img/c.jpg?w=1200", "https://example.com/img/c.jpg?w=1200"},
		{"fragment stripped", "photo.jpg#detail", "https://example.com/gallery/photo.jpg"},
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
		{"data uri rejected", "data:image/png;base64,AAAA", ""},
		{"javascript rejected", "javascript:void(0)", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveURL(base, tt.ref))
		})
	}
}
