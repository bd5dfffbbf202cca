package seo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/folio/internal/plugins"
)

const sampleOptions = `{
  "title": "Jane Doe",
  "description": "Research and notes",
  "url": "https://jane.example.org/",
  "author": "Jane Doe",
  "twitter": "@janedoe",
  "image": "/static/avatar.png",
  "options": {
    "titleDivider": "-",
    "imageWithBaseUrl": true
  }
}`

func writeOptions(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seo.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadOptions(t *testing.T) {
	opts, err := LoadOptions(writeOptions(t, sampleOptions))
	require.NoError(t, err)

	assert.Equal(t, "Jane Doe", opts.Title)
	assert.Equal(t, "https://jane.example.org/", opts.URL)
	assert.Equal(t, "-", opts.Extra.TitleDivider)
	assert.True(t, opts.Extra.ImageWithBaseURL)
	assert.Equal(t, "summary", opts.Extra.TwitterCardType)
}

func TestLoadOptionsErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadOptions(filepath.Join(t.TempDir(), "nope.json"))
		assert.Error(t, err)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := LoadOptions(writeOptions(t, "{not json"))
		assert.Error(t, err)
	})

	t.Run("missing title", func(t *testing.T) {
		_, err := LoadOptions(writeOptions(t, `{"description": "x"}`))
		assert.Error(t, err)
	})
}

func TestTitle(t *testing.T) {
	p := New(&Options{Title: "Jane Doe", Extra: ExtraOptions{TitleDivider: "|"}})

	assert.Equal(t, "Jane Doe", p.Title(""))
	assert.Equal(t, "Jane Doe", p.Title("Jane Doe"))
	assert.Equal(t, "Papers | Jane Doe", p.Title("Papers"))

	p.opts.Extra.TitleStyle = "minimalistic"
	assert.Equal(t, "Papers", p.Title("Papers"))
}

func TestMeta(t *testing.T) {
	opts, err := LoadOptions(writeOptions(t, sampleOptions))
	require.NoError(t, err)

	out, err := New(opts).Meta("Papers", "/papers/")
	require.NoError(t, err)
	html := string(out)

	assert.Contains(t, html, "<title>Papers - Jane Doe</title>")
	assert.Contains(t, html, `<meta name="description" content="Research and notes">`)
	assert.Contains(t, html, `<link rel="canonical" href="https://jane.example.org/papers/">`)
	assert.Contains(t, html, `<meta property="og:image" content="https://jane.example.org/static/avatar.png">`)
	assert.Contains(t, html, `<meta name="twitter:site" content="@janedoe">`)
	assert.Contains(t, html, `<meta name="twitter:card" content="summary">`)
}

func TestMetaPathPrefix(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		prefix   string
		pageURL  string
		expected string
	}{
		{"no prefix", "https://x.org", "", "/posts/a/", "https://x.org/posts/a/"},
		{"prefix added", "https://x.org", "site", "/posts/a/", "https://x.org/site/posts/a/"},
		{"root page", "https://x.org/", "site", "/", "https://x.org/site/"},
		{"already prefixed page", "https://x.org", "site", "/site/posts/a/", "https://x.org/site/posts/a/"},
		{"prefix in base url", "https://x.org/site/", "site", "/posts/a/", "https://x.org/site/posts/a/"},
		{"similar directory", "https://x.org", "site", "/sites/a/", "https://x.org/site/sites/a/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(&Options{Title: "T", URL: tt.url, PathPrefix: tt.prefix})

			out, err := p.Meta("", tt.pageURL)
			require.NoError(t, err)
			assert.Contains(t, string(out), `<link rel="canonical" href="`+tt.expected+`">`)
			assert.Contains(t, string(out), `<meta property="og:url" content="`+tt.expected+`">`)
		})
	}
}

func TestMetaEscapes(t *testing.T) {
	p := New(&Options{Title: "A & B", Description: `"quoted"`})

	out, err := p.Meta("", "/")
	require.NoError(t, err)

	assert.Contains(t, string(out), "<title>A &amp; B</title>")
	assert.Contains(t, string(out), `content="&#34;quoted&#34;"`)
	assert.NotContains(t, string(out), "canonical")
}

func TestRegister(t *testing.T) {
	reg := plugins.NewRegistry()
	require.NoError(t, reg.AddPlugin(New(&Options{Title: "x"})))

	filters := reg.Filters()
	assert.Contains(t, filters, "seoTitle")
	assert.Contains(t, filters, "seoMeta")
	assert.Equal(t, []string{"seo"}, reg.PluginNames())
}
