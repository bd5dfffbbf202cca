package minify

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Transitional//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-transitional.dtd">
<html>
  <head>
    <!-- page metadata -->
    <title>Publications</title>
  </head>
  <body>
    <p>
      Selected     papers
      and talks.
    </p>
    <!-- footer goes here -->
  </body>
</html>
`

func TestHTMLTransformMinifiesHTML(t *testing.T) {
	tr := NewHTMLTransform()

	out, err := tr.Transform(context.Background(), page, "_site/publications/index.html")
	require.NoError(t, err)

	assert.NotContains(t, out, "<!--")
	assert.NotContains(t, out, "page metadata")
	assert.NotRegexp(t, regexp.MustCompile(`\s{2,}`), out)
	assert.Contains(t, out, "<!doctype html>")
	assert.Contains(t, out, "Selected papers and talks.")
	assert.Less(t, len(out), len(page))
}

func TestHTMLTransformPassesThroughOtherOutputs(t *testing.T) {
	tr := NewHTMLTransform()

	tests := []struct {
		name       string
		outputPath string
	}{
		{"stylesheet", "_site/styles/main.css"},
		{"feed", "_site/feed.xml"},
		{"html-like directory", "_site/page.html/data.json"},
		{"uppercase extension", "_site/INDEX.HTML"},
		{"empty path", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := tr.Transform(context.Background(), page, tt.outputPath)
			require.NoError(t, err)
			assert.Equal(t, page, out)
		})
	}
}

func TestHTMLTransformHonorsCancellation(t *testing.T) {
	tr := NewHTMLTransform()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tr.Transform(ctx, page, "index.html")
	assert.ErrorIs(t, err, context.Canceled)

	// Pass-through never fails, cancelled or not.
	out, err := tr.Transform(ctx, "body{}", "main.css")
	require.NoError(t, err)
	assert.Equal(t, "body{}", out)
}
