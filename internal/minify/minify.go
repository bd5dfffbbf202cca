// Package minify provides the production HTML minification transform.
package minify

import (
	"context"
	"fmt"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/html"
)

const mediaType = "text/html"

// HTMLTransform minifies rendered pages whose output path ends in ".html".
// Comments are dropped, whitespace is collapsed and the doctype is written
// in its short form. Other outputs pass through untouched.
type HTMLTransform struct {
	m *minify.M
}

// NewHTMLTransform returns an HTMLTransform whose minifier keeps document
// tags, end tags and attribute quotes.
func NewHTMLTransform() *HTMLTransform {
	m := minify.New()
	m.Add(mediaType, &html.Minifier{
		KeepComments:     false,
		KeepWhitespace:   false,
		KeepDocumentTags: true,
		KeepEndTags:      true,
		KeepQuotes:       true,
	})
	return &HTMLTransform{m: m}
}

// Transform implements plugins.Transformer.
func (t *HTMLTransform) Transform(ctx context.Context, content, outputPath string) (string, error) {
	if !strings.HasSuffix(outputPath, ".html") {
		return content, nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	out, err := t.m.String(mediaType, content)
	if err != nil {
		return "", fmt.Errorf("minify %s: %w", outputPath, err)
	}
	return out, nil
}
