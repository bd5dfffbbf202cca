// Package autolink wraps bare URLs in HTML text with anchor elements.
//
// Only text nodes are rewritten. Markup, attribute values, text already
// inside an anchor, and script or style bodies are copied through as-is.
// Email addresses and phone numbers are never linked.
package autolink

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"mvdan.cc/xurls/v2"
)

// Options controls how detected URLs are turned into anchors.
type Options struct {
	// NewWindow adds target="_blank" and rel="noopener noreferrer".
	NewWindow bool

	// ClassName is set as the anchor's class when non-empty.
	ClassName string

	// StripPrefix drops the scheme and a leading "www." from the link text.
	StripPrefix bool

	// StripTrailingSlash drops a single trailing slash from the link text.
	StripTrailingSlash bool
}

// Linker rewrites HTML fragments.
type Linker struct {
	opts Options
	urls *regexp.Regexp
}

// New creates a Linker that links http, https and ftp URLs.
func New(opts Options) *Linker {
	return &Linker{
		opts: opts,
		urls: xurls.Strict(),
	}
}

// Link returns fragment with every bare URL wrapped in an anchor.
func (l *Linker) Link(fragment string) (string, error) {
	var buf bytes.Buffer
	buf.Grow(len(fragment) + len(fragment)/4)

	z := html.NewTokenizer(strings.NewReader(fragment))
	anchorDepth := 0
	rawText := false

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return "", fmt.Errorf("autolink: %w", err)
			}
			return buf.String(), nil

		case html.StartTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "a":
				anchorDepth++
			case "script", "style":
				rawText = true
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "a":
				if anchorDepth > 0 {
					anchorDepth--
				}
			case "script", "style":
				rawText = false
			}

		case html.TextToken:
			if anchorDepth == 0 && !rawText {
				l.linkText(&buf, z.Raw())
				continue
			}
		}

		buf.Write(z.Raw())
	}
}

// linkText writes raw text to buf, replacing URL matches with anchors.
// The text is still entity-escaped, so matches can be emitted verbatim.
func (l *Linker) linkText(buf *bytes.Buffer, text []byte) {
	last := 0
	for _, loc := range l.urls.FindAllIndex(text, -1) {
		match := string(text[loc[0]:loc[1]])
		if !hasAuthority(match) {
			continue
		}
		buf.Write(text[last:loc[0]])
		l.writeAnchor(buf, match)
		last = loc[1]
	}
	buf.Write(text[last:])
}

func (l *Linker) writeAnchor(buf *bytes.Buffer, url string) {
	buf.WriteString(`<a href="`)
	buf.WriteString(url)
	buf.WriteByte('"')
	if l.opts.ClassName != "" {
		buf.WriteString(` class="`)
		buf.WriteString(html.EscapeString(l.opts.ClassName))
		buf.WriteByte('"')
	}
	if l.opts.NewWindow {
		buf.WriteString(` target="_blank" rel="noopener noreferrer"`)
	}
	buf.WriteByte('>')
	buf.WriteString(l.anchorText(url))
	buf.WriteString("</a>")
}

func (l *Linker) anchorText(url string) string {
	text := url
	if l.opts.StripPrefix {
		if i := strings.Index(text, "://"); i >= 0 {
			text = text[i+3:]
		}
		text = strings.TrimPrefix(text, "www.")
	}
	if l.opts.StripTrailingSlash {
		text = strings.TrimSuffix(text, "/")
	}
	return text
}

// hasAuthority reports whether match is a scheme://host URL. xurls' strict
// pattern also matches mailto:, tel: and similar schemes, which are
// emails and phone numbers we deliberately leave alone.
func hasAuthority(match string) bool {
	return strings.Contains(match, "://")
}
