// Package bibliography turns BibTeX source into an HTML bibliography.
//
// Rendering parses the source, orders entries by publication year, formats
// them in APA style and links bare URLs. The result is meant to be dropped
// into a template unescaped.
package bibliography

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"github.com/conneroisu/folio/internal/autolink"
	"github.com/conneroisu/folio/internal/logging"
	"golang.org/x/text/language"
)

// Sentinel errors for renderer configuration.
var (
	ErrUnknownTemplate   = errors.New("unknown citation template")
	ErrUnsupportedLocale = errors.New("unsupported citation locale")
)

// Options selects how the bibliography is formatted.
type Options struct {
	// Template names the citation style. Only "apa" is available.
	Template string

	// Lang is a BCP 47 tag. Only English locales are available.
	Lang string

	// NoSort keeps the caller's entry order instead of the style's
	// author-based ordering.
	NoSort bool

	// Links configures URL autolinking of the formatted output.
	Links autolink.Options
}

// DefaultOptions are the settings used for .bib data files.
func DefaultOptions() Options {
	return Options{
		Template: "apa",
		Lang:     "en-US",
		NoSort:   true,
		Links: autolink.Options{
			NewWindow: true,
			ClassName: "no-underline",
		},
	}
}

// Renderer renders BibTeX source to HTML. It holds no per-call state and
// may be shared between goroutines.
type Renderer struct {
	opts   Options
	linker *autolink.Linker
	logger logging.Logger
}

// NewRenderer validates opts and creates a Renderer.
func NewRenderer(opts Options, logger logging.Logger) (*Renderer, error) {
	if !strings.EqualFold(opts.Template, "apa") {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, opts.Template)
	}

	tag, err := language.Parse(opts.Lang)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrUnsupportedLocale, opts.Lang, err)
	}
	base, _ := tag.Base()
	english, _ := language.English.Base()
	if base != english {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLocale, opts.Lang)
	}

	if logger == nil {
		logger = logging.Discard()
	}

	return &Renderer{
		opts:   opts,
		linker: autolink.New(opts.Links),
		logger: logger.WithComponent("bibliography"),
	}, nil
}

// Render parses raw BibTeX, sorts it by year and returns the linked HTML
// bibliography. Parse and validation errors are returned unchanged in
// kind; there is no recovery.
func (r *Renderer) Render(ctx context.Context, raw string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	entries, err := Parse(raw)
	if err != nil {
		return "", err
	}
	if err := SortByYear(entries); err != nil {
		return "", err
	}
	r.logger.Debug(ctx, "parsed bibliography", "entries", len(entries))

	if err := ctx.Err(); err != nil {
		return "", err
	}

	return r.linker.Link(r.Format(entries))
}

// ParseData implements plugins.DataParser so the renderer can back a data
// file extension. The value is template.HTML so templates emit it as-is.
func (r *Renderer) ParseData(ctx context.Context, raw []byte) (any, error) {
	out, err := r.Render(ctx, string(raw))
	if err != nil {
		return nil, err
	}
	return template.HTML(out), nil
}

// Format renders entries as a csl-bib-body fragment. With NoSort set the
// given order is kept verbatim.
func (r *Renderer) Format(entries []Entry) string {
	if !r.opts.NoSort {
		sorted := make([]Entry, len(entries))
		copy(sorted, entries)
		sortByAuthor(sorted)
		entries = sorted
	}

	var b strings.Builder
	b.WriteString("<div class=\"csl-bib-body\">\n")
	for _, e := range entries {
		b.WriteString("  <div data-csl-entry-id=\"")
		b.WriteString(template.HTMLEscapeString(e.ID))
		b.WriteString("\" class=\"csl-entry\">")
		b.WriteString(formatAPA(e))
		b.WriteString("</div>\n")
	}
	b.WriteString("</div>")
	return b.String()
}
