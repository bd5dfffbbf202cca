// Package seo renders page titles and meta tags from a site-wide options
// file, and registers them as template functions.
package seo

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/spf13/viper"

	"github.com/conneroisu/folio/internal/plugins"
)

// Options mirrors the keys of src/_data/seo.json
type Options struct {
	Title       string       `mapstructure:"title"`
	Description string       `mapstructure:"description"`
	URL         string       `mapstructure:"url"`
	Author      string       `mapstructure:"author"`
	Twitter     string       `mapstructure:"twitter"`
	Image       string       `mapstructure:"image"`
	Extra       ExtraOptions `mapstructure:"options"`

	// PathPrefix is the site's deployment subdirectory. It is set by the
	// build config, not the options file.
	PathPrefix string `mapstructure:"-"`
}

// ExtraOptions holds the nested "options" object
type ExtraOptions struct {
	TitleStyle       string `mapstructure:"titleStyle"`
	TitleDivider     string `mapstructure:"titleDivider"`
	ImageWithBaseURL bool   `mapstructure:"imageWithBaseUrl"`
	TwitterCardType  string `mapstructure:"twitterCardType"`
}

// LoadOptions reads options from a JSON file
func LoadOptions(path string) (*Options, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetDefault("options.titleDivider", "|")
	v.SetDefault("options.twitterCardType", "summary")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read seo options %s: %w", path, err)
	}

	var opts Options
	if err := v.Unmarshal(&opts); err != nil {
		return nil, fmt.Errorf("failed to decode seo options %s: %w", path, err)
	}
	if opts.Title == "" {
		return nil, fmt.Errorf("seo options %s: title is required", path)
	}
	return &opts, nil
}

// Plugin registers the seoTitle and seoMeta template functions
type Plugin struct {
	opts *Options
}

// New creates the plugin for opts
func New(opts *Options) *Plugin {
	return &Plugin{opts: opts}
}

// Name implements plugins.Plugin
func (p *Plugin) Name() string { return "seo" }

// Register implements plugins.Plugin
func (p *Plugin) Register(r *plugins.Registry) error {
	if err := r.AddFilter("seoTitle", p.Title); err != nil {
		return err
	}
	return r.AddFilter("seoMeta", p.Meta)
}

// Title returns the document title for a page. The site title alone is
// used for the home page or when the page has no title of its own.
func (p *Plugin) Title(pageTitle string) string {
	pageTitle = strings.TrimSpace(pageTitle)
	if pageTitle == "" || pageTitle == p.opts.Title {
		return p.opts.Title
	}
	if p.opts.Extra.TitleStyle == "minimalistic" {
		return pageTitle
	}
	return pageTitle + " " + p.opts.Extra.TitleDivider + " " + p.opts.Title
}

var metaTemplate = template.Must(template.New("meta").Parse(
	`<title>{{.Title}}</title>
<meta name="description" content="{{.Description}}">
{{- with .Author}}
<meta name="author" content="{{.}}">{{end}}
{{- with .Canonical}}
<link rel="canonical" href="{{.}}">{{end}}
<meta property="og:title" content="{{.Title}}">
<meta property="og:description" content="{{.Description}}">
<meta property="og:type" content="website">
{{- with .Canonical}}
<meta property="og:url" content="{{.}}">{{end}}
{{- with .Image}}
<meta property="og:image" content="{{.}}">{{end}}
<meta name="twitter:card" content="{{.Card}}">
{{- with .Twitter}}
<meta name="twitter:site" content="@{{.}}">{{end}}
{{- with .Image}}
<meta name="twitter:image" content="{{.}}">{{end}}`))

type metaData struct {
	Title       string
	Description string
	Author      string
	Canonical   string
	Image       string
	Card        string
	Twitter     string
}

// Meta renders the title, description, canonical, OpenGraph and Twitter
// tags for the page at pageURL.
func (p *Plugin) Meta(pageTitle, pageURL string) (template.HTML, error) {
	data := metaData{
		Title:       p.Title(pageTitle),
		Description: p.opts.Description,
		Author:      p.opts.Author,
		Canonical:   p.absolute(pageURL),
		Image:       p.opts.Image,
		Card:        p.opts.Extra.TwitterCardType,
		Twitter:     strings.TrimPrefix(p.opts.Twitter, "@"),
	}
	if p.opts.Extra.ImageWithBaseURL && data.Image != "" {
		data.Image = p.absolute(data.Image)
	}

	var buf bytes.Buffer
	if err := metaTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render seo meta: %w", err)
	}
	return template.HTML(buf.String()), nil
}

func (p *Plugin) absolute(path string) string {
	if p.opts.URL == "" {
		return ""
	}
	if strings.Contains(path, "://") {
		return path
	}
	return strings.TrimRight(p.opts.URL, "/") + p.prefixed(path)
}

// prefixed roots path under PathPrefix unless the path or the base URL
// already carries it.
func (p *Plugin) prefixed(path string) string {
	path = "/" + strings.TrimLeft(path, "/")
	prefix := strings.Trim(p.opts.PathPrefix, "/")
	if prefix == "" {
		return path
	}
	prefix = "/" + prefix
	if path == prefix || strings.HasPrefix(path, prefix+"/") ||
		strings.HasSuffix(strings.TrimRight(p.opts.URL, "/"), prefix) {
		return path
	}
	return prefix + path
}
