// Package siteconfig is the build configuration of the site: it decides,
// from the loaded config, which hooks are registered for a build and what
// the generator is told about the directory layout and path prefix.
package siteconfig

import (
	"context"
	"fmt"

	"github.com/conneroisu/folio/internal/bibliography"
	"github.com/conneroisu/folio/internal/config"
	"github.com/conneroisu/folio/internal/datefmt"
	"github.com/conneroisu/folio/internal/logging"
	"github.com/conneroisu/folio/internal/metrics"
	"github.com/conneroisu/folio/internal/minify"
	"github.com/conneroisu/folio/internal/plugins"
	"github.com/conneroisu/folio/internal/seo"
	"github.com/conneroisu/folio/internal/server"
)

// Names under which hooks are registered
const (
	MinifyTransform = "htmlmin"
	DateFilter      = "formatDate"
	BibExtension    = ".bib"
	SEOFile         = "seo.json"
	StaticDir       = "static"
	StylesDir       = "styles"
)

// Result is what the build configuration returns to the generator
type Result struct {
	Dir        ResultDir
	PathPrefix string
}

// ResultDir names the input directory
type ResultDir struct {
	Input string
}

// Apply registers the site's hooks on reg for the mode in cfg.
//
// Production builds minify HTML. In development the dev server answers
// unknown paths with the prebuilt 404 page; built files are left as
// rendered. Both copy the
// static directory to the output root, parse .bib data files into APA
// bibliographies, install the SEO plugin, watch the styles directory and
// provide the formatDate filter. rec may be nil.
func Apply(cfg *config.Config, reg *plugins.Registry, logger logging.Logger, rec *metrics.Recorder) (*Result, error) {
	logger = logger.WithComponent("siteconfig")
	ctx := context.Background()

	if cfg.IsProduction() {
		if err := reg.AddTransform(MinifyTransform, minify.NewHTMLTransform()); err != nil {
			return nil, err
		}
	} else {
		outputDir := cfg.Dir.Output
		reg.OnDevServerReady(func(s plugins.DevServer) error {
			s.AddMiddleware("*", server.NotFoundHandler(outputDir, logger, rec))
			return nil
		})
	}

	reg.AddPassthroughCopy(cfg.InputPath(StaticDir), ".")

	renderer, err := bibliography.NewRenderer(bibliography.DefaultOptions(), logger)
	if err != nil {
		return nil, err
	}
	if err := reg.AddDataExtension(BibExtension, renderer); err != nil {
		return nil, err
	}

	seoOpts, err := seo.LoadOptions(cfg.InputPath(cfg.Dir.Data, SEOFile))
	if err != nil {
		return nil, fmt.Errorf("failed to configure seo plugin: %w", err)
	}
	seoOpts.PathPrefix = cfg.PathPrefix
	if err := reg.AddPlugin(seo.New(seoOpts)); err != nil {
		return nil, err
	}

	reg.AddWatchTarget(cfg.InputPath(StylesDir))

	if err := reg.AddFilter(DateFilter, datefmt.Format); err != nil {
		return nil, err
	}

	logger.Debug(ctx, "Site configured",
		"mode", cfg.Mode.String(),
		"pathPrefix", cfg.PathPrefix,
		"transforms", len(reg.Transforms()))

	return &Result{
		Dir:        ResultDir{Input: cfg.Dir.Input},
		PathPrefix: cfg.PathPrefix,
	}, nil
}
