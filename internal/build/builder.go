// Package build turns a source tree into a static site.
//
// A build runs in stages: passthrough copy, data load, page render,
// transforms and write. The hooks each stage uses come from a
// plugins.Registry that is fully populated before the first build.
package build

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/folio/internal/config"
	errs "github.com/conneroisu/folio/internal/errors"
	"github.com/conneroisu/folio/internal/logging"
	"github.com/conneroisu/folio/internal/metrics"
	"github.com/conneroisu/folio/internal/plugins"
)

// Result summarizes a finished build
type Result struct {
	// Pages lists written pages relative to the output directory, sorted
	Pages    []string
	Copied   int
	Duration time.Duration
}

// Builder builds the site described by a config and registry
type Builder struct {
	cfg      *config.Config
	registry *plugins.Registry
	logger   logging.Logger
	metrics  *metrics.Recorder
	markdown *markdownConverter
}

// NewBuilder creates a builder. rec may be nil.
func NewBuilder(cfg *config.Config, reg *plugins.Registry, logger logging.Logger, rec *metrics.Recorder) *Builder {
	return &Builder{
		cfg:      cfg,
		registry: reg,
		logger:   logger.WithComponent("build"),
		metrics:  rec,
		markdown: newMarkdownConverter(),
	}
}

// Build runs every stage once. Per-page render, transform and write
// failures are collected so one bad page reports alongside the others;
// passthrough and data failures abort immediately.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	start := time.Now()
	result, err := b.build(ctx)
	duration := time.Since(start)

	stage := ""
	if err != nil {
		stage = "unknown"
		if s, ok := errs.StageOf(err); ok {
			stage = string(s)
		}
		b.logger.Error(ctx, err, "Build failed", "duration", duration, "stage", stage)
		b.metrics.ObserveBuild(duration, 0, stage)
		return nil, err
	}

	result.Duration = duration
	b.metrics.ObserveBuild(duration, len(result.Pages), stage)
	b.logger.Info(ctx, "Build complete",
		"pages", len(result.Pages),
		"copied", result.Copied,
		"duration", duration,
		"mode", b.cfg.Mode.String())
	return result, nil
}

func (b *Builder) build(ctx context.Context) (*Result, error) {
	outputDir := b.cfg.Dir.Output
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, errs.NewBuildError(errs.StageWrite, outputDir, err)
	}

	result := &Result{}
	for _, p := range b.registry.PassthroughCopies() {
		n, err := copyPassthrough(ctx, p, outputDir)
		if err != nil {
			return nil, errs.NewBuildError(errs.StagePassthrough, p.Source, err)
		}
		b.logger.Debug(ctx, "Copied passthrough", "source", p.Source, "dest", p.Dest, "files", n)
		result.Copied += n
	}

	data, err := b.loadData(ctx, b.cfg.DataDir())
	if err != nil {
		if _, ok := errs.StageOf(err); !ok {
			err = errs.NewBuildError(errs.StageData, b.cfg.DataDir(), err)
		}
		return nil, err
	}

	funcs, err := funcMap(b.registry, b.cfg.PathPrefix)
	if err != nil {
		return nil, errs.NewBuildError(errs.StageRender, "", err)
	}
	inc, err := loadIncludes(b.cfg.IncludesDir(), funcs)
	if err != nil {
		return nil, errs.NewBuildError(errs.StageRender, b.cfg.IncludesDir(), err)
	}

	collector := errs.NewErrorCollector()
	pages, err := b.discover(ctx, inc, collector)
	if err != nil {
		return nil, err
	}
	collections := buildCollections(pages)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, p := range pages {
		if p.skip {
			continue
		}
		p := p
		g.Go(func() error {
			b.buildPage(gctx, p, inc, PageData{
				Data:        data,
				Front:       mergedFront(p, inc),
				Page:        p.info,
				Collections: collections,
				Title:       p.info.Title,
				PathPrefix:  b.cfg.PathPrefix,
				Production:  b.cfg.IsProduction(),
			}, collector)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := collector.Err(); err != nil {
		return nil, err
	}

	for _, p := range pages {
		if !p.skip {
			result.Pages = append(result.Pages, p.info.OutputPath)
		}
	}
	sort.Strings(result.Pages)
	return result, nil
}

// discover finds every page under the input directory. Directories whose
// name starts with "_" or "." are skipped, as are passthrough sources and
// the output directory.
func (b *Builder) discover(ctx context.Context, inc *includes, collector *errs.ErrorCollector) ([]*page, error) {
	inputDir := b.cfg.Dir.Input
	excluded := []string{absPath(b.cfg.Dir.Output)}
	for _, p := range b.registry.PassthroughCopies() {
		excluded = append(excluded, absPath(p.Source))
	}

	var pages []*page
	err := filepath.WalkDir(inputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() {
			if path != inputDir && (strings.HasPrefix(d.Name(), "_") || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			if containsPath(excluded, absPath(path)) {
				return filepath.SkipDir
			}
			return nil
		}
		if containsPath(excluded, absPath(path)) {
			return nil
		}

		switch strings.ToLower(filepath.Ext(path)) {
		case ".html", ".md":
		default:
			return nil
		}

		rel, err := filepath.Rel(inputDir, path)
		if err != nil {
			return err
		}
		p, err := readPage(inputDir, rel)
		if err != nil {
			collector.Add(errs.StageRender, path, err)
			return nil
		}
		if !filepath.IsLocal(p.info.OutputPath) {
			collector.Add(errs.StageWrite, path,
				fmt.Errorf("output %s is outside the output directory", p.info.OutputPath))
			return nil
		}
		if p.layout, err = inc.layoutChain(p.front); err != nil {
			collector.Add(errs.StageRender, path, err)
			return nil
		}
		pages = append(pages, p)
		return nil
	})
	if err != nil {
		return nil, errs.NewBuildError(errs.StageRender, inputDir, err)
	}

	owners := make(map[string]string)
	for _, p := range pages {
		if p.skip {
			continue
		}
		if other, ok := owners[p.info.OutputPath]; ok {
			collector.Add(errs.StageWrite, p.info.InputPath,
				fmt.Errorf("output %s is also written by %s", p.info.OutputPath, other))
			p.skip = true
			continue
		}
		owners[p.info.OutputPath] = p.info.InputPath
	}
	return pages, nil
}

func (b *Builder) buildPage(ctx context.Context, p *page, inc *includes, data PageData, collector *errs.ErrorCollector) {
	content, err := b.render(ctx, p, inc, data)
	if err != nil {
		collector.Add(errs.StageRender, p.info.InputPath, err)
		return
	}

	outputPath := filepath.Join(b.cfg.Dir.Output, p.info.OutputPath)
	for _, t := range b.registry.Transforms() {
		content, err = t.Transformer.Transform(ctx, content, outputPath)
		if err != nil {
			collector.Add(errs.StageTransform, p.info.InputPath, fmt.Errorf("%s: %w", t.Name, err))
			return
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		collector.Add(errs.StageWrite, outputPath, err)
		return
	}
	if err := os.WriteFile(outputPath, []byte(content), 0o644); err != nil {
		collector.Add(errs.StageWrite, outputPath, err)
		return
	}
	b.logger.Debug(ctx, "Wrote page", "input", p.info.InputPath, "output", outputPath)
}

func absPath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return filepath.Clean(p)
	}
	return abs
}

func containsPath(paths []string, p string) bool {
	for _, candidate := range paths {
		if candidate == p {
			return true
		}
	}
	return false
}
