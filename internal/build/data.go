package build

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	errs "github.com/conneroisu/folio/internal/errors"
	"github.com/conneroisu/folio/internal/plugins"
)

// builtinParsers load the data formats every site understands. Registered
// extensions take precedence.
var builtinParsers = map[string]plugins.DataParser{
	".json": plugins.DataParserFunc(func(_ context.Context, raw []byte) (any, error) {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	}),
	".yaml": plugins.DataParserFunc(parseYAML),
	".yml":  plugins.DataParserFunc(parseYAML),
}

func parseYAML(_ context.Context, raw []byte) (any, error) {
	var v any
	if err := yaml.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

type dataFile struct {
	path   string
	key    string
	parser plugins.DataParser
}

// loadData parses every file directly under dir, keyed by base name
// without extension. Files load concurrently and the first failure cancels
// the rest. A missing directory yields no data.
func (b *Builder) loadData(ctx context.Context, dir string) (map[string]any, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}

	files := make([]dataFile, 0, len(entries))
	seen := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		parser, ok := b.registry.DataParser(ext)
		if !ok {
			parser, ok = builtinParsers[ext]
		}
		if !ok {
			b.logger.Debug(ctx, "Skipping data file with unknown extension", "file", entry.Name())
			continue
		}

		key := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		if other, dup := seen[key]; dup {
			return nil, fmt.Errorf("data files %s and %s both define %q", other, entry.Name(), key)
		}
		seen[key] = entry.Name()
		files = append(files, dataFile{path: filepath.Join(dir, entry.Name()), key: key, parser: parser})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].key < files[j].key })

	var (
		mu   sync.Mutex
		data = make(map[string]any, len(files))
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, f := range files {
		f := f
		g.Go(func() error {
			raw, err := os.ReadFile(f.path)
			if err != nil {
				return errs.NewBuildError(errs.StageData, f.path, err)
			}
			value, err := f.parser.ParseData(gctx, raw)
			if err != nil {
				return errs.NewBuildError(errs.StageData, f.path, err)
			}

			mu.Lock()
			data[f.key] = value
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return data, nil
}
