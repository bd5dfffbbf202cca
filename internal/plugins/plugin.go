// Package plugins defines the hook points a site build exposes and the
// registry that collects them.
//
// A build is configured once at startup: plugins and the site configuration
// register transforms, template filters, data-file parsers, passthrough copies,
// watch targets and dev-server callbacks on a Registry. The build engine and
// the dev server then read the registry; nothing registers after that.
package plugins

import (
	"context"
	"net/http"
)

// Plugin is a bundle of registrations installed as a unit.
type Plugin interface {
	// Name returns the unique name of the plugin
	Name() string

	// Register installs the plugin's hooks on the registry
	Register(r *Registry) error
}

// Transformer rewrites rendered output before it is written.
type Transformer interface {
	// Transform returns the new content for outputPath. Implementations
	// must return content unchanged for outputs they do not handle.
	Transform(ctx context.Context, content, outputPath string) (string, error)
}

// TransformFunc adapts a function to Transformer.
type TransformFunc func(ctx context.Context, content, outputPath string) (string, error)

// Transform calls f.
func (f TransformFunc) Transform(ctx context.Context, content, outputPath string) (string, error) {
	return f(ctx, content, outputPath)
}

// DataParser turns the raw bytes of a data file into the value templates
// see under the file's base name.
type DataParser interface {
	ParseData(ctx context.Context, raw []byte) (any, error)
}

// DataParserFunc adapts a function to DataParser.
type DataParserFunc func(ctx context.Context, raw []byte) (any, error)

// ParseData calls f.
func (f DataParserFunc) ParseData(ctx context.Context, raw []byte) (any, error) {
	return f(ctx, raw)
}

// DevServer is the surface the development server exposes to ready
// callbacks.
type DevServer interface {
	// AddMiddleware mounts h for requests matching pattern that no built
	// file answers. "*" matches every path.
	AddMiddleware(pattern string, h http.Handler)
}

// ReadyFunc runs once the dev server is configured and before it accepts
// connections.
type ReadyFunc func(s DevServer) error

// Passthrough maps a source directory (or file) to a destination relative
// to the output root.
type Passthrough struct {
	Source string
	Dest   string
}
