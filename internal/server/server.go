// Package server implements the development server: it serves the built
// site under its path prefix, rebuilds on file changes, pushes reload
// messages over a WebSocket and hands requests for missing files to
// middleware registered by dev-server ready callbacks.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/conneroisu/folio/internal/build"
	"github.com/conneroisu/folio/internal/config"
	errs "github.com/conneroisu/folio/internal/errors"
	"github.com/conneroisu/folio/internal/logging"
	"github.com/conneroisu/folio/internal/metrics"
	"github.com/conneroisu/folio/internal/plugins"
	"github.com/conneroisu/folio/internal/version"
	"github.com/conneroisu/folio/internal/watcher"
)

const shutdownTimeout = 5 * time.Second

// Builder is the part of the build engine the server drives
type Builder interface {
	Build(ctx context.Context) (*build.Result, error)
}

type middleware struct {
	pattern string
	handler http.Handler
}

// Server is the development server
type Server struct {
	cfg        *config.Config
	registry   *plugins.Registry
	builder    Builder
	logger     logging.Logger
	metrics    *metrics.Recorder
	hub        *hub
	middleware []middleware
	lastErr    error
	lastBuild  time.Time
	mu         sync.RWMutex

	httpServer   *http.Server
	listener     net.Listener
	shutdownOnce sync.Once
}

// New creates a dev server. rec may be nil.
func New(cfg *config.Config, reg *plugins.Registry, builder Builder, logger logging.Logger, rec *metrics.Recorder) *Server {
	logger = logger.WithComponent("server")
	return &Server{
		cfg:      cfg,
		registry: reg,
		builder:  builder,
		logger:   logger,
		metrics:  rec,
		hub:      newHub(logger),
	}
}

// AddMiddleware implements plugins.DevServer. Middleware only sees
// requests that no built file answers. Patterns are "*" for every path,
// "/dir/*" for a subtree, or an exact path. The first match wins.
func (s *Server) AddMiddleware(pattern string, h http.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.middleware = append(s.middleware, middleware{pattern: pattern, handler: h})
}

func matchPattern(pattern, p string) bool {
	switch {
	case pattern == "*":
		return true
	case strings.HasSuffix(pattern, "/*"):
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(p, prefix) || p == strings.TrimSuffix(prefix, "/")
	default:
		return p == pattern
	}
}

// Ready runs the registered dev-server callbacks against s. The first
// failing callback aborts startup.
func (s *Server) Ready() error {
	for i, fn := range s.registry.ReadyFuncs() {
		if err := fn(s); err != nil {
			return fmt.Errorf("dev server ready callback %d: %w", i, err)
		}
	}
	return nil
}

// Handler returns the server's HTTP handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(WebSocketPath, s.handleWebSocket)
	mux.Handle(MetricsPath, s.metrics.Handler())
	mux.HandleFunc(HealthPath, s.handleHealth)
	mux.HandleFunc(ErrorsPath, s.handleErrors)
	mux.HandleFunc("/", s.handleSite)
	return s.logRequests(mux)
}

// handleSite serves files from the output directory under the path prefix
// and falls back to middleware for anything else. Only GET and HEAD reach
// built files; requests for missing files go to middleware whatever their
// method. In development, HTML responses carry the live reload client.
func (s *Server) handleSite(w http.ResponseWriter, r *http.Request) {
	if file, redirect, ok := s.resolve(r.URL.Path); ok {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if redirect {
			target := r.URL.Path + "/"
			if r.URL.RawQuery != "" {
				target += "?" + r.URL.RawQuery
			}
			http.Redirect(w, r, target, http.StatusMovedPermanently)
			return
		}
		if !s.cfg.IsProduction() && strings.HasSuffix(file, ".html") {
			s.serveWithReload(w, r, file)
			return
		}
		http.ServeFile(w, r, file)
		return
	}

	s.mu.RLock()
	chain := s.middleware
	s.mu.RUnlock()
	for _, m := range chain {
		if matchPattern(m.pattern, r.URL.Path) {
			m.handler.ServeHTTP(w, r)
			return
		}
	}
	http.NotFound(w, r)
}

// serveWithReload serves an HTML file with the live reload client
// injected. The file on disk is left untouched.
func (s *Server) serveWithReload(w http.ResponseWriter, r *http.Request, file string) {
	content, err := os.ReadFile(file)
	if err != nil {
		s.logger.Error(r.Context(), err, "Failed to read page", "path", file)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	page, err := LiveReloadTransform(r.Context(), string(content), file)
	if err != nil {
		s.logger.Warn(r.Context(), err, "Serving page without live reload", "path", file)
		page = string(content)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	http.ServeContent(w, r, filepath.Base(file), time.Time{}, strings.NewReader(page))
}

// resolve maps a URL path to a file in the output directory. redirect is
// set for directories requested without a trailing slash.
func (s *Server) resolve(urlPath string) (file string, redirect bool, ok bool) {
	prefix := "/"
	if p := strings.Trim(s.cfg.PathPrefix, "/"); p != "" {
		prefix = "/" + p + "/"
	}
	if urlPath+"/" == prefix {
		return "", true, true
	}
	if !strings.HasPrefix(urlPath, prefix) {
		return "", false, false
	}

	rel := path.Clean("/" + strings.TrimPrefix(urlPath, prefix))
	file = filepath.Join(s.cfg.Dir.Output, filepath.FromSlash(rel))

	info, err := os.Stat(file)
	if err != nil {
		return "", false, false
	}
	if info.IsDir() {
		index := filepath.Join(file, "index.html")
		if _, err := os.Stat(index); err != nil {
			return "", false, false
		}
		if !strings.HasSuffix(urlPath, "/") {
			return "", true, true
		}
		return index, false, true
	}
	return file, false, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	lastErr, lastBuild := s.lastErr, s.lastBuild
	s.mu.RUnlock()

	status := "healthy"
	health := map[string]interface{}{
		"version":    version.GetShortVersion(),
		"clients":    s.hub.count(),
		"last_build": lastBuild.UTC(),
		"timestamp":  time.Now().UTC(),
	}
	if lastErr != nil {
		status = "build_error"
		health["error"] = lastErr.Error()
		health["errors"] = errs.ParseBuildError(lastErr)
	}
	health["status"] = status

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(health); err != nil {
		s.logger.Warn(r.Context(), err, "Failed to encode health response")
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Unwrap lets http.ResponseController and the WebSocket upgrade reach the
// underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == WebSocketPath {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug(r.Context(), "Request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}

// handleErrors renders the last build failure as an HTML page for the
// live reload overlay.
func (s *Server) handleErrors(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	lastErr := s.lastErr
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	io.WriteString(w, errs.FormatErrorsForBrowser(errs.ParseBuildError(lastErr)))
}

// Rebuild runs a build and tells connected browsers about the outcome
func (s *Server) Rebuild(ctx context.Context) error {
	_, err := s.builder.Build(ctx)

	s.mu.Lock()
	s.lastErr = err
	s.lastBuild = time.Now()
	s.mu.Unlock()

	if err != nil {
		s.hub.publish(ctx, UpdateMessage{
			Type:      "build_error",
			Content:   err.Error(),
			Errors:    errs.ParseBuildError(err),
			Timestamp: time.Now(),
		})
		return err
	}
	s.metrics.IncReload()
	s.hub.publish(ctx, UpdateMessage{Type: "reload", Timestamp: time.Now()})
	return nil
}

func (s *Server) handleChanges(ctx context.Context, events []watcher.ChangeEvent) error {
	for _, event := range events {
		s.logger.Info(ctx, "File changed", "path", event.Path, "type", event.Type.String())
	}
	return s.Rebuild(ctx)
}

// watch starts a watcher over the input directory and the registered
// watch targets.
func (s *Server) watch(ctx context.Context) (*watcher.FileWatcher, error) {
	fw, err := watcher.NewFileWatcher(s.cfg.Watch.Debounce, s.logger)
	if err != nil {
		return nil, err
	}
	fw.AddFilter(watcher.NoGitFilter)
	fw.AddFilter(watcher.NoEditorTempFilter)
	fw.AddFilter(watcher.ExcludeDirFilter(s.cfg.Dir.Output))
	fw.AddHandler(s.handleChanges)

	targets := append([]string{s.cfg.Dir.Input}, s.registry.WatchTargets()...)
	for _, target := range targets {
		if err := fw.AddRecursive(target); err != nil {
			s.logger.Warn(ctx, err, "Failed to watch path", "path", target)
		}
	}

	if err := fw.Start(ctx); err != nil {
		fw.Stop()
		return nil, err
	}
	return fw, nil
}

// Listen binds the configured address. Port 0 picks a free port.
func (s *Server) Listen() (net.Addr, error) {
	addr := net.JoinHostPort(s.cfg.Server.Host, strconv.Itoa(s.cfg.Server.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = ln
	return ln.Addr(), nil
}

// Start runs the ready callbacks, an initial build, the watcher and the
// HTTP server, and blocks until ctx is cancelled or the server fails.
// A failing initial build is reported to the browser rather than
// stopping the server.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Ready(); err != nil {
		return err
	}

	if err := s.Rebuild(ctx); err != nil {
		s.logger.Warn(ctx, err, "Initial build failed; serving last output")
	}

	if s.listener == nil {
		if _, err := s.Listen(); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fw, err := s.watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer fw.Stop()

	go s.hub.run(ctx)

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(s.listener)
	}()

	s.logger.Info(ctx, "Dev server listening",
		"url", "http://"+s.listener.Addr().String()+"/"+strings.Trim(s.cfg.PathPrefix, "/"),
		"output", s.cfg.Dir.Output)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()
		return s.Shutdown(shutdownCtx)
	}
}

// Shutdown gracefully stops the HTTP server. It is safe to call more
// than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "Shutting down dev server")
		if s.httpServer != nil {
			err = s.httpServer.Shutdown(ctx)
		}
	})
	return err
}
