package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/folio/internal/build"
	"github.com/conneroisu/folio/internal/config"
	errs "github.com/conneroisu/folio/internal/errors"
	"github.com/conneroisu/folio/internal/logging"
	"github.com/conneroisu/folio/internal/plugins"
)

type fakeBuilder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeBuilder) Build(context.Context) (*build.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &build.Result{}, nil
}

func (f *fakeBuilder) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeBuilder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func setupTestServer(t *testing.T, prefix string) (*Server, *plugins.Registry, *fakeBuilder) {
	t.Helper()
	root := t.TempDir()
	out := filepath.Join(root, "_site")
	writeFile(t, filepath.Join(out, "index.html"), "home")
	writeFile(t, filepath.Join(out, "about", "index.html"), "about")
	writeFile(t, filepath.Join(out, "css", "site.css"), "body{}")
	writeFile(t, filepath.Join(out, NotFoundPage), notFoundBody)

	cfg := &config.Config{
		PathPrefix: prefix,
		Dir: config.DirConfig{
			Input:  filepath.Join(root, "src"),
			Output: out,
		},
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 0},
		Watch:  config.WatchConfig{Debounce: 10 * time.Millisecond},
	}
	reg := plugins.NewRegistry()
	fb := &fakeBuilder{}
	return New(cfg, reg, fb, logging.Discard(), nil), reg, fb
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServeFilesUnderPrefix(t *testing.T) {
	s, _, _ := setupTestServer(t, "site")
	h := s.Handler()

	tests := []struct {
		path     string
		status   int
		body     string
		location string
	}{
		{"/site/", http.StatusOK, "home", ""},
		{"/site/about/", http.StatusOK, "about", ""},
		{"/site/css/site.css", http.StatusOK, "body{}", ""},
		{"/site/about", http.StatusMovedPermanently, "", "/site/about/"},
		{"/site", http.StatusMovedPermanently, "", "/site/"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := get(t, h, tt.path)
			assert.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				assert.True(t, strings.HasPrefix(rec.Body.String(), tt.body), rec.Body.String())
			}
			assert.Equal(t, tt.location, rec.Header().Get("Location"))
		})
	}
}

func TestServeWithoutPrefix(t *testing.T) {
	s, _, _ := setupTestServer(t, "")
	h := s.Handler()

	assert.True(t, strings.HasPrefix(get(t, h, "/").Body.String(), "home"))
	assert.True(t, strings.HasPrefix(get(t, h, "/about/").Body.String(), "about"))
}

func TestMissingFilesFallThroughToNotFound(t *testing.T) {
	s, reg, _ := setupTestServer(t, "site")
	reg.OnDevServerReady(func(ds plugins.DevServer) error {
		ds.AddMiddleware("*", NotFoundHandler(s.cfg.Dir.Output, logging.Discard(), nil))
		return nil
	})
	require.NoError(t, s.Ready())
	h := s.Handler()

	for _, path := range []string{"/site/missing", "/site/about/missing.html", "/outside-prefix"} {
		t.Run(path, func(t *testing.T) {
			rec := get(t, h, path)
			assert.Equal(t, http.StatusNotFound, rec.Code)
			assert.Equal(t, notFoundBody, rec.Body.String())
			assert.Empty(t, rec.Header().Get("Location"))
		})
	}

	// existing files never reach the middleware
	assert.True(t, strings.HasPrefix(get(t, h, "/site/").Body.String(), "home"))

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(method, "/site/missing", strings.NewReader("x")))
		assert.Equal(t, http.StatusNotFound, rec.Code, method)
		assert.Equal(t, notFoundBody, rec.Body.String(), method)
	}
}

func TestMissingFilesWithoutMiddleware(t *testing.T) {
	s, _, _ := setupTestServer(t, "")

	rec := get(t, s.Handler(), "/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEqual(t, notFoundBody, rec.Body.String())
}

func TestMiddlewareOrderAndPatterns(t *testing.T) {
	s, _, _ := setupTestServer(t, "")
	named := func(name string) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, name)
		})
	}
	s.AddMiddleware("/api/*", named("api"))
	s.AddMiddleware("/exact", named("exact"))
	s.AddMiddleware("*", named("all"))
	h := s.Handler()

	assert.Equal(t, "api", get(t, h, "/api/users").Body.String())
	assert.Equal(t, "api", get(t, h, "/api").Body.String())
	assert.Equal(t, "exact", get(t, h, "/exact").Body.String())
	assert.Equal(t, "all", get(t, h, "/exact/more").Body.String())
}

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		match   bool
	}{
		{"*", "/", true},
		{"*", "/any/thing", true},
		{"/docs/*", "/docs/a", true},
		{"/docs/*", "/docs", true},
		{"/docs/*", "/docsx", false},
		{"/a", "/a", true},
		{"/a", "/a/", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.match, matchPattern(tt.pattern, tt.path), "%s vs %s", tt.pattern, tt.path)
	}
}

func TestNonGetOnBuiltFileRejected(t *testing.T) {
	s, _, _ := setupTestServer(t, "")

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("x")))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestLiveReloadInjectedAtServeTime(t *testing.T) {
	s, _, _ := setupTestServer(t, "")
	page := filepath.Join(s.cfg.Dir.Output, "post", "index.html")
	writeFile(t, page, "<html><body><p>post</p></body></html>")
	h := s.Handler()

	rec := get(t, h, "/post/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "<html><body><p>post</p><script data-folio-reload>"))
	assert.True(t, strings.HasSuffix(rec.Body.String(), "</script></body></html>"))

	onDisk, err := os.ReadFile(page)
	require.NoError(t, err)
	assert.NotContains(t, string(onDisk), "data-folio-reload")

	assert.Equal(t, "body{}", get(t, h, "/css/site.css").Body.String())

	s.cfg.Mode = config.ModeProduction
	assert.Equal(t, "<html><body><p>post</p></body></html>", get(t, h, "/post/").Body.String())
}

func TestReadyError(t *testing.T) {
	s, reg, _ := setupTestServer(t, "")
	reg.OnDevServerReady(func(plugins.DevServer) error { return errors.New("no") })

	assert.ErrorContains(t, s.Ready(), "no")
}

func TestRebuildAndHealth(t *testing.T) {
	s, _, fb := setupTestServer(t, "")
	h := s.Handler()

	fb.setErr(errs.NewBuildError(errs.StageRender, "src/index.html", errors.New(`template: index.html:4: function "nope" not defined`)))
	assert.Error(t, s.Rebuild(context.Background()))

	var health map[string]interface{}
	require.NoError(t, json.Unmarshal(get(t, h, HealthPath).Body.Bytes(), &health))
	assert.Equal(t, "build_error", health["status"])
	assert.Contains(t, health["error"], `function "nope" not defined`)
	require.Len(t, health["errors"], 1)
	parsed := health["errors"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "src/index.html", parsed["file"])
	assert.EqualValues(t, 4, parsed["line"])

	page := get(t, h, ErrorsPath)
	assert.Equal(t, http.StatusOK, page.Code)
	assert.Contains(t, page.Body.String(), "src/index.html:4")
	assert.Contains(t, page.Body.String(), "function &#34;nope&#34; not defined")

	fb.setErr(nil)
	require.NoError(t, s.Rebuild(context.Background()))

	health = nil
	require.NoError(t, json.Unmarshal(get(t, h, HealthPath).Body.Bytes(), &health))
	assert.Equal(t, "healthy", health["status"])
	assert.NotContains(t, health, "errors")
	assert.Equal(t, 2, fb.callCount())
	assert.Contains(t, get(t, h, ErrorsPath).Body.String(), "No build errors")
}

func TestMetricsEndpoint(t *testing.T) {
	s, _, _ := setupTestServer(t, "")

	// no recorder configured
	assert.Equal(t, http.StatusNotFound, get(t, s.Handler(), MetricsPath).Code)
}

func TestWebSocketReload(t *testing.T) {
	s, _, fb := setupTestServer(t, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.hub.run(ctx)

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + WebSocketPath
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{srv.URL}},
	})
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return s.hub.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, s.Rebuild(ctx))

	readCtx, readCancel := context.WithTimeout(ctx, 2*time.Second)
	defer readCancel()
	_, data, err := conn.Read(readCtx)
	require.NoError(t, err)

	var msg UpdateMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "reload", msg.Type)
	assert.Empty(t, msg.Errors)

	fb.setErr(errs.NewBuildError(errs.StageData, "src/_data/papers.bib", errors.New("invalid bibtex: unexpected EOF")))
	require.Error(t, s.Rebuild(ctx))

	_, data, err = conn.Read(readCtx)
	require.NoError(t, err)
	msg = UpdateMessage{}
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "build_error", msg.Type)
	require.Len(t, msg.Errors, 1)
	assert.Equal(t, "src/_data/papers.bib", msg.Errors[0].File)
	assert.NotEmpty(t, msg.Errors[0].Suggestion)
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	s, _, _ := setupTestServer(t, "")
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + WebSocketPath
	_, resp, err := websocket.Dial(context.Background(), wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{"http://evil.example.com"}},
	})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		name     string
		origin   string
		host     string
		expected bool
	}{
		{"same host", "http://example.test:8080", "example.test:8080", true},
		{"localhost other port", "http://localhost:3000", "127.0.0.1:8080", true},
		{"loopback", "https://127.0.0.1:9999", "localhost:8080", true},
		{"foreign", "http://malicious.com", "localhost:8080", false},
		{"missing", "", "localhost:8080", false},
		{"javascript scheme", "javascript:alert(1)", "localhost:8080", false},
		{"file scheme", "file:///etc/passwd", "localhost:8080", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, WebSocketPath, nil)
			r.Host = tt.host
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.expected, checkOrigin(r))
		})
	}
}

func TestStartAndShutdown(t *testing.T) {
	s, reg, fb := setupTestServer(t, "")
	require.NoError(t, os.MkdirAll(s.cfg.Dir.Input, 0o755))
	readyCalled := false
	reg.OnDevServerReady(func(plugins.DevServer) error {
		readyCalled = true
		return nil
	})

	addr, err := s.Listen()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr.String() + "/")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	assert.True(t, readyCalled)
	assert.Equal(t, 1, fb.callCount())

	// a source change triggers a rebuild
	writeFile(t, filepath.Join(s.cfg.Dir.Input, "index.html"), "changed")
	assert.Eventually(t, func() bool { return fb.callCount() >= 2 }, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
	assert.NoError(t, s.Shutdown(context.Background()))
}
