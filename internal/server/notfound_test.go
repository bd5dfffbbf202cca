package server

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/folio/internal/logging"
	"github.com/conneroisu/folio/internal/metrics"
)

const notFoundBody = "<!doctype html><title>Not found</title><p>Nothing here.</p>\n"

func TestNotFoundHandler(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, NotFoundPage), []byte(notFoundBody), 0o644))
	handler := NotFoundHandler(dir, logging.Discard(), nil)

	for _, path := range []string{"/", "/missing", "/deep/missing/page.html", "/site/x?y=1"} {
		t.Run(path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

			assert.Equal(t, http.StatusNotFound, rec.Code)
			assert.Equal(t, notFoundBody, rec.Body.String())
			assert.Empty(t, rec.Header().Get("Location"))
		})
	}
}

func TestNotFoundHandlerPicksUpRebuilds(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, NotFoundPage)
	require.NoError(t, os.WriteFile(page, []byte("old"), 0o644))
	handler := NotFoundHandler(dir, logging.Discard(), nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/a", nil))
	assert.Equal(t, "old", rec.Body.String())

	require.NoError(t, os.WriteFile(page, []byte("new"), 0o644))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/a", nil))
	assert.Equal(t, "new", rec.Body.String())
}

func TestNotFoundHandlerMissingPage(t *testing.T) {
	handler := NotFoundHandler(t.TempDir(), logging.Discard(), nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/anything", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), NotFoundPage)
}

func TestNotFoundHandlerCounts(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, NotFoundPage), []byte("x"), 0o644))
	recorder := metrics.NewRecorder()
	handler := NotFoundHandler(dir, logging.Discard(), recorder)

	for i := 0; i < 3; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
	}

	srv := httptest.NewServer(recorder.Handler())
	defer srv.Close()
	assert.NoError(t, testutil.ScrapeAndCompare(srv.URL, strings.NewReader(`
# HELP folio_devserver_not_found_total Requests answered with the prebuilt 404 page
# TYPE folio_devserver_not_found_total counter
folio_devserver_not_found_total 3
`), "folio_devserver_not_found_total"))
}
