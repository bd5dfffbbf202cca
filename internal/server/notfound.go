package server

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/conneroisu/folio/internal/logging"
	"github.com/conneroisu/folio/internal/metrics"
)

// NotFoundPage is the prebuilt page served for unknown paths
const NotFoundPage = "404.html"

// NotFoundHandler answers every request with the bytes of
// <outputDir>/404.html and status 404. The file is read per request so a
// rebuild is picked up without restarting. It never redirects. If the page
// cannot be read the failure is logged and the request gets a 500 carrying
// the error text. rec may be nil.
func NotFoundHandler(outputDir string, logger logging.Logger, rec *metrics.Recorder) http.Handler {
	page := filepath.Join(outputDir, NotFoundPage)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		content, err := os.ReadFile(page)
		if err != nil {
			logger.Error(r.Context(), err, "Failed to read 404 page", "page", page, "path", r.URL.Path)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		rec.IncNotFound()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		if _, err := w.Write(content); err != nil {
			logger.Warn(r.Context(), err, "Failed to write 404 page", "path", r.URL.Path)
		}
	})
}
