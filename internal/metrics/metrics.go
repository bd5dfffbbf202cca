// Package metrics exposes build and dev-server counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promcollect "github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "folio"

// Recorder records build outcomes and dev-server responses.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry      *prom.Registry
	builds        prom.Counter
	buildFailures *prom.CounterVec
	buildDuration prom.Histogram
	pagesWritten  prom.Gauge
	notFound      prom.Counter
	reloads       prom.Counter
}

// NewRecorder creates a recorder with its own registry, including the Go
// runtime and process collectors.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prom.NewRegistry(),
		builds: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "builds_total",
			Help:      "Total site builds attempted",
		}),
		buildFailures: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "build_failures_total",
			Help:      "Failed site builds by stage",
		}, []string{"stage"}),
		buildDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Total build duration",
			Buckets:   prom.DefBuckets,
		}),
		pagesWritten: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "last_build_pages",
			Help:      "Pages written by the most recent successful build",
		}),
		notFound: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "devserver_not_found_total",
			Help:      "Requests answered with the prebuilt 404 page",
		}),
		reloads: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "devserver_reloads_total",
			Help:      "Live reload broadcasts sent to browsers",
		}),
	}

	r.registry.MustRegister(r.builds, r.buildFailures, r.buildDuration, r.pagesWritten, r.notFound, r.reloads)
	r.registry.MustRegister(promcollect.NewGoCollector(), promcollect.NewProcessCollector(promcollect.ProcessCollectorOpts{}))
	return r
}

// ObserveBuild records one finished build. stage is empty on success.
func (r *Recorder) ObserveBuild(d time.Duration, pages int, stage string) {
	if r == nil {
		return
	}
	r.builds.Inc()
	r.buildDuration.Observe(d.Seconds())
	if stage != "" {
		r.buildFailures.WithLabelValues(stage).Inc()
		return
	}
	r.pagesWritten.Set(float64(pages))
}

// IncNotFound counts a 404 page response
func (r *Recorder) IncNotFound() {
	if r == nil {
		return
	}
	r.notFound.Inc()
}

// IncReload counts a live reload broadcast
func (r *Recorder) IncReload() {
	if r == nil {
		return
	}
	r.reloads.Inc()
}

// Handler serves the registry in the Prometheus text format
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
