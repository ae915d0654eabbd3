// Package metrics exposes Prometheus collectors for DDL generation.
//
// All collectors live on a private registry so tests and multiple servers in
// one process never collide on the default registry.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/ddlgen/internal/ddl"
)

const (
	statusOK          = "ok"
	statusUnsupported = "unsupported"
	statusError       = "error"
)

// Recorder holds the generation collectors.
type Recorder struct {
	reg *prometheus.Registry

	renders        *prometheus.CounterVec   // ddlgen_renders_total
	renderDuration *prometheus.HistogramVec // ddlgen_render_duration_seconds
	requests       *prometheus.CounterVec   // ddlgen_requests_total
	columns        prometheus.Histogram     // ddlgen_columns_per_request
}

// New constructs a Recorder with process and Go runtime collectors attached.
func New() *Recorder {
	reg := prometheus.NewRegistry()

	r := &Recorder{
		reg: reg,
		renders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ddlgen_renders_total",
				Help: "Rendered DDL statements, partitioned by database type and status.",
			},
			[]string{"database_type", "status"},
		),
		renderDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ddlgen_render_duration_seconds",
				Help:    "Time spent inferring types and rendering one dialect.",
				Buckets: prometheus.ExponentialBuckets(0.00001, 4, 8),
			},
			[]string{"database_type"},
		),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ddlgen_requests_total",
				Help: "Generation requests, partitioned by outcome (ok, invalid_input, error).",
			},
			[]string{"outcome"},
		),
		columns: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ddlgen_columns_per_request",
			Help:    "Number of columns extracted per successful request.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}

	reg.MustRegister(
		r.renders,
		r.renderDuration,
		r.requests,
		r.columns,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ObserveRender implements ddl.Observer.
func (r *Recorder) ObserveRender(databaseType string, elapsed time.Duration, err error) {
	status := statusOK
	switch {
	case errors.Is(err, ddl.ErrUnsupportedDatabaseType):
		status = statusUnsupported
		// Unknown keys share one label value.
		databaseType = "unknown"
	case err != nil:
		status = statusError
	}
	r.renders.WithLabelValues(databaseType, status).Inc()
	r.renderDuration.WithLabelValues(databaseType).Observe(elapsed.Seconds())
}

// ObserveRequest counts one generation request and, on success, its width.
func (r *Recorder) ObserveRequest(outcome string, columns int) {
	r.requests.WithLabelValues(outcome).Inc()
	if columns > 0 {
		r.columns.Observe(float64(columns))
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}
