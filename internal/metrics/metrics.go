// Package metrics exposes Prometheus metrics for the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Config struct {
	Enabled bool
	Path    string
	Version string
}

// Provider owns the registry every collector of this service lives in.
type Provider struct {
	reg *prometheus.Registry

	pagesServed      *prometheus.CounterVec
	recordsReturned  prometheus.Histogram
	cursorsRejected  *prometheus.CounterVec
	sourceDuration   prometheus.Histogram
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	syncedDatasets   *prometheus.CounterVec
	summaryCacheHits *prometheus.CounterVec
}

func Init(cfg Config) *Provider {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	f := promauto.With(reg)

	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	f.NewGaugeVec(prometheus.GaugeOpts{
		Name: "app_build_info",
		Help: "Build info for this binary (value is always 1).",
	}, []string{"version"}).WithLabelValues(version).Set(1)

	return &Provider{
		reg: reg,
		pagesServed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "datacube_search_pages_total",
			Help: "Search pages served, by position in the result set.",
		}, []string{"page", "last"}),
		recordsReturned: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "datacube_search_page_records",
			Help:    "Records returned per page.",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),
		cursorsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "datacube_search_cursor_rejected_total",
			Help: "Pagination cursors rejected, by reason.",
		}, []string{"reason"}),
		sourceDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "datacube_record_source_query_seconds",
			Help:    "Latency of record source queries.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"method", "route"}),
		syncedDatasets: f.NewCounterVec(prometheus.CounterOpts{
			Name: "datacube_sync_datasets_total",
			Help: "Datasets ingested from upstream providers.",
		}, []string{"provider", "outcome"}),
		summaryCacheHits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "datacube_summary_cache_results_total",
			Help: "Product summary cache results by outcome.",
		}, []string{"outcome"}),
	}
}

func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{})
}

func (p *Provider) Registerer() prometheus.Registerer { return p.reg }

// All observers below are no-ops on a nil Provider so components can be
// built without metrics in tests.

func (p *Provider) ObservePage(first bool, records int, last bool) {
	if p == nil {
		return
	}
	page := "next"
	if first {
		page = "first"
	}
	p.pagesServed.WithLabelValues(page, strconv.FormatBool(last)).Inc()
	p.recordsReturned.Observe(float64(records))
}

func (p *Provider) ObserveCursorRejected(reason string) {
	if p == nil {
		return
	}
	p.cursorsRejected.WithLabelValues(reason).Inc()
}

func (p *Provider) ObserveSourceQuery(d time.Duration) {
	if p == nil {
		return
	}
	p.sourceDuration.Observe(d.Seconds())
}

func (p *Provider) ObserveHTTP(method, route string, status int, d time.Duration) {
	if p == nil {
		return
	}
	p.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	p.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (p *Provider) ObserveSync(provider string, count int, err error) {
	if p == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	p.syncedDatasets.WithLabelValues(provider, outcome).Add(float64(count))
}

func (p *Provider) ObserveSummaryCache(hit bool) {
	if p == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	p.summaryCacheHits.WithLabelValues(outcome).Inc()
}
