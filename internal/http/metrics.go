package http

import (
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type appMetrics struct {
	started             time.Time
	transactionsCreated int64
	importsCommitted    int64
	chartRenders        int64
	chartCacheHits      int64
}

// metricsHandler exposes the server's counters on a registry of its own,
// so several servers can live in one process.
func (s *Server) metricsHandler() http.Handler {
	counter := func(name, help string, v *int64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{Name: name, Help: help},
			func() float64 { return float64(atomic.LoadInt64(v)) })
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, func() float64 { return float64(s.trace.GetMetrics().TotalRequests) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "http_request_duration_avg_microseconds",
			Help: "Average request duration",
		}, func() float64 { return float64(s.trace.GetMetrics().AverageResponseTime) }),
		counter("transactions_created_total", "Transactions added from the dashboard", &s.metrics.transactionsCreated),
		counter("imports_committed_total", "Rows submitted by import commits", &s.metrics.importsCommitted),
		counter("chart_renders_total", "Chart images rendered", &s.metrics.chartRenders),
		counter("chart_cache_hits_total", "Chart images served from cache", &s.metrics.chartCacheHits),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "sessions_active",
			Help: "Live browser sessions",
		}, func() float64 { return float64(s.sessions.Size()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "suspicious_requests_total",
			Help: "Requests flagged by the detector",
		}, func() float64 { return float64(s.detector.GetMetrics().SuspiciousRequests) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "rate_limit_hits_total",
			Help: "Requests refused by the rate limiter",
		}, func() float64 { return float64(s.limiter.GetMetrics().TotalHits) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "uptime_seconds",
			Help: "Seconds since start",
		}, func() float64 { return time.Since(s.metrics.started).Seconds() }),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		ErrorLog: slog.NewLogLogger(s.logger.Slog().Handler(), slog.LevelError),
	})
}
