package controller

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus metric names.
const (
	MetricActiveSessions = "loadsurge_active_sessions"
	MetricOpenedTotal    = "loadsurge_sessions_opened_total"
	MetricClosedTotal    = "loadsurge_sessions_closed_total"
	MetricFailedTotal    = "loadsurge_sessions_failed_total"
	MetricInteractions   = "loadsurge_interactions_total"
	MetricErrorsTotal    = "loadsurge_errors_total"
	MetricMemoryMB       = "loadsurge_worker_memory_megabytes"
	MetricWorkerUp       = "loadsurge_worker_up"
	MetricLatency        = "loadsurge_operation_latency_milliseconds"
)

// Exporter publishes the View as Prometheus metrics. Values are read from
// the View at scrape time.
type Exporter struct {
	view *View

	active       *prometheus.Desc
	opened       *prometheus.Desc
	closed       *prometheus.Desc
	failed       *prometheus.Desc
	interactions *prometheus.Desc
	errors       *prometheus.Desc
	memory       *prometheus.Desc
	up           *prometheus.Desc
	latency      *prometheus.Desc
}

func NewExporter(view *View, runID string) *Exporter {
	constLabels := prometheus.Labels{}
	if runID != "" {
		constLabels["run_id"] = runID
	}
	worker := []string{"worker"}
	return &Exporter{
		view:         view,
		active:       prometheus.NewDesc(MetricActiveSessions, "Open sessions per worker.", worker, constLabels),
		opened:       prometheus.NewDesc(MetricOpenedTotal, "Sessions opened per worker.", worker, constLabels),
		closed:       prometheus.NewDesc(MetricClosedTotal, "Sessions closed per worker.", worker, constLabels),
		failed:       prometheus.NewDesc(MetricFailedTotal, "Sessions that failed to open per worker.", worker, constLabels),
		interactions: prometheus.NewDesc(MetricInteractions, "Successful interactions per worker.", worker, constLabels),
		errors:       prometheus.NewDesc(MetricErrorsTotal, "Connect and interaction errors per worker.", worker, constLabels),
		memory:       prometheus.NewDesc(MetricMemoryMB, "Resident memory of the worker process.", worker, constLabels),
		up:           prometheus.NewDesc(MetricWorkerUp, "1 while the worker is running.", worker, constLabels),
		latency:      prometheus.NewDesc(MetricLatency, "Latency percentiles per worker and operation.", []string{"worker", "op", "quantile"}, constLabels),
	}
}

func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{e.active, e.opened, e.closed, e.failed, e.interactions, e.errors, e.memory, e.up, e.latency} {
		ch <- d
	}
}

func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	for _, w := range e.view.Workers() {
		id := strconv.Itoa(w.ID)
		up := 1.0
		if w.Exited {
			up = 0
		}
		ch <- prometheus.MustNewConstMetric(e.up, prometheus.GaugeValue, up, id)
		if !w.HasSnapshot {
			continue
		}
		s := w.Snapshot
		ch <- prometheus.MustNewConstMetric(e.active, prometheus.GaugeValue, float64(s.Active), id)
		ch <- prometheus.MustNewConstMetric(e.opened, prometheus.CounterValue, float64(s.Opened), id)
		ch <- prometheus.MustNewConstMetric(e.closed, prometheus.CounterValue, float64(s.Closed), id)
		ch <- prometheus.MustNewConstMetric(e.failed, prometheus.CounterValue, float64(s.FailedToOpen), id)
		ch <- prometheus.MustNewConstMetric(e.interactions, prometheus.CounterValue, float64(s.Interactions), id)
		ch <- prometheus.MustNewConstMetric(e.errors, prometheus.CounterValue, float64(s.Errors), id)
		ch <- prometheus.MustNewConstMetric(e.memory, prometheus.GaugeValue, s.MemoryMB, id)
		for op, stats := range s.Latency {
			ch <- prometheus.MustNewConstMetric(e.latency, prometheus.GaugeValue, stats.P50Ms, id, string(op), "0.5")
			ch <- prometheus.MustNewConstMetric(e.latency, prometheus.GaugeValue, stats.P90Ms, id, string(op), "0.9")
			ch <- prometheus.MustNewConstMetric(e.latency, prometheus.GaugeValue, stats.P99Ms, id, string(op), "0.99")
		}
	}
}

// MetricsServer serves an Exporter over HTTP.
type MetricsServer struct {
	server *http.Server
	ln     net.Listener
	errc   chan error
}

// StartMetricsServer listens on addr and serves /metrics and /health.
func StartMetricsServer(addr string, exporter *Exporter) (*MetricsServer, error) {
	registry := prometheus.NewRegistry()
	if err := registry.Register(exporter); err != nil {
		return nil, fmt.Errorf("register exporter: %w", err)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("starting metrics server: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	s := &MetricsServer{
		server: &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second},
		ln:     ln,
		errc:   make(chan error, 1),
	}
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.errc <- err
		}
		close(s.errc)
	}()
	return s, nil
}

// Addr returns the address the server listens on.
func (s *MetricsServer) Addr() string {
	return s.ln.Addr().String()
}

// Shutdown stops the server and returns any serve error.
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	return <-s.errc
}
