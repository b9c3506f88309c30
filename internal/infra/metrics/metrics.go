package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Spok95/batch-weighing/internal/domain/process"
)

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	reg *prometheus.Registry

	orphans   prometheus.Counter
	weighings *prometheus.CounterVec
	closed    *prometheus.CounterVec
	backups   *prometheus.CounterVec
	pruned    prometheus.Counter
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		orphans: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "weighd_catalog_orphans_pruned_total",
			Help: "Materials deleted because no product referenced them anymore.",
		}),
		weighings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weighd_weighings_total",
			Help: "Finished material weighings by result.",
		}, []string{"result"}),
		closed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weighd_processes_closed_total",
			Help: "Closed weighing processes by outcome.",
		}, []string{"outcome"}),
		backups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weighd_backups_total",
			Help: "Backup runs by result.",
		}, []string{"result"}),
		pruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "weighd_backups_pruned_total",
			Help: "Old backup generations removed by retention.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weighd_http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "weighd_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.orphans, m.weighings, m.closed, m.backups, m.pruned, m.requests, m.latency,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) OrphansPruned(n int) { m.orphans.Add(float64(n)) }

func (m *Metrics) WeighingRecorded(result string) { m.weighings.WithLabelValues(result).Inc() }

func (m *Metrics) ProcessClosed(o process.Outcome) { m.closed.WithLabelValues(string(o)).Inc() }

func (m *Metrics) BackupFinished(ok bool, pruned int) {
	result := "ok"
	if !ok {
		result = "error"
	}
	m.backups.WithLabelValues(result).Inc()
	m.pruned.Add(float64(pruned))
}

func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(method, route).Observe(d.Seconds())
}
