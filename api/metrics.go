package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the counters exposed at /metrics. Each instance has its own
// registry so tests can build as many handlers as they like.
type Metrics struct {
	registry *prometheus.Registry

	BillsSaved    prometheus.Counter
	BillsRejected *prometheus.CounterVec
	BillsDeleted  prometheus.Counter
	Exports       prometheus.Counter
	Imports       *prometheus.CounterVec
	Clears        prometheus.Counter
	AutoBackups   *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		BillsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tractorpos",
			Name:      "bills_saved_total",
			Help:      "Bills saved to the history.",
		}),
		BillsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tractorpos",
			Name:      "bills_rejected_total",
			Help:      "Bill saves rejected by validation, by reason.",
		}, []string{"reason"}),
		BillsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tractorpos",
			Name:      "bills_deleted_total",
			Help:      "Bills removed from the history.",
		}),
		Exports: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tractorpos",
			Name:      "backup_exports_total",
			Help:      "Backup documents exported.",
		}),
		Imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tractorpos",
			Name:      "backup_imports_total",
			Help:      "Backup import attempts, by result.",
		}, []string{"result"}),
		Clears: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tractorpos",
			Name:      "data_clears_total",
			Help:      "Times all stored data was cleared.",
		}),
		AutoBackups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tractorpos",
			Name:      "auto_backups_total",
			Help:      "Scheduled backup runs, by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.BillsSaved,
		m.BillsRejected,
		m.BillsDeleted,
		m.Exports,
		m.Imports,
		m.Clears,
		m.AutoBackups,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
