package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics counts protocol operations by outcome. Each Server owns its own
// prometheus registry so multiple instances can coexist in one process.
type metrics struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lomasi",
		Name:      "operations_total",
		Help:      "Protocol operations by operation and result kind.",
	}, []string{"operation", "result"})
	registry.MustRegister(operations)
	return &metrics{
		registry:   registry,
		operations: operations,
	}
}

func (m *metrics) observe(operation, result string) {
	m.operations.WithLabelValues(operation, result).Inc()
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
