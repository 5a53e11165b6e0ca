package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine's Prometheus counters on a private registry. All methods
// are safe on a nil receiver so components can run without metrics.
type Metrics struct {
	registry *prometheus.Registry

	LedgerApplied   *prometheus.CounterVec
	LedgerNoops     *prometheus.CounterVec
	ReactorRuns     *prometheus.CounterVec
	FanoutWrites    *prometheus.CounterVec
	StoreOperations *prometheus.CounterVec
	SinkFailures    *prometheus.CounterVec
	HTTPRequests    *prometheus.CounterVec
	BusMessages     *prometheus.CounterVec
}

// NewMetrics creates the collector with the given namespace
func NewMetrics(namespace string) *Metrics {
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, labels)
	}

	m := &Metrics{
		registry:        prometheus.NewRegistry(),
		LedgerApplied:   counter("ledger_applied_total", "Counter adjustments applied", "counter"),
		LedgerNoops:     counter("ledger_noops_total", "Counter adjustments skipped by a failed precondition", "counter"),
		ReactorRuns:     counter("reactor_runs_total", "Change reactor invocations", "entity", "transition", "reactor", "status"),
		FanoutWrites:    counter("fanout_writes_total", "Denormalized view writes", "view", "op"),
		StoreOperations: counter("store_operations_total", "Key-value store operations", "operation", "status"),
		SinkFailures:    counter("sink_failures_total", "Notification sink failures", "sink"),
		HTTPRequests:    counter("http_requests_total", "HTTP requests", "method", "route", "status"),
		BusMessages:     counter("bus_messages_total", "Commands and queries handled", "bus", "type", "status"),
	}
	m.registry.MustRegister(
		m.LedgerApplied,
		m.LedgerNoops,
		m.ReactorRuns,
		m.FanoutWrites,
		m.StoreOperations,
		m.SinkFailures,
		m.HTTPRequests,
		m.BusMessages,
	)
	return m
}

// Registry exposes the private registry for exporters.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) CounterAdjusted(counter string, applied bool) {
	if m == nil {
		return
	}
	if applied {
		m.LedgerApplied.WithLabelValues(counter).Inc()
		return
	}
	m.LedgerNoops.WithLabelValues(counter).Inc()
}

func (m *Metrics) ReactorRan(entity, transition, reactor string, err error) {
	if m == nil {
		return
	}
	m.ReactorRuns.WithLabelValues(entity, transition, reactor, status(err)).Inc()
}

func (m *Metrics) FanoutWritten(view, op string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.FanoutWrites.WithLabelValues(view, op).Add(float64(n))
}

func (m *Metrics) StoreOperation(operation string, err error) {
	if m == nil {
		return
	}
	m.StoreOperations.WithLabelValues(operation, status(err)).Inc()
}

func (m *Metrics) SinkFailed(sink string) {
	if m == nil {
		return
	}
	m.SinkFailures.WithLabelValues(sink).Inc()
}

func (m *Metrics) HTTPRequest(method, route, code string) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, code).Inc()
}

func (m *Metrics) BusHandled(bus, messageType string, err error) {
	if m == nil {
		return
	}
	m.BusMessages.WithLabelValues(bus, messageType, status(err)).Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
