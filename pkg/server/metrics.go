package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/crystal-mush/gorom/pkg/persist"
)

// Metrics holds the Prometheus collectors for one server. Each Metrics has
// its own registry. A nil *Metrics records nothing.
type Metrics struct {
	reg       *prometheus.Registry
	startTime time.Time

	connections    *prometheus.GaugeVec
	acceptedTotal  *prometheus.CounterVec
	closedTotal    *prometheus.CounterVec
	acceptErrors   prometheus.Counter
	ticksTotal     prometheus.Counter
	tickSeconds    prometheus.Histogram
	linesTotal     prometheus.Counter
	bytesSentTotal prometheus.Counter
	bytesRecvTotal prometheus.Counter
	persistTotal   *prometheus.CounterVec
	memwatchTotal  prometheus.Counter
	uptimeSeconds  prometheus.GaugeFunc
	memoryHeap     prometheus.GaugeFunc
	goroutines     prometheus.GaugeFunc
}

// NewMetrics creates and registers the server's metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		reg:       prometheus.NewRegistry(),
		startTime: time.Now(),
		connections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gorom_connections",
			Help: "Open connections by transport.",
		}, []string{"transport"}),
		acceptedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gorom_connections_accepted_total",
			Help: "Connections accepted since server start.",
		}, []string{"transport"}),
		closedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gorom_connections_closed_total",
			Help: "Connections closed since server start.",
		}, []string{"transport"}),
		acceptErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gorom_accept_errors_total",
			Help: "Failed accepts on any listener.",
		}),
		ticksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gorom_ticks_total",
			Help: "Loop iterations since server start.",
		}),
		tickSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gorom_tick_seconds",
			Help:    "Wall time of one loop iteration, including the readiness wait.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		linesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gorom_lines_dispatched_total",
			Help: "Input lines handed to the world.",
		}),
		bytesSentTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gorom_bytes_sent_total",
			Help: "Total bytes queued to clients.",
		}),
		bytesRecvTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gorom_bytes_received_total",
			Help: "Total bytes received from clients.",
		}),
		persistTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gorom_persist_results_total",
			Help: "Catalog load/save results by catalog, operation and status.",
		}, []string{"catalog", "op", "status"}),
		memwatchTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gorom_memwatch_divergences_total",
			Help: "Watched memory regions found changed.",
		}),
	}
	m.uptimeSeconds = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "gorom_uptime_seconds",
		Help: "Server uptime in seconds.",
	}, func() float64 { return time.Since(m.startTime).Seconds() })
	m.memoryHeap = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "gorom_memory_heap_bytes",
		Help: "Go heap memory allocated in bytes.",
	}, func() float64 {
		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)
		return float64(mem.HeapAlloc)
	})
	m.goroutines = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "gorom_goroutines",
		Help: "Number of active goroutines.",
	}, func() float64 { return float64(runtime.NumGoroutine()) })

	m.reg.MustRegister(
		m.connections,
		m.acceptedTotal,
		m.closedTotal,
		m.acceptErrors,
		m.ticksTotal,
		m.tickSeconds,
		m.linesTotal,
		m.bytesSentTotal,
		m.bytesRecvTotal,
		m.persistTotal,
		m.memwatchTotal,
		m.uptimeSeconds,
		m.memoryHeap,
		m.goroutines,
	)
	return m
}

// Registry returns the registry the metrics are registered with.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// PersistResult counts one catalog operation. Its signature matches the
// catalog manager's OnResult hook.
func (m *Metrics) PersistResult(catalog, op string, res persist.Result) {
	if m == nil {
		return
	}
	m.persistTotal.WithLabelValues(catalog, op, res.Status.String()).Inc()
}

func (m *Metrics) accepted(t Transport) {
	if m != nil {
		m.acceptedTotal.WithLabelValues(t.String()).Inc()
	}
}

func (m *Metrics) closed(t Transport) {
	if m != nil {
		m.closedTotal.WithLabelValues(t.String()).Inc()
	}
}

func (m *Metrics) acceptError() {
	if m != nil {
		m.acceptErrors.Inc()
	}
}

func (m *Metrics) line() {
	if m != nil {
		m.linesTotal.Inc()
	}
}

func (m *Metrics) sent(n int) {
	if m != nil {
		m.bytesSentTotal.Add(float64(n))
	}
}

func (m *Metrics) received(n int) {
	if m != nil {
		m.bytesRecvTotal.Add(float64(n))
	}
}

func (m *Metrics) divergences(n int) {
	if m != nil {
		m.memwatchTotal.Add(float64(n))
	}
}

// tick records one loop iteration and refreshes the connection gauges.
func (m *Metrics) tick(d time.Duration, conns []*Conn) {
	if m == nil {
		return
	}
	m.ticksTotal.Inc()
	m.tickSeconds.Observe(d.Seconds())
	var counts [len(transportNames)]int
	for _, c := range conns {
		counts[c.Transport]++
	}
	for t, n := range counts {
		m.connections.WithLabelValues(Transport(t).String()).Set(float64(n))
	}
}
