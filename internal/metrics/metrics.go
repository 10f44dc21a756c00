// Package metrics exposes Prometheus instrumentation for the server and
// the simulation engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Simulation metrics
	backtestsTotal   *prometheus.CounterVec
	backtestDuration prometheus.Histogram
	tradesExecuted   *prometheus.CounterVec
	stopLossHits     prometheus.Counter
	breakerHalts     prometheus.Counter
	wsClients        prometheus.Gauge
	loadedSymbols    prometheus.Gauge
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
		),
	}

	reg.MustRegister(r.httpRequestsTotal)
	reg.MustRegister(r.httpRequestDuration)
	reg.MustRegister(r.httpRequestsInFlight)

	r.backtestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aegis_backtests_total",
			Help: "Total number of backtests run",
		},
		[]string{"status"},
	)
	r.backtestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aegis_backtest_duration_seconds",
			Help:    "Backtest duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
		},
	)
	r.tradesExecuted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aegis_trades_executed_total",
			Help: "Total number of simulated trades executed",
		},
		[]string{"side"},
	)
	r.stopLossHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "aegis_stop_loss_hits_total",
			Help: "Total number of stop-loss exits",
		},
	)
	r.breakerHalts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "aegis_circuit_breaker_halts_total",
			Help: "Total number of circuit breaker halts",
		},
	)
	r.wsClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "aegis_websocket_clients",
			Help: "Number of connected WebSocket clients",
		},
	)
	r.loadedSymbols = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "aegis_loaded_symbols",
			Help: "Number of symbols loaded in the bar store",
		},
	)

	reg.MustRegister(r.backtestsTotal)
	reg.MustRegister(r.backtestDuration)
	reg.MustRegister(r.tradesExecuted)
	reg.MustRegister(r.stopLossHits)
	reg.MustRegister(r.breakerHalts)
	reg.MustRegister(r.wsClients)
	reg.MustRegister(r.loadedSymbols)

	return r
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	r.httpRequestsTotal.WithLabelValues(method, path, statusToString(status)).Inc()
	r.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	r.httpRequestsInFlight.Dec()
}

// RecordBacktest records a backtest completion.
func (r *Registry) RecordBacktest(status string, duration float64) {
	r.backtestsTotal.WithLabelValues(status).Inc()
	r.backtestDuration.Observe(duration)
}

// RecordTrade records a simulated trade execution.
func (r *Registry) RecordTrade(side string) {
	r.tradesExecuted.WithLabelValues(side).Inc()
}

// RecordStopLoss records a stop-loss exit.
func (r *Registry) RecordStopLoss() {
	r.stopLossHits.Inc()
}

// RecordBreakerHalt records a circuit breaker halt.
func (r *Registry) RecordBreakerHalt() {
	r.breakerHalts.Inc()
}

// SetWSClients sets the connected WebSocket client count.
func (r *Registry) SetWSClients(n int) {
	r.wsClients.Set(float64(n))
}

// SetLoadedSymbols sets the bar store symbol count.
func (r *Registry) SetLoadedSymbols(n int) {
	r.loadedSymbols.Set(float64(n))
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
