// Package metrics exposes the node's Prometheus collectors.
//
// All recording methods are safe on a nil *Metrics so components can be
// constructed without instrumentation in tests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/muurk/climanode/internal/device"
)

const namespace = "climanode"

type Metrics struct {
	registry *prometheus.Registry

	commandsTotal     *prometheus.CounterVec
	backpressureTotal *prometheus.CounterVec
	lockTimeouts      *prometheus.CounterVec
	queueDepth        prometheus.Gauge
	resultsDropped    *prometheus.CounterVec
	actuatorState     *prometheus.GaugeVec
	override          *prometheus.GaugeVec
	temperature       prometheus.Gauge
	humidity          prometheus.Gauge
	sinkErrors        *prometheus.CounterVec
	wsClients         prometheus.Gauge
	cloudConnected    prometheus.Gauge
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

// New builds the collectors on a private registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands consumed by the dispatcher by origin, target and outcome.",
		}, []string{"origin", "target", "accepted"}),
		backpressureTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "command_backpressure_total",
			Help:      "Commands rejected because the queue stayed full.",
		}, []string{"origin"}),
		lockTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_lock_timeouts_total",
			Help:      "State store accesses that gave up waiting for the guard.",
		}, []string{"component"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "command_queue_depth",
			Help:      "Commands waiting in the queue.",
		}),
		resultsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_dropped_total",
			Help:      "Results not delivered to a slow subscriber.",
		}, []string{"subscriber"}),
		actuatorState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "actuator_state",
			Help:      "Last commanded output state (1 on, 0 off).",
		}, []string{"target"}),
		override: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "actuator_override",
			Help:      "Whether the actuator is under remote control.",
		}, []string{"target"}),
		temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "temperature_celsius",
			Help:      "Latest stored temperature.",
		}),
		humidity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "humidity_percent",
			Help:      "Latest stored relative humidity.",
		}),
		sinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telemetry_sink_errors_total",
			Help:      "Telemetry publish failures by sink.",
		}, []string{"sink"}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ui_websocket_clients",
			Help:      "Connected UI WebSocket clients.",
		}),
		cloudConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cloud_connected",
			Help:      "Cloud MQTT connection state (1 connected).",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request durations by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.commandsTotal,
		m.backpressureTotal,
		m.lockTimeouts,
		m.queueDepth,
		m.resultsDropped,
		m.actuatorState,
		m.override,
		m.temperature,
		m.humidity,
		m.sinkErrors,
		m.wsClients,
		m.cloudConnected,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WrapHandler records request count and latency for route.
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		if m != nil {
			m.httpRequests.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
			m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
	})
}

// ObserveResult records a dispatched command outcome.
func (m *Metrics) ObserveResult(r device.Result) {
	if m == nil {
		return
	}
	m.commandsTotal.WithLabelValues(r.Origin.String(), r.Target.String(), strconv.FormatBool(r.Accepted)).Inc()
	if r.Accepted && r.Target.Overridable() {
		m.SetActuatorState(r.Target, r.NewState)
	}
}

func (m *Metrics) Backpressure(origin device.Channel) {
	if m == nil {
		return
	}
	m.backpressureTotal.WithLabelValues(origin.String()).Inc()
}

func (m *Metrics) LockTimeout(component string) {
	if m == nil {
		return
	}
	m.lockTimeouts.WithLabelValues(component).Inc()
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

func (m *Metrics) ResultDropped(subscriber string) {
	if m == nil {
		return
	}
	m.resultsDropped.WithLabelValues(subscriber).Inc()
}

func (m *Metrics) SetOverride(id device.ActuatorID, on bool) {
	if m == nil {
		return
	}
	m.override.WithLabelValues(id.String()).Set(boolFloat(on))
}

func (m *Metrics) SetActuatorState(id device.ActuatorID, on bool) {
	if m == nil {
		return
	}
	m.actuatorState.WithLabelValues(id.String()).Set(boolFloat(on))
}

func (m *Metrics) ObserveReading(r device.Reading) {
	if m == nil {
		return
	}
	m.temperature.Set(r.Temperature)
	m.humidity.Set(r.Humidity)
}

func (m *Metrics) SinkError(sink string) {
	if m == nil {
		return
	}
	m.sinkErrors.WithLabelValues(sink).Inc()
}

func (m *Metrics) SetWebSocketClients(n int) {
	if m == nil {
		return
	}
	m.wsClients.Set(float64(n))
}

func (m *Metrics) SetCloudConnected(connected bool) {
	if m == nil {
		return
	}
	m.cloudConnected.Set(boolFloat(connected))
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
