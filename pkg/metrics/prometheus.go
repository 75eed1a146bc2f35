// Package metrics provides Prometheus metrics for the overlay correlation service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns all Prometheus collectors for the service.
type Manager struct {
	namespace        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Correlation loop
	cyclesTotal   prometheus.Counter
	cyclesSkipped prometheus.Counter
	cycleDuration prometheus.Histogram
	voiceTimeouts prometheus.Counter
	engineState   *prometheus.GaugeVec

	// Riot gateways
	gatewayRequests *prometheus.CounterVec
	gatewayLatency  *prometheus.HistogramVec
	tokenRefreshes  prometheus.Counter

	// Roster / matching
	rosterSize          prometheus.Gauge
	matchedParticipants prometheus.Gauge

	// Broadcast
	connectedClients prometheus.Gauge
	speakingEvents   prometheus.Counter
	speakingDropped  prometheus.Counter

	// Dashboard HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Global manager on a custom registry so default Go collectors stay out.
var globalManager *Manager                     //nolint:gochecknoglobals // singleton metrics manager
var customRegistry = prometheus.NewRegistry()  //nolint:gochecknoglobals // dedicated registry
func init() {                                  //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a metrics manager with the given options applied.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "overlay",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initialize()
	return m
}

func (m *Manager) initialize() {
	factory := promauto.With(m.registry)

	m.cyclesTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "cycles_total",
		Help:      "Total correlation cycles executed.",
	})
	m.cyclesSkipped = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "cycles_skipped_total",
		Help:      "Ticks skipped because a cycle was still in flight.",
	})
	m.cycleDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "cycle_duration_ms",
		Help:      "Correlation cycle duration in milliseconds.",
		Buckets:   m.histogramBuckets,
	})
	m.voiceTimeouts = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "voice_roster_timeouts_total",
		Help:      "Voice roster fetches that exceeded the cycle budget.",
	})
	m.engineState = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "engine_state",
		Help:      "Current engine state (1 for the active state, 0 otherwise).",
	}, []string{"state"})

	m.gatewayRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "gateway_requests_total",
		Help:      "Requests issued to the game client APIs by gateway and outcome.",
	}, []string{"gateway", "outcome"})
	m.gatewayLatency = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "gateway_request_duration_ms",
		Help:      "Gateway request duration in milliseconds.",
		Buckets:   m.histogramBuckets,
	}, []string{"gateway"})
	m.tokenRefreshes = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "token_refreshes_total",
		Help:      "Credential refreshes triggered by 401/403 responses.",
	})

	m.rosterSize = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "roster_size",
		Help:      "Participants in the last fetched match roster.",
	})
	m.matchedParticipants = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "matched_participants",
		Help:      "Voice participants resolved to a character in the last cycle.",
	})

	m.connectedClients = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "broadcast_clients",
		Help:      "Currently connected broadcast clients.",
	})
	m.speakingEvents = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "speaking_events_total",
		Help:      "Speaking start/stop events forwarded to the sink.",
	})
	m.speakingDropped = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "speaking_events_dropped_total",
		Help:      "Speaking events dropped due to queue backpressure.",
	})

	m.httpRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "http_requests_total",
		Help:      "Dashboard HTTP requests by endpoint, method and status.",
	}, []string{"endpoint", "method", "status"})
	m.httpRequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "http_request_duration_ms",
		Help:      "Dashboard HTTP request duration in milliseconds.",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method"})
}

// Engine state labels reported by UpdateEngineState.
var engineStates = []string{"idle", "active", "degraded"} //nolint:gochecknoglobals // fixed label set

// Package-level helpers on the global manager.

func RecordCycle(durationMs float64) {
	globalManager.cyclesTotal.Inc()
	globalManager.cycleDuration.Observe(durationMs)
}

func RecordCycleSkipped() {
	globalManager.cyclesSkipped.Inc()
}

func RecordVoiceTimeout() {
	globalManager.voiceTimeouts.Inc()
}

// UpdateEngineState sets the gauge for state to 1 and all others to 0.
func UpdateEngineState(state string) {
	for _, s := range engineStates {
		v := 0.0
		if s == state {
			v = 1.0
		}
		globalManager.engineState.WithLabelValues(s).Set(v)
	}
}

func RecordGatewayRequest(gateway, outcome string) {
	globalManager.gatewayRequests.WithLabelValues(gateway, outcome).Inc()
}

func RecordGatewayLatency(gateway string, durationMs float64) {
	globalManager.gatewayLatency.WithLabelValues(gateway).Observe(durationMs)
}

func RecordTokenRefresh() {
	globalManager.tokenRefreshes.Inc()
}

func UpdateRosterSize(n int) {
	globalManager.rosterSize.Set(float64(n))
}

func UpdateMatchedParticipants(n int) {
	globalManager.matchedParticipants.Set(float64(n))
}

func UpdateConnectedClients(n int) {
	globalManager.connectedClients.Set(float64(n))
}

func RecordSpeakingEvent() {
	globalManager.speakingEvents.Inc()
}

func RecordSpeakingDropped() {
	globalManager.speakingDropped.Inc()
}

func RecordHTTPRequest(endpoint, method, status string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
}

func RecordHTTPRequestDuration(endpoint, method string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method).Observe(durationMs)
}

// GetRegistry exposes the custom registry for the /metrics handler.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
