// Package api exposes the dashboard surface of the overlay: identity
// overrides, voice-platform credentials, engine status, metrics and the
// websocket endpoint the display layer connects to.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vaccie/valoverlay-discord/internal/adapters/settings"
	"github.com/vaccie/valoverlay-discord/pkg/metrics"
)

// Engine reports the correlation loop's current state.
type Engine interface {
	State() string
	SessionReady() bool
}

// Hub is the display-client endpoint plus its population count.
type Hub interface {
	http.Handler
	ClientCount() int
}

// Settings is the slice of the settings store the dashboard needs.
type Settings interface {
	Overrides() (map[string]string, error)
	SaveOverrides(map[string]string) error
	Credentials() (settings.Credentials, error)
	SaveCredentials(settings.Credentials) error
}

type Server struct {
	engine   Engine
	hub      Hub
	settings Settings
}

// NewRouter wires the dashboard routes.
func NewRouter(engine Engine, hub Hub, st Settings) http.Handler {
	s := &Server{engine: engine, hub: hub, settings: st}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestMetrics)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	r.Get("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}).ServeHTTP)
	r.Get("/ws", hub.ServeHTTP)

	r.Route("/api", func(api chi.Router) {
		api.Get("/mapping", s.handleGetMapping)
		api.Post("/mapping", s.handlePostMapping)
		api.Get("/config", s.handleGetConfig)
		api.Post("/config", s.handlePostConfig)
		api.Get("/status", s.handleStatus)
	})

	return r
}

// requestMetrics records per-route counters and latency.
func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		metrics.RecordHTTPRequest(route, r.Method, strconv.Itoa(ww.Status()))
		metrics.RecordHTTPRequestDuration(route, r.Method, float64(time.Since(start).Milliseconds()))
	})
}

type apiError struct {
	Error string `json:"error"`
}

func writeAPIError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, apiError{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
