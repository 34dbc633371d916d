package api

import (
	"context"
	"net/http"

	"github.com/okian/judgeboard/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReadyChecker reports whether the service can serve traffic.
type ReadyChecker interface {
	Ready(ctx context.Context) error
}

// HealthHandler handles health, readiness and metrics requests.
type HealthHandler struct {
	ready   ReadyChecker
	metrics http.Handler
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(ready ReadyChecker) *HealthHandler {
	return &HealthHandler{
		ready:   ready,
		metrics: promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
	}
}

// HandleHealth handles GET /healthz requests with the Prometheus exposition.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.metrics.ServeHTTP(w, r)
}

// HandleMetrics handles GET /metrics requests.
func (h *HealthHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	h.metrics.ServeHTTP(w, r)
}

// HandleReady handles GET /readyz requests: 200 when storage answers a ping.
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	if err := h.ready.Ready(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
