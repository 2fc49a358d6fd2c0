package gateway

import (
	"net/http"
	"time"

	"github.com/flemzord/agentchat/internal/cron"
	"github.com/flemzord/agentchat/internal/provider"
)

// serviceName identifies this API in health responses.
const serviceName = "agentchat-api"

// HealthResponse is the JSON response for GET /api/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// handleHealth is a liveness probe. It does not depend on backend health.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Service: serviceName})
	}
}

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Uptime   int64                    `json:"uptime_seconds"`
	Sessions int                      `json:"sessions"`
	Metrics  MetricsSnapshot          `json:"metrics"`
	Backends []provider.BackendStatus `json:"backends"`
	Jobs     []cron.JobStatus         `json:"jobs"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := StatusResponse{
			Uptime:   int64(time.Since(g.startedAt) / time.Second),
			Sessions: g.deps.Sessions.Len(),
			Metrics:  g.metrics.Snapshot(),
			Backends: []provider.BackendStatus{},
			Jobs:     []cron.JobStatus{},
		}
		if g.deps.Backends != nil {
			resp.Backends = g.deps.Backends.Status()
		}
		if g.deps.Jobs != nil {
			resp.Jobs = g.deps.Jobs.Status()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
