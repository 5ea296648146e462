package api

import (
	"context"
	"net/http"
	"time"
)

// healthCheckTimeout bounds each subsystem probe during a /health request.
const healthCheckTimeout = 2 * time.Second

// handleHealth reports liveness plus a readiness snapshot: registry
// counts, connected stream clients, and the outcome of every subsystem
// probe. A failing probe degrades the status but the endpoint still
// answers 200; optional subsystems being down must not fail liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	checks := make(map[string]string, len(s.checks))
	for _, check := range s.checks {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := check.Probe(ctx)
		cancel()
		if err != nil {
			status = "degraded"
			checks[check.Name] = err.Error()
			continue
		}
		checks[check.Name] = "ok"
	}

	counts := map[string]int{
		"items":      0,
		"things":     0,
		"rules":      0,
		"ws_clients": 0,
	}
	if s.items != nil {
		counts["items"] = s.items.Count()
	}
	if s.things != nil {
		counts["things"] = s.things.Count()
	}
	if s.rules != nil {
		counts["rules"] = s.rules.Count()
	}
	if s.hub != nil {
		counts["ws_clients"] = s.hub.ClientCount()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":         status,
		"version":        s.version,
		"uptime_seconds": int(time.Since(s.started).Seconds()),
		"counts":         counts,
		"checks":         checks,
	})
}
