package web

import (
	"context"
	"net/http"
	"time"

	"github.com/JonMunkholm/txnimport/internal/core"
	"github.com/JonMunkholm/txnimport/internal/logging"
)

const healthCheckTimeout = 2 * time.Second

type healthResponse struct {
	Status  string                    `json:"status"`
	Imports *core.ImportLimiterStatus `json:"imports,omitempty"`
}

// handleHealth reports liveness, database reachability and import slot usage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if l := s.service.Limiter(); l != nil {
		status := l.Status()
		resp.Imports = &status
	}

	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		if err := s.health.Ping(ctx); err != nil {
			logging.FromContext(r.Context()).Error("health check failed", "error", err)
			resp.Status = "unavailable"
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
