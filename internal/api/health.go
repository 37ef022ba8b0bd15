package api

import (
	"net/http"
	"time"

	"taxhist/internal/historycache"
	"taxhist/internal/version"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string             `json:"status"`
	Timestamp time.Time          `json:"timestamp"`
	Version   string             `json:"version"`
	Uptime    string             `json:"uptime"`
	Cache     historycache.State `json:"cache"`
}

// handleHealth reports liveness. The process is healthy whether or not a
// history record has been computed yet.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowed(w, http.MethodGet)
		return
	}

	WriteJSON(w, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   version.Info(),
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Cache:     s.history.Status().State,
	}, http.StatusOK)
}
