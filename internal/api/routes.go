package api

import (
	"net/http"

	"taxhist/internal/version"
)

// registerRoutes registers all API routes
func (s *Server) registerRoutes() {
	s.router.HandleFunc("/health", s.handleHealth)
	s.router.Handle("/metrics", metricsHandler())

	// Taxonomy history
	s.router.HandleFunc("/history/taxonomy", s.handleTaxonomyHistory)     // GET ?refresh=true
	s.router.HandleFunc("/history/taxonomy/reset", s.handleTaxonomyReset) // POST
	s.router.HandleFunc("/history/status", s.handleHistoryStatus)         // GET
	s.router.HandleFunc("/taxons/", s.handleTaxonHistory)                 // GET /taxons/:name/history
	s.router.HandleFunc("/disciplines/", s.handleDisciplineHistory)       // GET /disciplines/:name/history

	s.router.HandleFunc("/", s.handleRoot)
}

// handleRoot handles requests to the root path
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	if r.Method != http.MethodGet {
		MethodNotAllowed(w, http.MethodGet)
		return
	}

	response := map[string]interface{}{
		"name":    "Taxonomy History API",
		"version": version.Version,
		"endpoints": []string{
			"GET /health - Health check",
			"GET /history/taxonomy - Taxonomy change history (?refresh=true forces a rebuild)",
			"POST /history/taxonomy/reset - Delete the cached history",
			"GET /history/status - Cache state",
			"GET /taxons/:name/history - History of one entry",
			"GET /disciplines/:name/history - Changes touching one discipline",
			"GET /metrics - Prometheus metrics",
		},
	}

	WriteJSON(w, response, http.StatusOK)
}
