package api

import (
	"net/http"
	"strconv"
	"strings"

	"taxhist/internal/history"
	"taxhist/internal/historycache"
)

// unavailableMessage accompanies empty filtered results while no history has
// been computed yet.
const unavailableMessage = "Taxonomy history cache not available. Please try again in a moment."

// EntryHistoryResponse is the history of one entry.
type EntryHistoryResponse struct {
	Entries            []history.HistoryEntry `json:"entries"`
	Taxon              string                 `json:"taxon"`
	Query              string                 `json:"query"`
	TotalCommits       int                    `json:"totalCommits"`
	CommitsWithChanges int                    `json:"commitsWithChanges"`
	FromCache          bool                   `json:"fromCache"`
	CacheAgeMs         int64                  `json:"cacheAgeMs"`
	Message            string                 `json:"message,omitempty"`
}

// DisciplineHistoryResponse lists changes touching one discipline.
type DisciplineHistoryResponse struct {
	Entries            []history.HistoryEntry `json:"entries"`
	Discipline         string                 `json:"discipline"`
	TotalCommits       int                    `json:"totalCommits"`
	CommitsWithChanges int                    `json:"commitsWithChanges"`
	FromCache          bool                   `json:"fromCache"`
	CacheAgeMs         int64                  `json:"cacheAgeMs"`
	Message            string                 `json:"message,omitempty"`
}

// ResetResponse is returned by the reset endpoint.
type ResetResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// handleTaxonomyHistory handles GET /history/taxonomy
func (s *Server) handleTaxonomyHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowed(w, http.MethodGet)
		return
	}

	force, err := parseRefresh(r)
	if err != nil {
		BadRequest(w, "Invalid refresh parameter")
		return
	}

	res, err := s.history.History(r.Context(), force)
	if err != nil {
		WriteTaxError(w, err)
		return
	}
	WriteJSON(w, res, http.StatusOK)
}

// handleTaxonomyReset handles POST /history/taxonomy/reset
func (s *Server) handleTaxonomyReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		MethodNotAllowed(w, http.MethodPost)
		return
	}

	if err := s.history.Reset(r.Context()); err != nil {
		WriteTaxError(w, err)
		return
	}
	WriteJSON(w, ResetResponse{
		Success: true,
		Message: "History cache deleted. It will be rebuilt on the next request.",
	}, http.StatusOK)
}

// handleHistoryStatus handles GET /history/status
func (s *Server) handleHistoryStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowed(w, http.MethodGet)
		return
	}
	WriteJSON(w, s.history.Status(), http.StatusOK)
}

// handleTaxonHistory handles GET /taxons/:name/history
func (s *Server) handleTaxonHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowed(w, http.MethodGet)
		return
	}

	name, ok := historyPathParam(r.URL.Path, "/taxons/")
	if !ok {
		http.NotFound(w, r)
		return
	}

	res, err := s.history.History(r.Context(), false)
	if err != nil {
		WriteTaxError(w, err)
		return
	}

	resp := EntryHistoryResponse{
		Entries: []history.HistoryEntry{},
		Taxon:   strings.TrimSpace(name),
		Query:   name,
	}
	if !res.Available() {
		resp.Message = unavailableMessage
		WriteJSON(w, resp, http.StatusOK)
		return
	}

	matched, entries := history.FilterByEntryName(res.Entries, res.Record.InitialCommit, name)
	if entries != nil {
		resp.Entries = entries
	}
	resp.Taxon = matched
	resp.TotalCommits = res.TotalCommits
	resp.CommitsWithChanges = len(resp.Entries)
	resp.FromCache = res.FromCache
	resp.CacheAgeMs = res.CacheAgeMs
	WriteJSON(w, resp, http.StatusOK)
}

// handleDisciplineHistory handles GET /disciplines/:name/history
func (s *Server) handleDisciplineHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowed(w, http.MethodGet)
		return
	}

	discipline, ok := historyPathParam(r.URL.Path, "/disciplines/")
	if !ok {
		http.NotFound(w, r)
		return
	}

	res, err := s.history.History(r.Context(), false)
	if err != nil {
		WriteTaxError(w, err)
		return
	}

	resp := DisciplineHistoryResponse{
		Entries:    []history.HistoryEntry{},
		Discipline: discipline,
	}
	if !res.Available() {
		resp.Message = unavailableMessage
		WriteJSON(w, resp, http.StatusOK)
		return
	}

	if entries := history.FilterByDiscipline(res.Entries, discipline); entries != nil {
		resp.Entries = entries
	}
	resp.TotalCommits = res.TotalCommits
	resp.CommitsWithChanges = len(resp.Entries)
	resp.FromCache = res.FromCache
	resp.CacheAgeMs = res.CacheAgeMs
	WriteJSON(w, resp, http.StatusOK)
}

// historyPathParam extracts :name from prefix + ":name/history".
func historyPathParam(path, prefix string) (string, bool) {
	rest := strings.TrimPrefix(path, prefix)
	if rest == path {
		return "", false
	}
	name, ok := strings.CutSuffix(rest, "/history")
	if !ok || name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return name, true
}

func parseRefresh(r *http.Request) (bool, error) {
	v := r.URL.Query().Get("refresh")
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}

var _ HistoryService = (*historycache.Service)(nil)
