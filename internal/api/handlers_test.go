package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"taxhist/internal/errors"
	"taxhist/internal/history"
	"taxhist/internal/historycache"
	"taxhist/internal/logging"
	"taxhist/internal/taxonomy"
)

type stubHistory struct {
	result *historycache.Result
	err    error
	forced []bool
	resets int
	status historycache.Status
}

func (s *stubHistory) History(ctx context.Context, force bool) (*historycache.Result, error) {
	s.forced = append(s.forced, force)
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *stubHistory) Reset(ctx context.Context) error {
	s.resets++
	return s.err
}

func (s *stubHistory) Status() historycache.Status {
	return s.status
}

func sampleResult() *historycache.Result {
	thermo := &taxonomy.Entry{Name: "Measure.Temperature", Disciplines: []string{"Thermodynamics"}}
	voltage := &taxonomy.Entry{Name: "Source.Voltage", Disciplines: []string{"Electrical"}}

	entries := []history.HistoryEntry{
		{
			Hash: "c3", Date: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			Changes: []history.TaxonChange{{Name: "Source.Voltage", Kind: history.ChangeAdded, New: voltage}},
		},
		{
			Hash: "c2", Date: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
			Changes: []history.TaxonChange{{Name: "Measure.Temperature", Kind: history.ChangeModified, Old: thermo, New: thermo}},
		},
	}
	rec := &history.Record{
		Version:            history.RecordVersion,
		Entries:            entries,
		Watermark:          "c1",
		InitialCommit:      &history.InitialSnapshot{Hash: "c1", EntryNames: []string{"Measure.Temperature"}},
		TotalCommits:       3,
		CommitsWithChanges: 2,
	}
	return &historycache.Result{
		Entries:            entries,
		TotalCommits:       3,
		CommitsWithChanges: 2,
		FromCache:          true,
		CacheAgeMs:         1000,
		Record:             rec,
	}
}

func pendingResult() *historycache.Result {
	return &historycache.Result{Entries: []history.HistoryEntry{}, Message: historycache.PendingMessage}
}

func newTestServer(t *testing.T, svc HistoryService) *Server {
	t.Helper()
	return NewServer(":0", svc, logging.NewDiscardLogger())
}

func do(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, &stubHistory{status: historycache.Status{State: historycache.StateFresh}})

	w := do(t, s, http.MethodGet, "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "healthy" || resp.Cache != historycache.StateFresh {
		t.Errorf("resp = %+v", resp)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected request ID header")
	}
}

func TestTaxonomyHistory(t *testing.T) {
	stub := &stubHistory{result: sampleResult()}
	s := newTestServer(t, stub)

	w := do(t, s, http.MethodGet, "/history/taxonomy")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp historycache.Result
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Entries) != 2 || resp.TotalCommits != 3 || !resp.FromCache {
		t.Errorf("resp = %+v", resp)
	}
	if len(stub.forced) != 1 || stub.forced[0] {
		t.Errorf("forced = %v, want a single non-forced read", stub.forced)
	}
}

func TestTaxonomyHistory_Refresh(t *testing.T) {
	stub := &stubHistory{result: sampleResult()}
	s := newTestServer(t, stub)

	if w := do(t, s, http.MethodGet, "/history/taxonomy?refresh=true"); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if len(stub.forced) != 1 || !stub.forced[0] {
		t.Errorf("forced = %v, want a forced read", stub.forced)
	}

	if w := do(t, s, http.MethodGet, "/history/taxonomy?refresh=maybe"); w.Code != http.StatusBadRequest {
		t.Errorf("invalid refresh status = %d, want 400", w.Code)
	}
}

func TestTaxonomyHistory_Pending(t *testing.T) {
	s := newTestServer(t, &stubHistory{result: pendingResult()})

	w := do(t, s, http.MethodGet, "/history/taxonomy")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 while processing", w.Code)
	}
	if !strings.Contains(w.Body.String(), "being processed") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestTaxonomyHistory_RepositoryUnavailable(t *testing.T) {
	s := newTestServer(t, &stubHistory{err: errors.NewRepositoryAccessError("git log failed", nil)})

	w := do(t, s, http.MethodGet, "/history/taxonomy?refresh=true")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestTaxonomyHistory_MethodNotAllowed(t *testing.T) {
	s := newTestServer(t, &stubHistory{result: sampleResult()})

	w := do(t, s, http.MethodPost, "/history/taxonomy")
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
}

func TestTaxonomyReset(t *testing.T) {
	stub := &stubHistory{result: sampleResult()}
	s := newTestServer(t, stub)

	if w := do(t, s, http.MethodGet, "/history/taxonomy/reset"); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want 405", w.Code)
	}

	w := do(t, s, http.MethodPost, "/history/taxonomy/reset")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp ResetResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || stub.resets != 1 {
		t.Errorf("resp = %+v, resets = %d", resp, stub.resets)
	}
}

func TestHistoryStatus(t *testing.T) {
	stub := &stubHistory{status: historycache.Status{State: historycache.StateStale, Entries: 7, Watermark: "abc"}}
	s := newTestServer(t, stub)

	w := do(t, s, http.MethodGet, "/history/status")
	var st historycache.Status
	if err := json.NewDecoder(w.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.State != historycache.StateStale || st.Entries != 7 || st.Watermark != "abc" {
		t.Errorf("status = %+v", st)
	}
}

func TestTaxonHistory(t *testing.T) {
	s := newTestServer(t, &stubHistory{result: sampleResult()})

	w := do(t, s, http.MethodGet, "/taxons/measure.temperature/history")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp EntryHistoryResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Taxon != "Measure.Temperature" || resp.Query != "measure.temperature" {
		t.Errorf("taxon = %q, query = %q", resp.Taxon, resp.Query)
	}
	// The modified change plus the synthesized initial addition, newest first.
	if len(resp.Entries) != 2 || resp.Entries[0].Hash != "c2" || resp.Entries[1].Hash != "c1" {
		t.Fatalf("entries = %+v", resp.Entries)
	}
	if resp.Entries[1].Changes[0].Kind != history.ChangeAdded {
		t.Errorf("last entry should be the initial addition, got %+v", resp.Entries[1].Changes)
	}
	if resp.CommitsWithChanges != 2 || resp.TotalCommits != 3 {
		t.Errorf("counts = %d/%d", resp.CommitsWithChanges, resp.TotalCommits)
	}
}

func TestTaxonHistory_Unavailable(t *testing.T) {
	s := newTestServer(t, &stubHistory{result: pendingResult()})

	w := do(t, s, http.MethodGet, "/taxons/Anything/history")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp EntryHistoryResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Message == "" || resp.Entries == nil || len(resp.Entries) != 0 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestTaxonHistory_BadPath(t *testing.T) {
	s := newTestServer(t, &stubHistory{result: sampleResult()})

	for _, target := range []string{"/taxons/", "/taxons/A", "/taxons/A/B/history"} {
		if w := do(t, s, http.MethodGet, target); w.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", target, w.Code)
		}
	}
}

func TestDisciplineHistory(t *testing.T) {
	s := newTestServer(t, &stubHistory{result: sampleResult()})

	w := do(t, s, http.MethodGet, "/disciplines/Electrical/history")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp DisciplineHistoryResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Discipline != "Electrical" || len(resp.Entries) != 1 || resp.Entries[0].Hash != "c3" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestRoot(t *testing.T) {
	s := newTestServer(t, &stubHistory{})

	if w := do(t, s, http.MethodGet, "/"); w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
	if w := do(t, s, http.MethodGet, "/nope"); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestHistoryPathParam(t *testing.T) {
	tests := []struct {
		path   string
		want   string
		wantOK bool
	}{
		{"/taxons/A.B/history", "A.B", true},
		{"/taxons/A.B", "", false},
		{"/taxons//history", "", false},
		{"/other/A/history", "", false},
	}
	for _, tt := range tests {
		got, ok := historyPathParam(tt.path, "/taxons/")
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("historyPathParam(%q) = %q, %v", tt.path, got, ok)
		}
	}
}
