package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"taxhist/internal/logging"
)

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	t.Run("generates an ID", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		if seen == "" {
			t.Fatal("expected a generated request ID")
		}
		if got := w.Header().Get("X-Request-ID"); got != seen {
			t.Errorf("header = %q, context = %q", got, seen)
		}
	})

	t.Run("keeps the caller's ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("X-Request-ID", "req-42")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if seen != "req-42" {
			t.Errorf("request ID = %q, want req-42", seen)
		}
	})

	for _, bad := range []string{"line\nbreak", "with space", strings.Repeat("x", maxRequestIDLen+1)} {
		t.Run("replaces unfit ID", func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			req.Header.Set("X-Request-ID", bad)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if seen == bad || seen == "" {
				t.Errorf("request ID = %q, want a generated one", seen)
			}
		})
	}
}

func TestRouteLabel(t *testing.T) {
	tests := map[string]string{
		"/":                           "/",
		"/history/taxonomy":           "/history/taxonomy",
		"/history/taxonomy/reset":     "/history/taxonomy/reset",
		"/taxons/Measure.A/history":   "/taxons/{name}/history",
		"/disciplines/Optics/history": "/disciplines/{name}/history",
		"/taxons/Measure.A":           "other",
		"/unknown":                    "other",
	}
	for path, want := range tests {
		if got := routeLabel(path); got != want {
			t.Errorf("routeLabel(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestRequestFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/taxons/Measure.A/history?refresh=true", nil)
	fields := requestFields(req)

	if fields["taxon"] != "Measure.A" || fields["refresh"] != "true" || fields["route"] != "/taxons/{name}/history" {
		t.Errorf("fields = %v", fields)
	}
	if _, ok := fields["discipline"]; ok {
		t.Error("taxon request should not carry a discipline field")
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := RecoveryMiddleware(logging.NewDiscardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestLoggingMiddleware_CapturesStatus(t *testing.T) {
	var captured *responseWriter
	handler := LoggingMiddleware(logging.NewDiscardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = w.(*responseWriter)
		w.WriteHeader(http.StatusTeapot)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if captured == nil || captured.statusCode != http.StatusTeapot {
		t.Errorf("captured = %+v", captured)
	}
	if w.Code != http.StatusTeapot {
		t.Errorf("status = %d", w.Code)
	}
}

func TestLoggingMiddleware_CountsByRoute(t *testing.T) {
	handler := LoggingMiddleware(logging.NewDiscardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	counter := httpRequests.WithLabelValues("/disciplines/{name}/history", http.MethodGet, "200")
	before := testutil.ToFloat64(counter)

	for _, name := range []string{"Optics", "Acoustics"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/disciplines/"+name+"/history", nil))
	}

	if got := testutil.ToFloat64(counter) - before; got != 2 {
		t.Errorf("route counter grew by %v, want 2", got)
	}
}

func TestResponseWriter_CountsBytes(t *testing.T) {
	rw := &responseWriter{ResponseWriter: httptest.NewRecorder(), statusCode: http.StatusOK}
	_, _ = rw.Write([]byte("hello"))
	_, _ = rw.Write([]byte(" world"))

	if rw.written != 11 {
		t.Errorf("written = %d, want 11", rw.written)
	}
}
