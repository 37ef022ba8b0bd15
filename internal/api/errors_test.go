package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"taxhist/internal/errors"
)

func TestMapErrorToStatus(t *testing.T) {
	tests := []struct {
		code errors.ErrorCode
		want int
	}{
		{errors.RepositoryUnavailable, http.StatusServiceUnavailable},
		{errors.CacheUnavailable, http.StatusServiceUnavailable},
		{errors.Timeout, http.StatusGatewayTimeout},
		{errors.NotFound, http.StatusNotFound},
		{errors.InvalidArgument, http.StatusBadRequest},
		{errors.ParseFailed, http.StatusUnprocessableEntity},
		{errors.CacheIO, http.StatusInternalServerError},
		{errors.InternalError, http.StatusInternalServerError},
		{"UNKNOWN_CODE", http.StatusInternalServerError}, // default case
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			got := MapErrorToStatus(tt.code)
			if got != tt.want {
				t.Errorf("MapErrorToStatus(%q) = %d, want %d", tt.code, got, tt.want)
			}
		})
	}
}

func TestWriteError(t *testing.T) {
	t.Run("writes basic error", func(t *testing.T) {
		w := httptest.NewRecorder()
		err := fmt.Errorf("something went wrong")

		WriteError(w, err, http.StatusInternalServerError)

		if w.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
		}

		contentType := w.Header().Get("Content-Type")
		if contentType != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", contentType)
		}

		var resp ErrorResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Code != "INTERNAL_ERROR" {
			t.Errorf("Code = %q, want INTERNAL_ERROR", resp.Code)
		}
	})

	t.Run("includes wrapped TaxError fields", func(t *testing.T) {
		w := httptest.NewRecorder()
		taxErr := errors.NewParseError("abc123", "catalog.xml", fmt.Errorf("bad xml"))

		WriteError(w, fmt.Errorf("refresh: %w", taxErr), http.StatusUnprocessableEntity)

		var resp ErrorResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Code != string(errors.ParseFailed) {
			t.Errorf("Code = %q, want %q", resp.Code, errors.ParseFailed)
		}
		details, ok := resp.Details.(map[string]interface{})
		if !ok || details["commit"] != "abc123" {
			t.Errorf("Details = %v", resp.Details)
		}
	})
}

func TestWriteTaxError_RepositoryUnavailable(t *testing.T) {
	w := httptest.NewRecorder()

	WriteTaxError(w, errors.NewRepositoryAccessError("git log failed", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.SuggestedFixes) == 0 {
		t.Error("expected suggested fixes")
	}
}
