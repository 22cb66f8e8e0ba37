package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestIDGenerated(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if seen == "" {
		t.Fatalf("expected request ID in context")
	}
	if got := rec.Header().Get("X-Request-ID"); got != seen {
		t.Fatalf("header %q does not match context %q", got, seen)
	}
}

func TestRequestIDHonorsIncomingHeader(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "upstream-id")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seen != "upstream-id" {
		t.Fatalf("expected upstream-id, got %q", seen)
	}
	if got := rec.Header().Get("X-Request-ID"); got != "upstream-id" {
		t.Fatalf("expected header echo, got %q", got)
	}
}
