package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRealIPPrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	req.RemoteAddr = "10.0.0.1:5555"
	if got := realIP(req); got != "203.0.113.9" {
		t.Fatalf("realIP = %q, want 203.0.113.9", got)
	}
}

func TestRealIPFallsBackToRealIPHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Real-IP", "198.51.100.2")
	req.RemoteAddr = "10.0.0.1:5555"
	if got := realIP(req); got != "198.51.100.2" {
		t.Fatalf("realIP = %q, want 198.51.100.2", got)
	}
}

func TestRealIPFallsBackToRemoteAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	if got := realIP(req); got != "10.0.0.1" {
		t.Fatalf("realIP = %q, want 10.0.0.1", got)
	}
}

func TestStatusOrDefault(t *testing.T) {
	if got := statusOrDefault(0); got != http.StatusOK {
		t.Fatalf("statusOrDefault(0) = %d, want 200", got)
	}
	if got := statusOrDefault(http.StatusNotFound); got != http.StatusNotFound {
		t.Fatalf("statusOrDefault(404) = %d, want 404", got)
	}
}

func TestStatusRecorderCapturesFirstWriteHeaderAndByteCount(t *testing.T) {
	rw := httptest.NewRecorder()
	rec := &statusRecorder{ResponseWriter: rw}

	rec.WriteHeader(http.StatusCreated)
	rec.WriteHeader(http.StatusInternalServerError) // should be ignored
	n, err := rec.Write([]byte("hello"))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if n != 5 {
		t.Fatalf("n = %d, want 5", n)
	}
	if rec.status != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.status, http.StatusCreated)
	}
	if rec.bytes != 5 {
		t.Fatalf("bytes = %d, want 5", rec.bytes)
	}
}

func TestStatusRecorderWriteWithoutExplicitHeaderDefaultsOK(t *testing.T) {
	rw := httptest.NewRecorder()
	rec := &statusRecorder{ResponseWriter: rw}
	if _, err := rec.Write([]byte("ok")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if rec.status != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.status)
	}
}
