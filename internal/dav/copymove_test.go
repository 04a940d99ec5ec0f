package dav

import (
	"net/http/httptest"
	"testing"

	"github.com/sonroyaalmerol/shuriken-dav/internal/apperr"
	"github.com/sonroyaalmerol/shuriken-dav/internal/config"
)

func newTestHandlersWithBasePath(basePath string) *Handlers {
	h := newTestHandlers()
	h.cfg = &config.Config{HTTP: config.HTTPConfig{BasePath: basePath}}
	return h
}

func TestResolveDestinationMissingHeader(t *testing.T) {
	h := newTestHandlersWithBasePath("/dav")
	req := httptest.NewRequest("COPY", "/dav/cal/alice/work/event-1.ics", nil)

	_, _, err := h.resolveDestination(req)
	if err == nil {
		t.Fatalf("expected error for missing Destination header")
	}
	e, ok := apperr.As(err)
	if !ok || e.Kind != apperr.Validation {
		t.Fatalf("expected apperr.Validation, got %v", err)
	}
}

func TestResolveDestinationMustNameAResource(t *testing.T) {
	h := newTestHandlersWithBasePath("/dav")
	req := httptest.NewRequest("COPY", "/dav/cal/alice/work/event-1.ics", nil)
	req.Header.Set("Destination", "http://example.com/dav/cal/alice/work")

	_, _, err := h.resolveDestination(req)
	if err == nil {
		t.Fatalf("expected error when Destination names only a collection")
	}
	e, ok := apperr.As(err)
	if !ok || e.Kind != apperr.Validation {
		t.Fatalf("expected apperr.Validation, got %v", err)
	}
}

func TestResolveDestinationInvalidURL(t *testing.T) {
	h := newTestHandlersWithBasePath("/dav")
	req := httptest.NewRequest("COPY", "/dav/cal/alice/work/event-1.ics", nil)
	req.Header.Set("Destination", "http://[::1]:bad-port/x")

	_, _, err := h.resolveDestination(req)
	if err == nil {
		t.Fatalf("expected error for unparsable Destination URL")
	}
}
