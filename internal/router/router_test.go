package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sonroyaalmerol/shuriken-dav/internal/config"
)

func newTestRouter(basePath string) *Router {
	return &Router{cfg: &config.Config{HTTP: config.HTTPConfig{BasePath: basePath}}}
}

func TestBasePathNormalizesDefaults(t *testing.T) {
	cases := map[string]string{
		"/dav":  "/dav/",
		"/dav/": "/dav/",
		"":      "/dav/",
		"nope":  "/dav/",
	}
	for in, want := range cases {
		r := newTestRouter(in)
		if got := r.basePath(); got != want {
			t.Fatalf("basePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHandleWellKnownRedirectsToBasePath(t *testing.T) {
	r := newTestRouter("/dav")
	req := httptest.NewRequest(http.MethodGet, "/.well-known/caldav", nil)
	rw := httptest.NewRecorder()

	r.handleWellKnown(rw, req)

	if rw.Code != http.StatusPermanentRedirect {
		t.Fatalf("status = %d, want %d", rw.Code, http.StatusPermanentRedirect)
	}
	if loc := rw.Header().Get("Location"); loc != "/dav/" {
		t.Fatalf("Location = %q, want /dav/", loc)
	}
}

func TestHandleHealthReturnsOK(t *testing.T) {
	r := newTestRouter("/dav")
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rw := httptest.NewRecorder()

	r.handleHealth(rw, req)

	if rw.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rw.Code)
	}
	if rw.Body.String() != "ok" {
		t.Fatalf("body = %q, want ok", rw.Body.String())
	}
}
