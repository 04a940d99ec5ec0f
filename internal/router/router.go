// Package router wires the trusted-header auth chain in front of the
// single dav.Handlers method engine, adding request logging, a health
// check, and the RFC 6764 well-known discovery redirects. One ServeHTTP
// call reaches both the calendar and addressbook trees, since dav.Handlers
// already resolves that split from the path itself.
package router

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sonroyaalmerol/shuriken-dav/internal/auth"
	"github.com/sonroyaalmerol/shuriken-dav/internal/config"
	"github.com/sonroyaalmerol/shuriken-dav/internal/dav"
)

type Router struct {
	cfg      *config.Config
	handlers *dav.Handlers
	authn    *auth.Chain
	logger   zerolog.Logger
}

// New builds the top-level http.Handler: well-known redirects, a health
// check, and the DAV tree mounted at cfg.HTTP.BasePath.
func New(cfg *config.Config, h *dav.Handlers, authn *auth.Chain, logger zerolog.Logger) http.Handler {
	r := &Router{cfg: cfg, handlers: h, authn: authn, logger: logger}
	return r.setupRoutes()
}

func (r *Router) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/.well-known/caldav", r.handleWellKnown)
	mux.HandleFunc("/.well-known/carddav", r.handleWellKnown)
	mux.HandleFunc("/healthz", r.handleHealth)

	base := r.basePath()
	mux.HandleFunc(base, r.handleDAV)
	if trimmed := strings.TrimSuffix(base, "/"); trimmed != base {
		mux.HandleFunc(trimmed, r.handleDAV)
	}

	return mux
}

func (r *Router) basePath() string {
	base := r.cfg.HTTP.BasePath
	if base == "" || base[0] != '/' {
		base = "/dav"
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base
}

// handleWellKnown implements RFC 6764 §5: a bare 301/308 redirect to the
// DAV base path. Clients follow it, then PROPFIND current-user-principal
// to find their own home — this server does not need to know the caller's
// identity to answer the redirect itself.
func (r *Router) handleWellKnown(w http.ResponseWriter, req *http.Request) {
	http.Redirect(w, req, strings.TrimSuffix(r.basePath(), "/")+"/", http.StatusPermanentRedirect)
}

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleDAV resolves the trusted-identity header (auth.Chain.Authenticate)
// and hands off to the method engine. An absent or unknown header maps to
// the anonymous subject rather than a hard failure — PROPFIND on a
// publicly-shared collection must stay reachable without any header at
// all, per auth.Chain's own doc comment — leaving authz.Authorizer to
// refuse anything the Public subject isn't granted.
func (r *Router) handleDAV(w http.ResponseWriter, req *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w}

	principal, authErr := r.authn.Authenticate(req.Context(), req)
	authenticated := authErr == nil && principal != nil
	subjectID := ""
	if authenticated {
		subjectID = principal.ID
		req = req.WithContext(auth.WithPrincipal(req.Context(), principal))
	}

	r.handlers.ServeHTTP(rec, req, subjectID, authenticated)

	dur := time.Since(start)
	logEvent := r.logger.Info()
	switch req.Method {
	case "PROPFIND", "REPORT", http.MethodGet, http.MethodHead:
		logEvent = r.logger.Debug()
	}
	entry := logEvent.
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", statusOrDefault(rec.status)).
		Int("bytes", rec.bytes).
		Float64("duration_ms", float64(dur.Microseconds())/1000.0).
		Str("ip", realIP(req)).
		Str("user_agent", req.Header.Get("User-Agent"))
	if authenticated {
		entry = entry.Str("principal", principal.Slug)
	} else if authErr != nil {
		entry = entry.Str("auth_error", authErr.Error())
	}
	entry.Msg("http request")
}
