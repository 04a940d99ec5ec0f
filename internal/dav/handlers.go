// Package dav implements C8: the HTTP method engine binding every other
// package (davxml, mapper, index, recur, apperr, path, authz, syncengine,
// etag, storage) into request handlers for PROPFIND, REPORT, GET, HEAD,
// PUT, DELETE, MKCOL, MKCALENDAR, PROPPATCH, COPY, MOVE, and ACL.
//
// One Handlers serves both the calendar and addressbook trees:
// path.ResourceLocation already carries the calendar-vs-addressbook
// distinction, so Handlers dispatches on loc.ResourceType() internally
// instead of routing to two separate per-tree services.
package dav

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sonroyaalmerol/shuriken-dav/internal/apperr"
	"github.com/sonroyaalmerol/shuriken-dav/internal/authz"
	"github.com/sonroyaalmerol/shuriken-dav/internal/config"
	"github.com/sonroyaalmerol/shuriken-dav/internal/path"
	"github.com/sonroyaalmerol/shuriken-dav/internal/recur"
	"github.com/sonroyaalmerol/shuriken-dav/internal/rfc/davxml"
	"github.com/sonroyaalmerol/shuriken-dav/internal/storage"
)

// Handlers is the method engine. One instance is built at startup and
// shared across requests — it holds no per-request mutable state, per
// §5's "Shared resources" note.
type Handlers struct {
	cfg        *config.Config
	store      storage.Store
	authorizer *authz.Authorizer
	logger     zerolog.Logger
	lookup     storeLookup
	tzCache    *recur.Cache
}

// NewHandlers wires a Handlers over store and policy, registering the
// persisted timezone table as the recur Cache's fallback resolver (C7
// step 1's second level).
func NewHandlers(cfg *config.Config, store storage.Store, policy authz.Policy, logger zerolog.Logger) *Handlers {
	h := &Handlers{cfg: cfg, store: store, logger: logger}
	h.lookup = storeLookup{h: h}
	h.authorizer = authz.NewAuthorizer(policy, groupExpander{h: h})
	h.tzCache = recur.NewCache()
	h.tzCache.Fallback = persistedTZResolver{h: h}
	return h
}

// GetCapabilities lists the DAV compliance classes this engine adds beyond
// "1, 3, access-control", which the OPTIONS handler (options.go) writes
// ahead of this list in the DAV header.
func (h *Handlers) GetCapabilities() string {
	return "calendar-access, addressbook, extended-mkcol, sync-collection"
}

// subjectFor maps an authenticated caller (nil for anonymous) to an
// authz.Subject.
func subjectFor(principalID string, authenticated bool) authz.Subject {
	if !authenticated {
		return authz.Public
	}
	return authz.PrincipalSubject(principalID)
}

// ServeHTTP resolves the request path and dispatches to the method-specific
// handler. subjectPrincipalID is "" for an anonymous caller.
func (h *Handlers) ServeHTTP(w http.ResponseWriter, r *http.Request, subjectPrincipalID string, authenticated bool) {
	ctx := r.Context()
	if r.Method == http.MethodOptions {
		var loc *path.ResourceLocation
		if raw, rerr := path.ParseRawPath(r.URL.Path, h.cfg.HTTP.BasePath); rerr == nil {
			loc, _ = path.Resolve(ctx, raw, h.lookup, h.lookup, h.lookup)
		}
		h.handleOptions(w, loc)
		return
	}
	raw, err := path.ParseRawPath(r.URL.Path, h.cfg.HTTP.BasePath)
	if err != nil {
		h.writeError(w, err)
		return
	}
	loc, err := path.Resolve(ctx, raw, h.lookup, h.lookup, h.lookup)
	if err != nil {
		// MKCOL/MKCALENDAR/PUT legitimately target a resource that does not
		// exist yet; only the owner+collection prefix must already resolve.
		if isCreateMethod(r.Method) {
			loc, err = h.resolveForCreate(ctx, raw)
		}
		if err != nil {
			h.writeError(w, err)
			return
		}
	}
	subject := subjectFor(subjectPrincipalID, authenticated)
	action, ok := authz.ActionForMethod(r.Method)
	if ok {
		href := hrefFor(h.cfg.HTTP.BasePath, raw, loc)
		decision, err := h.authorizer.Authorize(ctx, subject, href, action)
		if err != nil {
			h.writeError(w, err)
			return
		}
		if !decision.Allowed {
			h.writeError(w, decision.Denied)
			return
		}
	}

	switch r.Method {
	case http.MethodGet:
		h.handleGet(w, r, loc, false)
	case http.MethodHead:
		h.handleGet(w, r, loc, true)
	case http.MethodPut:
		h.handlePut(w, r, raw, loc)
	case http.MethodDelete:
		h.handleDelete(w, r, loc)
	case "PROPFIND":
		h.handlePropfind(w, r, raw, loc, subject)
	case "PROPPATCH":
		h.handleProppatch(w, r, loc)
	case "MKCOL":
		h.handleMkcol(w, r, raw, loc, false)
	case "MKCALENDAR":
		h.handleMkcol(w, r, raw, loc, true)
	case "REPORT":
		h.handleReport(w, r, raw, loc, subject)
	case "COPY":
		h.handleCopyMove(w, r, loc, false)
	case "MOVE":
		h.handleCopyMove(w, r, loc, true)
	case "ACL":
		h.handleACL(w, r, loc)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func isCreateMethod(method string) bool {
	switch method {
	case http.MethodPut, "MKCOL", "MKCALENDAR":
		return true
	default:
		return false
	}
}

// resolveForCreate resolves only the owner+collection prefix of raw,
// leaving the terminal resource segment unbound — the normal case for a
// PUT that creates a new instance, or a MKCOL/MKCALENDAR whose collection
// segment itself is the thing being created.
func (h *Handlers) resolveForCreate(ctx context.Context, raw path.RawPath) (*path.ResourceLocation, error) {
	prefix := raw
	prefix.ResourceSlug = ""
	if raw.ResourceSlug == "" {
		// MKCOL/MKCALENDAR: the collection segment itself doesn't exist yet.
		prefix.CollectionSlug = ""
	}
	return path.Resolve(ctx, prefix, h.lookup, h.lookup, h.lookup)
}

// hrefFor reconstructs the request path as an absolute href string for
// authz/DAV XML purposes from raw's path segments alone; loc is not
// consulted, so the href is the same whether or not the terminal resource
// exists yet (PUT/MKCOL targets).
func hrefFor(basePath string, raw path.RawPath, loc *path.ResourceLocation) string {
	treeSeg := "cal"
	if raw.ResourceType == path.Addressbook {
		treeSeg = "card"
	}
	parts := []string{strings.TrimSuffix(basePath, "/"), treeSeg, raw.OwnerSlug}
	if raw.CollectionSlug != "" {
		parts = append(parts, raw.CollectionSlug)
	}
	if raw.ResourceSlug != "" {
		parts = append(parts, raw.ResourceSlug)
	}
	_ = loc
	return strings.Join(parts, "/")
}

func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	e, ok := apperr.As(err)
	if !ok {
		h.logger.Error().Err(err).Msg("unhandled error reached method engine")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.logger.Debug().Str("kind", string(e.Kind)).Str("msg", e.Message).Msg("request failed")
	if e.DAVBody != nil {
		w.Header().Set("Content-Type", "application/xml; charset=utf-8")
		w.WriteHeader(e.HTTPStatus())
		_ = davxml.RenderErrorBody(w, e.DAVBody)
		return
	}
	http.Error(w, e.Message, e.HTTPStatus())
}

func readBody(r *http.Request, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = 1 << 20
	}
	return io.ReadAll(io.LimitReader(r.Body, limit+1))
}

func parseDepth(r *http.Request) string {
	d := r.Header.Get("Depth")
	if d == "" {
		return "infinity"
	}
	return d
}

func etagHeader(w http.ResponseWriter, e string) {
	if e != "" {
		w.Header().Set("ETag", e)
	}
}

func contentLengthHeader(w http.ResponseWriter, n int) {
	w.Header().Set("Content-Length", strconv.Itoa(n))
}
