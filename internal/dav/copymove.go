package dav

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/sonroyaalmerol/shuriken-dav/internal/apperr"
	"github.com/sonroyaalmerol/shuriken-dav/internal/path"
	"github.com/sonroyaalmerol/shuriken-dav/internal/rfc/davxml"
)

// handleCopyMove implements COPY and MOVE (RFC 4918 §9.8/9.9). Both target a
// single resource, never a collection: the Destination header names the new
// href, Overwrite (default T) governs whether an existing destination is
// replaced, and the destination tree (cal vs card) must match the source's
// per this system's "no cross-tree copy" rule, surfaced as
// calendar-collection-location-ok.
func (h *Handlers) handleCopyMove(w http.ResponseWriter, r *http.Request, loc *path.ResourceLocation, isMove bool) {
	resourceID, ok := loc.ResourceID()
	if !ok {
		h.writeError(w, apperr.New(apperr.Validation, "COPY/MOVE source must be a resource").WithStatus(http.StatusForbidden))
		return
	}
	srcCollectionID, ok := loc.CollectionID()
	if !ok {
		h.writeError(w, apperr.NotFoundf("source collection not found"))
		return
	}

	destRaw, destLoc, err := h.resolveDestination(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if destRaw.ResourceType != loc.ResourceType() {
		h.writeError(w, apperr.New(apperr.Validation, "Destination tree does not match source").
			WithStatus(http.StatusConflict).
			WithBody(davxml.NewErrorBody(davxml.CondCalendarCollectionLocationOk())))
		return
	}
	destCollectionID, ok := destLoc.CollectionID()
	if !ok {
		h.writeError(w, apperr.NotFoundf("destination collection not found"))
		return
	}

	ctx := r.Context()
	existingDest, destFound, err := h.store.GetInstanceBySlug(ctx, destCollectionID, destRaw.ResourceSlug)
	if err != nil {
		h.writeError(w, apperr.Wrap(apperr.Database, err, "check destination slug").Retry())
		return
	}
	overwrite := !strings.EqualFold(r.Header.Get("Overwrite"), "F")
	if destFound && !overwrite {
		h.writeError(w, apperr.New(apperr.Conflict, "destination exists and Overwrite is F").WithStatus(http.StatusPreconditionFailed))
		return
	}
	if destFound {
		if err := h.store.DeleteInstance(ctx, destCollectionID, existingDest.Slug); err != nil {
			h.writeError(w, apperr.Wrap(apperr.Database, err, "overwrite destination").Retry())
			return
		}
	}

	srcCol, found, err := h.store.GetCollectionByID(ctx, srcCollectionID)
	if err != nil {
		h.writeError(w, apperr.Wrap(apperr.Database, err, "load source collection").Retry())
		return
	}
	if !found {
		h.writeError(w, apperr.NotFoundf("source collection not found"))
		return
	}
	destCol, found, err := h.store.GetCollectionByID(ctx, destCollectionID)
	if err != nil {
		h.writeError(w, apperr.Wrap(apperr.Database, err, "load destination collection").Retry())
		return
	}
	if !found {
		h.writeError(w, apperr.NotFoundf("destination collection not found"))
		return
	}

	var etagValue string
	if isMove {
		moved, merr := h.store.MoveInstance(ctx, resourceID, destCollectionID, destRaw.ResourceSlug)
		if merr != nil {
			h.writeError(w, apperr.Wrap(apperr.Database, merr, "move instance").Retry())
			return
		}
		etagValue = moved.ETag
	} else {
		sameOwner := srcCol.OwnerPrincipalID == destCol.OwnerPrincipalID
		copied, cerr := h.store.CopyInstance(ctx, resourceID, destCollectionID, destRaw.ResourceSlug, sameOwner)
		if cerr != nil {
			h.writeError(w, apperr.Wrap(apperr.Database, cerr, "copy instance").Retry())
			return
		}
		etagValue = copied.ETag
	}

	destHref := hrefFor(h.cfg.HTTP.BasePath, destRaw, destLoc)
	etagHeader(w, etagValue)
	w.Header().Set("Location", destHref)
	if destFound {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// resolveDestination parses the Destination header into a bound
// ResourceLocation, resolving only the owner+collection prefix when the
// named resource does not exist yet (the common case: COPY/MOVE to a new
// name).
func (h *Handlers) resolveDestination(r *http.Request) (path.RawPath, *path.ResourceLocation, error) {
	dest := r.Header.Get("Destination")
	if dest == "" {
		return path.RawPath{}, nil, apperr.New(apperr.Validation, "COPY/MOVE requires a Destination header").WithStatus(http.StatusBadRequest)
	}
	u, perr := url.Parse(dest)
	if perr != nil {
		return path.RawPath{}, nil, apperr.Wrap(apperr.Parse, perr, "invalid Destination header").WithStatus(http.StatusBadRequest)
	}
	raw, rerr := path.ParseRawPath(u.Path, h.cfg.HTTP.BasePath)
	if rerr != nil {
		return path.RawPath{}, nil, rerr
	}
	if raw.ResourceSlug == "" {
		return path.RawPath{}, nil, apperr.New(apperr.Validation, "Destination must name a resource").WithStatus(http.StatusBadRequest)
	}

	ctx := r.Context()
	loc, err := path.Resolve(ctx, raw, h.lookup, h.lookup, h.lookup)
	if err != nil {
		prefix := raw
		prefix.ResourceSlug = ""
		loc, err = path.Resolve(ctx, prefix, h.lookup, h.lookup, h.lookup)
		if err != nil {
			return path.RawPath{}, nil, err
		}
	}
	return raw, loc, nil
}
