package dav

import (
	"net/http"

	"github.com/sonroyaalmerol/shuriken-dav/internal/apperr"
	"github.com/sonroyaalmerol/shuriken-dav/internal/etag"
	"github.com/sonroyaalmerol/shuriken-dav/internal/path"
)

// handleGet serves GET and HEAD, per §4.8: lookup, reassemble
// canonical bytes via C5, set ETag/Content-Type/Last-Modified. HEAD omits
// the body. If-None-Match short-circuits to 304.
func (h *Handlers) handleGet(w http.ResponseWriter, r *http.Request, loc *path.ResourceLocation, headOnly bool) {
	resourceID, ok := loc.ResourceID()
	if !ok {
		h.writeError(w, apperr.NotFoundf("no resource in path"))
		return
	}
	ctx := r.Context()
	inst, found, err := h.store.GetInstanceByID(ctx, resourceID)
	if err != nil {
		h.writeError(w, apperr.Wrap(apperr.Database, err, "load instance").Retry())
		return
	}
	if !found {
		h.writeError(w, apperr.NotFoundf("instance not found"))
		return
	}
	if !etag.CheckIfNoneMatch(r.Header.Get("If-None-Match"), inst.ETag) {
		w.Header().Set("ETag", inst.ETag)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	tree, err := h.store.GetEntityTree(ctx, inst.EntityID)
	if err != nil {
		h.writeError(w, apperr.Wrap(apperr.Database, err, "load entity tree").Retry())
		return
	}
	body, contentType, err := serializeTree(loc.ResourceType(), *tree)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("ETag", inst.ETag)
	w.Header().Set("Last-Modified", inst.LastModified.UTC().Format(http.TimeFormat))
	if inst.ScheduleTag != nil {
		w.Header().Set("Schedule-Tag", *inst.ScheduleTag)
	}
	contentLengthHeader(w, len(body))
	if headOnly {
		w.WriteHeader(http.StatusOK)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
