package dav

import (
	"net/http"

	"github.com/sonroyaalmerol/shuriken-dav/internal/apperr"
	"github.com/sonroyaalmerol/shuriken-dav/internal/etag"
	"github.com/sonroyaalmerol/shuriken-dav/internal/path"
)

// handleDelete implements §4.8 DELETE: lookup, evaluate If-Match,
// soft-delete the instance and write a tombstone, bump sync_revision, 204.
func (h *Handlers) handleDelete(w http.ResponseWriter, r *http.Request, loc *path.ResourceLocation) {
	collectionID, ok := loc.CollectionID()
	if !ok {
		h.writeError(w, apperr.NotFoundf("collection not found"))
		return
	}
	resourceID, ok := loc.ResourceID()
	if !ok {
		h.writeError(w, apperr.NotFoundf("resource not found"))
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
	if !etag.CheckIfMatch(r.Header.Get("If-Match"), inst.ETag) {
		h.writeError(w, apperr.New(apperr.Precondition, "If-Match precondition failed"))
		return
	}
	if err := h.store.DeleteInstance(ctx, collectionID, inst.Slug); err != nil {
		h.writeError(w, apperr.Wrap(apperr.Database, err, "delete instance").Retry())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
