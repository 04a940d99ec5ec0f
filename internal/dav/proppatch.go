package dav

import (
	"net/http"

	"github.com/sonroyaalmerol/shuriken-dav/internal/apperr"
	"github.com/sonroyaalmerol/shuriken-dav/internal/path"
	"github.com/sonroyaalmerol/shuriken-dav/internal/rfc/davxml"
)

// handleProppatch implements §4.8 PROPPATCH: ordered set/remove,
// applied atomically. A protected property anywhere in the request fails
// the whole operation with 403 cannot-modify-protected-property instead of
// a partial 207 — nothing in the request was applied.
func (h *Handlers) handleProppatch(w http.ResponseWriter, r *http.Request, loc *path.ResourceLocation) {
	collectionID, ok := loc.CollectionID()
	if !ok {
		h.writeError(w, apperr.NotFoundf("collection not found"))
		return
	}
	if _, isResource := loc.ResourceID(); isResource {
		h.writeError(w, apperr.New(apperr.NotFound, "PROPPATCH target must be a collection").WithStatus(404))
		return
	}
	body, err := readBody(r, 1<<16)
	if err != nil {
		h.writeError(w, apperr.Wrap(apperr.Database, err, "read proppatch body").Retry())
		return
	}
	pp, perr := davxml.ParsePropPatch(body)
	if perr != nil {
		h.writeError(w, apperr.Wrap(apperr.Parse, perr, "invalid propertyupdate body").WithStatus(400))
		return
	}

	for _, op := range pp.Ops {
		if davxml.IsProtectedProperty(op.Name) {
			h.writeError(w, apperr.New(apperr.Validation, "cannot modify protected property %q", op.Name.Local).
				WithStatus(http.StatusForbidden).
				WithBody(davxml.NewErrorBody(davxml.RawXMLValue{XMLName: qnameXML(davxml.NSDAV, "cannot-modify-protected-property")})))
			return
		}
	}

	var displayName, description *string
	for _, op := range pp.Ops {
		value := op.RawValue
		if op.Remove {
			value = ""
		}
		switch op.Name.Local {
		case "displayname":
			displayName = &value
		case "calendar-description", "addressbook-description":
			description = &value
		}
	}

	ctx := r.Context()
	if err := h.store.UpdateCollectionProps(ctx, collectionID, displayName, description); err != nil {
		h.writeError(w, apperr.Wrap(apperr.Database, err, "update collection properties").Retry())
		return
	}

	resp := davxml.NewResponse(r.URL.Path)
	for _, op := range pp.Ops {
		resp.AddProp(http.StatusOK, davxml.PropEmpty(op.Name))
	}
	ms := &davxml.MultiStatus{Responses: []davxml.Response{*resp}}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusMultiStatus)
	_ = davxml.ServeMultiStatus(w, ms)
}
