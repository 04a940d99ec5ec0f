package dav

import (
	"context"
	"net/http"
	"time"

	"github.com/sonroyaalmerol/shuriken-dav/internal/apperr"
	"github.com/sonroyaalmerol/shuriken-dav/internal/etag"
	"github.com/sonroyaalmerol/shuriken-dav/internal/path"
	"github.com/sonroyaalmerol/shuriken-dav/internal/rfc/davxml"
	"github.com/sonroyaalmerol/shuriken-dav/internal/rfc/ical"
	"github.com/sonroyaalmerol/shuriken-dav/internal/rfc/vcard"
	"github.com/sonroyaalmerol/shuriken-dav/internal/storage"
	"github.com/sonroyaalmerol/shuriken-dav/internal/store/index"
	"github.com/sonroyaalmerol/shuriken-dav/internal/store/mapper"
)

// handlePut implements §4.8's PUT sequence: parse, validate size and
// structure, resolve the no-uid-conflict precondition via C6, evaluate
// If-Match/If-None-Match, canonicalize and recompute the ETag via C5,
// persist transactionally, then respond 201 (created) or 204 (replaced).
func (h *Handlers) handlePut(w http.ResponseWriter, r *http.Request, raw path.RawPath, loc *path.ResourceLocation) {
	collectionID, ok := loc.CollectionID()
	if !ok {
		h.writeError(w, apperr.NotFoundf("collection not found"))
		return
	}
	slug := raw.ResourceSlug
	if slug == "" {
		h.writeError(w, apperr.New(apperr.Parse, "PUT requires a resource name").WithStatus(400))
		return
	}
	kind := loc.ResourceType()
	maxBytes := h.cfg.HTTP.MaxICSBytes
	if kind == path.Addressbook {
		maxBytes = h.cfg.HTTP.MaxVCFBytes
	}
	body, err := readBody(r, maxBytes)
	if err != nil {
		h.writeError(w, apperr.Wrap(apperr.Database, err, "read request body").Retry())
		return
	}
	if maxBytes > 0 && int64(len(body)) > maxBytes {
		h.writeError(w, apperr.New(apperr.Validation, "request body exceeds max resource size").WithStatus(403))
		return
	}

	ctx := r.Context()
	existing, existingFound, err := h.store.GetInstanceBySlug(ctx, collectionID, slug)
	if err != nil {
		h.writeError(w, apperr.Wrap(apperr.Database, err, "load existing instance").Retry())
		return
	}
	currentETag := ""
	excludeEntityID := ""
	if existingFound {
		currentETag = existing.ETag
		excludeEntityID = existing.EntityID
	}
	if !etag.CheckIfMatch(r.Header.Get("If-Match"), currentETag) {
		h.writeError(w, apperr.New(apperr.Precondition, "If-Match precondition failed"))
		return
	}
	if !etag.CheckIfNoneMatch(r.Header.Get("If-None-Match"), currentETag) {
		h.writeError(w, apperr.New(apperr.Precondition, "If-None-Match precondition failed"))
		return
	}

	href := hrefFor(h.cfg.HTTP.BasePath, raw, loc)
	var tree storage.EntityTree
	var vtimezones []*ical.Component

	if kind == path.Addressbook {
		card, perr := vcard.Parse(body)
		if perr != nil {
			h.writeError(w, apperr.Wrap(apperr.Parse, perr, "invalid vCard body").WithStatus(400))
			return
		}
		if verr := vcard.Validate(card); verr != nil {
			h.writeError(w, apperr.Wrap(apperr.Validation, verr, "invalid vCard structure").WithStatus(403))
			return
		}
		t := mapper.VCardToTree(card)
		tree = storage.EntityTree{Entity: t.Entity, Components: t.Components, Properties: t.Properties, Parameters: t.Parameters}
		if uid := vcard.UID(card); uid != "" {
			conflictSlug, cerr := h.cardUIDConflicts(ctx, collectionID, uid, excludeEntityID)
			if cerr != nil {
				h.writeError(w, cerr)
				return
			}
			if conflictSlug != "" {
				conflictHref := hrefForSlug(h.cfg.HTTP.BasePath, raw, conflictSlug)
				h.writeError(w, apperr.New(apperr.Precondition, "UID %q already used in this collection", uid).
					WithStatus(http.StatusForbidden).
					WithBody(davxml.NewErrorBody(davxml.CondNoUIDConflictCard(conflictHref))))
				return
			}
		}
	} else {
		root, perr := ical.Parse(body)
		if perr != nil {
			h.writeError(w, apperr.Wrap(apperr.Parse, perr, "invalid iCalendar body").WithStatus(400))
			return
		}
		if verr := ical.Validate(root); verr != nil {
			h.writeError(w, apperr.Wrap(apperr.Validation, verr, "invalid iCalendar structure").WithStatus(403))
			return
		}
		t := mapper.ICalToTree(root)
		tree = storage.EntityTree{Entity: t.Entity, Components: t.Components, Properties: t.Properties, Parameters: t.Parameters}
		vtimezones = root.ChildrenOfKind(ical.KindVTimezone)

		if uid := ical.LogicalUID(root); uid != "" {
			if compKind, derr := ical.DetectComponent(root); derr == nil {
				conflictSlug, cerr := h.calUIDConflicts(ctx, collectionID, string(compKind), uid, excludeEntityID)
				if cerr != nil {
					h.writeError(w, cerr)
					return
				}
				if conflictSlug != "" {
					conflictHref := hrefForSlug(h.cfg.HTTP.BasePath, raw, conflictSlug)
					h.writeError(w, apperr.New(apperr.Precondition, "UID %q already used in this collection", uid).
						WithStatus(http.StatusForbidden).
						WithBody(davxml.NewErrorBody(davxml.CondNoUIDConflict(conflictHref))))
					return
				}
			}
		}
	}

	canonical, contentType, serr := serializeTree(kind, tree)
	if serr != nil {
		h.writeError(w, serr)
		return
	}
	newETag := etag.Compute(canonical)

	inst, err := h.store.PutEntityTree(ctx, storage.PutInstanceRequest{
		CollectionID: collectionID,
		Slug:         slug,
		ContentType:  contentType,
		ETag:         newETag,
		Tree:         tree,
	})
	if err != nil {
		h.writeError(w, apperr.Wrap(apperr.Database, err, "persist entity tree").Retry())
		return
	}

	if kind == path.Addressbook {
		card := mapper.VCardFromTree(mapper.VCardTree{Entity: tree.Entity, Components: tree.Components, Properties: tree.Properties, Parameters: tree.Parameters})
		row := index.BuildCardIndex(tree.Entity.ID, card, time.Now().UTC())
		if err := h.store.UpsertCardIndex(ctx, row); err != nil {
			h.writeError(w, apperr.Wrap(apperr.Database, err, "rebuild card index").Retry())
			return
		}
	} else {
		root := mapper.ICalFromTree(mapper.ICalTree{Entity: tree.Entity, Components: tree.Components, Properties: tree.Properties, Parameters: tree.Parameters})
		if root != nil {
			nodes := preorderComponents(root)
			idFor := make(map[*ical.Component]string, len(nodes))
			for i, n := range nodes {
				if i < len(tree.Components) {
					idFor[n] = tree.Components[i].ID
				}
			}
			rows := index.BuildCalIndex(tree.Entity.ID, root, func(child *ical.Component) string { return idFor[child] }, time.Now().UTC())
			if err := h.store.UpsertCalIndex(ctx, rows); err != nil {
				h.writeError(w, apperr.Wrap(apperr.Database, err, "rebuild cal index").Retry())
				return
			}
		}
		for _, vt := range vtimezones {
			h.rememberTimezone(ctx, vt)
		}
	}

	etagHeader(w, newETag)
	w.Header().Set("Location", href)
	contentLengthHeader(w, 0)
	if existingFound {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.WriteHeader(http.StatusCreated)
	_ = inst
}

// calUIDConflicts implements the no-uid-conflict precondition for
// iCalendar: another entity in the same collection already uses uid at the
// same top-level component kind. excludeEntityID is the entity being
// replaced in-place (same slug), which is never a conflict with itself.
// It returns the conflicting instance's slug ("" if there is no conflict)
// so the caller can point the <DAV:href> in the error body at the
// resource that actually holds the UID, not the one being written.
func (h *Handlers) calUIDConflicts(ctx context.Context, collectionID, componentType, uid, excludeEntityID string) (string, error) {
	rows, err := h.store.QueryCalIndexByWindow(ctx, collectionID, componentType, nil, nil)
	if err != nil {
		return "", apperr.Wrap(apperr.Database, err, "query cal index for uid conflict").Retry()
	}
	for _, r := range rows {
		if r.UID != nil && *r.UID == uid && r.EntityID != excludeEntityID {
			return h.slugForEntity(ctx, collectionID, r.EntityID)
		}
	}
	return "", nil
}

// cardUIDConflicts is calUIDConflicts' vCard counterpart: card_index has no
// component_type axis, so every entity in the collection is checked.
func (h *Handlers) cardUIDConflicts(ctx context.Context, collectionID, uid, excludeEntityID string) (string, error) {
	rows, err := h.store.QueryCardIndex(ctx, collectionID)
	if err != nil {
		return "", apperr.Wrap(apperr.Database, err, "query card index for uid conflict").Retry()
	}
	for _, r := range rows {
		if r.UID != nil && *r.UID == uid && r.EntityID != excludeEntityID {
			return h.slugForEntity(ctx, collectionID, r.EntityID)
		}
	}
	return "", nil
}

// slugForEntity resolves the slug of the live instance backing entityID
// within collectionID. Neither cal_index nor card_index carries the slug
// directly (they're keyed by entity/component id for filtering), so this
// scans the collection's instances once the conflicting entity is known.
func (h *Handlers) slugForEntity(ctx context.Context, collectionID, entityID string) (string, error) {
	instances, err := h.store.ListInstances(ctx, collectionID)
	if err != nil {
		return "", apperr.Wrap(apperr.Database, err, "resolve uid conflict slug").Retry()
	}
	for _, inst := range instances {
		if inst.EntityID == entityID {
			return inst.Slug, nil
		}
	}
	return "", nil
}

// hrefForSlug builds an absolute href for resourceSlug within the same
// owner/collection raw resolved, independent of raw's own terminal
// resource segment — used to point a UID-conflict error body at the
// existing resource instead of the one being written.
func hrefForSlug(basePath string, raw path.RawPath, resourceSlug string) string {
	other := raw
	other.ResourceSlug = resourceSlug
	return hrefFor(basePath, other, nil)
}
