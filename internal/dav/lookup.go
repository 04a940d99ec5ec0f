package dav

import (
	"context"

	"github.com/sonroyaalmerol/shuriken-dav/internal/path"
	"github.com/sonroyaalmerol/shuriken-dav/internal/store/model"
)

// storeLookup adapts storage.Store to the three lookup interfaces
// internal/path.Resolve binds a request path against, choosing a
// primary-key or slug-column query per segment depending on path.IsUUID.
type storeLookup struct {
	h *Handlers
}

func (l storeLookup) LookupPrincipal(ctx context.Context, slugOrID string) (string, bool, error) {
	if path.IsUUID(slugOrID) {
		p, found, err := l.h.store.GetPrincipalByID(ctx, slugOrID)
		if err != nil || !found {
			return "", found, err
		}
		return p.ID, true, nil
	}
	p, found, err := l.h.store.GetPrincipalBySlug(ctx, slugOrID)
	if err != nil || !found {
		return "", found, err
	}
	return p.ID, true, nil
}

func (l storeLookup) LookupCollection(ctx context.Context, ownerID string, kind path.ResourceTypeKind, slugOrID string) (string, bool, error) {
	if path.IsUUID(slugOrID) {
		c, found, err := l.h.store.GetCollectionByID(ctx, slugOrID)
		if err != nil || !found {
			return "", found, err
		}
		if c.OwnerPrincipalID != ownerID {
			return "", false, nil
		}
		return c.ID, true, nil
	}
	c, found, err := l.h.store.GetCollection(ctx, ownerID, collectionType(kind), slugOrID)
	if err != nil || !found {
		return "", found, err
	}
	return c.ID, true, nil
}

func (l storeLookup) LookupInstance(ctx context.Context, collectionID, slugOrID string) (string, bool, error) {
	if path.IsUUID(slugOrID) {
		inst, found, err := l.h.store.GetInstanceByID(ctx, slugOrID)
		if err != nil || !found {
			return "", found, err
		}
		if inst.CollectionID != collectionID {
			return "", false, nil
		}
		return inst.ID, true, nil
	}
	inst, found, err := l.h.store.GetInstanceBySlug(ctx, collectionID, slugOrID)
	if err != nil || !found {
		return "", found, err
	}
	return inst.ID, true, nil
}

func collectionType(kind path.ResourceTypeKind) model.CollectionType {
	if kind == path.Addressbook {
		return model.CollectionAddressbook
	}
	return model.CollectionCalendar
}

func resourceKindOf(typ model.CollectionType) path.ResourceTypeKind {
	if typ == model.CollectionAddressbook {
		return path.Addressbook
	}
	return path.Calendar
}
