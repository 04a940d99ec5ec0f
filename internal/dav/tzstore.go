package dav

import (
	"context"
	"time"

	"github.com/sonroyaalmerol/shuriken-dav/internal/recur"
	"github.com/sonroyaalmerol/shuriken-dav/internal/rfc/ical"
	"github.com/sonroyaalmerol/shuriken-dav/internal/store/model"
)

// persistedTZResolver implements recur.TimezoneResolver over the cal_timezone
// table (C12), the second of C7's two-level lookup: in-memory
// VTIMEZONE-derived zones first (recur.Cache itself), then this, per
// §4.7 step 1. Registered as Cache.Fallback in NewHandlers.
type persistedTZResolver struct {
	h *Handlers
}

func (r persistedTZResolver) Location(tzid string) (*time.Location, bool) {
	text, found, err := r.h.store.GetTimezone(context.Background(), tzid)
	if err != nil || !found {
		return nil, false
	}
	comp, err := ical.Parse([]byte(text))
	if err != nil || comp.Kind != ical.KindVTimezone {
		return nil, false
	}
	scratch := recur.NewCache()
	if err := scratch.Register(comp); err != nil {
		return nil, false
	}
	loc, ok := scratch.Location(tzid)
	return loc, ok
}

// rememberTimezone persists a VTIMEZONE seen on a write so later requests
// (from clients that omit it on subsequent PUTs referencing the same TZID)
// can still resolve it, per §4.7's "record it for reuse".
func (h *Handlers) rememberTimezone(ctx context.Context, vtimezone *ical.Component) {
	tzidProp := vtimezone.Get("TZID")
	if tzidProp == nil {
		return
	}
	_ = h.store.PutTimezone(ctx, model.TimezoneCacheEntry{
		TZID:          tzidProp.Value.Raw,
		VTimezoneText: string(ical.Serialize(vtimezone)),
	})
}
