package recur

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/sonroyaalmerol/shuriken-dav/internal/rfc/ical"
)

// Cache is C7's in-memory VTIMEZONE-derived TimezoneResolver: one VCALENDAR
// request registers every VTIMEZONE it carries, and subsequent TZID
// resolution within the same request (and across requests referencing the
// same previously-seen TZID) is a lock-protected map lookup. A VTIMEZONE is
// reduced to a single fixed UTC offset: the TZOFFSETTO (and TZNAME) of
// whichever STANDARD or DAYLIGHT observance has the latest DTSTART — this
// loses DST-transition precision but keeps resolution deterministic without
// reimplementing the IANA transition-rule engine the standard library
// already ships for named zones. Location checks these registrations
// first, then time.LoadLocation. Fallback, if set, is consulted after both the
// in-memory cache and the IANA database miss — wired by C8 to the persisted
// cal_timezone table for client-supplied custom VTIMEZONEs seen on a prior
// write.
type Cache struct {
	mu        sync.RWMutex
	locations map[string]*time.Location
	Fallback  TimezoneResolver
}

// NewCache constructs an empty Cache.
func NewCache() *Cache {
	return &Cache{locations: map[string]*time.Location{}}
}

// Register reduces a VTIMEZONE component to a fixed-offset *time.Location
// and stores it under its TZID.
func (c *Cache) Register(vtimezone *ical.Component) error {
	if vtimezone.Kind != ical.KindVTimezone {
		return fmt.Errorf("recur: Register requires a VTIMEZONE component, got %s", vtimezone.Name())
	}
	tzidProp := vtimezone.Get("TZID")
	if tzidProp == nil {
		return fmt.Errorf("recur: VTIMEZONE missing TZID")
	}
	loc, err := locationFromObservances(vtimezone)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.locations[tzidProp.Value.Raw] = loc
	c.mu.Unlock()
	return nil
}

// Location implements TimezoneResolver: in-memory registrations first, then
// the IANA tzdata (the "IANA fallback table" §4.7 names), then
// Fallback if set.
func (c *Cache) Location(tzid string) (*time.Location, bool) {
	c.mu.RLock()
	loc, ok := c.locations[tzid]
	c.mu.RUnlock()
	if ok {
		return loc, true
	}
	if named, err := time.LoadLocation(tzid); err == nil {
		c.mu.Lock()
		c.locations[tzid] = named
		c.mu.Unlock()
		return named, true
	}
	if c.Fallback != nil {
		return c.Fallback.Location(tzid)
	}
	return nil, false
}

func locationFromObservances(vtimezone *ical.Component) (*time.Location, error) {
	var chosen *ical.Component
	var chosenStart ical.DateTime
	for _, kind := range []ical.ComponentKind{ical.KindStandard, ical.KindDaylight} {
		for _, obs := range vtimezone.ChildrenOfKind(kind) {
			dtstart := obs.Get("DTSTART")
			if dtstart == nil {
				continue
			}
			if chosen == nil || laterDate(dtstart.Value.DateVal, chosenStart) {
				chosen = obs
				chosenStart = dtstart.Value.DateVal
			}
		}
	}
	if chosen == nil {
		return nil, fmt.Errorf("recur: VTIMEZONE has no STANDARD/DAYLIGHT observance")
	}
	offsetProp := chosen.Get("TZOFFSETTO")
	if offsetProp == nil {
		return nil, fmt.Errorf("recur: VTIMEZONE observance missing TZOFFSETTO")
	}
	seconds, err := parseUTCOffset(offsetProp.Value.Raw)
	if err != nil {
		return nil, err
	}
	name := offsetProp.Value.Raw
	if tznameProp := chosen.Get("TZNAME"); tznameProp != nil {
		name = tznameProp.Value.Raw
	}
	return time.FixedZone(name, seconds), nil
}

func laterDate(a, b ical.DateTime) bool {
	at := time.Date(a.Year, time.Month(a.Month), a.Day, a.Hour, a.Minute, a.Second, 0, time.UTC)
	bt := time.Date(b.Year, time.Month(b.Month), b.Day, b.Hour, b.Minute, b.Second, 0, time.UTC)
	return at.After(bt)
}

// parseUTCOffset parses a TZOFFSETTO/TZOFFSETFROM value: sign, 2-digit
// hours, 2-digit minutes, optional 2-digit seconds (RFC 5545 §3.3.14).
func parseUTCOffset(s string) (int, error) {
	if len(s) != 5 && len(s) != 7 {
		return 0, fmt.Errorf("recur: invalid utc-offset %q", s)
	}
	sign := 1
	switch s[0] {
	case '+':
	case '-':
		sign = -1
	default:
		return 0, fmt.Errorf("recur: invalid utc-offset %q", s)
	}
	h, err := strconv.Atoi(s[1:3])
	if err != nil {
		return 0, fmt.Errorf("recur: invalid utc-offset %q", s)
	}
	m, err := strconv.Atoi(s[3:5])
	if err != nil {
		return 0, fmt.Errorf("recur: invalid utc-offset %q", s)
	}
	sec := 0
	if len(s) == 7 {
		sec, err = strconv.Atoi(s[5:7])
		if err != nil {
			return 0, fmt.Errorf("recur: invalid utc-offset %q", s)
		}
	}
	return sign * (h*3600 + m*60 + sec), nil
}
