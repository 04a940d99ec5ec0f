// Package index implements C6: building the denormalized cal_index/
// card_index rows a write transaction persists alongside the canonical
// tree, so calendar-query/addressbook-query REPORTs and free/busy
// computation never need to rehydrate the full entity to answer a filter.
package index

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/sonroyaalmerol/shuriken-dav/internal/rfc/ical"
	"github.com/sonroyaalmerol/shuriken-dav/internal/store/model"
)

// calMetadata mirrors the jsonb keys original_source's caldav_keys.rs
// defines: summary, location, description, organizer, organizer_cn,
// sequence, transp, status, attendees.
type calMetadata struct {
	Summary      string   `json:"summary,omitempty"`
	Location     string   `json:"location,omitempty"`
	Description  string   `json:"description,omitempty"`
	Organizer    string   `json:"organizer,omitempty"`
	OrganizerCN  string   `json:"organizer_cn,omitempty"`
	Sequence     *int64   `json:"sequence,omitempty"`
	Transp       string   `json:"transp,omitempty"`
	Status       string   `json:"status,omitempty"`
	Attendees    []string `json:"attendees,omitempty"`
}

// indexableKinds are the component kinds cal_index rows exist for; every
// other child of a VCALENDAR (VTIMEZONE, VALARM, ...) is skipped.
var indexableKinds = map[ical.ComponentKind]bool{
	ical.KindVEvent:    true,
	ical.KindVTodo:     true,
	ical.KindVJournal:  true,
	ical.KindVFreeBusy: true,
}

// BuildCalIndex implements §4.6's cal_index rebuild: one row per
// indexable child component of a parsed VCALENDAR, keyed by the matching
// canonical model.Component row so the caller can line up EntityID/
// ComponentID foreign keys. componentIDs maps child components to the
// model.Component.ID the mapper assigned it, in the same order root.Children
// appears (i.e. index i of the returned slice corresponds to the i-th
// indexable child, using ids supplied via componentIDFor).
func BuildCalIndex(entityID string, root *ical.Component, componentIDFor func(child *ical.Component) string, now time.Time) []model.CalIndex {
	var rows []model.CalIndex
	for _, child := range root.Children {
		if !indexableKinds[child.Kind] {
			continue
		}
		rows = append(rows, buildCalIndexRow(entityID, componentIDFor(child), child, now))
	}
	return rows
}

func buildCalIndexRow(entityID, componentID string, c *ical.Component, now time.Time) model.CalIndex {
	row := model.CalIndex{
		EntityID:      entityID,
		ComponentID:   componentID,
		ComponentType: c.Name(),
		UpdatedAt:     now,
	}
	if uid := c.Get("UID"); uid != nil {
		v := uid.Value.Raw
		row.UID = &v
	}
	if rid := c.Get("RECURRENCE-ID"); rid != nil && (rid.Value.Kind == ical.ValueDate || rid.Value.Kind == ical.ValueDateTime) {
		t := dateTimeToUTC(rid.Value.DateVal)
		row.RecurrenceIDUTC = &t
	}
	dtstart := c.Get("DTSTART")
	if dtstart != nil && (dtstart.Value.Kind == ical.ValueDate || dtstart.Value.Kind == ical.ValueDateTime) {
		allDay := dtstart.Value.Kind == ical.ValueDate
		row.AllDay = &allDay
		t := dateTimeToUTC(dtstart.Value.DateVal)
		row.DTStartUTC = &t
		row.DTEndUTC = computeDTEnd(c, dtstart.Value.DateVal, t)
	}
	if rrule := c.Get("RRULE"); rrule != nil {
		v := rrule.Value.Raw
		row.RRuleText = &v
	}
	row.Metadata = buildCalMetadata(c)
	return row
}

// computeDTEnd resolves DTEND (VEVENT), DUE (VTODO), or a DTSTART+DURATION
// pair to a UTC instant. A component with none of the three has no bound end
// (open-ended VTODO, instantaneous VJOURNAL) and DTEndUTC stays nil.
func computeDTEnd(c *ical.Component, start ical.DateTime, startUTC time.Time) *time.Time {
	if end := c.Get("DTEND"); end != nil && (end.Value.Kind == ical.ValueDate || end.Value.Kind == ical.ValueDateTime) {
		t := dateTimeToUTC(end.Value.DateVal)
		return &t
	}
	if due := c.Get("DUE"); due != nil && (due.Value.Kind == ical.ValueDate || due.Value.Kind == ical.ValueDateTime) {
		t := dateTimeToUTC(due.Value.DateVal)
		return &t
	}
	if dur := c.Get("DURATION"); dur != nil {
		if d, ok := parseISODuration(dur.Value.Raw); ok {
			t := startUTC.Add(d)
			return &t
		}
	}
	return nil
}

// dateTimeToUTC resolves a DateTime to an instant for indexing purposes.
// UTC values convert directly; floating and TZID-qualified values are
// treated as that wall-clock time in UTC here — C7's timezone cache
// resolves the precise offset when a request actually needs one, but the
// index only needs a stable, sortable bound for time-range pruning.
func dateTimeToUTC(dt ical.DateTime) time.Time {
	return time.Date(dt.Year, time.Month(dt.Month), dt.Day, dt.Hour, dt.Minute, dt.Second, 0, time.UTC)
}

// parseISODuration parses the subset of RFC 5545 §3.3.6 DURATION values
// cal_index needs to derive a DTEND bound: signed P[n]W / P[n]DT[n]H[n]M[n]S.
func parseISODuration(s string) (time.Duration, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	neg := false
	if strings.HasPrefix(s, "+") {
		s = s[1:]
	} else if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	if !strings.HasPrefix(s, "P") {
		return 0, false
	}
	s = s[1:]
	var total time.Duration
	inTime := false
	var num strings.Builder
	for _, r := range s {
		switch {
		case r == 'T':
			inTime = true
		case r >= '0' && r <= '9':
			num.WriteRune(r)
		case r == 'W':
			n := atoi(num.String())
			total += time.Duration(n) * 7 * 24 * time.Hour
			num.Reset()
		case r == 'D':
			n := atoi(num.String())
			total += time.Duration(n) * 24 * time.Hour
			num.Reset()
		case r == 'H' && inTime:
			n := atoi(num.String())
			total += time.Duration(n) * time.Hour
			num.Reset()
		case r == 'M' && inTime:
			n := atoi(num.String())
			total += time.Duration(n) * time.Minute
			num.Reset()
		case r == 'S' && inTime:
			n := atoi(num.String())
			total += time.Duration(n) * time.Second
			num.Reset()
		default:
			return 0, false
		}
	}
	if neg {
		total = -total
	}
	return total, true
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}

func buildCalMetadata(c *ical.Component) []byte {
	meta := calMetadata{}
	if p := c.Get("SUMMARY"); p != nil {
		meta.Summary = p.Value.Raw
	}
	if p := c.Get("LOCATION"); p != nil {
		meta.Location = p.Value.Raw
	}
	if p := c.Get("DESCRIPTION"); p != nil {
		meta.Description = p.Value.Raw
	}
	if p := c.Get("ORGANIZER"); p != nil {
		meta.Organizer = p.Value.Raw
		meta.OrganizerCN = p.Param("CN")
	}
	if p := c.Get("SEQUENCE"); p != nil {
		if v, err := strconv.ParseInt(strings.TrimSpace(p.Value.Raw), 10, 64); err == nil {
			meta.Sequence = &v
		}
	}
	if p := c.Get("TRANSP"); p != nil {
		meta.Transp = p.Value.Raw
	}
	if p := c.Get("STATUS"); p != nil {
		meta.Status = p.Value.Raw
	}
	for _, p := range c.All("ATTENDEE") {
		meta.Attendees = append(meta.Attendees, p.Value.Raw)
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return []byte("{}")
	}
	return b
}
