// Package recur implements C7: resolving a VEVENT/VTODO's DTSTART/DTEND (or
// DURATION) to UTC and expanding its RRULE/RDATE/EXDATE set, with
// RECURRENCE-ID exception components substituted in, against a bounded
// [range_start_utc, range_end_utc) window.
package recur

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/sonroyaalmerol/shuriken-dav/internal/rfc/ical"
)

// TimezoneResolver resolves a VTIMEZONE TZID to a *time.Location. C8 wires
// this to a two-level lookup: Cache's in-memory VTIMEZONE-derived zones
// first, then C12's persisted timezone table, per §4.7 step 1.
type TimezoneResolver interface {
	Location(tzid string) (*time.Location, bool)
}

// Window bounds one expansion request.
type Window struct {
	RangeStartUTC time.Time
	RangeEndUTC   time.Time
	MaxInstances  int
}

// Occurrence is one (start_utc, end_utc, recurrence_id_utc) triple C7 emits.
type Occurrence struct {
	StartUTC        time.Time
	EndUTC          time.Time
	RecurrenceIDUTC time.Time
	AllDay          bool
	// Source is the master component for a plain recurrence instance, or the
	// overriding exception component when a RECURRENCE-ID substitution
	// applied.
	Source *ical.Component
}

// Result is the outcome of Expand.
type Result struct {
	Occurrences []Occurrence
	Truncated   bool
	// Warnings records non-fatal issues (e.g. an unresolvable TZID that fell
	// back to UTC), per §4.7's "record a soft warning".
	Warnings []string
}

// Expand implements §4.7. master is the VEVENT/VTODO/VJOURNAL
// component without a RECURRENCE-ID; exceptions are sibling components
// sharing its UID that each carry one. defaultZone resolves floating
// (no TZID, no Z suffix) values; pass time.UTC if the caller has no better
// default (e.g. no owning collection timezone is configured).
func Expand(master *ical.Component, exceptions []*ical.Component, tz TimezoneResolver, defaultZone *time.Location, win Window) (Result, error) {
	dtstart := master.Get("DTSTART")
	if dtstart == nil {
		return Result{}, fmt.Errorf("recur: component has no DTSTART")
	}
	if dtstart.Value.Kind != ical.ValueDate && dtstart.Value.Kind != ical.ValueDateTime {
		return Result{}, fmt.Errorf("recur: DTSTART has no date value")
	}
	allDay := dtstart.Value.Kind == ical.ValueDate

	var res Result
	startUTC, warn := resolveUTC(dtstart.Value.DateVal, tz, defaultZone)
	if warn != "" {
		res.Warnings = append(res.Warnings, warn)
	}
	duration, err := resolveDuration(master, startUTC, allDay)
	if err != nil {
		return Result{}, err
	}

	exceptionByRecID := map[int64]*ical.Component{}
	for _, ex := range exceptions {
		rid := ex.Get("RECURRENCE-ID")
		if rid == nil {
			continue
		}
		t, w := resolveUTC(rid.Value.DateVal, tz, defaultZone)
		if w != "" {
			res.Warnings = append(res.Warnings, w)
		}
		exceptionByRecID[t.Unix()] = ex
	}

	var instants []time.Time
	if rrule := master.Get("RRULE"); rrule != nil {
		occ, err := expandRRule(rrule.Value.Raw, startUTC, duration, win)
		if err != nil {
			return Result{}, fmt.Errorf("recur: invalid RRULE: %w", err)
		}
		instants = append(instants, occ...)
	} else {
		instants = append(instants, startUTC)
	}

	for _, rdate := range master.All("RDATE") {
		for _, dt := range dateListOf(rdate) {
			t, w := resolveUTC(dt, tz, defaultZone)
			if w != "" {
				res.Warnings = append(res.Warnings, w)
			}
			instants = append(instants, t)
		}
	}

	excluded := map[int64]bool{}
	for _, exdate := range master.All("EXDATE") {
		for _, dt := range dateListOf(exdate) {
			t, w := resolveUTC(dt, tz, defaultZone)
			if w != "" {
				res.Warnings = append(res.Warnings, w)
			}
			excluded[t.Unix()] = true
		}
	}

	instants = dedupeSorted(instants)

	max := win.MaxInstances
	if max <= 0 {
		max = 1
	}
	for _, t := range instants {
		if excluded[t.Unix()] {
			continue
		}
		start, end, source := t, t.Add(duration), master
		if ex, ok := exceptionByRecID[t.Unix()]; ok {
			source = ex
			if exStart := ex.Get("DTSTART"); exStart != nil && (exStart.Value.Kind == ical.ValueDate || exStart.Value.Kind == ical.ValueDateTime) {
				start, _ = resolveUTC(exStart.Value.DateVal, tz, defaultZone)
				d, err := resolveDuration(ex, start, exStart.Value.Kind == ical.ValueDate)
				if err != nil {
					return Result{}, err
				}
				end = start.Add(d)
			}
		}
		if !overlaps(start, end, win.RangeStartUTC, win.RangeEndUTC) {
			continue
		}
		if len(res.Occurrences) >= max {
			res.Truncated = true
			break
		}
		res.Occurrences = append(res.Occurrences, Occurrence{
			StartUTC:        start,
			EndUTC:          end,
			RecurrenceIDUTC: t,
			AllDay:          allDay,
			Source:          source,
		})
	}
	return res, nil
}

func expandRRule(rruleText string, startUTC time.Time, duration time.Duration, win Window) ([]time.Time, error) {
	rruleStr := "DTSTART:" + startUTC.UTC().Format("20060102T150405Z") + "\n" + ensureRRulePrefix(rruleText)
	rule, err := rrule.StrToRRule(rruleStr)
	if err != nil {
		return nil, err
	}
	extendedEnd := win.RangeEndUTC.Add(duration)
	rangeStart := win.RangeStartUTC.Add(-duration)
	return rule.Between(rangeStart, extendedEnd, true), nil
}

func ensureRRulePrefix(s string) string {
	if strings.HasPrefix(strings.ToUpper(s), "RRULE:") {
		return s
	}
	return "RRULE:" + s
}

// resolveDuration derives the occurrence length from DTEND/DUE, or DURATION,
// or the RFC 5545 §3.6.1 default (24h for all-day DTSTART-only VEVENTs, 0
// otherwise).
func resolveDuration(c *ical.Component, startUTC time.Time, allDay bool) (time.Duration, error) {
	if end := c.Get("DTEND"); end != nil {
		if end.Value.Kind != ical.ValueDate && end.Value.Kind != ical.ValueDateTime {
			return 0, fmt.Errorf("recur: DTEND has no date value")
		}
		t, _ := resolveUTC(end.Value.DateVal, noResolver{}, time.UTC)
		return t.Sub(startUTC), nil
	}
	if due := c.Get("DUE"); due != nil {
		if due.Value.Kind != ical.ValueDate && due.Value.Kind != ical.ValueDateTime {
			return 0, fmt.Errorf("recur: DUE has no date value")
		}
		t, _ := resolveUTC(due.Value.DateVal, noResolver{}, time.UTC)
		return t.Sub(startUTC), nil
	}
	if dur := c.Get("DURATION"); dur != nil {
		d, ok := parseISODuration(dur.Value.Raw)
		if !ok {
			return 0, fmt.Errorf("recur: invalid DURATION %q", dur.Value.Raw)
		}
		return d, nil
	}
	if allDay {
		return 24 * time.Hour, nil
	}
	return 0, nil
}

type noResolver struct{}

func (noResolver) Location(string) (*time.Location, bool) { return nil, false }

// resolveUTC converts a parsed DateTime to an instant. UTC ('Z') values
// convert directly; TZID-qualified values are resolved via tz, falling back
// to UTC with a warning if the zone is unknown; floating values (no TZID, no
// Z) use defaultZone.
func resolveUTC(dt ical.DateTime, tz TimezoneResolver, defaultZone *time.Location) (time.Time, string) {
	if dt.AllDay {
		return time.Date(dt.Year, time.Month(dt.Month), dt.Day, 0, 0, 0, 0, time.UTC), ""
	}
	if dt.UTC {
		return time.Date(dt.Year, time.Month(dt.Month), dt.Day, dt.Hour, dt.Minute, dt.Second, 0, time.UTC), ""
	}
	if dt.TZID != "" {
		if loc, ok := tz.Location(dt.TZID); ok {
			return time.Date(dt.Year, time.Month(dt.Month), dt.Day, dt.Hour, dt.Minute, dt.Second, 0, loc).UTC(), ""
		}
		return time.Date(dt.Year, time.Month(dt.Month), dt.Day, dt.Hour, dt.Minute, dt.Second, 0, time.UTC), fmt.Sprintf("unknown tzid %q, treated as UTC", dt.TZID)
	}
	loc := defaultZone
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(dt.Year, time.Month(dt.Month), dt.Day, dt.Hour, dt.Minute, dt.Second, 0, loc).UTC(), ""
}

func dateListOf(p *ical.Property) []ical.DateTime {
	if len(p.Value.DateList) > 0 {
		return p.Value.DateList
	}
	return []ical.DateTime{p.Value.DateVal}
}

func dedupeSorted(ts []time.Time) []time.Time {
	sort.Slice(ts, func(i, j int) bool { return ts[i].Before(ts[j]) })
	out := ts[:0]
	var last time.Time
	haveLast := false
	for _, t := range ts {
		if haveLast && t.Equal(last) {
			continue
		}
		out = append(out, t)
		last = t
		haveLast = true
	}
	return out
}

func overlaps(startA, endA, startB, endB time.Time) bool {
	return startA.Before(endB) && endA.After(startB)
}

// parseISODuration parses the RFC 5545 §3.3.6 subset C7/C6 need:
// signed P[n]W / P[n]DT[n]H[n]M[n]S.
func parseISODuration(s string) (time.Duration, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	neg := false
	switch {
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	case strings.HasPrefix(s, "-"):
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
			total += time.Duration(atoi(num.String())) * 7 * 24 * time.Hour
			num.Reset()
		case r == 'D':
			total += time.Duration(atoi(num.String())) * 24 * time.Hour
			num.Reset()
		case r == 'H' && inTime:
			total += time.Duration(atoi(num.String())) * time.Hour
			num.Reset()
		case r == 'M' && inTime:
			total += time.Duration(atoi(num.String())) * time.Minute
			num.Reset()
		case r == 'S' && inTime:
			total += time.Duration(atoi(num.String())) * time.Second
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
