package recur

import (
	"testing"
	"time"

	"github.com/sonroyaalmerol/shuriken-dav/internal/rfc/ical"
)

func mustParse(t *testing.T, src string) *ical.Component {
	t.Helper()
	c, err := ical.Parse([]byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return c
}

func TestExpandDailyRRuleWithExdate(t *testing.T) {
	const src = "BEGIN:VCALENDAR\r\n" +
		"VERSION:2.0\r\n" +
		"PRODID:-//Test//EN\r\n" +
		"BEGIN:VEVENT\r\n" +
		"UID:evt-1\r\n" +
		"DTSTAMP:20250601T120000Z\r\n" +
		"DTSTART:20250602T090000Z\r\n" +
		"DTEND:20250602T100000Z\r\n" +
		"RRULE:FREQ=DAILY;COUNT=5\r\n" +
		"EXDATE:20250604T090000Z\r\n" +
		"END:VEVENT\r\n" +
		"END:VCALENDAR\r\n"
	root := mustParse(t, src)
	event := root.Children[0]

	win := Window{
		RangeStartUTC: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		RangeEndUTC:   time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC),
		MaxInstances:  100,
	}
	res, err := Expand(event, nil, NewCache(), time.UTC, win)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if len(res.Occurrences) != 4 {
		t.Fatalf("expected 4 occurrences (5 - 1 exdate), got %d: %+v", len(res.Occurrences), res.Occurrences)
	}
	for _, occ := range res.Occurrences {
		if occ.StartUTC.Equal(time.Date(2025, 6, 4, 9, 0, 0, 0, time.UTC)) {
			t.Fatalf("excluded instance present: %+v", occ)
		}
		if occ.EndUTC.Sub(occ.StartUTC) != time.Hour {
			t.Fatalf("duration = %v", occ.EndUTC.Sub(occ.StartUTC))
		}
	}
	if res.Truncated {
		t.Fatalf("should not be truncated")
	}
}

func TestExpandRecurrenceIDException(t *testing.T) {
	const masterSrc = "BEGIN:VCALENDAR\r\n" +
		"VERSION:2.0\r\n" +
		"PRODID:-//Test//EN\r\n" +
		"BEGIN:VEVENT\r\n" +
		"UID:evt-2\r\n" +
		"DTSTAMP:20250601T120000Z\r\n" +
		"DTSTART:20250602T090000Z\r\n" +
		"DTEND:20250602T100000Z\r\n" +
		"SUMMARY:Standup\r\n" +
		"RRULE:FREQ=DAILY;COUNT=3\r\n" +
		"END:VEVENT\r\n" +
		"END:VCALENDAR\r\n"
	const exceptionSrc = "BEGIN:VCALENDAR\r\n" +
		"VERSION:2.0\r\n" +
		"PRODID:-//Test//EN\r\n" +
		"BEGIN:VEVENT\r\n" +
		"UID:evt-2\r\n" +
		"DTSTAMP:20250601T120000Z\r\n" +
		"RECURRENCE-ID:20250603T090000Z\r\n" +
		"DTSTART:20250603T110000Z\r\n" +
		"DTEND:20250603T120000Z\r\n" +
		"SUMMARY:Standup (moved)\r\n" +
		"END:VEVENT\r\n" +
		"END:VCALENDAR\r\n"
	master := mustParse(t, masterSrc).Children[0]
	exception := mustParse(t, exceptionSrc).Children[0]

	win := Window{
		RangeStartUTC: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		RangeEndUTC:   time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC),
		MaxInstances:  100,
	}
	res, err := Expand(master, []*ical.Component{exception}, NewCache(), time.UTC, win)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if len(res.Occurrences) != 3 {
		t.Fatalf("expected 3 occurrences, got %d", len(res.Occurrences))
	}
	found := false
	for _, occ := range res.Occurrences {
		if occ.RecurrenceIDUTC.Equal(time.Date(2025, 6, 3, 9, 0, 0, 0, time.UTC)) {
			found = true
			if occ.Source != exception {
				t.Fatalf("expected exception component substituted at recurrence-id 2025-06-03")
			}
			if !occ.StartUTC.Equal(time.Date(2025, 6, 3, 11, 0, 0, 0, time.UTC)) {
				t.Fatalf("expected moved start time, got %v", occ.StartUTC)
			}
		}
	}
	if !found {
		t.Fatalf("exception recurrence-id not found among occurrences")
	}
}

func TestExpandMaxInstancesTruncates(t *testing.T) {
	const src = "BEGIN:VCALENDAR\r\n" +
		"VERSION:2.0\r\n" +
		"PRODID:-//Test//EN\r\n" +
		"BEGIN:VEVENT\r\n" +
		"UID:evt-3\r\n" +
		"DTSTAMP:20250601T120000Z\r\n" +
		"DTSTART:20250602T090000Z\r\n" +
		"DTEND:20250602T100000Z\r\n" +
		"RRULE:FREQ=DAILY;COUNT=20\r\n" +
		"END:VEVENT\r\n" +
		"END:VCALENDAR\r\n"
	event := mustParse(t, src).Children[0]
	win := Window{
		RangeStartUTC: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		RangeEndUTC:   time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC),
		MaxInstances:  3,
	}
	res, err := Expand(event, nil, NewCache(), time.UTC, win)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if len(res.Occurrences) != 3 {
		t.Fatalf("expected 3 occurrences, got %d", len(res.Occurrences))
	}
	if !res.Truncated {
		t.Fatalf("expected truncated = true")
	}
}

func TestCacheRegisterAndResolve(t *testing.T) {
	const tzSrc = "BEGIN:VCALENDAR\r\n" +
		"VERSION:2.0\r\n" +
		"PRODID:-//Test//EN\r\n" +
		"BEGIN:VTIMEZONE\r\n" +
		"TZID:Custom/Fixed\r\n" +
		"BEGIN:STANDARD\r\n" +
		"DTSTART:19700101T000000\r\n" +
		"TZOFFSETFROM:+0900\r\n" +
		"TZOFFSETTO:+0900\r\n" +
		"TZNAME:CFT\r\n" +
		"END:STANDARD\r\n" +
		"END:VTIMEZONE\r\n" +
		"END:VCALENDAR\r\n"
	root := mustParse(t, tzSrc)
	cache := NewCache()
	if err := cache.Register(root.Children[0]); err != nil {
		t.Fatalf("register: %v", err)
	}
	loc, ok := cache.Location("Custom/Fixed")
	if !ok {
		t.Fatalf("expected Custom/Fixed to resolve")
	}
	tm := time.Date(2025, 6, 2, 9, 0, 0, 0, loc)
	if _, offset := tm.Zone(); offset != 9*3600 {
		t.Fatalf("offset = %d, want %d", offset, 9*3600)
	}
}
