package ical

import (
	"strings"
	"testing"
)

const sampleEvent = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//Test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:m1\r\n" +
	"DTSTAMP:20250101T000000Z\r\n" +
	"DTSTART:20250101T100000Z\r\n" +
	"DURATION:PT1H\r\n" +
	"SUMMARY:M\r\n" +
	"X-CUSTOM:keep me\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestParseBasic(t *testing.T) {
	cal, err := Parse([]byte(sampleEvent))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cal.Kind != KindVCalendar {
		t.Fatalf("root kind = %s", cal.Kind)
	}
	if len(cal.Children) != 1 {
		t.Fatalf("children = %d", len(cal.Children))
	}
	ev := cal.Children[0]
	if ev.Kind != KindVEvent {
		t.Fatalf("child kind = %s", ev.Kind)
	}
	uid := ev.Get("UID")
	if uid == nil || uid.Value.Raw != "m1" {
		t.Fatalf("uid = %+v", uid)
	}
	dtstart := ev.Get("DTSTART")
	if dtstart == nil || !dtstart.Value.DateVal.UTC {
		t.Fatalf("dtstart = %+v", dtstart)
	}
	custom := ev.Get("X-CUSTOM")
	if custom == nil || custom.Value.Raw != "keep me" {
		t.Fatalf("unknown property not preserved: %+v", custom)
	}
}

func TestSerializeCanonicalOrder(t *testing.T) {
	cal, err := Parse([]byte(sampleEvent))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	out := string(Serialize(cal))
	summaryIdx := strings.Index(out, "SUMMARY:")
	customIdx := strings.Index(out, "X-CUSTOM:")
	uidIdx := strings.Index(out, "UID:")
	dtstampIdx := strings.Index(out, "DTSTAMP:")
	if !(uidIdx < dtstampIdx && dtstampIdx < summaryIdx && summaryIdx < customIdx) {
		t.Fatalf("canonical order violated: %s", out)
	}
}

func TestRoundTripBytesStable(t *testing.T) {
	cal, err := Parse([]byte(sampleEvent))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	b1 := Serialize(cal)
	cal2, err := Parse(b1)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	b2 := Serialize(cal2)
	if string(b1) != string(b2) {
		t.Fatalf("serialize not stable:\n%s\n---\n%s", b1, b2)
	}
}

func TestFoldedLongSummary(t *testing.T) {
	long := strings.Repeat("a", 200)
	raw := "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//T//EN\r\nBEGIN:VEVENT\r\nUID:u1\r\nDTSTAMP:20250101T000000Z\r\nDTSTART:20250101T100000Z\r\nSUMMARY:" + long + "\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n"
	cal, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	summary := cal.Children[0].Get("SUMMARY")
	if summary.Value.Raw != long {
		t.Fatalf("summary mismatch after fold/unfold")
	}
	out := Serialize(cal)
	for _, line := range strings.Split(strings.ReplaceAll(string(out), "\r\n", "\n"), "\n") {
		if len(line) > 75 && !strings.HasPrefix(line, " ") {
			t.Fatalf("unfolded line over 75 octets: %q", line)
		}
	}
}

func TestValidateMissingUID(t *testing.T) {
	raw := "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//T//EN\r\nBEGIN:VEVENT\r\nDTSTAMP:20250101T000000Z\r\nDTSTART:20250101T100000Z\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n"
	cal, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := Validate(cal); err == nil {
		t.Fatalf("expected validation error for missing UID")
	}
}
