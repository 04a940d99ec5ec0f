package index

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/sonroyaalmerol/shuriken-dav/internal/rfc/ical"
	"github.com/sonroyaalmerol/shuriken-dav/internal/rfc/vcard"
)

const calSample = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//Test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:evt-1\r\n" +
	"DTSTAMP:20250601T120000Z\r\n" +
	"DTSTART:20250602T090000Z\r\n" +
	"DTEND:20250602T100000Z\r\n" +
	"SUMMARY:Standup\r\n" +
	"LOCATION:Room 1\r\n" +
	"ORGANIZER;CN=Ada:mailto:ada@example.com\r\n" +
	"ATTENDEE:mailto:bob@example.com\r\n" +
	"ATTENDEE:mailto:carol@example.com\r\n" +
	"STATUS:CONFIRMED\r\n" +
	"TRANSP:OPAQUE\r\n" +
	"SEQUENCE:2\r\n" +
	"RRULE:FREQ=DAILY;COUNT=5\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestBuildCalIndex(t *testing.T) {
	root, err := ical.Parse([]byte(calSample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	rows := BuildCalIndex("entity-1", root, func(c *ical.Component) string { return "comp-1" }, now)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	row := rows[0]
	if row.UID == nil || *row.UID != "evt-1" {
		t.Fatalf("uid = %+v", row.UID)
	}
	if row.ComponentType != "VEVENT" {
		t.Fatalf("component type = %q", row.ComponentType)
	}
	if row.DTStartUTC == nil || !row.DTStartUTC.Equal(time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("dtstart = %+v", row.DTStartUTC)
	}
	if row.DTEndUTC == nil || !row.DTEndUTC.Equal(time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("dtend = %+v", row.DTEndUTC)
	}
	if row.AllDay == nil || *row.AllDay {
		t.Fatalf("all_day = %+v", row.AllDay)
	}
	if row.RRuleText == nil || *row.RRuleText != "FREQ=DAILY;COUNT=5" {
		t.Fatalf("rrule = %+v", row.RRuleText)
	}

	var meta calMetadata
	if err := json.Unmarshal(row.Metadata, &meta); err != nil {
		t.Fatalf("unmarshal metadata: %v", err)
	}
	if meta.Summary != "Standup" || meta.Location != "Room 1" {
		t.Fatalf("metadata = %+v", meta)
	}
	if meta.Organizer != "mailto:ada@example.com" || meta.OrganizerCN != "Ada" {
		t.Fatalf("organizer metadata = %+v", meta)
	}
	if meta.Status != "CONFIRMED" || meta.Transp != "OPAQUE" {
		t.Fatalf("status/transp = %+v", meta)
	}
	if meta.Sequence == nil || *meta.Sequence != 2 {
		t.Fatalf("sequence = %+v", meta.Sequence)
	}
	if len(meta.Attendees) != 2 {
		t.Fatalf("attendees = %+v", meta.Attendees)
	}
}

func TestBuildCalIndexDurationDerivedEnd(t *testing.T) {
	const sample = "BEGIN:VCALENDAR\r\n" +
		"VERSION:2.0\r\n" +
		"PRODID:-//Test//EN\r\n" +
		"BEGIN:VEVENT\r\n" +
		"UID:evt-2\r\n" +
		"DTSTAMP:20250601T120000Z\r\n" +
		"DTSTART:20250602T090000Z\r\n" +
		"DURATION:PT1H30M\r\n" +
		"END:VEVENT\r\n" +
		"END:VCALENDAR\r\n"
	root, err := ical.Parse([]byte(sample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	rows := BuildCalIndex("entity-2", root, func(c *ical.Component) string { return "comp-2" }, time.Now().UTC())
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	want := time.Date(2025, 6, 2, 10, 30, 0, 0, time.UTC)
	if rows[0].DTEndUTC == nil || !rows[0].DTEndUTC.Equal(want) {
		t.Fatalf("dtend = %+v, want %v", rows[0].DTEndUTC, want)
	}
}

const vcardSample = "BEGIN:VCARD\r\n" +
	"VERSION:4.0\r\n" +
	"UID:c1\r\n" +
	"FN:Ada Lovelace\r\n" +
	"N:Lovelace;Ada;;;\r\n" +
	"ORG:Analytical Engines Ltd\r\n" +
	"TITLE:Mathematician\r\n" +
	"EMAIL;TYPE=work:ada@example.com\r\n" +
	"EMAIL;TYPE=home:ada@home.example.com\r\n" +
	"TEL;TYPE=cell:+1-555-0100\r\n" +
	"END:VCARD\r\n"

func TestBuildCardIndex(t *testing.T) {
	card, err := vcard.Parse([]byte(vcardSample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	row := BuildCardIndex("entity-3", card, now)
	if row.UID == nil || *row.UID != "c1" {
		t.Fatalf("uid = %+v", row.UID)
	}
	if row.FN == nil || *row.FN != "Ada Lovelace" {
		t.Fatalf("fn = %+v", row.FN)
	}
	var data cardData
	if err := json.Unmarshal(row.Data, &data); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if data.NFamily != "Lovelace" || data.NGiven != "Ada" {
		t.Fatalf("n fields = %+v", data)
	}
	if data.Org != "Analytical Engines Ltd" || data.Title != "Mathematician" {
		t.Fatalf("org/title = %+v", data)
	}
	if len(data.Emails) != 2 || len(data.Phones) != 1 {
		t.Fatalf("emails/phones = %+v", data)
	}
}
