package mapper

import (
	"testing"

	"github.com/sonroyaalmerol/shuriken-dav/internal/rfc/ical"
	"github.com/sonroyaalmerol/shuriken-dav/internal/rfc/vcard"
)

const icalSample = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//Test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:evt-1\r\n" +
	"DTSTAMP:20250601T120000Z\r\n" +
	"DTSTART:20250602T090000Z\r\n" +
	"DTEND:20250602T100000Z\r\n" +
	"SUMMARY:Standup\r\n" +
	"SEQUENCE:1\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestICalRoundTripThroughTree(t *testing.T) {
	root, err := ical.Parse([]byte(icalSample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	before := ical.Serialize(root)

	tree := ICalToTree(root)
	if tree.Entity.LogicalUID == nil || *tree.Entity.LogicalUID != "evt-1" {
		t.Fatalf("logical uid = %+v", tree.Entity.LogicalUID)
	}
	rebuilt := ICalFromTree(tree)
	after := ical.Serialize(rebuilt)

	if string(before) != string(after) {
		t.Fatalf("round trip mismatch:\n%s\n---\n%s", before, after)
	}
}

const icalRecurSample = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//Test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:evt-2\r\n" +
	"DTSTAMP:20250601T120000Z\r\n" +
	"DTSTART:20250602T090000Z\r\n" +
	"DTEND:20250602T100000Z\r\n" +
	"SUMMARY:Standup\r\n" +
	"RRULE:FREQ=DAILY;COUNT=10\r\n" +
	"EXDATE:20250603T090000Z,20250604T090000Z\r\n" +
	"RDATE:20250610T090000Z\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestICalRoundTripWithDateLists(t *testing.T) {
	root, err := ical.Parse([]byte(icalRecurSample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	before := ical.Serialize(root)

	tree := ICalToTree(root)
	rebuilt := ICalFromTree(tree)
	after := ical.Serialize(rebuilt)

	if string(before) != string(after) {
		t.Fatalf("round trip mismatch:\n%s\n---\n%s", before, after)
	}

	exdate := rebuilt.Children[0].Get("EXDATE")
	if exdate == nil || len(exdate.Value.DateList) != 2 {
		t.Fatalf("exdate list = %+v", exdate)
	}
}

const vcardSample = "BEGIN:VCARD\r\n" +
	"VERSION:4.0\r\n" +
	"UID:c1\r\n" +
	"FN:Ada Lovelace\r\n" +
	"N:Lovelace;Ada;;;\r\n" +
	"EMAIL;TYPE=work:ada@example.com\r\n" +
	"END:VCARD\r\n"

func TestVCardRoundTripThroughTree(t *testing.T) {
	card, err := vcard.Parse([]byte(vcardSample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	before := vcard.Serialize(card)

	tree := VCardToTree(card)
	if tree.Entity.LogicalUID == nil || *tree.Entity.LogicalUID != "c1" {
		t.Fatalf("logical uid = %+v", tree.Entity.LogicalUID)
	}
	rebuilt := VCardFromTree(tree)
	after := vcard.Serialize(rebuilt)

	if string(before) != string(after) {
		t.Fatalf("round trip mismatch:\n%s\n---\n%s", before, after)
	}
}
