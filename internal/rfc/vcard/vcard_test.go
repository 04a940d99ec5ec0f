package vcard

import (
	"strings"
	"testing"
)

const sample = "BEGIN:VCARD\r\n" +
	"VERSION:4.0\r\n" +
	"UID:c1\r\n" +
	"FN:Ada Lovelace\r\n" +
	"N:Lovelace;Ada;;;\r\n" +
	"EMAIL;TYPE=work:ada@example.com\r\n" +
	"X-CUSTOM:hello\r\n" +
	"END:VCARD\r\n"

func TestParseAndValidate(t *testing.T) {
	card, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := Validate(card); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if UID(card) != "c1" {
		t.Fatalf("uid = %s", UID(card))
	}
	fn := card.Get("FN")
	if fn == nil || fn.Value != "Ada Lovelace" {
		t.Fatalf("fn = %+v", fn)
	}
	n := card.Get("N")
	fields := StructuredFields(n.Value)
	if len(fields) < 2 || fields[0][0] != "Lovelace" || fields[1][0] != "Ada" {
		t.Fatalf("structured N mismatch: %v", fields)
	}
}

func TestSerializeCanonicalOrder(t *testing.T) {
	card, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	out := string(Serialize(card))
	versionIdx := strings.Index(out, "VERSION:")
	uidIdx := strings.Index(out, "UID:")
	fnIdx := strings.Index(out, "FN:")
	customIdx := strings.Index(out, "X-CUSTOM:")
	if !(versionIdx < uidIdx && uidIdx < fnIdx && fnIdx < customIdx) {
		t.Fatalf("canonical order violated:\n%s", out)
	}
	if !strings.HasPrefix(out, "BEGIN:VCARD") {
		t.Fatalf("missing BEGIN:VCARD")
	}
}

func TestMissingFNFails(t *testing.T) {
	raw := "BEGIN:VCARD\r\nVERSION:3.0\r\nUID:c2\r\nEND:VCARD\r\n"
	card, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := Validate(card); err == nil {
		t.Fatalf("expected missing FN error")
	}
}

func TestRoundTripStable(t *testing.T) {
	card, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	b1 := Serialize(card)
	card2, err := Parse(b1)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	b2 := Serialize(card2)
	if string(b1) != string(b2) {
		t.Fatalf("not stable:\n%s\n---\n%s", b1, b2)
	}
}
