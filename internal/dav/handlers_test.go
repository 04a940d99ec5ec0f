package dav

import (
	"net/http"
	"testing"

	"github.com/sonroyaalmerol/shuriken-dav/internal/path"
)

func TestIsCreateMethod(t *testing.T) {
	for _, m := range []string{http.MethodPut, "MKCOL", "MKCALENDAR"} {
		if !isCreateMethod(m) {
			t.Fatalf("%s should be a create method", m)
		}
	}
	for _, m := range []string{http.MethodGet, "PROPFIND", "DELETE"} {
		if isCreateMethod(m) {
			t.Fatalf("%s should not be a create method", m)
		}
	}
}

func TestHrefForCalendarResource(t *testing.T) {
	raw := path.RawPath{
		ResourceType:   path.Calendar,
		OwnerSlug:      "alice",
		CollectionSlug: "work",
		ResourceSlug:   "event-1.ics",
	}
	got := hrefFor("/dav", raw, nil)
	want := "/dav/cal/alice/work/event-1.ics"
	if got != want {
		t.Fatalf("hrefFor = %q, want %q", got, want)
	}
}

func TestHrefForAddressbookCollection(t *testing.T) {
	raw := path.RawPath{
		ResourceType:   path.Addressbook,
		OwnerSlug:      "bob",
		CollectionSlug: "contacts",
	}
	got := hrefFor("/dav/", raw, nil)
	want := "/dav/card/bob/contacts"
	if got != want {
		t.Fatalf("hrefFor = %q, want %q", got, want)
	}
}

func TestHrefForOwnerHomeOnly(t *testing.T) {
	raw := path.RawPath{ResourceType: path.Calendar, OwnerSlug: "alice"}
	got := hrefFor("/dav", raw, nil)
	if got != "/dav/cal/alice" {
		t.Fatalf("hrefFor = %q, want /dav/cal/alice", got)
	}
}

func TestParseDepthDefaultsToInfinity(t *testing.T) {
	req, _ := http.NewRequest("PROPFIND", "/dav/cal/alice", nil)
	if got := parseDepth(req); got != "infinity" {
		t.Fatalf("parseDepth = %q, want infinity", got)
	}
	req.Header.Set("Depth", "1")
	if got := parseDepth(req); got != "1" {
		t.Fatalf("parseDepth = %q, want 1", got)
	}
}
