package dav

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sonroyaalmerol/shuriken-dav/internal/path"
)

func TestHandleOptionsUnresolvedPathListsFullMethodSuperset(t *testing.T) {
	h := &Handlers{}
	rw := httptest.NewRecorder()

	h.handleOptions(rw, nil)

	if rw.Code != 200 {
		t.Fatalf("status = %d, want 200", rw.Code)
	}
	dav := rw.Header().Get("DAV")
	if !strings.Contains(dav, "access-control") || !strings.Contains(dav, "sync-collection") {
		t.Fatalf("DAV header = %q, missing expected compliance classes", dav)
	}
	allow := rw.Header().Get("Allow")
	for _, m := range []string{"MKCOL", "MKCALENDAR", "PUT"} {
		if !strings.Contains(allow, m) {
			t.Fatalf("Allow = %q, want it to contain %s", allow, m)
		}
	}
}

func TestHandleOptionsResourceNarrowsAllow(t *testing.T) {
	h := &Handlers{}
	rw := httptest.NewRecorder()
	loc := &path.ResourceLocation{Segments: []path.PathSegment{
		{Kind: path.SegResourceType, ResourceType: path.Calendar},
		{Kind: path.SegPrincipal, ID: "alice-id", Slug: "alice"},
		{Kind: path.SegCollection, ID: "col-id", Slug: "work"},
		{Kind: path.SegResource, ID: "res-id", Slug: "event-1.ics"},
	}}

	h.handleOptions(rw, loc)

	allow := rw.Header().Get("Allow")
	if strings.Contains(allow, "MKCOL") || strings.Contains(allow, "MKCALENDAR") {
		t.Fatalf("Allow = %q, a resource should not advertise MKCOL/MKCALENDAR", allow)
	}
	if !strings.Contains(allow, "PUT") || !strings.Contains(allow, "DELETE") {
		t.Fatalf("Allow = %q, a resource should advertise PUT and DELETE", allow)
	}
}

func TestHandleOptionsCollectionNarrowsAllow(t *testing.T) {
	h := &Handlers{}
	rw := httptest.NewRecorder()
	loc := &path.ResourceLocation{Segments: []path.PathSegment{
		{Kind: path.SegResourceType, ResourceType: path.Calendar},
		{Kind: path.SegPrincipal, ID: "alice-id", Slug: "alice"},
		{Kind: path.SegCollection, ID: "col-id", Slug: "work"},
	}}

	h.handleOptions(rw, loc)

	allow := rw.Header().Get("Allow")
	if strings.Contains(allow, "PUT") {
		t.Fatalf("Allow = %q, a collection should not advertise PUT", allow)
	}
	if !strings.Contains(allow, "MKCOL") || !strings.Contains(allow, "MKCALENDAR") {
		t.Fatalf("Allow = %q, a collection should advertise MKCOL/MKCALENDAR", allow)
	}
}
