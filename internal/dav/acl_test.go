package dav

import (
	"bytes"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/sonroyaalmerol/shuriken-dav/internal/path"
)

func newTestHandlers() *Handlers {
	return &Handlers{logger: zerolog.New(io.Discard)}
}

func resourceLoc() *path.ResourceLocation {
	return &path.ResourceLocation{Segments: []path.PathSegment{
		{Kind: path.SegResourceType, ResourceType: path.Calendar},
		{Kind: path.SegPrincipal, ID: "alice-id", Slug: "alice"},
		{Kind: path.SegCollection, ID: "col-id", Slug: "work"},
		{Kind: path.SegResource, ID: "res-id", Slug: "event-1.ics"},
	}}
}

func TestHandleACLEmptyBodyIsNoOp(t *testing.T) {
	h := newTestHandlers()
	req := httptest.NewRequest("ACL", "/dav/cal/alice/work/event-1.ics", nil)
	rw := httptest.NewRecorder()

	h.handleACL(rw, req, resourceLoc())

	if rw.Code != 200 {
		t.Fatalf("status = %d, want 200", rw.Code)
	}
}

func TestHandleACLNoAceElementsIsNoOp(t *testing.T) {
	h := newTestHandlers()
	body := `<?xml version="1.0"?><acl xmlns="DAV:"></acl>`
	req := httptest.NewRequest("ACL", "/dav/cal/alice/work/event-1.ics", bytes.NewBufferString(body))
	rw := httptest.NewRecorder()

	h.handleACL(rw, req, resourceLoc())

	if rw.Code != 200 {
		t.Fatalf("status = %d, want 200", rw.Code)
	}
}

func TestHandleACLWithAceIsRejected(t *testing.T) {
	h := newTestHandlers()
	body := `<?xml version="1.0"?>
<acl xmlns="DAV:">
  <ace>
    <principal><href>/dav/principals/bob</href></principal>
    <grant><privilege><read/></privilege></grant>
  </ace>
</acl>`
	req := httptest.NewRequest("ACL", "/dav/cal/alice/work/event-1.ics", bytes.NewBufferString(body))
	rw := httptest.NewRecorder()

	h.handleACL(rw, req, resourceLoc())

	if rw.Code != 403 {
		t.Fatalf("status = %d, want 403", rw.Code)
	}
	if !strings.Contains(rw.Body.String(), "no-ace-conflict") {
		t.Fatalf("body = %q, want it to mention no-ace-conflict", rw.Body.String())
	}
}

func TestHandleACLMalformedBodyRejected(t *testing.T) {
	h := newTestHandlers()
	req := httptest.NewRequest("ACL", "/dav/cal/alice/work/event-1.ics", bytes.NewBufferString("not xml"))
	rw := httptest.NewRecorder()

	h.handleACL(rw, req, resourceLoc())

	if rw.Code != 400 {
		t.Fatalf("status = %d, want 400", rw.Code)
	}
}
