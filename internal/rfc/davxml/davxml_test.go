package davxml

import (
	"strings"
	"testing"
)

func TestParsePropFindAllProp(t *testing.T) {
	body := `<?xml version="1.0" encoding="utf-8"?><D:propfind xmlns:D="DAV:"><D:allprop/></D:propfind>`
	pf, err := ParsePropFind([]byte(body))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if pf.Kind != PropFindAllProp {
		t.Fatalf("kind = %v", pf.Kind)
	}
}

func TestParsePropFindPropList(t *testing.T) {
	body := `<D:propfind xmlns:D="DAV:"><D:prop><D:getetag/><D:displayname/></D:prop></D:propfind>`
	pf, err := ParsePropFind([]byte(body))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if pf.Kind != PropFindProp || len(pf.Props) != 2 {
		t.Fatalf("pf = %+v", pf)
	}
}

func TestParsePropFindEmptyBodyIsAllProp(t *testing.T) {
	pf, err := ParsePropFind(nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if pf.Kind != PropFindAllProp {
		t.Fatalf("kind = %v", pf.Kind)
	}
}

func TestParsePropPatch(t *testing.T) {
	body := `<D:propertyupdate xmlns:D="DAV:">
		<D:set><D:prop><D:displayname>Home</D:displayname></D:prop></D:set>
		<D:remove><D:prop><D:getcontentlanguage/></D:prop></D:remove>
	</D:propertyupdate>`
	pp, err := ParsePropPatch([]byte(body))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(pp.Ops) != 2 {
		t.Fatalf("ops = %+v", pp.Ops)
	}
	if pp.Ops[0].Remove || pp.Ops[0].Name.Local != "displayname" {
		t.Fatalf("op0 = %+v", pp.Ops[0])
	}
	if !pp.Ops[1].Remove || pp.Ops[1].Name.Local != "getcontentlanguage" {
		t.Fatalf("op1 = %+v", pp.Ops[1])
	}
}

func TestIsProtectedProperty(t *testing.T) {
	if !IsProtectedProperty(QName{Space: NSDAV, Local: "getetag"}) {
		t.Fatalf("getetag should be protected")
	}
	if IsProtectedProperty(QName{Space: NSDAV, Local: "displayname"}) {
		t.Fatalf("displayname should not be protected")
	}
}

func TestParseReportCalendarQuery(t *testing.T) {
	body := `<C:calendar-query xmlns:C="urn:ietf:params:xml:ns:caldav" xmlns:D="DAV:">
		<D:prop><D:getetag/><C:calendar-data/></D:prop>
		<C:filter>
			<C:comp-filter name="VCALENDAR">
				<C:comp-filter name="VEVENT">
					<C:time-range start="20250601T000000Z" end="20250701T000000Z"/>
				</C:comp-filter>
			</C:comp-filter>
		</C:filter>
	</C:calendar-query>`
	rep, err := ParseReport([]byte(body))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rep.Kind != ReportCalendarQuery {
		t.Fatalf("kind = %v", rep.Kind)
	}
	cq := rep.CalendarQuery
	if cq.Filter.Name != "VCALENDAR" || len(cq.Filter.CompFilters) != 1 {
		t.Fatalf("filter = %+v", cq.Filter)
	}
	inner := cq.Filter.CompFilters[0]
	if inner.Name != "VEVENT" || inner.TimeRange == nil || inner.TimeRange.Start != "20250601T000000Z" {
		t.Fatalf("inner = %+v", inner)
	}
}

func TestParseReportSyncCollection(t *testing.T) {
	body := `<D:sync-collection xmlns:D="DAV:">
		<D:sync-token>http://example/sync/41</D:sync-token>
		<D:sync-level>1</D:sync-level>
		<D:prop><D:getetag/></D:prop>
	</D:sync-collection>`
	rep, err := ParseReport([]byte(body))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rep.Kind != ReportSyncCollection || rep.SyncCollection.SyncToken != "http://example/sync/41" {
		t.Fatalf("rep = %+v", rep.SyncCollection)
	}
}

func TestParseReportMultiget(t *testing.T) {
	body := `<C:calendar-multiget xmlns:C="urn:ietf:params:xml:ns:caldav" xmlns:D="DAV:">
		<D:prop><D:getetag/></D:prop>
		<D:href>/cal/a/b/c.ics</D:href>
		<D:href>/cal/a/b/d.ics</D:href>
	</C:calendar-multiget>`
	rep, err := ParseReport([]byte(body))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rep.Kind != ReportCalendarMultiget || len(rep.Multiget.Hrefs) != 2 {
		t.Fatalf("rep = %+v", rep)
	}
}

func TestServeMultiStatusStructure(t *testing.T) {
	r := NewResponse("/cal/alice/work/evt1.ics")
	r.AddProp(200, PropText(QName{Space: NSDAV, Local: "getetag"}, `"abc123"`))
	r.AddProp(200, PropNested(QName{Space: NSDAV, Local: "resourcetype"}))
	r.AddProp(404, PropEmpty(QName{Space: NSDAV, Local: "displayname"}))

	ms := &MultiStatus{Responses: []Response{*r}, SyncToken: "http://example/sync/5"}
	var sb strings.Builder
	if err := ServeMultiStatus(&sb, ms); err != nil {
		t.Fatalf("serve: %v", err)
	}
	out := sb.String()
	if !strings.HasPrefix(out, `<?xml version="1.0" encoding="utf-8"?>`) {
		t.Fatalf("missing lowercase utf-8 prologue:\n%s", out)
	}
	if strings.Contains(out, `encoding="UTF-8"`) {
		t.Fatalf("uppercase UTF-8 leaked into output:\n%s", out)
	}
	okIdx := strings.Index(out, "HTTP/1.1 200 OK")
	notFoundIdx := strings.Index(out, "HTTP/1.1 404 Not Found")
	if okIdx < 0 || notFoundIdx < 0 || okIdx > notFoundIdx {
		t.Fatalf("200 propstat must precede 404 propstat:\n%s", out)
	}
	if !strings.Contains(out, "getetag") || !strings.Contains(out, "resourcetype") {
		t.Fatalf("missing expected props:\n%s", out)
	}
}

func TestNeedPrivilegesBody(t *testing.T) {
	body := NeedPrivileges("/cal/alice/work/", QName{Space: NSDAV, Local: "write-content"})
	r := NewResponse("/cal/alice/work/")
	r.SetStatus(403).SetError(body)
	ms := &MultiStatus{Responses: []Response{*r}}
	var sb strings.Builder
	if err := ServeMultiStatus(&sb, ms); err != nil {
		t.Fatalf("serve: %v", err)
	}
	out := sb.String()
	if !strings.Contains(out, "need-privileges") || !strings.Contains(out, "write-content") {
		t.Fatalf("missing need-privileges body:\n%s", out)
	}
}

func TestValidateCharRefsRejectsInvalid(t *testing.T) {
	if err := ValidateCharRefs([]byte("<a>&#0;</a>")); err == nil {
		t.Fatalf("expected rejection of &#0;")
	}
	if err := ValidateCharRefs([]byte("<a>&#x41;</a>")); err != nil {
		t.Fatalf("valid char ref rejected: %v", err)
	}
}
