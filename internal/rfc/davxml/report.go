package davxml

import "encoding/xml"

// ReportKind names the seven REPORT request bodies §4.4/§4.8
// dispatches on.
type ReportKind string

const (
	ReportCalendarQuery      ReportKind = "calendar-query"
	ReportCalendarMultiget   ReportKind = "calendar-multiget"
	ReportAddressbookQuery   ReportKind = "addressbook-query"
	ReportAddressbookMultiget ReportKind = "addressbook-multiget"
	ReportSyncCollection     ReportKind = "sync-collection"
	ReportExpandProperty     ReportKind = "expand-property"
	ReportFreeBusyQuery      ReportKind = "free-busy-query"
)

// TextMatch is a CalDAV/CardDAV text-match filter leaf (RFC 4791 §9.7.5,
// RFC 6352 §10.5.1).
type TextMatch struct {
	Text            string
	CollationName   string
	NegateCondition bool
}

// PropFilter filters on a single iCalendar/vCard property, optionally with a
// nested text-match or parameter filters.
type PropFilter struct {
	Name       string
	IsNotDefined bool
	TextMatch  *TextMatch
	TimeRange  *TimeRange
}

// TimeRange bounds a component's occurrence window; Start/End are the
// attribute strings as they appear on the wire, normally iCalendar UTC
// basic form such as "20250601T000000Z" (parsed further upstream, not here
// — this package only carries the parsed request shape).
type TimeRange struct {
	Start string
	End   string
}

// CompFilter filters on a component name, nesting further comp-filters and
// prop-filters, per RFC 4791 §9.7.1.
type CompFilter struct {
	Name         string
	IsNotDefined bool
	TimeRange    *TimeRange
	PropFilters  []PropFilter
	CompFilters  []CompFilter
}

// CalendarQuery is a parsed <CALDAV:calendar-query> REPORT body.
type CalendarQuery struct {
	Props             []QName
	Filter            CompFilter
	Expand            *TimeRange
	LimitRecurrenceSet *TimeRange
}

// AddressbookQuery is a parsed <CARDDAV:addressbook-query> REPORT body.
type AddressbookQuery struct {
	Props       []QName
	PropFilters []PropFilter
	Test        string // "anyof" or "allof"
}

// Multiget is a parsed calendar-multiget/addressbook-multiget REPORT body.
type Multiget struct {
	Props []QName
	Hrefs []string
}

// SyncCollection is a parsed <DAV:sync-collection> REPORT body.
type SyncCollection struct {
	SyncToken string
	Level     string // "1" (default) or "infinite"
	Props     []QName
}

// ExpandProperty is a parsed <DAV:expand-property> REPORT body.
type ExpandProperty struct {
	Properties []ExpandPropertyItem
}

// ExpandPropertyItem names a property whose link target should be
// recursively traversed.
type ExpandPropertyItem struct {
	Name     QName
	Children []ExpandPropertyItem
}

// FreeBusyQuery is a parsed <CALDAV:free-busy-query> REPORT body.
type FreeBusyQuery struct {
	Range TimeRange
}

// Report is the tagged union of all REPORT request bodies.
type Report struct {
	Kind             ReportKind
	CalendarQuery    *CalendarQuery
	AddressbookQuery *AddressbookQuery
	Multiget         *Multiget
	SyncCollection   *SyncCollection
	ExpandProperty   *ExpandProperty
	FreeBusyQuery    *FreeBusyQuery
}

// ParseReport dispatches on the root element of a REPORT body and parses it
// into the matching union member.
func ParseReport(body []byte) (*Report, error) {
	if err := ValidateCharRefs(body); err != nil {
		return nil, err
	}
	var probe struct {
		XMLName xml.Name
	}
	if err := xml.Unmarshal(body, &probe); err != nil {
		return nil, newErr(ErrXMLError, "invalid report body: %v", err)
	}
	switch probe.XMLName.Local {
	case "calendar-query":
		return parseCalendarQuery(body)
	case "calendar-multiget":
		return parseMultiget(body, ReportCalendarMultiget)
	case "addressbook-query":
		return parseAddressbookQuery(body)
	case "addressbook-multiget":
		return parseMultiget(body, ReportAddressbookMultiget)
	case "sync-collection":
		return parseSyncCollection(body)
	case "expand-property":
		return parseExpandProperty(body)
	case "free-busy-query":
		return parseFreeBusyQuery(body)
	default:
		return nil, newErr(ErrUnexpectedElement, "unsupported report type %q", probe.XMLName.Local)
	}
}

type rawTimeRange struct {
	Start string `xml:"start,attr"`
	End   string `xml:"end,attr"`
}

type rawTextMatch struct {
	Collation string `xml:"collation,attr"`
	Negate    string `xml:"negate-condition,attr"`
	Value     string `xml:",chardata"`
}

func (t rawTextMatch) toTextMatch() *TextMatch {
	return &TextMatch{
		Text:            t.Value,
		CollationName:   t.Collation,
		NegateCondition: t.Negate == "yes",
	}
}

type rawPropFilter struct {
	Name         string        `xml:"name,attr"`
	IsNotDefined *struct{}     `xml:"is-not-defined"`
	TextMatch    *rawTextMatch `xml:"text-match"`
	TimeRange    *rawTimeRange `xml:"time-range"`
}

func (p rawPropFilter) toPropFilter() PropFilter {
	out := PropFilter{Name: p.Name, IsNotDefined: p.IsNotDefined != nil}
	if p.TextMatch != nil {
		out.TextMatch = p.TextMatch.toTextMatch()
	}
	if p.TimeRange != nil {
		out.TimeRange = &TimeRange{Start: p.TimeRange.Start, End: p.TimeRange.End}
	}
	return out
}

type rawCompFilter struct {
	Name         string          `xml:"name,attr"`
	IsNotDefined *struct{}       `xml:"is-not-defined"`
	TimeRange    *rawTimeRange   `xml:"time-range"`
	PropFilters  []rawPropFilter `xml:"prop-filter"`
	CompFilters  []rawCompFilter `xml:"comp-filter"`
}

func (c rawCompFilter) toCompFilter() CompFilter {
	out := CompFilter{Name: c.Name, IsNotDefined: c.IsNotDefined != nil}
	if c.TimeRange != nil {
		out.TimeRange = &TimeRange{Start: c.TimeRange.Start, End: c.TimeRange.End}
	}
	for _, p := range c.PropFilters {
		out.PropFilters = append(out.PropFilters, p.toPropFilter())
	}
	for _, cf := range c.CompFilters {
		out.CompFilters = append(out.CompFilters, cf.toCompFilter())
	}
	return out
}

type rawCalendarQuery struct {
	XMLName xml.Name    `xml:"calendar-query"`
	Prop    *rawPropSet `xml:"prop"`
	Filter  struct {
		CompFilter rawCompFilter `xml:"comp-filter"`
	} `xml:"filter"`
}

// rawCalendarDataOpts is decoded in a second pass: encoding/xml rejects a
// "prop" field and "prop>..." paths in the same struct.
type rawCalendarDataOpts struct {
	XMLName xml.Name `xml:"calendar-query"`
	Expand  *struct {
		Start string `xml:"start,attr"`
		End   string `xml:"end,attr"`
	} `xml:"prop>calendar-data>expand"`
	LimitRecurrenceSet *struct {
		Start string `xml:"start,attr"`
		End   string `xml:"end,attr"`
	} `xml:"prop>calendar-data>limit-recurrence-set"`
}

func parseCalendarQuery(body []byte) (*Report, error) {
	var raw rawCalendarQuery
	if err := xml.Unmarshal(body, &raw); err != nil {
		return nil, newErr(ErrXMLError, "invalid calendar-query: %v", err)
	}
	var opts rawCalendarDataOpts
	if err := xml.Unmarshal(body, &opts); err != nil {
		return nil, newErr(ErrXMLError, "invalid calendar-query: %v", err)
	}
	cq := &CalendarQuery{Filter: raw.Filter.CompFilter.toCompFilter()}
	if raw.Prop != nil {
		cq.Props = raw.Prop.names()
	}
	if opts.Expand != nil {
		cq.Expand = &TimeRange{Start: opts.Expand.Start, End: opts.Expand.End}
	}
	if opts.LimitRecurrenceSet != nil {
		cq.LimitRecurrenceSet = &TimeRange{Start: opts.LimitRecurrenceSet.Start, End: opts.LimitRecurrenceSet.End}
	}
	return &Report{Kind: ReportCalendarQuery, CalendarQuery: cq}, nil
}

type rawAddressbookQuery struct {
	XMLName xml.Name    `xml:"addressbook-query"`
	Prop    *rawPropSet `xml:"prop"`
	Filter  struct {
		Test        string          `xml:"test,attr"`
		PropFilters []rawPropFilter `xml:"prop-filter"`
	} `xml:"filter"`
}

func parseAddressbookQuery(body []byte) (*Report, error) {
	var raw rawAddressbookQuery
	if err := xml.Unmarshal(body, &raw); err != nil {
		return nil, newErr(ErrXMLError, "invalid addressbook-query: %v", err)
	}
	aq := &AddressbookQuery{Test: raw.Filter.Test}
	if aq.Test == "" {
		aq.Test = "anyof"
	}
	if raw.Prop != nil {
		aq.Props = raw.Prop.names()
	}
	for _, p := range raw.Filter.PropFilters {
		aq.PropFilters = append(aq.PropFilters, p.toPropFilter())
	}
	return &Report{Kind: ReportAddressbookQuery, AddressbookQuery: aq}, nil
}

type rawMultiget struct {
	XMLName xml.Name
	Prop    *rawPropSet `xml:"prop"`
	Hrefs   []string    `xml:"href"`
}

func parseMultiget(body []byte, kind ReportKind) (*Report, error) {
	var raw rawMultiget
	if err := xml.Unmarshal(body, &raw); err != nil {
		return nil, newErr(ErrXMLError, "invalid multiget: %v", err)
	}
	mg := &Multiget{Hrefs: raw.Hrefs}
	if raw.Prop != nil {
		mg.Props = raw.Prop.names()
	}
	return &Report{Kind: kind, Multiget: mg}, nil
}

type rawSyncCollection struct {
	XMLName   xml.Name    `xml:"sync-collection"`
	SyncToken string      `xml:"sync-token"`
	SyncLevel string      `xml:"sync-level"`
	Prop      *rawPropSet `xml:"prop"`
}

func parseSyncCollection(body []byte) (*Report, error) {
	var raw rawSyncCollection
	if err := xml.Unmarshal(body, &raw); err != nil {
		return nil, newErr(ErrXMLError, "invalid sync-collection: %v", err)
	}
	sc := &SyncCollection{SyncToken: raw.SyncToken, Level: raw.SyncLevel}
	if sc.Level == "" {
		sc.Level = "1"
	}
	if raw.Prop != nil {
		sc.Props = raw.Prop.names()
	}
	return &Report{Kind: ReportSyncCollection, SyncCollection: sc}, nil
}

type rawExpandProperty struct {
	XMLName    xml.Name             `xml:"expand-property"`
	Properties []rawExpandPropItem  `xml:"property"`
}

type rawExpandPropItem struct {
	XMLName  xml.Name
	Name     string              `xml:"name,attr"`
	Namespace string             `xml:"namespace,attr"`
	Children []rawExpandPropItem `xml:"property"`
}

func (r rawExpandPropItem) toItem() ExpandPropertyItem {
	item := ExpandPropertyItem{Name: QName{Space: r.Namespace, Local: r.Name}}
	for _, c := range r.Children {
		item.Children = append(item.Children, c.toItem())
	}
	return item
}

func parseExpandProperty(body []byte) (*Report, error) {
	var raw rawExpandProperty
	if err := xml.Unmarshal(body, &raw); err != nil {
		return nil, newErr(ErrXMLError, "invalid expand-property: %v", err)
	}
	ep := &ExpandProperty{}
	for _, p := range raw.Properties {
		ep.Properties = append(ep.Properties, p.toItem())
	}
	return &Report{Kind: ReportExpandProperty, ExpandProperty: ep}, nil
}

type rawFreeBusyQuery struct {
	XMLName xml.Name     `xml:"free-busy-query"`
	Range   rawTimeRange `xml:"time-range"`
}

func parseFreeBusyQuery(body []byte) (*Report, error) {
	var raw rawFreeBusyQuery
	if err := xml.Unmarshal(body, &raw); err != nil {
		return nil, newErr(ErrXMLError, "invalid free-busy-query: %v", err)
	}
	return &Report{Kind: ReportFreeBusyQuery, FreeBusyQuery: &FreeBusyQuery{
		Range: TimeRange{Start: raw.Range.Start, End: raw.Range.End},
	}}, nil
}
