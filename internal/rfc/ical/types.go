// Package ical implements an RFC 5545 iCalendar parser and canonical
// serializer: a content-line lexer, a typed Component/Property/Parameter
// tree, and deterministic serialization used to derive stable ETags.
package ical

import (
	"fmt"
	"sort"
	"strings"
)

// ComponentKind identifies the BEGIN/END block type.
type ComponentKind string

const (
	KindVCalendar     ComponentKind = "VCALENDAR"
	KindVEvent        ComponentKind = "VEVENT"
	KindVTodo         ComponentKind = "VTODO"
	KindVJournal      ComponentKind = "VJOURNAL"
	KindVFreeBusy     ComponentKind = "VFREEBUSY"
	KindVTimezone     ComponentKind = "VTIMEZONE"
	KindVAlarm        ComponentKind = "VALARM"
	KindVAvailability ComponentKind = "VAVAILABILITY"
	KindStandard      ComponentKind = "STANDARD"
	KindDaylight      ComponentKind = "DAYLIGHT"
)

// Component is a node in the parsed iCalendar tree.
type Component struct {
	Kind       ComponentKind
	Unknown    string // set when Kind is not one of the known constants
	Properties []*Property
	Children   []*Component
}

func (c *Component) Name() string {
	if c.Unknown != "" {
		return c.Unknown
	}
	return string(c.Kind)
}

// Get returns the first property with the given name, or nil.
func (c *Component) Get(name string) *Property {
	for _, p := range c.Properties {
		if strings.EqualFold(p.Name, name) {
			return p
		}
	}
	return nil
}

// All returns every property with the given name, in document order.
func (c *Component) All(name string) []*Property {
	var out []*Property
	for _, p := range c.Properties {
		if strings.EqualFold(p.Name, name) {
			out = append(out, p)
		}
	}
	return out
}

// ChildrenOfKind returns direct sub-components of the given kind.
func (c *Component) ChildrenOfKind(kind ComponentKind) []*Component {
	var out []*Component
	for _, ch := range c.Children {
		if ch.Kind == kind {
			out = append(out, ch)
		}
	}
	return out
}

// ValueKind tags the typed representation carried by a Property's Value.
type ValueKind int

const (
	ValueText ValueKind = iota
	ValueInt
	ValueFloat
	ValueBool
	ValueDate
	ValueDateTime
	ValueDuration
	ValuePeriod
	ValueRecur
	ValueBinary
	ValueCalAddress
	ValueURI
	ValueUTCOffset
)

// Value is the typed scalar carried by a property, alongside the raw
// escape-decoded text so unknown/odd value types still round-trip exactly.
type Value struct {
	Kind    ValueKind
	Raw     string // decoded text, before re-escaping on serialize
	Text    string
	Int     int64
	Float   float64
	Bool    bool
	DateVal DateTime
	// DateList carries every value of a comma-separated RDATE/EXDATE list
	// (RFC 5545 §3.8.5.2/§3.8.5.1). DateVal always mirrors DateList[0] for
	// callers that only care about a single-valued date/date-time property;
	// DateList has zero or one entries for every other date-typed property.
	DateList []DateTime
}

// Parameter is a single NAME=VALUE(,VALUE)* parameter on a property.
type Parameter struct {
	Name   string
	Values []string
}

// Property is one content line's semantic content: name, parameters, value.
type Property struct {
	Name       string
	Group      string // e.g. "item1" in "item1.TEL"
	Parameters []*Parameter
	Value      Value
	// ValueType is the (possibly explicit, via VALUE=) RFC type tag, used
	// to pick a serialization/parse strategy independent of ValueKind.
	ValueType string
}

func (p *Property) Param(name string) string {
	for _, pm := range p.Parameters {
		if strings.EqualFold(pm.Name, name) {
			if len(pm.Values) > 0 {
				return pm.Values[0]
			}
			return ""
		}
	}
	return ""
}

func (p *Property) HasParam(name string) bool {
	for _, pm := range p.Parameters {
		if strings.EqualFold(pm.Name, name) {
			return true
		}
	}
	return false
}

// DateTime is a parsed DATE or DATE-TIME value, preserving whether it was
// floating, UTC (Z-suffixed), or carried an explicit TZID.
type DateTime struct {
	Year, Month, Day          int
	Hour, Minute, Second      int
	AllDay                    bool
	UTC                       bool
	TZID                      string
	HasTime                   bool
}

func (d DateTime) String() string {
	if d.AllDay {
		return fmt.Sprintf("%04d%02d%02d", d.Year, d.Month, d.Day)
	}
	s := fmt.Sprintf("%04d%02d%02dT%02d%02d%02d", d.Year, d.Month, d.Day, d.Hour, d.Minute, d.Second)
	if d.UTC {
		s += "Z"
	}
	return s
}

// knownPropertyOrder is the canonical property emission order within a
// component (§4.2). Anything not listed is "unknown" for ordering purposes
// and keeps its original relative order after the known ones.
var knownPropertyOrder = map[ComponentKind][]string{
	KindVCalendar: {"VERSION", "PRODID", "CALSCALE", "METHOD"},
	KindVEvent: {
		"UID", "DTSTAMP", "DTSTART", "DTEND", "DURATION", "SUMMARY",
		"DESCRIPTION", "LOCATION", "STATUS", "TRANSP", "CLASS", "PRIORITY",
		"SEQUENCE", "RRULE", "RDATE", "EXDATE", "RECURRENCE-ID", "ORGANIZER",
		"ATTENDEE", "CATEGORIES", "CREATED", "LAST-MODIFIED",
	},
	KindVTodo: {
		"UID", "DTSTAMP", "DTSTART", "DUE", "DURATION", "SUMMARY",
		"DESCRIPTION", "STATUS", "PERCENT-COMPLETE", "PRIORITY", "SEQUENCE",
		"RRULE", "RDATE", "EXDATE", "RECURRENCE-ID", "ORGANIZER", "ATTENDEE",
		"CREATED", "LAST-MODIFIED",
	},
	KindVJournal: {
		"UID", "DTSTAMP", "DTSTART", "SUMMARY", "DESCRIPTION", "STATUS",
		"SEQUENCE", "RRULE", "RDATE", "EXDATE", "RECURRENCE-ID", "ORGANIZER",
		"ATTENDEE", "CREATED", "LAST-MODIFIED",
	},
	KindVTimezone: {"TZID", "LAST-MODIFIED", "TZURL"},
	KindStandard:  {"DTSTART", "TZOFFSETFROM", "TZOFFSETTO", "TZNAME", "RRULE"},
	KindDaylight:  {"DTSTART", "TZOFFSETFROM", "TZOFFSETTO", "TZNAME", "RRULE"},
	KindVAlarm:    {"ACTION", "TRIGGER", "DESCRIPTION", "SUMMARY", "DURATION", "REPEAT"},
}

func orderIndex(kind ComponentKind, name string) (int, bool) {
	order, ok := knownPropertyOrder[kind]
	if !ok {
		return 0, false
	}
	for i, n := range order {
		if strings.EqualFold(n, name) {
			return i, true
		}
	}
	return 0, false
}

// sortPropertiesCanonical stably reorders properties: BEGIN is implicit
// (not a Property), known properties first in fixed order, then unknown
// properties in original order.
func sortPropertiesCanonical(kind ComponentKind, props []*Property) []*Property {
	type indexed struct {
		p       *Property
		known   bool
		order   int
		orig    int
	}
	items := make([]indexed, len(props))
	for i, p := range props {
		idx, known := orderIndex(kind, p.Name)
		items[i] = indexed{p: p, known: known, order: idx, orig: i}
	}
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.known != b.known {
			return a.known
		}
		if a.known && b.known && a.order != b.order {
			return a.order < b.order
		}
		return a.orig < b.orig
	})
	out := make([]*Property, len(items))
	for i, it := range items {
		out[i] = it.p
	}
	return out
}

// sortParametersCanonical emits parameters in alphabetical order by name.
func sortParametersCanonical(params []*Parameter) []*Parameter {
	out := make([]*Parameter, len(params))
	copy(out, params)
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToUpper(out[i].Name) < strings.ToUpper(out[j].Name)
	})
	return out
}
