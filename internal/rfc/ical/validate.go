package ical

import "strings"

// DetectComponent returns the name of the first VEVENT/VTODO/VJOURNAL child
// of a parsed VCALENDAR, the kind the rest of the pipeline indexes on.
func DetectComponent(cal *Component) (ComponentKind, error) {
	for _, child := range cal.Children {
		switch child.Kind {
		case KindVEvent, KindVTodo, KindVJournal, KindVFreeBusy:
			return child.Kind, nil
		}
	}
	return "", newErr(ErrInvalidStructuredValue, 0, "no supported calendar component found")
}

// Validate enforces the minimal structural requirements from §4.8:
// VERSION + PRODID on VCALENDAR, at least one child component, and a UID on
// every scheduling component.
func Validate(cal *Component) error {
	if cal.Kind != KindVCalendar {
		return newErr(ErrUnexpectedToken, 0, "root is not VCALENDAR")
	}
	if cal.Get("VERSION") == nil {
		return newErr(ErrInvalidStructuredValue, 0, "missing VERSION")
	}
	if cal.Get("PRODID") == nil {
		return newErr(ErrInvalidStructuredValue, 0, "missing PRODID")
	}
	if len(cal.Children) == 0 {
		return newErr(ErrInvalidStructuredValue, 0, "VCALENDAR has no child components")
	}
	for _, child := range cal.Children {
		switch child.Kind {
		case KindVEvent, KindVTodo, KindVJournal:
			if child.Get("UID") == nil {
				return newErr(ErrInvalidStructuredValue, 0, "%s missing UID", child.Name())
			}
		}
	}
	return nil
}

// LogicalUID returns the UID of the first scheduling child component, if any.
func LogicalUID(cal *Component) string {
	for _, child := range cal.Children {
		switch child.Kind {
		case KindVEvent, KindVTodo, KindVJournal, KindVFreeBusy:
			if uid := child.Get("UID"); uid != nil {
				return uid.Value.Raw
			}
		}
	}
	return ""
}

// IsUnknownComponentName reports whether s names a component kind this
// codec does not recognize (used by the mapper to decide how to persist
// component rows).
func IsUnknownComponentName(s string) bool {
	switch ComponentKind(strings.ToUpper(s)) {
	case KindVCalendar, KindVEvent, KindVTodo, KindVJournal, KindVFreeBusy,
		KindVTimezone, KindVAlarm, KindVAvailability, KindStandard, KindDaylight:
		return false
	default:
		return true
	}
}

// ParseDateOrDateTime parses a single DATE or DATE-TIME text value (the
// "20060102" / "20060102T150405[Z]" form, never a comma list) using tzid as
// its TZID parameter. Used by internal/store/mapper to rebuild a DateList
// entry that was persisted as JSON rather than the single-value date column.
func ParseDateOrDateTime(s, tzid string) (DateTime, error) {
	if len(strings.TrimSpace(s)) == 8 {
		return parseDateOnly(s, 0)
	}
	return parseDateTimeValue(s, tzid, 0)
}
