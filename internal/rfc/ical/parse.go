package ical

import (
	"strconv"
	"strings"

	"github.com/sonroyaalmerol/shuriken-dav/internal/rfc/text"
)

// Parse decodes a complete iCalendar document (one VCALENDAR) from raw bytes.
func Parse(raw []byte) (*Component, error) {
	lines := text.Unfold(raw)
	if len(lines) == 0 {
		return nil, newErr(ErrUnexpectedEOF, 0, "empty input")
	}

	var stack []*Component
	var root *Component

	for i, line := range lines {
		lineNo := i + 1
		if line == "" {
			continue
		}
		name, params, rawValue, err := parseContentLine(line, lineNo)
		if err != nil {
			return nil, err
		}
		upper := strings.ToUpper(name)

		if upper == "BEGIN" {
			kind, unknown := classifyKind(rawValue)
			c := &Component{Kind: kind, Unknown: unknown}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, c)
			}
			stack = append(stack, c)
			if root == nil {
				root = c
			}
			continue
		}
		if upper == "END" {
			if len(stack) == 0 {
				return nil, newErr(ErrUnexpectedToken, lineNo, "END without matching BEGIN")
			}
			top := stack[len(stack)-1]
			gotKind, gotUnknown := classifyKind(rawValue)
			if gotKind != top.Kind || gotUnknown != top.Unknown {
				return nil, newErr(ErrUnexpectedToken, lineNo, "END %s does not match BEGIN %s", rawValue, top.Name())
			}
			stack = stack[:len(stack)-1]
			continue
		}
		if len(stack) == 0 {
			return nil, newErr(ErrUnexpectedToken, lineNo, "property %s outside any component", name)
		}
		top := stack[len(stack)-1]
		prop, err := buildProperty(name, params, rawValue, top.Kind, lineNo)
		if err != nil {
			return nil, err
		}
		top.Properties = append(top.Properties, prop)
	}

	if len(stack) != 0 {
		return nil, newErr(ErrUnexpectedEOF, len(lines), "unterminated component %s", stack[len(stack)-1].Name())
	}
	if root == nil {
		return nil, newErr(ErrUnexpectedEOF, 0, "no component found")
	}
	if root.Kind != KindVCalendar {
		return nil, newErr(ErrUnexpectedToken, 1, "expected BEGIN:VCALENDAR, got %s", root.Name())
	}
	return root, nil
}

func classifyKind(name string) (ComponentKind, string) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	switch ComponentKind(upper) {
	case KindVCalendar, KindVEvent, KindVTodo, KindVJournal, KindVFreeBusy,
		KindVTimezone, KindVAlarm, KindVAvailability, KindStandard, KindDaylight:
		return ComponentKind(upper), ""
	default:
		return "", upper
	}
}

// parseContentLine splits "NAME;P1=V1;P2=V2,V3:VALUE" into its parts.
// It tolerates a grouped name form "group.NAME" by leaving the group
// attached to name (callers that care, split on '.').
func parseContentLine(line string, lineNo int) (name string, params []*Parameter, value string, err error) {
	colonIdx := -1
	inQuotes := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '"':
			inQuotes = !inQuotes
		case ':':
			if !inQuotes {
				colonIdx = i
			}
		}
		if colonIdx >= 0 {
			break
		}
	}
	if colonIdx < 0 {
		return "", nil, "", newErr(ErrUnexpectedToken, lineNo, "missing ':' in content line %q", line)
	}
	head := line[:colonIdx]
	value = line[colonIdx+1:]

	segments, err := splitRespectingQuotes(head, ';', lineNo)
	if err != nil {
		return "", nil, "", err
	}
	if len(segments) == 0 || segments[0] == "" {
		return "", nil, "", newErr(ErrInvalidPropertyName, lineNo, "empty property name")
	}
	name = segments[0]

	for _, seg := range segments[1:] {
		eq := strings.IndexByte(seg, '=')
		if eq < 0 {
			return "", nil, "", newErr(ErrInvalidParameter, lineNo, "malformed parameter %q", seg)
		}
		pname := seg[:eq]
		rawVals, err := splitRespectingQuotes(seg[eq+1:], ',', lineNo)
		if err != nil {
			return "", nil, "", err
		}
		vals := make([]string, len(rawVals))
		for i, v := range rawVals {
			v = strings.Trim(v, `"`)
			vals[i] = text.CaretDecode(v)
		}
		params = append(params, &Parameter{Name: pname, Values: vals})
	}
	return name, params, value, nil
}

func splitRespectingQuotes(s string, sep byte, lineNo int) ([]string, error) {
	var out []string
	var cur strings.Builder
	inQuotes := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			inQuotes = !inQuotes
			cur.WriteByte(c)
		case c == sep && !inQuotes:
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	if inQuotes {
		return nil, newErr(ErrEncodingError, lineNo, "unterminated quoted parameter value")
	}
	out = append(out, cur.String())
	return out, nil
}

func buildProperty(rawName string, params []*Parameter, rawValue string, parentKind ComponentKind, lineNo int) (*Property, error) {
	group := ""
	name := rawName
	if dot := strings.IndexByte(rawName, '.'); dot >= 0 {
		group = rawName[:dot]
		name = rawName[dot+1:]
	}
	if name == "" {
		return nil, newErr(ErrInvalidPropertyName, lineNo, "empty property name")
	}

	p := &Property{Name: strings.ToUpper(name), Group: group, Parameters: params}

	valueType := p.Param("VALUE")
	p.ValueType = strings.ToUpper(valueType)

	switch strings.ToUpper(p.Name) {
	case "DTSTART", "DTEND", "DUE", "RECURRENCE-ID", "EXDATE", "RDATE", "DTSTAMP", "CREATED", "LAST-MODIFIED":
		if p.ValueType == "" {
			p.ValueType = "DATE-TIME"
		}
	}

	decoded := text.UnescapeText(rawValue)
	p.Value = Value{Kind: ValueText, Raw: decoded, Text: decoded}

	switch p.ValueType {
	case "INTEGER":
		n, err := strconv.ParseInt(strings.TrimSpace(rawValue), 10, 64)
		if err != nil {
			return nil, newErr(ErrInvalidValue, lineNo, "invalid INTEGER %q: %v", rawValue, err)
		}
		p.Value = Value{Kind: ValueInt, Raw: rawValue, Int: n}
	case "BOOLEAN":
		b := strings.EqualFold(rawValue, "TRUE")
		p.Value = Value{Kind: ValueBool, Raw: rawValue, Bool: b}
	case "FLOAT":
		f, err := strconv.ParseFloat(strings.TrimSpace(rawValue), 64)
		if err != nil {
			return nil, newErr(ErrInvalidValue, lineNo, "invalid FLOAT %q: %v", rawValue, err)
		}
		p.Value = Value{Kind: ValueFloat, Raw: rawValue, Float: f}
	case "DATE":
		if isDateListProperty(p.Name) {
			list, err := parseDateList(rawValue, false, p.Param("TZID"), lineNo)
			if err != nil {
				return nil, err
			}
			p.Value = Value{Kind: ValueDate, Raw: rawValue, DateVal: list[0], DateList: list}
		} else {
			dt, err := parseDateOnly(rawValue, lineNo)
			if err != nil {
				return nil, err
			}
			p.Value = Value{Kind: ValueDate, Raw: rawValue, DateVal: dt}
		}
	case "DATE-TIME":
		if isDateListProperty(p.Name) {
			list, err := parseDateList(rawValue, true, p.Param("TZID"), lineNo)
			if err != nil {
				return nil, err
			}
			p.Value = Value{Kind: ValueDateTime, Raw: rawValue, DateVal: list[0], DateList: list}
		} else {
			dt, err := parseDateTimeValue(rawValue, p.Param("TZID"), lineNo)
			if err != nil {
				return nil, err
			}
			p.Value = Value{Kind: ValueDateTime, Raw: rawValue, DateVal: dt}
		}
	}
	return p, nil
}

// isDateListProperty reports whether name may carry a comma-separated list
// of DATE/DATE-TIME values (RDATE, EXDATE) rather than exactly one.
func isDateListProperty(name string) bool {
	switch strings.ToUpper(name) {
	case "RDATE", "EXDATE":
		return true
	default:
		return false
	}
}

func parseDateList(raw string, hasTime bool, tzid string, lineNo int) ([]DateTime, error) {
	parts := strings.Split(raw, ",")
	out := make([]DateTime, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		var dt DateTime
		var err error
		if hasTime {
			dt, err = parseDateTimeValue(part, tzid, lineNo)
		} else {
			dt, err = parseDateOnly(part, lineNo)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, dt)
	}
	if len(out) == 0 {
		return nil, newErr(ErrInvalidDateTime, lineNo, "empty date list %q", raw)
	}
	return out, nil
}

func parseDateOnly(v string, lineNo int) (DateTime, error) {
	v = strings.TrimSpace(v)
	if len(v) != 8 {
		return DateTime{}, newErr(ErrInvalidDateTime, lineNo, "invalid DATE %q", v)
	}
	y, err1 := strconv.Atoi(v[0:4])
	m, err2 := strconv.Atoi(v[4:6])
	d, err3 := strconv.Atoi(v[6:8])
	if err1 != nil || err2 != nil || err3 != nil {
		return DateTime{}, newErr(ErrInvalidDateTime, lineNo, "invalid DATE %q", v)
	}
	return DateTime{Year: y, Month: m, Day: d, AllDay: true}, nil
}

func parseDateTimeValue(v, tzid string, lineNo int) (DateTime, error) {
	v = strings.TrimSpace(v)
	isUTC := strings.HasSuffix(v, "Z")
	body := strings.TrimSuffix(v, "Z")
	if len(body) != 15 || body[8] != 'T' {
		return DateTime{}, newErr(ErrInvalidDateTime, lineNo, "invalid DATE-TIME %q", v)
	}
	y, e1 := strconv.Atoi(body[0:4])
	mo, e2 := strconv.Atoi(body[4:6])
	d, e3 := strconv.Atoi(body[6:8])
	h, e4 := strconv.Atoi(body[9:11])
	mi, e5 := strconv.Atoi(body[11:13])
	s, e6 := strconv.Atoi(body[13:15])
	if e1 != nil || e2 != nil || e3 != nil || e4 != nil || e5 != nil || e6 != nil {
		return DateTime{}, newErr(ErrInvalidDateTime, lineNo, "invalid DATE-TIME %q", v)
	}
	return DateTime{
		Year: y, Month: mo, Day: d, Hour: h, Minute: mi, Second: s,
		HasTime: true, UTC: isUTC, TZID: tzid,
	}, nil
}
