package vcard

import (
	"strings"

	"github.com/sonroyaalmerol/shuriken-dav/internal/rfc/text"
)

type ErrorKind string

const (
	ErrXMLError        ErrorKind = "EncodingError" // unused placeholder for symmetry with C4 kinds
	ErrUnexpectedEOF   ErrorKind = "UnexpectedEof"
	ErrUnexpectedToken ErrorKind = "UnexpectedToken"
	ErrInvalidValue    ErrorKind = "InvalidValue"
	ErrMissingElement  ErrorKind = "InvalidStructuredValue"
)

type ParseError struct {
	Kind    ErrorKind
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return "vcard: " + string(e.Kind) + ": " + e.Message
}

func newErr(kind ErrorKind, line int, msg string) *ParseError {
	return &ParseError{Kind: kind, Line: line, Message: msg}
}

// ParseAll decodes a stream possibly containing multiple concatenated
// vCards, tolerating both vCard 3.0 and 4.0.
func ParseAll(raw []byte) ([]*VCard, error) {
	lines := text.Unfold(raw)
	var out []*VCard
	var cur *VCard
	for i, line := range lines {
		lineNo := i + 1
		if line == "" {
			continue
		}
		name, params, value, err := parseLine(line, lineNo)
		if err != nil {
			return nil, err
		}
		upper := strings.ToUpper(name)
		switch upper {
		case "BEGIN":
			if !strings.EqualFold(value, "VCARD") {
				return nil, newErr(ErrUnexpectedToken, lineNo, "BEGIN of unsupported type "+value)
			}
			cur = &VCard{}
		case "END":
			if cur == nil {
				return nil, newErr(ErrUnexpectedToken, lineNo, "END without BEGIN")
			}
			out = append(out, cur)
			cur = nil
		default:
			if cur == nil {
				return nil, newErr(ErrUnexpectedToken, lineNo, "property outside VCARD: "+name)
			}
			group := ""
			propName := name
			if dot := strings.IndexByte(name, '.'); dot >= 0 {
				group = name[:dot]
				propName = name[dot+1:]
			}
			cur.Properties = append(cur.Properties, &Property{
				Group:      group,
				Name:       strings.ToUpper(propName),
				Parameters: params,
				Value:      text.UnescapeText(value),
			})
		}
	}
	if cur != nil {
		return nil, newErr(ErrUnexpectedEOF, len(lines), "unterminated VCARD")
	}
	return out, nil
}

// Parse decodes a single vCard; it is an error for the input to contain
// zero or more than one vCard.
func Parse(raw []byte) (*VCard, error) {
	cards, err := ParseAll(raw)
	if err != nil {
		return nil, err
	}
	if len(cards) != 1 {
		return nil, newErr(ErrMissingElement, 0, "expected exactly one VCARD")
	}
	return cards[0], nil
}

func parseLine(line string, lineNo int) (name string, params []*Parameter, value string, err error) {
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
		return "", nil, "", newErr(ErrUnexpectedToken, lineNo, "missing ':' in content line")
	}
	head := line[:colonIdx]
	value = line[colonIdx+1:]
	segments := splitRespectingQuotes(head, ';')
	if len(segments) == 0 || segments[0] == "" {
		return "", nil, "", newErr(ErrInvalidValue, lineNo, "empty property name")
	}
	name = segments[0]
	for _, seg := range segments[1:] {
		eq := strings.IndexByte(seg, '=')
		if eq < 0 {
			// vCard 3.0 allows bare TYPE values without '=' in some legacy
			// clients ("TEL;HOME;VOICE:..."); treat the bare token as a TYPE.
			params = append(params, &Parameter{Name: "TYPE", Values: []string{seg}})
			continue
		}
		pname := seg[:eq]
		rawVals := splitRespectingQuotes(seg[eq+1:], ',')
		vals := make([]string, len(rawVals))
		for i, v := range rawVals {
			v = strings.Trim(v, `"`)
			vals[i] = text.CaretDecode(v)
		}
		params = append(params, &Parameter{Name: pname, Values: vals})
	}
	return name, params, value, nil
}

func splitRespectingQuotes(s string, sep byte) []string {
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
	out = append(out, cur.String())
	return out
}

// Validate enforces RFC 6350 §6.1.3/§6.2.1: VERSION and FN are mandatory.
func Validate(c *VCard) error {
	if len(c.Properties) == 0 || !strings.EqualFold(c.Properties[0].Name, "VERSION") {
		return newErr(ErrMissingElement, 0, "VERSION must be the first property")
	}
	v := c.Get("VERSION").Value
	if v != "3.0" && v != "4.0" {
		return newErr(ErrInvalidValue, 0, "unsupported VERSION "+v)
	}
	if c.Get("FN") == nil {
		return newErr(ErrMissingElement, 0, "missing FN")
	}
	return nil
}

// UID returns the vCard's UID value, or "".
func UID(c *VCard) string {
	if p := c.Get("UID"); p != nil {
		return p.Value
	}
	return ""
}
