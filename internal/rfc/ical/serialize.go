package ical

import (
	"strconv"
	"strings"

	"github.com/sonroyaalmerol/shuriken-dav/internal/rfc/text"
)

// Serialize produces the canonical byte form of a component tree: BEGIN
// first, known properties in fixed order, unknown properties in original
// order, parameters alphabetically, sub-components recursively, END last.
// Every property line is folded at 75 octets with CRLF line endings.
func Serialize(root *Component) []byte {
	var sb strings.Builder
	writeComponent(&sb, root)
	return []byte(sb.String())
}

func writeComponent(sb *strings.Builder, c *Component) {
	writeLine(sb, "BEGIN:"+c.Name())
	for _, p := range sortPropertiesCanonical(c.Kind, c.Properties) {
		writeLine(sb, serializeProperty(p))
	}
	for _, child := range c.Children {
		writeComponent(sb, child)
	}
	writeLine(sb, "END:"+c.Name())
}

func writeLine(sb *strings.Builder, line string) {
	sb.WriteString(text.Fold(line))
	sb.WriteString("\r\n")
}

func serializeProperty(p *Property) string {
	var head strings.Builder
	if p.Group != "" {
		head.WriteString(p.Group)
		head.WriteByte('.')
	}
	head.WriteString(p.Name)
	for _, param := range sortParametersCanonical(p.Parameters) {
		head.WriteByte(';')
		head.WriteString(param.Name)
		head.WriteByte('=')
		for i, v := range param.Values {
			if i > 0 {
				head.WriteByte(',')
			}
			enc := text.CaretEncode(v)
			if text.NeedsQuoting(v) {
				head.WriteByte('"')
				head.WriteString(enc)
				head.WriteByte('"')
			} else {
				head.WriteString(enc)
			}
		}
	}
	head.WriteByte(':')
	head.WriteString(serializeValue(p))
	return head.String()
}

func serializeValue(p *Property) string {
	switch p.Value.Kind {
	case ValueInt:
		return strconv.FormatInt(p.Value.Int, 10)
	case ValueBool:
		if p.Value.Bool {
			return "TRUE"
		}
		return "FALSE"
	case ValueFloat:
		return strconv.FormatFloat(p.Value.Float, 'f', -1, 64)
	case ValueDate, ValueDateTime:
		if len(p.Value.DateList) > 1 {
			parts := make([]string, len(p.Value.DateList))
			for i, d := range p.Value.DateList {
				parts[i] = d.String()
			}
			return strings.Join(parts, ",")
		}
		return p.Value.DateVal.String()
	default:
		return text.EscapeText(p.Value.Raw)
	}
}

// NewTextProperty constructs a simple TEXT-valued property.
func NewTextProperty(name, value string) *Property {
	return &Property{Name: strings.ToUpper(name), Value: Value{Kind: ValueText, Raw: value, Text: value}}
}

// NewDateTimeProperty constructs a DATE-TIME or DATE-valued property.
func NewDateTimeProperty(name string, dt DateTime) *Property {
	p := &Property{Name: strings.ToUpper(name)}
	if dt.AllDay {
		p.ValueType = "DATE"
		p.Value = Value{Kind: ValueDate, DateVal: dt}
		p.Parameters = append(p.Parameters, &Parameter{Name: "VALUE", Values: []string{"DATE"}})
	} else {
		p.Value = Value{Kind: ValueDateTime, DateVal: dt}
		if !dt.UTC && dt.TZID != "" {
			p.Parameters = append(p.Parameters, &Parameter{Name: "TZID", Values: []string{dt.TZID}})
		}
	}
	return p
}

// SetParam sets (replacing) a single-valued parameter on a property.
func (p *Property) SetParam(name, value string) {
	for _, existing := range p.Parameters {
		if strings.EqualFold(existing.Name, name) {
			existing.Values = []string{value}
			return
		}
	}
	p.Parameters = append(p.Parameters, &Parameter{Name: name, Values: []string{value}})
}

// AddProperty appends a property to a component.
func (c *Component) AddProperty(p *Property) {
	c.Properties = append(c.Properties, p)
}

// NewComponent constructs a known-kind component.
func NewComponent(kind ComponentKind) *Component {
	return &Component{Kind: kind}
}

// NewUnknownComponent constructs a component for a name outside the known
// kinds (e.g. a vendor X- component), preserved verbatim for round-trip.
func NewUnknownComponent(name string) *Component {
	return &Component{Unknown: strings.ToUpper(name)}
}
