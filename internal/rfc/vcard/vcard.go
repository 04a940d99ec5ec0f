// Package vcard implements an RFC 6350 (with RFC 2426 v3.0 compatibility)
// vCard parser and canonical serializer, sharing the line folding/escaping
// rules in internal/rfc/text with the iCalendar codec.
package vcard

import (
	"sort"
	"strings"

	"github.com/sonroyaalmerol/shuriken-dav/internal/rfc/text"
)

// Property is a single vCard content line.
type Property struct {
	Group      string
	Name       string
	Parameters []*Parameter
	Value      string // escape-decoded raw text
}

type Parameter struct {
	Name   string
	Values []string
}

func (p *Property) Param(name string) string {
	for _, pm := range p.Parameters {
		if strings.EqualFold(pm.Name, name) {
			if len(pm.Values) > 0 {
				return pm.Values[0]
			}
		}
	}
	return ""
}

// VCard is a flat ordered list of properties.
type VCard struct {
	Properties []*Property
}

func (c *VCard) Get(name string) *Property {
	for _, p := range c.Properties {
		if strings.EqualFold(p.Name, name) {
			return p
		}
	}
	return nil
}

func (c *VCard) All(name string) []*Property {
	var out []*Property
	for _, p := range c.Properties {
		if strings.EqualFold(p.Name, name) {
			out = append(out, p)
		}
	}
	return out
}

// StructuredFields splits a structured value on ';' and each field's
// sub-components on ',' (N, ADR, ORG §3.2).
func StructuredFields(value string) [][]string {
	fields := splitUnescaped(value, ';')
	out := make([][]string, len(fields))
	for i, f := range fields {
		out[i] = splitUnescaped(f, ',')
	}
	return out
}

func splitUnescaped(s string, sep byte) []string {
	var out []string
	var cur strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			cur.WriteByte(s[i])
			cur.WriteByte(s[i+1])
			i++
			continue
		}
		if s[i] == sep {
			out = append(out, cur.String())
			cur.Reset()
			continue
		}
		cur.WriteByte(s[i])
	}
	out = append(out, cur.String())
	return out
}

var canonicalOrder = []string{"VERSION", "UID", "FN", "N", "ORG", "TITLE"}

func orderRank(name string) (int, bool) {
	upper := strings.ToUpper(name)
	for i, n := range canonicalOrder {
		if n == upper {
			return i, true
		}
	}
	switch upper {
	case "EMAIL", "TEL", "ADR":
		// grouped immediately after the fixed prefix, in original relative order
		return len(canonicalOrder), true
	}
	return 0, false
}

// Serialize emits the canonical byte form: VERSION, UID, FN, N, ORG, TITLE,
// EMAIL*, TEL*, ADR*, then any other properties in original order. Each
// line is folded at 75 octets with CRLF endings.
func Serialize(c *VCard) []byte {
	type indexed struct {
		p     *Property
		known bool
		rank  int
		orig  int
	}
	items := make([]indexed, len(c.Properties))
	for i, p := range c.Properties {
		rank, known := orderRank(p.Name)
		items[i] = indexed{p: p, known: known, rank: rank, orig: i}
	}
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.known != b.known {
			return a.known
		}
		if a.known && b.known && a.rank != b.rank {
			return a.rank < b.rank
		}
		return a.orig < b.orig
	})

	var sb strings.Builder
	sb.WriteString(text.Fold("BEGIN:VCARD"))
	sb.WriteString("\r\n")
	for _, it := range items {
		sb.WriteString(text.Fold(serializeProperty(it.p)))
		sb.WriteString("\r\n")
	}
	sb.WriteString(text.Fold("END:VCARD"))
	sb.WriteString("\r\n")
	return []byte(sb.String())
}

func serializeProperty(p *Property) string {
	var head strings.Builder
	if p.Group != "" {
		head.WriteString(p.Group)
		head.WriteByte('.')
	}
	head.WriteString(strings.ToUpper(p.Name))
	sortedParams := make([]*Parameter, len(p.Parameters))
	copy(sortedParams, p.Parameters)
	sort.SliceStable(sortedParams, func(i, j int) bool {
		return strings.ToUpper(sortedParams[i].Name) < strings.ToUpper(sortedParams[j].Name)
	})
	for _, param := range sortedParams {
		head.WriteByte(';')
		head.WriteString(strings.ToUpper(param.Name))
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
	head.WriteString(text.EscapeText(p.Value))
	return head.String()
}
