package davxml

import "encoding/xml"

// PropFindKind distinguishes the three PROPFIND request shapes (RFC 4918
// §14.20).
type PropFindKind string

const (
	PropFindAllProp  PropFindKind = "allprop"
	PropFindPropName PropFindKind = "propname"
	PropFindProp     PropFindKind = "prop"
)

// PropFind is a parsed PROPFIND request body.
type PropFind struct {
	Kind    PropFindKind
	Props   []QName
	Include []QName
}

type rawPropFind struct {
	XMLName  xml.Name `xml:"propfind"`
	AllProp  *struct{} `xml:"allprop"`
	PropName *struct{} `xml:"propname"`
	Prop     *rawPropSet `xml:"prop"`
	Include  *rawPropSet `xml:"include"`
}

type rawPropSet struct {
	Items []rawQName `xml:",any"`
}

type rawQName struct {
	XMLName xml.Name
}

func (r rawPropSet) names() []QName {
	out := make([]QName, 0, len(r.Items))
	for _, it := range r.Items {
		out = append(out, QName{Space: it.XMLName.Space, Local: it.XMLName.Local})
	}
	return out
}

// ParsePropFind decodes a <DAV:propfind> request body. An empty body (some
// clients send none with Depth: 0) is treated as allprop, matching common
// server behavior.
func ParsePropFind(body []byte) (*PropFind, error) {
	if len(body) == 0 {
		return &PropFind{Kind: PropFindAllProp}, nil
	}
	if err := ValidateCharRefs(body); err != nil {
		return nil, err
	}
	var raw rawPropFind
	if err := xml.Unmarshal(body, &raw); err != nil {
		return nil, newErr(ErrXMLError, "invalid propfind body: %v", err)
	}
	pf := &PropFind{}
	switch {
	case raw.PropName != nil:
		pf.Kind = PropFindPropName
	case raw.AllProp != nil:
		pf.Kind = PropFindAllProp
		if raw.Include != nil {
			pf.Include = raw.Include.names()
		}
	case raw.Prop != nil:
		pf.Kind = PropFindProp
		pf.Props = raw.Prop.names()
	default:
		return nil, newErr(ErrMissingElement, "propfind body has none of allprop, propname, prop")
	}
	return pf, nil
}
