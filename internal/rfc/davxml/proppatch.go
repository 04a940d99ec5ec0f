package davxml

import "encoding/xml"

// PropOp is one ordered PROPPATCH operation (RFC 4918 §9.2).
type PropOp struct {
	Remove bool
	Name   QName
	// RawValue is the inner XML of the property value for a Set operation;
	// unused (empty) for Remove.
	RawValue string
}

// PropPatch is a parsed PROPPATCH request body: an ordered list of
// set/remove operations, executed in order (§4.8).
type PropPatch struct {
	Ops []PropOp
}

type rawPropertyUpdate struct {
	XMLName xml.Name       `xml:"propertyupdate"`
	Ops     []rawSetRemove `xml:",any"`
}

type rawSetRemove struct {
	XMLName xml.Name
	Prop    rawRawPropSet `xml:"prop"`
}

type rawRawPropSet struct {
	Items []RawXMLValue `xml:",any"`
}

// ParsePropPatch decodes a <DAV:propertyupdate> request body.
func ParsePropPatch(body []byte) (*PropPatch, error) {
	if err := ValidateCharRefs(body); err != nil {
		return nil, err
	}
	var raw rawPropertyUpdate
	if err := xml.Unmarshal(body, &raw); err != nil {
		return nil, newErr(ErrXMLError, "invalid propertyupdate body: %v", err)
	}
	pp := &PropPatch{}
	for _, op := range raw.Ops {
		var remove bool
		switch op.XMLName.Local {
		case "set":
			remove = false
		case "remove":
			remove = true
		default:
			return nil, newErr(ErrUnexpectedElement, "unexpected propertyupdate child %q", op.XMLName.Local)
		}
		for _, p := range op.Prop.Items {
			pp.Ops = append(pp.Ops, PropOp{
				Remove:   remove,
				Name:     QName{Space: p.XMLName.Space, Local: p.XMLName.Local},
				RawValue: p.InnerXML,
			})
		}
	}
	return pp, nil
}

// protectedProperties cannot be modified by PROPPATCH; §4.8.
var protectedProperties = map[QName]bool{
	{Space: NSDAV, Local: "getetag"}:       true,
	{Space: NSDAV, Local: "resourcetype"}:  true,
	{Space: NSDAV, Local: "sync-token"}:    true,
	{Space: NSDAV, Local: "getcontentlength"}: true,
	{Space: NSDAV, Local: "getlastmodified"}: true,
	{Space: NSDAV, Local: "owner"}:         true,
	{Space: NSDAV, Local: "acl"}:           true,
}

// IsProtectedProperty reports whether name may never be set via PROPPATCH.
func IsProtectedProperty(name QName) bool {
	return protectedProperties[name]
}
