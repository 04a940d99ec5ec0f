package davxml

import (
	"encoding/xml"
	"io"
)

// ErrorBody is the <DAV:error> element RFC 4918 §16 attaches to precondition
// failure responses (403/409/412) and REPORT/PUT error responses.
type ErrorBody struct {
	XMLName    xml.Name      `xml:"DAV: error"`
	Conditions []RawXMLValue `xml:",any"`
}

// NewErrorBody wraps one or more precondition markers in a <DAV:error>.
func NewErrorBody(conditions ...RawXMLValue) *ErrorBody {
	return &ErrorBody{Conditions: conditions}
}

// RenderErrorBody serializes body as a standalone RFC 4918 §16 <DAV:error>
// document, for responses (403/409/412) that are not wrapped in a
// <DAV:multistatus>. apperr uses this for the optional DAV XML body.
func RenderErrorBody(w io.Writer, body *ErrorBody) error {
	if _, err := io.WriteString(w, `<?xml version="1.0" encoding="utf-8"?>`+"\n"); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	return enc.Encode(body)
}

// CalDAV/CardDAV precondition markers, §4.4 and RFC 4791 §5.3.2,
// RFC 6352 §6.3.2. Each is a bare marker element; some additionally wrap a
// href identifying the conflicting resource.

func CondNoUIDConflict(href string) RawXMLValue {
	return PropNested(QName{NSCalDAV, "no-uid-conflict"}, PropText(QName{NSDAV, "href"}, href))
}

func CondSupportedCalendarData() RawXMLValue {
	return PropEmpty(QName{NSCalDAV, "supported-calendar-data"})
}

func CondValidCalendarData() RawXMLValue {
	return PropEmpty(QName{NSCalDAV, "valid-calendar-data"})
}

func CondValidCalendarObjectResource() RawXMLValue {
	return PropEmpty(QName{NSCalDAV, "valid-calendar-object-resource"})
}

func CondCalendarCollectionLocationOk() RawXMLValue {
	return PropEmpty(QName{NSCalDAV, "calendar-collection-location-ok"})
}

func CondSupportedFilter() RawXMLValue {
	return PropEmpty(QName{NSCalDAV, "supported-filter"})
}

func CondSupportedCollation(name string) RawXMLValue {
	return PropText(QName{NSCalDAV, "supported-collation"}, name)
}

func CondMaxResourceSize() RawXMLValue {
	return PropEmpty(QName{NSCalDAV, "max-resource-size"})
}

func CondValidAddressData() RawXMLValue {
	return PropEmpty(QName{NSCardDAV, "valid-address-data"})
}

func CondSupportedAddressData() RawXMLValue {
	return PropEmpty(QName{NSCardDAV, "supported-address-data"})
}

func CondNoUIDConflictCard(href string) RawXMLValue {
	return PropNested(QName{NSCardDAV, "no-uid-conflict"}, PropText(QName{NSDAV, "href"}, href))
}

func CondCannotModifyVersion() RawXMLValue {
	return PropEmpty(QName{NSDAV, "cannot-modify-version-control-controlled-resource"})
}

// NeedPrivileges builds the RFC 3744 §7.1.1 <DAV:need-privileges> error body
// returned on 403 when the subject lacks one or more required privileges on
// a resource.
func NeedPrivileges(href string, privileges ...QName) *ErrorBody {
	privElems := make([]RawXMLValue, len(privileges))
	for i, p := range privileges {
		privElems[i] = PropNested(QName{NSDAV, "privilege"}, PropEmpty(p))
	}
	children := append([]RawXMLValue{PropText(QName{NSDAV, "href"}, href)}, privElems...)
	resource := PropNested(QName{NSDAV, "resource"}, children...)
	return NewErrorBody(PropNested(QName{NSDAV, "need-privileges"}, resource))
}
