package dav

import "encoding/xml"

// qnameXML builds an xml.Name for constructing a davxml.RawXMLValue
// condition marker from a (namespace, local) pair.
func qnameXML(space, local string) xml.Name {
	return xml.Name{Space: space, Local: local}
}
