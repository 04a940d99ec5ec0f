// Package davxml implements the WebDAV/CalDAV/CardDAV XML codec: parsing
// PROPFIND, PROPPATCH, REPORT, and MKCOL/MKCALENDAR request bodies, and
// building multistatus, precondition-error, and need-privileges responses.
package davxml

import "fmt"

type ErrorKind string

const (
	ErrXMLError            ErrorKind = "XmlError"
	ErrMissingElement       ErrorKind = "MissingElement"
	ErrUnexpectedElement    ErrorKind = "UnexpectedElement"
	ErrInvalidValue         ErrorKind = "InvalidValue"
	ErrMissingAttribute     ErrorKind = "MissingAttribute"
	ErrUnsupportedNamespace ErrorKind = "UnsupportedNamespace"
	ErrEncodingError        ErrorKind = "EncodingError"
)

type ParseError struct {
	Kind    ErrorKind
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("davxml: %s: %s", e.Kind, e.Message)
}

func newErr(kind ErrorKind, format string, args ...any) *ParseError {
	return &ParseError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
