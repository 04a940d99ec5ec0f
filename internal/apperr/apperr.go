// Package apperr is the single typed error currency of the server: the
// method engine in internal/dav carries failures as *Error (wrapping the
// rfc codecs' own ParseError types and recur's plain errors with Wrap) so it
// can map them to HTTP status and an optional DAV precondition body in one
// place (§7) instead of scattering status codes across handlers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sonroyaalmerol/shuriken-dav/internal/rfc/davxml"
)

// Kind classifies an Error for status mapping and logging, per §7.
type Kind string

const (
	// Parse is a wire-format problem: the request body failed iCal/vCard or
	// DAV XML parsing.
	Parse Kind = "parse"
	// Validation is a structural problem with otherwise well-formed input
	// (missing UID, unsupported component, bad property cardinality).
	Validation Kind = "validation"
	// Precondition is an ETag or UID precondition failure (If-Match,
	// If-None-Match, If-Schedule-Tag-Match, no-uid-conflict).
	Precondition Kind = "precondition"
	// Authz is an authorization denial.
	Authz Kind = "authz"
	// NotFound is a missing principal, collection, or instance.
	NotFound Kind = "not_found"
	// Conflict is a non-UID state conflict (e.g. MKCALENDAR on an existing
	// non-collection resource, COPY/MOVE onto an occupied destination
	// without Overwrite).
	Conflict Kind = "conflict"
	// Invariant is an internal programming error: a codec round-trip that
	// should be lossless wasn't, an index rebuild found impossible state.
	// Always a bug, never caused by client input.
	Invariant Kind = "invariant"
	// Database is a storage-layer failure. Retryable distinguishes a
	// transient condition (connection loss, serialization failure) a
	// client may usefully retry from a permanent one.
	Database Kind = "database"
)

// defaultStatus is Kind's HTTP status per §7.
var defaultStatus = map[Kind]int{
	Parse:        http.StatusBadRequest,
	Validation:   http.StatusConflict,
	Precondition: http.StatusPreconditionFailed,
	Authz:        http.StatusForbidden,
	NotFound:     http.StatusNotFound,
	Conflict:     http.StatusConflict,
	Invariant:    http.StatusInternalServerError,
	Database:     http.StatusInternalServerError,
}

// Error is the typed error every internal package returns. It carries
// enough to both log (Kind, Message, wrapped cause) and respond (HTTPStatus,
// optional DAVBody) without the caller re-deriving either.
type Error struct {
	Kind Kind
	// Message is a short, non-sensitive description safe to log and, for
	// Parse/Validation/Conflict, safe to echo back to the client.
	Message string
	// Retryable marks a Database error as transient (503) rather than
	// permanent (500). Ignored for all other Kinds.
	Retryable bool
	// DAVBody, if set, is attached verbatim to the HTTP response instead of
	// a plain-text body: <CAL:no-uid-conflict>, <DAV:need-privileges>, or
	// any other RFC 4918 §16 precondition element.
	DAVBody *davxml.ErrorBody

	// status overrides the Kind-based default from defaultStatus. Zero
	// means "use the default". Validation and Precondition each cover two
	// possible statuses in §7's prose (e.g. a write denied by a
	// server-side invariant check returns 403 instead of 409); WithStatus
	// sets this for that case rather than introducing a second Kind.
	status int
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// HTTPStatus returns the HTTP status this error maps to.
func (e *Error) HTTPStatus() int {
	if e.status != 0 {
		return e.status
	}
	if e.Kind == Database && e.Retryable {
		return http.StatusServiceUnavailable
	}
	if s, ok := defaultStatus[e.Kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// New constructs an Error of the given Kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an Error that records cause as its underlying error.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

// WithBody attaches a DAV XML error body to e and returns e for chaining.
func (e *Error) WithBody(body *davxml.ErrorBody) *Error {
	e.DAVBody = body
	return e
}

// WithStatus overrides the HTTP status HTTPStatus would otherwise derive
// from Kind.
func (e *Error) WithStatus(status int) *Error {
	e.status = status
	return e
}

// Retry marks a Database error as transient and returns e for chaining.
func (e *Error) Retry() *Error {
	e.Retryable = true
	return e
}

// NotFoundf is a convenience constructor for the common no-args case.
func NotFoundf(format string, args ...any) *Error {
	return New(NotFound, format, args...)
}

// As reports whether err is (or wraps) an *Error, and if so returns it.
func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// KindOf returns the Kind of err if it is an *Error, or Invariant otherwise
// — any error reaching the method engine that isn't already typed is, by
// construction, a bug in the package that produced it.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return Invariant
}
